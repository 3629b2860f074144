package domain

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

type Matter struct {
	ClientID             string                 `json:"client_id"`
	MatterID             string                 `json:"matter_id"`
	Forum                string                 `json:"forum"`
	CompilationProfileID string                 `json:"compilation_profile_id"`
	Results              []IntakeResult         `json:"results"`
	SourceFiles          []SourceFile           `json:"source_files"`
	FilingContext        *FilingDeadlineContext `json:"filing_context,omitempty"`
	CreatedAt            time.Time              `json:"created_at"`
	UpdatedAt            time.Time              `json:"updated_at"`
}

// SourceFile returns the stored payload for fileID.
func (m *Matter) SourceFile(fileID string) (SourceFile, bool) {
	for _, f := range m.SourceFiles {
		if f.FileID == fileID {
			return f, true
		}
	}
	return SourceFile{}, false
}

// Clone copies slices so the clone shares no mutable state with m. Payload
// bytes are shared; they are never written after intake.
func (m *Matter) Clone() *Matter {
	if m == nil {
		return nil
	}
	out := *m
	out.Results = append([]IntakeResult(nil), m.Results...)
	for i := range out.Results {
		r := &out.Results[i]
		r.ClassificationCandidates = slices.Clone(r.ClassificationCandidates)
		r.Issues = slices.Clone(r.Issues)
		r.PageCharCounts = slices.Clone(r.PageCharCounts)
	}
	out.SourceFiles = append([]SourceFile(nil), m.SourceFiles...)
	if m.FilingContext != nil {
		fc := *m.FilingContext
		out.FilingContext = &fc
	}
	return &out
}

// MatterKey scopes a matter to one client.
type MatterKey struct {
	ClientID string
	MatterID string
}

func (k MatterKey) Validate() error {
	if strings.TrimSpace(k.ClientID) == "" {
		return Validationf("matter key", "client_id is required")
	}
	if strings.TrimSpace(k.MatterID) == "" {
		return Validationf("matter key", "matter_id is required")
	}
	return nil
}

func (k MatterKey) String() string {
	return fmt.Sprintf("%s/%s", k.ClientID, k.MatterID)
}

package domain

import "time"

// AssemblyDocument is one input document of the assembly engine.
type AssemblyDocument struct {
	DocumentID   string       `json:"document_id"`
	DocumentType DocumentType `json:"document_type"`
	Filename     string       `json:"filename"`
	PageCount    int          `json:"page_count"`
}

type TOCEntry struct {
	Position     int          `json:"position"`
	DocumentID   string       `json:"document_id"`
	DocumentType DocumentType `json:"document_type"`
	Filename     string       `json:"filename"`
	StartPage    int          `json:"start_page"`
	EndPage      int          `json:"end_page"`
	PageCount    int          `json:"page_count"`
}

type PageMapEntry struct {
	PackagePage  int          `json:"package_page"`
	DocumentID   string       `json:"document_id"`
	DocumentType DocumentType `json:"document_type"`
	DocumentPage int          `json:"document_page"`
}

const (
	ViolationMissingRequired     = "missing_required_document"
	ViolationMissingConditional  = "missing_conditional_document"
	ViolationOutsideOrder        = "document_type_outside_order"
	ViolationEmptyDocument       = "empty_document"
	ViolationPageLimitExceeded   = "page_limit_exceeded"
	ViolationDeadlineExpired     = "filing_deadline_expired"
	ViolationServiceAfterHearing = "service_date_after_hearing_date"
	ViolationFilingBeforeService = "filing_date_before_service_date"
)

type Violation struct {
	Code         string       `json:"violation_code"`
	Severity     Severity     `json:"severity"`
	RuleID       string       `json:"rule_id"`
	SourceURL    string       `json:"source_url"`
	Remediation  string       `json:"remediation"`
	DocumentType DocumentType `json:"document_type,omitempty"`
	DocumentID   string       `json:"document_id,omitempty"`
	Message      string       `json:"message"`
}

type AssemblyPlan struct {
	ProfileID       string         `json:"profile_id"`
	TableOfContents []TOCEntry     `json:"table_of_contents"`
	PageMap         []PageMapEntry `json:"page_map"`
	Violations      []Violation    `json:"violations"`
	TotalPages      int            `json:"total_pages"`
	// StampPages requests a "Page N of M" stamp on every compiled page.
	StampPages bool `json:"stamp_pages"`
}

type SlotStatus string

const (
	SlotPresent SlotStatus = "present"
	SlotMissing SlotStatus = "missing"
)

type SectionStatus string

const (
	SectionComplete    SectionStatus = "complete"
	SectionMissing     SectionStatus = "missing"
	SectionNotRequired SectionStatus = "not_required"
)

type RecordSlot struct {
	DocumentType DocumentType `json:"document_type"`
	RuleID       string       `json:"rule_id"`
	Severity     Severity     `json:"severity"`
	Status       SlotStatus   `json:"status"`
	FileIDs      []string     `json:"file_ids,omitempty"`
}

type RecordSection struct {
	SectionID   string        `json:"section_id"`
	Title       string        `json:"title"`
	Status      SectionStatus `json:"status"`
	Slots       []RecordSlot  `json:"slots"`
	DocumentIDs []string      `json:"document_ids"`
}

type OutputMode string

const (
	OutputCompiledPDF  OutputMode = "compiled_pdf"
	OutputMetadataOnly OutputMode = "metadata_plan_only"
)

type Bookmark struct {
	Level      int    `json:"level"`
	Title      string `json:"title"`
	TargetPage int    `json:"target_page"`
}

type CompiledArtifact struct {
	Filename    string     `json:"filename"`
	ContentType string     `json:"content_type"`
	PageCount   int        `json:"page_count"`
	SHA256      string     `json:"sha256"`
	Bookmarks   []Bookmark `json:"bookmarks"`
	Bytes       []byte     `json:"-"`
}

type Readiness struct {
	ClientID                string              `json:"client_id"`
	MatterID                string              `json:"matter_id"`
	Forum                   string              `json:"forum"`
	ProfileID               string              `json:"compilation_profile_id"`
	IsReady                 bool                `json:"is_ready"`
	MissingRequiredItems    []DocumentType      `json:"missing_required_items"`
	MissingRecommendedItems []DocumentType      `json:"missing_recommended_items"`
	BlockingIssues          []string            `json:"blocking_issues"`
	Warnings                []string            `json:"warnings"`
	RuleViolations          []Violation         `json:"rule_violations"`
	Deadline                *DeadlineEvaluation `json:"deadline,omitempty"`
}

type Package struct {
	Readiness
	RecordSections        []RecordSection   `json:"record_sections"`
	Plan                  AssemblyPlan      `json:"assembly_plan"`
	CoverLetterDraft      string            `json:"cover_letter_draft"`
	CompilationOutputMode OutputMode        `json:"compilation_output_mode"`
	CompiledArtifact      *CompiledArtifact `json:"compiled_artifact,omitempty"`
	GeneratedAt           time.Time         `json:"generated_at"`
}

// Package readiness merges stored intake results with catalog rules into a
// readiness snapshot and the metadata part of a filing package.
package readiness

import (
	"fmt"
	"sort"
	"time"

	"github.com/kirillkom/filing-assembler/internal/core/assembly"
	"github.com/kirillkom/filing-assembler/internal/core/deadline"
	"github.com/kirillkom/filing-assembler/internal/core/domain"
)

type Builder struct {
	deadlines *deadline.Evaluator
	now       func() time.Time
}

func NewBuilder(deadlines *deadline.Evaluator, now func() time.Time) *Builder {
	if now == nil {
		now = time.Now
	}
	if deadlines == nil {
		deadlines = deadline.New(now, 0)
	}
	return &Builder{deadlines: deadlines, now: now}
}

// Evaluate computes readiness and the assembly plan it was derived from.
func (b *Builder) Evaluate(matter *domain.Matter, profile domain.CompilationProfile) (*domain.Readiness, domain.AssemblyPlan) {
	classified := ClassifiedTypes(matter.Results)
	plan := assembly.Plan(profile, AssemblyInput(matter.Results))

	r := &domain.Readiness{
		ClientID:                matter.ClientID,
		MatterID:                matter.MatterID,
		Forum:                   matter.Forum,
		ProfileID:               profile.ProfileID,
		MissingRequiredItems:    []domain.DocumentType{},
		MissingRecommendedItems: []domain.DocumentType{},
		BlockingIssues:          []string{},
		Warnings:                []string{},
	}

	for _, slot := range missingSlots(profile, classified) {
		if slot.severity == domain.SeverityBlocking {
			r.MissingRequiredItems = appendType(r.MissingRequiredItems, slot.docType)
		} else {
			r.MissingRecommendedItems = appendType(r.MissingRecommendedItems, slot.docType)
		}
	}
	sortByOrder(profile, r.MissingRequiredItems)
	sortByOrder(profile, r.MissingRecommendedItems)

	blocking := newStringSet()
	warnings := newStringSet()
	for _, res := range matter.Results {
		target := warnings
		if res.QualityStatus == domain.QualityFailed || res.QualityStatus == domain.QualityNeedsReview {
			target = blocking
		}
		for _, issue := range res.Issues {
			target.add(fmt.Sprintf("%s: %s", res.OriginalFilename, issue))
		}
	}

	violations := append([]domain.Violation(nil), plan.Violations...)
	if eval := b.deadlines.Evaluate(profile, matter.FilingContext); eval != nil {
		r.Deadline = eval
		for _, issue := range eval.BlockingIssues {
			blocking.add(fmt.Sprintf("%s: %s", issue.Code, issue.Message))
			violations = append(violations, deadlineViolation(profile.Deadline, issue))
		}
		for _, issue := range eval.Warnings {
			warnings.add(fmt.Sprintf("%s: %s", issue.Code, issue.Message))
		}
	}
	assembly.SortViolations(violations)

	r.BlockingIssues = blocking.items
	r.Warnings = warnings.items
	r.RuleViolations = violations
	r.IsReady = len(r.MissingRequiredItems) == 0 && !hasBlocking(violations) && len(r.BlockingIssues) == 0
	return r, plan
}

// Build assembles the metadata-only package. Callers attach a compiled
// artifact afterwards when one could be produced.
func (b *Builder) Build(matter *domain.Matter, profile domain.CompilationProfile) *domain.Package {
	r, plan := b.Evaluate(matter, profile)
	now := b.now()
	return &domain.Package{
		Readiness:             *r,
		RecordSections:        RecordSections(profile, matter.Results, plan),
		Plan:                  plan,
		CoverLetterDraft:      CoverLetter(profile, r, plan, now),
		CompilationOutputMode: domain.OutputMetadataOnly,
		GeneratedAt:           now.UTC(),
	}
}

// ClassifiedTypes is the set of non-empty classifications across results.
func ClassifiedTypes(results []domain.IntakeResult) map[domain.DocumentType]struct{} {
	out := make(map[domain.DocumentType]struct{}, len(results))
	for _, res := range results {
		if res.Classification == "" || res.Classification == domain.DocUnclassified {
			continue
		}
		out[res.Classification] = struct{}{}
	}
	return out
}

// AssemblyInput maps non-failed results to assembly documents.
func AssemblyInput(results []domain.IntakeResult) []domain.AssemblyDocument {
	docs := make([]domain.AssemblyDocument, 0, len(results))
	for _, res := range results {
		if res.QualityStatus == domain.QualityFailed {
			continue
		}
		docs = append(docs, domain.AssemblyDocument{
			DocumentID:   res.FileID,
			DocumentType: res.Classification,
			Filename:     res.OriginalFilename,
			PageCount:    res.TotalPages,
		})
	}
	return docs
}

type ruleSlot struct {
	docType  domain.DocumentType
	ruleID   string
	severity domain.Severity
}

// requiredSlots lists the base rules plus active conditional rules.
func requiredSlots(profile domain.CompilationProfile, classified map[domain.DocumentType]struct{}) []ruleSlot {
	slots := make([]ruleSlot, 0, len(profile.RequiredDocuments)+len(profile.ConditionalRules))
	for _, req := range profile.RequiredDocuments {
		slots = append(slots, ruleSlot{docType: req.DocumentType, ruleID: req.RuleID, severity: req.Severity})
	}
	for _, cond := range profile.ConditionalRules {
		if _, active := classified[cond.WhenDocumentType]; !active {
			continue
		}
		slots = append(slots, ruleSlot{docType: cond.RequiresDocumentType, ruleID: cond.RuleID, severity: cond.Severity})
	}
	return slots
}

func missingSlots(profile domain.CompilationProfile, classified map[domain.DocumentType]struct{}) []ruleSlot {
	var out []ruleSlot
	for _, slot := range requiredSlots(profile, classified) {
		if _, ok := classified[slot.docType]; !ok {
			out = append(out, slot)
		}
	}
	return out
}

func deadlineViolation(rule *domain.DeadlineRule, issue domain.DeadlineIssue) domain.Violation {
	v := domain.Violation{
		Code:     issue.Code,
		Severity: domain.SeverityBlocking,
		Message:  issue.Message,
	}
	if rule != nil {
		v.RuleID = rule.RuleID
		v.SourceURL = rule.SourceURL
		v.Remediation = rule.Remediation
	}
	if v.Remediation == "" {
		v.Remediation = "Correct the filing context dates."
	}
	return v
}

func hasBlocking(violations []domain.Violation) bool {
	for _, v := range violations {
		if v.Severity == domain.SeverityBlocking {
			return true
		}
	}
	return false
}

func appendType(list []domain.DocumentType, t domain.DocumentType) []domain.DocumentType {
	for _, existing := range list {
		if existing == t {
			return list
		}
	}
	return append(list, t)
}

func sortByOrder(profile domain.CompilationProfile, types []domain.DocumentType) {
	rank := func(t domain.DocumentType) int {
		if i := profile.OrderIndex(t); i >= 0 {
			return i
		}
		return len(profile.OrderRequirements.DocumentTypes)
	}
	sort.SliceStable(types, func(i, j int) bool {
		return rank(types[i]) < rank(types[j])
	})
}

type stringSet struct {
	seen  map[string]struct{}
	items []string
}

func newStringSet() *stringSet {
	return &stringSet{seen: make(map[string]struct{}), items: []string{}}
}

func (s *stringSet) add(v string) {
	if _, ok := s.seen[v]; ok {
		return
	}
	s.seen[v] = struct{}{}
	s.items = append(s.items, v)
}

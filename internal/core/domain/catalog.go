package domain

type Severity string

const (
	SeverityBlocking Severity = "blocking"
	SeverityWarning  Severity = "warning"
)

func (s Severity) Valid() bool {
	return s == SeverityBlocking || s == SeverityWarning
}

// Rule is the metadata every catalog rule carries.
type Rule struct {
	RuleID      string   `json:"rule_id" yaml:"rule_id"`
	Severity    Severity `json:"severity" yaml:"severity"`
	SourceURL   string   `json:"source_url" yaml:"source_url"`
	Remediation string   `json:"remediation" yaml:"remediation"`
}

type RequiredDocument struct {
	Rule         `yaml:",inline"`
	DocumentType DocumentType `json:"document_type" yaml:"document_type"`
}

type ConditionalRule struct {
	Rule                 `yaml:",inline"`
	WhenDocumentType     DocumentType `json:"when_document_type" yaml:"when_document_type"`
	RequiresDocumentType DocumentType `json:"requires_document_type" yaml:"requires_document_type"`
}

type OrderRequirements struct {
	Rule          `yaml:",inline"`
	DocumentTypes []DocumentType `json:"document_types" yaml:"document_types"`
}

type PaginationRequirements struct {
	Rule          `yaml:",inline"`
	MaxTotalPages int  `json:"max_total_pages,omitempty" yaml:"max_total_pages"`
	StampPages    bool `json:"stamp_pages" yaml:"stamp_pages"`
}

type RecordSectionSpec struct {
	SectionID     string         `json:"section_id" yaml:"section_id"`
	Title         string         `json:"title" yaml:"title"`
	DocumentTypes []DocumentType `json:"document_types" yaml:"document_types"`
}

type DeadlineReference string

const (
	ReferenceDecisionDate DeadlineReference = "decision_date"
	ReferenceHearingDate  DeadlineReference = "hearing_date"
)

type DeadlineDirection string

const (
	DirectionAfter  DeadlineDirection = "after"
	DirectionBefore DeadlineDirection = "before"
)

type DeadlineRule struct {
	Rule           `yaml:",inline"`
	ReferenceField DeadlineReference `json:"reference_field" yaml:"reference_field"`
	Days           int               `json:"days" yaml:"days"`
	Direction      DeadlineDirection `json:"direction" yaml:"direction"`
}

type CompilationProfile struct {
	ProfileID              string                 `json:"profile_id" yaml:"profile_id"`
	Forum                  string                 `json:"forum" yaml:"forum"`
	Title                  string                 `json:"title" yaml:"title"`
	RequiredDocuments      []RequiredDocument     `json:"required_documents" yaml:"required_documents"`
	ConditionalRules       []ConditionalRule      `json:"conditional_rules" yaml:"conditional_rules"`
	OrderRequirements      OrderRequirements      `json:"order_requirements" yaml:"order_requirements"`
	PaginationRequirements PaginationRequirements `json:"pagination_requirements" yaml:"pagination_requirements"`
	RecordSections         []RecordSectionSpec    `json:"record_sections,omitempty" yaml:"record_sections"`
	Deadline               *DeadlineRule          `json:"deadline,omitempty" yaml:"deadline"`
}

// RuleIDs returns every rule id the profile declares.
func (p CompilationProfile) RuleIDs() []string {
	ids := make([]string, 0, len(p.RequiredDocuments)+len(p.ConditionalRules)+3)
	for _, r := range p.RequiredDocuments {
		ids = append(ids, r.RuleID)
	}
	for _, r := range p.ConditionalRules {
		ids = append(ids, r.RuleID)
	}
	if p.OrderRequirements.RuleID != "" {
		ids = append(ids, p.OrderRequirements.RuleID)
	}
	if p.PaginationRequirements.RuleID != "" {
		ids = append(ids, p.PaginationRequirements.RuleID)
	}
	if p.Deadline != nil {
		ids = append(ids, p.Deadline.RuleID)
	}
	return ids
}

// OrderIndex is the position of t in the canonical sequence, or -1.
func (p CompilationProfile) OrderIndex(t DocumentType) int {
	for i, candidate := range p.OrderRequirements.DocumentTypes {
		if candidate == t {
			return i
		}
	}
	return -1
}

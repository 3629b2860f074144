package domain

import (
	"fmt"
	"time"
)

// DateLayout is the wire format of every filing context date.
const DateLayout = "2006-01-02"

// FilingDeadlineContext carries caller-supplied reference dates. Empty
// strings mean "not supplied".
type FilingDeadlineContext struct {
	DecisionDate   string `json:"decision_date,omitempty"`
	HearingDate    string `json:"hearing_date,omitempty"`
	ServiceDate    string `json:"service_date,omitempty"`
	FilingDate     string `json:"filing_date,omitempty"`
	OverrideReason string `json:"override_reason,omitempty"`
}

func (c *FilingDeadlineContext) IsZero() bool {
	return c == nil || *c == FilingDeadlineContext{}
}

// Validate checks every supplied date parses as YYYY-MM-DD.
func (c *FilingDeadlineContext) Validate() error {
	if c == nil {
		return nil
	}
	fields := []struct {
		name  string
		value string
	}{
		{"decision_date", c.DecisionDate},
		{"hearing_date", c.HearingDate},
		{"service_date", c.ServiceDate},
		{"filing_date", c.FilingDate},
	}
	for _, f := range fields {
		if f.value == "" {
			continue
		}
		if _, err := ParseDate(f.value); err != nil {
			return Validationf("filing context", "%s: %v", f.name, err)
		}
	}
	return nil
}

func ParseDate(value string) (time.Time, error) {
	t, err := time.Parse(DateLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("expected %s, got %q", DateLayout, value)
	}
	return t, nil
}

const (
	DeadlineIssueExpired          = "filing_deadline_expired"
	DeadlineIssueOverrideApplied  = "filing_deadline_override_applied"
	DeadlineIssueApproaching      = "filing_deadline_approaching"
	DeadlineIssueReferenceMissing = "filing_deadline_reference_missing"
	DeadlineIssueServiceAfter     = "service_date_after_hearing_date"
	DeadlineIssueFilingBefore     = "filing_date_before_service_date"
)

type DeadlineIssue struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	RuleID  string `json:"rule_id,omitempty"`
}

type DeadlineEvaluation struct {
	RuleID         string          `json:"rule_id,omitempty"`
	ReferenceField string          `json:"reference_field,omitempty"`
	DeadlineDate   string          `json:"deadline_date,omitempty"`
	FilingDate     string          `json:"filing_date"`
	BlockingIssues []DeadlineIssue `json:"blocking_issues"`
	Warnings       []DeadlineIssue `json:"warnings"`
}

// Package deadline computes forum filing deadlines from caller-supplied
// reference dates.
package deadline

import (
	"fmt"
	"time"

	"github.com/kirillkom/filing-assembler/internal/core/domain"
)

const DefaultApproachingDays = 3

type Evaluator struct {
	now             func() time.Time
	approachingDays int
}

// New returns an evaluator. A nil clock uses time.Now; a non-positive
// approachingDays uses DefaultApproachingDays.
func New(now func() time.Time, approachingDays int) *Evaluator {
	if now == nil {
		now = time.Now
	}
	if approachingDays <= 0 {
		approachingDays = DefaultApproachingDays
	}
	return &Evaluator{now: now, approachingDays: approachingDays}
}

// Evaluate returns nil when the profile has no deadline rule and no filing
// context was supplied. The context is expected to be validated already;
// unparsable dates are treated as absent.
func (e *Evaluator) Evaluate(profile domain.CompilationProfile, fc *domain.FilingDeadlineContext) *domain.DeadlineEvaluation {
	rule := profile.Deadline
	if rule == nil && fc.IsZero() {
		return nil
	}
	if fc == nil {
		fc = &domain.FilingDeadlineContext{}
	}

	filing, ok := parse(fc.FilingDate)
	if !ok {
		filing = truncateDay(e.now())
	}
	eval := &domain.DeadlineEvaluation{
		FilingDate:     filing.Format(domain.DateLayout),
		BlockingIssues: []domain.DeadlineIssue{},
		Warnings:       []domain.DeadlineIssue{},
	}

	if rule != nil {
		e.applyRule(eval, rule, fc, filing)
	}

	service, hasService := parse(fc.ServiceDate)
	hearing, hasHearing := parse(fc.HearingDate)
	if hasService && hasHearing && service.After(hearing) {
		eval.BlockingIssues = append(eval.BlockingIssues, domain.DeadlineIssue{
			Code:    domain.DeadlineIssueServiceAfter,
			Message: fmt.Sprintf("service date %s is after hearing date %s", fc.ServiceDate, fc.HearingDate),
		})
	}
	if hasService && filing.Before(service) {
		eval.BlockingIssues = append(eval.BlockingIssues, domain.DeadlineIssue{
			Code:    domain.DeadlineIssueFilingBefore,
			Message: fmt.Sprintf("filing date %s is before service date %s", eval.FilingDate, fc.ServiceDate),
		})
	}
	return eval
}

func (e *Evaluator) applyRule(eval *domain.DeadlineEvaluation, rule *domain.DeadlineRule, fc *domain.FilingDeadlineContext, filing time.Time) {
	eval.RuleID = rule.RuleID
	eval.ReferenceField = string(rule.ReferenceField)

	raw := fc.DecisionDate
	if rule.ReferenceField == domain.ReferenceHearingDate {
		raw = fc.HearingDate
	}
	reference, ok := parse(raw)
	if !ok {
		eval.Warnings = append(eval.Warnings, domain.DeadlineIssue{
			Code:    domain.DeadlineIssueReferenceMissing,
			Message: fmt.Sprintf("%s is required to compute the filing deadline", rule.ReferenceField),
			RuleID:  rule.RuleID,
		})
		return
	}

	days := rule.Days
	if rule.Direction == domain.DirectionBefore {
		days = -days
	}
	deadline := reference.AddDate(0, 0, days)
	eval.DeadlineDate = deadline.Format(domain.DateLayout)

	if filing.After(deadline) {
		if fc.OverrideReason != "" {
			eval.Warnings = append(eval.Warnings, domain.DeadlineIssue{
				Code:    domain.DeadlineIssueOverrideApplied,
				Message: fmt.Sprintf("deadline %s passed; override applied: %s", eval.DeadlineDate, fc.OverrideReason),
				RuleID:  rule.RuleID,
			})
			return
		}
		eval.BlockingIssues = append(eval.BlockingIssues, domain.DeadlineIssue{
			Code:    domain.DeadlineIssueExpired,
			Message: fmt.Sprintf("filing deadline %s has passed. %s", eval.DeadlineDate, rule.Remediation),
			RuleID:  rule.RuleID,
		})
		return
	}

	remaining := daysBetween(filing, deadline)
	if remaining > 0 && remaining <= e.approachingDays {
		eval.Warnings = append(eval.Warnings, domain.DeadlineIssue{
			Code:    domain.DeadlineIssueApproaching,
			Message: fmt.Sprintf("filing deadline %s is in %d day(s)", eval.DeadlineDate, remaining),
			RuleID:  rule.RuleID,
		})
	}
}

func parse(value string) (time.Time, bool) {
	if value == "" {
		return time.Time{}, false
	}
	t, err := domain.ParseDate(value)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// daysBetween counts calendar days; both inputs are UTC midnights.
func daysBetween(from, to time.Time) int {
	return int(to.Sub(from).Hours() / 24)
}

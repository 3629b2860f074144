package deadline

import (
	"testing"
	"time"

	"github.com/kirillkom/filing-assembler/internal/config"
	"github.com/kirillkom/filing-assembler/internal/core/domain"
)

func fixedClock(day string) func() time.Time {
	t, err := time.Parse(domain.DateLayout, day)
	if err != nil {
		panic(err)
	}
	return func() time.Time { return t.Add(15 * time.Hour) }
}

func profileWith(rule *domain.DeadlineRule) domain.CompilationProfile {
	return domain.CompilationProfile{ProfileID: "p", Forum: "f", Deadline: rule}
}

func afterDecision(days int) *domain.DeadlineRule {
	return &domain.DeadlineRule{
		Rule: domain.Rule{
			RuleID:      "D-1",
			Severity:    domain.SeverityBlocking,
			SourceURL:   "https://example.org/d",
			Remediation: "Seek an extension.",
		},
		ReferenceField: domain.ReferenceDecisionDate,
		Days:           days,
		Direction:      domain.DirectionAfter,
	}
}

func codes(issues []domain.DeadlineIssue) []string {
	out := make([]string, 0, len(issues))
	for _, i := range issues {
		out = append(out, i.Code)
	}
	return out
}

func TestEvaluateNoRuleNoContext(t *testing.T) {
	e := New(fixedClock("2026-03-01"), 0)
	if got := e.Evaluate(profileWith(nil), nil); got != nil {
		t.Fatalf("expected nil evaluation, got %+v", got)
	}
}

func TestEvaluateExpiredWithoutOverride(t *testing.T) {
	e := New(fixedClock("2026-03-01"), 0)
	got := e.Evaluate(profileWith(afterDecision(15)), &domain.FilingDeadlineContext{
		DecisionDate: "2026-01-10",
		FilingDate:   "2026-01-26",
	})
	if got.DeadlineDate != "2026-01-25" {
		t.Fatalf("deadline = %s, want 2026-01-25", got.DeadlineDate)
	}
	if c := codes(got.BlockingIssues); len(c) != 1 || c[0] != domain.DeadlineIssueExpired {
		t.Fatalf("expected expired blocking issue, got %v", c)
	}
	if got.BlockingIssues[0].RuleID != "D-1" {
		t.Fatalf("expected rule id on issue, got %+v", got.BlockingIssues[0])
	}
}

func TestEvaluateOverrideDowngradesToWarning(t *testing.T) {
	e := New(fixedClock("2026-03-01"), 0)
	got := e.Evaluate(profileWith(afterDecision(15)), &domain.FilingDeadlineContext{
		DecisionDate:   "2026-01-10",
		FilingDate:     "2026-02-01",
		OverrideReason: "extension granted on consent",
	})
	if len(got.BlockingIssues) != 0 {
		t.Fatalf("expected no blocking issues, got %+v", got.BlockingIssues)
	}
	if c := codes(got.Warnings); len(c) != 1 || c[0] != domain.DeadlineIssueOverrideApplied {
		t.Fatalf("expected override warning, got %v", c)
	}
}

func TestEvaluateApproachingWindow(t *testing.T) {
	e := New(fixedClock("2026-03-01"), 0)
	cases := []struct {
		filing string
		warn   bool
	}{
		{"2026-01-21", false}, // 4 days left
		{"2026-01-22", true},  // 3 days left
		{"2026-01-24", true},  // 1 day left
		{"2026-01-25", false}, // deadline day
	}
	for _, tc := range cases {
		got := e.Evaluate(profileWith(afterDecision(15)), &domain.FilingDeadlineContext{
			DecisionDate: "2026-01-10",
			FilingDate:   tc.filing,
		})
		hasWarn := len(got.Warnings) == 1 && got.Warnings[0].Code == domain.DeadlineIssueApproaching
		if hasWarn != tc.warn {
			t.Fatalf("filing %s: approaching=%v, want %v (%+v)", tc.filing, hasWarn, tc.warn, got.Warnings)
		}
		if len(got.BlockingIssues) != 0 {
			t.Fatalf("filing %s: unexpected blocking issues %+v", tc.filing, got.BlockingIssues)
		}
	}
}

func TestEvaluateBeforeHearingUsesClockForFilingDate(t *testing.T) {
	rule := afterDecision(10)
	rule.ReferenceField = domain.ReferenceHearingDate
	rule.Direction = domain.DirectionBefore

	e := New(fixedClock("2026-05-08"), 0)
	got := e.Evaluate(profileWith(rule), &domain.FilingDeadlineContext{HearingDate: "2026-05-20"})
	if got.DeadlineDate != "2026-05-10" || got.FilingDate != "2026-05-08" {
		t.Fatalf("unexpected evaluation: %+v", got)
	}
	if c := codes(got.Warnings); len(c) != 1 || c[0] != domain.DeadlineIssueApproaching {
		t.Fatalf("expected approaching warning, got %v", c)
	}
}

func TestEvaluateMissingReference(t *testing.T) {
	e := New(fixedClock("2026-03-01"), 0)
	got := e.Evaluate(profileWith(afterDecision(15)), nil)
	if got == nil {
		t.Fatalf("expected evaluation")
	}
	if got.DeadlineDate != "" {
		t.Fatalf("expected no deadline date, got %s", got.DeadlineDate)
	}
	if c := codes(got.Warnings); len(c) != 1 || c[0] != domain.DeadlineIssueReferenceMissing {
		t.Fatalf("expected reference missing warning, got %v", c)
	}
}

func TestEvaluateDateOrderingAlwaysBlocking(t *testing.T) {
	e := New(fixedClock("2026-03-01"), 0)
	got := e.Evaluate(profileWith(nil), &domain.FilingDeadlineContext{
		HearingDate: "2026-04-01",
		ServiceDate: "2026-04-05",
		FilingDate:  "2026-04-02",
	})
	c := codes(got.BlockingIssues)
	if len(c) != 2 || c[0] != domain.DeadlineIssueServiceAfter || c[1] != domain.DeadlineIssueFilingBefore {
		t.Fatalf("unexpected blocking issues: %v", c)
	}
}

func TestEvaluateConfiguredWindowMatchesDefault(t *testing.T) {
	t.Setenv("DEADLINE_APPROACHING_DAYS", "")
	cfg := config.Load()
	if cfg.DeadlineApproachingDays != DefaultApproachingDays {
		t.Fatalf("configured window %d, want %d", cfg.DeadlineApproachingDays, DefaultApproachingDays)
	}

	e := New(fixedClock("2026-03-01"), cfg.DeadlineApproachingDays)
	got := e.Evaluate(profileWith(afterDecision(15)), &domain.FilingDeadlineContext{
		DecisionDate: "2026-01-10",
		FilingDate:   "2026-01-19",
	})
	if len(got.Warnings) != 0 {
		t.Fatalf("6 days before deadline must not warn, got %+v", got.Warnings)
	}
}

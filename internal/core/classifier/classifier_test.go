package classifier

import (
	"math"
	"strings"
	"testing"

	"github.com/kirillkom/filing-assembler/internal/core/domain"
)

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestClassifyEmptyTextIsUnclassified(t *testing.T) {
	c := New(nil, DefaultThresholds())

	for _, text := range []string{"", "   \n\t  "} {
		got := c.Classify(text)
		if got.DocumentType != domain.DocUnclassified {
			t.Fatalf("expected unclassified, got %s", got.DocumentType)
		}
		if got.Confidence != domain.ConfidenceLow {
			t.Fatalf("expected low confidence, got %s", got.Confidence)
		}
		if len(got.Candidates) != 1 || got.Candidates[0].DocumentType != domain.DocUnclassified || got.Candidates[0].Score != 1.0 {
			t.Fatalf("expected single unclassified candidate with score 1.0, got %+v", got.Candidates)
		}
	}
}

func TestClassifyNoMatchReturnsNoCandidates(t *testing.T) {
	c := New(nil, DefaultThresholds())
	got := c.Classify("lorem ipsum dolor sit amet")
	if got.DocumentType != domain.DocUnclassified || got.Confidence != domain.ConfidenceLow {
		t.Fatalf("unexpected classification: %+v", got)
	}
	if len(got.Candidates) != 0 {
		t.Fatalf("expected no candidates, got %+v", got.Candidates)
	}
}

func TestScoreFormula(t *testing.T) {
	rule := Rule{Category: domain.DocAffidavit, Phrases: []string{"alpha beta", "gamma"}}

	score, ok := Score(rule, "alpha beta")
	if !ok {
		t.Fatalf("expected match")
	}
	// 0.45 + 0.40*(1/2) + 0.15*(10/40)
	if !approx(score, 0.6875) {
		t.Fatalf("expected 0.6875, got %v", score)
	}

	score, _ = Score(rule, "alpha beta gamma")
	if !approx(score, 0.8875) {
		t.Fatalf("expected 0.8875, got %v", score)
	}

	long := Rule{Category: domain.DocAffidavit, Phrases: []string{strings.Repeat("x", 80)}}
	score, _ = Score(long, strings.Repeat("x", 80))
	if !approx(score, 1.0) {
		t.Fatalf("expected score capped at 1.0, got %v", score)
	}

	if _, ok := Score(rule, "nothing here"); ok {
		t.Fatalf("expected no match")
	}
}

func TestClassifyConfidenceBuckets(t *testing.T) {
	rules := []Rule{
		{Category: domain.DocAffidavit, Phrases: []string{"alpha beta"}},
		{Category: domain.DocMemorandum, Phrases: []string{"gamma delt", "epsilon"}},
		{Category: domain.DocTranslation, Phrases: []string{"zeta etaaa", "theta"}},
	}
	c := New(rules, DefaultThresholds())

	high := c.Classify("ALPHA   beta")
	if high.DocumentType != domain.DocAffidavit || high.Confidence != domain.ConfidenceHigh {
		t.Fatalf("expected high affidavit, got %+v", high)
	}

	medium := c.Classify("gamma delt")
	if medium.DocumentType != domain.DocMemorandum || medium.Confidence != domain.ConfidenceMedium {
		t.Fatalf("expected medium memorandum, got %+v", medium)
	}

	// memorandum and translation score identically: gap 0.
	low := c.Classify("gamma delt zeta etaaa")
	if low.Confidence != domain.ConfidenceLow {
		t.Fatalf("expected low confidence for tie, got %s", low.Confidence)
	}
	if low.DocumentType != domain.DocMemorandum {
		t.Fatalf("expected tie broken by declaration order, got %s", low.DocumentType)
	}
	if len(low.Candidates) != 2 || low.Candidates[1].DocumentType != domain.DocTranslation {
		t.Fatalf("unexpected candidates: %+v", low.Candidates)
	}
}

func TestClassifyCustomThresholds(t *testing.T) {
	rules := []Rule{{Category: domain.DocAffidavit, Phrases: []string{"alpha beta", "gamma"}}}
	c := New(rules, Thresholds{HighScore: 0.65, HighGap: 0.1, MediumScore: 0.5, MediumGap: 0.05})
	got := c.Classify("alpha beta")
	if got.Confidence != domain.ConfidenceHigh {
		t.Fatalf("expected high with lowered threshold, got %s", got.Confidence)
	}
}

func TestClassifyReturnsAtMostThreeCandidates(t *testing.T) {
	rules := []Rule{
		{Category: domain.DocAffidavit, Phrases: []string{"one"}},
		{Category: domain.DocMemorandum, Phrases: []string{"two"}},
		{Category: domain.DocTranslation, Phrases: []string{"three"}},
		{Category: domain.DocWitnessList, Phrases: []string{"four"}},
	}
	got := New(rules, DefaultThresholds()).Classify("one two three four")
	if len(got.Candidates) != 3 {
		t.Fatalf("expected 3 candidates, got %d", len(got.Candidates))
	}
	for i := 1; i < len(got.Candidates); i++ {
		if got.Candidates[i].Score > got.Candidates[i-1].Score {
			t.Fatalf("candidates not ranked: %+v", got.Candidates)
		}
	}
}

func TestScoreMonotonicInCoverage(t *testing.T) {
	for _, rule := range DefaultRules {
		text := ""
		prev := 0.0
		for i, phrase := range rule.Phrases {
			text += " " + phrase
			score, ok := Score(rule, normalizeText(text))
			if !ok {
				t.Fatalf("%s: expected match after phrase %d", rule.Category, i)
			}
			if score < prev {
				t.Fatalf("%s: score decreased from %v to %v", rule.Category, prev, score)
			}
			prev = score
		}
	}
}

func TestDefaultRulesCoverCanonicalTypes(t *testing.T) {
	if len(DefaultRules) != len(domain.CanonicalDocumentTypes) {
		t.Fatalf("expected one rule per canonical type, got %d rules", len(DefaultRules))
	}
	for i, rule := range DefaultRules {
		if rule.Category != domain.CanonicalDocumentTypes[i] {
			t.Fatalf("rule %d: expected %s, got %s", i, domain.CanonicalDocumentTypes[i], rule.Category)
		}
		for _, phrase := range rule.Phrases {
			if phrase != strings.ToLower(phrase) {
				t.Fatalf("%s: phrase %q is not lowercase", rule.Category, phrase)
			}
		}
	}
}

func TestClassifyRealisticNotice(t *testing.T) {
	text := `FEDERAL COURT
NOTICE OF APPLICATION
APPLICATION FOR LEAVE AND FOR JUDICIAL REVIEW
The applicant makes application for leave to commence an application for judicial review of the decision of the tribunal.`
	got := New(nil, DefaultThresholds()).Classify(text)
	if got.DocumentType != domain.DocNoticeOfApplication {
		t.Fatalf("expected notice_of_application, got %+v", got)
	}
	if got.Confidence != domain.ConfidenceHigh {
		t.Fatalf("expected high confidence, got %s (%+v)", got.Confidence, got.Candidates)
	}
}

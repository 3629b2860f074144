// Package classifier scores extracted document text against a static table
// of phrase rules and buckets the result into a confidence level.
package classifier

import (
	"math"
	"sort"
	"strings"

	"github.com/kirillkom/filing-assembler/internal/core/domain"
)

const (
	baseScore        = 0.45
	coverageWeight   = 0.40
	specificityScale = 0.15
	specificityChars = 40.0
	maxCandidates    = 3
)

// Thresholds decide the confidence bucket of the top candidate.
type Thresholds struct {
	HighScore   float64
	HighGap     float64
	MediumScore float64
	MediumGap   float64
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		HighScore:   0.82,
		HighGap:     0.18,
		MediumScore: 0.60,
		MediumGap:   0.08,
	}
}

func (t Thresholds) normalize() Thresholds {
	def := DefaultThresholds()
	if t.HighScore <= 0 || t.HighScore > 1 {
		t.HighScore = def.HighScore
	}
	if t.HighGap < 0 {
		t.HighGap = def.HighGap
	}
	if t.MediumScore <= 0 || t.MediumScore > 1 {
		t.MediumScore = def.MediumScore
	}
	if t.MediumGap < 0 {
		t.MediumGap = def.MediumGap
	}
	return t
}

type Classifier struct {
	rules      []Rule
	thresholds Thresholds
}

func New(rules []Rule, thresholds Thresholds) *Classifier {
	if len(rules) == 0 {
		rules = DefaultRules
	}
	return &Classifier{
		rules:      rules,
		thresholds: thresholds.normalize(),
	}
}

type scored struct {
	order int
	cand  domain.ClassificationCandidate
}

func (c *Classifier) Classify(text string) domain.Classification {
	normalized := normalizeText(text)
	if normalized == "" {
		return domain.Classification{
			DocumentType: domain.DocUnclassified,
			Confidence:   domain.ConfidenceLow,
			Candidates: []domain.ClassificationCandidate{
				{DocumentType: domain.DocUnclassified, Score: 1.0},
			},
		}
	}

	ranked := make([]scored, 0, len(c.rules))
	for i, rule := range c.rules {
		score, ok := Score(rule, normalized)
		if !ok {
			continue
		}
		ranked = append(ranked, scored{
			order: i,
			cand:  domain.ClassificationCandidate{DocumentType: rule.Category, Score: score},
		})
	}
	if len(ranked) == 0 {
		return domain.Classification{
			DocumentType: domain.DocUnclassified,
			Confidence:   domain.ConfidenceLow,
			Candidates:   []domain.ClassificationCandidate{},
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].cand.Score != ranked[j].cand.Score {
			return ranked[i].cand.Score > ranked[j].cand.Score
		}
		return ranked[i].order < ranked[j].order
	})

	top := ranked[0].cand.Score
	second := 0.0
	if len(ranked) > 1 {
		second = ranked[1].cand.Score
	}

	limit := min(len(ranked), maxCandidates)
	candidates := make([]domain.ClassificationCandidate, 0, limit)
	for _, r := range ranked[:limit] {
		candidates = append(candidates, r.cand)
	}

	return domain.Classification{
		DocumentType: ranked[0].cand.DocumentType,
		Confidence:   c.bucket(top, second),
		Candidates:   candidates,
	}
}

func (c *Classifier) bucket(top, second float64) domain.Confidence {
	gap := top - second
	switch {
	case top >= c.thresholds.HighScore && gap >= c.thresholds.HighGap:
		return domain.ConfidenceHigh
	case top >= c.thresholds.MediumScore && gap >= c.thresholds.MediumGap:
		return domain.ConfidenceMedium
	default:
		return domain.ConfidenceLow
	}
}

// Score rates normalized text against one rule. ok is false when no phrase
// matched.
func Score(rule Rule, normalized string) (score float64, ok bool) {
	if len(rule.Phrases) == 0 {
		return 0, false
	}
	matched := 0
	specificity := 0.0
	for _, phrase := range rule.Phrases {
		if !strings.Contains(normalized, phrase) {
			continue
		}
		matched++
		specificity = math.Max(specificity, math.Min(float64(len(phrase))/specificityChars, 1.0))
	}
	if matched == 0 {
		return 0, false
	}
	coverage := float64(matched) / float64(len(rule.Phrases))
	score = baseScore + coverageWeight*coverage + specificityScale*specificity
	return math.Min(score, 1.0), true
}

func normalizeText(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}

package domain

type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

type ClassificationCandidate struct {
	DocumentType DocumentType `json:"document_type"`
	Score        float64      `json:"score"`
}

type Classification struct {
	DocumentType DocumentType              `json:"document_type"`
	Confidence   Confidence                `json:"confidence"`
	Candidates   []ClassificationCandidate `json:"candidates"`
}

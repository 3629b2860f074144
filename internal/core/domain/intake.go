package domain

import "time"

type QualityStatus string

const (
	QualityProcessed   QualityStatus = "processed"
	QualityNeedsReview QualityStatus = "needs_review"
	QualityFailed      QualityStatus = "failed"
)

// PayloadFormat is the format detected from magic bytes.
type PayloadFormat string

const (
	FormatUnknown PayloadFormat = ""
	FormatPDF     PayloadFormat = "pdf"
	FormatPNG     PayloadFormat = "png"
	FormatJPEG    PayloadFormat = "jpeg"
	FormatTIFF    PayloadFormat = "tiff"
)

func (f PayloadFormat) IsImage() bool {
	return f == FormatPNG || f == FormatJPEG || f == FormatTIFF
}

// SourceFile is an uploaded payload. Immutable once stored.
type SourceFile struct {
	FileID      string `json:"file_id"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type,omitempty"`
	Payload     []byte `json:"payload"`
}

type PageSignal struct {
	PageNumber         int  `json:"page_number"`
	NativeCharCount    int  `json:"native_char_count"`
	ExtractedCharCount int  `json:"extracted_char_count"`
	WordCount          int  `json:"word_count"`
	UsedOCR            bool `json:"used_ocr"`
}

type ExtractionResult struct {
	Format                  PayloadFormat `json:"format"`
	ExtractedText           string        `json:"extracted_text"`
	TotalPages              int           `json:"total_pages"`
	TotalExtractedCharCount int           `json:"total_extracted_char_count"`
	PageSignals             []PageSignal  `json:"page_signals"`
	UsedOCR                 bool          `json:"used_ocr"`
	OCRPages                int           `json:"ocr_pages"`
	OCRCharCount            int           `json:"ocr_char_count"`
	OCRLimitHit             bool          `json:"ocr_limit_hit"`
}

type IntakeResult struct {
	FileID                   string                    `json:"file_id"`
	OriginalFilename         string                    `json:"original_filename"`
	NormalizedFilename       string                    `json:"normalized_filename"`
	Classification           DocumentType              `json:"classification"`
	ClassificationConfidence Confidence                `json:"classification_confidence"`
	ClassificationCandidates []ClassificationCandidate `json:"classification_candidates"`
	QualityStatus            QualityStatus             `json:"quality_status"`
	Issues                   []string                  `json:"issues"`
	UsedOCR                  bool                      `json:"used_ocr"`
	OCRLimitHit              bool                      `json:"ocr_limit_hit"`
	TotalPages               int                       `json:"total_pages"`
	PageCharCounts           []int                     `json:"page_char_counts"`
	FileHash                 string                    `json:"file_hash"`
	SizeBytes                int                       `json:"size_bytes"`
}

// UploadFile is one file of an intake batch as received from the caller.
type UploadFile struct {
	FileID      string
	Filename    string
	ContentType string
	Payload     []byte
}

type IntakeRequest struct {
	ClientID             string
	Forum                string
	MatterID             string
	CompilationProfileID string
	FilingContext        *FilingDeadlineContext
	Files                []UploadFile
}

type IntakeResponse struct {
	ClientID             string         `json:"client_id"`
	MatterID             string         `json:"matter_id"`
	Forum                string         `json:"forum"`
	CompilationProfileID string         `json:"compilation_profile_id"`
	Results              []IntakeResult `json:"results"`
	ReceivedAt           time.Time      `json:"received_at"`
}

// IntakeEvent is published after a matter record is replaced.
type IntakeEvent struct {
	ClientID             string    `json:"client_id"`
	MatterID             string    `json:"matter_id"`
	Forum                string    `json:"forum"`
	CompilationProfileID string    `json:"compilation_profile_id"`
	FileCount            int       `json:"file_count"`
	FailedCount          int       `json:"failed_count"`
	NeedsReviewCount     int       `json:"needs_review_count"`
	OccurredAt           time.Time `json:"occurred_at"`
}

// Package extractor turns raw payloads into per-page text, falling back to
// OCR for pages without native text while an OCR budget remains.
package extractor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	_ "golang.org/x/image/tiff"

	"github.com/kirillkom/filing-assembler/internal/core/domain"
	"github.com/kirillkom/filing-assembler/internal/core/ports"
)

// Config bounds OCR work per document. A non-positive budget disables OCR.
type Config struct {
	OCRMaxPages int
	OCRMaxChars int
}

type Extractor struct {
	ocr    ports.PageOCR
	cfg    Config
	logger *slog.Logger
}

// New returns an extractor. ocr may be nil when no backend is installed.
func New(ocr ports.PageOCR, cfg Config, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{ocr: ocr, cfg: cfg, logger: logger}
}

func (e *Extractor) Extract(ctx context.Context, payload []byte) (*domain.ExtractionResult, error) {
	format := Sniff(payload)
	var (
		native []string
		err    error
	)
	switch format {
	case domain.FormatPDF:
		native, err = pdfPages(payload)
	case domain.FormatPNG, domain.FormatJPEG, domain.FormatTIFF:
		err = checkImage(payload)
		native = []string{""}
	default:
		err = errors.New("no supported signature")
	}
	if err != nil {
		return nil, domain.WrapError(domain.ErrUnreadablePayload, "extract", err)
	}

	res := &domain.ExtractionResult{
		Format:      format,
		TotalPages:  len(native),
		PageSignals: make([]domain.PageSignal, 0, len(native)),
	}
	budget := e.newBudget()
	texts := make([]string, 0, len(native))

	for i, raw := range native {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		text := strings.TrimSpace(raw)
		signal := domain.PageSignal{
			PageNumber:      i + 1,
			NativeCharCount: utf8.RuneCountInString(text),
		}

		if text == "" && budget.enabled && !res.OCRLimitHit {
			if budget.exhausted() {
				res.OCRLimitHit = true
			} else if recognized, ok := e.recognize(ctx, format, payload, i+1); ok {
				res.OCRPages++
				kept, truncated := budget.take(recognized)
				if truncated {
					res.OCRLimitHit = true
				}
				if kept != "" {
					text = kept
					signal.UsedOCR = true
					res.UsedOCR = true
					res.OCRCharCount += utf8.RuneCountInString(kept)
				}
			}
		}

		signal.ExtractedCharCount = utf8.RuneCountInString(text)
		signal.WordCount = len(strings.Fields(text))
		res.TotalExtractedCharCount += signal.ExtractedCharCount
		res.PageSignals = append(res.PageSignals, signal)
		if text != "" {
			texts = append(texts, text)
		}
	}

	res.ExtractedText = strings.Join(texts, "\n\n")
	if res.OCRLimitHit {
		e.logger.Info("ocr budget exhausted",
			"pages", res.TotalPages,
			"ocr_pages", res.OCRPages,
			"ocr_chars", res.OCRCharCount,
		)
	}
	return res, nil
}

func (e *Extractor) recognize(ctx context.Context, format domain.PayloadFormat, payload []byte, page int) (string, bool) {
	var (
		text string
		err  error
	)
	if format == domain.FormatPDF {
		text, err = e.ocr.RecognizePDFPage(ctx, payload, page)
	} else {
		text, err = e.ocr.RecognizeImage(ctx, payload)
	}
	if err != nil {
		e.logger.Warn("ocr page failed", "page", page, "format", format, "error", err)
		return "", false
	}
	return strings.TrimSpace(text), true
}

func (e *Extractor) newBudget() *ocrBudget {
	enabled := e.ocr != nil && e.cfg.OCRMaxPages > 0 && e.cfg.OCRMaxChars > 0 && e.ocr.Available()
	return &ocrBudget{enabled: enabled, pagesLeft: e.cfg.OCRMaxPages, charsLeft: e.cfg.OCRMaxChars}
}

type ocrBudget struct {
	enabled   bool
	pagesLeft int
	charsLeft int
}

func (b *ocrBudget) exhausted() bool {
	return b.pagesLeft <= 0 || b.charsLeft <= 0
}

// take consumes one page and up to charsLeft runes of text.
func (b *ocrBudget) take(text string) (string, bool) {
	b.pagesLeft--
	n := utf8.RuneCountInString(text)
	if n <= b.charsLeft {
		b.charsLeft -= n
		return text, false
	}
	runes := []rune(text)
	text = strings.TrimSpace(string(runes[:b.charsLeft]))
	b.charsLeft = 0
	return text, true
}

// pdfPages returns the native text of every page. The parser panics on some
// malformed inputs; those are reported as errors.
func pdfPages(payload []byte) (pages []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = fmt.Errorf("pdf parser: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(payload), int64(len(payload)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	total := reader.NumPage()
	if total <= 0 {
		return nil, errors.New("pdf has no pages")
	}

	pages = make([]string, 0, total)
	for i := 1; i <= total; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, textErr := page.GetPlainText(nil)
		if textErr != nil {
			text = ""
		}
		pages = append(pages, text)
	}
	return pages, nil
}

func checkImage(payload []byte) error {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("decode image: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return errors.New("image has no pixels")
	}
	return nil
}

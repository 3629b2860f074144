package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/filing-assembler/internal/core/domain"
	"github.com/kirillkom/filing-assembler/internal/core/ports"
)

const (
	DefaultMaxFiles     = 25
	DefaultMaxFileBytes = 25 << 20
)

var allowedExtensions = map[string]struct{}{
	".pdf":  {},
	".png":  {},
	".jpg":  {},
	".jpeg": {},
	".tif":  {},
	".tiff": {},
}

type IntakeConfig struct {
	MaxFiles     int
	MaxFileBytes int
	// Concurrency bounds parallel extractions within one batch.
	Concurrency int
}

func (c IntakeConfig) normalize() IntakeConfig {
	if c.MaxFiles <= 0 {
		c.MaxFiles = DefaultMaxFiles
	}
	if c.MaxFileBytes <= 0 {
		c.MaxFileBytes = DefaultMaxFileBytes
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 4
	}
	return c
}

// IntakeObserver receives per-batch outcomes, e.g. for metrics.
type IntakeObserver interface {
	ObserveIntake(results []domain.IntakeResult, duration time.Duration)
}

type IntakeUseCase struct {
	catalog    ports.ProfileCatalog
	store      ports.MatterStore
	extractor  ports.TextExtractor
	classifier ports.DocumentClassifier
	events     ports.IntakeEventPublisher
	observer   IntakeObserver
	cfg        IntakeConfig
	logger     *slog.Logger

	now   func() time.Time
	newID func() string
}

type IntakeOption func(*IntakeUseCase)

// WithIntakeEvents publishes an event after every stored intake.
func WithIntakeEvents(events ports.IntakeEventPublisher) IntakeOption {
	return func(uc *IntakeUseCase) { uc.events = events }
}

func WithIntakeObserver(observer IntakeObserver) IntakeOption {
	return func(uc *IntakeUseCase) { uc.observer = observer }
}

func WithIntakeClock(now func() time.Time) IntakeOption {
	return func(uc *IntakeUseCase) { uc.now = now }
}

func NewIntakeUseCase(
	catalog ports.ProfileCatalog,
	store ports.MatterStore,
	extractor ports.TextExtractor,
	classifier ports.DocumentClassifier,
	cfg IntakeConfig,
	logger *slog.Logger,
	opts ...IntakeOption,
) *IntakeUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	uc := &IntakeUseCase{
		catalog:    catalog,
		store:      store,
		extractor:  extractor,
		classifier: classifier,
		cfg:        cfg.normalize(),
		logger:     logger,
		now:        time.Now,
		newID:      uuid.NewString,
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// Intake classifies a batch and replaces the matter record with it.
// Per-file problems mark that file failed; only request-level problems
// reject the batch.
func (uc *IntakeUseCase) Intake(ctx context.Context, req domain.IntakeRequest) (*domain.IntakeResponse, error) {
	start := time.Now()
	profile, err := uc.validate(req)
	if err != nil {
		return nil, err
	}

	matterID := strings.TrimSpace(req.MatterID)
	if matterID == "" {
		matterID = uc.newID()
	}
	forum := strings.TrimSpace(req.Forum)

	results := make([]domain.IntakeResult, len(req.Files))
	accepted := make([]bool, len(req.Files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(uc.cfg.Concurrency)
	for i, file := range req.Files {
		fileID := strings.TrimSpace(file.FileID)
		if fileID == "" {
			fileID = uc.newID()
		}
		g.Go(func() error {
			res, ok, err := uc.processFile(gctx, fileID, file)
			if err != nil {
				return err
			}
			results[i] = res
			accepted[i] = ok
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("process intake batch: %w", err)
	}

	now := uc.now().UTC()
	matter := &domain.Matter{
		ClientID:             strings.TrimSpace(req.ClientID),
		MatterID:             matterID,
		Forum:                forum,
		CompilationProfileID: profile.ProfileID,
		Results:              results,
		SourceFiles:          make([]domain.SourceFile, 0, len(req.Files)),
		FilingContext:        normalizeFilingContext(req.FilingContext),
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	for i, file := range req.Files {
		if !accepted[i] {
			continue
		}
		matter.SourceFiles = append(matter.SourceFiles, domain.SourceFile{
			FileID:      results[i].FileID,
			Filename:    file.Filename,
			ContentType: file.ContentType,
			Payload:     file.Payload,
		})
	}

	if err := uc.store.Put(ctx, matter); err != nil {
		return nil, fmt.Errorf("store matter: %w", err)
	}

	uc.publish(ctx, matter, now)
	if uc.observer != nil {
		uc.observer.ObserveIntake(results, time.Since(start))
	}
	uc.logger.Info("intake_completed",
		"client_id", matter.ClientID,
		"matter_id", matter.MatterID,
		"profile_id", matter.CompilationProfileID,
		"files", len(results),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return &domain.IntakeResponse{
		ClientID:             matter.ClientID,
		MatterID:             matter.MatterID,
		Forum:                matter.Forum,
		CompilationProfileID: matter.CompilationProfileID,
		Results:              results,
		ReceivedAt:           now,
	}, nil
}

func (uc *IntakeUseCase) validate(req domain.IntakeRequest) (domain.CompilationProfile, error) {
	const op = "intake"
	if strings.TrimSpace(req.ClientID) == "" {
		return domain.CompilationProfile{}, domain.Validationf(op, "client_id is required")
	}
	if len(req.Files) == 0 {
		return domain.CompilationProfile{}, domain.Validationf(op, "at least one file is required")
	}
	if len(req.Files) > uc.cfg.MaxFiles {
		return domain.CompilationProfile{}, domain.Validationf(op, "%d files exceed the limit of %d", len(req.Files), uc.cfg.MaxFiles)
	}

	forum := strings.TrimSpace(req.Forum)
	if forum == "" {
		return domain.CompilationProfile{}, domain.Validationf(op, "forum is required")
	}
	if !uc.catalog.HasForum(forum) {
		return domain.CompilationProfile{}, domain.Validationf(op, "unsupported forum %q", forum)
	}

	var profile domain.CompilationProfile
	if id := strings.TrimSpace(req.CompilationProfileID); id != "" {
		p, err := uc.catalog.Profile(id)
		if err != nil {
			return domain.CompilationProfile{}, domain.WrapError(domain.ErrValidation, op, err)
		}
		if p.Forum != forum {
			return domain.CompilationProfile{}, domain.Validationf(op,
				"compilation_profile_id %q belongs to forum %q, not %q", id, p.Forum, forum)
		}
		profile = p
	} else {
		p, ok := uc.catalog.DefaultProfileForForum(forum)
		if !ok {
			return domain.CompilationProfile{}, domain.Validationf(op, "forum %q has no compilation profile", forum)
		}
		profile = p
	}

	if err := req.FilingContext.Validate(); err != nil {
		return domain.CompilationProfile{}, err
	}

	seen := make(map[string]struct{}, len(req.Files))
	for _, f := range req.Files {
		id := strings.TrimSpace(f.FileID)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			return domain.CompilationProfile{}, domain.Validationf(op, "duplicate file_id %q", id)
		}
		seen[id] = struct{}{}
	}
	return profile, nil
}

// processFile builds the intake result for one upload. The bool reports
// whether the payload is kept as a source file.
func (uc *IntakeUseCase) processFile(ctx context.Context, fileID string, file domain.UploadFile) (domain.IntakeResult, bool, error) {
	sum := sha256.Sum256(file.Payload)
	res := domain.IntakeResult{
		FileID:                   fileID,
		OriginalFilename:         file.Filename,
		NormalizedFilename:       sanitizeFilename(file.Filename),
		ClassificationCandidates: []domain.ClassificationCandidate{},
		Issues:                   []string{},
		PageCharCounts:           []int{},
		FileHash:                 hex.EncodeToString(sum[:]),
		SizeBytes:                len(file.Payload),
	}

	ext := strings.ToLower(filepath.Ext(file.Filename))
	if _, ok := allowedExtensions[ext]; !ok {
		return failed(res, fmt.Sprintf("unsupported file extension %q; allowed: pdf, png, jpg, jpeg, tif, tiff", ext)), false, nil
	}
	if len(file.Payload) == 0 {
		return failed(res, "file is empty"), false, nil
	}
	if len(file.Payload) > uc.cfg.MaxFileBytes {
		return failed(res, fmt.Sprintf("file is %d bytes; the limit is %d", len(file.Payload), uc.cfg.MaxFileBytes)), false, nil
	}

	extraction, err := uc.extractor.Extract(ctx, file.Payload)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return res, false, ctxErr
		}
		if domain.IsKind(err, domain.ErrUnreadablePayload) {
			return failed(res, "unreadable payload: content is not a readable pdf, png, jpeg or tiff"), false, nil
		}
		uc.logger.Warn("intake_extraction_failed", "file_id", fileID, "error", err)
		return failed(res, "text extraction failed"), false, nil
	}

	res.TotalPages = extraction.TotalPages
	res.UsedOCR = extraction.UsedOCR
	res.OCRLimitHit = extraction.OCRLimitHit
	for _, sig := range extraction.PageSignals {
		res.PageCharCounts = append(res.PageCharCounts, sig.ExtractedCharCount)
	}

	classification := uc.classifier.Classify(extraction.ExtractedText)
	res.Classification = classification.DocumentType
	res.ClassificationConfidence = classification.Confidence
	if classification.Candidates != nil {
		res.ClassificationCandidates = classification.Candidates
	}

	res.QualityStatus, res.Issues = assessQuality(extraction, classification)
	return res, true, nil
}

// assessQuality decides whether a readable file can be relied on without a
// human looking at it.
func assessQuality(ex *domain.ExtractionResult, c domain.Classification) (domain.QualityStatus, []string) {
	status := domain.QualityProcessed
	issues := []string{}

	if ex.TotalExtractedCharCount == 0 {
		status = domain.QualityNeedsReview
		if ex.OCRLimitHit {
			issues = append(issues, "no text extracted before the OCR budget was exhausted")
		} else {
			issues = append(issues, "no text could be extracted")
		}
	} else {
		blank := 0
		for _, sig := range ex.PageSignals {
			if sig.ExtractedCharCount == 0 {
				blank++
			}
		}
		if ex.OCRLimitHit {
			issues = append(issues, fmt.Sprintf("OCR budget exhausted; %d page(s) have no text", blank))
		} else if blank > 0 {
			issues = append(issues, fmt.Sprintf("%d of %d page(s) have no text", blank, ex.TotalPages))
		}
	}

	switch {
	case c.DocumentType == "" || c.DocumentType == domain.DocUnclassified:
		status = domain.QualityNeedsReview
		if ex.TotalExtractedCharCount > 0 {
			issues = append(issues, "document type could not be determined")
		}
	case c.Confidence == domain.ConfidenceLow:
		status = domain.QualityNeedsReview
		issues = append(issues, fmt.Sprintf("low confidence classification as %s", c.DocumentType.Label()))
	}
	return status, issues
}

func failed(res domain.IntakeResult, issue string) domain.IntakeResult {
	res.QualityStatus = domain.QualityFailed
	res.Classification = ""
	res.Issues = append(res.Issues, issue)
	return res
}

func (uc *IntakeUseCase) publish(ctx context.Context, matter *domain.Matter, now time.Time) {
	if uc.events == nil {
		return
	}
	event := domain.IntakeEvent{
		ClientID:             matter.ClientID,
		MatterID:             matter.MatterID,
		Forum:                matter.Forum,
		CompilationProfileID: matter.CompilationProfileID,
		FileCount:            len(matter.Results),
		OccurredAt:           now,
	}
	for _, r := range matter.Results {
		switch r.QualityStatus {
		case domain.QualityFailed:
			event.FailedCount++
		case domain.QualityNeedsReview:
			event.NeedsReviewCount++
		}
	}
	if err := uc.events.PublishIntakeCompleted(ctx, event); err != nil {
		uc.logger.Warn("intake_event_publish_failed",
			"client_id", matter.ClientID,
			"matter_id", matter.MatterID,
			"error", err,
		)
	}
}

func normalizeFilingContext(fc *domain.FilingDeadlineContext) *domain.FilingDeadlineContext {
	if fc.IsZero() {
		return nil
	}
	out := *fc
	out.OverrideReason = strings.TrimSpace(out.OverrideReason)
	return &out
}

func sanitizeFilename(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if base == "." || base == "/" {
		base = ""
	}
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" {
		return "document.bin"
	}
	return base
}

package ports

import (
	"context"

	"github.com/kirillkom/filing-assembler/internal/core/domain"
)

// MatterStore persists one record per (client_id, matter_id). Put replaces
// the whole record atomically.
type MatterStore interface {
	Put(ctx context.Context, matter *domain.Matter) error
	Get(ctx context.Context, key domain.MatterKey) (*domain.Matter, error)
}

// TextExtractor converts a raw payload into per-page text.
type TextExtractor interface {
	Extract(ctx context.Context, payload []byte) (*domain.ExtractionResult, error)
}

// PageOCR recognizes text on a rasterized page.
type PageOCR interface {
	Available() bool
	RecognizePDFPage(ctx context.Context, pdf []byte, pageNumber int) (string, error)
	RecognizeImage(ctx context.Context, image []byte) (string, error)
}

// DocumentClassifier scores extracted text against document categories.
type DocumentClassifier interface {
	Classify(text string) domain.Classification
}

// PackageCompiler merges source documents into one verified artifact.
// Implementations return an error instead of an artifact that disagrees
// with the plan.
type PackageCompiler interface {
	Compile(ctx context.Context, plan domain.AssemblyPlan, sources map[string]domain.SourceFile) (*domain.CompiledArtifact, error)
}

// IntakeEventPublisher announces replaced matter records.
type IntakeEventPublisher interface {
	PublishIntakeCompleted(ctx context.Context, event domain.IntakeEvent) error
}

// RecordIndexExporter renders a package index document.
type RecordIndexExporter interface {
	Export(pkg *domain.Package) ([]byte, error)
}

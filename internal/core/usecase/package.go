package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kirillkom/filing-assembler/internal/core/domain"
	"github.com/kirillkom/filing-assembler/internal/core/ports"
	"github.com/kirillkom/filing-assembler/internal/core/readiness"
)

// PackageObserver receives package build outcomes, e.g. for metrics.
type PackageObserver interface {
	ObservePackage(mode domain.OutputMode, ready bool, compileErr error)
}

type PackageUseCase struct {
	catalog  ports.ProfileCatalog
	store    ports.MatterStore
	builder  *readiness.Builder
	compiler ports.PackageCompiler
	exporter ports.RecordIndexExporter
	observer PackageObserver
	logger   *slog.Logger
}

type PackageOption func(*PackageUseCase)

// WithCompiler enables compiled PDF output. Without it every package is
// metadata-only.
func WithCompiler(compiler ports.PackageCompiler) PackageOption {
	return func(uc *PackageUseCase) { uc.compiler = compiler }
}

func WithRecordIndexExporter(exporter ports.RecordIndexExporter) PackageOption {
	return func(uc *PackageUseCase) { uc.exporter = exporter }
}

func WithPackageObserver(observer PackageObserver) PackageOption {
	return func(uc *PackageUseCase) { uc.observer = observer }
}

func NewPackageUseCase(
	catalog ports.ProfileCatalog,
	store ports.MatterStore,
	builder *readiness.Builder,
	logger *slog.Logger,
	opts ...PackageOption,
) *PackageUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	if builder == nil {
		builder = readiness.NewBuilder(nil, nil)
	}
	uc := &PackageUseCase{catalog: catalog, store: store, builder: builder, logger: logger}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

var _ ports.PackageService = (*PackageUseCase)(nil)

func (uc *PackageUseCase) Readiness(ctx context.Context, key domain.MatterKey) (*domain.Readiness, error) {
	matter, profile, err := uc.load(ctx, key)
	if err != nil {
		return nil, err
	}
	r, _ := uc.builder.Evaluate(matter, profile)
	return r, nil
}

// BuildPackage returns the full package of a ready matter. When compiled
// output is enabled but the artifact cannot be produced or verified, the
// package falls back to metadata-only output instead of failing.
func (uc *PackageUseCase) BuildPackage(ctx context.Context, key domain.MatterKey) (*domain.Package, error) {
	matter, profile, err := uc.load(ctx, key)
	if err != nil {
		return nil, err
	}

	pkg := uc.builder.Build(matter, profile)
	if !pkg.IsReady {
		if uc.observer != nil {
			uc.observer.ObservePackage(pkg.CompilationOutputMode, false, nil)
		}
		return nil, domain.WrapError(domain.ErrPolicyBlocked, "build package", blockedReason(&pkg.Readiness))
	}

	var compileErr error
	if uc.compiler != nil && len(pkg.Plan.TableOfContents) > 0 {
		compileErr = uc.compile(ctx, matter, pkg)
	}
	if uc.observer != nil {
		uc.observer.ObservePackage(pkg.CompilationOutputMode, true, compileErr)
	}
	return pkg, nil
}

func (uc *PackageUseCase) compile(ctx context.Context, matter *domain.Matter, pkg *domain.Package) error {
	sources := make(map[string]domain.SourceFile, len(matter.SourceFiles))
	for _, f := range matter.SourceFiles {
		sources[f.FileID] = f
	}

	artifact, err := uc.compiler.Compile(ctx, pkg.Plan, sources)
	if err != nil {
		uc.logger.Warn("package_compile_degraded",
			"client_id", matter.ClientID,
			"matter_id", matter.MatterID,
			"profile_id", pkg.ProfileID,
			"error", err,
		)
		return err
	}
	artifact.Filename = fmt.Sprintf("%s_%s_package.pdf", sanitizeFilename(matter.MatterID), pkg.ProfileID)
	pkg.CompiledArtifact = artifact
	pkg.CompilationOutputMode = domain.OutputCompiledPDF
	return nil
}

func (uc *PackageUseCase) CompiledArtifact(ctx context.Context, key domain.MatterKey) (*domain.CompiledArtifact, error) {
	pkg, err := uc.BuildPackage(ctx, key)
	if err != nil {
		return nil, err
	}
	if pkg.CompilationOutputMode != domain.OutputCompiledPDF || pkg.CompiledArtifact == nil {
		return nil, domain.WrapError(domain.ErrArtifactUnavailable, "compiled artifact",
			fmt.Errorf("package for %s is %s", key, pkg.CompilationOutputMode))
	}
	return pkg.CompiledArtifact, nil
}

func (uc *PackageUseCase) RecordIndex(ctx context.Context, key domain.MatterKey) ([]byte, error) {
	if uc.exporter == nil {
		return nil, domain.WrapError(domain.ErrArtifactUnavailable, "record index", fmt.Errorf("no exporter configured"))
	}
	pkg, err := uc.BuildPackage(ctx, key)
	if err != nil {
		return nil, err
	}
	data, err := uc.exporter.Export(pkg)
	if err != nil {
		return nil, fmt.Errorf("export record index: %w", err)
	}
	return data, nil
}

func (uc *PackageUseCase) load(ctx context.Context, key domain.MatterKey) (*domain.Matter, domain.CompilationProfile, error) {
	if err := key.Validate(); err != nil {
		return nil, domain.CompilationProfile{}, err
	}
	matter, err := uc.store.Get(ctx, key)
	if err != nil {
		return nil, domain.CompilationProfile{}, fmt.Errorf("load matter: %w", err)
	}
	profile, err := uc.catalog.Profile(matter.CompilationProfileID)
	if err != nil {
		return nil, domain.CompilationProfile{}, fmt.Errorf("resolve profile for %s: %w", key, err)
	}
	return matter, profile, nil
}

func blockedReason(r *domain.Readiness) error {
	blockingViolations := 0
	for _, v := range r.RuleViolations {
		if v.Severity == domain.SeverityBlocking {
			blockingViolations++
		}
	}
	return fmt.Errorf("matter %s/%s is not ready: %d missing required item(s), %d blocking issue(s), %d blocking violation(s)",
		r.ClientID, r.MatterID, len(r.MissingRequiredItems), len(r.BlockingIssues), blockingViolations)
}

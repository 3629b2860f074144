package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kirillkom/filing-assembler/internal/core/deadline"
	"github.com/kirillkom/filing-assembler/internal/core/domain"
	"github.com/kirillkom/filing-assembler/internal/core/readiness"
)

type compilerFake struct {
	err     error
	sources map[string]domain.SourceFile
	plan    domain.AssemblyPlan
}

func (f *compilerFake) Compile(_ context.Context, plan domain.AssemblyPlan, sources map[string]domain.SourceFile) (*domain.CompiledArtifact, error) {
	f.plan = plan
	f.sources = sources
	if f.err != nil {
		return nil, f.err
	}
	return &domain.CompiledArtifact{
		Filename:    plan.ProfileID + "_package.pdf",
		ContentType: "application/pdf",
		PageCount:   plan.TotalPages,
		Bytes:       []byte("%PDF-1.7 merged"),
	}, nil
}

type exporterFake struct {
	got *domain.Package
}

func (f *exporterFake) Export(pkg *domain.Package) ([]byte, error) {
	f.got = pkg
	return []byte("xlsx"), nil
}

type packageObserverFake struct {
	modes []domain.OutputMode
	ready []bool
}

func (f *packageObserverFake) ObservePackage(mode domain.OutputMode, ready bool, _ error) {
	f.modes = append(f.modes, mode)
	f.ready = append(f.ready, ready)
}

var testClock = func() time.Time { return time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC) }

func storedResult(id, name string, t domain.DocumentType, pages int) domain.IntakeResult {
	return domain.IntakeResult{
		FileID:                   id,
		OriginalFilename:         name,
		Classification:           t,
		ClassificationConfidence: domain.ConfidenceHigh,
		QualityStatus:            domain.QualityProcessed,
		TotalPages:               pages,
	}
}

func readyMatter() *domain.Matter {
	m := &domain.Matter{
		ClientID:             "c1",
		MatterID:             "m1",
		Forum:                "federal_court",
		CompilationProfileID: "fc_jr_application_record",
		Results: []domain.IntakeResult{
			storedResult("memo", "memo.pdf", domain.DocMemorandum, 3),
			storedResult("noa", "notice.pdf", domain.DocNoticeOfApplication, 2),
			storedResult("dec", "decision.pdf", domain.DocDecisionUnderReview, 4),
			storedResult("aff", "affidavit.pdf", domain.DocAffidavit, 1),
		},
		FilingContext: &domain.FilingDeadlineContext{DecisionDate: "2026-02-25"},
	}
	for _, r := range m.Results {
		m.SourceFiles = append(m.SourceFiles, domain.SourceFile{FileID: r.FileID, Filename: r.OriginalFilename, Payload: []byte("%PDF-1.4")})
	}
	return m
}

func newTestPackageService(t *testing.T, store *storeFake, opts ...PackageOption) *PackageUseCase {
	t.Helper()
	builder := readiness.NewBuilder(deadline.New(testClock, 0), testClock)
	return NewPackageUseCase(defaultCatalog(t), store, builder, nil, opts...)
}

func seed(t *testing.T, store *storeFake, m *domain.Matter) domain.MatterKey {
	t.Helper()
	if err := store.Put(context.Background(), m); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	return domain.MatterKey{ClientID: m.ClientID, MatterID: m.MatterID}
}

func TestReadinessUnknownMatter(t *testing.T) {
	uc := newTestPackageService(t, newStoreFake())
	_, err := uc.Readiness(context.Background(), domain.MatterKey{ClientID: "c1", MatterID: "missing"})
	if !domain.IsKind(err, domain.ErrMatterNotFound) {
		t.Fatalf("expected ErrMatterNotFound, got %v", err)
	}
}

func TestReadinessIsScopedByClient(t *testing.T) {
	store := newStoreFake()
	seed(t, store, readyMatter())
	uc := newTestPackageService(t, store)

	_, err := uc.Readiness(context.Background(), domain.MatterKey{ClientID: "other", MatterID: "m1"})
	if !domain.IsKind(err, domain.ErrMatterNotFound) {
		t.Fatalf("expected ErrMatterNotFound for another client, got %v", err)
	}
}

func TestBuildPackageBlockedWhenNotReady(t *testing.T) {
	store := newStoreFake()
	m := readyMatter()
	m.Results = m.Results[1:2]
	key := seed(t, store, m)
	observer := &packageObserverFake{}
	uc := newTestPackageService(t, store, WithPackageObserver(observer))

	r, err := uc.Readiness(context.Background(), key)
	if err != nil {
		t.Fatalf("Readiness() error = %v", err)
	}
	want := []domain.DocumentType{domain.DocDecisionUnderReview, domain.DocAffidavit, domain.DocMemorandum}
	if len(r.MissingRequiredItems) != len(want) {
		t.Fatalf("expected missing %v, got %v", want, r.MissingRequiredItems)
	}
	for i := range want {
		if r.MissingRequiredItems[i] != want[i] {
			t.Fatalf("expected missing %v, got %v", want, r.MissingRequiredItems)
		}
	}

	_, err = uc.BuildPackage(context.Background(), key)
	if !domain.IsKind(err, domain.ErrPolicyBlocked) {
		t.Fatalf("expected ErrPolicyBlocked, got %v", err)
	}
	if len(observer.ready) != 1 || observer.ready[0] {
		t.Fatalf("expected one not-ready observation, got %+v", observer)
	}
}

func TestBuildPackageMetadataOnlyWithoutCompiler(t *testing.T) {
	store := newStoreFake()
	key := seed(t, store, readyMatter())
	uc := newTestPackageService(t, store)

	pkg, err := uc.BuildPackage(context.Background(), key)
	if err != nil {
		t.Fatalf("BuildPackage() error = %v", err)
	}
	if !pkg.IsReady || pkg.CompilationOutputMode != domain.OutputMetadataOnly || pkg.CompiledArtifact != nil {
		t.Fatalf("unexpected package mode %s ready=%v", pkg.CompilationOutputMode, pkg.IsReady)
	}
	if pkg.Plan.TotalPages != 10 || pkg.Plan.TableOfContents[0].DocumentID != "noa" {
		t.Fatalf("unexpected plan %+v", pkg.Plan)
	}
	if pkg.Deadline == nil || pkg.Deadline.DeadlineDate != "2026-03-12" {
		t.Fatalf("unexpected deadline %+v", pkg.Deadline)
	}
}

func TestBuildPackageCompiled(t *testing.T) {
	store := newStoreFake()
	key := seed(t, store, readyMatter())
	compiler := &compilerFake{}
	observer := &packageObserverFake{}
	uc := newTestPackageService(t, store, WithCompiler(compiler), WithPackageObserver(observer))

	pkg, err := uc.BuildPackage(context.Background(), key)
	if err != nil {
		t.Fatalf("BuildPackage() error = %v", err)
	}
	if pkg.CompilationOutputMode != domain.OutputCompiledPDF || pkg.CompiledArtifact == nil {
		t.Fatalf("expected compiled output, got %s", pkg.CompilationOutputMode)
	}
	if pkg.CompiledArtifact.Filename != "m1_fc_jr_application_record_package.pdf" {
		t.Fatalf("unexpected artifact filename %q", pkg.CompiledArtifact.Filename)
	}
	if len(compiler.sources) != 4 || compiler.plan.TotalPages != 10 {
		t.Fatalf("compiler got %d sources and %d pages", len(compiler.sources), compiler.plan.TotalPages)
	}
	if len(observer.modes) != 1 || observer.modes[0] != domain.OutputCompiledPDF {
		t.Fatalf("unexpected observations %+v", observer.modes)
	}
}

func TestBuildPackageDegradesWhenCompileFails(t *testing.T) {
	store := newStoreFake()
	key := seed(t, store, readyMatter())
	uc := newTestPackageService(t, store, WithCompiler(&compilerFake{err: errors.New("verify: artifact has 9 pages, page map has 10")}))

	pkg, err := uc.BuildPackage(context.Background(), key)
	if err != nil {
		t.Fatalf("BuildPackage() error = %v", err)
	}
	if pkg.CompilationOutputMode != domain.OutputMetadataOnly || pkg.CompiledArtifact != nil {
		t.Fatalf("expected metadata-only fallback, got %s", pkg.CompilationOutputMode)
	}

	_, err = uc.CompiledArtifact(context.Background(), key)
	if !domain.IsKind(err, domain.ErrArtifactUnavailable) {
		t.Fatalf("expected ErrArtifactUnavailable, got %v", err)
	}
}

func TestCompiledArtifactReturnsBytes(t *testing.T) {
	store := newStoreFake()
	key := seed(t, store, readyMatter())
	uc := newTestPackageService(t, store, WithCompiler(&compilerFake{}))

	artifact, err := uc.CompiledArtifact(context.Background(), key)
	if err != nil {
		t.Fatalf("CompiledArtifact() error = %v", err)
	}
	if string(artifact.Bytes) != "%PDF-1.7 merged" || artifact.PageCount != 10 {
		t.Fatalf("unexpected artifact %+v", artifact)
	}
}

func TestRecordIndex(t *testing.T) {
	store := newStoreFake()
	key := seed(t, store, readyMatter())

	if _, err := newTestPackageService(t, store).RecordIndex(context.Background(), key); !domain.IsKind(err, domain.ErrArtifactUnavailable) {
		t.Fatalf("expected ErrArtifactUnavailable without exporter, got %v", err)
	}

	exporter := &exporterFake{}
	uc := newTestPackageService(t, store, WithRecordIndexExporter(exporter))
	data, err := uc.RecordIndex(context.Background(), key)
	if err != nil {
		t.Fatalf("RecordIndex() error = %v", err)
	}
	if string(data) != "xlsx" || exporter.got == nil || len(exporter.got.RecordSections) == 0 {
		t.Fatalf("unexpected export call %+v", exporter.got)
	}
}

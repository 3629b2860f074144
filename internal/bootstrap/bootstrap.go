package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	natsgo "github.com/nats-io/nats.go"

	"github.com/kirillkom/filing-assembler/internal/config"
	"github.com/kirillkom/filing-assembler/internal/core/catalog"
	"github.com/kirillkom/filing-assembler/internal/core/classifier"
	"github.com/kirillkom/filing-assembler/internal/core/deadline"
	"github.com/kirillkom/filing-assembler/internal/core/ports"
	"github.com/kirillkom/filing-assembler/internal/core/readiness"
	"github.com/kirillkom/filing-assembler/internal/core/usecase"
	"github.com/kirillkom/filing-assembler/internal/infrastructure/export/xlsx"
	"github.com/kirillkom/filing-assembler/internal/infrastructure/extractor"
	"github.com/kirillkom/filing-assembler/internal/infrastructure/kv/natskv"
	"github.com/kirillkom/filing-assembler/internal/infrastructure/ocr/tesseract"
	"github.com/kirillkom/filing-assembler/internal/infrastructure/pdfcompile"
	"github.com/kirillkom/filing-assembler/internal/infrastructure/queue/nats"
	"github.com/kirillkom/filing-assembler/internal/infrastructure/repository/memory"
	"github.com/kirillkom/filing-assembler/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/filing-assembler/internal/infrastructure/resilience"
	"github.com/kirillkom/filing-assembler/internal/observability/metrics"
)

const purgeInterval = 15 * time.Minute

type App struct {
	Config  config.Config
	Logger  *slog.Logger
	Catalog ports.ProfileCatalog
	Store   ports.MatterStore

	IntakeUC  ports.MatterIntaker
	PackageUC ports.PackageService

	HTTPMetrics *metrics.HTTPServerMetrics

	purger  *postgres.MatterRepository
	closeFn func()
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	app := &App{Config: cfg, Logger: logger}

	cat, err := catalog.LoadFile(cfg.CatalogPath)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	app.Catalog = cat
	logger.Info("catalog_loaded",
		"version", cat.Version(),
		"jurisdiction", cat.Jurisdiction(),
		"profiles", len(cat.Profiles()),
	)

	httpMetrics := metrics.NewHTTPServerMetrics("filing-api")
	pipelineMetrics := metrics.NewPipelineMetrics("filing-api", httpMetrics.Registerer())
	app.HTTPMetrics = httpMetrics

	executor := resilience.NewExecutor(resilienceConfig(cfg), logger)

	var (
		db      *sql.DB
		conn    *natsgo.Conn
		closers []func()
	)
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	needsNATS := cfg.MatterStoreBackend == config.StoreNATS || cfg.EventsEnabled
	if needsNATS {
		conn, err = nats.Connect(cfg.NATSURL, nats.ConnOptions{
			Name:           "filing-api",
			ConnectTimeout: time.Duration(cfg.NATSConnectTimeoutMS) * time.Millisecond,
			Logger:         logger,
		})
		if err != nil {
			return nil, fmt.Errorf("connect nats: %w", err)
		}
		closers = append(closers, func() { _ = conn.Drain() })
	}

	switch cfg.MatterStoreBackend {
	case config.StoreMemory, "":
		app.Store = memory.NewMatterStore()
	case config.StorePostgres:
		db, err = postgres.OpenDB(cfg.PostgresDSN)
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		closers = append(closers, func() { _ = db.Close() })
		repo := postgres.NewMatterRepository(db, cfg.MatterTTL())
		if err := repo.EnsureSchema(ctx); err != nil {
			closeAll()
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		app.Store = repo
		app.purger = repo
	case config.StoreNATS:
		store, err := natskv.New(ctx, conn, natskv.Config{
			RecordBucket:  cfg.NATSRecordBucket,
			PayloadBucket: cfg.NATSPayloadBucket,
			TTL:           cfg.MatterTTL(),
		}, executor)
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("init nats matter store: %w", err)
		}
		app.Store = store
	default:
		closeAll()
		return nil, fmt.Errorf("unsupported MATTER_STORE_BACKEND %q", cfg.MatterStoreBackend)
	}
	logger.Info("matter_store_ready", "backend", cfg.MatterStoreBackend, "ttl", cfg.MatterTTL().String())

	var ocr ports.PageOCR
	if cfg.OCREnabled {
		engine := tesseract.New(tesseract.Config{
			Tesseract:   cfg.TesseractPath,
			Pdftoppm:    cfg.PdftoppmPath,
			Lang:        cfg.OCRLang,
			TessdataDir: cfg.OCRTessdataDir,
			DPI:         cfg.OCRDPI,
		}, logger)
		if engine.Available() {
			ocr = engine
		} else {
			logger.Warn("ocr_unavailable", "tesseract", cfg.TesseractPath, "pdftoppm", cfg.PdftoppmPath)
		}
	}
	textExtractor := extractor.New(ocr, extractor.Config{
		OCRMaxPages: cfg.OCRMaxPages,
		OCRMaxChars: cfg.OCRMaxChars,
	}, logger)

	docClassifier := classifier.New(classifier.DefaultRules, classifier.Thresholds{
		HighScore:   cfg.ClassifyHighScore,
		HighGap:     cfg.ClassifyHighGap,
		MediumScore: cfg.ClassifyMediumScore,
		MediumGap:   cfg.ClassifyMediumGap,
	})

	intakeOpts := []usecase.IntakeOption{usecase.WithIntakeObserver(pipelineMetrics)}
	if cfg.EventsEnabled {
		intakeOpts = append(intakeOpts, usecase.WithIntakeEvents(nats.NewPublisher(conn, cfg.NATSSubject, executor)))
	}
	app.IntakeUC = usecase.NewIntakeUseCase(cat, app.Store, textExtractor, docClassifier, usecase.IntakeConfig{
		MaxFiles:     cfg.IntakeMaxFiles,
		MaxFileBytes: cfg.IntakeMaxFileBytes,
		Concurrency:  cfg.IntakeConcurrency,
	}, logger, intakeOpts...)

	builder := readiness.NewBuilder(deadline.New(time.Now, cfg.DeadlineApproachingDays), time.Now)
	packageOpts := []usecase.PackageOption{
		usecase.WithRecordIndexExporter(xlsx.NewExporter(logger)),
		usecase.WithPackageObserver(pipelineMetrics),
	}
	if cfg.CompiledPDFEnabled {
		packageOpts = append(packageOpts, usecase.WithCompiler(pdfcompile.New(pdfcompile.Options{
			StampPages: cfg.CompiledPDFStampPages,
		}, logger)))
	}
	app.PackageUC = usecase.NewPackageUseCase(cat, app.Store, builder, logger, packageOpts...)

	app.closeFn = closeAll
	return app, nil
}

// RunMaintenance purges expired matters until ctx ends. Only the postgres
// backend needs it; the KV buckets expire entries on their own.
func (a *App) RunMaintenance(ctx context.Context) {
	if a.purger == nil {
		return
	}
	ticker := time.NewTicker(purgeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := a.purger.PurgeExpired(ctx)
			if err != nil {
				a.Logger.Warn("matter_purge_failed", "error", err)
				continue
			}
			if n > 0 {
				a.Logger.Info("matter_purge_completed", "deleted", n)
			}
		}
	}
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

func resilienceConfig(cfg config.Config) resilience.Config {
	return resilience.Config{
		RetryMaxAttempts:        cfg.ResilienceRetryMaxAttempts,
		RetryInitialBackoff:     time.Duration(cfg.ResilienceRetryInitialBackoffMS) * time.Millisecond,
		RetryMaxBackoff:         time.Duration(cfg.ResilienceRetryMaxBackoffMS) * time.Millisecond,
		RetryMultiplier:         cfg.ResilienceRetryMultiplier,
		Families: map[string]resilience.FamilyPolicy{
			resilience.FamilyMatterStore: {RetryMaxAttempts: cfg.ResilienceStoreRetryMaxAttempts},
			resilience.FamilyEvents:      {RetryMaxAttempts: cfg.ResilienceEventsRetryMaxAttempts},
		},
		BreakerEnabled:          cfg.ResilienceBreakerEnabled,
		BreakerMinRequests:      uint32(max(0, cfg.ResilienceBreakerMinRequests)),
		BreakerFailureRatio:     cfg.ResilienceBreakerFailureRatio,
		BreakerOpenTimeout:      time.Duration(cfg.ResilienceBreakerOpenTimeoutMS) * time.Millisecond,
		BreakerHalfOpenMaxCalls: uint32(max(0, cfg.ResilienceBreakerHalfOpenMaxCalls)),
	}
}

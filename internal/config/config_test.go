package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("MATTER_STORE_BACKEND", "")
	t.Setenv("INTAKE_MAX_FILES", "")
	t.Setenv("CLASSIFY_HIGH_SCORE", "")
	t.Setenv("COMPILED_PDF_STAMP_PAGES", "")
	t.Setenv("EVENTS_ENABLED", "")
	t.Setenv("DEADLINE_APPROACHING_DAYS", "")

	cfg := Load()
	if cfg.MatterStoreBackend != StoreMemory {
		t.Fatalf("expected default backend memory, got %q", cfg.MatterStoreBackend)
	}
	if cfg.IntakeMaxFiles != 25 {
		t.Fatalf("expected default max files 25, got %d", cfg.IntakeMaxFiles)
	}
	if cfg.ClassifyHighScore != 0.82 {
		t.Fatalf("expected default high score 0.82, got %v", cfg.ClassifyHighScore)
	}
	if !cfg.CompiledPDFStampPages {
		t.Fatalf("expected page stamping on by default")
	}
	if cfg.EventsEnabled {
		t.Fatalf("expected events disabled by default")
	}
	if cfg.DeadlineApproachingDays != 3 {
		t.Fatalf("expected default approaching window 3 days, got %d", cfg.DeadlineApproachingDays)
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	t.Setenv("MATTER_STORE_BACKEND", "NATS")
	t.Setenv("INTAKE_MAX_FILES", "5")
	t.Setenv("CLASSIFY_MEDIUM_GAP", "0.12")
	t.Setenv("COMPILED_PDF_ENABLED", "false")
	t.Setenv("API_RATE_LIMIT_RPS", "2.5")
	t.Setenv("MATTER_TTL_HOURS", "6")

	cfg := Load()
	if cfg.MatterStoreBackend != StoreNATS {
		t.Fatalf("expected backend nats, got %q", cfg.MatterStoreBackend)
	}
	if cfg.IntakeMaxFiles != 5 {
		t.Fatalf("expected max files 5, got %d", cfg.IntakeMaxFiles)
	}
	if cfg.ClassifyMediumGap != 0.12 {
		t.Fatalf("expected medium gap 0.12, got %v", cfg.ClassifyMediumGap)
	}
	if cfg.CompiledPDFEnabled {
		t.Fatalf("expected compiled pdf disabled")
	}
	if cfg.APIRateLimitRPS != 2.5 {
		t.Fatalf("expected rate limit 2.5, got %v", cfg.APIRateLimitRPS)
	}
	if cfg.MatterTTL() != 6*time.Hour {
		t.Fatalf("expected ttl 6h, got %v", cfg.MatterTTL())
	}
}

func TestLoadFallsBackOnMalformedValues(t *testing.T) {
	t.Setenv("INTAKE_CONCURRENCY", "four")
	t.Setenv("CLASSIFY_HIGH_GAP", "wide")
	t.Setenv("OCR_ENABLED", "maybe")
	t.Setenv("MATTER_TTL_HOURS", "0")

	cfg := Load()
	if cfg.IntakeConcurrency != 4 {
		t.Fatalf("expected fallback concurrency 4, got %d", cfg.IntakeConcurrency)
	}
	if cfg.ClassifyHighGap != 0.18 {
		t.Fatalf("expected fallback high gap 0.18, got %v", cfg.ClassifyHighGap)
	}
	if !cfg.OCREnabled {
		t.Fatalf("expected fallback OCR enabled")
	}
	if cfg.MatterTTL() != 0 {
		t.Fatalf("expected no ttl, got %v", cfg.MatterTTL())
	}
}

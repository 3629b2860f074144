package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kirillkom/filing-assembler/internal/core/domain"
)

// PipelineMetrics observes intake batches and package builds.
type PipelineMetrics struct {
	service string

	intakeFiles     *prometheus.CounterVec
	intakeDuration  *prometheus.HistogramVec
	ocrFiles        *prometheus.CounterVec
	ocrLimitHits    *prometheus.CounterVec
	packagesTotal   *prometheus.CounterVec
	compileFailures *prometheus.CounterVec
}

func NewPipelineMetrics(service string, reg prometheus.Registerer) *PipelineMetrics {
	m := &PipelineMetrics{service: service}
	m.intakeFiles = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "intake",
			Name:      "files_total",
			Help:      "Intake files by quality status and classification.",
		},
		[]string{"service", "quality_status", "classification"},
	)
	m.intakeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "intake",
			Name:      "batch_duration_seconds",
			Help:      "Intake batch duration in seconds.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"service"},
	)
	m.ocrFiles = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "intake",
			Name:      "ocr_files_total",
			Help:      "Intake files whose text came at least partly from OCR.",
		},
		[]string{"service"},
	)
	m.ocrLimitHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "intake",
			Name:      "ocr_limit_hits_total",
			Help:      "Intake files that exhausted the OCR budget.",
		},
		[]string{"service"},
	)
	m.packagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "package",
			Name:      "builds_total",
			Help:      "Package build requests by readiness and output mode.",
		},
		[]string{"service", "ready", "output_mode"},
	)
	m.compileFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "package",
			Name:      "compile_degraded_total",
			Help:      "Compiled PDF attempts that fell back to metadata-only output.",
		},
		[]string{"service"},
	)
	reg.MustRegister(m.intakeFiles, m.intakeDuration, m.ocrFiles, m.ocrLimitHits, m.packagesTotal, m.compileFailures)
	return m
}

func (m *PipelineMetrics) ObserveIntake(results []domain.IntakeResult, duration time.Duration) {
	m.intakeDuration.WithLabelValues(m.service).Observe(duration.Seconds())
	for _, r := range results {
		classification := string(r.Classification)
		if classification == "" {
			classification = "none"
		}
		m.intakeFiles.WithLabelValues(m.service, string(r.QualityStatus), classification).Inc()
		if r.UsedOCR {
			m.ocrFiles.WithLabelValues(m.service).Inc()
		}
		if r.OCRLimitHit {
			m.ocrLimitHits.WithLabelValues(m.service).Inc()
		}
	}
}

func (m *PipelineMetrics) ObservePackage(mode domain.OutputMode, ready bool, compileErr error) {
	readyLabel := "false"
	if ready {
		readyLabel = "true"
	}
	m.packagesTotal.WithLabelValues(m.service, readyLabel, string(mode)).Inc()
	if compileErr != nil {
		m.compileFailures.WithLabelValues(m.service).Inc()
	}
}

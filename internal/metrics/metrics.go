// Package metrics provides Prometheus metrics for pagewise.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors for the service.
type Metrics struct {
	// Backend calls
	LLMRequestsTotal   *prometheus.CounterVec
	LLMRequestDuration *prometheus.HistogramVec

	// Normalizer
	NormalizeAttemptsTotal *prometheus.CounterVec
	NormalizeFallbackTotal prometheus.Counter

	// Ingestion
	IngestJobsTotal  *prometheus.CounterVec
	IngestPagesTotal prometheus.Counter

	// Session
	AnswersTotal *prometheus.CounterVec
	NotesStored  prometheus.Gauge

	StartTime time.Time
}

// New creates all collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	m := &Metrics{StartTime: time.Now()}

	m.LLMRequestsTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pagewise_llm_requests_total",
			Help: "Total number of LLM backend requests",
		},
		[]string{"model", "status"},
	)
	m.LLMRequestDuration = f.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pagewise_llm_request_duration_seconds",
			Help:    "Duration of LLM backend requests in seconds",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 80},
		},
		[]string{"model"},
	)

	m.NormalizeAttemptsTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pagewise_normalize_attempts_total",
			Help: "Normalization attempts by result (ok, rate_limited, failed)",
		},
		[]string{"result"},
	)
	m.NormalizeFallbackTotal = f.NewCounter(
		prometheus.CounterOpts{
			Name: "pagewise_normalize_fallback_total",
			Help: "Pages that kept their raw text after every normalization attempt failed",
		},
	)

	m.IngestJobsTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pagewise_ingest_jobs_total",
			Help: "Finished ingestion jobs by status",
		},
		[]string{"status"},
	)
	m.IngestPagesTotal = f.NewCounter(
		prometheus.CounterOpts{
			Name: "pagewise_ingest_pages_total",
			Help: "Pages ingested",
		},
	)

	m.AnswersTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pagewise_answers_total",
			Help: "Answers by result kind",
		},
		[]string{"kind"},
	)
	m.NotesStored = f.NewGauge(
		prometheus.GaugeOpts{
			Name: "pagewise_notes_stored",
			Help: "Notes currently held by the session",
		},
	)

	return m
}

// ObserveLLM records one backend call.
func (m *Metrics) ObserveLLM(model string, d time.Duration, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.LLMRequestsTotal.WithLabelValues(model, status).Inc()
	m.LLMRequestDuration.WithLabelValues(model).Observe(d.Seconds())
}

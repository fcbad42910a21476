// Package metrics provides Prometheus metrics for the ingestion pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "newsum"

// Metrics owns its registry so tests and multiple instances never collide.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	Registry *prometheus.Registry

	runsTotal         *prometheus.CounterVec
	runDuration       *prometheus.HistogramVec
	articlesTotal     *prometheus.CounterVec
	persistedTotal    *prometheus.CounterVec
	headlineErrors    *prometheus.CounterVec
	summaryDuration   prometheus.Histogram
	lastSuccessfulRun *prometheus.GaugeVec
}

// New registers every collector on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		runsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_runs_total",
			Help:      "Ingestion runs by job and outcome",
		}, []string{"job", "outcome"}),
		runDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ingest_run_duration_seconds",
			Help:      "Duration of ingestion runs in seconds",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
		}, []string{"job"}),
		articlesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "articles_processed_total",
			Help:      "Articles that went through fetch/extract/summarize, by summary result",
		}, []string{"source", "summary"}),
		persistedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "articles_persisted_total",
			Help:      "Persist outcomes per article",
		}, []string{"result"}),
		headlineErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "headline_fetch_errors_total",
			Help:      "Failed headline batch fetches",
		}, []string{"source"}),
		summaryDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "summary_duration_seconds",
			Help:      "Latency of summary generation calls",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 40, 80, 120},
		}),
		lastSuccessfulRun: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ingest_last_success_timestamp_seconds",
			Help:      "Unix time of the last run that finished without a panic",
		}, []string{"job"}),
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.HandlerFor(prometheus.NewRegistry(), promhttp.HandlerOpts{})
	}
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

// RecordRun records one finished run.
func (m *Metrics) RecordRun(job, outcome string, started time.Time) {
	if m == nil {
		return
	}
	m.runsTotal.WithLabelValues(job, outcome).Inc()
	m.runDuration.WithLabelValues(job).Observe(time.Since(started).Seconds())
	if outcome != OutcomePanic {
		m.lastSuccessfulRun.WithLabelValues(job).SetToCurrentTime()
	}
}

// RecordArticle records one processed article.
func (m *Metrics) RecordArticle(source string, summarized bool) {
	if m == nil {
		return
	}
	label := "absent"
	if summarized {
		label = "generated"
	}
	m.articlesTotal.WithLabelValues(source, label).Inc()
}

// RecordPersist records the counts of one persist call.
func (m *Metrics) RecordPersist(added, skipped int) {
	if m == nil {
		return
	}
	m.persistedTotal.WithLabelValues("added").Add(float64(added))
	m.persistedTotal.WithLabelValues("skipped").Add(float64(skipped))
}

// RecordHeadlineError records a failed listing fetch.
func (m *Metrics) RecordHeadlineError(source string) {
	if m == nil {
		return
	}
	m.headlineErrors.WithLabelValues(source).Inc()
}

// ObserveSummary records the latency of one generation call.
func (m *Metrics) ObserveSummary(d time.Duration) {
	if m == nil {
		return
	}
	m.summaryDuration.Observe(d.Seconds())
}

// Run outcomes.
const (
	OutcomeCompleted = "completed"
	OutcomeEmpty     = "empty"
	OutcomeSkipped   = "skipped_running"
	OutcomeMisfire   = "misfire_dropped"
	OutcomePanic     = "panic"
)

// Package metrics holds the Prometheus instruments of the metrics pipeline.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the pipeline.
type Metrics struct {
	PriceSourceRequests *prometheus.CounterVec   // labels: endpoint, status
	PriceSourceDuration *prometheus.HistogramVec // labels: endpoint
	DailyRecordsWritten prometheus.Counter
	BatchCommits        *prometheus.CounterVec // labels: result
	MonthlyAggregations *prometheus.CounterVec // labels: outcome
	ScheduledRuns       *prometheus.CounterVec // labels: job, result

	gatherer prometheus.Gatherer
}

// New creates the metrics and registers them on reg.
// Pass prometheus.NewRegistry() in tests to keep registrations isolated.
func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		PriceSourceRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ethmetrics_price_source_requests_total",
			Help: "Requests sent to the price source",
		}, []string{"endpoint", "status"}),
		PriceSourceDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ethmetrics_price_source_duration_seconds",
			Help:    "Price source request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),
		DailyRecordsWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ethmetrics_daily_records_written_total",
			Help: "Daily metrics records upserted",
		}),
		BatchCommits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ethmetrics_batch_commits_total",
			Help: "Backfill batch commits",
		}, []string{"result"}),
		MonthlyAggregations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ethmetrics_monthly_aggregations_total",
			Help: "Monthly aggregations by outcome (written, no_data, failed)",
		}, []string{"outcome"}),
		ScheduledRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ethmetrics_scheduled_runs_total",
			Help: "Scheduled job runs by result",
		}, []string{"job", "result"}),
		gatherer: reg,
	}

	reg.MustRegister(
		m.PriceSourceRequests,
		m.PriceSourceDuration,
		m.DailyRecordsWritten,
		m.BatchCommits,
		m.MonthlyAggregations,
		m.ScheduledRuns,
	)

	return m
}

// Handler serves the registry this Metrics was registered on.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// ObserveRequest records one price source call.
func (m *Metrics) ObserveRequest(endpoint, status string, took time.Duration) {
	if m == nil {
		return
	}
	m.PriceSourceRequests.WithLabelValues(endpoint, status).Inc()
	m.PriceSourceDuration.WithLabelValues(endpoint).Observe(took.Seconds())
}

// RecordsWritten adds n upserted daily records.
func (m *Metrics) RecordsWritten(n int) {
	if m == nil {
		return
	}
	m.DailyRecordsWritten.Add(float64(n))
}

// Commit records one batch commit result ("ok" or "error").
func (m *Metrics) Commit(result string) {
	if m == nil {
		return
	}
	m.BatchCommits.WithLabelValues(result).Inc()
}

// Monthly records one monthly aggregation outcome.
func (m *Metrics) Monthly(outcome string) {
	if m == nil {
		return
	}
	m.MonthlyAggregations.WithLabelValues(outcome).Inc()
}

// ScheduledRun records one scheduled job result.
func (m *Metrics) ScheduledRun(job, result string) {
	if m == nil {
		return
	}
	m.ScheduledRuns.WithLabelValues(job, result).Inc()
}

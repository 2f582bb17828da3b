package infra

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics holds the reconciliation counters exported on /metrics.
type Metrics struct {
	Registry *prometheus.Registry

	WebhooksReceived *prometheus.CounterVec
	PollChecked      prometheus.Counter
	PollUpdates      prometheus.Counter
	PollErrors       prometheus.Counter
	JobTransitions   *prometheus.CounterVec
	JobsArchived     prometheus.Counter
}

// NewMetrics builds and registers all collectors on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		WebhooksReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rendersync",
			Name:      "webhooks_received_total",
			Help:      "Inbound provider webhook deliveries by outcome.",
		}, []string{"outcome"}),
		PollChecked: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rendersync",
			Name:      "poll_jobs_checked_total",
			Help:      "Jobs examined by the scheduled poll loop.",
		}),
		PollUpdates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rendersync",
			Name:      "poll_jobs_updated_total",
			Help:      "Jobs whose state changed after a poll.",
		}),
		PollErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rendersync",
			Name:      "poll_job_errors_total",
			Help:      "Per-job adapter failures skipped by the poll loop.",
		}),
		JobTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rendersync",
			Name:      "job_transitions_total",
			Help:      "Job status transitions applied by reconciliation.",
		}, []string{"status"}),
		JobsArchived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rendersync",
			Name:      "jobs_archived_total",
			Help:      "Completed jobs whose output was copied to archive storage.",
		}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		m.WebhooksReceived,
		m.PollChecked,
		m.PollUpdates,
		m.PollErrors,
		m.JobTransitions,
		m.JobsArchived,
	)
	return m
}

// Package metrics exposes Prometheus collectors for the harvester service.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	harvestPagesTotal    *prometheus.CounterVec
	harvestCapsulesTotal *prometheus.CounterVec
	harvestErrorsTotal   *prometheus.CounterVec
	harvestJobsTotal     *prometheus.CounterVec
	jobDurationSeconds   prometheus.Histogram
	throttleDelaySeconds *prometheus.HistogramVec

	once sync.Once
)

// Init registers the collectors. Safe to call more than once.
func Init() {
	once.Do(func() {
		harvestPagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvest_pages_total",
				Help: "Pages processed, labeled by outcome.",
			},
			[]string{"outcome"},
		)
		harvestCapsulesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvest_capsules_total",
				Help: "Capsules persisted, labeled by status.",
			},
			[]string{"status"},
		)
		harvestErrorsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvest_errors_total",
				Help: "Errors absorbed or raised, labeled by kind.",
			},
			[]string{"kind"},
		)
		harvestJobsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvest_jobs_total",
				Help: "Jobs completed, labeled by result.",
			},
			[]string{"result"},
		)
		jobDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "harvest_job_duration_seconds",
				Help:    "Wall time per harvest job.",
				Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
			},
		)
		throttleDelaySeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "harvest_throttle_delay_seconds",
				Help:    "Delay imposed by the per-host throttle.",
				Buckets: prometheus.ExponentialBuckets(0.01, 2, 10),
			},
			[]string{"host"},
		)
	})
}

// ObservePage counts a processed page by outcome (ok, needs_review, error).
func ObservePage(outcome string) {
	if harvestPagesTotal != nil {
		harvestPagesTotal.WithLabelValues(outcome).Inc()
	}
}

// ObserveCapsule counts a persisted capsule by status.
func ObserveCapsule(status string) {
	if harvestCapsulesTotal != nil {
		harvestCapsulesTotal.WithLabelValues(status).Inc()
	}
}

// ObserveError counts an error by taxonomy kind.
func ObserveError(kind string) {
	if harvestErrorsTotal != nil {
		harvestErrorsTotal.WithLabelValues(kind).Inc()
	}
}

// ObserveJob counts a finished job and its duration.
func ObserveJob(result string, d time.Duration) {
	if harvestJobsTotal != nil {
		harvestJobsTotal.WithLabelValues(result).Inc()
	}
	if jobDurationSeconds != nil {
		jobDurationSeconds.Observe(d.Seconds())
	}
}

// ObserveThrottleDelay records a throttle wait for a host.
func ObserveThrottleDelay(host string, d time.Duration) {
	if throttleDelaySeconds != nil {
		throttleDelaySeconds.WithLabelValues(host).Observe(d.Seconds())
	}
}

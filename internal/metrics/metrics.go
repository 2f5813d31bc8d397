// Package metrics exposes Prometheus collectors for the crawl engine.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles the engine's collectors on a dedicated registry. A nil
// *Metrics is valid and records nothing, so wiring stays optional.
type Metrics struct {
	Registry        *prometheus.Registry
	PagesVisited    *prometheus.CounterVec
	ItemsExtracted  *prometheus.CounterVec
	ErrorsTotal     *prometheus.CounterVec
	JobsTotal       *prometheus.CounterVec
	RateLimitDelay  prometheus.Histogram
	ActiveJobs      prometheus.Gauge
	PoolSessionsUse prometheus.Gauge
}

// New constructs and registers all collectors.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	pages := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crawler_pages_visited_total",
			Help: "Pages completed per website.",
		},
		[]string{"website"},
	)
	items := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crawler_items_extracted_total",
			Help: "Items extracted per website.",
		},
		[]string{"website"},
	)
	errs := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crawler_errors_total",
			Help: "Scrape errors by kind.",
		},
		[]string{"kind"},
	)
	jobs := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crawler_jobs_total",
			Help: "Finished jobs by terminal status.",
		},
		[]string{"status"},
	)
	delay := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "crawler_rate_limit_delay_seconds",
			Help:    "Delay introduced by per-site rate limiting.",
			Buckets: prometheus.DefBuckets,
		},
	)
	active := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "crawler_active_jobs",
			Help: "Jobs currently running.",
		},
	)
	inUse := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "crawler_pool_sessions_in_use",
			Help: "Browser pool slots currently leased.",
		},
	)

	registry.MustRegister(pages, items, errs, jobs, delay, active, inUse)

	return &Metrics{
		Registry:        registry,
		PagesVisited:    pages,
		ItemsExtracted:  items,
		ErrorsTotal:     errs,
		JobsTotal:       jobs,
		RateLimitDelay:  delay,
		ActiveJobs:      active,
		PoolSessionsUse: inUse,
	}
}

// Handler serves the registry over HTTP.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// IncPage records one completed page for a website.
func (m *Metrics) IncPage(website string) {
	if m == nil {
		return
	}
	m.PagesVisited.WithLabelValues(website).Inc()
}

// AddItems records extracted items for a website.
func (m *Metrics) AddItems(website string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.ItemsExtracted.WithLabelValues(website).Add(float64(n))
}

// IncError records one scrape error by kind.
func (m *Metrics) IncError(kind string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(kind).Inc()
}

// IncJob records a finished job by terminal status.
func (m *Metrics) IncJob(status string) {
	if m == nil {
		return
	}
	m.JobsTotal.WithLabelValues(status).Inc()
}

// ObserveRateLimitDelay records a rate-limit pause.
func (m *Metrics) ObserveRateLimitDelay(d time.Duration) {
	if m == nil {
		return
	}
	m.RateLimitDelay.Observe(d.Seconds())
}

// JobStarted and JobFinished track the running-jobs gauge.
func (m *Metrics) JobStarted() {
	if m == nil {
		return
	}
	m.ActiveJobs.Inc()
}

// JobFinished decrements the running-jobs gauge.
func (m *Metrics) JobFinished() {
	if m == nil {
		return
	}
	m.ActiveJobs.Dec()
}

// SetPoolInUse reports the number of leased pool slots.
func (m *Metrics) SetPoolInUse(n int) {
	if m == nil {
		return
	}
	m.PoolSessionsUse.Set(float64(n))
}

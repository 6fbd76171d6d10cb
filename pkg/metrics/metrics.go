// Package metrics exposes Prometheus collectors for searches, scraping and HTTP serving.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tokyodine"

// Metrics holds a dedicated registry and its collectors. A nil *Metrics
// accepts every observation and records nothing.
type Metrics struct {
	Registry *prometheus.Registry

	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	searchDuration  prometheus.Histogram
	searchEvaluated prometheus.Counter
	searchTruncated prometheus.Counter
	scrapes         *prometheus.CounterVec
	ratings         *prometheus.CounterVec
}

// New registers the collectors, plus Go and process collectors, on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "http_requests_total", Help: "Total HTTP requests."},
			[]string{"method", "path", "status"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{Namespace: namespace, Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
			[]string{"method", "path", "status"},
		),
		searchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "search_duration_seconds", Help: "Combination search duration in seconds.",
			Buckets: []float64{.001, .01, .05, .1, .5, 1, 5, 10, 30},
		}),
		searchEvaluated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "search_combinations_evaluated_total", Help: "Combinations evaluated by the search.",
		}),
		searchTruncated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "search_truncated_total", Help: "Searches stopped early by a deadline or cancellation.",
		}),
		scrapes: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "scrapes_total", Help: "Scrape requests by kind and outcome."},
			[]string{"kind", "outcome"},
		),
		ratings: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "ratings_lookups_total", Help: "Ratings lookups by provider and outcome."},
			[]string{"provider", "outcome"},
		),
	}
	m.Registry.MustRegister(
		m.httpRequests, m.httpDuration,
		m.searchDuration, m.searchEvaluated, m.searchTruncated,
		m.scrapes, m.ratings,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveHTTP records one served request.
func (m *Metrics) ObserveHTTP(method, path string, status int, d time.Duration) {
	if m == nil {
		return
	}
	code := strconv.Itoa(status)
	m.httpRequests.WithLabelValues(method, path, code).Inc()
	m.httpDuration.WithLabelValues(method, path, code).Observe(d.Seconds())
}

// ObserveSearch records one combination search.
func (m *Metrics) ObserveSearch(d time.Duration, evaluated int64, truncated bool) {
	if m == nil {
		return
	}
	m.searchDuration.Observe(d.Seconds())
	m.searchEvaluated.Add(float64(evaluated))
	if truncated {
		m.searchTruncated.Inc()
	}
}

// ObserveScrape records a scrape of kind ("search_page", "calendar") with outcome ("ok", "error", "cached").
func (m *Metrics) ObserveScrape(kind, outcome string) {
	if m == nil {
		return
	}
	m.scrapes.WithLabelValues(kind, outcome).Inc()
}

// ObserveRating records a ratings lookup outcome.
func (m *Metrics) ObserveRating(provider, outcome string) {
	if m == nil {
		return
	}
	m.ratings.WithLabelValues(provider, outcome).Inc()
}

// CacheStats reports the size and hit counts of a cache.
type CacheStats func() (size int, hits, misses int64)

// WatchCache exports a cache's counters, read at scrape time.
func (m *Metrics) WatchCache(name string, stats CacheStats) {
	if m == nil || stats == nil {
		return
	}
	labels := prometheus.Labels{"cache": name}
	m.Registry.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace, Name: "cache_entries", Help: "Entries held by the cache.", ConstLabels: labels,
		}, func() float64 {
			size, _, _ := stats()
			return float64(size)
		}),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace, Name: "cache_hits_total", Help: "Cache hits.", ConstLabels: labels,
		}, func() float64 {
			_, hits, _ := stats()
			return float64(hits)
		}),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace, Name: "cache_misses_total", Help: "Cache misses.", ConstLabels: labels,
		}, func() float64 {
			_, _, misses := stats()
			return float64(misses)
		}),
	)
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

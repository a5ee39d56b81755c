// Package metrics holds the Prometheus collectors of the service.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "trackarr_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	// Progress tracking
	ProgressActions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trackarr_progress_actions_total",
			Help: "Progress actions applied, by action and outcome",
		},
		[]string{"action", "outcome"},
	)

	// Imports
	ImportRows = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trackarr_import_rows_total",
			Help: "Import rows read, by stream and outcome",
		},
		[]string{"stream", "outcome"}, // "ok", "failed"
	)

	ImportRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trackarr_import_runs_total",
			Help: "Import runs, by source and outcome",
		},
		[]string{"source", "outcome"},
	)

	ImportDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "trackarr_import_duration_seconds",
			Help:    "Duration of import runs including commit",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300},
		},
		[]string{"source"},
	)

	// Providers
	ProviderRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trackarr_provider_requests_total",
			Help: "Requests made to external providers",
		},
		[]string{"provider", "status"},
	)

	// Catalog cache
	CatalogCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "trackarr_catalog_cache_hits_total",
			Help: "Catalog lookups served from cache",
		},
	)

	CatalogCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "trackarr_catalog_cache_misses_total",
			Help: "Catalog lookups that went to the store",
		},
	)
)

// ObserveHTTPRequest records one served request
func ObserveHTTPRequest(method, route string, status int, elapsed time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(elapsed.Seconds())
}

// Outcome turns an error into a label value
func Outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

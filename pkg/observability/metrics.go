package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Engine and HTTP metrics, registered on the default registry and exposed on
// /metrics by the router.
var (
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "places_http_requests_total",
		Help: "HTTP requests by method, path and status code.",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "places_http_request_duration_seconds",
		Help:    "HTTP request latency by method and path.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	// RefreshOutcomes counts per-id enrichment outcomes: cached, refreshed,
	// not_found, provider_error, invalid, store_error.
	RefreshOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "places_refresh_outcomes_total",
		Help: "Per-id outcomes of staleness-driven enrichment.",
	}, []string{"outcome"})

	SearchCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "places_search_cache_hits_total",
		Help: "Nearby-search results served from the in-process cache.",
	})

	SearchCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "places_search_cache_misses_total",
		Help: "Nearby-search requests that had to query the store.",
	})
)

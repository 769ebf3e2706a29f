// Package metrics exposes Prometheus instrumentation for the engine.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// CatalogRequests counts catalogue API calls by endpoint and outcome.
	CatalogRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pacebox_catalog_requests_total",
			Help: "Catalogue API calls by endpoint and outcome.",
		},
		[]string{"endpoint", "outcome"},
	)

	// RankingsBuilt counts ranked sequences produced from target submissions.
	RankingsBuilt = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pacebox_rankings_built_total",
			Help: "Ranked sequences built from submitted target BPMs.",
		},
	)

	// PagesServed counts recommendation pages returned to callers.
	PagesServed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pacebox_pages_served_total",
			Help: "Recommendation pages served.",
		},
	)
)

// Handler returns the HTTP handler serving the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

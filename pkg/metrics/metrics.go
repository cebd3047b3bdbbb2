// Package metrics defines the Prometheus collectors exported at /metrics and
// a helper that instruments HTTP handlers.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	requests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "camelot_http_requests_total",
		Help: "HTTP requests by route, method and status code.",
	}, []string{"route", "method", "code"})

	duration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "camelot_http_request_duration_seconds",
		Help:    "HTTP request latency by route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route", "code"})

	// OrganizeRuns counts calls to the organizer from the API.
	OrganizeRuns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "camelot_organize_runs_total",
		Help: "Playlists organized.",
	})

	// TracksExcluded counts tracks dropped for missing analysis.
	TracksExcluded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "camelot_tracks_excluded_total",
		Help: "Tracks left out of organization because tempo, key or mode was missing.",
	})

	// GroupsProduced observes the number of groups per organize call.
	GroupsProduced = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "camelot_groups_per_playlist",
		Help:    "Organized groups produced per playlist.",
		Buckets: prometheus.LinearBuckets(0, 5, 10),
	})

	// ExportBatches counts track batches written to the provider.
	ExportBatches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "camelot_export_batches_total",
		Help: "Track batches appended to exported playlists by result.",
	}, []string{"result"})

	// ProviderRetries counts retried provider calls by operation.
	ProviderRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "camelot_provider_retries_total",
		Help: "Provider API calls retried after a transient failure.",
	}, []string{"op"})

	// AnalysisCache counts analysis cache lookups by outcome.
	AnalysisCache = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "camelot_analysis_cache_total",
		Help: "Analysis cache lookups by outcome (hit or miss).",
	}, []string{"outcome"})
)

// Instrument wraps h so request counts and latencies are recorded under
// route.
func Instrument(route string, h http.Handler) http.Handler {
	labels := prometheus.Labels{"route": route}
	return promhttp.InstrumentHandlerDuration(duration.MustCurryWith(labels),
		promhttp.InstrumentHandlerCounter(requests.MustCurryWith(labels), h))
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

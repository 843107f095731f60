package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler is the subset of a router needed to expose /metrics.
type Handler interface {
	Handle(pattern string, h http.Handler)
}

var (
	UpstreamRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sorare_proxy_upstream_requests_total",
			Help: "Total GraphQL calls to the upstream API",
		},
		[]string{"query", "result"}, // Success|Failure|transport_error
	)

	UpstreamRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sorare_proxy_upstream_request_duration_seconds",
			Help:    "Duration of upstream GraphQL calls",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"query"},
	)

	FallbacksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sorare_proxy_fallbacks_total",
			Help: "Player lookups retried with the basic query after a 422",
		},
	)

	LookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sorare_proxy_lookups_total",
			Help: "Player lookups by entry point",
		},
		[]string{"source", "result"}, // http|queue, success|failure|invalid
	)
)

func init() {
	prometheus.MustRegister(UpstreamRequestsTotal)
	prometheus.MustRegister(UpstreamRequestDuration)
	prometheus.MustRegister(FallbacksTotal)
	prometheus.MustRegister(LookupsTotal)
}

func Register(mux Handler) {
	mux.Handle("/metrics", promhttp.Handler())
}

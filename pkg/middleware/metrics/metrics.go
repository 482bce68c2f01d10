// pkg/middleware/metrics/metrics.go
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
)

var (
	responseTime = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "response_time",
			Help:    "http response time.",
			Buckets: []float64{0.5, 1, 5, 10, 30, 60},
		},
	)

	totalHttpRequestsToUri = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "total_http_requests_to_uri", Help: "http requests to uri"},
		[]string{"code", "uri", "method"},
	)

	totalHttpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "total_http_requests", Help: "http requests by code, and method"},
		[]string{"code", "method"},
	)

	// Domain counters, incremented by the session service and revocation engine.

	SessionsMinted = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "federation_sessions_minted_total", Help: "federation artifacts minted"},
	)

	SessionCacheHits = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "federation_session_cache_hits_total", Help: "session requests served from cache"},
	)

	SessionsInvalidated = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "federation_sessions_invalidated_total", Help: "cached artifacts invalidated"},
	)

	Revocations = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "federation_revocations_total", Help: "full revocations by outcome"},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(
		responseTime,
		totalHttpRequestsToUri,
		totalHttpRequests,
		SessionsMinted,
		SessionCacheHits,
		SessionsInvalidated,
		Revocations,
	)
}

func NewPromHttpHandler() http.Handler { return promhttp.Handler() }
func ProvideMetrics() http.Handler     { return NewPromHttpHandler() }

var Module = fx.Options(
	fx.Provide(ProvideMetrics),
)

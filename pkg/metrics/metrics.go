// Package metrics exposes the service's Prometheus instrumentation.
package metrics

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/zebutrade/papertrade/pkg/logger"
)

// Metrics holds the collectors for the tiered lookup path.
type Metrics struct {
	// TierHits counts lookups satisfied per tier (cache, database, api).
	TierHits *prometheus.CounterVec
	// ProviderCalls counts outbound calls to the upstream price API.
	ProviderCalls prometheus.Counter
	// ProviderErrors counts provider failures by kind (network, throttled,
	// not_found, malformed).
	ProviderErrors *prometheus.CounterVec
	// RateLimitDenials counts lookups denied a provider token.
	RateLimitDenials prometheus.Counter
	// DegradedResponses counts responses served stale or partial.
	DegradedResponses prometheus.Counter
	// LookupDuration observes end-to-end price lookup latency.
	LookupDuration prometheus.Histogram
	// HTTPRequests counts API requests by route and status.
	HTTPRequests *prometheus.CounterVec
	// WatchlistRefreshes counts background refresh outcomes.
	WatchlistRefreshes *prometheus.CounterVec
}

// New builds the collectors under the papertrade namespace.
func New(serviceName string) *Metrics {
	return &Metrics{
		TierHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "papertrade",
			Subsystem: serviceName,
			Name:      "tier_hits_total",
			Help:      "Price lookups satisfied per cache tier",
		}, []string{"tier"}),
		ProviderCalls: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "papertrade",
			Subsystem: serviceName,
			Name:      "provider_calls_total",
			Help:      "Outbound calls to the market data provider",
		}),
		ProviderErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "papertrade",
			Subsystem: serviceName,
			Name:      "provider_errors_total",
			Help:      "Provider call failures by kind",
		}, []string{"kind"}),
		RateLimitDenials: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "papertrade",
			Subsystem: serviceName,
			Name:      "rate_limit_denials_total",
			Help:      "Lookups denied an upstream API token",
		}),
		DegradedResponses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "papertrade",
			Subsystem: serviceName,
			Name:      "degraded_responses_total",
			Help:      "Responses served with stale or partial data",
		}),
		LookupDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "papertrade",
			Subsystem: serviceName,
			Name:      "lookup_duration_seconds",
			Help:      "End-to-end price lookup latency",
			Buckets:   prometheus.DefBuckets,
		}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "papertrade",
			Subsystem: serviceName,
			Name:      "http_requests_total",
			Help:      "API requests by route and status",
		}, []string{"route", "status"}),
		WatchlistRefreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "papertrade",
			Subsystem: serviceName,
			Name:      "watchlist_refreshes_total",
			Help:      "Background watchlist refresh outcomes",
		}, []string{"outcome"}),
	}
}

// Register registers every collector with the default registry.
func (m *Metrics) Register() error {
	collectors := []prometheus.Collector{
		m.TierHits,
		m.ProviderCalls,
		m.ProviderErrors,
		m.RateLimitDenials,
		m.DegradedResponses,
		m.LookupDuration,
		m.HTTPRequests,
		m.WatchlistRefreshes,
	}
	for _, c := range collectors {
		if err := prometheus.DefaultRegisterer.Register(c); err != nil {
			logger.Error(context.Background(), "failed to register metric", "error", err)
			return err
		}
	}
	return nil
}

// StartHTTPServer serves the metrics endpoint on its own port.
func StartHTTPServer(port int, path string) {
	if path == "" {
		path = "/metrics"
	}
	mux := http.NewServeMux()
	mux.Handle(path, promhttp.Handler())
	addr := fmt.Sprintf(":%d", port)
	logger.Info(context.Background(), "starting metrics server", "addr", addr, "path", path)
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.Error(context.Background(), "metrics server failed", "error", err)
		}
	}()
}

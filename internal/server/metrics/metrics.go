// Package metrics exposes the server's Prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "yggkeeper"

// Outcome label values for AuthResult.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

type Metrics struct {
	registry *prometheus.Registry

	authRequests  *prometheus.CounterVec
	rateLimited   *prometheus.CounterVec
	texturesSaved prometheus.Counter
	httpDuration  *prometheus.HistogramVec
}

// New registers all collectors on a fresh registry. liveTokens is sampled
// on every scrape.
func New(liveTokens func() float64) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		authRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_requests_total",
			Help:      "Authentication protocol requests by operation and outcome.",
		}, []string{"op", "outcome"}),
		rateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Requests refused by a rate limiter.",
		}, []string{"keyspace"}),
		texturesSaved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "textures_stored_total",
			Help:      "Texture blobs written to the backing store.",
		}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route pattern.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.authRequests,
		m.rateLimited,
		m.texturesSaved,
		m.httpDuration,
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tokens_live",
			Help:      "Approximate number of access tokens in the token table.",
		}, liveTokens),
	)
	return m
}

func (m *Metrics) AuthResult(op string, ok bool) {
	outcome := OutcomeSuccess
	if !ok {
		outcome = OutcomeFailure
	}
	m.authRequests.WithLabelValues(op, outcome).Inc()
}

func (m *Metrics) RateLimited(keyspace string) {
	m.rateLimited.WithLabelValues(keyspace).Inc()
}

// TextureStored matches the texture cache's on-stored hook.
func (m *Metrics) TextureStored(string) {
	m.texturesSaved.Inc()
}

func (m *Metrics) ObserveHTTP(method, route, status string, seconds float64) {
	m.httpDuration.WithLabelValues(method, route, status).Observe(seconds)
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "showcase"

// Outcome labels for the handler counters.
const (
	outcomeDeleted         = "deleted"
	outcomeUnauthenticated = "unauthenticated"
	outcomeProfileFailed   = "profile_delete_failed"
	outcomeIdentityFailed  = "identity_delete_failed"
	outcomeUnexpected      = "unexpected_error"
	outcomeNoCode          = "no_code"
	outcomeExchangeFailed  = "exchange_failed"
	outcomeProfileExists   = "profile_exists"
	outcomeProfileCreated  = "profile_created"
	outcomeProvisionFailed = "provision_failed"
	routeLabelUnmatched    = "unmatched"
)

// Metrics holds the Prometheus collectors exported on /metrics.
type Metrics struct {
	registry  *prometheus.Registry
	requests  *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	inFlight  prometheus.Gauge
	deletions *prometheus.CounterVec
	callbacks *prometheus.CounterVec
}

// NewMetrics registers the service collectors on a dedicated registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: metricsNamespace, Name: "http_requests_total", Help: "Total HTTP requests"},
			[]string{"route", "method", "status"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "http_request_duration_seconds",
				Help:      "Request duration seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"route", "method"},
		),
		inFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{Namespace: metricsNamespace, Name: "http_in_flight_requests", Help: "In-flight HTTP requests"},
		),
		deletions: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: metricsNamespace, Name: "account_deletions_total", Help: "Account deletion attempts by outcome"},
			[]string{"outcome"},
		),
		callbacks: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: metricsNamespace, Name: "auth_callbacks_total", Help: "Auth callbacks by outcome"},
			[]string{"outcome"},
		),
	}
	m.registry.MustRegister(m.requests, m.duration, m.inFlight, m.deletions, m.callbacks)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) observeDeletion(outcome string) {
	if m == nil {
		return
	}
	m.deletions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) observeCallback(outcome string) {
	if m == nil {
		return
	}
	m.callbacks.WithLabelValues(outcome).Inc()
}

func (m *Metrics) middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		m.inFlight.Inc()
		defer m.inFlight.Dec()
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = routeLabelUnmatched
		}
		m.requests.WithLabelValues(route, c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
		m.duration.WithLabelValues(route, c.Request.Method).Observe(time.Since(start).Seconds())
	}
}

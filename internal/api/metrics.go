package api

import (
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the API client's prometheus collectors. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	inflight prometheus.Gauge
	retries  prometheus.Counter
	logouts  prometheus.Counter
}

// NewMetrics registers the client collectors with reg. Collectors already
// registered by another client are reused.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "moneybook",
			Subsystem: "api_client",
			Name:      "requests_total",
			Help:      "Requests sent to the tracker API.",
		}, []string{"code", "method"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "moneybook",
			Subsystem: "api_client",
			Name:      "request_duration_seconds",
			Help:      "Latency of tracker API requests.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"code", "method"}),
		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "moneybook",
			Subsystem: "api_client",
			Name:      "in_flight_requests",
			Help:      "Tracker API requests currently in flight.",
		}),
		retries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "moneybook",
			Subsystem: "api_client",
			Name:      "retries_total",
			Help:      "Retried tracker API calls.",
		}),
		logouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "moneybook",
			Subsystem: "api_client",
			Name:      "unauthorized_logouts_total",
			Help:      "Logouts triggered by rejected tokens.",
		}),
	}
	if reg == nil {
		return m
	}
	m.requests = register(reg, m.requests)
	m.duration = register(reg, m.duration)
	m.inflight = register(reg, m.inflight)
	m.retries = register(reg, m.retries)
	m.logouts = register(reg, m.logouts)
	return m
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
	}
	return c
}

func (m *Metrics) instrument(rt http.RoundTripper) http.RoundTripper {
	if rt == nil {
		rt = http.DefaultTransport
	}
	return promhttp.InstrumentRoundTripperInFlight(m.inflight,
		promhttp.InstrumentRoundTripperCounter(m.requests,
			promhttp.InstrumentRoundTripperDuration(m.duration, rt)))
}

func (m *Metrics) retried() {
	if m != nil {
		m.retries.Inc()
	}
}

func (m *Metrics) logout() {
	if m != nil {
		m.logouts.Inc()
	}
}

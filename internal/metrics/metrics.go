package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors for the terminal.  Each instance
// owns its registry so tests can build as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	Verifications  *prometheus.CounterVec
	Registrations  *prometheus.CounterVec
	EngineRequests *prometheus.HistogramVec
	EngineUp       prometheus.Gauge
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		Verifications: f.NewCounterVec(prometheus.CounterOpts{
			Name: "portunus_verifications_total",
			Help: "Verification attempts by final outcome and reason.",
		}, []string{"outcome", "reason"}),
		Registrations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "portunus_registrations_total",
			Help: "Registration attempts by result.",
		}, []string{"result"}),
		EngineRequests: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "portunus_engine_request_duration_seconds",
			Help:    "Recognition engine call latency by operation and result.",
			Buckets: []float64{.05, .1, .25, .5, 1, 2, 3, 5, 8},
		}, []string{"op", "result"}),
		EngineUp: f.NewGauge(prometheus.GaugeOpts{
			Name: "portunus_engine_up",
			Help: "1 when the last recognition engine probe succeeded.",
		}),
	}
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry is exposed for tests that gather values directly.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) ObserveVerification(outcome, reason string) {
	if m == nil {
		return
	}
	m.Verifications.WithLabelValues(outcome, reason).Inc()
}

func (m *Metrics) ObserveRegistration(result string) {
	if m == nil {
		return
	}
	m.Registrations.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveEngine(op, result string, d time.Duration) {
	if m == nil {
		return
	}
	m.EngineRequests.WithLabelValues(op, result).Observe(d.Seconds())
}

func (m *Metrics) SetEngineUp(up bool) {
	if m == nil {
		return
	}
	if up {
		m.EngineUp.Set(1)
		return
	}
	m.EngineUp.Set(0)
}

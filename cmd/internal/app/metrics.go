package app

import (
	"net/http"
	"strconv"

	v1 "deeplink/shared/contracts/session/v1"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "deeplink"

// Metrics records gateway and dispatcher events on a private registry.
// It implements realtime.Observer.
type Metrics struct {
	registry *prometheus.Registry

	sessionsActive  prometheus.Gauge
	sessionsTotal   prometheus.Counter
	framesReceived  prometheus.Counter
	framesDiscarded prometheus.Counter
	requests        *prometheus.CounterVec
}

// NewMetrics registers collectors, including Go and process collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		sessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "ws",
			Name:      "sessions_active",
			Help:      "Currently open websocket sessions.",
		}),
		sessionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "ws",
			Name:      "sessions_total",
			Help:      "Websocket sessions accepted since start.",
		}),
		framesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "ws",
			Name:      "frames_received_total",
			Help:      "Text frames read from closed sessions.",
		}),
		framesDiscarded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "ws",
			Name:      "frames_discarded_total",
			Help:      "Non-text frames dropped by the gateway.",
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "session",
			Name:      "requests_total",
			Help:      "Dispatched requests by method and reply code.",
		}, []string{"method", "code"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.sessionsActive,
		m.sessionsTotal,
		m.framesReceived,
		m.framesDiscarded,
		m.requests,
	)
	return m
}

// Registry exposes the underlying registry for tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) SessionOpened() {
	m.sessionsActive.Inc()
	m.sessionsTotal.Inc()
}

func (m *Metrics) SessionClosed(received int) {
	m.sessionsActive.Dec()
	if received > 0 {
		m.framesReceived.Add(float64(received))
	}
}

func (m *Metrics) FrameDiscarded() { m.framesDiscarded.Inc() }

// Request counts a reply. Undecodable frames carry no method and are
// labelled "invalid" to keep label cardinality bounded.
func (m *Metrics) Request(method string, code v1.Code) {
	switch method {
	case v1.MethodGetNonce, v1.MethodRegisterDevice, v1.MethodLogin, "unknown":
	case "":
		method = "invalid"
	default:
		method = "unknown"
	}
	m.requests.WithLabelValues(method, strconv.Itoa(int(code))).Inc()
}

// ABOUTME: Prometheus collectors for the console's socket, reconciler and REST traffic
// ABOUTME: Collectors live on a private registry; every method is safe on a nil receiver

package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "cortex_console"

// Metrics groups the console's collectors.
type Metrics struct {
	registry *prometheus.Registry

	framesReceived   prometheus.Counter
	framesMalformed  prometheus.Counter
	eventsApplied    *prometheus.CounterVec
	outputsPublished *prometheus.CounterVec
	connects         prometheus.Counter
	connectFailures  prometheus.Counter
	disconnects      prometheus.Counter
	connected        prometheus.Gauge
	apiRequests      *prometheus.CounterVec
}

// New creates the collectors and registers them on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		framesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_received_total",
			Help:      "WebSocket text frames received from the backend.",
		}),
		framesMalformed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_malformed_total",
			Help:      "Frames dropped because they could not be decoded.",
		}),
		eventsApplied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_applied_total",
			Help:      "Agent events folded into the conversation, by agent and whether the turn changed.",
		}, []string{"agent", "changed"}),
		outputsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outputs_published_total",
			Help:      "Agent outputs published to the output registry.",
		}, []string{"agent"}),
		connects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "socket_connects_total",
			Help:      "Successful WebSocket connections.",
		}),
		connectFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "socket_connect_failures_total",
			Help:      "Failed WebSocket dial attempts.",
		}),
		disconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "socket_disconnects_total",
			Help:      "WebSocket connections lost to an error or close.",
		}),
		connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "socket_connected",
			Help:      "1 while a WebSocket connection is open.",
		}),
		apiRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_requests_total",
			Help:      "REST calls to the vault, MCP and preference endpoints, by operation and outcome.",
		}, []string{"op", "outcome"}),
	}

	m.registry.MustRegister(
		m.framesReceived,
		m.framesMalformed,
		m.eventsApplied,
		m.outputsPublished,
		m.connects,
		m.connectFailures,
		m.disconnects,
		m.connected,
		m.apiRequests,
	)
	return m
}

// Registry exposes the underlying registry, e.g. for tests or extra collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the collectors in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) FrameReceived() {
	if m != nil {
		m.framesReceived.Inc()
	}
}

func (m *Metrics) FrameMalformed() {
	if m != nil {
		m.framesMalformed.Inc()
	}
}

func (m *Metrics) EventApplied(agent string, changed bool) {
	if m == nil {
		return
	}
	label := "false"
	if changed {
		label = "true"
	}
	m.eventsApplied.WithLabelValues(agent, label).Inc()
}

func (m *Metrics) OutputPublished(agent string) {
	if m != nil {
		m.outputsPublished.WithLabelValues(agent).Inc()
	}
}

func (m *Metrics) Connected() {
	if m != nil {
		m.connects.Inc()
		m.connected.Set(1)
	}
}

func (m *Metrics) ConnectFailed() {
	if m != nil {
		m.connectFailures.Inc()
	}
}

func (m *Metrics) Disconnected() {
	if m != nil {
		m.disconnects.Inc()
		m.connected.Set(0)
	}
}

// APIRequest counts one REST call. outcome is "ok" or "error".
func (m *Metrics) APIRequest(op, outcome string) {
	if m != nil {
		m.apiRequests.WithLabelValues(op, outcome).Inc()
	}
}

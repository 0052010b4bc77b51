// Package metrics exposes Prometheus instrumentation for the tutor client.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups every collector the controller updates.
type Metrics struct {
	registry *prometheus.Registry

	connectionOpen      prometheus.Gauge
	dialAttempts        *prometheus.CounterVec
	reconnects          prometheus.Counter
	reconnectDelay      prometheus.Histogram
	framesReceived      *prometheus.CounterVec
	framesDropped       *prometheus.CounterVec
	framesSent          *prometheus.CounterVec
	deferredSends       *prometheus.CounterVec
	requestTimeouts     *prometheus.CounterVec
	collaboratorCalls   *prometheus.CounterVec
	collaboratorLatency *prometheus.HistogramVec
}

// New registers the tutor client collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		connectionOpen: f.NewGauge(prometheus.GaugeOpts{
			Name: "tutor_connection_open",
			Help: "1 while the tutor WebSocket is open, 0 otherwise",
		}),
		dialAttempts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tutor_dial_attempts_total",
			Help: "WebSocket dial attempts by result",
		}, []string{"result"}),
		reconnects: f.NewCounter(prometheus.CounterOpts{
			Name: "tutor_reconnects_scheduled_total",
			Help: "Reconnect attempts scheduled after a dropped or failed connection",
		}),
		reconnectDelay: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "tutor_reconnect_delay_seconds",
			Help:    "Delay before each scheduled reconnect",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 9), // 0.25s to ~64s
		}),
		framesReceived: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tutor_frames_received_total",
			Help: "Inbound frames dispatched by kind",
		}, []string{"kind"}),
		framesDropped: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tutor_frames_dropped_total",
			Help: "Inbound frames dropped by reason",
		}, []string{"reason"}),
		framesSent: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tutor_frames_sent_total",
			Help: "Outbound frames handed to the transport by kind",
		}, []string{"kind"}),
		deferredSends: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tutor_deferred_sends_total",
			Help: "Chat messages deferred while disconnected, by outcome",
		}, []string{"outcome"}),
		requestTimeouts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tutor_request_timeouts_total",
			Help: "Processing flags cleared because no response arrived",
		}, []string{"flag"}),
		collaboratorCalls: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tutor_collaborator_requests_total",
			Help: "REST collaborator requests by endpoint and result",
		}, []string{"endpoint", "result"}),
		collaboratorLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tutor_collaborator_request_duration_seconds",
			Help:    "REST collaborator request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// SetConnectionOpen records whether the connection is open.
func (m *Metrics) SetConnectionOpen(open bool) {
	if m == nil {
		return
	}
	if open {
		m.connectionOpen.Set(1)
		return
	}
	m.connectionOpen.Set(0)
}

// DialAttempt counts one dial by result ("success" or "failure").
func (m *Metrics) DialAttempt(result string) {
	if m == nil {
		return
	}
	m.dialAttempts.WithLabelValues(result).Inc()
}

// ReconnectScheduled counts a scheduled reconnect and its delay.
func (m *Metrics) ReconnectScheduled(delay time.Duration) {
	if m == nil {
		return
	}
	m.reconnects.Inc()
	m.reconnectDelay.Observe(delay.Seconds())
}

// FrameReceived counts a dispatched inbound frame.
func (m *Metrics) FrameReceived(kind string) {
	if m == nil {
		return
	}
	m.framesReceived.WithLabelValues(kind).Inc()
}

// FrameDropped counts an inbound frame that was not dispatched.
func (m *Metrics) FrameDropped(reason string) {
	if m == nil {
		return
	}
	m.framesDropped.WithLabelValues(reason).Inc()
}

// FrameSent counts an outbound frame.
func (m *Metrics) FrameSent(kind string) {
	if m == nil {
		return
	}
	m.framesSent.WithLabelValues(kind).Inc()
}

// DeferredSend counts a deferred chat send by outcome ("scheduled", "sent", "dropped").
func (m *Metrics) DeferredSend(outcome string) {
	if m == nil {
		return
	}
	m.deferredSends.WithLabelValues(outcome).Inc()
}

// RequestTimeout counts a flag cleared by the watchdog.
func (m *Metrics) RequestTimeout(flag string) {
	if m == nil {
		return
	}
	m.requestTimeouts.WithLabelValues(flag).Inc()
}

// CollaboratorRequest records one REST call.
func (m *Metrics) CollaboratorRequest(endpoint string, err error, took time.Duration) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "failure"
	}
	m.collaboratorCalls.WithLabelValues(endpoint, result).Inc()
	m.collaboratorLatency.WithLabelValues(endpoint).Observe(took.Seconds())
}

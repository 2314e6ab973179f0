package gateway

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects gateway-level Prometheus metrics on a private
// registry, exposed at /metrics.
type Metrics struct {
	registry *prometheus.Registry

	// ActiveSessions gauges the number of live WebSocket sessions.
	ActiveSessions prometheus.Gauge

	// MessagesTotal counts inbound user message frames.
	MessagesTotal prometheus.Counter

	// FramesTotal counts outbound frames by type.
	FramesTotal *prometheus.CounterVec

	// ToolCallsTotal counts tool invocations started by the loop.
	ToolCallsTotal prometheus.Counter

	// BlockedToolsTotal counts tool invocations denied by policy or
	// by the user.
	BlockedToolsTotal prometheus.Counter

	// ErrorsTotal counts turn-level errors.
	ErrorsTotal prometheus.Counter

	// TurnDuration measures full agent turn latency in seconds.
	TurnDuration prometheus.Histogram
}

// NewMetrics creates and registers all gateway metrics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,

		ActiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "warden_active_sessions",
			Help: "Current number of live WebSocket sessions",
		}),

		MessagesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "warden_messages_total",
			Help: "Total number of inbound user messages",
		}),

		FramesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "warden_frames_sent_total",
			Help: "Total number of outbound frames by type",
		}, []string{"type"}),

		ToolCallsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "warden_tool_calls_total",
			Help: "Total number of tool invocations started",
		}),

		BlockedToolsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "warden_blocked_tools_total",
			Help: "Total number of tool invocations blocked by policy or denied by the user",
		}),

		ErrorsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "warden_turn_errors_total",
			Help: "Total number of agent turn errors",
		}),

		TurnDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "warden_turn_duration_seconds",
			Help:    "Duration of full agent turns in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}),
	}
}

// Handler returns the HTTP handler serving the private registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordFrame counts one outbound frame.
func (m *Metrics) RecordFrame(frameType string) {
	m.FramesTotal.WithLabelValues(frameType).Inc()
}

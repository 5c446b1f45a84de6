// Package metrics exposes monitor activity as Prometheus metrics.
package metrics

import (
	"net/http"

	"eeg-monitor/internal/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "eeg"

// Metrics collectors on a private registry
type Metrics struct {
	registry *prometheus.Registry

	ticks     prometheus.Counter
	recorded  prometheus.Counter
	artifacts prometheus.Counter
	clears    prometheus.Counter
	emotions  *prometheus.CounterVec
	connected prometheus.Gauge
	recording prometheus.Gauge
}

// New registers the collectors. clients and sessions, when set, back gauges
// read at scrape time.
func New(clients, sessions func() int) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticks_total",
			Help:      "Generator ticks processed.",
		}),
		recorded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_recorded_total",
			Help:      "Session records appended while recording.",
		}),
		artifacts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "artifacts_total",
			Help:      "Simulated recording artifacts.",
		}),
		clears: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_clears_total",
			Help:      "Times the session list was cleared.",
		}),
		emotions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "emotions_total",
			Help:      "Classified emotions by label.",
		}, []string{"emotion"}),
		connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connected",
			Help:      "1 while the headset is connected.",
		}),
		recording: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "recording",
			Help:      "1 while recording.",
		}),
	}

	m.registry.MustRegister(m.ticks, m.recorded, m.artifacts, m.clears, m.emotions, m.connected, m.recording)

	if clients != nil {
		m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "websocket_clients",
			Help:      "Connected WebSocket clients.",
		}, func() float64 { return float64(clients()) }))
	}
	if sessions != nil {
		m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions",
			Help:      "Records in the session list.",
		}, func() float64 { return float64(sessions()) }))
	}

	return m
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) OnTick(tick models.Tick) {
	m.ticks.Inc()
	m.emotions.WithLabelValues(string(tick.Event.Emotion)).Inc()
	if tick.Session != nil {
		m.recorded.Inc()
	}
	if tick.Artifact != nil {
		m.artifacts.Inc()
	}
}

func (m *Metrics) OnState(state models.ConnectionState) {
	m.connected.Set(boolValue(state.Connected))
	m.recording.Set(boolValue(state.Recording))
}

func (m *Metrics) OnSessionsCleared() {
	m.clears.Inc()
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// Package metrics exports connection, frame and session telemetry to
// Prometheus.
package metrics

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "research"

// Session outcomes.
const (
	OutcomeCompleted    = "completed"
	OutcomeFailed       = "failed"
	OutcomeDisconnected = "disconnected"
	OutcomeMalformed    = "malformed"
)

// Metrics holds the collectors. A nil *Metrics records nothing.
type Metrics struct {
	activeConnections   prometheus.Gauge
	rejectedConnections prometheus.Counter
	framesSent          *prometheus.CounterVec
	sessions            *prometheus.CounterVec
	sessionDuration     prometheus.Histogram
}

// New registers the collectors with reg, reusing collectors that are already
// registered. A nil reg uses the default registerer.
func New(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{}
	var err error
	if m.activeConnections, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "ws_connections_active",
		Help:      "Websocket connections currently holding a slot.",
	})); err != nil {
		return nil, err
	}
	if m.rejectedConnections, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ws_connections_rejected_total",
		Help:      "Websocket connections closed because the ceiling was reached.",
	})); err != nil {
		return nil, err
	}
	if m.framesSent, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ws_frames_sent_total",
		Help:      "Event frames delivered to clients.",
	}, []string{"event_type"})); err != nil {
		return nil, err
	}
	if m.sessions, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sessions_total",
		Help:      "Research sessions by outcome.",
	}, []string{"outcome"})); err != nil {
		return nil, err
	}
	if m.sessionDuration, err = register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "session_duration_seconds",
		Help:      "Wall time of research sessions.",
		Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
	})); err != nil {
		return nil, err
	}
	return m, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		var zero C
		return zero, fmt.Errorf("register metric: %w", err)
	}
	return c, nil
}

// ConnectionOpened records an admitted connection.
func (m *Metrics) ConnectionOpened() {
	if m == nil {
		return
	}
	m.activeConnections.Inc()
}

// ConnectionClosed records a released connection.
func (m *Metrics) ConnectionClosed() {
	if m == nil {
		return
	}
	m.activeConnections.Dec()
}

// ConnectionRejected records an admission refused at the ceiling.
func (m *Metrics) ConnectionRejected() {
	if m == nil {
		return
	}
	m.rejectedConnections.Inc()
}

// FrameSent records one delivered frame.
func (m *Metrics) FrameSent(eventType string) {
	if m == nil {
		return
	}
	m.framesSent.WithLabelValues(eventType).Inc()
}

// SessionFinished records a session outcome and its duration.
func (m *Metrics) SessionFinished(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.sessions.WithLabelValues(outcome).Inc()
	m.sessionDuration.Observe(d.Seconds())
}

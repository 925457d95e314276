// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package metrics provides Prometheus instrumentation for mhttp.
//
// Every method is safe to call on a nil *Metrics, so components can take an
// optional instance without guarding each call site.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Buffer kinds reported by BufferEnlarged.
const (
	BufferInboundRecord  = "inbound_record"
	BufferOutboundRecord = "outbound_record"
	BufferInboundApp     = "inbound_app"
	BufferWrapOutput     = "wrap_output"
)

// Metrics holds all Prometheus metrics for mhttp.
type Metrics struct {
	// Connection metrics
	ActiveConnections  *prometheus.GaugeVec
	TotalConnections   *prometheus.CounterVec
	ConnectionDuration *prometheus.HistogramVec
	RateLimited        *prometheus.CounterVec

	// TLS engine metrics
	Handshakes         *prometheus.CounterVec
	HandshakeDuration  *prometheus.HistogramVec
	Records            *prometheus.CounterVec
	RecordBytes        *prometheus.CounterVec
	BufferEnlargements *prometheus.CounterVec
	DelegatedTasks     prometheus.Counter

	// Message metrics
	Messages    *prometheus.CounterVec
	MessageSize *prometheus.HistogramVec
	Assemblers  *prometheus.GaugeVec
}

// New registers every metric under namespace with reg. A nil reg means
// prometheus.DefaultRegisterer.
func New(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "mhttp"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Metrics{
		ActiveConnections: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_connections",
				Help:      "Number of currently active connections",
			},
			[]string{"transport"},
		),
		TotalConnections: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "connections_total",
				Help:      "Total number of connections",
			},
			[]string{"transport", "status"},
		),
		ConnectionDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "connection_duration_seconds",
				Help:      "Connection duration in seconds",
				Buckets:   []float64{.01, .05, .1, .5, 1, 5, 10, 30, 60, 300, 600},
			},
			[]string{"transport"},
		),
		RateLimited: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rate_limited_connections_total",
				Help:      "Total number of connections refused by the admission limiter",
			},
			[]string{"limiter_type"},
		),
		Handshakes: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "tls",
				Name:      "handshakes_total",
				Help:      "Total number of TLS handshakes driven",
			},
			[]string{"role", "outcome"},
		),
		HandshakeDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "tls",
				Name:      "handshake_duration_seconds",
				Help:      "TLS handshake duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
			},
			[]string{"role"},
		),
		Records: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "tls",
				Name:      "records_total",
				Help:      "Total number of application records wrapped or unwrapped",
			},
			[]string{"direction"},
		),
		RecordBytes: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "tls",
				Name:      "record_bytes_total",
				Help:      "Plaintext bytes carried by application records",
			},
			[]string{"direction"},
		),
		BufferEnlargements: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "tls",
				Name:      "buffer_enlargements_total",
				Help:      "Total number of buffer enlargements after overflow or underflow",
			},
			[]string{"buffer"},
		),
		DelegatedTasks: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "tls",
				Name:      "delegated_tasks_total",
				Help:      "Total number of delegated handshake tasks executed",
			},
		),
		Messages: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "messages_total",
				Help:      "Total number of messages assembled",
			},
			[]string{"kind", "outcome"},
		),
		MessageSize: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "message_size_bytes",
				Help:      "Assembled message size in bytes",
				Buckets:   []float64{100, 1000, 10000, 100000, 1000000, 10000000},
			},
			[]string{"kind"},
		),
		Assemblers: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "assemblers",
				Help:      "Number of pooled message assemblers by state",
			},
			[]string{"state"},
		),
	}
}

// ObserveConnection tracks a connection lifecycle.
func (m *Metrics) ObserveConnection(transport string, f func() error) error {
	if m == nil {
		return f()
	}
	m.ActiveConnections.WithLabelValues(transport).Inc()
	defer m.ActiveConnections.WithLabelValues(transport).Dec()

	start := time.Now()
	defer func() {
		m.ConnectionDuration.WithLabelValues(transport).Observe(time.Since(start).Seconds())
	}()

	err := f()
	m.TotalConnections.WithLabelValues(transport, outcome(err)).Inc()
	return err
}

// ObserveHandshake records one driven handshake.
func (m *Metrics) ObserveHandshake(role string, start time.Time, err error) {
	if m == nil {
		return
	}
	m.Handshakes.WithLabelValues(role, outcome(err)).Inc()
	m.HandshakeDuration.WithLabelValues(role).Observe(time.Since(start).Seconds())
}

// ObserveRecord records one application record in direction "wrap" or "unwrap".
func (m *Metrics) ObserveRecord(direction string, plaintext int) {
	if m == nil {
		return
	}
	m.Records.WithLabelValues(direction).Inc()
	m.RecordBytes.WithLabelValues(direction).Add(float64(plaintext))
}

// BufferEnlarged counts an enlargement of the given buffer kind.
func (m *Metrics) BufferEnlarged(buffer string) {
	if m == nil {
		return
	}
	m.BufferEnlargements.WithLabelValues(buffer).Inc()
}

// TasksRun counts executed delegated tasks.
func (m *Metrics) TasksRun(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.DelegatedTasks.Add(float64(n))
}

// ObserveMessage records an assembled message of kind "request" or "response".
func (m *Metrics) ObserveMessage(kind string, size int, err error) {
	if m == nil {
		return
	}
	m.Messages.WithLabelValues(kind, outcome(err)).Inc()
	if err == nil {
		m.MessageSize.WithLabelValues(kind).Observe(float64(size))
	}
}

// ConnectionLimited counts a refused connection.
func (m *Metrics) ConnectionLimited(limiter string) {
	if m == nil {
		return
	}
	m.RateLimited.WithLabelValues(limiter).Inc()
}

// SetAssemblers publishes pool occupancy.
func (m *Metrics) SetAssemblers(idle, active int) {
	if m == nil {
		return
	}
	m.Assemblers.WithLabelValues("idle").Set(float64(idle))
	m.Assemblers.WithLabelValues("active").Set(float64(active))
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

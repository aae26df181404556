// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package metrics exposes Prometheus instruments for the session core.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Drop reasons for EventsDroppedTotal.
const (
	DropNoSession       = "no_session"
	DropSessionMismatch = "session_mismatch"
	DropEncode          = "encode"
	DropWrite           = "write"
	DropNoFile          = "no_file"
	DropClosed          = "closed"
)

var (
	ChunksEmittedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "empytrone_chunks_emitted_total",
		Help: "Total number of audio chunks emitted by chunk buffers",
	})

	ChunkBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "empytrone_chunk_bytes_total",
		Help: "Total number of audio bytes delivered in chunks",
	})

	EventsWrittenTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "empytrone_events_written_total",
		Help: "Total number of structured events appended to session logs",
	})

	EventsDroppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "empytrone_events_dropped_total",
		Help: "Total number of structured events dropped by reason",
	}, []string{"reason"})

	EventWriteDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "empytrone_event_write_duration_seconds",
		Help:    "Time to encode, append and flush one structured event",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1},
	})

	LogStorageErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "empytrone_log_storage_errors_total",
		Help: "Total number of session log storage failures by operation",
	}, []string{"op"})

	StateTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "empytrone_state_transitions_total",
		Help: "Total number of session state transition attempts",
	}, []string{"from", "to", "accepted"})

	SessionsStartedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "empytrone_sessions_started_total",
		Help: "Total number of capture sessions started",
	})

	SessionsEndedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "empytrone_sessions_ended_total",
		Help: "Total number of capture sessions released by final state",
	}, []string{"state"})
)

// AddChunk records one emitted chunk of n bytes.
func AddChunk(n int) {
	ChunksEmittedTotal.Inc()
	if n > 0 {
		ChunkBytesTotal.Add(float64(n))
	}
}

// IncEventWritten records one durable append and its latency.
func IncEventWritten(d time.Duration) {
	EventsWrittenTotal.Inc()
	EventWriteDuration.Observe(d.Seconds())
}

// IncEventDropped records a dropped event.
func IncEventDropped(reason string) {
	if reason == "" {
		reason = "unknown"
	}
	EventsDroppedTotal.WithLabelValues(reason).Inc()
}

// IncLogStorageError records a filesystem failure (op: mkdir, open, write, sync, close).
func IncLogStorageError(op string) {
	LogStorageErrorsTotal.WithLabelValues(op).Inc()
}

// IncStateTransition records a transition attempt outcome.
func IncStateTransition(from, to string, accepted bool) {
	StateTransitionsTotal.WithLabelValues(from, to, strconv.FormatBool(accepted)).Inc()
}

// IncSessionStarted records a session start.
func IncSessionStarted() {
	SessionsStartedTotal.Inc()
}

// IncSessionEnded records a session release with its final state.
func IncSessionEnded(state string) {
	if state == "" {
		state = "unknown"
	}
	SessionsEndedTotal.WithLabelValues(state).Inc()
}

// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package eventlog

import (
	"fmt"
	"path/filepath"
	"runtime"
	"time"
)

// Event names written by the session core.
const (
	EventSessionStarted          = "session_started"
	EventSessionEnded            = "session_ended"
	EventSessionSuperseded       = "session_superseded"
	EventSessionFailed           = "session_failed"
	EventChunkEmitted            = "chunk_emitted"
	EventStateTransition         = "state_transition"
	EventStateTransitionRejected = "state_transition_rejected"
	EventStateReset              = "state_reset"
)

// Layers tag the subsystem an event originated from.
const (
	LayerAudio         = "audio"
	LayerSession       = "session"
	LayerTranscription = "transcription"
	LayerUI            = "ui"
)

// Event is one structured record. Optional fields are omitted from the
// encoded line when unset.
type Event struct {
	SessionID      string            `json:"sessionId"`
	Event          string            `json:"event"`
	Layer          string            `json:"layer"`
	SourceLocation string            `json:"sourceFile"`
	SeqID          *uint64           `json:"seqId,omitempty"`
	MonotonicMs    int64             `json:"tMonotonic"`
	WallTimestamp  string            `json:"tWall"`
	ByteCount      *int              `json:"bytes,omitempty"`
	DurationMs     *int64            `json:"durationMs,omitempty"`
	State          string            `json:"state,omitempty"`
	Metadata       map[string]string `json:"meta,omitempty"`
}

// clone copies the pointer and map fields so the queued record no longer
// shares memory with the producer.
func (e Event) clone() Event {
	if e.SeqID != nil {
		v := *e.SeqID
		e.SeqID = &v
	}
	if e.ByteCount != nil {
		v := *e.ByteCount
		e.ByteCount = &v
	}
	if e.DurationMs != nil {
		v := *e.DurationMs
		e.DurationMs = &v
	}
	if e.Metadata != nil {
		m := make(map[string]string, len(e.Metadata))
		for k, v := range e.Metadata {
			m[k] = v
		}
		e.Metadata = m
	}
	return e
}

// Uint64 returns a pointer to v, for optional fields.
func Uint64(v uint64) *uint64 { return &v }

// Int returns a pointer to v, for optional fields.
func Int(v int) *int { return &v }

// Int64 returns a pointer to v, for optional fields.
func Int64(v int64) *int64 { return &v }

// WallTime formats t as an ISO-8601 UTC timestamp.
func WallTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// Caller returns "file.go:line" for the caller skip frames above Caller itself.
func Caller(skip int) string {
	_, file, line, ok := runtime.Caller(skip + 1)
	if !ok {
		return "unknown"
	}
	return fmt.Sprintf("%s:%d", filepath.Base(file), line)
}

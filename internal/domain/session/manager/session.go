// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package manager

import (
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ManuGH/empytrone/internal/audio"
	"github.com/ManuGH/empytrone/internal/domain/session/lifecycle"
	"github.com/ManuGH/empytrone/internal/domain/session/model"
	"github.com/ManuGH/empytrone/internal/eventlog"
	xglog "github.com/ManuGH/empytrone/internal/log"
	"github.com/ManuGH/empytrone/internal/metrics"
	"github.com/rs/zerolog"
)

// Session is one capture session: a chunk buffer and a lifecycle machine
// whose activity is recorded in the session's event log.
//
// Append must be called from a single producer. Lifecycle methods and
// accessors are safe for concurrent use.
type Session struct {
	id          string
	mgr         *Manager
	logPath     string
	startedMono time.Time
	startedWall time.Time
	logger      zerolog.Logger
	machine     *lifecycle.Machine

	appendMu sync.Mutex
	buffer   *audio.Buffer
	released bool

	closed      atomic.Bool
	chunks      atomic.Uint64
	bytes       atomic.Int64
	transitions atomic.Int64
	rejected    atomic.Int64
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// LogPath returns the session's JSONL file.
func (s *Session) LogPath() string { return s.logPath }

// State returns the lifecycle state.
func (s *Session) State() model.SessionState { return s.machine.State() }

// Released reports whether the session has ended, failed or been superseded.
func (s *Session) Released() bool { return s.closed.Load() }

// Buffered returns the residue waiting for the next chunk.
func (s *Session) Buffered() int {
	s.appendMu.Lock()
	defer s.appendMu.Unlock()
	return s.buffer.Buffered()
}

// Chunks returns the number of chunks emitted so far.
func (s *Session) Chunks() uint64 { return s.chunks.Load() }

// Append feeds captured bytes to the chunk buffer. Every completed chunk is
// logged as chunk_emitted and then handed to the downstream consumer.
// Bytes appended after the session is released are discarded.
func (s *Session) Append(samples []byte) {
	s.appendMu.Lock()
	defer s.appendMu.Unlock()
	if s.released {
		return
	}
	s.buffer.Append(samples)
}

// Transition requests a lifecycle move and reports whether it was legal.
func (s *Session) Transition(to model.SessionState) bool {
	return s.machine.Transition(to)
}

// Reset forces the machine back to idle, bypassing the transition table.
func (s *Session) Reset() {
	s.machine.Reset()
}

// Begin walks idle -> starting -> recording.
func (s *Session) Begin() error {
	if s.Released() {
		return ErrReleased
	}
	if !s.machine.Transition(model.StateStarting) || !s.machine.Transition(model.StateRecording) {
		return fmt.Errorf("%w: cannot begin recording from %s", ErrInvalidState, s.State())
	}
	return nil
}

// Degrade marks a recording session as degraded.
func (s *Session) Degrade() bool {
	return s.machine.Transition(model.StateDegraded)
}

// Resume returns a degraded session to recording.
func (s *Session) Resume() bool {
	return s.machine.Transition(model.StateRecording)
}

// Stop walks recording or degraded -> stopping -> ended and releases the
// session: the log is closed and the summary and catalog row are written.
func (s *Session) Stop() (Summary, error) {
	if s.Released() {
		return Summary{}, ErrReleased
	}
	switch s.State() {
	case model.StateRecording, model.StateDegraded:
		s.machine.Transition(model.StateStopping)
	}
	if !s.machine.Transition(model.StateEnded) {
		return Summary{}, fmt.Errorf("%w: cannot stop from %s", ErrInvalidState, s.State())
	}
	sum, ok := s.mgr.finish(s, model.StateEnded, false)
	if !ok {
		return Summary{}, ErrReleased
	}
	return sum, nil
}

// Fail moves the session to error, records cause and releases the session.
func (s *Session) Fail(cause error) error {
	if s.Released() {
		return ErrReleased
	}
	if !s.machine.Transition(model.StateError) {
		return fmt.Errorf("%w: cannot fail from %s", ErrInvalidState, s.State())
	}
	msg := "unknown"
	if cause != nil {
		msg = cause.Error()
	}
	s.record(eventlog.Event{
		Event:          eventlog.EventSessionFailed,
		Layer:          eventlog.LayerSession,
		SourceLocation: eventlog.Caller(0),
		State:          string(model.StateError),
		Metadata:       map[string]string{"error": msg},
	})
	s.logger.Error().Str(xglog.FieldEvent, "session.failed").Str("cause", msg).Msg("session failed")
	if _, ok := s.mgr.finish(s, model.StateError, false); !ok {
		return ErrReleased
	}
	return nil
}

// Recover moves an ended or failed session back to idle, closing the
// lifecycle cycle. The session stays released.
func (s *Session) Recover() bool {
	return s.machine.Transition(model.StateIdle)
}

func (s *Session) markReleased() bool {
	s.appendMu.Lock()
	defer s.appendMu.Unlock()
	if s.released {
		return false
	}
	s.released = true
	s.closed.Store(true)
	return true
}

// record writes ev to the log unless the session has been released.
func (s *Session) record(ev eventlog.Event) {
	if s.closed.Load() {
		return
	}
	s.recordReleased(ev)
}

// recordReleased writes ev regardless of release, for the closing event.
func (s *Session) recordReleased(ev eventlog.Event) {
	ev.SessionID = s.id
	s.mgr.sink.Record(ev)
}

func (s *Session) reportTransition(t lifecycle.Transition) {
	metrics.IncStateTransition(string(t.From), string(t.To), t.Accepted)

	meta := map[string]string{"from": string(t.From), "to": string(t.To)}
	ev := eventlog.Event{
		Layer:          eventlog.LayerSession,
		SourceLocation: eventlog.Caller(0),
		Metadata:       meta,
	}
	switch {
	case t.Forced:
		s.transitions.Add(1)
		ev.Event = eventlog.EventStateReset
		ev.State = string(t.To)
	case t.Accepted:
		s.transitions.Add(1)
		ev.Event = eventlog.EventStateTransition
		ev.State = string(t.To)
	default:
		s.rejected.Add(1)
		if !s.mgr.LogRejected() {
			return
		}
		ev.Event = eventlog.EventStateTransitionRejected
		ev.State = string(t.From)
		meta["reason"] = t.Reason
	}
	s.record(ev)
}

func (s *Session) consumeChunk(c audio.Chunk) {
	s.chunks.Add(1)
	s.bytes.Add(int64(c.ByteCount))
	metrics.AddChunk(c.ByteCount)

	s.record(eventlog.Event{
		Event:          eventlog.EventChunkEmitted,
		Layer:          eventlog.LayerAudio,
		SourceLocation: eventlog.Caller(0),
		SeqID:          eventlog.Uint64(c.SeqID),
		ByteCount:      eventlog.Int(c.ByteCount),
		DurationMs:     eventlog.Int64(audio.ChunkDuration(c.ByteCount, s.mgr.cfg.SampleRate).Milliseconds()),
		Metadata:       map[string]string{"elapsedMs": strconv.FormatInt(c.SessionElapsedMs, 10)},
	})
	if s.mgr.downstream != nil {
		s.mgr.downstream.ConsumeChunk(c)
	}
}

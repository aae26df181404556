// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package manager drives capture sessions: it binds one chunk buffer, one
// lifecycle machine and the session-scoped event log into a Session and
// guarantees that at most one Session is open at a time.
package manager

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ManuGH/empytrone/internal/audio"
	"github.com/ManuGH/empytrone/internal/catalog"
	"github.com/ManuGH/empytrone/internal/domain/session/lifecycle"
	"github.com/ManuGH/empytrone/internal/domain/session/model"
	"github.com/ManuGH/empytrone/internal/eventlog"
	xglog "github.com/ManuGH/empytrone/internal/log"
	"github.com/ManuGH/empytrone/internal/metrics"
	"github.com/ManuGH/empytrone/internal/platform/clock"
	"github.com/ManuGH/empytrone/internal/platform/paths"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	// ErrInvalidState is returned when a lifecycle operation is not legal
	// from the session's current state.
	ErrInvalidState = errors.New("operation not allowed in current state")
	// ErrReleased is returned for operations on a session that has ended,
	// failed or been superseded.
	ErrReleased = errors.New("session released")
)

const catalogTimeout = 5 * time.Second

// Config holds the per-session parameters.
type Config struct {
	ChunkSize    int
	SampleRate   int
	LogRejected  bool
	WriteSummary bool
	// LogDir is where session logs live; summaries are written next to them.
	LogDir string
}

// EventSink is the session-scoped durable log. *eventlog.Log implements it.
type EventSink interface {
	StartSession(id string)
	EndSession()
	Record(ev eventlog.Event)
	CurrentSessionID() (string, bool)
}

// Catalog indexes sessions. *catalog.Store implements it.
type Catalog interface {
	SessionStarted(ctx context.Context, id, logPath string, startedAt time.Time) error
	SessionEnded(ctx context.Context, id string, end catalog.Ending) error
}

// Option configures a Manager.
type Option func(*Manager)

// WithCatalog records session starts and ends in c.
func WithCatalog(c Catalog) Option {
	return func(m *Manager) { m.catalog = c }
}

// WithDownstream forwards every emitted chunk to c after it has been logged.
// c runs inside Session.Append and must not call back into the Session.
func WithDownstream(c audio.ChunkConsumer) Option {
	return func(m *Manager) { m.downstream = c }
}

// WithClock overrides the monotonic clock used for chunk timing and summaries.
func WithClock(c clock.Clock) Option {
	return func(m *Manager) {
		if c != nil {
			m.clock = c
		}
	}
}

// Manager owns the current Session.
type Manager struct {
	cfg        Config
	sink       EventSink
	catalog    Catalog
	downstream audio.ChunkConsumer
	clock      clock.Clock
	logger     zerolog.Logger

	logRejected atomic.Bool

	mu      sync.Mutex
	current *Session
	last    *Summary
}

// New validates cfg and returns a Manager writing to sink.
func New(cfg Config, sink EventSink, opts ...Option) (*Manager, error) {
	if sink == nil {
		return nil, errors.New("manager: event sink is required")
	}
	if cfg.ChunkSize <= 0 {
		return nil, fmt.Errorf("manager: %w: %d", audio.ErrInvalidChunkSize, cfg.ChunkSize)
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = audio.DefaultSampleRate
	}
	if cfg.WriteSummary && cfg.LogDir == "" {
		return nil, errors.New("manager: summaries need a log directory")
	}
	m := &Manager{
		cfg:    cfg,
		sink:   sink,
		clock:  clock.System,
		logger: xglog.WithComponent("session"),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logRejected.Store(cfg.LogRejected)
	return m, nil
}

// SetLogRejected toggles durable logging of rejected transitions. It applies
// to open sessions immediately.
func (m *Manager) SetLogRejected(v bool) {
	if m.logRejected.Swap(v) != v {
		m.logger.Info().
			Str(xglog.FieldEvent, "session.policy_changed").
			Bool("log_rejected", v).
			Msg("rejected transition logging updated")
	}
}

// LogRejected reports the current rejected-transition policy.
func (m *Manager) LogRejected() bool { return m.logRejected.Load() }

// Start opens a new Session. An empty id is replaced by a random UUID.
// A Session that is still open is superseded: it receives a
// session_superseded event and is released before the new log opens.
func (m *Manager) Start(id string) (*Session, error) {
	if id == "" {
		id = uuid.NewString()
	}
	if err := paths.ValidateSessionID(id); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if prev := m.current; prev != nil {
		m.logger.Warn().
			Str(xglog.FieldEvent, "session.superseded").
			Str(xglog.FieldSessionID, prev.id).
			Str("next_session_id", id).
			Msg("starting a session while another is open")
		m.finishLocked(prev, prev.State(), true)
	}

	s, err := m.newSession(id)
	if err != nil {
		return nil, err
	}
	m.sink.StartSession(id)
	m.current = s

	s.record(eventlog.Event{
		Event:          eventlog.EventSessionStarted,
		Layer:          eventlog.LayerSession,
		SourceLocation: eventlog.Caller(0),
		State:          string(model.StateIdle),
		Metadata: map[string]string{
			"chunkSize":  strconv.Itoa(m.cfg.ChunkSize),
			"sampleRate": strconv.Itoa(m.cfg.SampleRate),
		},
	})
	metrics.IncSessionStarted()

	if m.catalog != nil {
		ctx, cancel := context.WithTimeout(context.Background(), catalogTimeout)
		if err := m.catalog.SessionStarted(ctx, id, s.logPath, s.startedWall); err != nil {
			s.logger.Error().Err(err).Str(xglog.FieldEvent, "session.catalog_failed").Msg("failed to index session start")
		}
		cancel()
	}

	s.logger.Info().Str(xglog.FieldEvent, "session.started").Str(xglog.FieldPath, s.logPath).Msg("session started")
	return s, nil
}

// Current returns the open Session, or nil.
func (m *Manager) Current() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Last returns the summary of the most recently released Session.
func (m *Manager) Last() (Summary, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.last == nil {
		return Summary{}, false
	}
	return *m.last, true
}

// Status is a snapshot of the manager for the status surface.
type Status struct {
	Active      bool     `json:"active"`
	SessionID   string   `json:"sessionId,omitempty"`
	State       string   `json:"state"`
	ElapsedMs   int64    `json:"elapsedMs"`
	Chunks      uint64   `json:"chunks"`
	Bytes       int64    `json:"bytes"`
	Buffered    int      `json:"buffered"`
	Transitions int64    `json:"transitions"`
	Rejected    int64    `json:"rejectedTransitions"`
	LogRejected bool     `json:"logRejected"`
	Last        *Summary `json:"last,omitempty"`
}

// Status reports the open Session, if any, and the last released one.
func (m *Manager) Status() Status {
	m.mu.Lock()
	cur, last := m.current, m.last
	m.mu.Unlock()

	st := Status{State: string(model.StateIdle), LogRejected: m.LogRejected()}
	if last != nil {
		l := *last
		st.Last = &l
	}
	if cur == nil {
		return st
	}
	st.Active = true
	st.SessionID = cur.id
	st.State = string(cur.State())
	st.ElapsedMs = clock.ElapsedMs(cur.startedMono, m.clock.Now())
	st.Chunks = cur.chunks.Load()
	st.Bytes = cur.bytes.Load()
	st.Buffered = cur.Buffered()
	st.Transitions = cur.transitions.Load()
	st.Rejected = cur.rejected.Load()
	return st
}

// Shutdown stops the open Session, if any, in whatever state it is in.
// Recording sessions are walked to ended; others are released as they are.
func (m *Manager) Shutdown() {
	s := m.Current()
	if s == nil {
		return
	}
	switch s.State() {
	case model.StateRecording, model.StateDegraded, model.StateStopping:
		if _, err := s.Stop(); err == nil {
			return
		}
	}
	m.finish(s, s.State(), false)
}

func (m *Manager) newSession(id string) (*Session, error) {
	logPath, err := paths.SessionLogPath(m.logDirOrDot(), id)
	if err != nil {
		return nil, err
	}
	now := m.clock.Now()
	s := &Session{
		id:          id,
		mgr:         m,
		logPath:     logPath,
		startedMono: now,
		startedWall: time.Now().UTC(),
		logger:      xglog.WithSession(m.logger, id),
	}
	s.machine = lifecycle.NewMachine(lifecycle.ReporterFunc(s.reportTransition))
	buf, err := audio.NewBuffer(m.cfg.ChunkSize, audio.ConsumerFunc(s.consumeChunk), audio.WithClock(m.clock))
	if err != nil {
		return nil, err
	}
	s.buffer = buf
	return s, nil
}

func (m *Manager) logDirOrDot() string {
	if m.cfg.LogDir == "" {
		return "."
	}
	return m.cfg.LogDir
}

func (m *Manager) finish(s *Session, final model.SessionState, superseded bool) (Summary, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.finishLocked(s, final, superseded)
}

// finishLocked releases s exactly once: it writes the closing event, closes
// the log if s is still current, then persists the summary and catalog row.
func (m *Manager) finishLocked(s *Session, final model.SessionState, superseded bool) (Summary, bool) {
	if !s.markReleased() {
		return Summary{}, false
	}

	name := eventlog.EventSessionEnded
	if superseded {
		name = eventlog.EventSessionSuperseded
	}
	sum := s.summarize(final, superseded)
	s.recordReleased(eventlog.Event{
		Event:          name,
		Layer:          eventlog.LayerSession,
		SourceLocation: eventlog.Caller(0),
		SeqID:          lastSeq(sum.Chunks),
		State:          string(final),
		Metadata: map[string]string{
			"chunks":   strconv.FormatUint(sum.Chunks, 10),
			"bytes":    strconv.FormatInt(sum.Bytes, 10),
			"rejected": strconv.FormatInt(sum.Rejected, 10),
		},
	})
	if m.current == s {
		m.sink.EndSession()
		m.current = nil
	}

	if m.cfg.WriteSummary {
		path, err := paths.SessionSummaryPath(m.cfg.LogDir, s.id)
		if err == nil {
			err = writeSummary(path, sum)
		}
		if err != nil {
			metrics.IncLogStorageError("summary")
			s.logger.Error().Err(err).Str(xglog.FieldEvent, "session.summary_failed").Msg("failed to write session summary")
		} else {
			sum.SummaryPath = path
		}
	}
	if m.catalog != nil {
		ctx, cancel := context.WithTimeout(context.Background(), catalogTimeout)
		err := m.catalog.SessionEnded(ctx, s.id, catalog.Ending{
			EndedAt:    sum.endedWall,
			FinalState: sum.FinalState,
			Chunks:     sum.Chunks,
			Bytes:      sum.Bytes,
			Rejected:   int(sum.Rejected),
		})
		cancel()
		if err != nil {
			s.logger.Error().Err(err).Str(xglog.FieldEvent, "session.catalog_failed").Msg("failed to index session end")
		}
	}

	metrics.IncSessionEnded(string(final))
	m.last = &sum
	s.logger.Info().
		Str(xglog.FieldEvent, "session.released").
		Str(xglog.FieldNewState, string(final)).
		Bool("superseded", superseded).
		Uint64("chunks", sum.Chunks).
		Msg("session released")
	return sum, true
}

func lastSeq(chunks uint64) *uint64 {
	if chunks == 0 {
		return nil
	}
	return eventlog.Uint64(chunks - 1)
}

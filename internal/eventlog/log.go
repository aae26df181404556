// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package eventlog

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	xglog "github.com/ManuGH/empytrone/internal/log"
	"github.com/ManuGH/empytrone/internal/metrics"
	"github.com/ManuGH/empytrone/internal/platform/clock"
	"github.com/ManuGH/empytrone/internal/platform/paths"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// ErrClosed is returned by Sync after Close.
var ErrClosed = errors.New("event log closed")

// Options configures a Log.
type Options struct {
	// Dir is the destination directory, created on demand.
	Dir string
	// Clock is the monotonic time source (defaults to the system clock).
	Clock clock.Clock
	// Logger receives diagnostics (defaults to the "eventlog" component logger).
	Logger *zerolog.Logger
	// NoSync skips the fsync after each appended record.
	NoSync bool
}

// Stats is a point-in-time view of the log counters.
type Stats struct {
	SessionID string `json:"sessionId,omitempty"`
	Written   uint64 `json:"written"`
	Dropped   uint64 `json:"dropped"`
	Pending   int    `json:"pending"`
}

type taskKind int

const (
	taskOpen taskKind = iota
	taskWrite
	taskClose
	taskBarrier
)

type task struct {
	kind  taskKind
	gen   uint64
	id    string
	path  string
	event Event
	done  chan struct{}
}

// Log appends structured events, one JSON object per line, to a file scoped
// to the current session.
//
// Submissions from any goroutine are accepted into one ordered queue under a
// short critical section and never wait for file I/O. A single worker
// goroutine owns the file handle and applies queued work in submission order.
// At most one session is open per Log.
type Log struct {
	dir        string
	clock      clock.Clock
	logger     zerolog.Logger
	fsync      bool
	dropNotice rate.Sometimes

	mu        sync.Mutex
	cond      *sync.Cond
	queue     []task
	sessionID string
	base      time.Time
	gen       uint64
	closed    bool

	done    chan struct{}
	written atomic.Uint64
	dropped atomic.Uint64
}

// New creates a Log writing under opts.Dir and starts its worker.
func New(opts Options) (*Log, error) {
	if opts.Dir == "" {
		return nil, errors.New("eventlog: directory is required")
	}
	l := &Log{
		dir:        opts.Dir,
		clock:      opts.Clock,
		fsync:      !opts.NoSync,
		dropNotice: rate.Sometimes{First: 1, Interval: 5 * time.Second},
		done:       make(chan struct{}),
	}
	if l.clock == nil {
		l.clock = clock.System
	}
	if opts.Logger != nil {
		l.logger = *opts.Logger
	} else {
		l.logger = xglog.WithComponent("eventlog")
	}
	l.cond = sync.NewCond(&l.mu)
	go l.run()
	return l, nil
}

// Dir returns the destination directory.
func (l *Log) Dir() string { return l.dir }

// StartSession opens <dir>/<id>.jsonl in append mode and makes id current.
// An already open session is ended first. The identity swap and the new time
// zero are applied atomically with respect to every other call; the prior
// file is closed before the new one receives any record.
func (l *Log) StartSession(id string) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		l.logger.Warn().Str(xglog.FieldEvent, "eventlog.start_after_close").
			Str(xglog.FieldSessionID, id).Msg("ignoring session start on closed event log")
		return
	}
	if l.sessionID != "" {
		l.endLocked()
	}
	path, err := paths.SessionLogPath(l.dir, id)
	if err != nil {
		l.mu.Unlock()
		metrics.IncLogStorageError("open")
		l.logger.Error().Err(err).Str(xglog.FieldEvent, "eventlog.invalid_session").
			Str(xglog.FieldSessionID, id).Msg("cannot start session log")
		return
	}
	l.gen++
	l.sessionID = id
	l.base = l.clock.Now()
	l.enqueueLocked(task{kind: taskOpen, gen: l.gen, id: id, path: path})
	l.mu.Unlock()
}

// EndSession closes the current destination. It is a no-op with no session.
func (l *Log) EndSession() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.sessionID == "" {
		return
	}
	l.endLocked()
}

func (l *Log) endLocked() {
	l.enqueueLocked(task{kind: taskClose, gen: l.gen})
	l.sessionID = ""
	l.base = time.Time{}
}

// Log submits ev exactly as given. With no open session the event is
// dropped and the drop reported on the diagnostic channel.
func (l *Log) Log(ev Event) {
	l.submit(ev, false)
}

// Record stamps ev with the session id (when empty), the monotonic offset
// and the wall time at the serialization point, then submits it. Records
// submitted through Record are therefore non-decreasing in MonotonicMs in
// log order. An event carrying another session's id is dropped.
func (l *Log) Record(ev Event) {
	l.submit(ev, true)
}

func (l *Log) submit(ev Event, stamp bool) {
	l.mu.Lock()
	var reason string
	switch {
	case l.closed:
		reason = metrics.DropClosed
	case l.sessionID == "":
		reason = metrics.DropNoSession
	case stamp && ev.SessionID != "" && ev.SessionID != l.sessionID:
		reason = metrics.DropSessionMismatch
	}
	if reason != "" {
		l.mu.Unlock()
		l.drop(reason, ev.Event, nil)
		return
	}
	if stamp {
		now := l.clock.Now()
		if ev.SessionID == "" {
			ev.SessionID = l.sessionID
		}
		ev.MonotonicMs = clock.ElapsedMs(l.base, now)
		ev.WallTimestamp = WallTime(now)
	}
	l.enqueueLocked(task{kind: taskWrite, gen: l.gen, event: ev.clone()})
	l.mu.Unlock()
}

// MonotonicTime returns milliseconds since the current session's time zero,
// or 0 when no session is open.
func (l *Log) MonotonicTime() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.sessionID == "" {
		return 0
	}
	return clock.ElapsedMs(l.base, l.clock.Now())
}

// CurrentSessionID returns the open session id.
func (l *Log) CurrentSessionID() (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sessionID, l.sessionID != ""
}

// Stats returns the current counters.
func (l *Log) Stats() Stats {
	l.mu.Lock()
	id, pending := l.sessionID, len(l.queue)
	l.mu.Unlock()
	return Stats{
		SessionID: id,
		Written:   l.written.Load(),
		Dropped:   l.dropped.Load(),
		Pending:   pending,
	}
}

// Sync blocks until everything submitted before the call has been applied.
func (l *Log) Sync(ctx context.Context) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return ErrClosed
	}
	done := make(chan struct{})
	l.enqueueLocked(task{kind: taskBarrier, done: done})
	l.mu.Unlock()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close ends the open session, drains the queue and stops the worker.
// Later submissions are dropped.
func (l *Log) Close() error {
	l.mu.Lock()
	if !l.closed {
		if l.sessionID != "" {
			l.endLocked()
		}
		l.closed = true
		l.cond.Broadcast()
	}
	l.mu.Unlock()
	<-l.done
	return nil
}

func (l *Log) enqueueLocked(t task) {
	l.queue = append(l.queue, t)
	l.cond.Signal()
}

func (l *Log) drop(reason, name string, err error) {
	n := l.dropped.Add(1)
	metrics.IncEventDropped(reason)
	l.dropNotice.Do(func() {
		ev := l.logger.Warn()
		if err != nil {
			ev = ev.Err(err)
		}
		ev.Str(xglog.FieldEvent, "eventlog.drop").
			Str(xglog.FieldReason, reason).
			Str("dropped_event", name).
			Uint64(xglog.FieldDropped, n).
			Msg("dropping structured event")
	})
}

// fail puts the log in drop mode after a storage error, unless a newer
// session has been started in the meantime.
func (l *Log) fail(gen uint64) {
	l.mu.Lock()
	if l.gen == gen {
		l.sessionID = ""
		l.base = time.Time{}
	}
	l.mu.Unlock()
}

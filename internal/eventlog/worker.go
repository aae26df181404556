// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package eventlog

import (
	"encoding/json"
	"os"
	"time"

	xglog "github.com/ManuGH/empytrone/internal/log"
	"github.com/ManuGH/empytrone/internal/metrics"
)

// sink is the worker-owned destination. Only run touches it.
type sink struct {
	file *os.File
	gen  uint64
	id   string
	path string
}

func (l *Log) run() {
	defer close(l.done)
	var s sink
	for {
		l.mu.Lock()
		for len(l.queue) == 0 && !l.closed {
			l.cond.Wait()
		}
		batch := l.queue
		l.queue = nil
		closed := l.closed
		l.mu.Unlock()

		for _, t := range batch {
			l.apply(&s, t)
		}
		if closed && len(batch) == 0 {
			l.closeSink(&s)
			return
		}
	}
}

func (l *Log) apply(s *sink, t task) {
	switch t.kind {
	case taskOpen:
		l.closeSink(s)
		l.openSink(s, t)
	case taskClose:
		if s.file != nil && s.gen == t.gen {
			l.closeSink(s)
		}
	case taskWrite:
		l.write(s, t)
	case taskBarrier:
		close(t.done)
	}
}

func (l *Log) openSink(s *sink, t task) {
	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		metrics.IncLogStorageError("mkdir")
		l.logger.Error().Err(err).
			Str(xglog.FieldEvent, "eventlog.mkdir_failed").
			Str(xglog.FieldPath, l.dir).
			Str(xglog.FieldSessionID, t.id).
			Msg("failed to create log directory")
		l.fail(t.gen)
		return
	}
	f, err := os.OpenFile(t.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		metrics.IncLogStorageError("open")
		l.logger.Error().Err(err).
			Str(xglog.FieldEvent, "eventlog.open_failed").
			Str(xglog.FieldPath, t.path).
			Str(xglog.FieldSessionID, t.id).
			Msg("failed to open session log")
		l.fail(t.gen)
		return
	}
	*s = sink{file: f, gen: t.gen, id: t.id, path: t.path}
	l.logger.Debug().
		Str(xglog.FieldEvent, "eventlog.opened").
		Str(xglog.FieldPath, t.path).
		Str(xglog.FieldSessionID, t.id).
		Msg("session log opened")
}

func (l *Log) closeSink(s *sink) {
	if s.file == nil {
		return
	}
	if err := s.file.Close(); err != nil {
		metrics.IncLogStorageError("close")
		l.logger.Error().Err(err).
			Str(xglog.FieldEvent, "eventlog.close_failed").
			Str(xglog.FieldPath, s.path).
			Str(xglog.FieldSessionID, s.id).
			Msg("failed to close session log")
	} else {
		l.logger.Debug().
			Str(xglog.FieldEvent, "eventlog.closed").
			Str(xglog.FieldPath, s.path).
			Str(xglog.FieldSessionID, s.id).
			Msg("session log closed")
	}
	*s = sink{}
}

func (l *Log) write(s *sink, t task) {
	if s.file == nil || s.gen != t.gen {
		l.drop(metrics.DropNoFile, t.event.Event, nil)
		return
	}
	start := time.Now()

	line, err := json.Marshal(t.event)
	if err != nil {
		l.logger.Error().Err(err).
			Str(xglog.FieldEvent, "eventlog.encode_failed").
			Str(xglog.FieldSessionID, s.id).
			Str("dropped_event", t.event.Event).
			Msg("failed to encode structured event")
		l.drop(metrics.DropEncode, t.event.Event, err)
		return
	}
	line = append(line, '\n')

	if _, err := s.file.Write(line); err != nil {
		metrics.IncLogStorageError("write")
		l.logger.Error().Err(err).
			Str(xglog.FieldEvent, "eventlog.write_failed").
			Str(xglog.FieldPath, s.path).
			Str(xglog.FieldSessionID, s.id).
			Msg("failed to append to session log, dropping until next session")
		l.drop(metrics.DropWrite, t.event.Event, err)
		gen := s.gen
		l.closeSink(s)
		l.fail(gen)
		return
	}
	if l.fsync {
		if err := s.file.Sync(); err != nil {
			metrics.IncLogStorageError("sync")
			l.logger.Error().Err(err).
				Str(xglog.FieldEvent, "eventlog.sync_failed").
				Str(xglog.FieldPath, s.path).
				Str(xglog.FieldSessionID, s.id).
				Msg("failed to flush session log, dropping until next session")
			l.drop(metrics.DropWrite, t.event.Event, err)
			gen := s.gen
			l.closeSink(s)
			l.fail(gen)
			return
		}
	}
	l.written.Add(1)
	metrics.IncEventWritten(time.Since(start))
}

// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package eventlog

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"time"
)

const maxLineBytes = 1 << 20

// ErrInconsistentLog is wrapped by Verify for content violations.
var ErrInconsistentLog = errors.New("inconsistent session log")

// ReadFile decodes every line of a session log.
func ReadFile(path string) ([]Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open session log: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

// Decode reads newline-delimited events from r. Blank lines are skipped.
func Decode(r io.Reader) ([]Event, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var out []Event
	line := 0
	for sc.Scan() {
		line++
		raw := sc.Bytes()
		if len(raw) == 0 {
			continue
		}
		var ev Event
		if err := json.Unmarshal(raw, &ev); err != nil {
			return out, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, ev)
	}
	if err := sc.Err(); err != nil {
		return out, fmt.Errorf("scan session log: %w", err)
	}
	return out, nil
}

// segmentSlack absorbs the second precision of tWall when deciding whether a
// drop in tMonotonic is a reopened session.
const segmentSlack = time.Second

// Verify checks that all events share one session id and that MonotonicMs
// never decreases within a segment. Restarting a session id appends a new
// segment whose clock starts again at zero; see StartsSegment.
func Verify(events []Event) error {
	if len(events) == 0 {
		return nil
	}
	id := events[0].SessionID
	for i, ev := range events {
		if ev.SessionID != id {
			return fmt.Errorf("%w: line %d has session %q, want %q", ErrInconsistentLog, i+1, ev.SessionID, id)
		}
		if i == 0 || StartsSegment(events[i-1], ev) {
			continue
		}
		if prev := events[i-1].MonotonicMs; ev.MonotonicMs < prev {
			return fmt.Errorf("%w: line %d tMonotonic %d < %d", ErrInconsistentLog, i+1, ev.MonotonicMs, prev)
		}
	}
	return nil
}

// StartsSegment reports whether next opens a new segment after prev: it is a
// session_started record, or its tMonotonic drops while the session base it
// implies (tWall - tMonotonic) is not earlier than prev's tWall.
func StartsSegment(prev, next Event) bool {
	if next.Event == EventSessionStarted {
		return true
	}
	if next.MonotonicMs >= prev.MonotonicMs {
		return false
	}
	pw, err := time.Parse(time.RFC3339Nano, prev.WallTimestamp)
	if err != nil {
		return false
	}
	nw, err := time.Parse(time.RFC3339Nano, next.WallTimestamp)
	if err != nil {
		return false
	}
	base := nw.Add(-time.Duration(next.MonotonicMs) * time.Millisecond)
	return !base.Before(pw.Add(-segmentSlack))
}

// Summary aggregates a decoded session log.
type Summary struct {
	SessionID  string
	Events     int
	Segments   int
	ByName     map[string]int
	Chunks     int
	ChunkBytes int
	LastSeqID  *uint64
	LastState  string
	// DurationMs sums the last tMonotonic of every segment.
	DurationMs int64
	Layers     []string
}

// Summarize aggregates events for display.
func Summarize(events []Event) Summary {
	s := Summary{ByName: map[string]int{}}
	layers := map[string]struct{}{}
	var segMax int64
	for i, ev := range events {
		if s.SessionID == "" {
			s.SessionID = ev.SessionID
		}
		if i == 0 {
			s.Segments = 1
		} else if StartsSegment(events[i-1], ev) {
			s.Segments++
			s.DurationMs += segMax
			segMax = 0
		}
		s.Events++
		s.ByName[ev.Event]++
		layers[ev.Layer] = struct{}{}
		if ev.Event == EventChunkEmitted {
			s.Chunks++
			if ev.ByteCount != nil {
				s.ChunkBytes += *ev.ByteCount
			}
			if ev.SeqID != nil {
				v := *ev.SeqID
				s.LastSeqID = &v
			}
		}
		if ev.State != "" {
			s.LastState = ev.State
		}
		if ev.MonotonicMs > segMax {
			segMax = ev.MonotonicMs
		}
	}
	s.DurationMs += segMax
	for l := range layers {
		s.Layers = append(s.Layers, l)
	}
	sort.Strings(s.Layers)
	return s
}

// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package manager

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ManuGH/empytrone/internal/domain/session/model"
	"github.com/ManuGH/empytrone/internal/eventlog"
	xglog "github.com/ManuGH/empytrone/internal/log"
	"github.com/ManuGH/empytrone/internal/platform/clock"
	"github.com/google/renameio/v2"
)

// Summary describes a released session.
type Summary struct {
	SessionID   string `json:"sessionId"`
	StartedAt   string `json:"startedAt"`
	EndedAt     string `json:"endedAt"`
	FinalState  string `json:"finalState"`
	DurationMs  int64  `json:"durationMs"`
	Chunks      uint64 `json:"chunks"`
	Bytes       int64  `json:"bytes"`
	Transitions int64  `json:"transitions"`
	Rejected    int64  `json:"rejectedTransitions"`
	Superseded  bool   `json:"superseded,omitempty"`
	LogPath     string `json:"logPath"`
	SummaryPath string `json:"-"`

	endedWall time.Time
}

func (s *Session) summarize(final model.SessionState, superseded bool) Summary {
	ended := time.Now().UTC()
	return Summary{
		SessionID:   s.id,
		StartedAt:   eventlog.WallTime(s.startedWall),
		EndedAt:     eventlog.WallTime(ended),
		FinalState:  string(final),
		DurationMs:  clock.ElapsedMs(s.startedMono, s.mgr.clock.Now()),
		Chunks:      s.chunks.Load(),
		Bytes:       s.bytes.Load(),
		Transitions: s.transitions.Load(),
		Rejected:    s.rejected.Load(),
		Superseded:  superseded,
		LogPath:     s.logPath,
		endedWall:   ended,
	}
}

// ReadSummary decodes a summary file.
func ReadSummary(path string) (Summary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Summary{}, fmt.Errorf("read session summary: %w", err)
	}
	var sum Summary
	if err := json.Unmarshal(data, &sum); err != nil {
		return Summary{}, fmt.Errorf("decode session summary: %w", err)
	}
	return sum, nil
}

// writeSummary replaces path atomically and durably.
func writeSummary(path string, sum Summary) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create summary directory: %w", err)
	}
	pendingFile, err := renameio.NewPendingFile(path, renameio.WithPermissions(0o644))
	if err != nil {
		return fmt.Errorf("create pending summary file: %w", err)
	}
	defer func() {
		if err := pendingFile.Cleanup(); err != nil {
			xglog.L().Debug().Err(err).Str(xglog.FieldPath, path).Msg("cleanup pending summary file")
		}
	}()

	enc := json.NewEncoder(pendingFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(sum); err != nil {
		return fmt.Errorf("write summary data: %w", err)
	}
	if err := pendingFile.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("atomically replace summary file: %w", err)
	}
	return nil
}

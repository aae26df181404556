// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package catalog keeps a SQLite index of capture sessions and their logs.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ManuGH/empytrone/internal/persistence/sqlite"
)

const schemaVersion = 1

// ErrNotFound is returned when no entry exists for a session id.
var ErrNotFound = errors.New("catalog: session not found")

// Entry is one indexed session.
type Entry struct {
	SessionID  string    `json:"sessionId"`
	LogPath    string    `json:"logPath"`
	StartedAt  time.Time `json:"startedAt"`
	EndedAt    time.Time `json:"endedAt,omitempty"`
	FinalState string    `json:"finalState,omitempty"`
	Chunks     uint64    `json:"chunks"`
	Bytes      int64     `json:"bytes"`
	Rejected   int       `json:"rejectedTransitions"`
}

// Ended reports whether the session has been released.
func (e Entry) Ended() bool { return !e.EndedAt.IsZero() }

// Ending carries the values recorded when a session is released.
type Ending struct {
	EndedAt    time.Time
	FinalState string
	Chunks     uint64
	Bytes      int64
	Rejected   int
}

// Store is the SQLite-backed catalog.
type Store struct {
	DB   *sql.DB
	path string
}

// Open opens (creating if needed) the catalog at path and migrates it.
func Open(path string) (*Store, error) {
	db, err := sqlite.Open(path, sqlite.DefaultConfig())
	if err != nil {
		return nil, err
	}
	s := &Store{DB: db, path: path}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("catalog: migration failed: %w", err)
	}
	return s, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.DB.Close()
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

func (s *Store) migrate() error {
	current, err := sqlite.UserVersion(s.DB)
	if err != nil {
		return err
	}
	if current >= schemaVersion {
		return nil
	}

	tx, err := s.DB.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		session_id TEXT PRIMARY KEY,
		log_path TEXT NOT NULL,
		started_at_ms INTEGER NOT NULL,
		ended_at_ms INTEGER,
		final_state TEXT,
		chunks INTEGER NOT NULL DEFAULT 0,
		bytes INTEGER NOT NULL DEFAULT 0,
		rejected INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_started ON sessions(started_at_ms);
	`
	if _, err := tx.Exec(schema); err != nil {
		return err
	}
	if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", schemaVersion)); err != nil {
		return err
	}
	return tx.Commit()
}

// SessionStarted records a new session. Restarting a known id resets its
// end fields, matching the append-mode log file it points to.
func (s *Store) SessionStarted(ctx context.Context, id, logPath string, startedAt time.Time) error {
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO sessions (session_id, log_path, started_at_ms)
		VALUES (?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			log_path = excluded.log_path,
			started_at_ms = excluded.started_at_ms,
			ended_at_ms = NULL,
			final_state = NULL,
			chunks = 0,
			bytes = 0,
			rejected = 0`,
		id, logPath, startedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("catalog: record start of %s: %w", id, err)
	}
	return nil
}

// SessionEnded records the release of a session.
func (s *Store) SessionEnded(ctx context.Context, id string, end Ending) error {
	res, err := s.DB.ExecContext(ctx, `
		UPDATE sessions
		SET ended_at_ms = ?, final_state = ?, chunks = ?, bytes = ?, rejected = ?
		WHERE session_id = ?`,
		end.EndedAt.UnixMilli(), end.FinalState, int64(end.Chunks), end.Bytes, end.Rejected, id)
	if err != nil {
		return fmt.Errorf("catalog: record end of %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("catalog: record end of %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// Get returns the entry for id.
func (s *Store) Get(ctx context.Context, id string) (Entry, error) {
	row := s.DB.QueryRowContext(ctx, selectEntry+` WHERE session_id = ?`, id)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return e, err
}

// List returns up to limit entries, most recently started first.
// A non-positive limit returns all entries.
func (s *Store) List(ctx context.Context, limit int) ([]Entry, error) {
	q := selectEntry + ` ORDER BY started_at_ms DESC, session_id`
	args := []any{}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("catalog: list: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Verify runs a quick integrity check on the database file.
func (s *Store) Verify() ([]string, error) {
	return sqlite.VerifyIntegrity(s.path, "quick")
}

const selectEntry = `
	SELECT session_id, log_path, started_at_ms, ended_at_ms, final_state, chunks, bytes, rejected
	FROM sessions`

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(sc scanner) (Entry, error) {
	var (
		e       Entry
		started int64
		ended   sql.NullInt64
		state   sql.NullString
		chunks  int64
	)
	if err := sc.Scan(&e.SessionID, &e.LogPath, &started, &ended, &state, &chunks, &e.Bytes, &e.Rejected); err != nil {
		return Entry{}, err
	}
	e.StartedAt = time.UnixMilli(started).UTC()
	if ended.Valid {
		e.EndedAt = time.UnixMilli(ended.Int64).UTC()
	}
	e.FinalState = state.String
	e.Chunks = uint64(chunks)
	return e, nil
}

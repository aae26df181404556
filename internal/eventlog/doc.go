// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package eventlog is the durable, session-scoped structured event log.
//
// Each session writes newline-delimited JSON records to <dir>/<sessionId>.jsonl.
// Every line decodes on its own; the file is append-only and flushed after
// each record, so external tooling may tail it while it is written.
//
// tMonotonic is stamped by the log when a record is accepted and counts from
// StartSession. A chunk_emitted record carries the chunk's own elapsed time,
// taken from the chunk buffer's clock, in meta.elapsedMs; correlate audio
// timing with that value rather than tMonotonic. Reopening a session id
// appends a new segment whose tMonotonic restarts at zero.
//
// Failures (no open session, storage errors, encoding errors) never reach the
// producer: the affected events are dropped, counted, and reported on the
// diagnostic logger.
package eventlog

// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldSessionID = "session_id"
	FieldSeqID     = "seq_id"

	// Process fields
	FieldEvent     = "event"
	FieldComponent = "component"
	FieldLayer     = "layer"
	FieldReason    = "reason"

	// State fields
	FieldOldState = "old_state"
	FieldNewState = "new_state"

	// Path fields
	FieldPath = "path"

	// Counters
	FieldBytes   = "bytes"
	FieldDropped = "dropped"
)

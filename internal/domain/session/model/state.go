// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package model

import (
	"errors"
	"fmt"
	"strings"
)

// SessionState is the lifecycle state of one capture session.
type SessionState string

const (
	// StateIdle is the initial state and the only state reachable after recovery.
	StateIdle SessionState = "idle"
	// StateStarting covers capture start and backend connection.
	StateStarting SessionState = "starting"
	// StateRecording means audio is flowing.
	StateRecording SessionState = "recording"
	// StateStopping covers shutdown and cleanup.
	StateStopping SessionState = "stopping"
	// StateEnded means the session completed.
	StateEnded SessionState = "ended"
	// StateError means an unrecoverable failure was detected.
	StateError SessionState = "error"
	// StateDegraded means capture continues without a transcript.
	StateDegraded SessionState = "degraded"
)

// ErrUnknownState is returned by ParseState for names outside the enumeration.
var ErrUnknownState = errors.New("unknown session state")

// AllStates lists every state in declaration order.
func AllStates() []SessionState {
	return []SessionState{
		StateIdle,
		StateStarting,
		StateRecording,
		StateStopping,
		StateEnded,
		StateError,
		StateDegraded,
	}
}

func (s SessionState) String() string { return string(s) }

// Valid reports whether s is one of the enumerated states.
func (s SessionState) Valid() bool {
	switch s {
	case StateIdle, StateStarting, StateRecording, StateStopping, StateEnded, StateError, StateDegraded:
		return true
	}
	return false
}

// ParseState converts a state name (case-insensitive) into a SessionState.
func ParseState(v string) (SessionState, error) {
	s := SessionState(strings.ToLower(strings.TrimSpace(v)))
	if !s.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownState, v)
	}
	return s, nil
}

// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package model

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseState(t *testing.T) {
	for _, s := range AllStates() {
		got, err := ParseState(s.String())
		require.NoError(t, err)
		require.Equal(t, s, got)
	}

	got, err := ParseState("  Recording ")
	require.NoError(t, err)
	require.Equal(t, StateRecording, got)

	for _, bad := range []string{"", "paused", "idle2"} {
		_, err := ParseState(bad)
		require.ErrorIs(t, err, ErrUnknownState, bad)
	}
}

func TestAllStatesAreValidAndDistinct(t *testing.T) {
	seen := map[SessionState]bool{}
	for _, s := range AllStates() {
		require.True(t, s.Valid())
		require.False(t, seen[s], "duplicate %s", s)
		seen[s] = true
	}
	require.Len(t, seen, 7)
	require.False(t, SessionState("unknown").Valid())
}

// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package lifecycle

import (
	"testing"

	"github.com/ManuGH/empytrone/internal/domain/session/model"
	"github.com/stretchr/testify/require"
)

var legal = map[model.SessionState][]model.SessionState{
	model.StateIdle:      {model.StateStarting},
	model.StateStarting:  {model.StateRecording, model.StateError},
	model.StateRecording: {model.StateStopping, model.StateError, model.StateDegraded},
	model.StateDegraded:  {model.StateRecording, model.StateStopping, model.StateError},
	model.StateStopping:  {model.StateEnded, model.StateError},
	model.StateEnded:     {model.StateIdle},
	model.StateError:     {model.StateIdle},
}

func isLegal(from, to model.SessionState) bool {
	for _, s := range legal[from] {
		if s == to {
			return true
		}
	}
	return false
}

// forceState walks the machine to the requested state through legal edges.
func forceState(t *testing.T, m *Machine, target model.SessionState) {
	t.Helper()
	paths := map[model.SessionState][]model.SessionState{
		model.StateIdle:      nil,
		model.StateStarting:  {model.StateStarting},
		model.StateRecording: {model.StateStarting, model.StateRecording},
		model.StateDegraded:  {model.StateStarting, model.StateRecording, model.StateDegraded},
		model.StateStopping:  {model.StateStarting, model.StateRecording, model.StateStopping},
		model.StateEnded:     {model.StateStarting, model.StateRecording, model.StateStopping, model.StateEnded},
		model.StateError:     {model.StateStarting, model.StateError},
	}
	m.Reset()
	for _, s := range paths[target] {
		require.True(t, m.Transition(s), "setup %s", s)
	}
	require.Equal(t, target, m.State())
}

func TestTransitionTable_Coverage(t *testing.T) {
	for _, from := range model.AllStates() {
		for _, to := range model.AllStates() {
			decision := DecisionFor(from, to)
			if isLegal(from, to) {
				require.True(t, decision.Allowed, "%s -> %s must be allowed", from, to)
				require.Empty(t, decision.Reason)
				continue
			}
			require.False(t, decision.Allowed, "%s -> %s must be forbidden", from, to)
			require.NotEmpty(t, decision.Reason, "forbidden %s -> %s must have a reason", from, to)
			if from == to {
				require.Equal(t, ForbiddenAlreadyInState, decision.Reason)
			}
		}
	}
}

func TestMachine_AllPairs(t *testing.T) {
	for _, from := range model.AllStates() {
		for _, to := range model.AllStates() {
			m := NewMachine(nil)
			forceState(t, m, from)

			got := m.Transition(to)
			want := isLegal(from, to)
			require.Equal(t, want, got, "%s -> %s", from, to)
			if want {
				require.Equal(t, to, m.State())
			} else {
				require.Equal(t, from, m.State(), "rejected %s -> %s must not change state", from, to)
			}
		}
	}
}

func TestMachine_FromIdleOnlyStarting(t *testing.T) {
	for _, to := range model.AllStates() {
		m := NewMachine(nil)
		require.Equal(t, to == model.StateStarting, m.Transition(to), "idle -> %s", to)
	}
}

func TestMachine_FromDegraded(t *testing.T) {
	ok := map[model.SessionState]bool{
		model.StateRecording: true,
		model.StateStopping:  true,
		model.StateError:     true,
	}
	for _, to := range model.AllStates() {
		m := NewMachine(nil)
		forceState(t, m, model.StateDegraded)
		require.Equal(t, ok[to], m.Transition(to), "degraded -> %s", to)
	}
}

func TestDecisionFor_UnknownState(t *testing.T) {
	d := DecisionFor(model.StateIdle, model.SessionState("paused"))
	require.False(t, d.Allowed)
	require.Equal(t, ForbiddenUnknownState, d.Reason)
}

func TestSuccessorsReturnsCopy(t *testing.T) {
	s := Successors(model.StateRecording)
	require.ElementsMatch(t, legal[model.StateRecording], s)
	s[0] = model.StateIdle
	require.False(t, Allowed(model.StateRecording, model.StateIdle))
}

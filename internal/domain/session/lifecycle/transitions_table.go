// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package lifecycle

import "github.com/ManuGH/empytrone/internal/domain/session/model"

const (
	ForbiddenAlreadyInState = "already_in_state"
	ForbiddenNotSuccessor   = "not_a_successor"
	ForbiddenUnknownState   = "unknown_state"
)

// Decision records whether a transition is allowed and why it is forbidden.
type Decision struct {
	Allowed bool
	Reason  string
}

// transitionsTable maps each state to its legal successors.
// There is no terminal state: ended and error both lead back to idle.
var transitionsTable = map[model.SessionState][]model.SessionState{
	model.StateIdle:      {model.StateStarting},
	model.StateStarting:  {model.StateRecording, model.StateError},
	model.StateRecording: {model.StateStopping, model.StateError, model.StateDegraded},
	model.StateDegraded:  {model.StateRecording, model.StateStopping, model.StateError},
	model.StateStopping:  {model.StateEnded, model.StateError},
	model.StateEnded:     {model.StateIdle},
	model.StateError:     {model.StateIdle},
}

// Successors returns a copy of the legal destinations from a state.
func Successors(from model.SessionState) []model.SessionState {
	return append([]model.SessionState(nil), transitionsTable[from]...)
}

// Allowed reports whether from -> to is a legal edge.
func Allowed(from, to model.SessionState) bool {
	return DecisionFor(from, to).Allowed
}

// DecisionFor returns the decision for a from -> to request.
// Self-transitions are never legal.
func DecisionFor(from, to model.SessionState) Decision {
	if !from.Valid() || !to.Valid() {
		return Decision{Reason: ForbiddenUnknownState}
	}
	if from == to {
		return Decision{Reason: ForbiddenAlreadyInState}
	}
	for _, s := range transitionsTable[from] {
		if s == to {
			return Decision{Allowed: true}
		}
	}
	return Decision{Reason: ForbiddenNotSuccessor}
}

// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package lifecycle

import (
	"sync"

	"github.com/ManuGH/empytrone/internal/domain/session/model"
	xglog "github.com/ManuGH/empytrone/internal/log"
	"github.com/rs/zerolog"
)

// Transition describes one transition attempt as seen by a Reporter.
type Transition struct {
	From     model.SessionState
	To       model.SessionState
	Accepted bool
	// Forced is set for Reset, which bypasses the table.
	Forced bool
	// Reason is empty for accepted transitions.
	Reason string
}

// Reporter observes every transition attempt, accepted or not.
// It is invoked while the machine lock is held, so it must not call back
// into the Machine and must not block.
type Reporter interface {
	ReportTransition(Transition)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(Transition)

// ReportTransition calls f(t).
func (f ReporterFunc) ReportTransition(t Transition) { f(t) }

// Machine enforces the legal transition table for one session.
// State reads and transitions are safe for concurrent use.
type Machine struct {
	mu       sync.RWMutex
	state    model.SessionState
	reporter Reporter
	logger   zerolog.Logger
}

// NewMachine returns a machine in the idle state. reporter may be nil.
func NewMachine(reporter Reporter) *Machine {
	return &Machine{
		state:    model.StateIdle,
		reporter: reporter,
		logger:   xglog.WithComponent("lifecycle"),
	}
}

// State returns the current state.
func (m *Machine) State() model.SessionState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Transition moves to `to` if the edge is legal and reports the attempt.
// Illegal requests leave the state unchanged and return false.
func (m *Machine) Transition(to model.SessionState) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	from := m.state
	decision := DecisionFor(from, to)
	tr := Transition{From: from, To: to, Accepted: decision.Allowed, Reason: decision.Reason}
	if decision.Allowed {
		m.state = to
		m.logger.Debug().
			Str(xglog.FieldEvent, "lifecycle.transition").
			Str(xglog.FieldOldState, string(from)).
			Str(xglog.FieldNewState, string(to)).
			Msg("session state changed")
	} else {
		m.logger.Warn().
			Str(xglog.FieldEvent, "lifecycle.illegal_transition").
			Str(xglog.FieldOldState, string(from)).
			Str(xglog.FieldNewState, string(to)).
			Str(xglog.FieldReason, decision.Reason).
			Msg("illegal session state transition rejected")
	}
	if m.reporter != nil {
		m.reporter.ReportTransition(tr)
	}
	return decision.Allowed
}

// Reset forces the state back to idle without consulting the table.
// It is meant for test harnesses and explicit recovery only.
func (m *Machine) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	from := m.state
	m.state = model.StateIdle
	m.logger.Info().
		Str(xglog.FieldEvent, "lifecycle.reset").
		Str(xglog.FieldOldState, string(from)).
		Msg("session state reset to idle")
	if m.reporter != nil {
		m.reporter.ReportTransition(Transition{From: from, To: model.StateIdle, Accepted: true, Forced: true})
	}
}

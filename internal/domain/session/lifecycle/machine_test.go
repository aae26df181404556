// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package lifecycle

import (
	"sync"
	"testing"

	"github.com/ManuGH/empytrone/internal/domain/session/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingReporter struct {
	mu  sync.Mutex
	got []Transition
}

func (r *recordingReporter) ReportTransition(t Transition) {
	r.mu.Lock()
	r.got = append(r.got, t)
	r.mu.Unlock()
}

func (r *recordingReporter) snapshot() []Transition {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Transition(nil), r.got...)
}

func TestMachineStartsIdle(t *testing.T) {
	require.Equal(t, model.StateIdle, NewMachine(nil).State())
}

func TestMachineReportsAcceptedAndRejected(t *testing.T) {
	rep := &recordingReporter{}
	m := NewMachine(rep)

	require.True(t, m.Transition(model.StateStarting))
	require.False(t, m.Transition(model.StateEnded))
	require.False(t, m.Transition(model.StateStarting))

	got := rep.snapshot()
	require.Equal(t, []Transition{
		{From: model.StateIdle, To: model.StateStarting, Accepted: true},
		{From: model.StateStarting, To: model.StateEnded, Reason: ForbiddenNotSuccessor},
		{From: model.StateStarting, To: model.StateStarting, Reason: ForbiddenAlreadyInState},
	}, got)
}

func TestMachineResetBypassesTable(t *testing.T) {
	rep := &recordingReporter{}
	m := NewMachine(rep)
	require.True(t, m.Transition(model.StateStarting))
	require.True(t, m.Transition(model.StateRecording))

	// recording -> idle is not a legal edge, Reset still gets there.
	require.False(t, m.Transition(model.StateIdle))
	m.Reset()
	require.Equal(t, model.StateIdle, m.State())

	got := rep.snapshot()
	last := got[len(got)-1]
	require.True(t, last.Forced)
	require.Equal(t, model.StateRecording, last.From)
	require.Equal(t, model.StateIdle, last.To)
}

func TestMachineFullCycle(t *testing.T) {
	m := NewMachine(ReporterFunc(func(Transition) {}))
	for _, s := range []model.SessionState{
		model.StateStarting,
		model.StateRecording,
		model.StateDegraded,
		model.StateRecording,
		model.StateStopping,
		model.StateEnded,
		model.StateIdle,
		model.StateStarting,
		model.StateError,
		model.StateIdle,
	} {
		require.True(t, m.Transition(s), "-> %s", s)
	}
}

func TestMachineConcurrentReadsAndTransitions(t *testing.T) {
	rep := &recordingReporter{}
	m := NewMachine(rep)
	require.True(t, m.Transition(model.StateStarting))
	require.True(t, m.Transition(model.StateRecording))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				m.Transition(model.StateDegraded)
				m.Transition(model.StateRecording)
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				s := m.State()
				assert.True(t, s == model.StateRecording || s == model.StateDegraded)
			}
		}()
	}
	wg.Wait()

	// Every accepted report chains from the previous accepted destination.
	prev := model.StateIdle
	for _, tr := range rep.snapshot() {
		if !tr.Accepted {
			continue
		}
		require.Equal(t, prev, tr.From)
		prev = tr.To
	}
	require.Equal(t, prev, m.State())
}

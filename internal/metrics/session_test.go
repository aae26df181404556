// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestAddChunk(t *testing.T) {
	chunks := testutil.ToFloat64(ChunksEmittedTotal)
	bytes := testutil.ToFloat64(ChunkBytesTotal)

	AddChunk(3200)
	AddChunk(0)

	require.Equal(t, chunks+2, testutil.ToFloat64(ChunksEmittedTotal))
	require.Equal(t, bytes+3200, testutil.ToFloat64(ChunkBytesTotal))
}

func TestIncEventDroppedDefaultsReason(t *testing.T) {
	before := testutil.ToFloat64(EventsDroppedTotal.WithLabelValues("unknown"))
	IncEventDropped("")
	require.Equal(t, before+1, testutil.ToFloat64(EventsDroppedTotal.WithLabelValues("unknown")))

	before = testutil.ToFloat64(EventsDroppedTotal.WithLabelValues(DropNoSession))
	IncEventDropped(DropNoSession)
	require.Equal(t, before+1, testutil.ToFloat64(EventsDroppedTotal.WithLabelValues(DropNoSession)))
}

func TestIncStateTransitionLabels(t *testing.T) {
	c := StateTransitionsTotal.WithLabelValues("idle", "recording", "false")
	before := testutil.ToFloat64(c)
	IncStateTransition("idle", "recording", false)
	require.Equal(t, before+1, testutil.ToFloat64(c))
}

func TestIncEventWritten(t *testing.T) {
	before := testutil.ToFloat64(EventsWrittenTotal)
	IncEventWritten(time.Millisecond)
	require.Equal(t, before+1, testutil.ToFloat64(EventsWrittenTotal))
}

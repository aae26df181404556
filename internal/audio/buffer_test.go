// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package audio

import (
	"bytes"
	"testing"
	"time"

	"github.com/ManuGH/empytrone/internal/platform/clock"
	"github.com/stretchr/testify/require"
)

type collector struct {
	chunks []Chunk
}

func (c *collector) ConsumeChunk(ch Chunk) { c.chunks = append(c.chunks, ch) }

func pattern(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i % 251)
	}
	return b
}

func TestNewBufferRejectsInvalidChunkSize(t *testing.T) {
	for _, size := range []int{0, -1} {
		_, err := NewBuffer(size, nil)
		require.ErrorIs(t, err, ErrInvalidChunkSize)
	}
}

func TestAppendSplitInvariance(t *testing.T) {
	const chunkSize = 8
	input := pattern(chunkSize * 6)

	splits := map[string][]int{
		"single call":       {len(input)},
		"exact chunks":      {8, 8, 8, 8, 8, 8},
		"byte by byte":      nil,
		"uneven":            {3, 13, 1, 20, 11},
		"large then small":  {47, 1},
		"empty in between":  {5, 0, 11, 0, 32},
	}

	for name, sizes := range splits {
		t.Run(name, func(t *testing.T) {
			if sizes == nil {
				sizes = make([]int, len(input))
				for i := range sizes {
					sizes[i] = 1
				}
			}
			c := &collector{}
			b, err := NewBuffer(chunkSize, c)
			require.NoError(t, err)

			off := 0
			for _, n := range sizes {
				b.Append(input[off : off+n])
				off += n
			}
			require.Equal(t, len(input), off)

			require.Len(t, c.chunks, len(input)/chunkSize)
			var joined []byte
			for i, ch := range c.chunks {
				require.Equal(t, uint64(i), ch.SeqID)
				require.Equal(t, chunkSize, ch.ByteCount)
				require.Len(t, ch.Payload, chunkSize)
				joined = append(joined, ch.Payload...)
			}
			require.True(t, bytes.Equal(input, joined), "payload bytes must be preserved in order")
			require.Zero(t, b.Buffered())
			require.Equal(t, uint64(len(input)/chunkSize), b.Emitted())
		})
	}
}

func TestAppendKeepsResidue(t *testing.T) {
	c := &collector{}
	b, err := NewBuffer(10, c)
	require.NoError(t, err)

	b.Append(pattern(25))
	require.Len(t, c.chunks, 2)
	require.Equal(t, 5, b.Buffered())

	b.Append(pattern(4))
	require.Len(t, c.chunks, 2)
	require.Equal(t, 9, b.Buffered())

	b.Append(pattern(1))
	require.Len(t, c.chunks, 3)
	require.Zero(t, b.Buffered())
}

func TestAppendEmptyIsNoop(t *testing.T) {
	c := &collector{}
	b, err := NewBuffer(4, c)
	require.NoError(t, err)

	b.Append(nil)
	b.Append([]byte{})
	require.Empty(t, c.chunks)
	require.Zero(t, b.Buffered())
}

func TestPayloadIsNotAliased(t *testing.T) {
	c := &collector{}
	b, err := NewBuffer(4, c)
	require.NoError(t, err)

	in := []byte{1, 2, 3, 4, 5, 6}
	b.Append(in)
	in[0] = 99
	b.Append([]byte{7, 8})

	require.Equal(t, []byte{1, 2, 3, 4}, c.chunks[0].Payload)
	require.Equal(t, []byte{5, 6, 7, 8}, c.chunks[1].Payload)
}

func TestElapsedUsesClockAtExtraction(t *testing.T) {
	clk := clock.NewFake(time.Unix(1_700_000_000, 0))
	c := &collector{}
	b, err := NewBuffer(4, c, WithClock(clk))
	require.NoError(t, err)

	clk.Advance(99*time.Millisecond + 900*time.Microsecond)
	b.Append(pattern(4))
	clk.Advance(100 * time.Millisecond)
	b.Append(pattern(6))
	b.Append(pattern(2))

	require.Len(t, c.chunks, 3)
	require.Equal(t, int64(99), c.chunks[0].SessionElapsedMs, "elapsed is truncated")
	require.Equal(t, int64(199), c.chunks[1].SessionElapsedMs)
	require.Equal(t, int64(199), c.chunks[2].SessionElapsedMs)
	for i := 1; i < len(c.chunks); i++ {
		require.GreaterOrEqual(t, c.chunks[i].SessionElapsedMs, c.chunks[i-1].SessionElapsedMs)
	}
}

func TestElapsedMonotonicWithSystemClock(t *testing.T) {
	c := &collector{}
	b, err := NewBuffer(2, c)
	require.NoError(t, err)

	for i := 0; i < 200; i++ {
		b.Append([]byte{0, 0})
	}
	require.Len(t, c.chunks, 200)
	for i := 1; i < len(c.chunks); i++ {
		require.GreaterOrEqual(t, c.chunks[i].SessionElapsedMs, c.chunks[i-1].SessionElapsedMs)
	}
}

func TestNilConsumerAdvancesSequence(t *testing.T) {
	b, err := NewBuffer(2, nil)
	require.NoError(t, err)
	b.Append(pattern(7))
	require.Equal(t, uint64(3), b.Emitted())
	require.Equal(t, 1, b.Buffered())
}

func TestConsumerFunc(t *testing.T) {
	var got []uint64
	b, err := NewBuffer(1, ConsumerFunc(func(c Chunk) { got = append(got, c.SeqID) }))
	require.NoError(t, err)
	b.Append([]byte{1, 2, 3})
	require.Equal(t, []uint64{0, 1, 2}, got)
}

func TestChunkDuration(t *testing.T) {
	require.Equal(t, 100*time.Millisecond, ChunkDuration(DefaultChunkSize, DefaultSampleRate))
	require.Equal(t, 20*time.Millisecond, ChunkDuration(640, 16000))
	require.Zero(t, ChunkDuration(3200, 0))
	require.Zero(t, ChunkDuration(0, 16000))
}

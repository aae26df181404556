// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package audio

import (
	"errors"
	"fmt"
	"time"

	"github.com/ManuGH/empytrone/internal/platform/clock"
)

// ErrInvalidChunkSize is returned for a non-positive chunk size.
var ErrInvalidChunkSize = errors.New("chunk size must be positive")

// Buffer accumulates raw sample bytes and emits fixed-size chunks.
//
// Buffer is not safe for concurrent Append calls. It assumes one producer
// appending in arrival order; callers with several producers must serialize
// access themselves. Buffered residue is not bounded: the producer is expected
// to append often enough that it stays below one chunk.
type Buffer struct {
	chunkSize int
	clock     clock.Clock
	start     time.Time
	consumer  ChunkConsumer

	pending []byte
	nextSeq uint64
}

// Option configures a Buffer.
type Option func(*Buffer)

// WithClock overrides the monotonic clock (tests).
func WithClock(c clock.Clock) Option {
	return func(b *Buffer) {
		if c != nil {
			b.clock = c
		}
	}
}

// NewBuffer creates a Buffer whose time zero is the moment of construction.
// A nil consumer discards chunks but still advances the sequence.
func NewBuffer(chunkSize int, consumer ChunkConsumer, opts ...Option) (*Buffer, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidChunkSize, chunkSize)
	}
	b := &Buffer{
		chunkSize: chunkSize,
		clock:     clock.System,
		consumer:  consumer,
	}
	for _, opt := range opts {
		opt(b)
	}
	b.start = b.clock.Now()
	return b, nil
}

// Append buffers samples and emits every complete chunk now available.
// Each chunk takes exactly ChunkSize bytes from the front of the buffer and is
// delivered before the next one is cut. Empty input is a no-op.
func (b *Buffer) Append(samples []byte) {
	if len(samples) == 0 {
		return
	}
	b.pending = append(b.pending, samples...)

	off := 0
	for len(b.pending)-off >= b.chunkSize {
		payload := make([]byte, b.chunkSize)
		copy(payload, b.pending[off:off+b.chunkSize])
		off += b.chunkSize

		chunk := Chunk{
			SeqID:            b.nextSeq,
			Payload:          payload,
			SessionElapsedMs: clock.ElapsedMs(b.start, b.clock.Now()),
			ByteCount:        b.chunkSize,
		}
		b.nextSeq++

		if b.consumer != nil {
			b.consumer.ConsumeChunk(chunk)
		}
	}

	if off > 0 {
		n := copy(b.pending, b.pending[off:])
		b.pending = b.pending[:n]
	}
}

// ChunkSize returns the fixed chunk length in bytes.
func (b *Buffer) ChunkSize() int { return b.chunkSize }

// Buffered returns the residue waiting for the next chunk.
func (b *Buffer) Buffered() int { return len(b.pending) }

// Emitted returns how many chunks have been emitted so far.
func (b *Buffer) Emitted() uint64 { return b.nextSeq }

// ElapsedMs returns the milliseconds since the buffer was created.
func (b *Buffer) ElapsedMs() int64 { return clock.ElapsedMs(b.start, b.clock.Now()) }

// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package audio

import "time"

const (
	// DefaultChunkSize is 100 ms of 16 kHz, 16-bit mono audio.
	DefaultChunkSize = 3200
	// DefaultSampleRate is the capture rate the default chunk size assumes.
	DefaultSampleRate = 16000
	// BytesPerSample for signed 16-bit PCM.
	BytesPerSample = 2
)

// Chunk is one fixed-size slice of captured audio.
// The consumer owns Payload once the chunk is delivered.
type Chunk struct {
	SeqID            uint64
	Payload          []byte
	SessionElapsedMs int64
	ByteCount        int
}

// ChunkConsumer receives every completed chunk, in sequence order.
type ChunkConsumer interface {
	ConsumeChunk(Chunk)
}

// ConsumerFunc adapts a plain function to ChunkConsumer.
type ConsumerFunc func(Chunk)

// ConsumeChunk calls f(c).
func (f ConsumerFunc) ConsumeChunk(c Chunk) { f(c) }

// ChunkDuration returns the playback length of byteCount bytes of mono PCM.
// It returns 0 for a non-positive sample rate.
func ChunkDuration(byteCount, sampleRate int) time.Duration {
	if sampleRate <= 0 || byteCount <= 0 {
		return 0
	}
	samples := int64(byteCount / BytesPerSample)
	return time.Duration(samples) * time.Second / time.Duration(sampleRate)
}

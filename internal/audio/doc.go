// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package audio slices a raw capture stream of 16-bit little-endian mono PCM
// into fixed-size, sequence-numbered chunks stamped with session-relative time.
//
// Buffer is driven by a single producer (the capture callback) and hands every
// completed chunk synchronously to one ChunkConsumer, in sequence order.
package audio

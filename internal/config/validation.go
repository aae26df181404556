// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"path/filepath"

	"github.com/ManuGH/empytrone/internal/audio"
	"github.com/ManuGH/empytrone/internal/validate"
)

// Validate checks the effective configuration and reports every offending
// field in one ValidationError.
func Validate(cfg AppConfig) error {
	v := validate.New()

	v.Directory("logDir", cfg.LogDir)
	v.OneOf("logLevel", cfg.LogLevel, validate.LogLevels())

	v.Positive("audio.chunkSize", cfg.Audio.ChunkSize)
	v.MultipleOf("audio.chunkSize", cfg.Audio.ChunkSize, audio.BytesPerSample)
	v.Range("audio.sampleRate", cfg.Audio.SampleRate, 8000, 192000)
	v.Positive("audio.readSize", cfg.Audio.ReadSize)

	if cfg.Catalog.Path != "" {
		v.Directory("catalog.path", filepath.Dir(cfg.Catalog.Path))
	}

	v.ListenAddr("api.listenAddr", cfg.API.ListenAddr)
	if cfg.API.ListenAddr != "" {
		v.Range("api.rateLimit", cfg.API.RateLimit, 1, 100000)
	}

	return v.Err()
}

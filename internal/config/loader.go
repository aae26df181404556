// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ManuGH/empytrone/internal/audio"
	"github.com/ManuGH/empytrone/internal/platform/paths"
	"gopkg.in/yaml.v3"
)

const defaultAPIRateLimit = 120

// Loader handles configuration loading with precedence
type Loader struct {
	configPath      string
	version         string
	ConsumedEnvKeys map[string]struct{}
}

// NewLoader creates a new configuration loader. configPath may be empty.
func NewLoader(configPath, version string) *Loader {
	return &Loader{
		configPath:      configPath,
		version:         version,
		ConsumedEnvKeys: make(map[string]struct{}),
	}
}

// ConfigPath returns the file this loader reads, if any.
func (l *Loader) ConfigPath() string { return l.configPath }

func (l *Loader) envString(key, defaultVal string) string {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseString(key, defaultVal)
}

func (l *Loader) envBool(key string, defaultVal bool) bool {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseBool(key, defaultVal)
}

func (l *Loader) envInt(key string, defaultVal int) int {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseInt(key, defaultVal)
}

// Load loads configuration with precedence: ENV > File > Defaults, then
// validates the result.
func (l *Loader) Load() (AppConfig, error) {
	cfg := AppConfig{}

	if err := l.setDefaults(&cfg); err != nil {
		return cfg, fmt.Errorf("set defaults: %w", err)
	}

	if l.configPath != "" {
		fileCfg, err := l.loadFile(l.configPath)
		if err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
		mergeFileConfig(&cfg, fileCfg)
	}

	l.mergeEnvConfig(&cfg)

	if cfg.LogDir != "" {
		if abs, err := filepath.Abs(cfg.LogDir); err == nil {
			cfg.LogDir = abs
		}
	}
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	cfg.Version = l.version

	if err := Validate(cfg); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func (l *Loader) setDefaults(cfg *AppConfig) error {
	dir, err := paths.DefaultLogDir()
	if err != nil {
		return err
	}
	cfg.LogDir = dir
	cfg.LogLevel = "info"
	cfg.Audio = AudioConfig{
		ChunkSize:  audio.DefaultChunkSize,
		SampleRate: audio.DefaultSampleRate,
		ReadSize:   4096,
	}
	cfg.Session = SessionConfig{
		LogRejectedTransitions: true,
		WriteSummary:           true,
	}
	cfg.API.RateLimit = defaultAPIRateLimit
	cfg.Features = FeatureFlags{CoachCards: true, TensionDetection: true}
	return nil
}

// loadFile loads configuration from a YAML file with strict parsing.
// Unknown fields are rejected.
func (l *Loader) loadFile(path string) (*FileConfig, error) {
	path = filepath.Clean(path)

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("%w: %s (only YAML supported)", ErrUnsupportedFormat, ext)
	}

	// #nosec G304 -- configuration file paths are provided by the operator via CLI
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	var fileCfg FileConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(&fileCfg); err != nil {
		if errors.Is(err, io.EOF) {
			return &FileConfig{}, nil
		}
		if strings.Contains(err.Error(), "field") && strings.Contains(err.Error(), "not found") {
			return nil, fmt.Errorf("%w: %v", ErrUnknownConfigField, err)
		}
		return nil, fmt.Errorf("strict config parse error: %w", err)
	}

	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config file contains multiple documents or trailing content")
	}
	return &fileCfg, nil
}

func mergeFileConfig(cfg *AppConfig, f *FileConfig) {
	if f.LogDir != "" {
		cfg.LogDir = expandHome(f.LogDir)
	}
	if f.LogLevel != "" {
		cfg.LogLevel = f.LogLevel
	}
	if f.DeepgramKey != "" {
		cfg.DeepgramKey = f.DeepgramKey
	}
	if a := f.Audio; a != nil {
		setInt(&cfg.Audio.ChunkSize, a.ChunkSize)
		setInt(&cfg.Audio.SampleRate, a.SampleRate)
		setInt(&cfg.Audio.ReadSize, a.ReadSize)
	}
	if s := f.Session; s != nil {
		setBool(&cfg.Session.LogRejectedTransitions, s.LogRejectedTransitions)
		setBool(&cfg.Session.WriteSummary, s.WriteSummary)
	}
	if c := f.Catalog; c != nil && c.Path != "" {
		cfg.Catalog.Path = expandHome(c.Path)
	}
	if a := f.API; a != nil {
		if a.ListenAddr != "" {
			cfg.API.ListenAddr = a.ListenAddr
		}
		setInt(&cfg.API.RateLimit, a.RateLimit)
	}
	if ft := f.Features; ft != nil {
		setBool(&cfg.Features.CoachCards, ft.CoachCards)
		setBool(&cfg.Features.TensionDetection, ft.TensionDetection)
	}
}

func (l *Loader) mergeEnvConfig(cfg *AppConfig) {
	cfg.LogDir = l.envString(EnvLogDir, cfg.LogDir)
	cfg.LogLevel = l.envString(EnvLogLevel, cfg.LogLevel)
	cfg.DeepgramKey = l.envString(EnvDeepgramKey, cfg.DeepgramKey)

	cfg.Audio.ChunkSize = l.envInt(EnvChunkSize, cfg.Audio.ChunkSize)
	cfg.Audio.SampleRate = l.envInt(EnvSampleRate, cfg.Audio.SampleRate)
	cfg.Audio.ReadSize = l.envInt(EnvReadSize, cfg.Audio.ReadSize)

	cfg.Session.LogRejectedTransitions = l.envBool(EnvLogRejectedTransitions, cfg.Session.LogRejectedTransitions)
	cfg.Session.WriteSummary = l.envBool(EnvWriteSummary, cfg.Session.WriteSummary)

	cfg.Catalog.Path = l.envString(EnvCatalogPath, cfg.Catalog.Path)
	cfg.API.ListenAddr = l.envString(EnvAPIAddr, cfg.API.ListenAddr)
	cfg.API.RateLimit = l.envInt(EnvAPIRateLimit, cfg.API.RateLimit)

	cfg.Features.CoachCards = l.envBool(EnvFeatureCoachCards, cfg.Features.CoachCards)
	cfg.Features.TensionDetection = l.envBool(EnvFeatureTension, cfg.Features.TensionDetection)
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func expandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return p
}

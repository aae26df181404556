// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

// AppConfig is the effective configuration.
type AppConfig struct {
	LogDir      string
	LogLevel    string
	DeepgramKey string
	Audio       AudioConfig
	Session     SessionConfig
	Catalog     CatalogConfig
	API         APIConfig
	Features    FeatureFlags
	Version     string
}

// AudioConfig holds chunking parameters.
type AudioConfig struct {
	ChunkSize  int
	SampleRate int
	ReadSize   int
}

// SessionConfig holds session lifecycle policies.
type SessionConfig struct {
	LogRejectedTransitions bool
	WriteSummary           bool
}

// CatalogConfig locates the SQLite session index. An empty path disables it.
type CatalogConfig struct {
	Path string
}

// APIConfig configures the status HTTP surface. An empty address disables it.
type APIConfig struct {
	ListenAddr string
	// RateLimit is the request budget per client per minute.
	RateLimit int
}

// FeatureFlags are surfaced in status only.
type FeatureFlags struct {
	CoachCards       bool `json:"coachCards"`
	TensionDetection bool `json:"tensionDetection"`
}

// DeepgramKeyPresent reports whether a backend key is configured without
// exposing it.
func (c AppConfig) DeepgramKeyPresent() bool {
	return c.DeepgramKey != ""
}

// FileConfig mirrors the YAML file. Pointer fields distinguish an absent key
// from an explicit zero value.
type FileConfig struct {
	LogDir      string        `yaml:"logDir,omitempty"`
	LogLevel    string        `yaml:"logLevel,omitempty"`
	DeepgramKey string        `yaml:"deepgramKey,omitempty"`
	Audio       *AudioFile    `yaml:"audio,omitempty"`
	Session     *SessionFile  `yaml:"session,omitempty"`
	Catalog     *CatalogFile  `yaml:"catalog,omitempty"`
	API         *APIFile      `yaml:"api,omitempty"`
	Features    *FeaturesFile `yaml:"features,omitempty"`
}

// AudioFile is the audio section of the YAML file.
type AudioFile struct {
	ChunkSize  *int `yaml:"chunkSize,omitempty"`
	SampleRate *int `yaml:"sampleRate,omitempty"`
	ReadSize   *int `yaml:"readSize,omitempty"`
}

// SessionFile is the session section of the YAML file.
type SessionFile struct {
	LogRejectedTransitions *bool `yaml:"logRejectedTransitions,omitempty"`
	WriteSummary           *bool `yaml:"writeSummary,omitempty"`
}

// CatalogFile is the catalog section of the YAML file.
type CatalogFile struct {
	Path string `yaml:"path,omitempty"`
}

// APIFile is the api section of the YAML file.
type APIFile struct {
	ListenAddr string `yaml:"listenAddr,omitempty"`
	RateLimit  *int   `yaml:"rateLimit,omitempty"`
}

// FeaturesFile is the features section of the YAML file.
type FeaturesFile struct {
	CoachCards       *bool `yaml:"coachCards,omitempty"`
	TensionDetection *bool `yaml:"tensionDetection,omitempty"`
}

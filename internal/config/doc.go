// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package config loads EmpyTrone configuration.
//
// Precedence is defaults, then the YAML file (strict, unknown keys rejected),
// then EMPY_* environment variables. The merged result is validated as a
// whole. ConfigHolder keeps the live value and reloads it when the file
// changes; only the log level and the rejected-transition policy are
// applied without a restart.
package config

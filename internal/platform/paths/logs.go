// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package paths resolves on-disk locations for session logs and artifacts.
package paths

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// AppDirName is the per-user logs subdirectory.
const AppDirName = "EmpyTrone"

const (
	// LogExt is the extension of per-session JSONL event logs.
	LogExt = ".jsonl"
	// SummaryExt is the extension of per-session summary files.
	SummaryExt = ".summary.json"
)

// ErrInvalidSessionID is returned for ids that cannot be used as a file name.
var ErrInvalidSessionID = errors.New("invalid session id")

// DefaultLogDir returns the platform per-user logs directory for the app.
//
//	darwin:  ~/Library/Logs/EmpyTrone
//	windows: %LOCALAPPDATA%\EmpyTrone\Logs
//	other:   $XDG_STATE_HOME/EmpyTrone/logs (default ~/.local/state)
func DefaultLogDir() (string, error) {
	return defaultLogDir(runtime.GOOS, os.Getenv, os.UserHomeDir)
}

func defaultLogDir(goos string, getenv func(string) string, home func() (string, error)) (string, error) {
	switch goos {
	case "darwin":
		h, err := home()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		return filepath.Join(h, "Library", "Logs", AppDirName), nil
	case "windows":
		if local := getenv("LOCALAPPDATA"); local != "" {
			return filepath.Join(local, AppDirName, "Logs"), nil
		}
		h, err := home()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		return filepath.Join(h, "AppData", "Local", AppDirName, "Logs"), nil
	default:
		if state := getenv("XDG_STATE_HOME"); state != "" && filepath.IsAbs(state) {
			return filepath.Join(state, AppDirName, "logs"), nil
		}
		h, err := home()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		return filepath.Join(h, ".local", "state", AppDirName, "logs"), nil
	}
}

// ValidateSessionID checks that id can name a file inside the log directory
// without escaping it.
func ValidateSessionID(id string) error {
	switch {
	case strings.TrimSpace(id) == "":
		return fmt.Errorf("%w: empty", ErrInvalidSessionID)
	case id == "." || id == "..":
		return fmt.Errorf("%w: %q", ErrInvalidSessionID, id)
	case strings.ContainsAny(id, `/\`+"\x00"):
		return fmt.Errorf("%w: %q contains a path separator", ErrInvalidSessionID, id)
	case len(id) > 200:
		return fmt.Errorf("%w: longer than 200 bytes", ErrInvalidSessionID)
	}
	return nil
}

// SessionLogPath returns dir/<id>.jsonl.
func SessionLogPath(dir, id string) (string, error) {
	return sessionFile(dir, id, LogExt)
}

// SessionSummaryPath returns dir/<id>.summary.json.
func SessionSummaryPath(dir, id string) (string, error) {
	return sessionFile(dir, id, SummaryExt)
}

func sessionFile(dir, id, ext string) (string, error) {
	if err := ValidateSessionID(id); err != nil {
		return "", err
	}
	if dir == "" {
		return "", errors.New("log directory is empty")
	}
	full := filepath.Join(dir, id+ext)
	if filepath.Dir(full) != filepath.Clean(dir) {
		return "", fmt.Errorf("%w: %q escapes log directory", ErrInvalidSessionID, id)
	}
	return full, nil
}

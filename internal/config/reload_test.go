// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func newTestHolder(t *testing.T, content string) (*ConfigHolder, string) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv(EnvLogDir, dir)
	path := filepath.Join(dir, "empytrone.yaml")
	writeFile(t, path, content)

	loader := NewLoader(path, "test")
	initial, err := loader.Load()
	require.NoError(t, err)
	return NewConfigHolder(initial, loader), path
}

func TestConfigHolder_Reload_Success(t *testing.T) {
	holder, path := newTestHolder(t, "logLevel: info\n")
	require.Equal(t, "info", holder.Get().LogLevel)

	writeFile(t, path, "logLevel: debug\nsession:\n  logRejectedTransitions: false\n")
	require.NoError(t, holder.Reload(context.Background()))

	got := holder.Get()
	require.Equal(t, "debug", got.LogLevel)
	require.False(t, got.Session.LogRejectedTransitions)
}

func TestConfigHolder_Reload_InvalidKeepsPrevious(t *testing.T) {
	holder, path := newTestHolder(t, "logLevel: warn\n")

	writeFile(t, path, "audio:\n  chunkSize: 3\n")
	require.Error(t, holder.Reload(context.Background()))
	require.Equal(t, "warn", holder.Get().LogLevel)
	require.Equal(t, 3200, holder.Get().Audio.ChunkSize)

	writeFile(t, path, "nope: true\n")
	require.ErrorIs(t, holder.Reload(context.Background()), ErrUnknownConfigField)
	require.Equal(t, "warn", holder.Get().LogLevel)
}

func TestConfigHolder_RegisterListener(t *testing.T) {
	holder, path := newTestHolder(t, "logLevel: info\n")

	ch := make(chan AppConfig, 1)
	holder.RegisterListener(ch)
	blocked := make(chan AppConfig)
	holder.RegisterListener(blocked)

	writeFile(t, path, "logLevel: error\n")
	require.NoError(t, holder.Reload(context.Background()))

	select {
	case received := <-ch:
		require.Equal(t, "error", received.LogLevel)
	default:
		t.Fatal("listener did not receive config update")
	}
}

func TestConfigHolder_StartWatcher_EmptyPath(t *testing.T) {
	t.Setenv(EnvLogDir, t.TempDir())
	loader := NewLoader("", "test")
	cfg, err := loader.Load()
	require.NoError(t, err)

	holder := NewConfigHolder(cfg, loader)
	require.NoError(t, holder.StartWatcher(context.Background()))
	holder.Stop()
}

func TestConfigHolder_WatcherReloadsOnWrite(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	holder, path := newTestHolder(t, "logLevel: info\n")
	holder.debounce = 20 * time.Millisecond

	ch := make(chan AppConfig, 4)
	holder.RegisterListener(ch)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, holder.StartWatcher(ctx))
	defer holder.Stop()

	// Replace via rename, the way most editors save.
	tmp := path + ".tmp"
	writeFile(t, tmp, "logLevel: debug\n")
	require.NoError(t, os.Rename(tmp, path))

	select {
	case got := <-ch:
		require.Equal(t, "debug", got.LogLevel)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not reload the config")
	}
	require.Equal(t, "debug", holder.Get().LogLevel)
}

func TestRestartRequired(t *testing.T) {
	base := AppConfig{LogLevel: "info", Audio: AudioConfig{ChunkSize: 3200}}
	next := base
	next.LogLevel = "debug"
	next.Session.LogRejectedTransitions = true
	require.Empty(t, RestartRequired(base, next))

	next.Audio.ChunkSize = 6400
	next.API.ListenAddr = ":9000"
	require.Equal(t, []string{"audio", "api"}, RestartRequired(base, next))
}

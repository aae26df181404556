// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ManuGH/empytrone/internal/api"
	"github.com/ManuGH/empytrone/internal/catalog"
	"github.com/ManuGH/empytrone/internal/config"
	"github.com/ManuGH/empytrone/internal/domain/session/manager"
	"github.com/ManuGH/empytrone/internal/eventlog"
	xglog "github.com/ManuGH/empytrone/internal/log"
	"github.com/ManuGH/empytrone/internal/version"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const serviceName = "empytrone"

func runCapture(args []string, stderr io.Writer) int {
	fs := flag.NewFlagSet("empytrone run", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var configPath, input, sessionID string
	fs.StringVar(&configPath, "config", "", "path to YAML configuration file")
	fs.StringVar(&input, "input", "-", "raw 16-bit PCM source file, or - for stdin")
	fs.StringVar(&sessionID, "session", "", "session id (generated when empty)")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	// Safe defaults until the config is loaded.
	xglog.Configure(xglog.Config{
		Level:   "info",
		Service: serviceName,
		Version: version.Version,
	})
	logger := xglog.WithComponent("cli")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	configPath = strings.TrimSpace(configPath)
	if configPath == "" {
		configPath = strings.TrimSpace(config.ParseString(config.EnvConfigPath, ""))
	}
	loader := config.NewLoader(configPath, version.Version)
	cfg, err := loader.Load()
	if err != nil {
		fmt.Fprintf(stderr, "Configuration error:\n  %v\n", err)
		return 1
	}

	xglog.Configure(xglog.Config{
		Level:   cfg.LogLevel,
		Service: serviceName,
		Version: cfg.Version,
	})
	logger = xglog.WithComponent("cli")

	in, closeInput, err := openInput(input)
	if err != nil {
		logger.Error().Err(err).Str(xglog.FieldEvent, "input.open_failed").Str(xglog.FieldPath, input).Msg("failed to open input")
		return 1
	}
	defer closeInput()

	if err := serve(ctx, cfg, loader, in, sessionID, logger); err != nil {
		logger.Error().Err(err).Str(xglog.FieldEvent, "run.failed").Msg("capture run failed")
		return 1
	}
	return 0
}

func openInput(path string) (io.Reader, func(), error) {
	if path == "" || path == "-" {
		return os.Stdin, func() {}, nil
	}
	f, err := os.Open(path) // #nosec G304 -- operator-supplied input path
	if err != nil {
		return nil, nil, fmt.Errorf("open input: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}

// serve wires the event log, catalog, session manager, status API and config
// watcher, then captures one session from in until EOF, a read error or ctx
// is done.
func serve(ctx context.Context, cfg config.AppConfig, loader *config.Loader, in io.Reader, sessionID string, logger zerolog.Logger) error {
	evlog, err := eventlog.New(eventlog.Options{Dir: cfg.LogDir})
	if err != nil {
		return err
	}
	defer func() { _ = evlog.Close() }()

	var opts []manager.Option
	var store *catalog.Store
	if cfg.Catalog.Path != "" {
		store, err = catalog.Open(cfg.Catalog.Path)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()
		opts = append(opts, manager.WithCatalog(store))
	}

	mgr, err := manager.New(manager.Config{
		ChunkSize:    cfg.Audio.ChunkSize,
		SampleRate:   cfg.Audio.SampleRate,
		LogRejected:  cfg.Session.LogRejectedTransitions,
		WriteSummary: cfg.Session.WriteSummary,
		LogDir:       cfg.LogDir,
	}, evlog, opts...)
	if err != nil {
		return err
	}
	defer mgr.Shutdown()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)

	holder := config.NewConfigHolder(cfg, loader)
	updates := make(chan config.AppConfig, 1)
	holder.RegisterListener(updates)
	if err := holder.StartWatcher(gctx); err != nil {
		logger.Warn().Err(err).Str(xglog.FieldEvent, "config.watcher_failed").Msg("config hot reload unavailable")
	}
	defer holder.Stop()

	g.Go(func() error {
		applyReloads(gctx, updates, mgr, logger)
		return nil
	})

	if cfg.API.ListenAddr != "" {
		deps := api.Deps{
			Sessions: mgr,
			Log:      evlog,
			Config:   holder.Get,
			Version:  version.Version,
		}
		if store != nil {
			deps.Catalog = store
		}
		srv, err := api.New(deps, cfg.API.RateLimit)
		if err != nil {
			return err
		}
		g.Go(func() error {
			return srv.ListenAndServe(gctx, cfg.API.ListenAddr)
		})
	}

	g.Go(func() error {
		defer cancel()
		sess, err := mgr.Start(sessionID)
		if err != nil {
			return err
		}
		if err := sess.Begin(); err != nil {
			return err
		}
		sum, err := capture(gctx, in, sess, cfg.Audio.ReadSize)
		if err != nil {
			return err
		}
		logger.Info().
			Str(xglog.FieldEvent, "session.summary").
			Str(xglog.FieldSessionID, sum.SessionID).
			Str("final_state", sum.FinalState).
			Uint64("chunks", sum.Chunks).
			Int64(xglog.FieldBytes, sum.Bytes).
			Int64("duration_ms", sum.DurationMs).
			Str(xglog.FieldPath, sum.LogPath).
			Msg("session finished")
		return nil
	})

	return g.Wait()
}

// applyReloads hot-applies the settings that do not need a restart.
func applyReloads(ctx context.Context, updates <-chan config.AppConfig, mgr *manager.Manager, logger zerolog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case cfg := <-updates:
			if err := xglog.SetLevel(cfg.LogLevel); err != nil {
				logger.Warn().Err(err).Str(xglog.FieldEvent, "config.apply_failed").Msg("invalid log level on reload")
			}
			mgr.SetLogRejected(cfg.Session.LogRejectedTransitions)
		}
	}
}

type readResult struct {
	data []byte
	err  error
}

// capture feeds reads from in to sess until EOF (stop), a read error (fail)
// or ctx is done (stop). The reader runs in its own goroutine because a
// blocked read on stdin cannot be interrupted.
func capture(ctx context.Context, in io.Reader, sess *manager.Session, readSize int) (manager.Summary, error) {
	if readSize <= 0 {
		readSize = 4096
	}
	reads := make(chan readResult)
	quit := make(chan struct{})
	defer close(quit)

	go func() {
		for {
			buf := make([]byte, readSize)
			n, err := in.Read(buf)
			if n > 0 {
				select {
				case reads <- readResult{data: buf[:n]}:
				case <-quit:
					return
				}
			}
			if err != nil {
				select {
				case reads <- readResult{err: err}:
				case <-quit:
				}
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return sess.Stop()
		case res := <-reads:
			if res.data != nil {
				sess.Append(res.data)
				continue
			}
			if errors.Is(res.err, io.EOF) {
				return sess.Stop()
			}
			if err := sess.Fail(res.err); err != nil {
				return manager.Summary{}, err
			}
			return manager.Summary{}, fmt.Errorf("read input: %w", res.err)
		}
	}
}

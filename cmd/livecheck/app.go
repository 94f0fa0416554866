package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"livecheck/internal/auth"
	"livecheck/internal/config"
	"livecheck/internal/editor"
	lcerrors "livecheck/internal/errors"
	"livecheck/internal/issues"
	"livecheck/internal/paths"
	"livecheck/internal/remote"
	"livecheck/internal/scan"
	"livecheck/internal/slogutil"
	"livecheck/internal/storage"
	"livecheck/internal/writeoff"
)

// app wires the core for one command invocation.
type app struct {
	dir     string
	cfg     *config.Config
	logger  *slog.Logger
	store   storage.Store
	console *editor.Console
	creds   *auth.StoreCredentials
	orch    *scan.Orchestrator
	wo      *writeoff.Service

	closers []io.Closer
}

func storageDir() (string, error) {
	if homeFlag != "" {
		return paths.EnsureDir(homeFlag)
	}
	home, err := paths.GetHome()
	if err != nil {
		return "", err
	}
	return paths.EnsureDir(home)
}

// remoteService is what the core needs from the analysis service.
type remoteService interface {
	scan.Service
	writeoff.Requester
}

// offline stands in for the service when no server is configured, so local
// commands keep working.
type offline struct{}

var errNotConfigured = lcerrors.New(lcerrors.RemoteFailure,
	"server.baseURL is not configured (try: livecheck config set server.baseURL https://...)", nil)

func (offline) Analyze(context.Context, remote.AnalyzeRequest) (*remote.AnalyzeResponse, error) {
	return nil, errNotConfigured
}

func (offline) WriteOffReasons(context.Context) ([]string, error) { return nil, errNotConfigured }

func (offline) LicenseInfo(context.Context) (*remote.License, error) { return nil, errNotConfigured }

func (offline) RequestWriteOff(context.Context, remote.WriteOffRequest) (*issues.WriteOffEmbed, error) {
	return nil, errNotConfigured
}

// newApp loads configuration, logging and the store. When the database
// cannot be opened it continues with an in-memory store.
func newApp() (*app, error) {
	format, err := parseFormat(formatFlag)
	if err != nil {
		return nil, err
	}
	dir, err := storageDir()
	if err != nil {
		return nil, fmt.Errorf("resolve storage directory: %w", err)
	}
	cfg, err := config.LoadConfig(dir)
	if err != nil {
		return nil, err
	}

	a := &app{dir: dir, cfg: cfg}

	level := slogutil.LevelFromVerbosity(slogutil.LevelFromString(cfg.Logging.Level), verboseFlag, quietFlag)
	logger, closer, err := slogutil.NewRotatingFileLogger(paths.LogPath(dir), level, cfg.Logging.Format, cfg.Logging.MaxSize, cfg.Logging.MaxBackups)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: file logging disabled: %v\n", err)
		logger = slogutil.NewLogger(os.Stderr, level, cfg.Logging.Format)
	} else {
		a.closers = append(a.closers, closer)
	}
	a.logger = logger

	storeOpts := storage.Options{Logger: logger, MaxValueBytes: cfg.Storage.MaxValueBytes}
	store, err := storage.Open(dir, storeOpts)
	if err != nil {
		logger.Warn("Falling back to in-memory store", "error", err.Error())
		fmt.Fprintf(os.Stderr, "Warning: results will not be kept: %v\n", err)
		a.store = storage.NewMemoryStore(storeOpts)
	} else {
		a.store = store
	}
	a.closers = append(a.closers, a.store)

	out := io.Writer(os.Stdout)
	if format != FormatHuman {
		out = io.Discard
	}
	a.console = editor.NewConsole(out, os.Stderr)

	sealer, err := auth.NewSealer(paths.KeyPath(dir))
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("open credential key: %w", err)
	}
	a.creds = auth.NewStoreCredentials(a.store, sealer, logger)

	var service remoteService = offline{}
	if tokens, err := remote.NewTokenClient(cfg.Server, logger); err != nil {
		logger.Debug("Analysis service not configured", "error", err.Error())
	} else {
		client, err := remote.New(cfg.Server, auth.NewClient(a.creds, tokens, logger), logger)
		if err != nil {
			a.Close()
			return nil, err
		}
		service = client
	}

	a.orch = scan.New(a.store, service, a.console, scan.Options{
		RetentionDays:      cfg.Scan.RetentionDays,
		OnlyBlockers:       cfg.Scan.OnlyBlockers,
		AutoScanOnOpen:     cfg.Scan.AutoScanOnOpen,
		InformationalTypes: cfg.Scan.InformationalIssueTypes,
		Logger:             logger,
	})
	a.wo = writeoff.New(a.store, service, a.orch, logger)
	return a, nil
}

// Close waits for detached scans and releases the store and log file.
func (a *app) Close() {
	if a.orch != nil {
		a.orch.Wait()
		a.orch.Close()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i].Close()
	}
}

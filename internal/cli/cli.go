// Package cli holds the bootstrap shared by every command: configuration,
// logging, metrics, signal handling and the optional health server.
package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/couchcryptid/transit-weather-etl/internal/adapter/httpadapter"
	"github.com/couchcryptid/transit-weather-etl/internal/adapter/sqlite"
	"github.com/couchcryptid/transit-weather-etl/internal/config"
	"github.com/couchcryptid/transit-weather-etl/internal/observability"
	"github.com/couchcryptid/transit-weather-etl/internal/pipeline"
	"github.com/google/uuid"
)

// Env is what a job receives from the bootstrap.
type Env struct {
	Config  *config.Config
	Logger  *slog.Logger
	Metrics *observability.Metrics
	RunID   string

	state *httpadapter.JobState
}

// Options tune one command invocation.
type Options struct {
	// DBPath overrides DB_PATH when non-empty.
	DBPath string
	// FailuresPath, when set, receives the JSON failure report.
	FailuresPath string
}

// Job is the body of a command.
type Job func(ctx context.Context, env *Env) (*pipeline.Summary, error)

// Run bootstraps the process, executes job and returns the exit code.
func Run(name string, opts Options, job Job) int {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return 1
	}
	if opts.DBPath != "" {
		cfg.DBPath = opts.DBPath
	}

	runID := uuid.NewString()
	logger := observability.NewLogger(cfg).With("command", name, "run_id", runID)
	env := &Env{
		Config:  cfg,
		Logger:  logger,
		Metrics: observability.NewMetrics(),
		RunID:   runID,
		state:   httpadapter.NewJobState(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.HTTPAddr != "" {
		srv := httpadapter.NewServer(cfg.HTTPAddr, env.state, logger)
		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http server error", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("http server shutdown error", "error", err)
			}
		}()
	}

	env.Metrics.JobRunning.Set(1)
	defer env.Metrics.JobRunning.Set(0)

	start := time.Now()
	summary, err := job(ctx, env)
	if summary != nil {
		logger.Info("job summary", "summary", summary, "duration", time.Since(start).Round(time.Millisecond))
		if opts.FailuresPath != "" {
			if werr := pipeline.WriteReport(opts.FailuresPath, pipeline.NewReport(runID, summary, time.Now())); werr != nil {
				logger.Error("failure report not written", "path", opts.FailuresPath, "error", werr)
			} else {
				logger.Info("failure report written", "path", opts.FailuresPath, "failures", len(summary.Failures))
			}
		}
	}

	switch {
	case err == nil:
		return 0
	case ctx.Err() != nil:
		logger.Error("job interrupted", "error", err)
	default:
		logger.Error("job failed", "error", err)
	}
	return 1
}

// OpenStore opens the SQLite store, creating it when create is set, and
// marks the job ready. Commands that only read require the file to exist.
func (e *Env) OpenStore(ctx context.Context, create bool) (*sqlite.Store, error) {
	open := sqlite.OpenExisting
	if create {
		open = sqlite.Open
	}
	store, err := open(ctx, e.Config.DBPath, e.Metrics)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	e.state.MarkStarted(store)
	e.Logger.Info("job started", "db", e.Config.DBPath)
	return store, nil
}

// MarkStarted marks a job that works without the store as ready.
func (e *Env) MarkStarted() {
	e.state.MarkStarted(nil)
	e.Logger.Info("job started")
}

// CloseStore closes the store, logging instead of failing the job.
func (e *Env) CloseStore(store *sqlite.Store) {
	if err := store.Close(); err != nil {
		e.Logger.Error("close database", "error", err)
	}
}

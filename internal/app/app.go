// Package app assembles staywatch from its configuration and runs it, once
// or on a schedule.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrSnakeDoc/staywatch/internal/config"
	"github.com/MrSnakeDoc/staywatch/internal/domain"
	"github.com/MrSnakeDoc/staywatch/internal/filter"
	"github.com/MrSnakeDoc/staywatch/internal/httpserver"
	"github.com/MrSnakeDoc/staywatch/internal/httpserver/deps"
	"github.com/MrSnakeDoc/staywatch/internal/logger"
	"github.com/MrSnakeDoc/staywatch/internal/notify"
	"github.com/MrSnakeDoc/staywatch/internal/pipeline"
	"github.com/MrSnakeDoc/staywatch/internal/scheduler"
	"github.com/MrSnakeDoc/staywatch/internal/sources/booking"
	"github.com/MrSnakeDoc/staywatch/internal/state"
	"github.com/MrSnakeDoc/staywatch/internal/utils"
	"github.com/MrSnakeDoc/staywatch/internal/version"
)

// Options are the per-invocation switches set on the command line.
type Options struct {
	Prune bool
}

type App struct {
	cfg      *config.Config
	file     *config.File
	logger   logger.Logger
	store    *state.Store
	pipeline *pipeline.Pipeline
	searches []domain.Search
}

// New loads the config file, opens the state and builds the pipeline.
// Errors are *domain.ConfigError or *domain.PersistenceError.
func New(ctx context.Context, cfg *config.Config, opts Options, log logger.Logger) (*App, error) {
	f, err := config.LoadFile(cfg.ConfigPath)
	if err != nil {
		return nil, err
	}

	engine, err := filter.Compile(f.Filter.ExcludePatterns)
	if err != nil {
		return nil, err
	}

	backend, err := openBackend(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	store, err := state.Open(ctx, backend, log)
	if err != nil {
		utils.MustClose(backend, log, backend.Name())
		return nil, err
	}

	fetcher := booking.NewHTTPFetcher(booking.FetcherConfig{
		Timeout:   cfg.FetchTimeout,
		UserAgent: cfg.UserAgent,
	})
	paginator := booking.NewPaginator(fetcher, booking.NewExtractor(), log, cfg.MaxPages)

	d := pipeline.Deps{
		Paginator: paginator,
		Filter:    engine,
		Store:     store,
		Logger:    log,
		Options: pipeline.Options{
			Concurrency:     cfg.Concurrency,
			NoNotifications: cfg.NoNotifications,
			PersistTimeout:  cfg.PersistTimeout,
			Prune:           opts.Prune,
		},
	}

	senders, err := buildSenders(f)
	if err != nil {
		utils.MustClose(store, log, "state")
		return nil, err
	}
	switch {
	case cfg.NoNotifications:
		log.Info("notifications disabled, snapshots will be persisted silently")
	case len(senders) == 0:
		log.Warn("no notification channel configured, new ads will only be logged")
	default:
		n := notify.New(ctx, senders, notify.Options{MaxListed: cfg.MaxListed}, log)
		log.Info("notifications enabled", logger.Strings("senders", n.Senders()))
		d.Notifier = n
	}

	log.Info("staywatch configured",
		logger.String("config", cfg.ConfigPath),
		logger.String("backend", backend.Name()),
		logger.Int("searches", len(f.Searches)),
		logger.Int("filter_rules", engine.Len()))

	return &App{
		cfg:      cfg,
		file:     f,
		logger:   log,
		store:    store,
		pipeline: pipeline.New(d),
		searches: f.DomainSearches(),
	}, nil
}

// RunOnce runs every search once. The error is non-nil only when the state
// could not be persisted.
func (a *App) RunOnce(ctx context.Context) (*pipeline.Report, error) {
	report, err := a.pipeline.Run(ctx, a.searches)
	if report != nil {
		a.logReport(report)
	}
	return report, err
}

// Serve runs the pipeline on the configured schedule, starting with an
// immediate run, and exposes the HTTP endpoints until ctx is cancelled.
func (a *App) Serve(ctx context.Context) error {
	a.logger.Infof("Starting staywatch %s on %s", version.Version, a.cfg.ListenPort)
	a.logger.Infof("staywatch %s (commit=%s, built=%s, go=%s)",
		version.Version, version.Commit, version.BuildDate, version.GoVersion)

	allowed, err := utils.NewIPMatcher(a.cfg.AllowedCIDRS)
	if err != nil {
		return &domain.ConfigError{Field: "STAYWATCH_ALLOWED_CIDRS", Err: err}
	}

	runner, err := scheduler.NewRunner(a.cfg.Schedule, a.RunOnce, a.logger)
	if err != nil {
		return &domain.ConfigError{Field: "STAYWATCH_SCHEDULE", Err: err}
	}

	server := httpserver.New(a.cfg.ListenPort, deps.Deps{
		Logger:       a.logger,
		StartTime:    time.Now(),
		Version:      version.Version,
		Commit:       version.Commit,
		BuildDate:    version.BuildDate,
		GoVersion:    version.GoVersion,
		TimeNow:      time.Now,
		AllowedHosts: a.cfg.AllowedHosts,
		AllowedIPs:   allowed,
		TrustProxy:   a.cfg.TrustProxy,
		Runner:       runner,
		Searches:     a.file.SearchNames(),
	})

	if err := runner.Start(ctx, true); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		a.logger.Info("Shutting down gracefully...")
	case serveErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Stop(shutdownCtx); err != nil {
		serveErr = errors.Join(serveErr, fmt.Errorf("failed to stop server: %w", err))
	}
	runner.Stop()

	if serveErr == nil {
		a.logger.Info("staywatch stopped cleanly")
	}
	return serveErr
}

// Close releases the state backend.
func (a *App) Close() error {
	return a.store.Close()
}

func (a *App) logReport(r *pipeline.Report) {
	for _, s := range r.Searches {
		fields := []logger.Field{
			logger.String("run_id", r.RunID),
			logger.String("search", s.Name),
			logger.String("status", string(s.Status)),
			logger.Int("pages", s.Pages),
			logger.Int("found", s.Found),
			logger.Int("excluded", s.Excluded),
			logger.Int("new", s.New),
			logger.Bool("notified", s.Notified),
		}
		switch {
		case s.Status == pipeline.StatusFailed:
			a.logger.Error("search failed", append(fields, logger.String("error", s.Error))...)
		case s.Partial || s.NotifyErr != "":
			a.logger.Warn("search completed with warnings", append(fields,
				logger.String("warning", s.Warning),
				logger.String("notify_error", s.NotifyErr))...)
		default:
			a.logger.Info("search completed", fields...)
		}
	}
	a.logger.Info("run finished",
		logger.String("run_id", r.RunID),
		logger.Int("searches", len(r.Searches)),
		logger.Int("done", r.Count(pipeline.StatusDone)),
		logger.Int("failed", r.Count(pipeline.StatusFailed)),
		logger.Int("skipped", r.Count(pipeline.StatusSkipped)),
		logger.Int("new_ads", r.NewAds()),
		logger.Bool("persisted", r.Persisted),
		logger.Strings("pruned", r.Pruned),
		logger.Duration("duration", r.FinishedAt.Sub(r.StartedAt)))
}

// Package scheduler runs the pipeline on a cron schedule and on demand.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/MrSnakeDoc/staywatch/internal/logger"
	"github.com/MrSnakeDoc/staywatch/internal/pipeline"
)

// RunFunc performs one complete run.
type RunFunc func(ctx context.Context) (*pipeline.Report, error)

// Runner serialises runs: scheduled ticks and manual triggers are queued in a
// single slot, so at most one run executes and at most one waits.
type Runner struct {
	run    RunFunc
	logger logger.Logger
	spec   string
	cron   *cron.Cron

	queue   chan string // trigger source, capacity 1
	stopCh  chan struct{}
	done    chan struct{}
	running atomic.Bool

	mu        sync.RWMutex
	last      *pipeline.Report
	lastErr   error
	completed int
}

// NewRunner creates a runner for a standard cron spec or descriptor
// ("@every 1h", "0 */2 * * *"). The schedule is validated here.
func NewRunner(spec string, run RunFunc, log logger.Logger) (*Runner, error) {
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	return &Runner{
		run:    run,
		logger: log,
		spec:   spec,
		cron:   cron.New(cron.WithLogger(cronLogger{log: log})),
		queue:  make(chan string, 1),
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}, nil
}

// Start registers the schedule, starts the worker and queues an initial run
// when runNow is set. Runs use ctx; cancelling it interrupts the current run.
func (r *Runner) Start(ctx context.Context, runNow bool) error {
	if _, err := r.cron.AddFunc(r.spec, func() {
		if !r.enqueue("schedule") {
			r.logger.Warn("previous run still queued, skipping scheduled tick")
		}
	}); err != nil {
		return fmt.Errorf("cron.AddFunc: %w", err)
	}

	go r.worker(ctx)
	r.cron.Start()
	r.logger.Info("scheduler started",
		logger.String("schedule", r.spec),
		logger.String("next_run", r.NextRun().Format(time.RFC3339)))

	if runNow {
		r.enqueue("startup")
	}
	return nil
}

// Trigger queues a manual run. It returns false when a run is already queued.
func (r *Runner) Trigger() bool {
	ok := r.enqueue("manual")
	if ok {
		r.logger.Info("manual run triggered")
	}
	return ok
}

func (r *Runner) enqueue(source string) bool {
	select {
	case r.queue <- source:
		return true
	default:
		return false
	}
}

func (r *Runner) worker(ctx context.Context) {
	defer close(r.done)
	for {
		select {
		case source := <-r.queue:
			r.execute(ctx, source)
		case <-r.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (r *Runner) execute(ctx context.Context, source string) {
	r.running.Store(true)
	defer r.running.Store(false)

	r.logger.Info("run starting", logger.String("trigger", source))
	report, err := r.run(ctx)
	if err != nil {
		r.logger.Error("run failed", logger.String("trigger", source), logger.Error(err))
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if report != nil {
		r.last = report
	}
	r.lastErr = err
	if err == nil {
		r.completed++
	}
}

// Stop halts the schedule and waits for the current run to return.
func (r *Runner) Stop() {
	<-r.cron.Stop().Done()
	close(r.stopCh)
	<-r.done
	r.logger.Info("scheduler stopped")
}

// Last returns the report and error of the most recent run.
func (r *Runner) Last() (*pipeline.Report, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.last, r.lastErr
}

// Ready reports whether at least one run completed and persisted its state.
func (r *Runner) Ready() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.completed > 0
}

// Running reports whether a run is in progress.
func (r *Runner) Running() bool { return r.running.Load() }

// NextRun returns the next scheduled time, zero before Start.
func (r *Runner) NextRun() time.Time {
	entries := r.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

// cronLogger adapts Logger to cron.Logger.
type cronLogger struct {
	log logger.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.log.Debugf("cron: %s %v", msg, keysAndValues)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.log.Error("cron: "+msg, logger.Error(err), logger.String("details", fmt.Sprint(keysAndValues...)))
}

// Package pipeline runs every configured search through
// paginate -> filter -> diff -> notify, then persists all snapshots at once.
package pipeline

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/MrSnakeDoc/staywatch/internal/domain"
	"github.com/MrSnakeDoc/staywatch/internal/filter"
	"github.com/MrSnakeDoc/staywatch/internal/logger"
	"github.com/MrSnakeDoc/staywatch/internal/sources/booking"
)

// Paginator returns the current ads of a search.
type Paginator interface {
	Paginate(ctx context.Context, search domain.Search) (*booking.Result, error)
}

// Notifier sends one digest per search.
type Notifier interface {
	Notify(ctx context.Context, event domain.NotificationEvent) error
}

// Store reads snapshots and writes them back in one unit.
type Store interface {
	Load(name string) domain.Snapshot
	SaveAll(ctx context.Context, updates map[string][]domain.Ad) error
	Prune(ctx context.Context, keep []string) ([]string, error)
}

type Options struct {
	// Concurrency is the number of searches processed at once (default 1).
	Concurrency int
	// NoNotifications persists snapshots without notifying, e.g. to seed a baseline.
	NoNotifications bool
	// PersistTimeout bounds the final write and the notifications of
	// searches that completed before a cancellation.
	PersistTimeout time.Duration
	// Prune drops snapshots of searches that are no longer configured.
	Prune bool
}

type Deps struct {
	Paginator Paginator
	Filter    *filter.Engine
	Store     Store
	Notifier  Notifier // nil disables notifications
	Logger    logger.Logger
	Options   Options
}

type Pipeline struct {
	paginator Paginator
	filter    *filter.Engine
	store     Store
	notifier  Notifier
	logger    logger.Logger
	opts      Options

	newRunID func() string
	now      func() time.Time
}

func New(d Deps) *Pipeline {
	opts := d.Options
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.PersistTimeout <= 0 {
		opts.PersistTimeout = 30 * time.Second
	}
	f := d.Filter
	if f == nil {
		f = &filter.Engine{}
	}
	return &Pipeline{
		paginator: d.Paginator,
		filter:    f,
		store:     d.Store,
		notifier:  d.Notifier,
		logger:    d.Logger,
		opts:      opts,
		newRunID:  uuid.NewString,
		now:       time.Now,
	}
}

// Run processes the searches and persists the snapshots of every search that
// got past pagination in a single write. A failed search does not stop the
// others. The returned error is non-nil only when the state could not be
// persisted (*domain.PersistenceError); the report is returned in every case.
func (p *Pipeline) Run(ctx context.Context, searches []domain.Search) (*Report, error) {
	report := &Report{
		RunID:     p.newRunID(),
		StartedAt: p.now(),
		Searches:  make([]SearchReport, len(searches)),
	}
	log := p.logger.With(logger.String("run_id", report.RunID))
	log.Info("run started",
		logger.Int("searches", len(searches)),
		logger.Int("concurrency", p.opts.Concurrency),
		logger.Bool("notifications", p.notifications()))

	var (
		mu      sync.Mutex
		updates = make(map[string][]domain.Ad, len(searches))
	)

	var g errgroup.Group
	g.SetLimit(p.opts.Concurrency)
	for i, s := range searches {
		sr := &report.Searches[i]
		sr.Name = s.Name
		sr.Status = StatusPending

		if ctx.Err() != nil {
			sr.Status = StatusSkipped
			continue
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				sr.Status = StatusSkipped
				return nil
			}
			ads, ok := p.runSearch(ctx, s, sr, log.With(logger.String("search", s.Name)))
			if ok {
				mu.Lock()
				updates[s.Name] = ads
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	err := p.persist(ctx, report, updates, searches, log)
	report.FinishedAt = p.now()

	log.Info("run finished",
		logger.Int("done", report.Count(StatusDone)),
		logger.Int("failed", report.Count(StatusFailed)),
		logger.Int("skipped", report.Count(StatusSkipped)),
		logger.Int("new_ads", report.NewAds()),
		logger.Bool("persisted", report.Persisted),
		logger.Duration("elapsed", report.FinishedAt.Sub(report.StartedAt)))
	return report, err
}

func (p *Pipeline) notifications() bool {
	return p.notifier != nil && !p.opts.NoNotifications
}

// runSearch takes a search up to Persisting and returns the snapshot to store.
func (p *Pipeline) runSearch(ctx context.Context, s domain.Search, sr *SearchReport, log logger.Logger) ([]domain.Ad, bool) {
	start := p.now()
	defer func() { sr.Duration = p.now().Sub(start) }()

	sr.Status = StatusPaginating
	res, err := p.paginator.Paginate(ctx, s)
	if err != nil {
		sr.Status = StatusFailed
		sr.Error = err.Error()
		log.Error("search failed", logger.String("url", s.URL), logger.Error(err))
		return nil, false
	}
	sr.Pages = res.Pages
	sr.Found = len(res.Ads)
	if res.Partial {
		sr.Partial = true
		if res.Warning != nil {
			sr.Warning = res.Warning.Error()
		}
	}

	sr.Status = StatusFiltering
	kept, excluded := p.filter.Apply(res.Ads)
	sr.Excluded = len(excluded)
	for _, ex := range excluded {
		log.Debug("ad excluded",
			logger.String("title", ex.Ad.Title),
			logger.String("rule", ex.Rule))
	}

	sr.Status = StatusDiffing
	prev := p.store.Load(s.Name)
	fresh := domain.NewAds(kept, prev)
	sr.New = len(fresh)
	if prev.IsEmpty() && len(kept) > 0 {
		log.Info("no previous snapshot, seeding baseline", logger.Int("ads", len(kept)))
	}

	if len(fresh) > 0 && p.notifications() {
		sr.Status = StatusNotifying
		// Detached so an interrupt after pagination still delivers what
		// is about to be persisted as seen.
		nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.opts.PersistTimeout)
		err := p.notifier.Notify(nctx, domain.NotificationEvent{
			SearchName: s.Name,
			SearchURL:  s.URL,
			Ads:        fresh,
		})
		cancel()
		if err != nil {
			sr.NotifyErr = err.Error()
			log.Warn("notification failed", logger.Error(err))
		} else {
			sr.Notified = true
		}
	}

	sr.Status = StatusPersisting
	snapshot := kept
	if res.Partial {
		snapshot = keepUnseen(kept, prev)
	}

	log.Info("search processed",
		logger.Int("pages", sr.Pages),
		logger.Int("found", sr.Found),
		logger.Int("excluded", sr.Excluded),
		logger.Int("new", sr.New),
		logger.Bool("partial", sr.Partial))
	return snapshot, true
}

// keepUnseen adds the previously stored ads missing from a truncated result,
// so ads on pages that failed this time are not reported as new next time.
func keepUnseen(current []domain.Ad, prev domain.Snapshot) []domain.Ad {
	out := append([]domain.Ad(nil), current...)
	have := make(map[string]bool, len(current))
	for _, ad := range current {
		have[ad.ID] = true
	}
	for _, id := range prev.IDs() {
		if !have[id] {
			out = append(out, prev.Ads[id])
		}
	}
	return out
}

func (p *Pipeline) persist(ctx context.Context, report *Report, updates map[string][]domain.Ad, searches []domain.Search, log logger.Logger) error {
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.opts.PersistTimeout)
	defer cancel()

	if err := p.store.SaveAll(pctx, updates); err != nil {
		log.Error("failed to persist state", logger.Error(err))
		for i := range report.Searches {
			if report.Searches[i].Status == StatusPersisting {
				report.Searches[i].Status = StatusFailed
				report.Searches[i].Error = err.Error()
			}
		}
		return err
	}
	report.Persisted = true
	for i := range report.Searches {
		if report.Searches[i].Status == StatusPersisting {
			report.Searches[i].Status = StatusDone
		}
	}

	if !p.opts.Prune || ctx.Err() != nil {
		return nil
	}
	keep := make([]string, 0, len(searches))
	for _, s := range searches {
		keep = append(keep, s.Name)
	}
	removed, err := p.store.Prune(pctx, keep)
	if err != nil {
		log.Error("failed to prune state", logger.Error(err))
		return err
	}
	if len(removed) > 0 {
		sort.Strings(removed)
		report.Pruned = removed
		log.Info("pruned snapshots of removed searches", logger.Strings("searches", removed))
	}
	return nil
}

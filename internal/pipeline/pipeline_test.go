package pipeline

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"

	"github.com/MrSnakeDoc/staywatch/internal/domain"
	"github.com/MrSnakeDoc/staywatch/internal/filter"
	"github.com/MrSnakeDoc/staywatch/internal/logger"
	"github.com/MrSnakeDoc/staywatch/internal/sources/booking"
	"github.com/MrSnakeDoc/staywatch/internal/state"
)

type fakePaginator struct {
	mu      sync.Mutex
	results map[string]*booking.Result
	errs    map[string]error
	calls   []string
	onCall  func(name string)
}

func (f *fakePaginator) Paginate(_ context.Context, s domain.Search) (*booking.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, s.Name)
	f.mu.Unlock()
	if f.onCall != nil {
		f.onCall(s.Name)
	}
	if err := f.errs[s.Name]; err != nil {
		return nil, err
	}
	res := f.results[s.Name]
	if res == nil {
		return &booking.Result{Pages: 1}, nil
	}
	cp := *res
	cp.Ads = append([]domain.Ad(nil), res.Ads...)
	return &cp, nil
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []domain.NotificationEvent
	err    error
}

func (f *fakeNotifier) Notify(_ context.Context, ev domain.NotificationEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
	return f.err
}

func ad(id, title string) domain.Ad {
	return domain.Ad{ID: id, Title: title, URL: "https://www.booking.com/hotel/hr/" + id + ".html"}
}

func ids(ads []domain.Ad) []string {
	out := make([]string, 0, len(ads))
	for _, a := range ads {
		out = append(out, a.ID)
	}
	return out
}

type fixture struct {
	backend   *state.MemoryBackend
	store     *state.Store
	paginator *fakePaginator
	notifier  *fakeNotifier
}

func newFixture(t *testing.T, prior map[string][]domain.Ad) *fixture {
	t.Helper()
	ctx := context.Background()
	backend := state.NewMemoryBackend(nil)
	st, err := state.Open(ctx, backend, logger.NewNop())
	if err != nil {
		t.Fatalf("state.Open() error = %v", err)
	}
	if len(prior) > 0 {
		if err := st.SaveAll(ctx, prior); err != nil {
			t.Fatalf("seeding state: %v", err)
		}
	}
	backend.Writes = 0
	return &fixture{
		backend:   backend,
		store:     st,
		paginator: &fakePaginator{results: map[string]*booking.Result{}, errs: map[string]error{}},
		notifier:  &fakeNotifier{},
	}
}

func (f *fixture) pipeline(t *testing.T, patterns []string, opts Options) *Pipeline {
	t.Helper()
	engine, err := filter.Compile(patterns)
	if err != nil {
		t.Fatalf("filter.Compile() error = %v", err)
	}
	return New(Deps{
		Paginator: f.paginator,
		Filter:    engine,
		Store:     f.store,
		Notifier:  f.notifier,
		Logger:    logger.NewNop(),
		Options:   opts,
	})
}

var rovinj = domain.Search{Name: "Hotels in Rovinj", URL: "https://www.booking.com/searchresults.html?ss=Rovinj", Recursive: true}

func TestRunRovinjScenario(t *testing.T) {
	f := newFixture(t, map[string][]domain.Ad{rovinj.Name: {ad("h1", "H1")}})
	f.paginator.results[rovinj.Name] = &booking.Result{Pages: 2, Ads: []domain.Ad{ad("h1", "H1"), ad("h2", "H2"), ad("h3", "H3")}}

	report, err := f.pipeline(t, nil, Options{}).Run(context.Background(), []domain.Search{rovinj})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(f.notifier.events) != 1 {
		t.Fatalf("got %d notifications, want 1", len(f.notifier.events))
	}
	ev := f.notifier.events[0]
	if ev.SearchName != rovinj.Name || ev.SearchURL != rovinj.URL {
		t.Errorf("event = %+v", ev)
	}
	if got := ids(ev.Ads); !reflect.DeepEqual(got, []string{"h2", "h3"}) {
		t.Errorf("notified ads = %v, want [h2 h3]", got)
	}
	if got := f.store.Load(rovinj.Name).IDs(); !reflect.DeepEqual(got, []string{"h1", "h2", "h3"}) {
		t.Errorf("snapshot = %v, want [h1 h2 h3]", got)
	}

	sr, _ := report.Search(rovinj.Name)
	if sr.Status != StatusDone || sr.New != 2 || sr.Found != 3 || sr.Pages != 2 || !sr.Notified {
		t.Errorf("report = %+v", sr)
	}
	if !report.Persisted || report.RunID == "" {
		t.Errorf("Persisted = %v, RunID = %q", report.Persisted, report.RunID)
	}
}

func TestRunIsIdempotent(t *testing.T) {
	f := newFixture(t, nil)
	f.paginator.results[rovinj.Name] = &booking.Result{Pages: 1, Ads: []domain.Ad{ad("h1", "H1"), ad("h2", "H2")}}
	p := f.pipeline(t, nil, Options{})

	if _, err := p.Run(context.Background(), []domain.Search{rovinj}); err != nil {
		t.Fatalf("first Run() error = %v", err)
	}
	report, err := p.Run(context.Background(), []domain.Search{rovinj})
	if err != nil {
		t.Fatalf("second Run() error = %v", err)
	}

	if len(f.notifier.events) != 1 {
		t.Errorf("got %d notifications over two identical runs, want 1", len(f.notifier.events))
	}
	if report.NewAds() != 0 {
		t.Errorf("second run found %d new ads", report.NewAds())
	}
}

func TestRunSeedingWithoutNotifications(t *testing.T) {
	f := newFixture(t, nil)
	f.paginator.results[rovinj.Name] = &booking.Result{Pages: 1, Ads: []domain.Ad{ad("h1", "H1"), ad("h2", "H2")}}

	report, err := f.pipeline(t, nil, Options{NoNotifications: true}).Run(context.Background(), []domain.Search{rovinj})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(f.notifier.events) != 0 {
		t.Errorf("notifications sent while suppressed: %d", len(f.notifier.events))
	}
	if got := f.store.Load(rovinj.Name).IDs(); !reflect.DeepEqual(got, []string{"h1", "h2"}) {
		t.Errorf("snapshot = %v, want the full seed", got)
	}
	sr, _ := report.Search(rovinj.Name)
	if sr.New != 2 || sr.Notified || sr.Status != StatusDone {
		t.Errorf("report = %+v", sr)
	}
}

func TestRunSeedingNotifiesByDefault(t *testing.T) {
	f := newFixture(t, nil)
	f.paginator.results[rovinj.Name] = &booking.Result{Pages: 1, Ads: []domain.Ad{ad("h1", "H1")}}

	if _, err := f.pipeline(t, nil, Options{}).Run(context.Background(), []domain.Search{rovinj}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(f.notifier.events) != 1 {
		t.Errorf("first run should notify the seed, got %d notifications", len(f.notifier.events))
	}
}

func TestRunExclusion(t *testing.T) {
	f := newFixture(t, nil)
	f.paginator.results[rovinj.Name] = &booking.Result{Pages: 1, Ads: []domain.Ad{
		ad("hostel", "Cozy Hostel Rovinj"),
		ad("grand", "Grand Hotel"),
	}}

	report, err := f.pipeline(t, []string{"hostel"}, Options{}).Run(context.Background(), []domain.Search{rovinj})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got := ids(f.notifier.events[0].Ads); !reflect.DeepEqual(got, []string{"grand"}) {
		t.Errorf("notified = %v, want [grand]", got)
	}
	if got := f.store.Load(rovinj.Name).IDs(); !reflect.DeepEqual(got, []string{"grand"}) {
		t.Errorf("snapshot = %v, excluded ads must not be stored", got)
	}
	if sr, _ := report.Search(rovinj.Name); sr.Excluded != 1 {
		t.Errorf("Excluded = %d, want 1", sr.Excluded)
	}
}

func TestRunPartialFailureContainment(t *testing.T) {
	a := domain.Search{Name: "A", URL: "https://example.com/a", Recursive: true}
	b := domain.Search{Name: "B", URL: "https://example.com/b", Recursive: true}

	f := newFixture(t, map[string][]domain.Ad{"B": {ad("b1", "B1")}})
	f.paginator.results["A"] = &booking.Result{Pages: 1, Ads: []domain.Ad{ad("a1", "A1")}}
	f.paginator.errs["B"] = &domain.NetworkError{URL: b.URL, StatusCode: 503, Err: errors.New("unavailable")}

	report, err := f.pipeline(t, nil, Options{Concurrency: 2}).Run(context.Background(), []domain.Search{a, b})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(f.notifier.events) != 1 || f.notifier.events[0].SearchName != "A" {
		t.Errorf("events = %+v, want one for A", f.notifier.events)
	}
	if !f.store.Load("A").Has("a1") {
		t.Error("A was not persisted")
	}
	if got := f.store.Load("B").IDs(); !reflect.DeepEqual(got, []string{"b1"}) {
		t.Errorf("B snapshot = %v, a failed search must keep its previous snapshot", got)
	}

	srA, _ := report.Search("A")
	srB, _ := report.Search("B")
	if srA.Status != StatusDone || srB.Status != StatusFailed || srB.Error == "" {
		t.Errorf("statuses A=%s B=%s (%s)", srA.Status, srB.Status, srB.Error)
	}
	if f.backend.Writes != 1 {
		t.Errorf("Writes = %d, want a single write per run", f.backend.Writes)
	}
}

func TestRunPartialResultKeepsUnseenAds(t *testing.T) {
	f := newFixture(t, map[string][]domain.Ad{rovinj.Name: {ad("h1", "H1"), ad("h9", "H9")}})
	f.paginator.results[rovinj.Name] = &booking.Result{
		Pages:   1,
		Ads:     []domain.Ad{ad("h1", "H1"), ad("h2", "H2")},
		Partial: true,
		Warning: errors.New("page 2: http 500"),
	}

	report, err := f.pipeline(t, nil, Options{}).Run(context.Background(), []domain.Search{rovinj})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got := f.store.Load(rovinj.Name).IDs(); !reflect.DeepEqual(got, []string{"h1", "h2", "h9"}) {
		t.Errorf("snapshot = %v, want h9 kept from the previous run", got)
	}
	sr, _ := report.Search(rovinj.Name)
	if !sr.Partial || sr.Warning == "" || sr.Status != StatusDone || sr.New != 1 {
		t.Errorf("report = %+v", sr)
	}
}

func TestRunNotificationFailureStillPersists(t *testing.T) {
	f := newFixture(t, nil)
	f.paginator.results[rovinj.Name] = &booking.Result{Pages: 1, Ads: []domain.Ad{ad("h1", "H1")}}
	f.notifier.err = &domain.NotificationDispatchError{Sender: "pushover", Err: errors.New("http 500")}

	report, err := f.pipeline(t, nil, Options{}).Run(context.Background(), []domain.Search{rovinj})
	if err != nil {
		t.Fatalf("Run() error = %v, notification failures are not fatal", err)
	}
	if !f.store.Load(rovinj.Name).Has("h1") {
		t.Error("state not persisted after a notification failure")
	}
	sr, _ := report.Search(rovinj.Name)
	if sr.Status != StatusDone || sr.Notified || sr.NotifyErr == "" {
		t.Errorf("report = %+v", sr)
	}
}

func TestRunPersistenceErrorIsFatal(t *testing.T) {
	f := newFixture(t, nil)
	f.paginator.results[rovinj.Name] = &booking.Result{Pages: 1, Ads: []domain.Ad{ad("h1", "H1")}}
	f.backend.FailWrite = errors.New("read-only file system")

	report, err := f.pipeline(t, nil, Options{}).Run(context.Background(), []domain.Search{rovinj})
	var pe *domain.PersistenceError
	if !errors.As(err, &pe) {
		t.Fatalf("Run() error = %v, want *domain.PersistenceError", err)
	}
	if report == nil || report.Persisted {
		t.Fatalf("report = %+v, want Persisted=false", report)
	}
	if sr, _ := report.Search(rovinj.Name); sr.Status != StatusFailed {
		t.Errorf("status = %s, want failed", sr.Status)
	}
}

func TestRunCancelledBeforeStartSkips(t *testing.T) {
	f := newFixture(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := f.pipeline(t, nil, Options{}).Run(ctx, []domain.Search{rovinj})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(f.paginator.calls) != 0 {
		t.Errorf("paginated %v after cancellation", f.paginator.calls)
	}
	if sr, _ := report.Search(rovinj.Name); sr.Status != StatusSkipped {
		t.Errorf("status = %s, want skipped", sr.Status)
	}
	if f.backend.Writes != 0 {
		t.Error("nothing to persist, nothing should be written")
	}
}

func TestRunCancelledMidRunPersistsCompletedSearches(t *testing.T) {
	a := domain.Search{Name: "A", URL: "https://example.com/a"}
	b := domain.Search{Name: "B", URL: "https://example.com/b"}

	f := newFixture(t, nil)
	f.paginator.results["A"] = &booking.Result{Pages: 1, Ads: []domain.Ad{ad("a1", "A1")}}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	// Interrupt arrives while A is being scraped.
	f.paginator.onCall = func(name string) {
		if name == "A" {
			cancel()
		}
	}

	report, err := f.pipeline(t, nil, Options{}).Run(ctx, []domain.Search{a, b})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !f.store.Load("A").Has("a1") {
		t.Error("A completed before the interrupt and must be persisted")
	}
	if len(f.notifier.events) != 1 {
		t.Errorf("A should still be notified, got %d events", len(f.notifier.events))
	}
	srB, _ := report.Search("B")
	if srB.Status != StatusSkipped {
		t.Errorf("B status = %s, want skipped", srB.Status)
	}
}

func TestRunPrune(t *testing.T) {
	f := newFixture(t, map[string][]domain.Ad{"Old search": {ad("o1", "O1")}})
	f.paginator.results[rovinj.Name] = &booking.Result{Pages: 1, Ads: []domain.Ad{ad("h1", "H1")}}

	report, err := f.pipeline(t, nil, Options{Prune: true}).Run(context.Background(), []domain.Search{rovinj})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !reflect.DeepEqual(report.Pruned, []string{"Old search"}) {
		t.Errorf("Pruned = %v", report.Pruned)
	}
	if !reflect.DeepEqual(f.store.Names(), []string{rovinj.Name}) {
		t.Errorf("Names() = %v", f.store.Names())
	}
}

func TestRunWithoutPruneKeepsOldSearches(t *testing.T) {
	f := newFixture(t, map[string][]domain.Ad{"Old search": {ad("o1", "O1")}})

	if _, err := f.pipeline(t, nil, Options{}).Run(context.Background(), []domain.Search{rovinj}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !f.store.Load("Old search").Has("o1") {
		t.Error("snapshots of unconfigured searches must survive unless pruning is requested")
	}
}

func TestRunKeepsConfigOrderInReport(t *testing.T) {
	f := newFixture(t, nil)
	searches := []domain.Search{
		{Name: "C", URL: "https://example.com/c"},
		{Name: "A", URL: "https://example.com/a"},
		{Name: "B", URL: "https://example.com/b"},
	}

	report, err := f.pipeline(t, nil, Options{Concurrency: 3}).Run(context.Background(), searches)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	var names []string
	for _, sr := range report.Searches {
		names = append(names, sr.Name)
	}
	if !reflect.DeepEqual(names, []string{"C", "A", "B"}) {
		t.Errorf("report order = %v", names)
	}
}

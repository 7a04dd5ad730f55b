package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/pixvault/pixvault-server/internal/domain"
	"github.com/pixvault/pixvault-server/internal/downloader"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

type fakeCatalog struct {
	mu        sync.Mutex
	authCalls int
	authErrs  []error // consumed per call, nil afterwards

	items   []domain.BookmarkedItem
	details map[int64]*domain.BookmarkedItem
	// detailErr fails every FetchDetail when set.
	detailErr error
}

func (f *fakeCatalog) Authenticate(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.authCalls++
	if len(f.authErrs) > 0 {
		err := f.authErrs[0]
		f.authErrs = f.authErrs[1:]
		return err
	}
	return nil
}

func (f *fakeCatalog) Enumerate(ctx context.Context) <-chan domain.BookmarkedItem {
	ch := make(chan domain.BookmarkedItem, len(f.items))
	for _, item := range f.items {
		ch <- item
	}
	close(ch)
	return ch
}

func (f *fakeCatalog) FetchDetail(_ context.Context, itemID int64) (*domain.BookmarkedItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.detailErr != nil {
		return nil, f.detailErr
	}
	return f.details[itemID], nil
}

type fakeDownloader struct {
	mu            sync.Mutex
	running       int
	maxConcurrent int
	runs          int
	gate          chan struct{} // when set, Run blocks until it closes
}

func (f *fakeDownloader) Run(ctx context.Context, items <-chan domain.BookmarkedItem, _ func(domain.BookmarkedItem) []domain.DownloadTask) downloader.Stats {
	f.mu.Lock()
	f.running++
	f.runs++
	if f.running > f.maxConcurrent {
		f.maxConcurrent = f.running
	}
	gate := f.gate
	f.mu.Unlock()

	var stats downloader.Stats
	for range items {
		stats.Items++
	}
	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	f.running--
	f.mu.Unlock()
	return stats
}

type fakeRegistry struct {
	mu      sync.Mutex
	missing map[int64]bool
	updated []int64
	marked  []int64
}

func (f *fakeRegistry) ItemsMissingMetadata(_ context.Context, limit int) ([]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []int64
	for id := range f.missing {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func (f *fakeRegistry) UpdateMetadata(_ context.Context, itemID int64, _ domain.RemoteMetadata) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.missing, itemID)
	f.updated = append(f.updated, itemID)
	return nil
}

func (f *fakeRegistry) MarkMetadataSynced(_ context.Context, itemID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.missing, itemID)
	f.marked = append(f.marked, itemID)
	return nil
}

func newTestEngine(catalog *fakeCatalog, dl *fakeDownloader, registry *fakeRegistry, cfg Config) *Engine {
	if registry.missing == nil {
		registry.missing = map[int64]bool{}
	}
	return New(catalog, dl, registry, cfg, testLogger())
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestEngine_AtMostOneConcurrentCycle(t *testing.T) {
	gate := make(chan struct{})
	catalog := &fakeCatalog{}
	dl := &fakeDownloader{gate: gate}
	e := newTestEngine(catalog, dl, &fakeRegistry{}, Config{})
	e.Start()
	defer e.Stop()

	e.Enqueue(TriggerManual)
	waitFor(t, "first cycle to start", func() bool { return e.Status().InProgress })

	// Burst of triggers while the first cycle blocks in the downloader.
	e.Enqueue(TriggerManual)
	e.Enqueue(TriggerSchedule)

	close(gate)
	waitFor(t, "all cycles to drain", func() bool {
		st := e.Status()
		return !st.InProgress && st.QueuedJobs == 0 && st.Cycles == 3
	})

	dl.mu.Lock()
	defer dl.mu.Unlock()
	if dl.maxConcurrent != 1 {
		t.Errorf("cycles overlapped: max concurrency %d", dl.maxConcurrent)
	}
	if dl.runs != 3 {
		t.Errorf("expected 3 cycle runs, got %d", dl.runs)
	}
}

func TestEngine_EnqueueCoalescesBursts(t *testing.T) {
	// Engine not started: jobs accumulate in the queue.
	e := newTestEngine(&fakeCatalog{}, &fakeDownloader{}, &fakeRegistry{}, Config{})

	accepted := 0
	for i := 0; i < 5; i++ {
		if e.Enqueue(TriggerManual) {
			accepted++
		}
	}

	if accepted != 3 {
		t.Errorf("expected 3 accepted triggers, got %d", accepted)
	}
	if got := e.Status().QueuedJobs; got != 3 {
		t.Errorf("expected 3 queued jobs, got %d", got)
	}
}

func TestEngine_FailedCycleDoesNotKillEngine(t *testing.T) {
	catalog := &fakeCatalog{authErrs: []error{fmt.Errorf("credential rejected")}}
	dl := &fakeDownloader{}
	e := newTestEngine(catalog, dl, &fakeRegistry{}, Config{})
	e.Start()
	defer e.Stop()

	e.Enqueue(TriggerManual)
	waitFor(t, "failed cycle", func() bool {
		st := e.Status()
		return st.Cycles == 1 && !st.InProgress
	})

	if got := e.Status().LastError; got == "" {
		t.Error("expected last error after auth failure")
	}
	dl.mu.Lock()
	runs := dl.runs
	dl.mu.Unlock()
	if runs != 0 {
		t.Errorf("failed auth must skip the download pass, got %d runs", runs)
	}

	// The next trigger still runs, and success clears the error.
	e.Enqueue(TriggerManual)
	waitFor(t, "recovery cycle", func() bool { return e.Status().Cycles == 2 })
	if got := e.Status().LastError; got != "" {
		t.Errorf("expected cleared error, got %q", got)
	}
}

func TestEngine_AutoStartRunsCycle(t *testing.T) {
	catalog := &fakeCatalog{items: []domain.BookmarkedItem{{ID: 1}}}
	e := newTestEngine(catalog, &fakeDownloader{}, &fakeRegistry{}, Config{AutoStart: true})
	e.Start()
	defer e.Stop()

	waitFor(t, "startup cycle", func() bool { return e.Status().Cycles == 1 })
	if got := e.Status().LastStats.Items; got != 1 {
		t.Errorf("expected 1 enumerated item in stats, got %d", got)
	}
}

func TestEngine_IntervalTimerEnqueues(t *testing.T) {
	catalog := &fakeCatalog{}
	e := newTestEngine(catalog, &fakeDownloader{}, &fakeRegistry{}, Config{Interval: 20 * time.Millisecond})
	e.Start()
	defer e.Stop()

	waitFor(t, "scheduled cycles", func() bool { return e.Status().Cycles >= 2 })
}

func TestBackfill_CompletesAndMarksGone(t *testing.T) {
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	catalog := &fakeCatalog{
		details: map[int64]*domain.BookmarkedItem{
			1: {ID: 1, Tags: []string{"refreshed"}, BookmarkCount: 9, CreatedAt: &created},
			// Item 2 is gone remotely: FetchDetail returns nil.
		},
	}
	registry := &fakeRegistry{missing: map[int64]bool{1: true, 2: true}}
	e := newTestEngine(catalog, &fakeDownloader{}, registry, Config{})

	if err := e.backfill(context.Background()); err != nil {
		t.Fatalf("backfill: %v", err)
	}

	registry.mu.Lock()
	defer registry.mu.Unlock()
	if len(registry.missing) != 0 {
		t.Errorf("expected drained backlog, got %v", registry.missing)
	}
	if len(registry.updated) != 1 || registry.updated[0] != 1 {
		t.Errorf("expected item 1 updated, got %v", registry.updated)
	}
	if len(registry.marked) != 1 || registry.marked[0] != 2 {
		t.Errorf("expected item 2 marked synced, got %v", registry.marked)
	}
}

func TestBackfill_ZeroProgressTerminates(t *testing.T) {
	catalog := &fakeCatalog{detailErr: fmt.Errorf("remote down")}
	registry := &fakeRegistry{missing: map[int64]bool{1: true, 2: true, 3: true}}
	e := newTestEngine(catalog, &fakeDownloader{}, registry, Config{})

	done := make(chan error, 1)
	go func() { done <- e.backfill(context.Background()) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("backfill: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("backfill did not terminate on zero progress")
	}

	registry.mu.Lock()
	defer registry.mu.Unlock()
	if len(registry.missing) != 3 {
		t.Errorf("items must remain unsynced after failed batch, got %v", registry.missing)
	}
}

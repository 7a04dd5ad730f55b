// Package syncer owns the sync-cycle state machine: a coalescing job
// queue, a single serial cycle worker, and an optional interval timer.
package syncer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/pixvault/pixvault-server/internal/domain"
	"github.com/pixvault/pixvault-server/internal/downloader"
)

const (
	// queueThreshold coalesces trigger bursts: an enqueue is dropped
	// when more than this many jobs are already waiting.
	queueThreshold = 2

	queueCapacity = 8

	// joinTimeout bounds how long Stop waits for the worker to finish
	// its current cycle.
	joinTimeout = 30 * time.Second
)

// Trigger reasons carried on queued jobs.
const (
	TriggerManual   = "manual"
	TriggerSchedule = "schedule"
	TriggerStartup  = "startup"
)

// Catalog is the remote client surface the engine drives.
type Catalog interface {
	Authenticate(ctx context.Context) error
	Enumerate(ctx context.Context) <-chan domain.BookmarkedItem
	FetchDetail(ctx context.Context, itemID int64) (*domain.BookmarkedItem, error)
}

// Downloader runs one download fan-out pass.
type Downloader interface {
	Run(ctx context.Context, items <-chan domain.BookmarkedItem, expand func(domain.BookmarkedItem) []domain.DownloadTask) downloader.Stats
}

// Registry is the metadata-backfill surface of the download registry.
type Registry interface {
	ItemsMissingMetadata(ctx context.Context, limit int) ([]int64, error)
	UpdateMetadata(ctx context.Context, itemID int64, meta domain.RemoteMetadata) error
	MarkMetadataSynced(ctx context.Context, itemID int64) error
}

// Status is a read-only snapshot of the engine, safe to poll.
type Status struct {
	InProgress     bool             `json:"in_progress"`
	Cycles         int              `json:"cycles"`
	LastStartedAt  *time.Time       `json:"last_started_at,omitempty"`
	LastFinishedAt *time.Time       `json:"last_finished_at,omitempty"`
	LastError      string           `json:"last_error,omitempty"`
	LastStats      downloader.Stats `json:"last_stats"`
	QueuedJobs     int              `json:"queued_jobs"`
}

// Config tunes the engine.
type Config struct {
	// Interval between scheduled cycles; 0 disables the timer.
	Interval time.Duration
	// AutoStart enqueues a startup job when the engine starts.
	AutoStart bool
	// Expand turns one item into its download tasks.
	Expand func(domain.BookmarkedItem) []domain.DownloadTask
}

// Engine serializes sync cycles: at most one runs at any time.
type Engine struct {
	catalog    Catalog
	downloader Downloader
	registry   Registry
	cfg        Config
	logger     *slog.Logger

	queue chan string
	stop  chan struct{}
	done  chan struct{}

	startOnce sync.Once
	stopOnce  sync.Once

	mu     sync.RWMutex
	status Status
}

// New creates a sync engine. Start must be called before triggers have
// any effect.
func New(catalog Catalog, dl Downloader, registry Registry, cfg Config, logger *slog.Logger) *Engine {
	return &Engine{
		catalog:    catalog,
		downloader: dl,
		registry:   registry,
		cfg:        cfg,
		logger:     logger,
		queue:      make(chan string, queueCapacity),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Start launches the cycle worker and, when configured, the interval
// timer and the startup job.
func (e *Engine) Start() {
	e.startOnce.Do(func() {
		go e.worker()

		if e.cfg.Interval > 0 {
			go e.ticker()
		}
		if e.cfg.AutoStart {
			e.Enqueue(TriggerStartup)
		}
	})
}

// Stop signals the worker to exit and waits for the current cycle to
// finish, up to joinTimeout. In-flight downloads complete naturally.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() { close(e.stop) })

	select {
	case <-e.done:
	case <-time.After(joinTimeout):
		e.logger.Warn("sync worker did not stop within join timeout")
	}
}

// Enqueue requests a cycle. Bursts coalesce: when the queue already
// holds more than queueThreshold jobs the request is dropped, since a
// queued cycle will observe the same remote state anyway.
func (e *Engine) Enqueue(reason string) bool {
	if len(e.queue) > queueThreshold {
		e.logger.Debug("sync trigger coalesced", "reason", reason, "queued", len(e.queue))
		return false
	}

	select {
	case e.queue <- reason:
		e.logger.Info("sync cycle queued", "reason", reason)
		return true
	default:
		return false
	}
}

// Status returns a snapshot of the engine state.
func (e *Engine) Status() Status {
	e.mu.RLock()
	defer e.mu.RUnlock()
	st := e.status
	st.QueuedJobs = len(e.queue)
	return st
}

// worker consumes the queue serially; this is the ordering guarantee
// that no two cycles overlap.
func (e *Engine) worker() {
	defer close(e.done)

	for {
		select {
		case <-e.stop:
			return
		case reason := <-e.queue:
			e.runCycle(reason)
		}
	}
}

// ticker enqueues a scheduled job every interval until stopped.
func (e *Engine) ticker() {
	t := time.NewTicker(e.cfg.Interval)
	defer t.Stop()

	for {
		select {
		case <-e.stop:
			return
		case <-t.C:
			e.Enqueue(TriggerSchedule)
		}
	}
}

// runCycle executes one full cycle: authenticate, download pass,
// metadata backfill. A failure at any stage ends the cycle as failed
// without crashing the engine.
func (e *Engine) runCycle(reason string) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Let Stop abort the cycle cooperatively.
	go func() {
		select {
		case <-e.stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	started := time.Now().UTC()
	e.mu.Lock()
	e.status.InProgress = true
	e.status.LastStartedAt = &started
	e.status.LastError = ""
	e.mu.Unlock()

	e.logger.Info("sync cycle started", "reason", reason)

	var stats downloader.Stats
	err := e.catalog.Authenticate(ctx)
	if err == nil {
		items := e.catalog.Enumerate(ctx)
		stats = e.downloader.Run(ctx, items, e.cfg.Expand)
		err = e.backfill(ctx)
	}

	finished := time.Now().UTC()
	e.mu.Lock()
	e.status.InProgress = false
	e.status.Cycles++
	e.status.LastFinishedAt = &finished
	e.status.LastStats = stats
	if err != nil {
		e.status.LastError = err.Error()
	}
	e.mu.Unlock()

	if err != nil {
		e.logger.Error("sync cycle failed", "reason", reason, "error", err)
		return
	}
	e.logger.Info("sync cycle finished",
		"reason", reason,
		"duration", finished.Sub(started),
		"downloaded", stats.Downloaded,
		"failed", stats.Failed,
	)
}

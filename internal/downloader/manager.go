// Package downloader fans a bookmark enumeration out to a bounded pool
// of concurrent download workers and funnels completed work into the
// registry.
package downloader

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pixvault/pixvault-server/internal/domain"
)

// pendingFactor caps queued work at pendingFactor x concurrency. The
// task channel's bounded buffer is the backpressure: when workers fall
// behind, expansion blocks and the enumeration stops pulling pages.
const pendingFactor = 4

// Fetcher is the transfer side of the catalog client.
type Fetcher interface {
	Download(ctx context.Context, task domain.DownloadTask, destDir string) error
}

// Registry is the subset of the download registry the manager writes.
type Registry interface {
	IsDownloaded(ctx context.Context, itemID int64, page int) (bool, error)
	RecordDownload(ctx context.Context, rec *domain.DownloadRecord) error
}

// Stats summarizes one manager run.
type Stats struct {
	Items      int   `json:"items"`
	Tasks      int   `json:"tasks"`
	Downloaded int64 `json:"downloaded"`
	Skipped    int   `json:"skipped"`
	Repaired   int64 `json:"repaired"`
	Failed     int64 `json:"failed"`
}

// Manager coordinates one cycle's download fan-out.
type Manager struct {
	fetcher     Fetcher
	registry    Registry
	root        string
	concurrency int
	logger      *slog.Logger
}

// New creates a download manager writing under root.
func New(fetcher Fetcher, registry Registry, root string, concurrency int, logger *slog.Logger) *Manager {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Manager{
		fetcher:     fetcher,
		registry:    registry,
		root:        root,
		concurrency: concurrency,
		logger:      logger,
	}
}

// queuedTask marks whether a task is a re-download of a recorded page
// whose file went missing.
type queuedTask struct {
	task   domain.DownloadTask
	repair bool
}

// Run consumes the item sequence, expands each item into tasks, and
// downloads them on the worker pool. Registry writes happen on
// completion only, so an interrupted run leaves no orphaned records.
// Per-task failures are logged and dropped; retry lives in the
// transport layer. Cancelation stops the producer; tasks already
// queued are drained, not killed.
func (m *Manager) Run(ctx context.Context, items <-chan domain.BookmarkedItem, expand func(domain.BookmarkedItem) []domain.DownloadTask) Stats {
	var stats Stats

	tasks := make(chan queuedTask, m.concurrency*pendingFactor)
	var wg sync.WaitGroup
	for i := 0; i < m.concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.worker(ctx, tasks, &stats)
		}()
	}

produce:
	for item := range items {
		stats.Items++
		expanded := expand(item)
		if len(expanded) == 0 {
			m.logger.Debug("item has no resolvable pages", "item_id", item.ID)
			continue
		}

		for _, task := range expanded {
			stats.Tasks++

			qt, ok := m.triage(ctx, task)
			if !ok {
				stats.Skipped++
				continue
			}

			select {
			case tasks <- qt:
			case <-ctx.Done():
				break produce
			}
		}
	}

	close(tasks)
	wg.Wait()

	m.logger.Info("download pass finished",
		"items", stats.Items,
		"tasks", stats.Tasks,
		"downloaded", stats.Downloaded,
		"skipped", stats.Skipped,
		"repaired", stats.Repaired,
		"failed", stats.Failed,
	)
	return stats
}

// triage decides what to do with one task: skip when the record and
// file both exist, flag a repair when the record exists but the file
// vanished, otherwise queue a fresh download.
func (m *Manager) triage(ctx context.Context, task domain.DownloadTask) (queuedTask, bool) {
	recorded, err := m.registry.IsDownloaded(ctx, task.ItemID, task.PageIndex)
	if err != nil {
		m.logger.Error("registry check failed",
			"item_id", task.ItemID,
			"page", task.PageIndex,
			"error", err,
		)
		return queuedTask{}, false
	}
	if !recorded {
		return queuedTask{task: task}, true
	}

	if _, err := os.Stat(filepath.Join(m.root, task.DirName, task.FileName)); err == nil {
		return queuedTask{}, false
	}

	m.logger.Warn("recorded file missing, re-downloading",
		"item_id", task.ItemID,
		"page", task.PageIndex,
		"path", task.RelPath(),
	)
	return queuedTask{task: task, repair: true}, true
}

// worker drains the task channel until it closes. In-flight and queued
// transfers outlive cycle cancelation so no page is cut off mid-write.
func (m *Manager) worker(ctx context.Context, tasks <-chan queuedTask, stats *Stats) {
	ctx = context.WithoutCancel(ctx)
	for qt := range tasks {
		task := qt.task
		if err := m.fetcher.Download(ctx, task, m.root); err != nil {
			atomic.AddInt64(&stats.Failed, 1)
			m.logger.Error("download failed",
				"item_id", task.ItemID,
				"page", task.PageIndex,
				"error", err,
			)
			continue
		}

		rec := recordFromTask(task)
		if err := m.registry.RecordDownload(ctx, rec); err != nil {
			atomic.AddInt64(&stats.Failed, 1)
			m.logger.Error("record write failed",
				"item_id", task.ItemID,
				"page", task.PageIndex,
				"error", err,
			)
			continue
		}

		if qt.repair {
			atomic.AddInt64(&stats.Repaired, 1)
		} else {
			atomic.AddInt64(&stats.Downloaded, 1)
		}
	}
}

// recordFromTask builds the registry record for a completed task.
func recordFromTask(task domain.DownloadTask) *domain.DownloadRecord {
	return &domain.DownloadRecord{
		ItemID:        task.ItemID,
		Page:          task.PageIndex,
		FilePath:      task.RelPath(),
		Title:         task.Title,
		Artist:        task.Artist,
		Tags:          task.Tags,
		BookmarkCount: task.BookmarkCount,
		ViewCount:     task.ViewCount,
		Adult:         task.Adult,
		AIGenerated:   task.AIGenerated,
		CreatedAt:     task.CreatedAt,
		BookmarkedAt:  task.BookmarkedAt,
		DownloadedAt:  time.Now().UTC(),
	}
}

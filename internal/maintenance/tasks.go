// Package maintenance implements the verification and repair passes
// run from the maintenance CLI. Both reuse the catalog client and the
// registry primitives; repairs go through the same idempotent record
// path as regular downloads.
package maintenance

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/pixvault/pixvault-server/internal/catalog"
	"github.com/pixvault/pixvault-server/internal/domain"
)

// Catalog is the remote client surface the verifier drives.
type Catalog interface {
	Authenticate(ctx context.Context) error
	Enumerate(ctx context.Context) <-chan domain.BookmarkedItem
	FetchDetail(ctx context.Context, itemID int64) (*domain.BookmarkedItem, error)
	Download(ctx context.Context, task domain.DownloadTask, destDir string) error
}

// Registry is the registry surface the verifier reads and repairs.
type Registry interface {
	AllRecords(ctx context.Context) ([]*domain.DownloadRecord, error)
	IsDownloaded(ctx context.Context, itemID int64, page int) (bool, error)
	RecordDownload(ctx context.Context, rec *domain.DownloadRecord) error
}

// Report counts the outcome of one verification pass.
type Report struct {
	Checked  int `json:"checked"`
	Missing  int `json:"missing"`
	Repaired int `json:"repaired"`
	Failed   int `json:"failed"`
}

// Verifier runs the maintenance passes.
type Verifier struct {
	catalog  Catalog
	registry Registry
	root     string
	logger   *slog.Logger
}

// New creates a verifier operating on the download tree at root.
func New(c Catalog, r Registry, root string, logger *slog.Logger) *Verifier {
	return &Verifier{catalog: c, registry: r, root: root, logger: logger}
}

// VerifyFiles walks every registry record and re-fetches files that
// vanished from disk. Failures are counted, never fatal to the pass.
func (v *Verifier) VerifyFiles(ctx context.Context) (Report, error) {
	var report Report

	records, err := v.registry.AllRecords(ctx)
	if err != nil {
		return report, err
	}

	// Detail lookups are cached per item; multi-page items need one.
	details := make(map[int64]*domain.BookmarkedItem)

	for _, rec := range records {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		report.Checked++

		path := filepath.Join(v.root, filepath.FromSlash(rec.FilePath))
		if _, err := os.Stat(path); err == nil {
			continue
		}
		report.Missing++
		v.logger.Warn("recorded file missing", "item_id", rec.ItemID, "page", rec.Page, "path", rec.FilePath)

		item, cached := details[rec.ItemID]
		if !cached {
			item, err = v.catalog.FetchDetail(ctx, rec.ItemID)
			if err != nil {
				v.logger.Warn("detail fetch failed", "item_id", rec.ItemID, "error", err)
				report.Failed++
				continue
			}
			details[rec.ItemID] = item
		}
		if item == nil {
			// Gone remotely; nothing to restore from.
			report.Failed++
			continue
		}

		task, ok := taskForPage(*item, rec.Page)
		if !ok {
			report.Failed++
			continue
		}

		if err := v.repair(ctx, task); err != nil {
			v.logger.Error("repair failed", "item_id", rec.ItemID, "page", rec.Page, "error", err)
			report.Failed++
			continue
		}
		report.Repaired++
	}

	return report, nil
}

// VerifyBookmarks re-enumerates the remote collection and downloads
// anything absent locally, record or file.
func (v *Verifier) VerifyBookmarks(ctx context.Context) (Report, error) {
	var report Report

	for item := range v.catalog.Enumerate(ctx) {
		for _, task := range catalog.Expand(item) {
			if ctx.Err() != nil {
				return report, ctx.Err()
			}
			report.Checked++

			recorded, err := v.registry.IsDownloaded(ctx, task.ItemID, task.PageIndex)
			if err != nil {
				report.Failed++
				continue
			}
			if recorded {
				if _, err := os.Stat(filepath.Join(v.root, task.DirName, task.FileName)); err == nil {
					continue
				}
			}
			report.Missing++

			if err := v.repair(ctx, task); err != nil {
				v.logger.Error("download failed", "item_id", task.ItemID, "page", task.PageIndex, "error", err)
				report.Failed++
				continue
			}
			report.Repaired++
		}
	}

	return report, ctx.Err()
}

// repair downloads one task and records it.
func (v *Verifier) repair(ctx context.Context, task domain.DownloadTask) error {
	if err := v.catalog.Download(ctx, task, v.root); err != nil {
		return err
	}
	return v.registry.RecordDownload(ctx, &domain.DownloadRecord{
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
	})
}

// taskForPage picks the expanded task matching one page index.
func taskForPage(item domain.BookmarkedItem, page int) (domain.DownloadTask, bool) {
	for _, task := range catalog.Expand(item) {
		if task.PageIndex == page {
			return task, true
		}
	}
	return domain.DownloadTask{}, false
}

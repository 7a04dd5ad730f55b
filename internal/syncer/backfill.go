package syncer

import (
	"context"

	"github.com/pixvault/pixvault-server/internal/domain"
)

// backfillBatchSize bounds remote calls per batch so one slow or
// erroring item cannot block the whole backlog.
const backfillBatchSize = 25

// backfill completes metadata for records whose initial download
// lacked it. Batches repeat until the backlog drains; a batch that
// makes zero progress stops the pass, leaving the remainder for the
// next cycle instead of spinning.
func (e *Engine) backfill(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		ids, err := e.registry.ItemsMissingMetadata(ctx, backfillBatchSize)
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}

		progress := 0
		for _, id := range ids {
			if ctx.Err() != nil {
				return ctx.Err()
			}

			item, err := e.catalog.FetchDetail(ctx, id)
			if err != nil {
				e.logger.Warn("metadata fetch failed", "item_id", id, "error", err)
				continue
			}

			if item == nil {
				// Remote reports the item gone; stop retrying it.
				if err := e.registry.MarkMetadataSynced(ctx, id); err != nil {
					return err
				}
				progress++
				continue
			}

			meta := domain.RemoteMetadata{
				Tags:          item.Tags,
				BookmarkCount: item.BookmarkCount,
				ViewCount:     item.ViewCount,
				Adult:         item.Adult,
				AIGenerated:   item.AIGenerated,
				CreatedAt:     item.CreatedAt,
			}
			if err := e.registry.UpdateMetadata(ctx, id, meta); err != nil {
				return err
			}
			progress++
		}

		if progress == 0 {
			e.logger.Warn("backfill batch made no progress, deferring to next cycle",
				"pending", len(ids))
			return nil
		}
	}
}

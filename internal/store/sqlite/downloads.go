package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/pixvault/pixvault-server/internal/domain"
	"github.com/pixvault/pixvault-server/internal/store"
)

// downloadColumns is the ordered list of columns selected in download
// queries. Must match the scan order in scanDownload.
const downloadColumns = `item_id, page, file_path, title, artist, tags,
	bookmark_count, view_count, adult, ai_generated,
	created_at, bookmarked_at, downloaded_at, metadata_synced`

// scanDownload scans a sql.Row (or sql.Rows via its Scan method) into a
// domain.DownloadRecord.
func scanDownload(scanner interface{ Scan(dest ...any) error }) (*domain.DownloadRecord, error) {
	var r domain.DownloadRecord

	var (
		tags         string
		createdAt    sql.NullString
		bookmarkedAt sql.NullString
		downloadedAt string
	)

	err := scanner.Scan(
		&r.ItemID,
		&r.Page,
		&r.FilePath,
		&r.Title,
		&r.Artist,
		&tags,
		&r.BookmarkCount,
		&r.ViewCount,
		&r.Adult,
		&r.AIGenerated,
		&createdAt,
		&bookmarkedAt,
		&downloadedAt,
		&r.MetadataSynced,
	)
	if err != nil {
		return nil, err
	}

	r.Tags = decodeTags(tags)
	if r.CreatedAt, err = parseNullableTime(createdAt); err != nil {
		return nil, err
	}
	if r.BookmarkedAt, err = parseNullableTime(bookmarkedAt); err != nil {
		return nil, err
	}
	if r.DownloadedAt, err = parseTime(downloadedAt); err != nil {
		return nil, err
	}

	return &r, nil
}

// IsDownloaded reports whether a record exists for (itemID, page).
func (s *Store) IsDownloaded(ctx context.Context, itemID int64, page int) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM downloads WHERE item_id = ? AND page = ?`, itemID, page).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// HasItem reports whether any page of the item has been recorded.
func (s *Store) HasItem(ctx context.Context, itemID int64) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM downloads WHERE item_id = ? LIMIT 1`, itemID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// GetRecord retrieves the record for (itemID, page).
// Returns store.ErrNotFound if no record exists.
func (s *Store) GetRecord(ctx context.Context, itemID int64, page int) (*domain.DownloadRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+downloadColumns+` FROM downloads WHERE item_id = ? AND page = ?`,
		itemID, page)

	r, err := scanDownload(row)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

// RecordDownload upserts a download record and lazily creates the
// item_meta row. Complete metadata accompanies a successful download,
// so the record is marked synced. Empty text fields never overwrite
// previously stored values.
func (s *Store) RecordDownload(ctx context.Context, rec *domain.DownloadRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	downloadedAt := rec.DownloadedAt
	if downloadedAt.IsZero() {
		downloadedAt = time.Now()
	}

	// The catalog payload carries no bookmark timestamp, so first sight
	// of the page stands in for it.
	bookmarkedAt := rec.BookmarkedAt
	if bookmarkedAt == nil {
		bookmarkedAt = &downloadedAt
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO downloads (
			item_id, page, file_path, title, artist, tags,
			bookmark_count, view_count, adult, ai_generated,
			created_at, bookmarked_at, downloaded_at, metadata_synced)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1)
		ON CONFLICT (item_id, page) DO UPDATE SET
			file_path       = excluded.file_path,
			title           = COALESCE(NULLIF(excluded.title, ''), downloads.title),
			artist          = COALESCE(NULLIF(excluded.artist, ''), downloads.artist),
			tags            = COALESCE(NULLIF(excluded.tags, '[]'), downloads.tags),
			bookmark_count  = excluded.bookmark_count,
			view_count      = excluded.view_count,
			adult           = excluded.adult,
			ai_generated    = excluded.ai_generated,
			created_at      = COALESCE(excluded.created_at, downloads.created_at),
			bookmarked_at   = COALESCE(downloads.bookmarked_at, excluded.bookmarked_at),
			downloaded_at   = excluded.downloaded_at,
			metadata_synced = 1`,
		rec.ItemID,
		rec.Page,
		rec.FilePath,
		rec.Title,
		rec.Artist,
		encodeTags(rec.Tags),
		rec.BookmarkCount,
		rec.ViewCount,
		rec.Adult,
		rec.AIGenerated,
		formatNullableTime(rec.CreatedAt),
		formatNullableTime(bookmarkedAt),
		formatTime(downloadedAt),
	)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO item_meta (item_id) VALUES (?)`, rec.ItemID)
	if err != nil {
		return err
	}

	return tx.Commit()
}

// UpdateMetadata refreshes the metadata fields on every recorded page
// of the item and marks them synced. Used by backfill when the files
// already exist.
func (s *Store) UpdateMetadata(ctx context.Context, itemID int64, meta domain.RemoteMetadata) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE downloads SET
			tags            = ?,
			bookmark_count  = ?,
			view_count      = ?,
			adult           = ?,
			ai_generated    = ?,
			created_at      = COALESCE(?, created_at),
			metadata_synced = 1
		WHERE item_id = ?`,
		encodeTags(meta.Tags),
		meta.BookmarkCount,
		meta.ViewCount,
		meta.Adult,
		meta.AIGenerated,
		formatNullableTime(meta.CreatedAt),
		itemID,
	)
	return err
}

// ItemsMissingMetadata returns up to limit distinct item ids whose
// records are not metadata synced. Drives backfill in bounded batches.
func (s *Store) ItemsMissingMetadata(ctx context.Context, limit int) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT item_id FROM downloads
		WHERE metadata_synced = 0
		ORDER BY item_id
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// MarkMetadataSynced flags every page of the item as synced without
// touching metadata. Used when the remote reports the item gone, so
// backfill stops retrying it.
func (s *Store) MarkMetadataSynced(ctx context.Context, itemID int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE downloads SET metadata_synced = 1 WHERE item_id = ?`, itemID)
	return err
}

// AllRecords streams every download record ordered by (item_id, page).
// Used by maintenance verification passes.
func (s *Store) AllRecords(ctx context.Context) ([]*domain.DownloadRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+downloadColumns+` FROM downloads ORDER BY item_id, page`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*domain.DownloadRecord
	for rows.Next() {
		r, err := scanDownload(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

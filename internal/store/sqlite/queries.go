package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/pixvault/pixvault-server/internal/domain"
	"github.com/pixvault/pixvault-server/internal/store"
)

// summarySelect aggregates per-page rows into one row per item.
// Storage is per-page; the summary takes MAX of the denormalized
// fields and the lowest page's file as the cover.
const summarySelect = `
	SELECT
		d.item_id,
		MAX(d.title),
		MAX(d.artist),
		MAX(d.tags),
		MAX(d.bookmark_count),
		MAX(d.view_count),
		MAX(d.adult),
		MAX(d.ai_generated),
		MAX(d.created_at),
		MAX(d.bookmarked_at),
		MAX(d.downloaded_at),
		COUNT(*),
		(SELECT file_path FROM downloads c
		 WHERE c.item_id = d.item_id ORDER BY c.page LIMIT 1),
		COALESCE(m.custom_tags, '[]'),
		COALESCE(m.rating, 0)
	FROM downloads d
	LEFT JOIN item_meta m ON m.item_id = d.item_id`

// scanSummary scans one aggregated row into a domain.ItemSummary.
func scanSummary(scanner interface{ Scan(dest ...any) error }) (*domain.ItemSummary, error) {
	var sum domain.ItemSummary

	var (
		tags         string
		customTags   string
		postedAt     sql.NullString
		bookmarkedAt sql.NullString
		downloadedAt sql.NullString
	)

	err := scanner.Scan(
		&sum.ItemID,
		&sum.Title,
		&sum.Artist,
		&tags,
		&sum.BookmarkCount,
		&sum.ViewCount,
		&sum.Adult,
		&sum.AIGenerated,
		&postedAt,
		&bookmarkedAt,
		&downloadedAt,
		&sum.PageCount,
		&sum.CoverPath,
		&customTags,
		&sum.Rating,
	)
	if err != nil {
		return nil, err
	}

	sum.Tags = decodeTags(tags)
	sum.CustomTags = decodeTags(customTags)
	if sum.PostedAt, err = parseNullableTime(postedAt); err != nil {
		return nil, err
	}
	if sum.BookmarkedAt, err = parseNullableTime(bookmarkedAt); err != nil {
		return nil, err
	}
	if sum.LastDownloadedAt, err = parseNullableTime(downloadedAt); err != nil {
		return nil, err
	}
	sum.Ratings = map[int64]int{}

	return &sum, nil
}

// buildListQuery translates ListOptions into WHERE/ORDER BY clauses.
// Filters that apply per page go in WHERE; the rating threshold applies
// to the joined item_meta row.
func buildListQuery(opts store.ListOptions) (where, orderBy string, args []any) {
	var conds []string

	if q := strings.TrimSpace(opts.Query); q != "" {
		pattern := "%" + q + "%"
		conds = append(conds,
			`(d.title LIKE ? OR d.artist LIKE ? OR d.tags LIKE ? OR COALESCE(m.custom_tags, '') LIKE ?)`)
		args = append(args, pattern, pattern, pattern, pattern)
	}
	if opts.Adult != nil {
		conds = append(conds, `d.adult = ?`)
		args = append(args, *opts.Adult)
	}
	if opts.AIGenerated != nil {
		conds = append(conds, `d.ai_generated = ?`)
		args = append(args, *opts.AIGenerated)
	}
	if opts.MinRating > 0 {
		conds = append(conds, `COALESCE(m.rating, 0) >= ?`)
		args = append(args, opts.MinRating)
	}

	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	switch opts.Sort {
	case store.SortBookmarked:
		orderBy = "MAX(d.bookmarked_at) DESC"
	case store.SortPosted:
		orderBy = "MAX(d.created_at) DESC"
	case store.SortRating:
		orderBy = "COALESCE(m.rating, 0) DESC"
	case store.SortBookmarkCount:
		orderBy = "MAX(d.bookmark_count) DESC"
	case store.SortViewCount:
		orderBy = "MAX(d.view_count) DESC"
	default:
		orderBy = "MAX(d.downloaded_at) DESC"
	}
	orderBy += ", d.item_id DESC"

	return where, orderBy, args
}

// ListItems returns one page of item summaries matching the options,
// plus the total match count.
func (s *Store) ListItems(ctx context.Context, opts store.ListOptions) (*store.ItemPage, error) {
	if opts.Limit <= 0 {
		opts.Limit = 50
	}
	if opts.Offset < 0 {
		opts.Offset = 0
	}

	where, orderBy, args := buildListQuery(opts)

	var total int
	countQuery := `
		SELECT COUNT(DISTINCT d.item_id)
		FROM downloads d
		LEFT JOIN item_meta m ON m.item_id = d.item_id` + where
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`%s%s GROUP BY d.item_id ORDER BY %s LIMIT ? OFFSET ?`,
		summarySelect, where, orderBy)
	rows, err := s.db.QueryContext(ctx, query, append(args, opts.Limit, opts.Offset)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*domain.ItemSummary
	for rows.Next() {
		sum, err := scanSummary(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := s.attachAxisScores(ctx, items); err != nil {
		return nil, err
	}

	return &store.ItemPage{
		Items:  items,
		Total:  total,
		Limit:  opts.Limit,
		Offset: opts.Offset,
	}, nil
}

// GetItemDetail returns the aggregated summary plus every downloaded
// page of one item. Returns store.ErrNotFound for unknown items.
func (s *Store) GetItemDetail(ctx context.Context, itemID int64) (*domain.ItemDetail, error) {
	row := s.db.QueryRowContext(ctx,
		summarySelect+` WHERE d.item_id = ? GROUP BY d.item_id`, itemID)

	sum, err := scanSummary(row)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	summaries := []*domain.ItemSummary{sum}
	if err := s.attachAxisScores(ctx, summaries); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT page, file_path, downloaded_at
		FROM downloads WHERE item_id = ? ORDER BY page`, itemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	detail := &domain.ItemDetail{ItemSummary: *sum}
	for rows.Next() {
		var (
			pf           domain.PageFile
			downloadedAt string
		)
		if err := rows.Scan(&pf.Page, &pf.FilePath, &downloadedAt); err != nil {
			return nil, err
		}
		if pf.DownloadedAt, err = parseTime(downloadedAt); err != nil {
			return nil, err
		}
		detail.Pages = append(detail.Pages, pf)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return detail, nil
}

// attachAxisScores fills the per-axis ratings map on each summary with
// one query for the whole page.
func (s *Store) attachAxisScores(ctx context.Context, items []*domain.ItemSummary) error {
	if len(items) == 0 {
		return nil
	}

	byID := make(map[int64]*domain.ItemSummary, len(items))
	placeholders := make([]string, 0, len(items))
	args := make([]any, 0, len(items))
	for _, item := range items {
		byID[item.ItemID] = item
		placeholders = append(placeholders, "?")
		args = append(args, item.ItemID)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT item_id, axis_id, score FROM item_ratings
		WHERE item_id IN (`+strings.Join(placeholders, ",")+`)`, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var r domain.ItemRating
		if err := rows.Scan(&r.ItemID, &r.AxisID, &r.Score); err != nil {
			return err
		}
		if item, ok := byID[r.ItemID]; ok {
			item.Ratings[r.AxisID] = r.Score
		}
	}
	return rows.Err()
}

package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/pixvault/pixvault-server/internal/domain"
	"github.com/pixvault/pixvault-server/internal/store"
)

const axisColumns = `id, name, max_score, display_mode, is_default, created_at`

func scanAxis(scanner interface{ Scan(dest ...any) error }) (*domain.RatingAxis, error) {
	var a domain.RatingAxis
	var createdAt string

	err := scanner.Scan(
		&a.ID,
		&a.Name,
		&a.MaxScore,
		&a.DisplayMode,
		&a.IsDefault,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}

	if a.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &a, nil
}

// SetCustomTags replaces the custom tag list for an item, creating the
// item_meta row if absent.
func (s *Store) SetCustomTags(ctx context.Context, itemID int64, tags []string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO item_meta (item_id, custom_tags) VALUES (?, ?)
		ON CONFLICT (item_id) DO UPDATE SET custom_tags = excluded.custom_tags`,
		itemID, encodeTags(tags))
	return err
}

// SetRating sets the default-axis rating. The value is clamped into the
// default axis range and mirrored into item_ratings in the same
// transaction, so the two views never disagree.
func (s *Store) SetRating(ctx context.Context, itemID int64, rating int) error {
	axis, err := s.defaultAxis(ctx)
	if err != nil {
		return err
	}
	rating = axis.ClampScore(rating)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := setMetaRating(ctx, tx, itemID, rating); err != nil {
		return err
	}
	if err := setAxisScore(ctx, tx, itemID, axis.ID, rating); err != nil {
		return err
	}

	return tx.Commit()
}

// SetAxisScore sets an item's score on one axis, clamped into the axis
// range. Scoring the default axis also updates item_meta.rating.
// Returns store.ErrNotFound for an unknown axis.
func (s *Store) SetAxisScore(ctx context.Context, itemID, axisID int64, score int) error {
	axis, err := s.GetAxis(ctx, axisID)
	if err != nil {
		return err
	}
	score = axis.ClampScore(score)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := setAxisScore(ctx, tx, itemID, axisID, score); err != nil {
		return err
	}
	if axis.IsDefault {
		if err := setMetaRating(ctx, tx, itemID, score); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func setMetaRating(ctx context.Context, tx *sql.Tx, itemID int64, rating int) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO item_meta (item_id, rating) VALUES (?, ?)
		ON CONFLICT (item_id) DO UPDATE SET rating = excluded.rating`,
		itemID, rating)
	return err
}

func setAxisScore(ctx context.Context, tx *sql.Tx, itemID, axisID int64, score int) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO item_ratings (item_id, axis_id, score) VALUES (?, ?, ?)
		ON CONFLICT (item_id, axis_id) DO UPDATE SET score = excluded.score`,
		itemID, axisID, score)
	return err
}

// GetAxis retrieves one rating axis by id.
// Returns store.ErrNotFound if the axis does not exist.
func (s *Store) GetAxis(ctx context.Context, axisID int64) (*domain.RatingAxis, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+axisColumns+` FROM rating_axes WHERE id = ?`, axisID)

	a, err := scanAxis(row)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// defaultAxis retrieves the protected default axis.
func (s *Store) defaultAxis(ctx context.Context) (*domain.RatingAxis, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+axisColumns+` FROM rating_axes WHERE is_default = 1`)

	a, err := scanAxis(row)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// ListAxes returns all rating axes, the default axis first.
func (s *Store) ListAxes(ctx context.Context) ([]*domain.RatingAxis, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+axisColumns+` FROM rating_axes ORDER BY is_default DESC, name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var axes []*domain.RatingAxis
	for rows.Next() {
		a, err := scanAxis(rows)
		if err != nil {
			return nil, err
		}
		axes = append(axes, a)
	}
	return axes, rows.Err()
}

// CreateAxis inserts a new rating axis and fills in its assigned id.
// Returns store.ErrAlreadyExists on duplicate name.
func (s *Store) CreateAxis(ctx context.Context, axis *domain.RatingAxis) error {
	if axis.MaxScore <= 0 {
		axis.MaxScore = 5
	}
	if axis.DisplayMode == "" {
		axis.DisplayMode = domain.DisplayNumeric
	}
	if axis.CreatedAt.IsZero() {
		axis.CreatedAt = time.Now()
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO rating_axes (name, max_score, display_mode, is_default, created_at)
		VALUES (?, ?, ?, 0, ?)`,
		axis.Name, axis.MaxScore, axis.DisplayMode, formatTime(axis.CreatedAt))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return store.ErrAlreadyExists
		}
		return err
	}

	axis.ID, err = res.LastInsertId()
	return err
}

// UpdateAxis changes an axis's name, max score, and display mode.
// The is_default flag is immutable. Existing scores above a lowered max
// are left in place; they clamp on the next write.
func (s *Store) UpdateAxis(ctx context.Context, axis *domain.RatingAxis) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE rating_axes SET name = ?, max_score = ?, display_mode = ?
		WHERE id = ?`,
		axis.Name, axis.MaxScore, axis.DisplayMode, axis.ID)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return store.ErrAlreadyExists
		}
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// DeleteAxis removes an axis and, via cascade, its scores.
// Returns store.ErrDefaultAxisProtected for the default axis and
// store.ErrNotFound for unknown ids; in both cases nothing changes.
func (s *Store) DeleteAxis(ctx context.Context, axisID int64) error {
	axis, err := s.GetAxis(ctx, axisID)
	if err != nil {
		return err
	}
	if axis.IsDefault {
		return store.ErrDefaultAxisProtected
	}

	_, err = s.db.ExecContext(ctx, `DELETE FROM rating_axes WHERE id = ?`, axisID)
	return err
}

package domain

import "time"

// DefaultAxisName is the distinguished rating axis that always exists
// and mirrors ItemMeta.Rating. It cannot be deleted.
const DefaultAxisName = "Star"

// Axis display hints understood by clients.
const (
	DisplayStars   = "stars"
	DisplayNumeric = "numeric"
	DisplayBar     = "bar"
)

// RatingAxis is a named, bounded scoring scale independent of the
// default rating.
type RatingAxis struct {
	ID          int64     `json:"axis_id"`
	Name        string    `json:"name"`
	MaxScore    int       `json:"max_score"`
	DisplayMode string    `json:"display_mode"`
	IsDefault   bool      `json:"is_default"`
	CreatedAt   time.Time `json:"created_at"`
}

// ItemRating is one item's score on one axis. Scores are clamped into
// [0, axis.MaxScore] on write.
type ItemRating struct {
	ItemID int64 `json:"item_id"`
	AxisID int64 `json:"axis_id"`
	Score  int   `json:"score"`
}

// ClampScore clamps a score into the axis range.
func (a RatingAxis) ClampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > a.MaxScore {
		return a.MaxScore
	}
	return score
}

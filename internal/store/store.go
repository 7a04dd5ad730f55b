// Package store defines the persistence contract for the download
// registry along with its sentinel errors and query options.
package store

import (
	"errors"

	"github.com/pixvault/pixvault-server/internal/domain"
)

// Sentinel errors returned by registry implementations.
var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists is returned when a unique constraint is violated.
	ErrAlreadyExists = errors.New("already exists")

	// ErrDefaultAxisProtected is returned when a mutation would remove
	// the default rating axis.
	ErrDefaultAxisProtected = errors.New("default rating axis is protected")
)

// Sort orders for item listing. Descending throughout.
const (
	SortBookmarked    = "bookmarked"
	SortDownloaded    = "downloaded"
	SortPosted        = "posted"
	SortRating        = "rating"
	SortBookmarkCount = "bookmarks"
	SortViewCount     = "views"
)

// ListOptions filters and orders an item listing query.
// Zero values mean "no constraint".
type ListOptions struct {
	// Query matches title, artist, remote tags, and custom tags.
	Query string
	// Adult and AIGenerated filter on the denormalized flags when set.
	Adult       *bool
	AIGenerated *bool
	// MinRating keeps items whose default-axis rating is at least this.
	MinRating int
	// Sort is one of the Sort* constants; unknown values fall back to
	// SortDownloaded.
	Sort string

	Limit  int
	Offset int
}

// ItemPage is one page of an item listing plus the unpaginated total.
type ItemPage struct {
	Items  []*domain.ItemSummary `json:"items"`
	Total  int                   `json:"total"`
	Limit  int                   `json:"limit"`
	Offset int                   `json:"offset"`
}

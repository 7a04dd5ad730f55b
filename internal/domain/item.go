// Package domain contains the core entities for the PixVault bookmark mirror.
package domain

import "time"

// PageImage is one downloadable image belonging to a bookmarked item,
// addressed by zero-based page index.
type PageImage struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// BookmarkedItem is one entry of the remote bookmark collection as
// returned by the catalog API. It is never persisted verbatim; the
// registry stores denormalized per-page DownloadRecords instead.
type BookmarkedItem struct {
	ID            int64       `json:"id"`
	Title         string      `json:"title"`
	Artist        string      `json:"artist"`
	Pages         []PageImage `json:"pages"`
	Tags          []string    `json:"tags"`
	BookmarkCount int         `json:"bookmark_count"`
	ViewCount     int         `json:"view_count"`
	Adult         bool        `json:"adult"`
	AIGenerated   bool        `json:"ai_generated"`
	CreatedAt     *time.Time  `json:"created_at,omitempty"`
	BookmarkedAt  *time.Time  `json:"bookmarked_at,omitempty"`
}

// DownloadTask is one (item, page) pair ready to fetch. Tasks are
// derived per enumeration pass and carry a denormalized copy of the
// item metadata so the registry write needs no second lookup.
type DownloadTask struct {
	ItemID    int64
	PageIndex int
	URL       string
	Extension string

	// Deterministic on-disk location, relative to the download root:
	// {itemID}_{slug(artist or title)}/{page:02d}_{slug(title)}{ext}
	DirName  string
	FileName string

	Title         string
	Artist        string
	Tags          []string
	Width         int
	Height        int
	BookmarkCount int
	ViewCount     int
	Adult         bool
	AIGenerated   bool
	CreatedAt     *time.Time
	BookmarkedAt  *time.Time
}

// RelPath returns the task's target path relative to the download root.
func (t DownloadTask) RelPath() string {
	return t.DirName + "/" + t.FileName
}

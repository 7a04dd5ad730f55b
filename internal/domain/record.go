package domain

import "time"

// DownloadRecord is the persisted state of one downloaded page.
// Primary key is (ItemID, Page); re-recording the same key overwrites
// in place, it never duplicates.
type DownloadRecord struct {
	ItemID         int64      `json:"item_id"`
	Page           int        `json:"page"`
	FilePath       string     `json:"file_path"` // relative to the download root
	Title          string     `json:"title"`
	Artist         string     `json:"artist"`
	Tags           []string   `json:"tags"`
	BookmarkCount  int        `json:"bookmark_count"`
	ViewCount      int        `json:"view_count"`
	Adult          bool       `json:"adult"`
	AIGenerated    bool       `json:"ai_generated"`
	CreatedAt      *time.Time `json:"created_at,omitempty"`
	BookmarkedAt   *time.Time `json:"bookmarked_at,omitempty"`
	DownloadedAt   time.Time  `json:"downloaded_at"`
	MetadataSynced bool       `json:"metadata_synced"`
}

// RemoteMetadata is the subset of item metadata refreshed by the
// backfill pass when the file itself already exists.
type RemoteMetadata struct {
	Tags          []string
	BookmarkCount int
	ViewCount     int
	Adult         bool
	AIGenerated   bool
	CreatedAt     *time.Time
}

// ItemMeta holds user-assigned state for one item: free-form custom
// tags (distinct from remote tags) and the default-axis rating.
// Created lazily the first time any page of the item is recorded.
type ItemMeta struct {
	ItemID     int64    `json:"item_id"`
	CustomTags []string `json:"custom_tags"`
	Rating     int      `json:"rating"`
}

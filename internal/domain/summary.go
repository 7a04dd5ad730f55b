package domain

import "time"

// ItemSummary is the derived one-row-per-item view used for listing.
// Storage is per-page, so the registry aggregates: page count, cover
// path (lowest page index), and MAX of the denormalized fields.
type ItemSummary struct {
	ItemID           int64         `json:"item_id"`
	Title            string        `json:"title"`
	Artist           string        `json:"artist"`
	Tags             []string      `json:"tags"`
	CustomTags       []string      `json:"custom_tags"`
	BookmarkCount    int           `json:"bookmark_count"`
	ViewCount        int           `json:"view_count"`
	Adult            bool          `json:"adult"`
	AIGenerated      bool          `json:"ai_generated"`
	PostedAt         *time.Time    `json:"posted_at,omitempty"`
	BookmarkedAt     *time.Time    `json:"bookmarked_at,omitempty"`
	LastDownloadedAt *time.Time    `json:"last_downloaded_at,omitempty"`
	Rating           int           `json:"rating"`
	Ratings          map[int64]int `json:"ratings"`
	PageCount        int           `json:"page_count"`
	CoverPath        string        `json:"cover_path"`
}

// PageFile is one downloaded page within an ItemDetail.
type PageFile struct {
	Page         int       `json:"page"`
	FilePath     string    `json:"file_path"`
	DownloadedAt time.Time `json:"downloaded_at"`
}

// ItemDetail is the full per-item view: the summary fields plus every
// downloaded page.
type ItemDetail struct {
	ItemSummary
	Pages []PageFile `json:"pages"`
}

package catalog

import (
	"encoding/json"
	"time"

	"github.com/pixvault/pixvault-server/internal/domain"
)

// Restrict modes understood by the remote bookmark API.
const (
	RestrictPublic  = "public"
	RestrictPrivate = "private"
)

// authResponse is the token endpoint payload.
type authResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	User         struct {
		ID   json.Number `json:"id"`
		Name string      `json:"name"`
	} `json:"user"`
}

// bookmarkPage is one page of the bookmark listing.
type bookmarkPage struct {
	Illusts []rawItem `json:"illusts"`
	NextURL string    `json:"next_url"`
}

// detailResponse wraps a single-item lookup.
type detailResponse struct {
	Illust rawItem `json:"illust"`
}

// rawItem mirrors the loosely-shaped remote payload. Every field is
// optional; toDomain tolerates whatever is missing.
type rawItem struct {
	ID        int64  `json:"id"`
	Title     string `json:"title"`
	PageCount int    `json:"page_count"`

	User struct {
		ID   json.Number `json:"id"`
		Name string      `json:"name"`
	} `json:"user"`

	ImageURLs struct {
		Large    string `json:"large"`
		Medium   string `json:"medium"`
		Original string `json:"original"`
	} `json:"image_urls"`

	MetaSinglePage struct {
		OriginalImageURL string `json:"original_image_url"`
	} `json:"meta_single_page"`

	MetaPages []struct {
		ImageURLs struct {
			Original string `json:"original"`
			Large    string `json:"large"`
		} `json:"image_urls"`
	} `json:"meta_pages"`

	Tags []struct {
		Name           string `json:"name"`
		TranslatedName string `json:"translated_name"`
	} `json:"tags"`

	TotalBookmarks int    `json:"total_bookmarks"`
	TotalView      int    `json:"total_view"`
	XRestrict      int    `json:"x_restrict"`
	IllustAIType   int    `json:"illust_ai_type"`
	CreateDate     string `json:"create_date"`

	Width  int `json:"width"`
	Height int `json:"height"`
}

// aiGeneratedType is the illust_ai_type value the remote uses for
// fully AI-generated works.
const aiGeneratedType = 2

// toDomain converts a raw payload into a BookmarkedItem, resolving the
// best available image URL per page. Items with no resolvable URLs
// produce an empty page list, which callers treat as nothing to do.
func (r rawItem) toDomain() domain.BookmarkedItem {
	item := domain.BookmarkedItem{
		ID:            r.ID,
		Title:         r.Title,
		Artist:        r.User.Name,
		BookmarkCount: r.TotalBookmarks,
		ViewCount:     r.TotalView,
		Adult:         r.XRestrict > 0,
		AIGenerated:   r.IllustAIType == aiGeneratedType,
	}

	for _, tag := range r.Tags {
		if tag.Name != "" {
			item.Tags = append(item.Tags, tag.Name)
		}
	}

	if r.CreateDate != "" {
		if t, err := time.Parse(time.RFC3339, r.CreateDate); err == nil {
			utc := t.UTC()
			item.CreatedAt = &utc
		}
	}

	if len(r.MetaPages) > 0 {
		for _, mp := range r.MetaPages {
			url := mp.ImageURLs.Original
			if url == "" {
				url = mp.ImageURLs.Large
			}
			if url == "" {
				continue
			}
			item.Pages = append(item.Pages, domain.PageImage{
				URL:    url,
				Width:  r.Width,
				Height: r.Height,
			})
		}
		return item
	}

	url := r.MetaSinglePage.OriginalImageURL
	if url == "" {
		url = r.ImageURLs.Large
	}
	if url == "" {
		url = r.ImageURLs.Medium
	}
	if url != "" {
		item.Pages = append(item.Pages, domain.PageImage{
			URL:    url,
			Width:  r.Width,
			Height: r.Height,
		})
	}
	return item
}

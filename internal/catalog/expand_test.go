package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pixvault/pixvault-server/internal/domain"
)

func TestExpand_MultiPage(t *testing.T) {
	item := domain.BookmarkedItem{
		ID:     123,
		Title:  "city lights",
		Artist: "bob",
		Pages: []domain.PageImage{
			{URL: "https://img.example.net/123_p0.png", Width: 800, Height: 600},
			{URL: "https://img.example.net/123_p1.jpg"},
		},
		Tags: []string{"urban"},
	}

	tasks := Expand(item)
	require.Len(t, tasks, 2)

	assert.Equal(t, int64(123), tasks[0].ItemID)
	assert.Equal(t, 0, tasks[0].PageIndex)
	assert.Equal(t, "123_bob", tasks[0].DirName)
	assert.Equal(t, "00_city lights.png", tasks[0].FileName)
	assert.Equal(t, "123_bob/00_city lights.png", tasks[0].RelPath())
	assert.Equal(t, 800, tasks[0].Width)

	assert.Equal(t, 1, tasks[1].PageIndex)
	assert.Equal(t, "01_city lights.jpg", tasks[1].FileName)
	assert.Equal(t, []string{"urban"}, tasks[1].Tags)
}

func TestExpand_NoPages(t *testing.T) {
	tasks := Expand(domain.BookmarkedItem{ID: 1, Title: "empty"})
	assert.Empty(t, tasks)
}

func TestExpand_SkipsPagesWithoutURL(t *testing.T) {
	item := domain.BookmarkedItem{
		ID:    5,
		Title: "partial",
		Pages: []domain.PageImage{
			{URL: ""},
			{URL: "https://img.example.net/5_p1.png"},
		},
	}

	tasks := Expand(item)
	require.Len(t, tasks, 1)
	// Page index is positional, preserved even when earlier pages drop.
	assert.Equal(t, 1, tasks[0].PageIndex)
}

func TestExpand_FallsBackToTitleDir(t *testing.T) {
	item := domain.BookmarkedItem{
		ID:    9,
		Title: "untitled?work",
		Pages: []domain.PageImage{{URL: "https://img.example.net/9_p0.jpg"}},
	}

	tasks := Expand(item)
	require.Len(t, tasks, 1)
	assert.Equal(t, "9_untitled_work", tasks[0].DirName)
}

func TestRawItemToDomain(t *testing.T) {
	raw := rawItem{
		ID:        7,
		Title:     "portrait",
		XRestrict: 1,
	}
	raw.User.Name = "carol"
	raw.ImageURLs.Large = "https://img.example.net/7_large.jpg"
	raw.CreateDate = "2024-04-01T10:00:00+09:00"

	item := raw.toDomain()
	assert.Equal(t, "carol", item.Artist)
	assert.True(t, item.Adult)
	assert.False(t, item.AIGenerated)
	require.Len(t, item.Pages, 1)
	assert.Equal(t, "https://img.example.net/7_large.jpg", item.Pages[0].URL)
	require.NotNil(t, item.CreatedAt)
	assert.Equal(t, "2024-04-01T01:00:00Z", item.CreatedAt.Format("2006-01-02T15:04:05Z"))
}

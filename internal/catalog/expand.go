package catalog

import (
	"github.com/pixvault/pixvault-server/internal/domain"
	"github.com/pixvault/pixvault-server/internal/util"
)

// Expand derives one DownloadTask per resolvable page of an item.
// Pure function; an item with no image URLs yields an empty slice,
// which the caller treats as nothing to do.
func Expand(item domain.BookmarkedItem) []domain.DownloadTask {
	if len(item.Pages) == 0 {
		return nil
	}

	dir := util.ItemDirName(item.ID, item.Artist, item.Title)
	tasks := make([]domain.DownloadTask, 0, len(item.Pages))

	for i, page := range item.Pages {
		if page.URL == "" {
			continue
		}
		ext := util.ExtensionFromURL(page.URL)
		tasks = append(tasks, domain.DownloadTask{
			ItemID:    item.ID,
			PageIndex: i,
			URL:       page.URL,
			Extension: ext,
			DirName:   dir,
			FileName:  util.PageFileName(i, item.Title, ext),

			Title:         item.Title,
			Artist:        item.Artist,
			Tags:          item.Tags,
			Width:         page.Width,
			Height:        page.Height,
			BookmarkCount: item.BookmarkCount,
			ViewCount:     item.ViewCount,
			Adult:         item.Adult,
			AIGenerated:   item.AIGenerated,
			CreatedAt:     item.CreatedAt,
			BookmarkedAt:  item.BookmarkedAt,
		})
	}

	return tasks
}

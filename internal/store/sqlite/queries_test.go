package sqlite

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/pixvault/pixvault-server/internal/domain"
	"github.com/pixvault/pixvault-server/internal/store"
)

// seedItems records three items: item 1 single page, item 2 two pages,
// item 3 single page flagged adult.
func seedItems(t *testing.T, s *Store) {
	t.Helper()
	ctx := context.Background()

	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	records := []*domain.DownloadRecord{
		{
			ItemID: 1, Page: 0,
			FilePath: "1_alice/00_sunrise.jpg",
			Title:    "sunrise", Artist: "alice",
			Tags:          []string{"landscape"},
			BookmarkCount: 10, ViewCount: 100,
			DownloadedAt: base,
		},
		{
			ItemID: 2, Page: 0,
			FilePath: "2_bob/00_city.jpg",
			Title:    "city", Artist: "bob",
			Tags:          []string{"urban"},
			BookmarkCount: 50, ViewCount: 500,
			DownloadedAt: base.Add(time.Hour),
		},
		{
			ItemID: 2, Page: 1,
			FilePath: "2_bob/01_city.jpg",
			Title:    "city", Artist: "bob",
			Tags:          []string{"urban"},
			BookmarkCount: 50, ViewCount: 500,
			DownloadedAt: base.Add(2 * time.Hour),
		},
		{
			ItemID: 3, Page: 0,
			FilePath: "3_carol/00_portrait.jpg",
			Title:    "portrait", Artist: "carol",
			Tags:  []string{"portrait"},
			Adult: true,
			BookmarkCount: 30, ViewCount: 300,
			DownloadedAt: base.Add(3 * time.Hour),
		},
	}
	for _, rec := range records {
		if err := s.RecordDownload(ctx, rec); err != nil {
			t.Fatalf("record %d/%d: %v", rec.ItemID, rec.Page, err)
		}
	}
}

func TestListItems_AggregatesPerItem(t *testing.T) {
	s := newTestStore(t)
	seedItems(t, s)

	page, err := s.ListItems(context.Background(), store.ListOptions{})
	if err != nil {
		t.Fatalf("list items: %v", err)
	}
	if page.Total != 3 {
		t.Errorf("expected total 3, got %d", page.Total)
	}
	if len(page.Items) != 3 {
		t.Fatalf("expected 3 summaries, got %d", len(page.Items))
	}

	// Default sort is downloaded descending: 3, 2, 1.
	wantOrder := []int64{3, 2, 1}
	for i, want := range wantOrder {
		if page.Items[i].ItemID != want {
			t.Errorf("position %d: got item %d, want %d", i, page.Items[i].ItemID, want)
		}
	}

	var multi *domain.ItemSummary
	for _, item := range page.Items {
		if item.ItemID == 2 {
			multi = item
		}
	}
	if multi.PageCount != 2 {
		t.Errorf("expected page count 2, got %d", multi.PageCount)
	}
	if multi.CoverPath != "2_bob/00_city.jpg" {
		t.Errorf("cover should be the lowest page, got %q", multi.CoverPath)
	}
}

func TestListItems_Filters(t *testing.T) {
	s := newTestStore(t)
	seedItems(t, s)
	ctx := context.Background()

	// Free-text over artist.
	page, err := s.ListItems(ctx, store.ListOptions{Query: "bob"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if page.Total != 1 || page.Items[0].ItemID != 2 {
		t.Errorf("artist query failed: %+v", page)
	}

	// Free-text over remote tags.
	page, err = s.ListItems(ctx, store.ListOptions{Query: "landscape"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if page.Total != 1 || page.Items[0].ItemID != 1 {
		t.Errorf("tag query failed: %+v", page)
	}

	// Adult flag.
	adult := true
	page, err = s.ListItems(ctx, store.ListOptions{Adult: &adult})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if page.Total != 1 || page.Items[0].ItemID != 3 {
		t.Errorf("adult filter failed: %+v", page)
	}

	// Rating threshold.
	if err := s.SetRating(ctx, 1, 5); err != nil {
		t.Fatalf("set rating: %v", err)
	}
	page, err = s.ListItems(ctx, store.ListOptions{MinRating: 4})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if page.Total != 1 || page.Items[0].ItemID != 1 {
		t.Errorf("rating filter failed: %+v", page)
	}
}

func TestListItems_SortByBookmarkCount(t *testing.T) {
	s := newTestStore(t)
	seedItems(t, s)

	page, err := s.ListItems(context.Background(), store.ListOptions{Sort: store.SortBookmarkCount})
	if err != nil {
		t.Fatalf("list: %v", err)
	}

	wantOrder := []int64{2, 3, 1}
	for i, want := range wantOrder {
		if page.Items[i].ItemID != want {
			t.Errorf("position %d: got item %d, want %d", i, page.Items[i].ItemID, want)
		}
	}
}

func TestListItems_SortBookmarkedReflectsRecordOrder(t *testing.T) {
	s := newTestStore(t)
	seedItems(t, s)

	// The seed records carry no bookmark timestamp, so each falls back
	// to its download time; the sort must still be total.
	page, err := s.ListItems(context.Background(), store.ListOptions{Sort: store.SortBookmarked})
	if err != nil {
		t.Fatalf("list: %v", err)
	}

	wantOrder := []int64{3, 2, 1}
	for i, want := range wantOrder {
		if page.Items[i].ItemID != want {
			t.Errorf("position %d: got item %d, want %d", i, page.Items[i].ItemID, want)
		}
	}
	for _, sum := range page.Items {
		if sum.BookmarkedAt == nil {
			t.Errorf("item %d has no bookmark time", sum.ItemID)
		}
	}
}

func TestListItems_Pagination(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := int64(1); i <= 5; i++ {
		rec := testRecord(i, 0)
		rec.FilePath = fmt.Sprintf("%d_artist/00_title.jpg", i)
		if err := s.RecordDownload(ctx, rec); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	page, err := s.ListItems(ctx, store.ListOptions{Limit: 2, Offset: 2})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if page.Total != 5 {
		t.Errorf("expected total 5, got %d", page.Total)
	}
	if len(page.Items) != 2 {
		t.Errorf("expected 2 items on page, got %d", len(page.Items))
	}
	if page.Limit != 2 || page.Offset != 2 {
		t.Errorf("page echo wrong: limit=%d offset=%d", page.Limit, page.Offset)
	}
}

func TestGetItemDetail(t *testing.T) {
	s := newTestStore(t)
	seedItems(t, s)
	ctx := context.Background()

	if err := s.SetCustomTags(ctx, 2, []string{"favorite"}); err != nil {
		t.Fatalf("set tags: %v", err)
	}

	detail, err := s.GetItemDetail(ctx, 2)
	if err != nil {
		t.Fatalf("detail: %v", err)
	}
	if detail.Title != "city" || detail.Artist != "bob" {
		t.Errorf("unexpected summary: %+v", detail.ItemSummary)
	}
	if len(detail.Pages) != 2 {
		t.Fatalf("expected 2 pages, got %d", len(detail.Pages))
	}
	if detail.Pages[0].Page != 0 || detail.Pages[1].Page != 1 {
		t.Errorf("pages out of order: %+v", detail.Pages)
	}
	if len(detail.CustomTags) != 1 || detail.CustomTags[0] != "favorite" {
		t.Errorf("expected custom tags, got %v", detail.CustomTags)
	}
}

func TestGetItemDetail_NotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetItemDetail(context.Background(), 404)
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

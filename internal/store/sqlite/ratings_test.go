package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/pixvault/pixvault-server/internal/domain"
	"github.com/pixvault/pixvault-server/internal/store"
)

func defaultAxisID(t *testing.T, s *Store) int64 {
	t.Helper()
	axis, err := s.defaultAxis(context.Background())
	if err != nil {
		t.Fatalf("default axis: %v", err)
	}
	return axis.ID
}

func TestSetRating_MirrorsDefaultAxis(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.RecordDownload(ctx, testRecord(1, 0)); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := s.SetRating(ctx, 1, 4); err != nil {
		t.Fatalf("set rating: %v", err)
	}

	detail, err := s.GetItemDetail(ctx, 1)
	if err != nil {
		t.Fatalf("detail: %v", err)
	}
	if detail.Rating != 4 {
		t.Errorf("expected rating 4, got %d", detail.Rating)
	}
	if got := detail.Ratings[defaultAxisID(t, s)]; got != 4 {
		t.Errorf("expected mirrored axis score 4, got %d", got)
	}
}

func TestSetRating_Clamped(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tests := []struct {
		in   int
		want int
	}{
		{10, 5},
		{-3, 0},
		{5, 5},
	}
	for _, tt := range tests {
		if err := s.SetRating(ctx, 1, tt.in); err != nil {
			t.Fatalf("set rating %d: %v", tt.in, err)
		}
		var got int
		if err := s.db.QueryRow(
			`SELECT rating FROM item_meta WHERE item_id = 1`).Scan(&got); err != nil {
			t.Fatalf("query rating: %v", err)
		}
		if got != tt.want {
			t.Errorf("SetRating(%d) stored %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestSetAxisScore_DefaultAxisMirrorsRating(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.SetAxisScore(ctx, 7, defaultAxisID(t, s), 2); err != nil {
		t.Fatalf("set axis score: %v", err)
	}

	var rating int
	if err := s.db.QueryRow(
		`SELECT rating FROM item_meta WHERE item_id = 7`).Scan(&rating); err != nil {
		t.Fatalf("query rating: %v", err)
	}
	if rating != 2 {
		t.Errorf("default-axis score should mirror into rating, got %d", rating)
	}
}

func TestSetAxisScore_CustomAxisClamped(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	axis := &domain.RatingAxis{Name: "Composition", MaxScore: 10, DisplayMode: domain.DisplayBar}
	if err := s.CreateAxis(ctx, axis); err != nil {
		t.Fatalf("create axis: %v", err)
	}
	if axis.ID == 0 {
		t.Fatal("create axis should assign an id")
	}

	if err := s.SetAxisScore(ctx, 1, axis.ID, 25); err != nil {
		t.Fatalf("set axis score: %v", err)
	}

	var score int
	if err := s.db.QueryRow(
		`SELECT score FROM item_ratings WHERE item_id = 1 AND axis_id = ?`, axis.ID).Scan(&score); err != nil {
		t.Fatalf("query score: %v", err)
	}
	if score != 10 {
		t.Errorf("expected clamped score 10, got %d", score)
	}

	// Custom axes never touch the default rating.
	var count int
	if err := s.db.QueryRow(
		`SELECT COUNT(*) FROM item_meta WHERE item_id = 1 AND rating != 0`).Scan(&count); err != nil {
		t.Fatalf("query meta: %v", err)
	}
	if count != 0 {
		t.Error("custom axis score must not change the default rating")
	}
}

func TestSetAxisScore_UnknownAxis(t *testing.T) {
	s := newTestStore(t)

	err := s.SetAxisScore(context.Background(), 1, 999, 3)
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestCreateAxis_DuplicateName(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.CreateAxis(ctx, &domain.RatingAxis{Name: "Mood"}); err != nil {
		t.Fatalf("create axis: %v", err)
	}

	err := s.CreateAxis(ctx, &domain.RatingAxis{Name: "Mood"})
	if !errors.Is(err, store.ErrAlreadyExists) {
		t.Errorf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestCreateAxis_Defaults(t *testing.T) {
	s := newTestStore(t)

	axis := &domain.RatingAxis{Name: "Mood"}
	if err := s.CreateAxis(context.Background(), axis); err != nil {
		t.Fatalf("create axis: %v", err)
	}

	got, err := s.GetAxis(context.Background(), axis.ID)
	if err != nil {
		t.Fatalf("get axis: %v", err)
	}
	if got.MaxScore != 5 {
		t.Errorf("expected default max score 5, got %d", got.MaxScore)
	}
	if got.DisplayMode != domain.DisplayNumeric {
		t.Errorf("expected numeric display, got %q", got.DisplayMode)
	}
	if got.IsDefault {
		t.Error("created axes must never be the default")
	}
}

func TestUpdateAxis(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	axis := &domain.RatingAxis{Name: "Mood"}
	if err := s.CreateAxis(ctx, axis); err != nil {
		t.Fatalf("create axis: %v", err)
	}

	axis.Name = "Atmosphere"
	axis.MaxScore = 3
	axis.DisplayMode = domain.DisplayBar
	if err := s.UpdateAxis(ctx, axis); err != nil {
		t.Fatalf("update axis: %v", err)
	}

	got, err := s.GetAxis(ctx, axis.ID)
	if err != nil {
		t.Fatalf("get axis: %v", err)
	}
	if got.Name != "Atmosphere" || got.MaxScore != 3 || got.DisplayMode != domain.DisplayBar {
		t.Errorf("update not applied: %+v", got)
	}

	err = s.UpdateAxis(ctx, &domain.RatingAxis{ID: 999, Name: "x", MaxScore: 1})
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown axis, got %v", err)
	}
}

func TestDeleteAxis_DefaultProtected(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.DeleteAxis(ctx, defaultAxisID(t, s))
	if !errors.Is(err, store.ErrDefaultAxisProtected) {
		t.Errorf("expected ErrDefaultAxisProtected, got %v", err)
	}

	axes, err := s.ListAxes(ctx)
	if err != nil {
		t.Fatalf("list axes: %v", err)
	}
	if len(axes) != 1 {
		t.Errorf("axes changed after rejected delete: %d", len(axes))
	}
}

func TestDeleteAxis_CascadesScores(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	axis := &domain.RatingAxis{Name: "Mood"}
	if err := s.CreateAxis(ctx, axis); err != nil {
		t.Fatalf("create axis: %v", err)
	}
	if err := s.SetAxisScore(ctx, 1, axis.ID, 3); err != nil {
		t.Fatalf("set score: %v", err)
	}

	if err := s.DeleteAxis(ctx, axis.ID); err != nil {
		t.Fatalf("delete axis: %v", err)
	}

	var count int
	if err := s.db.QueryRow(
		`SELECT COUNT(*) FROM item_ratings WHERE axis_id = ?`, axis.ID).Scan(&count); err != nil {
		t.Fatalf("count scores: %v", err)
	}
	if count != 0 {
		t.Errorf("expected cascaded delete of scores, got %d", count)
	}

	if err := s.DeleteAxis(ctx, axis.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound for deleted axis, got %v", err)
	}
}

func TestSetCustomTags(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.SetCustomTags(ctx, 1, []string{"favorite", "wallpaper"}); err != nil {
		t.Fatalf("set tags: %v", err)
	}
	if err := s.SetCustomTags(ctx, 1, []string{"favorite"}); err != nil {
		t.Fatalf("replace tags: %v", err)
	}

	var raw string
	if err := s.db.QueryRow(
		`SELECT custom_tags FROM item_meta WHERE item_id = 1`).Scan(&raw); err != nil {
		t.Fatalf("query tags: %v", err)
	}
	if raw != `["favorite"]` {
		t.Errorf("expected replaced tag list, got %s", raw)
	}
}

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pixvault/pixvault-server/internal/domain"
	"github.com/pixvault/pixvault-server/internal/downloader"
	"github.com/pixvault/pixvault-server/internal/store/sqlite"
	"github.com/pixvault/pixvault-server/internal/syncer"
)

type stubCatalog struct{}

func (stubCatalog) Authenticate(context.Context) error { return nil }
func (stubCatalog) Enumerate(context.Context) <-chan domain.BookmarkedItem {
	ch := make(chan domain.BookmarkedItem)
	close(ch)
	return ch
}
func (stubCatalog) FetchDetail(context.Context, int64) (*domain.BookmarkedItem, error) {
	return nil, nil
}

type stubDownloader struct{}

func (stubDownloader) Run(_ context.Context, items <-chan domain.BookmarkedItem, _ func(domain.BookmarkedItem) []domain.DownloadTask) downloader.Stats {
	for range items {
	}
	return downloader.Stats{}
}

func newTestServer(t *testing.T) (*Server, *sqlite.Store) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	store, err := sqlite.Open(filepath.Join(t.TempDir(), "test.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	engine := syncer.New(stubCatalog{}, stubDownloader{}, store, syncer.Config{}, logger)
	return NewServer(store, engine, logger), store
}

func seedItem(t *testing.T, store *sqlite.Store, itemID int64) {
	t.Helper()
	err := store.RecordDownload(context.Background(), &domain.DownloadRecord{
		ItemID:       itemID,
		Page:         0,
		FilePath:     fmt.Sprintf("%d_artist/00_title.jpg", itemID),
		Title:        "title",
		Artist:       "artist",
		Tags:         []string{"scenery"},
		DownloadedAt: time.Now(),
	})
	require.NoError(t, err)
}

func doJSON(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

// envelope mirrors the response wrapper for assertions.
type envelope struct {
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Success bool            `json:"success"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func TestHealthCheck(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doJSON(t, s, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeEnvelope(t, rec).Success)
}

func TestListItems(t *testing.T) {
	s, store := newTestServer(t)
	seedItem(t, store, 1)
	seedItem(t, store, 2)

	rec := doJSON(t, s, http.MethodGet, "/api/v1/items?limit=10", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var page struct {
		Items []json.RawMessage `json:"items"`
		Total int               `json:"total"`
	}
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &page))
	assert.Equal(t, 2, page.Total)
	assert.Len(t, page.Items, 2)
}

func TestGetItem(t *testing.T) {
	s, store := newTestServer(t)
	seedItem(t, store, 1)

	rec := doJSON(t, s, http.MethodGet, "/api/v1/items/1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var detail domain.ItemDetail
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &detail))
	assert.Equal(t, int64(1), detail.ItemID)
	assert.Len(t, detail.Pages, 1)
}

func TestGetItem_NotFound(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doJSON(t, s, http.MethodGet, "/api/v1/items/404", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetItem_InvalidID(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doJSON(t, s, http.MethodGet, "/api/v1/items/banana", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSetRating_Clamps(t *testing.T) {
	s, store := newTestServer(t)
	seedItem(t, store, 1)

	rec := doJSON(t, s, http.MethodPut, "/api/v1/items/1/rating", map[string]int{"rating": 99})
	require.Equal(t, http.StatusNoContent, rec.Code)

	detail, err := store.GetItemDetail(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 5, detail.Rating, "rating must clamp to the axis max")
}

func TestSetCustomTags(t *testing.T) {
	s, store := newTestServer(t)
	seedItem(t, store, 1)

	rec := doJSON(t, s, http.MethodPut, "/api/v1/items/1/tags",
		map[string][]string{"tags": {"favorite"}})
	require.Equal(t, http.StatusNoContent, rec.Code)

	detail, err := store.GetItemDetail(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"favorite"}, detail.CustomTags)
}

func TestAxisCRUD(t *testing.T) {
	s, _ := newTestServer(t)

	// Create.
	rec := doJSON(t, s, http.MethodPost, "/api/v1/axes",
		map[string]any{"name": "Mood", "max_score": 10, "display_mode": "bar"})
	require.Equal(t, http.StatusCreated, rec.Code)

	var created domain.RatingAxis
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &created))
	require.NotZero(t, created.ID)

	// Duplicate name conflicts.
	rec = doJSON(t, s, http.MethodPost, "/api/v1/axes", map[string]any{"name": "Mood"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Update.
	rec = doJSON(t, s, http.MethodPut, fmt.Sprintf("/api/v1/axes/%d", created.ID),
		map[string]any{"name": "Atmosphere"})
	assert.Equal(t, http.StatusOK, rec.Code)

	// List: default axis plus the new one.
	rec = doJSON(t, s, http.MethodGet, "/api/v1/axes", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var axes []domain.RatingAxis
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &axes))
	assert.Len(t, axes, 2)
	assert.True(t, axes[0].IsDefault, "default axis listed first")

	// Delete.
	rec = doJSON(t, s, http.MethodDelete, fmt.Sprintf("/api/v1/axes/%d", created.ID), nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestDeleteDefaultAxis_Rejected(t *testing.T) {
	s, store := newTestServer(t)

	axes, err := store.ListAxes(context.Background())
	require.NoError(t, err)
	require.Len(t, axes, 1)

	rec := doJSON(t, s, http.MethodDelete, fmt.Sprintf("/api/v1/axes/%d", axes[0].ID), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Nothing changed.
	after, err := store.ListAxes(context.Background())
	require.NoError(t, err)
	assert.Len(t, after, 1)
}

func TestCreateAxis_MissingName(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doJSON(t, s, http.MethodPost, "/api/v1/axes", map[string]any{"max_score": 5})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSyncEndpoints(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doJSON(t, s, http.MethodGet, "/api/v1/sync/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var status syncer.Status
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &status))
	assert.False(t, status.InProgress)
	assert.Equal(t, 0, status.Cycles)

	rec = doJSON(t, s, http.MethodPost, "/api/v1/sync/trigger", nil)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var trigger struct {
		Queued bool `json:"queued"`
	}
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &trigger))
	assert.True(t, trigger.Queued)
}

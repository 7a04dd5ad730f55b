package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/pixvault/pixvault-server/internal/http/response"
	"github.com/pixvault/pixvault-server/internal/store"
)

// parseID extracts a numeric URL parameter.
func parseID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	return id, err == nil && id > 0
}

// parseBoolFilter reads an optional true/false query parameter.
func parseBoolFilter(r *http.Request, name string) *bool {
	switch r.URL.Query().Get(name) {
	case "true", "1":
		v := true
		return &v
	case "false", "0":
		v := false
		return &v
	default:
		return nil
	}
}

// handleListItems serves the paginated, filterable item listing.
func (s *Server) handleListItems(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	opts := store.ListOptions{
		Query:       q.Get("q"),
		Adult:       parseBoolFilter(r, "adult"),
		AIGenerated: parseBoolFilter(r, "ai"),
		Sort:        q.Get("sort"),
	}
	if v, err := strconv.Atoi(q.Get("min_rating")); err == nil {
		opts.MinRating = v
	}
	if v, err := strconv.Atoi(q.Get("limit")); err == nil {
		opts.Limit = v
	}
	if v, err := strconv.Atoi(q.Get("offset")); err == nil {
		opts.Offset = v
	}

	page, err := s.store.ListItems(r.Context(), opts)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, page, s.logger)
}

// handleGetItem serves one item's aggregated detail.
func (s *Server) handleGetItem(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r, "id")
	if !ok {
		response.BadRequest(w, "invalid item id", s.logger)
		return
	}

	detail, err := s.store.GetItemDetail(r.Context(), id)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, detail, s.logger)
}

type setTagsRequest struct {
	Tags []string `json:"tags" validate:"required,dive,min=1,max=100"`
}

// handleSetCustomTags replaces an item's custom tag list.
func (s *Server) handleSetCustomTags(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r, "id")
	if !ok {
		response.BadRequest(w, "invalid item id", s.logger)
		return
	}

	var req setTagsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body", s.logger)
		return
	}
	if err := s.validator.Validate(req); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	if err := s.store.SetCustomTags(r.Context(), id, req.Tags); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.NoContent(w)
}

type setRatingRequest struct {
	Rating int `json:"rating" validate:"gte=0"`
}

// handleSetRating sets the default-axis rating. Out-of-range values
// are clamped by the registry.
func (s *Server) handleSetRating(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r, "id")
	if !ok {
		response.BadRequest(w, "invalid item id", s.logger)
		return
	}

	var req setRatingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body", s.logger)
		return
	}
	if err := s.validator.Validate(req); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	if err := s.store.SetRating(r.Context(), id, req.Rating); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.NoContent(w)
}

type setScoreRequest struct {
	Score int `json:"score" validate:"gte=0"`
}

// handleSetAxisScore sets an item's score on one axis.
func (s *Server) handleSetAxisScore(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r, "id")
	if !ok {
		response.BadRequest(w, "invalid item id", s.logger)
		return
	}
	axisID, ok := parseID(r, "axisID")
	if !ok {
		response.BadRequest(w, "invalid axis id", s.logger)
		return
	}

	var req setScoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body", s.logger)
		return
	}
	if err := s.validator.Validate(req); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	if err := s.store.SetAxisScore(r.Context(), id, axisID, req.Score); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.NoContent(w)
}

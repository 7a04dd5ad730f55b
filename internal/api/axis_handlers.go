package api

import (
	"encoding/json"
	"net/http"

	"github.com/pixvault/pixvault-server/internal/domain"
	"github.com/pixvault/pixvault-server/internal/http/response"
)

// handleListAxes returns all rating axes, default first.
func (s *Server) handleListAxes(w http.ResponseWriter, r *http.Request) {
	axes, err := s.store.ListAxes(r.Context())
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, axes, s.logger)
}

type axisRequest struct {
	Name        string `json:"name" validate:"required,min=1,max=50"`
	MaxScore    int    `json:"max_score" validate:"omitempty,gte=1,lte=100"`
	DisplayMode string `json:"display_mode" validate:"omitempty,oneof=stars numeric bar"`
}

// handleCreateAxis creates a new rating axis.
func (s *Server) handleCreateAxis(w http.ResponseWriter, r *http.Request) {
	var req axisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body", s.logger)
		return
	}
	if err := s.validator.Validate(req); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	axis := &domain.RatingAxis{
		Name:        req.Name,
		MaxScore:    req.MaxScore,
		DisplayMode: req.DisplayMode,
	}
	if err := s.store.CreateAxis(r.Context(), axis); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Created(w, axis, s.logger)
}

// handleUpdateAxis renames or rescales an axis.
func (s *Server) handleUpdateAxis(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r, "id")
	if !ok {
		response.BadRequest(w, "invalid axis id", s.logger)
		return
	}

	var req axisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body", s.logger)
		return
	}
	if err := s.validator.Validate(req); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	axis, err := s.store.GetAxis(r.Context(), id)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	axis.Name = req.Name
	if req.MaxScore > 0 {
		axis.MaxScore = req.MaxScore
	}
	if req.DisplayMode != "" {
		axis.DisplayMode = req.DisplayMode
	}

	if err := s.store.UpdateAxis(r.Context(), axis); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, axis, s.logger)
}

// handleDeleteAxis removes an axis and its scores. The default axis is
// protected and yields a validation failure.
func (s *Server) handleDeleteAxis(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r, "id")
	if !ok {
		response.BadRequest(w, "invalid axis id", s.logger)
		return
	}

	if err := s.store.DeleteAxis(r.Context(), id); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.NoContent(w)
}

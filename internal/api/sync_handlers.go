package api

import (
	"net/http"

	"github.com/pixvault/pixvault-server/internal/http/response"
	"github.com/pixvault/pixvault-server/internal/syncer"
)

// handleHealthCheck reports liveness.
func (s *Server) handleHealthCheck(w http.ResponseWriter, _ *http.Request) {
	response.Success(w, map[string]string{"status": "ok"}, s.logger)
}

// handleSyncStatus returns the engine's status snapshot.
func (s *Server) handleSyncStatus(w http.ResponseWriter, _ *http.Request) {
	response.Success(w, s.engine.Status(), s.logger)
}

type syncTriggerResponse struct {
	Queued bool          `json:"queued"`
	Status syncer.Status `json:"status"`
}

// handleSyncTrigger enqueues a manual sync cycle. A coalesced (dropped)
// trigger is still a success; the queued flag tells the caller which.
func (s *Server) handleSyncTrigger(w http.ResponseWriter, _ *http.Request) {
	queued := s.engine.Enqueue(syncer.TriggerManual)
	response.JSON(w, http.StatusAccepted, syncTriggerResponse{
		Queued: queued,
		Status: s.engine.Status(),
	}, s.logger)
}

package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/taskdeck/taskdeck/internal/engine"
)

type chatRequest struct {
	Message string         `json:"message"`
	History engine.History `json:"conversation_history,omitempty"`
}

type chatResponse struct {
	Response string         `json:"response"`
	History  engine.History `json:"conversation_history"`
}

// handleChat runs exactly one exchange. The caller carries the
// conversation state: it sends its prior history and gets the updated
// history back, so the server holds nothing between requests.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Message == "" {
		s.errorResponse(w, http.StatusUnprocessableEntity, "message is required")
		return
	}

	answer, history, err := s.engine.Exchange(r.Context(), req.Message, req.History, nil)
	if err != nil {
		if errors.Is(err, r.Context().Err()) && r.Context().Err() != nil {
			// Client went away mid-exchange; nothing left to write.
			return
		}
		s.logger.Error("chat exchange failed", "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "conversation failed")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, chatResponse{Response: answer, History: history}, s.logger)
}

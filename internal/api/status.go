package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/wardenlabs/warden-core/internal/access"
)

// handleStatus returns the current arbitration state.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.ctrl.Status(time.Now()))
}

// setModeRequest is the request body for PUT /mode.
type setModeRequest struct {
	Mode string `json:"mode"`
}

// handleSetMode switches the authentication mode.
func (s *Server) handleSetMode(w http.ResponseWriter, r *http.Request) {
	var req setModeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	mode := access.Mode(req.Mode)
	if mode != access.ModeNormal && mode != access.ModeHighSecurity {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, "mode must be normal or high_security")
		return
	}

	s.ctrl.SetMode(mode)
	s.logger.Info("mode set via API", "mode", req.Mode, "request_id", r.Context().Value(ctxKeyRequestID))

	writeJSON(w, http.StatusOK, map[string]any{"mode": req.Mode})
}

package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/wardenlabs/warden-core/internal/access"
	"github.com/wardenlabs/warden-core/internal/audit"
	"github.com/wardenlabs/warden-core/internal/credential"
)

// setCredentialRequest is the request body for PUT /credentials/{role}.
type setCredentialRequest struct {
	Password string `json:"password"`
}

// handleSetCredential replaces a site credential.
//
// Unlike the keypad flow, the admin identity is already proven by the
// token, so the new value is applied directly against the store.
func (s *Server) handleSetCredential(w http.ResponseWriter, r *http.Request) {
	role := credential.Role(chi.URLParam(r, "role"))
	if !role.Valid() {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, "role must be admin or user")
		return
	}

	var req setCredentialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if len(req.Password) < s.policy.MinPasswordLength {
		writeError(w, http.StatusBadRequest, ErrCodeValidation,
			"password must be at least "+strconv.Itoa(s.policy.MinPasswordLength)+" characters")
		return
	}

	if err := s.creds.SetPassword(r.Context(), role, req.Password); err != nil {
		if errors.Is(err, credential.ErrPasswordTooShort) {
			writeError(w, http.StatusBadRequest, ErrCodeValidation, "password too short")
			return
		}
		s.logger.Error("credential update failed", "role", string(role), "error", err)
		writeInternalError(w, "credential update failed")
		return
	}

	s.record(audit.KindPasswordChanged, audit.MethodPassword, string(role), audit.StatusSuccess)
	s.logger.Info("credential changed via API", "role", string(role))

	writeJSON(w, http.StatusOK, map[string]any{"role": string(role)})
}

// handleListFingerprints returns the enrolled fingerprint slots.
func (s *Server) handleListFingerprints(w http.ResponseWriter, r *http.Request) {
	slots, err := s.creds.ListSlots(r.Context())
	if err != nil {
		s.logger.Error("failed to list fingerprint slots", "error", err)
		writeInternalError(w, "failed to list fingerprint slots")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"slots": slots,
		"total": len(slots),
	})
}

// enrollRequest is the request body for POST /fingerprints.
type enrollRequest struct {
	Label string `json:"label"`
}

// handleEnrollFingerprint starts an enrolment cycle on the reader.
//
// The request is injected into the arbitration loop so the enrolment
// follows exactly the same path as a keypad-initiated one; the slot is
// committed when the reader confirms the capture.
func (s *Server) handleEnrollFingerprint(w http.ResponseWriter, r *http.Request) {
	var req enrollRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeBadRequest(w, "invalid JSON body")
			return
		}
	}

	ok := s.ctrl.Inject(access.Event{
		Kind:       access.EventEnrollFingerprint,
		Label:      req.Label,
		Authorized: true,
	})
	if !ok {
		writeError(w, http.StatusServiceUnavailable, ErrCodeInternal, "controller busy, retry")
		return
	}

	s.logger.Info("fingerprint enrolment requested via API", "label", req.Label)
	writeJSON(w, http.StatusAccepted, map[string]any{"status": "enrolment_started"})
}

// handleDeleteFingerprint removes an enrolled fingerprint slot.
func (s *Server) handleDeleteFingerprint(w http.ResponseWriter, r *http.Request) {
	slot, err := strconv.Atoi(chi.URLParam(r, "slot"))
	if err != nil || slot < credential.MinSlot || slot > credential.MaxSlot {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, "slot must be between 1 and 127")
		return
	}

	exists, err := s.creds.HasSlot(r.Context(), slot)
	if err != nil {
		s.logger.Error("slot lookup failed", "slot", slot, "error", err)
		writeInternalError(w, "slot lookup failed")
		return
	}
	if !exists {
		writeNotFound(w, "slot not enrolled")
		return
	}

	ok := s.ctrl.Inject(access.Event{
		Kind:          access.EventDeleteFingerprint,
		FingerprintID: slot,
		Authorized:    true,
	})
	if !ok {
		writeError(w, http.StatusServiceUnavailable, ErrCodeInternal, "controller busy, retry")
		return
	}

	s.logger.Info("fingerprint deletion requested via API", "slot", slot)
	writeJSON(w, http.StatusAccepted, map[string]any{"status": "deletion_started", "slot": slot})
}

// handleDeleteAllFingerprints wipes the entire template library.
func (s *Server) handleDeleteAllFingerprints(w http.ResponseWriter, _ *http.Request) {
	ok := s.ctrl.Inject(access.Event{
		Kind:       access.EventDeleteAllFingerprints,
		Authorized: true,
	})
	if !ok {
		writeError(w, http.StatusServiceUnavailable, ErrCodeInternal, "controller busy, retry")
		return
	}

	s.logger.Warn("full fingerprint wipe requested via API")
	writeJSON(w, http.StatusAccepted, map[string]any{"status": "wipe_started"})
}

// record enqueues an audit entry for an API-originated action.
func (s *Server) record(kind, method, actor, status string) {
	if s.recorder == nil {
		return
	}
	s.recorder.Record(audit.Event{
		Kind:   kind,
		Method: method,
		Actor:  actor,
		Status: status,
	})
}

package api

import (
	"net/http"
	"strconv"

	"github.com/wardenlabs/warden-core/internal/audit"
)

// handleListAudit returns paginated audit trail entries with optional filters.
//
// Query parameters:
//   - kind: filter by event kind (DOOR_OPEN, SYSTEM_LOCKED, ...)
//   - method: filter by method (PASSWORD, FINGERPRINT, 2FA, SYSTEM)
//   - status: filter by status (SUCCESS, FAILED, DENIED, ...)
//   - limit: max results (default 50, max 200)
//   - offset: pagination offset
func (s *Server) handleListAudit(w http.ResponseWriter, r *http.Request) {
	if s.auditRepo == nil {
		writeInternalError(w, "audit trail not configured")
		return
	}

	q := r.URL.Query()
	filter := audit.Filter{
		Kind:   q.Get("kind"),
		Method: q.Get("method"),
		Status: q.Get("status"),
	}

	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Limit = n
		}
	}
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Offset = n
		}
	}

	result, err := s.auditRepo.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("failed to list audit events", "error", err)
		writeInternalError(w, "failed to list audit events")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

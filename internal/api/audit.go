package api

import (
	"net/http"
	"strconv"

	"github.com/nerrad567/onkyod/internal/audit"
)

// handleListAudit returns paginated audit entries.
//
// Query parameters:
//   - receiver: filter by receiver name
//   - source: filter by ingress (tcp, unix, ws, mqtt, http, signal)
//   - failed: "true" for rejected commands only
//   - limit: max results (default 50, max 200)
//   - offset: pagination offset
func (s *Server) handleListAudit(w http.ResponseWriter, r *http.Request) {
	if s.auditRepo == nil {
		writeNotFound(w, "audit trail not enabled")
		return
	}

	q := r.URL.Query()
	filter := audit.Filter{
		Receiver: q.Get("receiver"),
		Source:   q.Get("source"),
	}
	if v := q.Get("failed"); v != "" {
		failed, err := strconv.ParseBool(v)
		if err != nil {
			writeBadRequest(w, "failed must be a boolean")
			return
		}
		filter.Failed = failed
	}
	for param, dst := range map[string]*int{"limit": &filter.Limit, "offset": &filter.Offset} {
		if v := q.Get(param); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				writeBadRequest(w, param+" must be an integer")
				return
			}
			*dst = n
		}
	}

	result, err := s.auditRepo.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("failed to list audit entries", "error", err)
		writeInternalError(w, "failed to list audit entries")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

package httpapi

import (
	"encoding/json"
	"net/http"
)

// handleSessions serves GET /api/sessions: the full list of known sessions,
// most recently updated first.
func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "GET required")
		return
	}
	metas, err := s.sessions.List(r.Context())
	if err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, metas)
}

// renameRequest is the PATCH /api/sessions/{key} body.
type renameRequest struct {
	DisplayName string `json:"display_name"`
}

// handleSessionByKey dispatches GET/PATCH/DELETE on /api/sessions/{key}.
// DELETE cascades into the tool-context store and memory index alongside the
// session log and metadata, since a session key is the unit of ownership
// across all three stores.
func (s *Server) handleSessionByKey(w http.ResponseWriter, r *http.Request) {
	key, ok := pathSuffix(r.URL.Path, "/api/sessions/")
	if !ok {
		writeError(w, http.StatusNotFound, "session key required")
		return
	}

	switch r.Method {
	case http.MethodGet:
		meta, err := s.sessions.Get(r.Context(), key)
		if err != nil {
			writeError(w, statusForError(err), err.Error())
			return
		}
		writeJSON(w, http.StatusOK, meta)

	case http.MethodPatch:
		var req renameRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
			return
		}
		if err := s.sessions.Rename(r.Context(), key, req.DisplayName); err != nil {
			writeError(w, statusForError(err), err.Error())
			return
		}
		meta, err := s.sessions.Get(r.Context(), key)
		if err != nil {
			writeError(w, statusForError(err), err.Error())
			return
		}
		writeJSON(w, http.StatusOK, meta)

	case http.MethodDelete:
		if err := s.sessions.Delete(r.Context(), key); err != nil {
			writeError(w, statusForError(err), err.Error())
			return
		}
		if s.toolCtx != nil {
			if err := s.toolCtx.DeleteSession(r.Context(), key); err != nil {
				s.logger.Warn("cascade delete of tool context pointers failed", "session_key", key, "error", err)
			}
		}
		if s.memory != nil {
			if err := s.memory.DeleteSession(r.Context(), key); err != nil {
				s.logger.Warn("cascade delete of memory entries failed", "session_key", key, "error", err)
			}
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		writeError(w, http.StatusMethodNotAllowed, "GET, PATCH, or DELETE required")
	}
}

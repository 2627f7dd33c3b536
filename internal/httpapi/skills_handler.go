package httpapi

import "net/http"

// handleSkills serves GET /api/skills: every discovered skill, as lightweight
// snapshots (name, description, path) rather than full skill content.
func (s *Server) handleSkills(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "GET required")
		return
	}
	if s.skills == nil {
		writeJSON(w, http.StatusOK, []any{})
		return
	}
	entries := s.skills.List()
	out := make([]any, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.ToSnapshot())
	}
	writeJSON(w, http.StatusOK, out)
}

// handleSkillByName serves GET /api/skills/{name}.
func (s *Server) handleSkillByName(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "GET required")
		return
	}
	name, ok := pathSuffix(r.URL.Path, "/api/skills/")
	if !ok {
		writeError(w, http.StatusNotFound, "skill name required")
		return
	}
	if s.skills == nil {
		writeError(w, http.StatusNotFound, "skill not found: "+name)
		return
	}
	entry, ok := s.skills.Get(name)
	if !ok {
		writeError(w, http.StatusNotFound, "skill not found: "+name)
		return
	}
	writeJSON(w, http.StatusOK, entry.ToSnapshot())
}

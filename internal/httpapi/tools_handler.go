package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/haasonsaas/nexus/internal/agent"
)

// toolDescriptor is the wire shape for one registered tool: enough for a
// client to render its name, purpose, and argument schema without exposing
// the Go type backing it.
type toolDescriptor struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Schema      json.RawMessage `json:"schema"`
}

func describeTool(t agent.Tool) toolDescriptor {
	return toolDescriptor{Name: t.Name(), Description: t.Description(), Schema: t.Schema()}
}

// handleTools serves GET /api/tools: every tool currently registered.
func (s *Server) handleTools(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "GET required")
		return
	}
	tools := s.registry.List()
	out := make([]toolDescriptor, 0, len(tools))
	for _, t := range tools {
		out = append(out, describeTool(t))
	}
	writeJSON(w, http.StatusOK, out)
}

// handleToolByName serves GET /api/tools/{name}.
func (s *Server) handleToolByName(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "GET required")
		return
	}
	name, ok := pathSuffix(r.URL.Path, "/api/tools/")
	if !ok {
		writeError(w, http.StatusNotFound, "tool name required")
		return
	}
	tool, ok := s.registry.Get(name)
	if !ok {
		writeError(w, http.StatusNotFound, "tool not found: "+name)
		return
	}
	writeJSON(w, http.StatusOK, describeTool(tool))
}

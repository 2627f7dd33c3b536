package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/haasonsaas/nexus/internal/agent"
	"github.com/haasonsaas/nexus/internal/sessions"
)

// fakeProvider answers every completion with a fixed final-answer chunk and
// no tool calls, so Loop.Run finishes after one round without ever needing a
// real model backend.
type fakeProvider struct{}

func (fakeProvider) Name() string { return "fake" }

func (fakeProvider) Models() []agent.Model {
	return []agent.Model{{ID: "stub-model", Name: "stub", ContextSize: 8192}}
}

func (fakeProvider) SupportsTools() bool { return true }

func (fakeProvider) Complete(ctx context.Context, req *agent.CompletionRequest) (<-chan *agent.CompletionChunk, error) {
	ch := make(chan *agent.CompletionChunk, 1)
	ch <- &agent.CompletionChunk{Text: "hello from fake", Done: true}
	close(ch)
	return ch, nil
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	store, err := sessions.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}
	registry := agent.NewToolRegistry()
	loop := agent.NewLoop(fakeProvider{}, registry, store, nil, nil, "stub-model", "you are helpful", agent.DefaultRuntimeOptions())
	return New(Config{
		Loop:     loop,
		Sessions: store,
		Registry: registry,
	})
}

func TestHandleHealth(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	s.Mux().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status field = %q, want ok", body["status"])
	}
}

func TestHandleSessionsEmpty(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/sessions", nil)
	w := httptest.NewRecorder()
	s.Mux().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var metas []any
	if err := json.Unmarshal(w.Body.Bytes(), &metas); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(metas) != 0 {
		t.Errorf("metas = %v, want empty", metas)
	}
}

func TestHandleSessionByKeyLifecycle(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	if _, err := s.sessions.GetOrCreate(ctx, "alpha"); err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}

	getReq := httptest.NewRequest(http.MethodGet, "/api/sessions/alpha", nil)
	getW := httptest.NewRecorder()
	s.Mux().ServeHTTP(getW, getReq)
	if getW.Code != http.StatusOK {
		t.Fatalf("GET status = %d, want 200", getW.Code)
	}

	patchBody := strings.NewReader(`{"display_name":"Alpha Session"}`)
	patchReq := httptest.NewRequest(http.MethodPatch, "/api/sessions/alpha", patchBody)
	patchW := httptest.NewRecorder()
	s.Mux().ServeHTTP(patchW, patchReq)
	if patchW.Code != http.StatusOK {
		t.Fatalf("PATCH status = %d, want 200", patchW.Code)
	}

	delReq := httptest.NewRequest(http.MethodDelete, "/api/sessions/alpha", nil)
	delW := httptest.NewRecorder()
	s.Mux().ServeHTTP(delW, delReq)
	if delW.Code != http.StatusNoContent {
		t.Fatalf("DELETE status = %d, want 204", delW.Code)
	}

	missingReq := httptest.NewRequest(http.MethodGet, "/api/sessions/alpha", nil)
	missingW := httptest.NewRecorder()
	s.Mux().ServeHTTP(missingW, missingReq)
	if missingW.Code != http.StatusNotFound {
		t.Fatalf("GET after delete status = %d, want 404", missingW.Code)
	}
}

func TestHandleToolsEmpty(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/tools", nil)
	w := httptest.NewRecorder()
	s.Mux().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var tools []toolDescriptor
	if err := json.Unmarshal(w.Body.Bytes(), &tools); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(tools) != 0 {
		t.Errorf("tools = %v, want empty", tools)
	}
}

func TestHandleToolByNameNotFound(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/tools/missing", nil)
	w := httptest.NewRecorder()
	s.Mux().ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestHandleSkillsNilRegistry(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/skills", nil)
	w := httptest.NewRecorder()
	s.Mux().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var skills []any
	if err := json.Unmarshal(w.Body.Bytes(), &skills); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(skills) != 0 {
		t.Errorf("skills = %v, want empty", skills)
	}
}

func TestHandleChatRejectsMissingFields(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{}`))
	w := httptest.NewRecorder()
	s.Mux().ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestHandleChatRejectsGet(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/chat", nil)
	w := httptest.NewRecorder()
	s.Mux().ServeHTTP(w, req)

	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", w.Code)
	}
}

func TestStatusForError(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{&agent.Error{Kind: agent.KindBadArguments}, http.StatusBadRequest},
		{&agent.Error{Kind: agent.KindNotFound}, http.StatusNotFound},
		{&agent.Error{Kind: agent.KindToolTimeout}, http.StatusServiceUnavailable},
		{&agent.Error{Kind: agent.KindCancelled}, 499},
	}
	for _, tt := range cases {
		if got := statusForError(tt.err); got != tt.want {
			t.Errorf("statusForError(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
	if got := statusForError(nil); got != http.StatusInternalServerError {
		t.Errorf("statusForError(nil) = %d, want %d", got, http.StatusInternalServerError)
	}
}

func TestPathSuffix(t *testing.T) {
	cases := []struct {
		path, prefix string
		want         string
		wantOK       bool
	}{
		{"/api/tools/web_search", "/api/tools/", "web_search", true},
		{"/api/tools/", "/api/tools/", "", false},
		{"/api/tools/a/b", "/api/tools/", "", false},
	}
	for _, tt := range cases {
		got, ok := pathSuffix(tt.path, tt.prefix)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("pathSuffix(%q, %q) = (%q, %v), want (%q, %v)", tt.path, tt.prefix, got, ok, tt.want, tt.wantOK)
		}
	}
}

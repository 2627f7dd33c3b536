// Package httpapi exposes the agent loop over HTTP: a streaming chat
// endpoint plus read/write session, tool, and skill reflection endpoints,
// following the teacher's gateway's mux-and-handler-methods layout without
// its multi-channel surface.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/haasonsaas/nexus/internal/agent"
	"github.com/haasonsaas/nexus/internal/memory"
	"github.com/haasonsaas/nexus/internal/metrics"
	"github.com/haasonsaas/nexus/internal/sessions"
	"github.com/haasonsaas/nexus/internal/skills"
	"github.com/haasonsaas/nexus/internal/toolcontext"
)

// Server is the HTTP front end for one Loop and its supporting stores.
type Server struct {
	loop     *agent.Loop
	sessions sessions.Store
	toolCtx  toolcontext.Store
	memory   memory.Index
	registry *agent.ToolRegistry
	skills   *skills.Registry
	metrics  *metrics.Metrics
	logger   *slog.Logger

	httpServer   *http.Server
	httpListener net.Listener
}

// Config collects Server's dependencies. ToolContext and Memory are optional;
// when set, deleting a session cascades into them as well as Sessions.
type Config struct {
	Loop        *agent.Loop
	Sessions    sessions.Store
	ToolContext toolcontext.Store
	Memory      memory.Index
	Registry    *agent.ToolRegistry
	Skills      *skills.Registry
	Metrics     *metrics.Metrics
	Logger      *slog.Logger
}

// New builds a Server from cfg.
func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		loop:     cfg.Loop,
		sessions: cfg.Sessions,
		toolCtx:  cfg.ToolContext,
		memory:   cfg.Memory,
		registry: cfg.Registry,
		skills:   cfg.Skills,
		metrics:  cfg.Metrics,
		logger:   logger,
	}
}

// Mux builds the routed handler for the full API surface.
func (s *Server) Mux() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/healthz", s.handleHealth)

	mux.HandleFunc("/api/chat", s.handleChat)
	mux.HandleFunc("/api/sessions", s.handleSessions)
	mux.HandleFunc("/api/sessions/", s.handleSessionByKey)
	mux.HandleFunc("/api/tools", s.handleTools)
	mux.HandleFunc("/api/tools/", s.handleToolByName)
	mux.HandleFunc("/api/skills", s.handleSkills)
	mux.HandleFunc("/api/skills/", s.handleSkillByName)

	return mux
}

// Serve starts the HTTP server on addr, blocking until it stops. Callers
// typically run it in a goroutine and call Shutdown on context cancellation.
func (s *Server) Serve(addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.httpListener = listener
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Mux(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.logger.Info("http server listening", "addr", addr)
	err = s.httpServer.Serve(listener)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeJSON encodes payload as the response body, matching the teacher's
// single shared JSON-response helper.
func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError writes a {"error": message} body with status.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// statusForError maps an agent.Error Kind to an HTTP status code.
func statusForError(err error) int {
	e, ok := agent.AsError(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch e.Kind {
	case agent.KindBadArguments:
		return http.StatusBadRequest
	case agent.KindNotFound:
		return http.StatusNotFound
	case agent.KindToolTimeout, agent.KindLLMRateLimit:
		return http.StatusServiceUnavailable
	case agent.KindCancelled:
		return 499 // client closed request, matching nginx's convention
	case agent.KindConfigError:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// pathSuffix extracts the segment after prefix, rejecting anything further
// nested or empty.
func pathSuffix(path, prefix string) (string, bool) {
	rest := strings.TrimPrefix(path, prefix)
	if rest == "" || rest == path || strings.Contains(rest, "/") {
		return "", false
	}
	return rest, true
}

package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/haasonsaas/nexus/internal/agent"
	"github.com/haasonsaas/nexus/internal/metrics"
)

// chatRequest is the POST /api/chat body.
type chatRequest struct {
	SessionKey string `json:"session_key"`
	Message    string `json:"message"`
	Model      string `json:"model,omitempty"`
	System     string `json:"system,omitempty"`
}

// handleChat streams one query's events as SSE, per 4.H: one data: <json>
// line per event, no heartbeats, client disconnect propagated via
// r.Context().Done().
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if req.SessionKey == "" || req.Message == "" {
		writeError(w, http.StatusBadRequest, "session_key and message are required")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	if s.metrics != nil {
		s.metrics.ActiveSSEConnections.Inc()
		defer s.metrics.ActiveSSEConnections.Dec()
	}

	events := make(chan agent.Event, 64)
	chanSink := agent.NewChanSink(events)

	sinks := []agent.EventSink{chanSink}
	if s.metrics != nil {
		sinks = append(sinks, metrics.NewEventSink(s.metrics))
	}
	emitter := agent.NewEventEmitter(agent.NewMultiSink(sinks...))

	go func() {
		_, err := s.loop.Run(r.Context(), agent.QueryRequest{
			SessionKey: req.SessionKey,
			Message:    req.Message,
			Model:      req.Model,
			System:     req.System,
		}, emitter)
		if err != nil {
			if !agent.Is(err, agent.KindCancelled) {
				s.logger.Error("chat query failed", "session_key", req.SessionKey, "error", err)
				emitter.Done(r.Context(), "", 0, nil, err.Error())
			}
		}
		close(events)
	}()

	for {
		select {
		case e, ok := <-events:
			if !ok {
				return
			}
			data, err := json.Marshal(e)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}

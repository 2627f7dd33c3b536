// Package metrics exposes the runtime's Prometheus instrumentation: the five
// series named for the agent loop (iteration count, tool call duration and
// errors, active SSE connections, LLM call duration), registered once at
// startup and handed down to the components that observe them.
package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/haasonsaas/nexus/internal/agent"
)

// Metrics holds the runtime's Prometheus series.
type Metrics struct {
	// LoopIterations counts reasoning/acting rounds across all queries.
	LoopIterations prometheus.Counter

	// ToolCallDuration measures tool execution latency in seconds.
	// Labels: tool_name.
	ToolCallDuration *prometheus.HistogramVec

	// ToolErrors counts tool invocations that returned an error result or
	// failed outright. Labels: tool_name.
	ToolErrors *prometheus.CounterVec

	// ActiveSSEConnections tracks the number of open /api/chat streams.
	ActiveSSEConnections prometheus.Gauge

	// LLMCallDuration measures one provider Complete() call, start to the
	// stream's Done chunk, in seconds. Labels: provider, model.
	LLMCallDuration *prometheus.HistogramVec
}

// New creates and registers every series with the default Prometheus
// registry. Call once at process start.
func New() *Metrics {
	return &Metrics{
		LoopIterations: promauto.NewCounter(prometheus.CounterOpts{
			Name: "mini_agent_loop_iterations_total",
			Help: "Total reasoning/acting iterations across all queries.",
		}),
		ToolCallDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mini_agent_tool_call_duration_seconds",
				Help:    "Tool call duration in seconds.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
			},
			[]string{"tool_name"},
		),
		ToolErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mini_agent_tool_errors_total",
				Help: "Tool invocations that returned an error.",
			},
			[]string{"tool_name"},
		),
		ActiveSSEConnections: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "mini_agent_active_sse_connections",
			Help: "Number of open /api/chat SSE streams.",
		}),
		LLMCallDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mini_agent_llm_call_duration_seconds",
				Help:    "LLM provider call duration in seconds, start to stream completion.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"provider", "model"},
		),
	}
}

// EventSink adapts the metrics collectors to agent.EventSink, observing tool
// lifecycle and loop-relevant events as they are emitted. Pair it with the
// emitter's real sink via agent.NewMultiSink.
type EventSink struct {
	m *Metrics
}

// NewEventSink wraps m as an agent.EventSink.
func NewEventSink(m *Metrics) *EventSink {
	return &EventSink{m: m}
}

// Emit implements agent.EventSink.
func (s *EventSink) Emit(ctx context.Context, e agent.Event) {
	if s.m == nil {
		return
	}
	switch e.Type {
	case agent.EventToolEnd:
		s.m.ToolCallDuration.WithLabelValues(e.ToolName).Observe(float64(e.ToolMs) / 1000)
	case agent.EventToolError:
		s.m.ToolCallDuration.WithLabelValues(e.ToolName).Observe(float64(e.ToolMs) / 1000)
		s.m.ToolErrors.WithLabelValues(e.ToolName).Inc()
	case agent.EventDone:
		s.m.LoopIterations.Add(float64(e.Iterations))
	}
}

package agent

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"
)

// EventType enumerates the SSE event kinds streamed to a client over the
// course of one query.
type EventType string

const (
	EventThinking    EventType = "thinking"
	EventToolStart   EventType = "tool_start"
	EventToolEnd     EventType = "tool_end"
	EventToolError   EventType = "tool_error"
	EventToolLimit   EventType = "tool_limit"
	EventAnswerStart EventType = "answer_start"
	EventAnswerChunk EventType = "answer_chunk"
	EventDone        EventType = "done"
)

// Event is a single SSE event. Only the fields relevant to Type are
// populated; the rest are left at their zero value.
type Event struct {
	Type     EventType `json:"type"`
	Sequence uint64    `json:"sequence"`
	Time     time.Time `json:"time"`

	Thinking string `json:"thinking,omitempty"`

	ToolCallID string          `json:"tool_call_id,omitempty"`
	ToolName   string          `json:"tool_name,omitempty"`
	ToolArgs   json.RawMessage `json:"tool_args,omitempty"`
	ToolResult string          `json:"tool_result,omitempty"`
	ToolError  string          `json:"tool_error,omitempty"`
	ToolMs     int64           `json:"tool_duration_ms,omitempty"`

	Limit int `json:"limit,omitempty"`

	Answer     string          `json:"answer,omitempty"`
	Iterations int             `json:"iterations,omitempty"`
	ToolCalls  []ToolCallSummary `json:"tool_calls,omitempty"`

	Error string `json:"error,omitempty"`
}

// ToolCallSummary is the compact per-call record carried on the done event:
// enough for a client to show what ran without replaying the whole
// scratchpad.
type ToolCallSummary struct {
	Tool string          `json:"tool"`
	Args json.RawMessage `json:"args,omitempty"`
}

// EventEmitter assigns monotonic sequence numbers to events and dispatches
// them to a sink. A single emitter is scoped to one query.
type EventEmitter struct {
	sink     EventSink
	sequence uint64
}

// NewEventEmitter creates an emitter dispatching to sink. A nil sink
// discards every event.
func NewEventEmitter(sink EventSink) *EventEmitter {
	if sink == nil {
		sink = NopSink{}
	}
	return &EventEmitter{sink: sink}
}

func (e *EventEmitter) emit(ctx context.Context, ev Event) Event {
	ev.Sequence = atomic.AddUint64(&e.sequence, 1)
	ev.Time = time.Now()
	e.sink.Emit(ctx, ev)
	return ev
}

// Thinking emits a fragment of the model's reasoning narration.
func (e *EventEmitter) Thinking(ctx context.Context, text string) Event {
	return e.emit(ctx, Event{Type: EventThinking, Thinking: text})
}

// ToolStart emits the start of a tool invocation.
func (e *EventEmitter) ToolStart(ctx context.Context, callID, name string, args json.RawMessage) Event {
	return e.emit(ctx, Event{Type: EventToolStart, ToolCallID: callID, ToolName: name, ToolArgs: args})
}

// ToolEnd emits a tool invocation that completed successfully.
func (e *EventEmitter) ToolEnd(ctx context.Context, callID, name, result string, elapsed time.Duration) Event {
	return e.emit(ctx, Event{
		Type:       EventToolEnd,
		ToolCallID: callID,
		ToolName:   name,
		ToolResult: result,
		ToolMs:     elapsed.Milliseconds(),
	})
}

// ToolError emits a tool invocation that failed.
func (e *EventEmitter) ToolError(ctx context.Context, callID, name, errMsg string, elapsed time.Duration) Event {
	return e.emit(ctx, Event{
		Type:       EventToolError,
		ToolCallID: callID,
		ToolName:   name,
		ToolError:  errMsg,
		ToolMs:     elapsed.Milliseconds(),
	})
}

// ToolLimit emits the soft tool-call-limit notice injected into the
// scratchpad once the per-query cap is reached.
func (e *EventEmitter) ToolLimit(ctx context.Context, limit int) Event {
	return e.emit(ctx, Event{Type: EventToolLimit, Limit: limit})
}

// AnswerStart emits the transition from reasoning to final-answer streaming.
func (e *EventEmitter) AnswerStart(ctx context.Context) Event {
	return e.emit(ctx, Event{Type: EventAnswerStart})
}

// AnswerChunk emits a fragment of the streamed final answer.
func (e *EventEmitter) AnswerChunk(ctx context.Context, text string) Event {
	return e.emit(ctx, Event{Type: EventAnswerChunk, Answer: text})
}

// Done emits the terminal event for the query. errMsg is empty on success.
// answer, iterations, and toolCalls are only meaningful on success; a failed
// query may leave them zero-valued.
func (e *EventEmitter) Done(ctx context.Context, answer string, iterations int, toolCalls []ToolCallSummary, errMsg string) Event {
	return e.emit(ctx, Event{
		Type:       EventDone,
		Answer:     answer,
		Iterations: iterations,
		ToolCalls:  toolCalls,
		Error:      errMsg,
	})
}

package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/haasonsaas/nexus/internal/memory"
	"github.com/haasonsaas/nexus/pkg/models"
)

// SessionStore is the subset of sessions.Store the loop depends on.
type SessionStore interface {
	GetOrCreate(ctx context.Context, key string) (*models.SessionMeta, error)
	AppendMessage(ctx context.Context, key string, msg models.Message) error
	History(ctx context.Context, key string, limit int) ([]models.Message, error)
}

// MemoryIndex is the subset of memory.Index the loop depends on.
type MemoryIndex interface {
	Record(ctx context.Context, sessionKey, question, answerSummary string) error
	Recall(ctx context.Context, sessionKey, query string, topK int) ([]memory.Entry, error)
}

// ToolContextStore is the subset of toolcontext.Store the loop depends on.
type ToolContextStore interface {
	Render(ctx context.Context, sessionKey, toolName string, arguments json.RawMessage, fullResult string, maxInlineChars int) (string, error)
}

// Loop runs the Setup -> Reasoning/Acting -> Answering cycle for one query
// against one session.
type Loop struct {
	provider LLMProvider
	registry *ToolRegistry
	sessions SessionStore
	memory   MemoryIndex
	toolCtx  ToolContextStore
	opts     RuntimeOptions

	defaultModel  string
	defaultSystem string
}

// NewLoop wires together the components one query needs. memoryIdx and
// toolCtx may be nil; opts is merged over DefaultRuntimeOptions.
func NewLoop(provider LLMProvider, registry *ToolRegistry, sessionStore SessionStore, memoryIdx MemoryIndex, toolCtx ToolContextStore, defaultModel, defaultSystem string, opts RuntimeOptions) *Loop {
	if registry == nil {
		registry = NewToolRegistry()
	}
	return &Loop{
		provider:      provider,
		registry:      registry,
		sessions:      sessionStore,
		memory:        memoryIdx,
		toolCtx:       toolCtx,
		opts:          mergeRuntimeOptions(DefaultRuntimeOptions(), opts),
		defaultModel:  defaultModel,
		defaultSystem: defaultSystem,
	}
}

// QueryRequest is one call into the loop.
type QueryRequest struct {
	SessionKey string
	Message    string
	Model      string
	System     string
}

// QueryResult is what Run returns on success.
type QueryResult struct {
	Answer     string
	Iterations int
	ToolCalls  []ToolCallSummary
}

// Run executes one query end to end, streaming events to emitter as it goes,
// and returns once the final answer has been produced or the query failed or
// was cancelled. On cancellation, Run returns a KindCancelled error without
// emitting a done event and without persisting anything beyond what had
// already completed at the point of cancellation.
func (l *Loop) Run(ctx context.Context, req QueryRequest, emitter *EventEmitter) (*QueryResult, error) {
	if emitter == nil {
		emitter = NewEventEmitter(nil)
	}
	if l.provider == nil {
		return nil, ErrNoProvider
	}
	if req.SessionKey == "" {
		return nil, &Error{Kind: KindBadArguments, Message: "session key is required"}
	}
	if strings.TrimSpace(req.Message) == "" {
		return nil, &Error{Kind: KindBadArguments, Message: "message is required"}
	}

	model := req.Model
	if model == "" {
		model = l.defaultModel
	}
	system := req.System
	if system == "" {
		system = l.defaultSystem
	}

	logger := l.opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Debug("query started", "session_key", req.SessionKey, "model", model)

	// --- Setup ---
	if _, err := l.sessions.GetOrCreate(ctx, req.SessionKey); err != nil {
		return nil, wrapStoreError(ctx, "load session", err)
	}
	history, err := l.sessions.History(ctx, req.SessionKey, 0)
	if err != nil {
		return nil, wrapStoreError(ctx, "load session history", err)
	}
	history = repairTranscript(history)

	if l.memory != nil {
		if recalled, err := l.memory.Recall(ctx, req.SessionKey, req.Message, memory.DefaultTopK); err == nil {
			system = appendMemoryContext(system, recalled)
		}
	}

	if err := l.sessions.AppendMessage(ctx, req.SessionKey, models.Message{Role: models.RoleUser, Content: req.Message}); err != nil {
		return nil, wrapStoreError(ctx, "persist user message", err)
	}

	messages := toCompletionMessages(history)
	messages = append(messages, CompletionMessage{Role: string(models.RoleUser), Content: req.Message})

	sp := NewScratchpad()
	executor := NewExecutor(l.registry, l.opts, emitter)
	tools := l.registry.List()

	var toolSummaries []ToolCallSummary
	var finalAnswer string
	iterations := 0
	hardLimitHit := false

	// --- Reasoning / Acting ---
	for iterations = 1; iterations <= l.opts.MaxIterations; iterations++ {
		if ctx.Err() != nil {
			return nil, &Error{Kind: KindCancelled, Cause: ctx.Err()}
		}

		text, calls, err := l.streamRound(ctx, &CompletionRequest{
			Model:    model,
			System:   renderSystemWithScratchpad(system, sp),
			Messages: messages,
			Tools:    tools,
		}, emitter)
		if err != nil {
			return nil, err
		}

		if len(calls) == 0 {
			finalAnswer = text
			break
		}

		if l.opts.MaxToolCalls > 0 && sp.TotalToolCalls()+len(calls) > l.opts.MaxToolCalls {
			emitter.ToolLimit(ctx, l.opts.MaxToolCalls)
			sp.LimitNotice(fmt.Sprintf("overall tool-call limit of %d reached; answer with what is known", l.opts.MaxToolCalls))
			logger.Warn("tool-call budget exhausted", "session_key", req.SessionKey, "limit", l.opts.MaxToolCalls)
			hardLimitHit = true
			break
		}

		for _, call := range calls {
			sp.Act(call.ID, call.Name, call.Arguments)
		}
		l.noteSoftLimits(ctx, sp, calls, emitter)

		results := executor.ExecuteAll(ctx, calls)

		if err := l.sessions.AppendMessage(ctx, req.SessionKey, models.Message{Role: models.RoleAssistant, ToolCalls: results}); err != nil {
			return nil, wrapStoreError(ctx, "persist assistant tool calls", err)
		}
		messages = append(messages, CompletionMessage{Role: string(models.RoleAssistant), ToolCalls: results})

		for _, result := range results {
			ok := result.Error == ""
			observed := result.Result
			if !ok {
				observed = result.Error
			}
			sp.Observe(result.ID, ok, observed, result.DurationMs)
			toolSummaries = append(toolSummaries, ToolCallSummary{Tool: result.Name, Args: result.Arguments})
			if !ok {
				logger.Warn("tool call failed", "session_key", req.SessionKey, "tool", result.Name, "error", result.Error)
			}

			rendered := observed
			if l.toolCtx != nil {
				if r, err := l.toolCtx.Render(ctx, req.SessionKey, result.Name, result.Arguments, observed, 0); err == nil {
					rendered = r
				}
			}
			if err := l.sessions.AppendMessage(ctx, req.SessionKey, models.Message{Role: models.RoleTool, ToolCallID: result.ID, Content: rendered}); err != nil {
				return nil, wrapStoreError(ctx, "persist tool result", err)
			}
			messages = append(messages, CompletionMessage{Role: string(models.RoleTool), Content: rendered, ToolCallID: result.ID})
		}
	}

	// --- Answering ---
	if finalAnswer == "" {
		if iterations > l.opts.MaxIterations {
			iterations = l.opts.MaxIterations
		}
		closing := system
		if hardLimitHit {
			closing += "\n\nThe tool-call budget for this query is exhausted. Answer now using only what you have already learned."
		} else {
			closing += "\n\nYou have reached the reasoning step limit for this query. Answer now using only what you have already learned."
			logger.Warn("reasoning iteration cap reached; forcing answer", "session_key", req.SessionKey, "max_iterations", l.opts.MaxIterations)
		}
		text, _, err := l.streamRound(ctx, &CompletionRequest{
			Model:    model,
			System:   renderSystemWithScratchpad(closing, sp),
			Messages: messages,
		}, emitter)
		if err != nil {
			return nil, err
		}
		finalAnswer = text
	}

	if ctx.Err() != nil {
		logger.Debug("query cancelled before answering", "session_key", req.SessionKey)
		return nil, &Error{Kind: KindCancelled, Cause: ctx.Err()}
	}

	emitter.AnswerStart(ctx)
	emitter.AnswerChunk(ctx, finalAnswer)

	if err := l.sessions.AppendMessage(ctx, req.SessionKey, models.Message{Role: models.RoleAssistant, Content: finalAnswer}); err != nil {
		return nil, wrapStoreError(ctx, "persist final answer", err)
	}
	if l.memory != nil {
		_ = l.memory.Record(ctx, req.SessionKey, req.Message, summarize(finalAnswer, 280))
	}

	logger.Debug("query completed", "session_key", req.SessionKey, "iterations", iterations, "tool_calls", len(toolSummaries))
	emitter.Done(ctx, finalAnswer, iterations, toolSummaries, "")
	return &QueryResult{Answer: finalAnswer, Iterations: iterations, ToolCalls: toolSummaries}, nil
}

// streamRound drains one completion call to its Done chunk, narrating
// interim text as thinking events and returning the accumulated answer text
// plus any tool calls the model requested.
func (l *Loop) streamRound(ctx context.Context, req *CompletionRequest, emitter *EventEmitter) (string, []models.ToolCallRecord, error) {
	chunks, err := l.provider.Complete(ctx, req)
	if err != nil {
		return "", nil, classifyLLMError(ctx, err)
	}

	var text strings.Builder
	var calls []models.ToolCallRecord
	for chunk := range chunks {
		if chunk.Error != nil {
			return "", nil, classifyLLMError(ctx, chunk.Error)
		}
		if chunk.Thinking != "" {
			emitter.Thinking(ctx, chunk.Thinking)
		}
		if chunk.Text != "" {
			text.WriteString(chunk.Text)
		}
		if chunk.ToolCall != nil {
			calls = append(calls, *chunk.ToolCall)
		}
		if chunk.Done {
			break
		}
	}
	if ctx.Err() != nil {
		return "", nil, &Error{Kind: KindCancelled, Cause: ctx.Err()}
	}
	return text.String(), calls, nil
}

// noteSoftLimits injects a scratchpad notice and emits a tool_limit event
// the first time a just-recorded call crosses its per-category or the
// overall soft limit. Soft limits nudge; they never block execution.
func (l *Loop) noteSoftLimits(ctx context.Context, sp *Scratchpad, calls []models.ToolCallRecord, emitter *EventEmitter) {
	categorySoft := l.opts.ToolCategorySoftLimit
	overallSoft := l.opts.ToolOverallSoftLimit

	seen := make(map[string]bool, len(calls))
	for _, call := range calls {
		if seen[call.Name] {
			continue
		}
		seen[call.Name] = true
		if categorySoft > 0 && sp.ToolCallCount(call.Name) == categorySoft {
			emitter.ToolLimit(ctx, categorySoft)
			sp.LimitNotice(fmt.Sprintf("%q has been called %d times this query; consider answering with what you have", call.Name, categorySoft))
		}
	}
	if overallSoft > 0 && sp.TotalToolCalls() == overallSoft {
		emitter.ToolLimit(ctx, overallSoft)
		sp.LimitNotice(fmt.Sprintf("%d tool calls made this query; consider answering with what you have", overallSoft))
	}
}

// toCompletionMessages adapts durable session history into the shape the
// provider interface expects.
func toCompletionMessages(history []models.Message) []CompletionMessage {
	out := make([]CompletionMessage, 0, len(history))
	for _, msg := range history {
		out = append(out, CompletionMessage{
			Role:       string(msg.Role),
			Content:    msg.Content,
			ToolCalls:  msg.ToolCalls,
			ToolCallID: msg.ToolCallID,
		})
	}
	return out
}

// renderSystemWithScratchpad appends the current query's ReAct trace to the
// base system prompt, so the model sees its own prior thoughts/actions as
// part of this same reasoning episode.
func renderSystemWithScratchpad(system string, sp *Scratchpad) string {
	rendered := sp.Render()
	if rendered == "" {
		return system
	}
	return system + "\n\nProgress so far this turn:\n" + rendered
}

// appendMemoryContext folds recalled prior turns into the system prompt.
func appendMemoryContext(system string, entries []memory.Entry) string {
	if len(entries) == 0 {
		return system
	}
	var b strings.Builder
	b.WriteString(system)
	b.WriteString("\n\nRelevant earlier exchanges in this session:\n")
	for _, e := range entries {
		fmt.Fprintf(&b, "- Q: %s\n  A: %s\n", e.Question, e.AnswerSummary)
	}
	return b.String()
}

// summarize truncates s to at most n runes for storage as a memory answer
// summary, breaking on a rune boundary.
func summarize(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

// wrapStoreError wraps a session-store failure as an *Error, attributing
// cancellation to the context rather than the store when both are in play
// (e.g. SessionLocker.LockWithContext returning ctx.Err() on an
// already-cancelled context).
func wrapStoreError(ctx context.Context, message string, err error) error {
	if ctx.Err() != nil {
		return &Error{Kind: KindCancelled, Cause: ctx.Err()}
	}
	return &Error{Kind: KindIOError, Message: message, Cause: err}
}

// classifyLLMError wraps a provider-level failure as an *Error, attributing
// cancellation to the context rather than the provider when both are in
// play.
func classifyLLMError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return &Error{Kind: KindCancelled, Cause: ctx.Err()}
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "rate limit") || strings.Contains(msg, "429") || strings.Contains(msg, "too many requests") {
		return &Error{Kind: KindLLMRateLimit, Cause: err}
	}
	return &Error{Kind: KindLLMError, Cause: err}
}

package agent

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/haasonsaas/nexus/internal/memory"
	"github.com/haasonsaas/nexus/pkg/models"
)

// loopTestProvider serves a scripted sequence of completion rounds, one per
// call to Complete, in order.
type loopTestProvider struct {
	mu        sync.Mutex
	rounds    [][]CompletionChunk
	call      int
	completeF func(ctx context.Context, req *CompletionRequest) (<-chan *CompletionChunk, error)
	captured  []*CompletionRequest
}

func (p *loopTestProvider) Complete(ctx context.Context, req *CompletionRequest) (<-chan *CompletionChunk, error) {
	p.mu.Lock()
	p.captured = append(p.captured, req)
	p.mu.Unlock()

	if p.completeF != nil {
		return p.completeF(ctx, req)
	}

	p.mu.Lock()
	idx := p.call
	p.call++
	p.mu.Unlock()

	ch := make(chan *CompletionChunk, 8)
	go func() {
		defer close(ch)
		if idx >= len(p.rounds) {
			ch <- &CompletionChunk{Done: true}
			return
		}
		for i := range p.rounds[idx] {
			chunk := p.rounds[idx][i]
			ch <- &chunk
		}
	}()
	return ch, nil
}

func (p *loopTestProvider) Name() string        { return "loop-test" }
func (p *loopTestProvider) Models() []Model     { return nil }
func (p *loopTestProvider) SupportsTools() bool { return true }

// loopMemStore is an in-memory SessionStore for loop tests.
type loopMemStore struct {
	mu       sync.Mutex
	messages map[string][]models.Message
}

func newLoopMemStore() *loopMemStore {
	return &loopMemStore{messages: make(map[string][]models.Message)}
}

func (s *loopMemStore) GetOrCreate(ctx context.Context, key string) (*models.SessionMeta, error) {
	return &models.SessionMeta{Key: key}, nil
}

func (s *loopMemStore) AppendMessage(ctx context.Context, key string, msg models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[key] = append(s.messages[key], msg)
	return nil
}

func (s *loopMemStore) History(ctx context.Context, key string, limit int) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Message, len(s.messages[key]))
	copy(out, s.messages[key])
	return out, nil
}

func newTestLoop(provider LLMProvider, registry *ToolRegistry, store SessionStore, opts RuntimeOptions) *Loop {
	if registry == nil {
		registry = NewToolRegistry()
	}
	return NewLoop(provider, registry, store, nil, nil, "test-model", "you are a test assistant", opts)
}

func TestLoop_NoToolCalls(t *testing.T) {
	provider := &loopTestProvider{rounds: [][]CompletionChunk{
		{{Text: "hello there"}, {Done: true}},
	}}
	store := newLoopMemStore()
	loop := newTestLoop(provider, nil, store, RuntimeOptions{})

	result, err := loop.Run(context.Background(), QueryRequest{SessionKey: "s1", Message: "hi"}, nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.Answer != "hello there" {
		t.Errorf("Answer = %q, want %q", result.Answer, "hello there")
	}
	if result.Iterations != 1 {
		t.Errorf("Iterations = %d, want 1", result.Iterations)
	}
	if len(result.ToolCalls) != 0 {
		t.Errorf("ToolCalls = %v, want empty", result.ToolCalls)
	}

	history, _ := store.History(context.Background(), "s1", 0)
	if len(history) != 2 {
		t.Fatalf("persisted %d messages, want 2", len(history))
	}
	if history[0].Role != models.RoleUser || history[1].Role != models.RoleAssistant {
		t.Errorf("roles = %s, %s", history[0].Role, history[1].Role)
	}
}

func TestLoop_SingleToolCall(t *testing.T) {
	provider := &loopTestProvider{rounds: [][]CompletionChunk{
		{
			{ToolCall: &models.ToolCallRecord{ID: "call-1", Name: "echo", Arguments: json.RawMessage(`{"text":"hi"}`)}},
			{Done: true},
		},
		{{Text: "the tool said hi"}, {Done: true}},
	}}

	registry := NewToolRegistry()
	mustRegister(t, registry, &mockTool{
		name: "echo",
		execFunc: func(ctx context.Context, params json.RawMessage) (*ToolResult, error) {
			return &ToolResult{Content: "hi"}, nil
		},
	}, 0)

	store := newLoopMemStore()
	loop := newTestLoop(provider, registry, store, RuntimeOptions{})

	result, err := loop.Run(context.Background(), QueryRequest{SessionKey: "s1", Message: "echo hi"}, nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.Answer != "the tool said hi" {
		t.Errorf("Answer = %q", result.Answer)
	}
	if result.Iterations != 2 {
		t.Errorf("Iterations = %d, want 2", result.Iterations)
	}
	if len(result.ToolCalls) != 1 || result.ToolCalls[0].Tool != "echo" {
		t.Errorf("ToolCalls = %+v", result.ToolCalls)
	}

	history, _ := store.History(context.Background(), "s1", 0)
	wantRoles := []models.Role{models.RoleUser, models.RoleAssistant, models.RoleTool, models.RoleAssistant}
	if len(history) != len(wantRoles) {
		t.Fatalf("persisted %d messages, want %d", len(history), len(wantRoles))
	}
	for i, want := range wantRoles {
		if history[i].Role != want {
			t.Errorf("message %d role = %s, want %s", i, history[i].Role, want)
		}
	}
	if len(history[1].ToolCalls) != 1 {
		t.Errorf("assistant message tool calls = %d, want 1", len(history[1].ToolCalls))
	}
	if history[2].ToolCallID != "call-1" || history[2].Content != "hi" {
		t.Errorf("tool message = %+v", history[2])
	}
}

func TestLoop_ToolErrorStillProducesAnswer(t *testing.T) {
	provider := &loopTestProvider{rounds: [][]CompletionChunk{
		{
			{ToolCall: &models.ToolCallRecord{ID: "call-1", Name: "broken", Arguments: json.RawMessage(`{}`)}},
			{Done: true},
		},
		{{Text: "the tool failed"}, {Done: true}},
	}}

	registry := NewToolRegistry()
	mustRegister(t, registry, &mockTool{
		name: "broken",
		execFunc: func(ctx context.Context, params json.RawMessage) (*ToolResult, error) {
			return &ToolResult{Content: "boom", IsError: true}, nil
		},
	}, 0)

	store := newLoopMemStore()
	loop := newTestLoop(provider, registry, store, RuntimeOptions{})

	result, err := loop.Run(context.Background(), QueryRequest{SessionKey: "s1", Message: "break it"}, nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.Answer != "the tool failed" {
		t.Errorf("Answer = %q", result.Answer)
	}

	history, _ := store.History(context.Background(), "s1", 0)
	if history[2].Content != "boom" {
		t.Errorf("tool message content = %q, want %q", history[2].Content, "boom")
	}
}

func TestLoop_MaxIterationsForcesAnswer(t *testing.T) {
	registry := NewToolRegistry()
	mustRegister(t, registry, &mockTool{
		name: "noop",
		execFunc: func(ctx context.Context, params json.RawMessage) (*ToolResult, error) {
			return &ToolResult{Content: "ok"}, nil
		},
	}, 0)

	provider := &loopTestProvider{completeF: func(ctx context.Context, req *CompletionRequest) (<-chan *CompletionChunk, error) {
		ch := make(chan *CompletionChunk, 4)
		if len(req.Tools) == 0 {
			ch <- &CompletionChunk{Text: "giving up"}
			ch <- &CompletionChunk{Done: true}
		} else {
			ch <- &CompletionChunk{ToolCall: &models.ToolCallRecord{ID: "call-x", Name: "noop", Arguments: json.RawMessage(`{}`)}}
			ch <- &CompletionChunk{Done: true}
		}
		close(ch)
		return ch, nil
	}}

	store := newLoopMemStore()
	loop := newTestLoop(provider, registry, store, RuntimeOptions{MaxIterations: 2})

	result, err := loop.Run(context.Background(), QueryRequest{SessionKey: "s1", Message: "loop forever"}, nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.Answer != "giving up" {
		t.Errorf("Answer = %q, want forced answer", result.Answer)
	}
	if result.Iterations != 2 {
		t.Errorf("Iterations = %d, want 2", result.Iterations)
	}
}

func TestLoop_HardToolLimitForcesAnswer(t *testing.T) {
	registry := NewToolRegistry()
	mustRegister(t, registry, &mockTool{
		name: "noop",
		execFunc: func(ctx context.Context, params json.RawMessage) (*ToolResult, error) {
			return &ToolResult{Content: "ok"}, nil
		},
	}, 0)

	provider := &loopTestProvider{completeF: func(ctx context.Context, req *CompletionRequest) (<-chan *CompletionChunk, error) {
		ch := make(chan *CompletionChunk, 4)
		if len(req.Tools) == 0 {
			ch <- &CompletionChunk{Text: "final"}
			ch <- &CompletionChunk{Done: true}
		} else {
			ch <- &CompletionChunk{ToolCall: &models.ToolCallRecord{ID: "call-x", Name: "noop", Arguments: json.RawMessage(`{}`)}}
			ch <- &CompletionChunk{Done: true}
		}
		close(ch)
		return ch, nil
	}}

	store := newLoopMemStore()
	opts := RuntimeOptions{MaxIterations: 10, MaxToolCalls: 1}
	loop := newTestLoop(provider, registry, store, opts)

	result, err := loop.Run(context.Background(), QueryRequest{SessionKey: "s1", Message: "go"}, nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.Answer != "final" {
		t.Errorf("Answer = %q, want %q", result.Answer, "final")
	}
}

func TestLoop_EmitsEvents(t *testing.T) {
	provider := &loopTestProvider{rounds: [][]CompletionChunk{
		{
			{Thinking: "thinking about it"},
			{ToolCall: &models.ToolCallRecord{ID: "call-1", Name: "echo", Arguments: json.RawMessage(`{}`)}},
			{Done: true},
		},
		{{Text: "done"}, {Done: true}},
	}}

	registry := NewToolRegistry()
	mustRegister(t, registry, &mockTool{
		name: "echo",
		execFunc: func(ctx context.Context, params json.RawMessage) (*ToolResult, error) {
			return &ToolResult{Content: "ok"}, nil
		},
	}, 0)

	ch := make(chan Event, 32)
	emitter := NewEventEmitter(NewChanSink(ch))
	store := newLoopMemStore()
	loop := newTestLoop(provider, registry, store, RuntimeOptions{})

	_, err := loop.Run(context.Background(), QueryRequest{SessionKey: "s1", Message: "echo"}, emitter)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	close(ch)

	var types []EventType
	for e := range ch {
		types = append(types, e.Type)
	}

	wantPresent := []EventType{EventThinking, EventToolStart, EventToolEnd, EventAnswerStart, EventAnswerChunk, EventDone}
	for _, want := range wantPresent {
		found := false
		for _, got := range types {
			if got == want {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("missing event type %s in %v", want, types)
		}
	}
	if types[len(types)-1] != EventDone {
		t.Errorf("last event = %s, want done", types[len(types)-1])
	}
}

func TestLoop_ProviderErrorPropagates(t *testing.T) {
	wantErr := errors.New("provider unavailable")
	provider := &loopTestProvider{completeF: func(ctx context.Context, req *CompletionRequest) (<-chan *CompletionChunk, error) {
		return nil, wantErr
	}}

	store := newLoopMemStore()
	loop := newTestLoop(provider, nil, store, RuntimeOptions{})

	_, err := loop.Run(context.Background(), QueryRequest{SessionKey: "s1", Message: "hi"}, nil)
	if err == nil {
		t.Fatal("expected an error")
	}
	if KindOf(err) != KindLLMError {
		t.Errorf("Kind = %s, want %s", KindOf(err), KindLLMError)
	}
}

func TestLoop_RateLimitClassification(t *testing.T) {
	provider := &loopTestProvider{completeF: func(ctx context.Context, req *CompletionRequest) (<-chan *CompletionChunk, error) {
		return nil, errors.New("429 rate limit exceeded")
	}}

	store := newLoopMemStore()
	loop := newTestLoop(provider, nil, store, RuntimeOptions{})

	_, err := loop.Run(context.Background(), QueryRequest{SessionKey: "s1", Message: "hi"}, nil)
	if KindOf(err) != KindLLMRateLimit {
		t.Errorf("Kind = %s, want %s", KindOf(err), KindLLMRateLimit)
	}
}

func TestLoop_CancellationSkipsDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{})

	provider := &loopTestProvider{completeF: func(ctx context.Context, req *CompletionRequest) (<-chan *CompletionChunk, error) {
		ch := make(chan *CompletionChunk)
		go func() {
			close(started)
			<-ctx.Done()
			close(ch)
		}()
		return ch, nil
	}}

	store := newLoopMemStore()
	loop := newTestLoop(provider, nil, store, RuntimeOptions{})

	done := make(chan struct{})
	var err error
	go func() {
		_, err = loop.Run(ctx, QueryRequest{SessionKey: "s1", Message: "hi"}, nil)
		close(done)
	}()

	<-started
	cancel()
	<-done

	if KindOf(err) != KindCancelled {
		t.Errorf("Kind = %s, want %s", KindOf(err), KindCancelled)
	}
}

func TestLoop_RejectsEmptyMessage(t *testing.T) {
	store := newLoopMemStore()
	loop := newTestLoop(&loopTestProvider{}, nil, store, RuntimeOptions{})

	_, err := loop.Run(context.Background(), QueryRequest{SessionKey: "s1", Message: "   "}, nil)
	if KindOf(err) != KindBadArguments {
		t.Errorf("Kind = %s, want %s", KindOf(err), KindBadArguments)
	}
}

func TestLoop_UsesMemoryRecall(t *testing.T) {
	provider := &loopTestProvider{rounds: [][]CompletionChunk{
		{{Text: "answer"}, {Done: true}},
	}}

	idx, err := memory.NewFileIndex(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileIndex: %v", err)
	}
	if err := idx.Record(context.Background(), "s1", "what is the capital of France", "Paris"); err != nil {
		t.Fatalf("Record: %v", err)
	}

	store := newLoopMemStore()
	loop := NewLoop(provider, NewToolRegistry(), store, idx, nil, "test-model", "base system", RuntimeOptions{})

	_, err = loop.Run(context.Background(), QueryRequest{SessionKey: "s1", Message: "remind me about France capital"}, nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(provider.captured) == 0 {
		t.Fatal("expected at least one captured request")
	}
	if !contains(provider.captured[0].System, "Paris") {
		t.Errorf("system prompt missing recalled memory: %q", provider.captured[0].System)
	}
}

func contains(haystack, needle string) bool {
	return len(haystack) >= len(needle) && (needle == "" || indexOf(haystack, needle) >= 0)
}

func indexOf(haystack, needle string) int {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return i
		}
	}
	return -1
}

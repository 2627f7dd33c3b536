package agent

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestToolRegistry_Invoke_NameTooLong(t *testing.T) {
	reg := NewToolRegistry()
	name := strings.Repeat("a", MaxToolNameLength+1)

	_, err := reg.Invoke(context.Background(), name, json.RawMessage(`{}`))
	if err == nil {
		t.Fatal("expected an error for an oversized tool name")
	}
	if KindOf(err) != KindBadArguments {
		t.Errorf("Kind = %s, want %s", KindOf(err), KindBadArguments)
	}
}

func TestToolRegistry_Invoke_ParamsTooLarge(t *testing.T) {
	reg := NewToolRegistry()
	mustRegister(t, reg, &mockTool{name: "big_params"}, 0)

	oversized := json.RawMessage(strings.Repeat("a", MaxToolParamsSize+1))

	_, err := reg.Invoke(context.Background(), "big_params", oversized)
	if err == nil {
		t.Fatal("expected an error for oversized params")
	}
	if KindOf(err) != KindBadArguments {
		t.Errorf("Kind = %s, want %s", KindOf(err), KindBadArguments)
	}
}

func TestToolRegistry_Invoke_UnknownTool(t *testing.T) {
	reg := NewToolRegistry()
	_, err := reg.Invoke(context.Background(), "does_not_exist", json.RawMessage(`{}`))
	if err == nil {
		t.Fatal("expected an error for an unregistered tool")
	}
	if KindOf(err) != KindNotFound {
		t.Errorf("Kind = %s, want %s", KindOf(err), KindNotFound)
	}
}

func TestToolRegistry_Invoke_SchemaValidationFailsWithoutInvokingHandler(t *testing.T) {
	reg := NewToolRegistry()
	called := false
	mustRegister(t, reg, &mockTool{
		name:   "typed_tool",
		schema: json.RawMessage(`{"type":"object","properties":{"count":{"type":"integer"}},"required":["count"]}`),
		execFunc: func(ctx context.Context, params json.RawMessage) (*ToolResult, error) {
			called = true
			return &ToolResult{Content: "ok"}, nil
		},
	}, 0)

	_, err := reg.Invoke(context.Background(), "typed_tool", json.RawMessage(`{"count":"not-a-number"}`))
	if err == nil {
		t.Fatal("expected a schema validation error")
	}
	if KindOf(err) != KindBadArguments {
		t.Errorf("Kind = %s, want %s", KindOf(err), KindBadArguments)
	}
	if called {
		t.Error("handler must not run when schema validation fails")
	}
}

func TestToolRegistry_Invoke_MalformedJSON(t *testing.T) {
	reg := NewToolRegistry()
	mustRegister(t, reg, &mockTool{name: "json_tool"}, 0)

	_, err := reg.Invoke(context.Background(), "json_tool", json.RawMessage(`{not valid json`))
	if err == nil {
		t.Fatal("expected an error for malformed JSON arguments")
	}
	if KindOf(err) != KindBadArguments {
		t.Errorf("Kind = %s, want %s", KindOf(err), KindBadArguments)
	}
}

// TestToolRegistry_Invoke_ParentCancellationWinsOverTimeout confirms a
// client disconnect (parent ctx cancelled) is reported as Cancelled even
// though the per-call timeout context is also expired by the time the tool
// returns, and even when the configured timeout is generous.
func TestToolRegistry_Invoke_ParentCancellationWinsOverTimeout(t *testing.T) {
	reg := NewToolRegistry()
	mustRegister(t, reg, &mockTool{
		name: "cancellable_tool",
		execFunc: func(ctx context.Context, params json.RawMessage) (*ToolResult, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	var err error
	go func() {
		_, err = reg.Invoke(ctx, "cancellable_tool", json.RawMessage(`{}`))
		close(done)
	}()

	cancel()
	<-done

	if err == nil {
		t.Fatal("expected an error when the parent context is cancelled")
	}
	if KindOf(err) != KindCancelled {
		t.Errorf("Kind = %s, want %s", KindOf(err), KindCancelled)
	}
}

// TestToolRegistry_Invoke_PerToolTimeout confirms a tool that outlives its
// own timeout, with a live parent context, is reported as ToolTimeout.
func TestToolRegistry_Invoke_PerToolTimeout(t *testing.T) {
	reg := NewToolRegistry()
	mustRegister(t, reg, &mockTool{
		name: "slow_tool",
		execFunc: func(ctx context.Context, params json.RawMessage) (*ToolResult, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}, 20*time.Millisecond)

	_, err := reg.Invoke(context.Background(), "slow_tool", json.RawMessage(`{}`))
	if err == nil {
		t.Fatal("expected a timeout error")
	}
	if KindOf(err) != KindToolTimeout {
		t.Errorf("Kind = %s, want %s", KindOf(err), KindToolTimeout)
	}
}

func TestToolRegistry_Invoke_EmptyParamsDefaultToEmptyObject(t *testing.T) {
	reg := NewToolRegistry()
	mustRegister(t, reg, &mockTool{
		name:   "required_field_tool",
		schema: json.RawMessage(`{"type":"object"}`),
	}, 0)

	if _, err := reg.Invoke(context.Background(), "required_field_tool", nil); err != nil {
		t.Errorf("unexpected error for empty params against an unconstrained schema: %v", err)
	}
}

package models

import (
	"encoding/json"
	"testing"
	"time"
)

func TestMessage_JSONRoundTrip(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	msg := Message{
		Role:    RoleAssistant,
		Content: "",
		ToolCalls: []ToolCallRecord{
			{ID: "call_1", Name: "web_search", Arguments: json.RawMessage(`{"q":"AAPL"}`), Result: "AAPL at 190", DurationMs: 120},
		},
		Timestamp: now,
	}

	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}

	var decoded Message
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}

	if decoded.Role != RoleAssistant {
		t.Errorf("Role = %q, want %q", decoded.Role, RoleAssistant)
	}
	if len(decoded.ToolCalls) != 1 || decoded.ToolCalls[0].Name != "web_search" {
		t.Fatalf("ToolCalls = %+v", decoded.ToolCalls)
	}
	if !decoded.Timestamp.Equal(now) {
		t.Errorf("Timestamp = %v, want %v", decoded.Timestamp, now)
	}
}

func TestMessage_ToolMessageShape(t *testing.T) {
	msg := Message{
		Role:       RoleTool,
		Content:    "AAPL at 190",
		ToolCallID: "call_1",
	}
	if msg.ToolCallID == "" {
		t.Fatal("tool message must carry ToolCallID")
	}
	if len(msg.ToolCalls) != 0 {
		t.Fatal("tool message must not carry ToolCalls")
	}
}

func TestSessionMeta_JSONRoundTrip(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	meta := SessionMeta{Key: "abc123", DisplayName: "Say hello", CreatedAt: now, UpdatedAt: now}

	data, err := json.Marshal(meta)
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}
	var decoded SessionMeta
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}
	if decoded != meta {
		t.Errorf("decoded = %+v, want %+v", decoded, meta)
	}
}

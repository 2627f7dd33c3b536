// Package models holds the data types shared across the agent runtime:
// conversation messages, tool-call records, and session metadata.
package models

import (
	"encoding/json"
	"time"
)

// Role indicates the message author type.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

// Message is one entry in a session's append-only log. Assistant messages
// carry either final text or a non-empty ToolCalls list, never both for the
// same step; history may interleave the two as separate messages. Tool
// messages carry ToolCallID and the rendered result in Content.
type Message struct {
	Role       Role              `json:"role"`
	Content    string            `json:"content"`
	ToolCalls  []ToolCallRecord  `json:"tool_calls,omitempty"`
	ToolCallID string            `json:"tool_call_id,omitempty"`
	Timestamp  time.Time         `json:"timestamp"`
}

// ToolCallRecord is the durable trace of one tool invocation, as it is
// persisted inline on the assistant message that requested it.
type ToolCallRecord struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Arguments  json.RawMessage `json:"arguments"`
	Result     string          `json:"result,omitempty"`
	Error      string          `json:"error,omitempty"`
	DurationMs int64           `json:"duration_ms,omitempty"`
}

// ToolResult is the outcome of one tool handler invocation, before it is
// rendered into a ToolCallRecord or a prompt fragment.
type ToolResult struct {
	Content string `json:"content"`
	IsError bool   `json:"is_error,omitempty"`
}

// SessionMeta is the small metadata record kept alongside a session's
// message log: {displayName, createdAt, updatedAt}.
type SessionMeta struct {
	Key         string    `json:"key"`
	DisplayName string    `json:"display_name"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

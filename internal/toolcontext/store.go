// Package toolcontext persists full tool results to disk and hands back a
// small pointer the prompt can carry instead of the full payload. A tool
// that returns 200KB of log output would otherwise blow the context budget
// every subsequent iteration; this store lets the loop inline a short head
// and only pay for the rest if the model asks for it again.
package toolcontext

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// DefaultInlineHead is how many characters of a tool result are inlined
// directly into the transcript; beyond that, the caller gets a pointer.
const DefaultInlineHead = 2048

// pointerPrefix marks a string as a tool-context pointer rather than literal
// tool output, so the loop can tell them apart when rendering history.
const pointerPrefix = "tc_"

// Entry is the full record persisted for one tool invocation.
type Entry struct {
	PointerID string `json:"pointer_id"`
	ToolName  string `json:"tool_name"`
	SessionKey string `json:"session_key"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
	FullResult string `json:"full_result"`
}

// Store is the interface for the tool-context pointer store.
type Store interface {
	// Put persists fullResult for toolName and returns a pointer ID that
	// Render can later resolve back to it.
	Put(ctx context.Context, sessionKey, toolName string, arguments json.RawMessage, fullResult string) (string, error)

	// Render returns the text to inline into the transcript for a tool
	// result: the full text verbatim if it fits within maxInlineChars, or
	// a short pointer reference plus the truncated head otherwise.
	Render(ctx context.Context, sessionKey, toolName string, arguments json.RawMessage, fullResult string, maxInlineChars int) (string, error)

	// Get resolves a previously issued pointer ID back to its full result.
	Get(ctx context.Context, pointerID string) (*Entry, error)

	// DeleteSession removes every pointer entry recorded for sessionKey,
	// for cascade delete when a session is removed.
	DeleteSession(ctx context.Context, sessionKey string) error
}

// FileStore is a directory of "<pointerId>.json" files, one per Put call.
type FileStore struct {
	root string
}

// NewFileStore creates a FileStore rooted at dir, creating dir if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create tool context store root: %w", err)
	}
	return &FileStore{root: dir}, nil
}

// NewPointerID returns a fresh "tc_"-prefixed 128-bit hex pointer ID.
func NewPointerID() string {
	id := uuid.New()
	return pointerPrefix + strings.ReplaceAll(id.String(), "-", "")
}

// IsPointer reports whether s looks like a pointer ID this store issued,
// rather than literal tool output that happens to be short.
func IsPointer(s string) bool {
	return strings.HasPrefix(s, pointerPrefix)
}

func (s *FileStore) path(pointerID string) string {
	return filepath.Join(s.root, pointerID+".json")
}

// Put implements Store.
func (s *FileStore) Put(ctx context.Context, sessionKey, toolName string, arguments json.RawMessage, fullResult string) (string, error) {
	entry := Entry{
		PointerID:  NewPointerID(),
		ToolName:   toolName,
		SessionKey: sessionKey,
		Arguments:  arguments,
		FullResult: fullResult,
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return "", fmt.Errorf("encode tool context entry: %w", err)
	}
	if err := os.WriteFile(s.path(entry.PointerID), data, 0o644); err != nil {
		return "", fmt.Errorf("write tool context entry: %w", err)
	}
	return entry.PointerID, nil
}

// Render implements Store.
func (s *FileStore) Render(ctx context.Context, sessionKey, toolName string, arguments json.RawMessage, fullResult string, maxInlineChars int) (string, error) {
	if maxInlineChars <= 0 {
		maxInlineChars = DefaultInlineHead
	}
	if len(fullResult) <= maxInlineChars {
		return fullResult, nil
	}

	pointerID, err := s.Put(ctx, sessionKey, toolName, arguments, fullResult)
	if err != nil {
		return "", err
	}
	head := fullResult[:maxInlineChars]
	return fmt.Sprintf("%s\n... [truncated %d characters; full result at pointer %s]", head, len(fullResult)-maxInlineChars, pointerID), nil
}

// Get implements Store.
func (s *FileStore) Get(ctx context.Context, pointerID string) (*Entry, error) {
	data, err := os.ReadFile(s.path(pointerID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("tool context pointer %q: %w", pointerID, errPointerNotFound)
		}
		return nil, err
	}
	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("decode tool context entry %q: %w", pointerID, err)
	}
	return &entry, nil
}

// DeleteSession implements Store.
func (s *FileStore) DeleteSession(ctx context.Context, sessionKey string) error {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.root, e.Name()))
		if err != nil {
			continue
		}
		var entry Entry
		if err := json.Unmarshal(data, &entry); err != nil {
			continue
		}
		if entry.SessionKey == sessionKey {
			_ = os.Remove(filepath.Join(s.root, e.Name()))
		}
	}
	return nil
}

var errPointerNotFound = fmt.Errorf("pointer not found")

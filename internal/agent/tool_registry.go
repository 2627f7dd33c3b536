package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// MaxToolNameLength and MaxToolParamsSize bound a single tool call so a
// malformed or adversarial model response can't exhaust memory.
const (
	MaxToolNameLength = 256
	MaxToolParamsSize = 10 << 20 // 10MB
)

// DefaultToolTimeout is applied to a tool call when the registry was not
// given a per-tool override.
const DefaultToolTimeout = 60 * time.Second

// registeredTool pairs a Tool with its compiled JSON Schema and timeout.
type registeredTool struct {
	tool    Tool
	schema  *jsonschema.Schema
	timeout time.Duration
}

// ToolRegistry is the process-lifetime catalog of tools available to the
// loop: List/Get/Invoke per the tool registry's contract. Arguments are
// validated against each tool's JSON Schema before the handler ever runs,
// so a malformed call comes back as a BadArguments error without the
// handler's side effects ever firing.
type ToolRegistry struct {
	mu    sync.RWMutex
	tools map[string]*registeredTool
}

// NewToolRegistry creates an empty registry.
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{tools: make(map[string]*registeredTool)}
}

// Register adds tool to the registry, compiling its JSON Schema up front so
// a bad schema fails at startup rather than on the first call. timeout of
// zero falls back to DefaultToolTimeout.
func (r *ToolRegistry) Register(tool Tool, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = DefaultToolTimeout
	}

	schema, err := jsonschema.CompileString(tool.Name()+".schema.json", string(tool.Schema()))
	if err != nil {
		return fmt.Errorf("compile schema for tool %q: %w", tool.Name(), err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[tool.Name()] = &registeredTool{tool: tool, schema: schema, timeout: timeout}
	return nil
}

// Unregister removes a tool from the registry by name.
func (r *ToolRegistry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tools, name)
}

// Get returns a tool by name.
func (r *ToolRegistry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rt, ok := r.tools[name]
	if !ok {
		return nil, false
	}
	return rt.tool, true
}

// List returns every registered tool, for exposing via the tool schema and
// the /api/tools surface.
func (r *ToolRegistry) List() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tools := make([]Tool, 0, len(r.tools))
	for _, rt := range r.tools {
		tools = append(tools, rt.tool)
	}
	return tools
}

// Invoke validates params against the tool's schema, then runs it with its
// configured timeout. A schema violation or unknown tool name returns an
// *Error without ever calling the handler.
func (r *ToolRegistry) Invoke(ctx context.Context, name string, params json.RawMessage) (*ToolResult, error) {
	if len(name) > MaxToolNameLength {
		return nil, &Error{Kind: KindBadArguments, Message: "tool name exceeds maximum length"}
	}
	if len(params) > MaxToolParamsSize {
		return nil, &Error{Kind: KindBadArguments, Message: "tool parameters exceed maximum size"}
	}

	r.mu.RLock()
	rt, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		return nil, &Error{Kind: KindNotFound, Message: "tool not found: " + name}
	}

	var asAny any
	if len(params) == 0 {
		asAny = map[string]any{}
	} else if err := json.Unmarshal(params, &asAny); err != nil {
		return nil, &Error{Kind: KindBadArguments, Message: "tool arguments are not valid JSON", Cause: err}
	}
	if err := rt.schema.Validate(asAny); err != nil {
		return nil, &Error{Kind: KindBadArguments, Message: "tool arguments failed schema validation", Cause: err}
	}

	callCtx, cancel := context.WithTimeout(ctx, rt.timeout)
	defer cancel()

	result, err := rt.tool.Execute(callCtx, params)
	if err != nil {
		if ctx.Err() != nil {
			return nil, &Error{Kind: KindCancelled, Message: fmt.Sprintf("tool %q call cancelled", name), Cause: ctx.Err()}
		}
		if callCtx.Err() != nil {
			return nil, &Error{Kind: KindToolTimeout, Message: fmt.Sprintf("tool %q timed out after %v", name, rt.timeout), Cause: err}
		}
		return nil, &Error{Kind: KindToolFailed, Message: err.Error(), Cause: err}
	}
	return result, nil
}

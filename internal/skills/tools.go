package skills

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/haasonsaas/nexus/internal/agent"
)

// skillArgsSchema is the JSON Schema for the single "skill" tool's arguments.
const skillArgsSchema = `{
  "type": "object",
  "properties": {
    "name": {"type": "string", "description": "Name of the skill to load instructions from."}
  },
  "required": ["name"],
  "additionalProperties": false
}`

// skillArgs is the decoded form of the "skill" tool's arguments.
type skillArgs struct {
	Name string `json:"name"`
}

// SkillTool exposes the skill registry as a single callable tool. Invoking
// it with a skill name returns that skill's markdown body, which the loop
// feeds back into the model as additional instructions for the rest of the
// query.
type SkillTool struct {
	registry *Registry
}

// NewSkillTool wraps a Registry as an agent.Tool.
func NewSkillTool(registry *Registry) *SkillTool {
	return &SkillTool{registry: registry}
}

func (t *SkillTool) Name() string { return "skill" }

func (t *SkillTool) Description() string {
	return "Load a named skill's instructions. Call this before attempting a task a skill " +
		"covers; the skill body is injected as additional guidance for the rest of this query. " +
		"Use `skill` with `list` semantics via /api/skills to discover names first."
}

func (t *SkillTool) Schema() json.RawMessage {
	return json.RawMessage(skillArgsSchema)
}

func (t *SkillTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	var args skillArgs
	if err := json.Unmarshal(params, &args); err != nil {
		return &agent.ToolResult{Content: fmt.Sprintf("invalid arguments: %v", err), IsError: true}, nil
	}
	entry, ok := t.registry.Get(args.Name)
	if !ok {
		return &agent.ToolResult{Content: fmt.Sprintf("unknown skill %q", args.Name), IsError: true}, nil
	}
	return &agent.ToolResult{Content: entry.Content}, nil
}

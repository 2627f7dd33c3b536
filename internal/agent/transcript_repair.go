package agent

import "github.com/haasonsaas/nexus/pkg/models"

// repairTranscript drops tool messages that don't pair with a pending tool
// call from the preceding assistant turn (duplicates and orphans alike) and
// inserts a synthetic error tool message for any tool call that never got a
// result. Anthropic- and OpenAI-style chat APIs both reject a transcript
// where an assistant's tool call isn't immediately followed by a matching
// tool result, so this runs once on history load before it's handed to the
// provider.
func repairTranscript(history []models.Message) []models.Message {
	if len(history) == 0 {
		return history
	}

	repaired := make([]models.Message, 0, len(history))
	pending := make(map[string]bool)
	pendingOrder := make([]string, 0)

	flushMissing := func() {
		for _, id := range pendingOrder {
			if pending[id] {
				repaired = append(repaired, missingToolResult(id))
			}
		}
		pending = make(map[string]bool)
		pendingOrder = pendingOrder[:0]
	}

	for _, msg := range history {
		switch msg.Role {
		case models.RoleAssistant:
			flushMissing()
			repaired = append(repaired, msg)
			for _, call := range msg.ToolCalls {
				if call.ID == "" {
					continue
				}
				pending[call.ID] = true
				pendingOrder = append(pendingOrder, call.ID)
			}
		case models.RoleTool:
			if msg.ToolCallID == "" || !pending[msg.ToolCallID] {
				continue // orphan or duplicate
			}
			pending[msg.ToolCallID] = false
			repaired = append(repaired, msg)
		default:
			flushMissing()
			repaired = append(repaired, msg)
		}
	}
	flushMissing()

	return repaired
}

func missingToolResult(toolCallID string) models.Message {
	return models.Message{
		Role:       models.RoleTool,
		Content:    "missing tool result; inserted synthetic error result during transcript repair",
		ToolCallID: toolCallID,
	}
}

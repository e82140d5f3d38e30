package dispatch

import (
	"github.com/deepfish/engine/internal/gateway"
	"github.com/deepfish/engine/internal/persona"
)

// allDefs is every tool the engine can offer, keyed by name.
var allDefs = map[string]gateway.ToolDef{
	ToolDelegate: {
		Name:        ToolDelegate,
		Description: "Delegate a task to another persona. The target works the task and you receive the result as an artifact token.",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"target_persona_id": map[string]interface{}{
					"type":        "string",
					"description": "ID of the persona to delegate to",
				},
				"task_description": map[string]interface{}{
					"type":        "string",
					"description": "What the target persona should do",
				},
				"context_summary": map[string]interface{}{
					"type":        "string",
					"description": "Conversation context the target needs to work the task",
				},
			},
			"required": []string{"target_persona_id", "task_description"},
		},
	},
	ToolStoreMemory: {
		Name:        ToolStoreMemory,
		Description: "Store a fact in your long-term memory bank.",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"content": map[string]interface{}{
					"type":        "string",
					"description": "The fact to remember",
				},
				"category": map[string]interface{}{
					"type": "string",
					"enum": []string{"actionable", "memory", "reference", "personality"},
				},
				"trigger_context": map[string]interface{}{
					"type":        "string",
					"description": "When this memory should resurface",
				},
			},
			"required": []string{"content"},
		},
	},
	ToolSendMemo: {
		Name:        ToolSendMemo,
		Description: "File an executive memo to the operator's inbox. Reuse the same subject to continue a thread.",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"subject": map[string]interface{}{"type": "string"},
				"body":    map[string]interface{}{"type": "string"},
			},
			"required": []string{"subject", "body"},
		},
	},
	ToolUpdateOverlay: {
		Name:        ToolUpdateOverlay,
		Description: "Replace another persona's standing instructions. Their base identity is untouched.",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"target_persona_id": map[string]interface{}{"type": "string"},
				"new_instructions":  map[string]interface{}{"type": "string"},
				"update_reason":     map[string]interface{}{"type": "string"},
			},
			"required": []string{"target_persona_id", "new_instructions"},
		},
	},
	ToolRaffle: {
		Name:        ToolRaffle,
		Description: "Interact with the raffle jar: claim the daily ticket or spin for a prize.",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"action": map[string]interface{}{
					"type": "string",
					"enum": []string{"add_ticket", "spin_gacha"},
				},
			},
			"required": []string{"action"},
		},
	},
}

// DefsFor returns the tool definitions offered to a persona's model.
// Delegated turns additionally drop the delegate tool, so delegation
// never nests past one level.
func DefsFor(p persona.Persona, delegated bool) []gateway.ToolDef {
	var defs []gateway.ToolDef
	for _, name := range p.PermittedTools {
		if delegated && name == ToolDelegate {
			continue
		}
		if def, ok := allDefs[name]; ok {
			defs = append(defs, def)
		}
	}
	return defs
}

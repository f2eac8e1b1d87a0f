package agent

import (
	"context"
	"encoding/json"

	"marquee/internal/services/llm"
)

// Action is one entry in the closed registry of operations the oracle may
// select. Arguments arrive as raw JSON and the handler validates them before
// doing anything.
type Action struct {
	Name        string
	Description string
	Parameters  json.RawMessage
	Handle      func(ctx context.Context, args json.RawMessage) (string, error)
}

// Registry is the fixed set of actions presented to the oracle. Adding an
// action is adding an entry here, never new dispatch logic.
type Registry struct {
	ordered []Action
	byName  map[string]Action
}

// NewRegistry builds a registry from the given actions. Duplicate names keep
// the first entry.
func NewRegistry(actions ...Action) *Registry {
	reg := &Registry{byName: make(map[string]Action, len(actions))}
	for _, action := range actions {
		if _, exists := reg.byName[action.Name]; exists {
			continue
		}
		reg.byName[action.Name] = action
		reg.ordered = append(reg.ordered, action)
	}
	return reg
}

// Tools renders the registry as the oracle's tool schema.
func (r *Registry) Tools() []llm.Tool {
	tools := make([]llm.Tool, 0, len(r.ordered))
	for _, action := range r.ordered {
		tools = append(tools, llm.Tool{
			Name:        action.Name,
			Description: action.Description,
			Parameters:  action.Parameters,
		})
	}
	return tools
}

// Lookup finds an action by name.
func (r *Registry) Lookup(name string) (Action, bool) {
	action, ok := r.byName[name]
	return action, ok
}

package deepresearch

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
)

// Tool defines an agent capability with one or more tool functions.
type Tool interface {
	Definitions() []ToolDefinition
	Execute(ctx context.Context, name string, args json.RawMessage) (ToolResult, error)
}

// ToolResult is the outcome of a tool execution. Error carries a failure the
// tool chose to report instead of returning a Go error.
type ToolResult struct {
	Content string `json:"content"`
	Error   string `json:"error,omitempty"`
}

// ToolRegistry holds all registered tools and dispatches execution.
type ToolRegistry struct {
	tools []Tool
	index map[string]Tool
}

// NewToolRegistry creates an empty registry.
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{index: map[string]Tool{}}
}

// Add registers a tool. A later tool wins a name collision.
func (r *ToolRegistry) Add(t Tool) {
	r.tools = append(r.tools, t)
	for _, d := range t.Definitions() {
		r.index[d.Name] = t
	}
}

// AllDefinitions returns tool definitions from all registered tools.
func (r *ToolRegistry) AllDefinitions() []ToolDefinition {
	var defs []ToolDefinition
	for _, t := range r.tools {
		defs = append(defs, t.Definitions()...)
	}
	return defs
}

// Names returns the registered tool names in registration order.
func (r *ToolRegistry) Names() []string {
	var names []string
	for _, d := range r.AllDefinitions() {
		if !slices.Contains(names, d.Name) {
			names = append(names, d.Name)
		}
	}
	return names
}

// Has reports whether a tool named name is registered.
func (r *ToolRegistry) Has(name string) bool {
	_, ok := r.index[name]
	return ok
}

// Only returns a registry restricted to the given names. An empty list keeps
// every tool. Unknown names are ignored.
func (r *ToolRegistry) Only(names []string) *ToolRegistry {
	if len(names) == 0 {
		return r
	}
	out := NewToolRegistry()
	for _, t := range r.tools {
		for _, d := range t.Definitions() {
			if slices.Contains(names, d.Name) {
				out.Add(t)
				break
			}
		}
	}
	for name := range out.index {
		if !slices.Contains(names, name) {
			delete(out.index, name)
		}
	}
	return out
}

// Execute dispatches a tool call by name. Every outcome becomes observation
// text: an unknown name, a returned error, a reported ToolResult.Error and a
// panic inside the tool all turn into an error line for the model to read.
func (r *ToolRegistry) Execute(ctx context.Context, name string, args json.RawMessage) (text string) {
	t, ok := r.index[name]
	if !ok {
		return fmt.Sprintf("Error: tool '%s' not found.", name)
	}
	defer func() {
		if p := recover(); p != nil {
			text = fmt.Sprintf("Error: tool '%s' failed with %v.", name, p)
		}
	}()
	res, err := t.Execute(ctx, name, args)
	if err != nil {
		return fmt.Sprintf("Error: tool '%s' failed with %v.", name, err)
	}
	if res.Error != "" {
		return fmt.Sprintf("Error: tool '%s' failed with %s.", name, res.Error)
	}
	return res.Content
}

package tools

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
)

// Registry manages available tools for the agent
type Registry struct {
	mu    sync.RWMutex
	tools map[string]registered
}

type registered struct {
	tool Tool
	spec Spec
}

// NewRegistry creates a new tool registry
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]registered),
	}
}

// Register adds a tool to the registry
// Returns a DuplicateToolError if a tool with the same name already exists
func (r *Registry) Register(tool Tool) error {
	if tool == nil {
		return errors.New("tool is nil")
	}
	spec := tool.Spec().clone()
	name := spec.Name
	if strings.TrimSpace(name) == "" {
		return errors.New("tool name is required")
	}
	// the decider matches names exactly, so the key and Spec.Name must agree
	if strings.TrimSpace(name) != name {
		return fmt.Errorf("tool name %q has surrounding whitespace", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[name]; exists {
		return &DuplicateToolError{Name: name}
	}

	r.tools[name] = registered{tool: tool, spec: spec}
	return nil
}

// RegisterFunc registers a function under the given spec
func (r *Registry) RegisterFunc(spec Spec, fn ExecuteFunc) error {
	return r.Register(NewFunc(spec, fn))
}

// Resolve returns the tool registered under name or an UnknownToolError
func (r *Registry) Resolve(name string) (Tool, error) {
	tool, ok := r.Get(name)
	if !ok {
		return nil, &UnknownToolError{Name: name}
	}
	return tool, nil
}

// Get retrieves a tool by name
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, exists := r.tools[name]
	return entry.tool, exists
}

// Spec returns a copy of the spec registered under name
func (r *Registry) Spec(name string) (Spec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, exists := r.tools[name]
	if !exists {
		return Spec{}, false
	}
	return entry.spec.clone(), true
}

// List returns all registered tool names, sorted
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Count returns the number of registered tools
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// Specs returns copies of every registered spec, sorted by name
func (r *Registry) Specs() []Spec {
	names := r.List()

	r.mu.RLock()
	defer r.mu.RUnlock()

	specs := make([]Spec, 0, len(names))
	for _, name := range names {
		if entry, ok := r.tools[name]; ok {
			specs = append(specs, entry.spec.clone())
		}
	}
	return specs
}

// Describe renders every tool contract as one prompt block
func (r *Registry) Describe() string {
	specs := r.Specs()
	blocks := make([]string, 0, len(specs))
	for _, spec := range specs {
		blocks = append(blocks, spec.Instruction())
	}
	return strings.Join(blocks, "\n")
}

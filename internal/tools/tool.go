package tools

import (
	"context"
)

// ToolResult represents the result of a tool execution
//
// IsError marks a failure the model should see and recover from on the next
// step. Failures that must stop the run are returned as Go errors instead.
type ToolResult struct {
	Content string `json:"content"`
	IsError bool   `json:"is_error,omitempty"`
}

// Tool defines the interface for tools that can be called by the agent
type Tool interface {
	// Spec returns the tool's name, description and parameter contract
	Spec() Spec

	// Execute runs the tool with a payload that already passed Spec().Validate
	Execute(ctx context.Context, payload Payload) (ToolResult, error)
}

// ExecuteFunc is the body of a tool built with NewFunc
type ExecuteFunc func(ctx context.Context, payload Payload) (ToolResult, error)

type funcTool struct {
	spec Spec
	fn   ExecuteFunc
}

// NewFunc builds a Tool from a spec and a function
func NewFunc(spec Spec, fn ExecuteFunc) Tool {
	return &funcTool{spec: spec.clone(), fn: fn}
}

func (t *funcTool) Spec() Spec {
	return t.spec.clone()
}

func (t *funcTool) Execute(ctx context.Context, payload Payload) (ToolResult, error) {
	return t.fn(ctx, payload)
}

// Errorf builds a recoverable error result
func Errorf(format string, args ...any) ToolResult {
	return ToolResult{Content: sprintf(format, args...), IsError: true}
}

// Invocation is a tool call chosen by the model, ready for execution
type Invocation struct {
	ToolName string
	Payload  Payload
}

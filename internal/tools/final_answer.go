package tools

import (
	"context"
)

// DefaultTerminalTool is the tool whose invocation ends a run
const DefaultTerminalTool = "final_answer"

// FinalAnswerTool records the answer that ends a run
type FinalAnswerTool struct {
	name string
}

// NewFinalAnswerTool creates the terminal tool under name, or final_answer when empty
func NewFinalAnswerTool(name string) *FinalAnswerTool {
	if name == "" {
		name = DefaultTerminalTool
	}
	return &FinalAnswerTool{name: name}
}

func (t *FinalAnswerTool) Spec() Spec {
	return Spec{
		Name:        t.name,
		Description: "Submits the final answer to the task and ends the run. Use it only when the answer is known.",
		Required: map[string]string{
			"answer": "The final answer, as text or a JSON value in the format the task asks for",
		},
	}
}

func (t *FinalAnswerTool) Execute(_ context.Context, payload Payload) (ToolResult, error) {
	return ToolResult{Content: payload.String("answer")}, nil
}

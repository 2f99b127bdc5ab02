package agent

import (
	"context"
	"time"

	"github.com/MimeLyc/taskagent/internal/tools"
)

// Executor runs the active tool and records the action
type Executor struct {
	registry *tools.Registry
	now      func() time.Time
}

// NewExecutor creates an executor
func NewExecutor(registry *tools.Registry) *Executor {
	return &Executor{registry: registry, now: time.Now}
}

// Execute appends exactly one ActionRecord on success. A Go error from the
// tool aborts the run; a ToolResult with IsError is recorded like any other.
func (e *Executor) Execute(ctx context.Context, s *State) (*ActionRecord, error) {
	if s.ActiveTool == nil || s.ActiveToolPayload == nil {
		return nil, NewError(KindToolExecution, PhaseExecuting, "no active tool invocation")
	}
	inv := tools.Invocation{ToolName: s.ActiveTool.Name, Payload: *s.ActiveToolPayload}

	tool, err := e.registry.Resolve(inv.ToolName)
	if err != nil {
		return nil, NewErrorWithCause(KindUnknownTool, PhaseExecuting, "tool is not registered", err).
			WithContext("tool", inv.ToolName)
	}

	result, err := tool.Execute(ctx, inv.Payload)
	if err != nil {
		return nil, NewErrorWithCause(KindToolExecution, PhaseExecuting, "tool failed", err).
			WithContext("tool", inv.ToolName).
			WithContext("step", s.CurrentStep)
	}

	record := &ActionRecord{
		Step:      s.CurrentStep,
		Name:      inv.ToolName,
		Payload:   inv.Payload,
		Result:    result,
		Timestamp: e.now(),
	}
	s.Actions = append(s.Actions, record)
	return record, nil
}

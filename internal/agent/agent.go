package agent

import (
	"context"

	"github.com/MimeLyc/taskagent/internal/tools"
)

// Agent defines the interface for an agent that can execute tasks
type Agent interface {
	// Execute runs the agent with the given request
	Execute(ctx context.Context, req AgentRequest) (*AgentResult, error)

	// Close releases any resources held by the agent
	Close() error
}

// LLMAgent implements the Agent interface with the staged tool loop
type LLMAgent struct {
	orchestrator *Orchestrator
	closers      []func() error
}

// NewLLMAgent creates a new LLM-based agent
func NewLLMAgent(gateway Gateway, registry *tools.Registry, opts Options) (*LLMAgent, error) {
	o, err := NewOrchestrator(gateway, registry, opts)
	if err != nil {
		return nil, err
	}
	return &LLMAgent{orchestrator: o}, nil
}

// Execute runs the agent with the given request
func (a *LLMAgent) Execute(ctx context.Context, req AgentRequest) (*AgentResult, error) {
	return a.orchestrator.Run(ctx, req)
}

// OnClose registers fn to run when the agent is closed, e.g. closing a journal
func (a *LLMAgent) OnClose(fn func() error) {
	a.closers = append(a.closers, fn)
}

// Close releases any resources held by the agent
func (a *LLMAgent) Close() error {
	var firstErr error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	a.closers = nil
	return firstErr
}

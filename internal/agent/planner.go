package agent

import (
	"context"
	"strings"

	"github.com/MimeLyc/taskagent/internal/tools"
)

// Planner writes and refines the plan of action
type Planner struct {
	gateway  Gateway
	registry *tools.Registry
	terminal string
	opts     StageOptions
	sink     func(string)
}

// NewPlanner creates a planner. sink, when non-nil, receives the plan as it streams.
func NewPlanner(gateway Gateway, registry *tools.Registry, terminal string, opts StageOptions, sink func(string)) *Planner {
	return &Planner{
		gateway:  gateway,
		registry: registry,
		terminal: terminal,
		opts:     opts,
		sink:     sink,
	}
}

// Plan updates s.Plan. Nothing else in s is touched.
func (p *Planner) Plan(ctx context.Context, s *State) error {
	system := planPrompt(s, p.registry, p.terminal)

	plan, err := p.opts.complete(ctx, p.gateway, system, s.Messages, false, p.sink)
	if err != nil {
		return NewErrorWithCause(KindPlanning, PhasePlanning, "gateway call failed", err).
			WithContext("step", s.CurrentStep)
	}

	plan = strings.TrimSpace(plan)
	if plan == "" {
		return NewError(KindPlanning, PhasePlanning, "model returned an empty plan").
			WithContext("step", s.CurrentStep)
	}

	s.Plan = plan
	return nil
}

package agent

import (
	"context"
	"strings"

	"github.com/MimeLyc/taskagent/internal/tools"
)

// Decision is the Decider's pick for the current step
type Decision struct {
	Tool     string
	Thoughts string
}

// Decider selects the next tool
type Decider struct {
	gateway  Gateway
	registry *tools.Registry
	terminal string
	opts     StageOptions
}

// NewDecider creates a decider
func NewDecider(gateway Gateway, registry *tools.Registry, terminal string, opts StageOptions) *Decider {
	return &Decider{
		gateway:  gateway,
		registry: registry,
		terminal: terminal,
		opts:     opts,
	}
}

// Decide sets s.ActiveTool to the registered spec the model picked
func (d *Decider) Decide(ctx context.Context, s *State) (Decision, error) {
	system := decidePrompt(s, d.registry, d.terminal)

	raw, err := d.opts.complete(ctx, d.gateway, system, s.Messages, true, nil)
	if err != nil {
		return Decision{}, NewErrorWithCause(KindDecision, PhaseDeciding, "gateway call failed", err).
			WithContext("step", s.CurrentStep)
	}

	payload, err := tools.ParsePayload([]byte(raw))
	if err != nil {
		return Decision{}, NewErrorWithCause(KindPayloadParse, PhaseDeciding, "decision is not a JSON object", err).
			WithContext("step", s.CurrentStep)
	}

	decision := Decision{
		Tool:     strings.TrimSpace(payload.String("tool")),
		Thoughts: payload.Thoughts,
	}
	spec, ok := d.registry.Spec(decision.Tool)
	if !ok {
		return decision, NewErrorWithCause(KindInvalidToolSelection, PhaseDeciding, "model selected a tool that is not registered",
			&tools.UnknownToolError{Name: decision.Tool}).
			WithContext("tool", decision.Tool).
			WithContext("step", s.CurrentStep)
	}

	s.ActiveTool = &spec
	return decision, nil
}

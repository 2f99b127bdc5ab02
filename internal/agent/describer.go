package agent

import (
	"context"

	"github.com/MimeLyc/taskagent/internal/tools"
)

// Describer produces the validated input for the active tool
type Describer struct {
	gateway Gateway
	opts    StageOptions
}

// NewDescriber creates a describer
func NewDescriber(gateway Gateway, opts StageOptions) *Describer {
	return &Describer{gateway: gateway, opts: opts}
}

// Describe sets s.ActiveToolPayload. The prompt depends only on the task,
// plan, actions and active tool, so an unchanged state yields the same request.
func (d *Describer) Describe(ctx context.Context, s *State) error {
	if s.ActiveTool == nil {
		return NewError(KindDescriber, PhaseDescribing, "no active tool")
	}
	spec := *s.ActiveTool

	raw, err := d.opts.complete(ctx, d.gateway, describePrompt(s, spec), s.Messages, true, nil)
	if err != nil {
		return NewErrorWithCause(KindDescriber, PhaseDescribing, "gateway call failed", err).
			WithContext("tool", spec.Name)
	}

	payload, err := tools.ParsePayload([]byte(raw))
	if err != nil {
		return NewErrorWithCause(KindPayloadParse, PhaseDescribing, "tool input is not a JSON object", err).
			WithContext("tool", spec.Name)
	}

	if err := spec.Validate(payload); err != nil {
		return NewErrorWithCause(KindMissingRequiredParameter, PhaseDescribing, "tool input is incomplete", err).
			WithContext("tool", spec.Name)
	}

	s.ActiveToolPayload = &payload
	return nil
}

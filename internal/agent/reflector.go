package agent

import (
	"context"
	"errors"
	"strings"

	"github.com/MimeLyc/taskagent/internal/tools"
)

// Reflector writes a self-note about the latest action
type Reflector struct {
	gateway  Gateway
	registry *tools.Registry
	opts     StageOptions
}

// NewReflector creates a reflector
func NewReflector(gateway Gateway, registry *tools.Registry, opts StageOptions) *Reflector {
	return &Reflector{gateway: gateway, registry: registry, opts: opts}
}

// Reflect fills the Reflection of the latest action. On error the reflection is left empty.
func (r *Reflector) Reflect(ctx context.Context, s *State) error {
	last := s.LastAction()
	if last == nil {
		return errors.New("no action to reflect on")
	}

	text, err := r.opts.complete(ctx, r.gateway, reflectPrompt(s, r.registry, last), s.Messages, false, nil)
	if err != nil {
		return err
	}
	last.Reflection = strings.TrimSpace(text)
	return nil
}

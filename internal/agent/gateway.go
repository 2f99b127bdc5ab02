package agent

import (
	"context"
	"errors"
	"time"

	"github.com/MimeLyc/taskagent/internal/llm"
	"github.com/MimeLyc/taskagent/pkg/log"
)

// Gateway is the model endpoint the stages talk to. *llm.Client implements it.
type Gateway interface {
	Complete(ctx context.Context, messages []llm.Message, opts *llm.ChatCompletionOptions) (string, error)
}

// StreamingGateway is a Gateway that can deliver a completion fragment by fragment
type StreamingGateway interface {
	Gateway
	StreamComplete(ctx context.Context, messages []llm.Message, opts *llm.ChatCompletionOptions, onChunk func(string)) (string, error)
}

// RetryPolicy bounds retries of failed gateway calls
//
// MaxRetries: extra attempts after the first one, 0 disables retrying
// Backoff: wait before the first retry, doubled for every further retry
type RetryPolicy struct {
	MaxRetries int
	Backoff    time.Duration
}

// WithRetry wraps g so failed calls are retried under p.
// Context cancellation and deadline errors are returned immediately.
// The wrapper keeps streaming support when g has it.
func WithRetry(g Gateway, p RetryPolicy) Gateway {
	if p.MaxRetries <= 0 {
		return g
	}
	base := &retryGateway{next: g, policy: p}
	if sg, ok := g.(StreamingGateway); ok {
		return &retryStreamingGateway{retryGateway: base, stream: sg}
	}
	return base
}

type retryGateway struct {
	next   Gateway
	policy RetryPolicy
}

func (r *retryGateway) Complete(ctx context.Context, messages []llm.Message, opts *llm.ChatCompletionOptions) (string, error) {
	var out string
	err := r.do(ctx, func() (bool, error) {
		var err error
		out, err = r.next.Complete(ctx, messages, opts)
		return true, err
	})
	return out, err
}

// do runs call until it succeeds, the policy is spent, or call reports the
// failure as not retryable
func (r *retryGateway) do(ctx context.Context, call func() (retryable bool, err error)) error {
	wait := r.policy.Backoff
	var err error
	for attempt := 0; ; attempt++ {
		var retryable bool
		retryable, err = call()
		if err == nil {
			return nil
		}
		if !retryable || attempt >= r.policy.MaxRetries || isContextError(ctx, err) {
			return err
		}

		log.Warn("Gateway call failed (attempt %d/%d): %v", attempt+1, r.policy.MaxRetries+1, err)
		if wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return err
			case <-timer.C:
			}
			wait *= 2
		}
	}
}

type retryStreamingGateway struct {
	*retryGateway
	stream StreamingGateway
}

// StreamComplete retries only while no fragment has reached onChunk
func (r *retryStreamingGateway) StreamComplete(ctx context.Context, messages []llm.Message, opts *llm.ChatCompletionOptions, onChunk func(string)) (string, error) {
	var out string
	err := r.do(ctx, func() (bool, error) {
		delivered := false
		var err error
		out, err = r.stream.StreamComplete(ctx, messages, opts, func(s string) {
			delivered = true
			if onChunk != nil {
				onChunk(s)
			}
		})
		return !delivered, err
	})
	return out, err
}

func isContextError(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return true
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

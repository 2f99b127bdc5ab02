package agent

import (
	"context"
	"time"

	"github.com/MimeLyc/taskagent/internal/llm"
	"github.com/MimeLyc/taskagent/pkg/log"
)

// StageOptions tunes the gateway calls made by every stage
//
// Timeout: deadline for one stage's gateway call, retries included; 0 means none
// Model: overrides the gateway's default model when set
// Temperature: sampling temperature for free-text stages; JSON stages always use 0
type StageOptions struct {
	Timeout     time.Duration
	Model       string
	Temperature float64
}

func (o StageOptions) completionOptions(system string, jsonMode bool) *llm.ChatCompletionOptions {
	opts := llm.NewChatCompletionOptions().
		WithSystemPrompt(system).
		WithModel(o.Model).
		WithJSONMode(jsonMode)
	if jsonMode {
		opts.WithTemperature(0)
	} else if o.Temperature > 0 {
		opts.WithTemperature(o.Temperature)
	}
	return opts
}

func (o StageOptions) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, o.Timeout)
}

// complete runs one gateway call under the stage timeout. With a sink and a
// streaming gateway the completion is streamed into the sink.
func (o StageOptions) complete(ctx context.Context, gw Gateway, system string, messages []llm.Message, jsonMode bool, sink func(string)) (string, error) {
	ctx, cancel := o.withTimeout(ctx)
	defer cancel()

	opts := o.completionOptions(system, jsonMode)
	log.Debug("System prompt:\n%s", system)

	if sink != nil {
		if sg, ok := gw.(StreamingGateway); ok {
			return sg.StreamComplete(ctx, messages, opts, sink)
		}
	}
	return gw.Complete(ctx, messages, opts)
}

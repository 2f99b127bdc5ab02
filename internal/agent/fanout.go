package agent

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/MimeLyc/taskagent/internal/tools"
)

// TaskFunc handles one fan-out input
type TaskFunc func(ctx context.Context, input string) (tools.ToolResult, error)

// TaskOutcome is the result for the input at Index
type TaskOutcome struct {
	Index  int
	Input  string
	Result tools.ToolResult
	Err    error
}

// FanOutOptions controls FanOut
//
// Isolate: when true every task runs and failures are only recorded per task;
// when false the first failure cancels the remaining tasks
// Concurrency: maximum tasks in flight, 0 or less means unbounded
type FanOutOptions struct {
	Isolate     bool
	Concurrency int
}

// FanOut runs fn for every input concurrently. Outcomes are indexed like
// inputs regardless of completion order.
func FanOut(ctx context.Context, inputs []string, fn TaskFunc, opts FanOutOptions) ([]TaskOutcome, error) {
	outcomes := make([]TaskOutcome, len(inputs))
	for i, in := range inputs {
		outcomes[i] = TaskOutcome{Index: i, Input: in}
	}

	var g *errgroup.Group
	gctx := ctx
	if opts.Isolate {
		g = &errgroup.Group{}
	} else {
		g, gctx = errgroup.WithContext(ctx)
	}
	if opts.Concurrency > 0 {
		g.SetLimit(opts.Concurrency)
	}

	for i := range inputs {
		g.Go(func() error {
			out := &outcomes[i]
			if err := gctx.Err(); err != nil {
				out.Err = err
				return errorUnlessIsolated(opts, err)
			}
			out.Result, out.Err = runTask(gctx, fn, out.Input)
			return errorUnlessIsolated(opts, out.Err)
		})
	}

	if err := g.Wait(); err != nil {
		return outcomes, err
	}
	return outcomes, nil
}

// ToolTask adapts a single-input tool to a TaskFunc. The input is passed as param.
// A result flagged IsError is reported as a task failure.
func ToolTask(tool tools.Tool, param string) TaskFunc {
	spec := tool.Spec()
	return func(ctx context.Context, input string) (tools.ToolResult, error) {
		payload := tools.NewPayload(map[string]any{param: input})
		if err := spec.Validate(payload); err != nil {
			return tools.ToolResult{}, err
		}
		result, err := tool.Execute(ctx, payload)
		if err != nil {
			return result, err
		}
		if result.IsError {
			return result, fmt.Errorf("%s: %s", spec.Name, firstLine(result.Content))
		}
		return result, nil
	}
}

func runTask(ctx context.Context, fn TaskFunc, input string) (result tools.ToolResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()
	return fn(ctx, input)
}

func errorUnlessIsolated(opts FanOutOptions, err error) error {
	if opts.Isolate {
		return nil
	}
	return err
}

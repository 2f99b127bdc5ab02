package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MimeLyc/taskagent/internal/tools"
	"github.com/MimeLyc/taskagent/pkg/log"
)

// Metrics receives loop measurements. internal/metrics implements it.
type Metrics interface {
	ObserveStage(phase Phase, d time.Duration, err error)
	ObserveTool(name string, d time.Duration, result tools.ToolResult, err error)
	ObserveRun(outcome Outcome, steps int, d time.Duration)
}

type nopMetrics struct{}

func (nopMetrics) ObserveStage(Phase, time.Duration, error)                   {}
func (nopMetrics) ObserveTool(string, time.Duration, tools.ToolResult, error) {}
func (nopMetrics) ObserveRun(Outcome, int, time.Duration)                     {}

// Options configures the loop driver
//
// MaxSteps: default budget for Run when the request has none
// TerminalTool: tool whose execution ends the run with a final answer
// Reflect: enables the reflection stage
// Stage: timeout and model settings for every gateway call
// PlanSink: receives streamed plan fragments when the gateway streams
type Options struct {
	MaxSteps     int
	TerminalTool string
	Reflect      bool
	Stage        StageOptions
	PlanSink     func(string)
	Observer     Observer
	Metrics      Metrics
}

// Orchestrator drives the plan, decide, describe, execute and reflect loop
type Orchestrator struct {
	planner   *Planner
	decider   *Decider
	describer *Describer
	executor  *Executor
	reflector *Reflector
	registry  *tools.Registry
	opts      Options
	now       func() time.Time
}

// NewOrchestrator creates a loop driver. The terminal tool must be registered.
func NewOrchestrator(gateway Gateway, registry *tools.Registry, opts Options) (*Orchestrator, error) {
	if gateway == nil {
		return nil, errors.New("gateway is required")
	}
	if registry == nil {
		return nil, errors.New("tool registry is required")
	}
	if opts.TerminalTool == "" {
		opts.TerminalTool = tools.DefaultTerminalTool
	}
	if _, ok := registry.Get(opts.TerminalTool); !ok {
		return nil, fmt.Errorf("terminal tool %q is not registered", opts.TerminalTool)
	}
	if opts.MaxSteps <= 0 {
		opts.MaxSteps = 10
	}
	if opts.Observer == nil {
		opts.Observer = NopObserver{}
	}
	if opts.Metrics == nil {
		opts.Metrics = nopMetrics{}
	}

	return &Orchestrator{
		planner:   NewPlanner(gateway, registry, opts.TerminalTool, opts.Stage, opts.PlanSink),
		decider:   NewDecider(gateway, registry, opts.TerminalTool, opts.Stage),
		describer: NewDescriber(gateway, opts.Stage),
		executor:  NewExecutor(registry),
		reflector: NewReflector(gateway, registry, opts.Stage),
		registry:  registry,
		opts:      opts,
		now:       time.Now,
	}, nil
}

// Run creates the state for req and drives it to completion. The returned
// result is non-nil whenever the state could be built; err mirrors result.Err.
func (o *Orchestrator) Run(ctx context.Context, req AgentRequest) (*AgentResult, error) {
	maxSteps := req.MaxSteps
	if maxSteps <= 0 {
		maxSteps = o.opts.MaxSteps
	}

	s, err := NewState(req.Task, maxSteps)
	if err != nil {
		return nil, err
	}
	if err := s.Attach(req.Attachments...); err != nil {
		return nil, err
	}

	result := o.Drive(ctx, s)
	return result, result.Err
}

// Drive runs the loop on s until it is done
func (o *Orchestrator) Drive(ctx context.Context, s *State) *AgentResult {
	result := &AgentResult{
		RunID:     s.RunID,
		StartedAt: o.now(),
	}
	entry := s.CurrentStep

	log.Info("Starting run %s (budget %d steps, language %s)", s.RunID, s.MaxSteps, languageLabel(s))
	o.opts.Observer.RunStarted(s)

	for !s.Done {
		if s.BudgetExhausted() {
			log.Warn("Run %s exhausted its budget of %d steps", s.RunID, s.MaxSteps)
			o.finish(s, result, entry, OutcomeBudgetExhausted, ErrStepBudgetExhausted)
			break
		}

		answer, done, err := o.step(ctx, s)
		if err != nil {
			LogFailure(err)
			o.finish(s, result, entry, OutcomeAborted, err)
			break
		}
		if done {
			result.Answer = answer
			o.finish(s, result, entry, OutcomeFinalAnswer, nil)
		}
	}

	o.opts.Observer.RunFinished(s, result)
	o.opts.Metrics.ObserveRun(result.Outcome, result.Steps, result.Duration())
	return result
}

// step runs one iteration. done is true when the terminal tool was executed.
func (o *Orchestrator) step(ctx context.Context, s *State) (answer any, done bool, err error) {
	s.clearActive()
	log.Info("Step %d/%d", s.CurrentStep, s.MaxSteps)

	if err := o.stage(ctx, s, PhasePlanning, func() error {
		return o.planner.Plan(ctx, s)
	}); err != nil {
		return nil, false, err
	}

	if err := o.stage(ctx, s, PhaseDeciding, func() error {
		decision, err := o.decider.Decide(ctx, s)
		if err == nil {
			log.Info("Next move: %s", decision.Tool)
			log.Debug("Thoughts: %s", decision.Thoughts)
		}
		return err
	}); err != nil {
		return nil, false, err
	}

	if err := o.stage(ctx, s, PhaseDescribing, func() error {
		return o.describer.Describe(ctx, s)
	}); err != nil {
		return nil, false, err
	}

	var record *ActionRecord
	if err := o.stage(ctx, s, PhaseExecuting, func() error {
		start := o.now()
		var err error
		record, err = o.executor.Execute(ctx, s)
		if record != nil {
			o.opts.Metrics.ObserveTool(record.Name, o.now().Sub(start), record.Result, nil)
		} else if s.ActiveTool != nil {
			o.opts.Metrics.ObserveTool(s.ActiveTool.Name, o.now().Sub(start), tools.ToolResult{}, err)
		}
		return err
	}); err != nil {
		return nil, false, err
	}
	o.opts.Observer.ActionRecorded(s, record)
	if record.Result.IsError {
		log.Warn("Tool %s reported an error: %s", record.Name, firstLine(record.Result.Content))
	}

	if record.Name == o.opts.TerminalTool {
		return record.Payload.Value("answer"), true, nil
	}

	if o.opts.Reflect && ctx.Err() == nil {
		o.reflect(ctx, s, record)
	}

	s.CurrentStep++
	s.Phase = PhasePlanning
	return nil, false, nil
}

// stage enters phase, checks for cancellation and times fn
func (o *Orchestrator) stage(ctx context.Context, s *State, phase Phase, fn func() error) error {
	s.Phase = phase
	o.opts.Observer.PhaseChanged(s, phase)

	if err := ctx.Err(); err != nil {
		return NewErrorWithCause(stageKind(phase), phase, "run cancelled", err).
			WithContext("step", s.CurrentStep)
	}

	start := o.now()
	err := fn()
	o.opts.Metrics.ObserveStage(phase, o.now().Sub(start), err)
	return err
}

func (o *Orchestrator) reflect(ctx context.Context, s *State, record *ActionRecord) {
	s.Phase = PhaseReflecting
	o.opts.Observer.PhaseChanged(s, PhaseReflecting)

	start := o.now()
	err := o.reflector.Reflect(ctx, s)
	o.opts.Metrics.ObserveStage(PhaseReflecting, o.now().Sub(start), err)
	if err != nil {
		log.Warn("Reflection on step %d failed: %v", s.CurrentStep, err)
		return
	}
	o.opts.Observer.ActionReflected(s, record)
}

// finish seals the run. Steps counts the iterations completed since entry;
// the terminal iteration does not advance CurrentStep so it is added back.
func (o *Orchestrator) finish(s *State, result *AgentResult, entry int, outcome Outcome, err error) {
	s.Done = true
	s.Phase = PhaseDone
	s.clearActive()

	result.Outcome = outcome
	result.Err = err
	result.Plan = s.Plan
	result.Actions = s.actionsSnapshot()
	result.Steps = max(s.CurrentStep-entry, 0)
	if outcome == OutcomeFinalAnswer {
		result.Steps++
	}
	result.FinishedAt = o.now()

	log.Info("Run %s finished: %s after %d step(s) in %s", s.RunID, outcome, result.Steps, result.Duration())
}

func stageKind(phase Phase) ErrorKind {
	switch phase {
	case PhaseDeciding:
		return KindDecision
	case PhaseDescribing:
		return KindDescriber
	case PhaseExecuting:
		return KindToolExecution
	default:
		return KindPlanning
	}
}

func languageLabel(s *State) string {
	if name := LanguageName(s.Language); name != "" {
		return name
	}
	return "unknown"
}

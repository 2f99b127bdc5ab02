package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/singleflight"

	"github.com/MimeLyc/taskagent/internal/agent"
	"github.com/MimeLyc/taskagent/internal/config"
	"github.com/MimeLyc/taskagent/internal/llm"
	"github.com/MimeLyc/taskagent/pkg/icron"
	"github.com/MimeLyc/taskagent/pkg/log"
)

// stringList collects a repeatable flag
type stringList []string

func (l *stringList) String() string { return strings.Join(*l, ",") }

func (l *stringList) Set(v string) error {
	*l = append(*l, v)
	return nil
}

type runFlags struct {
	task        string
	maxSteps    int
	images      stringList
	reportTask  string
	schedule    string
	metricsFile string
	stream      bool
}

func parseRunFlags(args []string, stderr io.Writer) (*runFlags, error) {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(stderr)

	f := &runFlags{}
	fs.StringVar(&f.task, "task", "", "task for the agent (required)")
	fs.IntVar(&f.maxSteps, "max-steps", 0, "step budget, overrides AGENT_MAX_STEPS")
	fs.Var(&f.images, "image", "image attached to the task, repeatable")
	fs.StringVar(&f.reportTask, "report-task", "", "submit the final answer under this task name")
	fs.StringVar(&f.schedule, "schedule", "", "cron expression; run repeatedly until interrupted")
	fs.StringVar(&f.metricsFile, "metrics-file", "", "write Prometheus metrics here after each run")
	fs.BoolVar(&f.stream, "stream", false, "stream the plan to stdout while it is written")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if strings.TrimSpace(f.task) == "" {
		return nil, errors.New("-task is required")
	}
	return f, nil
}

func runTask(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	f, err := parseRunFlags(args, stderr)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitFailure
	}

	var opts []config.Option
	if f.maxSteps > 0 {
		opts = append(opts, config.WithMaxSteps(f.maxSteps))
	}
	if f.schedule != "" {
		opts = append(opts, config.WithSchedule(f.schedule))
	}
	cfg, err := loadConfig(opts...)
	if err != nil {
		fmt.Fprintf(stderr, "config: %v\n", err)
		return exitFailure
	}

	a, err := newApp(cfg)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitFailure
	}
	defer a.Close()

	if f.schedule == "" {
		return a.runOnce(ctx, f, stdout)
	}

	job := func(ctx context.Context) {
		code := a.runOnce(ctx, f, stdout)
		log.Info("Scheduled run finished with exit code %d", code)
	}
	if err := runScheduled(ctx, cfg.Schedule.CronExpr, icron.New(), job); err != nil {
		fmt.Fprintln(stderr, err)
		return exitFailure
	}
	return exitOK
}

// runOnce executes one run and reports its outcome as an exit code
func (a *app) runOnce(ctx context.Context, f *runFlags, stdout io.Writer) int {
	var sink func(string)
	if f.stream {
		sink = func(chunk string) { fmt.Fprint(stdout, chunk) }
	}

	ag, err := a.newAgent(sink)
	if err != nil {
		log.Error("Failed to create agent: %v", err)
		return exitFailure
	}
	defer func() {
		if err := ag.Close(); err != nil {
			log.Warn("Failed to close agent: %v", err)
		}
	}()

	attachments := make([]llm.File, 0, len(f.images))
	for _, path := range f.images {
		file, err := llm.NewFileFromPath(path)
		if err != nil {
			log.Error("Failed to attach image: %v", err)
			return exitFailure
		}
		attachments = append(attachments, *file)
	}

	result, err := ag.Execute(ctx, agent.AgentRequest{
		Task:        f.task,
		MaxSteps:    a.cfg.Agent.MaxSteps,
		Attachments: attachments,
	})
	if result == nil {
		log.Error("Run failed to start: %v", err)
		return exitFailure
	}
	if f.stream && result.Plan != "" {
		fmt.Fprintln(stdout)
	}

	printResult(stdout, result)
	a.writeMetrics(f.metricsFile)

	switch result.Outcome {
	case agent.OutcomeFinalAnswer:
		if f.reportTask != "" {
			a.submit(ctx, f.reportTask, result.Answer, stdout)
		}
		return exitOK
	case agent.OutcomeBudgetExhausted:
		return exitBudgetExhausted
	default:
		return exitFailure
	}
}

func printResult(w io.Writer, result *agent.AgentResult) {
	fmt.Fprintf(w, "Run %s: %s after %d steps (%s)\n",
		result.RunID, result.Outcome, result.Steps, result.Duration().Round(time.Millisecond))
	switch result.Outcome {
	case agent.OutcomeFinalAnswer:
		fmt.Fprintf(w, "Answer: %s\n", result.AnswerText())
	default:
		fmt.Fprintf(w, "Error: %v\nAdvice: %s\n", result.Err, agent.Advice(result.Err))
	}
}

func (a *app) submit(ctx context.Context, task string, answer any, w io.Writer) {
	if !a.cfg.Report.Enabled() {
		log.Warn("-report-task given but REPORT_URL is not set; skipping submission")
		return
	}
	reporter, err := a.newReporter()
	if err != nil {
		log.Error("Failed to create report client: %v", err)
		return
	}
	resp, err := reporter.Submit(ctx, task, answer)
	if err != nil {
		log.Error("Failed to submit answer: %v", err)
		return
	}
	fmt.Fprintf(w, "Report: code %s, %s\n", resp.CodeString(), resp.Message)
}

func (a *app) writeMetrics(path string) {
	if path == "" {
		return
	}
	if err := a.recorder.WriteFile(path); err != nil {
		log.Warn("Failed to write metrics to %s: %v", path, err)
	}
}

// schedulerStopTimeout bounds the wait for a running job on shutdown
var schedulerStopTimeout = 30 * time.Second

// cronEngine is the part of *cron.Cron the scheduler needs
type cronEngine interface {
	AddFunc(spec string, cmd func()) (cron.EntryID, error)
	Start()
	Stop() context.Context
}

// runScheduled runs job on every trigger of expr until ctx is done.
// A trigger that fires while a run is in progress joins it instead of starting another.
func runScheduled(ctx context.Context, expr string, engine cronEngine, job func(context.Context)) error {
	var group singleflight.Group
	runFunc := func() {
		_, _, _ = group.Do("run", func() (any, error) {
			job(ctx)
			return nil, nil
		})
	}
	if _, err := engine.AddFunc(expr, runFunc); err != nil {
		return fmt.Errorf("schedule %q: %w", expr, err)
	}

	if info, err := icron.GetTriggerInfo(expr, time.Now()); err == nil {
		log.Info("Scheduled %q, next run at %s (in %s)",
			expr, info.Next.Format(time.RFC3339), info.TimeUntilNext.Round(time.Second))
	}

	engine.Start()
	<-ctx.Done()
	log.Info("Stopping scheduler")
	select {
	case <-engine.Stop().Done():
	case <-time.After(schedulerStopTimeout):
		log.Warn("Scheduled run still in progress after %s, exiting anyway", schedulerStopTimeout)
	}
	return nil
}

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/MimeLyc/taskagent/internal/config"
	"github.com/MimeLyc/taskagent/internal/llm"
	"github.com/MimeLyc/taskagent/internal/persistence"
)

func runTools(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("tools", flag.ContinueOnError)
	fs.SetOutput(stderr)
	verbose := fs.Bool("v", false, "print full parameter contracts")
	if err := fs.Parse(args); err != nil {
		return exitFailure
	}

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(stderr, "config: %v\n", err)
		return exitFailure
	}
	cfg.Store.Path = config.Disabled
	a, err := newApp(cfg)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitFailure
	}
	defer a.Close()

	if *verbose {
		fmt.Fprintln(stdout, a.registry.Describe())
		return exitOK
	}
	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	for _, spec := range a.registry.Specs() {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", spec.Name, strings.Join(spec.ParamNames(), ","), firstLine(spec.Description))
	}
	_ = tw.Flush()
	return exitOK
}

func runRuns(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	fs.SetOutput(stderr)
	id := fs.String("id", "", "show one run with its actions")
	limit := fs.Int("limit", 20, "number of runs to list, 0 for all")
	if err := fs.Parse(args); err != nil {
		return exitFailure
	}

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(stderr, "config: %v\n", err)
		return exitFailure
	}
	if !cfg.Store.Enabled() {
		fmt.Fprintln(stderr, "run store is disabled (STORE_PATH=off)")
		return exitFailure
	}
	store, err := persistence.NewSQLiteStore(cfg.Store.Path)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitFailure
	}
	defer store.Close()

	if *id != "" {
		return showRun(ctx, store, *id, stdout, stderr)
	}
	return listRuns(ctx, store, *limit, stdout, stderr)
}

func listRuns(ctx context.Context, store *persistence.SQLiteStore, limit int, stdout, stderr io.Writer) int {
	runs, err := store.ListRuns(ctx, limit)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitFailure
	}
	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTARTED\tSTATUS\tOUTCOME\tSTEPS\tTASK")
	for _, run := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d/%d\t%s\n",
			run.ID, run.StartedAt.Local().Format(time.DateTime), run.Status, run.Outcome,
			run.Steps, run.MaxSteps, firstLine(run.Task))
	}
	_ = tw.Flush()
	return exitOK
}

func showRun(ctx context.Context, store *persistence.SQLiteStore, id string, stdout, stderr io.Writer) int {
	run, ok, err := store.LoadRun(ctx, id)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitFailure
	}
	if !ok {
		fmt.Fprintf(stderr, "run %s not found\n", id)
		return exitFailure
	}
	actions, err := store.LoadActions(ctx, id)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitFailure
	}

	fmt.Fprintf(stdout, "Run:     %s\nTask:    %s\nStatus:  %s %s\nSteps:   %d/%d\n",
		run.ID, run.Task, run.Status, run.Outcome, run.Steps, run.MaxSteps)
	if run.AnswerJSON != "" {
		fmt.Fprintf(stdout, "Answer:  %s\n", run.AnswerJSON)
	}
	if run.Error != "" {
		fmt.Fprintf(stdout, "Error:   %s\n", run.Error)
	}
	if run.Plan != "" {
		fmt.Fprintf(stdout, "\nPlan:\n%s\n", run.Plan)
	}
	for _, action := range actions {
		status := "ok"
		if action.IsError {
			status = "error"
		}
		fmt.Fprintf(stdout, "\n[%d] %s %s (%s)\n  result: %s\n",
			action.Step, action.Name, action.PayloadJSON, status, firstLine(action.Result))
		if action.Reflection != "" {
			fmt.Fprintf(stdout, "  reflection: %s\n", firstLine(action.Reflection))
		}
	}
	return exitOK
}

func runModels(ctx context.Context, stdout, stderr io.Writer) int {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(stderr, "config: %v\n", err)
		return exitFailure
	}
	client, err := llm.NewClient(cfg.LLM.ClientConfig())
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitFailure
	}
	models, err := client.GetModels(ctx)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitFailure
	}
	for _, m := range models {
		marker := " "
		if m.ID == cfg.LLM.Model {
			marker = "*"
		}
		fmt.Fprintf(stdout, "%s %s\n", marker, m.ID)
	}
	return exitOK
}

func runSettings(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("settings", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var next config.RuntimeSettings
	fs.StringVar(&next.LLMAPIURL, "url", "", "LLM API URL")
	fs.StringVar(&next.LLMAPIKey, "key", "", "LLM API key")
	fs.StringVar(&next.LLMModel, "model", "", "LLM model")
	fs.StringVar(&next.CronExpr, "cron", "", "cron expression used by run -schedule")
	fs.IntVar(&next.MaxSteps, "max-steps", 0, "default step budget")
	if err := fs.Parse(args); err != nil {
		return exitFailure
	}

	path := config.RuntimeSettingsFilePath()
	current, _, err := config.LoadRuntimeSettingsFile(path)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitFailure
	}
	merged := current.Merge(next)
	if err := config.WriteRuntimeSettingsFile(path, merged); err != nil {
		fmt.Fprintln(stderr, err)
		return exitFailure
	}

	fmt.Fprintf(stdout, "Saved %s\n", path)
	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "llm_api_url\t%s\n", merged.LLMAPIURL)
	fmt.Fprintf(tw, "llm_api_key\t%s\n", redact(merged.LLMAPIKey))
	fmt.Fprintf(tw, "llm_model\t%s\n", merged.LLMModel)
	fmt.Fprintf(tw, "cron_expr\t%s\n", merged.CronExpr)
	fmt.Fprintf(tw, "max_steps\t%d\n", merged.MaxSteps)
	_ = tw.Flush()
	return exitOK
}

func redact(secret string) string {
	if len(secret) <= 4 {
		return strings.Repeat("*", len(secret))
	}
	return strings.Repeat("*", len(secret)-4) + secret[len(secret)-4:]
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

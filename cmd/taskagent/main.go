package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/MimeLyc/taskagent/pkg/log"
)

// Process exit codes
const (
	exitOK              = 0
	exitFailure         = 1
	exitBudgetExhausted = 2
)

func main() {
	log.InitLogger(log.ParseLevel(os.Getenv("LOG_LEVEL")))
	log.GetLogger().SetOutput(os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		printUsage(stderr)
		return exitFailure
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "run":
		return runTask(ctx, rest, stdout, stderr)
	case "batch":
		return runBatch(ctx, rest, stdout, stderr)
	case "tools":
		return runTools(rest, stdout, stderr)
	case "runs":
		return runRuns(ctx, rest, stdout, stderr)
	case "settings":
		return runSettings(rest, stdout, stderr)
	case "models":
		return runModels(ctx, stdout, stderr)
	case "help", "-h", "--help":
		printUsage(stdout)
		return exitOK
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n", cmd)
		printUsage(stderr)
		return exitFailure
	}
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `Usage: taskagent <command> [flags]

Commands:
  run       Run the agent on a task (-task "..." [-max-steps N] [-image path] [-report-task NAME] [-schedule EXPR])
  batch     Apply one tool to every file in a directory (-dir D -tool NAME [-isolate] [-ext .txt])
  tools     List registered tools and their parameters
  runs      List journaled runs or show one (-id RUN)
  settings  Save runtime overrides (-model, -url, -key, -cron, -max-steps)
  models    List the models the configured LLM provider offers

Exit codes: 0 final answer, 2 step budget exhausted, 1 failure.
`)
}

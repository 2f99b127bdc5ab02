package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/MimeLyc/taskagent/internal/agent"
	"github.com/MimeLyc/taskagent/pkg/file"
	"github.com/MimeLyc/taskagent/pkg/log"
)

type batchFlags struct {
	dir         string
	tool        string
	param       string
	exts        string
	outExt      string
	isolate     bool
	concurrency int
}

func parseBatchFlags(args []string, stderr io.Writer) (*batchFlags, error) {
	fs := flag.NewFlagSet("batch", flag.ContinueOnError)
	fs.SetOutput(stderr)

	f := &batchFlags{}
	fs.StringVar(&f.dir, "dir", "", "directory whose files are processed (required)")
	fs.StringVar(&f.tool, "tool", "", "tool applied to every file (required)")
	fs.StringVar(&f.param, "param", "path", "tool parameter that receives the file path")
	fs.StringVar(&f.exts, "ext", "", "comma separated extensions to include, e.g. .png,.jpg")
	fs.StringVar(&f.outExt, "out-ext", ".out.txt", "extension of the result file written next to each input")
	fs.BoolVar(&f.isolate, "isolate", false, "keep going when a file fails")
	fs.IntVar(&f.concurrency, "concurrency", 0, "files in flight, overrides AGENT_FANOUT_CONCURRENCY")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if f.dir == "" || f.tool == "" {
		return nil, fmt.Errorf("-dir and -tool are required")
	}
	return f, nil
}

func runBatch(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	f, err := parseBatchFlags(args, stderr)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitFailure
	}
	cfg, err := loadConfig()
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

	if f.concurrency <= 0 {
		f.concurrency = cfg.Agent.FanOutConcurrency
	}
	return a.batch(ctx, f, stdout)
}

// batch applies one tool to every matching file and writes each result next to its input
func (a *app) batch(ctx context.Context, f *batchFlags, stdout io.Writer) int {
	tool, err := a.registry.Resolve(f.tool)
	if err != nil {
		log.Error("%v", err)
		return exitFailure
	}

	inputs, err := file.ListFiles(f.dir, splitList(f.exts)...)
	if err != nil {
		log.Error("%v", err)
		return exitFailure
	}
	if len(inputs) == 0 {
		fmt.Fprintf(stdout, "No files to process in %s\n", f.dir)
		return exitOK
	}
	log.Info("Running %s on %d files", f.tool, len(inputs))

	outcomes, err := agent.FanOut(ctx, inputs, agent.ToolTask(tool, f.param), agent.FanOutOptions{
		Isolate:     f.isolate,
		Concurrency: f.concurrency,
	})

	failed := 0
	for _, out := range outcomes {
		if out.Err != nil {
			failed++
			fmt.Fprintf(stdout, "FAIL %s: %v\n", out.Input, out.Err)
			continue
		}
		target := file.ReplaceExt(out.Input, f.outExt)
		if werr := os.WriteFile(target, []byte(out.Result.Content), 0o644); werr != nil {
			failed++
			fmt.Fprintf(stdout, "FAIL %s: %v\n", out.Input, werr)
			continue
		}
		fmt.Fprintf(stdout, "OK   %s -> %s\n", out.Input, target)
	}
	fmt.Fprintf(stdout, "%d of %d files processed\n", len(outcomes)-failed, len(outcomes))

	if err != nil {
		log.Error("Batch stopped: %v", err)
		return exitFailure
	}
	if failed > 0 {
		return exitFailure
	}
	return exitOK
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

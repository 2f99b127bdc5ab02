package metrics

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MimeLyc/taskagent/internal/agent"
	"github.com/MimeLyc/taskagent/internal/tools"
)

var _ agent.Metrics = (*Recorder)(nil)

func TestRecorder_Counts(t *testing.T) {
	r := NewRecorder()

	r.ObserveTool("echo", time.Millisecond, tools.ToolResult{Content: "ok"}, nil)
	r.ObserveTool("echo", time.Millisecond, tools.ToolResult{IsError: true}, nil)
	r.ObserveTool("broken", time.Millisecond, tools.ToolResult{}, errors.New("boom"))
	r.ObserveRun(agent.OutcomeFinalAnswer, 3, 2*time.Second)
	r.ObserveRun(agent.OutcomeAborted, 1, time.Second)

	var buf bytes.Buffer
	require.NoError(t, r.WritePrometheus(&buf))
	out := buf.String()

	for _, want := range []string{
		`taskagent_tool_calls_total{result="ok",tool="echo"} 1`,
		`taskagent_tool_calls_total{result="tool_error",tool="echo"} 1`,
		`taskagent_tool_calls_total{result="failed",tool="broken"} 1`,
		`taskagent_runs_total{outcome="final_answer"} 1`,
		`taskagent_runs_total{outcome="aborted"} 1`,
		`taskagent_tool_duration_seconds_count{tool="echo"} 2`,
		`taskagent_run_steps_count 2`,
	} {
		assert.Contains(t, out, want)
	}
}

func TestRecorder_WritePrometheus(t *testing.T) {
	r := NewRecorder()
	r.ObserveStage(agent.PhasePlanning, 150*time.Millisecond, nil)
	r.ObserveStage(agent.PhaseDeciding, time.Second, errors.New("timeout"))

	var buf bytes.Buffer
	require.NoError(t, r.WritePrometheus(&buf))

	out := buf.String()
	assert.Contains(t, out, "# TYPE taskagent_stage_duration_seconds histogram")
	assert.Contains(t, out, `taskagent_stage_duration_seconds_count{stage="PLANNING",status="ok"} 1`)
	assert.Contains(t, out, `taskagent_stage_duration_seconds_count{stage="DECIDING",status="error"} 1`)
}

func TestRecorder_WriteFile(t *testing.T) {
	r := NewRecorder()
	r.ObserveRun(agent.OutcomeBudgetExhausted, 10, time.Minute)

	path := filepath.Join(t.TempDir(), "metrics.prom")
	require.NoError(t, r.WriteFile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `taskagent_runs_total{outcome="budget_exhausted"} 1`)
}

package agent

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/MimeLyc/taskagent/internal/llm"
	"github.com/MimeLyc/taskagent/internal/tools"
)

// System prompt prefixes identifying each stage's gateway call
const (
	planStage     = "As master planner"
	decideStage   = "As a strategist"
	describeStage = "Your only task"
	reflectStage  = "Reflect on"
)

type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) Complete(ctx context.Context, messages []llm.Message, opts *llm.ChatCompletionOptions) (string, error) {
	args := m.Called(ctx, messages, opts)
	return args.String(0), args.Error(1)
}

func isStage(prefix string) any {
	return mock.MatchedBy(func(o *llm.ChatCompletionOptions) bool {
		return strings.HasPrefix(o.SystemPrompt, prefix)
	})
}

func (m *mockGateway) expect(stage, out string) *mock.Call {
	return m.On("Complete", mock.Anything, mock.Anything, isStage(stage)).Return(out, nil).Once()
}

func (m *mockGateway) fail(stage string, err error) *mock.Call {
	return m.On("Complete", mock.Anything, mock.Anything, isStage(stage)).Return("", err).Once()
}

// step scripts one full iteration without reflection
func (m *mockGateway) step(tool, payload string) {
	m.expect(planStage, "Use "+tool+".\n- "+tool+": do it")
	m.expect(decideStage, `{"_thoughts": "next", "tool": "`+tool+`"}`)
	m.expect(describeStage, payload)
}

type testTools struct {
	registry *tools.Registry
	echoRuns atomic.Int32
}

func newTestTools(t *testing.T) *testTools {
	t.Helper()
	tt := &testTools{registry: tools.NewRegistry()}

	require.NoError(t, tt.registry.Register(tools.NewFinalAnswerTool(tools.DefaultTerminalTool)))
	require.NoError(t, tt.registry.RegisterFunc(tools.Spec{
		Name:        "echo",
		Description: "Echoes text",
		Required:    map[string]string{"text": "Text to echo"},
	}, func(_ context.Context, p tools.Payload) (tools.ToolResult, error) {
		tt.echoRuns.Add(1)
		return tools.ToolResult{Content: p.String("text")}, nil
	}))
	require.NoError(t, tt.registry.RegisterFunc(tools.Spec{
		Name:        "flaky",
		Description: "Always reports a recoverable error",
	}, func(context.Context, tools.Payload) (tools.ToolResult, error) {
		return tools.Errorf("backend said no"), nil
	}))
	require.NoError(t, tt.registry.RegisterFunc(tools.Spec{
		Name:        "broken",
		Description: "Always fails hard",
	}, func(context.Context, tools.Payload) (tools.ToolResult, error) {
		return tools.ToolResult{}, errBroken
	}))
	require.NoError(t, tt.registry.Register(tools.NewAPICallTool(0)))
	return tt
}

type recordingObserver struct {
	NopObserver
	phases    []Phase
	actions   []string
	reflected int
	started   int
	finished  *AgentResult
}

func (r *recordingObserver) RunStarted(*State) { r.started++ }

func (r *recordingObserver) PhaseChanged(_ *State, p Phase) { r.phases = append(r.phases, p) }

func (r *recordingObserver) ActionRecorded(_ *State, a *ActionRecord) {
	r.actions = append(r.actions, a.Name)
}

func (r *recordingObserver) ActionReflected(*State, *ActionRecord) { r.reflected++ }

func (r *recordingObserver) RunFinished(_ *State, res *AgentResult) { r.finished = res }

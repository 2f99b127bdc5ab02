package persistence

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MimeLyc/taskagent/internal/agent"
	"github.com/MimeLyc/taskagent/internal/tools"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "data", "taskagent.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStore_RunRoundTrip(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()
	started := time.Now().UTC().Truncate(time.Millisecond)

	require.NoError(t, store.UpsertRun(ctx, RunRecord{
		ID:        "run-1",
		Task:      "find the capital",
		Status:    StatusRunning,
		MaxSteps:  5,
		StartedAt: started,
	}))

	run, ok, err := store.LoadRun(ctx, "run-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, StatusRunning, run.Status)
	assert.True(t, run.FinishedAt.IsZero())

	require.NoError(t, store.UpsertRun(ctx, RunRecord{
		ID:         "run-1",
		Task:       "ignored on update",
		Status:     StatusFinished,
		Outcome:    "final_answer",
		AnswerJSON: `"Paris"`,
		Steps:      2,
		MaxSteps:   5,
		Plan:       "- final_answer: Paris",
		FinishedAt: started.Add(time.Second),
	}))

	run, ok, err = store.LoadRun(ctx, "run-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "find the capital", run.Task)
	assert.Equal(t, StatusFinished, run.Status)
	assert.Equal(t, `"Paris"`, run.AnswerJSON)
	assert.Equal(t, 2, run.Steps)
	assert.True(t, run.StartedAt.Equal(started))
	assert.True(t, run.FinishedAt.Equal(started.Add(time.Second)))

	_, ok, err = store.LoadRun(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSQLiteStore_Actions(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.UpsertRun(ctx, RunRecord{ID: "run-1", Task: "t", Status: StatusRunning}))

	require.NoError(t, store.AppendAction(ctx, ActionRow{RunID: "run-1", Step: 2, Name: "final_answer", PayloadJSON: `{"answer":"x"}`, Result: "x"}))
	require.NoError(t, store.AppendAction(ctx, ActionRow{RunID: "run-1", Step: 1, Name: "echo", PayloadJSON: `{"text":"x"}`, Result: "boom", IsError: true}))
	assert.Error(t, store.AppendAction(ctx, ActionRow{RunID: "run-1", Step: 1, Name: "echo", PayloadJSON: `{}`}))

	require.NoError(t, store.UpdateReflection(ctx, "run-1", 1, "echo failed"))
	assert.Error(t, store.UpdateReflection(ctx, "run-1", 9, "nothing there"))

	actions, err := store.LoadActions(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, actions, 2)
	assert.Equal(t, "echo", actions[0].Name)
	assert.True(t, actions[0].IsError)
	assert.Equal(t, "echo failed", actions[0].Reflection)
	assert.Equal(t, "final_answer", actions[1].Name)
	assert.False(t, actions[1].IsError)
}

func TestSQLiteStore_ListRunsNewestFirst(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()
	base := time.Now().UTC()
	for i, id := range []string{"run-a", "run-b", "run-c"} {
		require.NoError(t, store.UpsertRun(ctx, RunRecord{
			ID:        id,
			Task:      id,
			Status:    StatusFinished,
			StartedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	runs, err := store.ListRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-c", runs[0].ID)
	assert.Equal(t, "run-b", runs[1].ID)

	all, err := store.ListRuns(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestSQLiteStore_ReopenKeepsData(t *testing.T) {
	t.Parallel()

	dbPath := filepath.Join(t.TempDir(), "taskagent.db")
	store, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	require.NoError(t, store.UpsertRun(context.Background(), RunRecord{ID: "run-1", Task: "t", Status: StatusRunning}))
	require.NoError(t, store.Close())

	store, err = NewSQLiteStore(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	_, ok, err := store.LoadRun(context.Background(), "run-1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestNewSQLiteStore_RequiresPath(t *testing.T) {
	_, err := NewSQLiteStore("  ")
	assert.Error(t, err)
}

func TestMigrationVersion(t *testing.T) {
	assert.Equal(t, 1, migrationVersion("001_init.sql"))
	assert.Equal(t, 12, migrationVersion("012"))
	assert.Equal(t, 0, migrationVersion("init.sql"))
}

func TestRunObserver(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	obs := NewRunObserver(store)

	s, err := agent.NewState("say hi", 3)
	require.NoError(t, err)
	obs.RunStarted(s)

	action := &agent.ActionRecord{
		Step:      1,
		Name:      "echo",
		Payload:   tools.NewPayload(map[string]any{"text": "hi"}),
		Result:    tools.ToolResult{Content: "hi"},
		Timestamp: time.Now(),
	}
	s.Actions = append(s.Actions, action)
	obs.ActionRecorded(s, action)
	action.Reflection = "said hi"
	obs.ActionReflected(s, action)

	obs.RunFinished(s, &agent.AgentResult{
		RunID:      s.RunID,
		Outcome:    agent.OutcomeFinalAnswer,
		Answer:     map[string]any{"greeting": "hi"},
		Steps:      2,
		StartedAt:  time.Now().Add(-time.Second),
		FinishedAt: time.Now(),
	})

	run, ok, err := store.LoadRun(context.Background(), s.RunID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, StatusFinished, run.Status)
	assert.Equal(t, "final_answer", run.Outcome)
	assert.JSONEq(t, `{"greeting":"hi"}`, run.AnswerJSON)
	assert.Equal(t, 3, run.MaxSteps)

	actions, err := store.LoadActions(context.Background(), s.RunID)
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.JSONEq(t, `{"text":"hi"}`, actions[0].PayloadJSON)
	assert.Equal(t, "said hi", actions[0].Reflection)
}

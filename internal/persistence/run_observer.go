package persistence

import (
	"context"
	"encoding/json"
	"time"

	"github.com/MimeLyc/taskagent/internal/agent"
	"github.com/MimeLyc/taskagent/pkg/log"
)

const writeTimeout = 5 * time.Second

// RunObserver journals runs and their actions to the store.
// Write failures are logged and never interrupt the run.
type RunObserver struct {
	agent.NopObserver
	store *SQLiteStore
}

func NewRunObserver(store *SQLiteStore) *RunObserver {
	return &RunObserver{store: store}
}

func (o *RunObserver) RunStarted(s *agent.State) {
	o.write("start run", func(ctx context.Context) error {
		return o.store.UpsertRun(ctx, RunRecord{
			ID:        s.RunID,
			Task:      s.Task,
			Status:    StatusRunning,
			MaxSteps:  s.MaxSteps,
			StartedAt: time.Now(),
		})
	})
}

func (o *RunObserver) ActionRecorded(s *agent.State, a *agent.ActionRecord) {
	o.write("append action", func(ctx context.Context) error {
		return o.store.AppendAction(ctx, ActionRow{
			RunID:       s.RunID,
			Step:        a.Step,
			Name:        a.Name,
			PayloadJSON: a.Payload.JSON(),
			Result:      a.Result.Content,
			IsError:     a.Result.IsError,
			CreatedAt:   a.Timestamp,
		})
	})
}

func (o *RunObserver) ActionReflected(s *agent.State, a *agent.ActionRecord) {
	o.write("update reflection", func(ctx context.Context) error {
		return o.store.UpdateReflection(ctx, s.RunID, a.Step, a.Reflection)
	})
}

func (o *RunObserver) RunFinished(s *agent.State, r *agent.AgentResult) {
	run := RunRecord{
		ID:         r.RunID,
		Task:       s.Task,
		Status:     StatusFinished,
		Outcome:    r.Outcome.String(),
		Steps:      r.Steps,
		MaxSteps:   s.MaxSteps,
		Plan:       r.Plan,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
	}
	if r.Answer != nil {
		if data, err := json.Marshal(r.Answer); err == nil {
			run.AnswerJSON = string(data)
		}
	}
	if r.Err != nil {
		run.Error = r.Err.Error()
	}
	o.write("finish run", func(ctx context.Context) error {
		return o.store.UpsertRun(ctx, run)
	})
}

func (o *RunObserver) write(what string, fn func(ctx context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := fn(ctx); err != nil {
		log.Warn("Run journal: failed to %s: %v", what, err)
	}
}

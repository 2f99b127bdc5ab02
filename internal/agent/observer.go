package agent

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/MimeLyc/taskagent/pkg/log"
)

// Observer receives loop events. Calls are made synchronously from the loop
// goroutine; implementations must not block for long or mutate the state.
type Observer interface {
	RunStarted(s *State)
	PhaseChanged(s *State, phase Phase)
	ActionRecorded(s *State, a *ActionRecord)
	ActionReflected(s *State, a *ActionRecord)
	RunFinished(s *State, r *AgentResult)
}

// NopObserver ignores every event. Embed it to implement a subset.
type NopObserver struct{}

func (NopObserver) RunStarted(*State)                     {}
func (NopObserver) PhaseChanged(*State, Phase)            {}
func (NopObserver) ActionRecorded(*State, *ActionRecord)  {}
func (NopObserver) ActionReflected(*State, *ActionRecord) {}
func (NopObserver) RunFinished(*State, *AgentResult)      {}

// Observers forwards every event to each observer in order
type Observers []Observer

func (o Observers) RunStarted(s *State) {
	for _, obs := range o {
		obs.RunStarted(s)
	}
}

func (o Observers) PhaseChanged(s *State, phase Phase) {
	for _, obs := range o {
		obs.PhaseChanged(s, phase)
	}
}

func (o Observers) ActionRecorded(s *State, a *ActionRecord) {
	for _, obs := range o {
		obs.ActionRecorded(s, a)
	}
}

func (o Observers) ActionReflected(s *State, a *ActionRecord) {
	for _, obs := range o {
		obs.ActionReflected(s, a)
	}
}

func (o Observers) RunFinished(s *State, r *AgentResult) {
	for _, obs := range o {
		obs.RunFinished(s, r)
	}
}

// MarkdownJournal appends a human readable trace of each run to a markdown file
type MarkdownJournal struct {
	NopObserver

	mu   sync.Mutex
	file *os.File
}

// NewMarkdownJournal opens path for appending, creating parent directories
func NewMarkdownJournal(path string) (*MarkdownJournal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create journal directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	return &MarkdownJournal{file: f}, nil
}

func (j *MarkdownJournal) RunStarted(s *State) {
	j.write("# Task\n\n%s\n\n_run %s, budget %d steps_\n\n", s.Task, s.RunID, s.MaxSteps)
}

// PhaseChanged records the plan once planning is over and the tool once a decision is made
func (j *MarkdownJournal) PhaseChanged(s *State, phase Phase) {
	switch phase {
	case PhaseDeciding:
		j.write("# Planning\n\n%s\n\n", s.Plan)
	case PhaseDescribing:
		if s.ActiveTool != nil {
			j.write("## Decide\n\nNext move: %s\n\n", s.ActiveTool.Name)
		}
	}
}

func (j *MarkdownJournal) ActionRecorded(_ *State, a *ActionRecord) {
	status := ""
	if a.Result.IsError {
		status = " (error)"
	}
	j.write("## Describe\n\n```json\n%s\n```\n\n### Execution%s\n\n```\n%s\n```\n\n",
		a.Payload.JSON(), status, strings.TrimRight(a.Result.Content, "\n"))
}

func (j *MarkdownJournal) ActionReflected(_ *State, a *ActionRecord) {
	j.write("# Reflection\n\n%s\n\n", a.Reflection)
}

func (j *MarkdownJournal) RunFinished(_ *State, r *AgentResult) {
	switch r.Outcome {
	case OutcomeFinalAnswer:
		j.write("# Final answer\n\n%s\n\n---\n\n", r.AnswerText())
	default:
		j.write("# Finished: %s\n\n%v\n\n---\n\n", r.Outcome, r.Err)
	}
}

// Close closes the journal file
func (j *MarkdownJournal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.file == nil {
		return nil
	}
	err := j.file.Close()
	j.file = nil
	return err
}

func (j *MarkdownJournal) write(format string, args ...any) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.file == nil {
		return
	}
	if _, err := fmt.Fprintf(j.file, format, args...); err != nil {
		log.Warn("Failed to write journal: %v", err)
	}
}

package agent

import (
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/text/language"

	"github.com/MimeLyc/taskagent/internal/llm"
	"github.com/MimeLyc/taskagent/internal/tools"
)

// State is the mutable state of one run. It is owned by the loop driver
// and must not be shared across runs.
type State struct {
	RunID       string
	Task        string
	Done        bool
	MaxSteps    int
	CurrentStep int
	Phase       Phase
	Plan        string
	Messages    []llm.Message
	Actions     []*ActionRecord

	// ActiveTool and ActiveToolPayload hold the current iteration's decision
	ActiveTool        *tools.Spec
	ActiveToolPayload *tools.Payload

	// Language is the detected language of the task
	Language language.Tag
}

// NewState creates the initial state for a task
func NewState(task string, maxSteps int) (*State, error) {
	if maxSteps <= 0 {
		return nil, fmt.Errorf("max steps must be greater than 0, got %d", maxSteps)
	}
	return &State{
		RunID:       "run-" + uuid.NewString(),
		Task:        task,
		MaxSteps:    maxSteps,
		CurrentStep: 1,
		Phase:       PhasePlanning,
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: task}},
		Actions:     make([]*ActionRecord, 0, maxSteps),
		Language:    DetectLanguage(task),
	}, nil
}

// Attach adds files to the task message as multimodal parts
func (s *State) Attach(files ...llm.File) error {
	if len(files) == 0 {
		return nil
	}
	msg := &s.Messages[0]
	if len(msg.Parts) == 0 {
		msg.Parts = []llm.ContentPart{llm.TextPart(msg.Content)}
	}
	for _, f := range files {
		part, err := f.ToContentPart()
		if err != nil {
			return fmt.Errorf("attach %s: %w", f.Name, err)
		}
		msg.Parts = append(msg.Parts, part)
	}
	return nil
}

// LastAction returns the most recent action or nil
func (s *State) LastAction() *ActionRecord {
	if len(s.Actions) == 0 {
		return nil
	}
	return s.Actions[len(s.Actions)-1]
}

// BudgetExhausted reports whether no iteration is left
func (s *State) BudgetExhausted() bool {
	return s.CurrentStep > s.MaxSteps
}

func (s *State) clearActive() {
	s.ActiveTool = nil
	s.ActiveToolPayload = nil
}

func (s *State) actionsSnapshot() []ActionRecord {
	out := make([]ActionRecord, len(s.Actions))
	for i, a := range s.Actions {
		out[i] = *a
	}
	return out
}

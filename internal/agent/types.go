package agent

import (
	"time"

	"github.com/MimeLyc/taskagent/internal/llm"
	"github.com/MimeLyc/taskagent/internal/tools"
)

// Phase is a stage of the agent loop
type Phase int

const (
	PhasePlanning Phase = iota
	PhaseDeciding
	PhaseDescribing
	PhaseExecuting
	PhaseReflecting
	PhaseDone
)

func (p Phase) String() string {
	switch p {
	case PhasePlanning:
		return "PLANNING"
	case PhaseDeciding:
		return "DECIDING"
	case PhaseDescribing:
		return "DESCRIBING"
	case PhaseExecuting:
		return "EXECUTING"
	case PhaseReflecting:
		return "REFLECTING"
	case PhaseDone:
		return "DONE"
	default:
		return "UNKNOWN"
	}
}

// Outcome is how a run ended
type Outcome int

const (
	OutcomeFinalAnswer Outcome = iota
	OutcomeBudgetExhausted
	OutcomeAborted
)

func (o Outcome) String() string {
	switch o {
	case OutcomeFinalAnswer:
		return "final_answer"
	case OutcomeBudgetExhausted:
		return "budget_exhausted"
	case OutcomeAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// AgentRequest represents a request to the agent
type AgentRequest struct {
	// Task is the user's task in natural language
	Task string

	// MaxSteps bounds the number of loop iterations
	// Default: the agent's configured budget
	MaxSteps int

	// Attachments are sent to the model with the task, e.g. images
	Attachments []llm.File
}

// ActionRecord records a single tool execution and the reflection on it
type ActionRecord struct {
	// Step is the loop iteration that produced the action
	Step int `json:"step"`

	// Name is the tool that was called
	Name string `json:"name"`

	// Payload is the validated tool input
	Payload tools.Payload `json:"payload"`

	// Result is the tool output
	Result tools.ToolResult `json:"result"`

	// Reflection is filled in after execution when reflection is enabled
	Reflection string `json:"reflection"`

	Timestamp time.Time `json:"timestamp"`
}

// AgentResult represents the result from an agent execution
type AgentResult struct {
	RunID   string
	Outcome Outcome

	// Answer is the terminal tool's answer parameter, nil unless Outcome is OutcomeFinalAnswer
	Answer any

	Plan    string
	Actions []ActionRecord

	// Steps is the number of loop iterations completed by this run of the loop
	Steps int

	// Err is ErrStepBudgetExhausted or an *Error for aborted runs
	Err error

	StartedAt  time.Time
	FinishedAt time.Time
}

// Duration returns the wall time of the run
func (r *AgentResult) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// AnswerText renders the answer as text
func (r *AgentResult) AnswerText() string {
	if r.Answer == nil {
		return ""
	}
	p := tools.NewPayload(map[string]any{"answer": r.Answer})
	return p.String("answer")
}

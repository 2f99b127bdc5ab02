package agent

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/MimeLyc/taskagent/pkg/log"
)

// ErrStepBudgetExhausted is returned when a run hits MaxSteps without a final answer
var ErrStepBudgetExhausted = errors.New("step budget exhausted without a final answer")

type ErrorKind int

const (
	KindPlanning ErrorKind = iota
	KindDecision
	KindInvalidToolSelection
	KindPayloadParse
	KindMissingRequiredParameter
	KindDescriber
	KindToolExecution
	KindUnknownTool
	KindDuplicateTool
)

func (k ErrorKind) String() string {
	switch k {
	case KindPlanning:
		return "Planning"
	case KindDecision:
		return "Decision"
	case KindInvalidToolSelection:
		return "InvalidToolSelection"
	case KindPayloadParse:
		return "PayloadParse"
	case KindMissingRequiredParameter:
		return "MissingRequiredParameter"
	case KindDescriber:
		return "Describer"
	case KindToolExecution:
		return "ToolExecution"
	case KindUnknownTool:
		return "UnknownTool"
	case KindDuplicateTool:
		return "DuplicateTool"
	default:
		return "Unknown"
	}
}

// Error is a stage failure that aborted a run
type Error struct {
	Kind    ErrorKind
	Stage   Phase
	Message string
	Context map[string]any
	Cause   error
}

func NewError(kind ErrorKind, stage Phase, message string) *Error {
	return &Error{
		Kind:    kind,
		Stage:   stage,
		Message: message,
		Context: make(map[string]any),
	}
}

func NewErrorWithCause(kind ErrorKind, stage Phase, message string, cause error) *Error {
	e := NewError(kind, stage, message)
	e.Cause = cause
	return e
}

func (e *Error) Error() string {
	var parts []string
	parts = append(parts, fmt.Sprintf("[%s] %s: %s", e.Kind.String(), e.Stage.String(), e.Message))

	if len(e.Context) > 0 {
		keys := make([]string, 0, len(e.Context))
		for k := range e.Context {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		var ctxParts []string
		for _, k := range keys {
			ctxParts = append(ctxParts, fmt.Sprintf("%s=%v", k, e.Context[k]))
		}
		parts = append(parts, fmt.Sprintf("context: %s", strings.Join(ctxParts, ", ")))
	}

	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("cause: %v", e.Cause))
	}

	return strings.Join(parts, " | ")
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func (e *Error) WithContext(key string, value any) *Error {
	e.Context[key] = value
	return e
}

// IsKind reports whether err is an *Error of the given kind
func IsKind(err error, kind ErrorKind) bool {
	var agentErr *Error
	if errors.As(err, &agentErr) {
		return agentErr.Kind == kind
	}
	return false
}

// KindOf returns the kind of an *Error in err's chain
func KindOf(err error) (ErrorKind, bool) {
	var agentErr *Error
	if errors.As(err, &agentErr) {
		return agentErr.Kind, true
	}
	return 0, false
}

// Advice returns a short operator hint for an aborted run
func Advice(err error) string {
	if errors.Is(err, ErrStepBudgetExhausted) {
		return "Raise AGENT_MAX_STEPS or make the task more specific"
	}
	kind, ok := KindOf(err)
	if !ok {
		return "Review the error details and the run journal"
	}
	switch kind {
	case KindPlanning, KindDecision, KindDescriber:
		return "Check the model gateway: API key, URL, model name and AGENT_STAGE_TIMEOUT"
	case KindInvalidToolSelection, KindUnknownTool:
		return "The model picked a tool that is not registered; check the tool list and the decision prompt"
	case KindPayloadParse:
		return "The model did not answer with a single JSON object; try a model with JSON mode support"
	case KindMissingRequiredParameter:
		return "The model left out required tool parameters; make the tool description clearer"
	case KindToolExecution:
		return "A tool failed hard; check its backend and the environment variables it needs"
	case KindDuplicateTool:
		return "Two tools share a name; rename one in the manifest"
	default:
		return "Review the error details and the run journal"
	}
}

// LogFailure logs an aborted run with operator advice
func LogFailure(err error) {
	if err == nil {
		return
	}
	log.Error("Run failed: %v\n advice: %s", err, Advice(err))
}

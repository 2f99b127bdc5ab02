package agent

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/MimeLyc/taskagent/internal/tools"
)

func TestError_Format(t *testing.T) {
	err := NewErrorWithCause(KindDescriber, PhaseDescribing, "gateway call failed", errors.New("503")).
		WithContext("tool", "echo").
		WithContext("step", 2)

	assert.Equal(t, "[Describer] DESCRIBING: gateway call failed | context: step=2, tool=echo | cause: 503", err.Error())
}

func TestError_UnwrapsBothLayers(t *testing.T) {
	cause := &tools.MissingRequiredParameterError{Tool: "make_api_call", Missing: []string{"url"}}
	err := fmt.Errorf("run: %w", NewErrorWithCause(KindMissingRequiredParameter, PhaseDescribing, "incomplete", cause))

	assert.True(t, IsKind(err, KindMissingRequiredParameter))
	assert.False(t, IsKind(err, KindPlanning))

	var missing *tools.MissingRequiredParameterError
	assert.ErrorAs(t, err, &missing)

	kind, ok := KindOf(err)
	assert.True(t, ok)
	assert.Equal(t, "MissingRequiredParameter", kind.String())

	_, ok = KindOf(errors.New("plain"))
	assert.False(t, ok)
}

func TestAdvice(t *testing.T) {
	assert.Contains(t, Advice(ErrStepBudgetExhausted), "AGENT_MAX_STEPS")
	assert.Contains(t, Advice(NewError(KindPayloadParse, PhaseDeciding, "x")), "JSON")
	assert.Contains(t, Advice(errors.New("other")), "journal")
}

func TestPhaseAndOutcomeNames(t *testing.T) {
	assert.Equal(t, "REFLECTING", PhaseReflecting.String())
	assert.Equal(t, "budget_exhausted", OutcomeBudgetExhausted.String())
}

func TestState(t *testing.T) {
	_, err := NewState("task", 0)
	assert.Error(t, err)

	s, err := NewState("task", 2)
	assert.NoError(t, err)
	assert.Equal(t, 1, s.CurrentStep)
	assert.Nil(t, s.LastAction())
	assert.False(t, s.BudgetExhausted())
	s.CurrentStep = 3
	assert.True(t, s.BudgetExhausted())
}

package nocodetest

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateSteps(t *testing.T) {
	limits := DefaultValidationLimits()

	t.Run("nil steps are allowed", func(t *testing.T) {
		assert.NoError(t, ValidateSteps(nil, limits))
	})

	t.Run("known actions pass", func(t *testing.T) {
		steps := Steps{
			{"action": "navigate", "url": "/"},
			{"action": "fill", "selector": "#email", "value": "a@b.c"},
			{"action": "type", "selector": "#password", "value": "hunter22"},
			{"action": "click", "selector": "#submit"},
			{"action": "assert_text", "selector": "h1", "value": "Welcome"},
			{"action": "screenshot"},
		}
		assert.NoError(t, ValidateSteps(steps, limits))
	})

	t.Run("missing action", func(t *testing.T) {
		steps := Steps{{"selector": "#submit"}}
		assert.ErrorIs(t, ValidateSteps(steps, limits), ErrMissingAction)
	})

	t.Run("empty action", func(t *testing.T) {
		steps := Steps{{"action": ""}}
		assert.ErrorIs(t, ValidateSteps(steps, limits), ErrMissingAction)
	})

	t.Run("non-string action", func(t *testing.T) {
		steps := Steps{{"action": 42}}
		assert.ErrorIs(t, ValidateSteps(steps, limits), ErrMissingAction)
	})

	t.Run("unknown action names the step", func(t *testing.T) {
		steps := Steps{
			{"action": "navigate", "url": "/"},
			{"action": "teleport"},
		}
		err := ValidateSteps(steps, limits)
		assert.ErrorIs(t, err, ErrUnknownAction)
		assert.Contains(t, err.Error(), "step 2")
	})

	t.Run("click without a selector", func(t *testing.T) {
		steps := Steps{{"action": "click"}}
		err := ValidateSteps(steps, limits)
		assert.ErrorIs(t, err, ErrInvalidStep)
		assert.Contains(t, err.Error(), `missing "selector"`)
	})

	t.Run("assert_text without a value", func(t *testing.T) {
		steps := Steps{{"action": "assert_text", "selector": "h1"}}
		err := ValidateSteps(steps, limits)
		assert.ErrorIs(t, err, ErrInvalidStep)
		assert.Contains(t, err.Error(), `missing "value"`)
	})

	t.Run("non-string selector", func(t *testing.T) {
		steps := Steps{{"action": "click", "selector": 7}}
		assert.ErrorIs(t, ValidateSteps(steps, limits), ErrInvalidStep)
	})

	t.Run("too many steps", func(t *testing.T) {
		steps := make(Steps, 0, limits.MaxStepsCount+1)
		for i := 0; i <= limits.MaxStepsCount; i++ {
			steps = append(steps, map[string]interface{}{"action": "click"})
		}
		assert.ErrorIs(t, ValidateSteps(steps, limits), ErrTooManySteps)
	})

	t.Run("oversized payload", func(t *testing.T) {
		tight := ValidationLimits{MaxStepsCount: 10, MaxStepsBytes: 64}
		steps := Steps{{"action": "fill", "selector": "#x", "value": fmt.Sprintf("%0100d", 1)}}
		assert.ErrorIs(t, ValidateSteps(steps, tight), ErrStepsTooLarge)
	})
}

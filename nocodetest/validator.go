package nocodetest

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrTooManySteps is returned when the number of steps exceeds the maximum.
	ErrTooManySteps = errors.New("too many steps")

	// ErrStepsTooLarge is returned when the serialized steps exceed the maximum size.
	ErrStepsTooLarge = errors.New("steps JSON exceeds maximum size")

	// ErrMissingAction is returned when a step has no action field.
	ErrMissingAction = errors.New("step is missing an action")

	// ErrUnknownAction is returned when a step has an unrecognized action.
	ErrUnknownAction = errors.New("unknown step action")

	// ErrInvalidStep is returned when a step lacks a required field or a field
	// has the wrong type.
	ErrInvalidStep = errors.New("invalid step structure")
)

// Known step actions the execution engine understands.
var knownActions = map[string]bool{
	"navigate":    true,
	"click":       true,
	"fill":        true,
	"type":        true,
	"select":      true,
	"hover":       true,
	"press":       true,
	"scroll":      true,
	"wait":        true,
	"assert_text": true,
	"screenshot":  true,
}

// Fields each action cannot run without.
var requiredStepFields = map[string][]string{
	"navigate":    {"url"},
	"click":       {"selector"},
	"hover":       {"selector"},
	"fill":        {"selector", "value"},
	"type":        {"selector", "value"},
	"select":      {"selector", "value"},
	"assert_text": {"selector", "value"},
	"press":       {"key"},
}

// Step fields that must be strings when present.
var stringStepFields = map[string]bool{
	"action":   true,
	"url":      true,
	"selector": true,
	"value":    true,
	"key":      true,
}

// ValidationLimits bounds the step list a test may carry.
type ValidationLimits struct {
	MaxStepsCount int
	MaxStepsBytes int
}

// DefaultValidationLimits returns the default step validation limits.
func DefaultValidationLimits() ValidationLimits {
	return ValidationLimits{
		MaxStepsCount: 200,
		MaxStepsBytes: 50000,
	}
}

// ValidateSteps checks the structure of a step list: count and size limits,
// that every step names a known action, and that each action carries the
// fields it needs.
func ValidateSteps(steps Steps, limits ValidationLimits) error {
	if steps == nil {
		return nil
	}

	if len(steps) > limits.MaxStepsCount {
		return fmt.Errorf("%w: %d steps (max %d)", ErrTooManySteps, len(steps), limits.MaxStepsCount)
	}

	raw, err := json.Marshal(steps)
	if err != nil {
		return fmt.Errorf("failed to marshal steps: %w", err)
	}
	if len(raw) > limits.MaxStepsBytes {
		return fmt.Errorf("%w: %d bytes (max %d)", ErrStepsTooLarge, len(raw), limits.MaxStepsBytes)
	}

	for i, step := range steps {
		action, ok := step["action"].(string)
		if !ok || action == "" {
			return fmt.Errorf("%w: step %d", ErrMissingAction, i+1)
		}
		if !knownActions[action] {
			return fmt.Errorf("%w: step %d action %q", ErrUnknownAction, i+1, action)
		}

		for _, field := range requiredStepFields[action] {
			if _, ok := step[field]; !ok {
				return fmt.Errorf("%w: step %d (%s) missing %q", ErrInvalidStep, i+1, action, field)
			}
		}

		for key, value := range step {
			if !stringStepFields[key] {
				continue
			}
			if _, ok := value.(string); !ok {
				return fmt.Errorf("%w: step %d field %q must be a string", ErrInvalidStep, i+1, key)
			}
		}
	}

	return nil
}

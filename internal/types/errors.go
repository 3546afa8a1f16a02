package types

import (
	"errors"
	"fmt"
)

// ErrExtraction marks a failed or structurally invalid model extraction.
// The extractor wraps it and degrades the turn to Unknown.
var ErrExtraction = errors.New("intent extraction failed")

// PlanningError is an invalid slot combination with nothing to clarify.
type PlanningError struct {
	Intent IntentKind
	Reason string
}

func (e *PlanningError) Error() string {
	return fmt.Sprintf("cannot plan %s: %s", e.Intent, e.Reason)
}

func (*PlanningError) planOutcome() {}

// ExecutionError wraps a store failure for one plan.
type ExecutionError struct {
	Op         OpKind
	Constraint string // violated constraint, if the store reported one
	Err        error
}

func (e *ExecutionError) Error() string {
	if e.Constraint != "" {
		return fmt.Sprintf("%s failed: %s constraint: %v", e.Op, e.Constraint, e.Err)
	}
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// ConfirmationRequiredError is returned when a bulk plan is executed
// without the confirmation signal.
type ConfirmationRequiredError struct {
	Plan *OperationPlan
}

func (e *ConfirmationRequiredError) Error() string {
	return fmt.Sprintf("%s requires confirmation", e.Plan.Op)
}

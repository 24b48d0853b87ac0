package models

// StepOutcomeKind discriminates the result of one handler step.
type StepOutcomeKind string

const (
	StepSuccess StepOutcomeKind = "success"
	// StepSkipped means the step had nothing to do (e.g. its input normalized
	// to zero targets). Distinct from success so control flow stays explicit.
	StepSkipped StepOutcomeKind = "skipped"
	StepFailed  StepOutcomeKind = "failed"
)

// StepOutcome is the explicit result variant handlers pass between steps.
type StepOutcome struct {
	Kind   StepOutcomeKind
	Items  []map[string]interface{}
	Reason string // set for skipped steps
	Err    error  // set for failed steps
}

// Success wraps items in a successful outcome.
func Success(items []map[string]interface{}) StepOutcome {
	return StepOutcome{Kind: StepSuccess, Items: items}
}

// Skip marks a step as intentionally skipped with a reason.
func Skip(reason string) StepOutcome {
	return StepOutcome{Kind: StepSkipped, Reason: reason}
}

// Fail wraps an error in a failed outcome.
func Fail(err error) StepOutcome {
	return StepOutcome{Kind: StepFailed, Err: err}
}

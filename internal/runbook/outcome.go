package runbook

import "github.com/google/uuid"

// OutcomeKind enumerates what a step executor (or the gate's own
// dependency-skip logic) produced for one step.
type OutcomeKind int

const (
	Completed OutcomeKind = iota
	Parked
	Failed
	Skipped
)

// StepOutcome is the result of dispatching one CompiledStep.
type StepOutcome struct {
	Kind OutcomeKind

	Result         any    // Completed
	CorrelationKey string // Parked
	Message        string // Parked
	Error          string // Failed
	Reason         string // Skipped
}

// StepResult pairs a step's identity with its outcome, in the order the
// gate appended it — the unit returned in RunbookExecutionResult.
type StepResult struct {
	StepID  uuid.UUID
	Verb    string
	Outcome StepOutcome
}

package stepexec

import (
	"context"

	"github.com/runbookd/runbookd/internal/runbook"
)

// SuccessExecutor completes every step it is given. Useful as the default
// in tests that only care about gate-level sequencing.
type SuccessExecutor struct{}

func (SuccessExecutor) ExecuteStep(_ context.Context, step *runbook.CompiledStep) runbook.StepOutcome {
	return runbook.StepOutcome{Kind: runbook.Completed, Result: step.Sentence}
}

// FailOnVerb fails any step whose verb matches Verb, completing everything
// else — used to exercise dependency-skip propagation.
type FailOnVerb struct {
	Verb string
}

func (f FailOnVerb) ExecuteStep(_ context.Context, step *runbook.CompiledStep) runbook.StepOutcome {
	if step.Verb == f.Verb {
		return runbook.StepOutcome{Kind: runbook.Failed, Error: "forced failure on " + f.Verb}
	}
	return runbook.StepOutcome{Kind: runbook.Completed, Result: step.Sentence}
}

// ParkOnVerb parks any step whose verb matches Verb with CorrelationKey,
// completing everything else — used to exercise park/resume.
type ParkOnVerb struct {
	Verb           string
	CorrelationKey string
}

func (p ParkOnVerb) ExecuteStep(_ context.Context, step *runbook.CompiledStep) runbook.StepOutcome {
	if step.Verb == p.Verb {
		return runbook.StepOutcome{Kind: runbook.Parked, CorrelationKey: p.CorrelationKey, Message: "awaiting external callback"}
	}
	return runbook.StepOutcome{Kind: runbook.Completed, Result: step.Sentence}
}

// Scripted replays a fixed outcome sequence keyed by verb name, for tests
// that need fine control over the exact outcome each step produces. Verbs
// with no scripted entry default to Completed.
type Scripted struct {
	ByVerb map[string]runbook.StepOutcome
}

func (s Scripted) ExecuteStep(_ context.Context, step *runbook.CompiledStep) runbook.StepOutcome {
	if o, ok := s.ByVerb[step.Verb]; ok {
		return o
	}
	return runbook.StepOutcome{Kind: runbook.Completed, Result: step.Sentence}
}

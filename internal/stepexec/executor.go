// Package stepexec defines the StepExecutor contract the execution gate
// dispatches each compiled step through, plus deterministic in-memory
// implementations used by tests and by the CLI's "exec" dry-run mode.
package stepexec

import (
	"context"

	"github.com/runbookd/runbookd/internal/runbook"
)

// StepExecutor is the sole interface the gate dispatches steps through.
// Implementations must be pure with respect to runbook lifecycle — they
// never mutate a CompiledRunbook's status or write-sets, and must return
// within the host's configured timeout (a timeout surfaces as Failed).
type StepExecutor interface {
	ExecuteStep(ctx context.Context, step *runbook.CompiledStep) runbook.StepOutcome
}

// SignalSink receives SignalEmitted events a step executor chooses to
// raise mid-execution (e.g. a compliance check clearing). The gate does
// not call this itself — only step executors do, via dependency injection.
type SignalSink interface {
	EmitSignal(signal string)
}

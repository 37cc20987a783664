// Package gate implements the execution gate — the sole permitted
// executor of a compiled runbook's steps (INV-3). Nothing outside this
// package ever calls a StepExecutor directly.
package gate

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/runbookd/runbookd/internal/events"
	"github.com/runbookd/runbookd/internal/locks"
	"github.com/runbookd/runbookd/internal/logging"
	"github.com/runbookd/runbookd/internal/metrics"
	"github.com/runbookd/runbookd/internal/observability"
	"github.com/runbookd/runbookd/internal/runbook"
	"github.com/runbookd/runbookd/internal/runstore"
	"github.com/runbookd/runbookd/internal/stepexec"
)

// ErrorKind enumerates the ExecutionError variants.
type ErrorKind int

const (
	NotFound ErrorKind = iota
	NotExecutable
	LockContention
	Database
	StepFailed
)

// ExecutionError is the gate's error type, carrying enough context for
// callers to decide whether to retry (LockContention) or not.
type ExecutionError struct {
	Kind       ErrorKind
	RunbookID  runbook.CompiledRunbookID
	Status     runbook.StatusKind
	EntityType string
	EntityID   string
	Message    string
}

func (e *ExecutionError) Error() string {
	switch e.Kind {
	case NotFound:
		return fmt.Sprintf("gate: runbook %s not found", e.RunbookID)
	case NotExecutable:
		return fmt.Sprintf("gate: runbook %s not executable in status %s", e.RunbookID, e.Status)
	case LockContention:
		return fmt.Sprintf("gate: lock contention on %s/%s", e.EntityType, e.EntityID)
	case Database:
		return fmt.Sprintf("gate: database error: %s", e.Message)
	case StepFailed:
		return fmt.Sprintf("gate: step failed: %s", e.Message)
	default:
		return "gate: unknown error"
	}
}

// Result is what ExecuteRunbook returns on a non-error completion —
// including the Failed and Parked terminal cases, which are not errors.
type Result struct {
	RunbookID   runbook.CompiledRunbookID
	StepResults []runbook.StepResult
	FinalStatus runbook.Status
	ElapsedMs   int64
	LockStats   locks.Stats
}

// ExecuteRunbook is the sole public entry point for running (or resuming)
// a compiled runbook's steps. cursor is nil for a first execution, or the
// cursor from a Parked status for resumption.
func ExecuteRunbook(
	ctx context.Context,
	store runstore.RunbookStore,
	id runbook.CompiledRunbookID,
	cursor *runbook.StepCursor,
	executor stepexec.StepExecutor,
	pool *pgxpool.Pool,
	pipeline *events.Pipeline,
) (*Result, error) {
	return executeRunbook(ctx, store, id, cursor, executor, pool, pipeline, locks.Try)
}

// ExecuteRunbookWithLockMode is ExecuteRunbook with an explicit write-set
// acquisition mode (spec.md §4.6 names both Try and Wait as part of the
// lock service's contract). Try is the default every other caller gets;
// Wait is for callers that would rather block until the lock frees than
// surface LockContention — e.g. the daemon under config.GateConfig.LockMode
// == "wait".
func ExecuteRunbookWithLockMode(
	ctx context.Context,
	store runstore.RunbookStore,
	id runbook.CompiledRunbookID,
	cursor *runbook.StepCursor,
	executor stepexec.StepExecutor,
	pool *pgxpool.Pool,
	pipeline *events.Pipeline,
	lockMode locks.AcquireMode,
) (*Result, error) {
	return executeRunbook(ctx, store, id, cursor, executor, pool, pipeline, lockMode)
}

func executeRunbook(
	ctx context.Context,
	store runstore.RunbookStore,
	id runbook.CompiledRunbookID,
	cursor *runbook.StepCursor,
	executor stepexec.StepExecutor,
	pool *pgxpool.Pool,
	pipeline *events.Pipeline,
	lockMode locks.AcquireMode,
) (*Result, error) {
	start := time.Now()

	rb, err := store.Get(ctx, id)
	if err != nil {
		return nil, &ExecutionError{Kind: NotFound, RunbookID: id}
	}

	if rb.Status.Kind != runbook.StatusCompiled && rb.Status.Kind != runbook.StatusParked {
		return nil, &ExecutionError{Kind: NotExecutable, RunbookID: id, Status: rb.Status.Kind}
	}
	priorStatus := rb.Status

	startIndex := 0
	if cursor != nil {
		startIndex = cursor.Index
	}

	if err := store.UpdateStatus(ctx, id, runbook.Status{Kind: runbook.StatusExecuting, CurrentStep: startIndex}); err != nil {
		return nil, &ExecutionError{Kind: Database, RunbookID: id, Message: err.Error()}
	}

	writeSet := unionWriteSets(rb.Steps[startIndex:])

	var lockStats locks.Stats
	if pool != nil && len(writeSet) > 0 {
		stats, err := acquireWriteSetLocks(ctx, pool, writeSet, lockMode)
		if err != nil {
			_ = store.UpdateStatus(ctx, id, priorStatus)
			var ce *locks.ContentionError
			if asContention(err, &ce) {
				return nil, &ExecutionError{Kind: LockContention, RunbookID: id, EntityType: ce.EntityType, EntityID: ce.ID}
			}
			return nil, &ExecutionError{Kind: Database, RunbookID: id, Message: err.Error()}
		}
		lockStats = stats
	}

	results := make([]runbook.StepResult, 0, len(rb.Steps))
	for i := 0; i < startIndex; i++ {
		results = append(results, runbook.StepResult{
			StepID:  rb.Steps[i].StepID,
			Verb:    rb.Steps[i].Verb,
			Outcome: runbook.StepOutcome{Kind: runbook.Skipped, Reason: "Before resume cursor"},
		})
	}

	failedSteps := make(map[uuid.UUID]bool)
	var finalStatus runbook.Status

	for i := startIndex; i < len(rb.Steps); i++ {
		step := rb.Steps[i]

		if dependencyFailed(step, failedSteps) {
			results = append(results, runbook.StepResult{
				StepID:  step.StepID,
				Verb:    step.Verb,
				Outcome: runbook.StepOutcome{Kind: runbook.Skipped, Reason: "Dependency failed"},
			})
			failedSteps[step.StepID] = true
			continue
		}

		if err := store.UpdateStatus(ctx, id, runbook.Status{Kind: runbook.StatusExecuting, CurrentStep: i}); err != nil {
			return nil, &ExecutionError{Kind: Database, RunbookID: id, Message: err.Error()}
		}

		stepStart := time.Now()
		outcome := executor.ExecuteStep(ctx, &rb.Steps[i])
		metrics.RecordStep(step.Verb, outcomeLabel(outcome.Kind), time.Since(stepStart).Milliseconds())

		logging.Default().Log(&logging.StepLog{
			Timestamp:  time.Now(),
			RunbookID:  id.String(),
			StepID:     step.StepID.String(),
			Verb:       step.Verb,
			DurationMs: time.Since(stepStart).Milliseconds(),
			Outcome:    outcomeLabel(outcome.Kind),
		})

		results = append(results, runbook.StepResult{StepID: step.StepID, Verb: step.Verb, Outcome: outcome})

		switch outcome.Kind {
		case runbook.Completed:
			if pipeline != nil {
				pipeline.VerbExecuted(step.Verb)
			}
			continue

		case runbook.Parked:
			finalStatus = runbook.Status{
				Kind:   runbook.StatusParked,
				Reason: runbook.ParkReason{Kind: runbook.AwaitingCallback, CorrelationKey: outcome.CorrelationKey},
				Cursor: runbook.StepCursor{Index: i, StepID: step.StepID},
			}
			results = appendSkippedRemainder(results, rb.Steps[i+1:], "Runbook parked")
			return finishResult(ctx, store, id, rb, results, finalStatus, start, lockStats)

		case runbook.Failed:
			failedSteps[step.StepID] = true
			failedCursor := runbook.StepCursor{Index: i, StepID: step.StepID}
			finalStatus = runbook.Status{Kind: runbook.StatusFailed, Err: outcome.Error, FailedStep: &failedCursor}
			results = appendSkippedRemainder(results, rb.Steps[i+1:], "Previous step failed")
			return finishResult(ctx, store, id, rb, results, finalStatus, start, lockStats)

		case runbook.Skipped:
			continue
		}
	}

	finalStatus = runbook.Status{Kind: runbook.StatusCompleted, At: time.Now()}
	return finishResult(ctx, store, id, rb, results, finalStatus, start, lockStats)
}

func finishResult(
	ctx context.Context,
	store runstore.RunbookStore,
	id runbook.CompiledRunbookID,
	rb *runbook.CompiledRunbook,
	results []runbook.StepResult,
	finalStatus runbook.Status,
	start time.Time,
	lockStats locks.Stats,
) (*Result, error) {
	if err := store.UpdateStatus(ctx, id, finalStatus); err != nil {
		return nil, &ExecutionError{Kind: Database, RunbookID: id, Message: err.Error()}
	}
	elapsed := time.Since(start).Milliseconds()
	metrics.RecordRunbook(finalStatus.Kind.String(), elapsed)
	observability.SpanFromContext(ctx).SetAttributes(observability.AttrRunbookID.String(id.String()))
	return &Result{
		RunbookID:   id,
		StepResults: results,
		FinalStatus: finalStatus,
		ElapsedMs:   elapsed,
		LockStats:   lockStats,
	}, nil
}

func dependencyFailed(step runbook.CompiledStep, failedSteps map[uuid.UUID]bool) bool {
	for _, dep := range step.DependsOn {
		if failedSteps[dep] {
			return true
		}
	}
	return false
}

func appendSkippedRemainder(results []runbook.StepResult, remainder []runbook.CompiledStep, reason string) []runbook.StepResult {
	for _, s := range remainder {
		results = append(results, runbook.StepResult{
			StepID:  s.StepID,
			Verb:    s.Verb,
			Outcome: runbook.StepOutcome{Kind: runbook.Skipped, Reason: reason},
		})
	}
	return results
}

func unionWriteSets(steps []runbook.CompiledStep) []string {
	set := make(map[string]bool)
	for _, s := range steps {
		for _, w := range s.WriteSet {
			set[w] = true
		}
	}
	out := make([]string, 0, len(set))
	for w := range set {
		out = append(out, w)
	}
	sort.Strings(out)
	return out
}

func outcomeLabel(k runbook.OutcomeKind) string {
	switch k {
	case runbook.Completed:
		return "completed"
	case runbook.Parked:
		return "parked"
	case runbook.Failed:
		return "failed"
	case runbook.Skipped:
		return "skipped"
	default:
		return "unknown"
	}
}

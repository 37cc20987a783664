package gate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runbookd/runbookd/internal/locks"
	"github.com/runbookd/runbookd/internal/runbook"
	"github.com/runbookd/runbookd/internal/runstore"
	"github.com/runbookd/runbookd/internal/stepexec"
)

func newCompiledStep(verb string, dependsOn ...runbook.CompiledStep) runbook.CompiledStep {
	step := runbook.CompiledStep{
		StepID:   runbook.NewStepID(),
		Verb:     verb,
		Sentence: verb,
	}
	for _, d := range dependsOn {
		step.DependsOn = append(step.DependsOn, d.StepID)
	}
	return step
}

func newRunbook(steps ...runbook.CompiledStep) *runbook.CompiledRunbook {
	return &runbook.CompiledRunbook{
		ID:     runbook.NewRunbookID(),
		Steps:  steps,
		Status: runbook.Status{Kind: runbook.StatusCompiled},
	}
}

func TestExecuteRunbook_EmptyRunbookCompletesImmediately(t *testing.T) {
	store := runstore.New()
	rb := newRunbook()
	store.Put(context.Background(), rb)

	res, err := ExecuteRunbook(context.Background(), store, rb.ID, nil, stepexec.SuccessExecutor{}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, runbook.StatusCompleted, res.FinalStatus.Kind)
	assert.Empty(t, res.StepResults)
}

func TestExecuteRunbook_AllStepsSucceed(t *testing.T) {
	store := runstore.New()
	step1 := newCompiledStep("entity.create")
	step2 := newCompiledStep("cbu.link", step1)
	rb := newRunbook(step1, step2)
	store.Put(context.Background(), rb)

	res, err := ExecuteRunbook(context.Background(), store, rb.ID, nil, stepexec.SuccessExecutor{}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, runbook.StatusCompleted, res.FinalStatus.Kind)
	require.Len(t, res.StepResults, 2)
	assert.Equal(t, runbook.Completed, res.StepResults[0].Outcome.Kind)
	assert.Equal(t, runbook.Completed, res.StepResults[1].Outcome.Kind)

	stored, err := store.Get(context.Background(), rb.ID)
	require.NoError(t, err)
	assert.Equal(t, runbook.StatusCompleted, stored.Status.Kind)
}

func TestExecuteRunbook_DependencySkipOnFailure(t *testing.T) {
	store := runstore.New()
	step1 := newCompiledStep("entity.create")
	step2 := newCompiledStep("compliance.screen", step1)
	step3 := newCompiledStep("cbu.link", step2)
	rb := newRunbook(step1, step2, step3)
	store.Put(context.Background(), rb)

	executor := stepexec.FailOnVerb{Verb: "compliance.screen"}
	res, err := ExecuteRunbook(context.Background(), store, rb.ID, nil, executor, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, runbook.StatusFailed, res.FinalStatus.Kind)
	require.Len(t, res.StepResults, 3)
	assert.Equal(t, runbook.Completed, res.StepResults[0].Outcome.Kind)
	assert.Equal(t, runbook.Failed, res.StepResults[1].Outcome.Kind)
	assert.Equal(t, runbook.Skipped, res.StepResults[2].Outcome.Kind)
	assert.Equal(t, "Previous step failed", res.StepResults[2].Outcome.Reason)
}

func TestExecuteRunbook_ParkAndResume(t *testing.T) {
	store := runstore.New()
	step1 := newCompiledStep("entity.create")
	step2 := newCompiledStep("approval.request")
	step3 := newCompiledStep("notify.send", step2)
	rb := newRunbook(step1, step2, step3)
	store.Put(context.Background(), rb)

	parker := stepexec.ParkOnVerb{Verb: "approval.request", CorrelationKey: "corr-1"}
	res, err := ExecuteRunbook(context.Background(), store, rb.ID, nil, parker, nil, nil)
	require.NoError(t, err)
	require.Equal(t, runbook.StatusParked, res.FinalStatus.Kind)
	assert.Equal(t, "corr-1", res.FinalStatus.Reason.CorrelationKey)
	require.Len(t, res.StepResults, 3)
	assert.Equal(t, runbook.Parked, res.StepResults[1].Outcome.Kind)
	assert.Equal(t, runbook.Skipped, res.StepResults[2].Outcome.Kind)

	cursor := res.FinalStatus.Cursor
	res2, err := ExecuteRunbook(context.Background(), store, rb.ID, &cursor, stepexec.SuccessExecutor{}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, runbook.StatusCompleted, res2.FinalStatus.Kind)
	require.Len(t, res2.StepResults, 3)
	assert.Equal(t, runbook.Skipped, res2.StepResults[0].Outcome.Kind)
	assert.Equal(t, "Before resume cursor", res2.StepResults[0].Outcome.Reason)
}

func TestExecuteRunbook_NotFound(t *testing.T) {
	store := runstore.New()
	_, err := ExecuteRunbook(context.Background(), store, runbook.NewRunbookID(), nil, stepexec.SuccessExecutor{}, nil, nil)
	require.Error(t, err)
	execErr, ok := err.(*ExecutionError)
	require.True(t, ok)
	assert.Equal(t, NotFound, execErr.Kind)
}

func TestExecuteRunbook_NotExecutableWhenCompleted(t *testing.T) {
	store := runstore.New()
	rb := newRunbook(newCompiledStep("entity.create"))
	rb.Status = runbook.Status{Kind: runbook.StatusCompleted}
	store.Put(context.Background(), rb)

	_, err := ExecuteRunbook(context.Background(), store, rb.ID, nil, stepexec.SuccessExecutor{}, nil, nil)
	require.Error(t, err)
	execErr, ok := err.(*ExecutionError)
	require.True(t, ok)
	assert.Equal(t, NotExecutable, execErr.Kind)
}

func TestExecuteRunbook_StepResultsPreservePositions(t *testing.T) {
	store := runstore.New()
	steps := []runbook.CompiledStep{
		newCompiledStep("entity.create"),
		newCompiledStep("cbu.create"),
		newCompiledStep("cbu.link"),
	}
	rb := newRunbook(steps...)
	store.Put(context.Background(), rb)

	res, err := ExecuteRunbook(context.Background(), store, rb.ID, nil, stepexec.SuccessExecutor{}, nil, nil)
	require.NoError(t, err)
	require.Equal(t, len(rb.Steps), len(res.StepResults))
	for i, r := range res.StepResults {
		assert.Equal(t, steps[i].StepID, r.StepID)
	}
}

// TestExecuteRunbookWithLockMode_WaitModeThreadsThrough exercises the
// explicit-lock-mode entry point with locks.Wait. With no pool configured
// (the only case this package can drive without a live Postgres), both
// Try and Wait skip lock acquisition entirely — this test's job is to
// confirm ExecuteRunbookWithLockMode(..., locks.Wait) compiles, dispatches,
// and behaves identically to ExecuteRunbook in that case, which is what
// callers like cmd/runbookd's daemon depend on when config.GateConfig.LockMode
// is "wait" (locks.Try is driven via the plain ExecuteRunbook path
// exercised by every other test in this file).
func TestExecuteRunbookWithLockMode_WaitModeThreadsThrough(t *testing.T) {
	store := runstore.New()
	rb := newRunbook(newCompiledStep("entity.create"))
	store.Put(context.Background(), rb)

	res, err := ExecuteRunbookWithLockMode(context.Background(), store, rb.ID, nil, stepexec.SuccessExecutor{}, nil, nil, locks.Wait)
	require.NoError(t, err)
	assert.Equal(t, runbook.StatusCompleted, res.FinalStatus.Kind)
}

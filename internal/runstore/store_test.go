package runstore

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runbookd/runbookd/internal/runbook"
)

func TestStore_PutAndGet(t *testing.T) {
	store := New()
	rb := &runbook.CompiledRunbook{ID: runbook.NewRunbookID(), Status: runbook.Status{Kind: runbook.StatusCompiled}}
	store.Put(context.Background(), rb)

	got, err := store.Get(context.Background(), rb.ID)
	require.NoError(t, err)
	assert.Equal(t, rb.ID, got.ID)
	assert.Equal(t, runbook.StatusCompiled, got.Status.Kind)
}

func TestStore_GetUnknownReturnsErrNotFound(t *testing.T) {
	store := New()
	_, err := store.Get(context.Background(), runbook.NewRunbookID())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_UpdateStatusIsVisibleToSubsequentGet(t *testing.T) {
	store := New()
	rb := &runbook.CompiledRunbook{ID: runbook.NewRunbookID(), Status: runbook.Status{Kind: runbook.StatusCompiled}}
	store.Put(context.Background(), rb)

	require.NoError(t, store.UpdateStatus(context.Background(), rb.ID, runbook.Status{Kind: runbook.StatusExecuting, CurrentStep: 2}))

	got, err := store.Get(context.Background(), rb.ID)
	require.NoError(t, err)
	assert.Equal(t, runbook.StatusExecuting, got.Status.Kind)
	assert.Equal(t, 2, got.Status.CurrentStep)
}

func TestStore_UpdateStatusUnknownReturnsErrNotFound(t *testing.T) {
	store := New()
	err := store.UpdateStatus(context.Background(), runbook.NewRunbookID(), runbook.Status{Kind: runbook.StatusExecuting})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_GetReturnsACopyNotTheLiveEntry(t *testing.T) {
	store := New()
	rb := &runbook.CompiledRunbook{ID: runbook.NewRunbookID(), Status: runbook.Status{Kind: runbook.StatusCompiled}}
	store.Put(context.Background(), rb)

	got, err := store.Get(context.Background(), rb.ID)
	require.NoError(t, err)
	got.Status.Kind = runbook.StatusFailed

	again, err := store.Get(context.Background(), rb.ID)
	require.NoError(t, err)
	assert.Equal(t, runbook.StatusCompiled, again.Status.Kind)
}

func TestStore_WithStatusGivesExclusiveAccess(t *testing.T) {
	store := New()
	rb := &runbook.CompiledRunbook{ID: runbook.NewRunbookID(), Status: runbook.Status{Kind: runbook.StatusParked}}
	store.Put(context.Background(), rb)

	err := store.WithStatus(context.Background(), rb.ID, func(live *runbook.CompiledRunbook) error {
		if live.Status.Kind != runbook.StatusParked {
			return ErrNotFound
		}
		live.Status.Kind = runbook.StatusExecuting
		return nil
	})
	require.NoError(t, err)

	got, err := store.Get(context.Background(), rb.ID)
	require.NoError(t, err)
	assert.Equal(t, runbook.StatusExecuting, got.Status.Kind)
}

func TestStore_ConcurrentUpdatesToDifferentRunbooksDoNotRace(t *testing.T) {
	store := New()
	ids := make([]runbook.CompiledRunbookID, 20)
	for i := range ids {
		ids[i] = runbook.NewRunbookID()
		store.Put(context.Background(), &runbook.CompiledRunbook{ID: ids[i], Status: runbook.Status{Kind: runbook.StatusCompiled}})
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id runbook.CompiledRunbookID) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				_ = store.UpdateStatus(context.Background(), id, runbook.Status{Kind: runbook.StatusExecuting, CurrentStep: i})
			}
		}(id)
	}
	wg.Wait()

	for _, id := range ids {
		got, err := store.Get(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, runbook.StatusExecuting, got.Status.Kind)
	}
}

// Package runstore holds compiled runbooks and serializes status
// transitions per runbook, matching the single-writer discipline the
// teacher's store package uses for its workflow rows.
package runstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/runbookd/runbookd/internal/runbook"
)

// ErrNotFound is returned when a runbook id is not present in the store.
var ErrNotFound = fmt.Errorf("runstore: runbook not found")

// RunbookStore is the persistence contract the execution gate depends on.
// Store (in-memory) and PostgresStore both satisfy it, so the daemon picks
// its backend from config without the gate package knowing which is live.
type RunbookStore interface {
	Put(ctx context.Context, rb *runbook.CompiledRunbook) error
	Get(ctx context.Context, id runbook.CompiledRunbookID) (*runbook.CompiledRunbook, error)
	UpdateStatus(ctx context.Context, id runbook.CompiledRunbookID, status runbook.Status) error
	WithStatus(ctx context.Context, id runbook.CompiledRunbookID, f func(rb *runbook.CompiledRunbook) error) error
}

// Store holds compiled runbooks in memory, with per-runbook mutexes so
// concurrent executions of different runbooks never contend, while status
// transitions on the same runbook are strictly serialized.
type Store struct {
	mu       sync.RWMutex
	runbooks map[runbook.CompiledRunbookID]*entry
}

type entry struct {
	mu sync.Mutex
	rb *runbook.CompiledRunbook
}

var _ RunbookStore = (*Store)(nil)

// New builds an empty in-memory Store.
func New() *Store {
	return &Store{runbooks: make(map[runbook.CompiledRunbookID]*entry)}
}

// Put inserts a freshly compiled runbook.
func (s *Store) Put(_ context.Context, rb *runbook.CompiledRunbook) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runbooks[rb.ID] = &entry{rb: rb}
	return nil
}

// Get returns a copy of the runbook's current state. Readers may observe
// any intermediate status; callers must not mutate the returned value.
func (s *Store) Get(_ context.Context, id runbook.CompiledRunbookID) (*runbook.CompiledRunbook, error) {
	s.mu.RLock()
	e, ok := s.runbooks[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	cp := *e.rb
	return &cp, nil
}

// UpdateStatus atomically replaces the runbook's status. The update
// serializes against any other status writer for the same runbook id.
func (s *Store) UpdateStatus(_ context.Context, id runbook.CompiledRunbookID, status runbook.Status) error {
	s.mu.RLock()
	e, ok := s.runbooks[id]
	s.mu.RUnlock()
	if !ok {
		return ErrNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rb.Status = status
	return nil
}

// WithStatus runs f with exclusive access to the runbook's entry, letting
// the gate read-then-write its status (e.g. "fail unless still Parked")
// without a race against a concurrent resume attempt.
func (s *Store) WithStatus(_ context.Context, id runbook.CompiledRunbookID, f func(rb *runbook.CompiledRunbook) error) error {
	s.mu.RLock()
	e, ok := s.runbooks[id]
	s.mu.RUnlock()
	if !ok {
		return ErrNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return f(e.rb)
}

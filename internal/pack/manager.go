package pack

import (
	"sort"
	"sync"
)

// Event is one pack-relevant occurrence emitted by the execution gate
// (VerbExecuted) or a step executor (SignalEmitted).
type Event struct {
	Kind   EventKind
	Verb   string // set for VerbExecuted
	Signal string // set for SignalEmitted
}

// EventKind enumerates the two event variants the Manager processes.
type EventKind int

const (
	VerbExecuted EventKind = iota
	SignalEmitted
)

// ManagerError enumerates the errors a Manager's public operations return.
type ManagerError struct {
	UnknownPack string
	Transition  *TransitionError
}

func (e *ManagerError) Error() string {
	if e.Transition != nil {
		return e.Transition.Error()
	}
	return "pack: unknown pack " + e.UnknownPack
}

func unknownPackErr(id string) error { return &ManagerError{UnknownPack: id} }
func transitionErr(err *TransitionError) error { return &ManagerError{Transition: err} }

// ConstraintSource records one active pack's contribution to
// EffectiveConstraints, for diagnostics.
type ConstraintSource struct {
	PackID         string
	PackName       string
	AllowedCount   int
	ForbiddenCount int
}

// EffectiveConstraints is the projection of every currently-active pack's
// allowed/forbidden verb sets.
type EffectiveConstraints struct {
	// Allowed is nil when unconstrained; otherwise only verbs in the set
	// are admissible. A non-nil empty set is a deadlock: no verb passes.
	Allowed map[string]bool
	Forbidden map[string]bool
	Contributors []ConstraintSource
}

// IsVerbAllowed reports whether v passes this projection. Forbidden always
// dominates: a verb in both sets is rejected.
func (c EffectiveConstraints) IsVerbAllowed(v string) bool {
	if c.Forbidden[v] {
		return false
	}
	if c.Allowed == nil {
		return true
	}
	return c.Allowed[v]
}

// IsDeadlocked reports whether the intersection of allowed sets is empty
// while at least one pack constrains — i.e. no verb is admissible at all.
func (c EffectiveConstraints) IsDeadlocked() bool {
	return c.Allowed != nil && len(c.Allowed) == 0
}

// Manager owns the lifecycle state of every registered pack within a
// session and the single-writer progress records attached to active ones.
// All mutating operations serialize through mu, matching the single-writer
// discipline the execution gate uses for runbook status (internal/runstore).
type Manager struct {
	mu        sync.Mutex
	manifests map[string]*Manifest
	states    map[string]State
}

// NewManager builds an empty Manager.
func NewManager() *Manager {
	return &Manager{
		manifests: make(map[string]*Manifest),
		states:    make(map[string]State),
	}
}

// Register adds a pack manifest, starting it in Dormant state.
func (m *Manager) Register(manifest *Manifest) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.manifests[manifest.ID] = manifest
	m.states[manifest.ID] = dormantState()
}

// Activate transitions Dormant -> Active.
func (m *Manager) Activate(packID string) error {
	return m.transition(packID, func(s State) (State, error) { return s.activate() })
}

// Suspend transitions Active -> Suspended.
func (m *Manager) Suspend(packID, reason string) error {
	return m.transition(packID, func(s State) (State, error) { return s.suspend(reason) })
}

// Resume transitions Suspended -> Active.
func (m *Manager) Resume(packID string) error {
	return m.transition(packID, func(s State) (State, error) { return s.resume() })
}

// Complete transitions Active -> Completed (terminal).
func (m *Manager) Complete(packID string) error {
	return m.transition(packID, func(s State) (State, error) { return s.complete() })
}

func (m *Manager) transition(packID string, f func(State) (State, error)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.states[packID]
	if !ok {
		return unknownPackErr(packID)
	}
	next, err := f(cur)
	if err != nil {
		var te *TransitionError
		if e, ok := err.(*TransitionError); ok {
			te = e
		}
		return transitionErr(te)
	}
	m.states[packID] = next
	return nil
}

// ProcessEvent updates progress on every currently-Active pack.
func (m *Manager) ProcessEvent(e Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, s := range m.states {
		if !s.isActive() || s.Progress == nil {
			continue
		}
		switch e.Kind {
		case VerbExecuted:
			s.Progress.recordVerbExecution(e.Verb)
		case SignalEmitted:
			s.Progress.emitSignal(e.Signal)
		}
		m.states[id] = s
	}
}

// CheckAndComplete transitions packID to Completed if it is Active and
// every progress_signals entry has been emitted. Returns whether a
// transition occurred.
func (m *Manager) CheckAndComplete(packID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	manifest, ok := m.manifests[packID]
	if !ok {
		return false, unknownPackErr(packID)
	}
	state, ok := m.states[packID]
	if !ok {
		return false, unknownPackErr(packID)
	}
	if !state.isActive() {
		return false, nil
	}
	if len(manifest.ProgressSignals) == 0 {
		return false, nil
	}
	for _, ps := range manifest.ProgressSignals {
		if !state.Progress.SignalsEmitted[ps.Signal] {
			return false, nil
		}
	}

	next, err := state.complete()
	if err != nil {
		return false, transitionErr(err.(*TransitionError))
	}
	m.states[packID] = next
	return true, nil
}

// EffectiveConstraints projects every Active pack's allowed/forbidden sets.
func (m *Manager) EffectiveConstraints() EffectiveConstraints {
	m.mu.Lock()
	defer m.mu.Unlock()

	var activeIDs []string
	for id, s := range m.states {
		if s.isActive() {
			activeIDs = append(activeIDs, id)
		}
	}
	sort.Strings(activeIDs) // deterministic Contributors ordering

	if len(activeIDs) == 0 {
		return EffectiveConstraints{}
	}

	var allowed map[string]bool
	allowedSet := false
	forbidden := make(map[string]bool)
	var contributors []ConstraintSource

	for _, id := range activeIDs {
		manifest := m.manifests[id]

		for _, v := range manifest.ForbiddenVerbs {
			forbidden[v] = true
		}

		if len(manifest.AllowedVerbs) > 0 {
			packAllowed := make(map[string]bool, len(manifest.AllowedVerbs))
			for _, v := range manifest.AllowedVerbs {
				packAllowed[v] = true
			}
			if !allowedSet {
				allowed = packAllowed
				allowedSet = true
			} else {
				allowed = intersect(allowed, packAllowed)
			}
		}

		contributors = append(contributors, ConstraintSource{
			PackID:         id,
			PackName:       manifest.Name,
			AllowedCount:   len(manifest.AllowedVerbs),
			ForbiddenCount: len(manifest.ForbiddenVerbs),
		})
	}

	return EffectiveConstraints{Allowed: allowed, Forbidden: forbidden, Contributors: contributors}
}

func intersect(a, b map[string]bool) map[string]bool {
	out := make(map[string]bool)
	for k := range a {
		if b[k] {
			out[k] = true
		}
	}
	return out
}

// State returns the current lifecycle state of packID.
func (m *Manager) State(packID string) (Status, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.states[packID]
	if !ok {
		return Dormant, false
	}
	return s.Status, true
}

// ActivePacks lists the ids of every currently-Active pack.
func (m *Manager) ActivePacks() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for id, s := range m.states {
		if s.isActive() {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

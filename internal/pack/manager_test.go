package pack

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_LifecycleTransitions(t *testing.T) {
	m := NewManager()
	m.Register(&Manifest{ID: "onboarding"})

	require.NoError(t, m.Activate("onboarding"))
	status, ok := m.State("onboarding")
	require.True(t, ok)
	assert.Equal(t, Active, status)

	require.Error(t, m.Activate("onboarding")) // Active -> Active illegal

	require.NoError(t, m.Suspend("onboarding", "awaiting approval"))
	status, _ = m.State("onboarding")
	assert.Equal(t, Suspended, status)

	require.NoError(t, m.Resume("onboarding"))
	status, _ = m.State("onboarding")
	assert.Equal(t, Active, status)

	require.NoError(t, m.Complete("onboarding"))
	status, _ = m.State("onboarding")
	assert.Equal(t, Completed, status)

	require.Error(t, m.Activate("onboarding")) // Completed is terminal
}

func TestManager_UnknownPack(t *testing.T) {
	m := NewManager()
	err := m.Activate("ghost")
	require.Error(t, err)
}

func TestManager_CheckAndCompleteRequiresAllSignals(t *testing.T) {
	m := NewManager()
	m.Register(&Manifest{
		ID:              "kyc",
		ProgressSignals: []ProgressSignal{{Signal: "docs_received"}, {Signal: "screening_clear"}},
	})
	require.NoError(t, m.Activate("kyc"))

	m.ProcessEvent(Event{Kind: SignalEmitted, Signal: "docs_received"})
	done, err := m.CheckAndComplete("kyc")
	require.NoError(t, err)
	assert.False(t, done)

	m.ProcessEvent(Event{Kind: SignalEmitted, Signal: "screening_clear"})
	done, err = m.CheckAndComplete("kyc")
	require.NoError(t, err)
	assert.True(t, done)

	status, _ := m.State("kyc")
	assert.Equal(t, Completed, status)
}

func TestManager_ProcessEventTracksExecutedVerbs(t *testing.T) {
	m := NewManager()
	m.Register(&Manifest{ID: "kyc"})
	require.NoError(t, m.Activate("kyc"))

	m.ProcessEvent(Event{Kind: VerbExecuted, Verb: "entity.create"})
	m.ProcessEvent(Event{Kind: VerbExecuted, Verb: "compliance.screen"})

	m.mu.Lock()
	progress := m.states["kyc"].Progress
	m.mu.Unlock()
	assert.Equal(t, 2, progress.StepsCompleted)
	assert.Equal(t, []string{"entity.create", "compliance.screen"}, progress.ExecutedVerbs)
}

func TestEffectiveConstraints_NoActivePacksIsUnconstrained(t *testing.T) {
	m := NewManager()
	c := m.EffectiveConstraints()
	assert.Nil(t, c.Allowed)
	assert.True(t, c.IsVerbAllowed("anything.at.all"))
}

func TestEffectiveConstraints_IntersectionAndUnion(t *testing.T) {
	m := NewManager()
	m.Register(&Manifest{
		ID:             "packA",
		AllowedVerbs:   []string{"entity.create", "cbu.link", "notify.send"},
		ForbiddenVerbs: []string{"position.book"},
	})
	m.Register(&Manifest{
		ID:           "packB",
		AllowedVerbs: []string{"cbu.link", "notify.send"},
	})
	require.NoError(t, m.Activate("packA"))
	require.NoError(t, m.Activate("packB"))

	c := m.EffectiveConstraints()
	assert.True(t, c.IsVerbAllowed("cbu.link"))
	assert.True(t, c.IsVerbAllowed("notify.send"))
	assert.False(t, c.IsVerbAllowed("entity.create")) // not in packB's allowed set
	assert.False(t, c.IsVerbAllowed("position.book"))  // forbidden dominates
}

func TestEffectiveConstraints_DeadlockWhenIntersectionEmpty(t *testing.T) {
	m := NewManager()
	m.Register(&Manifest{ID: "packA", AllowedVerbs: []string{"entity.create"}})
	m.Register(&Manifest{ID: "packB", AllowedVerbs: []string{"cbu.link"}})
	require.NoError(t, m.Activate("packA"))
	require.NoError(t, m.Activate("packB"))

	c := m.EffectiveConstraints()
	assert.True(t, c.IsDeadlocked())
	assert.False(t, c.IsVerbAllowed("entity.create"))
}

func TestEffectiveConstraints_EmptyAllowedSetIsUnrestricted(t *testing.T) {
	m := NewManager()
	m.Register(&Manifest{ID: "packA"}) // no allowed/forbidden set at all
	require.NoError(t, m.Activate("packA"))

	c := m.EffectiveConstraints()
	assert.Nil(t, c.Allowed)
	assert.True(t, c.IsVerbAllowed("anything"))
}

func TestManager_CompletionDoesNotAffectOtherPacks(t *testing.T) {
	m := NewManager()
	m.Register(&Manifest{ID: "packA", ProgressSignals: []ProgressSignal{{Signal: "done"}}})
	m.Register(&Manifest{ID: "packB", AllowedVerbs: []string{"notify.send"}})
	require.NoError(t, m.Activate("packA"))
	require.NoError(t, m.Activate("packB"))

	m.ProcessEvent(Event{Kind: SignalEmitted, Signal: "done"})
	done, err := m.CheckAndComplete("packA")
	require.NoError(t, err)
	assert.True(t, done)

	status, _ := m.State("packB")
	assert.Equal(t, Active, status)
}

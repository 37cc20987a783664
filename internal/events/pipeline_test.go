package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runbookd/runbookd/internal/pack"
)

func newTestManager(t *testing.T) *pack.Manager {
	t.Helper()
	m := pack.NewManager()
	m.Register(&pack.Manifest{
		ID:              "kyc",
		Name:            "KYC Onboarding",
		ProgressSignals: []pack.ProgressSignal{{Signal: "identity_verified"}},
	})
	require.NoError(t, m.Activate("kyc"))
	return m
}

func TestPipeline_VerbExecutedDoesNotCompletePackWithoutSignals(t *testing.T) {
	m := newTestManager(t)
	p := New(m)

	p.VerbExecuted("entity.create")

	status, ok := m.State("kyc")
	require.True(t, ok)
	assert.Equal(t, pack.Active, status)
}

func TestPipeline_SignalEmittedCompletesPackWhenAllSignalsSeen(t *testing.T) {
	m := newTestManager(t)
	p := New(m)

	p.SignalEmitted("identity_verified")

	status, ok := m.State("kyc")
	require.True(t, ok)
	assert.Equal(t, pack.Completed, status)
}

func TestPipeline_SignalEmittedDoesNotCompleteOnPartialSignals(t *testing.T) {
	m := pack.NewManager()
	m.Register(&pack.Manifest{
		ID:   "settlement",
		Name: "Settlement",
		ProgressSignals: []pack.ProgressSignal{
			{Signal: "funds_reserved"},
			{Signal: "funds_settled"},
		},
	})
	require.NoError(t, m.Activate("settlement"))
	p := New(m)

	p.SignalEmitted("funds_reserved")

	status, ok := m.State("settlement")
	require.True(t, ok)
	assert.Equal(t, pack.Active, status)
}

func TestPipeline_NilManagerIsANoOp(t *testing.T) {
	p := New(nil)
	assert.NotPanics(t, func() {
		p.VerbExecuted("entity.create")
		p.SignalEmitted("identity_verified")
	})
}

func TestSink_EmitSignalForwardsToPipeline(t *testing.T) {
	m := newTestManager(t)
	p := New(m)
	sink := Sink{Pipeline: p}

	sink.EmitSignal("identity_verified")

	status, ok := m.State("kyc")
	require.True(t, ok)
	assert.Equal(t, pack.Completed, status)
}

// Package events wires step outcomes and step-executor signals into the
// Pack Manager's progress tracking, and checks for newly-completed packs
// after each step (§4.8's post-step event pipeline).
package events

import (
	"github.com/runbookd/runbookd/internal/pack"
)

// Pipeline dispatches post-step events to a pack.Manager and runs
// check-and-complete over every currently-Active pack.
type Pipeline struct {
	manager *pack.Manager
}

// New builds a Pipeline bound to manager.
func New(manager *pack.Manager) *Pipeline {
	return &Pipeline{manager: manager}
}

// VerbExecuted records that a step's verb completed and checks every
// Active pack for completion. Newly-completed packs widen constraints for
// future dispatch only — never the runbook currently executing (INV-6).
func (p *Pipeline) VerbExecuted(verb string) {
	if p.manager == nil {
		return
	}
	p.manager.ProcessEvent(pack.Event{Kind: pack.VerbExecuted, Verb: verb})
	p.checkAllActive()
}

// SignalEmitted records a signal a step executor raised mid-execution and
// checks every Active pack for completion.
func (p *Pipeline) SignalEmitted(signal string) {
	if p.manager == nil {
		return
	}
	p.manager.ProcessEvent(pack.Event{Kind: pack.SignalEmitted, Signal: signal})
	p.checkAllActive()
}

func (p *Pipeline) checkAllActive() {
	for _, id := range p.manager.ActivePacks() {
		_, _ = p.manager.CheckAndComplete(id)
	}
}

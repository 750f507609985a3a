package query

import (
	"context"
	"time"
)

// session is the control state tied to the current locator. It is only read
// or written with Coordinator.mu held.
type session struct {
	id      string
	locator string

	// seq is the number of the latest issued cycle. Completions carrying an
	// older number are discarded.
	seq uint64

	retries int
	bypass  bool

	// cycle is the cycle in flight, nil once it settles.
	cycle *cycle

	// completed is set after the first cycle settles.
	completed bool

	// pending records a locator change that arrived before the first cycle
	// settled. It is applied when that cycle settles.
	pending bool
}

// cycle is one fetch cycle: the initial attempt plus its retries.
// seq, locator, bypass, ctx, cancel and started never change after creation.
type cycle struct {
	seq     uint64
	locator string
	bypass  bool
	started time.Time

	ctx    context.Context
	cancel context.CancelFunc

	// Guarded by Coordinator.mu.
	attempt int
	timer   *time.Timer
}

func (s *session) current(cy *cycle) bool {
	return s.cycle != nil && s.cycle.seq == cy.seq && cy.seq == s.seq
}

// stopTimer cancels a pending retry. It reports whether a retry was pending.
func (cy *cycle) stopTimer() bool {
	if cy.timer == nil {
		return false
	}
	stopped := cy.timer.Stop()
	cy.timer = nil
	return stopped
}

// Package wakeup lets producers nudge a sleeping worker loop.
package wakeup

import (
	"context"
	"time"
)

// Signal is a single-slot wake-up channel. Any number of Notify calls made
// while a wake is pending collapse into one.
type Signal struct {
	ch chan struct{}
}

func New() *Signal {
	return &Signal{ch: make(chan struct{}, 1)}
}

// Notify never blocks. A full slot means a wake is already pending.
func (s *Signal) Notify() {
	select {
	case s.ch <- struct{}{}:
	default:
	}
}

// Wait blocks until a wake arrives (true), timeout elapses (false) or ctx is
// done (false).
func (s *Signal) Wait(ctx context.Context, timeout time.Duration) bool {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-s.ch:
		return true
	case <-timer.C:
		return false
	case <-ctx.Done():
		return false
	}
}

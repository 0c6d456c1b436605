// Package condsignal provides a broadcastable condition signal: waiters grab
// the current channel via WaitChan and block on it (with the protecting lock
// released); Broadcast closes that channel and installs a fresh one.
//
// It plays the role of a condition variable, but exposes the wakeup as a
// channel so a waiter can select on it together with its cancellation
// channels. A waiter must capture the channel while still holding the lock
// that guards the awaited condition, and must re-check the condition after
// waking up.
package condsignal

import (
	"github.com/go-ng/xatomic"
)

type CondSignal struct {
	ch *chan struct{}
}

func New() *CondSignal {
	return &CondSignal{
		ch: ptr(make(chan struct{})),
	}
}

// WaitChan returns a channel which gets closed by the next Broadcast.
func (s *CondSignal) WaitChan() <-chan struct{} {
	return *xatomic.LoadPointer(&s.ch)
}

// Broadcast wakes up every waiter currently blocked on a WaitChan channel.
func (s *CondSignal) Broadcast() {
	close(*xatomic.SwapPointer(&s.ch, ptr(make(chan struct{}))))
}

package core

import (
	"context"
	"sync"
)

// Latch is a one-shot completion signal. It starts unset and is set exactly
// once; after that every current and future waiter proceeds immediately.
type Latch struct {
	done chan struct{}
	once sync.Once
}

// NewLatch returns an unset latch.
func NewLatch() *Latch {
	return &Latch{done: make(chan struct{})}
}

// Signal sets the latch. Calls after the first are no-ops.
func (l *Latch) Signal() {
	l.once.Do(func() {
		close(l.done)
	})
}

// Done returns a channel that is closed once the latch is set.
func (l *Latch) Done() <-chan struct{} {
	return l.done
}

// IsSignaled reports whether Signal has been called.
func (l *Latch) IsSignaled() bool {
	select {
	case <-l.done:
		return true
	default:
		return false
	}
}

// Wait blocks until the latch is set or ctx is done.
// A set latch always wins over an already cancelled context.
func (l *Latch) Wait(ctx context.Context) error {
	if l.IsSignaled() {
		return nil
	}

	select {
	case <-l.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

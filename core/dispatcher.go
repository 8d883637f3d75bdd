package core

import (
	"context"
	"runtime/pprof"
)

// =============================================================================
// Dispatcher: the "run later on the UI thread" primitive
// =============================================================================

// Dispatcher queues work to run later on a single designated goroutine.
// Submit must not run the task inline unless the implementation is
// deliberately synchronous (see ImmediateDispatcher).
type Dispatcher interface {
	Submit(task Task) error
}

// DispatcherFunc adapts a plain function to the Dispatcher interface.
// This is the hook for real GUI toolkits, e.g. wrapping fyne.Do.
type DispatcherFunc func(task Task) error

// Submit calls f(task).
func (f DispatcherFunc) Submit(task Task) error {
	return f(task)
}

// ImmediateDispatcher runs submitted work synchronously on the caller's goroutine.
// Intended for tests where no event loop exists.
type ImmediateDispatcher struct{}

// Submit runs task inline.
func (ImmediateDispatcher) Submit(task Task) error {
	task(context.Background())
	return nil
}

// =============================================================================
// Spawner: named background goroutine creation
// =============================================================================

// Spawner starts fn on a new background goroutine. The name is for diagnostics only.
type Spawner interface {
	Spawn(name string, fn func())
}

// GoroutineSpawner starts one goroutine per call and tags it with pprof labels,
// so profiles and goroutine dumps show which task a goroutine belongs to.
type GoroutineSpawner struct{}

// Spawn runs fn on a fresh goroutine labelled task=<name>.
func (GoroutineSpawner) Spawn(name string, fn func()) {
	go pprof.Do(context.Background(), pprof.Labels("task", name), func(context.Context) {
		fn()
	})
}

package backgroundtask

import (
	"sync"

	"github.com/Swind/go-background-task/core"
)

// =============================================================================
// Global UI Thread Helper (Singleton)
// =============================================================================

var (
	globalUIThread *core.UIThread
	globalMu       sync.Mutex
)

// InitGlobalUIThread starts the process-wide UI thread.
// Calls after the first are no-ops until ShutdownGlobalUIThread.
func InitGlobalUIThread(opts ...core.UIThreadOption) {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalUIThread != nil {
		return // Already initialized
	}

	globalUIThread = core.NewUIThread(append([]core.UIThreadOption{core.WithUIThreadName("global-ui")}, opts...)...)
}

// GetGlobalUIThread returns the global UI thread instance.
// It panics if InitGlobalUIThread has not been called.
func GetGlobalUIThread() *core.UIThread {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalUIThread == nil {
		panic("GlobalUIThread not initialized. Call InitGlobalUIThread() first.")
	}
	return globalUIThread
}

// ShutdownGlobalUIThread stops the global UI thread after draining queued work.
func ShutdownGlobalUIThread() {
	globalMu.Lock()
	ui := globalUIThread
	globalUIThread = nil
	globalMu.Unlock()

	if ui != nil {
		ui.Stop()
	}
	_ = core.NewDefaultLogger().Sync()
}

// New creates a background task whose post-processing runs on the global UI thread.
// A WithDispatcher option overrides the global UI thread.
func New[V any](worker Worker[V], opts ...Option) *BackgroundTask[V] {
	return core.New(worker, append([]Option{core.WithDispatcher(GetGlobalUIThread())}, opts...)...)
}

// NewFunc is New for a pair of functions.
func NewFunc[V any](perform TaskWithResult[V], post ReplyWithResult[V], opts ...Option) *BackgroundTask[V] {
	return core.NewFunc(perform, post, append([]Option{core.WithDispatcher(GetGlobalUIThread())}, opts...)...)
}

// Run creates a task on the global UI thread and executes it immediately.
func Run[V any](perform TaskWithResult[V], post ReplyWithResult[V], opts ...Option) (*BackgroundTask[V], error) {
	task := NewFunc(perform, post, opts...)
	if err := task.Execute(); err != nil {
		return nil, err
	}
	return task, nil
}

// NewFuncOn is NewFunc bound to an explicit dispatcher instead of the global UI thread.
func NewFuncOn[V any](d Dispatcher, perform TaskWithResult[V], post ReplyWithResult[V], opts ...Option) *BackgroundTask[V] {
	return core.NewFunc(perform, post, append([]Option{core.WithDispatcher(d)}, opts...)...)
}

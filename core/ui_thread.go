package core

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"
)

// UIThread binds a dedicated Goroutine to execute work sequentially, the way a
// GUI toolkit's event dispatch thread does. All work submitted to it runs on the
// same goroutine, one piece at a time, in submission order.
//
// UIThread is the Dispatcher shipped with this package. Post-processing of a
// BackgroundTask is submitted here, so it may freely touch state owned by
// the UI thread without locks.
type UIThread struct {
	queue *FIFOTaskQueue
	wake  chan struct{}

	// Lifecycle control
	submitMu     sync.RWMutex
	closed       atomic.Bool
	shutdownChan chan struct{}
	shutdownOnce sync.Once
	stopped      chan struct{}

	// Observability
	running   atomic.Int32
	processed atomic.Int64
	rejected  atomic.Int64
	panicked  atomic.Int64
	history   *ExecutionHistory

	config *TaskConfig

	name string
	mu   sync.Mutex
}

// UIThreadOption configures a UIThread.
type UIThreadOption func(*UIThread)

// WithUIThreadName names the UI thread for logs and metrics.
func WithUIThreadName(name string) UIThreadOption {
	return func(r *UIThread) {
		r.name = name
	}
}

// WithUIThreadConfig sets the logger, panic handler and metrics.
func WithUIThreadConfig(cfg *TaskConfig) UIThreadOption {
	return func(r *UIThread) {
		if cfg != nil {
			r.config = cfg
		}
	}
}

// WithUIThreadHistory sets how many executed work items are remembered.
func WithUIThreadHistory(capacity int) UIThreadOption {
	return func(r *UIThread) {
		r.history = NewExecutionHistory(capacity)
	}
}

// NewUIThread creates and starts a new UIThread.
// It immediately spawns a dedicated goroutine for the event loop.
func NewUIThread(opts ...UIThreadOption) *UIThread {
	r := &UIThread{
		queue:        NewFIFOTaskQueue(),
		wake:         make(chan struct{}, 1),
		shutdownChan: make(chan struct{}),
		stopped:      make(chan struct{}),
		name:         "ui",
	}
	for _, opt := range opts {
		opt(r)
	}
	cfg := TaskConfig{}
	if r.config != nil {
		cfg = *r.config
	}
	r.config = cfg.withDefaults()
	if r.history == nil {
		r.history = NewExecutionHistory(defaultTaskHistoryCapacity)
	}

	go r.runLoop()

	return r
}

// Name returns the name of the UI thread
func (r *UIThread) Name() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.name
}

// SetName sets the name of the UI thread
func (r *UIThread) SetName(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.name = name
}

// Submit queues task to run later on the UI thread.
// Returns ErrDispatcherClosed once Shutdown has been called.
func (r *UIThread) Submit(task Task) error {
	return r.SubmitNamed(resolveTaskName(task, ""), task)
}

// SubmitNamed is Submit with an explicit name recorded in the execution history.
func (r *UIThread) SubmitNamed(name string, task Task) error {
	if task == nil {
		return fmt.Errorf("submit %q: nil task", name)
	}

	r.submitMu.RLock()
	if r.closed.Load() {
		r.submitMu.RUnlock()
		r.rejected.Add(1)
		r.config.Metrics.RecordTaskRejected(r.Name(), "shutdown")
		return ErrDispatcherClosed
	}
	depth := r.queue.Push(TaskItem{Task: task, Name: name, PostedAt: time.Now()})
	r.submitMu.RUnlock()

	r.config.Metrics.RecordQueueDepth(r.Name(), depth)

	select {
	case r.wake <- struct{}{}:
	default:
		// A wake-up is already pending
	}
	return nil
}

// PostTask submits a task, dropping it silently if the UI thread is closed.
func (r *UIThread) PostTask(task Task) {
	if err := r.Submit(task); err != nil {
		r.config.Logger.Debug("task dropped", F("runner", r.Name()), F("error", err))
	}
}

// IsCurrent reports whether ctx belongs to work running on this UI thread.
func (r *UIThread) IsCurrent(ctx context.Context) bool {
	return CurrentUIThread(ctx) == r
}

// CurrentUIThread returns the UIThread executing the work that owns ctx, or nil.
func CurrentUIThread(ctx context.Context) *UIThread {
	r, _ := ctx.Value(uiThreadKey).(*UIThread)
	return r
}

// Shutdown stops accepting new work.
// Work queued before Shutdown still runs; the loop exits once the queue is drained.
// Safe to call from within a task running on the UI thread.
func (r *UIThread) Shutdown() {
	r.shutdownOnce.Do(func() {
		r.submitMu.Lock()
		r.closed.Store(true)
		r.submitMu.Unlock()
		close(r.shutdownChan)
	})
}

// IsClosed returns true if the UI thread no longer accepts work
func (r *UIThread) IsClosed() bool {
	return r.closed.Load()
}

// Stop shuts the UI thread down and waits for the queue to drain.
// Must not be called from the UI thread itself.
func (r *UIThread) Stop() {
	r.Shutdown()
	<-r.stopped
}

// runLoop is the core of this UI thread, it occupies a dedicated goroutine
func (r *UIThread) runLoop() {
	defer close(r.stopped)

	// Work finds its UI thread through CurrentUIThread
	runCtx := context.WithValue(context.Background(), uiThreadKey, r)

	for {
		r.drain(runCtx)

		select {
		case <-r.wake:
		case <-r.shutdownChan:
			r.drain(runCtx)
			return
		}
	}
}

func (r *UIThread) drain(ctx context.Context) {
	for {
		item, ok := r.queue.Pop()
		if !ok {
			return
		}
		r.runTask(ctx, item)
	}
}

func (r *UIThread) runTask(ctx context.Context, item TaskItem) {
	r.running.Store(1)
	startedAt := time.Now()
	panicked := false

	defer func() {
		if rec := recover(); rec != nil {
			panicked = true
			r.panicked.Add(1)
			r.config.Metrics.RecordTaskPanic(r.Name(), rec)
			r.config.PanicHandler.HandlePanic(ctx, r.Name(), rec, debug.Stack())
		}

		finishedAt := time.Now()
		r.history.Add(TaskExecutionRecord{
			Name:       item.Name,
			RunnerName: r.Name(),
			StartedAt:  startedAt,
			FinishedAt: finishedAt,
			Duration:   finishedAt.Sub(startedAt),
			Panicked:   panicked,
		})
		r.processed.Add(1)
		r.running.Store(0)
	}()

	item.Task(ctx)
}

// =============================================================================
// Synchronization Methods
// =============================================================================

// WaitIdle blocks until all currently queued work has completed execution.
// This is implemented by posting a barrier task and waiting for it to execute.
//
// Returns error if:
// - Context is cancelled or deadline exceeded
// - UI thread is closed when WaitIdle is called
func (r *UIThread) WaitIdle(ctx context.Context) error {
	done := make(chan struct{})

	if err := r.SubmitNamed("barrier", func(context.Context) { close(done) }); err != nil {
		return err
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// WaitShutdown blocks until Shutdown() is called on this UI thread.
//
// Returns error if context is cancelled or deadline exceeded.
func (r *UIThread) WaitShutdown(ctx context.Context) error {
	select {
	case <-r.shutdownChan:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// =============================================================================
// Observability
// =============================================================================

// Stats returns a snapshot of the UI thread's state.
func (r *UIThread) Stats() RunnerStats {
	stats := RunnerStats{
		Name:      r.Name(),
		Type:      "ui_thread",
		Pending:   r.queue.Len(),
		Running:   int(r.running.Load()),
		Processed: r.processed.Load(),
		Rejected:  r.rejected.Load(),
		Panicked:  r.panicked.Load(),
		Closed:    r.IsClosed(),
	}
	if last, ok := r.history.Last(); ok {
		stats.LastTaskName = last.Name
		stats.LastTaskAt = last.FinishedAt
	}
	return stats
}

// RecentTasks returns up to limit executed work items, newest first.
func (r *UIThread) RecentTasks(limit int) []TaskExecutionRecord {
	return r.history.Recent(limit)
}

// LastTask returns the most recently executed work item.
func (r *UIThread) LastTask() (TaskExecutionRecord, bool) {
	return r.history.Last()
}

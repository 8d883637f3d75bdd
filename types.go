package backgroundtask

import "github.com/Swind/go-background-task/core"

// Re-export commonly used types from core package for convenience.
// This allows users to import only the backgroundtask package for most use cases.

// Task is a unit of work queued on a dispatcher (Closure)
type Task = core.Task

// TaskID is the process-wide identity of a background task
type TaskID = core.TaskID

// BackgroundTask runs a computation in the background and post-processes the result on the UI thread
type BackgroundTask[V any] = core.BackgroundTask[V]

// Worker supplies the compute and post-processing behaviors
type Worker[V any] = core.Worker[V]

// TaskWithResult and ReplyWithResult are the function forms of a Worker
type TaskWithResult[V any] = core.TaskWithResult[V]
type ReplyWithResult[V any] = core.ReplyWithResult[V]

// Option configures a BackgroundTask
type Option = core.Option

// Dispatcher is the "run later on the UI thread" primitive
type Dispatcher = core.Dispatcher

// DispatcherFunc adapts a function, e.g. a GUI toolkit's run-on-main call, to Dispatcher
type DispatcherFunc = core.DispatcherFunc

// UIThread is the dedicated-goroutine Dispatcher shipped with this library
type UIThread = core.UIThread

// TaskError is the failure delivered through the completion path
type TaskError = core.TaskError

// PanicError wraps a value recovered from a panicking behavior
type PanicError = core.PanicError

// Errors
var (
	ErrAlreadyStarted   = core.ErrAlreadyStarted
	ErrInterrupted      = core.ErrInterrupted
	ErrNoDispatcher     = core.ErrNoDispatcher
	ErrDispatcherClosed = core.ErrDispatcherClosed
	ErrNotCompleted     = core.ErrNotCompleted
)

// Options
var (
	WithDispatcher   = core.WithDispatcher
	WithName         = core.WithName
	WithCategory     = core.WithCategory
	WithConfig       = core.WithConfig
	WithLogger       = core.WithLogger
	WithMetrics      = core.WithMetrics
	WithPanicHandler = core.WithPanicHandler
	WithHistory      = core.WithHistory
	WithTracker      = core.WithTracker
)

// NewUIThread creates a UIThread with its own dedicated goroutine.
func NewUIThread(opts ...core.UIThreadOption) *UIThread {
	return core.NewUIThread(opts...)
}

// CurrentUIThread returns the UIThread running the work that owns ctx, or nil
var CurrentUIThread = core.CurrentUIThread

// GetCurrentTaskInfo returns the identity of the background task that owns ctx
var GetCurrentTaskInfo = core.GetCurrentTaskInfo

package core

import (
	"context"
	"strconv"
	"sync/atomic"
)

// Task is the unit of work (Closure)
type Task func(ctx context.Context)

// TaskWithResult is the compute half of a background task. It runs on the
// task's own background goroutine and must not touch state owned by the UI thread.
type TaskWithResult[T any] func(ctx context.Context) (T, error)

// ReplyWithResult is the post-processing half of a background task. It runs on
// the dispatcher's goroutine and receives exactly what the compute half returned.
type ReplyWithResult[T any] func(ctx context.Context, result T, err error)

// =============================================================================
// TaskID: process-wide identity token
// =============================================================================

// TaskID identifies a background task instance. IDs are assigned from a
// process-wide monotonic counter and are only used for diagnostics.
type TaskID uint64

var lastTaskID atomic.Uint64

// GenerateTaskID returns the next process-wide unique TaskID.
// Safe for concurrent use; the first generated ID is 1, so the zero value means "unassigned".
func GenerateTaskID() TaskID {
	return TaskID(lastTaskID.Add(1))
}

// IsZero reports whether the ID was never assigned.
func (id TaskID) IsZero() bool {
	return id == 0
}

func (id TaskID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// =============================================================================
// Context Helper
// =============================================================================

// uiThreadKey marks contexts of work running on a UIThread.
type uiThreadKeyType struct{}

var uiThreadKey uiThreadKeyType

type backgroundTaskKeyType struct{}

var backgroundTaskKey backgroundTaskKeyType

// TaskInfo describes the background task a context belongs to.
type TaskInfo struct {
	ID    TaskID
	Name  string
	RunID string
}

// GetCurrentTaskInfo returns the TaskInfo stored in ctx by a running background task.
// Both the compute and post-processing halves receive a context carrying it.
func GetCurrentTaskInfo(ctx context.Context) (TaskInfo, bool) {
	info, ok := ctx.Value(backgroundTaskKey).(TaskInfo)
	return info, ok
}

func withTaskInfo(ctx context.Context, info TaskInfo) context.Context {
	return context.WithValue(ctx, backgroundTaskKey, info)
}

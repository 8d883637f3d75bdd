package core

import (
	"context"
	"time"
)

// =============================================================================
// PanicHandler: Interface for handling task panics
// =============================================================================

// PanicHandler is called when a compute behavior, a post-processing behavior or
// any work queued on a UIThread panics.
//
// Implementations should be thread-safe as they may be called concurrently.
type PanicHandler interface {
	// HandlePanic is called when a task panics.
	//
	// Parameters:
	// - ctx: The context of the panicked work (may carry TaskInfo)
	// - source: The task name or the UI thread name where the panic occurred
	// - panicInfo: The panic value recovered from the task
	// - stackTrace: The stack trace at the time of panic
	HandlePanic(ctx context.Context, source string, panicInfo any, stackTrace []byte)
}

// LoggingPanicHandler reports panics through a Logger at error level.
type LoggingPanicHandler struct {
	Logger Logger
}

// NewLoggingPanicHandler creates a panic handler writing to logger.
func NewLoggingPanicHandler(logger Logger) *LoggingPanicHandler {
	return &LoggingPanicHandler{Logger: logger}
}

// HandlePanic logs panic information.
func (h *LoggingPanicHandler) HandlePanic(ctx context.Context, source string, panicInfo any, stackTrace []byte) {
	fields := []Field{
		F("source", source),
		F("panic", panicInfo),
		F("stack", string(stackTrace)),
	}
	if info, ok := GetCurrentTaskInfo(ctx); ok {
		fields = append(fields, F("task_id", info.ID.String()), F("run_id", info.RunID))
	}
	h.Logger.Error("task panicked", fields...)
}

// =============================================================================
// Metrics: Interface for observability and monitoring
// =============================================================================

// Metrics defines the interface for collecting background task metrics.
// Implementations can send metrics to monitoring systems (Prometheus, StatsD, etc.).
//
// Task names are unique per instance, so task-level metrics are labelled by
// category instead. Methods should be non-blocking and fast.
type Metrics interface {
	// RecordComputeDuration records how long the compute behavior ran.
	RecordComputeDuration(category string, duration time.Duration)

	// RecordPostProcessDuration records how long the post-processing behavior ran
	// on the UI thread.
	RecordPostProcessDuration(category string, duration time.Duration)

	// RecordTaskCompleted records a released completion signal.
	// outcome is "ok" or the failing Phase.
	RecordTaskCompleted(category string, outcome string)

	// RecordTaskPanic records that work panicked.
	RecordTaskPanic(source string, panicInfo any)

	// RecordQueueDepth records the current queue depth of a UI thread.
	RecordQueueDepth(runnerName string, depth int)

	// RecordTaskRejected records that a UI thread refused work (e.g., after shutdown).
	RecordTaskRejected(runnerName string, reason string)
}

// NilMetrics provides a no-op metrics implementation that does nothing.
// This is the default when no metrics interface is provided.
type NilMetrics struct{}

func (m *NilMetrics) RecordComputeDuration(category string, duration time.Duration)     {}
func (m *NilMetrics) RecordPostProcessDuration(category string, duration time.Duration) {}
func (m *NilMetrics) RecordTaskCompleted(category string, outcome string)               {}
func (m *NilMetrics) RecordTaskPanic(source string, panicInfo any)                      {}
func (m *NilMetrics) RecordQueueDepth(runnerName string, depth int)                     {}
func (m *NilMetrics) RecordTaskRejected(runnerName string, reason string)               {}

// =============================================================================
// TaskConfig: shared handlers for tasks and UI threads
// =============================================================================

// TaskConfig holds the handlers shared by background tasks and UI threads.
// All fields are optional; nil fields are replaced by defaults.
type TaskConfig struct {
	// Logger defaults to NewDefaultLogger().
	Logger Logger

	// PanicHandler defaults to a LoggingPanicHandler writing to Logger.
	PanicHandler PanicHandler

	// Metrics defaults to NilMetrics.
	Metrics Metrics
}

// DefaultTaskConfig returns a config with default handlers.
func DefaultTaskConfig() *TaskConfig {
	logger := NewDefaultLogger()
	return &TaskConfig{
		Logger:       logger,
		PanicHandler: NewLoggingPanicHandler(logger),
		Metrics:      &NilMetrics{},
	}
}

// withDefaults fills nil handlers in place and returns c.
func (c *TaskConfig) withDefaults() *TaskConfig {
	if c.Logger == nil {
		c.Logger = NewDefaultLogger()
	}
	if c.PanicHandler == nil {
		c.PanicHandler = NewLoggingPanicHandler(c.Logger)
	}
	if c.Metrics == nil {
		c.Metrics = &NilMetrics{}
	}
	return c
}

package core

import "time"

// TaskExecutionRecord captures one finished background task, or one piece of
// work executed by a UIThread (then only Name, RunnerName and the timings are set).
type TaskExecutionRecord struct {
	TaskID     TaskID
	RunID      string
	Name       string
	Category   string
	RunnerName string

	StartedAt    time.Time
	ComputedAt   time.Time
	FinishedAt   time.Time
	ComputeTime  time.Duration
	PostProcTime time.Duration
	Duration     time.Duration

	Failed   bool
	Phase    Phase
	Panicked bool
	Err      string
}

// RunnerStats represents runtime observability state for a UIThread.
type RunnerStats struct {
	Name         string
	Type         string
	Pending      int
	Running      int
	Processed    int64
	Rejected     int64
	Panicked     int64
	Closed       bool
	LastTaskName string
	LastTaskAt   time.Time
}

// TaskStats counts background tasks by lifecycle state.
type TaskStats struct {
	Created        int64
	Running        int64
	PostProcessing int64
	Completed      int64
	Failed         int64
}

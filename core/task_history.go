package core

import (
	"reflect"
	"runtime"
	"sync"
	"sync/atomic"
)

const defaultTaskHistoryCapacity = 100

// ExecutionHistory is a fixed-size ring of the most recent execution records.
type ExecutionHistory struct {
	mu    sync.Mutex
	items []TaskExecutionRecord
	head  int
	count int
}

// NewExecutionHistory creates a history keeping the last capacity records.
// Non-positive capacities use the default of 100.
func NewExecutionHistory(capacity int) *ExecutionHistory {
	if capacity < 1 {
		capacity = defaultTaskHistoryCapacity
	}
	return &ExecutionHistory{items: make([]TaskExecutionRecord, capacity)}
}

func (h *ExecutionHistory) Add(record TaskExecutionRecord) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.items) == 0 {
		return
	}

	h.items[h.head] = record
	h.head = (h.head + 1) % len(h.items)
	if h.count < len(h.items) {
		h.count++
	}
}

// Recent returns up to limit records, newest first. limit <= 0 returns all.
func (h *ExecutionHistory) Recent(limit int) []TaskExecutionRecord {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.count == 0 {
		return nil
	}

	if limit <= 0 || limit > h.count {
		limit = h.count
	}

	out := make([]TaskExecutionRecord, 0, limit)
	for i := range limit {
		idx := (h.head - 1 - i + len(h.items)) % len(h.items)
		out = append(out, h.items[idx])
	}
	return out
}

func (h *ExecutionHistory) Last() (TaskExecutionRecord, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.count == 0 {
		return TaskExecutionRecord{}, false
	}

	idx := (h.head - 1 + len(h.items)) % len(h.items)
	return h.items[idx], true
}

func (h *ExecutionHistory) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.count
}

// =============================================================================
// Tracker: lifecycle counters shared by many tasks
// =============================================================================

// Tracker counts background tasks by lifecycle state. One tracker is usually
// shared by every task of an application and polled for metrics.
type Tracker struct {
	created        atomic.Int64
	running        atomic.Int64
	postProcessing atomic.Int64
	completed      atomic.Int64
	failed         atomic.Int64
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{}
}

// Stats returns a snapshot of the counters.
func (t *Tracker) Stats() TaskStats {
	return TaskStats{
		Created:        t.created.Load(),
		Running:        t.running.Load(),
		PostProcessing: t.postProcessing.Load(),
		Completed:      t.completed.Load(),
		Failed:         t.failed.Load(),
	}
}

func (t *Tracker) transition(from, to State) {
	if t == nil {
		return
	}
	t.gauge(from, -1)
	t.gauge(to, 1)
}

func (t *Tracker) gauge(s State, delta int64) {
	switch s {
	case StatePending:
		if delta > 0 {
			t.created.Add(delta)
		}
	case StateRunning:
		t.running.Add(delta)
	case StatePostProcessing:
		t.postProcessing.Add(delta)
	case StateCompleted:
		t.completed.Add(delta)
	}
}

func (t *Tracker) markFailed() {
	if t == nil {
		return
	}
	t.failed.Add(1)
}

// resolveTaskName derives a readable name from a function value.
func resolveTaskName(fn any, explicit string) string {
	if explicit != "" {
		return explicit
	}

	if fn == nil {
		return "anonymous"
	}

	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func || v.IsNil() {
		return "anonymous"
	}

	f := runtime.FuncForPC(v.Pointer())
	if f == nil || f.Name() == "" {
		return "anonymous"
	}
	return f.Name()
}

package core

import (
	"context"
	"runtime"
	"sync"
	"testing"
	"time"
)

// quietConfig keeps test output clean.
func quietConfig() *TaskConfig {
	logger := NewNoOpLogger()
	return &TaskConfig{
		Logger:       logger,
		PanicHandler: NewLoggingPanicHandler(logger),
		Metrics:      &NilMetrics{},
	}
}

// getGoroutineID parses "goroutine 123 [running]:" from the current stack.
func getGoroutineID() uint64 {
	b := make([]byte, 64)
	b = b[:runtime.Stack(b, false)]
	var id uint64
	for i := len("goroutine "); i < len(b); i++ {
		if b[i] >= '0' && b[i] <= '9' {
			id = id*10 + uint64(b[i]-'0')
		} else {
			break
		}
	}
	return id
}

func assertEventually(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met within timeout")
}

// =============================================================================
// TestPanicHandler
// =============================================================================

// TestPanicHandler is a mock panic handler for testing
type TestPanicHandler struct {
	mu    sync.Mutex
	calls []PanicCall
}

type PanicCall struct {
	Source    string
	PanicInfo any
	HasStack  bool
	TaskInfo  TaskInfo
}

func NewTestPanicHandler() *TestPanicHandler {
	return &TestPanicHandler{}
}

func (h *TestPanicHandler) HandlePanic(ctx context.Context, source string, panicInfo any, stackTrace []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	info, _ := GetCurrentTaskInfo(ctx)
	h.calls = append(h.calls, PanicCall{
		Source:    source,
		PanicInfo: panicInfo,
		HasStack:  len(stackTrace) > 0,
		TaskInfo:  info,
	})
}

func (h *TestPanicHandler) GetCalls() []PanicCall {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]PanicCall(nil), h.calls...)
}

func (h *TestPanicHandler) CallCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.calls)
}

// =============================================================================
// TestMetrics
// =============================================================================

// TestMetrics is a mock metrics collector for testing
type TestMetrics struct {
	mu               sync.Mutex
	computeDurations map[string]int
	postDurations    map[string]int
	completed        map[string]int
	panics           []string
	queueDepths      []int
	rejections       []string
}

func NewTestMetrics() *TestMetrics {
	return &TestMetrics{
		computeDurations: make(map[string]int),
		postDurations:    make(map[string]int),
		completed:        make(map[string]int),
	}
}

func (m *TestMetrics) RecordComputeDuration(category string, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.computeDurations[category]++
}

func (m *TestMetrics) RecordPostProcessDuration(category string, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.postDurations[category]++
}

func (m *TestMetrics) RecordTaskCompleted(category string, outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.completed[category+"/"+outcome]++
}

func (m *TestMetrics) RecordTaskPanic(source string, panicInfo any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.panics = append(m.panics, source)
}

func (m *TestMetrics) RecordQueueDepth(runnerName string, depth int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queueDepths = append(m.queueDepths, depth)
}

func (m *TestMetrics) RecordTaskRejected(runnerName string, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rejections = append(m.rejections, runnerName+"/"+reason)
}

func (m *TestMetrics) Completed(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.completed[key]
}

func (m *TestMetrics) ComputeCount(category string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.computeDurations[category]
}

func (m *TestMetrics) PostProcessCount(category string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.postDurations[category]
}

func (m *TestMetrics) Rejections() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.rejections...)
}

func (m *TestMetrics) PanicCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.panics)
}

func (m *TestMetrics) MaxQueueDepth() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	maxDepth := 0
	for _, d := range m.queueDepths {
		maxDepth = max(maxDepth, d)
	}
	return maxDepth
}

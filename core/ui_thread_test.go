package core

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func newTestUIThread(opts ...UIThreadOption) *UIThread {
	return NewUIThread(append([]UIThreadOption{WithUIThreadConfig(quietConfig())}, opts...)...)
}

// TestUIThread_BasicExecution tests basic execution functionality
// Main test items:
// 1. Create UIThread and submit work
// 2. Verify work executes correctly
// 3. Execution flags are set correctly
func TestUIThread_BasicExecution(t *testing.T) {
	runner := newTestUIThread()
	defer runner.Stop()

	var executed atomic.Bool

	if err := runner.Submit(func(ctx context.Context) {
		executed.Store(true)
	}); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	if err := runner.WaitIdle(context.Background()); err != nil {
		t.Fatalf("WaitIdle failed: %v", err)
	}

	if !executed.Load() {
		t.Error("Task was not executed")
	}
}

// TestUIThread_ExecutionOrder tests execution order
// Main test items:
// 1. Submit multiple work items to UIThread
// 2. Verify they execute in submission order (FIFO)
// 3. All items are executed
func TestUIThread_ExecutionOrder(t *testing.T) {
	runner := newTestUIThread()
	defer runner.Stop()

	// Only touched from the UI thread, so no lock is needed.
	var order []int

	for i := 0; i < 10; i++ {
		id := i
		runner.PostTask(func(ctx context.Context) {
			order = append(order, id)
		})
	}

	if err := runner.WaitIdle(context.Background()); err != nil {
		t.Fatalf("WaitIdle failed: %v", err)
	}

	if len(order) != 10 {
		t.Fatalf("Expected 10 tasks executed, got %d", len(order))
	}
	for i := 0; i < 10; i++ {
		if order[i] != i {
			t.Errorf("Task order incorrect: expected %d at position %d, got %d", i, i, order[i])
		}
	}
}

// TestUIThread_ThreadAffinity tests thread affinity
// Main test items:
// 1. Verify all work executes on the same goroutine
// 2. Confirm thread affinity via goroutine ID
// 3. The goroutine is not the submitter's goroutine
func TestUIThread_ThreadAffinity(t *testing.T) {
	runner := newTestUIThread()
	defer runner.Stop()

	var mu sync.Mutex
	goroutineIDs := make(map[uint64]bool)

	for i := 0; i < 20; i++ {
		runner.PostTask(func(ctx context.Context) {
			mu.Lock()
			goroutineIDs[getGoroutineID()] = true
			mu.Unlock()
		})
	}

	if err := runner.WaitIdle(context.Background()); err != nil {
		t.Fatalf("WaitIdle failed: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(goroutineIDs) != 1 {
		t.Errorf("Expected all tasks to run on same goroutine, but found %d different goroutines", len(goroutineIDs))
	}
	if goroutineIDs[getGoroutineID()] {
		t.Error("Tasks ran on the submitting goroutine")
	}
}

// TestUIThread_IsCurrent tests context-based thread identity
// Main test items:
// 1. Work sees its own UIThread through the context
// 2. Other contexts and other UI threads do not match
func TestUIThread_IsCurrent(t *testing.T) {
	runner := newTestUIThread()
	defer runner.Stop()
	other := newTestUIThread()
	defer other.Stop()

	var onSelf, onOther atomic.Bool
	runner.PostTask(func(ctx context.Context) {
		onSelf.Store(runner.IsCurrent(ctx))
		onOther.Store(other.IsCurrent(ctx))
	})

	if err := runner.WaitIdle(context.Background()); err != nil {
		t.Fatalf("WaitIdle failed: %v", err)
	}

	if !onSelf.Load() {
		t.Error("IsCurrent should be true for work running on the UI thread")
	}
	if onOther.Load() {
		t.Error("IsCurrent should be false for a different UI thread")
	}
	if runner.IsCurrent(context.Background()) {
		t.Error("IsCurrent should be false outside the UI thread")
	}
}

// TestUIThread_ShutdownDrainsQueuedWork tests graceful shutdown
// Main test items:
// 1. Work queued before Shutdown still runs
// 2. Stop returns after the queue is drained
func TestUIThread_ShutdownDrainsQueuedWork(t *testing.T) {
	runner := newTestUIThread()

	gate := make(chan struct{})
	var ran atomic.Int32

	runner.PostTask(func(ctx context.Context) {
		<-gate
		ran.Add(1)
	})
	for i := 0; i < 5; i++ {
		runner.PostTask(func(ctx context.Context) {
			ran.Add(1)
		})
	}

	runner.Shutdown()
	close(gate)
	runner.Stop()

	if got := ran.Load(); got != 6 {
		t.Errorf("ran = %d, want 6 (queued work must drain)", got)
	}
}

// TestUIThread_SubmitAfterShutdown tests rejection after shutdown
// Main test items:
// 1. Submit returns ErrDispatcherClosed
// 2. The rejection is counted and reported to metrics
// 3. WaitIdle fails instead of blocking
func TestUIThread_SubmitAfterShutdown(t *testing.T) {
	metrics := NewTestMetrics()
	cfg := quietConfig()
	cfg.Metrics = metrics
	runner := NewUIThread(WithUIThreadConfig(cfg), WithUIThreadName("main"))
	runner.Stop()

	err := runner.Submit(func(ctx context.Context) {
		t.Error("work submitted after shutdown must not run")
	})
	if !errors.Is(err, ErrDispatcherClosed) {
		t.Fatalf("Submit after shutdown = %v, want ErrDispatcherClosed", err)
	}

	if err := runner.WaitIdle(context.Background()); !errors.Is(err, ErrDispatcherClosed) {
		t.Errorf("WaitIdle after shutdown = %v, want ErrDispatcherClosed", err)
	}

	stats := runner.Stats()
	if stats.Rejected != 2 {
		t.Errorf("Rejected = %d, want 2", stats.Rejected)
	}
	if !stats.Closed {
		t.Error("Stats().Closed should be true")
	}
	if got := metrics.Rejections(); len(got) != 2 || got[0] != "main/shutdown" {
		t.Errorf("rejections = %v, want two main/shutdown entries", got)
	}
}

// TestUIThread_PanicRecovery tests panic recovery
// Main test items:
// 1. A panicking work item is reported to the panic handler
// 2. The loop keeps running subsequent work
func TestUIThread_PanicRecovery(t *testing.T) {
	handler := NewTestPanicHandler()
	cfg := quietConfig()
	cfg.PanicHandler = handler
	runner := NewUIThread(WithUIThreadConfig(cfg))
	defer runner.Stop()

	var after atomic.Bool
	runner.PostTask(func(ctx context.Context) {
		panic("boom")
	})
	runner.PostTask(func(ctx context.Context) {
		after.Store(true)
	})

	if err := runner.WaitIdle(context.Background()); err != nil {
		t.Fatalf("WaitIdle failed: %v", err)
	}

	if !after.Load() {
		t.Error("work after a panic did not run")
	}
	calls := handler.GetCalls()
	if len(calls) != 1 || calls[0].PanicInfo != "boom" || !calls[0].HasStack {
		t.Errorf("panic handler calls = %+v, want one call with value boom and a stack", calls)
	}
	if runner.Stats().Panicked != 1 {
		t.Errorf("Stats().Panicked = %d, want 1", runner.Stats().Panicked)
	}
}

// TestUIThread_ShutdownFromWithinTask tests shutdown initiated by the UI thread itself
// Main test items:
// 1. A task calls Shutdown on its own UI thread
// 2. WaitShutdown returns
func TestUIThread_ShutdownFromWithinTask(t *testing.T) {
	runner := newTestUIThread()
	defer runner.Stop()

	runner.PostTask(func(ctx context.Context) {
		CurrentUIThread(ctx).Shutdown()
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := runner.WaitShutdown(ctx); err != nil {
		t.Fatalf("WaitShutdown failed: %v", err)
	}
	if !runner.IsClosed() {
		t.Error("IsClosed should be true after Shutdown")
	}
}

// TestUIThread_IdempotentShutdown tests repeated Shutdown/Stop calls
func TestUIThread_IdempotentShutdown(t *testing.T) {
	runner := newTestUIThread()

	runner.Shutdown()
	runner.Shutdown()
	runner.Stop()
	runner.Stop()
}

// TestUIThread_ConcurrentSubmit tests concurrent submitters
// Main test items:
// 1. Many goroutines submit at once
// 2. Every item runs exactly once
// 3. Queue depth is reported to metrics
func TestUIThread_ConcurrentSubmit(t *testing.T) {
	metrics := NewTestMetrics()
	cfg := quietConfig()
	cfg.Metrics = metrics
	runner := NewUIThread(WithUIThreadConfig(cfg))
	defer runner.Stop()

	const submitters, perSubmitter = 10, 100
	var count atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < submitters; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perSubmitter; j++ {
				runner.PostTask(func(ctx context.Context) {
					count.Add(1)
				})
			}
		}()
	}
	wg.Wait()

	if err := runner.WaitIdle(context.Background()); err != nil {
		t.Fatalf("WaitIdle failed: %v", err)
	}

	if got := count.Load(); got != submitters*perSubmitter {
		t.Errorf("count = %d, want %d", got, submitters*perSubmitter)
	}
	if metrics.MaxQueueDepth() < 1 {
		t.Error("queue depth was never recorded")
	}
}

// TestUIThread_StatsAndHistory tests observability snapshots
// Main test items:
// 1. Named submissions appear in the history, newest first
// 2. Stats reports the last task and processed count
func TestUIThread_StatsAndHistory(t *testing.T) {
	runner := newTestUIThread(WithUIThreadName("main"), WithUIThreadHistory(2))
	defer runner.Stop()

	for _, name := range []string{"a", "b", "c"} {
		if err := runner.SubmitNamed(name, func(ctx context.Context) {}); err != nil {
			t.Fatalf("SubmitNamed(%s) failed: %v", name, err)
		}
	}
	if err := runner.WaitIdle(context.Background()); err != nil {
		t.Fatalf("WaitIdle failed: %v", err)
	}
	// The barrier's bookkeeping finishes just after WaitIdle observes it.
	assertEventually(t, time.Second, func() bool {
		return runner.Stats().Processed == 4
	})

	recent := runner.RecentTasks(0)
	if len(recent) != 2 {
		t.Fatalf("RecentTasks len = %d, want 2 (history capacity)", len(recent))
	}
	// The barrier posted by WaitIdle is the newest entry.
	if recent[0].Name != "barrier" || recent[1].Name != "c" {
		t.Errorf("RecentTasks = [%s %s], want [barrier c]", recent[0].Name, recent[1].Name)
	}

	stats := runner.Stats()
	if stats.Name != "main" || stats.Type != "ui_thread" {
		t.Errorf("Stats identity = %s/%s, want main/ui_thread", stats.Name, stats.Type)
	}
	if stats.LastTaskName != "barrier" {
		t.Errorf("LastTaskName = %s, want barrier", stats.LastTaskName)
	}
}

// TestUIThread_SubmitNil tests nil task rejection
func TestUIThread_SubmitNil(t *testing.T) {
	runner := newTestUIThread()
	defer runner.Stop()

	if err := runner.Submit(nil); err == nil {
		t.Fatal("Submit(nil) should fail")
	}
}

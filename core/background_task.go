package core

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// State is the lifecycle state of a BackgroundTask.
type State int32

const (
	StatePending State = iota
	StateRunning
	StatePostProcessing
	StateCompleted
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateRunning:
		return "running"
	case StatePostProcessing:
		return "post_processing"
	case StateCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// Worker supplies the two behaviors of a background task.
//
// PerformTask runs on a dedicated background goroutine and must not touch
// state owned by the UI thread. PostProcessing runs afterwards on the
// dispatcher's goroutine with exactly the value and error PerformTask returned.
type Worker[V any] interface {
	PerformTask(ctx context.Context) (V, error)
	PostProcessing(ctx context.Context, result V, err error)
}

type funcWorker[V any] struct {
	perform TaskWithResult[V]
	post    ReplyWithResult[V]
}

func (w funcWorker[V]) PerformTask(ctx context.Context) (V, error) {
	return w.perform(ctx)
}

func (w funcWorker[V]) PostProcessing(ctx context.Context, result V, err error) {
	if w.post != nil {
		w.post(ctx, result, err)
	}
}

// namedDispatcher is implemented by dispatchers that keep per-item names.
type namedDispatcher interface {
	SubmitNamed(name string, task Task) error
}

// options is shared by every BackgroundTask instantiation, so Option is not generic.
type options struct {
	name       string
	category   string
	dispatcher Dispatcher
	spawner    Spawner
	config     *TaskConfig
	history    *ExecutionHistory
	tracker    *Tracker
}

// Option configures a BackgroundTask.
type Option func(*options)

// WithDispatcher sets where post-processing runs. Required.
func WithDispatcher(d Dispatcher) Option {
	return func(o *options) { o.dispatcher = d }
}

// WithSpawner replaces the goroutine spawner.
func WithSpawner(s Spawner) Option {
	return func(o *options) { o.spawner = s }
}

// WithName overrides the default "BackgroundTask-<id>" name.
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// WithCategory sets the low-cardinality label used for metrics. Default "default".
func WithCategory(category string) Option {
	return func(o *options) { o.category = category }
}

// WithConfig sets logger, panic handler and metrics in one go.
func WithConfig(cfg *TaskConfig) Option {
	return func(o *options) {
		if cfg != nil {
			o.config = cfg
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l Logger) Option {
	return func(o *options) { o.cfg().Logger = l }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m Metrics) Option {
	return func(o *options) { o.cfg().Metrics = m }
}

// WithPanicHandler sets the handler notified when either behavior panics.
func WithPanicHandler(h PanicHandler) Option {
	return func(o *options) { o.cfg().PanicHandler = h }
}

// WithHistory records the finished task into h.
func WithHistory(h *ExecutionHistory) Option {
	return func(o *options) { o.history = h }
}

// WithTracker counts the task's lifecycle transitions in t.
func WithTracker(t *Tracker) Option {
	return func(o *options) { o.tracker = t }
}

// cfg returns a private copy of the config so a TaskConfig shared through
// WithConfig is never mutated by later options.
func (o *options) cfg() *TaskConfig {
	c := TaskConfig{}
	if o.config != nil {
		c = *o.config
	}
	o.config = &c
	return o.config
}

// BackgroundTask runs a computation on its own background goroutine, then
// delivers the result to a Dispatcher (normally a UIThread) for
// post-processing. A task may be executed only once.
//
// Completion is a one-shot signal released strictly after post-processing
// returns. Failures are delivered through it as *TaskError, so waiters are
// always released.
type BackgroundTask[V any] struct {
	id       TaskID
	name     string
	category string
	worker   Worker[V]

	dispatcher Dispatcher
	spawner    Spawner
	config     *TaskConfig
	history    *ExecutionHistory
	tracker    *Tracker

	started  atomic.Bool
	finished atomic.Bool
	state    atomic.Int32
	latch   *Latch

	// Written once before latch is signaled; read only after.
	result V
	err    error
	record TaskExecutionRecord
}

// New creates a background task from a Worker. The task is inert until Execute is called.
func New[V any](worker Worker[V], opts ...Option) *BackgroundTask[V] {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	cfg := TaskConfig{}
	if o.config != nil {
		cfg = *o.config
	}
	cfg.withDefaults()
	o.config = &cfg
	if o.spawner == nil {
		o.spawner = GoroutineSpawner{}
	}
	if o.category == "" {
		o.category = "default"
	}

	id := GenerateTaskID()
	name := o.name
	if name == "" {
		name = "BackgroundTask-" + id.String()
	}

	t := &BackgroundTask[V]{
		id:         id,
		name:       name,
		category:   o.category,
		worker:     worker,
		dispatcher: o.dispatcher,
		spawner:    o.spawner,
		config:     o.config,
		history:    o.history,
		tracker:    o.tracker,
		latch:      NewLatch(),
	}
	if t.tracker != nil {
		t.tracker.gauge(StatePending, 1)
	}
	return t
}

// NewFunc creates a background task from a compute function and a post-processing function.
// post may be nil when only completion matters.
func NewFunc[V any](perform TaskWithResult[V], post ReplyWithResult[V], opts ...Option) *BackgroundTask[V] {
	return New[V](funcWorker[V]{perform: perform, post: post}, opts...)
}

// ID returns the process-wide identity of the task.
func (t *BackgroundTask[V]) ID() TaskID {
	return t.id
}

// Name returns the diagnostic name, also used as the worker goroutine label.
func (t *BackgroundTask[V]) Name() string {
	return t.name
}

// State returns the current lifecycle state.
func (t *BackgroundTask[V]) State() State {
	return State(t.state.Load())
}

// Execute starts the task on a new background goroutine and returns immediately.
//
// Returns ErrAlreadyStarted if called more than once and ErrNoDispatcher if
// the task has nowhere to deliver its result.
func (t *BackgroundTask[V]) Execute() error {
	if t.dispatcher == nil {
		return ErrNoDispatcher
	}
	if !t.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	info := TaskInfo{ID: t.id, Name: t.name, RunID: uuid.NewString()}
	t.record = TaskExecutionRecord{
		TaskID:    t.id,
		RunID:     info.RunID,
		Name:      t.name,
		Category:  t.category,
		StartedAt: time.Now(),
	}
	t.setState(StatePending, StateRunning)

	t.config.Logger.Debug("background task started",
		F("task", t.name), F("task_id", t.id.String()), F("run_id", info.RunID))

	t.spawner.Spawn(t.name, func() {
		t.run(withTaskInfo(context.Background(), info))
	})
	return nil
}

// run is the body of the background goroutine.
func (t *BackgroundTask[V]) run(ctx context.Context) {
	value, panicked, err := t.compute(ctx)

	computedAt := time.Now()
	t.record.ComputedAt = computedAt
	t.record.ComputeTime = computedAt.Sub(t.record.StartedAt)
	t.config.Metrics.RecordComputeDuration(t.category, t.record.ComputeTime)

	if panicked {
		// Same policy as a panicking task in a task-and-reply pair: the reply is skipped.
		t.finish(value, t.fail(PhaseCompute, err))
		return
	}

	continuation := func(uiCtx context.Context) {
		t.postProcess(withTaskInfo(uiCtx, TaskInfo{ID: t.id, Name: t.name, RunID: t.record.RunID}), value, err)
	}

	if err := t.submit(ctx, continuation); err != nil {
		t.finish(value, t.fail(PhaseDispatch, err))
	}
}

// submit hands the continuation to the dispatcher. A panicking dispatcher,
// e.g. a toolkit call made off its main thread, is reported as an error.
func (t *BackgroundTask[V]) submit(ctx context.Context, continuation Task) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = t.recovered(ctx, rec)
		}
	}()
	if nd, ok := t.dispatcher.(namedDispatcher); ok {
		return nd.SubmitNamed(t.name, continuation)
	}
	return t.dispatcher.Submit(continuation)
}

func (t *BackgroundTask[V]) compute(ctx context.Context) (value V, panicked bool, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			panicked = true
			err = t.recovered(ctx, rec)
		}
	}()
	value, err = t.worker.PerformTask(ctx)
	return value, false, err
}

// postProcess runs on the dispatcher's goroutine.
func (t *BackgroundTask[V]) postProcess(ctx context.Context, value V, computeErr error) {
	t.setState(StateRunning, StatePostProcessing)
	startedAt := time.Now()

	var taskErr error
	if computeErr != nil {
		taskErr = t.fail(PhaseCompute, computeErr)
	}

	defer func() {
		if rec := recover(); rec != nil {
			taskErr = t.fail(PhasePostProcess, t.recovered(ctx, rec))
		}
		t.record.PostProcTime = time.Since(startedAt)
		t.config.Metrics.RecordPostProcessDuration(t.category, t.record.PostProcTime)
		t.finish(value, taskErr)
	}()

	t.worker.PostProcessing(ctx, value, computeErr)
}

func (t *BackgroundTask[V]) recovered(ctx context.Context, rec any) error {
	stack := debug.Stack()
	if !t.finished.Load() {
		t.record.Panicked = true
	}
	t.config.Metrics.RecordTaskPanic(t.category, rec)
	t.config.PanicHandler.HandlePanic(ctx, t.name, rec, stack)
	return &PanicError{Value: rec, Stack: stack}
}

func (t *BackgroundTask[V]) fail(phase Phase, err error) error {
	return &TaskError{TaskID: t.id, Name: t.name, Phase: phase, Err: err}
}

// finish publishes the outcome and releases the completion signal. Called exactly once.
func (t *BackgroundTask[V]) finish(value V, err error) {
	// A dispatcher may run the continuation and still panic afterwards.
	if !t.finished.CompareAndSwap(false, true) {
		return
	}
	t.result = value
	t.err = err

	finishedAt := time.Now()
	t.record.FinishedAt = finishedAt
	t.record.Duration = finishedAt.Sub(t.record.StartedAt)

	outcome := "ok"
	if err != nil {
		t.record.Failed = true
		t.record.Err = err.Error()
		var te *TaskError
		if errors.As(err, &te) {
			t.record.Phase = te.Phase
			outcome = string(te.Phase)
		}
		t.tracker.markFailed()
		t.config.Logger.Error("background task failed",
			F("task", t.name), F("task_id", t.id.String()), F("run_id", t.record.RunID), F("error", err))
	} else {
		t.config.Logger.Debug("background task completed",
			F("task", t.name), F("task_id", t.id.String()), F("run_id", t.record.RunID),
			F("duration", t.record.Duration))
	}
	t.config.Metrics.RecordTaskCompleted(t.category, outcome)
	if t.history != nil {
		t.history.Add(t.record)
	}

	t.setState(State(t.state.Load()), StateCompleted)
	t.latch.Signal()
}

func (t *BackgroundTask[V]) setState(from, to State) {
	t.state.Store(int32(to))
	t.tracker.transition(from, to)
}

// =============================================================================
// Waiting
// =============================================================================

// WaitForCompletion blocks until the task has completed or ctx is done.
//
// It may be called from any goroutine, any number of times, before or after
// Execute. If Execute is never called and ctx never ends, it blocks forever.
//
// Returns:
// - nil when both behaviors completed without failure
// - a *TaskError when the task failed in any phase
// - an error matching ErrInterrupted and ctx.Err() when ctx ended first;
//   the task itself is unaffected and may be waited on again
func (t *BackgroundTask[V]) WaitForCompletion(ctx context.Context) error {
	if err := t.latch.Wait(ctx); err != nil {
		return interrupted(err)
	}
	return t.err
}

// WaitForCompletionTimeout is WaitForCompletion bounded by d.
func (t *BackgroundTask[V]) WaitForCompletionTimeout(d time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	return t.WaitForCompletion(ctx)
}

// Done returns a channel closed once the task has completed.
func (t *BackgroundTask[V]) Done() <-chan struct{} {
	return t.latch.Done()
}

// Result returns the computed value and the task failure, if any.
// Returns ErrNotCompleted until the completion signal is released.
func (t *BackgroundTask[V]) Result() (V, error) {
	if !t.latch.IsSignaled() {
		var zero V
		return zero, ErrNotCompleted
	}
	return t.result, t.err
}

// Record returns the execution record of a completed task.
func (t *BackgroundTask[V]) Record() (TaskExecutionRecord, bool) {
	if !t.latch.IsSignaled() {
		return TaskExecutionRecord{}, false
	}
	return t.record, true
}

func (t *BackgroundTask[V]) String() string {
	return fmt.Sprintf("%s[%s]", t.name, t.State())
}

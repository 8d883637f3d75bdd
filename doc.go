// Package backgroundtask runs a computation on a background goroutine and
// hands its result to a post-processing step on a single UI thread.
//
// A BackgroundTask has two behaviors: a compute step that may be slow and runs
// off the UI thread, and a post-process step that receives the computed value
// and runs on the UI thread, where state owned by that thread can be touched
// without locks. Callers may wait for the whole two-phase task to finish.
//
// # Basic Usage
//
//	backgroundtask.InitGlobalUIThread()
//	defer backgroundtask.ShutdownGlobalUIThread()
//
//	task, err := backgroundtask.Run(
//	    func(ctx context.Context) (int, error) {
//	        return 42, nil // runs on a background goroutine
//	    },
//	    func(ctx context.Context, v int, err error) {
//	        label.SetText(strconv.Itoa(v)) // runs on the UI thread
//	    },
//	)
//	if err != nil {
//	    return err
//	}
//	if err := task.WaitForCompletion(ctx); err != nil {
//	    return err
//	}
//
// # Dispatchers
//
// The UI thread is reached through a Dispatcher. UIThread is a FIFO event loop
// on a dedicated goroutine. A GUI toolkit's own "run on main" primitive can be
// wrapped with DispatcherFunc instead.
//
// # Failures
//
// Every task completes, whatever happens to it. A compute error is handed to
// the post-process step and then returned from WaitForCompletion as a
// *TaskError. Panics in either step are recovered and reported the same way,
// tagged with the phase that failed. If the dispatcher rejects the
// continuation the task completes with PhaseDispatch.
//
// # Lifecycle
//
// A task moves Pending -> Running -> PostProcessing -> Completed and may be
// executed only once. A second Execute returns ErrAlreadyStarted.
package backgroundtask

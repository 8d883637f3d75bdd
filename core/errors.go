package core

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadyStarted is returned by Execute when the task was already started.
	ErrAlreadyStarted = errors.New("background task already started")

	// ErrInterrupted is returned by WaitForCompletion when the waiter gave up
	// before the task completed. The context error is wrapped alongside it.
	ErrInterrupted = errors.New("wait for completion interrupted")

	// ErrNoDispatcher is returned by Execute when no dispatcher was configured.
	ErrNoDispatcher = errors.New("background task has no dispatcher")

	// ErrDispatcherClosed is returned by Submit on a dispatcher that no longer accepts work.
	ErrDispatcherClosed = errors.New("dispatcher is closed")

	// ErrNotCompleted is returned by Result before the task has completed.
	ErrNotCompleted = errors.New("background task not completed")
)

// Phase names the step of a background task in which a failure happened.
type Phase string

const (
	PhaseCompute     Phase = "compute"
	PhaseDispatch    Phase = "dispatch"
	PhasePostProcess Phase = "post_process"
)

// TaskError is the failure delivered through the completion path of a
// background task.
type TaskError struct {
	TaskID TaskID
	Name   string
	Phase  Phase
	Err    error
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("%s (id %s) failed during %s: %v", e.Name, e.TaskID, e.Phase, e.Err)
}

func (e *TaskError) Unwrap() error {
	return e.Err
}

// PanicError carries a value recovered from a panicking task together with
// the stack at the time of the panic.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Unwrap exposes the panic value when it was itself an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

func interrupted(cause error) error {
	return fmt.Errorf("%w: %w", ErrInterrupted, cause)
}

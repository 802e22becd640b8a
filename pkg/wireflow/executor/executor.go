// Package executor runs node work off the calling goroutine.
//
// An Executor accepts a Task and returns a Future immediately. Callers
// either block on Future.Result or, as composites do, register a done
// callback and keep dispatching other work.
package executor

import (
	"errors"
	"fmt"
)

// Sentinel errors for executor operations.
var (
	// ErrShutdown indicates Submit was called after Shutdown.
	ErrShutdown = errors.New("executor is shut down")

	// ErrCancelled indicates a future was cancelled before it ran.
	ErrCancelled = errors.New("future cancelled")

	// ErrUnknownExecutor indicates lazy instructions name an unregistered constructor.
	ErrUnknownExecutor = errors.New("unknown executor")
)

// Task is a unit of work submitted to an executor.
type Task func() (any, error)

// Executor submits tasks for asynchronous execution.
// Implementations must be safe for concurrent use.
type Executor interface {
	// Submit schedules task and returns its pending result.
	Submit(task Task) (*Future, error)

	// Shutdown stops accepting work. When cancelFutures is true, tasks that
	// have not started are cancelled. When wait is true, Shutdown blocks
	// until running tasks finish.
	Shutdown(wait, cancelFutures bool)
}

// PanicError captures a panic raised by a submitted task.
type PanicError struct {
	Value any
	Stack string
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("task panicked: %v", e.Value)
}

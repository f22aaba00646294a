package snapshot

import (
	"context"
	"errors"
	"fmt"
)

// Exception type names reported for failed jobs.
const (
	ExceptionTimeLimit     = "TimeLimitExceeded"
	ExceptionWorkerLost    = "WorkerLostError"
	ExceptionPanic         = "Panic"
	ExceptionRuntime       = "RuntimeError"
	ExceptionNotRegistered = "NotRegistered"
)

// kinded is implemented by errors that name their own exception type.
type kinded interface {
	Kind() string
}

// ExceptionFromError converts a task error into the descriptor stored with
// a failed job.
func ExceptionFromError(err error) *Exception {
	if err == nil {
		return nil
	}
	var k kinded
	switch {
	case errors.As(err, &k):
		return &Exception{Type: k.Kind(), Message: err.Error()}
	case errors.Is(err, context.DeadlineExceeded):
		return &Exception{Type: ExceptionTimeLimit, Message: err.Error()}
	case errors.Is(err, context.Canceled):
		return &Exception{Type: ExceptionWorkerLost, Message: err.Error()}
	default:
		return &Exception{Type: ExceptionRuntime, Message: err.Error()}
	}
}

// ExceptionFromPanic describes a recovered panic.
func ExceptionFromPanic(rec any) *Exception {
	return &Exception{Type: ExceptionPanic, Message: fmt.Sprint(rec)}
}

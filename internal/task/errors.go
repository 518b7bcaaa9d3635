package task

import "fmt"

// Error is the coded error type for scheduler-facing failures.
// Callers match with errors.Is against the sentinel values below;
// the code is the stable identifier surfaced to producers.
type Error struct {
	Code    int
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("task error %d: %s", e.Code, e.Message)
}

var (
	// ErrInvalidStateTransition is returned for illegal lifecycle moves.
	// The call is a no-op; task state is left unchanged.
	ErrInvalidStateTransition = &Error{Code: 1001, Message: "invalid task state transition"}

	// ErrCyclicDependency is returned at submission when the new task would
	// close a dependency cycle. The task never enters the queue.
	ErrCyclicDependency = &Error{Code: 1002, Message: "cyclic task dependency"}

	// ErrDeadlineExceeded marks a task auto-failed because its deadline
	// passed while it was still pending.
	ErrDeadlineExceeded = &Error{Code: 1003, Message: "task deadline exceeded"}

	// ErrAdmissionDenied is returned when the envelope does not permit
	// the task's risk level.
	ErrAdmissionDenied = &Error{Code: 1004, Message: "task admission denied by autonomy envelope"}

	// ErrUnknownTask is returned for lifecycle operations on ids the
	// scheduler does not know.
	ErrUnknownTask = &Error{Code: 1005, Message: "unknown task id"}

	// ErrNilExec is returned at submission when the task has no body.
	ErrNilExec = &Error{Code: 1006, Message: "task has no execution body"}
)

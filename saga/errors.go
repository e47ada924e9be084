package saga

import (
	"fmt"
	"time"
)

type SagaNotFoundError struct {
	s string
}

func (e SagaNotFoundError) Error() string {
	return e.s
}

func NewSagaNotFoundError(sagaID string) error {
	return SagaNotFoundError{
		s: fmt.Sprintf("saga %s does not exist", sagaID),
	}
}

// Returns true if the error is a SagaNotFoundError. Callers decide the
// API mapping for lookups of unknown ids.
func IsSagaNotFound(err error) bool {
	_, ok := err.(SagaNotFoundError)
	return ok
}

type StepTimeoutError struct {
	s string
}

func (e StepTimeoutError) Error() string {
	return e.s
}

func NewStepTimeoutError(stepName string, timeout time.Duration) error {
	return StepTimeoutError{
		s: fmt.Sprintf("step %s timed out after %s", stepName, timeout),
	}
}

func IsStepTimeout(err error) bool {
	_, ok := err.(StepTimeoutError)
	return ok
}

// CompensationFailedError marks a saga whose automatic rollback itself
// failed. This is terminal and unrecoverable by automation; the saga is
// dead-lettered for operator action rather than the error being returned
// from Execute.
type CompensationFailedError struct {
	s string
}

func (e CompensationFailedError) Error() string {
	return e.s
}

func NewCompensationFailedError(stepName string, cause error) error {
	return CompensationFailedError{
		s: fmt.Sprintf("compensation for step %s failed: %s", stepName, cause),
	}
}

func IsCompensationFailed(err error) bool {
	_, ok := err.(CompensationFailedError)
	return ok
}

package saga

import (
	"context"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/wavelet/txnflow/eventstore"
)

/*
 * Execute runs the saga's steps strictly in declaration order. Each
 * step's action is attempted up to MaxRetries times with exponential
 * backoff between attempts; exhausting retries stops iteration and
 * triggers reverse-order compensation of the completed steps.
 *
 * Returns (true, nil) when every step completed and the saga is
 * COMPLETED. Returns (false, nil) for the modeled failure paths: the
 * saga ends ROLLED_BACK when all compensations succeed, or FAILED and
 * dead-lettered when a compensation fails. A SagaNotFoundError or a
 * truly unexpected orchestrator error (a panic escaping a handler) is
 * returned as the error, the latter after dead-lettering the saga.
 */
func (o *Orchestrator) Execute(ctx context.Context, sagaID string) (completed bool, err error) {
	s, ok := o.GetSaga(sagaID)
	if !ok {
		return false, NewSagaNotFoundError(sagaID)
	}

	s.execMu.Lock()
	defer s.execMu.Unlock()

	lat := o.stat.Latency("executeLatency_ms").Time()
	defer lat.Stop()

	s.mutex.Lock()
	now := time.Now()
	s.Status = InProgress
	s.StartedAt = &now
	s.mutex.Unlock()

	steps := s.GetSteps()
	log.Infof("Executing saga %s (%s, %d steps)", s.ID, s.TransactionType, len(steps))
	o.reportStart(s)
	o.append(eventstore.Initiated, s.ID,
		eventstore.MakeInitiatedPayload(s.UserID, s.TransactionType, s.Amount))

	defer func() {
		if r := recover(); r != nil {
			fatal := errors.Errorf("saga %s: unexpected orchestrator error: %v", s.ID, r)
			log.Errorf("%s, dead lettering saga", fatal)
			o.failSaga(s, fatal)
			o.reportComplete(s, ReportFailed, fatal.Error())
			completed, err = false, fatal
		}
	}()

	for _, step := range steps {
		if stepErr := o.runStep(ctx, s, step); stepErr != nil {
			o.append(eventstore.Failed, s.ID, eventstore.MakeFailedPayload(stepErr.Error()))
			o.compensate(ctx, s)
			o.reportComplete(s, ReportFailed, stepErr.Error())
			return false, nil
		}
		o.append(eventstore.StepCompleted, s.ID, eventstore.MakeStepCompletedPayload(step.Name))
	}

	s.mutex.Lock()
	doneAt := time.Now()
	s.Status = Completed
	s.CompletedAt = &doneAt
	s.mutex.Unlock()

	o.stat.Counter("completedSagaCounter").Inc(1)
	o.reportComplete(s, ReportCompleted, "")
	o.append(eventstore.Settled, s.ID, nil)
	log.Infof("Saga %s completed", s.ID)
	return true, nil
}

/*
 * Attempts the step's action under the retry policy. On success the step
 * is marked COMPLETED, its result stored, and it is appended to the
 * saga's completed list. Returns the last attempt's error once retries
 * are exhausted, with the step marked FAILED.
 */
func (o *Orchestrator) runStep(ctx context.Context, s *Saga, step *SagaStep) error {
	var result interface{}

	operation := func() error {
		s.mutex.Lock()
		step.Status = StepExecuting
		step.Attempts++
		attempt := step.Attempts
		s.mutex.Unlock()

		log.Debugf("Saga %s step %s try #%d", s.ID, step.Name, attempt)
		r, err := o.runAttempt(ctx, s, step)
		if err != nil {
			s.mutex.Lock()
			step.Err = err
			s.mutex.Unlock()
			return err
		}
		result = r
		return nil
	}

	if err := backoff.Retry(operation, o.backOffFor(step)); err != nil {
		s.mutex.Lock()
		step.Status = StepFailed
		step.Err = err
		s.mutex.Unlock()

		o.stat.Counter("failedStepCounter").Inc(1)
		log.Errorf("Saga %s step %s failed after %d attempts: %s", s.ID, step.Name, step.Attempts, err)
		return err
	}

	s.mutex.Lock()
	doneAt := time.Now()
	step.Status = StepCompleted
	step.Result = result
	step.Err = nil
	step.CompletedAt = &doneAt
	s.CompletedSteps = append(s.CompletedSteps, step)
	s.mutex.Unlock()

	o.stat.Counter("completedStepCounter").Inc(1)
	return nil
}

/*
 * Runs a single attempt of the step's action, enforcing the step timeout
 * when one is set. The handler runs in its own goroutine so a blocking
 * action cannot stall the saga past its deadline; a timed-out attempt
 * counts as a failed attempt and feeds the retry loop. A panic in the
 * handler is re-raised on the orchestrator goroutine, where Execute
 * treats it as a fatal unexpected error.
 */
func (o *Orchestrator) runAttempt(ctx context.Context, s *Saga, step *SagaStep) (interface{}, error) {
	if step.Timeout <= 0 {
		return step.Handler.Execute(ctx, s)
	}

	attemptCtx, cancel := context.WithTimeout(ctx, step.Timeout)
	defer cancel()

	type outcome struct {
		result interface{}
		err    error
	}
	done := make(chan outcome, 1)
	panicked := make(chan interface{}, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				panicked <- r
			}
		}()
		r, err := step.Handler.Execute(attemptCtx, s)
		done <- outcome{r, err}
	}()

	select {
	case out := <-done:
		return out.result, out.err
	case r := <-panicked:
		panic(r)
	case <-attemptCtx.Done():
		// The handler goroutine is abandoned; handlers must honor ctx so
		// the underlying work is canceled too.
		return nil, NewStepTimeoutError(step.Name, step.Timeout)
	}
}

/*
 * Applies compensations for the completed steps in strict reverse order.
 * If every compensation succeeds the saga ends ROLLED_BACK. If one
 * fails, compensation stops immediately, the remaining steps are left
 * un-compensated, and the saga is FAILED and dead-lettered: automation
 * cannot recover it, an operator must.
 */
func (o *Orchestrator) compensate(ctx context.Context, s *Saga) {
	s.mutex.Lock()
	s.Status = Compensating
	s.mutex.Unlock()

	completed := s.completedSnapshot()
	log.Infof("Compensating saga %s, %d completed steps", s.ID, len(completed))

	for i := len(completed) - 1; i >= 0; i-- {
		step := completed[i]

		s.mutex.Lock()
		step.Status = StepCompensating
		s.mutex.Unlock()

		if err := o.runCompensation(ctx, s, step); err != nil {
			s.mutex.Lock()
			step.Err = err
			s.mutex.Unlock()

			compErr := NewCompensationFailedError(step.Name, err)
			log.Errorf("Saga %s: %s, dead lettering saga", s.ID, compErr)
			o.failSaga(s, compErr)
			return
		}

		s.mutex.Lock()
		step.Status = StepCompensated
		s.mutex.Unlock()
		log.Debugf("Saga %s compensated step %s", s.ID, step.Name)
	}

	s.mutex.Lock()
	doneAt := time.Now()
	s.Status = RolledBack
	s.CompletedAt = &doneAt
	s.mutex.Unlock()

	o.stat.Counter("rolledBackSagaCounter").Inc(1)
	o.append(eventstore.Reversed, s.ID, nil)
	log.Infof("Saga %s rolled back", s.ID)
}

// A panicking compensator is handled like a failing one: the saga is
// already rolling back, so the only escalation left is the dead-letter.
func (o *Orchestrator) runCompensation(ctx context.Context, s *Saga, step *SagaStep) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("compensation panic: %v", r)
		}
	}()
	return step.Compensator.Compensate(ctx, s, step.Result)
}

// failSaga marks the saga FAILED with the given terminal error and
// appends it to the dead-letter list.
func (o *Orchestrator) failSaga(s *Saga, cause error) {
	s.mutex.Lock()
	doneAt := time.Now()
	s.Status = Failed
	s.CompletedAt = &doneAt
	s.Err = cause
	s.mutex.Unlock()

	o.stat.Counter("failedSagaCounter").Inc(1)
	o.addToDeadletter(s)
}

/*
 * RetrySaga fully resets a saga and re-executes it from the first step.
 * It does NOT resume from the point of failure: every step is reset to
 * PENDING with a zero attempt counter, the saga is removed from the
 * dead-letter list, and Execute runs again from scratch. Actions must be
 * idempotent, or compensation must have fully reverted state, for the
 * restart to be safe.
 */
func (o *Orchestrator) RetrySaga(ctx context.Context, sagaID string) (bool, error) {
	s, ok := o.GetSaga(sagaID)
	if !ok {
		return false, NewSagaNotFoundError(sagaID)
	}

	o.mutex.Lock()
	o.removeFromDeadletterLocked(sagaID)
	o.mutex.Unlock()

	s.execMu.Lock()
	s.reset()
	s.execMu.Unlock()

	o.stat.Counter("retriedSagaCounter").Inc(1)
	log.Infof("Retrying saga %s from the first step", s.ID)
	return o.Execute(ctx, sagaID)
}

// append writes an audit event, when an event log is attached. Append
// failures are logged and otherwise ignored: the ledger never affects
// execution.
func (o *Orchestrator) append(eventType eventstore.EventType, sagaID string, data eventstore.Payload) {
	if o.elog == nil {
		return
	}
	if _, err := o.elog.Append(eventType, sagaID, data); err != nil {
		log.Errorf("Failed to append %s event for saga %s: %s", eventType, sagaID, err)
	}
}

func (o *Orchestrator) reportStart(s *Saga) {
	if o.reporter == nil {
		return
	}
	o.reporter.RecordTransactionStart(s.ID, s.UserID, s.TransactionType, s.Amount)
}

func (o *Orchestrator) reportComplete(s *Saga, status string, errMsg string) {
	if o.reporter == nil {
		return
	}
	o.reporter.RecordTransactionComplete(s.ID, status, errMsg)
}

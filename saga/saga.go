// Package saga provides an orchestration-based implementation of the
// Saga pattern for multi-step financial operations. A saga executes its
// steps strictly in declaration order and, on failure, applies each
// completed step's compensation in exact reverse order, so partial
// effects are undone in the inverse of the order they were applied.
// For info on the Saga pattern, see:
// https://speakerdeck.com/caitiem20/applying-the-saga-pattern
package saga

import (
	"fmt"
	"sync"
	"time"
)

type SagaStatus int

const (
	Pending SagaStatus = iota
	InProgress
	Completed
	Compensating
	Failed
	RolledBack
)

func (s SagaStatus) String() string {
	switch s {
	case Pending:
		return "PENDING"
	case InProgress:
		return "IN_PROGRESS"
	case Completed:
		return "COMPLETED"
	case Compensating:
		return "COMPENSATING"
	case Failed:
		return "FAILED"
	case RolledBack:
		return "ROLLED_BACK"
	default:
		return "unknown"
	}
}

type StepStatus int

const (
	StepPending StepStatus = iota
	StepExecuting
	StepCompleted
	StepFailed
	StepCompensating
	StepCompensated
)

func (s StepStatus) String() string {
	switch s {
	case StepPending:
		return "PENDING"
	case StepExecuting:
		return "EXECUTING"
	case StepCompleted:
		return "COMPLETED"
	case StepFailed:
		return "FAILED"
	case StepCompensating:
		return "COMPENSATING"
	case StepCompensated:
		return "COMPENSATED"
	default:
		return "unknown"
	}
}

// Default delay seeding the exponential backoff between step attempts.
const DefaultRetryDelay = time.Second

/*
 * A single unit of work within a Saga. The handler performs the step's
 * action; the compensator undoes it given the action's result. A step is
 * never re-entered once COMPLETED except via a full RetrySaga reset.
 *
 * Timeout, when > 0, is enforced per attempt: the handler's context is
 * canceled after Timeout elapses and the attempt counts as failed.
 * Handlers are expected to honor context cancellation.
 */
type SagaStep struct {
	ID          string
	Name        string
	Handler     StepHandler
	Compensator Compensator
	Timeout     time.Duration
	MaxRetries  int
	RetryDelay  time.Duration
	Status      StepStatus
	Attempts    int
	Err         error
	Result      interface{}
	CompletedAt *time.Time
}

/*
 * Aggregate root for orchestration. Owned exclusively by the
 * Orchestrator: mutated only by orchestrator methods, destroyed only by
 * an explicit Purge. Field access is guarded by mutex; execMu serializes
 * Execute/RetrySaga so steps of one saga never run in parallel while
 * distinct sagas may.
 */
type Saga struct {
	ID              string
	UserID          string
	TransactionType string
	Amount          float64
	Metadata        map[string]string
	Status          SagaStatus
	CreatedAt       time.Time
	StartedAt       *time.Time
	CompletedAt     *time.Time
	Steps           []*SagaStep
	CompletedSteps  []*SagaStep
	Err             error

	mutex  sync.RWMutex
	execMu sync.Mutex
}

// Flattened point-in-time record of a saga for status queries.
type StatusView struct {
	ID              string     `json:"id"`
	UserID          string     `json:"user_id"`
	TransactionType string     `json:"transaction_type"`
	Amount          float64    `json:"amount"`
	Status          string     `json:"status"`
	CreatedAt       time.Time  `json:"created_at"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	DurationMs      float64    `json:"duration_ms,omitempty"`
	Error           string     `json:"error,omitempty"`
	StepsTotal      int        `json:"steps_total"`
	StepsCompleted  int        `json:"steps_completed"`
}

/*
 * Returns a consistent flattened copy of the saga's current state.
 * Safe to call while the saga is executing.
 */
func (s *Saga) StatusView() StatusView {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	view := StatusView{
		ID:              s.ID,
		UserID:          s.UserID,
		TransactionType: s.TransactionType,
		Amount:          s.Amount,
		Status:          s.Status.String(),
		CreatedAt:       s.CreatedAt,
		StartedAt:       s.StartedAt,
		CompletedAt:     s.CompletedAt,
		StepsTotal:      len(s.Steps),
		StepsCompleted:  len(s.CompletedSteps),
	}
	if s.Err != nil {
		view.Error = s.Err.Error()
	}
	if s.StartedAt != nil && s.CompletedAt != nil {
		view.DurationMs = float64(s.CompletedAt.Sub(*s.StartedAt)) / float64(time.Millisecond)
	}
	return view
}

// Returns the current status. Safe for concurrent use.
func (s *Saga) GetStatus() SagaStatus {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.Status
}

// Returns a copy of the step list, for reporting.
func (s *Saga) GetSteps() []*SagaStep {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	steps := make([]*SagaStep, len(s.Steps))
	copy(steps, s.Steps)
	return steps
}

// completedSnapshot copies the completed-step list under the saga lock.
func (s *Saga) completedSnapshot() []*SagaStep {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	completed := make([]*SagaStep, len(s.CompletedSteps))
	copy(completed, s.CompletedSteps)
	return completed
}

// reset returns the saga and every step to its initial PENDING shape for
// a fresh full-restart execution. Caller holds no locks.
func (s *Saga) reset() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.Status = Pending
	s.StartedAt = nil
	s.CompletedAt = nil
	s.CompletedSteps = nil
	s.Err = nil
	for _, step := range s.Steps {
		step.Status = StepPending
		step.Attempts = 0
		step.Err = nil
		step.Result = nil
		step.CompletedAt = nil
	}
}

func (s *Saga) String() string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return fmt.Sprintf("Saga %s: %s, %s, steps %d/%d",
		s.ID, s.TransactionType, s.Status, len(s.CompletedSteps), len(s.Steps))
}

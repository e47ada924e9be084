package saga

import (
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	uuid "github.com/nu7hatch/gouuid"
	log "github.com/sirupsen/logrus"

	"github.com/wavelet/txnflow/common/stats"
)

/*
 * Orchestrator owns the process-wide saga registry and the dead-letter
 * list. It is the only component that makes execution decisions (retry,
 * compensate, dead-letter). Construct one at startup and pass it by
 * handle; there is no hidden module-level instance.
 */
type Orchestrator struct {
	sagas      map[string]*Saga
	deadletter []*Saga
	mutex      sync.RWMutex

	elog     EventLog
	reporter Reporter
	stat     stats.StatsReceiver

	// Builds the per-step retry policy. Overridable so tests can run
	// with zero delay.
	newBackOff func(step *SagaStep) backoff.BackOff
}

// Aggregate counters over the saga registry.
type Statistics struct {
	TotalSagas     int `json:"total_sagas"`
	Completed      int `json:"completed"`
	Failed         int `json:"failed"`
	RolledBack     int `json:"rolled_back"`
	Active         int `json:"active"`
	DeadletterSize int `json:"deadletter_size"`
}

/*
 * Make an Orchestrator. The event log and reporter may be nil, in which
 * case audit events and monitor reporting are skipped. A nil stat
 * receiver defaults to the nil implementation.
 */
func NewOrchestrator(elog EventLog, reporter Reporter, stat stats.StatsReceiver) *Orchestrator {
	if stat == nil {
		stat = stats.NilStatsReceiver()
	}
	return &Orchestrator{
		sagas:      make(map[string]*Saga),
		elog:       elog,
		reporter:   reporter,
		stat:       stat.Scope("saga"),
		newBackOff: defaultBackOff,
	}
}

// The single retry policy: exponential backoff with jitter, seeded by
// the step's RetryDelay, capped at MaxRetries total attempts.
func defaultBackOff(step *SagaStep) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	if step.RetryDelay > 0 {
		b.InitialInterval = step.RetryDelay
	}
	b.MaxElapsedTime = 0
	retries := step.MaxRetries - 1
	if retries < 0 {
		retries = 0
	}
	return backoff.WithMaxRetries(b, uint64(retries))
}

// SetBackOffFactory overrides the retry policy for every subsequent
// step execution. Intended for tests. Safe to call while sagas are
// executing; in-flight steps keep the policy they started with.
func (o *Orchestrator) SetBackOffFactory(f func(step *SagaStep) backoff.BackOff) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.newBackOff = f
}

// backOffFor builds the step's retry policy from the current factory.
func (o *Orchestrator) backOffFor(step *SagaStep) backoff.BackOff {
	o.mutex.RLock()
	f := o.newBackOff
	o.mutex.RUnlock()
	return f(step)
}

/*
 * Allocate a new PENDING saga with a fresh unique id. Always succeeds.
 */
func (o *Orchestrator) CreateSaga(userID string, transactionType string, amount float64, metadata map[string]string) *Saga {
	id, err := uuid.NewV4()
	if err != nil {
		// rand.Reader failing means the process is unusable
		panic("uuid generation failed: " + err.Error())
	}

	s := &Saga{
		ID:              id.String(),
		UserID:          userID,
		TransactionType: transactionType,
		Amount:          amount,
		Metadata:        metadata,
		Status:          Pending,
		CreatedAt:       time.Now(),
	}

	o.mutex.Lock()
	o.sagas[s.ID] = s
	o.mutex.Unlock()

	o.stat.Counter("createdSagaCounter").Inc(1)
	log.Infof("Created saga %s: %s %s %.2f", s.ID, userID, transactionType, amount)
	return s
}

/*
 * Append a step to the saga's step list in call order. Steps execute in
 * exactly the order they are added; no reordering or dependency
 * validation is performed.
 */
func (o *Orchestrator) AddStep(sagaID string, name string, handler StepHandler, compensator Compensator, timeout time.Duration, maxRetries int) (*SagaStep, error) {
	s, ok := o.GetSaga(sagaID)
	if !ok {
		return nil, NewSagaNotFoundError(sagaID)
	}

	id, err := uuid.NewV4()
	if err != nil {
		panic("uuid generation failed: " + err.Error())
	}

	step := &SagaStep{
		ID:          id.String(),
		Name:        name,
		Handler:     handler,
		Compensator: compensator,
		Timeout:     timeout,
		MaxRetries:  maxRetries,
		RetryDelay:  DefaultRetryDelay,
		Status:      StepPending,
	}

	s.mutex.Lock()
	s.Steps = append(s.Steps, step)
	s.mutex.Unlock()

	return step, nil
}

// Returns the saga for the given id, false if unknown.
func (o *Orchestrator) GetSaga(sagaID string) (*Saga, bool) {
	o.mutex.RLock()
	defer o.mutex.RUnlock()
	s, ok := o.sagas[sagaID]
	return s, ok
}

// Returns a copy of the dead-letter list: sagas whose automatic rollback
// failed and which require manual operator intervention.
func (o *Orchestrator) Deadletter() []*Saga {
	o.mutex.RLock()
	defer o.mutex.RUnlock()
	dl := make([]*Saga, len(o.deadletter))
	copy(dl, o.deadletter)
	return dl
}

func (o *Orchestrator) Statistics() Statistics {
	o.mutex.RLock()
	defer o.mutex.RUnlock()

	st := Statistics{
		TotalSagas:     len(o.sagas),
		DeadletterSize: len(o.deadletter),
	}
	for _, s := range o.sagas {
		switch s.GetStatus() {
		case Completed:
			st.Completed++
		case Failed:
			st.Failed++
		case RolledBack:
			st.RolledBack++
		case InProgress, Compensating:
			st.Active++
		}
	}
	return st
}

/*
 * Explicitly destroy a saga: remove it from the registry and the
 * dead-letter list. Returns false if the id is unknown. Sagas are never
 * destroyed implicitly.
 */
func (o *Orchestrator) Purge(sagaID string) bool {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	if _, ok := o.sagas[sagaID]; !ok {
		return false
	}
	delete(o.sagas, sagaID)
	o.removeFromDeadletterLocked(sagaID)
	return true
}

// Caller must hold o.mutex.
func (o *Orchestrator) removeFromDeadletterLocked(sagaID string) {
	for i, dl := range o.deadletter {
		if dl.ID == sagaID {
			o.deadletter = append(o.deadletter[:i], o.deadletter[i+1:]...)
			return
		}
	}
}

// addToDeadletter appends the saga if not already present, so a saga
// appears in the dead-letter list at most once.
func (o *Orchestrator) addToDeadletter(s *Saga) {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	for _, dl := range o.deadletter {
		if dl.ID == s.ID {
			return
		}
	}
	o.deadletter = append(o.deadletter, s)
	o.stat.Counter("deadletterCounter").Inc(1)
}

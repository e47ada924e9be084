package monitor

import (
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/wavelet/txnflow/common/stats"
)

// Trailing window used by the default health snapshot.
const DefaultWindow = time.Hour

// Health snapshots retained for trend queries.
const maxHistory = 1440

/*
 * Monitor owns the process-wide metrics registry, failure log, all-time
 * timing samples, and health-snapshot history. Construct one at startup
 * and pass it by handle. Reads for reporting take point-in-time copies
 * under the lock rather than iterating live state.
 */
type Monitor struct {
	mutex     sync.RWMutex
	clock     stats.StatsTime
	stat      stats.StatsReceiver
	metrics   map[string]*TransactionMetrics
	durations []float64 // all-time duration samples, ms
	failures  []FailureRecord
	history   []HealthSnapshot

	// Gauge callbacks supplied by the orchestrator so the monitor never
	// reaches into another component's state.
	activeSagas    func() int
	deadletterSize func() int
}

/*
 * Make a Monitor. A nil clock defaults to the stdlib time package; a nil
 * stat receiver defaults to the nil implementation.
 */
func NewMonitor(clock stats.StatsTime, stat stats.StatsReceiver) *Monitor {
	if clock == nil {
		clock = stats.DefaultStatsTime()
	}
	if stat == nil {
		stat = stats.NilStatsReceiver()
	}
	return &Monitor{
		clock:   clock,
		stat:    stat.Scope("monitor"),
		metrics: make(map[string]*TransactionMetrics),
	}
}

// SetActiveSagasFn registers the callback reported as active_sagas in
// health snapshots.
func (m *Monitor) SetActiveSagasFn(f func() int) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.activeSagas = f
}

// SetDeadletterSizeFn registers the callback reported as deadletter_size
// in health snapshots.
func (m *Monitor) SetDeadletterSizeFn(f func() int) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.deadletterSize = f
}

/*
 * Record the start of a transaction. Overwrites any prior record with
 * the same id: the last start wins.
 */
func (m *Monitor) RecordTransactionStart(transactionID string, userID string, transactionType string, amount float64) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.metrics[transactionID] = &TransactionMetrics{
		TransactionID:   transactionID,
		UserID:          userID,
		TransactionType: transactionType,
		Amount:          amount,
		StartedAt:       m.clock.Now(),
		Status:          StatusInProgress,
	}
	m.stat.Counter("startedTransactionCounter").Inc(1)
}

/*
 * Finalize a transaction. A transactionID that was never started is a
 * benign no-op, not an error. A transaction that already completed is
 * left untouched. The duration sample is recorded and, for failed
 * status, an entry is appended to the failure log.
 */
func (m *Monitor) RecordTransactionComplete(transactionID string, status string, errMsg string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	txn, ok := m.metrics[transactionID]
	if !ok {
		log.Debugf("Ignoring completion for unknown transaction %s", transactionID)
		return
	}
	if txn.CompletedAt != nil {
		log.Debugf("Ignoring duplicate completion for transaction %s", transactionID)
		return
	}

	now := m.clock.Now()
	txn.CompletedAt = &now
	txn.Status = status
	txn.Error = errMsg

	if durationMs, ok := txn.DurationMs(); ok {
		m.durations = append(m.durations, durationMs)
		m.stat.Histogram("transactionLatency_ms").Update(int64(durationMs))
	}

	if status == StatusFailed {
		m.failures = append(m.failures, FailureRecord{
			TransactionID:   transactionID,
			Timestamp:       now,
			Error:           errMsg,
			TransactionType: txn.TransactionType,
		})
		m.stat.Counter("failedTransactionCounter").Inc(1)
	} else {
		m.stat.Counter("completedTransactionCounter").Inc(1)
	}
}

// GetTransaction returns a copy of the metrics record for the id.
func (m *Monitor) GetTransaction(transactionID string) (TransactionMetrics, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	txn, ok := m.metrics[transactionID]
	if !ok {
		return TransactionMetrics{}, false
	}
	return *txn, true
}

// snapshotMetrics copies the registry for lock-free report computation.
func (m *Monitor) snapshotMetrics() []TransactionMetrics {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	all := make([]TransactionMetrics, 0, len(m.metrics))
	for _, txn := range m.metrics {
		all = append(all, *txn)
	}
	return all
}

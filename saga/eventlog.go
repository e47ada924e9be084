package saga

import (
	"github.com/wavelet/txnflow/eventstore"
)

/*
 * EventLog is the audit-trail extension point. The orchestrator appends
 * lifecycle events keyed by saga id; the log is a passive ledger and
 * never drives execution. eventstore.Store is the provided in-memory
 * implementation; durable backends implement the same contract.
 */
type EventLog interface {
	Append(eventType eventstore.EventType, aggregateID string, data eventstore.Payload) (eventstore.Event, error)
}

/*
 * Reporter receives per-transaction timing/outcome as sagas execute.
 * It is a passive observer and never affects control flow.
 * monitor.Monitor is the provided implementation.
 */
type Reporter interface {
	RecordTransactionStart(transactionID string, userID string, transactionType string, amount float64)
	RecordTransactionComplete(transactionID string, status string, errMsg string)
}

// Reporter status strings, matching the monitor's vocabulary.
const (
	ReportCompleted = "completed"
	ReportFailed    = "failed"
)

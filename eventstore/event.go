// Package eventstore provides an append-only, per-aggregate versioned
// log of transaction events. State for an aggregate is reconstructed by
// replaying its events in version order; the log is a passive ledger and
// never drives execution.
package eventstore

import (
	"fmt"
	"time"
)

type EventType string

// Standard transaction lifecycle event types. Callers may append events
// with their own domain-specific types; the replay fold ignores types it
// does not know.
const (
	Initiated     EventType = "INITIATED"
	Authorized    EventType = "AUTHORIZED"
	Cleared       EventType = "CLEARED"
	Settled       EventType = "SETTLED"
	Failed        EventType = "FAILED"
	Reversed      EventType = "REVERSED"
	StepCompleted EventType = "STEP_COMPLETED"
)

// Payload is the opaque event body. Well-known keys used by the replay
// fold and the audit export are defined below.
type Payload map[string]interface{}

const (
	PayloadUserID          = "user_id"
	PayloadTransactionType = "transaction_type"
	PayloadAmount          = "amount"
	PayloadReason          = "reason"
	PayloadStepName        = "step"
)

/*
 * A single immutable entry in the event log. Version is assigned per
 * aggregate by the store, forming the contiguous sequence 1..N for each
 * aggregate id. An Event is never edited or deleted once appended.
 */
type Event struct {
	ID            string    `json:"event_id"`
	Type          EventType `json:"event_type"`
	AggregateID   string    `json:"aggregate_id"`
	Timestamp     time.Time `json:"timestamp"`
	Version       int       `json:"version"`
	Data          Payload   `json:"data,omitempty"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	ServiceName   string    `json:"service_name,omitempty"`
}

func (e Event) String() string {
	return fmt.Sprintf("Event %s: Aggregate %s, Version %d", e.Type, e.AggregateID, e.Version)
}

/*
 * Payload factories for the standard lifecycle events. Appending a
 * hand-built Payload is fine too, these just keep the well-known keys
 * consistent.
 */
func MakeInitiatedPayload(userID string, transactionType string, amount float64) Payload {
	return Payload{
		PayloadUserID:          userID,
		PayloadTransactionType: transactionType,
		PayloadAmount:          amount,
	}
}

func MakeFailedPayload(reason string) Payload {
	return Payload{
		PayloadReason: reason,
	}
}

func MakeStepCompletedPayload(stepName string) Payload {
	return Payload{
		PayloadStepName: stepName,
	}
}

// copyPayload copies the top-level payload map. Nested values are shared,
// callers must treat payloads as immutable once appended.
func copyPayload(p Payload) Payload {
	if p == nil {
		return nil
	}
	cp := make(Payload, len(p))
	for k, v := range p {
		cp[k] = v
	}
	return cp
}

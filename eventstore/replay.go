package eventstore

import (
	"time"
)

// Aggregate status strings produced by the replay fold.
const (
	StatusInitiated  = "initiated"
	StatusAuthorized = "authorized"
	StatusCleared    = "cleared"
	StatusSettled    = "settled"
	StatusFailed     = "failed"
	StatusReversed   = "reversed"
)

/*
 * Data structure representation of the current state of an aggregate,
 * derived purely from its ordered events. Replaying the same event list
 * always yields an identical state.
 */
type AggregateState struct {
	AggregateID     string     `json:"aggregate_id"`
	Status          string     `json:"status"`
	UserID          string     `json:"user_id,omitempty"`
	TransactionType string     `json:"transaction_type,omitempty"`
	Amount          float64    `json:"amount,omitempty"`
	InitiatedAt     *time.Time `json:"initiated_at,omitempty"`
	AuthorizedAt    *time.Time `json:"authorized_at,omitempty"`
	ClearedAt       *time.Time `json:"cleared_at,omitempty"`
	SettledAt       *time.Time `json:"settled_at,omitempty"`
	ReversedAt      *time.Time `json:"reversed_at,omitempty"`
	FailureReason   string     `json:"failure_reason,omitempty"`
	Version         int        `json:"version"`
	Events          []Event    `json:"events"`
}

/*
 * Reconstructs aggregate state by folding its events in version order.
 * Returns an AggregateNotFoundError if no events exist for the id.
 */
func (s *Store) Replay(aggregateID string) (AggregateState, error) {
	events := s.ForAggregate(aggregateID)
	if len(events) == 0 {
		return AggregateState{}, NewAggregateNotFoundError(aggregateID)
	}
	return replayState(aggregateID, events), nil
}

// The pure fold. Unknown event types advance the version only.
func replayState(aggregateID string, events []Event) AggregateState {
	state := AggregateState{
		AggregateID: aggregateID,
		Events:      events,
	}

	for _, e := range events {
		ts := e.Timestamp
		switch e.Type {
		case Initiated:
			state.Status = StatusInitiated
			state.InitiatedAt = &ts
			if uid, ok := e.Data[PayloadUserID].(string); ok {
				state.UserID = uid
			}
			if tt, ok := e.Data[PayloadTransactionType].(string); ok {
				state.TransactionType = tt
			}
			if amt, ok := e.Data[PayloadAmount].(float64); ok {
				state.Amount = amt
			}

		case Authorized:
			state.Status = StatusAuthorized
			state.AuthorizedAt = &ts

		case Cleared:
			state.Status = StatusCleared
			state.ClearedAt = &ts

		case Settled:
			state.Status = StatusSettled
			state.SettledAt = &ts

		case Failed:
			state.Status = StatusFailed
			if reason, ok := e.Data[PayloadReason].(string); ok {
				state.FailureReason = reason
			}

		case Reversed:
			state.Status = StatusReversed
			state.ReversedAt = &ts
		}

		state.Version = e.Version
	}

	return state
}

package eventstore

import (
	"fmt"
	"sort"
	"sync"
	"time"

	uuid "github.com/nu7hatch/gouuid"
	log "github.com/sirupsen/logrus"
)

type InvalidAggregateIDError struct {
	s string
}

func (e InvalidAggregateIDError) Error() string {
	return e.s
}

func NewInvalidAggregateIDError(msg string, args ...interface{}) error {
	return InvalidAggregateIDError{
		s: fmt.Sprintf(msg, args...),
	}
}

type AggregateNotFoundError struct {
	s string
}

func (e AggregateNotFoundError) Error() string {
	return e.s
}

func NewAggregateNotFoundError(aggregateID string) error {
	return AggregateNotFoundError{
		s: fmt.Sprintf("no events recorded for aggregate %s", aggregateID),
	}
}

/*
 * In-memory implementation of the event log, DOES NOT durably persist
 * events. Durable backends implement the same operations behind the
 * saga.EventLog extension point.
 */
type Store struct {
	events    []Event
	versions  map[string]int
	snapshots map[string]Snapshot
	mutex     sync.RWMutex
	clock     func() time.Time
}

// A cached replay result for one aggregate. Snapshots are never
// invalidated automatically, callers refresh them after new events.
type Snapshot struct {
	State     AggregateState `json:"state"`
	Version   int            `json:"version"`
	CreatedAt time.Time      `json:"created_at"`
}

func MakeInMemoryStore() *Store {
	return &Store{
		versions:  make(map[string]int),
		snapshots: make(map[string]Snapshot),
		clock:     time.Now,
	}
}

/*
 * Append an event to the log. Computes the next contiguous version for
 * the aggregate, assigns a fresh unique id and the current timestamp.
 * The only validation is a non-empty aggregate id.
 */
func (s *Store) Append(eventType EventType, aggregateID string, data Payload) (Event, error) {
	return s.AppendCorrelated(eventType, aggregateID, data, "", "")
}

// Like Append but carries correlation metadata for cross-service tracing.
func (s *Store) AppendCorrelated(eventType EventType, aggregateID string, data Payload, correlationID string, serviceName string) (Event, error) {
	if aggregateID == "" {
		return Event{}, NewInvalidAggregateIDError("aggregateId cannot be the empty string")
	}

	id, err := uuid.NewV4()
	if err != nil {
		return Event{}, err
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	version := s.versions[aggregateID] + 1
	event := Event{
		ID:            id.String(),
		Type:          eventType,
		AggregateID:   aggregateID,
		Timestamp:     s.clock(),
		Version:       version,
		Data:          copyPayload(data),
		CorrelationID: correlationID,
		ServiceName:   serviceName,
	}

	s.events = append(s.events, event)
	s.versions[aggregateID] = version

	log.Debugf("Appended event %s v%d for aggregate %s", eventType, version, aggregateID)
	return event, nil
}

/*
 * Returns the events for the specified aggregate in append (== version)
 * order. Returns an empty slice if the aggregate is unknown.
 */
func (s *Store) ForAggregate(aggregateID string) []Event {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	matched := make([]Event, 0)
	for _, e := range s.events {
		if e.AggregateID == aggregateID {
			matched = append(matched, e)
		}
	}
	return matched
}

// Returns all events of the given type in append order.
func (s *Store) ByType(eventType EventType) []Event {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	matched := make([]Event, 0)
	for _, e := range s.events {
		if e.Type == eventType {
			matched = append(matched, e)
		}
	}
	return matched
}

// Returns all events with a timestamp at or after the given instant.
func (s *Store) Since(t time.Time) []Event {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	matched := make([]Event, 0)
	for _, e := range s.events {
		if !e.Timestamp.Before(t) {
			matched = append(matched, e)
		}
	}
	return matched
}

// LastVersion returns the version of the most recently appended event for
// the aggregate, 0 if none exist.
func (s *Store) LastVersion(aggregateID string) int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.versions[aggregateID]
}

/*
 * Cache the given replayed state for the aggregate so later reads can
 * skip a full replay. Overwrites any prior snapshot.
 */
func (s *Store) CreateSnapshot(aggregateID string, state AggregateState) Snapshot {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	snap := Snapshot{
		State:     state,
		Version:   s.versions[aggregateID],
		CreatedAt: s.clock(),
	}
	s.snapshots[aggregateID] = snap
	return snap
}

func (s *Store) GetSnapshot(aggregateID string) (Snapshot, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	snap, ok := s.snapshots[aggregateID]
	return snap, ok
}

// RefreshSnapshot replays the aggregate and stores the result as its
// snapshot in one call.
func (s *Store) RefreshSnapshot(aggregateID string) (Snapshot, error) {
	state, err := s.Replay(aggregateID)
	if err != nil {
		return Snapshot{}, err
	}
	return s.CreateSnapshot(aggregateID, state), nil
}

/*
 * AuditExport returns every event of every transaction belonging to the
 * user, in chronological order, for compliance reporting. A transaction
 * belongs to the user when its INITIATED event's user_id payload
 * matches; only the INITIATED payload carries the user id, so ownership
 * is resolved per aggregate before collecting that aggregate's full
 * event history. The result is JSON-serializable as-is.
 */
func (s *Store) AuditExport(userID string) []Event {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	owned := make(map[string]bool)
	for _, e := range s.events {
		if e.Type != Initiated || e.Data == nil {
			continue
		}
		if uid, ok := e.Data[PayloadUserID].(string); ok && uid == userID {
			owned[e.AggregateID] = true
		}
	}

	matched := make([]Event, 0)
	for _, e := range s.events {
		if owned[e.AggregateID] {
			matched = append(matched, e)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Timestamp.Before(matched[j].Timestamp)
	})
	return matched
}

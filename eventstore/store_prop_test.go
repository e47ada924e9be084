// +build property_test

package eventstore

import (
	"reflect"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/prop"
)

func Test_VersionsAreContiguous(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 1000
	properties := gopter.NewProperties(parameters)

	properties.Property("per-aggregate versions form the sequence 1..N with no gaps", prop.ForAll(
		func(ops []appendOp) bool {
			store := MakeInMemoryStore()
			counts := make(map[string]int)
			for _, op := range ops {
				if _, err := store.Append(op.Type, op.AggregateID, nil); err != nil {
					return false
				}
				counts[op.AggregateID]++
			}

			for id, n := range counts {
				events := store.ForAggregate(id)
				if len(events) != n {
					return false
				}
				for i, e := range events {
					if e.Version != i+1 {
						return false
					}
				}
				if store.LastVersion(id) != n {
					return false
				}
			}
			return true
		},
		GenAppendOps(),
	))

	properties.TestingRun(t)
}

func Test_ReplayIsPureAndIdempotent(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 1000
	properties := gopter.NewProperties(parameters)

	properties.Property("replaying the same stored events twice yields equal states", prop.ForAll(
		func(ops []appendOp) bool {
			store := MakeInMemoryStore()
			seen := false
			for _, op := range ops {
				store.Append(op.Type, "TX-REPLAY", MakeInitiatedPayload("user1", "transfer", 10))
				seen = true
			}
			if !seen {
				return true
			}

			first, err1 := store.Replay("TX-REPLAY")
			second, err2 := store.Replay("TX-REPLAY")
			return err1 == nil && err2 == nil && reflect.DeepEqual(first, second)
		},
		GenAppendOps(),
	))

	properties.TestingRun(t)
}

// +build property_test

package eventstore

import (
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
)

// GenEventType generates one of the standard lifecycle event types.
func GenEventType() gopter.Gen {
	return gen.OneConstOf(
		Initiated, Authorized, Cleared, Settled, Failed, Reversed, StepCompleted)
}

// GenAggregateID generates ids from a small pool so that generated
// sequences interleave events of the same aggregate.
func GenAggregateID() gopter.Gen {
	return gen.OneConstOf("TX-1", "TX-2", "TX-3", "TX-4", "TX-5")
}

type appendOp struct {
	AggregateID string
	Type        EventType
}

// GenAppendOps generates a random sequence of append operations.
func GenAppendOps() gopter.Gen {
	return gen.SliceOf(gopter.CombineGens(
		GenAggregateID(),
		GenEventType(),
	).Map(func(values []interface{}) appendOp {
		return appendOp{
			AggregateID: values[0].(string),
			Type:        values[1].(EventType),
		}
	}))
}

package saga

import (
	"context"
)

// StepHandler performs a step's action. It receives the owning saga for
// context (metadata, amount, prior step results) and returns an opaque
// result that is stored on the step and later passed to the compensator.
// Handlers wrap calls into account/ledger repositories; they are assumed
// idempotent or side-effect-safe on retry.
type StepHandler interface {
	Execute(ctx context.Context, saga *Saga) (interface{}, error)
}

// Compensator undoes the effect of a completed step given the result its
// handler produced. A compensator may itself fail, which dead-letters
// the saga for operator triage.
type Compensator interface {
	Compensate(ctx context.Context, saga *Saga, result interface{}) error
}

// HandlerFunc adapts a plain function to the StepHandler interface.
type HandlerFunc func(ctx context.Context, saga *Saga) (interface{}, error)

func (f HandlerFunc) Execute(ctx context.Context, saga *Saga) (interface{}, error) {
	return f(ctx, saga)
}

// CompensatorFunc adapts a plain function to the Compensator interface.
type CompensatorFunc func(ctx context.Context, saga *Saga, result interface{}) error

func (f CompensatorFunc) Compensate(ctx context.Context, saga *Saga, result interface{}) error {
	return f(ctx, saga, result)
}

// NoCompensation is for steps with no effect to undo (e.g. a final
// notification step).
var NoCompensation Compensator = CompensatorFunc(
	func(ctx context.Context, saga *Saga, result interface{}) error {
		return nil
	})

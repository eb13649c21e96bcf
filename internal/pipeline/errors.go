package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/leafsii/reserve-bootstrap/internal/gateway"
)

// Kind classifies why a step failed.
type Kind string

const (
	// KindPrecondition means something the step depends on is missing:
	// an unresolved address, a missing role or feed, invalid parameters.
	KindPrecondition Kind = "precondition"
	// KindTransient failures survived every retry of the gateway.
	KindTransient Kind = "transient"
	// KindRejected means the protocol refused the transaction.
	KindRejected Kind = "rejected"
	// KindAtomicBatch means a batch transaction failed and none of its
	// entries took effect.
	KindAtomicBatch Kind = "atomic_batch"
	KindCanceled    Kind = "canceled"
)

var (
	ErrUnresolved    = errors.New("pipeline: address not resolved")
	ErrMissingFeed   = errors.New("pipeline: no price feed configured")
	ErrInvalidParams = errors.New("pipeline: invalid parameters")
	ErrVerification  = errors.New("pipeline: on-chain state differs from submitted values")
)

// StepError describes a failed step.
type StepError struct {
	Stage  Stage
	Symbol string
	Step   string
	Kind   Kind
	Err    error
}

func (e *StepError) Error() string {
	where := string(e.Stage)
	if e.Symbol != "" {
		where += "/" + e.Symbol
	}
	if e.Step != "" {
		where += "/" + e.Step
	}
	return fmt.Sprintf("%s (%s): %v", where, e.Kind, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

func stepError(stage Stage, symbol, step string, err error) *StepError {
	var se *StepError
	if errors.As(err, &se) {
		return se
	}
	return &StepError{Stage: stage, Symbol: symbol, Step: step, Kind: kindOf(err), Err: err}
}

func kindOf(err error) Kind {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	case errors.Is(err, gateway.ErrTransient):
		return KindTransient
	case errors.Is(err, gateway.ErrNotFound),
		errors.Is(err, gateway.ErrUnauthorized),
		errors.Is(err, ErrUnresolved),
		errors.Is(err, ErrMissingFeed),
		errors.Is(err, ErrInvalidParams):
		return KindPrecondition
	default:
		return KindRejected
	}
}

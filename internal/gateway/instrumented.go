package gateway

import (
	"context"
	"errors"
	"time"
)

// Recorder receives call outcomes. *metrics.Metrics implements it.
type Recorder interface {
	RecordTransaction(ctx context.Context, function, profile, status string, d time.Duration)
	RecordView(ctx context.Context, function, status string, d time.Duration)
}

type Instrumented struct {
	next     Gateway
	recorder Recorder
}

func NewInstrumented(next Gateway, recorder Recorder) *Instrumented {
	return &Instrumented{next: next, recorder: recorder}
}

func (i *Instrumented) SendTransaction(ctx context.Context, sender Account, fn FunctionID, args ...Arg) (*CommittedResult, error) {
	start := time.Now()
	res, err := i.next.SendTransaction(ctx, sender, fn, args...)
	i.recorder.RecordTransaction(ctx, fn.Name(), sender.Profile, Status(err), time.Since(start))
	return res, err
}

func (i *Instrumented) CallView(ctx context.Context, fn FunctionID, args ...Arg) ([]Value, error) {
	start := time.Now()
	values, err := i.next.CallView(ctx, fn, args...)
	i.recorder.RecordView(ctx, fn.Name(), Status(err), time.Since(start))
	return values, err
}

// Status is a low-cardinality label for an error.
func Status(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrAlreadyExists):
		return "already_exists"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrTransient):
		return "transient"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "rejected"
	}
}

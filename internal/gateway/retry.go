package gateway

import (
	"context"
	"time"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
)

type RetryOptions struct {
	MaxRetries uint64
	Base       time.Duration
	MaxDelay   time.Duration
}

// Retrying re-issues calls that failed with ErrTransient. Any other
// failure is returned on the first attempt.
type Retrying struct {
	next   Gateway
	opts   RetryOptions
	logger *zap.SugaredLogger
}

func NewRetrying(next Gateway, opts RetryOptions, logger *zap.SugaredLogger) *Retrying {
	if opts.Base <= 0 {
		opts.Base = 500 * time.Millisecond
	}
	if opts.MaxDelay <= 0 {
		opts.MaxDelay = 10 * time.Second
	}
	return &Retrying{next: next, opts: opts, logger: logger}
}

func (r *Retrying) backoff() retry.Backoff {
	b := retry.NewExponential(r.opts.Base)
	b = retry.WithCappedDuration(r.opts.MaxDelay, b)
	return retry.WithMaxRetries(r.opts.MaxRetries, b)
}

func (r *Retrying) SendTransaction(ctx context.Context, sender Account, fn FunctionID, args ...Arg) (*CommittedResult, error) {
	var (
		res     *CommittedResult
		attempt int
	)
	err := retry.Do(ctx, r.backoff(), func(ctx context.Context) error {
		attempt++
		var err error
		res, err = r.next.SendTransaction(ctx, sender, fn, args...)
		if IsTransient(err) {
			r.logger.Warnw("transient transaction failure, retrying",
				"function", fn.Name(),
				"sender", sender.Profile,
				"attempt", attempt,
				"error", err,
			)
			return retry.RetryableError(err)
		}
		return err
	})
	return res, err
}

func (r *Retrying) CallView(ctx context.Context, fn FunctionID, args ...Arg) ([]Value, error) {
	var values []Value
	err := retry.Do(ctx, r.backoff(), func(ctx context.Context) error {
		var err error
		values, err = r.next.CallView(ctx, fn, args...)
		if IsTransient(err) {
			r.logger.Debugw("transient view failure, retrying", "function", fn.Name(), "error", err)
			return retry.RetryableError(err)
		}
		return err
	})
	return values, err
}

package record

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/leafsii/reserve-bootstrap/pkg/kv"
	"go.uber.org/zap"
)

// ErrLeaseHeld is returned when another run holds the bootstrap lease of
// a network.
var ErrLeaseHeld = errors.New("record: bootstrap lease held by another run")

func deploymentKey(network string) string { return "deployment:" + network }
func leaseKey(network string) string      { return "bootstrap:lease:" + network }

// Publisher writes records and leases to a kv.Store.
type Publisher struct {
	store  kv.Store
	logger *zap.SugaredLogger
}

func NewPublisher(store kv.Store, logger *zap.SugaredLogger) *Publisher {
	return &Publisher{store: store, logger: logger}
}

// Publish stores the record under deployment:<network>. Every resolved
// address gets its own field so consumers can read one token without
// decoding the whole record.
func (p *Publisher) Publish(ctx context.Context, rec Record) error {
	key := deploymentKey(rec.Network)
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	fields := map[string][]byte{
		"run_id": []byte(rec.RunID),
		"record": data,
	}
	for _, t := range append(append([]Token(nil), rec.Underlyings...), rec.Derived...) {
		if t.Account != nil {
			fields["token:"+t.Symbol] = []byte(t.Account.String())
		}
	}
	for _, f := range rec.Feeds {
		fields["feed:"+f.Symbol] = []byte(f.FeedID)
	}
	if err := p.store.HSet(ctx, key, fields); err != nil {
		return fmt.Errorf("publish %s: %w", key, err)
	}
	p.logger.Infow("deployment record published", "key", key, "fields", len(fields))
	return nil
}

// Latest returns the last record published for network.
func (p *Publisher) Latest(ctx context.Context, network string) (Record, error) {
	var rec Record
	data, err := p.store.HGet(ctx, deploymentKey(network), "record")
	if err != nil {
		return rec, err
	}
	if err := json.Unmarshal(data, &rec); err != nil {
		return rec, fmt.Errorf("decode record: %w", err)
	}
	return rec, nil
}

// Acquire takes the bootstrap lease of network for runID. The returned
// release func drops the lease if it is still ours.
func (p *Publisher) Acquire(ctx context.Context, network, runID string, ttl time.Duration) (func(context.Context) error, error) {
	key := leaseKey(network)
	ok, err := p.store.SetNX(ctx, key, []byte(runID), ttl)
	if err != nil {
		return nil, fmt.Errorf("acquire lease: %w", err)
	}
	if !ok {
		holder, _ := p.store.Get(ctx, key)
		return nil, fmt.Errorf("%w: %s", ErrLeaseHeld, holder)
	}
	p.logger.Debugw("bootstrap lease acquired", "network", network, "run_id", runID, "ttl", ttl)

	release := func(ctx context.Context) error {
		released, err := p.store.CompareAndDelete(ctx, key, []byte(runID))
		if err != nil {
			return fmt.Errorf("release lease: %w", err)
		}
		if !released {
			p.logger.Warnw("bootstrap lease expired before release", "network", network, "run_id", runID)
		}
		return nil
	}
	return release, nil
}

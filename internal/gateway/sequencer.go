package gateway

import (
	"context"
	"sync"
)

// Sequencer serializes transactions per sender address so that two
// submissions never race for the same gas coin or sequence number. A
// sender's lane is held until its transaction commits; waits of distinct
// senders overlap. Views pass straight through.
type Sequencer struct {
	next Gateway

	mu    sync.Mutex
	lanes map[string]*sync.Mutex
}

func NewSequencer(next Gateway) *Sequencer {
	return &Sequencer{next: next, lanes: make(map[string]*sync.Mutex)}
}

func (s *Sequencer) lane(sender Account) *sync.Mutex {
	key := sender.Profile
	if sender.Address != nil {
		key = sender.Address.String()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.lanes[key]
	if !ok {
		l = new(sync.Mutex)
		s.lanes[key] = l
	}
	return l
}

func (s *Sequencer) SendTransaction(ctx context.Context, sender Account, fn FunctionID, args ...Arg) (*CommittedResult, error) {
	l := s.lane(sender)
	l.Lock()
	defer l.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.next.SendTransaction(ctx, sender, fn, args...)
}

func (s *Sequencer) CallView(ctx context.Context, fn FunctionID, args ...Arg) ([]Value, error) {
	return s.next.CallView(ctx, fn, args...)
}

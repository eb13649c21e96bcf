package memory

import (
	"bytes"
	"context"
	"maps"
	"sync"
	"time"

	"github.com/leafsii/reserve-bootstrap/pkg/kv"
)

func init() {
	kv.Register(kv.BackendMemory, func(cfg kv.Config) (kv.Store, error) {
		return New(cfg.SweepInterval), nil
	})
}

// entry is either a string value or a hash.
type entry struct {
	value   []byte
	fields  map[string][]byte
	expires time.Time
}

func (e *entry) expired(now time.Time) bool {
	return !e.expires.IsZero() && !now.Before(e.expires)
}

// Store keeps everything in process memory. It is the default backend for
// localnet runs and tests.
type Store struct {
	mu      sync.Mutex
	entries map[string]*entry
	now     func() time.Time

	stop chan struct{}
	done chan struct{}
	once sync.Once
}

// New returns an empty store. A positive sweep interval starts a goroutine
// that drops expired keys; expired keys are invisible either way.
func New(sweep time.Duration) *Store {
	s := &Store{
		entries: make(map[string]*entry),
		now:     time.Now,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	if sweep > 0 {
		go s.sweepLoop(sweep)
	} else {
		close(s.done)
	}
	return s
}

func (s *Store) sweepLoop(every time.Duration) {
	defer close(s.done)
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			s.sweep()
		case <-s.stop:
			return
		}
	}
}

func (s *Store) sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for k, e := range s.entries {
		if e.expired(now) {
			delete(s.entries, k)
		}
	}
}

// live returns the unexpired entry of key. Callers hold mu.
func (s *Store) live(key string) *entry {
	e, ok := s.entries[key]
	if !ok {
		return nil
	}
	if e.expired(s.now()) {
		delete(s.entries, key)
		return nil
	}
	return e
}

func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.live(key)
	if e == nil || e.fields != nil {
		return nil, kv.ErrNotFound
	}
	return bytes.Clone(e.value), nil
}

func (s *Store) SetNX(_ context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.live(key) != nil {
		return false, nil
	}
	e := &entry{value: bytes.Clone(value)}
	if ttl > 0 {
		e.expires = s.now().Add(ttl)
	}
	s.entries[key] = e
	return true, nil
}

func (s *Store) CompareAndDelete(_ context.Context, key string, expected []byte) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.live(key)
	if e == nil || e.fields != nil || !bytes.Equal(e.value, expected) {
		return false, nil
	}
	delete(s.entries, key)
	return true, nil
}

func (s *Store) HSet(_ context.Context, key string, fields map[string][]byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.live(key)
	if e == nil || e.fields == nil {
		e = &entry{fields: make(map[string][]byte, len(fields))}
		s.entries[key] = e
	}
	for f, v := range fields {
		e.fields[f] = bytes.Clone(v)
	}
	return nil
}

func (s *Store) HGet(_ context.Context, key, field string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.live(key)
	if e == nil {
		return nil, kv.ErrNotFound
	}
	v, ok := e.fields[field]
	if !ok {
		return nil, kv.ErrNotFound
	}
	return bytes.Clone(v), nil
}

func (s *Store) HGetAll(_ context.Context, key string) (map[string][]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.live(key)
	if e == nil || len(e.fields) == 0 {
		return nil, kv.ErrNotFound
	}
	out := maps.Clone(e.fields)
	for f, v := range out {
		out[f] = bytes.Clone(v)
	}
	return out, nil
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error {
	s.once.Do(func() {
		close(s.stop)
		<-s.done
	})
	return nil
}

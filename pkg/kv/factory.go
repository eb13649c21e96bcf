package kv

import (
	"context"
	"fmt"
	"sync"
	"time"
)

type Backend string

const (
	BackendMemory Backend = "memory"
	BackendRedis  Backend = "redis"
)

// Opener builds a store of one backend.
type Opener func(cfg Config) (Store, error)

type Config struct {
	Backend Backend

	// RedisURL is a redis:// URL or a bare host:port.
	RedisURL string
	// Strict turns an unreachable Redis into an error. Otherwise Open
	// falls back to the memory backend.
	Strict       bool
	ProbeTimeout time.Duration

	// SweepInterval is how often the memory backend drops expired keys.
	SweepInterval time.Duration

	// Logf receives backend selection events.
	Logf func(msg string, keysAndValues ...interface{})
}

var (
	openersMu sync.RWMutex
	openers   = map[Backend]Opener{}
)

// Register makes a backend available to Open. Backend packages call it
// from init.
func Register(b Backend, open Opener) {
	openersMu.Lock()
	defer openersMu.Unlock()
	openers[b] = open
}

func opener(b Backend) (Opener, error) {
	openersMu.RLock()
	defer openersMu.RUnlock()
	open, ok := openers[b]
	if !ok {
		return nil, fmt.Errorf("kv: backend %q not registered", b)
	}
	return open, nil
}

func (c Config) withDefaults() Config {
	if c.Backend == "" {
		c.Backend = BackendMemory
	}
	if c.ProbeTimeout <= 0 {
		c.ProbeTimeout = time.Second
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = 30 * time.Second
	}
	if c.Logf == nil {
		c.Logf = func(string, ...interface{}) {}
	}
	return c
}

// Open builds the store selected by cfg. A Redis store is probed first;
// when the probe fails and cfg.Strict is unset the memory backend is used.
func Open(cfg Config) (Store, error) {
	cfg = cfg.withDefaults()
	switch cfg.Backend {
	case BackendMemory:
		open, err := opener(BackendMemory)
		if err != nil {
			return nil, err
		}
		return open(cfg)
	case BackendRedis:
		if cfg.RedisURL == "" {
			return nil, fmt.Errorf("kv: redis backend needs a URL")
		}
		store, err := openProbed(cfg)
		if err == nil {
			cfg.Logf("kv backend ready", "backend", BackendRedis)
			return store, nil
		}
		if cfg.Strict {
			return nil, err
		}
		cfg.Logf("redis unreachable, publishing to memory", "error", err.Error())
		return Open(Config{Backend: BackendMemory, SweepInterval: cfg.SweepInterval, Logf: cfg.Logf})
	default:
		return nil, fmt.Errorf("kv: unsupported backend %q", cfg.Backend)
	}
}

func openProbed(cfg Config) (Store, error) {
	open, err := opener(cfg.Backend)
	if err != nil {
		return nil, err
	}
	store, err := open(cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ProbeTimeout)
	defer cancel()
	if err := store.Ping(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return store, nil
}

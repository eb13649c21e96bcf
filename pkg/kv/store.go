package kv

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned for a missing key or hash field.
	ErrNotFound = errors.New("kv: not found")
	// ErrBackendUnavailable wraps errors from a backend that cannot be reached.
	ErrBackendUnavailable = errors.New("kv: backend unavailable")
)

// Store holds the published deployment records and the run leases.
//
// Values are plain byte strings and hashes. A key holds one or the other,
// never both.
type Store interface {
	// Get reads a string value.
	Get(ctx context.Context, key string) ([]byte, error)
	// SetNX writes value only when key is absent and reports whether it
	// did. A positive ttl expires the key.
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	// CompareAndDelete removes key only while it still holds expected.
	CompareAndDelete(ctx context.Context, key string, expected []byte) (bool, error)

	// HSet writes all fields of a hash in one operation.
	HSet(ctx context.Context, key string, fields map[string][]byte) error
	HGet(ctx context.Context, key, field string) ([]byte, error)
	HGetAll(ctx context.Context, key string) (map[string][]byte, error)

	Ping(ctx context.Context) error
	Close() error
}

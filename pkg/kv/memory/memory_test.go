package memory

import (
	"context"
	"testing"
	"time"

	"github.com/leafsii/reserve-bootstrap/pkg/kv"
	"github.com/leafsii/reserve-bootstrap/pkg/kv/kvtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConformance(t *testing.T) {
	kvtest.Run(t, func(*testing.T) kv.Store { return New(0) })
}

func TestSweepDropsExpiredKeys(t *testing.T) {
	s := New(10 * time.Millisecond)
	defer s.Close()

	ok, err := s.SetNX(context.Background(), "bootstrap:lease:localnet", []byte("run-1"), 20*time.Millisecond)
	require.NoError(t, err)
	require.True(t, ok)

	assert.Eventually(t, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		return len(s.entries) == 0
	}, time.Second, 10*time.Millisecond)
}

func TestExpiryUsesClock(t *testing.T) {
	s := New(0)
	now := time.Unix(1_700_000_000, 0)
	s.now = func() time.Time { return now }
	ctx := context.Background()

	_, err := s.SetNX(ctx, "k", []byte("v"), time.Minute)
	require.NoError(t, err)

	now = now.Add(59 * time.Second)
	_, err = s.Get(ctx, "k")
	require.NoError(t, err)

	now = now.Add(time.Second)
	_, err = s.Get(ctx, "k")
	assert.ErrorIs(t, err, kv.ErrNotFound)
}

func TestStringAndHashDoNotMix(t *testing.T) {
	s := New(0)
	ctx := context.Background()
	_, err := s.SetNX(ctx, "k", []byte("v"), 0)
	require.NoError(t, err)

	require.NoError(t, s.HSet(ctx, "k", map[string][]byte{"f": []byte("x")}))
	_, err = s.Get(ctx, "k")
	assert.ErrorIs(t, err, kv.ErrNotFound)

	ok, err := s.CompareAndDelete(ctx, "k", []byte("v"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestOpenMemory(t *testing.T) {
	s, err := kv.Open(kv.Config{})
	require.NoError(t, err)
	defer s.Close()
	assert.IsType(t, &Store{}, s)

	_, err = kv.Open(kv.Config{Backend: "etcd"})
	assert.Error(t, err)
}

func TestOpenFallsBackWhenRedisMissing(t *testing.T) {
	// Only the memory backend is registered in this package's tests.
	var logged []string
	s, err := kv.Open(kv.Config{
		Backend:  kv.BackendRedis,
		RedisURL: "127.0.0.1:1",
		Logf:     func(msg string, _ ...interface{}) { logged = append(logged, msg) },
	})
	require.NoError(t, err)
	defer s.Close()
	assert.IsType(t, &Store{}, s)
	assert.NotEmpty(t, logged)

	_, err = kv.Open(kv.Config{Backend: kv.BackendRedis, RedisURL: "127.0.0.1:1", Strict: true})
	assert.Error(t, err)

	_, err = kv.Open(kv.Config{Backend: kv.BackendRedis})
	assert.Error(t, err)
}

// Package kvtest checks that a kv.Store backend behaves like the others.
package kvtest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/leafsii/reserve-bootstrap/pkg/kv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Run exercises a fresh store from open in each subtest. Keys are
// prefixed with the subtest name so a shared server can be reused.
func Run(t *testing.T, open func(t *testing.T) kv.Store) {
	cases := map[string]func(t *testing.T, s kv.Store, ns string){
		"Missing":               missing,
		"SetNXKeepsFirst":       setNXKeepsFirst,
		"SetNXAfterExpiry":      setNXAfterExpiry,
		"CompareAndDelete":      compareAndDelete,
		"CompareAndDeleteRace":  compareAndDeleteRace,
		"HashWritesAllFields":   hashWritesAllFields,
		"HashMergesLaterWrites": hashMergesLaterWrites,
		"Ping":                  ping,
	}
	for name, fn := range cases {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			t.Cleanup(func() { _ = s.Close() })
			fn(t, s, "kvtest:"+name+":"+time.Now().Format("150405.000000000"))
		})
	}
}

func missing(t *testing.T, s kv.Store, ns string) {
	ctx := context.Background()
	_, err := s.Get(ctx, ns)
	assert.ErrorIs(t, err, kv.ErrNotFound)
	_, err = s.HGet(ctx, ns, "f")
	assert.ErrorIs(t, err, kv.ErrNotFound)
	_, err = s.HGetAll(ctx, ns)
	assert.ErrorIs(t, err, kv.ErrNotFound)
}

func setNXKeepsFirst(t *testing.T, s kv.Store, ns string) {
	ctx := context.Background()
	ok, err := s.SetNX(ctx, ns, []byte("run-1"), time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.SetNX(ctx, ns, []byte("run-2"), time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	v, err := s.Get(ctx, ns)
	require.NoError(t, err)
	assert.Equal(t, "run-1", string(v))
}

func setNXAfterExpiry(t *testing.T, s kv.Store, ns string) {
	ctx := context.Background()
	_, err := s.SetNX(ctx, ns, []byte("run-1"), 50*time.Millisecond)
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		ok, err := s.SetNX(ctx, ns, []byte("run-2"), time.Minute)
		return err == nil && ok
	}, 2*time.Second, 20*time.Millisecond)
}

func compareAndDelete(t *testing.T, s kv.Store, ns string) {
	ctx := context.Background()
	_, err := s.SetNX(ctx, ns, []byte("run-1"), time.Minute)
	require.NoError(t, err)

	ok, err := s.CompareAndDelete(ctx, ns, []byte("run-2"))
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.CompareAndDelete(ctx, ns, []byte("run-1"))
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = s.Get(ctx, ns)
	assert.ErrorIs(t, err, kv.ErrNotFound)

	ok, err = s.CompareAndDelete(ctx, ns, []byte("run-1"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func compareAndDeleteRace(t *testing.T, s kv.Store, ns string) {
	ctx := context.Background()
	_, err := s.SetNX(ctx, ns, []byte("run-1"), time.Minute)
	require.NoError(t, err)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		deleted int
	)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.CompareAndDelete(ctx, ns, []byte("run-1"))
			if err == nil && ok {
				mu.Lock()
				deleted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, deleted)
}

func hashWritesAllFields(t *testing.T, s kv.Store, ns string) {
	ctx := context.Background()
	fields := map[string][]byte{
		"run_id":     []byte("run-1"),
		"token:ADAI": []byte("0x2"),
	}
	require.NoError(t, s.HSet(ctx, ns, fields))

	v, err := s.HGet(ctx, ns, "token:ADAI")
	require.NoError(t, err)
	assert.Equal(t, "0x2", string(v))

	all, err := s.HGetAll(ctx, ns)
	require.NoError(t, err)
	assert.Equal(t, fields, all)

	_, err = s.HGet(ctx, ns, "token:AUSDC")
	assert.ErrorIs(t, err, kv.ErrNotFound)
}

func hashMergesLaterWrites(t *testing.T, s kv.Store, ns string) {
	ctx := context.Background()
	require.NoError(t, s.HSet(ctx, ns, map[string][]byte{"run_id": []byte("run-1"), "feed:VDAI": []byte("0x01")}))
	require.NoError(t, s.HSet(ctx, ns, map[string][]byte{"run_id": []byte("run-2")}))

	all, err := s.HGetAll(ctx, ns)
	require.NoError(t, err)
	assert.Equal(t, "run-2", string(all["run_id"]))
	assert.Equal(t, "0x01", string(all["feed:VDAI"]))
}

func ping(t *testing.T, s kv.Store, _ string) {
	assert.NoError(t, s.Ping(context.Background()))
}

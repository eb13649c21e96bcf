package redis

import (
	"context"
	"errors"
	"os"
	"syscall"
	"testing"

	"github.com/leafsii/reserve-bootstrap/pkg/kv"
	"github.com/leafsii/reserve-bootstrap/pkg/kv/kvtest"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConformance(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}
	kvtest.Run(t, func(t *testing.T) kv.Store {
		s, err := New(url)
		require.NoError(t, err)
		return s
	})
}

func TestNewAcceptsBareAddress(t *testing.T) {
	s, err := New("127.0.0.1:6390")
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, "127.0.0.1:6390", s.client.Options().Addr)

	s, err = New("redis://:secret@10.0.0.1:6379/2")
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, 2, s.client.Options().DB)
	assert.Equal(t, "secret", s.client.Options().Password)

	_, err = New("redis://host:port:junk/x")
	assert.Error(t, err)
}

func TestStrictOpenFailsWithoutServer(t *testing.T) {
	_, err := kv.Open(kv.Config{Backend: kv.BackendRedis, RedisURL: "127.0.0.1:1", Strict: true})
	assert.ErrorIs(t, err, kv.ErrBackendUnavailable)
}

func TestTranslate(t *testing.T) {
	assert.NoError(t, translate(nil))
	assert.ErrorIs(t, translate(redis.Nil), kv.ErrNotFound)
	assert.ErrorIs(t, translate(errors.New("dial tcp 127.0.0.1:6379: connect: connection refused")), kv.ErrBackendUnavailable)
	assert.ErrorIs(t, translate(syscall.ECONNRESET), kv.ErrBackendUnavailable)

	wrongType := errors.New("WRONGTYPE Operation against a key holding the wrong kind of value")
	assert.Equal(t, wrongType, translate(wrongType))
	assert.False(t, IsConnectionError(context.Canceled))
}

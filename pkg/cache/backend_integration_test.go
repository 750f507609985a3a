package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// These tests talk to real servers and only run when the address is provided:
//
//	FETCHQ_TEST_REDIS_ADDR=localhost:6379 FETCHQ_TEST_MONGO_URI=mongodb://localhost:27017 go test ./pkg/cache

func TestRedisCache_Integration(t *testing.T) {
	addr := os.Getenv("FETCHQ_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("FETCHQ_TEST_REDIS_ADDR not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	c, err := NewRedisCache(ctx, RedisConfig{Addr: addr, Prefix: "fetchq-test:"}, nil)
	require.NoError(t, err)
	defer c.Close()

	exerciseBackend(ctx, t, c)
}

func TestMongoCache_Integration(t *testing.T) {
	uri := os.Getenv("FETCHQ_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("FETCHQ_TEST_MONGO_URI not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	c, err := NewMongoCache(ctx, MongoConfig{URI: uri, Database: "fetchq_test"}, nil)
	require.NoError(t, err)
	defer c.Close()

	exerciseBackend(ctx, t, c)
}

func exerciseBackend(ctx context.Context, t *testing.T, c Cache) {
	t.Helper()
	key := "integration:" + time.Now().Format(time.RFC3339Nano)
	defer c.Delete(ctx, key)

	_, ok, err := c.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok, "fresh key should miss")

	require.NoError(t, c.Set(ctx, key, []byte(`{"id":1}`), 0))

	data, ok, err := c.Get(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `{"id":1}`, string(data))

	// The response layer works unchanged on top of the backend.
	bucket, err := NewStore(c).Open(ctx, "integration")
	require.NoError(t, err)
	require.NoError(t, bucket.Put(ctx, key, NewEntry([]byte("[]"), time.Now())))
	entry, ok, err := bucket.Match(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, entry.Fresh(time.Now(), time.Minute))
	_ = c.Delete(ctx, "response:integration:"+key)

	require.NoError(t, c.Delete(ctx, key))
	_, ok, err = c.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok, "deleted key should miss")
}

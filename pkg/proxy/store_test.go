package proxy

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticStore(t *testing.T) {
	t.Parallel()

	store := NewStaticStore(map[string]string{"GET /users": "http://users-svc"})
	store.Set("POST /orders", "http://orders-svc")

	target, err := store.Get(context.Background(), "GET /users")
	require.NoError(t, err)
	assert.Equal(t, "http://users-svc", target)

	target, err = store.Get(context.Background(), "POST /orders")
	require.NoError(t, err)
	assert.Equal(t, "http://orders-svc", target)

	target, err = store.Get(context.Background(), "GET /missing")
	require.NoError(t, err)
	assert.Empty(t, target)
}

func TestRedisTargetStore(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := NewRedisTargetStore(client, "")
	require.NoError(t, mr.Set("vireo:proxy:GET /users", "http://users-svc"))

	target, err := store.Get(context.Background(), "GET /users")
	require.NoError(t, err)
	assert.Equal(t, "http://users-svc", target)

	// A missing key means no target is configured, not an error.
	target, err = store.Get(context.Background(), "GET /missing")
	require.NoError(t, err)
	assert.Empty(t, target)
}

func TestRedisTargetStoreCustomPrefix(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := NewRedisTargetStore(client, "routes:")
	require.NoError(t, mr.Set("routes:DELETE /items/:id", "http://items-svc"))

	target, err := store.Get(context.Background(), "DELETE /items/:id")
	require.NoError(t, err)
	assert.Equal(t, "http://items-svc", target)
}

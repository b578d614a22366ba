package idempotency

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client, ""), mr
}

func stores(t *testing.T) map[string]Store {
	redisStore, _ := newRedisStore(t)
	return map[string]Store{
		"memory": NewMemoryStore(),
		"redis":  redisStore,
	}
}

func TestStore_ClaimCompleteLoad(t *testing.T) {
	ctx := context.Background()
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ok, err := store.Claim(ctx, "r1", time.Minute)
			require.NoError(t, err)
			assert.True(t, ok)

			ok, err = store.Claim(ctx, "r1", time.Minute)
			require.NoError(t, err)
			assert.False(t, ok, "second claim must lose")

			rec, found, err := store.Load(ctx, "r1")
			require.NoError(t, err)
			assert.True(t, found)
			assert.Equal(t, StatusPending, rec.Status)

			require.NoError(t, store.Complete(ctx, "r1", []byte(`{"success":true}`), time.Minute))
			rec, found, err = store.Load(ctx, "r1")
			require.NoError(t, err)
			assert.True(t, found)
			assert.Equal(t, Record{Status: StatusCompleted, Result: []byte(`{"success":true}`)}, rec)

			_, found, err = store.Load(ctx, "missing")
			require.NoError(t, err)
			assert.False(t, found)
		})
	}
}

func TestStore_ReleaseOnlyDropsPending(t *testing.T) {
	ctx := context.Background()
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := store.Claim(ctx, "pending", time.Minute)
			require.NoError(t, err)
			require.NoError(t, store.Release(ctx, "pending"))
			ok, err := store.Claim(ctx, "pending", time.Minute)
			require.NoError(t, err)
			assert.True(t, ok, "released id can be claimed again")

			_, err = store.Claim(ctx, "done", time.Minute)
			require.NoError(t, err)
			require.NoError(t, store.Complete(ctx, "done", []byte("x"), time.Minute))
			require.NoError(t, store.Release(ctx, "done"))
			rec, found, err := store.Load(ctx, "done")
			require.NoError(t, err)
			assert.True(t, found)
			assert.Equal(t, StatusCompleted, rec.Status)
		})
	}
}

func TestMemoryStore_Expiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	store := NewMemoryStore()
	store.now = func() time.Time { return now }

	ok, _ := store.Claim(ctx, "r1", time.Minute)
	require.True(t, ok)

	now = now.Add(time.Minute)
	ok, _ = store.Claim(ctx, "r1", time.Minute)
	assert.True(t, ok, "expired claim can be taken again")
}

func TestRedisStore_Expiry(t *testing.T) {
	ctx := context.Background()
	store, mr := newRedisStore(t)

	ok, err := store.Claim(ctx, "r1", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, mr.Exists("round:claim:r1"))

	mr.FastForward(2 * time.Minute)
	ok, err = store.Claim(ctx, "r1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisStore_UnavailableReturnsError(t *testing.T) {
	store, mr := newRedisStore(t)
	mr.Close()

	_, err := store.Claim(context.Background(), "r1", time.Minute)
	assert.Error(t, err)
}

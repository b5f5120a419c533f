package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/storefront/internal/domain/session"
)

func newTestStore(t *testing.T, ttl time.Duration) (*SnapshotStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewSnapshotStore(client, ttl), mr
}

func TestSnapshotStore_LoadMissing(t *testing.T) {
	store, _ := newTestStore(t, time.Hour)

	_, err := store.Load(context.Background(), "cart:nobody")
	require.ErrorIs(t, err, session.ErrSnapshotNotFound)
}

func TestSnapshotStore_SaveLoad(t *testing.T) {
	store, mr := newTestStore(t, time.Hour)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "cart:s1", []byte(`{"lines":[]}`)))
	require.NoError(t, store.Save(ctx, "cart:s1", []byte(`{"lines":[{"product_id":"lamp"}]}`)))

	data, err := store.Load(ctx, "cart:s1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"lines":[{"product_id":"lamp"}]}`, string(data))

	assert.True(t, mr.Exists("snapshot:cart:s1"))
	assert.Equal(t, time.Hour, mr.TTL("snapshot:cart:s1"))
}

func TestSnapshotStore_Expiry(t *testing.T) {
	store, mr := newTestStore(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "wishlist:s1", []byte(`{}`)))
	mr.FastForward(2 * time.Minute)

	_, err := store.Load(ctx, "wishlist:s1")
	require.ErrorIs(t, err, session.ErrSnapshotNotFound)
}

func TestSnapshotStore_DefaultTTL(t *testing.T) {
	store, mr := newTestStore(t, 0)

	require.NoError(t, store.Save(context.Background(), "checkout:s1", []byte(`{}`)))
	assert.Equal(t, DefaultTTL, mr.TTL("snapshot:checkout:s1"))
}

func TestSnapshotStore_ServerDown(t *testing.T) {
	store, mr := newTestStore(t, time.Hour)
	mr.Close()

	_, err := store.Load(context.Background(), "cart:s1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, session.ErrSnapshotNotFound)
	require.Error(t, store.Save(context.Background(), "cart:s1", []byte(`{}`)))
	require.Error(t, store.Ping(context.Background()))
}

package cartcache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xenking/greenhouse/internal/domain/cart"
)

func setupTestRedis(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return New(client, time.Hour), mr
}

func TestRedis_LoadMissing(t *testing.T) {
	snaps, _ := setupTestRedis(t)

	entries, err := snaps.Load(context.Background(), "u1")
	require.NoError(t, err)
	assert.Nil(t, entries)
}

func TestRedis_SaveLoad(t *testing.T) {
	snaps, mr := setupTestRedis(t)
	ctx := context.Background()
	want := []cart.Entry{{ProductID: "fern", Quantity: 2}, {ProductID: "moss", Quantity: 1}}

	require.NoError(t, snaps.Save(ctx, "u1", want))
	assert.True(t, mr.Exists("cart:u1"))
	assert.Equal(t, time.Hour, mr.TTL("cart:u1"))

	got, err := snaps.Load(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestRedis_SaveEmptyDeletes(t *testing.T) {
	snaps, mr := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, snaps.Save(ctx, "u1", []cart.Entry{{ProductID: "fern", Quantity: 1}}))
	require.NoError(t, snaps.Save(ctx, "u1", nil))
	assert.False(t, mr.Exists("cart:u1"))
}

func TestRedis_LoadCorrupt(t *testing.T) {
	snaps, mr := setupTestRedis(t)
	require.NoError(t, mr.Set("cart:u1", "{not json"))

	_, err := snaps.Load(context.Background(), "u1")
	require.Error(t, err)
}

func TestRedis_DefaultTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	require.NoError(t, New(client, 0).Save(context.Background(), "u1", []cart.Entry{{ProductID: "fern", Quantity: 1}}))
	assert.Equal(t, DefaultTTL, mr.TTL("cart:u1"))
}

// Carts survive a registry restart through the snapshot store.
func TestRegistry_RestoresFromRedis(t *testing.T) {
	snaps, _ := setupTestRedis(t)
	ctx := context.Background()

	first := cart.NewRegistry(snaps, zap.NewNop())
	require.NoError(t, first.Get(ctx, "u1").Add("fern", 2))
	first.Get(ctx, "u1").SetQuantity("fern", 3)

	second := cart.NewRegistry(snaps, zap.NewNop())
	assert.Equal(t, []cart.Entry{{ProductID: "fern", Quantity: 3}}, second.Get(ctx, "u1").List())

	second.Get(ctx, "u1").Clear()
	third := cart.NewRegistry(snaps, zap.NewNop())
	assert.Empty(t, third.Get(ctx, "u1").List())
}

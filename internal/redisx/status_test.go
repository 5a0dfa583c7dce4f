package redisx

import (
	"context"
	"fmt"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/order-intake-bot/internal/orders"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestStatusCacheStore_InvalidatesEveryStatusChange(t *testing.T) {
	ctx := context.Background()
	mr, rdb := newRedis(t)
	store := &StatusCacheStore{Store: orders.NewMemoryStore(), Redis: rdb}
	cust := orders.Customer{ID: 501}
	cached := func(id int64) bool { return mr.Exists(fmt.Sprintf(KeyOrderStatus, id)) }
	fill := func(id int64) { require.NoError(t, mr.Set(fmt.Sprintf(KeyOrderStatus, id), `{"status":"filling"}`)) }

	first, _, err := store.StartDraft(ctx, cust, orders.FlowMachining)
	require.NoError(t, err)
	fill(first.ID)

	// a newer flow start rejects the first draft
	second, rejected, err := store.StartDraft(ctx, cust, orders.FlowEngineRepair)
	require.NoError(t, err)
	require.Equal(t, []int64{first.ID}, rejected)
	require.False(t, cached(first.ID))

	fill(second.ID)
	ids, err := store.RejectDrafts(ctx, cust.ID)
	require.NoError(t, err)
	require.Equal(t, []int64{second.ID}, ids)
	require.False(t, cached(second.ID))

	third, _, err := store.StartDraft(ctx, cust, orders.FlowEngineRepair)
	require.NoError(t, err)
	fill(third.ID)
	require.NoError(t, store.Transition(ctx, third.ID, orders.StatusFilling, orders.StatusNew))
	require.False(t, cached(third.ID))

	// failed transitions leave the cache alone
	fill(third.ID)
	require.ErrorIs(t, store.Transition(ctx, third.ID, orders.StatusFilling, orders.StatusNew), orders.ErrStaleStatus)
	require.True(t, cached(third.ID))
}

func TestCacheStatus_RefusesFillAfterInvalidation(t *testing.T) {
	ctx := context.Background()
	mr, rdb := newRedis(t)
	key := fmt.Sprintf(KeyOrderStatus, 7)

	gen, err := StatusGeneration(ctx, rdb, 7)
	require.NoError(t, err)
	require.Empty(t, gen)

	// the bot moves the order while the reader is at the database
	require.NoError(t, InvalidateStatus(ctx, rdb, 7))

	stored, err := CacheStatus(ctx, rdb, 7, gen, []byte(`{"status":"filling"}`), TTLStatusCache)
	require.NoError(t, err)
	require.False(t, stored)
	require.False(t, mr.Exists(key))

	gen, err = StatusGeneration(ctx, rdb, 7)
	require.NoError(t, err)
	require.Equal(t, "1", gen)
	stored, err = CacheStatus(ctx, rdb, 7, gen, []byte(`{"status":"new"}`), TTLStatusCache)
	require.NoError(t, err)
	require.True(t, stored)
	got, err := mr.Get(key)
	require.NoError(t, err)
	require.Equal(t, `{"status":"new"}`, got)
	require.Equal(t, TTLStatusCache, mr.TTL(key))
}

func TestClaim(t *testing.T) {
	ctx := context.Background()
	_, rdb := newRedis(t)

	fresh, err := Claim(ctx, rdb, "dedup:bot:e1", TTLDedup)
	require.NoError(t, err)
	require.True(t, fresh)

	fresh, err = Claim(ctx, rdb, "dedup:bot:e1", TTLDedup)
	require.NoError(t, err)
	require.False(t, fresh)

	require.NoError(t, Release(ctx, rdb, "dedup:bot:e1"))
	fresh, err = Claim(ctx, rdb, "dedup:bot:e1", TTLDedup)
	require.NoError(t, err)
	require.True(t, fresh)
}

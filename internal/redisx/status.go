package redisx

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ariefcatur/order-intake-bot/internal/orders"
	"github.com/redis/go-redis/v9"
)

// StatusCacheStore drops the cached order status whenever the wrapped store
// moves an order to another status, so the read API does not serve a status
// the bot has moved past.
type StatusCacheStore struct {
	orders.Store
	Redis *redis.Client
}

func (s *StatusCacheStore) Transition(ctx context.Context, id int64, from, to orders.Status) error {
	if err := s.Store.Transition(ctx, id, from, to); err != nil {
		return err
	}
	s.invalidate(ctx, id)
	return nil
}

func (s *StatusCacheStore) StartDraft(ctx context.Context, c orders.Customer, kind orders.FlowKind) (orders.Order, []int64, error) {
	o, rejected, err := s.Store.StartDraft(ctx, c, kind)
	if err != nil {
		return o, rejected, err
	}
	s.invalidate(ctx, rejected...)
	return o, rejected, nil
}

func (s *StatusCacheStore) RejectDrafts(ctx context.Context, customerID int64) ([]int64, error) {
	ids, err := s.Store.RejectDrafts(ctx, customerID)
	if err != nil {
		return ids, err
	}
	s.invalidate(ctx, ids...)
	return ids, nil
}

// invalidate is best-effort; a missed one ages out with TTLStatusCache.
func (s *StatusCacheStore) invalidate(ctx context.Context, ids ...int64) {
	for _, id := range ids {
		_ = InvalidateStatus(ctx, s.Redis, id)
	}
}

// InvalidateStatus bumps the status generation of an order and deletes its
// cached status. Fills that started before the bump are refused by
// CacheStatus.
func InvalidateStatus(ctx context.Context, rdb *redis.Client, id int64) error {
	gen := fmt.Sprintf(KeyOrderStatusGen, id)
	_, err := rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Incr(ctx, gen)
		p.Expire(ctx, gen, TTLStatusGen)
		p.Del(ctx, fmt.Sprintf(KeyOrderStatus, id))
		return nil
	})
	return err
}

// StatusGeneration is read before loading the status from the store and
// handed back to CacheStatus.
func StatusGeneration(ctx context.Context, rdb *redis.Client, id int64) (string, error) {
	g, err := rdb.Get(ctx, fmt.Sprintf(KeyOrderStatusGen, id)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return g, err
}

var cacheIfGen = redis.NewScript(`
local cur = redis.call('GET', KEYS[1])
if (cur or '') ~= ARGV[1] then
	return 0
end
redis.call('SET', KEYS[2], ARGV[2], 'PX', ARGV[3])
return 1
`)

// CacheStatus writes value only while the generation is still gen. false
// means an invalidation happened in between and value may be stale.
func CacheStatus(ctx context.Context, rdb *redis.Client, id int64, gen string, value []byte, ttl time.Duration) (bool, error) {
	keys := []string{fmt.Sprintf(KeyOrderStatusGen, id), fmt.Sprintf(KeyOrderStatus, id)}
	n, err := cacheIfGen.Run(ctx, rdb, keys, gen, value, ttl.Milliseconds()).Int()
	return n == 1, err
}

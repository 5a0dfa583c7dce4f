package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ariefcatur/order-intake-bot/internal/redisx"
	"github.com/redis/go-redis/v9"
)

// RedisStore survives worker restarts as long as Redis does. ttl 0 keeps
// sessions until they are finished, cancelled or reset.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, ttl: ttl}
}

func (r *RedisStore) Get(ctx context.Context, customerID int64) (Session, bool, error) {
	var s Session
	ok, err := r.load(ctx, fmt.Sprintf(redisx.KeyConversation, customerID), &s)
	return s, ok, err
}

func (r *RedisStore) Save(ctx context.Context, s Session) error {
	return r.store(ctx, fmt.Sprintf(redisx.KeyConversation, s.CustomerID), s)
}

func (r *RedisStore) Delete(ctx context.Context, customerID int64) error {
	return r.rdb.Del(ctx, fmt.Sprintf(redisx.KeyConversation, customerID)).Err()
}

func (r *RedisStore) GetReply(ctx context.Context, operatorChatID int64) (ReplyContext, bool, error) {
	var rc ReplyContext
	ok, err := r.load(ctx, fmt.Sprintf(redisx.KeyReplyContext, operatorChatID), &rc)
	return rc, ok, err
}

func (r *RedisStore) SaveReply(ctx context.Context, rc ReplyContext) error {
	return r.store(ctx, fmt.Sprintf(redisx.KeyReplyContext, rc.OperatorChatID), rc)
}

func (r *RedisStore) DeleteReply(ctx context.Context, operatorChatID int64) error {
	return r.rdb.Del(ctx, fmt.Sprintf(redisx.KeyReplyContext, operatorChatID)).Err()
}

func (r *RedisStore) load(ctx context.Context, key string, out any) (bool, error) {
	b, err := r.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("session: get %s: %w", key, err)
	}
	if err := json.Unmarshal(b, out); err != nil {
		// an unreadable session is treated as lost; recovery rebuilds it
		_ = r.rdb.Del(ctx, key).Err()
		return false, nil
	}
	return true, nil
}

func (r *RedisStore) store(ctx context.Context, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if err := r.rdb.Set(ctx, key, b, r.ttl).Err(); err != nil {
		return fmt.Errorf("session: set %s: %w", key, err)
	}
	return nil
}

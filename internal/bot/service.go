package bot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ariefcatur/order-intake-bot/internal/redisx"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Deduper claims an event id once. Implemented over Redis SETNX.
type Deduper interface {
	Claim(ctx context.Context, eventID string) (bool, error)
	// Release undoes a claim whose update was not handled.
	Release(ctx context.Context, eventID string) error
}

type RedisDeduper struct {
	Redis *redis.Client
	Scope string
}

func (d *RedisDeduper) Claim(ctx context.Context, eventID string) (bool, error) {
	return redisx.Claim(ctx, d.Redis, d.key(eventID), redisx.TTLDedup)
}

func (d *RedisDeduper) Release(ctx context.Context, eventID string) error {
	return redisx.Release(ctx, d.Redis, d.key(eventID))
}

func (d *RedisDeduper) key(eventID string) string {
	return fmt.Sprintf(redisx.KeyDedup, d.Scope, eventID)
}

type Service struct {
	Dispatcher *Dispatcher
	Dedup      Deduper
	Log        *zap.Logger
}

// HandleUpdate is installed as the bot.updates consumer handler. It only
// returns an error for a transient dedup failure or an interrupted dispatch,
// and the message is then delivered again. Everything else is logged and
// committed; the customer retries by interacting again.
func (s *Service) HandleUpdate(ctx context.Context, m kafkago.Message) error {
	var u Update
	if err := json.Unmarshal(m.Value, &u); err != nil {
		s.Log.Warn("dropping undecodable update", zap.Int64("offset", m.Offset), zap.Error(err))
		return nil
	}
	log := s.Log.With(zap.String("event_id", u.EventID), zap.String("type", string(u.Type)), zap.Int64("chat_id", u.ChatID))
	if err := u.Validate(); err != nil {
		log.Warn("dropping invalid update", zap.Error(err))
		return nil
	}

	fresh, err := s.Dedup.Claim(ctx, u.EventID)
	if err != nil {
		return fmt.Errorf("bot: dedup: %w", err)
	}
	if !fresh {
		log.Debug("duplicate update skipped")
		return nil
	}

	if err := s.Dispatcher.Dispatch(ctx, u); err != nil {
		if errors.Is(err, context.Canceled) {
			s.release(ctx, log, u.EventID)
			return err
		}
		log.Info("update handled with error", zap.Error(err))
	}
	return nil
}

// release runs on a detached context: the handler's own is usually done.
func (s *Service) release(ctx context.Context, log *zap.Logger, eventID string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := s.Dedup.Release(ctx, eventID); err != nil {
		log.Warn("dedup release failed, redelivery will be skipped", zap.Error(err))
	}
}

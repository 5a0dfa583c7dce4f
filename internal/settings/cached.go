package settings

import (
	"context"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
)

const snapshotKey = "snapshot"

// Cached keeps the last bot_config snapshot for ttl. A ttl <= 0 reloads on
// every call. When a reload fails the previous snapshot is served together
// with the error.
type Cached struct {
	src   Source
	cache *cache.Cache // nil when ttl <= 0

	mu   sync.Mutex
	last Snapshot
}

func NewCached(src Source, ttl time.Duration) *Cached {
	c := &Cached{src: src}
	// go-cache reads a zero ttl as "never expire"
	if ttl > 0 {
		c.cache = cache.New(ttl, 2*ttl)
	}
	return c
}

func (c *Cached) Snapshot(ctx context.Context) (Snapshot, error) {
	if c.cache != nil {
		if x, ok := c.cache.Get(snapshotKey); ok {
			return x.(Snapshot), nil
		}
	}
	snap, err := c.src.Snapshot(ctx)
	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		return c.last, err
	}
	c.last = snap
	if c.cache != nil {
		c.cache.SetDefault(snapshotKey, snap)
	}
	return snap, nil
}

func (c *Cached) Set(ctx context.Context, key, value string) error {
	if err := c.src.Set(ctx, key, value); err != nil {
		return err
	}
	if c.cache != nil {
		c.cache.Delete(snapshotKey)
	}
	return nil
}

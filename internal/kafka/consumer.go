package kafka

import (
	"context"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Handler harus return nil hanya jika proses sukses & boleh commit offset.
type Handler func(ctx context.Context, m kafka.Message) error

// Consumer fans messages out to workers by key: messages with the same key are
// handled by the same worker, in partition order.
type Consumer struct {
	r        *kafka.Reader
	workers  int
	log      *zap.Logger
	retryMin time.Duration
	retryMax time.Duration

	commitMu  sync.Mutex
	committed map[int]int64
}

func NewConsumer(brokers []string, group, topic string, workers int, log *zap.Logger) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		GroupID:        group,
		Topic:          topic,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0, // manual commit
	})
	if workers <= 0 {
		workers = 1
	}
	return &Consumer{
		r:         r,
		workers:   workers,
		log:       log.With(zap.String("topic", topic)),
		retryMin:  200 * time.Millisecond,
		retryMax:  5 * time.Second,
		committed: map[int]int64{},
	}
}

// Start fetches until ctx is done. A failed message is retried by its worker
// and the partition is only committed up to the oldest message still in
// flight, so a message interrupted by shutdown is delivered again.
func (c *Consumer) Start(ctx context.Context, h Handler) error {
	defer c.r.Close()

	track := newOffsets()
	jobs := make([]chan kafka.Message, c.workers)
	var wg sync.WaitGroup
	for i := range jobs {
		jobs[i] = make(chan kafka.Message, 64)
		wg.Add(1)
		go func(id int, in <-chan kafka.Message) {
			defer wg.Done()
			for m := range in {
				if !c.handle(ctx, id, h, m) {
					// stays in flight: nothing past it is committed
					continue
				}
				if next, ok := track.done(m); ok {
					c.commit(ctx, id, next)
				}
			}
		}(i, jobs[i])
	}
	defer func() {
		for _, ch := range jobs {
			close(ch)
		}
		wg.Wait()
	}()

	for {
		m, err := c.r.FetchMessage(ctx)
		if err != nil {
			// kecilkan noise saat shutdown
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		track.add(m)
		select {
		case jobs[Shard(m.Key, c.workers)] <- m:
		case <-ctx.Done():
			return nil
		}
	}
}

// handle runs h until it succeeds or ctx is done. Retrying in place keeps the
// messages of one key in order.
func (c *Consumer) handle(ctx context.Context, worker int, h Handler, m kafka.Message) bool {
	backoff := c.retryMin
	for {
		err := h(ctx, m)
		if err == nil {
			return true
		}
		if ctx.Err() != nil {
			c.log.Info("handler interrupted, message left uncommitted",
				zap.Int("worker", worker), zap.Int("partition", m.Partition), zap.Int64("offset", m.Offset), zap.Error(err))
			return false
		}
		c.log.Warn("handler failed, retrying", zap.Int("worker", worker), zap.Int64("offset", m.Offset),
			zap.Duration("backoff", backoff), zap.Error(err))
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return false
		}
		backoff = min(backoff*2, c.retryMax)
	}
}

func (c *Consumer) commit(ctx context.Context, worker int, m kafka.Message) {
	c.commitMu.Lock()
	defer c.commitMu.Unlock()
	// commits from different workers may arrive out of order
	if last, ok := c.committed[m.Partition]; ok && last >= m.Offset {
		return
	}
	if err := c.r.CommitMessages(ctx, m); err != nil {
		if ctx.Err() == nil {
			c.log.Warn("commit failed", zap.Int("worker", worker), zap.Int64("offset", m.Offset), zap.Error(err))
		}
		return
	}
	c.committed[m.Partition] = m.Offset
}

// offsets tracks fetched messages per partition. done reports the highest
// offset below which every fetched message has been handled.
type offsets struct {
	mu    sync.Mutex
	parts map[int]*partitionOffsets
}

type partitionOffsets struct {
	topic    string
	inflight []int64 // fetch order, ascending
	finished map[int64]bool
}

func newOffsets() *offsets {
	return &offsets{parts: map[int]*partitionOffsets{}}
}

func (o *offsets) add(m kafka.Message) {
	o.mu.Lock()
	defer o.mu.Unlock()
	p, ok := o.parts[m.Partition]
	// a rewind (rebalance) restarts tracking from the committed offset
	if !ok || (len(p.inflight) > 0 && m.Offset <= p.inflight[len(p.inflight)-1]) {
		p = &partitionOffsets{topic: m.Topic, finished: map[int64]bool{}}
		o.parts[m.Partition] = p
	}
	p.inflight = append(p.inflight, m.Offset)
}

func (o *offsets) done(m kafka.Message) (kafka.Message, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	p, ok := o.parts[m.Partition]
	if !ok {
		return kafka.Message{}, false
	}
	p.finished[m.Offset] = true
	last, moved := int64(-1), false
	for len(p.inflight) > 0 && p.finished[p.inflight[0]] {
		last = p.inflight[0]
		delete(p.finished, last)
		p.inflight = p.inflight[1:]
		moved = true
	}
	if !moved {
		return kafka.Message{}, false
	}
	return kafka.Message{Topic: p.topic, Partition: m.Partition, Offset: last}, true
}

// Shard maps a message key onto one of n workers.
func Shard(key []byte, n int) int {
	if n <= 1 {
		return 0
	}
	return int(xxhash.Sum64(key) % uint64(n))
}

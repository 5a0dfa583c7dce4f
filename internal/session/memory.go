package session

import (
	"context"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
)

// MemoryStore keeps sessions in process memory; everything is lost on restart.
type MemoryStore struct {
	cache *cache.Cache
}

// NewMemoryStore: ttl 0 means no expiry.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		return &MemoryStore{cache: cache.New(cache.NoExpiration, 0)}
	}
	return &MemoryStore{cache: cache.New(ttl, 10*time.Minute)}
}

func convKey(id int64) string  { return fmt.Sprintf("conv:%d", id) }
func replyKey(id int64) string { return fmt.Sprintf("reply:%d", id) }

func (m *MemoryStore) Get(_ context.Context, customerID int64) (Session, bool, error) {
	x, ok := m.cache.Get(convKey(customerID))
	if !ok {
		return Session{}, false, nil
	}
	return cloneSession(x.(Session)), true, nil
}

func (m *MemoryStore) Save(_ context.Context, s Session) error {
	m.cache.SetDefault(convKey(s.CustomerID), cloneSession(s))
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, customerID int64) error {
	m.cache.Delete(convKey(customerID))
	return nil
}

func (m *MemoryStore) GetReply(_ context.Context, operatorChatID int64) (ReplyContext, bool, error) {
	x, ok := m.cache.Get(replyKey(operatorChatID))
	if !ok {
		return ReplyContext{}, false, nil
	}
	return x.(ReplyContext), true, nil
}

func (m *MemoryStore) SaveReply(_ context.Context, rc ReplyContext) error {
	m.cache.SetDefault(replyKey(rc.OperatorChatID), rc)
	return nil
}

func (m *MemoryStore) DeleteReply(_ context.Context, operatorChatID int64) error {
	m.cache.Delete(replyKey(operatorChatID))
	return nil
}

// Flush drops every session, as a process restart would.
func (m *MemoryStore) Flush() { m.cache.Flush() }

func cloneSession(s Session) Session {
	s.Photos = append([]string(nil), s.Photos...)
	return s
}

// Package settings exposes the operator-editable bot_config key/value surface:
// user-facing texts, feature flags and the operator channel list.
package settings

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
)

const (
	KeyPhotoRequired = "is_photo_required"
	KeyExtraEnabled  = "step_extra_enabled"
	KeyAdminChatID   = "admin_chat_id"
)

// Source loads and updates bot_config.
type Source interface {
	Snapshot(ctx context.Context) (Snapshot, error)
	Set(ctx context.Context, key, value string) error
}

// Snapshot is an immutable view of bot_config taken once per inbound event.
type Snapshot struct {
	values map[string]string
}

func NewSnapshot(values map[string]string) Snapshot {
	cp := make(map[string]string, len(values))
	for k, v := range values {
		cp[k] = v
	}
	return Snapshot{values: cp}
}

func (s Snapshot) Lookup(key string) (string, bool) {
	v, ok := s.values[key]
	return v, ok
}

// Text never fails: a missing key renders as a visible placeholder.
func (s Snapshot) Text(key string) string {
	if v, ok := s.values[key]; ok && v != "" {
		return v
	}
	return Placeholder(key)
}

// TextOr falls back to def, and to the placeholder when def is empty too.
func (s Snapshot) TextOr(key, def string) string {
	if v, ok := s.values[key]; ok && v != "" {
		return v
	}
	if def != "" {
		return def
	}
	return Placeholder(key)
}

func Placeholder(key string) string { return fmt.Sprintf("[NO_DB_TEXT: %s]", key) }

// Bool follows the "0"/"1" convention of bot_config.
func (s Snapshot) Bool(key string) bool {
	return strings.TrimSpace(s.values[key]) == "1"
}

// OperatorChats parses admin_chat_id as a comma separated list. "0" and
// malformed entries are ignored.
func (s Snapshot) OperatorChats() []int64 {
	return parseChatList(s.values[KeyAdminChatID])
}

func parseChatList(raw string) []int64 {
	var out []int64
	for _, p := range strings.Split(raw, ",") {
		id, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
		if err != nil || id == 0 {
			continue
		}
		out = append(out, id)
	}
	return out
}

// AddOperatorChat appends chatID to admin_chat_id unless already present.
func AddOperatorChat(ctx context.Context, src Source, chatID int64) (bool, error) {
	snap, err := src.Snapshot(ctx)
	if err != nil {
		return false, err
	}
	ids := snap.OperatorChats()
	for _, id := range ids {
		if id == chatID {
			return false, nil
		}
	}
	ids = append(ids, chatID)
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	if err := src.Set(ctx, KeyAdminChatID, strings.Join(parts, ",")); err != nil {
		return false, err
	}
	return true, nil
}

// Static is an in-process Source.
type Static struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewStatic(values map[string]string) *Static {
	cp := make(map[string]string, len(values))
	for k, v := range values {
		cp[k] = v
	}
	return &Static{values: cp}
}

func (s *Static) Snapshot(context.Context) (Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return NewSnapshot(s.values), nil
}

func (s *Static) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

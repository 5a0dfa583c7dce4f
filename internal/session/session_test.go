package session

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/order-intake-bot/internal/flow"
)

func TestSession_JSONKeepsStepVariant(t *testing.T) {
	in := Session{CustomerID: 1, OrderID: 9, Step: flow.EngineYear, Photos: []string{"m1"}}
	b, err := json.Marshal(in)
	require.NoError(t, err)
	require.JSONEq(t, `{"customer_id":1,"order_id":9,"flow":"engine_repair","step":"year","photos":["m1"]}`, string(b))

	var out Session
	require.NoError(t, json.Unmarshal(b, &out))
	require.Equal(t, in, out)
	_, isEngine := out.Step.(flow.EngineStep)
	require.True(t, isEngine)
}

func TestSession_JSONRejectsUnknownStep(t *testing.T) {
	var s Session
	err := json.Unmarshal([]byte(`{"customer_id":1,"flow":"machining","step":"year"}`), &s)
	require.Error(t, err)
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore(0)

	_, ok, err := m.Get(ctx, 1)
	require.NoError(t, err)
	require.False(t, ok)

	s := Session{CustomerID: 1, OrderID: 2, Step: flow.MachiningPhoto, Photos: []string{"a"}}
	require.NoError(t, m.Save(ctx, s))
	s.Photos[0] = "mutated"

	got, ok, err := m.Get(ctx, 1)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []string{"a"}, got.Photos)

	require.NoError(t, m.SaveReply(ctx, ReplyContext{OperatorChatID: 50, OrderID: 2, CustomerID: 1}))
	m.Flush()
	_, ok, _ = m.Get(ctx, 1)
	require.False(t, ok)
	_, ok, _ = m.GetReply(ctx, 50)
	require.False(t, ok)
}

package settings

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSnapshot_TextFallsBackToPlaceholder(t *testing.T) {
	snap := NewSnapshot(map[string]string{"welcome_msg": "Привет", "empty": ""})
	require.Equal(t, "Привет", snap.Text("welcome_msg"))
	require.Equal(t, "[NO_DB_TEXT: step_dim_text]", snap.Text("step_dim_text"))
	require.Equal(t, "[NO_DB_TEXT: empty]", snap.Text("empty"))
}

func TestSnapshot_Bool(t *testing.T) {
	snap := NewSnapshot(map[string]string{KeyPhotoRequired: "1", KeyExtraEnabled: "true"})
	require.True(t, snap.Bool(KeyPhotoRequired))
	require.False(t, snap.Bool(KeyExtraEnabled))
	require.False(t, snap.Bool("missing"))
}

func TestSnapshot_OperatorChats(t *testing.T) {
	snap := NewSnapshot(map[string]string{KeyAdminChatID: "0, 12, abc,-34"})
	require.Equal(t, []int64{12, -34}, snap.OperatorChats())
}

func TestAddOperatorChat(t *testing.T) {
	ctx := context.Background()
	src := NewStatic(map[string]string{KeyAdminChatID: "0"})

	added, err := AddOperatorChat(ctx, src, 55)
	require.NoError(t, err)
	require.True(t, added)

	added, err = AddOperatorChat(ctx, src, 55)
	require.NoError(t, err)
	require.False(t, added)

	added, err = AddOperatorChat(ctx, src, 66)
	require.NoError(t, err)
	require.True(t, added)

	snap, _ := src.Snapshot(ctx)
	v, _ := snap.Lookup(KeyAdminChatID)
	require.Equal(t, "55,66", v)
}

type flakySource struct {
	*Static
	loads int
	err   error
}

func (f *flakySource) Snapshot(ctx context.Context) (Snapshot, error) {
	f.loads++
	if f.err != nil {
		return Snapshot{}, f.err
	}
	return f.Static.Snapshot(ctx)
}

func TestCached_ServesFromCacheAndInvalidatesOnSet(t *testing.T) {
	ctx := context.Background()
	src := &flakySource{Static: NewStatic(map[string]string{"k": "v1"})}
	c := NewCached(src, time.Minute)

	snap, err := c.Snapshot(ctx)
	require.NoError(t, err)
	require.Equal(t, "v1", snap.Text("k"))
	_, _ = c.Snapshot(ctx)
	require.Equal(t, 1, src.loads)

	require.NoError(t, c.Set(ctx, "k", "v2"))
	snap, err = c.Snapshot(ctx)
	require.NoError(t, err)
	require.Equal(t, "v2", snap.Text("k"))
	require.Equal(t, 2, src.loads)
}

func TestCached_StaleOnError(t *testing.T) {
	ctx := context.Background()
	src := &flakySource{Static: NewStatic(map[string]string{"k": "v1"})}
	c := NewCached(src, time.Minute)
	_, err := c.Snapshot(ctx)
	require.NoError(t, err)

	c.cache.Flush()
	src.err = errors.New("db down")
	snap, err := c.Snapshot(ctx)
	require.Error(t, err)
	require.Equal(t, "v1", snap.Text("k"))
}

func TestCached_ZeroTTLReloadsEveryTime(t *testing.T) {
	ctx := context.Background()
	for _, ttl := range []time.Duration{0, -time.Second} {
		src := &flakySource{Static: NewStatic(map[string]string{"k": "v1"})}
		c := NewCached(src, ttl)

		_, err := c.Snapshot(ctx)
		require.NoError(t, err)
		require.NoError(t, src.Static.Set(ctx, "k", "v2"))
		snap, err := c.Snapshot(ctx)
		require.NoError(t, err)
		require.Equal(t, "v2", snap.Text("k"), "ttl %s", ttl)
		require.Equal(t, 2, src.loads)

		src.err = errors.New("db down")
		snap, err = c.Snapshot(ctx)
		require.Error(t, err)
		require.Equal(t, "v2", snap.Text("k"))
	}
}

func TestSnapshot_TextOr(t *testing.T) {
	snap := NewSnapshot(map[string]string{"btn_urgency_med": "Средняя (3-5 дней)"})
	require.Equal(t, "Средняя (3-5 дней)", snap.TextOr("btn_urgency_med", "Средняя"))
	require.Equal(t, "Низкая", snap.TextOr("btn_urgency_low", "Низкая"))
	require.Equal(t, "[NO_DB_TEXT: btn_type_copy]", snap.TextOr("btn_type_copy", ""))
}

package operator

import (
	"context"
	"errors"
	"testing"

	"github.com/ariefcatur/order-intake-bot/internal/messenger"
	"github.com/ariefcatur/order-intake-bot/internal/orders"
	"github.com/ariefcatur/order-intake-bot/internal/session"
	"github.com/ariefcatur/order-intake-bot/internal/settings"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const (
	customerID = int64(501)
	opA        = int64(9001)
	opB        = int64(9002)
)

type fixture struct {
	r        *Router
	store    *orders.MemoryStore
	sessions *session.MemoryStore
	cfg      *settings.Static
	out      *messenger.Recorder
}

func newFixture(t *testing.T, opt Options) *fixture {
	t.Helper()
	f := &fixture{
		store:    orders.NewMemoryStore(),
		sessions: session.NewMemoryStore(0),
		cfg:      settings.NewStatic(map[string]string{settings.KeyAdminChatID: "9001"}),
		out:      messenger.NewRecorder(),
	}
	r, err := NewRouter(Deps{
		Orders:   f.store,
		Sessions: f.sessions,
		Settings: f.cfg,
		Out:      f.out,
		Log:      zaptest.NewLogger(t),
	}, opt)
	require.NoError(t, err)
	f.r = r
	return f
}

func (f *fixture) putNew(id int64) orders.Order {
	o := orders.Order{
		ID:                  id,
		CustomerID:          customerID,
		CustomerUsername:    "ivan",
		CustomerDisplayName: "Ivan <Petrov>",
		Kind:                orders.FlowMachining,
		Status:              orders.StatusNew,
		Fields: orders.Fields{
			orders.FieldPhotoRefs:      "p1,p2",
			orders.FieldWorkType:       "Ремонт",
			orders.FieldDimensionsInfo: "50x50x10mm",
			orders.FieldConditions:     "Статика",
			orders.FieldUrgency:        "Срочно",
			orders.FieldComment:        "no comment",
		},
	}
	f.store.Put(o)
	return o
}

func (f *fixture) snap(t *testing.T) settings.Snapshot {
	snap, err := f.cfg.Snapshot(context.Background())
	require.NoError(t, err)
	return snap
}

func TestOperators_MergesStaticAndConfigured(t *testing.T) {
	f := newFixture(t, Options{StaticOperators: []int64{opB, opA}})
	require.Equal(t, []int64{opB, opA}, f.r.Operators(f.snap(t)))
	require.True(t, f.r.IsOperator(f.snap(t), opA))
	require.False(t, f.r.IsOperator(f.snap(t), customerID))
}

func TestNotify(t *testing.T) {
	f := newFixture(t, Options{StaticOperators: []int64{opB}})
	o := f.putNew(12)

	n := f.r.Notify(context.Background(), o, f.snap(t))
	require.Equal(t, 2, n)

	msg, ok := f.out.Last(opA)
	require.True(t, ok)
	require.Equal(t, []string{"p1", "p2"}, msg.Photos)
	require.Equal(t, "HTML", msg.Format)
	require.Contains(t, msg.Text, "НОВЫЙ ЗАКАЗ №12")
	require.Contains(t, msg.Text, "Ivan &lt;Petrov&gt; (@ivan)")
	require.Contains(t, msg.Text, "50x50x10mm")
	require.Equal(t, "reply_12", msg.Buttons[0][0].Data)
}

func TestNotify_FailingOperatorDoesNotBlockOthers(t *testing.T) {
	f := newFixture(t, Options{StaticOperators: []int64{opB}})
	o := f.putNew(12)
	f.out.FailChat(opB, errors.New("bot was blocked by the user"))

	n := f.r.Notify(context.Background(), o, f.snap(t))
	require.Equal(t, 1, n)
	_, ok := f.out.Last(opA)
	require.True(t, ok)
}

func TestNotify_EngineRepairHasNoPhotos(t *testing.T) {
	f := newFixture(t, Options{})
	o := orders.Order{ID: 3, CustomerID: customerID, Kind: orders.FlowEngineRepair, Status: orders.StatusNew,
		Fields: orders.Fields{orders.FieldCarBrand: "Toyota Camry", orders.FieldCarYear: "2015"}}
	require.Equal(t, 1, f.r.Notify(context.Background(), o, f.snap(t)))
	msg, _ := f.out.Last(opA)
	require.Empty(t, msg.Photos)
	require.Contains(t, msg.Text, "🚗 Марка: Toyota Camry")
	require.Contains(t, msg.Text, "🔧 Проблема: Не указано")
}

func TestReplyScenario(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	f.putNew(12)

	require.NoError(t, f.r.OpenReply(ctx, opA, 12, "notif-1"))
	rc, ok, err := f.sessions.GetReply(ctx, opA)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, customerID, rc.CustomerID)

	handled, err := f.r.HandleText(ctx, opA, "ready in 3 days", "")
	require.True(t, handled)
	require.NoError(t, err)

	o, err := f.store.Get(ctx, 12)
	require.NoError(t, err)
	require.Equal(t, orders.StatusDiscussion, o.Status)

	relays := f.out.To(customerID)
	require.Len(t, relays, 1)
	require.Contains(t, relays[0].Text, "ready in 3 days")
	require.Contains(t, relays[0].Text, "№12")
	require.Equal(t, []messenger.Cleared{{ChatID: opA, Ref: "notif-1"}}, f.out.Cleared())

	_, ok, _ = f.sessions.GetReply(ctx, opA)
	require.False(t, ok, "context closed after relay")

	// second invocation of the same action
	err = f.r.OpenReply(ctx, opA, 12, "notif-1")
	require.ErrorIs(t, err, ErrAlreadyHandled)
	handled, err = f.r.HandleText(ctx, opA, "ready in 3 days", "")
	require.False(t, handled)
	require.NoError(t, err)
	require.Len(t, f.out.To(customerID), 1, "never a duplicate relay")
}

func TestReply_TwoOperatorsRace(t *testing.T) {
	f := newFixture(t, Options{StaticOperators: []int64{opB}})
	ctx := context.Background()
	f.putNew(12)

	require.NoError(t, f.r.OpenReply(ctx, opA, 12, ""))
	require.NoError(t, f.r.OpenReply(ctx, opB, 12, ""))

	_, err := f.r.HandleText(ctx, opA, "first", "")
	require.NoError(t, err)
	handled, err := f.r.HandleText(ctx, opB, "second", "")
	require.True(t, handled)
	require.ErrorIs(t, err, ErrAlreadyHandled)

	relays := f.out.To(customerID)
	require.Len(t, relays, 1)
	require.Contains(t, relays[0].Text, "first")
}

func TestOpenReply_Misses(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	f.putNew(12)

	require.ErrorIs(t, f.r.OpenReply(ctx, customerID, 12, ""), ErrNotOperator)
	require.ErrorIs(t, f.r.OpenReply(ctx, opA, 404, ""), ErrCorrelationMiss)
	_, ok, _ := f.sessions.GetReply(ctx, opA)
	require.False(t, ok)
}

func TestReply_ClearActionsFailureIsNotFatal(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	f.putNew(12)
	f.out.FailClear(errors.New("message to edit not found"))

	require.NoError(t, f.r.OpenReply(ctx, opA, 12, "notif-1"))
	_, err := f.r.HandleText(ctx, opA, "ok", "")
	require.NoError(t, err)
	require.Len(t, f.out.To(customerID), 1)
}

func TestCancelReply(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	f.putNew(12)

	handled, err := f.r.CancelReply(ctx, opA)
	require.NoError(t, err)
	require.False(t, handled)

	require.NoError(t, f.r.OpenReply(ctx, opA, 12, ""))
	handled, err = f.r.CancelReply(ctx, opA)
	require.NoError(t, err)
	require.True(t, handled)

	o, _ := f.store.Get(ctx, 12)
	require.Equal(t, orders.StatusNew, o.Status)
	require.Empty(t, f.out.To(customerID))
}

func TestExtractOrderID(t *testing.T) {
	tests := []struct {
		text string
		want int64
		ok   bool
	}{
		{"🔔 НОВЫЙ ЗАКАЗ №12\nТип: ...", 12, true},
		{"заказ: 77", 77, true},
		{"Order No. 5", 0, false},
		{"Order no 5", 5, true},
		{"NUM#31", 31, true},
		{"nothing here", 0, false},
	}
	for _, tt := range tests {
		got, ok := ExtractOrderID(tt.text)
		assert.Equal(t, tt.ok, ok, tt.text)
		assert.Equal(t, tt.want, got, tt.text)
	}
}

func TestLegacyReply(t *testing.T) {
	ctx := context.Background()

	t.Run("enabled", func(t *testing.T) {
		f := newFixture(t, Options{LegacyCorrelation: true})
		f.putNew(12)
		handled, err := f.r.HandleText(ctx, opA, "ready tomorrow", "🔔 НОВЫЙ ЗАКАЗ №12")
		require.True(t, handled)
		require.NoError(t, err)
		require.Len(t, f.out.To(customerID), 1)
		o, _ := f.store.Get(ctx, 12)
		require.Equal(t, orders.StatusDiscussion, o.Status)

		handled, err = f.r.HandleText(ctx, opA, "hi", "no number at all")
		require.True(t, handled)
		require.ErrorIs(t, err, ErrCorrelationMiss)
	})
	t.Run("disabled", func(t *testing.T) {
		f := newFixture(t, Options{})
		f.putNew(12)
		handled, err := f.r.HandleText(ctx, opA, "ready tomorrow", "🔔 НОВЫЙ ЗАКАЗ №12")
		require.False(t, handled)
		require.NoError(t, err)
		require.Empty(t, f.out.To(customerID))
	})
	t.Run("not an operator", func(t *testing.T) {
		f := newFixture(t, Options{LegacyCorrelation: true})
		f.putNew(12)
		handled, _ := f.r.HandleText(ctx, customerID, "hi", "Заказ №12")
		require.False(t, handled)
	})
}

func TestAuthorize(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{AdminPassword: "s3cret"})

	require.ErrorIs(t, f.r.Authorize(ctx, opB, "wrong"), ErrNotOperator)
	require.False(t, f.r.IsOperator(f.snap(t), opB))

	require.NoError(t, f.r.Authorize(ctx, opB, "s3cret"))
	require.NoError(t, f.r.Authorize(ctx, opB, "s3cret"))
	require.Equal(t, []int64{opA, opB}, f.snap(t).OperatorChats())

	disabled := newFixture(t, Options{})
	require.ErrorIs(t, disabled.r.Authorize(ctx, opB, ""), ErrNotOperator)
}

func TestReplyAction(t *testing.T) {
	id, ok := ParseReplyAction(ReplyAction(42))
	require.True(t, ok)
	require.Equal(t, int64(42), id)
	_, ok = ParseReplyAction("reply_x")
	require.False(t, ok)
	_, ok = ParseReplyAction("type_repair")
	require.False(t, ok)
}

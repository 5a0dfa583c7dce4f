package operator

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/ariefcatur/order-intake-bot/internal/orders"
	"github.com/stretchr/testify/require"
)

func (f *fixture) seedPanel() {
	day := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	f.store.Put(orders.Order{ID: 1, CustomerID: 10, CustomerUsername: "ivan", CustomerDisplayName: "Ivan",
		Kind: orders.FlowMachining, Status: orders.StatusCompleted, CreatedAt: day,
		Fields: orders.Fields{orders.FieldComment: strings.Repeat("ж", 60)}})
	f.store.Put(orders.Order{ID: 2, CustomerID: 20, CustomerDisplayName: "Olga <b>",
		Kind: orders.FlowEngineRepair, Status: orders.StatusNew, CreatedAt: day.Add(time.Hour)})
	f.store.Put(orders.Order{ID: 3, CustomerID: 10, CustomerUsername: "ivan", CustomerDisplayName: "Ivan",
		Kind: orders.FlowEngineRepair, Status: orders.StatusFilling, CreatedAt: day.Add(2 * time.Hour)})
}

func TestPanel_OperatorsOnly(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	require.ErrorIs(t, f.r.Panel(ctx, customerID), ErrNotOperator)
	require.Empty(t, f.out.To(customerID))

	require.NoError(t, f.r.Panel(ctx, opA))
	msg, ok := f.out.Last(opA)
	require.True(t, ok)
	require.Len(t, msg.Buttons, 3)
	require.Equal(t, []string{PanelStats, PanelActive, PanelClients},
		[]string{msg.Buttons[0][0].Data, msg.Buttons[1][0].Data, msg.Buttons[2][0].Data})
	for _, row := range msg.Buttons {
		require.True(t, IsPanelAction(row[0].Data))
	}
}

func TestPanelAction(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	f.seedPanel()

	require.NoError(t, f.r.PanelAction(ctx, opA, PanelStats))
	msg, _ := f.out.Last(opA)
	require.Equal(t, "HTML", msg.Format)
	require.Contains(t, msg.Text, "Всего заказов: 3\n")
	require.Contains(t, msg.Text, "Станочные работы: 1\n")
	require.Contains(t, msg.Text, "Ремонт двигателя: 2\n")
	require.Contains(t, msg.Text, "Активные: 1\n")
	require.Contains(t, msg.Text, "Завершенные: 1")

	require.NoError(t, f.r.PanelAction(ctx, opA, PanelActive))
	msg, _ = f.out.Last(opA)
	require.Equal(t, "📋 <b>Активные заказы:</b>\n\n🔸 №2: Ремонт двигателя - 01.03.2026 11:00\n", msg.Text)

	require.NoError(t, f.r.PanelAction(ctx, opA, PanelClients))
	msg, _ = f.out.Last(opA)
	require.Less(t, strings.Index(msg.Text, "Ivan (@ivan)"), strings.Index(msg.Text, "Olga &lt;b&gt; (@NoNick)"))
	require.Contains(t, msg.Text, "Заказов: 2\n   Последний: 01.03.2026 12:00")

	require.Error(t, f.r.PanelAction(ctx, opA, "admin_reboot"))
	require.ErrorIs(t, f.r.PanelAction(ctx, customerID, PanelStats), ErrNotOperator)
	last, _ := f.out.Last(customerID)
	require.Equal(t, defaultNoAccess, last.Text)
}

func TestPanelAction_Empty(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	require.NoError(t, f.r.PanelAction(ctx, opA, PanelActive))
	msg, _ := f.out.Last(opA)
	require.Equal(t, "📭 Нет активных заказов", msg.Text)
	require.NoError(t, f.r.PanelAction(ctx, opA, PanelClients))
	msg, _ = f.out.Last(opA)
	require.Equal(t, "👥 Нет клиентов", msg.Text)
	require.NoError(t, f.r.RecentOrders(ctx, opA))
	msg, _ = f.out.Last(opA)
	require.Equal(t, "📭 Нет заказов", msg.Text)
}

func TestRecentOrders(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	f.seedPanel()

	require.ErrorIs(t, f.r.RecentOrders(ctx, customerID), ErrNotOperator)
	require.Empty(t, f.out.To(customerID))

	require.NoError(t, f.r.RecentOrders(ctx, opA))
	msg, _ := f.out.Last(opA)
	require.Less(t, strings.Index(msg.Text, "№3"), strings.Index(msg.Text, "№2"))
	require.Less(t, strings.Index(msg.Text, "№2"), strings.Index(msg.Text, "№1"))
	require.Contains(t, msg.Text, "✅ <b>№1</b> - Станочные работы\n")
	require.Contains(t, msg.Text, "🔄 <b>№2</b> - Ремонт двигателя\n")
	require.Contains(t, msg.Text, "📝 "+strings.Repeat("ж", 50)+"...\n")
}

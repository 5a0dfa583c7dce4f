package operator

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/ariefcatur/order-intake-bot/internal/messenger"
	"github.com/ariefcatur/order-intake-bot/internal/orders"
	"go.uber.org/zap"
)

// Panel actions, sent back as choice option ids by the panel buttons.
const (
	PanelActionPrefix = "admin_"
	PanelStats        = "admin_stats"
	PanelActive       = "admin_active"
	PanelClients      = "admin_clients"
)

// panelLimit caps every panel listing.
const panelLimit = 10

// IsPanelAction reports whether data came from a panel button.
func IsPanelAction(data string) bool {
	return strings.HasPrefix(data, PanelActionPrefix)
}

// Panel shows the operator panel menu. Non-operators get no answer.
func (r *Router) Panel(ctx context.Context, chatID int64) error {
	if !r.IsOperator(r.snapshot(ctx), chatID) {
		r.log.Info("panel refused", zap.Int64("chat_id", chatID))
		return ErrNotOperator
	}
	r.send(ctx, chatID, messenger.Message{
		ChatID: chatID,
		Text:   "🛠 <b>Админ-панель</b>\n\nВыберите действие:",
		Format: "HTML",
		Buttons: [][]messenger.Button{
			{{Label: "📊 Статистика", Data: PanelStats}},
			{{Label: "📋 Активные заказы", Data: PanelActive}},
			{{Label: "👥 Последние клиенты", Data: PanelClients}},
		},
	})
	return nil
}

// PanelAction answers a panel button.
func (r *Router) PanelAction(ctx context.Context, chatID int64, action string) error {
	snap := r.snapshot(ctx)
	if !r.IsOperator(snap, chatID) {
		r.tell(ctx, chatID, snap.TextOr(keyNoAccess, defaultNoAccess))
		return ErrNotOperator
	}
	var (
		text string
		err  error
	)
	switch action {
	case PanelStats:
		var st orders.Stats
		if st, err = r.orders.Stats(ctx); err == nil {
			text = statsText(st)
		}
	case PanelActive:
		var list []orders.Order
		if list, err = r.orders.Recent(ctx, orders.StatusNew, panelLimit); err == nil {
			text = activeText(list)
		}
	case PanelClients:
		var list []orders.ClientSummary
		if list, err = r.orders.RecentClients(ctx, panelLimit); err == nil {
			text = clientsText(list)
		}
	default:
		return fmt.Errorf("operator: unknown panel action %q", action)
	}
	if err != nil {
		r.log.Error("store failure", zap.String("op", action), zap.Error(err))
		r.tell(ctx, chatID, snap.TextOr(keyFailure, defaultFailure))
		return fmt.Errorf("operator: %s: %w", action, err)
	}
	r.tellHTML(ctx, chatID, text)
	return nil
}

// RecentOrders lists the newest orders of every status. Non-operators get no
// answer.
func (r *Router) RecentOrders(ctx context.Context, chatID int64) error {
	snap := r.snapshot(ctx)
	if !r.IsOperator(snap, chatID) {
		r.log.Info("order list refused", zap.Int64("chat_id", chatID))
		return ErrNotOperator
	}
	list, err := r.orders.Recent(ctx, "", panelLimit)
	if err != nil {
		r.log.Error("store failure", zap.String("op", "recent orders"), zap.Error(err))
		r.tell(ctx, chatID, snap.TextOr(keyFailure, defaultFailure))
		return fmt.Errorf("operator: recent orders: %w", err)
	}
	r.tellHTML(ctx, chatID, recentText(list))
	return nil
}

func (r *Router) send(ctx context.Context, chatID int64, msg messenger.Message) {
	if _, err := r.out.Send(ctx, msg); err != nil {
		r.log.Warn("send to operator failed", zap.Int64("operator_chat_id", chatID), zap.Error(err))
	}
}

func kindTitle(k orders.FlowKind) string {
	switch k {
	case orders.FlowEngineRepair:
		return "Ремонт двигателя"
	case orders.FlowMachining:
		return "Станочные работы"
	}
	return string(k)
}

const panelTime = "02.01.2006 15:04"

func statsText(st orders.Stats) string {
	return fmt.Sprintf("📊 <b>Статистика</b>\n\n"+
		"Всего заказов: %d\n"+
		"Станочные работы: %d\n"+
		"Ремонт двигателя: %d\n"+
		"Активные: %d\n"+
		"Завершенные: %d",
		st.Total, st.Machining, st.EngineRepair, st.Active, st.Completed)
}

func activeText(list []orders.Order) string {
	if len(list) == 0 {
		return "📭 Нет активных заказов"
	}
	var b strings.Builder
	b.WriteString("📋 <b>Активные заказы:</b>\n\n")
	for _, o := range list {
		fmt.Fprintf(&b, "🔸 №%d: %s - %s\n", o.ID, kindTitle(o.Kind), o.CreatedAt.Format(panelTime))
	}
	return b.String()
}

func clientsText(list []orders.ClientSummary) string {
	if len(list) == 0 {
		return "👥 Нет клиентов"
	}
	var b strings.Builder
	b.WriteString("👥 <b>Последние клиенты:</b>\n\n")
	for _, c := range list {
		fmt.Fprintf(&b, "👤 %s (@%s)\n   Заказов: %d\n   Последний: %s\n\n",
			html.EscapeString(c.DisplayName), html.EscapeString(nick(c.Username)), c.Orders, c.LastOrderAt.Format(panelTime))
	}
	return b.String()
}

func recentText(list []orders.Order) string {
	if len(list) == 0 {
		return "📭 Нет заказов"
	}
	var b strings.Builder
	b.WriteString("📋 <b>Последние заказы:</b>\n\n")
	for _, o := range list {
		mark := "🔄"
		if o.Status == orders.StatusCompleted {
			mark = "✅"
		}
		fmt.Fprintf(&b, "%s <b>№%d</b> - %s\n", mark, o.ID, kindTitle(o.Kind))
		b.WriteString(customerLine(o))
		fmt.Fprintf(&b, "📅 %s\n📝 %s\n\n", o.CreatedAt.Format(panelTime), html.EscapeString(clip(o.Fields[orders.FieldComment], 50)))
	}
	return b.String()
}

func nick(username string) string {
	if username == "" {
		return "NoNick"
	}
	return username
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

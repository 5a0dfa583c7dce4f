package operator

import (
	"fmt"
	"html"
	"strconv"
	"strings"

	"github.com/ariefcatur/order-intake-bot/internal/messenger"
	"github.com/ariefcatur/order-intake-bot/internal/orders"
)

// ReplyActionPrefix prefixes the callback data of the reply button.
const ReplyActionPrefix = "reply_"

const (
	keyNoAccess       = "msg_no_access"
	keyOrderNotFound  = "msg_order_not_found"
	keyFailure        = "msg_operator_failure"
	keyAlreadyHandled = "msg_already_handled"
	keyReplyCanceled  = "msg_reply_canceled"
	keyReplySent      = "msg_reply_sent"
	keyRelayFailed    = "msg_relay_failed"
	keyBadPassword    = "msg_bad_password"
	keyAuthorized     = "msg_authorized"
)

const (
	defaultNoAccess       = "❌ Нет доступа"
	defaultOrderNotFound  = "❌ Заказ не найден"
	defaultFailure        = "❌ Ошибка. Попробуйте ещё раз."
	defaultAlreadyHandled = "ℹ️ По заказу №%d уже ответили."
	defaultReplyCanceled  = "Ответ отменён."
	defaultReplySent      = "✅ Ответ отправлен клиенту (заказ №%d)"
	defaultRelayFailed    = "❌ Не удалось доставить ответ клиенту."
	defaultBadPassword    = "❌ Неверный пароль."
	defaultAuthorized     = "✅ Админ авторизован."
	defaultNoOperators    = "❌ Админ не установлен. Используйте /iamadmin ПАРОЛЬ"
)

// ReplyAction is the callback data of the reply button for orderID.
func ReplyAction(orderID int64) string {
	return ReplyActionPrefix + strconv.FormatInt(orderID, 10)
}

// ParseReplyAction is the inverse of ReplyAction.
func ParseReplyAction(data string) (int64, bool) {
	rest, ok := strings.CutPrefix(data, ReplyActionPrefix)
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(rest, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// notification renders o for the operators. Machining photos travel with it:
// one photo carries the text as caption, several are sent as a group first.
func notification(o orders.Order) messenger.Message {
	var b strings.Builder
	fmt.Fprintf(&b, "🔔 <b>НОВЫЙ ЗАКАЗ №%d</b>\n", o.ID)
	f := func(label, name string) {
		v := o.Fields[name]
		if v == "" {
			v = "Не указано"
		}
		fmt.Fprintf(&b, "%s%s\n", label, html.EscapeString(v))
	}
	var photos []string
	switch o.Kind {
	case orders.FlowEngineRepair:
		b.WriteString("Тип: Ремонт двигателя\n")
		b.WriteString(customerLine(o))
		f("🚗 Марка: ", orders.FieldCarBrand)
		f("📅 Год: ", orders.FieldCarYear)
		f("🔧 Проблема: ", orders.FieldEngineIssue)
		f("⏳ Срочность: ", orders.FieldUrgency)
	default:
		b.WriteString("Тип: Станочные работы\n")
		b.WriteString(customerLine(o))
		f("🛠: ", orders.FieldWorkType)
		f("📏: ", orders.FieldDimensionsInfo)
		f("⚙️: ", orders.FieldConditions)
		f("⏳: ", orders.FieldUrgency)
		if refs := o.Fields[orders.FieldPhotoRefs]; refs != "" {
			photos = strings.Split(refs, ",")
		}
	}
	comment := o.Fields[orders.FieldComment]
	if comment == "" {
		comment = "Нет комментариев"
	}
	fmt.Fprintf(&b, "📝 Комментарий: %s", html.EscapeString(comment))

	return messenger.Message{
		Text:    b.String(),
		Format:  "HTML",
		Photos:  photos,
		Buttons: [][]messenger.Button{{{Label: "💬 Ответить клиенту", Data: ReplyAction(o.ID)}}},
	}
}

func customerLine(o orders.Order) string {
	return fmt.Sprintf("👤: %s (@%s)\n", html.EscapeString(o.CustomerDisplayName), html.EscapeString(nick(o.CustomerUsername)))
}

func replyPrompt(o orders.Order) string {
	return fmt.Sprintf("✍️ <b>Отправьте ответ клиенту по заказу №%d:</b>\n\n%s\nНапишите сообщение для клиента:",
		o.ID, strings.TrimPrefix(customerLine(o), "👤: "))
}

func relayText(orderID int64, text string) string {
	return fmt.Sprintf("👨‍🔧 <b>Ответ от мастера по заказу №%d:</b>\n\n%s", orderID, html.EscapeString(text))
}

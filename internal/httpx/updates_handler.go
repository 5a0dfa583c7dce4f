package httpx

import (
	"encoding/json"
	"net/http"

	"github.com/ariefcatur/order-intake-bot/internal/bot"
	kafkax "github.com/ariefcatur/order-intake-bot/internal/kafka"
	"github.com/ariefcatur/order-intake-bot/internal/orders"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const maxUpdateBytes = 64 << 10

// UpdatesHandler is the ingress of the chat transport: updates are validated
// and queued on bot.updates keyed by chat, so one chat is always processed in
// order by one worker.
type UpdatesHandler struct {
	Producer kafkax.Publisher
	Log      *zap.Logger
}

type UpdateAccepted struct {
	EventID string `json:"event_id"`
}

func (h *UpdatesHandler) Register(r chi.Router) {
	r.Post("/updates", h.postUpdate)
}

func (h *UpdatesHandler) postUpdate(w http.ResponseWriter, r *http.Request) {
	var u bot.Update
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxUpdateBytes)).Decode(&u); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if u.EventID == "" {
		u.EventID = uuid.NewString()
	}
	if err := u.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.Producer.Publish(orders.ChatKey(u.ChatID), kafkax.MustMarshal(u),
		kafkago.Header{Key: "x-update-type", Value: []byte(u.Type)},
		kafkago.Header{Key: "x-request-id", Value: []byte(r.Header.Get("X-Request-Id"))},
	)
	h.Log.Debug("update queued", zap.String("event_id", u.EventID), zap.String("type", string(u.Type)))
	writeJSON(w, http.StatusAccepted, UpdateAccepted{EventID: u.EventID})
}

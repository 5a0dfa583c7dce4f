package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/ariefcatur/order-intake-bot/internal/orders"
	"github.com/ariefcatur/order-intake-bot/internal/redisx"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// OrdersHandler is the read side of the Order Store.
type OrdersHandler struct {
	Store orders.Store
	Redis *redis.Client // optional status cache
	Log   *zap.Logger
}

type OrderView struct {
	ID                  int64           `json:"id"`
	CustomerID          int64           `json:"customer_id"`
	CustomerUsername    string          `json:"customer_username"`
	CustomerDisplayName string          `json:"customer_display_name"`
	FlowKind            orders.FlowKind `json:"flow_kind"`
	Status              orders.Status   `json:"status"`
	Fields              orders.Fields   `json:"fields"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
}

type StatusView struct {
	ID     int64         `json:"id"`
	Status orders.Status `json:"status"`
}

func (h *OrdersHandler) Register(r chi.Router) {
	r.Get("/orders/{id}", h.getOrder)
	r.Get("/orders/{id}/status", h.getStatus)
}

func orderID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	o, err := h.Store.Get(ctx, id)
	if err != nil {
		h.storeError(w, id, err)
		return
	}
	writeJSON(w, http.StatusOK, OrderView{
		ID:                  o.ID,
		CustomerID:          o.CustomerID,
		CustomerUsername:    o.CustomerUsername,
		CustomerDisplayName: o.CustomerDisplayName,
		FlowKind:            o.Kind,
		Status:              o.Status,
		Fields:              o.Fields,
		CreatedAt:           o.CreatedAt,
		UpdatedAt:           o.UpdatedAt,
	})
}

// getStatus serves from the Redis cache first. The bot invalidates the entry
// on every status transition; a fill racing with an invalidation is dropped.
func (h *OrdersHandler) getStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	// 1) coba cache
	var gen string
	cacheable := h.Redis != nil
	if cacheable {
		key := fmt.Sprintf(redisx.KeyOrderStatus, id)
		if s, err := h.Redis.Get(ctx, key).Result(); err == nil && s != "" {
			writeJSON(w, http.StatusOK, json.RawMessage(s))
			return
		}
		var err error
		if gen, err = redisx.StatusGeneration(ctx, h.Redis, id); err != nil {
			cacheable = false
		}
	}

	// 2) fallback store
	o, err := h.Store.Get(ctx, id)
	if err != nil {
		h.storeError(w, id, err)
		return
	}
	b, _ := json.Marshal(StatusView{ID: o.ID, Status: o.Status})
	if cacheable {
		stored, err := redisx.CacheStatus(ctx, h.Redis, id, gen, b, redisx.TTLStatusCache)
		switch {
		case err != nil:
			h.Log.Debug("status cache write failed", zap.Int64("order_id", id), zap.Error(err))
		case !stored:
			h.Log.Debug("status cache fill raced an invalidation", zap.Int64("order_id", id))
		}
	}
	writeJSON(w, http.StatusOK, json.RawMessage(b))
}

func (h *OrdersHandler) storeError(w http.ResponseWriter, id int64, err error) {
	if errors.Is(err, orders.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	h.Log.Error("order read failed", zap.Int64("order_id", id), zap.Error(err))
	writeError(w, http.StatusServiceUnavailable, "store unavailable")
}

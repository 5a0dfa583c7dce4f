package httpx

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/ariefcatur/order-intake-bot/internal/bot"
	"github.com/ariefcatur/order-intake-bot/internal/orders"
	"github.com/ariefcatur/order-intake-bot/internal/redisx"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type capturePublisher struct {
	keys   []string
	values [][]byte
}

func (c *capturePublisher) Publish(key, value []byte, _ ...kafka.Header) {
	c.keys = append(c.keys, string(key))
	c.values = append(c.values, value)
}

func newServer(t *testing.T) (*httptest.Server, *capturePublisher, *orders.MemoryStore) {
	t.Helper()
	pub := &capturePublisher{}
	store := orders.NewMemoryStore()
	r := NewRouter()
	(&UpdatesHandler{Producer: pub, Log: zap.NewNop()}).Register(r)
	(&OrdersHandler{Store: store, Log: zap.NewNop()}).Register(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, pub, store
}

func TestHealthz(t *testing.T) {
	srv, _, _ := newServer(t)
	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestPostUpdate(t *testing.T) {
	srv, pub, _ := newServer(t)

	body := `{"type":"start_flow","chat_id":501,"user_id":501,"username":"ivan","flow":"machining"}`
	resp, err := http.Post(srv.URL+"/updates", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var acc UpdateAccepted
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&acc))
	require.NotEmpty(t, acc.EventID)

	require.Equal(t, []string{"501"}, pub.keys)
	var queued bot.Update
	require.NoError(t, json.Unmarshal(pub.values[0], &queued))
	require.Equal(t, acc.EventID, queued.EventID)
	require.Equal(t, orders.FlowMachining, queued.Flow)
}

func TestPostUpdate_Rejects(t *testing.T) {
	srv, pub, _ := newServer(t)
	for _, body := range []string{
		`{not json`,
		`{"type":"start_flow","chat_id":501,"user_id":501}`,
		`{"type":"photo","chat_id":501,"user_id":501}`,
		`{"type":"teleport","chat_id":501,"user_id":501}`,
	} {
		resp, err := http.Post(srv.URL+"/updates", "application/json", strings.NewReader(body))
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, http.StatusBadRequest, resp.StatusCode, body)
	}
	require.Empty(t, pub.values)
}

func TestGetOrder(t *testing.T) {
	srv, _, store := newServer(t)
	o, _, err := store.StartDraft(context.Background(), orders.Customer{ID: 501, Username: "ivan"}, orders.FlowEngineRepair)
	require.NoError(t, err)
	require.NoError(t, store.SetField(context.Background(), o.ID, orders.FieldCarBrand, "Toyota Camry"))

	resp, err := http.Get(srv.URL + "/orders/1")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var view OrderView
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&view))
	require.Equal(t, orders.StatusFilling, view.Status)
	require.Equal(t, "Toyota Camry", view.Fields[orders.FieldCarBrand])

	resp2, err := http.Get(srv.URL + "/orders/1/status")
	require.NoError(t, err)
	defer resp2.Body.Close()
	var st StatusView
	require.NoError(t, json.NewDecoder(resp2.Body).Decode(&st))
	require.Equal(t, StatusView{ID: 1, Status: orders.StatusFilling}, st)

	for path, code := range map[string]int{"/orders/99": http.StatusNotFound, "/orders/abc": http.StatusBadRequest} {
		r, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		r.Body.Close()
		require.Equal(t, code, r.StatusCode, path)
	}
}

func getStatus(t *testing.T, url string) orders.Status {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var st StatusView
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&st))
	return st.Status
}

func TestGetStatus_CacheFollowsDraftRejection(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	// the api reads the plain store, the bot writes through the cache-aware one
	mem := orders.NewMemoryStore()
	worker := &redisx.StatusCacheStore{Store: mem, Redis: rdb}
	r := NewRouter()
	(&OrdersHandler{Store: mem, Redis: rdb, Log: zap.NewNop()}).Register(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	o, _, err := worker.StartDraft(ctx, orders.Customer{ID: 501}, orders.FlowMachining)
	require.NoError(t, err)
	url := fmt.Sprintf("%s/orders/%d/status", srv.URL, o.ID)

	require.Equal(t, orders.StatusFilling, getStatus(t, url))
	require.True(t, mr.Exists(fmt.Sprintf(redisx.KeyOrderStatus, o.ID)), "first read fills the cache")

	_, err = worker.RejectDrafts(ctx, 501)
	require.NoError(t, err)
	require.Equal(t, orders.StatusRejected, getStatus(t, url))

	next, _, err := worker.StartDraft(ctx, orders.Customer{ID: 501}, orders.FlowEngineRepair)
	require.NoError(t, err)
	nextURL := fmt.Sprintf("%s/orders/%d/status", srv.URL, next.ID)
	require.Equal(t, orders.StatusFilling, getStatus(t, nextURL))
	_, _, err = worker.StartDraft(ctx, orders.Customer{ID: 501}, orders.FlowEngineRepair)
	require.NoError(t, err)
	require.Equal(t, orders.StatusRejected, getStatus(t, nextURL))
}

package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/xenking/orders-api/internal/domain/order"
	"github.com/xenking/orders-api/internal/storage/memory"
)

type fixedRate struct{ rate decimal.Decimal }

func (f fixedRate) Rate(context.Context) decimal.Decimal { return f.rate }

type brokenStore struct{ *memory.Store }

func (brokenStore) InTx(context.Context, func(context.Context, order.Tx) error) error {
	return errors.New("connection refused")
}

func newServer(t *testing.T, store order.Store) *httptest.Server {
	t.Helper()
	rates := fixedRate{rate: decimal.NewFromInt(5)}
	h := NewHandler(order.NewService(store, rates, tracenoop.NewTracerProvider()), rates)
	srv := httptest.NewServer(h.Routes())
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, srv *httptest.Server, method, path, body string) (*http.Response, map[string]any) {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, srv.URL+path, rd)
	require.NoError(t, err)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	var out map[string]any
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(data) > 0 && data[0] == '{' {
		require.NoError(t, json.Unmarshal(data, &out))
	}
	return resp, out
}

func totals(t *testing.T, body map[string]any) (usd, local float64) {
	t.Helper()
	tot, ok := body["order_totals"].(map[string]any)
	require.True(t, ok, "order_totals missing in %v", body)
	return tot["total_usd"].(float64), tot["total_local"].(float64)
}

const createBody = `{"customer_id":"c1","items":[{"sku":"A","description":"Widget","qty":2,"unit_price":10.00}]}`

func TestCreateAndGetOrder(t *testing.T) {
	srv := newServer(t, memory.New())

	resp, body := do(t, srv, http.MethodPost, "/orders", createBody)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, float64(1), body["id"])
	assert.Equal(t, "PENDING", body["status"])
	assert.Equal(t, 20.0, body["total_usd"])
	assert.Equal(t, 100.0, body["total_local"])
	items := body["items"].([]any)
	require.Len(t, items, 1)
	assert.Equal(t, 20.0, items[0].(map[string]any)["line_total"])

	resp, body = do(t, srv, http.MethodGet, "/orders/1", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "c1", body["customer_id"])
	assert.NotEmpty(t, body["created_at"])
	resp, _ = do(t, srv, http.MethodPost, "/orders", createBody+"\n\t ")
	assert.Equal(t, http.StatusCreated, resp.StatusCode, "trailing whitespace is allowed")
}

func TestCreateOrder_BadRequest(t *testing.T) {
	srv := newServer(t, memory.New())

	tests := []struct {
		name string
		body string
		msg  string
	}{
		{"empty items", `{"customer_id":"c1","items":[]}`, "At least one item is required"},
		{"missing items", `{"customer_id":"c1"}`, "At least one item is required"},
		{"zero qty", `{"customer_id":"c1","items":[{"qty":0,"unit_price":1}]}`, "qty must be >= 1"},
		{"negative price", `{"customer_id":"c1","items":[{"qty":1,"unit_price":-1}]}`, "unit_price must be >= 0"},
		{"missing price", `{"customer_id":"c1","items":[{"qty":1}]}`, "unit_price is required"},
		{"missing customer", `{"items":[{"qty":1,"unit_price":1}]}`, "customer_id is required"},
		{"malformed", `{"customer_id":`, "invalid request body"},
		{"not an object", `[1,2]`, "invalid request body"},
		{"string qty", `{"customer_id":"c1","items":[{"qty":"1","unit_price":1}]}`, "invalid request body"},
		{"string price", `{"customer_id":"c1","items":[{"qty":1,"unit_price":"1.00"}]}`, "invalid request body"},
		{"trailing garbage", createBody + ` garbage`, "invalid request body"},
		{"second object", createBody + createBody, "invalid request body"},
		{"huge exponent", `{"customer_id":"c","items":[{"qty":1,"unit_price":1e30000000}]}`, "unit_price must be below 1000000000000"},
		{"too many decimals", `{"customer_id":"c","items":[{"qty":1,"unit_price":0.00001}]}`, "unit_price must have at most 4 decimal places"},
		{"total too large", `{"customer_id":"c","items":[{"qty":1,"unit_price":999999999999}]}`, "total_local must be below 1000000000000"},
		{"long sku", `{"customer_id":"c","items":[{"sku":"` + strings.Repeat("s", 65) + `","qty":1,"unit_price":1}]}`, "sku must be at most 64 characters"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := do(t, srv, http.MethodPost, "/orders", tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Equal(t, tt.msg, body["error"])
		})
	}
}

func TestItemEndpoints(t *testing.T) {
	srv := newServer(t, memory.New())
	resp, _ := do(t, srv, http.MethodPost, "/orders", createBody)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body := do(t, srv, http.MethodPost, "/orders/1/items", `{"sku":"B","description":"Gadget","qty":1,"unit_price":5}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "Item added", body["message"])
	item := body["item"].(map[string]any)
	assert.Equal(t, "/api/v1/orders/1/items/2", resp.Header.Get("Location"))
	assert.Equal(t, float64(2), item["id"])
	usd, local := totals(t, body)
	assert.Equal(t, 25.0, usd)
	assert.Equal(t, 125.0, local)

	resp, body = do(t, srv, http.MethodPut, "/orders/1/items/2", `{"qty":3,"sku":null}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Item updated", body["message"])
	usd, _ = totals(t, body)
	assert.Equal(t, 35.0, usd)

	_, body = do(t, srv, http.MethodGet, "/orders/1", "")
	items := body["items"].([]any)
	assert.Equal(t, "B", items[1].(map[string]any)["sku"])

	resp, body = do(t, srv, http.MethodDelete, "/orders/1/items/2", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Item deleted", body["message"])
	usd, local = totals(t, body)
	assert.Equal(t, 20.0, usd)
	assert.Equal(t, 100.0, local)
}

func TestItemEndpoints_Errors(t *testing.T) {
	srv := newServer(t, memory.New())
	do(t, srv, http.MethodPost, "/orders", createBody)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
		msg    string
	}{
		{"add to missing order", http.MethodPost, "/orders/9/items", `{"qty":1,"unit_price":1}`, http.StatusNotFound, "Order not found"},
		{"add invalid to missing order", http.MethodPost, "/orders/9/items", `{"qty":0,"unit_price":1}`, http.StatusNotFound, "Order not found"},
		{"add invalid", http.MethodPost, "/orders/1/items", `{"qty":0,"unit_price":1}`, http.StatusBadRequest, "qty must be >= 1"},
		{"update missing item", http.MethodPut, "/orders/1/items/9", `{"qty":1}`, http.StatusNotFound, "Item not found for this order"},
		{"update invalid", http.MethodPut, "/orders/1/items/1", `{"unit_price":-5}`, http.StatusBadRequest, "unit_price must be >= 0"},
		{"delete missing item", http.MethodDelete, "/orders/1/items/9", "", http.StatusNotFound, "Item not found for this order"},
		{"non-integer order id", http.MethodGet, "/orders/abc", "", http.StatusNotFound, "Order not found"},
		{"non-integer item id", http.MethodDelete, "/orders/1/items/x", "", http.StatusNotFound, "Item not found for this order"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := do(t, srv, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Equal(t, tt.msg, body["error"])
		})
	}

	_, body := do(t, srv, http.MethodGet, "/orders/1", "")
	assert.Equal(t, 20.0, body["total_usd"])
}

func TestUpdateOrder(t *testing.T) {
	srv := newServer(t, memory.New())
	do(t, srv, http.MethodPost, "/orders", createBody)

	resp, body := do(t, srv, http.MethodPut, "/orders/1", `{"customer_id":"c2"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "c2", body["customer_id"])
	assert.Equal(t, 20.0, body["total_usd"])

	resp, body = do(t, srv, http.MethodPut, "/orders/1", `{}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "c2", body["customer_id"])

	resp, _ = do(t, srv, http.MethodPut, "/orders/7", `{"customer_id":"c2"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestListOrders(t *testing.T) {
	srv := newServer(t, memory.New())
	do(t, srv, http.MethodPost, "/orders", createBody)
	do(t, srv, http.MethodPost, "/orders", strings.Replace(createBody, "c1", "c2", 1))

	resp, err := srv.Client().Get(srv.URL + "/orders?customer_id=c2")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var list []map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	require.Len(t, list, 1)
	assert.Equal(t, float64(2), list[0]["id"])
	assert.Equal(t, "c2", list[0]["customer_id"])
	assert.Equal(t, 20.0, list[0]["total_usd"])
	assert.Equal(t, "PENDING", list[0]["status"])
}

func TestListOrders_Empty(t *testing.T) {
	srv := newServer(t, memory.New())

	resp, err := srv.Client().Get(srv.URL + "/orders")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(data))
}

func TestDeleteOrderAndStatus(t *testing.T) {
	srv := newServer(t, memory.New())
	do(t, srv, http.MethodPost, "/orders", createBody)
	do(t, srv, http.MethodPost, "/orders", createBody)

	resp, body := do(t, srv, http.MethodDelete, "/orders/1", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Order deleted", body["message"])

	resp, _ = do(t, srv, http.MethodGet, "/orders/1", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp, body = do(t, srv, http.MethodDelete, "/orders/1", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "Order not found", body["error"])

	resp, body = do(t, srv, http.MethodPut, "/orders/2/status", `{"status":"BOGUS"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = do(t, srv, http.MethodPut, "/orders/2/status", `{"status":"CONFIRMED"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "CONFIRMED", body["status"])

	resp, body = do(t, srv, http.MethodDelete, "/orders/2", "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "Only PENDING orders can be deleted", body["error"])

	resp, _ = do(t, srv, http.MethodPut, "/orders/2/status", `{"status":"CANCELLED"}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestStorageUnavailable(t *testing.T) {
	srv := newServer(t, brokenStore{memory.New()})

	resp, body := do(t, srv, http.MethodPost, "/orders", createBody)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "storage temporarily unavailable, retry", body["error"])
}

func TestRate(t *testing.T) {
	srv := newServer(t, memory.New())

	resp, body := do(t, srv, http.MethodGet, "/health/rate", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 5.0, body["rate"])
}

func TestUnknownRoute(t *testing.T) {
	srv := newServer(t, memory.New())

	resp, body := do(t, srv, http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "not found", body["error"])

	resp, _ = do(t, srv, http.MethodPatch, "/orders", "")
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

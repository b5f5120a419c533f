package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/checkout"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/pricing"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/domain/session"
	"github.com/xenking/storefront/pkg/httpmiddleware"
)

// --- Mock implementations ---

type mockProductRepo struct {
	products []product.Product
	listErr  error
}

func (m *mockProductRepo) List(_ context.Context) ([]product.Product, error) {
	return m.products, m.listErr
}

func (m *mockProductRepo) GetByID(_ context.Context, id string) (*product.Product, error) {
	for i := range m.products {
		if m.products[i].ID == id {
			p := m.products[i]
			return &p, nil
		}
	}
	return nil, product.ErrNotFound
}

func (m *mockProductRepo) GetByIDs(ctx context.Context, ids []string) ([]product.Product, error) {
	var out []product.Product
	for _, id := range ids {
		if p, err := m.GetByID(ctx, id); err == nil {
			out = append(out, *p)
		}
	}
	return out, nil
}

type mockOrderRepo struct {
	mu     sync.Mutex
	orders []order.Order
	err    error
}

func (m *mockOrderRepo) Create(_ context.Context, o *order.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.orders = append(m.orders, *o)
	return nil
}

func (m *mockOrderRepo) GetByID(_ context.Context, id string) (*order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.orders {
		if m.orders[i].ID == id {
			o := m.orders[i]
			return &o, nil
		}
	}
	return nil, order.ErrNotFound
}

func (m *mockOrderRepo) ListBySession(_ context.Context, sessionID string) ([]order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []order.Order
	for i := len(m.orders) - 1; i >= 0; i-- {
		if m.orders[i].SessionID == sessionID {
			out = append(out, m.orders[i])
		}
	}
	return out, nil
}

type mockStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (m *mockStore) Load(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.data[key]
	if !ok {
		return nil, session.ErrSnapshotNotFound
	}
	return b, nil
}

func (m *mockStore) Save(_ context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = data
	return nil
}

type mockGateway struct {
	result checkout.PaymentResult
	err    error
}

func (g *mockGateway) AttemptPayment(_ context.Context, _ checkout.PaymentRequest) (checkout.PaymentResult, error) {
	return g.result, g.err
}

// --- Helpers ---

func testCatalog() []product.Product {
	return []product.Product{
		{
			ID: "lamp", Name: "Desk Lamp", Price: decimal.NewFromInt(450), Category: "Lighting",
			ComparePrice: decimal.NewNullDecimal(decimal.NewFromInt(499)),
			Image:        product.Image{Thumbnail: "lamp.jpg"},
			Status:       product.StatusActive, Stock: 5,
		},
		{
			ID: "vase", Name: "Vase", Price: decimal.NewFromInt(100), Category: "Decor",
			Status: product.StatusActive, Stock: 100,
		},
		{
			ID: "blind", Name: "Roller Blind", Price: decimal.NewFromInt(60), Category: "Blinds",
			Status: product.StatusActive, Stock: 100, Pricing: pricing.PerAreaFlat{},
		},
		{
			ID: "print", Name: "Wall Print", Price: decimal.NewFromInt(10), Category: "Art",
			Status: product.StatusActive, Stock: 100,
			Pricing: pricing.PerAreaMedia{Options: []pricing.MediaOption{
				{Name: "canvas", PricePerAreaUnit: decimal.NewFromInt(80)},
			}},
		},
		{
			ID: "rug", Name: "Rug", Price: decimal.NewFromInt(10), Category: "Decor",
			Status: product.StatusActive, Stock: 0,
		},
		{
			ID: "draft", Name: "Prototype", Price: decimal.NewFromInt(10),
			Status: product.StatusDraft, Stock: 10,
		},
	}
}

type testEnv struct {
	server   *httptest.Server
	products *mockProductRepo
	orders   *mockOrderRepo
	gateway  *mockGateway
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		products: &mockProductRepo{products: testCatalog()},
		orders:   &mockOrderRepo{},
		gateway:  &mockGateway{result: checkout.PaymentResult{Success: true, Reference: "TXN-1"}},
	}
	now := func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) }
	payments, err := checkout.NewService(env.gateway, env.orders, checkout.Options{Now: now})
	require.NoError(t, err)
	sessions := session.NewService(env.products, env.orders, pricing.NewEngine(decimal.Zero), payments,
		&mockStore{data: make(map[string][]byte)}, session.Config{Now: now})

	h := NewHandler(HandlerConfig{ImageBaseURL: "https://cdn.test/"}, env.products, sessions)
	r := chi.NewRouter()
	r.Use(httpmiddleware.Session(httpmiddleware.SessionConfig{}))
	h.Routes(r)

	env.server = httptest.NewServer(r)
	t.Cleanup(env.server.Close)
	return env
}

// do sends a request as session sid and decodes the JSON response into out
// when out is not nil.
func (e *testEnv) do(t *testing.T, sid, method, path string, body any, out any) int {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, e.server.URL+path, rd)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if sid != "" {
		req.Header.Set(httpmiddleware.SessionHeader, sid)
	}
	resp, err := e.server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil && resp.StatusCode != http.StatusNoContent {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func (e *testEnv) checkoutReady(t *testing.T, sid, method string) {
	t.Helper()
	require.Equal(t, http.StatusOK, e.do(t, sid, http.MethodPost, "/api/checkout/shipping", map[string]string{
		"name": "Asha", "contact": "9876543210", "address": "12 MG Road",
	}, nil))
	require.Equal(t, http.StatusOK, e.do(t, sid, http.MethodPost, "/api/checkout/payment-method",
		map[string]string{"method": method}, nil))
}

// --- Tests ---

func TestListProducts(t *testing.T) {
	env := newTestEnv(t)

	var out []productResponse
	require.Equal(t, http.StatusOK, env.do(t, "", http.MethodGet, "/api/product", nil, &out))
	require.Len(t, out, 5, "draft products are hidden")

	byID := make(map[string]productResponse)
	for _, p := range out {
		byID[p.ID] = p
	}
	lamp := byID["lamp"]
	assert.Equal(t, "450.00", lamp.Price)
	require.NotNil(t, lamp.ComparePrice)
	assert.Equal(t, "499.00", *lamp.ComparePrice)
	assert.Equal(t, "https://cdn.test/lamp.jpg", lamp.Image.Thumbnail)
	assert.True(t, lamp.InStock)
	assert.False(t, lamp.NeedsDimensions)

	assert.False(t, byID["rug"].InStock)
	assert.True(t, byID["blind"].NeedsDimensions)
	assert.Equal(t, pricing.KindPerAreaFlat, byID["blind"].Pricing)
	assert.Equal(t, []string{"canvas"}, byID["print"].Media)
}

func TestListProducts_Error(t *testing.T) {
	env := newTestEnv(t)
	env.products.listErr = errors.New("db down")

	var out errorResponse
	require.Equal(t, http.StatusInternalServerError, env.do(t, "", http.MethodGet, "/api/product", nil, &out))
	assert.Equal(t, "internal error", out.Message)
}

func TestGetProduct(t *testing.T) {
	env := newTestEnv(t)

	var p productResponse
	require.Equal(t, http.StatusOK, env.do(t, "", http.MethodGet, "/api/product/vase", nil, &p))
	assert.Equal(t, "Vase", p.Name)

	var e errorResponse
	assert.Equal(t, http.StatusNotFound, env.do(t, "", http.MethodGet, "/api/product/missing", nil, &e))
	assert.Equal(t, 404, e.Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, "", http.MethodGet, "/api/product/draft", nil, nil))
}

func TestQuoteProduct(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name     string
		id       string
		body     any
		price    string
		computed bool
		units    int64
		errMsg   bool
	}{
		{name: "numbers", id: "blind", body: map[string]any{"width": 40, "height": 90}, price: "1500.00", computed: true, units: 25},
		{name: "strings", id: "blind", body: map[string]any{"width": "40", "height": "90"}, price: "1500.00", computed: true, units: 25},
		{name: "missing height", id: "blind", body: map[string]any{"width": 40}, price: "60.00", errMsg: true},
		{name: "huge dimensions", id: "blind", body: map[string]any{"width": "1e15", "height": "1e15"}, price: "60.00", errMsg: true},
		{name: "media", id: "print", body: map[string]any{"width": 40, "height": 90, "media": "canvas"}, price: "2000.00", computed: true, units: 25},
		{name: "unknown media", id: "print", body: map[string]any{"width": 40, "height": 90, "media": "paper"}, price: "10.00", errMsg: true},
		{name: "standard", id: "vase", price: "100.00", computed: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var q quoteResponse
			require.Equal(t, http.StatusOK, env.do(t, "", http.MethodPost, "/api/product/"+tt.id+"/quote", tt.body, &q))
			assert.Equal(t, tt.price, q.Price)
			assert.Equal(t, tt.computed, q.Computed)
			assert.Equal(t, tt.units, q.AreaUnits)
			assert.Equal(t, tt.errMsg, q.Error != "")
		})
	}

	assert.Equal(t, http.StatusNotFound, env.do(t, "", http.MethodPost, "/api/product/missing/quote", nil, nil))
}

func TestCart_AddAndTotals(t *testing.T) {
	env := newTestEnv(t)
	sid := "cart-1"

	var c cartResponse
	require.Equal(t, http.StatusOK, env.do(t, sid, http.MethodPost, "/api/cart/items",
		map[string]any{"product_id": "lamp", "quantity": 1}, &c))
	assert.Equal(t, 1, c.ItemCount)
	assert.Equal(t, "450.00", c.Totals.Subtotal)
	assert.Equal(t, "50.00", c.Totals.ShippingFee)
	assert.Equal(t, "81.00", c.Totals.Tax)
	assert.Equal(t, "581.00", c.Totals.GrandTotal)

	require.Equal(t, http.StatusOK, env.do(t, sid, http.MethodPost, "/api/cart/items",
		map[string]any{"product_id": "vase", "quantity": 1}, &c))
	assert.Equal(t, "550.00", c.Totals.Subtotal)
	assert.Equal(t, "0.00", c.Totals.ShippingFee)

	// Another session sees its own cart.
	var other cartResponse
	require.Equal(t, http.StatusOK, env.do(t, "cart-2", http.MethodGet, "/api/cart", nil, &other))
	assert.Empty(t, other.Lines)
	assert.Equal(t, "50.00", other.Totals.ShippingFee)
}

func TestCart_MethodPreview(t *testing.T) {
	env := newTestEnv(t)
	sid := "cod-preview"
	for range 2 {
		require.Equal(t, http.StatusOK, env.do(t, sid, http.MethodPost, "/api/cart/items",
			map[string]any{"product_id": "lamp"}, nil))
	}
	require.Equal(t, http.StatusOK, env.do(t, sid, http.MethodPost, "/api/cart/items",
		map[string]any{"product_id": "vase"}, nil))

	var c cartResponse
	require.Equal(t, http.StatusOK, env.do(t, sid, http.MethodGet, "/api/cart?method=cod", nil, &c))
	assert.Equal(t, "1000.00", c.Totals.Subtotal)
	assert.Equal(t, "25.00", c.Totals.CODSurcharge)
	assert.Equal(t, "1205.00", c.Totals.GrandTotal)

	var e errorResponse
	require.Equal(t, http.StatusUnprocessableEntity, env.do(t, sid, http.MethodGet, "/api/cart?method=cheque", nil, &e))
	assert.Contains(t, e.Fields, "method")
}

func TestCart_AddErrors(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name   string
		body   any
		status int
		field  string
	}{
		{name: "missing product id", body: map[string]any{"quantity": 1}, status: http.StatusUnprocessableEntity, field: "product_id"},
		{name: "unknown product", body: map[string]any{"product_id": "nope"}, status: http.StatusNotFound},
		{name: "out of stock", body: map[string]any{"product_id": "rug"}, status: http.StatusUnprocessableEntity},
		{name: "draft", body: map[string]any{"product_id": "draft"}, status: http.StatusUnprocessableEntity},
		{name: "negative quantity", body: map[string]any{"product_id": "vase", "quantity": -1}, status: http.StatusUnprocessableEntity},
		{name: "bad dimensions", body: map[string]any{"product_id": "blind", "width": -4, "height": 10}, status: http.StatusUnprocessableEntity, field: "width"},
		{name: "huge dimensions", body: map[string]any{"product_id": "blind", "width": "1e15", "height": "1e15"}, status: http.StatusUnprocessableEntity, field: "width"},
		{name: "huge exponent", body: map[string]any{"product_id": "blind", "width": "40", "height": "1e2000000000"}, status: http.StatusUnprocessableEntity, field: "height"},
		{name: "unknown field", body: map[string]any{"product_id": "vase", "colour": "red"}, status: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var e errorResponse
			require.Equal(t, tt.status, env.do(t, "errs", http.MethodPost, "/api/cart/items", tt.body, &e))
			assert.Equal(t, tt.status, e.Code)
			if tt.field != "" {
				assert.Contains(t, e.Fields, tt.field)
			}
		})
	}
}

func TestCart_CustomLineQuantityAndRemove(t *testing.T) {
	env := newTestEnv(t)
	sid := "custom"

	var c cartResponse
	require.Equal(t, http.StatusOK, env.do(t, sid, http.MethodPost, "/api/cart/items",
		map[string]any{"product_id": "blind", "width": 40, "height": 90}, &c))
	require.Len(t, c.Lines, 1)
	line := c.Lines[0]
	assert.Equal(t, "blind", line.ProductID)
	assert.Equal(t, "1500.00", line.UnitPrice)
	assert.Contains(t, line.Name, "40 x 90")

	path := "/api/cart/items/" + url.PathEscape(line.LineID)
	require.Equal(t, http.StatusOK, env.do(t, sid, http.MethodPut, path, map[string]any{"quantity": 3}, &c))
	assert.Equal(t, 3, c.ItemCount)
	assert.Equal(t, "4500.00", c.Totals.Subtotal)

	var e errorResponse
	require.Equal(t, http.StatusUnprocessableEntity, env.do(t, sid, http.MethodPut, path, map[string]any{}, &e))
	assert.Contains(t, e.Fields, "quantity")
	require.Equal(t, http.StatusNotFound, env.do(t, sid, http.MethodPut, "/api/cart/items/ghost",
		map[string]any{"quantity": 1}, nil))

	require.Equal(t, http.StatusOK, env.do(t, sid, http.MethodDelete, path, nil, &c))
	assert.Empty(t, c.Lines)
}

func TestCart_Clear(t *testing.T) {
	env := newTestEnv(t)
	require.Equal(t, http.StatusOK, env.do(t, "clr", http.MethodPost, "/api/cart/items",
		map[string]any{"product_id": "vase", "quantity": 4}, nil))

	var c cartResponse
	require.Equal(t, http.StatusOK, env.do(t, "clr", http.MethodDelete, "/api/cart", nil, &c))
	assert.Zero(t, c.ItemCount)
}

func TestWishlist(t *testing.T) {
	env := newTestEnv(t)
	sid := "wish"

	var wl wishlistResponse
	require.Equal(t, http.StatusCreated, env.do(t, sid, http.MethodPost, "/api/wishlist/items",
		map[string]string{"product_id": "lamp"}, &wl))
	require.NotNil(t, wl.Added)
	assert.True(t, *wl.Added)
	assert.Equal(t, 1, wl.Count)

	require.Equal(t, http.StatusOK, env.do(t, sid, http.MethodPost, "/api/wishlist/items",
		map[string]string{"product_id": "lamp"}, &wl))
	assert.False(t, *wl.Added)
	assert.Equal(t, 1, wl.Count)

	require.Equal(t, http.StatusOK, env.do(t, sid, http.MethodGet, "/api/wishlist", nil, &wl))
	require.Len(t, wl.Items, 1)
	assert.Equal(t, "Desk Lamp", wl.Items[0].Name)
	assert.Equal(t, "https://cdn.test/lamp.jpg", wl.Items[0].Image)

	require.Equal(t, http.StatusNotFound, env.do(t, sid, http.MethodPost, "/api/wishlist/items",
		map[string]string{"product_id": "nope"}, nil))

	require.Equal(t, http.StatusOK, env.do(t, sid, http.MethodDelete, "/api/wishlist/items/lamp", nil, &wl))
	assert.Zero(t, wl.Count)
}

func TestWishlist_MoveToCart(t *testing.T) {
	env := newTestEnv(t)
	sid := "move"

	require.Equal(t, http.StatusCreated, env.do(t, sid, http.MethodPost, "/api/wishlist/items",
		map[string]string{"product_id": "vase"}, nil))

	var c cartResponse
	require.Equal(t, http.StatusOK, env.do(t, sid, http.MethodPost, "/api/wishlist/items/vase/move", nil, &c))
	assert.Equal(t, 1, c.ItemCount)

	var wl wishlistResponse
	require.Equal(t, http.StatusOK, env.do(t, sid, http.MethodGet, "/api/wishlist", nil, &wl))
	assert.Zero(t, wl.Count)

	require.Equal(t, http.StatusNotFound, env.do(t, sid, http.MethodPost, "/api/wishlist/items/vase/move", nil, nil))
}

func TestWishlist_Clear(t *testing.T) {
	env := newTestEnv(t)
	require.Equal(t, http.StatusCreated, env.do(t, "wc", http.MethodPost, "/api/wishlist/items",
		map[string]string{"product_id": "vase"}, nil))
	require.Equal(t, http.StatusNoContent, env.do(t, "wc", http.MethodDelete, "/api/wishlist", nil, nil))

	var wl wishlistResponse
	require.Equal(t, http.StatusOK, env.do(t, "wc", http.MethodGet, "/api/wishlist", nil, &wl))
	assert.Zero(t, wl.Count)
}

func TestCheckout_PayCOD(t *testing.T) {
	env := newTestEnv(t)
	sid := "pay"
	for range 2 {
		require.Equal(t, http.StatusOK, env.do(t, sid, http.MethodPost, "/api/cart/items",
			map[string]any{"product_id": "lamp"}, nil))
	}
	require.Equal(t, http.StatusOK, env.do(t, sid, http.MethodPost, "/api/cart/items",
		map[string]any{"product_id": "vase"}, nil))
	env.checkoutReady(t, sid, "COD")

	var co checkoutResponse
	require.Equal(t, http.StatusOK, env.do(t, sid, http.MethodGet, "/api/checkout", nil, &co))
	assert.Equal(t, "selecting_payment", co.State)
	assert.Equal(t, order.MethodCOD, co.PaymentMethod)
	assert.Equal(t, "1205.00", co.Totals.GrandTotal)

	var o orderResponse
	require.Equal(t, http.StatusCreated, env.do(t, sid, http.MethodPost, "/api/checkout/pay", nil, &o))
	assert.Equal(t, "1205.00", o.Totals.GrandTotal)
	assert.Equal(t, 3, o.ItemCount)
	assert.Equal(t, "cod", o.PaymentMethod)
	assert.Equal(t, order.StatusConfirmed, o.Status)

	var c cartResponse
	require.Equal(t, http.StatusOK, env.do(t, sid, http.MethodGet, "/api/cart", nil, &c))
	assert.Empty(t, c.Lines, "cart cleared after payment")

	require.Equal(t, http.StatusOK, env.do(t, sid, http.MethodGet, "/api/checkout", nil, &co))
	assert.Equal(t, "confirmed", co.State)
	assert.Equal(t, o.ID, co.OrderID)

	var orders []orderResponse
	require.Equal(t, http.StatusOK, env.do(t, sid, http.MethodGet, "/api/order", nil, &orders))
	require.Len(t, orders, 1)

	var got orderResponse
	require.Equal(t, http.StatusOK, env.do(t, sid, http.MethodGet, "/api/order/"+o.ID, nil, &got))
	assert.Equal(t, o.ID, got.ID)
	require.Equal(t, http.StatusNotFound, env.do(t, "someone-else", http.MethodGet, "/api/order/"+o.ID, nil, nil))

	// A finished checkout rejects mutations until restarted.
	require.Equal(t, http.StatusConflict, env.do(t, sid, http.MethodPost, "/api/checkout/cancel", nil, nil))
	require.Equal(t, http.StatusOK, env.do(t, sid, http.MethodPost, "/api/checkout/restart", nil, &co))
	assert.Equal(t, "collecting_shipping", co.State)
}

func TestCheckout_Decline(t *testing.T) {
	env := newTestEnv(t)
	env.gateway.result = checkout.PaymentResult{Success: false, Reason: "insufficient funds"}
	sid := "decline"

	require.Equal(t, http.StatusOK, env.do(t, sid, http.MethodPost, "/api/cart/items",
		map[string]any{"product_id": "vase"}, nil))
	env.checkoutReady(t, sid, "card")

	var e errorResponse
	require.Equal(t, http.StatusPaymentRequired, env.do(t, sid, http.MethodPost, "/api/checkout/pay", nil, &e))
	assert.Equal(t, "insufficient funds", e.Message)

	var co checkoutResponse
	require.Equal(t, http.StatusOK, env.do(t, sid, http.MethodGet, "/api/checkout", nil, &co))
	assert.Equal(t, "selecting_payment", co.State)
	assert.Equal(t, "insufficient funds", co.LastFailure)

	var c cartResponse
	require.Equal(t, http.StatusOK, env.do(t, sid, http.MethodGet, "/api/cart", nil, &c))
	assert.Equal(t, 1, c.ItemCount, "cart kept after decline")
	assert.Empty(t, env.orders.orders)
}

func TestCheckout_Errors(t *testing.T) {
	env := newTestEnv(t)
	sid := "co-errs"

	var e errorResponse
	require.Equal(t, http.StatusUnprocessableEntity, env.do(t, sid, http.MethodPost, "/api/checkout/shipping",
		map[string]string{"name": "Asha", "contact": "1", "address": "x"}, &e))
	assert.Contains(t, e.Fields, "cart")

	require.Equal(t, http.StatusOK, env.do(t, sid, http.MethodPost, "/api/cart/items",
		map[string]any{"product_id": "vase"}, nil))

	require.Equal(t, http.StatusUnprocessableEntity, env.do(t, sid, http.MethodPost, "/api/checkout/shipping",
		map[string]string{"name": "", "contact": "1", "address": "x", "email": "nope"}, &e))
	assert.Contains(t, e.Fields, "name")
	assert.Contains(t, e.Fields, "email")

	require.Equal(t, http.StatusConflict, env.do(t, sid, http.MethodPost, "/api/checkout/payment-method",
		map[string]string{"method": "card"}, nil), "shipping not submitted")
	require.Equal(t, http.StatusConflict, env.do(t, sid, http.MethodPost, "/api/checkout/pay", nil, nil))

	require.Equal(t, http.StatusOK, env.do(t, sid, http.MethodPost, "/api/checkout/shipping",
		map[string]string{"name": "Asha", "contact": "1", "address": "x"}, nil))
	require.Equal(t, http.StatusUnprocessableEntity, env.do(t, sid, http.MethodPost, "/api/checkout/payment-method",
		map[string]string{"method": "bitcoin"}, &e))
	assert.Contains(t, e.Fields, "payment_method")

	require.Equal(t, http.StatusBadRequest, env.do(t, sid, http.MethodPost, "/api/checkout/shipping", "oops", nil))

	var co checkoutResponse
	require.Equal(t, http.StatusOK, env.do(t, sid, http.MethodPost, "/api/checkout/cancel", nil, &co))
	assert.Equal(t, "cancelled", co.State)
}

func TestCheckout_PersistFailureVoids(t *testing.T) {
	env := newTestEnv(t)
	env.orders.err = errors.New("disk full")
	sid := "persist"

	require.Equal(t, http.StatusOK, env.do(t, sid, http.MethodPost, "/api/cart/items",
		map[string]any{"product_id": "vase"}, nil))
	env.checkoutReady(t, sid, "upi")

	var e errorResponse
	require.Equal(t, http.StatusPaymentRequired, env.do(t, sid, http.MethodPost, "/api/checkout/pay", nil, &e))
	assert.Equal(t, checkout.ReasonNotRecorded, e.Message)
}

func TestSessionHeaderEchoed(t *testing.T) {
	env := newTestEnv(t)

	resp, err := env.server.Client().Get(env.server.URL + "/api/cart")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(httpmiddleware.SessionHeader))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{name: "missing session", err: session.ErrMissingSession, status: http.StatusBadRequest},
		{name: "configuration", err: &order.ConfigurationError{Method: order.MethodCOD, Reason: "off"}, status: http.StatusConflict},
		{name: "in flight", err: checkout.ErrPaymentInFlight, status: http.StatusConflict},
		{name: "wrapped illegal", err: errors.Wrap(checkout.ErrIllegalTransition, "x"), status: http.StatusConflict},
		{name: "payment", err: &checkout.PaymentFailure{Reason: checkout.ReasonDeclined}, status: http.StatusPaymentRequired},
		{name: "cart changed", err: &checkout.PaymentFailure{Reason: checkout.ReasonCartChanged, Err: checkout.ErrCartChanged}, status: http.StatusPaymentRequired},
		{name: "selection", err: &pricing.MissingSelectionError{Field: "media"}, status: http.StatusUnprocessableEntity},
		{name: "bad policy", err: &pricing.InvalidPolicyError{Kind: pricing.KindPerRoll, Reason: "zero"}, status: http.StatusInternalServerError},
		{name: "negative price", err: errors.Wrap(cart.ErrInvalidPrice, "add"), status: http.StatusUnprocessableEntity},
		{name: "missing product", err: cart.ErrMissingProduct, status: http.StatusUnprocessableEntity},
		{name: "area too large", err: &pricing.InvalidDimensionsError{Field: "area", Reason: "too large"}, status: http.StatusUnprocessableEntity},
		{name: "invariant", err: checkout.ErrInvariantViolation, status: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := classify(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.status, body.Code)
			assert.NotEmpty(t, body.Message)
		})
	}
}

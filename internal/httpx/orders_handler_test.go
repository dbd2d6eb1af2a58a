package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ariefcatur/order-inventory/internal/catalog"
	"github.com/ariefcatur/order-inventory/internal/orders"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeOrders struct {
	createErr error
	created   []orders.CreateOrderInput
	views     map[int64]orders.OrderView
	getCalls  int
	customer  string
	limit     int
	deleted   []int64
	added     int
	stock     orders.InventoryRecord
	stockErr  error
	resets    int
}

func (f *fakeOrders) CreateOrder(_ context.Context, in orders.CreateOrderInput) (orders.PlacedOrder, error) {
	if f.createErr != nil {
		return orders.PlacedOrder{}, f.createErr
	}
	f.created = append(f.created, in)
	return orders.PlacedOrder{
		ID:             7,
		CustomerName:   in.CustomerName,
		ProductID:      in.ProductID,
		Quantity:       in.Quantity,
		UnitPrice:      decimal.NewFromInt(15000),
		TotalPrice:     decimal.NewFromInt(15000).Mul(decimal.NewFromInt(int64(in.Quantity))),
		RemainingStock: 95,
	}, nil
}

func (f *fakeOrders) DeleteOrder(_ context.Context, id int64) (orders.DeletedOrder, error) {
	if _, ok := f.views[id]; !ok {
		return orders.DeletedOrder{}, orders.OrderNotFound(id)
	}
	f.deleted = append(f.deleted, id)
	return orders.DeletedOrder{Order: orders.Order{ID: id, Status: orders.StatusDeleted}, RemainingStock: 100}, nil
}

func (f *fakeOrders) ResetAllInventory(context.Context) (int, error) {
	f.resets++
	return 3, nil
}

func (f *fakeOrders) AddInventory(_ context.Context, productID int64, quantity int) (orders.InventoryRecord, error) {
	if quantity < 1 {
		return orders.InventoryRecord{}, &orders.ValidationError{Field: "quantity", Reason: "must be at least 1"}
	}
	f.added += quantity
	return orders.InventoryRecord{ProductID: productID, StockQuantity: 100 + quantity, Version: 2}, nil
}

func (f *fakeOrders) GetOrder(_ context.Context, id int64) (orders.OrderView, error) {
	f.getCalls++
	v, ok := f.views[id]
	if !ok {
		return orders.OrderView{}, orders.OrderNotFound(id)
	}
	return v, nil
}

func (f *fakeOrders) ListRecentOrders(_ context.Context, limit int) ([]orders.OrderView, error) {
	f.limit = limit
	return []orders.OrderView{}, nil
}

func (f *fakeOrders) ListCustomerOrders(_ context.Context, name string) ([]orders.OrderView, error) {
	f.customer = name
	return []orders.OrderView{}, nil
}

func (f *fakeOrders) Stock(context.Context, int64) (orders.InventoryRecord, error) {
	return f.stock, f.stockErr
}

func (f *fakeOrders) ListInventory(context.Context) ([]orders.InventoryRecord, error) {
	return []orders.InventoryRecord{{ProductID: 1, StockQuantity: 100}}, nil
}

type fakeCatalog struct {
	deleteErr error
	createdIn []catalog.ProductInput
}

func (f *fakeCatalog) List(context.Context) ([]orders.ProductStock, error) {
	return []orders.ProductStock{{Product: orders.Product{ID: 1, Title: "Ticket"}, StockQuantity: 0, StockDisplay: "SOLD OUT"}}, nil
}

func (f *fakeCatalog) Get(_ context.Context, id int64) (orders.ProductStock, error) {
	if id != 1 {
		return orders.ProductStock{}, orders.ProductNotFound(id)
	}
	return orders.ProductStock{Product: orders.Product{ID: 1}, StockQuantity: 12, StockDisplay: "12"}, nil
}

func (f *fakeCatalog) Create(_ context.Context, in catalog.ProductInput) (orders.ProductStock, error) {
	f.createdIn = append(f.createdIn, in)
	return orders.ProductStock{Product: orders.Product{ID: 9, Title: in.Title}, StockQuantity: orders.BaselineStock}, nil
}

func (f *fakeCatalog) Update(_ context.Context, id int64, in catalog.ProductInput) (orders.Product, error) {
	return orders.Product{ID: id, Title: in.Title}, nil
}

func (f *fakeCatalog) Delete(context.Context, int64) error { return f.deleteErr }

type mapCache struct {
	m   map[int64]orders.OrderView
	err error
}

func (c *mapCache) Get(_ context.Context, id int64) (orders.OrderView, bool, error) {
	if c.err != nil {
		return orders.OrderView{}, false, c.err
	}
	v, ok := c.m[id]
	return v, ok, nil
}

func (c *mapCache) Set(_ context.Context, v orders.OrderView) error {
	c.m[v.ID] = v
	return nil
}

func (c *mapCache) Delete(_ context.Context, id int64) error {
	delete(c.m, id)
	return nil
}

type fixedSnapshots map[int64]orders.StockLevel

func (s fixedSnapshots) Get(_ context.Context, id int64) (orders.StockLevel, bool, error) {
	l, ok := s[id]
	return l, ok, nil
}

func (s fixedSnapshots) Forget(_ context.Context, id int64) error {
	delete(s, id)
	return nil
}

type countingLimiter struct {
	limit int
	seen  map[string]int
	err   error
}

func (l *countingLimiter) Allow(_ context.Context, subject string) (bool, error) {
	if l.err != nil {
		return false, l.err
	}
	l.seen[subject]++
	return l.seen[subject] <= l.limit, nil
}

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

type fixture struct {
	orders  *fakeOrders
	catalog *fakeCatalog
	handler *OrdersHandler
	srv     http.Handler
}

func newFixture(t *testing.T, mutate func(h *OrdersHandler)) *fixture {
	t.Helper()
	fo := &fakeOrders{views: map[int64]orders.OrderView{
		5: {Order: orders.Order{ID: 5, CustomerName: "kim", Quantity: 2, OrderDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}, ProductTitle: "Ticket"},
	}}
	fc := &fakeCatalog{}
	h := &OrdersHandler{Orders: fo, Catalog: fc, Logger: log.New(io.Discard, "", 0)}
	if mutate != nil {
		mutate(h)
	}
	r := NewRouter(pinger{})
	h.Register(r)
	return &fixture{orders: fo, catalog: fc, handler: h, srv: r}
}

func (f *fixture) do(t *testing.T, method, path, payload string, hdr map[string]string) (int, map[string]any) {
	t.Helper()
	var rd io.Reader
	if payload != "" {
		rd = strings.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, rd)
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	f.srv.ServeHTTP(rec, req)

	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return rec.Code, out
}

func TestCreateOrder_OK(t *testing.T) {
	f := newFixture(t, nil)

	code, out := f.do(t, http.MethodPost, "/api/orders/create", `{"customerName":"kim","productId":1,"quantity":5}`, nil)
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, true, out["success"])
	order := out["order"].(map[string]any)
	assert.Equal(t, "75000", order["totalPrice"])
	assert.Equal(t, float64(95), order["remainingStock"])
	require.Len(t, f.orders.created, 1)
	assert.Equal(t, orders.CreateOrderInput{CustomerName: "kim", ProductID: 1, Quantity: 5}, f.orders.created[0])
}

func TestCreateOrder_ErrorMapping(t *testing.T) {
	cases := []struct {
		name  string
		err   error
		code  int
		check func(t *testing.T, out map[string]any)
	}{
		{
			name: "insufficient stock",
			err:  &orders.InsufficientStockError{ProductID: 1, Requested: 5, Available: 3},
			code: http.StatusBadRequest,
			check: func(t *testing.T, out map[string]any) {
				assert.Equal(t, "insufficient stock: 3 available", out["message"])
				assert.Equal(t, float64(3), out["available"])
			},
		},
		{
			name: "validation",
			err:  &orders.ValidationError{Field: "quantity", Reason: "must be greater than zero"},
			code: http.StatusBadRequest,
			check: func(t *testing.T, out map[string]any) {
				assert.Equal(t, "quantity", out["field"])
			},
		},
		{
			name: "not found",
			err:  orders.ProductNotFound(42),
			code: http.StatusNotFound,
			check: func(t *testing.T, out map[string]any) {
				assert.Equal(t, "product 42 not found", out["message"])
			},
		},
		{
			name: "transaction",
			err:  &orders.TransactionError{Op: "create order", Err: context.DeadlineExceeded},
			code: http.StatusServiceUnavailable,
			check: func(t *testing.T, out map[string]any) {
				assert.Equal(t, true, out["retryable"])
			},
		},
		{
			name:  "other",
			err:   errors.New("boom"),
			code:  http.StatusInternalServerError,
			check: func(t *testing.T, out map[string]any) {},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, nil)
			f.orders.createErr = tc.err

			code, out := f.do(t, http.MethodPost, "/api/orders/create", `{"customerName":"kim","productId":1,"quantity":5}`, nil)
			assert.Equal(t, tc.code, code)
			assert.Equal(t, false, out["success"])
			tc.check(t, out)
		})
	}
}

func TestCreateOrder_BadJSON(t *testing.T) {
	f := newFixture(t, nil)
	code, out := f.do(t, http.MethodPost, "/api/orders/create", `{"quantity":"five"`, nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "invalid json", out["message"])
	assert.Empty(t, f.orders.created)
}

func TestCreateOrder_RateLimited(t *testing.T) {
	lim := &countingLimiter{limit: 2, seen: map[string]int{}}
	f := newFixture(t, func(h *OrdersHandler) { h.Limiter = lim })

	payload := `{"customerName":"kim","productId":1,"quantity":1}`
	hdr := map[string]string{"X-Forwarded-For": "10.0.0.1"}
	for i := 0; i < 2; i++ {
		code, _ := f.do(t, http.MethodPost, "/api/orders/create", payload, hdr)
		require.Equal(t, http.StatusCreated, code)
	}
	code, out := f.do(t, http.MethodPost, "/api/orders/create", payload, hdr)
	assert.Equal(t, http.StatusTooManyRequests, code)
	assert.Equal(t, false, out["success"])
	assert.Equal(t, 3, lim.seen["10.0.0.1"])

	// another client has its own window
	code, _ = f.do(t, http.MethodPost, "/api/orders/create", payload, map[string]string{"X-Forwarded-For": "10.0.0.2"})
	assert.Equal(t, http.StatusCreated, code)
}

func TestCreateOrder_LimiterErrorFailsOpen(t *testing.T) {
	f := newFixture(t, func(h *OrdersHandler) {
		h.Limiter = &countingLimiter{err: errors.New("redis down")}
	})
	code, _ := f.do(t, http.MethodPost, "/api/orders/create", `{"customerName":"kim","productId":1,"quantity":1}`, nil)
	assert.Equal(t, http.StatusCreated, code)
}

func TestGetOrder_UsesCache(t *testing.T) {
	cache := &mapCache{m: map[int64]orders.OrderView{}}
	f := newFixture(t, func(h *OrdersHandler) { h.Cache = cache })

	code, out := f.do(t, http.MethodGet, "/api/orders/5", "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Ticket", out["order"].(map[string]any)["product_title"])
	assert.Equal(t, 1, f.orders.getCalls)
	assert.Contains(t, cache.m, int64(5))

	code, _ = f.do(t, http.MethodGet, "/api/orders/5", "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 1, f.orders.getCalls, "second read served from cache")
}

func TestGetOrder_CacheErrorFallsBack(t *testing.T) {
	f := newFixture(t, func(h *OrdersHandler) {
		h.Cache = &mapCache{m: map[int64]orders.OrderView{}, err: errors.New("redis down")}
	})
	code, _ := f.do(t, http.MethodGet, "/api/orders/5", "", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, 1, f.orders.getCalls)
}

func TestGetOrder_NotFoundAndBadID(t *testing.T) {
	f := newFixture(t, nil)

	code, _ := f.do(t, http.MethodGet, "/api/orders/999", "", nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, out := f.do(t, http.MethodGet, "/api/orders/abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "orderID", out["field"])
}

func TestListOrders_Limit(t *testing.T) {
	f := newFixture(t, nil)

	code, out := f.do(t, http.MethodGet, "/api/orders/list", "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, []any{}, out["orders"])
	assert.Equal(t, orders.DefaultListLimit, f.orders.limit)

	code, _ = f.do(t, http.MethodGet, "/api/orders/list?limit=20", "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 20, f.orders.limit)

	code, _ = f.do(t, http.MethodGet, "/api/orders/list?limit=x", "", nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestCustomerOrders_Unescapes(t *testing.T) {
	f := newFixture(t, nil)
	code, _ := f.do(t, http.MethodGet, "/api/orders/customer/%ED%99%8D%EA%B8%B8%EB%8F%99", "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "홍길동", f.orders.customer)
}

func TestProducts(t *testing.T) {
	f := newFixture(t, nil)

	code, out := f.do(t, http.MethodGet, "/api/orders/products", "", nil)
	require.Equal(t, http.StatusOK, code)
	ps := out["products"].([]any)
	require.Len(t, ps, 1)
	assert.Equal(t, "SOLD OUT", ps[0].(map[string]any)["stock_display"])

	code, out = f.do(t, http.MethodGet, "/api/orders/products/1/inventory", "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(12), out["product"].(map[string]any)["stock_quantity"])

	code, _ = f.do(t, http.MethodGet, "/api/orders/products/2/inventory", "", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestProductStock_SnapshotThenStore(t *testing.T) {
	f := newFixture(t, func(h *OrdersHandler) {
		h.Snapshots = fixedSnapshots{1: {ProductID: 1, Stock: 40, Version: 9}}
	})
	f.orders.stock = orders.InventoryRecord{ProductID: 2, StockQuantity: 0, Version: 3}

	code, out := f.do(t, http.MethodGet, "/api/orders/products/1/stock", "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "cache", out["source"])
	assert.Equal(t, float64(40), out["stock"])

	code, out = f.do(t, http.MethodGet, "/api/orders/products/2/stock", "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "db", out["source"])
	assert.Equal(t, "SOLD OUT", out["stockDisplay"])
}

func TestAdmin_RequiresToken(t *testing.T) {
	f := newFixture(t, func(h *OrdersHandler) { h.AdminToken = "s3cret" })

	code, _ := f.do(t, http.MethodPost, "/api/orders/admin/reset-inventory", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	code, _ = f.do(t, http.MethodPost, "/api/orders/admin/reset-inventory", "", map[string]string{"X-Admin-Token": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Zero(t, f.orders.resets)

	code, out := f.do(t, http.MethodPost, "/api/orders/admin/reset-inventory", "", map[string]string{"X-Admin-Token": "s3cret"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(3), out["affectedRows"])
	assert.Equal(t, 1, f.orders.resets)
}

func TestAdmin_OpenWithoutToken(t *testing.T) {
	f := newFixture(t, nil)
	code, out := f.do(t, http.MethodGet, "/api/orders/admin/inventory", "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, out["inventory"], 1)
}

func TestAdmin_Products(t *testing.T) {
	f := newFixture(t, nil)

	code, out := f.do(t, http.MethodPost, "/api/orders/admin/products",
		`{"title":"Poster","price":"₩9,000","price_numeric":9000,"category":"goods"}`, nil)
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, float64(orders.BaselineStock), out["product"].(map[string]any)["stock_quantity"])
	require.Len(t, f.catalog.createdIn, 1)
	assert.True(t, f.catalog.createdIn[0].PriceNumeric.Equal(decimal.NewFromInt(9000)))

	code, out = f.do(t, http.MethodPut, "/api/orders/admin/products/9", `{"title":"Poster v2"}`, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Poster v2", out["product"].(map[string]any)["title"])

	f.catalog.deleteErr = &orders.ValidationError{Field: "productId", Reason: "product has orders"}
	code, _ = f.do(t, http.MethodDelete, "/api/orders/admin/products/9", "", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	f.catalog.deleteErr = nil
	code, _ = f.do(t, http.MethodDelete, "/api/orders/admin/products/9", "", nil)
	assert.Equal(t, http.StatusOK, code)
}

func TestAdmin_DeleteProductDropsStockSnapshot(t *testing.T) {
	snaps := fixedSnapshots{9: {ProductID: 9, Stock: 100, Version: 1}}
	f := newFixture(t, func(h *OrdersHandler) { h.Snapshots = snaps })

	code, out := f.do(t, http.MethodGet, "/api/orders/products/9/stock", "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "cache", out["source"])

	code, _ = f.do(t, http.MethodDelete, "/api/orders/admin/products/9", "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.NotContains(t, snaps, int64(9))

	f.orders.stockErr = orders.ProductNotFound(9)
	code, _ = f.do(t, http.MethodGet, "/api/orders/products/9/stock", "", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestAdmin_AddInventory(t *testing.T) {
	f := newFixture(t, nil)

	code, out := f.do(t, http.MethodPost, "/api/orders/admin/inventory/1/add", `{"quantity":25}`, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(125), out["inventory"].(map[string]any)["stock_quantity"])

	code, _ = f.do(t, http.MethodPost, "/api/orders/admin/inventory/1/add", `{"quantity":0}`, nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestAdmin_DeleteOrderEvictsCache(t *testing.T) {
	cache := &mapCache{m: map[int64]orders.OrderView{5: {Order: orders.Order{ID: 5}}}}
	f := newFixture(t, func(h *OrdersHandler) { h.Cache = cache })

	code, out := f.do(t, http.MethodDelete, "/api/orders/admin/orders/5", "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(100), out["order"].(map[string]any)["remainingStock"])
	assert.NotContains(t, cache.m, int64(5))

	code, _ = f.do(t, http.MethodDelete, "/api/orders/admin/orders/77", "", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestRouter_HealthAndNotFound(t *testing.T) {
	f := newFixture(t, nil)

	code, out := f.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", out["status"])

	code, out = f.do(t, http.MethodGet, "/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, false, out["success"])

	down := NewRouter(pinger{err: errors.New("conn refused")})
	rec := httptest.NewRecorder()
	down.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

package orders

import (
	"context"
	"sort"
	"sync"
	"time"
)

// memStore is an in-memory TxRunner, ProductReader, InventoryStore and OrderLedger.
// A transaction holds the store lock for its whole duration and restores a
// snapshot when fn fails.
type memStore struct {
	mu       sync.Mutex
	products map[int64]Product
	stock    map[int64]InventoryRecord
	orders   map[int64]Order
	nextID   int64
}

type memTxKey struct{}

type memSnapshot struct {
	stock  map[int64]InventoryRecord
	orders map[int64]Order
	nextID int64
}

func newMemStore(products ...Product) *memStore {
	m := &memStore{
		products: map[int64]Product{},
		stock:    map[int64]InventoryRecord{},
		orders:   map[int64]Order{},
	}
	for _, p := range products {
		m.products[p.ID] = p
	}
	return m
}

func (m *memStore) setStock(productID int64, qty int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stock[productID] = InventoryRecord{ProductID: productID, StockQuantity: qty, Version: 1}
}

func (m *memStore) stockOf(productID int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stock[productID].StockQuantity
}

func (m *memStore) orderCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.orders)
}

func (m *memStore) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	snap := memSnapshot{stock: map[int64]InventoryRecord{}, orders: map[int64]Order{}, nextID: m.nextID}
	for k, v := range m.stock {
		snap.stock[k] = v
	}
	for k, v := range m.orders {
		snap.orders[k] = v
	}
	if err := fn(context.WithValue(ctx, memTxKey{}, true)); err != nil {
		m.stock, m.orders, m.nextID = snap.stock, snap.orders, snap.nextID
		return err
	}
	return nil
}

func (m *memStore) lock(ctx context.Context) func() {
	if ctx.Value(memTxKey{}) != nil {
		return func() {}
	}
	m.mu.Lock()
	return m.mu.Unlock
}

func (m *memStore) GetProduct(ctx context.Context, id int64) (Product, error) {
	defer m.lock(ctx)()
	p, ok := m.products[id]
	if !ok {
		return Product{}, ProductNotFound(id)
	}
	return p, nil
}

func (m *memStore) Stock(ctx context.Context, productID int64) (InventoryRecord, error) {
	defer m.lock(ctx)()
	rec, ok := m.stock[productID]
	if !ok {
		return InventoryRecord{ProductID: productID}, nil
	}
	return rec, nil
}

func (m *memStore) ConditionalDecrement(ctx context.Context, productID int64, amount int) (InventoryRecord, error) {
	defer m.lock(ctx)()
	rec := m.stock[productID]
	if rec.StockQuantity < amount {
		return InventoryRecord{}, &InsufficientStockError{ProductID: productID, Requested: amount, Available: rec.StockQuantity}
	}
	rec.StockQuantity -= amount
	rec.Version++
	m.stock[productID] = rec
	return rec, nil
}

func (m *memStore) Increment(ctx context.Context, productID int64, amount int) (InventoryRecord, error) {
	defer m.lock(ctx)()
	rec := m.stock[productID]
	if rec.StockQuantity > MaxQuantity-amount {
		return InventoryRecord{}, StockOverflow(productID, rec.StockQuantity, amount)
	}
	rec.ProductID = productID
	rec.StockQuantity += amount
	rec.Version++
	m.stock[productID] = rec
	return rec, nil
}

func (m *memStore) UpsertBaseline(ctx context.Context, productID int64, amount int) (InventoryRecord, error) {
	defer m.lock(ctx)()
	rec := m.stock[productID]
	rec.ProductID = productID
	rec.StockQuantity = amount
	rec.ReservedQuantity = 0
	rec.Version++
	m.stock[productID] = rec
	return rec, nil
}

func (m *memStore) ResetAll(ctx context.Context, baseline int) ([]InventoryRecord, error) {
	defer m.lock(ctx)()
	out := make([]InventoryRecord, 0, len(m.stock))
	for id, rec := range m.stock {
		rec.StockQuantity = baseline
		rec.ReservedQuantity = 0
		rec.Version++
		m.stock[id] = rec
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out, nil
}

func (m *memStore) List(ctx context.Context) ([]InventoryRecord, error) {
	defer m.lock(ctx)()
	out := make([]InventoryRecord, 0, len(m.products))
	for id, p := range m.products {
		rec := m.stock[id]
		rec.ProductID = id
		rec.ProductTitle = p.Title
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out, nil
}

func (m *memStore) Append(ctx context.Context, o Order) (Order, error) {
	defer m.lock(ctx)()
	m.nextID++
	o.ID = m.nextID
	m.orders[o.ID] = o
	return o, nil
}

func (m *memStore) Remove(ctx context.Context, orderID int64) (Order, error) {
	defer m.lock(ctx)()
	o, ok := m.orders[orderID]
	if !ok {
		return Order{}, OrderNotFound(orderID)
	}
	delete(m.orders, orderID)
	return o, nil
}

func (m *memStore) Get(ctx context.Context, orderID int64) (OrderView, error) {
	defer m.lock(ctx)()
	o, ok := m.orders[orderID]
	if !ok {
		return OrderView{}, OrderNotFound(orderID)
	}
	return m.view(o), nil
}

func (m *memStore) ListRecent(ctx context.Context, limit int) ([]OrderView, error) {
	defer m.lock(ctx)()
	out := m.sorted(func(Order) bool { return true })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) ListByCustomer(ctx context.Context, customerName string) ([]OrderView, error) {
	defer m.lock(ctx)()
	return m.sorted(func(o Order) bool { return o.CustomerName == customerName }), nil
}

func (m *memStore) sorted(keep func(Order) bool) []OrderView {
	out := []OrderView{}
	for _, o := range m.orders {
		if keep(o) {
			out = append(out, m.view(o))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

func (m *memStore) view(o Order) OrderView {
	p := m.products[o.ProductID]
	return OrderView{Order: o, ProductTitle: p.Title, ProductSubtitle: p.Subtitle, Price: p.Price}
}

// failingLedger fails every Append after the inventory decrement already ran.
type failingLedger struct {
	*memStore
	err error
}

func (f failingLedger) Append(context.Context, Order) (Order, error) { return Order{}, f.err }

// blockingTx never finishes before the context does.
type blockingTx struct{}

func (blockingTx) WithTx(ctx context.Context, _ func(context.Context) error) error {
	<-ctx.Done()
	return ctx.Err()
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []Envelope
	keys   []string
	err    error
}

func (r *recordingPublisher) PublishEvent(_ context.Context, key []byte, ev Envelope) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, ev)
	r.keys = append(r.keys, string(key))
	return nil
}

func (r *recordingPublisher) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.EventType)
	}
	return out
}

var testNow = time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)

package orders

import "context"

// TxRunner opens an atomic unit. The transaction travels in the context handed to fn,
// so every store call made with that context joins it.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type ProductReader interface {
	GetProduct(ctx context.Context, id int64) (Product, error)
}

// InventoryStore owns the stock rows. ConditionalDecrement must be a single
// guarded write: two callers whose combined request exceeds the stock can never
// both succeed.
type InventoryStore interface {
	Stock(ctx context.Context, productID int64) (InventoryRecord, error)
	ConditionalDecrement(ctx context.Context, productID int64, amount int) (InventoryRecord, error)
	Increment(ctx context.Context, productID int64, amount int) (InventoryRecord, error)
	UpsertBaseline(ctx context.Context, productID int64, amount int) (InventoryRecord, error)
	ResetAll(ctx context.Context, baseline int) ([]InventoryRecord, error)
	List(ctx context.Context) ([]InventoryRecord, error)
}

type OrderLedger interface {
	Append(ctx context.Context, o Order) (Order, error)
	Remove(ctx context.Context, orderID int64) (Order, error)
	Get(ctx context.Context, orderID int64) (OrderView, error)
	ListRecent(ctx context.Context, limit int) ([]OrderView, error)
	ListByCustomer(ctx context.Context, customerName string) ([]OrderView, error)
}

// EventPublisher receives domain events after their transaction committed.
type EventPublisher interface {
	PublishEvent(ctx context.Context, key []byte, ev Envelope) error
}

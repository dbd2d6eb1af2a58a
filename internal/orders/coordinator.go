package orders

import (
	"context"
	"log"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ariefcatur/order-inventory/internal/clock"
	"github.com/shopspring/decimal"
)

const (
	defaultTxTimeout   = 5 * time.Second
	maxCustomerNameLen = 100
	maxListLimit       = 500
)

// Coordinator runs order placement and cancellation as single atomic units
// against the inventory store and the order ledger.
type Coordinator struct {
	tx        TxRunner
	products  ProductReader
	inventory InventoryStore
	ledger    OrderLedger

	events    EventPublisher
	producer  string
	clock     clock.Clock
	logger    *log.Logger
	txTimeout time.Duration
}

type Option func(*Coordinator)

// WithEvents publishes committed changes; producer is stamped on every envelope.
func WithEvents(p EventPublisher, producer string) Option {
	return func(c *Coordinator) {
		c.events = p
		c.producer = producer
	}
}

func WithClock(clk clock.Clock) Option {
	return func(c *Coordinator) {
		if clk != nil {
			c.clock = clk
		}
	}
}

func WithLogger(l *log.Logger) Option {
	return func(c *Coordinator) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithTxTimeout bounds how long one atomic unit may take before it is rolled back.
func WithTxTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.txTimeout = d
		}
	}
}

func NewCoordinator(tx TxRunner, products ProductReader, inventory InventoryStore, ledger OrderLedger, opts ...Option) *Coordinator {
	c := &Coordinator{
		tx:        tx,
		products:  products,
		inventory: inventory,
		ledger:    ledger,
		clock:     clock.NewSystem(),
		logger:    log.Default(),
		txTimeout: defaultTxTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type CreateOrderInput struct {
	CustomerName string
	ProductID    int64
	Quantity     int
}

func (in CreateOrderInput) validate() error {
	name := strings.TrimSpace(in.CustomerName)
	if name == "" {
		return &ValidationError{Field: "customerName", Reason: "must not be empty"}
	}
	if utf8.RuneCountInString(name) > maxCustomerNameLen {
		return &ValidationError{Field: "customerName", Reason: "too long"}
	}
	if in.ProductID <= 0 {
		return &ValidationError{Field: "productId", Reason: "must be a positive id"}
	}
	if in.Quantity <= 0 {
		return &ValidationError{Field: "quantity", Reason: "must be greater than zero"}
	}
	if in.Quantity > MaxQuantity {
		return &ValidationError{Field: "quantity", Reason: "must be at most " + strconv.Itoa(MaxQuantity)}
	}
	return nil
}

// CreateOrder decrements stock and records the order in one transaction.
// Stock is never read and written in separate steps: the store's conditional
// decrement is the only check.
func (c *Coordinator) CreateOrder(ctx context.Context, in CreateOrderInput) (PlacedOrder, error) {
	if err := in.validate(); err != nil {
		return PlacedOrder{}, err
	}
	in.CustomerName = strings.TrimSpace(in.CustomerName)

	now := c.clock.Now()
	var (
		placed PlacedOrder
		level  InventoryRecord
	)
	err := c.inTx(ctx, "create order", func(txCtx context.Context) error {
		product, err := c.products.GetProduct(txCtx, in.ProductID)
		if err != nil {
			return err
		}

		rec, err := c.inventory.ConditionalDecrement(txCtx, in.ProductID, in.Quantity)
		if err != nil {
			return err
		}

		total := product.PriceNumeric.Mul(decimal.NewFromInt(int64(in.Quantity)))
		saved, err := c.ledger.Append(txCtx, Order{
			CustomerName: in.CustomerName,
			ProductID:    in.ProductID,
			Quantity:     in.Quantity,
			UnitPrice:    product.PriceNumeric,
			TotalPrice:   total,
			OrderDate:    now,
			Status:       StatusCreated,
		})
		if err != nil {
			return err
		}

		level = rec
		placed = PlacedOrder{
			ID:             saved.ID,
			CustomerName:   saved.CustomerName,
			ProductID:      saved.ProductID,
			ProductTitle:   product.Title,
			Quantity:       saved.Quantity,
			UnitPrice:      saved.UnitPrice,
			TotalPrice:     saved.TotalPrice,
			OrderDate:      saved.OrderDate,
			RemainingStock: rec.StockQuantity,
		}
		return nil
	})
	if err != nil {
		return PlacedOrder{}, err
	}

	c.publish(ctx, EventOrderPlaced, PartitionKey(in.ProductID), orderCorrelation(placed.ID), OrderPlacedPayload{
		OrderID:      placed.ID,
		CustomerName: placed.CustomerName,
		Quantity:     placed.Quantity,
		TotalPrice:   placed.TotalPrice.StringFixed(2),
		Level:        levelOf(level),
	})
	return placed, nil
}

// DeleteOrder removes the order and gives its quantity back to the product,
// the exact inverse of CreateOrder.
func (c *Coordinator) DeleteOrder(ctx context.Context, orderID int64) (DeletedOrder, error) {
	if orderID <= 0 {
		return DeletedOrder{}, &ValidationError{Field: "orderId", Reason: "must be a positive id"}
	}

	var (
		deleted DeletedOrder
		level   InventoryRecord
	)
	err := c.inTx(ctx, "delete order", func(txCtx context.Context) error {
		removed, err := c.ledger.Remove(txCtx, orderID)
		if err != nil {
			return err
		}
		if !CanTransition(removed.Status, StatusDeleted) {
			return &ValidationError{Field: "orderId", Reason: "order cannot be deleted in status " + string(removed.Status)}
		}

		rec, err := c.inventory.Increment(txCtx, removed.ProductID, removed.Quantity)
		if err != nil {
			return err
		}

		removed.Status = StatusDeleted
		level = rec
		deleted = DeletedOrder{Order: removed, RemainingStock: rec.StockQuantity}
		return nil
	})
	if err != nil {
		return DeletedOrder{}, err
	}

	c.publish(ctx, EventOrderDeleted, PartitionKey(deleted.ProductID), orderCorrelation(orderID), OrderDeletedPayload{
		OrderID:  orderID,
		Quantity: deleted.Quantity,
		Level:    levelOf(level),
	})
	return deleted, nil
}

// ResetAllInventory puts every row back to BaselineStock. It is an administrative
// override and is not ordered against orders in flight.
func (c *Coordinator) ResetAllInventory(ctx context.Context) (int, error) {
	var records []InventoryRecord
	err := c.inTx(ctx, "reset inventory", func(txCtx context.Context) error {
		var err error
		records, err = c.inventory.ResetAll(txCtx, BaselineStock)
		return err
	})
	if err != nil {
		return 0, err
	}

	levels := make([]StockLevel, 0, len(records))
	for _, r := range records {
		levels = append(levels, levelOf(r))
	}
	c.publish(ctx, EventInventoryReset, ResetKey(), "", InventoryResetPayload{Baseline: BaselineStock, Levels: levels})
	return len(records), nil
}

// AddInventory adds quantity to a product's stock, creating the row when missing.
func (c *Coordinator) AddInventory(ctx context.Context, productID int64, quantity int) (InventoryRecord, error) {
	if productID <= 0 {
		return InventoryRecord{}, &ValidationError{Field: "productId", Reason: "must be a positive id"}
	}
	if quantity < 1 {
		return InventoryRecord{}, &ValidationError{Field: "quantity", Reason: "must be at least 1"}
	}
	if quantity > MaxQuantity {
		return InventoryRecord{}, &ValidationError{Field: "quantity", Reason: "must be at most " + strconv.Itoa(MaxQuantity)}
	}

	var rec InventoryRecord
	err := c.inTx(ctx, "add inventory", func(txCtx context.Context) error {
		if _, err := c.products.GetProduct(txCtx, productID); err != nil {
			return err
		}
		var err error
		rec, err = c.inventory.Increment(txCtx, productID, quantity)
		return err
	})
	if err != nil {
		return InventoryRecord{}, err
	}

	c.publish(ctx, EventInventoryAdjusted, PartitionKey(productID), "", InventoryAdjustedPayload{
		Added: quantity,
		Level: levelOf(rec),
	})
	return rec, nil
}

func (c *Coordinator) GetOrder(ctx context.Context, orderID int64) (OrderView, error) {
	if orderID <= 0 {
		return OrderView{}, &ValidationError{Field: "orderId", Reason: "must be a positive id"}
	}
	return c.ledger.Get(ctx, orderID)
}

// ListRecentOrders returns the newest orders first. limit <= 0 means DefaultListLimit.
func (c *Coordinator) ListRecentOrders(ctx context.Context, limit int) ([]OrderView, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	return c.ledger.ListRecent(ctx, limit)
}

func (c *Coordinator) ListCustomerOrders(ctx context.Context, customerName string) ([]OrderView, error) {
	name := strings.TrimSpace(customerName)
	if name == "" {
		return nil, &ValidationError{Field: "customerName", Reason: "must not be empty"}
	}
	return c.ledger.ListByCustomer(ctx, name)
}

// Stock reads the committed stock of an existing product.
func (c *Coordinator) Stock(ctx context.Context, productID int64) (InventoryRecord, error) {
	if productID <= 0 {
		return InventoryRecord{}, &ValidationError{Field: "productId", Reason: "must be a positive id"}
	}
	if _, err := c.products.GetProduct(ctx, productID); err != nil {
		return InventoryRecord{}, err
	}
	return c.inventory.Stock(ctx, productID)
}

func (c *Coordinator) ListInventory(ctx context.Context) ([]InventoryRecord, error) {
	return c.inventory.List(ctx)
}

func (c *Coordinator) inTx(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, c.txTimeout)
	defer cancel()
	return asTxError(op, c.tx.WithTx(ctx, fn))
}

// publish runs after commit; a broker failure never undoes the committed change.
func (c *Coordinator) publish(ctx context.Context, eventType string, key []byte, correlationID string, payload any) {
	if c.events == nil {
		return
	}
	env, err := NewEnvelope(eventType, c.producer, correlationID, c.clock.Now(), payload)
	if err != nil {
		c.logger.Printf("event %s: %v", eventType, err)
		return
	}
	if err := c.events.PublishEvent(context.WithoutCancel(ctx), key, env); err != nil {
		c.logger.Printf("publish %s: %v", eventType, err)
	}
}

func orderCorrelation(id int64) string {
	return "order-" + strconv.FormatInt(id, 10)
}

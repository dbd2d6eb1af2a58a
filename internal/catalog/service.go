package catalog

import (
	"context"
	"log"
	"strings"

	"github.com/ariefcatur/order-inventory/internal/clock"
	"github.com/ariefcatur/order-inventory/internal/orders"
	"github.com/shopspring/decimal"
)

// Store persists products. Deleting a product also removes its inventory row.
type Store interface {
	ListProducts(ctx context.Context) ([]orders.ProductStock, error)
	GetProductStock(ctx context.Context, id int64) (orders.ProductStock, error)
	CreateProduct(ctx context.Context, p orders.Product) (orders.Product, error)
	UpdateProduct(ctx context.Context, p orders.Product) (orders.Product, error)
	DeleteProduct(ctx context.Context, id int64) error
	CountOrders(ctx context.Context, productID int64) (int, error)
}

// Seeder creates the inventory row of a new product.
type Seeder interface {
	UpsertBaseline(ctx context.Context, productID int64, amount int) (orders.InventoryRecord, error)
}

// Prices are stored as NUMERIC(12,2); anything finer or larger would be rounded or refused by the column.
const priceScale = 2

var maxPrice = decimal.New(1, 10)

type ProductInput struct {
	Title        string          `json:"title"`
	Subtitle     string          `json:"subtitle"`
	Price        string          `json:"price"`
	PriceNumeric decimal.Decimal `json:"price_numeric"`
	Image        string          `json:"image"`
	Category     string          `json:"category"`
	Type         string          `json:"type"`
	Badge        string          `json:"badge"`
}

func (in ProductInput) validate() error {
	if strings.TrimSpace(in.Title) == "" {
		return &orders.ValidationError{Field: "title", Reason: "required"}
	}
	if !in.PriceNumeric.IsPositive() {
		return &orders.ValidationError{Field: "price_numeric", Reason: "must be greater than zero"}
	}
	if !in.PriceNumeric.Equal(in.PriceNumeric.Truncate(priceScale)) {
		return &orders.ValidationError{Field: "price_numeric", Reason: "must have at most 2 decimal places"}
	}
	if in.PriceNumeric.GreaterThanOrEqual(maxPrice) {
		return &orders.ValidationError{Field: "price_numeric", Reason: "must be less than " + maxPrice.String()}
	}
	if strings.TrimSpace(in.Category) == "" {
		return &orders.ValidationError{Field: "category", Reason: "required"}
	}
	return nil
}

func (in ProductInput) product(id int64) orders.Product {
	return orders.Product{
		ID:           id,
		Title:        strings.TrimSpace(in.Title),
		Subtitle:     in.Subtitle,
		Price:        in.Price,
		PriceNumeric: in.PriceNumeric,
		Image:        in.Image,
		Category:     strings.TrimSpace(in.Category),
		Type:         in.Type,
		Badge:        in.Badge,
	}
}

type Service struct {
	tx     orders.TxRunner
	store  Store
	seeder Seeder
	logger *log.Logger

	events   orders.EventPublisher
	producer string
	clock    clock.Clock
}

type Option func(*Service)

// WithEvents announces deleted products so read models can drop them.
func WithEvents(p orders.EventPublisher, producer string) Option {
	return func(s *Service) {
		s.events = p
		s.producer = producer
	}
}

func WithClock(c clock.Clock) Option {
	return func(s *Service) {
		if c != nil {
			s.clock = c
		}
	}
}

func NewService(tx orders.TxRunner, store Store, seeder Seeder, logger *log.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = log.Default()
	}
	s := &Service{tx: tx, store: store, seeder: seeder, logger: logger, clock: clock.NewSystem()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// List returns every product with its stock, ordered by id.
func (s *Service) List(ctx context.Context) ([]orders.ProductStock, error) {
	items, err := s.store.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	for i := range items {
		items[i].StockDisplay = orders.StockDisplay(items[i].StockQuantity)
	}
	return items, nil
}

func (s *Service) Get(ctx context.Context, id int64) (orders.ProductStock, error) {
	if id <= 0 {
		return orders.ProductStock{}, &orders.ValidationError{Field: "productId", Reason: "must be a positive id"}
	}
	ps, err := s.store.GetProductStock(ctx, id)
	if err != nil {
		return orders.ProductStock{}, err
	}
	ps.StockDisplay = orders.StockDisplay(ps.StockQuantity)
	return ps, nil
}

// Create inserts the product and seeds its inventory at the baseline in one transaction.
func (s *Service) Create(ctx context.Context, in ProductInput) (orders.ProductStock, error) {
	if err := in.validate(); err != nil {
		return orders.ProductStock{}, err
	}

	var out orders.ProductStock
	err := s.tx.WithTx(ctx, func(txCtx context.Context) error {
		p, err := s.store.CreateProduct(txCtx, in.product(0))
		if err != nil {
			return err
		}
		rec, err := s.seeder.UpsertBaseline(txCtx, p.ID, orders.BaselineStock)
		if err != nil {
			return err
		}
		out = orders.ProductStock{
			Product:       p,
			StockQuantity: rec.StockQuantity,
			StockDisplay:  orders.StockDisplay(rec.StockQuantity),
		}
		return nil
	})
	if err != nil {
		return orders.ProductStock{}, err
	}
	s.logger.Printf("catalog: created product %d %q", out.ID, out.Title)
	return out, nil
}

func (s *Service) Update(ctx context.Context, id int64, in ProductInput) (orders.Product, error) {
	if id <= 0 {
		return orders.Product{}, &orders.ValidationError{Field: "productId", Reason: "must be a positive id"}
	}
	if err := in.validate(); err != nil {
		return orders.Product{}, err
	}
	return s.store.UpdateProduct(ctx, in.product(id))
}

// Delete refuses products that orders still reference.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return &orders.ValidationError{Field: "productId", Reason: "must be a positive id"}
	}
	err := s.tx.WithTx(ctx, func(txCtx context.Context) error {
		n, err := s.store.CountOrders(txCtx, id)
		if err != nil {
			return err
		}
		if n > 0 {
			return &orders.ValidationError{Field: "productId", Reason: "product has orders and cannot be deleted"}
		}
		return s.store.DeleteProduct(txCtx, id)
	})
	if err != nil {
		return err
	}
	s.logger.Printf("catalog: deleted product %d", id)
	s.publishDeleted(ctx, id)
	return nil
}

func (s *Service) publishDeleted(ctx context.Context, id int64) {
	if s.events == nil {
		return
	}
	env, err := orders.NewEnvelope(orders.EventProductDeleted, s.producer, "", s.clock.Now(), orders.ProductDeletedPayload{ProductID: id})
	if err != nil {
		s.logger.Printf("catalog: event for product %d: %v", id, err)
		return
	}
	if err := s.events.PublishEvent(context.WithoutCancel(ctx), orders.PartitionKey(id), env); err != nil {
		s.logger.Printf("catalog: publish %s for product %d: %v", orders.EventProductDeleted, id, err)
	}
}

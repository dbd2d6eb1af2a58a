package sqlite

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ariefcatur/order-inventory/internal/orders"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type OrderRepository struct {
	db *DB
}

func NewOrderRepository(db *DB) *OrderRepository {
	return &OrderRepository{db: db}
}

func (r *OrderRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.db.WithTx(ctx, fn)
}

func (r *OrderRepository) Append(ctx context.Context, o orders.Order) (orders.Order, error) {
	row := orderRow{
		CustomerName: o.CustomerName,
		ProductID:    o.ProductID,
		Quantity:     o.Quantity,
		UnitPrice:    o.UnitPrice.String(),
		TotalPrice:   o.TotalPrice.String(),
		OrderDate:    o.OrderDate,
		Status:       string(o.Status),
	}
	if err := r.db.conn(ctx).Create(&row).Error; err != nil {
		return orders.Order{}, fmt.Errorf("append order: %w", err)
	}
	o.ID = row.ID
	return o, nil
}

func (r *OrderRepository) Remove(ctx context.Context, orderID int64) (orders.Order, error) {
	var out orders.Order
	err := r.db.WithTx(ctx, func(ctx context.Context) error {
		var row orderRow
		if err := r.db.conn(ctx).First(&row, orderID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return orders.OrderNotFound(orderID)
			}
			return fmt.Errorf("find order: %w", err)
		}
		res := r.db.conn(ctx).Delete(&orderRow{}, orderID)
		if res.Error != nil {
			return fmt.Errorf("remove order: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return orders.OrderNotFound(orderID)
		}
		o, err := row.toDomain()
		if err != nil {
			return err
		}
		out = o
		return nil
	})
	return out, err
}

func (row orderRow) toDomain() (orders.Order, error) {
	unit, err := decimal.NewFromString(row.UnitPrice)
	if err != nil {
		return orders.Order{}, fmt.Errorf("parse unit price of order %d: %w", row.ID, err)
	}
	total, err := decimal.NewFromString(row.TotalPrice)
	if err != nil {
		return orders.Order{}, fmt.Errorf("parse total price of order %d: %w", row.ID, err)
	}
	return orders.Order{
		ID:           row.ID,
		CustomerName: row.CustomerName,
		ProductID:    row.ProductID,
		Quantity:     row.Quantity,
		UnitPrice:    unit,
		TotalPrice:   total,
		OrderDate:    row.OrderDate,
		Status:       orders.Status(row.Status),
	}, nil
}

type orderViewRow struct {
	ID              int64
	CustomerName    string
	ProductID       int64
	Quantity        int
	UnitPrice       string
	TotalPrice      string
	OrderDate       time.Time
	Status          string
	ProductTitle    string
	ProductSubtitle string
	Price           string
}

func (r *OrderRepository) views(ctx context.Context) *gorm.DB {
	return r.db.conn(ctx).
		Table("orders AS o").
		Select(`o.id, o.customer_name, o.product_id, o.quantity, o.unit_price, o.total_price,
			o.order_date, o.status, p.title AS product_title, p.subtitle AS product_subtitle, p.price`).
		Joins("JOIN products AS p ON p.id = o.product_id")
}

func toViews(rows []orderViewRow) ([]orders.OrderView, error) {
	out := make([]orders.OrderView, 0, len(rows))
	for _, v := range rows {
		o, err := orderRow{
			ID:           v.ID,
			CustomerName: v.CustomerName,
			ProductID:    v.ProductID,
			Quantity:     v.Quantity,
			UnitPrice:    v.UnitPrice,
			TotalPrice:   v.TotalPrice,
			OrderDate:    v.OrderDate,
			Status:       v.Status,
		}.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, orders.OrderView{
			Order:           o,
			ProductTitle:    v.ProductTitle,
			ProductSubtitle: v.ProductSubtitle,
			Price:           v.Price,
		})
	}
	return out, nil
}

func (r *OrderRepository) Get(ctx context.Context, orderID int64) (orders.OrderView, error) {
	var rows []orderViewRow
	if err := r.views(ctx).Where("o.id = ?", orderID).Limit(1).Scan(&rows).Error; err != nil {
		return orders.OrderView{}, fmt.Errorf("get order: %w", err)
	}
	if len(rows) == 0 {
		return orders.OrderView{}, orders.OrderNotFound(orderID)
	}
	out, err := toViews(rows)
	if err != nil {
		return orders.OrderView{}, err
	}
	return out[0], nil
}

func (r *OrderRepository) ListRecent(ctx context.Context, limit int) ([]orders.OrderView, error) {
	var rows []orderViewRow
	if err := r.views(ctx).Order("o.order_date DESC, o.id DESC").Limit(limit).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return toViews(rows)
}

func (r *OrderRepository) ListByCustomer(ctx context.Context, customerName string) ([]orders.OrderView, error) {
	var rows []orderViewRow
	err := r.views(ctx).
		Where("o.customer_name = ?", customerName).
		Order("o.order_date DESC, o.id DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list customer orders: %w", err)
	}
	return toViews(rows)
}

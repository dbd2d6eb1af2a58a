package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/ariefcatur/order-inventory/internal/orders"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type OrderRepository struct {
	conn
}

func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{conn{pool: pool}}
}

func (r *OrderRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.pool, fn)
}

func (r *OrderRepository) Append(ctx context.Context, o orders.Order) (orders.Order, error) {
	const stmt = `
INSERT INTO orders (customer_name, product_id, quantity, unit_price, total_price, order_date, status)
VALUES ($1, $2, $3, $4::numeric, $5::numeric, $6, $7)
RETURNING id`

	err := r.queryRow(ctx, stmt, o.CustomerName, o.ProductID, o.Quantity,
		o.UnitPrice.String(), o.TotalPrice.String(), o.OrderDate, string(o.Status)).Scan(&o.ID)
	if err != nil {
		if isForeignKeyViolation(err) {
			return orders.Order{}, orders.ProductNotFound(o.ProductID)
		}
		return orders.Order{}, fmt.Errorf("append order: %w", err)
	}
	return o, nil
}

// Remove deletes the row and hands back what it held, so a concurrent second
// delete of the same order finds nothing.
func (r *OrderRepository) Remove(ctx context.Context, orderID int64) (orders.Order, error) {
	const stmt = `
DELETE FROM orders
WHERE id = $1
RETURNING id, customer_name, product_id, quantity, unit_price::text, total_price::text, order_date, status`

	var o orders.Order
	var unit, total, status string
	err := r.queryRow(ctx, stmt, orderID).
		Scan(&o.ID, &o.CustomerName, &o.ProductID, &o.Quantity, &unit, &total, &o.OrderDate, &status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return orders.Order{}, orders.OrderNotFound(orderID)
		}
		return orders.Order{}, fmt.Errorf("remove order: %w", err)
	}
	if err := setPrices(&o, unit, total); err != nil {
		return orders.Order{}, err
	}
	o.Status = orders.Status(status)
	return o, nil
}

const orderViewQuery = `
SELECT o.id, o.customer_name, o.product_id, o.quantity, o.unit_price::text, o.total_price::text,
       o.order_date, o.status, p.title, p.subtitle, p.price
FROM orders o
JOIN products p ON p.id = o.product_id`

func scanOrderView(row pgx.Row) (orders.OrderView, error) {
	var v orders.OrderView
	var unit, total, status string
	err := row.Scan(&v.ID, &v.CustomerName, &v.ProductID, &v.Quantity, &unit, &total,
		&v.OrderDate, &status, &v.ProductTitle, &v.ProductSubtitle, &v.Price)
	if err != nil {
		return orders.OrderView{}, err
	}
	if err := setPrices(&v.Order, unit, total); err != nil {
		return orders.OrderView{}, err
	}
	v.Status = orders.Status(status)
	return v, nil
}

func (r *OrderRepository) Get(ctx context.Context, orderID int64) (orders.OrderView, error) {
	v, err := scanOrderView(r.queryRow(ctx, orderViewQuery+` WHERE o.id = $1`, orderID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return orders.OrderView{}, orders.OrderNotFound(orderID)
		}
		return orders.OrderView{}, fmt.Errorf("get order: %w", err)
	}
	return v, nil
}

func (r *OrderRepository) ListRecent(ctx context.Context, limit int) ([]orders.OrderView, error) {
	return r.list(ctx, orderViewQuery+` ORDER BY o.order_date DESC, o.id DESC LIMIT $1`, limit)
}

func (r *OrderRepository) ListByCustomer(ctx context.Context, customerName string) ([]orders.OrderView, error) {
	return r.list(ctx, orderViewQuery+` WHERE o.customer_name = $1 ORDER BY o.order_date DESC, o.id DESC`, customerName)
}

func (r *OrderRepository) list(ctx context.Context, query string, args ...any) ([]orders.OrderView, error) {
	rows, err := r.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	out := []orders.OrderView{}
	for rows.Next() {
		v, err := scanOrderView(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func setPrices(o *orders.Order, unit, total string) error {
	u, err := decimal.NewFromString(unit)
	if err != nil {
		return fmt.Errorf("parse unit price of order %d: %w", o.ID, err)
	}
	t, err := decimal.NewFromString(total)
	if err != nil {
		return fmt.Errorf("parse total price of order %d: %w", o.ID, err)
	}
	o.UnitPrice, o.TotalPrice = u, t
	return nil
}

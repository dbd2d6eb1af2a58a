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

type ProductRepository struct {
	conn
}

func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{conn{pool: pool}}
}

func (r *ProductRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.pool, fn)
}

const productColumns = `p.id, p.title, p.subtitle, p.price, p.price_numeric::text, p.image,
       p.category, p.type, p.badge, p.created_at, p.updated_at`

func scanProduct(row pgx.Row, extra ...any) (orders.Product, error) {
	var p orders.Product
	var price string
	dest := append([]any{
		&p.ID, &p.Title, &p.Subtitle, &p.Price, &price, &p.Image,
		&p.Category, &p.Type, &p.Badge, &p.CreatedAt, &p.UpdatedAt,
	}, extra...)
	if err := row.Scan(dest...); err != nil {
		return orders.Product{}, err
	}
	d, err := decimal.NewFromString(price)
	if err != nil {
		return orders.Product{}, fmt.Errorf("parse price of product %d: %w", p.ID, err)
	}
	p.PriceNumeric = d
	return p, nil
}

func (r *ProductRepository) GetProduct(ctx context.Context, id int64) (orders.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products p WHERE p.id = $1`

	p, err := scanProduct(r.queryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return orders.Product{}, orders.ProductNotFound(id)
		}
		return orders.Product{}, fmt.Errorf("get product: %w", err)
	}
	return p, nil
}

func (r *ProductRepository) ListProducts(ctx context.Context) ([]orders.ProductStock, error) {
	query := `SELECT ` + productColumns + `, COALESCE(i.stock_quantity, 0)
FROM products p
LEFT JOIN inventory i ON i.product_id = p.id
ORDER BY p.id`

	rows, err := r.query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	out := []orders.ProductStock{}
	for rows.Next() {
		var ps orders.ProductStock
		p, err := scanProduct(rows, &ps.StockQuantity)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		ps.Product = p
		out = append(out, ps)
	}
	return out, rows.Err()
}

func (r *ProductRepository) GetProductStock(ctx context.Context, id int64) (orders.ProductStock, error) {
	query := `SELECT ` + productColumns + `, COALESCE(i.stock_quantity, 0)
FROM products p
LEFT JOIN inventory i ON i.product_id = p.id
WHERE p.id = $1`

	var ps orders.ProductStock
	p, err := scanProduct(r.queryRow(ctx, query, id), &ps.StockQuantity)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return orders.ProductStock{}, orders.ProductNotFound(id)
		}
		return orders.ProductStock{}, fmt.Errorf("get product stock: %w", err)
	}
	ps.Product = p
	return ps, nil
}

func (r *ProductRepository) CreateProduct(ctx context.Context, p orders.Product) (orders.Product, error) {
	const stmt = `
INSERT INTO products (title, subtitle, price, price_numeric, image, category, type, badge)
VALUES ($1, $2, $3, $4::numeric, $5, $6, $7, $8)
RETURNING id, created_at, updated_at`

	err := r.queryRow(ctx, stmt, p.Title, p.Subtitle, p.Price, p.PriceNumeric.String(),
		p.Image, p.Category, p.Type, p.Badge).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if isCheckViolation(err) {
			return orders.Product{}, &orders.ValidationError{Field: "price_numeric", Reason: "must be greater than zero"}
		}
		return orders.Product{}, fmt.Errorf("create product: %w", err)
	}
	return p, nil
}

func (r *ProductRepository) UpdateProduct(ctx context.Context, p orders.Product) (orders.Product, error) {
	const stmt = `
UPDATE products
SET title = $2, subtitle = $3, price = $4, price_numeric = $5::numeric, image = $6,
    category = $7, type = $8, badge = $9, updated_at = NOW()
WHERE id = $1
RETURNING created_at, updated_at`

	err := r.queryRow(ctx, stmt, p.ID, p.Title, p.Subtitle, p.Price, p.PriceNumeric.String(),
		p.Image, p.Category, p.Type, p.Badge).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return orders.Product{}, orders.ProductNotFound(p.ID)
		}
		return orders.Product{}, fmt.Errorf("update product: %w", err)
	}
	return p, nil
}

// DeleteProduct removes the product; its inventory row goes with it (ON DELETE CASCADE).
func (r *ProductRepository) DeleteProduct(ctx context.Context, id int64) error {
	tag, err := r.exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return &orders.ValidationError{Field: "productId", Reason: "product has orders and cannot be deleted"}
		}
		return fmt.Errorf("delete product: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return orders.ProductNotFound(id)
	}
	return nil
}

func (r *ProductRepository) CountOrders(ctx context.Context, productID int64) (int, error) {
	var n int
	if err := r.queryRow(ctx, `SELECT COUNT(*) FROM orders WHERE product_id = $1`, productID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count orders: %w", err)
	}
	return n, nil
}

package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/ariefcatur/order-inventory/internal/orders"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type InventoryRepository struct {
	conn
}

func NewInventoryRepository(pool *pgxpool.Pool) *InventoryRepository {
	return &InventoryRepository{conn{pool: pool}}
}

func (r *InventoryRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.pool, fn)
}

const inventoryReturning = `RETURNING product_id, stock_quantity, reserved_quantity, version, updated_at`

func scanInventory(row pgx.Row) (orders.InventoryRecord, error) {
	var rec orders.InventoryRecord
	err := row.Scan(&rec.ProductID, &rec.StockQuantity, &rec.ReservedQuantity, &rec.Version, &rec.UpdatedAt)
	return rec, err
}

// Stock reports zero for a product without an inventory row.
func (r *InventoryRepository) Stock(ctx context.Context, productID int64) (orders.InventoryRecord, error) {
	const query = `
SELECT product_id, stock_quantity, reserved_quantity, version, updated_at
FROM inventory
WHERE product_id = $1`

	rec, err := scanInventory(r.queryRow(ctx, query, productID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return orders.InventoryRecord{ProductID: productID}, nil
		}
		return orders.InventoryRecord{}, fmt.Errorf("get stock: %w", err)
	}
	return rec, nil
}

// ConditionalDecrement checks and writes in one statement; the row lock it takes
// serialises concurrent decrements of the same product.
func (r *InventoryRepository) ConditionalDecrement(ctx context.Context, productID int64, amount int) (orders.InventoryRecord, error) {
	const stmt = `
UPDATE inventory
SET stock_quantity = stock_quantity - $2, version = version + 1, updated_at = NOW()
WHERE product_id = $1 AND stock_quantity >= $2
` + inventoryReturning

	rec, err := scanInventory(r.queryRow(ctx, stmt, productID, amount))
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return orders.InventoryRecord{}, fmt.Errorf("decrement stock: %w", err)
	}

	current, err := r.Stock(ctx, productID)
	if err != nil {
		return orders.InventoryRecord{}, err
	}
	return orders.InventoryRecord{}, &orders.InsufficientStockError{
		ProductID: productID,
		Requested: amount,
		Available: current.StockQuantity,
	}
}

// Increment adds amount, creating the row when the product has none. The
// conflict branch only fires while the sum still fits the integer column.
func (r *InventoryRepository) Increment(ctx context.Context, productID int64, amount int) (orders.InventoryRecord, error) {
	const stmt = `
INSERT INTO inventory (product_id, stock_quantity)
VALUES ($1, $2)
ON CONFLICT (product_id) DO UPDATE
SET stock_quantity = inventory.stock_quantity + EXCLUDED.stock_quantity,
    version = inventory.version + 1,
    updated_at = NOW()
WHERE inventory.stock_quantity <= $3::integer - EXCLUDED.stock_quantity
` + inventoryReturning

	rec, err := scanInventory(r.queryRow(ctx, stmt, productID, amount, orders.MaxQuantity))
	switch {
	case err == nil:
		return rec, nil
	case isForeignKeyViolation(err):
		return orders.InventoryRecord{}, orders.ProductNotFound(productID)
	case errors.Is(err, pgx.ErrNoRows), isNumericOutOfRange(err):
		current, serr := r.Stock(ctx, productID)
		if serr != nil {
			return orders.InventoryRecord{}, serr
		}
		return orders.InventoryRecord{}, orders.StockOverflow(productID, current.StockQuantity, amount)
	default:
		return orders.InventoryRecord{}, fmt.Errorf("increment stock: %w", err)
	}
}

func (r *InventoryRepository) UpsertBaseline(ctx context.Context, productID int64, amount int) (orders.InventoryRecord, error) {
	const stmt = `
INSERT INTO inventory (product_id, stock_quantity, reserved_quantity)
VALUES ($1, $2, 0)
ON CONFLICT (product_id) DO UPDATE
SET stock_quantity = EXCLUDED.stock_quantity,
    reserved_quantity = 0,
    version = inventory.version + 1,
    updated_at = NOW()
` + inventoryReturning

	rec, err := scanInventory(r.queryRow(ctx, stmt, productID, amount))
	if err != nil {
		if isForeignKeyViolation(err) {
			return orders.InventoryRecord{}, orders.ProductNotFound(productID)
		}
		return orders.InventoryRecord{}, fmt.Errorf("upsert baseline: %w", err)
	}
	return rec, nil
}

func (r *InventoryRepository) ResetAll(ctx context.Context, baseline int) ([]orders.InventoryRecord, error) {
	const stmt = `
UPDATE inventory
SET stock_quantity = $1, reserved_quantity = 0, version = version + 1, updated_at = NOW()
` + inventoryReturning

	rows, err := r.query(ctx, stmt, baseline)
	if err != nil {
		return nil, fmt.Errorf("reset inventory: %w", err)
	}
	defer rows.Close()

	out := []orders.InventoryRecord{}
	for rows.Next() {
		rec, err := scanInventory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan inventory: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// List returns every product with its stock; products without a row show zero.
func (r *InventoryRepository) List(ctx context.Context) ([]orders.InventoryRecord, error) {
	const query = `
SELECT p.id, p.title, COALESCE(i.stock_quantity, 0), COALESCE(i.reserved_quantity, 0),
       COALESCE(i.version, 0), COALESCE(i.updated_at, p.updated_at)
FROM products p
LEFT JOIN inventory i ON i.product_id = p.id
ORDER BY p.id`

	rows, err := r.query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list inventory: %w", err)
	}
	defer rows.Close()

	out := []orders.InventoryRecord{}
	for rows.Next() {
		var rec orders.InventoryRecord
		if err := rows.Scan(&rec.ProductID, &rec.ProductTitle, &rec.StockQuantity,
			&rec.ReservedQuantity, &rec.Version, &rec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan inventory: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

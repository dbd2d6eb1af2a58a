package sqlite

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ariefcatur/order-inventory/internal/orders"
	"gorm.io/gorm"
)

type InventoryRepository struct {
	db *DB
}

func NewInventoryRepository(db *DB) *InventoryRepository {
	return &InventoryRepository{db: db}
}

func (r *InventoryRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.db.WithTx(ctx, fn)
}

func (row inventoryRow) toDomain() orders.InventoryRecord {
	return orders.InventoryRecord{
		ProductID:        row.ProductID,
		StockQuantity:    row.StockQuantity,
		ReservedQuantity: row.ReservedQuantity,
		Version:          row.Version,
		UpdatedAt:        row.UpdatedAt,
	}
}

func (r *InventoryRepository) Stock(ctx context.Context, productID int64) (orders.InventoryRecord, error) {
	var row inventoryRow
	err := r.db.conn(ctx).Where("product_id = ?", productID).Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return orders.InventoryRecord{ProductID: productID}, nil
		}
		return orders.InventoryRecord{}, fmt.Errorf("get stock: %w", err)
	}
	return row.toDomain(), nil
}

// ConditionalDecrement only touches the row when it still holds enough stock.
func (r *InventoryRepository) ConditionalDecrement(ctx context.Context, productID int64, amount int) (orders.InventoryRecord, error) {
	var out orders.InventoryRecord
	err := r.db.WithTx(ctx, func(ctx context.Context) error {
		res := r.db.conn(ctx).Model(&inventoryRow{}).
			Where("product_id = ? AND stock_quantity >= ?", productID, amount).
			Updates(map[string]any{
				"stock_quantity": gorm.Expr("stock_quantity - ?", amount),
				"version":        gorm.Expr("version + 1"),
				"updated_at":     time.Now().UTC(),
			})
		if res.Error != nil {
			return fmt.Errorf("decrement stock: %w", res.Error)
		}

		current, err := r.Stock(ctx, productID)
		if err != nil {
			return err
		}
		if res.RowsAffected == 0 {
			return &orders.InsufficientStockError{ProductID: productID, Requested: amount, Available: current.StockQuantity}
		}
		out = current
		return nil
	})
	return out, err
}

// Increment adds amount, creating the row when the product has none. SQLite
// integers are 64-bit, so the 32-bit stock bound is checked here; the single
// connection keeps the read and the write together.
func (r *InventoryRepository) Increment(ctx context.Context, productID int64, amount int) (orders.InventoryRecord, error) {
	var out orders.InventoryRecord
	err := r.db.WithTx(ctx, func(ctx context.Context) error {
		current, err := r.Stock(ctx, productID)
		if err != nil {
			return err
		}
		if current.StockQuantity > orders.MaxQuantity-amount {
			return orders.StockOverflow(productID, current.StockQuantity, amount)
		}
		out, err = r.upsert(ctx, productID, amount, map[string]any{
			"stock_quantity": gorm.Expr("stock_quantity + ?", amount),
			"version":        gorm.Expr("version + 1"),
			"updated_at":     time.Now().UTC(),
		})
		return err
	})
	return out, err
}

func (r *InventoryRepository) UpsertBaseline(ctx context.Context, productID int64, amount int) (orders.InventoryRecord, error) {
	return r.upsert(ctx, productID, amount, map[string]any{
		"stock_quantity":    amount,
		"reserved_quantity": 0,
		"version":           gorm.Expr("version + 1"),
		"updated_at":        time.Now().UTC(),
	})
}

func (r *InventoryRepository) upsert(ctx context.Context, productID int64, initial int, update map[string]any) (orders.InventoryRecord, error) {
	var out orders.InventoryRecord
	err := r.db.WithTx(ctx, func(ctx context.Context) error {
		res := r.db.conn(ctx).Model(&inventoryRow{}).Where("product_id = ?", productID).Updates(update)
		if res.Error != nil {
			return fmt.Errorf("update inventory: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			var n int64
			if err := r.db.conn(ctx).Model(&productRow{}).Where("id = ?", productID).Count(&n).Error; err != nil {
				return fmt.Errorf("check product: %w", err)
			}
			if n == 0 {
				return orders.ProductNotFound(productID)
			}
			row := inventoryRow{ProductID: productID, StockQuantity: initial, Version: 1}
			if err := r.db.conn(ctx).Create(&row).Error; err != nil {
				return fmt.Errorf("create inventory: %w", err)
			}
		}
		var err error
		out, err = r.Stock(ctx, productID)
		return err
	})
	return out, err
}

func (r *InventoryRepository) ResetAll(ctx context.Context, baseline int) ([]orders.InventoryRecord, error) {
	var out []orders.InventoryRecord
	err := r.db.WithTx(ctx, func(ctx context.Context) error {
		err := r.db.conn(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).
			Model(&inventoryRow{}).
			Updates(map[string]any{
				"stock_quantity":    baseline,
				"reserved_quantity": 0,
				"version":           gorm.Expr("version + 1"),
				"updated_at":        time.Now().UTC(),
			}).Error
		if err != nil {
			return fmt.Errorf("reset inventory: %w", err)
		}

		var rows []inventoryRow
		if err := r.db.conn(ctx).Order("product_id").Find(&rows).Error; err != nil {
			return fmt.Errorf("read inventory: %w", err)
		}
		out = make([]orders.InventoryRecord, 0, len(rows))
		for _, row := range rows {
			out = append(out, row.toDomain())
		}
		return nil
	})
	return out, err
}

type inventoryListRow struct {
	ProductID        int64
	ProductTitle     string
	StockQuantity    int
	ReservedQuantity int
	Version          int64
	UpdatedAt        *time.Time
}

// List returns every product with its stock; products without a row show zero.
func (r *InventoryRepository) List(ctx context.Context) ([]orders.InventoryRecord, error) {
	var rows []inventoryListRow
	err := r.db.conn(ctx).
		Table("products AS p").
		Select(`p.id AS product_id, p.title AS product_title,
			COALESCE(i.stock_quantity, 0) AS stock_quantity,
			COALESCE(i.reserved_quantity, 0) AS reserved_quantity,
			COALESCE(i.version, 0) AS version, i.updated_at`).
		Joins("LEFT JOIN inventory AS i ON i.product_id = p.id").
		Order("p.id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list inventory: %w", err)
	}
	out := make([]orders.InventoryRecord, 0, len(rows))
	for _, row := range rows {
		rec := orders.InventoryRecord{
			ProductID:        row.ProductID,
			ProductTitle:     row.ProductTitle,
			StockQuantity:    row.StockQuantity,
			ReservedQuantity: row.ReservedQuantity,
			Version:          row.Version,
		}
		if row.UpdatedAt != nil {
			rec.UpdatedAt = *row.UpdatedAt
		}
		out = append(out, rec)
	}
	return out, nil
}

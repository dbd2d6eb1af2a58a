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

type ProductRepository struct {
	db *DB
}

func NewProductRepository(db *DB) *ProductRepository {
	return &ProductRepository{db: db}
}

func (r *ProductRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.db.WithTx(ctx, fn)
}

func (row productRow) toDomain() (orders.Product, error) {
	price, err := decimal.NewFromString(row.PriceNumeric)
	if err != nil {
		return orders.Product{}, fmt.Errorf("parse price of product %d: %w", row.ID, err)
	}
	return orders.Product{
		ID:           row.ID,
		Title:        row.Title,
		Subtitle:     row.Subtitle,
		Price:        row.Price,
		PriceNumeric: price,
		Image:        row.Image,
		Category:     row.Category,
		Type:         row.Type,
		Badge:        row.Badge,
		CreatedAt:    row.CreatedAt,
		UpdatedAt:    row.UpdatedAt,
	}, nil
}

func fromProduct(p orders.Product) productRow {
	return productRow{
		ID:           p.ID,
		Title:        p.Title,
		Subtitle:     p.Subtitle,
		Price:        p.Price,
		PriceNumeric: p.PriceNumeric.String(),
		Image:        p.Image,
		Category:     p.Category,
		Type:         p.Type,
		Badge:        p.Badge,
	}
}

func (r *ProductRepository) GetProduct(ctx context.Context, id int64) (orders.Product, error) {
	var row productRow
	if err := r.db.conn(ctx).First(&row, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return orders.Product{}, orders.ProductNotFound(id)
		}
		return orders.Product{}, fmt.Errorf("get product: %w", err)
	}
	return row.toDomain()
}

type productStockRow struct {
	productRow
	StockQuantity int
}

func (r *ProductRepository) stockQuery(ctx context.Context) *gorm.DB {
	return r.db.conn(ctx).
		Table("products AS p").
		Select("p.*, COALESCE(i.stock_quantity, 0) AS stock_quantity").
		Joins("LEFT JOIN inventory AS i ON i.product_id = p.id")
}

func (r *ProductRepository) ListProducts(ctx context.Context) ([]orders.ProductStock, error) {
	var rows []productStockRow
	if err := r.stockQuery(ctx).Order("p.id").Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	out := make([]orders.ProductStock, 0, len(rows))
	for _, row := range rows {
		p, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, orders.ProductStock{Product: p, StockQuantity: row.StockQuantity})
	}
	return out, nil
}

func (r *ProductRepository) GetProductStock(ctx context.Context, id int64) (orders.ProductStock, error) {
	var rows []productStockRow
	if err := r.stockQuery(ctx).Where("p.id = ?", id).Limit(1).Scan(&rows).Error; err != nil {
		return orders.ProductStock{}, fmt.Errorf("get product stock: %w", err)
	}
	if len(rows) == 0 {
		return orders.ProductStock{}, orders.ProductNotFound(id)
	}
	p, err := rows[0].toDomain()
	if err != nil {
		return orders.ProductStock{}, err
	}
	return orders.ProductStock{Product: p, StockQuantity: rows[0].StockQuantity}, nil
}

func (r *ProductRepository) CreateProduct(ctx context.Context, p orders.Product) (orders.Product, error) {
	row := fromProduct(p)
	row.ID = 0
	if err := r.db.conn(ctx).Create(&row).Error; err != nil {
		return orders.Product{}, fmt.Errorf("create product: %w", err)
	}
	return row.toDomain()
}

func (r *ProductRepository) UpdateProduct(ctx context.Context, p orders.Product) (orders.Product, error) {
	var out orders.Product
	err := r.db.WithTx(ctx, func(ctx context.Context) error {
		row := fromProduct(p)
		res := r.db.conn(ctx).Model(&productRow{ID: p.ID}).Updates(map[string]any{
			"title":         row.Title,
			"subtitle":      row.Subtitle,
			"price":         row.Price,
			"price_numeric": row.PriceNumeric,
			"image":         row.Image,
			"category":      row.Category,
			"type":          row.Type,
			"badge":         row.Badge,
			"updated_at":    time.Now().UTC(),
		})
		if res.Error != nil {
			return fmt.Errorf("update product: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return orders.ProductNotFound(p.ID)
		}
		var err error
		out, err = r.GetProduct(ctx, p.ID)
		return err
	})
	return out, err
}

// DeleteProduct removes the product together with its inventory row.
func (r *ProductRepository) DeleteProduct(ctx context.Context, id int64) error {
	return r.db.WithTx(ctx, func(ctx context.Context) error {
		if err := r.db.conn(ctx).Where("product_id = ?", id).Delete(&inventoryRow{}).Error; err != nil {
			return fmt.Errorf("delete inventory: %w", err)
		}
		res := r.db.conn(ctx).Delete(&productRow{}, id)
		if res.Error != nil {
			return fmt.Errorf("delete product: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return orders.ProductNotFound(id)
		}
		return nil
	})
}

func (r *ProductRepository) CountOrders(ctx context.Context, productID int64) (int, error) {
	var n int64
	if err := r.db.conn(ctx).Model(&orderRow{}).Where("product_id = ?", productID).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count orders: %w", err)
	}
	return int(n), nil
}

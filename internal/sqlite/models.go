package sqlite

import "time"

type productRow struct {
	ID           int64  `gorm:"primaryKey;autoIncrement"`
	Title        string `gorm:"size:200;not null"`
	Subtitle     string `gorm:"size:200;not null;default:''"`
	Price        string `gorm:"size:50;not null;default:''"`
	PriceNumeric string `gorm:"type:text;not null"`
	Image        string `gorm:"not null;default:''"`
	Category     string `gorm:"size:50;not null"`
	Type         string `gorm:"size:50;not null;default:''"`
	Badge        string `gorm:"size:50;not null;default:''"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (productRow) TableName() string { return "products" }

type inventoryRow struct {
	ProductID        int64 `gorm:"primaryKey;autoIncrement:false"`
	StockQuantity    int   `gorm:"not null;default:0;check:chk_inventory_stock,stock_quantity >= 0"`
	ReservedQuantity int   `gorm:"not null;default:0"`
	Version          int64 `gorm:"not null;default:1"`
	UpdatedAt        time.Time
}

func (inventoryRow) TableName() string { return "inventory" }

type orderRow struct {
	ID           int64     `gorm:"primaryKey;autoIncrement"`
	CustomerName string    `gorm:"size:100;not null;index"`
	ProductID    int64     `gorm:"not null;index"`
	Quantity     int       `gorm:"not null"`
	UnitPrice    string    `gorm:"type:text;not null"`
	TotalPrice   string    `gorm:"type:text;not null"`
	OrderDate    time.Time `gorm:"not null;index"`
	Status       string    `gorm:"size:20;not null;default:'created'"`
}

func (orderRow) TableName() string { return "orders" }

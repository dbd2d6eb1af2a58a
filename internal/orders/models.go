package orders

import (
	"math"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// BaselineStock is the quantity every inventory row returns to on reset.
const BaselineStock = 100

// DefaultListLimit caps the recent-orders listing.
const DefaultListLimit = 100

// MaxQuantity bounds any single quantity and any stock level; stock columns are 32-bit.
const MaxQuantity = math.MaxInt32

type Product struct {
	ID           int64           `json:"id"`
	Title        string          `json:"title"`
	Subtitle     string          `json:"subtitle"`
	Price        string          `json:"price"` // display label, e.g. "₩15,000"
	PriceNumeric decimal.Decimal `json:"price_numeric"`
	Image        string          `json:"image"`
	Category     string          `json:"category"`
	Type         string          `json:"type"`
	Badge        string          `json:"badge"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// ProductStock is a catalog row joined with its inventory.
type ProductStock struct {
	Product
	StockQuantity int    `json:"stock_quantity"`
	StockDisplay  string `json:"stock_display"`
}

type InventoryRecord struct {
	ProductID        int64     `json:"product_id"`
	ProductTitle     string    `json:"product_title,omitempty"`
	StockQuantity    int       `json:"stock_quantity"`
	ReservedQuantity int       `json:"reserved_quantity"`
	Version          int64     `json:"version"`
	UpdatedAt        time.Time `json:"updated_at"`
}

type Order struct {
	ID           int64           `json:"id"`
	CustomerName string          `json:"customer_name"`
	ProductID    int64           `json:"product_id"`
	Quantity     int             `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	TotalPrice   decimal.Decimal `json:"total_price"`
	OrderDate    time.Time       `json:"order_date"`
	Status       Status          `json:"status"`
}

// OrderView is an order joined with the product it references.
type OrderView struct {
	Order
	ProductTitle    string `json:"product_title"`
	ProductSubtitle string `json:"product_subtitle"`
	Price           string `json:"price"`
}

// PlacedOrder is what CreateOrder hands back to the caller.
type PlacedOrder struct {
	ID             int64           `json:"id"`
	CustomerName   string          `json:"customerName"`
	ProductID      int64           `json:"productId"`
	ProductTitle   string          `json:"productTitle"`
	Quantity       int             `json:"quantity"`
	UnitPrice      decimal.Decimal `json:"unitPrice"`
	TotalPrice     decimal.Decimal `json:"totalPrice"`
	OrderDate      time.Time       `json:"orderDate"`
	RemainingStock int             `json:"remainingStock"`
}

// DeletedOrder is the removed order and the stock after its quantity was returned.
type DeletedOrder struct {
	Order
	RemainingStock int `json:"remainingStock"`
}

// StockDisplay renders stock the way the storefront shows it.
func StockDisplay(stock int) string {
	if stock <= 0 {
		return "SOLD OUT"
	}
	return strconv.Itoa(stock)
}

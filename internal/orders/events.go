package orders

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	EventOrderPlaced       = "OrderPlaced"
	EventOrderDeleted      = "OrderDeleted"
	EventInventoryAdjusted = "InventoryAdjusted"
	EventInventoryReset    = "InventoryReset"
	EventProductDeleted    = "ProductDeleted"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// StockLevel is the committed stock of one product together with its row version.
type StockLevel struct {
	ProductID int64 `json:"product_id"`
	Stock     int   `json:"stock"`
	Version   int64 `json:"version"`
}

type OrderPlacedPayload struct {
	OrderID      int64      `json:"order_id"`
	CustomerName string     `json:"customer_name"`
	Quantity     int        `json:"quantity"`
	TotalPrice   string     `json:"total_price"`
	Level        StockLevel `json:"level"`
}

type OrderDeletedPayload struct {
	OrderID  int64      `json:"order_id"`
	Quantity int        `json:"quantity"`
	Level    StockLevel `json:"level"`
}

type InventoryAdjustedPayload struct {
	Added int        `json:"added"`
	Level StockLevel `json:"level"`
}

type InventoryResetPayload struct {
	Baseline int          `json:"baseline"`
	Levels   []StockLevel `json:"levels"`
}

type ProductDeletedPayload struct {
	ProductID int64 `json:"product_id"`
}

func levelOf(rec InventoryRecord) StockLevel {
	return StockLevel{ProductID: rec.ProductID, Stock: rec.StockQuantity, Version: rec.Version}
}

func NewEnvelope(eventType, producer, correlationID string, occurredAt time.Time, payload any) (Envelope, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %s payload: %w", eventType, err)
	}
	return Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    occurredAt,
		Producer:      producer,
		CorrelationID: correlationID,
		Payload:       b,
	}, nil
}

// Levels extracts the stock levels an event carries.
func (e Envelope) Levels() ([]StockLevel, error) {
	switch e.EventType {
	case EventOrderPlaced:
		var p OrderPlacedPayload
		if err := json.Unmarshal(e.Payload, &p); err != nil {
			return nil, fmt.Errorf("decode payload: %w", err)
		}
		return []StockLevel{p.Level}, nil
	case EventOrderDeleted:
		var p OrderDeletedPayload
		if err := json.Unmarshal(e.Payload, &p); err != nil {
			return nil, fmt.Errorf("decode payload: %w", err)
		}
		return []StockLevel{p.Level}, nil
	case EventInventoryAdjusted:
		var p InventoryAdjustedPayload
		if err := json.Unmarshal(e.Payload, &p); err != nil {
			return nil, fmt.Errorf("decode payload: %w", err)
		}
		return []StockLevel{p.Level}, nil
	case EventInventoryReset:
		var p InventoryResetPayload
		if err := json.Unmarshal(e.Payload, &p); err != nil {
			return nil, fmt.Errorf("decode payload: %w", err)
		}
		return p.Levels, nil
	default:
		return nil, nil
	}
}

// DeletedProduct returns the product a ProductDeleted event removed.
func (e Envelope) DeletedProduct() (int64, bool, error) {
	if e.EventType != EventProductDeleted {
		return 0, false, nil
	}
	var p ProductDeletedPayload
	if err := json.Unmarshal(e.Payload, &p); err != nil {
		return 0, false, fmt.Errorf("decode payload: %w", err)
	}
	return p.ProductID, true, nil
}

package inventory

import (
	"context"
	"log"

	kafkax "github.com/ariefcatur/order-inventory/internal/kafka"
	"github.com/ariefcatur/order-inventory/internal/orders"
	kafkago "github.com/segmentio/kafka-go"
)

type Snapshots interface {
	SetIfNewer(ctx context.Context, level orders.StockLevel) (bool, error)
	Forget(ctx context.Context, productID int64) error
}

type Deduper interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	Mark(ctx context.Context, eventID string) error
}

// Projector keeps the stock read model in step with committed inventory events.
type Projector struct {
	snapshots Snapshots
	dedup     Deduper
	logger    *log.Logger
}

func NewProjector(snapshots Snapshots, dedup Deduper, logger *log.Logger) *Projector {
	if logger == nil {
		logger = log.Default()
	}
	return &Projector{snapshots: snapshots, dedup: dedup, logger: logger}
}

// HandleMessage is installed as the consumer handler. Undecodable messages are
// logged and skipped so they do not block the partition.
func (p *Projector) HandleMessage(ctx context.Context, m kafkago.Message) error {
	// 1) decode envelope
	env, err := kafkax.DecodeEnvelope(m)
	if err != nil {
		p.logger.Printf("inventory: skip message: %v", err)
		return nil
	}

	// 2) dedup on event_id
	seen, err := p.dedup.Seen(ctx, env.EventID)
	if err != nil {
		return err
	}
	if seen {
		return nil
	}

	// 3) deleted products leave the read model
	productID, deleted, err := env.DeletedProduct()
	if err != nil {
		p.logger.Printf("inventory: skip %s %s: %v", env.EventType, env.EventID, err)
		return nil
	}
	if deleted {
		if err := p.snapshots.Forget(ctx, productID); err != nil {
			return err
		}
		return p.dedup.Mark(ctx, env.EventID)
	}

	// 4) apply levels; stale versions are ignored by the snapshot store
	levels, err := env.Levels()
	if err != nil {
		p.logger.Printf("inventory: skip %s %s: %v", env.EventType, env.EventID, err)
		return nil
	}
	for _, l := range levels {
		applied, err := p.snapshots.SetIfNewer(ctx, l)
		if err != nil {
			return err
		}
		if !applied {
			p.logger.Printf("inventory: stale level for product %d (version %d)", l.ProductID, l.Version)
		}
	}

	return p.dedup.Mark(ctx, env.EventID)
}

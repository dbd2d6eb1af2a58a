package redisx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ariefcatur/order-inventory/internal/orders"
	"github.com/redis/go-redis/v9"
)

// OrderCache keeps read-through copies of order views. Orders never change in
// place, so an entry is only ever dropped, never rewritten.
type OrderCache struct {
	rdb *redis.Client
}

func NewOrderCache(rdb *redis.Client) *OrderCache {
	return &OrderCache{rdb: rdb}
}

func (c *OrderCache) Get(ctx context.Context, orderID int64) (orders.OrderView, bool, error) {
	b, err := c.rdb.Get(ctx, fmt.Sprintf(KeyOrderCache, orderID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return orders.OrderView{}, false, nil
	}
	if err != nil {
		return orders.OrderView{}, false, err
	}
	var v orders.OrderView
	if err := json.Unmarshal(b, &v); err != nil {
		return orders.OrderView{}, false, fmt.Errorf("decode cached order %d: %w", orderID, err)
	}
	return v, true, nil
}

func (c *OrderCache) Set(ctx context.Context, v orders.OrderView) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, fmt.Sprintf(KeyOrderCache, v.ID), b, TTLOrderCache).Err()
}

func (c *OrderCache) Delete(ctx context.Context, orderID int64) error {
	return c.rdb.Del(ctx, fmt.Sprintf(KeyOrderCache, orderID)).Err()
}

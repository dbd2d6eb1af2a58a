package redisx

import "time"

const (
	// Cached order view: order:{order_id} -> JSON
	KeyOrderCache = "order:%d"

	// Stock snapshot per product: hash stock:{product_id} {stock, version}
	KeyStock = "stock:%d"

	// Dedup event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"

	// Single-runner lock for scheduled jobs: lock:job:{name}:{run_date}
	KeyJobLock = "lock:job:%s:%s"

	// Sliding window per client: rate_limit:{scope}:{subject}
	KeyRateLimit = "rate_limit:%s:%s"
)

var (
	TTLOrderCache = 5 * time.Minute
	TTLDedup      = 48 * time.Hour
	TTLJobLock    = 25 * time.Hour

	TTLStockTombstone = 48 * time.Hour
)

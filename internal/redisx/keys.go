package redisx

import "time"

const (
	// Idempotency purchase: idem:order:create:{customer_id}:{key} -> order_id ("" while in flight)
	KeyIdemOrderCreate = "idem:order:create:%s:%s"

	// Pub/sub channel per store: stock:{store_id}
	KeyStockChannel     = "stock:%s"
	StockChannelPattern = "stock:*"

	// Projection per store for reconnecting clients: hash stock:view:{store_id} field product_id -> View json
	KeyStockView = "stock:view:%s"

	// Dedup event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLIdempotency = 24 * time.Hour
	TTLInFlight    = 30 * time.Second
	TTLDedup       = 48 * time.Hour
)

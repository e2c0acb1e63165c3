package redisx

import "time"

const (
	// Idempotency create order: idem:order:create:{Idempotency-Key} -> id_orden
	KeyIdemOrderCreate = "idem:order:create:%s"

	// Cache estado order: order_state:{id_orden} -> {"id_orden":..,"estado":".."}
	KeyOrderState = "order_state:%d"

	// Dedup event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"

	// Hash of parts at or below minimum stock: field id_repuesto -> StockChanged payload
	KeyLowStock = "stock:low"
)

var (
	TTLIdempotency = 24 * time.Hour
	TTLStateCache  = 5 * time.Minute
	TTLDedup       = 48 * time.Hour
)

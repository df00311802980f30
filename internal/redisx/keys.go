package redisx

import "time"

const (
	// Cache status order: order_status:{order_id} -> orders.Summary JSON
	KeyOrderStatus = "order_status:%s"

	// Dedup event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLStatusCache = 5 * time.Minute
	// Stripe keeps redelivering a failed event for up to three days.
	TTLDedup = 72 * time.Hour
)

package redisx

import "time"

const (
	// Lock create order: lock:order:create:{local_order_id}
	KeyLockCreate = "lock:order:create:%s"

	// Lock capture: lock:order:capture:{provider_payment_id}
	KeyLockCapture = "lock:order:capture:%s"

	// Cache order: order_status:{local_order_id} -> JSON order snapshot
	KeyOrderStatus = "order_status:%s"

	// Dedup event processing: dedup:{service}:{id} (id = webhook event id / envelope event_id)
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLLock        = 30 * time.Second
	TTLStatusCache = 5 * time.Minute
	TTLDedup       = 48 * time.Hour
)

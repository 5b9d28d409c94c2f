package redisx

import "time"

const (
	// Terminal checkout status: checkout_status:{session_id} -> status JSON
	KeyCheckoutStatus = "checkout_status:%s"

	// Dedup provider/broker event processing: dedup:{consumer}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLStatusCache = 10 * time.Minute
	TTLDedup       = 48 * time.Hour
)

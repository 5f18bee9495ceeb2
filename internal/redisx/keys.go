package redisx

import "time"

const (
	// Full order JSON kept warm by the projector: order:{order_id}
	KeyOrder = "order:%d"

	// Rendered active-product listing, invalidated on any stock or listing
	// change: products:active
	KeyActiveProducts = "products:active"

	// Dedup for event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLOrderCache   = 5 * time.Minute
	TTLListingCache = 30 * time.Second
	TTLDedup        = 48 * time.Hour
)

package ledger

import (
	"context"
	"encoding/json"
	"strconv"
	"time"
)

const (
	EventProductRegistered = "ProductRegistered"
	EventProductActiveSet  = "ProductActiveSet"
	EventOrderPaid         = "OrderPaid"
	EventOrderCanceled     = "OrderCanceled"
	EventOrderShipped      = "OrderShipped"
	EventOrderDelivered    = "OrderDelivered"
	EventDisputeOpened     = "DisputeOpened"
	EventDisputeResolved   = "DisputeResolved"
)

const (
	TopicProductEvents = "shop.product.events"
	TopicOrderEvents   = "shop.order.events"
)

// Partition key = entity id, so all events for one order keep their order.
func PartitionKey(id uint64) []byte {
	return []byte(strconv.FormatUint(id, 10))
}

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// EventSink receives every committed mutation. Emission is best-effort:
// implementations own their error handling, the ledger state is already
// committed when Emit runs.
type EventSink interface {
	Emit(ctx context.Context, env Envelope)
}

// ---- Payload types per event ----

type ProductRegisteredPayload struct {
	Product Product `json:"product"`
}

type ProductActiveSetPayload struct {
	ProductID uint64 `json:"product_id"`
	Active    bool   `json:"active"`
}

type OrderPaidPayload struct {
	Order Order `json:"order"`
}

type OrderCanceledPayload struct {
	OrderID   uint64 `json:"order_id"`
	Requester string `json:"requester"`
	Refund    int64  `json:"refund"`
}

type OrderShippedPayload struct {
	OrderID   uint64 `json:"order_id"`
	Requester string `json:"requester"`
}

type OrderDeliveredPayload struct {
	OrderID   uint64 `json:"order_id"`
	Requester string `json:"requester"`
	Released  int64  `json:"released"`
}

type DisputeOpenedPayload struct {
	OrderID  uint64 `json:"order_id"`
	OpenedBy string `json:"opened_by"`
}

type DisputeResolvedPayload struct {
	OrderID uint64 `json:"order_id"`
	Admin   string `json:"admin"`
	Outcome string `json:"outcome"`
	Refund  int64  `json:"refund,omitempty"`
}

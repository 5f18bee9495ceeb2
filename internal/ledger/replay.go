package ledger

import (
	"encoding/json"
	"fmt"
)

// Restore applies a journaled event to rebuild in-memory state at startup.
// Events replay in their committed order, so each apply is the already
// validated mutation and re-validation would be wrong; nothing is re-emitted.
func (l *Ledger) Restore(env Envelope) error {
	switch env.EventType {
	case EventProductRegistered:
		var p ProductRegisteredPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return fmt.Errorf("decode %s: %w", env.EventType, err)
		}
		l.products.restore(p.Product)
		return nil

	case EventProductActiveSet:
		var p ProductActiveSetPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return fmt.Errorf("decode %s: %w", env.EventType, err)
		}
		rec := l.products.record(p.ProductID)
		if rec == nil {
			return fmt.Errorf("replay %s: product %d: %w", env.EventType, p.ProductID, ErrNotFound)
		}
		rec.mu.Lock()
		rec.p.Active = p.Active
		rec.mu.Unlock()
		return nil

	case EventOrderPaid:
		var p OrderPaidPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return fmt.Errorf("decode %s: %w", env.EventType, err)
		}
		o := p.Order
		if err := l.products.decrementStock(o.ProductID, o.Quantity); err != nil {
			return fmt.Errorf("replay %s: %w", env.EventType, err)
		}
		l.orders.restore(o)
		l.escrow.hold(o.ID, o.TotalAmount)
		return nil

	case EventOrderCanceled:
		var p OrderCanceledPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return fmt.Errorf("decode %s: %w", env.EventType, err)
		}
		o, err := l.orders.get(p.OrderID)
		if err != nil {
			return fmt.Errorf("replay %s: %w", env.EventType, err)
		}
		if err := l.products.incrementStock(o.ProductID, o.Quantity); err != nil {
			return fmt.Errorf("replay %s: %w", env.EventType, err)
		}
		l.escrow.release(o.ID, o.Buyer)
		return l.orders.setStatus(o.ID, StatusCanceled)

	case EventOrderShipped:
		var p OrderShippedPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return fmt.Errorf("decode %s: %w", env.EventType, err)
		}
		return l.orders.setStatus(p.OrderID, StatusShipped)

	case EventOrderDelivered:
		var p OrderDeliveredPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return fmt.Errorf("decode %s: %w", env.EventType, err)
		}
		o, err := l.orders.get(p.OrderID)
		if err != nil {
			return fmt.Errorf("replay %s: %w", env.EventType, err)
		}
		seller, err := l.sellerOf(o.ProductID)
		if err != nil {
			return fmt.Errorf("replay %s: %w", env.EventType, err)
		}
		l.escrow.release(o.ID, seller)
		return l.orders.setStatus(o.ID, StatusDelivered)

	case EventDisputeOpened:
		var p DisputeOpenedPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return fmt.Errorf("decode %s: %w", env.EventType, err)
		}
		return l.orders.setStatus(p.OrderID, StatusDisputed)

	case EventDisputeResolved:
		var p DisputeResolvedPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return fmt.Errorf("decode %s: %w", env.EventType, err)
		}
		o, err := l.orders.get(p.OrderID)
		if err != nil {
			return fmt.Errorf("replay %s: %w", env.EventType, err)
		}
		outcome, err := ParseResolution(p.Outcome)
		if err != nil {
			return fmt.Errorf("replay %s: %w", env.EventType, err)
		}
		if outcome == ResolutionRefund {
			if err := l.products.incrementStock(o.ProductID, o.Quantity); err != nil {
				return fmt.Errorf("replay %s: %w", env.EventType, err)
			}
			l.escrow.release(o.ID, o.Buyer)
			return l.orders.setStatus(o.ID, StatusCanceled)
		}
		seller, err := l.sellerOf(o.ProductID)
		if err != nil {
			return fmt.Errorf("replay %s: %w", env.EventType, err)
		}
		l.escrow.release(o.ID, seller)
		return l.orders.setStatus(o.ID, StatusDelivered)
	}

	return fmt.Errorf("unknown event type %q", env.EventType)
}

package ledger

import (
	"fmt"
	"sync"
	"time"
)

// orderRecord carries the per-order lock guarding status transitions.
type orderRecord struct {
	mu sync.Mutex
	o  Order
}

// orderRegistry owns order records. It is pure storage: transition legality is
// enforced by the Ledger, not here.
type orderRegistry struct {
	mu     sync.RWMutex
	nextID uint64
	byID   map[uint64]*orderRecord
	ids    []uint64
}

func newOrderRegistry() *orderRegistry {
	return &orderRegistry{
		nextID: 1,
		byID:   make(map[uint64]*orderRecord),
	}
}

// create allocates an id and stores the order directly in StatusPaid: purchase
// is atomic creation-plus-payment, an unpaid order is never persisted. All
// precondition checks happen in the Ledger before this is invoked.
func (r *orderRegistry) create(buyer string, productID uint64, quantity, totalAmount int64, now time.Time) Order {
	r.mu.Lock()
	defer r.mu.Unlock()

	o := Order{
		ID:          r.nextID,
		Buyer:       buyer,
		ProductID:   productID,
		Quantity:    quantity,
		TotalAmount: totalAmount,
		Status:      StatusPaid,
		CreatedAt:   now,
	}
	r.nextID++
	r.byID[o.ID] = &orderRecord{o: o}
	r.ids = append(r.ids, o.ID)
	return o
}

func (r *orderRegistry) record(id uint64) *orderRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byID[id]
}

func (r *orderRegistry) get(id uint64) (Order, error) {
	rec := r.record(id)
	if rec == nil {
		return Order{}, fmt.Errorf("order %d: %w", id, ErrNotFound)
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.o, nil
}

func (r *orderRegistry) setStatus(id uint64, status Status) error {
	rec := r.record(id)
	if rec == nil {
		return fmt.Errorf("order %d: %w", id, ErrNotFound)
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.o.Status = status
	return nil
}

// snapshot returns copies of all orders matching keep, ascending by id.
func (r *orderRegistry) snapshot(keep func(Order) bool) []Order {
	r.mu.RLock()
	ids := make([]uint64, len(r.ids))
	copy(ids, r.ids)
	r.mu.RUnlock()

	var out []Order
	for _, id := range ids {
		rec := r.record(id)
		if rec == nil {
			continue
		}
		rec.mu.Lock()
		o := rec.o
		rec.mu.Unlock()
		if keep(o) {
			out = append(out, o)
		}
	}
	return out
}

// byBuyer returns only and all of buyer's orders, exact identity match,
// ascending order id.
func (r *orderRegistry) byBuyer(buyer string) []Order {
	return r.snapshot(func(o Order) bool { return o.Buyer == buyer })
}

func (r *orderRegistry) restore(o Order) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[o.ID]; ok {
		return
	}
	r.byID[o.ID] = &orderRecord{o: o}
	r.ids = append(r.ids, o.ID)
	if o.ID >= r.nextID {
		r.nextID = o.ID + 1
	}
}

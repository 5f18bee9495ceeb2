package ledger

import (
	"fmt"
	"sync"
	"time"
)

// productRecord carries the per-product lock: the stock check-then-mutate span
// is a critical section on this mutex, not on the registry as a whole.
type productRecord struct {
	mu sync.Mutex
	p  Product
}

// productRegistry owns product records and the monotonic id counter.
// Ids start at 1 and are never reused; the ids slice preserves insertion
// order, which is also ascending id order.
type productRegistry struct {
	mu     sync.RWMutex
	nextID uint64
	byID   map[uint64]*productRecord
	ids    []uint64
}

func newProductRegistry() *productRegistry {
	return &productRegistry{
		nextID: 1,
		byID:   make(map[uint64]*productRecord),
	}
}

func (r *productRegistry) register(seller, name, description string, price, stock int64) (Product, error) {
	if seller == "" || name == "" || description == "" {
		return Product{}, fmt.Errorf("empty field: %w", ErrInvalidInput)
	}
	if price <= 0 {
		return Product{}, fmt.Errorf("price must be positive: %w", ErrInvalidInput)
	}
	if stock < 0 {
		return Product{}, fmt.Errorf("stock must not be negative: %w", ErrInvalidInput)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	p := Product{
		ID:          r.nextID,
		Seller:      seller,
		Name:        name,
		Description: description,
		Price:       price,
		Stock:       stock,
		Active:      true,
		CreatedAt:   time.Now().UTC(),
	}
	r.nextID++
	r.byID[p.ID] = &productRecord{p: p}
	r.ids = append(r.ids, p.ID)
	return p, nil
}

// record returns the live record for id, or nil if unknown.
func (r *productRegistry) record(id uint64) *productRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byID[id]
}

// get returns a snapshot copy of the product.
func (r *productRegistry) get(id uint64) (Product, error) {
	rec := r.record(id)
	if rec == nil {
		return Product{}, fmt.Errorf("product %d: %w", id, ErrNotFound)
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.p, nil
}

func (r *productRegistry) decrementStock(id uint64, quantity int64) error {
	rec := r.record(id)
	if rec == nil {
		return fmt.Errorf("product %d: %w", id, ErrNotFound)
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if quantity > rec.p.Stock {
		return fmt.Errorf("product %d has %d, need %d: %w", id, rec.p.Stock, quantity, ErrInsufficientStock)
	}
	rec.p.Stock -= quantity
	return nil
}

func (r *productRegistry) incrementStock(id uint64, quantity int64) error {
	rec := r.record(id)
	if rec == nil {
		return fmt.Errorf("product %d: %w", id, ErrNotFound)
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.p.Stock += quantity
	return nil
}

// listActive returns active, in-stock products in ascending id order.
// Ascending id is insertion order, so the listing is stable for pagination.
func (r *productRegistry) listActive() []Product {
	r.mu.RLock()
	ids := make([]uint64, len(r.ids))
	copy(ids, r.ids)
	r.mu.RUnlock()

	out := make([]Product, 0, len(ids))
	for _, id := range ids {
		rec := r.record(id)
		if rec == nil {
			continue
		}
		rec.mu.Lock()
		p := rec.p
		rec.mu.Unlock()
		if p.Listed() {
			out = append(out, p)
		}
	}
	return out
}

// restore re-inserts a product during journal replay, keeping the id counter
// ahead of every replayed id.
func (r *productRegistry) restore(p Product) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[p.ID]; ok {
		return
	}
	r.byID[p.ID] = &productRecord{p: p}
	r.ids = append(r.ids, p.ID)
	if p.ID >= r.nextID {
		r.nextID = p.ID + 1
	}
}

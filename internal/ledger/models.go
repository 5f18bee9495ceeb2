package ledger

import "time"

// Product prices are in the smallest indivisible currency unit.
// Seller and Price are immutable after registration; Stock only moves through
// purchases (down) and cancellations or refunds (back up).
type Product struct {
	ID          uint64    `json:"id"`
	Seller      string    `json:"seller"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Price       int64     `json:"price"`
	Stock       int64     `json:"stock"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
}

// Listed reports whether the product appears in active listings.
func (p Product) Listed() bool {
	return p.Active && p.Stock > 0
}

// Order is created atomically with payment, so the first persisted status is
// StatusPaid. TotalAmount is fixed at purchase time and immune to later price
// changes on the product.
type Order struct {
	ID          uint64    `json:"order_id"`
	Buyer       string    `json:"buyer"`
	ProductID   uint64    `json:"product_id"`
	Quantity    int64     `json:"quantity"`
	TotalAmount int64     `json:"total_amount"`
	Status      Status    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

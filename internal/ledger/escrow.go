package ledger

import "sync"

// escrowBook tracks funds in the ledger's custody. A payment is held against
// its order id from purchase until release (to the seller on delivery) or
// refund (to the buyer on cancellation); released value accrues to
// per-account balances.
type escrowBook struct {
	mu       sync.Mutex
	held     map[uint64]int64
	balances map[string]int64
}

func newEscrowBook() *escrowBook {
	return &escrowBook{
		held:     make(map[uint64]int64),
		balances: make(map[string]int64),
	}
}

func (b *escrowBook) hold(orderID uint64, amount int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.held[orderID] += amount
}

// release moves the full amount held for orderID to account's balance and
// returns it. Releasing an order with nothing in custody returns 0.
func (b *escrowBook) release(orderID uint64, account string) int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	amount := b.held[orderID]
	delete(b.held, orderID)
	b.balances[account] += amount
	return amount
}

func (b *escrowBook) heldAmount(orderID uint64) int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.held[orderID]
}

func (b *escrowBook) heldTotal() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	var total int64
	for _, v := range b.held {
		total += v
	}
	return total
}

func (b *escrowBook) balance(account string) int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.balances[account]
}

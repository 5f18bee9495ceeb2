package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Resolution is the admin's verdict on a disputed order.
type Resolution int

const (
	ResolutionDeliver Resolution = iota + 1
	ResolutionRefund
)

func (r Resolution) String() string {
	switch r {
	case ResolutionDeliver:
		return "deliver"
	case ResolutionRefund:
		return "refund"
	}
	return "unknown"
}

func ParseResolution(s string) (Resolution, error) {
	switch strings.ToLower(s) {
	case "deliver":
		return ResolutionDeliver, nil
	case "refund":
		return ResolutionRefund, nil
	}
	return 0, fmt.Errorf("outcome %q: %w", s, ErrInvalidInput)
}

// Ledger is the single entry point for every state-changing operation. It
// validates role capability and status preconditions against current stored
// state under per-entity locks, moves escrowed value, and emits an event for
// every committed mutation. Lock order is always order record before product
// record.
type Ledger struct {
	products *productRegistry
	orders   *orderRegistry
	escrow   *escrowBook
	sink     EventSink
	admins   map[string]struct{}
	service  string
}

type Options struct {
	// Service names the event producer in emitted envelopes.
	Service string
	// Admins hold the capability for dispute resolution and admin views.
	Admins []string
	// Sink receives committed events; nil disables emission.
	Sink EventSink
}

func New(opts Options) *Ledger {
	admins := make(map[string]struct{}, len(opts.Admins))
	for _, a := range opts.Admins {
		admins[a] = struct{}{}
	}
	return &Ledger{
		products: newProductRegistry(),
		orders:   newOrderRegistry(),
		escrow:   newEscrowBook(),
		sink:     opts.Sink,
		admins:   admins,
		service:  opts.Service,
	}
}

func (l *Ledger) isAdmin(account string) bool {
	_, ok := l.admins[account]
	return ok
}

func (l *Ledger) emit(ctx context.Context, eventType string, correlationID uint64, payload any) {
	if l.sink == nil {
		return
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return
	}
	l.sink.Emit(ctx, Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      l.service,
		CorrelationID: string(PartitionKey(correlationID)),
		Payload:       b,
	})
}

// RegisterProduct lists a new product for seller. Zero stock is legal, the
// product just stays out of active listings until restocked.
func (l *Ledger) RegisterProduct(ctx context.Context, seller, name, description string, price, stock int64) (Product, error) {
	p, err := l.products.register(seller, name, description, price, stock)
	if err != nil {
		return Product{}, err
	}
	l.emit(ctx, EventProductRegistered, p.ID, ProductRegisteredPayload{Product: p})
	return p, nil
}

// SetProductActive delists or relists a product. Seller only; in-flight
// orders are unaffected.
func (l *Ledger) SetProductActive(ctx context.Context, requester string, productID uint64, active bool) (Product, error) {
	rec := l.products.record(productID)
	if rec == nil {
		return Product{}, fmt.Errorf("product %d: %w", productID, ErrNotFound)
	}
	rec.mu.Lock()
	if rec.p.Seller != requester {
		rec.mu.Unlock()
		return Product{}, fmt.Errorf("only the seller may change listing state: %w", ErrUnauthorized)
	}
	rec.p.Active = active
	p := rec.p
	rec.mu.Unlock()

	l.emit(ctx, EventProductActiveSet, productID, ProductActiveSetPayload{ProductID: productID, Active: active})
	return p, nil
}

// Purchase atomically decrements stock, creates the order in StatusPaid and
// takes paidValue into escrow. Exact payment is required: under- and
// over-payment are both rejected, never silently adjusted. Concurrent
// purchases of one product serialize on the product record, ties break by
// arrival order at its lock.
func (l *Ledger) Purchase(ctx context.Context, buyer string, productID uint64, quantity, paidValue int64) (Order, error) {
	if buyer == "" {
		return Order{}, fmt.Errorf("empty buyer: %w", ErrInvalidInput)
	}
	if quantity <= 0 {
		return Order{}, fmt.Errorf("quantity must be positive: %w", ErrInvalidInput)
	}

	rec := l.products.record(productID)
	if rec == nil {
		return Order{}, fmt.Errorf("product %d: %w", productID, ErrNotFound)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	if !rec.p.Active {
		// Delisted products are not eligible for purchase.
		return Order{}, fmt.Errorf("product %d is not listed: %w", productID, ErrNotFound)
	}
	if quantity > rec.p.Stock {
		return Order{}, fmt.Errorf("product %d has %d, need %d: %w", productID, rec.p.Stock, quantity, ErrInsufficientStock)
	}
	if total := rec.p.Price * quantity; paidValue != total {
		return Order{}, fmt.Errorf("need exactly %d, got %d: %w", total, paidValue, ErrPaymentMismatch)
	}

	rec.p.Stock -= quantity
	o := l.orders.create(buyer, productID, quantity, paidValue, time.Now().UTC())
	l.escrow.hold(o.ID, paidValue)

	l.emit(ctx, EventOrderPaid, o.ID, OrderPaidPayload{Order: o})
	return o, nil
}

// CancelOrder is buyer-initiated and legal only while the order is Paid.
// The escrowed amount goes back to the buyer's balance and the product
// regains the order's quantity.
func (l *Ledger) CancelOrder(ctx context.Context, requester string, orderID uint64) (Order, error) {
	rec := l.orders.record(orderID)
	if rec == nil {
		return Order{}, fmt.Errorf("order %d: %w", orderID, ErrNotFound)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	if rec.o.Buyer != requester {
		return Order{}, fmt.Errorf("only the buyer may cancel: %w", ErrUnauthorized)
	}
	if rec.o.Status != StatusPaid {
		return Order{}, fmt.Errorf("cannot cancel a %s order: %w", rec.o.Status, ErrInvalidTransition)
	}

	if err := l.products.incrementStock(rec.o.ProductID, rec.o.Quantity); err != nil {
		return Order{}, err
	}
	refund := l.escrow.release(orderID, rec.o.Buyer)
	rec.o.Status = StatusCanceled

	l.emit(ctx, EventOrderCanceled, orderID, OrderCanceledPayload{OrderID: orderID, Requester: requester, Refund: refund})
	return rec.o, nil
}

// MarkShipped moves a Paid order to Shipped. Product's seller or an admin.
func (l *Ledger) MarkShipped(ctx context.Context, requester string, orderID uint64) (Order, error) {
	rec := l.orders.record(orderID)
	if rec == nil {
		return Order{}, fmt.Errorf("order %d: %w", orderID, ErrNotFound)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	if err := l.requireSellerOrAdmin(requester, rec.o.ProductID); err != nil {
		return Order{}, err
	}
	if rec.o.Status != StatusPaid {
		return Order{}, fmt.Errorf("cannot ship a %s order: %w", rec.o.Status, ErrInvalidTransition)
	}
	rec.o.Status = StatusShipped

	l.emit(ctx, EventOrderShipped, orderID, OrderShippedPayload{OrderID: orderID, Requester: requester})
	return rec.o, nil
}

// MarkDelivered ends custody on a Shipped order: escrow is released to the
// seller and the order reaches its terminal happy-path status.
func (l *Ledger) MarkDelivered(ctx context.Context, requester string, orderID uint64) (Order, error) {
	rec := l.orders.record(orderID)
	if rec == nil {
		return Order{}, fmt.Errorf("order %d: %w", orderID, ErrNotFound)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	if err := l.requireSellerOrAdmin(requester, rec.o.ProductID); err != nil {
		return Order{}, err
	}
	if rec.o.Status != StatusShipped {
		return Order{}, fmt.Errorf("cannot deliver a %s order: %w", rec.o.Status, ErrInvalidTransition)
	}

	seller, err := l.sellerOf(rec.o.ProductID)
	if err != nil {
		return Order{}, err
	}
	released := l.escrow.release(orderID, seller)
	rec.o.Status = StatusDelivered

	l.emit(ctx, EventOrderDelivered, orderID, OrderDeliveredPayload{OrderID: orderID, Requester: requester, Released: released})
	return rec.o, nil
}

// OpenDispute freezes an order from Paid or Shipped until an admin resolves
// it. Only the order's buyer or the product's seller may open one.
func (l *Ledger) OpenDispute(ctx context.Context, requester string, orderID uint64) (Order, error) {
	rec := l.orders.record(orderID)
	if rec == nil {
		return Order{}, fmt.Errorf("order %d: %w", orderID, ErrNotFound)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	seller, err := l.sellerOf(rec.o.ProductID)
	if err != nil {
		return Order{}, err
	}
	if requester != rec.o.Buyer && requester != seller {
		return Order{}, fmt.Errorf("only the buyer or seller may dispute: %w", ErrUnauthorized)
	}
	if !CanTransition(rec.o.Status, StatusDisputed) {
		return Order{}, fmt.Errorf("cannot dispute a %s order: %w", rec.o.Status, ErrInvalidTransition)
	}
	rec.o.Status = StatusDisputed

	l.emit(ctx, EventDisputeOpened, orderID, DisputeOpenedPayload{OrderID: orderID, OpenedBy: requester})
	return rec.o, nil
}

// ResolveDispute is admin-only. ResolutionDeliver releases escrow to the
// seller, ResolutionRefund returns it to the buyer and restores stock.
func (l *Ledger) ResolveDispute(ctx context.Context, admin string, orderID uint64, outcome Resolution) (Order, error) {
	if !l.isAdmin(admin) {
		return Order{}, fmt.Errorf("dispute resolution requires the admin capability: %w", ErrUnauthorized)
	}

	rec := l.orders.record(orderID)
	if rec == nil {
		return Order{}, fmt.Errorf("order %d: %w", orderID, ErrNotFound)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	if rec.o.Status != StatusDisputed {
		return Order{}, fmt.Errorf("order is %s, not disputed: %w", rec.o.Status, ErrInvalidTransition)
	}

	payload := DisputeResolvedPayload{OrderID: orderID, Admin: admin, Outcome: outcome.String()}
	switch outcome {
	case ResolutionDeliver:
		seller, err := l.sellerOf(rec.o.ProductID)
		if err != nil {
			return Order{}, err
		}
		l.escrow.release(orderID, seller)
		rec.o.Status = StatusDelivered
	case ResolutionRefund:
		if err := l.products.incrementStock(rec.o.ProductID, rec.o.Quantity); err != nil {
			return Order{}, err
		}
		payload.Refund = l.escrow.release(orderID, rec.o.Buyer)
		rec.o.Status = StatusCanceled
	default:
		return Order{}, fmt.Errorf("outcome %d: %w", outcome, ErrInvalidInput)
	}

	l.emit(ctx, EventDisputeResolved, orderID, payload)
	return rec.o, nil
}

func (l *Ledger) requireSellerOrAdmin(requester string, productID uint64) error {
	if l.isAdmin(requester) {
		return nil
	}
	seller, err := l.sellerOf(productID)
	if err != nil {
		return err
	}
	if requester != seller {
		return fmt.Errorf("requires the seller or admin capability: %w", ErrUnauthorized)
	}
	return nil
}

func (l *Ledger) sellerOf(productID uint64) (string, error) {
	p, err := l.products.get(productID)
	if err != nil {
		return "", err
	}
	return p.Seller, nil
}

// ---- Queries ----

func (l *Ledger) GetProduct(id uint64) (Product, error) {
	return l.products.get(id)
}

// ActiveProducts lists products with Active set and positive stock,
// ascending id.
func (l *Ledger) ActiveProducts() []Product {
	return l.products.listActive()
}

func (l *Ledger) GetOrder(id uint64) (Order, error) {
	return l.orders.get(id)
}

// BuyerOrders returns only and all of buyer's orders, ascending order id.
func (l *Ledger) BuyerOrders(buyer string) []Order {
	return l.orders.byBuyer(buyer)
}

// AllOrders is the admin view over every order.
func (l *Ledger) AllOrders(requester string) ([]Order, error) {
	if !l.isAdmin(requester) {
		return nil, fmt.Errorf("order overview requires the admin capability: %w", ErrUnauthorized)
	}
	return l.orders.snapshot(func(Order) bool { return true }), nil
}

// DisputedOrders is the admin view over orders awaiting resolution.
func (l *Ledger) DisputedOrders(requester string) ([]Order, error) {
	if !l.isAdmin(requester) {
		return nil, fmt.Errorf("dispute overview requires the admin capability: %w", ErrUnauthorized)
	}
	return l.orders.snapshot(func(o Order) bool { return o.Status == StatusDisputed }), nil
}

// Balance is the withdrawable value released to account so far.
func (l *Ledger) Balance(account string) int64 {
	return l.escrow.balance(account)
}

// EscrowedAmount is the value currently held in custody for orderID.
func (l *Ledger) EscrowedAmount(orderID uint64) int64 {
	return l.escrow.heldAmount(orderID)
}

// EscrowedTotal is the value currently held in custody across all orders.
func (l *Ledger) EscrowedTotal() int64 {
	return l.escrow.heldTotal()
}

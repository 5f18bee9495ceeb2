package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/samber/lo"

	kafkax "github.com/aliashahi/secure-online-shop/internal/kafka"
	"github.com/aliashahi/secure-online-shop/internal/ledger"
	"github.com/aliashahi/secure-online-shop/internal/redisx"
)

// AccountHeader carries the authenticated caller identity. Wallet and key
// management live outside this service; the gateway fills this in.
const AccountHeader = "X-Account"

type LedgerHandler struct {
	Ledger *ledger.Ledger
	// Redis enables the read-model fast path when non-nil.
	Redis *redis.Client
}

func (h *LedgerHandler) Register(r *chi.Mux) {
	r.Get("/products", h.listProducts)
	r.Post("/products", h.registerProduct)
	r.Get("/products/{id}", h.getProduct)
	r.Post("/products/{id}/purchase", h.purchaseProduct)
	r.Post("/products/{id}/active", h.setProductActive)

	r.Get("/orders", h.listBuyerOrders)
	r.Get("/orders/{id}", h.getOrder)
	r.Post("/orders/{id}/cancel", h.cancelOrder)
	r.Post("/orders/{id}/ship", h.shipOrder)
	r.Post("/orders/{id}/deliver", h.deliverOrder)
	r.Post("/orders/{id}/dispute", h.disputeOrder)
	r.Post("/orders/{id}/resolve", h.resolveDispute)

	r.Get("/admin/orders", h.adminOrders)
	r.Get("/admin/disputes", h.adminDisputes)

	r.Get("/balances/{account}", h.getBalance)
}

type orderDTO struct {
	ledger.Order
	StatusLabel string `json:"status_label"`
}

func toOrderDTO(o ledger.Order) orderDTO {
	return orderDTO{Order: o, StatusLabel: o.Status.String()}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type errBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeErr(w http.ResponseWriter, err error) {
	code, label := http.StatusInternalServerError, "internal"
	switch {
	case errors.Is(err, ledger.ErrInvalidInput):
		code, label = http.StatusBadRequest, "invalid_input"
	case errors.Is(err, ledger.ErrPaymentMismatch):
		code, label = http.StatusPaymentRequired, "payment_mismatch"
	case errors.Is(err, ledger.ErrUnauthorized):
		code, label = http.StatusForbidden, "unauthorized"
	case errors.Is(err, ledger.ErrNotFound):
		code, label = http.StatusNotFound, "not_found"
	case errors.Is(err, ledger.ErrInsufficientStock):
		code, label = http.StatusConflict, "insufficient_stock"
	case errors.Is(err, ledger.ErrInvalidTransition):
		code, label = http.StatusConflict, "invalid_transition"
	}
	writeJSON(w, code, errBody{Error: label, Message: err.Error()})
}

func (h *LedgerHandler) account(w http.ResponseWriter, r *http.Request) (string, bool) {
	acct := r.Header.Get(AccountHeader)
	if acct == "" {
		writeErr(w, fmt.Errorf("missing %s header: %w", AccountHeader, ledger.ErrUnauthorized))
		return "", false
	}
	return acct, true
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (uint64, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, name), 10, 64)
	if err != nil {
		writeErr(w, fmt.Errorf("bad %s: %w", name, ledger.ErrInvalidInput))
		return 0, false
	}
	return id, true
}

func reqCtx(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), 5*time.Second)
}

// ---- products ----

type registerProductReq struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Price       int64  `json:"price"`
	Stock       int64  `json:"stock"`
}

func (h *LedgerHandler) registerProduct(w http.ResponseWriter, r *http.Request) {
	seller, ok := h.account(w, r)
	if !ok {
		return
	}
	var req registerProductReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, fmt.Errorf("invalid json: %w", ledger.ErrInvalidInput))
		return
	}

	ctx, cancel := reqCtx(r)
	defer cancel()

	p, err := h.Ledger.RegisterProduct(ctx, seller, req.Name, req.Description, req.Price, req.Stock)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *LedgerHandler) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := reqCtx(r)
	defer cancel()

	if h.Redis != nil {
		if s, err := h.Redis.Get(ctx, redisx.KeyActiveProducts).Result(); err == nil && s != "" {
			writeJSON(w, http.StatusOK, json.RawMessage(s))
			return
		}
	}

	products := h.Ledger.ActiveProducts()
	if h.Redis != nil {
		_ = h.Redis.Set(ctx, redisx.KeyActiveProducts, kafkax.MustMarshal(products), redisx.TTLListingCache).Err()
	}
	writeJSON(w, http.StatusOK, products)
}

func (h *LedgerHandler) getProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	p, err := h.Ledger.GetProduct(id)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

type setActiveReq struct {
	Active bool `json:"active"`
}

func (h *LedgerHandler) setProductActive(w http.ResponseWriter, r *http.Request) {
	seller, ok := h.account(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req setActiveReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, fmt.Errorf("invalid json: %w", ledger.ErrInvalidInput))
		return
	}

	ctx, cancel := reqCtx(r)
	defer cancel()

	p, err := h.Ledger.SetProductActive(ctx, seller, id, req.Active)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// ---- purchase and order lifecycle ----

type purchaseReq struct {
	Quantity  int64 `json:"quantity"`
	PaidValue int64 `json:"paid_value"`
}

func (h *LedgerHandler) purchaseProduct(w http.ResponseWriter, r *http.Request) {
	buyer, ok := h.account(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req purchaseReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, fmt.Errorf("invalid json: %w", ledger.ErrInvalidInput))
		return
	}

	ctx, cancel := reqCtx(r)
	defer cancel()

	o, err := h.Ledger.Purchase(ctx, buyer, id, req.Quantity, req.PaidValue)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toOrderDTO(o))
}

func (h *LedgerHandler) listBuyerOrders(w http.ResponseWriter, r *http.Request) {
	buyer, ok := h.account(w, r)
	if !ok {
		return
	}
	orders := h.Ledger.BuyerOrders(buyer)
	writeJSON(w, http.StatusOK, lo.Map(orders, func(o ledger.Order, _ int) orderDTO { return toOrderDTO(o) }))
}

func (h *LedgerHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	ctx, cancel := reqCtx(r)
	defer cancel()

	key := fmt.Sprintf(redisx.KeyOrder, id)
	if h.Redis != nil {
		if s, err := h.Redis.Get(ctx, key).Result(); err == nil && s != "" {
			var o ledger.Order
			if json.Unmarshal([]byte(s), &o) == nil {
				writeJSON(w, http.StatusOK, toOrderDTO(o))
				return
			}
		}
	}

	o, err := h.Ledger.GetOrder(id)
	if err != nil {
		writeErr(w, err)
		return
	}
	if h.Redis != nil {
		_ = h.Redis.Set(ctx, key, kafkax.MustMarshal(o), redisx.TTLOrderCache).Err()
	}
	writeJSON(w, http.StatusOK, toOrderDTO(o))
}

// transition wraps the cancel/ship/deliver/dispute handlers, which differ
// only in the ledger call.
func (h *LedgerHandler) transition(w http.ResponseWriter, r *http.Request,
	op func(ctx context.Context, requester string, orderID uint64) (ledger.Order, error)) {

	requester, ok := h.account(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	ctx, cancel := reqCtx(r)
	defer cancel()

	o, err := op(ctx, requester, id)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderDTO(o))
}

func (h *LedgerHandler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.Ledger.CancelOrder)
}

func (h *LedgerHandler) shipOrder(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.Ledger.MarkShipped)
}

func (h *LedgerHandler) deliverOrder(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.Ledger.MarkDelivered)
}

func (h *LedgerHandler) disputeOrder(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.Ledger.OpenDispute)
}

type resolveReq struct {
	Outcome string `json:"outcome"`
}

func (h *LedgerHandler) resolveDispute(w http.ResponseWriter, r *http.Request) {
	admin, ok := h.account(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req resolveReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, fmt.Errorf("invalid json: %w", ledger.ErrInvalidInput))
		return
	}
	outcome, err := ledger.ParseResolution(req.Outcome)
	if err != nil {
		writeErr(w, err)
		return
	}

	ctx, cancel := reqCtx(r)
	defer cancel()

	o, err := h.Ledger.ResolveDispute(ctx, admin, id, outcome)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderDTO(o))
}

// ---- admin views ----

func (h *LedgerHandler) adminOrders(w http.ResponseWriter, r *http.Request) {
	requester, ok := h.account(w, r)
	if !ok {
		return
	}
	orders, err := h.Ledger.AllOrders(requester)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lo.Map(orders, func(o ledger.Order, _ int) orderDTO { return toOrderDTO(o) }))
}

func (h *LedgerHandler) adminDisputes(w http.ResponseWriter, r *http.Request) {
	requester, ok := h.account(w, r)
	if !ok {
		return
	}
	orders, err := h.Ledger.DisputedOrders(requester)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lo.Map(orders, func(o ledger.Order, _ int) orderDTO { return toOrderDTO(o) }))
}

// ---- balances ----

type balanceResp struct {
	Account string `json:"account"`
	Balance int64  `json:"balance"`
}

func (h *LedgerHandler) getBalance(w http.ResponseWriter, r *http.Request) {
	acct := chi.URLParam(r, "account")
	writeJSON(w, http.StatusOK, balanceResp{Account: acct, Balance: h.Ledger.Balance(acct)})
}

package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/LTOFFICIALUK/PolyTrade-sub000/internal/domain"
)

// OrderBuilder signs orders without submitting them.
type OrderBuilder interface {
	BuildSignedOrder(ctx context.Context, intent domain.OrderIntent) (domain.SignedOrder, error)
}

// OrderService submits and tracks orders.
type OrderService interface {
	PlaceOrder(ctx context.Context, intent domain.OrderIntent) (domain.OrderRecord, error)
	CancelOrder(ctx context.Context, id string) error
	GetOrder(ctx context.Context, id string) (domain.OrderRecord, error)
	ListByMaker(ctx context.Context, maker string, opts domain.ListOpts) ([]domain.OrderRecord, error)
}

// MarketInfo resolves per-token exchange metadata.
type MarketInfo interface {
	NegRisk(ctx context.Context, tokenID string) (bool, error)
	TickSize(ctx context.Context, tokenID string) (decimal.Decimal, error)
}

// OrderHandler serves order signing and submission.
type OrderHandler struct {
	builder OrderBuilder
	orders  OrderService
	markets MarketInfo
	logger  *slog.Logger
}

// NewOrderHandler creates an OrderHandler. markets may be nil, in which
// case resolveMarket requests are rejected.
func NewOrderHandler(builder OrderBuilder, orders OrderService, markets MarketInfo, logger *slog.Logger) *OrderHandler {
	return &OrderHandler{builder: builder, orders: orders, markets: markets, logger: logger}
}

// orderRequest is an OrderIntent plus an opt-in market lookup that fills
// negRisk and tickSize from the exchange.
type orderRequest struct {
	domain.OrderIntent
	ResolveMarket bool `json:"resolveMarket,omitempty"`
}

// orderResponse is the JSON view of an OrderRecord.
type orderResponse struct {
	ID     string             `json:"id"`
	Order  domain.SignedOrder `json:"order"`
	Result domain.OrderResult `json:"result"`
}

func toOrderResponse(rec domain.OrderRecord) orderResponse {
	return orderResponse{ID: rec.ID, Order: rec.Order, Result: rec.Result}
}

func (h *OrderHandler) intent(w http.ResponseWriter, r *http.Request) (domain.OrderIntent, error) {
	var req orderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return domain.OrderIntent{}, err
	}
	in := req.OrderIntent
	if !req.ResolveMarket {
		return in, nil
	}
	if h.markets == nil {
		return in, domain.InvalidField("resolveMarket", "market lookup is not configured")
	}

	negRisk, err := h.markets.NegRisk(r.Context(), in.TokenID)
	if err != nil {
		return in, err
	}
	tick, err := h.markets.TickSize(r.Context(), in.TokenID)
	if err != nil {
		return in, err
	}
	in.NegRisk = negRisk
	in.TickSize = tick
	return in, nil
}

// SignOrder returns a signed order without submitting it.
// POST /api/orders/sign
func (h *OrderHandler) SignOrder(w http.ResponseWriter, r *http.Request) {
	in, err := h.intent(w, r)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	order, err := h.builder.BuildSignedOrder(r.Context(), in)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

// PlaceOrder signs and submits an order.
// POST /api/orders
func (h *OrderHandler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	in, err := h.intent(w, r)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	rec, err := h.orders.PlaceOrder(r.Context(), in)
	if err != nil {
		if rec.ID != "" && rec.Result.Status == domain.OrderStatusRejected {
			writeJSON(w, http.StatusUnprocessableEntity, toOrderResponse(rec))
			return
		}
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, toOrderResponse(rec))
}

// ListOrders returns stored orders for a maker.
// GET /api/orders?maker=0x...&limit=50&offset=0
func (h *OrderHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	maker := r.URL.Query().Get("maker")
	if maker == "" {
		writeError(w, http.StatusBadRequest, "maker query parameter required")
		return
	}
	recs, err := h.orders.ListByMaker(r.Context(), maker, parseListOpts(r))
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	out := make([]orderResponse, 0, len(recs))
	for _, rec := range recs {
		out = append(out, toOrderResponse(rec))
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": out})
}

// GetOrder returns one stored order.
// GET /api/orders/{id}
func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	rec, err := h.orders.GetOrder(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(rec))
}

// CancelOrder cancels a stored order on the exchange.
// DELETE /api/orders/{id}
func (h *OrderHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.orders.CancelOrder(r.Context(), id); err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": string(domain.OrderStatusCanceled), "id": id})
}

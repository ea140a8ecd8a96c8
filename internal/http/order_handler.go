package httpapi

import (
	"context"
	"net/http"

	"github.com/antonio-torres-castro/comercial-elroblev2-sub000/internal/checkout"
	"github.com/antonio-torres-castro/comercial-elroblev2-sub000/internal/middleware"
	"github.com/antonio-torres-castro/comercial-elroblev2-sub000/internal/order"
	"github.com/antonio-torres-castro/comercial-elroblev2-sub000/internal/pricing"
)

type checkoutPreview struct {
	pricing.Totals
	StalePolicy checkout.StalePolicy `json:"stalePolicy"`
	// CanPlaceOrder is false when the cart is empty or blocked by stale lines.
	CanPlaceOrder bool `json:"canPlaceOrder"`
}

func (h *Handler) PreviewCheckout(w http.ResponseWriter, r *http.Request) {
	t, err := h.checkout.Preview(r.Context(), sessionID(r))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	policy := h.checkout.Policy()
	writeJSON(w, http.StatusOK, checkoutPreview{
		Totals:        t,
		StalePolicy:   policy,
		CanPlaceOrder: !t.IsEmpty() && (policy != checkout.StaleBlock || len(t.Stale) == 0),
	})
}

func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var form checkout.Form
	if !decodeJSON(w, r, &form) {
		return
	}
	o, err := h.checkout.PlaceOrder(r.Context(), sessionID(r), form)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, o)
}

func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.ListBySession(r.Context(), sessionID(r))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if orders == nil {
		orders = []order.Order{}
	}
	writeJSON(w, http.StatusOK, orders)
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID, ok := orderIDParam(w, r)
	if !ok {
		return
	}
	o, ok := h.sessionOrder(w, r, orderID)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, o)
}

// OrderUpdates streams payment status changes for the order over a websocket.
func (h *Handler) OrderUpdates(w http.ResponseWriter, r *http.Request) {
	orderID, ok := orderIDParam(w, r)
	if !ok {
		return
	}
	o, ok := h.sessionOrder(w, r, orderID)
	if !ok {
		return
	}
	h.hub.ServeWS(w, r, o.ID)
}

// sessionOrder loads an order owned by the caller's session. Orders of other
// sessions are reported as missing.
func (h *Handler) sessionOrder(w http.ResponseWriter, r *http.Request, orderID string) (*order.Order, bool) {
	o, err := h.loadOrder(r.Context(), orderID, sessionID(r))
	if err != nil {
		h.writeServiceError(w, r, err)
		return nil, false
	}
	if o == nil {
		middleware.WriteError(w, r, http.StatusNotFound, "order not found")
		return nil, false
	}
	return o, true
}

func (h *Handler) loadOrder(ctx context.Context, orderID, session string) (*order.Order, error) {
	o, err := h.orders.GetByID(ctx, orderID)
	if err != nil || o == nil {
		return nil, err
	}
	if o.SessionID != session {
		return nil, nil
	}
	return o, nil
}

package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/antonio-torres-castro/comercial-elroblev2-sub000/internal/middleware"
	"github.com/antonio-torres-castro/comercial-elroblev2-sub000/internal/payment"
)

func (h *Handler) ListPayments(w http.ResponseWriter, r *http.Request) {
	orderID, ok := orderIDParam(w, r)
	if !ok {
		return
	}
	o, ok := h.sessionOrder(w, r, orderID)
	if !ok {
		return
	}
	payments, err := h.payments.List(r.Context(), o.ID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if payments == nil {
		payments = []payment.Payment{}
	}
	writeJSON(w, http.StatusOK, payments)
}

type startPaymentRequest struct {
	Method         string `json:"method"`
	PickupLocation string `json:"pickupLocation"`
}

func (h *Handler) StartPayment(w http.ResponseWriter, r *http.Request) {
	orderID, ok := orderIDParam(w, r)
	if !ok {
		return
	}
	o, ok := h.sessionOrder(w, r, orderID)
	if !ok {
		return
	}
	var req startPaymentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	method, err := payment.ParseMethod(req.Method)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	p, err := h.payments.Start(r.Context(), o.ID, method, req.PickupLocation)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// TransbankReturn is where the gateway sends the buyer back. token_ws means the
// transaction must be committed; TBK_TOKEN alone means the buyer cancelled.
func (h *Handler) TransbankReturn(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimSpace(r.FormValue("token_ws"))
	aborted := strings.TrimSpace(r.FormValue("TBK_TOKEN"))

	var (
		p   *payment.Payment
		err error
	)
	switch {
	case token != "":
		p, err = h.payments.ConfirmGateway(r.Context(), token)
	case aborted != "":
		p, err = h.payments.AbortGateway(r.Context(), aborted)
	default:
		middleware.WriteError(w, r, http.StatusBadRequest, "missing token_ws")
		return
	}

	// a reload of the return page must not look like an error to the buyer
	if errors.Is(err, payment.ErrTerminal) && p != nil {
		writeJSON(w, http.StatusOK, p)
		return
	}
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

type simulateRequest struct {
	Result string `json:"result"`
}

func (h *Handler) SimulatePayment(w http.ResponseWriter, r *http.Request) {
	paymentID, ok := paymentIDParam(w, r)
	if !ok {
		return
	}
	var req simulateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	var paid bool
	switch strings.ToLower(strings.TrimSpace(req.Result)) {
	case "paid":
		paid = true
	case "failed":
	default:
		middleware.WriteError(w, r, http.StatusBadRequest, `result must be "paid" or "failed"`)
		return
	}

	existing, err := h.payments.Get(r.Context(), paymentID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if _, ok := h.sessionOrder(w, r, existing.OrderID); !ok {
		return
	}

	p, err := h.payments.Simulate(r.Context(), existing.ID, paid)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

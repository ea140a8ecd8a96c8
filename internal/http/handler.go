package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/antonio-torres-castro/comercial-elroblev2-sub000/internal/cart"
	"github.com/antonio-torres-castro/comercial-elroblev2-sub000/internal/catalog"
	"github.com/antonio-torres-castro/comercial-elroblev2-sub000/internal/checkout"
	"github.com/antonio-torres-castro/comercial-elroblev2-sub000/internal/coupon"
	"github.com/antonio-torres-castro/comercial-elroblev2-sub000/internal/middleware"
	"github.com/antonio-torres-castro/comercial-elroblev2-sub000/internal/notify"
	"github.com/antonio-torres-castro/comercial-elroblev2-sub000/internal/order"
	"github.com/antonio-torres-castro/comercial-elroblev2-sub000/internal/payment"
)

const maxBodyBytes = 64 << 10

type Handler struct {
	logger   *log.Logger
	catalog  catalog.Repository
	carts    *cart.Service
	checkout *checkout.Service
	orders   order.Repository
	payments *payment.Service
	hub      *notify.Hub
}

func NewHandler(d Deps) *Handler {
	logger := d.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Handler{
		logger:   logger,
		catalog:  d.Catalog,
		carts:    d.Carts,
		checkout: d.Checkout,
		orders:   d.Orders,
		payments: d.Payments,
		hub:      d.Hub,
	}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": "mall-service",
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		middleware.WriteError(w, r, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func productIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "productId"), 10, 64)
	if err != nil || id <= 0 {
		middleware.WriteError(w, r, http.StatusBadRequest, "invalid product id")
		return 0, false
	}
	return id, true
}

// uuidParam reads a uuid path parameter. Anything that is not a uuid cannot
// name a row, so it is answered as missing before reaching the database.
func uuidParam(w http.ResponseWriter, r *http.Request, name, notFound string) (string, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		middleware.WriteError(w, r, http.StatusNotFound, notFound)
		return "", false
	}
	return id.String(), true
}

func orderIDParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	return uuidParam(w, r, "orderId", "order not found")
}

func paymentIDParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	return uuidParam(w, r, "paymentId", "payment not found")
}

func sessionID(r *http.Request) string {
	return middleware.SessionIDFromContext(r.Context())
}

// writeServiceError maps domain errors to HTTP responses. Anything unrecognised
// is logged and reported as a 500 without details.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	cid := middleware.CorrelationIDFromContext(r.Context())

	var verr *checkout.ValidationError
	if errors.As(err, &verr) {
		middleware.WriteErrorBody(w, http.StatusUnprocessableEntity, middleware.ErrorResponse{
			Error:         "validation failed",
			CorrelationID: cid,
			Fields:        verr.Fields,
		})
		return
	}

	var stale *checkout.StaleItemsError
	if errors.As(err, &stale) {
		ids := make([]string, 0, len(stale.ProductIDs))
		for _, id := range stale.ProductIDs {
			ids = append(ids, strconv.FormatInt(id, 10))
		}
		middleware.WriteErrorBody(w, http.StatusConflict, middleware.ErrorResponse{
			Error:         "some products in your cart are no longer available; remove them to continue",
			CorrelationID: cid,
			ProductIDs:    ids,
		})
		return
	}

	switch {
	case coupon.IsRejection(err):
		middleware.WriteError(w, r, http.StatusUnprocessableEntity, rejectionMessage(err))
	case errors.Is(err, checkout.ErrEmptyCart):
		middleware.WriteError(w, r, http.StatusConflict, "cart is empty")
	case errors.Is(err, order.ErrCouponExhausted):
		middleware.WriteError(w, r, http.StatusConflict, "coupon usage limit reached")
	case errors.Is(err, payment.ErrAlreadyPaid):
		middleware.WriteError(w, r, http.StatusConflict, "order is already paid")
	case errors.Is(err, payment.ErrTerminal):
		middleware.WriteError(w, r, http.StatusConflict, "payment is already settled")
	case errors.Is(err, payment.ErrInvalidMethod):
		middleware.WriteError(w, r, http.StatusBadRequest, "invalid payment method")
	case errors.Is(err, payment.ErrSimulationDisabled):
		middleware.WriteError(w, r, http.StatusNotFound, "not found")
	case errors.Is(err, catalog.ErrNotFound):
		middleware.WriteError(w, r, http.StatusNotFound, "not found")
	case errors.Is(err, order.ErrNotFound):
		middleware.WriteError(w, r, http.StatusNotFound, "order not found")
	case errors.Is(err, payment.ErrNotFound):
		middleware.WriteError(w, r, http.StatusNotFound, "payment not found")
	case errors.Is(err, cart.ErrItemNotInCart):
		middleware.WriteError(w, r, http.StatusNotFound, "item not in cart")
	case errors.Is(err, cart.ErrQuantityLimit):
		middleware.WriteError(w, r, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, cart.ErrMissingSession):
		middleware.WriteError(w, r, http.StatusBadRequest, "missing session")
	case errors.Is(err, payment.ErrGateway):
		h.logger.Printf("gateway error correlation_id=%s: %v", cid, err)
		middleware.WriteError(w, r, http.StatusBadGateway, "payment provider unavailable, please retry")
	default:
		h.logger.Printf("%s %s correlation_id=%s: %v", r.Method, r.URL.Path, cid, err)
		middleware.WriteError(w, r, http.StatusInternalServerError, "internal error")
	}
}

func rejectionMessage(err error) string {
	switch {
	case errors.Is(err, coupon.ErrNotFound):
		return "coupon not found"
	case errors.Is(err, coupon.ErrInactive):
		return "coupon is not active"
	case errors.Is(err, coupon.ErrExpired):
		return "coupon has expired"
	case errors.Is(err, coupon.ErrMinOrder):
		return "order subtotal below coupon minimum"
	case errors.Is(err, coupon.ErrUsageLimit):
		return "coupon usage limit reached"
	}
	return "invalid coupon"
}

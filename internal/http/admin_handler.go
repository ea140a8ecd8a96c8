package httpapi

import (
	"net/http"

	"github.com/antonio-torres-castro/comercial-elroblev2-sub000/internal/catalog"
	"github.com/antonio-torres-castro/comercial-elroblev2-sub000/internal/middleware"
)

type setStockRequest struct {
	StockQuantity *int `json:"stockQuantity"`
}

func (h *Handler) SetStock(w http.ResponseWriter, r *http.Request) {
	productID, ok := productIDParam(w, r)
	if !ok {
		return
	}
	var req setStockRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.StockQuantity == nil || *req.StockQuantity < 0 {
		middleware.WriteError(w, r, http.StatusBadRequest, "stockQuantity must be zero or more")
		return
	}
	if err := h.catalog.SetStock(r.Context(), productID, *req.StockQuantity); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.logger.Printf("admin %q set stock of product %d to %d", middleware.AdminSubjectFromContext(r.Context()), productID, *req.StockQuantity)

	p, err := h.catalog.GetProduct(r.Context(), productID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) LowStock(w http.ResponseWriter, r *http.Request) {
	products, err := h.catalog.ListLowStock(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if products == nil {
		products = []catalog.Product{}
	}
	writeJSON(w, http.StatusOK, products)
}

func (h *Handler) AdminMarkPaid(w http.ResponseWriter, r *http.Request) {
	paymentID, ok := paymentIDParam(w, r)
	if !ok {
		return
	}
	p, err := h.payments.MarkPaid(r.Context(), paymentID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

type markFailedRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) AdminMarkFailed(w http.ResponseWriter, r *http.Request) {
	paymentID, ok := paymentIDParam(w, r)
	if !ok {
		return
	}
	var req markFailedRequest
	if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
		return
	}
	p, err := h.payments.MarkFailed(r.Context(), paymentID, req.Reason)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

package httpapi

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/antonio-torres-castro/comercial-elroblev2-sub000/internal/catalog"
	"github.com/antonio-torres-castro/comercial-elroblev2-sub000/internal/middleware"
)

type storeProductsResponse struct {
	Store    catalog.Store     `json:"store"`
	Products []catalog.Product `json:"products"`
}

func (h *Handler) StoreProducts(w http.ResponseWriter, r *http.Request) {
	store, err := h.catalog.GetStoreBySlug(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	products, err := h.catalog.ListStoreProducts(r.Context(), store.ID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if products == nil {
		products = []catalog.Product{}
	}
	writeJSON(w, http.StatusOK, storeProductsResponse{Store: store, Products: products})
}

func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	h.writeCartView(w, r)
}

// writeCartView answers every cart call with the freshly priced cart.
func (h *Handler) writeCartView(w http.ResponseWriter, r *http.Request) {
	t, err := h.checkout.View(r.Context(), sessionID(r))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

type addItemRequest struct {
	ProductID int64 `json:"productId"`
	Quantity  int   `json:"quantity"`
}

func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ProductID <= 0 {
		middleware.WriteError(w, r, http.StatusBadRequest, "productId is required")
		return
	}
	if _, err := h.carts.Add(r.Context(), sessionID(r), req.ProductID, req.Quantity); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeCartView(w, r)
}

type updateItemRequest struct {
	Quantity int `json:"quantity"`
}

func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	productID, ok := productIDParam(w, r)
	if !ok {
		return
	}
	var req updateItemRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if _, err := h.carts.Update(r.Context(), sessionID(r), productID, req.Quantity); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeCartView(w, r)
}

func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	productID, ok := productIDParam(w, r)
	if !ok {
		return
	}
	if _, err := h.carts.Remove(r.Context(), sessionID(r), productID); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeCartView(w, r)
}

type selectShippingRequest struct {
	ShippingMethodID int64 `json:"shippingMethodId"`
}

func (h *Handler) SelectShipping(w http.ResponseWriter, r *http.Request) {
	productID, ok := productIDParam(w, r)
	if !ok {
		return
	}
	var req selectShippingRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if _, err := h.carts.SelectShipping(r.Context(), sessionID(r), productID, req.ShippingMethodID); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeCartView(w, r)
}

type deliveryRequest struct {
	Address string `json:"address"`
	City    string `json:"city"`
}

func (h *Handler) SetDelivery(w http.ResponseWriter, r *http.Request) {
	productID, ok := productIDParam(w, r)
	if !ok {
		return
	}
	var req deliveryRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if _, err := h.carts.SetDelivery(r.Context(), sessionID(r), productID, req.Address, req.City); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeCartView(w, r)
}

type couponRequest struct {
	Code string `json:"code"`
}

func (h *Handler) ApplyCoupon(w http.ResponseWriter, r *http.Request) {
	var req couponRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Code) == "" {
		middleware.WriteError(w, r, http.StatusBadRequest, "code is required")
		return
	}
	t, err := h.checkout.ApplyCoupon(r.Context(), sessionID(r), req.Code)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *Handler) RemoveCoupon(w http.ResponseWriter, r *http.Request) {
	t, err := h.checkout.RemoveCoupon(r.Context(), sessionID(r))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	if err := h.carts.Clear(r.Context(), sessionID(r)); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeCartView(w, r)
}

package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/jx"
)

// GetCart returns the priced cart. ?coupon=CODE previews a coupon without
// storing it.
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	h.renderCart(w, r, r.URL.Query().Get("coupon"))
}

// AddCartItem adds units of a product to the cart.
func (h *Handler) AddCartItem(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	if err := h.decodeBody(r, &req); err != nil {
		fail(w, r, err)
		return
	}
	if err := h.carts.Add(r.Context(), shopperID(r), req.ProductID, req.Quantity); err != nil {
		fail(w, r, err)
		return
	}
	h.renderCart(w, r, "")
}

// SetCartItem replaces a line's quantity; zero removes the line.
func (h *Handler) SetCartItem(w http.ResponseWriter, r *http.Request) {
	var req setQuantityRequest
	if err := h.decodeBody(r, &req); err != nil {
		fail(w, r, err)
		return
	}
	if err := h.carts.SetQuantity(r.Context(), shopperID(r), chi.URLParam(r, "productId"), req.Quantity); err != nil {
		fail(w, r, err)
		return
	}
	h.renderCart(w, r, "")
}

// RemoveCartItem deletes a line.
func (h *Handler) RemoveCartItem(w http.ResponseWriter, r *http.Request) {
	if err := h.carts.Remove(r.Context(), shopperID(r), chi.URLParam(r, "productId")); err != nil {
		fail(w, r, err)
		return
	}
	h.renderCart(w, r, "")
}

func (h *Handler) renderCart(w http.ResponseWriter, r *http.Request, couponCode string) {
	v, err := h.carts.View(r.Context(), shopperID(r), couponCode)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { h.encodeCartView(e, v) })
}

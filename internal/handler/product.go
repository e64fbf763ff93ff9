package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/jx"

	"github.com/thriftx/storefront/internal/domain/product"
)

// ListProducts returns public listings. Hidden listings are never public;
// without a status filter only available ones are returned.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := product.Filter{
		Category: q.Get("category"),
		SellerID: q.Get("seller"),
		Status:   product.StatusAvailable,
	}
	if s := q.Get("status"); s != "" {
		st, err := product.ParseStatus(s)
		if err != nil || st == product.StatusHidden {
			writeError(w, http.StatusBadRequest, "status must be available or sold")
			return
		}
		f.Status = st
	}

	ps, err := h.products.List(r.Context(), f)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { h.encodeProducts(e, ps) })
}

// GetProduct returns a single public listing.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.products.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		fail(w, r, err)
		return
	}
	if p.Status == product.StatusHidden {
		fail(w, r, product.ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { h.encodeProduct(e, *p) })
}

// ListSellerProducts returns every listing of the authenticated seller,
// hidden ones included.
func (h *Handler) ListSellerProducts(w http.ResponseWriter, r *http.Request) {
	ps, err := h.products.List(r.Context(), product.Filter{SellerID: sellerID(r)})
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { h.encodeProducts(e, ps) })
}

// CreateSellerProduct publishes a new listing for the authenticated seller.
func (h *Handler) CreateSellerProduct(w http.ResponseWriter, r *http.Request) {
	var req createProductRequest
	if err := h.decodeBody(r, &req); err != nil {
		fail(w, r, err)
		return
	}

	p, err := h.products.Create(r.Context(), product.CreateParams{
		SellerID:  sellerID(r),
		Name:      req.Name,
		Brand:     req.Brand,
		Size:      req.Size,
		Condition: req.Condition,
		Category:  req.Category,
		Price:     req.Price,
		Stock:     req.Stock,
		Image: product.Image{
			Thumbnail: req.Image.Thumbnail,
			Mobile:    req.Image.Mobile,
			Tablet:    req.Image.Tablet,
			Desktop:   req.Image.Desktop,
		},
	})
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { h.encodeProduct(e, *p) })
}

// SetProductStatus lets an admin hide, restore or mark a listing sold.
func (h *Handler) SetProductStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := h.decodeBody(r, &req); err != nil {
		fail(w, r, err)
		return
	}
	st, err := product.ParseStatus(req.Status)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.products.SetStatus(r.Context(), chi.URLParam(r, "id"), st); err != nil {
		fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

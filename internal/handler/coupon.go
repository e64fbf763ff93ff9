package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/jx"
)

// CheckCoupon previews a coupon against a subtotal. Ineligible coupons are
// a 200 with eligible=false and a reason.
func (h *Handler) CheckCoupon(w http.ResponseWriter, r *http.Request) {
	var req couponCheckRequest
	if err := h.decodeBody(r, &req); err != nil {
		fail(w, r, err)
		return
	}
	p, err := h.coupons.Preview(r.Context(), chi.URLParam(r, "code"), req.Subtotal)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodePreview(e, p) })
}

func (h *Handler) ListCoupons(w http.ResponseWriter, r *http.Request) {
	cs, err := h.coupons.List(r.Context())
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ArrStart()
		for i := range cs {
			encodeCoupon(e, &cs[i])
		}
		e.ArrEnd()
	})
}

func (h *Handler) CreateCoupon(w http.ResponseWriter, r *http.Request) {
	var req createCouponRequest
	if err := h.decodeBody(r, &req); err != nil {
		fail(w, r, err)
		return
	}
	c, err := h.coupons.Create(r.Context(), req.params())
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { encodeCoupon(e, c) })
}

func (h *Handler) EnableCoupon(w http.ResponseWriter, r *http.Request) {
	h.noContent(w, r, h.coupons.Enable(r.Context(), chi.URLParam(r, "code")))
}

func (h *Handler) DisableCoupon(w http.ResponseWriter, r *http.Request) {
	h.noContent(w, r, h.coupons.Disable(r.Context(), chi.URLParam(r, "code")))
}

func (h *Handler) DeleteCoupon(w http.ResponseWriter, r *http.Request) {
	h.noContent(w, r, h.coupons.Delete(r.Context(), chi.URLParam(r, "code")))
}

func (h *Handler) noContent(w http.ResponseWriter, r *http.Request, err error) {
	if err != nil {
		fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

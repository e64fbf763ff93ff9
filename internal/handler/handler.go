// Package handler exposes the storefront over HTTP.
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/thriftx/storefront/internal/domain/auth"
	"github.com/thriftx/storefront/internal/domain/cart"
	"github.com/thriftx/storefront/internal/domain/coupon"
	"github.com/thriftx/storefront/internal/domain/order"
	"github.com/thriftx/storefront/internal/domain/product"
	"github.com/thriftx/storefront/internal/domain/report"
)

// HandlerConfig holds non-dependency configuration for the Handler.
type HandlerConfig struct {
	// ImageBaseURL is prepended to relative image paths in product responses.
	// When empty, image paths are returned as stored in the database.
	ImageBaseURL string
}

// Services groups the domain services the Handler delegates to.
type Services struct {
	Products *product.Service
	Carts    *cart.Service
	Coupons  *coupon.Service
	Orders   *order.Service
	Reports  *report.Service
	Auth     *auth.Authenticator
}

// Handler serves the shopper, seller and admin APIs.
type Handler struct {
	products     *product.Service
	carts        *cart.Service
	coupons      *coupon.Service
	orders       *order.Service
	reports      *report.Service
	auth         *auth.Authenticator
	validate     *validator.Validate
	imageBaseURL string
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(cfg HandlerConfig, s Services) *Handler {
	return &Handler{
		products:     s.Products,
		carts:        s.Carts,
		coupons:      s.Coupons,
		orders:       s.Orders,
		reports:      s.Reports,
		auth:         s.Auth,
		validate:     validator.New(validator.WithRequiredStructEnabled()),
		imageBaseURL: cfg.ImageBaseURL,
	}
}

// Routes mounts every API route on r.
func (h *Handler) Routes(r chi.Router) {
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/products", h.ListProducts)
		r.Get("/products/{id}", h.GetProduct)

		r.Get("/cart", h.GetCart)
		r.Post("/cart/items", h.AddCartItem)
		r.Put("/cart/items/{productId}", h.SetCartItem)
		r.Delete("/cart/items/{productId}", h.RemoveCartItem)

		r.Post("/coupons/{code}/check", h.CheckCoupon)
		r.Post("/checkout", h.Checkout)
		r.Get("/orders", h.ListOrders)
		r.Get("/orders/{id}", h.GetOrder)

		r.Route("/seller", func(r chi.Router) {
			r.Use(h.RequireScope(auth.ScopeSeller))
			r.Get("/products", h.ListSellerProducts)
			r.Post("/products", h.CreateSellerProduct)
			r.Get("/summary", h.SellerSummary)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(h.RequireScope(auth.ScopeAdmin))
			r.Get("/coupons", h.ListCoupons)
			r.Post("/coupons", h.CreateCoupon)
			r.Post("/coupons/{code}/enable", h.EnableCoupon)
			r.Post("/coupons/{code}/disable", h.DisableCoupon)
			r.Delete("/coupons/{code}", h.DeleteCoupon)
			r.Patch("/orders/{id}", h.UpdateOrderStatus)
			r.Put("/products/{id}/status", h.SetProductStatus)
			r.Get("/reports/summary", h.ReportSummary)
		})
	})
}

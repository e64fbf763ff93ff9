package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/thriftx/storefront/internal/domain/cart"
	"github.com/thriftx/storefront/internal/domain/coupon"
	"github.com/thriftx/storefront/internal/domain/order"
	"github.com/thriftx/storefront/internal/domain/pricing"
	"github.com/thriftx/storefront/internal/domain/product"
	"github.com/thriftx/storefront/internal/domain/report"
	"github.com/thriftx/storefront/pkg/httpmiddleware"
)

func writeError(w http.ResponseWriter, status int, message string) {
	httpmiddleware.WriteError(w, status, message)
}

var sentinelStatus = []struct {
	err    error
	status int
}{
	{cart.ErrShopperRequired, http.StatusUnauthorized},
	{cart.ErrInvalidQuantity, http.StatusUnprocessableEntity},
	{cart.ErrLineNotFound, http.StatusNotFound},
	{cart.ErrProductUnavailable, http.StatusConflict},
	{product.ErrNotFound, http.StatusNotFound},
	{product.ErrInvalidListing, http.StatusUnprocessableEntity},
	{coupon.ErrNotFound, http.StatusNotFound},
	{coupon.ErrAlreadyExists, http.StatusConflict},
	{coupon.ErrInvalidCoupon, http.StatusUnprocessableEntity},
	{coupon.ErrExpired, http.StatusConflict},
	{order.ErrNotFound, http.StatusNotFound},
	{order.ErrEmptyCart, http.StatusUnprocessableEntity},
	{order.ErrUnknownCoupon, http.StatusUnprocessableEntity},
	{order.ErrFallbackAlreadyUsed, http.StatusConflict},
	{order.ErrOutOfStock, http.StatusConflict},
	{order.ErrInvalidStatus, http.StatusConflict},
	{report.ErrInvalidPeriod, http.StatusBadRequest},
}

// fail maps a domain error to a status code and writes the error body.
// Unmapped errors are logged and reported as 500 without detail.
func fail(w http.ResponseWriter, r *http.Request, err error) {
	var (
		badReq    *badRequest
		pnfErr    *order.ProductNotFoundError
		puErr     *order.ProductUnavailableError
		valErr    *pricing.ValidationError
		configErr *pricing.ConfigurationError
	)
	switch {
	case errors.As(err, &badReq):
		writeError(w, http.StatusBadRequest, badReq.msg)
		return
	case errors.As(err, &pnfErr):
		writeError(w, http.StatusUnprocessableEntity, pnfErr.Error())
		return
	case errors.As(err, &puErr):
		writeError(w, http.StatusConflict, puErr.Error())
		return
	case errors.As(err, &valErr):
		writeError(w, http.StatusUnprocessableEntity, valErr.Error())
		return
	case errors.As(err, &configErr):
		zctx.From(r.Context()).Error("Coupon misconfigured",
			zap.String("coupon", configErr.Code),
			zap.String("discount_type", configErr.DiscountType),
		)
		writeError(w, http.StatusInternalServerError, "coupon is misconfigured")
		return
	}

	for _, s := range sentinelStatus {
		if errors.Is(err, s.err) {
			writeError(w, s.status, err.Error())
			return
		}
	}

	zctx.From(r.Context()).Error("Request failed", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal error")
}

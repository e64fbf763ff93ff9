package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/thriftx/storefront/internal/domain/auth"
	"github.com/thriftx/storefront/pkg/httpmiddleware"
)

const (
	apiKeyHeader  = "api_key"
	shopperHeader = httpmiddleware.ShopperHeader
)

// RequireScope authenticates the api_key header and rejects keys without
// scope. The key is stored on the request context for handlers.
func (h *Handler) RequireScope(scope auth.Scope) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := r.Header.Get(apiKeyHeader)
			if raw == "" {
				writeError(w, http.StatusUnauthorized, "api key required")
				return
			}

			info, err := h.auth.Authenticate(r.Context(), raw)
			if errors.Is(err, auth.ErrUnauthorized) {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			if err != nil {
				zctx.From(r.Context()).Error("Authenticate api key", zap.Error(err))
				writeError(w, http.StatusInternalServerError, "internal error")
				return
			}
			if !info.HasScope(scope) {
				writeError(w, http.StatusForbidden, "forbidden")
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.WithKey(r.Context(), info)))
		})
	}
}

// shopperID returns the shopper identity set by the upstream auth provider.
func shopperID(r *http.Request) string {
	return r.Header.Get(shopperHeader)
}

// sellerID returns the seller the authenticated key acts for.
func sellerID(r *http.Request) string {
	if k, ok := auth.KeyFrom(r.Context()); ok {
		return k.Name
	}
	return ""
}

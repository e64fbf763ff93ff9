package httpmiddleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

const (
	RequestIDHeader = "X-Request-ID"
	ShopperHeader   = "X-Shopper-ID"

	maxIdentityLen = 128
)

// Identity is who a request is for: its correlation id and, when the auth
// provider forwarded one, the shopper.
type Identity struct {
	RequestID string
	ShopperID string
}

type identityKey struct{}

// IdentityFrom returns the Identity recorded by Identify, or the zero value.
func IdentityFrom(ctx context.Context) Identity {
	id, _ := ctx.Value(identityKey{}).(Identity)
	return id
}

// Identify records the request Identity on the context and echoes the
// request id in X-Request-ID. A well-formed incoming X-Request-ID is kept,
// otherwise a UUID is generated. A malformed shopper header is not recorded;
// handlers still see it and reject it themselves.
func Identify() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := Identity{RequestID: r.Header.Get(RequestIDHeader)}
			if !wellFormed(id.RequestID) {
				id.RequestID = uuid.New().String()
			}
			if s := r.Header.Get(ShopperHeader); wellFormed(s) {
				id.ShopperID = s
			}

			w.Header().Set(RequestIDHeader, id.RequestID)
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), identityKey{}, id)))
		})
	}
}

// wellFormed accepts 1..128 bytes of printable ASCII, so header values can
// be logged verbatim.
func wellFormed(v string) bool {
	if v == "" || len(v) > maxIdentityLen {
		return false
	}
	for i := range len(v) {
		if v[i] < ' ' || v[i] > '~' {
			return false
		}
	}
	return true
}

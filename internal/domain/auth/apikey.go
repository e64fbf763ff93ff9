// Package auth authenticates operator API keys.
package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"

	"github.com/go-faster/errors"
)

var (
	ErrNotFound     = errors.New("api key not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
)

// Scope grants access to a group of operator endpoints.
type Scope string

const (
	ScopeAdmin  Scope = "admin"
	ScopeSeller Scope = "seller"
)

// APIKeyInfo holds the identity and permission data for a validated API key.
// For seller keys Name is the seller id.
type APIKeyInfo struct {
	ID      string
	KeyHash string
	Name    string
	Scopes  []Scope
}

// HasScope reports whether the key was granted s. Admin keys hold every scope.
func (k *APIKeyInfo) HasScope(s Scope) bool {
	for _, have := range k.Scopes {
		if have == s || have == ScopeAdmin {
			return true
		}
	}
	return false
}

// Repository provides lookup of API keys by their HMAC hash.
type Repository interface {
	FindByHash(ctx context.Context, hash string) (*APIKeyInfo, error)
}

// HashKey returns the hex HMAC-SHA256 of raw under pepper. Only hashes are
// stored.
func HashKey(pepper []byte, raw string) string {
	return hex.EncodeToString(sum(pepper, raw))
}

func sum(pepper []byte, raw string) []byte {
	mac := hmac.New(sha256.New, pepper)
	mac.Write([]byte(raw))
	return mac.Sum(nil)
}

// Authenticator verifies raw API keys.
type Authenticator struct {
	apikeys Repository
	pepper  []byte
}

// NewAuthenticator creates an Authenticator with the given API key repository
// and HMAC pepper.
func NewAuthenticator(apikeys Repository, pepper []byte) *Authenticator {
	return &Authenticator{apikeys: apikeys, pepper: pepper}
}

// Authenticate resolves raw to an active key. Unknown keys and hash
// mismatches are reported as ErrUnauthorized; store failures are wrapped.
func (a *Authenticator) Authenticate(ctx context.Context, raw string) (*APIKeyInfo, error) {
	if raw == "" {
		return nil, ErrUnauthorized
	}
	hash := sum(a.pepper, raw)

	info, err := a.apikeys.FindByHash(ctx, hex.EncodeToString(hash))
	if errors.Is(err, ErrNotFound) {
		return nil, ErrUnauthorized
	}
	if err != nil {
		return nil, errors.Wrap(err, "find api key")
	}

	// The row is re-checked in constant time in case the store matched on
	// something other than the exact hash.
	stored, err := hex.DecodeString(info.KeyHash)
	if err != nil || subtle.ConstantTimeCompare(hash, stored) != 1 {
		return nil, ErrUnauthorized
	}
	return info, nil
}

type ctxKey struct{}

// WithKey stores an authenticated key in ctx.
func WithKey(ctx context.Context, k *APIKeyInfo) context.Context {
	return context.WithValue(ctx, ctxKey{}, k)
}

// KeyFrom returns the key stored by WithKey, if any.
func KeyFrom(ctx context.Context) (*APIKeyInfo, bool) {
	k, ok := ctx.Value(ctxKey{}).(*APIKeyInfo)
	return k, ok
}

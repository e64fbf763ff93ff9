// Package pricing computes cart price breakdowns.
//
// All monetary amounts are integer minor currency units. Computation is pure:
// every input, including the current time and the shopper's fallback state,
// is passed explicitly so identical inputs always yield identical output.
package pricing

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DiscountType enumerates the supported coupon discount strategies.
type DiscountType string

const (
	// DiscountPercent deducts a percentage (0-100) of the subtotal.
	DiscountPercent DiscountType = "percent"
	// DiscountFlat deducts a fixed amount capped at the subtotal.
	DiscountFlat DiscountType = "flat"
)

// ParseDiscountType resolves a stored or operator-supplied discount type to
// the closed DiscountType set. "percentage", "amount" and "fixed" are
// accepted as aliases.
func ParseDiscountType(s string) (DiscountType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "percent", "percentage":
		return DiscountPercent, nil
	case "flat", "amount", "fixed":
		return DiscountFlat, nil
	default:
		return "", &ConfigurationError{DiscountType: s}
	}
}

// CouponStatus is the operator-controlled lifecycle state of a coupon.
type CouponStatus string

const (
	StatusActive   CouponStatus = "active"
	StatusDisabled CouponStatus = "disabled"
	StatusExpired  CouponStatus = "expired"
)

// ParseCouponStatus resolves a status string, case-insensitively.
func ParseCouponStatus(s string) (CouponStatus, error) {
	switch st := CouponStatus(strings.ToLower(strings.TrimSpace(s))); st {
	case StatusActive, StatusDisabled, StatusExpired:
		return st, nil
	default:
		return "", &ValidationError{Field: "status", Message: "unknown coupon status " + s}
	}
}

// NormalizeCode returns the canonical form of a coupon code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ExpiryEndOfDay returns the last instant of the calendar day of t in UTC.
// A coupon expiring on a date stays usable for that whole day.
func ExpiryEndOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, time.UTC).Add(-time.Nanosecond)
}

// LineItem is a single cart line.
type LineItem struct {
	ProductID string
	UnitPrice int64
	Quantity  int
}

// Coupon is a discount rule from the coupon directory.
type Coupon struct {
	Code         string
	DiscountType DiscountType
	// DiscountValue is a percentage for DiscountPercent and an amount in minor
	// units for DiscountFlat.
	DiscountValue decimal.Decimal
	MinOrderValue int64
	Status        CouponStatus
	// ExpiresAt is the last instant the coupon is usable. Zero never expires.
	ExpiresAt time.Time
}

// Policy identifies which discount policy produced a breakdown's discount.
type Policy string

const (
	PolicyNone     Policy = "none"
	PolicyCoupon   Policy = "coupon"
	PolicyFallback Policy = "fallback"
)

// Breakdown is the result of pricing a cart.
type Breakdown struct {
	Subtotal    int64
	Discount    int64
	DeliveryFee int64
	Total       int64
	Policy      Policy
	// CouponCode is set only when Policy is PolicyCoupon.
	CouponCode string
}

// Input carries everything ComputeBreakdown needs.
type Input struct {
	Items []LineItem
	// Coupon is the applied coupon, nil when none.
	Coupon       *Coupon
	FallbackUsed bool
	Now          time.Time
}

// Rules holds the store-wide pricing constants.
type Rules struct {
	// DeliveryFee is charged on every non-empty cart.
	DeliveryFee int64
	// FallbackPercent is the one-time first-order discount.
	FallbackPercent int64
}

// DefaultRules returns the storefront's standard pricing constants.
func DefaultRules() Rules {
	return Rules{DeliveryFee: 15, FallbackPercent: 20}
}

// Validate checks that the rules themselves are usable.
func (r Rules) Validate() error {
	if r.DeliveryFee < 0 {
		return &ValidationError{Field: "deliveryFee", Message: "must not be negative"}
	}
	if r.FallbackPercent < 0 || r.FallbackPercent > 100 {
		return &ValidationError{Field: "fallbackPercent", Message: "must be between 0 and 100"}
	}
	return nil
}

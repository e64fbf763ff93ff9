package pricing

import "fmt"

// ValidationError reports a malformed line item or coupon. The record must be
// fixed upstream before pricing is retried.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// ConfigurationError reports a coupon carrying a discount type outside the
// supported set. It indicates a data integrity problem an operator must fix.
type ConfigurationError struct {
	Code         string
	DiscountType string
}

func (e *ConfigurationError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("unsupported discount type %q", e.DiscountType)
	}
	return fmt.Sprintf("coupon %s: unsupported discount type %q", e.Code, e.DiscountType)
}

// IneligibleReason explains why a coupon cannot be applied.
type IneligibleReason string

const (
	ReasonInactive     IneligibleReason = "inactive"
	ReasonExpired      IneligibleReason = "expired"
	ReasonBelowMinimum IneligibleReason = "below_minimum"
)

// IneligibleCouponError is the soft, user-facing outcome of an eligibility
// check. ComputeBreakdown never returns it.
type IneligibleCouponError struct {
	Code          string
	Reason        IneligibleReason
	MinOrderValue int64
}

func (e *IneligibleCouponError) Error() string {
	switch e.Reason {
	case ReasonExpired:
		return fmt.Sprintf("coupon %s has expired", e.Code)
	case ReasonBelowMinimum:
		return fmt.Sprintf("coupon %s requires a minimum order of %d", e.Code, e.MinOrderValue)
	default:
		return fmt.Sprintf("coupon %s is not active", e.Code)
	}
}

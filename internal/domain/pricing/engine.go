package pricing

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// ComputeBreakdown prices the input with DefaultRules.
func ComputeBreakdown(in Input) (Breakdown, error) {
	return DefaultRules().ComputeBreakdown(in)
}

// ComputeBreakdown prices a cart. Exactly one discount policy applies:
// an eligible coupon, else the unused fallback discount, else none.
// Ineligible coupons are ignored rather than reported; use CheckEligibility
// to tell the shopper why.
func (r Rules) ComputeBreakdown(in Input) (Breakdown, error) {
	if err := validateItems(in.Items); err != nil {
		return Breakdown{}, err
	}
	if in.Coupon != nil {
		if err := validateCoupon(in.Coupon); err != nil {
			return Breakdown{}, err
		}
	}
	if len(in.Items) == 0 {
		return Breakdown{Policy: PolicyNone}, nil
	}

	subtotal, err := Subtotal(in.Items)
	if err != nil {
		return Breakdown{}, err
	}

	b := Breakdown{
		Subtotal:    subtotal,
		DeliveryFee: r.DeliveryFee,
		Policy:      PolicyNone,
	}

	switch {
	case in.Coupon != nil && IsCouponEligible(*in.Coupon, subtotal, in.Now):
		b.Discount = couponDiscount(in.Coupon, subtotal)
		b.Policy = PolicyCoupon
		b.CouponCode = NormalizeCode(in.Coupon.Code)
	case !in.FallbackUsed:
		b.Discount = percentOf(subtotal, decimal.NewFromInt(r.FallbackPercent))
		b.Policy = PolicyFallback
	}

	b.Discount = min(b.Discount, subtotal)
	if subtotal-b.Discount > math.MaxInt64-b.DeliveryFee {
		return Breakdown{}, &ValidationError{Field: "items", Message: "total overflows"}
	}
	b.Total = subtotal - b.Discount + b.DeliveryFee
	return b, nil
}

// IsCouponEligible reports whether c can be applied to a cart of the given
// subtotal at time now.
func IsCouponEligible(c Coupon, subtotal int64, now time.Time) bool {
	return CheckEligibility(c, subtotal, now) == nil
}

// CheckEligibility is IsCouponEligible with a reason. It returns
// *IneligibleCouponError when the coupon cannot be applied.
func CheckEligibility(c Coupon, subtotal int64, now time.Time) error {
	code := NormalizeCode(c.Code)
	switch c.Status {
	case StatusActive:
	case StatusExpired:
		return &IneligibleCouponError{Code: code, Reason: ReasonExpired}
	default:
		return &IneligibleCouponError{Code: code, Reason: ReasonInactive}
	}
	if !c.ExpiresAt.IsZero() && now.After(c.ExpiresAt) {
		return &IneligibleCouponError{Code: code, Reason: ReasonExpired}
	}
	if subtotal < c.MinOrderValue {
		return &IneligibleCouponError{Code: code, Reason: ReasonBelowMinimum, MinOrderValue: c.MinOrderValue}
	}
	return nil
}

// CouponDiscount returns the discount c would grant on subtotal, ignoring
// eligibility.
func CouponDiscount(c Coupon, subtotal int64) (int64, error) {
	if err := validateCoupon(&c); err != nil {
		return 0, err
	}
	if subtotal < 0 {
		return 0, &ValidationError{Field: "subtotal", Message: "must not be negative"}
	}
	return min(couponDiscount(&c, subtotal), subtotal), nil
}

// Subtotal sums unit price times quantity over items.
func Subtotal(items []LineItem) (int64, error) {
	var sum int64
	for _, it := range items {
		if it.UnitPrice > 0 && int64(it.Quantity) > (math.MaxInt64-sum)/it.UnitPrice {
			return 0, &ValidationError{Field: "items", Message: "subtotal overflows"}
		}
		sum += it.UnitPrice * int64(it.Quantity)
	}
	return sum, nil
}

// couponDiscount expects a validated coupon.
func couponDiscount(c *Coupon, subtotal int64) int64 {
	if c.DiscountType == DiscountPercent {
		return percentOf(subtotal, c.DiscountValue)
	}
	return min(subtotal, c.DiscountValue.Floor().IntPart())
}

// percentOf returns floor(amount * pct / 100) without intermediate rounding.
func percentOf(amount int64, pct decimal.Decimal) int64 {
	q, _ := decimal.NewFromInt(amount).Mul(pct).QuoRem(hundred, 0)
	return q.IntPart()
}

func validateItems(items []LineItem) error {
	for _, it := range items {
		if it.UnitPrice < 0 {
			return &ValidationError{Field: "unitPrice", Message: "must not be negative for product " + it.ProductID}
		}
		if it.Quantity < 1 {
			return &ValidationError{Field: "quantity", Message: "must be at least 1 for product " + it.ProductID}
		}
	}
	return nil
}

func validateCoupon(c *Coupon) error {
	if c.DiscountValue.IsNegative() {
		return &ValidationError{Field: "discountValue", Message: "must not be negative"}
	}
	if c.MinOrderValue < 0 {
		return &ValidationError{Field: "minOrderValue", Message: "must not be negative"}
	}
	switch c.DiscountType {
	case DiscountPercent:
		if c.DiscountValue.GreaterThan(hundred) {
			return &ValidationError{Field: "discountValue", Message: "percentage must not exceed 100"}
		}
	case DiscountFlat:
	default:
		return &ConfigurationError{Code: NormalizeCode(c.Code), DiscountType: string(c.DiscountType)}
	}
	return nil
}

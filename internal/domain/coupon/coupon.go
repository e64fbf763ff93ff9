package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"

	"github.com/thriftx/storefront/internal/domain/pricing"
)

var (
	// ErrNotFound is returned when no coupon matches a code.
	ErrNotFound = errors.New("coupon not found")
	// ErrAlreadyExists is returned when creating a coupon whose code is taken.
	ErrAlreadyExists = errors.New("coupon code already exists")
	// ErrInvalidCoupon is returned when operator input cannot form a coupon.
	ErrInvalidCoupon = errors.New("invalid coupon")
)

// Coupon is a directory entry: the pricing rule plus operator metadata.
type Coupon struct {
	pricing.Coupon
	Description string
	CreatedAt   time.Time
}

// Repository persists coupons. Lookups by code are case-insensitive.
type Repository interface {
	FindByCode(ctx context.Context, code string) (*Coupon, error)
	List(ctx context.Context) ([]Coupon, error)
	Create(ctx context.Context, c *Coupon) error
	SetStatus(ctx context.Context, code string, status pricing.CouponStatus) error
	Delete(ctx context.Context, code string) error
}

// Cache is an optional lookup cache keyed by normalized code.
type Cache interface {
	Get(ctx context.Context, code string) (*Coupon, bool, error)
	Set(ctx context.Context, c *Coupon) error
	Invalidate(ctx context.Context, code string) error
}

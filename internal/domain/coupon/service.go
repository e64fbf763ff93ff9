package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/thriftx/storefront/internal/domain/pricing"
)

// ErrExpired is returned when enabling a coupon whose expiry date has passed.
var ErrExpired = errors.New("coupon expired")

const maxCodeLen = 32

// CreateParams is operator input for a new coupon. DiscountType is the raw
// string and is resolved to pricing.DiscountType here, once.
type CreateParams struct {
	Code          string
	DiscountType  string
	DiscountValue decimal.Decimal
	MinOrderValue int64
	// ExpiresOn is a calendar date; the coupon stays usable through its end.
	ExpiresOn   time.Time
	Description string
}

// Preview is the outcome of checking a code against a subtotal.
type Preview struct {
	Coupon   *Coupon
	Eligible bool
	// Reason is set when Eligible is false.
	Reason   pricing.IneligibleReason
	Discount int64
}

// Service implements operator coupon management and shopper previews.
type Service struct {
	repo Repository
	dir  *Directory
	now  func() time.Time
}

// NewService creates a coupon Service.
func NewService(repo Repository, dir *Directory) *Service {
	return &Service{repo: repo, dir: dir, now: time.Now}
}

// Create validates operator input and stores an active coupon.
func (s *Service) Create(ctx context.Context, p CreateParams) (*Coupon, error) {
	c, err := Build(p, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, err
	}
	s.dir.invalidate(ctx, c.Code)
	return c, nil
}

// Build validates p and returns the active coupon it describes, created at
// now. Errors wrap ErrInvalidCoupon.
func Build(p CreateParams, now time.Time) (*Coupon, error) {
	code := pricing.NormalizeCode(p.Code)
	if code == "" || len(code) > maxCodeLen || !isCodeCharset(code) {
		return nil, errors.Wrapf(ErrInvalidCoupon, "code %q must be 1-%d letters, digits, '-' or '_'", p.Code, maxCodeLen)
	}

	dt, err := pricing.ParseDiscountType(p.DiscountType)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidCoupon, err.Error())
	}

	c := &Coupon{
		Coupon: pricing.Coupon{
			Code:          code,
			DiscountType:  dt,
			DiscountValue: p.DiscountValue,
			MinOrderValue: p.MinOrderValue,
			Status:        pricing.StatusActive,
		},
		Description: p.Description,
		CreatedAt:   now.UTC(),
	}
	if !p.ExpiresOn.IsZero() {
		c.ExpiresAt = pricing.ExpiryEndOfDay(p.ExpiresOn)
	}
	if _, err := pricing.CouponDiscount(c.Coupon, 0); err != nil {
		return nil, errors.Wrap(ErrInvalidCoupon, err.Error())
	}
	return c, nil
}

// List returns all coupons.
func (s *Service) List(ctx context.Context) ([]Coupon, error) {
	return s.repo.List(ctx)
}

// Enable re-activates a coupon.
func (s *Service) Enable(ctx context.Context, code string) error {
	c, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		return err
	}
	if !c.ExpiresAt.IsZero() && s.now().After(c.ExpiresAt) {
		return ErrExpired
	}
	return s.setStatus(ctx, c.Code, pricing.StatusActive)
}

// Disable stops a coupon from applying to new carts.
func (s *Service) Disable(ctx context.Context, code string) error {
	return s.setStatus(ctx, pricing.NormalizeCode(code), pricing.StatusDisabled)
}

// Delete removes a coupon from future eligibility. Placed orders keep the
// breakdown they were charged.
func (s *Service) Delete(ctx context.Context, code string) error {
	code = pricing.NormalizeCode(code)
	if err := s.repo.Delete(ctx, code); err != nil {
		return err
	}
	s.dir.invalidate(ctx, code)
	return nil
}

// Preview checks code against subtotal without applying it. An unknown
// code returns ErrNotFound; an ineligible one returns a Preview with the
// reason rather than an error.
func (s *Service) Preview(ctx context.Context, code string, subtotal int64) (*Preview, error) {
	c, err := s.dir.Lookup(ctx, code)
	if err != nil {
		return nil, err
	}

	p := &Preview{Coupon: c}
	if err := pricing.CheckEligibility(c.Coupon, subtotal, s.now()); err != nil {
		var inErr *pricing.IneligibleCouponError
		if !errors.As(err, &inErr) {
			return nil, err
		}
		p.Reason = inErr.Reason
		return p, nil
	}

	discount, err := pricing.CouponDiscount(c.Coupon, subtotal)
	if err != nil {
		return nil, err
	}
	p.Eligible = true
	p.Discount = discount
	return p, nil
}

func (s *Service) setStatus(ctx context.Context, code string, status pricing.CouponStatus) error {
	if err := s.repo.SetStatus(ctx, code, status); err != nil {
		return err
	}
	s.dir.invalidate(ctx, code)
	return nil
}

func isCodeCharset(code string) bool {
	for i := range len(code) {
		switch ch := code[i]; {
		case ch >= 'A' && ch <= 'Z', ch >= '0' && ch <= '9', ch == '-', ch == '_':
		default:
			return false
		}
	}
	return true
}

package cart

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"

	"github.com/thriftx/storefront/internal/domain/coupon"
	"github.com/thriftx/storefront/internal/domain/pricing"
	"github.com/thriftx/storefront/internal/domain/product"
)

// ErrProductUnavailable is returned when adding more units than a listing has.
var ErrProductUnavailable = errors.New("product unavailable")

// CouponLookup resolves coupon codes.
type CouponLookup interface {
	Lookup(ctx context.Context, code string) (*coupon.Coupon, error)
}

// FallbackStore reports whether a shopper has consumed the one-time
// first-order discount.
type FallbackStore interface {
	FallbackUsed(ctx context.Context, shopperID string) (bool, error)
}

// Item is a cart line joined with its current listing.
type Item struct {
	Product  product.Product
	Quantity int
}

// CouponState describes what happened to the coupon requested for a view.
type CouponState struct {
	Code    string
	Applied bool
	// Reason is "not_found" or a pricing.IneligibleReason when not applied.
	Reason string
}

// View is a priced snapshot of a cart for display. It is a preview only;
// checkout recomputes the breakdown.
type View struct {
	Items []Item
	// Unavailable lists lines whose listing is gone, sold or short of stock.
	// They are excluded from the breakdown.
	Unavailable []Item
	Breakdown   pricing.Breakdown
	Coupon      *CouponState
}

// Service implements cart operations.
type Service struct {
	repo     Repository
	products product.Repository
	coupons  CouponLookup
	fallback FallbackStore
	rules    pricing.Rules
	now      func() time.Time
}

// NewService creates a cart Service.
func NewService(
	repo Repository,
	products product.Repository,
	coupons CouponLookup,
	fallback FallbackStore,
	rules pricing.Rules,
) *Service {
	return &Service{
		repo:     repo,
		products: products,
		coupons:  coupons,
		fallback: fallback,
		rules:    rules,
		now:      time.Now,
	}
}

// Add increases the quantity of productID by qty.
func (s *Service) Add(ctx context.Context, shopperID, productID string, qty int) error {
	if shopperID == "" {
		return ErrShopperRequired
	}
	if qty <= 0 {
		return ErrInvalidQuantity
	}

	lines, err := s.repo.Lines(ctx, shopperID)
	if err != nil {
		return errors.Wrap(err, "load cart")
	}
	total := qty
	for _, l := range lines {
		if l.ProductID == productID {
			total += l.Quantity
		}
	}

	if err := s.checkPurchasable(ctx, productID, total); err != nil {
		return err
	}
	return s.repo.Upsert(ctx, shopperID, productID, total)
}

// SetQuantity replaces the quantity of a line. Zero removes it.
func (s *Service) SetQuantity(ctx context.Context, shopperID, productID string, qty int) error {
	if shopperID == "" {
		return ErrShopperRequired
	}
	if qty < 0 {
		return ErrInvalidQuantity
	}
	if qty == 0 {
		return s.repo.Remove(ctx, shopperID, productID)
	}

	lines, err := s.repo.Lines(ctx, shopperID)
	if err != nil {
		return errors.Wrap(err, "load cart")
	}
	found := false
	for _, l := range lines {
		if l.ProductID == productID {
			found = true
			break
		}
	}
	if !found {
		return ErrLineNotFound
	}

	if err := s.checkPurchasable(ctx, productID, qty); err != nil {
		return err
	}
	return s.repo.Upsert(ctx, shopperID, productID, qty)
}

// Remove deletes a line from the cart.
func (s *Service) Remove(ctx context.Context, shopperID, productID string) error {
	if shopperID == "" {
		return ErrShopperRequired
	}
	return s.repo.Remove(ctx, shopperID, productID)
}

// View prices the shopper's cart. couponCode may be empty. An unknown or
// ineligible coupon does not fail the view; its state is reported instead.
func (s *Service) View(ctx context.Context, shopperID, couponCode string) (*View, error) {
	if shopperID == "" {
		return nil, ErrShopperRequired
	}

	lines, err := s.repo.Lines(ctx, shopperID)
	if err != nil {
		return nil, errors.Wrap(err, "load cart")
	}
	v, lineItems, err := s.join(ctx, lines)
	if err != nil {
		return nil, err
	}

	in := pricing.Input{Items: lineItems, Now: s.now()}

	if code := strings.TrimSpace(couponCode); code != "" {
		v.Coupon = &CouponState{Code: pricing.NormalizeCode(code)}
		c, err := s.coupons.Lookup(ctx, code)
		switch {
		case errors.Is(err, coupon.ErrNotFound):
			v.Coupon.Reason = "not_found"
		case err != nil:
			return nil, err
		default:
			in.Coupon = &c.Coupon
		}
	}

	used, err := s.fallback.FallbackUsed(ctx, shopperID)
	if err != nil {
		return nil, errors.Wrap(err, "load fallback state")
	}
	in.FallbackUsed = used

	b, err := s.rules.ComputeBreakdown(in)
	if err != nil {
		return nil, err
	}
	v.Breakdown = b

	if in.Coupon != nil {
		v.Coupon.Applied = b.Policy == pricing.PolicyCoupon
		if !v.Coupon.Applied {
			var inErr *pricing.IneligibleCouponError
			if errors.As(pricing.CheckEligibility(*in.Coupon, b.Subtotal, in.Now), &inErr) {
				v.Coupon.Reason = string(inErr.Reason)
			}
		}
	}
	return v, nil
}

// join attaches current listings to lines, splitting out those that can no
// longer be bought.
func (s *Service) join(ctx context.Context, lines []Line) (*View, []pricing.LineItem, error) {
	v := &View{}
	if len(lines) == 0 {
		return v, nil, nil
	}

	ids := make([]string, len(lines))
	for i, l := range lines {
		ids[i] = l.ProductID
	}
	fetched, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, nil, errors.Wrap(err, "get products")
	}
	byID := make(map[string]product.Product, len(fetched))
	for _, p := range fetched {
		byID[p.ID] = p
	}

	items := make([]pricing.LineItem, 0, len(lines))
	for _, l := range lines {
		p, ok := byID[l.ProductID]
		if !ok {
			v.Unavailable = append(v.Unavailable, Item{Product: product.Product{ID: l.ProductID}, Quantity: l.Quantity})
			continue
		}
		if !p.Purchasable(l.Quantity) {
			v.Unavailable = append(v.Unavailable, Item{Product: p, Quantity: l.Quantity})
			continue
		}
		v.Items = append(v.Items, Item{Product: p, Quantity: l.Quantity})
		items = append(items, pricing.LineItem{ProductID: p.ID, UnitPrice: p.Price, Quantity: l.Quantity})
	}
	return v, items, nil
}

func (s *Service) checkPurchasable(ctx context.Context, productID string, qty int) error {
	p, err := s.products.GetByID(ctx, productID)
	if err != nil {
		return err
	}
	if !p.Purchasable(qty) {
		return ErrProductUnavailable
	}
	return nil
}

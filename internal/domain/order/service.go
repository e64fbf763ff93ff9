package order

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/thriftx/storefront/internal/domain/cart"
	"github.com/thriftx/storefront/internal/domain/coupon"
	"github.com/thriftx/storefront/internal/domain/pricing"
	"github.com/thriftx/storefront/internal/domain/product"
)

// Checkout errors.
var (
	ErrEmptyCart     = errors.New("cart is empty")
	ErrUnknownCoupon = errors.New("unknown coupon code")
	ErrInvalidStatus = errors.New("invalid status transition")
)

// ProductNotFoundError indicates a cart line references a listing that no
// longer exists.
type ProductNotFoundError struct {
	ProductID string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %s not found", e.ProductID)
}

// ProductUnavailableError indicates a listing is sold, hidden or short of
// stock for the requested quantity.
type ProductUnavailableError struct {
	ProductID string
	Requested int
	InStock   int
}

func (e *ProductUnavailableError) Error() string {
	return fmt.Sprintf("product %s unavailable: requested %d, in stock %d", e.ProductID, e.Requested, e.InStock)
}

// CouponLookup resolves coupon codes against the source of truth. Checkout
// must not see a coupon an operator has already disabled.
type CouponLookup interface {
	LookupFresh(ctx context.Context, code string) (*coupon.Coupon, error)
}

// CheckoutRequest holds the input for placing an order from a cart.
type CheckoutRequest struct {
	ShopperID  string
	CouponCode string
}

// Service encapsulates checkout and order management.
type Service struct {
	orders   Repository
	carts    cart.Repository
	products product.Repository
	coupons  CouponLookup
	fallback FallbackStore
	rules    pricing.Rules
	now      func() time.Time

	placed   metric.Int64Counter
	discount metric.Int64Counter
}

// NewService creates an order Service. Counters are registered on meter.
func NewService(
	orders Repository,
	carts cart.Repository,
	products product.Repository,
	coupons CouponLookup,
	fallback FallbackStore,
	rules pricing.Rules,
	meter metric.Meter,
) (*Service, error) {
	placed, err := meter.Int64Counter(
		"thriftx.orders.placed",
		metric.WithDescription("Orders placed, by discount policy"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "orders placed counter")
	}
	discount, err := meter.Int64Counter(
		"thriftx.orders.discount",
		metric.WithUnit("{minor_unit}"),
		metric.WithDescription("Discount granted at checkout, by discount policy"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "orders discount counter")
	}

	return &Service{
		orders:   orders,
		carts:    carts,
		products: products,
		coupons:  coupons,
		fallback: fallback,
		rules:    rules,
		now:      time.Now,
		placed:   placed,
		discount: discount,
	}, nil
}

// Checkout prices the shopper's cart from current catalog data and places
// the order. Client-side totals are never trusted.
func (s *Service) Checkout(ctx context.Context, req CheckoutRequest) (*Order, error) {
	if req.ShopperID == "" {
		return nil, cart.ErrShopperRequired
	}

	lines, err := s.carts.Lines(ctx, req.ShopperID)
	if err != nil {
		return nil, errors.Wrap(err, "load cart")
	}
	if len(lines) == 0 {
		return nil, ErrEmptyCart
	}

	items, err := s.resolveItems(ctx, lines)
	if err != nil {
		return nil, err
	}

	now := s.now()
	in := pricing.Input{Items: make([]pricing.LineItem, len(items)), Now: now}
	for i, it := range items {
		in.Items[i] = pricing.LineItem{ProductID: it.ProductID, UnitPrice: it.UnitPrice, Quantity: it.Quantity}
	}

	if code := strings.TrimSpace(req.CouponCode); code != "" {
		c, err := s.coupons.LookupFresh(ctx, code)
		if errors.Is(err, coupon.ErrNotFound) {
			return nil, ErrUnknownCoupon
		}
		if err != nil {
			return nil, err
		}
		in.Coupon = &c.Coupon
	}

	used, err := s.fallback.FallbackUsed(ctx, req.ShopperID)
	if err != nil {
		return nil, errors.Wrap(err, "load fallback state")
	}
	in.FallbackUsed = used

	b, err := s.rules.ComputeBreakdown(in)
	if err != nil {
		var cfgErr *pricing.ConfigurationError
		if errors.As(err, &cfgErr) {
			zctx.From(ctx).Error("Misconfigured coupon",
				zap.String("code", cfgErr.Code),
				zap.String("discount_type", cfgErr.DiscountType),
			)
		}
		return nil, err
	}

	o := &Order{
		ID:          uuid.New().String(),
		ShopperID:   req.ShopperID,
		Items:       items,
		Subtotal:    b.Subtotal,
		Discount:    b.Discount,
		DeliveryFee: b.DeliveryFee,
		Total:       b.Total,
		Policy:      b.Policy,
		CouponCode:  b.CouponCode,
		Status:      StatusPlaced,
		CreatedAt:   now.UTC(),
	}
	opts := PlaceOptions{ClaimFallback: b.Policy == pricing.PolicyFallback}
	if err := s.orders.Place(ctx, o, opts); err != nil {
		if errors.Is(err, ErrFallbackAlreadyUsed) || errors.Is(err, ErrOutOfStock) {
			return nil, err
		}
		return nil, errors.Wrap(err, "place order")
	}

	attrs := metric.WithAttributes(attribute.String("policy", string(b.Policy)))
	s.placed.Add(ctx, 1, attrs)
	s.discount.Add(ctx, b.Discount, attrs)

	zctx.From(ctx).Info("Order placed",
		zap.String("order_id", o.ID),
		zap.String("policy", string(o.Policy)),
		zap.Int64("total", o.Total),
	)
	return o, nil
}

// resolveItems re-reads every listing in one batch and snapshots the
// current price onto the order lines.
func (s *Service) resolveItems(ctx context.Context, lines []cart.Line) ([]Item, error) {
	ids := make([]string, len(lines))
	for i, l := range lines {
		ids[i] = l.ProductID
	}

	fetched, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "get products")
	}
	productMap := make(map[string]product.Product, len(fetched))
	for _, p := range fetched {
		productMap[p.ID] = p
	}

	items := make([]Item, 0, len(lines))
	for _, l := range lines {
		p, ok := productMap[l.ProductID]
		if !ok {
			return nil, &ProductNotFoundError{ProductID: l.ProductID}
		}
		if !p.Purchasable(l.Quantity) {
			return nil, &ProductUnavailableError{ProductID: p.ID, Requested: l.Quantity, InStock: p.Stock}
		}
		items = append(items, Item{
			ProductID: p.ID,
			Name:      p.Name,
			Category:  p.Category,
			SellerID:  p.SellerID,
			UnitPrice: p.Price,
			Quantity:  l.Quantity,
		})
	}
	return items, nil
}

// Get returns an order. When shopperID is non-empty the order must belong
// to that shopper; other shoppers' orders are reported as not found.
func (s *Service) Get(ctx context.Context, id, shopperID string) (*Order, error) {
	o, err := s.orders.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if shopperID != "" && o.ShopperID != shopperID {
		return nil, ErrNotFound
	}
	return o, nil
}

// ListForShopper returns a shopper's orders, newest first.
func (s *Service) ListForShopper(ctx context.Context, shopperID string) ([]Order, error) {
	if shopperID == "" {
		return nil, cart.ErrShopperRequired
	}
	return s.orders.ListForShopper(ctx, shopperID)
}

// UpdateStatus moves an order along its fulfilment lifecycle.
func (s *Service) UpdateStatus(ctx context.Context, id string, next Status) (*Order, error) {
	o, err := s.orders.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !o.Status.CanTransition(next) {
		return nil, errors.Wrapf(ErrInvalidStatus, "%s -> %s", o.Status, next)
	}
	if err := s.orders.UpdateStatus(ctx, id, o.Status, next); err != nil {
		return nil, err
	}
	o.Status = next
	return o, nil
}

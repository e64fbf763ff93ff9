package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"

	"github.com/thriftx/storefront/internal/domain/pricing"
)

// Persistence errors.
var (
	ErrNotFound = errors.New("order not found")
	// ErrFallbackAlreadyUsed is returned by Place when another checkout
	// claimed the shopper's one-time discount first.
	ErrFallbackAlreadyUsed = errors.New("fallback discount already used")
	// ErrOutOfStock is returned by Place when a stock decrement would go
	// below zero.
	ErrOutOfStock = errors.New("insufficient stock")
)

// Status is the fulfilment state of an order.
type Status string

const (
	StatusPlaced    Status = "placed"
	StatusShipped   Status = "shipped"
	StatusDelivered Status = "delivered"
	StatusCancelled Status = "cancelled"
)

// ParseStatus validates an order status string.
func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusPlaced, StatusShipped, StatusDelivered, StatusCancelled:
		return st, nil
	default:
		return "", errors.Errorf("unknown order status %q", s)
	}
}

var transitions = map[Status][]Status{
	StatusPlaced:  {StatusShipped, StatusCancelled},
	StatusShipped: {StatusDelivered},
}

// CanTransition reports whether an order may move from s to next.
func (s Status) CanTransition(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Order is a placed order. Amounts are the breakdown charged at checkout and
// never change afterwards, even when the coupon is later edited or deleted.
type Order struct {
	ID          string
	ShopperID   string
	Items       []Item
	Subtotal    int64
	Discount    int64
	DeliveryFee int64
	Total       int64
	Policy      pricing.Policy
	CouponCode  string
	Status      Status
	CreatedAt   time.Time
}

// Item is an order line with the unit price charged.
type Item struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Category  string `json:"category"`
	SellerID  string `json:"seller_id"`
	UnitPrice int64  `json:"unit_price"`
	Quantity  int    `json:"quantity"`
}

// PlaceOptions controls side effects of Place.
type PlaceOptions struct {
	// ClaimFallback records the shopper's one-time discount as used.
	ClaimFallback bool
}

// ListFilter narrows List results. Zero fields match everything.
type ListFilter struct {
	From time.Time
	To   time.Time
	// SellerID keeps orders containing at least one of the seller's items.
	SellerID string
}

// Repository defines persistence operations for orders.
type Repository interface {
	// Place stores o, decrements stock for each item, optionally claims the
	// fallback discount and clears the shopper's cart, all atomically.
	Place(ctx context.Context, o *Order, opts PlaceOptions) error
	Get(ctx context.Context, id string) (*Order, error)
	ListForShopper(ctx context.Context, shopperID string) ([]Order, error)
	List(ctx context.Context, f ListFilter) ([]Order, error)
	UpdateStatus(ctx context.Context, id string, from, to Status) error
}

// FallbackStore reports whether a shopper has consumed the one-time
// first-order discount. Claims are made by Repository.Place and are
// permanent.
type FallbackStore interface {
	FallbackUsed(ctx context.Context, shopperID string) (bool, error)
}

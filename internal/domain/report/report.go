// Package report aggregates orders and listings into admin and seller
// dashboards.
package report

import (
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/thriftx/storefront/internal/domain/order"
	"github.com/thriftx/storefront/internal/domain/pricing"
	"github.com/thriftx/storefront/internal/domain/product"
)

// ErrInvalidPeriod is returned when a period does not end after it starts.
var ErrInvalidPeriod = errors.New("period end must be after start")

// Period is the half-open interval [From, To).
type Period struct {
	From time.Time
	To   time.Time
}

// Validate checks that p is non-empty.
func (p Period) Validate() error {
	if !p.To.After(p.From) {
		return ErrInvalidPeriod
	}
	return nil
}

// Previous returns the equal-length period ending where p starts.
func (p Period) Previous() Period {
	return Period{From: p.From.Add(-p.To.Sub(p.From)), To: p.From}
}

// Contains reports whether t falls within p.
func (p Period) Contains(t time.Time) bool {
	return !t.Before(p.From) && t.Before(p.To)
}

// Summary is the admin overview for a period. Money is in minor units.
type Summary struct {
	Period            Period
	GMV               int64
	Orders            int
	AverageOrderValue int64
	PreviousGMV       int64
	// GrowthPercent is nil when the previous period had no sales.
	GrowthPercent    *decimal.Decimal
	StatusCounts     map[order.Status]int
	CategoryCounts   map[string]int
	DiscountByPolicy map[pricing.Policy]int64
}

// Aggregate reduces orders and the current catalog into a Summary for
// period. Orders outside period and its predecessor are ignored. Cancelled
// orders count towards the status distribution only.
func Aggregate(orders []order.Order, products []product.Product, period Period) Summary {
	prev := period.Previous()
	s := Summary{
		Period:           period,
		StatusCounts:     make(map[order.Status]int),
		CategoryCounts:   make(map[string]int),
		DiscountByPolicy: make(map[pricing.Policy]int64),
	}

	for _, o := range orders {
		switch {
		case period.Contains(o.CreatedAt):
			s.StatusCounts[o.Status]++
			if o.Status == order.StatusCancelled {
				continue
			}
			s.GMV += o.Total
			s.Orders++
			s.DiscountByPolicy[o.Policy] += o.Discount
		case prev.Contains(o.CreatedAt):
			if o.Status != order.StatusCancelled {
				s.PreviousGMV += o.Total
			}
		}
	}

	for _, p := range products {
		s.CategoryCounts[p.Category]++
	}

	if s.Orders > 0 {
		s.AverageOrderValue = s.GMV / int64(s.Orders)
	}
	if s.PreviousGMV > 0 {
		g := decimal.NewFromInt(s.GMV - s.PreviousGMV).
			Mul(decimal.NewFromInt(100)).
			DivRound(decimal.NewFromInt(s.PreviousGMV), 2)
		s.GrowthPercent = &g
	}
	return s
}

// SellerStats is a seller's dashboard.
type SellerStats struct {
	SellerID  string
	Listed    int
	Available int
	SoldUnits int
	// Revenue is the gross of the seller's lines before order-level
	// discounts and delivery.
	Revenue int64
}

// SellerSummary computes stats for sellerID over all non-cancelled orders.
func SellerSummary(sellerID string, orders []order.Order, products []product.Product) SellerStats {
	st := SellerStats{SellerID: sellerID}
	for _, p := range products {
		if p.SellerID != sellerID {
			continue
		}
		st.Listed++
		if p.Status == product.StatusAvailable {
			st.Available++
		}
	}
	for _, o := range orders {
		if o.Status == order.StatusCancelled {
			continue
		}
		for _, it := range o.Items {
			if it.SellerID != sellerID {
				continue
			}
			st.SoldUnits += it.Quantity
			st.Revenue += it.UnitPrice * int64(it.Quantity)
		}
	}
	return st
}

package report

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thriftx/storefront/internal/domain/order"
	"github.com/thriftx/storefront/internal/domain/pricing"
	"github.com/thriftx/storefront/internal/domain/product"
)

var (
	may  = Period{From: day(2026, 5, 1), To: day(2026, 6, 1)}
	prev = may.Previous()
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func placed(at time.Time, total, discount int64, policy pricing.Policy, status order.Status, items ...order.Item) order.Order {
	return order.Order{
		ID:        at.Format(time.RFC3339Nano),
		Total:     total,
		Discount:  discount,
		Policy:    policy,
		Status:    status,
		Items:     items,
		CreatedAt: at,
	}
}

func TestPeriod(t *testing.T) {
	assert.Equal(t, day(2026, 3, 31), prev.From)
	assert.Equal(t, may.From, prev.To)

	assert.True(t, may.Contains(may.From))
	assert.False(t, may.Contains(may.To))

	require.NoError(t, may.Validate())
	require.ErrorIs(t, Period{From: may.To, To: may.From}.Validate(), ErrInvalidPeriod)
	require.ErrorIs(t, Period{From: may.From, To: may.From}.Validate(), ErrInvalidPeriod)
}

func TestAggregate(t *testing.T) {
	orders := []order.Order{
		placed(day(2026, 5, 2), 1015, 200, pricing.PolicyFallback, order.StatusDelivered),
		placed(day(2026, 5, 10), 515, 0, pricing.PolicyNone, order.StatusShipped),
		placed(day(2026, 5, 20), 465, 50, pricing.PolicyCoupon, order.StatusPlaced),
		placed(day(2026, 5, 21), 999, 0, pricing.PolicyNone, order.StatusCancelled),
		placed(day(2026, 4, 15), 1000, 0, pricing.PolicyNone, order.StatusDelivered),
		placed(day(2026, 4, 16), 500, 0, pricing.PolicyNone, order.StatusCancelled),
		placed(day(2026, 1, 1), 7000, 0, pricing.PolicyNone, order.StatusDelivered),
	}
	products := []product.Product{
		{ID: "a", Category: "tops"},
		{ID: "b", Category: "tops"},
		{ID: "c", Category: "shoes"},
	}

	s := Aggregate(orders, products, may)

	assert.Equal(t, int64(1995), s.GMV)
	assert.Equal(t, 3, s.Orders)
	assert.Equal(t, int64(665), s.AverageOrderValue)
	assert.Equal(t, int64(1000), s.PreviousGMV)
	require.NotNil(t, s.GrowthPercent)
	assert.Equal(t, "99.5", s.GrowthPercent.String())

	assert.Equal(t, map[order.Status]int{
		order.StatusDelivered: 1,
		order.StatusShipped:   1,
		order.StatusPlaced:    1,
		order.StatusCancelled: 1,
	}, s.StatusCounts)
	assert.Equal(t, map[string]int{"tops": 2, "shoes": 1}, s.CategoryCounts)
	assert.Equal(t, map[pricing.Policy]int64{
		pricing.PolicyFallback: 200,
		pricing.PolicyNone:     0,
		pricing.PolicyCoupon:   50,
	}, s.DiscountByPolicy)
}

func TestAggregate_NoPreviousSales(t *testing.T) {
	s := Aggregate([]order.Order{
		placed(day(2026, 5, 3), 300, 0, pricing.PolicyNone, order.StatusPlaced),
	}, nil, may)

	assert.Nil(t, s.GrowthPercent)
	assert.Equal(t, int64(300), s.AverageOrderValue)
}

func TestAggregate_Empty(t *testing.T) {
	s := Aggregate(nil, nil, may)

	assert.Zero(t, s.GMV)
	assert.Zero(t, s.AverageOrderValue)
	assert.Nil(t, s.GrowthPercent)
	assert.Empty(t, s.StatusCounts)
}

func TestSellerSummary(t *testing.T) {
	products := []product.Product{
		{ID: "a", SellerID: "s1", Status: product.StatusAvailable},
		{ID: "b", SellerID: "s1", Status: product.StatusSold},
		{ID: "c", SellerID: "s2", Status: product.StatusAvailable},
	}
	orders := []order.Order{
		placed(day(2026, 5, 2), 0, 0, pricing.PolicyNone, order.StatusPlaced,
			order.Item{ProductID: "b", SellerID: "s1", UnitPrice: 400, Quantity: 1},
			order.Item{ProductID: "c", SellerID: "s2", UnitPrice: 900, Quantity: 1},
		),
		placed(day(2026, 5, 3), 0, 0, pricing.PolicyNone, order.StatusDelivered,
			order.Item{ProductID: "a", SellerID: "s1", UnitPrice: 150, Quantity: 2},
		),
		placed(day(2026, 5, 4), 0, 0, pricing.PolicyNone, order.StatusCancelled,
			order.Item{ProductID: "a", SellerID: "s1", UnitPrice: 150, Quantity: 5},
		),
	}

	st := SellerSummary("s1", orders, products)
	assert.Equal(t, SellerStats{SellerID: "s1", Listed: 2, Available: 1, SoldUnits: 3, Revenue: 700}, st)
}

type mockOrders struct {
	orders []order.Order
	filter order.ListFilter
	err    error
}

func (m *mockOrders) List(_ context.Context, f order.ListFilter) ([]order.Order, error) {
	m.filter = f
	return m.orders, m.err
}

type mockProducts struct {
	products []product.Product
	filter   product.Filter
	err      error
}

func (m *mockProducts) List(_ context.Context, f product.Filter) ([]product.Product, error) {
	m.filter = f
	return m.products, m.err
}

func TestService_Summary(t *testing.T) {
	orders := &mockOrders{orders: []order.Order{
		placed(day(2026, 5, 2), 1015, 200, pricing.PolicyFallback, order.StatusPlaced),
	}}
	products := &mockProducts{products: []product.Product{{ID: "a", Category: "tops"}}}
	svc := NewService(orders, products)

	s, err := svc.Summary(context.Background(), may)
	require.NoError(t, err)
	assert.Equal(t, int64(1015), s.GMV)
	assert.Equal(t, order.ListFilter{From: prev.From, To: may.To}, orders.filter)

	_, err = svc.Summary(context.Background(), Period{})
	require.ErrorIs(t, err, ErrInvalidPeriod)

	products.err = errors.New("db down")
	_, err = svc.Summary(context.Background(), may)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "list products")
}

func TestService_SellerSummary(t *testing.T) {
	orders := &mockOrders{}
	products := &mockProducts{products: []product.Product{{ID: "a", SellerID: "s1", Status: product.StatusAvailable}}}
	svc := NewService(orders, products)

	st, err := svc.SellerSummary(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, 1, st.Listed)
	assert.Equal(t, "s1", products.filter.SellerID)
	assert.Equal(t, order.ListFilter{SellerID: "s1"}, orders.filter, "only the seller's orders are loaded")

	orders.err = errors.New("timeout")
	_, err = svc.SellerSummary(context.Background(), "s1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "list orders")
}

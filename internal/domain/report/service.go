package report

import (
	"context"

	"github.com/go-faster/errors"
	"golang.org/x/sync/errgroup"

	"github.com/thriftx/storefront/internal/domain/order"
	"github.com/thriftx/storefront/internal/domain/product"
)

// OrderLister loads orders for reporting.
type OrderLister interface {
	List(ctx context.Context, f order.ListFilter) ([]order.Order, error)
}

// ProductLister loads listings for reporting.
type ProductLister interface {
	List(ctx context.Context, f product.Filter) ([]product.Product, error)
}

// Service loads reporting inputs and aggregates them.
type Service struct {
	orders   OrderLister
	products ProductLister
}

// NewService creates a report Service.
func NewService(orders OrderLister, products ProductLister) *Service {
	return &Service{orders: orders, products: products}
}

// Summary returns the admin overview for period, compared against the
// preceding period of the same length.
func (s *Service) Summary(ctx context.Context, period Period) (*Summary, error) {
	if err := period.Validate(); err != nil {
		return nil, err
	}

	var (
		orders   []order.Order
		products []product.Product
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if orders, err = s.orders.List(gctx, order.ListFilter{From: period.Previous().From, To: period.To}); err != nil {
			return errors.Wrap(err, "list orders")
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if products, err = s.products.List(gctx, product.Filter{}); err != nil {
			return errors.Wrap(err, "list products")
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sum := Aggregate(orders, products, period)
	return &sum, nil
}

// SellerSummary returns the dashboard for one seller.
func (s *Service) SellerSummary(ctx context.Context, sellerID string) (*SellerStats, error) {
	var (
		orders   []order.Order
		products []product.Product
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if orders, err = s.orders.List(gctx, order.ListFilter{SellerID: sellerID}); err != nil {
			return errors.Wrap(err, "list orders")
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if products, err = s.products.List(gctx, product.Filter{SellerID: sellerID}); err != nil {
			return errors.Wrap(err, "list products")
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	st := SellerSummary(sellerID, orders, products)
	return &st, nil
}

// Package cart stores shoppers' line items and prices them for display.
package cart

import (
	"context"

	"github.com/go-faster/errors"
)

var (
	// ErrInvalidQuantity is returned for a negative quantity, or a
	// non-positive one where an addition is expected.
	ErrInvalidQuantity = errors.New("quantity must be greater than 0")
	// ErrShopperRequired is returned when no shopper identity is supplied.
	ErrShopperRequired = errors.New("shopper id required")
	// ErrLineNotFound is returned when updating a product not in the cart.
	ErrLineNotFound = errors.New("item not in cart")
)

// Line is a persisted cart entry. Prices are never stored on the cart; they
// are read from the catalog each time the cart is priced.
type Line struct {
	ProductID string
	Quantity  int
}

// Repository persists cart lines per shopper.
type Repository interface {
	Lines(ctx context.Context, shopperID string) ([]Line, error)
	// Upsert sets the quantity of productID, inserting the line if needed.
	Upsert(ctx context.Context, shopperID, productID string, qty int) error
	// Remove deletes a line. Removing a missing line returns ErrLineNotFound.
	Remove(ctx context.Context, shopperID, productID string) error
}

package product

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

// ErrNotFound is returned when a requested listing does not exist.
var ErrNotFound = errors.New("product not found")

// Status is the visibility state of a listing.
type Status string

const (
	StatusAvailable Status = "available"
	StatusSold      Status = "sold"
	StatusHidden    Status = "hidden"
)

// ParseStatus validates a listing status string.
func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusAvailable, StatusSold, StatusHidden:
		return st, nil
	default:
		return "", errors.Errorf("unknown product status %q", s)
	}
}

// Product is a secondhand listing. Price is in minor currency units.
type Product struct {
	ID        string
	SellerID  string
	Name      string
	Brand     string
	Size      string
	Condition string
	Category  string
	Price     int64
	Stock     int
	Status    Status
	Image     Image
	CreatedAt time.Time
}

// Purchasable reports whether qty units can be bought right now.
func (p Product) Purchasable(qty int) bool {
	return p.Status == StatusAvailable && p.Stock >= qty
}

// Image holds responsive image URLs for a product.
type Image struct {
	Thumbnail string
	Mobile    string
	Tablet    string
	Desktop   string
}

// Filter narrows List results. Zero fields match everything.
type Filter struct {
	Category string
	SellerID string
	Status   Status
}

// Repository defines catalog persistence.
type Repository interface {
	List(ctx context.Context, f Filter) ([]Product, error)
	GetByID(ctx context.Context, id string) (*Product, error)
	GetByIDs(ctx context.Context, ids []string) ([]Product, error)
	Create(ctx context.Context, p *Product) error
	SetStatus(ctx context.Context, id string, status Status) error
}

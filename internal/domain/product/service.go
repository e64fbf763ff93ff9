package product

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
)

// ErrInvalidListing is returned when a seller submits an incomplete listing.
var ErrInvalidListing = errors.New("invalid listing")

// CreateParams holds a seller's new listing.
type CreateParams struct {
	SellerID  string
	Name      string
	Brand     string
	Size      string
	Condition string
	Category  string
	Price     int64
	Stock     int
	Image     Image
}

// Service implements seller and admin listing operations.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService creates a listing Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Create validates and stores a new available listing.
func (s *Service) Create(ctx context.Context, p CreateParams) (*Product, error) {
	switch {
	case strings.TrimSpace(p.SellerID) == "":
		return nil, errors.Wrap(ErrInvalidListing, "seller required")
	case strings.TrimSpace(p.Name) == "":
		return nil, errors.Wrap(ErrInvalidListing, "name required")
	case strings.TrimSpace(p.Category) == "":
		return nil, errors.Wrap(ErrInvalidListing, "category required")
	case p.Price < 0:
		return nil, errors.Wrap(ErrInvalidListing, "price must not be negative")
	}
	stock := p.Stock
	if stock <= 0 {
		// Secondhand listings are usually one-off pieces.
		stock = 1
	}

	prod := &Product{
		ID:        uuid.New().String(),
		SellerID:  p.SellerID,
		Name:      strings.TrimSpace(p.Name),
		Brand:     p.Brand,
		Size:      p.Size,
		Condition: p.Condition,
		Category:  strings.ToLower(strings.TrimSpace(p.Category)),
		Price:     p.Price,
		Stock:     stock,
		Status:    StatusAvailable,
		Image:     p.Image,
		CreatedAt: s.now().UTC(),
	}
	if err := s.repo.Create(ctx, prod); err != nil {
		return nil, errors.Wrap(err, "create listing")
	}
	return prod, nil
}

// List returns listings matching f.
func (s *Service) List(ctx context.Context, f Filter) ([]Product, error) {
	return s.repo.List(ctx, f)
}

// Get returns a single listing.
func (s *Service) Get(ctx context.Context, id string) (*Product, error) {
	return s.repo.GetByID(ctx, id)
}

// SetStatus changes a listing's visibility.
func (s *Service) SetStatus(ctx context.Context, id string, status Status) error {
	if _, err := ParseStatus(string(status)); err != nil {
		return errors.Wrap(ErrInvalidListing, err.Error())
	}
	return s.repo.SetStatus(ctx, id, status)
}

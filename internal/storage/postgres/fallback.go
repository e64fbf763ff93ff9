package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
)

const fallbackUsedSQL = `SELECT EXISTS (SELECT 1 FROM fallback_usages WHERE shopper_id = $1)`

// FallbackRepository reads the one-time discount state. Claims are written by
// OrderRepository.Place inside the checkout transaction and never removed.
type FallbackRepository struct {
	pool *pgxpool.Pool
}

// NewFallbackRepository returns a FallbackRepository that uses the given pool.
func NewFallbackRepository(pool *pgxpool.Pool) *FallbackRepository {
	return &FallbackRepository{pool: pool}
}

// FallbackUsed reports whether the shopper has claimed the discount.
func (r *FallbackRepository) FallbackUsed(ctx context.Context, shopperID string) (bool, error) {
	var used bool
	if err := r.pool.QueryRow(ctx, fallbackUsedSQL, shopperID).Scan(&used); err != nil {
		return false, errors.Wrapf(err, "reading fallback state of %q", shopperID)
	}
	return used, nil
}


package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/thriftx/storefront/internal/domain/cart"
)

const (
	listCartLinesSQL = `SELECT product_id, quantity FROM cart_lines
		WHERE shopper_id = $1 ORDER BY updated_at, product_id`

	upsertCartLineSQL = `INSERT INTO cart_lines (shopper_id, product_id, quantity)
		VALUES ($1, $2, $3)
		ON CONFLICT (shopper_id, product_id) DO UPDATE SET quantity = EXCLUDED.quantity, updated_at = now()`

	deleteCartLineSQL = `DELETE FROM cart_lines WHERE shopper_id = $1 AND product_id = $2`
)

var _ cart.Repository = (*CartRepository)(nil)

// CartRepository implements cart.Repository backed by PostgreSQL.
type CartRepository struct {
	pool *pgxpool.Pool
}

// NewCartRepository returns a CartRepository that uses the given pool.
func NewCartRepository(pool *pgxpool.Pool) *CartRepository {
	return &CartRepository{pool: pool}
}

// Lines returns the shopper's cart in insertion order.
func (r *CartRepository) Lines(ctx context.Context, shopperID string) ([]cart.Line, error) {
	rows, err := r.pool.Query(ctx, listCartLinesSQL, shopperID)
	if err != nil {
		return nil, errors.Wrapf(err, "listing cart of %q", shopperID)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (cart.Line, error) {
		var l cart.Line
		err := row.Scan(&l.ProductID, &l.Quantity)
		return l, err
	})
}

// Upsert sets the quantity of a line.
func (r *CartRepository) Upsert(ctx context.Context, shopperID, productID string, qty int) error {
	if _, err := r.pool.Exec(ctx, upsertCartLineSQL, shopperID, productID, qty); err != nil {
		return errors.Wrapf(err, "upserting cart line %q", productID)
	}
	return nil
}

// Remove deletes a line.
func (r *CartRepository) Remove(ctx context.Context, shopperID, productID string) error {
	tag, err := r.pool.Exec(ctx, deleteCartLineSQL, shopperID, productID)
	if err != nil {
		return errors.Wrapf(err, "removing cart line %q", productID)
	}
	if tag.RowsAffected() == 0 {
		return cart.ErrLineNotFound
	}
	return nil
}

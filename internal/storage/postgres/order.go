package postgres

import (
	"context"
	"encoding/json"
	"slices"
	"strings"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/thriftx/storefront/internal/domain/order"
	"github.com/thriftx/storefront/internal/domain/pricing"
)

const (
	orderColumns = `id, shopper_id, items, subtotal, discount, delivery_fee, total, policy, coupon_code, status, created_at`

	createOrderSQL = `INSERT INTO orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	// A listing whose last unit is bought flips to sold.
	decrementStockSQL = `UPDATE products
		SET stock = stock - $2,
		    status = CASE WHEN stock - $2 = 0 THEN 'sold' ELSE status END
		WHERE id = $1 AND status = 'available' AND stock >= $2`

	restockSQL = `UPDATE products
		SET stock = stock + $2,
		    status = CASE WHEN status = 'sold' THEN 'available' ELSE status END
		WHERE id = $1`

	claimFallbackSQL = `INSERT INTO fallback_usages (shopper_id, order_id) VALUES ($1, $2)`

	// The ordered quantity leaves the cart. A line that grew since checkout
	// read the cart keeps the difference; lines checkout never saw stay.
	consumeCartLineSQL = `WITH gone AS (
			DELETE FROM cart_lines
			WHERE shopper_id = $1 AND product_id = $2 AND quantity <= $3
		)
		UPDATE cart_lines SET quantity = quantity - $3, updated_at = now()
		WHERE shopper_id = $1 AND product_id = $2 AND quantity > $3`

	getOrderSQL = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	listShopperOrdersSQL = `SELECT ` + orderColumns + ` FROM orders
		WHERE shopper_id = $1 ORDER BY created_at DESC`

	listOrdersSQL = `SELECT ` + orderColumns + ` FROM orders
		WHERE ($1::timestamptz IS NULL OR created_at >= $1)
		  AND ($2::timestamptz IS NULL OR created_at < $2)
		  AND ($3::text = '' OR items @> jsonb_build_array(jsonb_build_object('seller_id', $3::text)))
		ORDER BY created_at DESC`

	updateOrderStatusSQL = `UPDATE orders SET status = $3 WHERE id = $1 AND status = $2`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Place persists a new order in one transaction together with its stock
// decrements, the optional fallback claim and removing the ordered lines
// from the cart. The order items are serialized to JSON for storage in the
// JSONB column.
func (r *OrderRepository) Place(ctx context.Context, o *order.Order, opts order.PlaceOptions) (rerr error) {
	itemsJSON, err := json.Marshal(o.Items)
	if err != nil {
		return errors.Wrap(err, "marshaling order items")
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "beginning checkout tx")
	}
	defer func() {
		if rerr != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if _, err := tx.Exec(ctx, createOrderSQL,
		o.ID, o.ShopperID, itemsJSON, o.Subtotal, o.Discount, o.DeliveryFee, o.Total,
		string(o.Policy), o.CouponCode, string(o.Status), o.CreatedAt,
	); err != nil {
		return errors.Wrapf(err, "creating order %q", o.ID)
	}

	for _, it := range lockOrder(o.Items) {
		tag, err := tx.Exec(ctx, decrementStockSQL, it.ProductID, it.Quantity)
		if err != nil {
			return errors.Wrapf(err, "decrementing stock of %q", it.ProductID)
		}
		if tag.RowsAffected() == 0 {
			return errors.Wrapf(order.ErrOutOfStock, "product %s", it.ProductID)
		}
	}

	if opts.ClaimFallback {
		if _, err := tx.Exec(ctx, claimFallbackSQL, o.ShopperID, o.ID); err != nil {
			if isUniqueViolation(err, "") {
				return order.ErrFallbackAlreadyUsed
			}
			return errors.Wrapf(err, "claiming fallback for %q", o.ShopperID)
		}
	}

	for _, it := range o.Items {
		if _, err := tx.Exec(ctx, consumeCartLineSQL, o.ShopperID, it.ProductID, it.Quantity); err != nil {
			return errors.Wrapf(err, "removing %q from cart of %q", it.ProductID, o.ShopperID)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Wrapf(err, "committing order %q", o.ID)
	}
	return nil
}

// Get returns a single order.
func (r *OrderRepository) Get(ctx context.Context, id string) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, getOrderSQL, id)
	if err != nil {
		return nil, errors.Wrapf(err, "getting order %q", id)
	}
	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, errors.Wrapf(err, "getting order %q", id)
	}
	return &o, nil
}

// ListForShopper returns a shopper's orders, newest first.
func (r *OrderRepository) ListForShopper(ctx context.Context, shopperID string) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, listShopperOrdersSQL, shopperID)
	if err != nil {
		return nil, errors.Wrapf(err, "listing orders of %q", shopperID)
	}
	return pgx.CollectRows(rows, scanOrder)
}

// List returns orders matching f, newest first.
func (r *OrderRepository) List(ctx context.Context, f order.ListFilter) ([]order.Order, error) {
	var from, to any
	if !f.From.IsZero() {
		from = f.From
	}
	if !f.To.IsZero() {
		to = f.To
	}
	rows, err := r.pool.Query(ctx, listOrdersSQL, from, to, f.SellerID)
	if err != nil {
		return nil, errors.Wrap(err, "listing orders")
	}
	return pgx.CollectRows(rows, scanOrder)
}

// UpdateStatus moves an order from one status to another. Cancelling
// returns the items to stock in the same transaction.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, from, to order.Status) (rerr error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "beginning status tx")
	}
	defer func() {
		if rerr != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	tag, err := tx.Exec(ctx, updateOrderStatusSQL, id, string(from), string(to))
	if err != nil {
		return errors.Wrapf(err, "updating status of order %q", id)
	}
	if tag.RowsAffected() == 0 {
		return errors.Wrapf(order.ErrInvalidStatus, "order %s is no longer %s", id, from)
	}

	if to == order.StatusCancelled {
		rows, err := tx.Query(ctx, getOrderSQL, id)
		if err != nil {
			return errors.Wrapf(err, "getting order %q", id)
		}
		o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
		if err != nil {
			return errors.Wrapf(err, "getting order %q", id)
		}
		for _, it := range lockOrder(o.Items) {
			if _, err := tx.Exec(ctx, restockSQL, it.ProductID, it.Quantity); err != nil {
				return errors.Wrapf(err, "restocking %q", it.ProductID)
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Wrapf(err, "committing status of order %q", id)
	}
	return nil
}

// lockOrder returns items sorted by product id. Product rows are always
// locked in this order so concurrent checkouts cannot deadlock.
func lockOrder(items []order.Item) []order.Item {
	out := slices.Clone(items)
	slices.SortFunc(out, func(a, b order.Item) int { return strings.Compare(a.ProductID, b.ProductID) })
	return out
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o         order.Order
		itemsJSON []byte
		policy    string
		status    string
	)
	if err := row.Scan(
		&o.ID, &o.ShopperID, &itemsJSON, &o.Subtotal, &o.Discount, &o.DeliveryFee, &o.Total,
		&policy, &o.CouponCode, &status, &o.CreatedAt,
	); err != nil {
		return o, err
	}
	if err := json.Unmarshal(itemsJSON, &o.Items); err != nil {
		return o, errors.Wrapf(err, "unmarshaling items of order %q", o.ID)
	}
	o.Policy = pricing.Policy(policy)
	o.Status = order.Status(status)
	return o, nil
}

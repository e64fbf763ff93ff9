package postgres

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/thriftx/storefront/internal/domain/coupon"
	"github.com/thriftx/storefront/internal/domain/pricing"
)

const (
	couponColumns = `code, discount_type, discount_value, min_order_value, status, expires_at, description, created_at`

	getCouponByCodeSQL = `SELECT ` + couponColumns + ` FROM coupons WHERE code = UPPER($1)`

	listCouponsSQL = `SELECT ` + couponColumns + ` FROM coupons ORDER BY created_at DESC, code`

	createCouponSQL = `INSERT INTO coupons (` + couponColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	upsertCouponSQL = createCouponSQL + `
		ON CONFLICT (code) DO UPDATE SET
			discount_type = EXCLUDED.discount_type, discount_value = EXCLUDED.discount_value,
			min_order_value = EXCLUDED.min_order_value, status = EXCLUDED.status,
			expires_at = EXCLUDED.expires_at, description = EXCLUDED.description`

	setCouponStatusSQL = `UPDATE coupons SET status = $2 WHERE code = UPPER($1)`

	deleteCouponSQL = `DELETE FROM coupons WHERE code = UPPER($1)`
)

var _ coupon.Repository = (*CouponRepository)(nil)

// CouponRepository implements coupon.Repository backed by PostgreSQL.
type CouponRepository struct {
	pool *pgxpool.Pool
}

// NewCouponRepository returns a CouponRepository that uses the given pool.
func NewCouponRepository(pool *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{pool: pool}
}

// FindByCode looks up a coupon by its code (case-insensitive), whatever its
// status. Returns coupon.ErrNotFound when no row matches.
func (r *CouponRepository) FindByCode(ctx context.Context, code string) (*coupon.Coupon, error) {
	rows, err := r.pool.Query(ctx, getCouponByCodeSQL, code)
	if err != nil {
		return nil, errors.Wrapf(err, "finding coupon by code %q", code)
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanCoupon)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrNotFound
		}
		return nil, errors.Wrapf(err, "finding coupon by code %q", code)
	}
	return &c, nil
}

// List returns every coupon, newest first.
func (r *CouponRepository) List(ctx context.Context) ([]coupon.Coupon, error) {
	rows, err := r.pool.Query(ctx, listCouponsSQL)
	if err != nil {
		return nil, errors.Wrap(err, "listing coupons")
	}
	return pgx.CollectRows(rows, scanCoupon)
}

// Create inserts a coupon. Returns coupon.ErrAlreadyExists on a duplicate code.
func (r *CouponRepository) Create(ctx context.Context, c *coupon.Coupon) error {
	if _, err := r.pool.Exec(ctx, createCouponSQL, couponArgs(c)...); err != nil {
		if isUniqueViolation(err, "") {
			return coupon.ErrAlreadyExists
		}
		return errors.Wrapf(err, "creating coupon %q", c.Code)
	}
	return nil
}

// UpsertBatch inserts or replaces coupons in one round trip.
func (r *CouponRepository) UpsertBatch(ctx context.Context, coupons []coupon.Coupon) error {
	batch := &pgx.Batch{}
	for i := range coupons {
		batch.Queue(upsertCouponSQL, couponArgs(&coupons[i])...)
	}
	if err := r.pool.SendBatch(ctx, batch).Close(); err != nil {
		return errors.Wrapf(err, "upserting %d coupons", len(coupons))
	}
	return nil
}

// SetStatus changes a coupon's lifecycle state.
func (r *CouponRepository) SetStatus(ctx context.Context, code string, status pricing.CouponStatus) error {
	tag, err := r.pool.Exec(ctx, setCouponStatusSQL, code, string(status))
	if err != nil {
		return errors.Wrapf(err, "setting status of coupon %q", code)
	}
	if tag.RowsAffected() == 0 {
		return coupon.ErrNotFound
	}
	return nil
}

// Delete removes a coupon. Orders keep the code string they were placed with.
func (r *CouponRepository) Delete(ctx context.Context, code string) error {
	tag, err := r.pool.Exec(ctx, deleteCouponSQL, code)
	if err != nil {
		return errors.Wrapf(err, "deleting coupon %q", code)
	}
	if tag.RowsAffected() == 0 {
		return coupon.ErrNotFound
	}
	return nil
}

func couponArgs(c *coupon.Coupon) []any {
	var expires *time.Time
	if !c.ExpiresAt.IsZero() {
		expires = &c.ExpiresAt
	}
	return []any{
		pricing.NormalizeCode(c.Code), string(c.DiscountType), c.DiscountValue, c.MinOrderValue,
		string(c.Status), expires, c.Description, c.CreatedAt,
	}
}

// scanCoupon resolves legacy discount type aliases. Unknown types are kept
// verbatim so pricing reports them as a configuration error.
func scanCoupon(row pgx.CollectableRow) (coupon.Coupon, error) {
	var (
		c            coupon.Coupon
		discountType string
		value        decimal.Decimal
		status       string
		expiresAt    *time.Time
	)
	err := row.Scan(
		&c.Code, &discountType, &value, &c.MinOrderValue,
		&status, &expiresAt, &c.Description, &c.CreatedAt,
	)
	if dt, perr := pricing.ParseDiscountType(discountType); perr == nil {
		c.DiscountType = dt
	} else {
		c.DiscountType = pricing.DiscountType(discountType)
	}
	c.DiscountValue = value
	c.Status = pricing.CouponStatus(status)
	if expiresAt != nil {
		c.ExpiresAt = *expiresAt
	}
	return c, err
}

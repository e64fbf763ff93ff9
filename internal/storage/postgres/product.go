package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/thriftx/storefront/internal/domain/product"
)

const (
	productColumns = `id, seller_id, name, brand, size, condition, category, price, stock, status,
		image_thumbnail, image_mobile, image_tablet, image_desktop, created_at`

	getProductByIDSQL = `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	getProductsByIDsSQL = `SELECT ` + productColumns + ` FROM products WHERE id = ANY($1)`

	createProductSQL = `INSERT INTO products (` + productColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	upsertProductSQL = createProductSQL + `
		ON CONFLICT (id) DO UPDATE SET
			seller_id = EXCLUDED.seller_id, name = EXCLUDED.name, brand = EXCLUDED.brand,
			size = EXCLUDED.size, condition = EXCLUDED.condition, category = EXCLUDED.category,
			price = EXCLUDED.price, stock = EXCLUDED.stock, status = EXCLUDED.status,
			image_thumbnail = EXCLUDED.image_thumbnail, image_mobile = EXCLUDED.image_mobile,
			image_tablet = EXCLUDED.image_tablet, image_desktop = EXCLUDED.image_desktop`

	setProductStatusSQL = `UPDATE products SET status = $2 WHERE id = $1`
)

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository implements product.Repository backed by PostgreSQL.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// List returns listings matching f, newest first.
func (r *ProductRepository) List(ctx context.Context, f product.Filter) ([]product.Product, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.Category != "" {
		add("category = $%d", strings.ToLower(f.Category))
	}
	if f.SellerID != "" {
		add("seller_id = $%d", f.SellerID)
	}
	if f.Status != "" {
		add("status = $%d", string(f.Status))
	}

	sql := `SELECT ` + productColumns + ` FROM products`
	if len(where) > 0 {
		sql += ` WHERE ` + strings.Join(where, " AND ")
	}
	sql += ` ORDER BY created_at DESC, id`

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, errors.Wrap(err, "listing products")
	}
	return pgx.CollectRows(rows, scanProduct)
}

// GetByID returns a single product by its identifier.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*product.Product, error) {
	rows, err := r.pool.Query(ctx, getProductByIDSQL, id)
	if err != nil {
		return nil, errors.Wrapf(err, "getting product %q", id)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, errors.Wrapf(err, "getting product %q", id)
	}
	return &p, nil
}

// GetByIDs returns products matching any of the given IDs.
func (r *ProductRepository) GetByIDs(ctx context.Context, ids []string) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, getProductsByIDsSQL, ids)
	if err != nil {
		return nil, errors.Wrap(err, "getting products by ids")
	}
	return pgx.CollectRows(rows, scanProduct)
}

// Create inserts a new listing.
func (r *ProductRepository) Create(ctx context.Context, p *product.Product) error {
	if _, err := r.pool.Exec(ctx, createProductSQL, productArgs(p)...); err != nil {
		return errors.Wrapf(err, "creating product %q", p.ID)
	}
	return nil
}

// Upsert inserts or replaces a listing. Used by seeding.
func (r *ProductRepository) Upsert(ctx context.Context, p *product.Product) error {
	if _, err := r.pool.Exec(ctx, upsertProductSQL, productArgs(p)...); err != nil {
		return errors.Wrapf(err, "upserting product %q", p.ID)
	}
	return nil
}

// SetStatus changes a listing's visibility.
func (r *ProductRepository) SetStatus(ctx context.Context, id string, status product.Status) error {
	tag, err := r.pool.Exec(ctx, setProductStatusSQL, id, string(status))
	if err != nil {
		return errors.Wrapf(err, "setting status of product %q", id)
	}
	if tag.RowsAffected() == 0 {
		return product.ErrNotFound
	}
	return nil
}

func productArgs(p *product.Product) []any {
	return []any{
		p.ID, p.SellerID, p.Name, p.Brand, p.Size, p.Condition, p.Category, p.Price, p.Stock, string(p.Status),
		p.Image.Thumbnail, p.Image.Mobile, p.Image.Tablet, p.Image.Desktop, p.CreatedAt,
	}
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var (
		p      product.Product
		status string
	)
	err := row.Scan(
		&p.ID, &p.SellerID, &p.Name, &p.Brand, &p.Size, &p.Condition, &p.Category, &p.Price, &p.Stock, &status,
		&p.Image.Thumbnail, &p.Image.Mobile, &p.Image.Tablet, &p.Image.Desktop, &p.CreatedAt,
	)
	p.Status = product.Status(status)
	return p, err
}

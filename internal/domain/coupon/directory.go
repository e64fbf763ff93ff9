package coupon

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/thriftx/storefront/internal/domain/pricing"
)

// Directory resolves coupon codes, reading through an optional cache.
// Cache failures are logged and never fail a lookup. A cached entry may lag
// an operator change by up to the cache TTL, so paths that commit money use
// LookupFresh.
type Directory struct {
	repo  Repository
	cache Cache
}

// NewDirectory creates a Directory. cache may be nil.
func NewDirectory(repo Repository, cache Cache) *Directory {
	return &Directory{repo: repo, cache: cache}
}

// Lookup returns the coupon for code or ErrNotFound.
func (d *Directory) Lookup(ctx context.Context, code string) (*Coupon, error) {
	code = pricing.NormalizeCode(code)
	if code == "" {
		return nil, ErrNotFound
	}

	if d.cache != nil {
		c, ok, err := d.cache.Get(ctx, code)
		switch {
		case err != nil:
			zctx.From(ctx).Warn("Coupon cache read failed", zap.String("code", code), zap.Error(err))
		case ok:
			return c, nil
		}
	}

	c, err := d.find(ctx, code)
	if err != nil {
		return nil, err
	}

	if d.cache != nil {
		if err := d.cache.Set(ctx, c); err != nil {
			zctx.From(ctx).Warn("Coupon cache write failed", zap.String("code", code), zap.Error(err))
		}
	}
	return c, nil
}

// LookupFresh returns the coupon for code straight from the repository,
// bypassing the cache in both directions.
func (d *Directory) LookupFresh(ctx context.Context, code string) (*Coupon, error) {
	code = pricing.NormalizeCode(code)
	if code == "" {
		return nil, ErrNotFound
	}
	return d.find(ctx, code)
}

func (d *Directory) find(ctx context.Context, code string) (*Coupon, error) {
	c, err := d.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "lookup coupon")
	}
	return c, nil
}

// invalidate drops code from the cache after an operator mutation.
func (d *Directory) invalidate(ctx context.Context, code string) {
	if d.cache == nil {
		return
	}
	if err := d.cache.Invalidate(ctx, code); err != nil {
		zctx.From(ctx).Warn("Coupon cache invalidation failed", zap.String("code", code), zap.Error(err))
	}
}

// Package rediscache caches coupon directory lookups in Redis.
package rediscache

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/thriftx/storefront/internal/domain/coupon"
	"github.com/thriftx/storefront/internal/domain/pricing"
)

const keyPrefix = "thriftx:coupon:"

var _ coupon.Cache = (*CouponCache)(nil)

// CouponCache stores coupons as JSON under their normalized code.
type CouponCache struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewCouponCache constructs a cache with the given entry TTL.
func NewCouponCache(client redis.UniversalClient, ttl time.Duration) *CouponCache {
	return &CouponCache{client: client, ttl: ttl}
}

func key(code string) string {
	return keyPrefix + pricing.NormalizeCode(code)
}

// Get returns the cached coupon and whether it was present.
func (c *CouponCache) Get(ctx context.Context, code string) (*coupon.Coupon, bool, error) {
	data, err := c.client.Get(ctx, key(code)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, errors.Wrap(err, "redis get")
	}
	cp, err := decodeCoupon(data)
	if err != nil {
		return nil, false, errors.Wrap(err, "decode cached coupon")
	}
	return cp, true, nil
}

// Set stores cp with the configured TTL.
func (c *CouponCache) Set(ctx context.Context, cp *coupon.Coupon) error {
	if err := c.client.Set(ctx, key(cp.Code), encodeCoupon(cp), c.ttl).Err(); err != nil {
		return errors.Wrap(err, "redis set")
	}
	return nil
}

// Invalidate drops the entry for code.
func (c *CouponCache) Invalidate(ctx context.Context, code string) error {
	if err := c.client.Del(ctx, key(code)).Err(); err != nil {
		return errors.Wrap(err, "redis del")
	}
	return nil
}

func encodeCoupon(cp *coupon.Coupon) []byte {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("code")
	e.Str(cp.Code)
	e.FieldStart("type")
	e.Str(string(cp.DiscountType))
	e.FieldStart("value")
	e.Str(cp.DiscountValue.String())
	e.FieldStart("min_order")
	e.Int64(cp.MinOrderValue)
	e.FieldStart("status")
	e.Str(string(cp.Status))
	if !cp.ExpiresAt.IsZero() {
		e.FieldStart("expires_at")
		e.Str(cp.ExpiresAt.UTC().Format(time.RFC3339Nano))
	}
	e.FieldStart("description")
	e.Str(cp.Description)
	e.FieldStart("created_at")
	e.Str(cp.CreatedAt.UTC().Format(time.RFC3339Nano))
	e.ObjEnd()
	return e.Bytes()
}

func decodeCoupon(data []byte) (*coupon.Coupon, error) {
	var cp coupon.Coupon
	err := jx.DecodeBytes(data).Obj(func(d *jx.Decoder, k string) error {
		switch k {
		case "code":
			v, err := d.Str()
			cp.Code = v
			return err
		case "type":
			v, err := d.Str()
			cp.DiscountType = pricing.DiscountType(v)
			return err
		case "value":
			v, err := d.Str()
			if err != nil {
				return err
			}
			cp.DiscountValue, err = decimal.NewFromString(v)
			return err
		case "min_order":
			v, err := d.Int64()
			cp.MinOrderValue = v
			return err
		case "status":
			v, err := d.Str()
			cp.Status = pricing.CouponStatus(v)
			return err
		case "expires_at":
			return decodeTime(d, &cp.ExpiresAt)
		case "description":
			v, err := d.Str()
			cp.Description = v
			return err
		case "created_at":
			return decodeTime(d, &cp.CreatedAt)
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return nil, err
	}
	return &cp, nil
}

func decodeTime(d *jx.Decoder, dst *time.Time) error {
	v, err := d.Str()
	if err != nil {
		return err
	}
	*dst, err = time.Parse(time.RFC3339Nano, v)
	return err
}

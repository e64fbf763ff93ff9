package coupon

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thriftx/storefront/internal/domain/pricing"
)

var fixedNow = time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)

type mockCouponRepo struct {
	byCode    map[string]*Coupon
	findCalls int
	findErr   error
	createErr error
}

func newMockRepo(coupons ...Coupon) *mockCouponRepo {
	m := &mockCouponRepo{byCode: map[string]*Coupon{}}
	for i := range coupons {
		m.byCode[coupons[i].Code] = &coupons[i]
	}
	return m
}

func (m *mockCouponRepo) FindByCode(_ context.Context, code string) (*Coupon, error) {
	m.findCalls++
	if m.findErr != nil {
		return nil, m.findErr
	}
	c, ok := m.byCode[pricing.NormalizeCode(code)]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *mockCouponRepo) List(_ context.Context) ([]Coupon, error) {
	out := make([]Coupon, 0, len(m.byCode))
	for _, c := range m.byCode {
		out = append(out, *c)
	}
	return out, nil
}

func (m *mockCouponRepo) Create(_ context.Context, c *Coupon) error {
	if m.createErr != nil {
		return m.createErr
	}
	if _, ok := m.byCode[c.Code]; ok {
		return ErrAlreadyExists
	}
	cp := *c
	m.byCode[c.Code] = &cp
	return nil
}

func (m *mockCouponRepo) SetStatus(_ context.Context, code string, status pricing.CouponStatus) error {
	c, ok := m.byCode[code]
	if !ok {
		return ErrNotFound
	}
	c.Status = status
	return nil
}

func (m *mockCouponRepo) Delete(_ context.Context, code string) error {
	if _, ok := m.byCode[code]; !ok {
		return ErrNotFound
	}
	delete(m.byCode, code)
	return nil
}

type mockCache struct {
	entries     map[string]*Coupon
	getErr      error
	invalidated []string
}

func newMockCache() *mockCache {
	return &mockCache{entries: map[string]*Coupon{}}
}

func (m *mockCache) Get(_ context.Context, code string) (*Coupon, bool, error) {
	if m.getErr != nil {
		return nil, false, m.getErr
	}
	c, ok := m.entries[code]
	return c, ok, nil
}

func (m *mockCache) Set(_ context.Context, c *Coupon) error {
	m.entries[c.Code] = c
	return nil
}

func (m *mockCache) Invalidate(_ context.Context, code string) error {
	m.invalidated = append(m.invalidated, code)
	delete(m.entries, code)
	return nil
}

func activeCoupon(code string, dt pricing.DiscountType, value string, minOrder int64) Coupon {
	return Coupon{
		Coupon: pricing.Coupon{
			Code:          code,
			DiscountType:  dt,
			DiscountValue: decimal.RequireFromString(value),
			MinOrderValue: minOrder,
			Status:        pricing.StatusActive,
			ExpiresAt:     fixedNow.Add(72 * time.Hour),
		},
	}
}

func newTestService(repo *mockCouponRepo, cache Cache) *Service {
	s := NewService(repo, NewDirectory(repo, cache))
	s.now = func() time.Time { return fixedNow }
	return s
}

func TestDirectory_Lookup(t *testing.T) {
	repo := newMockRepo(activeCoupon("SAVE20", pricing.DiscountPercent, "20", 0))
	cache := newMockCache()
	dir := NewDirectory(repo, cache)
	ctx := context.Background()

	c, err := dir.Lookup(ctx, " save20 ")
	require.NoError(t, err)
	assert.Equal(t, "SAVE20", c.Code)
	assert.Equal(t, 1, repo.findCalls)

	_, err = dir.Lookup(ctx, "SAVE20")
	require.NoError(t, err)
	assert.Equal(t, 1, repo.findCalls, "second lookup is served from cache")

	_, err = dir.Lookup(ctx, "NOPE")
	require.ErrorIs(t, err, ErrNotFound)

	_, err = dir.Lookup(ctx, "   ")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDirectory_CacheFailureFallsThrough(t *testing.T) {
	repo := newMockRepo(activeCoupon("SAVE20", pricing.DiscountPercent, "20", 0))
	cache := newMockCache()
	cache.getErr = errors.New("redis down")

	c, err := NewDirectory(repo, cache).Lookup(context.Background(), "SAVE20")
	require.NoError(t, err)
	assert.Equal(t, "SAVE20", c.Code)
}

// disablingRepo disables the coupon right after handing out the active
// row, the way an operator action can land between a read and a cache fill.
type disablingRepo struct {
	*mockCouponRepo
	svc  *Service
	once bool
}

func (r *disablingRepo) FindByCode(ctx context.Context, code string) (*Coupon, error) {
	c, err := r.mockCouponRepo.FindByCode(ctx, code)
	if err == nil && !r.once {
		r.once = true
		if err := r.svc.Disable(ctx, code); err != nil {
			return nil, err
		}
	}
	return c, err
}

func TestDirectory_LookupFreshSeesDisableRacingCacheFill(t *testing.T) {
	base := newMockRepo(activeCoupon("SAVE", pricing.DiscountFlat, "100", 0))
	cache := newMockCache()
	repo := &disablingRepo{mockCouponRepo: base}
	dir := NewDirectory(repo, cache)
	repo.svc = NewService(base, dir)
	ctx := context.Background()

	c, err := dir.Lookup(ctx, "SAVE")
	require.NoError(t, err)
	assert.Equal(t, pricing.StatusActive, c.Status)
	assert.Contains(t, cache.entries, "SAVE", "stale row was written back after invalidation")

	fresh, err := dir.LookupFresh(ctx, "save")
	require.NoError(t, err)
	assert.Equal(t, pricing.StatusDisabled, fresh.Status)
	assert.Equal(t, pricing.StatusActive, cache.entries["SAVE"].Status, "fresh lookup leaves the cache alone")

	_, err = dir.LookupFresh(ctx, " ")
	require.ErrorIs(t, err, ErrNotFound)
	_, err = dir.LookupFresh(ctx, "NOPE")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDirectory_RepoError(t *testing.T) {
	repo := newMockRepo()
	repo.findErr = errors.New("db error")

	_, err := NewDirectory(repo, nil).Lookup(context.Background(), "X")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lookup coupon")
}

func TestService_Create(t *testing.T) {
	tests := []struct {
		name    string
		params  CreateParams
		wantErr error
		check   func(t *testing.T, c *Coupon)
	}{
		{
			name: "percent coupon with aliased type",
			params: CreateParams{
				Code:          "spring-25",
				DiscountType:  "percentage",
				DiscountValue: decimal.NewFromInt(25),
				MinOrderValue: 500,
				ExpiresOn:     time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC),
			},
			check: func(t *testing.T, c *Coupon) {
				assert.Equal(t, "SPRING-25", c.Code)
				assert.Equal(t, pricing.DiscountPercent, c.DiscountType)
				assert.Equal(t, pricing.StatusActive, c.Status)
				assert.Equal(t, time.Date(2026, 7, 1, 23, 59, 59, 999999999, time.UTC), c.ExpiresAt)
			},
		},
		{
			name:   "amount alias resolves to flat",
			params: CreateParams{Code: "TENOFF", DiscountType: "amount", DiscountValue: decimal.NewFromInt(10)},
			check: func(t *testing.T, c *Coupon) {
				assert.Equal(t, pricing.DiscountFlat, c.DiscountType)
				assert.True(t, c.ExpiresAt.IsZero())
			},
		},
		{
			name:    "unknown discount type",
			params:  CreateParams{Code: "BOGO", DiscountType: "bogo", DiscountValue: decimal.NewFromInt(1)},
			wantErr: ErrInvalidCoupon,
		},
		{
			name:    "percentage over 100",
			params:  CreateParams{Code: "TOOMUCH", DiscountType: "percent", DiscountValue: decimal.NewFromInt(120)},
			wantErr: ErrInvalidCoupon,
		},
		{
			name:    "negative minimum order",
			params:  CreateParams{Code: "NEGMIN", DiscountType: "flat", DiscountValue: decimal.NewFromInt(1), MinOrderValue: -1},
			wantErr: ErrInvalidCoupon,
		},
		{
			name:    "invalid characters",
			params:  CreateParams{Code: "HAS SPACE", DiscountType: "flat", DiscountValue: decimal.NewFromInt(1)},
			wantErr: ErrInvalidCoupon,
		},
		{
			name:    "duplicate code",
			params:  CreateParams{Code: "existing", DiscountType: "flat", DiscountValue: decimal.NewFromInt(1)},
			wantErr: ErrAlreadyExists,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newMockRepo(activeCoupon("EXISTING", pricing.DiscountFlat, "5", 0))
			svc := newTestService(repo, nil)

			got, err := svc.Create(context.Background(), tt.params)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			tt.check(t, got)
			assert.Contains(t, repo.byCode, got.Code)
		})
	}
}

func TestService_StatusChangesInvalidateCache(t *testing.T) {
	repo := newMockRepo(activeCoupon("SAVE20", pricing.DiscountPercent, "20", 0))
	cache := newMockCache()
	svc := newTestService(repo, cache)
	ctx := context.Background()

	_, err := svc.dir.Lookup(ctx, "SAVE20")
	require.NoError(t, err)
	require.Contains(t, cache.entries, "SAVE20")

	require.NoError(t, svc.Disable(ctx, "save20"))
	assert.Equal(t, pricing.StatusDisabled, repo.byCode["SAVE20"].Status)
	assert.NotContains(t, cache.entries, "SAVE20")

	require.NoError(t, svc.Enable(ctx, "SAVE20"))
	assert.Equal(t, pricing.StatusActive, repo.byCode["SAVE20"].Status)

	require.NoError(t, svc.Delete(ctx, "Save20"))
	assert.NotContains(t, repo.byCode, "SAVE20")
	assert.Equal(t, []string{"SAVE20", "SAVE20", "SAVE20"}, cache.invalidated)

	require.ErrorIs(t, svc.Delete(ctx, "SAVE20"), ErrNotFound)
}

func TestService_EnableExpired(t *testing.T) {
	c := activeCoupon("OLD", pricing.DiscountFlat, "5", 0)
	c.Status = pricing.StatusDisabled
	c.ExpiresAt = fixedNow.Add(-time.Hour)
	svc := newTestService(newMockRepo(c), nil)

	require.ErrorIs(t, svc.Enable(context.Background(), "OLD"), ErrExpired)
}

func TestService_Preview(t *testing.T) {
	disabled := activeCoupon("OFF", pricing.DiscountPercent, "10", 0)
	disabled.Status = pricing.StatusDisabled

	repo := newMockRepo(
		activeCoupon("SAVE20", pricing.DiscountPercent, "20", 500),
		activeCoupon("FLAT100", pricing.DiscountFlat, "100", 0),
		disabled,
	)
	svc := newTestService(repo, nil)
	ctx := context.Background()

	tests := []struct {
		name         string
		code         string
		subtotal     int64
		wantEligible bool
		wantReason   pricing.IneligibleReason
		wantDiscount int64
	}{
		{name: "eligible percent", code: "save20", subtotal: 1000, wantEligible: true, wantDiscount: 200},
		{name: "below minimum", code: "SAVE20", subtotal: 100, wantReason: pricing.ReasonBelowMinimum},
		{name: "flat capped", code: "FLAT100", subtotal: 50, wantEligible: true, wantDiscount: 50},
		{name: "disabled", code: "OFF", subtotal: 1000, wantReason: pricing.ReasonInactive},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := svc.Preview(ctx, tt.code, tt.subtotal)
			require.NoError(t, err)
			assert.Equal(t, tt.wantEligible, p.Eligible)
			assert.Equal(t, tt.wantReason, p.Reason)
			assert.Equal(t, tt.wantDiscount, p.Discount)
		})
	}

	_, err := svc.Preview(ctx, "MISSING", 100)
	require.ErrorIs(t, err, ErrNotFound)
}

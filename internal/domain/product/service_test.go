package product

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockRepo struct {
	created   []*Product
	createErr error
	statuses  map[string]Status
}

func (m *mockRepo) List(_ context.Context, _ Filter) ([]Product, error) { return nil, nil }

func (m *mockRepo) GetByID(_ context.Context, _ string) (*Product, error) { return nil, ErrNotFound }

func (m *mockRepo) GetByIDs(_ context.Context, _ []string) ([]Product, error) { return nil, nil }

func (m *mockRepo) Create(_ context.Context, p *Product) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.created = append(m.created, p)
	return nil
}

func (m *mockRepo) SetStatus(_ context.Context, id string, status Status) error {
	if m.statuses == nil {
		m.statuses = map[string]Status{}
	}
	m.statuses[id] = status
	return nil
}

func TestService_Create(t *testing.T) {
	now := time.Date(2026, 4, 2, 8, 30, 0, 0, time.UTC)

	tests := []struct {
		name      string
		params    CreateParams
		wantErr   bool
		wantStock int
	}{
		{
			name:      "defaults stock to one",
			params:    CreateParams{SellerID: "s1", Name: " Wool coat ", Category: "Outerwear", Price: 4500},
			wantStock: 1,
		},
		{
			name:      "keeps explicit stock",
			params:    CreateParams{SellerID: "s1", Name: "Socks", Category: "accessories", Price: 300, Stock: 4},
			wantStock: 4,
		},
		{name: "missing seller", params: CreateParams{Name: "x", Category: "tops"}, wantErr: true},
		{name: "missing name", params: CreateParams{SellerID: "s1", Category: "tops"}, wantErr: true},
		{name: "missing category", params: CreateParams{SellerID: "s1", Name: "x"}, wantErr: true},
		{name: "negative price", params: CreateParams{SellerID: "s1", Name: "x", Category: "tops", Price: -1}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockRepo{}
			svc := NewService(repo)
			svc.now = func() time.Time { return now }

			p, err := svc.Create(context.Background(), tt.params)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidListing)
				assert.Empty(t, repo.created)
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, p.ID)
			assert.Equal(t, tt.wantStock, p.Stock)
			assert.Equal(t, StatusAvailable, p.Status)
			assert.Equal(t, now, p.CreatedAt)
			require.Len(t, repo.created, 1)
		})
	}
}

func TestService_CreateNormalizes(t *testing.T) {
	svc := NewService(&mockRepo{})

	p, err := svc.Create(context.Background(), CreateParams{SellerID: "s1", Name: " Wool coat ", Category: " Outerwear"})
	require.NoError(t, err)
	assert.Equal(t, "Wool coat", p.Name)
	assert.Equal(t, "outerwear", p.Category)
}

func TestService_CreateRepoError(t *testing.T) {
	svc := NewService(&mockRepo{createErr: errors.New("insert failed")})

	_, err := svc.Create(context.Background(), CreateParams{SellerID: "s1", Name: "x", Category: "tops"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create listing")
}

func TestService_SetStatus(t *testing.T) {
	repo := &mockRepo{}
	svc := NewService(repo)

	require.NoError(t, svc.SetStatus(context.Background(), "p1", StatusHidden))
	assert.Equal(t, StatusHidden, repo.statuses["p1"])

	require.ErrorIs(t, svc.SetStatus(context.Background(), "p1", Status("gone")), ErrInvalidListing)
}

func TestProduct_Purchasable(t *testing.T) {
	p := Product{Status: StatusAvailable, Stock: 2}
	assert.True(t, p.Purchasable(2))
	assert.False(t, p.Purchasable(3))

	p.Status = StatusHidden
	assert.False(t, p.Purchasable(1))
}

package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockRepo map[string]*APIKeyInfo

func (m mockRepo) FindByHash(_ context.Context, hash string) (*APIKeyInfo, error) {
	k, ok := m[hash]
	if !ok {
		return nil, ErrNotFound
	}
	return k, nil
}

func TestAuthenticate(t *testing.T) {
	pepper := []byte("pepper")
	good := HashKey(pepper, "seller-key")
	repo := mockRepo{
		good:       {ID: "k1", KeyHash: good, Name: "seller-7", Scopes: []Scope{ScopeSeller}},
		"tampered": {ID: "k2", KeyHash: "not-hex"},
	}
	a := NewAuthenticator(repo, pepper)
	ctx := context.Background()

	k, err := a.Authenticate(ctx, "seller-key")
	require.NoError(t, err)
	assert.Equal(t, "seller-7", k.Name)

	tests := []struct {
		name string
		raw  string
	}{
		{name: "empty", raw: ""},
		{name: "unknown", raw: "nope"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := a.Authenticate(ctx, tt.raw)
			require.ErrorIs(t, err, ErrUnauthorized)
		})
	}

	_, err = NewAuthenticator(repo, []byte("other")).Authenticate(ctx, "seller-key")
	require.ErrorIs(t, err, ErrUnauthorized, "different pepper")
}

func TestAuthenticate_StoredHashMismatch(t *testing.T) {
	pepper := []byte("p")
	hash := HashKey(pepper, "k")
	repo := mockRepo{hash: {ID: "k1", KeyHash: HashKey(pepper, "other")}}

	_, err := NewAuthenticator(repo, pepper).Authenticate(context.Background(), "k")
	require.ErrorIs(t, err, ErrUnauthorized)
}

type failingRepo struct{ err error }

func (f failingRepo) FindByHash(context.Context, string) (*APIKeyInfo, error) {
	return nil, f.err
}

func TestAuthenticate_StoreError(t *testing.T) {
	down := errors.New("connection reset")
	_, err := NewAuthenticator(failingRepo{err: down}, []byte("p")).Authenticate(context.Background(), "k")
	require.ErrorIs(t, err, down)
	assert.NotErrorIs(t, err, ErrUnauthorized)
}

func TestHasScope(t *testing.T) {
	seller := &APIKeyInfo{Scopes: []Scope{ScopeSeller}}
	admin := &APIKeyInfo{Scopes: []Scope{ScopeAdmin}}

	assert.True(t, seller.HasScope(ScopeSeller))
	assert.False(t, seller.HasScope(ScopeAdmin))
	assert.True(t, admin.HasScope(ScopeSeller))
	assert.False(t, (&APIKeyInfo{}).HasScope(ScopeSeller))
}

func TestContext(t *testing.T) {
	_, ok := KeyFrom(context.Background())
	assert.False(t, ok)

	k := &APIKeyInfo{ID: "k1"}
	got, ok := KeyFrom(WithKey(context.Background(), k))
	require.True(t, ok)
	assert.Same(t, k, got)
}

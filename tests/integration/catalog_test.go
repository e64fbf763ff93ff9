//go:build integration

package integration

import (
	"net/http"
	"testing"
)

func TestListProducts(t *testing.T) {
	products := expect[[]productResponse](t, doGet(t, "/api/products"), http.StatusOK)

	if len(products) < seededSize {
		t.Fatalf("expected at least %d products, got %d", seededSize, len(products))
	}
	for _, p := range products {
		if p.Status != "available" {
			t.Errorf("product %s: public listing returned status %q", p.ID, p.Status)
		}
		if p.SellerID == "" {
			t.Errorf("product %s: missing sellerId", p.ID)
		}
	}
}

func TestListProducts_HiddenFilterRejected(t *testing.T) {
	expectStatus(t, doGet(t, "/api/products?status=hidden"), http.StatusBadRequest)
}

func TestGetProduct(t *testing.T) {
	p := expect[productResponse](t, doGet(t, "/api/products/tx-0002"), http.StatusOK)

	if p.Name != "Wool Overcoat" {
		t.Errorf("name: got %q, want %q", p.Name, "Wool Overcoat")
	}
	if p.Price != 8900 {
		t.Errorf("price: got %d, want 8900", p.Price)
	}
	if p.Image.Thumbnail == "" {
		t.Error("image thumbnail is empty")
	}
}

func TestGetProduct_NotFound(t *testing.T) {
	body := expect[errorResponse](t, doGet(t, "/api/products/does-not-exist"), http.StatusNotFound)

	if body.Code != http.StatusNotFound {
		t.Errorf("error code: got %d, want 404", body.Code)
	}
	if body.Message == "" {
		t.Error("error message is empty")
	}
}

func TestUnknownRoute(t *testing.T) {
	expectStatus(t, doGet(t, "/api/nope"), http.StatusNotFound)
}

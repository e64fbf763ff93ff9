//go:build integration

package integration

import (
	"net/http"
	"strconv"
	"strings"
	"testing"
)

func TestRequestID(t *testing.T) {
	resp := doGet(t, "/api/products")
	expectStatus(t, resp, http.StatusOK)
	if len(resp.Header.Get("X-Request-ID")) != 36 {
		t.Fatalf("expected generated UUID request id, got %q", resp.Header.Get("X-Request-ID"))
	}

	resp = doGet(t, "/api/products", header{"X-Request-ID", "checkout-trace-42"})
	expectStatus(t, resp, http.StatusOK)
	if got := resp.Header.Get("X-Request-ID"); got != "checkout-trace-42" {
		t.Fatalf("X-Request-ID: got %q, want %q", got, "checkout-trace-42")
	}
}

func TestCORS_Preflight(t *testing.T) {
	resp := do(t, http.MethodOptions, "/api/cart/items", nil,
		header{"Origin", "https://shop.example"},
		header{"Access-Control-Request-Method", http.MethodPost},
		header{"Access-Control-Request-Headers", "x-shopper-id, content-type"},
	)
	expectStatus(t, resp, http.StatusNoContent)

	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Access-Control-Allow-Origin: got %q, want *", got)
	}
	if got := resp.Header.Get("Access-Control-Allow-Methods"); !strings.Contains(got, http.MethodPatch) {
		t.Errorf("Access-Control-Allow-Methods %q lacks PATCH", got)
	}
	allowed := resp.Header.Get("Access-Control-Allow-Headers")
	for _, h := range []string{"api_key", "X-Shopper-ID"} {
		if !strings.Contains(allowed, h) {
			t.Errorf("Access-Control-Allow-Headers %q lacks %s", allowed, h)
		}
	}
}

func TestCORS_ExposesStorefrontHeaders(t *testing.T) {
	resp := doGet(t, "/api/products", header{"Origin", "https://shop.example"})
	expectStatus(t, resp, http.StatusOK)

	exposed := resp.Header.Get("Access-Control-Expose-Headers")
	for _, h := range []string{"X-Request-ID", "X-RateLimit-Remaining", "Retry-After"} {
		if !strings.Contains(exposed, h) {
			t.Errorf("Access-Control-Expose-Headers %q lacks %s", exposed, h)
		}
	}
}

func TestRateLimit_PerShopper(t *testing.T) {
	remaining := func(h header) int {
		t.Helper()
		resp := doGet(t, "/api/cart", h)
		expectStatus(t, resp, http.StatusOK)
		if resp.Header.Get("X-RateLimit-Limit") == "" {
			t.Fatal("X-RateLimit-Limit header not present")
		}
		n, err := strconv.Atoi(resp.Header.Get("X-RateLimit-Remaining"))
		if err != nil {
			t.Fatalf("X-RateLimit-Remaining: %v", err)
		}
		return n
	}

	ana, ben := uniqueShopper(t), shopper(uniqueShopper(t).value+"-ben")

	first := remaining(ana)
	if second := remaining(ana); second != first-1 {
		t.Fatalf("same shopper: remaining went %d -> %d", first, second)
	}
	if other := remaining(ben); other != first {
		t.Fatalf("other shopper should have a fresh budget: got %d, want %d", other, first)
	}
}

package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/ehr/chart/internal/platform/auth"
)

func doLimited(h echo.HandlerFunc, e *echo.Echo, remoteAddr, user string) (*httptest.ResponseRecorder, error) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = remoteAddr
	if user != "" {
		req = req.WithContext(context.WithValue(req.Context(), auth.UserIDKey, user))
	}
	rec := httptest.NewRecorder()
	return rec, h(e.NewContext(req, rec))
}

func okHandler(c echo.Context) error { return c.String(http.StatusOK, "ok") }

func TestRateLimit_RequestsWithinLimit(t *testing.T) {
	e := echo.New()
	h := RateLimit(RateLimitConfig{RequestsPerSecond: 10, BurstSize: 5})(okHandler)

	for i := 0; i < 5; i++ {
		rec, err := doLimited(h, e, "10.0.0.1:1234", "")
		if err != nil {
			t.Fatalf("request %d: expected no error, got %v", i+1, err)
		}
		if got := rec.Header().Get("X-RateLimit-Limit"); got != "10" {
			t.Errorf("request %d: expected X-RateLimit-Limit '10', got %q", i+1, got)
		}
	}
}

func TestRateLimit_ExceedsLimit(t *testing.T) {
	e := echo.New()
	h := RateLimit(RateLimitConfig{RequestsPerSecond: 1, BurstSize: 2})(okHandler)

	for i := 0; i < 2; i++ {
		if _, err := doLimited(h, e, "10.0.0.1:1234", ""); err != nil {
			t.Fatalf("request %d: expected no error, got %v", i+1, err)
		}
	}

	rec, err := doLimited(h, e, "10.0.0.1:1234", "")
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %v", err)
	}
	retry, convErr := strconv.Atoi(rec.Header().Get("Retry-After"))
	if convErr != nil || retry < 1 {
		t.Errorf("expected positive Retry-After, got %q", rec.Header().Get("Retry-After"))
	}
	if rec.Header().Get("X-RateLimit-Remaining") != "0" {
		t.Error("expected X-RateLimit-Remaining 0")
	}
}

func TestRateLimit_SeparateKeys(t *testing.T) {
	e := echo.New()
	h := RateLimit(RateLimitConfig{RequestsPerSecond: 0.001, BurstSize: 1})(okHandler)

	if _, err := doLimited(h, e, "10.0.0.1:1", ""); err != nil {
		t.Fatalf("first IP: %v", err)
	}
	if _, err := doLimited(h, e, "10.0.0.2:1", ""); err != nil {
		t.Fatalf("second IP should have its own bucket: %v", err)
	}
	// Authenticated users are keyed by user id, not address.
	if _, err := doLimited(h, e, "10.0.0.1:1", "doc-1"); err != nil {
		t.Fatalf("user bucket should be separate from IP bucket: %v", err)
	}
	if _, err := doLimited(h, e, "10.0.0.9:1", "doc-1"); err == nil {
		t.Fatal("expected same user from another IP to be limited")
	}
}

func TestRateLimiterStore_Sweep(t *testing.T) {
	store := newRateLimiterStore(DefaultRateLimitConfig())
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	store.limiter("old")

	now = now.Add(20 * time.Minute)
	store.limiter("fresh")

	if removed := store.sweep(10 * time.Minute); removed != 1 {
		t.Errorf("expected 1 idle visitor removed, got %d", removed)
	}
	if _, ok := store.visitors["fresh"]; !ok {
		t.Error("expected fresh visitor kept")
	}
}

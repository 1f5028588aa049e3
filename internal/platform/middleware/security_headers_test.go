package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestSecurityHeaders(t *testing.T) {
	for _, hsts := range []bool{false, true} {
		e := echo.New()
		rec := httptest.NewRecorder()
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/api/v1/patients", nil), rec)

		if err := SecurityHeaders(hsts)(func(c echo.Context) error {
			return c.String(http.StatusOK, "ok")
		})(c); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		expected := map[string]string{
			"X-Content-Type-Options":  "nosniff",
			"X-Frame-Options":         "DENY",
			"Content-Security-Policy": "default-src 'none'; frame-ancestors 'none'",
			"Referrer-Policy":         "no-referrer",
			"Cache-Control":           "no-store",
			"Permissions-Policy":      "camera=(), microphone=(), geolocation=()",
		}
		for header, want := range expected {
			if got := rec.Header().Get(header); got != want {
				t.Errorf("hsts=%v %s: expected %q, got %q", hsts, header, want, got)
			}
		}
		if got := rec.Header().Get("Strict-Transport-Security") != ""; got != hsts {
			t.Errorf("hsts=%v: Strict-Transport-Security presence = %v", hsts, got)
		}
	}
}

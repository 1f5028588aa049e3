package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

var testSigningKey = []byte("test-secret-key-for-unit-tests-only")

func createTestToken(t *testing.T, claims Claims, key []byte) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenStr, err := token.SignedString(key)
	if err != nil {
		t.Fatalf("failed to sign test token: %v", err)
	}
	return tokenStr
}

func newAuthContext(header string) echo.Context {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	return e.NewContext(req, httptest.NewRecorder())
}

func expectStatus(t *testing.T, err error, code int) {
	t.Helper()
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T (%v)", err, err)
	}
	if httpErr.Code != code {
		t.Errorf("expected %d, got %d", code, httpErr.Code)
	}
}

func TestJWTMiddleware_MissingHeader(t *testing.T) {
	c := newAuthContext("")
	h := JWTMiddleware(JWTConfig{SigningKey: testSigningKey})(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	expectStatus(t, h(c), http.StatusUnauthorized)
}

func TestJWTMiddleware_InvalidFormat(t *testing.T) {
	tests := []struct {
		name   string
		header string
	}{
		{"no bearer prefix", "Token abc123"},
		{"missing token", "Bearer"},
		{"empty value", "Bearer "},
		{"basic auth", "Basic dXNlcjpwYXNz"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newAuthContext(tt.header)
			h := JWTMiddleware(JWTConfig{SigningKey: testSigningKey})(func(c echo.Context) error {
				return c.String(http.StatusOK, "ok")
			})
			expectStatus(t, h(c), http.StatusUnauthorized)
		})
	}
}

func TestJWTMiddleware_ValidTokenSetsIdentity(t *testing.T) {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "doc-7",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Name:  "Dr. Seven",
		Roles: []string{"physician"},
	}
	c := newAuthContext("Bearer " + createTestToken(t, claims, testSigningKey))

	var got Identity
	h := JWTMiddleware(JWTConfig{SigningKey: testSigningKey})(func(c echo.Context) error {
		got, _ = IdentityFromContext(c.Request().Context())
		return nil
	})
	if err := h(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != "doc-7" || got.Name != "Dr. Seven" {
		t.Errorf("unexpected identity: %+v", got)
	}
	if len(got.Roles) != 1 || got.Roles[0] != "physician" {
		t.Errorf("expected physician role, got %v", got.Roles)
	}
}

func TestJWTMiddleware_ExpiredToken(t *testing.T) {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "doc-7",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	}
	c := newAuthContext("Bearer " + createTestToken(t, claims, testSigningKey))
	h := JWTMiddleware(JWTConfig{SigningKey: testSigningKey})(func(c echo.Context) error { return nil })
	expectStatus(t, h(c), http.StatusUnauthorized)
}

func TestJWTMiddleware_WrongKey(t *testing.T) {
	claims := Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "doc-7"}}
	c := newAuthContext("Bearer " + createTestToken(t, claims, []byte("other-key")))
	h := JWTMiddleware(JWTConfig{SigningKey: testSigningKey})(func(c echo.Context) error { return nil })
	expectStatus(t, h(c), http.StatusUnauthorized)
}

func TestIssueToken_RoundTrip(t *testing.T) {
	cfg := JWTConfig{SigningKey: testSigningKey, Issuer: "chart"}
	tok, err := IssueToken(cfg, Identity{ID: "d1", Name: "Dr. X", Roles: []string{"physician"}}, time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	c := newAuthContext("Bearer " + tok)
	var uid string
	h := JWTMiddleware(cfg)(func(c echo.Context) error {
		uid = UserIDFromContext(c.Request().Context())
		return nil
	})
	if err := h(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if uid != "d1" {
		t.Errorf("expected subject d1, got %q", uid)
	}

	if _, err := IssueToken(JWTConfig{}, Identity{ID: "d1"}, time.Minute); err == nil {
		t.Error("expected error without signing key")
	}
}

func TestDevAuthMiddleware_NoToken(t *testing.T) {
	c := newAuthContext("")

	var got Identity
	var ok bool
	h := DevAuthMiddleware(JWTConfig{})(func(c echo.Context) error {
		got, ok = IdentityFromContext(c.Request().Context())
		return c.String(http.StatusOK, "ok")
	})
	if err := h(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok || got.ID != DevUserID || got.Name != DevUserName {
		t.Errorf("expected development identity, got %+v", got)
	}
	roles := got.Roles
	if len(roles) != 1 || roles[0] != "admin" {
		t.Errorf("expected roles=[admin], got %v", roles)
	}
}

func TestDevAuthMiddleware_ValidatesPresentedToken(t *testing.T) {
	c := newAuthContext("Bearer garbage")
	h := DevAuthMiddleware(JWTConfig{SigningKey: testSigningKey})(func(c echo.Context) error { return nil })
	expectStatus(t, h(c), http.StatusUnauthorized)
}

func TestIdentityFromContext_Empty(t *testing.T) {
	c := newAuthContext("")
	if _, ok := IdentityFromContext(c.Request().Context()); ok {
		t.Error("expected no identity on a bare request")
	}
}

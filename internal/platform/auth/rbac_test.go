package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func roleContext(roles []string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(context.WithValue(req.Context(), UserRolesKey, roles))
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestRequireRole_Allowed(t *testing.T) {
	c, rec := roleContext([]string{RolePhysician})
	h := RequireRole("physician", "nurse")(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	if err := h(c); err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestRequireRole_AdminBypass(t *testing.T) {
	c, _ := roleContext([]string{RoleAdmin})
	h := RequireRole("physician")(func(c echo.Context) error { return nil })
	if err := h(c); err != nil {
		t.Errorf("expected admin to pass, got %v", err)
	}
}

func TestRequireRole_Denied(t *testing.T) {
	c, _ := roleContext([]string{RoleNurse})
	h := RequireRole("physician")(func(c echo.Context) error { return nil })
	err := h(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %v", err)
	}
}

func TestHasAnyRole(t *testing.T) {
	tests := []struct {
		name  string
		roles []string
		want  []string
		ok    bool
	}{
		{"match", []string{RoleNurse}, Clinicians, true},
		{"no match", []string{RoleRegistrar}, Clinicians, false},
		{"admin holds every role", []string{RoleAdmin}, []string{RolePharmacist}, true},
		{"no roles", nil, []string{RolePhysician}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.WithValue(context.Background(), UserRolesKey, tt.roles)
			if got := HasAnyRole(ctx, tt.want...); got != tt.ok {
				t.Errorf("HasAnyRole(%v, %v) = %v, want %v", tt.roles, tt.want, got, tt.ok)
			}
		})
	}
}

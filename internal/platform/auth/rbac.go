package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// Clinical roles carried in the token's roles claim.
const (
	RoleAdmin      = "admin"
	RolePhysician  = "physician"
	RoleNurse      = "nurse"
	RolePharmacist = "pharmacist"
	RoleRegistrar  = "registrar"
)

// Clinicians may read charts and the drug catalog.
var Clinicians = []string{RolePhysician, RoleNurse, RolePharmacist}

// HasAnyRole reports whether the caller holds one of roles. Admins hold
// every role.
func HasAnyRole(ctx context.Context, roles ...string) bool {
	for _, has := range RolesFromContext(ctx) {
		if has == RoleAdmin {
			return true
		}
		for _, want := range roles {
			if has == want {
				return true
			}
		}
	}
	return false
}

// RequireRole rejects callers without any of roles with 403.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	denied := "requires role " + strings.Join(roles, " or ")
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !HasAnyRole(c.Request().Context(), roles...) {
				return echo.NewHTTPError(http.StatusForbidden, denied)
			}
			return next(c)
		}
	}
}

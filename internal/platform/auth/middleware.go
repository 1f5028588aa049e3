// Package auth carries the minimal identity plumbing the chart service needs:
// an HS256 bearer token check, a permissive development middleware and role
// guards. The authenticated user becomes the default prescriber and author.
package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

type contextKey string

const (
	UserIDKey    contextKey = "user_id"
	UserNameKey  contextKey = "user_name"
	UserRolesKey contextKey = "user_roles"
)

// Development identity injected when no token is presented.
const (
	DevUserID   = "dev-user"
	DevUserName = "Dr. Development"
)

type Claims struct {
	jwt.RegisteredClaims
	Name  string   `json:"name"`
	Roles []string `json:"roles"`
}

type JWTConfig struct {
	Issuer     string
	Audience   string
	SigningKey []byte
}

// Identity is the authenticated clinician behind a request.
type Identity struct {
	ID    string   `json:"id"`
	Name  string   `json:"name"`
	Roles []string `json:"roles,omitempty"`
}

// IssueToken signs an HS256 token for the given identity.
func IssueToken(cfg JWTConfig, id Identity, ttl time.Duration) (string, error) {
	if len(cfg.SigningKey) == 0 {
		return "", fmt.Errorf("signing key is required")
	}
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.ID,
			Issuer:    cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Name:  id.Name,
		Roles: id.Roles,
	}
	if cfg.Audience != "" {
		claims.Audience = jwt.ClaimStrings{cfg.Audience}
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(cfg.SigningKey)
}

func parseToken(cfg JWTConfig, header string) (*Claims, error) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization format")
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{"HS256"})}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(parts[1], claims, func(t *jwt.Token) (interface{}, error) {
		return cfg.SigningKey, nil
	}, opts...)
	if err != nil || !token.Valid {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
	}
	return claims, nil
}

func withIdentity(c echo.Context, id Identity) {
	ctx := c.Request().Context()
	ctx = context.WithValue(ctx, UserIDKey, id.ID)
	ctx = context.WithValue(ctx, UserNameKey, id.Name)
	ctx = context.WithValue(ctx, UserRolesKey, id.Roles)
	c.SetRequest(c.Request().WithContext(ctx))
}

func JWTMiddleware(cfg JWTConfig) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
			}
			claims, err := parseToken(cfg, authHeader)
			if err != nil {
				return err
			}
			withIdentity(c, Identity{ID: claims.Subject, Name: claims.Name, Roles: claims.Roles})
			return next(c)
		}
	}
}

// DevAuthMiddleware is a permissive middleware for development. Requests
// without a token run as the development physician; requests with a token
// are still validated when a signing key is configured.
func DevAuthMiddleware(cfg JWTConfig) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" || len(cfg.SigningKey) == 0 {
				withIdentity(c, Identity{ID: DevUserID, Name: DevUserName, Roles: []string{RoleAdmin}})
				return next(c)
			}
			claims, err := parseToken(cfg, authHeader)
			if err != nil {
				return err
			}
			withIdentity(c, Identity{ID: claims.Subject, Name: claims.Name, Roles: claims.Roles})
			return next(c)
		}
	}
}

func UserIDFromContext(ctx context.Context) string {
	uid, _ := ctx.Value(UserIDKey).(string)
	return uid
}

func RolesFromContext(ctx context.Context) []string {
	roles, _ := ctx.Value(UserRolesKey).([]string)
	return roles
}

// IdentityFromContext returns the request's identity, if any.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	uid := UserIDFromContext(ctx)
	if uid == "" {
		return Identity{}, false
	}
	name, _ := ctx.Value(UserNameKey).(string)
	if name == "" {
		name = uid
	}
	return Identity{ID: uid, Name: name, Roles: RolesFromContext(ctx)}, true
}

package middleware

import (
	"github.com/labstack/echo/v4"
)

// apiHeaders apply to every response. Chart data must never be cached or
// framed.
var apiHeaders = [][2]string{
	{echo.HeaderXContentTypeOptions, "nosniff"},
	{echo.HeaderXFrameOptions, "DENY"},
	{echo.HeaderContentSecurityPolicy, "default-src 'none'; frame-ancestors 'none'"},
	{echo.HeaderReferrerPolicy, "no-referrer"},
	{echo.HeaderCacheControl, "no-store"},
	{"Permissions-Policy", "camera=(), microphone=(), geolocation=()"},
}

const hstsValue = "max-age=31536000; includeSubDomains"

// SecurityHeaders sets apiHeaders and, when hsts is true, Strict-Transport-Security.
func SecurityHeaders(hsts bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()
			for _, kv := range apiHeaders {
				h.Set(kv[0], kv[1])
			}
			if hsts {
				h.Set(echo.HeaderStrictTransportSecurity, hstsValue)
			}
			return next(c)
		}
	}
}

package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
)

// RequestTimeout bounds the request context by d. A handler that returns
// because the deadline passed, or returns nothing after it passed without
// writing a response, yields 504. Websocket upgrades stay unbounded.
func RequestTimeout(d time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if strings.EqualFold(req.Header.Get(echo.HeaderUpgrade), "websocket") {
				return next(c)
			}

			ctx, cancel := context.WithTimeout(req.Context(), d)
			defer cancel()
			c.SetRequest(req.WithContext(ctx))

			err := next(c)
			expired := errors.Is(ctx.Err(), context.DeadlineExceeded)
			if errors.Is(err, context.DeadlineExceeded) || (err == nil && expired && !c.Response().Committed) {
				return echo.NewHTTPError(http.StatusGatewayTimeout, "request timed out after "+d.String())
			}
			return err
		}
	}
}

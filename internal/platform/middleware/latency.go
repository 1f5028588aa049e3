package middleware

import (
	"time"

	"github.com/labstack/echo/v4"
)

// SimulatedLatency delays every request by d before it reaches the handler,
// mimicking a remote backend during UI development. A cancelled request
// returns immediately with the context error.
func SimulatedLatency(d time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		if d <= 0 {
			return next
		}
		return func(c echo.Context) error {
			timer := time.NewTimer(d)
			defer timer.Stop()
			select {
			case <-timer.C:
				return next(c)
			case <-c.Request().Context().Done():
				return c.Request().Context().Err()
			}
		}
	}
}

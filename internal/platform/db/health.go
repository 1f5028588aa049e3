package db

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

const healthTimeout = 5 * time.Second

type PoolStats struct {
	TotalConns      int32  `json:"total_conns"`
	IdleConns       int32  `json:"idle_conns"`
	AcquiredConns   int32  `json:"acquired_conns"`
	MaxConns        int32  `json:"max_conns"`
	AcquireCount    int64  `json:"acquire_count"`
	AcquireDuration string `json:"acquire_duration"`
}

func GetPoolStats(pool *pgxpool.Pool) *PoolStats {
	stat := pool.Stat()
	return &PoolStats{
		TotalConns:      stat.TotalConns(),
		IdleConns:       stat.IdleConns(),
		AcquiredConns:   stat.AcquiredConns(),
		MaxConns:        stat.MaxConns(),
		AcquireCount:    stat.AcquireCount(),
		AcquireDuration: stat.AcquireDuration().String(),
	}
}

// Check is a named readiness check, e.g. a patient store round trip.
type Check struct {
	Name string
	Run  func(ctx context.Context) error
}

// Health is the /health response body.
type Health struct {
	Status string            `json:"status"`
	Store  string            `json:"store"`
	Checks map[string]string `json:"checks,omitempty"`
	Pool   *PoolStats        `json:"pool,omitempty"`
}

// HealthHandler pings the pool (nil means the memory store) and runs each
// check. Any failure reports 503 with the failing check's error.
func HealthHandler(pool *pgxpool.Pool, checks ...Check) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), healthTimeout)
		defer cancel()

		h := Health{Status: "healthy", Store: "memory", Checks: make(map[string]string, len(checks)+1)}
		run := checks
		if pool != nil {
			h.Store = "postgres"
			h.Pool = GetPoolStats(pool)
			run = append([]Check{{Name: "database", Run: pool.Ping}}, checks...)
		}
		for _, chk := range run {
			if err := chk.Run(ctx); err != nil {
				h.Status = "unhealthy"
				h.Checks[chk.Name] = err.Error()
				continue
			}
			h.Checks[chk.Name] = "ok"
		}

		code := http.StatusOK
		if h.Status != "healthy" {
			code = http.StatusServiceUnavailable
		}
		return c.JSON(code, h)
	}
}

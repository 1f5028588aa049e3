package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"

	"github.com/ehr/chart/internal/platform/auth"
)

type RateLimitConfig struct {
	RequestsPerSecond float64
	BurstSize         int
}

func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerSecond: 100,
		BurstSize:         200,
	}
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// rateLimiterStore holds one limiter per client key.
type rateLimiterStore struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	config   RateLimitConfig
	now      func() time.Time
}

func newRateLimiterStore(cfg RateLimitConfig) *rateLimiterStore {
	return &rateLimiterStore{
		visitors: make(map[string]*visitor),
		config:   cfg,
		now:      time.Now,
	}
}

func (s *rateLimiterStore) limiter(key string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rate.Limit(s.config.RequestsPerSecond), s.config.BurstSize)}
		s.visitors[key] = v
	}
	v.lastSeen = s.now()
	return v.limiter
}

// sweep forgets clients idle for longer than idle.
func (s *rateLimiterStore) sweep(idle time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := s.now().Add(-idle)
	removed := 0
	for key, v := range s.visitors {
		if v.lastSeen.Before(cutoff) {
			delete(s.visitors, key)
			removed++
		}
	}
	return removed
}

// RateLimit limits requests per authenticated user, or per client IP for
// anonymous requests.
func RateLimit(cfg RateLimitConfig) echo.MiddlewareFunc {
	store := newRateLimiterStore(cfg)
	var sweepOnce sync.Once
	limit := strconv.FormatFloat(cfg.RequestsPerSecond, 'f', 0, 64)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			sweepOnce.Do(func() {
				go func() {
					for range time.Tick(5 * time.Minute) {
						store.sweep(10 * time.Minute)
					}
				}()
			})

			key := c.RealIP()
			if uid := auth.UserIDFromContext(c.Request().Context()); uid != "" {
				key = "user:" + uid
			}

			lim := store.limiter(key)
			c.Response().Header().Set("X-RateLimit-Limit", limit)
			if !lim.Allow() {
				r := lim.Reserve()
				wait := r.Delay()
				r.Cancel()
				retry := int(math.Ceil(wait.Seconds()))
				if retry < 1 {
					retry = 1
				}
				c.Response().Header().Set("Retry-After", strconv.Itoa(retry))
				c.Response().Header().Set("X-RateLimit-Remaining", "0")
				return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
			}
			return next(c)
		}
	}
}

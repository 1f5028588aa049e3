package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/ehr/chart/internal/config"
	"github.com/ehr/chart/internal/domain/medication"
	"github.com/ehr/chart/internal/domain/notes"
	"github.com/ehr/chart/internal/domain/patient"
	"github.com/ehr/chart/internal/platform/auth"
	"github.com/ehr/chart/internal/platform/db"
	"github.com/ehr/chart/internal/platform/metrics"
	"github.com/ehr/chart/internal/platform/middleware"
	"github.com/ehr/chart/internal/platform/mockdata"
	"github.com/ehr/chart/internal/platform/scheduler"
	"github.com/ehr/chart/internal/platform/validation"
	"github.com/ehr/chart/internal/platform/websocket"
)

const sweepTaskName = "complete-expired-medications"

// app holds the wired services behind the HTTP server.
type app struct {
	cfg    *config.Config
	logger zerolog.Logger
	pool   *pgxpool.Pool
	jwt    auth.JWTConfig

	repo        patient.Repository
	patients    *patient.Service
	medications *medication.Manager
	chart       *notes.Service
	engine      *validation.Engine
	sessions    *validation.Registry
	hub         *websocket.Hub
	metrics     *metrics.Collector
	scheduler   *scheduler.Scheduler
	catalog     *mockdata.Catalog
	dataset     mockdata.Dataset
}

// openStore returns the configured patient repository. The pool is nil for
// the memory backend.
func openStore(ctx context.Context, cfg *config.Config) (patient.Repository, *pgxpool.Pool, error) {
	if cfg.StoreBackend != config.BackendPostgres {
		return patient.NewMemoryRepo(), nil, nil
	}
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, nil, err
	}
	return patient.NewPGRepo(pool), pool, nil
}

// resolveSigningKey accepts a hex-encoded key of at least 32 bytes or a raw
// passphrase. An empty value yields a random key and generated == true.
func resolveSigningKey(value string) (key []byte, generated bool, err error) {
	if value == "" {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, false, fmt.Errorf("generate signing key: %w", err)
		}
		return key, true, nil
	}
	if decoded, err := hex.DecodeString(value); err == nil && len(decoded) >= 32 {
		return decoded, false, nil
	}
	if len(value) < 16 {
		return nil, false, fmt.Errorf("AUTH_SIGNING_KEY must be at least 16 characters")
	}
	return []byte(value), false, nil
}

func newApp(cfg *config.Config, logger zerolog.Logger, repo patient.Repository, pool *pgxpool.Pool, signingKey []byte) (*app, error) {
	a := &app{
		cfg:     cfg,
		logger:  logger,
		pool:    pool,
		jwt:     auth.JWTConfig{Issuer: cfg.AuthIssuer, Audience: cfg.AuthAudience, SigningKey: signingKey},
		repo:    repo,
		engine:  validation.NewEngine(logger),
		hub:     websocket.NewHub(logger),
		metrics: metrics.New(),
		catalog: mockdata.NewCatalog(),
	}
	a.dataset = mockdata.Generate(mockdata.DefaultConfig(), time.Now(), a.catalog)
	a.sessions = validation.NewRegistry(a.engine, cfg.ValidationSessionTTL)

	events := a.metrics.Observe(a.hub)
	a.patients = patient.NewService(repo, logger)
	a.medications = medication.NewManager(patient.NewMedicationStore(repo), logger)
	a.medications.SetEventPublisher(events)
	a.chart = notes.NewService(patient.NewChartEntryStore(repo), a.engine, logger)
	a.chart.SetEventPublisher(events)

	a.metrics.Gauge("websocket_clients", "Connected websocket clients.", func() float64 {
		return float64(a.hub.ClientCount())
	})
	a.metrics.Gauge("validation_sessions", "Open validation sessions.", func() float64 {
		return float64(a.sessions.Len())
	})

	a.scheduler = scheduler.New(logger)
	if spec := cfg.CompletionSweepSchedule; spec != "" {
		if err := a.scheduler.Add(sweepTaskName, spec, a.sweepExpired); err != nil {
			return nil, err
		}
	}
	return a, nil
}

func (a *app) sweepExpired(ctx context.Context) error {
	n, err := patient.SweepExpiredMedications(ctx, a.repo, a.medications)
	if n > 0 {
		a.logger.Info().Int("completed", n).Msg("expired medication sweep")
	}
	return err
}

// seed loads the demo dataset into the repository.
func (a *app) seed(ctx context.Context) (*mockdata.Result, error) {
	return mockdata.Seed(ctx, a.repo, a.dataset)
}

func (a *app) authMiddleware() echo.MiddlewareFunc {
	if a.cfg.IsDev() {
		return auth.DevAuthMiddleware(a.jwt)
	}
	return auth.JWTMiddleware(a.jwt)
}

func (a *app) router() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(a.logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(a.logger))
	e.Use(a.metrics.Middleware())
	e.Use(middleware.SecurityHeaders(a.cfg.IsProduction()))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: a.cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", middleware.RequestIDHeader},
	}))

	e.GET("/health", db.HealthHandler(a.pool, db.Check{Name: "patients", Run: func(ctx context.Context) error {
		_, _, err := a.repo.List(ctx, 1, 0)
		return err
	}}))
	e.GET("/metrics", echo.WrapHandler(a.metrics.Handler()))
	websocket.NewHandler(a.hub, a.cfg.CORSOrigins).RegisterRoutes(e.Group(""))

	api := e.Group("/api/v1", a.authMiddleware())
	if a.cfg.RateLimitRPS > 0 {
		api.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: a.cfg.RateLimitRPS,
			BurstSize:         a.cfg.RateLimitBurst,
		}))
	}
	if a.cfg.RequestTimeout > 0 {
		api.Use(middleware.RequestTimeout(a.cfg.RequestTimeout))
	}
	api.Use(middleware.SimulatedLatency(a.cfg.MockLatency))

	patient.NewHandler(a.patients).RegisterRoutes(api)
	medication.NewHandler(a.medications, a.engine).RegisterRoutes(api)
	notes.NewHandler(a.chart).RegisterRoutes(api)
	validation.NewHandler(a.engine, a.sessions, notes.Catalog).RegisterRoutes(api)
	mockdata.NewHandler(a.catalog, a.dataset.Doctors).RegisterRoutes(api)

	admin := api.Group("/admin", auth.RequireRole(auth.RoleAdmin))
	admin.GET("/tasks", func(c echo.Context) error {
		return c.JSON(http.StatusOK, a.scheduler.Tasks())
	})
	admin.POST("/tasks/:name/run", func(c echo.Context) error {
		if err := a.scheduler.RunNow(c.Request().Context(), c.Param("name")); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return c.NoContent(http.StatusNoContent)
	})
	return e
}

// Package api provides the HTTP API for Parkest.
package api

import (
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/parkest/parkest/internal/api/handler"
	"github.com/parkest/parkest/internal/api/middleware"
	"github.com/parkest/parkest/internal/provider/resilience"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version     string
	BuildTime   string
	Logger      zerolog.Logger
	ServiceName string
	Metrics     *middleware.Metrics
	RequireTLS  bool

	// Sessions is the planning session store, usually a *planner.Store.
	Sessions interface {
		handler.SessionStore
		Len() int
	}
	// Tokens validates bearer tokens for trip commits and ops status.
	Tokens   middleware.TokenValidator
	Registry *resilience.Registry
	Checks   map[string]handler.CheckFunc
	MaxWait  time.Duration
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "parkest-api"
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)            // Generate/propagate request ID first
	r.Use(middleware.Tracing(serviceName)) // Distributed tracing
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware()) // HTTP metrics
	}
	r.Use(middleware.Logger(cfg.Logger))   // Structured logging
	r.Use(middleware.Recovery(cfg.Logger)) // Panic recovery
	r.Use(chimiddleware.RealIP)            // Real IP extraction
	r.Use(middleware.SecurityHeaders)      // Security headers
	r.Use(middleware.RequireTLS(cfg.RequireTLS))
	r.Use(middleware.RequireJSON)

	opsHandler := handler.NewOpsHandler(handler.OpsHandlerConfig{
		Version:   cfg.Version,
		BuildTime: cfg.BuildTime,
		Registry:  cfg.Registry,
		Checks:    cfg.Checks,
		Sessions:  cfg.Sessions,
	})
	sessionHandler := handler.NewSessionHandler(handler.SessionHandlerConfig{
		Sessions: cfg.Sessions,
		MaxWait:  cfg.MaxWait,
		Logger:   cfg.Logger,
	})

	authMiddleware := middleware.Auth(cfg.Tokens)

	sessionRateLimit := middleware.RateLimitByIP(middleware.SessionRateLimit)          // 10 req/min
	expensiveRateLimit := middleware.RateLimitBySession(middleware.ExpensiveRateLimit) // 30 req/min
	standardRateLimit := middleware.RateLimitBySession(middleware.StandardRateLimit)   // 100 req/min

	r.Route("/v1", func(r chi.Router) {
		// Ops endpoints (public)
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
			// Status endpoint requires authentication
			r.With(authMiddleware).Get("/status", opsHandler.SystemStatus)
		})

		r.Route("/sessions", func(r chi.Router) {
			r.With(sessionRateLimit).Post("/", sessionHandler.CreateSession)

			r.Route("/{sessionId}", func(r chi.Router) {
				r.With(standardRateLimit).Get("/", sessionHandler.GetSession)
				r.With(standardRateLimit).Delete("/", sessionHandler.DeleteSession)
				r.With(standardRateLimit).Put("/origin", sessionHandler.SetOrigin)

				// Searches and selections call external providers.
				r.With(expensiveRateLimit).Post("/search", sessionHandler.Search)
				r.With(expensiveRateLimit).Put("/selection", sessionHandler.Select)
				r.With(standardRateLimit).Delete("/selection", sessionHandler.ClearSelection)

				r.With(authMiddleware, middleware.RateLimitByUser(middleware.StandardRateLimit)).
					Post("/trips", sessionHandler.StartTrip)
			})
		})
	})

	return r
}

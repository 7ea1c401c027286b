package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/chairbook/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/chairbook/internal/http/middleware"
	"github.com/wolfman30/chairbook/internal/tenancy"
	"github.com/wolfman30/chairbook/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger             *logging.Logger
	Health             *handlers.HealthHandler
	Availability       *handlers.AvailabilityHandler
	Bookings           *handlers.BookingsHandler
	Tenants            *handlers.TenantHandler
	Stats              *handlers.StatsHandler
	MetricsHandler     http.Handler
	AdminAuthSecret    string
	CORSAllowedOrigins []string

	// Public API rate limit per client IP. Zero disables limiting.
	RateLimitRPS   float64
	RateLimitBurst int
	// Done stops background limiter cleanup.
	Done <-chan struct{}
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	// Probes and metrics
	r.Group(func(public chi.Router) {
		if cfg.Health != nil {
			public.Get("/health", cfg.Health.Live)
			public.Get("/ready", cfg.Health.Ready)
		}
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
	})

	// Widget API, scoped by X-Tenant-Id
	r.Route("/v1", func(v1 chi.Router) {
		v1.Use(tenancy.RequireTenant)
		if cfg.RateLimitRPS > 0 {
			v1.Use(httpmiddleware.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst, cfg.Done))
		}
		if cfg.Availability != nil {
			v1.Get("/availability", cfg.Availability.GetAvailability)
		}
		if cfg.Bookings != nil {
			v1.Mount("/bookings", cfg.Bookings.PublicRoutes())
		}
		if cfg.Tenants != nil {
			v1.Get("/no-show-policy", cfg.Tenants.GetNoShowPolicy)
			v1.Post("/no-show-policy/evaluate", cfg.Tenants.EvaluateNoShow)
		}
	})

	// Admin panel, scoped by the {tenantID} path and the token's tenant claim
	if cfg.AdminAuthSecret != "" {
		r.Route("/admin/tenants/{tenantID}", func(admin chi.Router) {
			admin.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret))
			admin.Use(httpmiddleware.RequireTenantMatch)
			if cfg.Availability != nil {
				admin.Get("/availability", cfg.Availability.GetAvailability)
			}
			if cfg.Bookings != nil {
				admin.Mount("/bookings", cfg.Bookings.AdminRoutes())
			}
			if cfg.Stats != nil {
				admin.Get("/stats", cfg.Stats.GetStats)
			}
			if cfg.Tenants != nil {
				admin.Get("/config", cfg.Tenants.GetConfig)
				admin.Put("/config", cfg.Tenants.PutConfig)
			}
		})
	}

	return r
}

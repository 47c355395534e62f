package router

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/skinclinic-api/internal/availability"
	"github.com/wolfman30/skinclinic-api/internal/booking"
	"github.com/wolfman30/skinclinic-api/internal/cart"
	"github.com/wolfman30/skinclinic-api/internal/feed"
	"github.com/wolfman30/skinclinic-api/internal/gamification"
	httpmiddleware "github.com/wolfman30/skinclinic-api/internal/http/middleware"
	"github.com/wolfman30/skinclinic-api/internal/payments"
	"github.com/wolfman30/skinclinic-api/pkg/logging"
)

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

// Config holds router configuration. Nil handlers leave their routes unmounted.
type Config struct {
	Logger              *logging.Logger
	AvailabilityHandler *availability.Handler
	BookingHandler      *booking.Handler
	CartHandler         *cart.Handler
	CheckoutHandler     *payments.CheckoutHandler
	GamificationHandler *gamification.Handler
	FeedHandler         *feed.Handler
	MetricsHandler      http.Handler
	HealthChecks        map[string]HealthCheck

	AdminAuthSecret    string
	CORSAllowedOrigins []string
	RateLimitRPS       float64
	RateLimitBurst     int
	// TrustProxyHeaders takes the client IP from X-Forwarded-For/X-Real-Ip.
	// Enable only behind a proxy that overwrites those headers.
	TrustProxyHeaders bool
	// Done stops background work owned by the router, such as rate limiter sweeps.
	Done <-chan struct{}
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	if cfg.TrustProxyHeaders {
		r.Use(middleware.RealIP)
	}
	r.Use(middleware.Recoverer)
	r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}

	r.Get("/health", healthHandler(cfg.HealthChecks))
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	r.Group(func(api chi.Router) {
		if cfg.RateLimitRPS > 0 {
			api.Use(httpmiddleware.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst, cfg.Done))
		}
		if cfg.AvailabilityHandler != nil {
			api.Post("/availability", cfg.AvailabilityHandler.GetAvailability)
		}
		if cfg.BookingHandler != nil {
			api.Post("/bookings", cfg.BookingHandler.CreateBooking)
		}
		if cfg.CartHandler != nil {
			api.Mount("/cart", cfg.CartHandler.Routes())
		}
		if cfg.CheckoutHandler != nil {
			api.Post("/checkout", cfg.CheckoutHandler.CreateCheckout)
		}
		if cfg.GamificationHandler != nil {
			api.Mount("/gamification", cfg.GamificationHandler.Routes())
		}
		if cfg.FeedHandler != nil {
			api.Mount("/feed", cfg.FeedHandler.Routes())
		}
	})

	if cfg.FeedHandler != nil || cfg.GamificationHandler != nil {
		r.Route("/admin", func(admin chi.Router) {
			admin.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret))
			if cfg.FeedHandler != nil {
				admin.Post("/feed", cfg.FeedHandler.Create)
			}
			if cfg.GamificationHandler != nil {
				admin.Mount("/gamification", cfg.GamificationHandler.AdminRoutes())
			}
		})
	}

	return r
}

// healthHandler runs every check with a short deadline and answers 503 if any fail.
func healthHandler(checks map[string]HealthCheck) http.HandlerFunc {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := "ok"
		code := http.StatusOK
		results := make(map[string]string, len(names))
		for _, name := range names {
			if err := checks[name](ctx); err != nil {
				results[name] = err.Error()
				status = "degraded"
				code = http.StatusServiceUnavailable
				continue
			}
			results[name] = "ok"
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		payload := map[string]any{"status": status}
		if len(results) > 0 {
			payload["checks"] = results
		}
		_ = json.NewEncoder(w).Encode(payload)
	}
}

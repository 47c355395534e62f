package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wolfman30/skinclinic-api/internal/api/router"
	"github.com/wolfman30/skinclinic-api/internal/app/bootstrap"
	"github.com/wolfman30/skinclinic-api/internal/availability"
	"github.com/wolfman30/skinclinic-api/internal/booking"
	"github.com/wolfman30/skinclinic-api/internal/cart"
	appconfig "github.com/wolfman30/skinclinic-api/internal/config"
	"github.com/wolfman30/skinclinic-api/internal/feed"
	"github.com/wolfman30/skinclinic-api/internal/gamification"
	"github.com/wolfman30/skinclinic-api/internal/notify"
	"github.com/wolfman30/skinclinic-api/internal/observability/metrics"
	"github.com/wolfman30/skinclinic-api/internal/payments"
	"github.com/wolfman30/skinclinic-api/internal/phorest"
	"github.com/wolfman30/skinclinic-api/pkg/logging"
)

func main() {
	// .env is optional.
	_ = godotenv.Load()
	cfg := appconfig.Load()

	logger := logging.NewWithFormat(cfg.LogLevel, cfg.LogFormat, os.Stdout)
	logger.Info("starting skinclinic API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

func run(cfg *appconfig.Config, logger *logging.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	app, err := buildApp(ctx, cfg, logger, registry)
	if err != nil {
		return err
	}
	defer app.Close()

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      app.handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	return nil
}

// application owns the wired handler and everything that must be released on exit.
type application struct {
	handler   http.Handler
	submitter *booking.Submitter
	closers   []func()
	done      chan struct{}
}

// Close waits for in-flight booking notifications, then releases connections.
func (a *application) Close() {
	if a.submitter != nil {
		a.submitter.Wait()
	}
	close(a.done)
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func buildApp(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, registry *prometheus.Registry) (*application, error) {
	app := &application{done: make(chan struct{})}

	loc, err := booking.LoadLocation(cfg.BusinessTimezone)
	if err != nil {
		return nil, err
	}
	production := cfg.IsProduction()

	providerMetrics := metrics.NewProviderMetrics(registry)
	availabilityMetrics := metrics.NewAvailabilityMetrics(registry)
	bookingMetrics := metrics.NewBookingMetrics(registry)

	phorestClient := phorest.NewPhorestClient(phorest.Config{
		BaseURL:    cfg.PhorestBaseURL,
		Username:   cfg.PhorestUsername,
		Password:   cfg.PhorestPassword,
		BusinessID: cfg.PhorestBusinessID,
		Timeout:    cfg.PhorestTimeout,
	}, logger).WithObserver(providerMetrics)
	if cfg.PhorestBusinessID == "" {
		logger.Warn("PHOREST_BUSINESS_ID not set; availability and booking calls will fail")
	}

	sender, err := bootstrap.BuildEmailSender(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	notifier := notify.NewBookingNotifier(sender, cfg.StaffNotifyEmail, cfg.SendGridFromName, logger)

	aggregator := availability.NewAggregator(phorestClient, availability.Options{
		QualifiedStaffEnabled: cfg.PhorestQualifiedStaffEnabled,
		FetchTimeout:          cfg.SlotFetchTimeout,
		Concurrency:           cfg.SlotFetchConcurrency,
		DefaultDuration:       cfg.DefaultSlotDurationMins,
		Location:              loc,
		TestAccountMarkers:    cfg.TestAccountMarkers,
	}, availabilityMetrics, logger)

	submitter := booking.NewSubmitter(phorestClient, phorestClient, notifier, booking.Options{
		DefaultBranchID: cfg.PhorestDefaultBranchID,
		Timeout:         cfg.BookingTimeout,
		Location:        loc,
	}, bookingMetrics, logger)
	app.submitter = submitter

	checks := map[string]router.HealthCheck{}

	pool, err := bootstrap.BuildPostgresPool(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	if pool != nil {
		app.closers = append(app.closers, pool.Close)
		checks["postgres"] = pool.Ping
	}

	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if redisClient != nil {
		app.closers = append(app.closers, func() { _ = redisClient.Close() })
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}

	carts := bootstrap.BuildCartRepository(pool, logger)
	stripe := payments.NewStripeCheckoutService(cfg.StripeSecretKey, cfg.StripeSuccessURL, cfg.StripeCancelURL, cfg.Currency, logger).
		WithDryRun(cfg.StripeDryRun)

	gamificationService := gamification.NewService(bootstrap.BuildGamificationStore(redisClient, logger), nil, logger)

	app.handler = router.New(&router.Config{
		Logger:              logger,
		AvailabilityHandler: availability.NewHandler(aggregator, production, logger),
		BookingHandler:      booking.NewHandler(submitter, production, logger),
		CartHandler:         cart.NewHandler(carts, logger),
		CheckoutHandler:     payments.NewCheckoutHandler(carts, stripe, logger),
		GamificationHandler: gamification.NewHandler(gamificationService, loc, logger),
		FeedHandler:         feed.NewHandler(feed.NewSeededStore(time.Now()), logger),
		MetricsHandler:      promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}),
		HealthChecks:        checks,
		AdminAuthSecret:     cfg.AdminJWTSecret,
		CORSAllowedOrigins:  cfg.CORSAllowedOrigins,
		RateLimitRPS:        cfg.RateLimitRPS,
		RateLimitBurst:      cfg.RateLimitBurst,
		TrustProxyHeaders:   cfg.TrustProxyHeaders,
		Done:                app.done,
	})
	return app, nil
}

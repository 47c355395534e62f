package router

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/skinclinic-api/internal/availability"
	"github.com/wolfman30/skinclinic-api/internal/booking"
	"github.com/wolfman30/skinclinic-api/internal/cart"
	"github.com/wolfman30/skinclinic-api/internal/feed"
	"github.com/wolfman30/skinclinic-api/internal/gamification"
	httpmiddleware "github.com/wolfman30/skinclinic-api/internal/http/middleware"
	"github.com/wolfman30/skinclinic-api/internal/observability/metrics"
	"github.com/wolfman30/skinclinic-api/internal/payments"
	"github.com/wolfman30/skinclinic-api/internal/phorest"
	"github.com/wolfman30/skinclinic-api/pkg/logging"
)

type stubPhorest struct{}

func (stubPhorest) ListStaff(context.Context, string) ([]phorest.Staff, error) {
	return []phorest.Staff{{ID: "s1", FirstName: "Ava", LastName: "Nguyen", BranchID: "b1"}}, nil
}

func (stubPhorest) ListQualifiedStaff(context.Context, string, string) ([]phorest.Staff, error) {
	return nil, phorest.ErrQualifiedStaffUnsupported
}

func (stubPhorest) GetOpenSlots(_ context.Context, _, _ string, dayStart, _ time.Time, _ int) ([]phorest.Slot, error) {
	start := dayStart.Add(2 * time.Hour)
	return []phorest.Slot{{StartTime: start, EndTime: start.Add(time.Hour), Available: true}}, nil
}

func (stubPhorest) CreateBooking(context.Context, string, phorest.CreateBookingRequest) (*phorest.Booking, error) {
	return &phorest.Booking{ID: "bk-1", Status: "ACTIVE"}, nil
}

func newTestRouter(t *testing.T, mutate func(*Config)) http.Handler {
	t.Helper()

	logger := logging.New("error")
	perth := time.FixedZone("AWST", 8*60*60)
	registry := prometheus.NewRegistry()

	aggregator := availability.NewAggregator(stubPhorest{}, availability.Options{
		QualifiedStaffEnabled: true,
		Location:              perth,
	}, metrics.NewAvailabilityMetrics(registry), logger)
	submitter := booking.NewSubmitter(stubPhorest{}, nil, nil, booking.Options{
		DefaultBranchID: "b1",
		Location:        perth,
	}, metrics.NewBookingMetrics(registry), logger)

	carts := cart.NewMemoryRepository()
	done := make(chan struct{})
	t.Cleanup(func() { close(done) })

	cfg := &Config{
		Logger:              logger,
		AvailabilityHandler: availability.NewHandler(aggregator, false, logger),
		BookingHandler:      booking.NewHandler(submitter, false, logger),
		CartHandler:         cart.NewHandler(carts, logger),
		CheckoutHandler: payments.NewCheckoutHandler(carts,
			payments.NewStripeCheckoutService("", "", "", "aud", logger).WithDryRun(true), logger),
		GamificationHandler: gamification.NewHandler(
			gamification.NewService(gamification.NewMemoryStore(), nil, logger), perth, logger),
		FeedHandler:     feed.NewHandler(feed.NewSeededStore(time.Now()), logger),
		MetricsHandler:  promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		AdminAuthSecret: "admin-secret",
		Done:            done,
	}
	if mutate != nil {
		mutate(cfg)
	}
	return New(cfg)
}

func serve(h http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRouterHealthEndpoint(t *testing.T) {
	router := newTestRouter(t, nil)

	rec := serve(router, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "ok", resp["status"])
	assert.NotEmpty(t, rec.Header().Get(httpmiddleware.RequestIDHeader))
}

func TestRouterHealthDegraded(t *testing.T) {
	router := newTestRouter(t, func(cfg *Config) {
		cfg.HealthChecks = map[string]HealthCheck{
			"postgres": func(context.Context) error { return nil },
			"redis":    func(context.Context) error { return errors.New("connection refused") },
		}
	})

	rec := serve(router, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var resp struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "degraded", resp.Status)
	assert.Equal(t, "ok", resp.Checks["postgres"])
	assert.Equal(t, "connection refused", resp.Checks["redis"])
}

func TestRouterAvailabilityAndBooking(t *testing.T) {
	router := newTestRouter(t, nil)

	rec := serve(router, http.MethodPost, "/availability", `{"date":"2025-07-01","serviceId":"svc-1","branchId":"b1"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var avail struct {
		Success bool                   `json:"success"`
		Slots   []availability.TimeSlot `json:"slots"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&avail))
	assert.True(t, avail.Success)
	require.Len(t, avail.Slots, 1)
	assert.Equal(t, "02:00", avail.Slots[0].Time)

	rec = serve(router, http.MethodPost, "/bookings", `{"clientId":"c1","serviceId":"svc-1","staffId":"s1","startTime":"2025-07-01T10:00"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"id":"bk-1"`)
}

func TestRouterCartCheckoutFlow(t *testing.T) {
	router := newTestRouter(t, nil)

	rec := serve(router, http.MethodPost, "/checkout", `{"cartId":"cart-1"}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(router, http.MethodPost, "/cart/cart-1/items", `{"productId":"p1","name":"Serum","unitPriceCents":4500}`, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = serve(router, http.MethodPost, "/checkout", `{"cartId":"cart-1"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "cs_dryrun_")
}

func TestRouterGamificationAndFeed(t *testing.T) {
	router := newTestRouter(t, nil)

	assert.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/gamification/leaderboard", "", nil).Code)
	assert.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/feed?limit=2", "", nil).Code)
	assert.Equal(t, http.StatusOK, serve(router, http.MethodPost, "/feed/demo-1/like", "", nil).Code)
}

func TestRouterAdminFeedRequiresToken(t *testing.T) {
	router := newTestRouter(t, nil)
	body := `{"author":"Skin Clinic","content":"New serum drop"}`

	assert.Equal(t, http.StatusUnauthorized, serve(router, http.MethodPost, "/admin/feed", body, nil).Code)

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, httpmiddleware.AdminClaims{
		Role: httpmiddleware.AdminRole,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "ops",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	}).SignedString([]byte("admin-secret"))
	require.NoError(t, err)

	rec := serve(router, http.MethodPost, "/admin/feed", body, map[string]string{"Authorization": "Bearer " + token})
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func TestRouterPointAwardsRequireAdmin(t *testing.T) {
	router := newTestRouter(t, nil)
	body := `{"points":500,"reason":"manual"}`

	assert.NotEqual(t, http.StatusOK, serve(router, http.MethodPost, "/gamification/users/u1/points", body, nil).Code)
	assert.Equal(t, http.StatusUnauthorized, serve(router, http.MethodPost, "/admin/gamification/users/u1/points", body, nil).Code)

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, httpmiddleware.AdminClaims{
		Role: httpmiddleware.AdminRole,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "ops",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	}).SignedString([]byte("admin-secret"))
	require.NoError(t, err)

	rec := serve(router, http.MethodPost, "/admin/gamification/users/u1/points", body, map[string]string{"Authorization": "Bearer " + token})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"points":500`)
}

func TestRouterMetricsAndUnmountedRoutes(t *testing.T) {
	router := newTestRouter(t, func(cfg *Config) {
		cfg.CartHandler = nil
	})

	serve(router, http.MethodPost, "/availability", `{"date":"2025-07-01","serviceId":"svc-1","branchId":"b1"}`, nil)
	rec := serve(router, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "skinclinic_availability_requests_total")

	assert.Equal(t, http.StatusNotFound, serve(router, http.MethodGet, "/cart/abc", "", nil).Code)
}

func TestRouterRateLimit(t *testing.T) {
	router := newTestRouter(t, func(cfg *Config) {
		cfg.RateLimitRPS = 0.01
		cfg.RateLimitBurst = 1
		cfg.TrustProxyHeaders = true
	})

	headers := map[string]string{"X-Real-Ip": "198.51.100.7"}
	assert.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/feed", "", headers).Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(router, http.MethodGet, "/feed", "", headers).Code)
	assert.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/health", "", headers).Code)
	assert.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/feed", "", map[string]string{"X-Real-Ip": "198.51.100.8"}).Code)
}

func TestRouterRateLimitIgnoresForwardingHeadersByDefault(t *testing.T) {
	router := newTestRouter(t, func(cfg *Config) {
		cfg.RateLimitRPS = 0.01
		cfg.RateLimitBurst = 1
	})

	assert.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/feed", "", map[string]string{"X-Real-Ip": "198.51.100.7"}).Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(router, http.MethodGet, "/feed", "", map[string]string{"X-Real-Ip": "198.51.100.8"}).Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(router, http.MethodGet, "/feed", "", map[string]string{"X-Forwarded-For": "198.51.100.9"}).Code)
}

// Package payments creates hosted checkout sessions for storefront carts.
package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/wolfman30/skinclinic-api/pkg/logging"
)

var stripeTracer = otel.Tracer("skinclinic.internal.payments.stripe")

var (
	ErrNoLineItems   = errors.New("payments: checkout requires at least one line item")
	ErrMissingURLs   = errors.New("payments: success and cancel urls are required")
	ErrNotConfigured = errors.New("payments: stripe secret key not configured")
)

// LineItem is one product line on a checkout session.
type LineItem struct {
	Name           string
	UnitPriceCents int64
	Quantity       int
}

// CheckoutParams describes a cart being paid for.
type CheckoutParams struct {
	CartID     string
	Items      []LineItem
	Email      string
	SuccessURL string
	CancelURL  string
}

// CheckoutSession is the hosted page the customer is redirected to.
type CheckoutSession struct {
	ID  string `json:"sessionId"`
	URL string `json:"url"`
}

// StripeCheckoutService creates Stripe Checkout Sessions over the REST API.
type StripeCheckoutService struct {
	secretKey  string
	successURL string
	cancelURL  string
	currency   string
	baseURL    string
	apiVersion string
	httpClient *http.Client
	logger     *logging.Logger
	dryRun     bool
}

func NewStripeCheckoutService(secretKey, successURL, cancelURL, currency string, logger *logging.Logger) *StripeCheckoutService {
	if logger == nil {
		logger = logging.Default()
	}
	if currency == "" {
		currency = "aud"
	}
	return &StripeCheckoutService{
		secretKey:  secretKey,
		successURL: successURL,
		cancelURL:  cancelURL,
		currency:   strings.ToLower(currency),
		baseURL:    "https://api.stripe.com",
		apiVersion: "2024-12-18.acacia",
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
	}
}

// WithBaseURL overrides the Stripe API base URL (for testing).
func (s *StripeCheckoutService) WithBaseURL(baseURL string) *StripeCheckoutService {
	if baseURL != "" {
		s.baseURL = strings.TrimRight(baseURL, "/")
	}
	return s
}

// WithDryRun returns fake session URLs without calling Stripe.
func (s *StripeCheckoutService) WithDryRun(enabled bool) *StripeCheckoutService {
	s.dryRun = enabled
	return s
}

// CreateSession opens a checkout session in payment mode for the given items.
func (s *StripeCheckoutService) CreateSession(ctx context.Context, params CheckoutParams) (*CheckoutSession, error) {
	ctx, span := stripeTracer.Start(ctx, "stripe.create_checkout_session")
	defer span.End()

	var total int64
	for _, it := range params.Items {
		total += it.UnitPriceCents * int64(it.Quantity)
	}
	span.SetAttributes(
		attribute.String("skinclinic.cart_id", params.CartID),
		attribute.Int("skinclinic.line_items", len(params.Items)),
		attribute.Int64("skinclinic.amount_cents", total),
	)

	if len(params.Items) == 0 {
		return nil, ErrNoLineItems
	}

	successURL := firstNonEmpty(params.SuccessURL, s.successURL)
	cancelURL := firstNonEmpty(params.CancelURL, s.cancelURL)

	if s.dryRun {
		fakeID := "cs_dryrun_" + uuid.New().String()[:8]
		s.logger.Info("stripe dry run: skipping checkout session creation",
			"cart_id", params.CartID, "amount_cents", total)
		return &CheckoutSession{
			ID:  fakeID,
			URL: fmt.Sprintf("https://checkout.stripe.com/dry-run/%s", fakeID),
		}, nil
	}
	if s.secretKey == "" {
		return nil, ErrNotConfigured
	}
	if successURL == "" || cancelURL == "" {
		return nil, ErrMissingURLs
	}

	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("success_url", successURL)
	form.Set("cancel_url", cancelURL)
	for i, it := range params.Items {
		prefix := "line_items[" + strconv.Itoa(i) + "]"
		form.Set(prefix+"[price_data][currency]", s.currency)
		form.Set(prefix+"[price_data][unit_amount]", strconv.FormatInt(it.UnitPriceCents, 10))
		form.Set(prefix+"[price_data][product_data][name]", it.Name)
		form.Set(prefix+"[quantity]", strconv.Itoa(it.Quantity))
	}
	if email := strings.TrimSpace(params.Email); email != "" {
		form.Set("customer_email", email)
	}
	if params.CartID != "" {
		form.Set("client_reference_id", params.CartID)
		form.Set("metadata[cart_id]", params.CartID)
		form.Set("payment_intent_data[metadata][cart_id]", params.CartID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/v1/checkout/sessions", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("payments: stripe request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.secretKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Stripe-Version", s.apiVersion)
	if params.CartID != "" {
		req.Header.Set("Idempotency-Key", "checkout-"+params.CartID+"-"+strconv.FormatInt(total, 10))
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "stripe http")
		return nil, fmt.Errorf("payments: stripe http: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		err := fmt.Errorf("payments: stripe api status %d: %s", resp.StatusCode, readStripeError(resp.Body))
		span.RecordError(err)
		span.SetStatus(codes.Error, "stripe api")
		return nil, err
	}

	var wire struct {
		ID  string `json:"id"`
		URL string `json:"url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, fmt.Errorf("payments: stripe decode: %w", err)
	}
	if wire.URL == "" {
		return nil, fmt.Errorf("payments: stripe response missing checkout url")
	}
	return &CheckoutSession{ID: wire.ID, URL: wire.URL}, nil
}

type stripeErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

// readStripeError prefers Stripe's structured message over the raw body.
func readStripeError(body io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(body, 64<<10))
	if err != nil {
		return "unknown error"
	}
	var parsed stripeErrorResponse
	if json.Unmarshal(data, &parsed) == nil && parsed.Error.Message != "" {
		if parsed.Error.Code != "" {
			return parsed.Error.Code + ": " + parsed.Error.Message
		}
		return parsed.Error.Message
	}
	return strings.TrimSpace(string(data))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

package payments

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStripeCheckoutService_CreateSession(t *testing.T) {
	var gotForm map[string][]string
	var gotIdempotency string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/checkout/sessions", r.URL.Path)
		assert.Equal(t, "Bearer sk_test_123", r.Header.Get("Authorization"))
		assert.NotEmpty(t, r.Header.Get("Stripe-Version"))
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		gotIdempotency = r.Header.Get("Idempotency-Key")

		require.NoError(t, r.ParseForm())
		gotForm = r.PostForm

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"id":  "cs_test_abc123",
			"url": "https://checkout.stripe.com/pay/cs_test_abc123",
		})
	}))
	defer srv.Close()

	svc := NewStripeCheckoutService("sk_test_123", "https://shop.example.com/ok", "https://shop.example.com/cancel", "AUD", nil).
		WithBaseURL(srv.URL)

	session, err := svc.CreateSession(context.Background(), CheckoutParams{
		CartID: "cart-1",
		Items: []LineItem{
			{Name: "Hydrating Serum", UnitPriceCents: 4500, Quantity: 2},
			{Name: "SPF 50", UnitPriceCents: 3000, Quantity: 1},
		},
		Email: "jane@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, "cs_test_abc123", session.ID)
	assert.Equal(t, "https://checkout.stripe.com/pay/cs_test_abc123", session.URL)

	get := func(key string) string {
		if v := gotForm[key]; len(v) > 0 {
			return v[0]
		}
		return ""
	}
	assert.Equal(t, "payment", get("mode"))
	assert.Equal(t, "aud", get("line_items[0][price_data][currency]"))
	assert.Equal(t, "4500", get("line_items[0][price_data][unit_amount]"))
	assert.Equal(t, "Hydrating Serum", get("line_items[0][price_data][product_data][name]"))
	assert.Equal(t, "2", get("line_items[0][quantity]"))
	assert.Equal(t, "SPF 50", get("line_items[1][price_data][product_data][name]"))
	assert.Equal(t, "1", get("line_items[1][quantity]"))
	assert.Equal(t, "jane@example.com", get("customer_email"))
	assert.Equal(t, "cart-1", get("client_reference_id"))
	assert.Equal(t, "cart-1", get("metadata[cart_id]"))
	assert.Equal(t, "https://shop.example.com/ok", get("success_url"))
	assert.Equal(t, "https://shop.example.com/cancel", get("cancel_url"))
	assert.Equal(t, "checkout-cart-1-12000", gotIdempotency)
}

func TestStripeCheckoutService_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"Invalid currency","type":"invalid_request_error","code":"parameter_invalid"}}`))
	}))
	defer srv.Close()

	svc := NewStripeCheckoutService("sk_test_123", "https://a.example.com", "https://b.example.com", "", nil).WithBaseURL(srv.URL)
	_, err := svc.CreateSession(context.Background(), CheckoutParams{
		CartID: "cart-1",
		Items:  []LineItem{{Name: "Serum", UnitPriceCents: 100, Quantity: 1}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 400")
	assert.Contains(t, err.Error(), "parameter_invalid: Invalid currency")
}

func TestStripeCheckoutService_MissingURLInResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"cs_1"}`))
	}))
	defer srv.Close()

	svc := NewStripeCheckoutService("sk", "https://a.example.com", "https://b.example.com", "aud", nil).WithBaseURL(srv.URL)
	_, err := svc.CreateSession(context.Background(), CheckoutParams{
		Items: []LineItem{{Name: "Serum", UnitPriceCents: 100, Quantity: 1}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing checkout url")
}

func TestStripeCheckoutService_DryRun(t *testing.T) {
	svc := NewStripeCheckoutService("", "", "", "aud", nil).WithDryRun(true)
	session, err := svc.CreateSession(context.Background(), CheckoutParams{
		CartID: "cart-1",
		Items:  []LineItem{{Name: "Serum", UnitPriceCents: 100, Quantity: 1}},
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(session.ID, "cs_dryrun_"))
	assert.Contains(t, session.URL, "dry-run")
}

func TestStripeCheckoutService_Preconditions(t *testing.T) {
	item := []LineItem{{Name: "Serum", UnitPriceCents: 100, Quantity: 1}}

	_, err := NewStripeCheckoutService("sk", "https://a", "https://b", "aud", nil).
		CreateSession(context.Background(), CheckoutParams{})
	assert.ErrorIs(t, err, ErrNoLineItems)

	_, err = NewStripeCheckoutService("", "https://a", "https://b", "aud", nil).
		CreateSession(context.Background(), CheckoutParams{Items: item})
	assert.ErrorIs(t, err, ErrNotConfigured)

	_, err = NewStripeCheckoutService("sk", "", "", "aud", nil).
		CreateSession(context.Background(), CheckoutParams{Items: item})
	assert.ErrorIs(t, err, ErrMissingURLs)
}

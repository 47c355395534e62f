package payments

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/wolfman30/skinclinic-api/internal/cart"
	"github.com/wolfman30/skinclinic-api/pkg/logging"
)

// SessionCreator opens hosted checkout sessions.
type SessionCreator interface {
	CreateSession(ctx context.Context, params CheckoutParams) (*CheckoutSession, error)
}

// CartReader loads the cart being checked out.
type CartReader interface {
	Get(ctx context.Context, cartID string) (*cart.Cart, error)
}

type CheckoutHandler struct {
	carts    CartReader
	sessions SessionCreator
	validate *validator.Validate
	logger   *logging.Logger
}

type checkoutRequest struct {
	CartID     string `json:"cartId" validate:"required"`
	Email      string `json:"email" validate:"omitempty,email"`
	SuccessURL string `json:"successUrl" validate:"omitempty,url"`
	CancelURL  string `json:"cancelUrl" validate:"omitempty,url"`
}

func NewCheckoutHandler(carts CartReader, sessions SessionCreator, logger *logging.Logger) *CheckoutHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &CheckoutHandler{
		carts:    carts,
		sessions: sessions,
		validate: validator.New(),
		logger:   logger,
	}
}

// CreateCheckout handles POST /checkout.
func (h *CheckoutHandler) CreateCheckout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	c, err := h.carts.Get(r.Context(), req.CartID)
	if err != nil {
		h.logger.Error("checkout: load cart failed", "cart_id", req.CartID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to load cart"})
		return
	}
	if c.IsEmpty() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "cart is empty"})
		return
	}

	items := make([]LineItem, 0, len(c.Items))
	for _, it := range c.Items {
		items = append(items, LineItem{Name: it.Name, UnitPriceCents: it.UnitPriceCents, Quantity: it.Quantity})
	}

	session, err := h.sessions.CreateSession(r.Context(), CheckoutParams{
		CartID:     c.ID,
		Items:      items,
		Email:      req.Email,
		SuccessURL: req.SuccessURL,
		CancelURL:  req.CancelURL,
	})
	if err != nil {
		if errors.Is(err, ErrMissingURLs) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		h.logger.Error("checkout: create session failed", "cart_id", c.ID, "error", err)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "failed to create checkout session"})
		return
	}

	h.logger.Info("checkout session created", "cart_id", c.ID, "session_id", session.ID, "total_cents", c.TotalCents)
	writeJSON(w, http.StatusOK, session)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

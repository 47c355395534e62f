// Package cart stores shopping carts for the storefront.
package cart

import (
	"context"
	"errors"
	"strings"
	"time"
)

const (
	MinQuantity = 1
	MaxQuantity = 99
)

var (
	ErrNotFound        = errors.New("cart: item not found")
	ErrInvalidQuantity = errors.New("cart: quantity must be between 1 and 99")
	ErrInvalidItem     = errors.New("cart: product id, name and a non-negative price are required")
	ErrInvalidCartID   = errors.New("cart: cart id required")
)

// Item is one product line. LineTotalCents is derived on read.
type Item struct {
	ProductID      string `json:"productId"`
	Name           string `json:"name"`
	UnitPriceCents int64  `json:"unitPriceCents"`
	Quantity       int    `json:"quantity"`
	LineTotalCents int64  `json:"lineTotalCents"`
}

// Cart is a snapshot with totals computed from its items.
type Cart struct {
	ID         string    `json:"id"`
	Items      []Item    `json:"items"`
	ItemCount  int       `json:"itemCount"`
	TotalCents int64     `json:"totalCents"`
	UpdatedAt  time.Time `json:"updatedAt,omitzero"`
}

// IsEmpty reports whether the cart has no items.
func (c *Cart) IsEmpty() bool { return c == nil || len(c.Items) == 0 }

// Repository persists carts. Get returns an empty cart for unknown ids.
// Adding a product already in the cart increases its quantity.
type Repository interface {
	Get(ctx context.Context, cartID string) (*Cart, error)
	AddItem(ctx context.Context, cartID string, item Item) (*Cart, error)
	UpdateQuantity(ctx context.Context, cartID, productID string, quantity int) (*Cart, error)
	RemoveItem(ctx context.Context, cartID, productID string) (*Cart, error)
	Clear(ctx context.Context, cartID string) error
}

func newCart(id string, items []Item, updated time.Time) *Cart {
	c := &Cart{ID: id, Items: make([]Item, 0, len(items)), UpdatedAt: updated}
	for _, it := range items {
		it.LineTotalCents = it.UnitPriceCents * int64(it.Quantity)
		c.Items = append(c.Items, it)
		c.ItemCount += it.Quantity
		c.TotalCents += it.LineTotalCents
	}
	return c
}

func validateItem(item Item) error {
	if strings.TrimSpace(item.ProductID) == "" || strings.TrimSpace(item.Name) == "" || item.UnitPriceCents < 0 {
		return ErrInvalidItem
	}
	return validateQuantity(item.Quantity)
}

func validateQuantity(q int) error {
	if q < MinQuantity || q > MaxQuantity {
		return ErrInvalidQuantity
	}
	return nil
}

func validateCartID(id string) error {
	if strings.TrimSpace(id) == "" || len(id) > 64 {
		return ErrInvalidCartID
	}
	return nil
}

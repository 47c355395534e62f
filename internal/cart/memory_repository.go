package cart

import (
	"context"
	"sync"
	"time"
)

type memoryCart struct {
	items   []Item
	updated time.Time
}

// MemoryRepository keeps carts in process memory.
type MemoryRepository struct {
	mu    sync.RWMutex
	carts map[string]*memoryCart
	now   func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{carts: make(map[string]*memoryCart), now: time.Now}
}

func (r *MemoryRepository) Get(_ context.Context, cartID string) (*Cart, error) {
	if err := validateCartID(cartID); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshot(cartID), nil
}

func (r *MemoryRepository) AddItem(_ context.Context, cartID string, item Item) (*Cart, error) {
	if err := validateCartID(cartID); err != nil {
		return nil, err
	}
	if err := validateItem(item); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.carts[cartID]
	if !ok {
		c = &memoryCart{}
		r.carts[cartID] = c
	}
	for i := range c.items {
		if c.items[i].ProductID != item.ProductID {
			continue
		}
		qty := c.items[i].Quantity + item.Quantity
		if err := validateQuantity(qty); err != nil {
			return nil, err
		}
		c.items[i].Quantity = qty
		c.items[i].Name = item.Name
		c.items[i].UnitPriceCents = item.UnitPriceCents
		c.updated = r.now().UTC()
		return r.snapshot(cartID), nil
	}
	c.items = append(c.items, item)
	c.updated = r.now().UTC()
	return r.snapshot(cartID), nil
}

func (r *MemoryRepository) UpdateQuantity(_ context.Context, cartID, productID string, quantity int) (*Cart, error) {
	if err := validateCartID(cartID); err != nil {
		return nil, err
	}
	if err := validateQuantity(quantity); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.carts[cartID]
	if !ok {
		return nil, ErrNotFound
	}
	for i := range c.items {
		if c.items[i].ProductID == productID {
			c.items[i].Quantity = quantity
			c.updated = r.now().UTC()
			return r.snapshot(cartID), nil
		}
	}
	return nil, ErrNotFound
}

func (r *MemoryRepository) RemoveItem(_ context.Context, cartID, productID string) (*Cart, error) {
	if err := validateCartID(cartID); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.carts[cartID]
	if !ok {
		return nil, ErrNotFound
	}
	for i := range c.items {
		if c.items[i].ProductID == productID {
			c.items = append(c.items[:i], c.items[i+1:]...)
			c.updated = r.now().UTC()
			return r.snapshot(cartID), nil
		}
	}
	return nil, ErrNotFound
}

func (r *MemoryRepository) Clear(_ context.Context, cartID string) error {
	if err := validateCartID(cartID); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.carts, cartID)
	return nil
}

// snapshot must be called with r.mu held.
func (r *MemoryRepository) snapshot(cartID string) *Cart {
	c, ok := r.carts[cartID]
	if !ok {
		return newCart(cartID, nil, time.Time{})
	}
	return newCart(cartID, c.items, c.updated)
}

var _ Repository = (*MemoryRepository)(nil)

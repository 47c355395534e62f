package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var cartTracer = otel.Tracer("skinclinic.internal.cart")

type db interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

const (
	selectItemsSQL = `SELECT product_id, name, unit_price_cents, quantity, updated_at
FROM cart_items WHERE cart_id = $1 ORDER BY created_at, product_id`

	upsertCartSQL = `INSERT INTO carts (id) VALUES ($1)
ON CONFLICT (id) DO UPDATE SET updated_at = now()`

	upsertItemSQL = `INSERT INTO cart_items (cart_id, product_id, name, unit_price_cents, quantity)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (cart_id, product_id) DO UPDATE
SET quantity = cart_items.quantity + EXCLUDED.quantity,
    name = EXCLUDED.name,
    unit_price_cents = EXCLUDED.unit_price_cents,
    updated_at = now()
RETURNING quantity`

	updateQuantitySQL = `UPDATE cart_items SET quantity = $3, updated_at = now()
WHERE cart_id = $1 AND product_id = $2`

	deleteItemSQL = `DELETE FROM cart_items WHERE cart_id = $1 AND product_id = $2`

	deleteCartSQL = `DELETE FROM carts WHERE id = $1`
)

// PostgresRepository stores carts in the carts and cart_items tables.
type PostgresRepository struct {
	db db
}

// NewPostgresRepository accepts a *pgxpool.Pool or any compatible handle.
func NewPostgresRepository(db db) *PostgresRepository {
	if db == nil {
		panic("cart: database handle required")
	}
	return &PostgresRepository{db: db}
}

func startSpan(ctx context.Context, name, cartID string) (context.Context, trace.Span) {
	ctx, span := cartTracer.Start(ctx, name)
	span.SetAttributes(attribute.String("skinclinic.cart_id", cartID))
	return ctx, span
}

func (r *PostgresRepository) Get(ctx context.Context, cartID string) (*Cart, error) {
	if err := validateCartID(cartID); err != nil {
		return nil, err
	}
	ctx, span := startSpan(ctx, "cart.get", cartID)
	defer span.End()

	rows, err := r.db.Query(ctx, selectItemsSQL, cartID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("cart: query items: %w", err)
	}
	defer rows.Close()

	var (
		items   []Item
		updated time.Time
	)
	for rows.Next() {
		var (
			it Item
			ts time.Time
		)
		if err := rows.Scan(&it.ProductID, &it.Name, &it.UnitPriceCents, &it.Quantity, &ts); err != nil {
			return nil, fmt.Errorf("cart: scan item: %w", err)
		}
		if ts.After(updated) {
			updated = ts
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("cart: iterate items: %w", err)
	}
	return newCart(cartID, items, updated), nil
}

func (r *PostgresRepository) AddItem(ctx context.Context, cartID string, item Item) (*Cart, error) {
	if err := validateCartID(cartID); err != nil {
		return nil, err
	}
	if err := validateItem(item); err != nil {
		return nil, err
	}
	ctx, span := startSpan(ctx, "cart.add_item", cartID)
	defer span.End()

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("cart: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, upsertCartSQL, cartID); err != nil {
		return nil, fmt.Errorf("cart: upsert cart: %w", err)
	}
	var qty int
	if err := tx.QueryRow(ctx, upsertItemSQL, cartID, item.ProductID, item.Name, item.UnitPriceCents, item.Quantity).Scan(&qty); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23514" {
			return nil, ErrInvalidQuantity
		}
		return nil, fmt.Errorf("cart: upsert item: %w", err)
	}
	if err := validateQuantity(qty); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("cart: commit: %w", err)
	}
	return r.Get(ctx, cartID)
}

func (r *PostgresRepository) UpdateQuantity(ctx context.Context, cartID, productID string, quantity int) (*Cart, error) {
	if err := validateCartID(cartID); err != nil {
		return nil, err
	}
	if err := validateQuantity(quantity); err != nil {
		return nil, err
	}
	ctx, span := startSpan(ctx, "cart.update_quantity", cartID)
	defer span.End()

	tag, err := r.db.Exec(ctx, updateQuantitySQL, cartID, productID, quantity)
	if err != nil {
		return nil, fmt.Errorf("cart: update quantity: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrNotFound
	}
	return r.Get(ctx, cartID)
}

func (r *PostgresRepository) RemoveItem(ctx context.Context, cartID, productID string) (*Cart, error) {
	if err := validateCartID(cartID); err != nil {
		return nil, err
	}
	ctx, span := startSpan(ctx, "cart.remove_item", cartID)
	defer span.End()

	tag, err := r.db.Exec(ctx, deleteItemSQL, cartID, productID)
	if err != nil {
		return nil, fmt.Errorf("cart: remove item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrNotFound
	}
	return r.Get(ctx, cartID)
}

// Clear deletes the cart; items go with it via ON DELETE CASCADE.
func (r *PostgresRepository) Clear(ctx context.Context, cartID string) error {
	if err := validateCartID(cartID); err != nil {
		return err
	}
	ctx, span := startSpan(ctx, "cart.clear", cartID)
	defer span.End()

	if _, err := r.db.Exec(ctx, deleteCartSQL, cartID); err != nil {
		return fmt.Errorf("cart: clear: %w", err)
	}
	return nil
}

var _ Repository = (*PostgresRepository)(nil)

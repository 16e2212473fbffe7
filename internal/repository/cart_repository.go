package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/davazhoo/storefront/internal/model"
	"github.com/davazhoo/storefront/pkg/database"
)

// CartRepository provides data access for carts and cart items. Cart
// mutations are single statements: concurrent tabs race last-write-wins.
type CartRepository struct {
	pool PoolInterface
}

// NewCartRepository creates a new CartRepository with the given pool.
func NewCartRepository(pool *pgxpool.Pool) *CartRepository {
	return &CartRepository{pool: pool}
}

// NewCartRepositoryWithPool creates a CartRepository with a custom pool
// interface. This is primarily used for testing.
func NewCartRepositoryWithPool(pool PoolInterface) *CartRepository {
	return &CartRepository{pool: pool}
}

const cartColumns = `id, user_id, session_key, coupon_id, created_at, updated_at`

func scanCart(row pgx.Row) (*model.Cart, error) {
	var c model.Cart
	err := row.Scan(&c.ID, &c.UserID, &c.SessionKey, &c.CouponID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// GetByUser retrieves the cart owned by a user.
// Returns nil, nil when the user has no cart yet.
func (r *CartRepository) GetByUser(ctx context.Context, userID int64) (*model.Cart, error) {
	query := `SELECT ` + cartColumns + ` FROM carts WHERE user_id = $1`

	c, err := scanCart(r.pool.QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get cart by user %d: %w", userID, err)
	}
	return c, nil
}

// GetBySession retrieves the anonymous cart for a session token.
// Returns nil, nil when no such cart exists.
func (r *CartRepository) GetBySession(ctx context.Context, sessionKey string) (*model.Cart, error) {
	query := `SELECT ` + cartColumns + ` FROM carts WHERE session_key = $1 AND user_id IS NULL`

	c, err := scanCart(r.pool.QueryRow(ctx, query, sessionKey))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get cart by session: %w", err)
	}
	return c, nil
}

// Create inserts a new cart owned by exactly one of user id or session key
// and fills in the generated fields.
func (r *CartRepository) Create(ctx context.Context, cart *model.Cart) error {
	query := `INSERT INTO carts (user_id, session_key)
		VALUES ($1, $2)
		RETURNING id, created_at, updated_at`

	err := r.pool.QueryRow(ctx, query, cart.UserID, cart.SessionKey).
		Scan(&cart.ID, &cart.CreatedAt, &cart.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create cart: %w", err)
	}
	return nil
}

// Delete removes a cart; its items go with it (ON DELETE CASCADE).
func (r *CartRepository) Delete(ctx context.Context, id int64) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM carts WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete cart %d: %w", id, err)
	}
	return nil
}

// DeleteByUser removes all carts of a user inside the payment-confirmation
// transaction.
func (r *CartRepository) DeleteByUser(ctx context.Context, tx database.TxQuerier, userID int64) error {
	if _, err := tx.Exec(ctx, `DELETE FROM carts WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("delete carts for user %d: %w", userID, err)
	}
	return nil
}

// SetCoupon attaches or detaches (nil) the cart's applied coupon reference.
func (r *CartRepository) SetCoupon(ctx context.Context, cartID int64, couponID *int64) error {
	query := `UPDATE carts SET coupon_id = $2, updated_at = now() WHERE id = $1`

	if _, err := r.pool.Exec(ctx, query, cartID, couponID); err != nil {
		return fmt.Errorf("set coupon on cart %d: %w", cartID, err)
	}
	return nil
}

// ListItems returns all lines of a cart, oldest first.
func (r *CartRepository) ListItems(ctx context.Context, cartID int64) ([]model.CartItem, error) {
	query := `SELECT id, cart_id, product_id, quantity, price_snapshot, created_at, updated_at
		FROM cart_items WHERE cart_id = $1 ORDER BY created_at`

	rows, err := r.pool.Query(ctx, query, cartID)
	if err != nil {
		return nil, fmt.Errorf("list items for cart %d: %w", cartID, err)
	}
	defer rows.Close()

	items := []model.CartItem{}
	for rows.Next() {
		var item model.CartItem
		if err := rows.Scan(&item.ID, &item.CartID, &item.ProductID, &item.Quantity,
			&item.PriceSnapshot, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan cart item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cart items: %w", err)
	}
	return items, nil
}

// GetItem retrieves the line for a (cart, product) pair.
// Returns nil, nil when the product is not in the cart.
func (r *CartRepository) GetItem(ctx context.Context, cartID, productID int64) (*model.CartItem, error) {
	query := `SELECT id, cart_id, product_id, quantity, price_snapshot, created_at, updated_at
		FROM cart_items WHERE cart_id = $1 AND product_id = $2`

	var item model.CartItem
	err := r.pool.QueryRow(ctx, query, cartID, productID).Scan(&item.ID, &item.CartID,
		&item.ProductID, &item.Quantity, &item.PriceSnapshot, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get cart item %d/%d: %w", cartID, productID, err)
	}
	return &item, nil
}

// InsertItem adds a new line with the price snapshot taken now.
func (r *CartRepository) InsertItem(ctx context.Context, item *model.CartItem) error {
	query := `INSERT INTO cart_items (cart_id, product_id, quantity, price_snapshot)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at`

	err := r.pool.QueryRow(ctx, query, item.CartID, item.ProductID, item.Quantity, item.PriceSnapshot).
		Scan(&item.ID, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert cart item: %w", err)
	}
	return nil
}

// UpdateItemQuantity sets a line's quantity and bumps the cart timestamp.
func (r *CartRepository) UpdateItemQuantity(ctx context.Context, itemID int64, quantity int) error {
	query := `UPDATE cart_items SET quantity = $2, updated_at = now() WHERE id = $1`

	if _, err := r.pool.Exec(ctx, query, itemID, quantity); err != nil {
		return fmt.Errorf("update cart item %d: %w", itemID, err)
	}
	return nil
}

// DeleteItem removes the line for a (cart, product) pair; no-op if absent.
func (r *CartRepository) DeleteItem(ctx context.Context, cartID, productID int64) error {
	query := `DELETE FROM cart_items WHERE cart_id = $1 AND product_id = $2`

	if _, err := r.pool.Exec(ctx, query, cartID, productID); err != nil {
		return fmt.Errorf("delete cart item %d/%d: %w", cartID, productID, err)
	}
	return nil
}

// DeleteItems empties the cart.
func (r *CartRepository) DeleteItems(ctx context.Context, cartID int64) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cartID); err != nil {
		return fmt.Errorf("delete items for cart %d: %w", cartID, err)
	}
	return nil
}

// Touch bumps the cart's updated timestamp.
func (r *CartRepository) Touch(ctx context.Context, cartID int64) error {
	if _, err := r.pool.Exec(ctx, `UPDATE carts SET updated_at = now() WHERE id = $1`, cartID); err != nil {
		return fmt.Errorf("touch cart %d: %w", cartID, err)
	}
	return nil
}

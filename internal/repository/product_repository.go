package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/davazhoo/storefront/internal/model"
	"github.com/davazhoo/storefront/internal/service"
	"github.com/davazhoo/storefront/pkg/database"
)

// PoolInterface defines the database operations needed by repositories.
// This allows for easier testing with mocks.
type PoolInterface interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

const productColumns = `id, name, sku, price, stock_quantity, is_active, max_purchase_per_user, sales_count, created_at, updated_at`

// ProductRepository provides inventory-side data access for products.
type ProductRepository struct {
	pool PoolInterface
}

// NewProductRepository creates a new ProductRepository with the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// NewProductRepositoryWithPool creates a ProductRepository with a custom pool
// interface. This is primarily used for testing.
func NewProductRepositoryWithPool(pool PoolInterface) *ProductRepository {
	return &ProductRepository{pool: pool}
}

func scanProduct(row pgx.Row) (*model.Product, error) {
	var p model.Product
	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.SKU,
		&p.Price,
		&p.StockQuantity,
		&p.IsActive,
		&p.MaxPurchasePerUser,
		&p.SalesCount,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetByID retrieves a product by id.
// Returns service.ErrProductNotFound if the product doesn't exist.
func (r *ProductRepository) GetByID(ctx context.Context, id int64) (*model.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	p, err := scanProduct(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, service.ErrProductNotFound
		}
		return nil, fmt.Errorf("get product %d: %w", id, err)
	}
	return p, nil
}

// GetByIDForUpdate retrieves a product with a row lock (SELECT FOR UPDATE).
// Used by checkout and payment confirmation to serialize stock changes.
func (r *ProductRepository) GetByIDForUpdate(ctx context.Context, tx database.TxQuerier, id int64) (*model.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1 FOR UPDATE`

	p, err := scanProduct(tx.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, service.ErrProductNotFound
		}
		return nil, fmt.Errorf("get product for update %d: %w", id, err)
	}
	return p, nil
}

// DecrementStock atomically moves quantity units from stock to the sales
// counter. Must be called within a transaction after locking the row.
func (r *ProductRepository) DecrementStock(ctx context.Context, tx database.TxQuerier, id int64, quantity int) error {
	query := `UPDATE products
		SET stock_quantity = stock_quantity - $2,
		    sales_count = sales_count + $2,
		    updated_at = now()
		WHERE id = $1`

	_, err := tx.Exec(ctx, query, id, quantity)
	if err != nil {
		return fmt.Errorf("decrement stock for product %d: %w", id, err)
	}
	return nil
}

// RestoreStock reverses DecrementStock for a canceled paid order.
func (r *ProductRepository) RestoreStock(ctx context.Context, tx database.TxQuerier, id int64, quantity int) error {
	query := `UPDATE products
		SET stock_quantity = stock_quantity + $2,
		    sales_count = sales_count - $2,
		    updated_at = now()
		WHERE id = $1`

	_, err := tx.Exec(ctx, query, id, quantity)
	if err != nil {
		return fmt.Errorf("restore stock for product %d: %w", id, err)
	}
	return nil
}

package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/davazhoo/storefront/internal/model"
	"github.com/davazhoo/storefront/internal/service"
)

// ShippingRepository provides read access to the shipping-method catalog.
type ShippingRepository struct {
	pool PoolInterface
}

// NewShippingRepository creates a new ShippingRepository with the given pool.
func NewShippingRepository(pool *pgxpool.Pool) *ShippingRepository {
	return &ShippingRepository{pool: pool}
}

// NewShippingRepositoryWithPool creates a ShippingRepository with a custom
// pool interface. This is primarily used for testing.
func NewShippingRepositoryWithPool(pool PoolInterface) *ShippingRepository {
	return &ShippingRepository{pool: pool}
}

// ListActive returns the shipping methods offered at checkout, cheapest first.
func (r *ShippingRepository) ListActive(ctx context.Context) ([]model.ShippingMethod, error) {
	query := `SELECT id, name, description, price, min_delivery_days, max_delivery_days, is_active
		FROM shipping_methods WHERE is_active ORDER BY sort_order, price`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list shipping methods: %w", err)
	}
	defer rows.Close()

	methods := []model.ShippingMethod{}
	for rows.Next() {
		var m model.ShippingMethod
		if err := rows.Scan(&m.ID, &m.Name, &m.Description, &m.Price,
			&m.MinDeliveryDays, &m.MaxDeliveryDays, &m.IsActive); err != nil {
			return nil, fmt.Errorf("scan shipping method: %w", err)
		}
		methods = append(methods, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate shipping methods: %w", err)
	}
	return methods, nil
}

// GetActiveByID retrieves one active shipping method.
// Returns service.ErrShippingMethodNotFound if absent or inactive.
func (r *ShippingRepository) GetActiveByID(ctx context.Context, id int64) (*model.ShippingMethod, error) {
	query := `SELECT id, name, description, price, min_delivery_days, max_delivery_days, is_active
		FROM shipping_methods WHERE id = $1 AND is_active`

	var m model.ShippingMethod
	err := r.pool.QueryRow(ctx, query, id).Scan(&m.ID, &m.Name, &m.Description,
		&m.Price, &m.MinDeliveryDays, &m.MaxDeliveryDays, &m.IsActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, service.ErrShippingMethodNotFound
		}
		return nil, fmt.Errorf("get shipping method %d: %w", id, err)
	}
	return &m, nil
}

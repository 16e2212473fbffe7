package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/davazhoo/storefront/internal/model"
	"github.com/davazhoo/storefront/internal/service"
	"github.com/davazhoo/storefront/pkg/database"
)

const orderColumns = `id, user_id, order_number, status,
	address_province, address_city, address_full, address_postal_code, receiver_name, receiver_phone,
	subtotal, shipping_cost, discount_amount, coupon_code, total,
	shipping_method, tracking_code, note, admin_note,
	created_at, updated_at, paid_at, shipped_at, delivered_at`

// OrderRepository provides data access for orders and order items.
type OrderRepository struct {
	pool PoolInterface
}

// NewOrderRepository creates a new OrderRepository with the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// NewOrderRepositoryWithPool creates an OrderRepository with a custom pool
// interface. This is primarily used for testing.
func NewOrderRepositoryWithPool(pool PoolInterface) *OrderRepository {
	return &OrderRepository{pool: pool}
}

func scanOrder(row pgx.Row) (*model.Order, error) {
	var o model.Order
	err := row.Scan(
		&o.ID, &o.UserID, &o.OrderNumber, &o.Status,
		&o.AddressProvince, &o.AddressCity, &o.AddressFull, &o.AddressPostalCode,
		&o.ReceiverName, &o.ReceiverPhone,
		&o.Subtotal, &o.ShippingCost, &o.DiscountAmount, &o.CouponCode, &o.Total,
		&o.ShippingMethod, &o.TrackingCode, &o.Note, &o.AdminNote,
		&o.CreatedAt, &o.UpdatedAt, &o.PaidAt, &o.ShippedAt, &o.DeliveredAt,
	)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// Insert creates the order row inside the checkout transaction.
// Returns service.ErrOrderNumberTaken on an order-number collision.
func (r *OrderRepository) Insert(ctx context.Context, tx database.TxQuerier, o *model.Order) error {
	query := `INSERT INTO orders (
			user_id, order_number, status,
			address_province, address_city, address_full, address_postal_code, receiver_name, receiver_phone,
			subtotal, shipping_cost, discount_amount, coupon_code, total,
			shipping_method, note
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING id, created_at, updated_at`

	err := tx.QueryRow(ctx, query,
		o.UserID, o.OrderNumber, o.Status,
		o.AddressProvince, o.AddressCity, o.AddressFull, o.AddressPostalCode, o.ReceiverName, o.ReceiverPhone,
		o.Subtotal, o.ShippingCost, o.DiscountAmount, o.CouponCode, o.Total,
		o.ShippingMethod, o.Note,
	).Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return service.ErrOrderNumberTaken
		}
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

// InsertItem snapshots one cart line onto the order.
func (r *OrderRepository) InsertItem(ctx context.Context, tx database.TxQuerier, item *model.OrderItem) error {
	query := `INSERT INTO order_items (order_id, product_id, quantity, price, product_name, product_sku)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`

	err := tx.QueryRow(ctx, query, item.OrderID, item.ProductID, item.Quantity,
		item.Price, item.ProductName, item.ProductSKU).Scan(&item.ID)
	if err != nil {
		return fmt.Errorf("insert order item: %w", err)
	}
	return nil
}

// GetByID retrieves an order by id.
// Returns service.ErrOrderNotFound if the order doesn't exist.
func (r *OrderRepository) GetByID(ctx context.Context, id int64) (*model.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	o, err := scanOrder(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, service.ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order %d: %w", id, err)
	}
	return o, nil
}

// GetByIDForUpdate retrieves an order with a row lock (SELECT FOR UPDATE).
func (r *OrderRepository) GetByIDForUpdate(ctx context.Context, tx database.TxQuerier, id int64) (*model.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1 FOR UPDATE`

	o, err := scanOrder(tx.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, service.ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order for update %d: %w", id, err)
	}
	return o, nil
}

// ListItems returns an order's lines.
func (r *OrderRepository) ListItems(ctx context.Context, orderID int64) ([]model.OrderItem, error) {
	return r.listItems(ctx, r.pool, orderID)
}

// ListItemsTx returns an order's lines inside a transaction, used by payment
// confirmation and cancellation while product rows are locked.
func (r *OrderRepository) ListItemsTx(ctx context.Context, tx database.TxQuerier, orderID int64) ([]model.OrderItem, error) {
	return r.listItems(ctx, tx, orderID)
}

func (r *OrderRepository) listItems(ctx context.Context, q database.TxQuerier, orderID int64) ([]model.OrderItem, error) {
	query := `SELECT id, order_id, product_id, quantity, price, product_name, product_sku
		FROM order_items WHERE order_id = $1 ORDER BY id`

	rows, err := q.Query(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("list items for order %d: %w", orderID, err)
	}
	defer rows.Close()

	items := []model.OrderItem{}
	for rows.Next() {
		var item model.OrderItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.Quantity,
			&item.Price, &item.ProductName, &item.ProductSKU); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order items: %w", err)
	}
	return items, nil
}

// MarkPaid performs the status compare-and-swap for the payment-success path:
// the update only applies while the order is still pending, so duplicate
// callback deliveries and sweeper races resolve to exactly one transition.
// Returns false when the guard did not match.
func (r *OrderRepository) MarkPaid(ctx context.Context, tx database.TxQuerier, id int64, paidAt time.Time) (bool, error) {
	query := `UPDATE orders
		SET status = $2, paid_at = $3, updated_at = now()
		WHERE id = $1 AND status = $4`

	tag, err := tx.Exec(ctx, query, id, model.OrderPaid, paidAt, model.OrderPending)
	if err != nil {
		return false, fmt.Errorf("mark order %d paid: %w", id, err)
	}
	return tag.RowsAffected() > 0, nil
}

// UpdateStatusIf advances the order status only when the current status
// matches expected (compare-and-swap). Stamps the matching timestamp for
// shipped/delivered transitions and stores an optional admin note.
func (r *OrderRepository) UpdateStatusIf(ctx context.Context, id int64, expected, next model.OrderStatus, adminNote string) (bool, error) {
	return r.updateStatusIf(ctx, r.pool, id, expected, next, adminNote)
}

// UpdateStatusIfTx is UpdateStatusIf inside a caller transaction, used by the
// cancellation path while stock is being restored.
func (r *OrderRepository) UpdateStatusIfTx(ctx context.Context, tx database.TxQuerier, id int64, expected, next model.OrderStatus, adminNote string) (bool, error) {
	return r.updateStatusIf(ctx, tx, id, expected, next, adminNote)
}

func (r *OrderRepository) updateStatusIf(ctx context.Context, q database.TxQuerier, id int64, expected, next model.OrderStatus, adminNote string) (bool, error) {
	query := `UPDATE orders
		SET status = $3,
		    admin_note = CASE WHEN $4 <> '' THEN $4 ELSE admin_note END,
		    shipped_at = CASE WHEN $3 = 'shipped' THEN now() ELSE shipped_at END,
		    delivered_at = CASE WHEN $3 = 'delivered' THEN now() ELSE delivered_at END,
		    updated_at = now()
		WHERE id = $1 AND status = $2`

	tag, err := q.Exec(ctx, query, id, expected, next, adminNote)
	if err != nil {
		return false, fmt.Errorf("update status of order %d: %w", id, err)
	}
	return tag.RowsAffected() > 0, nil
}

// SetTrackingCode stores the carrier tracking code.
func (r *OrderRepository) SetTrackingCode(ctx context.Context, id int64, code string) error {
	query := `UPDATE orders SET tracking_code = $2, updated_at = now() WHERE id = $1`

	if _, err := r.pool.Exec(ctx, query, id, code); err != nil {
		return fmt.Errorf("set tracking code on order %d: %w", id, err)
	}
	return nil
}

// ListExpiredPending returns pending orders created before the cutoff, the
// sweeper's candidates for automatic cancellation.
func (r *OrderRepository) ListExpiredPending(ctx context.Context, cutoff time.Time) ([]model.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders
		WHERE status = $1 AND created_at < $2 ORDER BY created_at`

	rows, err := r.pool.Query(ctx, query, model.OrderPending, cutoff)
	if err != nil {
		return nil, fmt.Errorf("list expired pending orders: %w", err)
	}
	defer rows.Close()

	orders := []model.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan expired order: %w", err)
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expired orders: %w", err)
	}
	return orders, nil
}

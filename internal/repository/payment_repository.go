package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/davazhoo/storefront/internal/model"
	"github.com/davazhoo/storefront/internal/service"
	"github.com/davazhoo/storefront/pkg/database"
)

// PaymentRepository provides data access for payment transactions.
type PaymentRepository struct {
	pool PoolInterface
}

// NewPaymentRepository creates a new PaymentRepository with the given pool.
func NewPaymentRepository(pool *pgxpool.Pool) *PaymentRepository {
	return &PaymentRepository{pool: pool}
}

// NewPaymentRepositoryWithPool creates a PaymentRepository with a custom pool
// interface. This is primarily used for testing.
func NewPaymentRepositoryWithPool(pool PoolInterface) *PaymentRepository {
	return &PaymentRepository{pool: pool}
}

// Insert creates a new pending transaction for a payment attempt.
func (r *PaymentRepository) Insert(ctx context.Context, p *model.PaymentTransaction) error {
	query := `INSERT INTO payment_transactions (order_id, amount, status, gateway)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at`

	err := r.pool.QueryRow(ctx, query, p.OrderID, p.Amount, p.Status, p.Gateway).
		Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert payment transaction: %w", err)
	}
	return nil
}

// SetAuthority stores the gateway-issued authority token on the transaction.
func (r *PaymentRepository) SetAuthority(ctx context.Context, id int64, authority string) error {
	query := `UPDATE payment_transactions SET authority = $2, updated_at = now() WHERE id = $1`

	if _, err := r.pool.Exec(ctx, query, id, authority); err != nil {
		return fmt.Errorf("set authority on transaction %d: %w", id, err)
	}
	return nil
}

// GetByAuthority correlates a gateway callback with its transaction.
// Returns service.ErrPaymentNotFound if no transaction matches.
func (r *PaymentRepository) GetByAuthority(ctx context.Context, authority string) (*model.PaymentTransaction, error) {
	query := `SELECT id, order_id, amount, status, gateway, authority, ref_id, card_number, created_at, updated_at
		FROM payment_transactions WHERE authority = $1`

	var p model.PaymentTransaction
	err := r.pool.QueryRow(ctx, query, authority).Scan(
		&p.ID, &p.OrderID, &p.Amount, &p.Status, &p.Gateway,
		&p.Authority, &p.RefID, &p.CardNumber, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, service.ErrPaymentNotFound
		}
		return nil, fmt.Errorf("get transaction by authority: %w", err)
	}
	return &p, nil
}

// UpdateStatus moves a transaction to a terminal per-attempt state.
func (r *PaymentRepository) UpdateStatus(ctx context.Context, id int64, status model.PaymentStatus) error {
	query := `UPDATE payment_transactions SET status = $2, updated_at = now() WHERE id = $1`

	if _, err := r.pool.Exec(ctx, query, id, status); err != nil {
		return fmt.Errorf("update transaction %d status: %w", id, err)
	}
	return nil
}

// MarkSuccess records the settlement inside the payment-confirmation
// transaction: status, settlement reference and masked card.
func (r *PaymentRepository) MarkSuccess(ctx context.Context, tx database.TxQuerier, id int64, refID, cardNumber string) error {
	query := `UPDATE payment_transactions
		SET status = $2, ref_id = $3, card_number = $4, updated_at = now()
		WHERE id = $1`

	if _, err := tx.Exec(ctx, query, id, model.PaymentSuccess, refID, cardNumber); err != nil {
		return fmt.Errorf("mark transaction %d success: %w", id, err)
	}
	return nil
}

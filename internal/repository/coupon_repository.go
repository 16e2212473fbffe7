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

const couponColumns = `id, code, discount_type, discount_value, min_purchase, max_discount,
	usage_limit, usage_limit_per_user, used_count, valid_from, valid_until, is_active, created_at`

// CouponRepository provides data access for coupons and their redemptions.
type CouponRepository struct {
	pool PoolInterface
}

// NewCouponRepository creates a new CouponRepository with the given pool.
func NewCouponRepository(pool *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{pool: pool}
}

// NewCouponRepositoryWithPool creates a CouponRepository with a custom pool
// interface. This is primarily used for testing.
func NewCouponRepositoryWithPool(pool PoolInterface) *CouponRepository {
	return &CouponRepository{pool: pool}
}

func scanCoupon(row pgx.Row) (*model.Coupon, error) {
	var c model.Coupon
	err := row.Scan(
		&c.ID,
		&c.Code,
		&c.DiscountType,
		&c.DiscountValue,
		&c.MinPurchase,
		&c.MaxDiscount,
		&c.UsageLimit,
		&c.UsageLimitPerUser,
		&c.UsedCount,
		&c.ValidFrom,
		&c.ValidUntil,
		&c.IsActive,
		&c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// GetByCode retrieves a coupon by its code, case-insensitively.
// Returns service.ErrCouponNotFound if no coupon matches.
func (r *CouponRepository) GetByCode(ctx context.Context, code string) (*model.Coupon, error) {
	query := `SELECT ` + couponColumns + ` FROM coupons WHERE LOWER(code) = LOWER($1)`

	c, err := scanCoupon(r.pool.QueryRow(ctx, query, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, service.ErrCouponNotFound
		}
		return nil, fmt.Errorf("get coupon by code %s: %w", code, err)
	}
	return c, nil
}

// GetByID retrieves a coupon by id.
// Returns service.ErrCouponNotFound if the coupon doesn't exist.
func (r *CouponRepository) GetByID(ctx context.Context, id int64) (*model.Coupon, error) {
	query := `SELECT ` + couponColumns + ` FROM coupons WHERE id = $1`

	c, err := scanCoupon(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, service.ErrCouponNotFound
		}
		return nil, fmt.Errorf("get coupon %d: %w", id, err)
	}
	return c, nil
}

// GetByIDForUpdate retrieves a coupon with a row lock (SELECT FOR UPDATE) so
// the usage counter cannot race during redemption.
func (r *CouponRepository) GetByIDForUpdate(ctx context.Context, tx database.TxQuerier, id int64) (*model.Coupon, error) {
	query := `SELECT ` + couponColumns + ` FROM coupons WHERE id = $1 FOR UPDATE`

	c, err := scanCoupon(tx.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, service.ErrCouponNotFound
		}
		return nil, fmt.Errorf("get coupon for update %d: %w", id, err)
	}
	return c, nil
}

// CountUsageByUser counts successful redemptions of a coupon by one user.
// Used to enforce the per-user cap.
func (r *CouponRepository) CountUsageByUser(ctx context.Context, couponID, userID int64) (int, error) {
	query := `SELECT COUNT(*) FROM coupon_usages WHERE coupon_id = $1 AND user_id = $2`

	var count int
	if err := r.pool.QueryRow(ctx, query, couponID, userID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count coupon usage %d/%d: %w", couponID, userID, err)
	}
	return count, nil
}

// InsertUsage records one redemption within the checkout transaction.
func (r *CouponRepository) InsertUsage(ctx context.Context, tx database.TxQuerier, usage *model.CouponUsage) error {
	query := `INSERT INTO coupon_usages (coupon_id, user_id, order_id, discount_amount)
		VALUES ($1, $2, $3, $4)`

	_, err := tx.Exec(ctx, query, usage.CouponID, usage.UserID, usage.OrderID, usage.DiscountAmount)
	if err != nil {
		return fmt.Errorf("insert coupon usage: %w", err)
	}
	return nil
}

// IncrementUsedCount bumps the global usage counter in place. The increment
// happens in SQL, never as read-modify-write at the application layer.
func (r *CouponRepository) IncrementUsedCount(ctx context.Context, tx database.TxQuerier, id int64) error {
	query := `UPDATE coupons SET used_count = used_count + 1 WHERE id = $1`

	_, err := tx.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("increment used count for coupon %d: %w", id, err)
	}
	return nil
}

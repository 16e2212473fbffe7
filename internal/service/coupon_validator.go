package service

import (
	"context"
	"fmt"
	"time"

	"github.com/davazhoo/storefront/internal/model"
)

// CouponUsageCounter counts a user's redemptions of a coupon.
type CouponUsageCounter interface {
	CountUsageByUser(ctx context.Context, couponID, userID int64) (int, error)
}

// CouponValidator enforces coupon eligibility. Every total computation runs
// the full check again: validity is never cached on the cart, so a coupon
// deactivated or exhausted between apply-time and checkout stops discounting.
type CouponValidator struct {
	usages CouponUsageCounter
	now    func() time.Time
}

// NewCouponValidator creates a CouponValidator backed by the given usage counter.
func NewCouponValidator(usages CouponUsageCounter) *CouponValidator {
	return &CouponValidator{usages: usages, now: time.Now}
}

// Validate checks the coupon against the candidate user and cart subtotal.
// Checks run in order and short-circuit on the first failure so the caller
// can surface the most useful reason. A nil userID means an anonymous cart;
// the per-user cap only applies to authenticated users.
func (v *CouponValidator) Validate(ctx context.Context, c *model.Coupon, userID *int64, subtotal int64) error {
	now := v.now()

	if !c.IsActive {
		return ErrCouponInactive
	}
	if now.Before(c.ValidFrom) {
		return ErrCouponNotStarted
	}
	if now.After(c.ValidUntil) {
		return ErrCouponExpired
	}
	if c.Exhausted() {
		return ErrCouponExhausted
	}
	if subtotal < c.MinPurchase {
		return ErrCouponMinPurchase
	}
	if userID != nil {
		used, err := v.usages.CountUsageByUser(ctx, c.ID, *userID)
		if err != nil {
			return fmt.Errorf("count coupon usage: %w", err)
		}
		if used >= c.UsageLimitPerUser {
			return ErrCouponUserLimit
		}
	}
	return nil
}

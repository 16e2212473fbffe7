package model

import "time"

// DiscountType is how a coupon's value is interpreted.
type DiscountType string

const (
	DiscountPercent DiscountType = "percent"
	DiscountFixed   DiscountType = "fixed"
)

// Coupon represents a discount code. Percent coupons carry a value in [0,100]
// and an optional absolute cap; fixed coupons carry a Toman amount.
type Coupon struct {
	ID                int64        `json:"id"`
	Code              string       `json:"code"`
	DiscountType      DiscountType `json:"discount_type"`
	DiscountValue     int64        `json:"discount_value"`
	MinPurchase       int64        `json:"min_purchase"`
	MaxDiscount       *int64       `json:"max_discount,omitempty"` // percent type only
	UsageLimit        *int         `json:"usage_limit,omitempty"`  // nil = unlimited
	UsageLimitPerUser int          `json:"usage_limit_per_user"`
	UsedCount         int          `json:"used_count"`
	ValidFrom         time.Time    `json:"valid_from"`
	ValidUntil        time.Time    `json:"valid_until"`
	IsActive          bool         `json:"is_active"`
	CreatedAt         time.Time    `json:"-"`
}

// Exhausted reports whether the coupon's overall usage cap has been reached.
func (c *Coupon) Exhausted() bool {
	return c.UsageLimit != nil && c.UsedCount >= *c.UsageLimit
}

// CouponUsage records one successful redemption. OrderID is cleared (not the
// row) if the order is ever purged, so per-user caps keep counting.
type CouponUsage struct {
	ID             int64     `json:"id"`
	CouponID       int64     `json:"coupon_id"`
	UserID         int64     `json:"user_id"`
	OrderID        *int64    `json:"order_id,omitempty"`
	DiscountAmount int64     `json:"discount_amount"`
	UsedAt         time.Time `json:"used_at"`
}

// ApplyCouponRequest is the DTO for applying a coupon code to the cart.
type ApplyCouponRequest struct {
	Code string `json:"code" validate:"required,notblank,max=50"`
}

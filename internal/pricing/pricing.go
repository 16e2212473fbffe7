// Package pricing computes cart money amounts. All values are whole Toman
// held in int64; the functions are pure and perform no persistence.
package pricing

import "github.com/davazhoo/storefront/internal/model"

// Subtotal sums price-snapshot × quantity over all cart lines.
func Subtotal(items []model.CartItem) int64 {
	var sum int64
	for i := range items {
		sum += items[i].TotalPrice()
	}
	return sum
}

// Discount computes the Toman discount a coupon yields on the given subtotal.
// Percent coupons are capped by MaxDiscount when set; the result is always
// clamped so the discount never exceeds the subtotal. The coupon is assumed
// to have passed eligibility validation; a nil coupon yields zero.
func Discount(c *model.Coupon, subtotal int64) int64 {
	if c == nil || subtotal <= 0 {
		return 0
	}

	var discount int64
	switch c.DiscountType {
	case model.DiscountPercent:
		discount = subtotal * c.DiscountValue / 100
		if c.MaxDiscount != nil && discount > *c.MaxDiscount {
			discount = *c.MaxDiscount
		}
	case model.DiscountFixed:
		discount = c.DiscountValue
	default:
		return 0
	}

	if discount < 0 {
		return 0
	}
	if discount > subtotal {
		return subtotal
	}
	return discount
}

// Total is subtotal minus discount, floored at zero.
func Total(subtotal, discount int64) int64 {
	total := subtotal - discount
	if total < 0 {
		return 0
	}
	return total
}

package model

import "time"

// Cart is a mutable collection of line items owned by exactly one of an
// authenticated user or an anonymous session token. The coupon reference is
// weak: validity is re-checked on every total computation, never cached.
type Cart struct {
	ID         int64     `json:"id"`
	UserID     *int64    `json:"user_id,omitempty"`
	SessionKey *string   `json:"session_key,omitempty"`
	CouponID   *int64    `json:"coupon_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// CartItem is one (cart, product) line. The price snapshot is captured when
// the item is first added and not re-read from the product on every view.
type CartItem struct {
	ID            int64     `json:"id"`
	CartID        int64     `json:"cart_id"`
	ProductID     int64     `json:"product_id"`
	Quantity      int       `json:"quantity"`
	PriceSnapshot int64     `json:"price_snapshot"`
	CreatedAt     time.Time `json:"-"`
	UpdatedAt     time.Time `json:"-"`
}

// TotalPrice is the line total at the snapshotted unit price.
func (i *CartItem) TotalPrice() int64 {
	return i.PriceSnapshot * int64(i.Quantity)
}

// CartItemView is the API shape of a cart line, joined with live product data.
type CartItemView struct {
	ProductID     int64  `json:"product_id"`
	ProductName   string `json:"product_name"`
	Quantity      int    `json:"quantity"`
	PriceSnapshot int64  `json:"price_snapshot"`
	TotalPrice    int64  `json:"total_price"`
	Available     bool   `json:"available"`
}

// CartView is the API response for the cart, with derived money fields.
// Total is always Subtotal - DiscountAmount, floored at zero.
type CartView struct {
	Items          []CartItemView `json:"items"`
	ItemsCount     int            `json:"items_count"`
	Subtotal       int64          `json:"subtotal"`
	DiscountAmount int64          `json:"discount_amount"`
	Total          int64          `json:"total"`
	CouponCode     string         `json:"coupon_code,omitempty"`
}

// AddItemRequest is the DTO for adding a product to the cart.
type AddItemRequest struct {
	ProductID int64 `json:"product_id" validate:"required,gt=0"`
	Quantity  int   `json:"quantity" validate:"gte=1"`
}

// UpdateItemRequest is the DTO for setting a cart line's quantity.
// Zero or negative removes the line.
type UpdateItemRequest struct {
	Quantity int `json:"quantity"`
}

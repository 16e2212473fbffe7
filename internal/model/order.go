package model

import "time"

// OrderStatus is the order's position in its lifecycle. Transitions only move
// forward or to a terminal state; there are no backward transitions.
type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderPaid       OrderStatus = "paid"
	OrderProcessing OrderStatus = "processing"
	OrderShipped    OrderStatus = "shipped"
	OrderDelivered  OrderStatus = "delivered"
	OrderCanceled   OrderStatus = "canceled"
	OrderReturned   OrderStatus = "returned"
)

// statusRank orders the forward chain; terminal alternates are handled
// separately in CanTransitionTo.
var statusRank = map[OrderStatus]int{
	OrderPending:    0,
	OrderPaid:       1,
	OrderProcessing: 2,
	OrderShipped:    3,
	OrderDelivered:  4,
}

var statusLabels = map[OrderStatus]string{
	OrderPending:    "awaiting payment",
	OrderPaid:       "paid",
	OrderProcessing: "processing",
	OrderShipped:    "shipped",
	OrderDelivered:  "delivered",
	OrderCanceled:   "canceled",
	OrderReturned:   "returned",
}

// Label returns the customer-facing label used in notifications.
func (s OrderStatus) Label() string {
	if l, ok := statusLabels[s]; ok {
		return l
	}
	return string(s)
}

// Valid reports whether s is a known order status.
func (s OrderStatus) Valid() bool {
	_, ok := statusLabels[s]
	return ok
}

// Order is immutable once created except for status, tracking fields and
// timestamps. Address and money fields are denormalized snapshots; they never
// change even if the source address or coupon is later edited or deleted.
type Order struct {
	ID          int64       `json:"id"`
	UserID      int64       `json:"user_id"`
	OrderNumber string      `json:"order_number"`
	Status      OrderStatus `json:"status"`

	AddressProvince   string `json:"address_province"`
	AddressCity       string `json:"address_city"`
	AddressFull       string `json:"address_full"`
	AddressPostalCode string `json:"address_postal_code"`
	ReceiverName      string `json:"receiver_name"`
	ReceiverPhone     string `json:"receiver_phone"`

	Subtotal       int64  `json:"subtotal"`
	ShippingCost   int64  `json:"shipping_cost"`
	DiscountAmount int64  `json:"discount_amount"`
	CouponCode     string `json:"coupon_code,omitempty"`
	Total          int64  `json:"total"`

	ShippingMethod string `json:"shipping_method,omitempty"`
	TrackingCode   string `json:"tracking_code,omitempty"`
	Note           string `json:"note,omitempty"`
	AdminNote      string `json:"-"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	PaidAt      *time.Time `json:"paid_at,omitempty"`
	ShippedAt   *time.Time `json:"shipped_at,omitempty"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`
}

// CanCancel reports whether the customer may still cancel the order.
func (o *Order) CanCancel() bool {
	return o.Status == OrderPending || o.Status == OrderPaid
}

// CanPay reports whether a payment may be initiated: the order must still be
// pending and within the payment window measured from creation.
func (o *Order) CanPay(now time.Time, window time.Duration) bool {
	if o.Status != OrderPending {
		return false
	}
	return now.Before(o.CreatedAt.Add(window))
}

// PaymentTimeRemaining is the number of seconds left to pay, floored at zero.
func (o *Order) PaymentTimeRemaining(now time.Time, window time.Duration) int64 {
	if o.Status != OrderPending {
		return 0
	}
	remaining := o.CreatedAt.Add(window).Sub(now)
	if remaining < 0 {
		return 0
	}
	return int64(remaining.Seconds())
}

// CanTransitionTo reports whether moving to next is a legal forward or
// terminal transition from the current status.
func (o *Order) CanTransitionTo(next OrderStatus) bool {
	if o.Status == next {
		return false
	}
	switch next {
	case OrderCanceled:
		return o.CanCancel()
	case OrderReturned:
		return o.Status == OrderDelivered
	default:
		cur, curOK := statusRank[o.Status]
		nxt, nxtOK := statusRank[next]
		return curOK && nxtOK && nxt > cur
	}
}

// OrderItem is an immutable snapshot of a purchased line, decoupled from live
// product data so historical orders stay accurate after price changes.
type OrderItem struct {
	ID          int64  `json:"id"`
	OrderID     int64  `json:"order_id"`
	ProductID   int64  `json:"product_id"`
	Quantity    int    `json:"quantity"`
	Price       int64  `json:"price"`
	ProductName string `json:"product_name"`
	ProductSKU  string `json:"product_sku"`
}

// TotalPrice is the line total at the snapshotted unit price.
func (i *OrderItem) TotalPrice() int64 {
	return i.Price * int64(i.Quantity)
}

// PaymentStatus is a payment transaction's terminal-per-attempt state.
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentSuccess  PaymentStatus = "success"
	PaymentFailed   PaymentStatus = "failed"
	PaymentCanceled PaymentStatus = "canceled"
)

// PaymentTransaction is one payment attempt against an order. An order may
// have several (retry after failure); at most one ever reaches success.
type PaymentTransaction struct {
	ID         int64         `json:"id"`
	OrderID    int64         `json:"order_id"`
	Amount     int64         `json:"amount"`
	Status     PaymentStatus `json:"status"`
	Gateway    string        `json:"gateway"`
	Authority  string        `json:"authority,omitempty"`
	RefID      string        `json:"ref_id,omitempty"`
	CardNumber string        `json:"card_number,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at"`
}

// ShippingMethod is a priced delivery option shown at checkout.
type ShippingMethod struct {
	ID              int64  `json:"id"`
	Name            string `json:"name"`
	Description     string `json:"description,omitempty"`
	Price           int64  `json:"price"`
	MinDeliveryDays int    `json:"min_delivery_days"`
	MaxDeliveryDays int    `json:"max_delivery_days"`
	IsActive        bool   `json:"-"`
}

// CheckoutRequest is the DTO for converting the cart into an order. The
// address is entered inline and snapshotted onto the order.
type CheckoutRequest struct {
	AddressProvince   string `json:"address_province" validate:"required,notblank,max=50"`
	AddressCity       string `json:"address_city" validate:"required,notblank,max=50"`
	AddressFull       string `json:"address_full" validate:"required,notblank"`
	AddressPostalCode string `json:"address_postal_code" validate:"required,notblank,max=10"`
	ReceiverName      string `json:"receiver_name" validate:"required,notblank,max=100"`
	ReceiverPhone     string `json:"receiver_phone" validate:"required,notblank,max=11"`
	ShippingMethodID  int64  `json:"shipping_method_id" validate:"required,gt=0"`
	Note              string `json:"note" validate:"max=1000"`
}

// OrderDetail is the API response for a single order with its lines.
type OrderDetail struct {
	Order                *Order      `json:"order"`
	Items                []OrderItem `json:"items"`
	PaymentTimeRemaining int64       `json:"payment_time_remaining"`
	CanPay               bool        `json:"can_pay"`
	CanCancel            bool        `json:"can_cancel"`
}

// UpdateStatusRequest is the admin DTO for advancing an order's status.
type UpdateStatusRequest struct {
	Status       string `json:"status" validate:"required,notblank"`
	TrackingCode string `json:"tracking_code" validate:"max=50"`
}

package service

import "errors"

var (
	// ErrCouponNotFound is returned when no coupon matches the given code.
	// Distinct from the invalid-coupon family: the code simply does not exist.
	ErrCouponNotFound = errors.New("coupon not found")

	// ErrCouponInactive is returned when the coupon's active flag is off.
	ErrCouponInactive = errors.New("coupon is not active")

	// ErrCouponNotStarted is returned before the coupon's validity window opens.
	ErrCouponNotStarted = errors.New("coupon is not active yet")

	// ErrCouponExpired is returned after the coupon's validity window closes.
	ErrCouponExpired = errors.New("coupon has expired")

	// ErrCouponExhausted is returned when the overall usage cap is reached.
	ErrCouponExhausted = errors.New("coupon usage limit reached")

	// ErrCouponMinPurchase is returned when the cart subtotal is below the
	// coupon's minimum purchase threshold.
	ErrCouponMinPurchase = errors.New("cart subtotal below coupon minimum purchase")

	// ErrCouponUserLimit is returned when the user already redeemed the coupon
	// up to its per-user cap.
	ErrCouponUserLimit = errors.New("coupon already used by this user")

	// ErrProductNotFound is returned when a product does not exist or is inactive.
	ErrProductNotFound = errors.New("product not found")

	// ErrProductUnavailable is returned when a product is inactive or out of
	// stock for the requested quantity.
	ErrProductUnavailable = errors.New("product unavailable")

	// ErrNegativePrice is returned when a product or shipping method carries a
	// negative price. Such catalog rows are corrupt and must never reach an
	// order total or the gateway amount.
	ErrNegativePrice = errors.New("negative price")

	// ErrCartEmpty is returned when checkout is attempted on an empty cart.
	ErrCartEmpty = errors.New("cart is empty")

	// ErrCartItemNotFound is returned when a cart line does not exist.
	ErrCartItemNotFound = errors.New("cart item not found")

	// ErrShippingMethodNotFound is returned when the shipping method does not
	// exist or is inactive.
	ErrShippingMethodNotFound = errors.New("shipping method not found")

	// ErrOrderNotFound is returned when an order does not exist or belongs to
	// another user.
	ErrOrderNotFound = errors.New("order not found")

	// ErrOrderNumberTaken signals a unique-constraint collision on the order
	// number; checkout regenerates the number and retries the insert.
	ErrOrderNumberTaken = errors.New("order number already taken")

	// ErrOrderNotPayable is returned when payment is initiated on an order
	// that is no longer pending or whose payment window has expired.
	ErrOrderNotPayable = errors.New("order is not payable")

	// ErrOrderNotCancelable is returned when cancellation is requested past
	// the pending/paid stages.
	ErrOrderNotCancelable = errors.New("order can no longer be canceled")

	// ErrOrderFinalized is returned when a payment callback arrives for an
	// order already moved to a terminal state by another path (e.g. the
	// expiry sweeper). Side effects must not be re-applied.
	ErrOrderFinalized = errors.New("order already finalized")

	// ErrInvalidTransition is returned for a status change that would move
	// the order backward or to an unknown state.
	ErrInvalidTransition = errors.New("invalid order status transition")

	// ErrPaymentNotFound is returned when no transaction matches the gateway
	// authority token.
	ErrPaymentNotFound = errors.New("payment transaction not found")

	// ErrPaymentCanceled is returned when the gateway reports a non-success
	// callback status; the order stays pending and may be retried.
	ErrPaymentCanceled = errors.New("payment canceled by gateway")

	// ErrPaymentVerification is returned when gateway verification declines
	// the payment.
	ErrPaymentVerification = errors.New("payment verification failed")

	// ErrGatewayUnavailable is returned when the gateway cannot be reached or
	// answers with a malformed response.
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
)

// IsCouponInvalid reports whether err is one of the coupon eligibility
// failures. These leave the cart's applied coupon untouched on ApplyCoupon.
func IsCouponInvalid(err error) bool {
	switch {
	case errors.Is(err, ErrCouponInactive),
		errors.Is(err, ErrCouponNotStarted),
		errors.Is(err, ErrCouponExpired),
		errors.Is(err, ErrCouponExhausted),
		errors.Is(err, ErrCouponMinPurchase),
		errors.Is(err, ErrCouponUserLimit):
		return true
	}
	return false
}

package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"

	"github.com/davazhoo/storefront/internal/model"
	"github.com/davazhoo/storefront/internal/pricing"
	"github.com/davazhoo/storefront/pkg/database"
)

// TxBeginner opens database transactions. Satisfied by pgxpool.Pool.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// OrderWriter defines the order persistence needed by checkout.
type OrderWriter interface {
	Insert(ctx context.Context, tx database.TxQuerier, o *model.Order) error
	InsertItem(ctx context.Context, tx database.TxQuerier, item *model.OrderItem) error
	GetByID(ctx context.Context, id int64) (*model.Order, error)
	ListItems(ctx context.Context, orderID int64) ([]model.OrderItem, error)
}

// ProductLocker defines the row-locking product access used inside the
// checkout transaction.
type ProductLocker interface {
	GetByIDForUpdate(ctx context.Context, tx database.TxQuerier, id int64) (*model.Product, error)
}

// CouponRedeemer defines the coupon operations that run inside the checkout
// transaction: the row lock that serializes the usage counter and the writes
// that record a redemption.
type CouponRedeemer interface {
	GetByIDForUpdate(ctx context.Context, tx database.TxQuerier, id int64) (*model.Coupon, error)
	InsertUsage(ctx context.Context, tx database.TxQuerier, usage *model.CouponUsage) error
	IncrementUsedCount(ctx context.Context, tx database.TxQuerier, id int64) error
}

// ShippingMethodReader defines read access to shipping methods.
type ShippingMethodReader interface {
	ListActive(ctx context.Context) ([]model.ShippingMethod, error)
	GetActiveByID(ctx context.Context, id int64) (*model.ShippingMethod, error)
}

// orderNumberRetries bounds regeneration attempts on the vanishingly unlikely
// order-number collision.
const orderNumberRetries = 5

// CheckoutService converts carts into orders. Order creation runs in a single
// transaction with product and coupon rows locked, so availability checks,
// price snapshots and the coupon usage counter cannot race concurrent
// checkouts.
type CheckoutService struct {
	pool      TxBeginner
	carts     CartRepositoryInterface
	products  ProductReader
	locker    ProductLocker
	coupons   CouponReader
	redeemer  CouponRedeemer
	orders    OrderWriter
	shipping  ShippingMethodReader
	validator *CouponValidator

	paymentWindow time.Duration
	now           func() time.Time
}

// NewCheckoutService creates a CheckoutService with the given collaborators.
// products and locker (likewise coupons and redeemer) are usually the same
// repository seen through two interfaces.
func NewCheckoutService(
	pool TxBeginner,
	carts CartRepositoryInterface,
	products ProductReader,
	locker ProductLocker,
	coupons CouponReader,
	redeemer CouponRedeemer,
	orders OrderWriter,
	shipping ShippingMethodReader,
	validator *CouponValidator,
	paymentWindow time.Duration,
) *CheckoutService {
	return &CheckoutService{
		pool:          pool,
		carts:         carts,
		products:      products,
		locker:        locker,
		coupons:       coupons,
		redeemer:      redeemer,
		orders:        orders,
		shipping:      shipping,
		validator:     validator,
		paymentWindow: paymentWindow,
		now:           time.Now,
	}
}

// ListShippingMethods returns the delivery options offered at checkout.
func (s *CheckoutService) ListShippingMethods(ctx context.Context) ([]model.ShippingMethod, error) {
	return s.shipping.ListActive(ctx)
}

// newOrderNumber builds a human-readable unique order number: the date prefix
// plus six characters of a random UUID.
func (s *CheckoutService) newOrderNumber() string {
	random := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:6]
	return s.now().Format("20060102") + "-" + random
}

// CreateOrder converts the user's cart into a pending order. Every line is
// re-checked against live stock under row locks, prices are snapshotted fresh
// from the products, and a coupon redemption is recorded atomically with the
// order. The cart itself is kept; it is cleared on payment success.
func (s *CheckoutService) CreateOrder(ctx context.Context, userID int64, req *model.CheckoutRequest) (*model.Order, error) {
	cart, err := s.carts.GetByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if cart == nil {
		return nil, ErrCartEmpty
	}

	items, err := s.carts.ListItems(ctx, cart.ID)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, ErrCartEmpty
	}

	method, err := s.shipping.GetActiveByID(ctx, req.ShippingMethodID)
	if err != nil {
		return nil, err
	}
	if method.Price < 0 {
		return nil, fmt.Errorf("shipping method %s: %w", method.Name, ErrNegativePrice)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin checkout transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// Lock products in a stable order to avoid deadlocks between
	// concurrent checkouts sharing products.
	sort.Slice(items, func(i, j int) bool { return items[i].ProductID < items[j].ProductID })

	var subtotal int64
	orderItems := make([]model.OrderItem, 0, len(items))
	for i := range items {
		line := &items[i]
		product, err := s.locker.GetByIDForUpdate(ctx, tx, line.ProductID)
		if err != nil {
			return nil, err
		}
		if !product.Available(line.Quantity) {
			return nil, fmt.Errorf("%s: %w", product.Name, ErrProductUnavailable)
		}
		if product.Price < 0 {
			return nil, fmt.Errorf("%s: %w", product.Name, ErrNegativePrice)
		}
		subtotal += product.Price * int64(line.Quantity)
		orderItems = append(orderItems, model.OrderItem{
			ProductID:   product.ID,
			Quantity:    line.Quantity,
			Price:       product.Price,
			ProductName: product.Name,
			ProductSKU:  product.SKU,
		})
	}

	var discount int64
	var coupon *model.Coupon
	if cart.CouponID != nil {
		coupon, err = s.redeemer.GetByIDForUpdate(ctx, tx, *cart.CouponID)
		if err != nil {
			return nil, err
		}
		if err := s.validator.Validate(ctx, coupon, &userID, subtotal); err != nil {
			return nil, err
		}
		discount = pricing.Discount(coupon, subtotal)
	}

	order := &model.Order{
		UserID: userID,
		Status: model.OrderPending,

		AddressProvince:   req.AddressProvince,
		AddressCity:       req.AddressCity,
		AddressFull:       req.AddressFull,
		AddressPostalCode: req.AddressPostalCode,
		ReceiverName:      req.ReceiverName,
		ReceiverPhone:     req.ReceiverPhone,

		Subtotal:       subtotal,
		ShippingCost:   method.Price,
		DiscountAmount: discount,
		Total:          pricing.Total(subtotal, discount) + method.Price,

		ShippingMethod: method.Name,
		Note:           req.Note,
	}
	if coupon != nil {
		order.CouponCode = coupon.Code
	}

	for attempt := 0; ; attempt++ {
		order.OrderNumber = s.newOrderNumber()
		err = s.orders.Insert(ctx, tx, order)
		if err == nil {
			break
		}
		if !errors.Is(err, ErrOrderNumberTaken) || attempt >= orderNumberRetries {
			return nil, err
		}
	}

	for i := range orderItems {
		orderItems[i].OrderID = order.ID
		if err := s.orders.InsertItem(ctx, tx, &orderItems[i]); err != nil {
			return nil, err
		}
	}

	if coupon != nil {
		usage := &model.CouponUsage{
			CouponID:       coupon.ID,
			UserID:         userID,
			OrderID:        &order.ID,
			DiscountAmount: discount,
		}
		if err := s.redeemer.InsertUsage(ctx, tx, usage); err != nil {
			return nil, err
		}
		if err := s.redeemer.IncrementUsedCount(ctx, tx, coupon.ID); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit checkout transaction: %w", err)
	}

	log.Info().
		Int64("order_id", order.ID).
		Str("order_number", order.OrderNumber).
		Int64("user_id", userID).
		Int64("total", order.Total).
		Msg("order created")
	return order, nil
}

// GetOrder returns one of the user's orders with its lines and derived
// payment-window fields. Another user's order surfaces as not found.
func (s *CheckoutService) GetOrder(ctx context.Context, userID, orderID int64) (*model.OrderDetail, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, ErrOrderNotFound
	}

	items, err := s.orders.ListItems(ctx, orderID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	return &model.OrderDetail{
		Order:                order,
		Items:                items,
		PaymentTimeRemaining: order.PaymentTimeRemaining(now, s.paymentWindow),
		CanPay:               order.CanPay(now, s.paymentWindow),
		CanCancel:            order.CanCancel(),
	}, nil
}

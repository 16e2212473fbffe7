package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/davazhoo/storefront/internal/gateway"
	"github.com/davazhoo/storefront/internal/model"
	"github.com/davazhoo/storefront/pkg/database"
)

// OrderLifecycle defines the order persistence needed by payment,
// cancellation and the expiry sweeper.
type OrderLifecycle interface {
	GetByID(ctx context.Context, id int64) (*model.Order, error)
	GetByIDForUpdate(ctx context.Context, tx database.TxQuerier, id int64) (*model.Order, error)
	MarkPaid(ctx context.Context, tx database.TxQuerier, id int64, paidAt time.Time) (bool, error)
	UpdateStatusIf(ctx context.Context, id int64, expected, next model.OrderStatus, adminNote string) (bool, error)
	UpdateStatusIfTx(ctx context.Context, tx database.TxQuerier, id int64, expected, next model.OrderStatus, adminNote string) (bool, error)
	SetTrackingCode(ctx context.Context, id int64, code string) error
	ListItems(ctx context.Context, orderID int64) ([]model.OrderItem, error)
	ListItemsTx(ctx context.Context, tx database.TxQuerier, orderID int64) ([]model.OrderItem, error)
	ListExpiredPending(ctx context.Context, cutoff time.Time) ([]model.Order, error)
}

// PaymentStore defines the payment-transaction persistence.
type PaymentStore interface {
	Insert(ctx context.Context, p *model.PaymentTransaction) error
	SetAuthority(ctx context.Context, id int64, authority string) error
	GetByAuthority(ctx context.Context, authority string) (*model.PaymentTransaction, error)
	UpdateStatus(ctx context.Context, id int64, status model.PaymentStatus) error
	MarkSuccess(ctx context.Context, tx database.TxQuerier, id int64, refID, cardNumber string) error
}

// StockAdjuster defines the locked stock movements around payment and
// cancellation.
type StockAdjuster interface {
	GetByIDForUpdate(ctx context.Context, tx database.TxQuerier, id int64) (*model.Product, error)
	DecrementStock(ctx context.Context, tx database.TxQuerier, id int64, quantity int) error
	RestoreStock(ctx context.Context, tx database.TxQuerier, id int64, quantity int) error
}

// CartPurger clears a user's cart inside the payment-confirmation transaction.
type CartPurger interface {
	DeleteByUser(ctx context.Context, tx database.TxQuerier, userID int64) error
}

// PaymentGateway is the external payment provider.
type PaymentGateway interface {
	CreatePayment(ctx context.Context, req gateway.PaymentRequest) (*gateway.PaymentIntent, error)
	Verify(ctx context.Context, authority string, amount int64) (*gateway.VerifyResult, error)
}

// StatusNotifier tells the customer about order status changes. Delivery is
// best-effort and never blocks or rolls back a state change.
type StatusNotifier interface {
	NotifyStatusChange(ctx context.Context, phone, customerName, itemsSummary, oldStatus, newStatus string) error
}

const gatewayName = "zarinpal"

// CallbackResult is the outcome of a successful payment callback. Duplicate
// marks a redelivered callback whose side effects already ran exactly once.
type CallbackResult struct {
	OrderID     int64
	OrderNumber string
	RefID       string
	Duplicate   bool
}

// PaymentService orchestrates the order lifecycle after checkout: gateway
// payment attempts, callback confirmation, cancellation with stock restore,
// admin status advancement and expiry sweeping. The paid transition is a
// database compare-and-swap, so duplicate callbacks, user cancellation and
// the sweeper all race to exactly one winner.
type PaymentService struct {
	pool     TxBeginner
	orders   OrderLifecycle
	payments PaymentStore
	stock    StockAdjuster
	carts    CartPurger
	gateway  PaymentGateway
	notifier StatusNotifier

	callbackURL   string
	paymentWindow time.Duration
	now           func() time.Time
}

// NewPaymentService creates a PaymentService with the given collaborators.
// notifier may be nil to disable customer notifications.
func NewPaymentService(
	pool TxBeginner,
	orders OrderLifecycle,
	payments PaymentStore,
	stock StockAdjuster,
	carts CartPurger,
	gw PaymentGateway,
	notifier StatusNotifier,
	callbackURL string,
	paymentWindow time.Duration,
) *PaymentService {
	return &PaymentService{
		pool:          pool,
		orders:        orders,
		payments:      payments,
		stock:         stock,
		carts:         carts,
		gateway:       gw,
		notifier:      notifier,
		callbackURL:   callbackURL,
		paymentWindow: paymentWindow,
		now:           time.Now,
	}
}

// Initiate opens a payment attempt for a pending order within its payment
// window and returns the gateway redirect. Each attempt gets its own
// transaction row; a failed attempt can be retried while the window is open.
func (s *PaymentService) Initiate(ctx context.Context, userID, orderID int64) (*gateway.PaymentIntent, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, ErrOrderNotFound
	}
	if !order.CanPay(s.now(), s.paymentWindow) {
		return nil, ErrOrderNotPayable
	}

	p := &model.PaymentTransaction{
		OrderID: order.ID,
		Amount:  order.Total,
		Status:  model.PaymentPending,
		Gateway: gatewayName,
	}
	if err := s.payments.Insert(ctx, p); err != nil {
		return nil, err
	}

	intent, err := s.gateway.CreatePayment(ctx, gateway.PaymentRequest{
		Amount:      order.Total,
		Description: "Order " + order.OrderNumber,
		CallbackURL: s.callbackURL,
		Mobile:      order.ReceiverPhone,
		OrderNumber: order.OrderNumber,
	})
	if err != nil {
		if updErr := s.payments.UpdateStatus(ctx, p.ID, model.PaymentFailed); updErr != nil {
			log.Error().Err(updErr).Int64("transaction_id", p.ID).Msg("failed to mark transaction failed")
		}
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}

	if err := s.payments.SetAuthority(ctx, p.ID, intent.Authority); err != nil {
		return nil, err
	}

	log.Info().
		Int64("order_id", order.ID).
		Str("order_number", order.OrderNumber).
		Str("authority", intent.Authority).
		Msg("payment initiated")
	return intent, nil
}

// HandleCallback processes the gateway's return redirect. A non-OK status
// cancels the attempt and leaves the order pending. An OK status is verified
// with the gateway, then confirmed in one transaction: the pending-to-paid
// compare-and-swap, the settlement record, stock decrements under product row
// locks, and clearing the buyer's cart. Redelivered callbacks come back as
// Duplicate without repeating any side effect.
func (s *PaymentService) HandleCallback(ctx context.Context, authority string, callbackOK bool) (*CallbackResult, error) {
	p, err := s.payments.GetByAuthority(ctx, authority)
	if err != nil {
		return nil, err
	}
	order, err := s.orders.GetByID(ctx, p.OrderID)
	if err != nil {
		return nil, err
	}

	if !callbackOK {
		if p.Status == model.PaymentPending {
			if err := s.payments.UpdateStatus(ctx, p.ID, model.PaymentCanceled); err != nil {
				return nil, err
			}
		}
		log.Info().
			Int64("order_id", order.ID).
			Str("authority", authority).
			Msg("payment canceled at gateway")
		return nil, ErrPaymentCanceled
	}

	// Redelivery of an already-settled callback: answer success, touch nothing.
	if p.Status == model.PaymentSuccess {
		log.Info().
			Int64("order_id", order.ID).
			Str("order_number", order.OrderNumber).
			Str("authority", authority).
			Msg("duplicate payment callback ignored")
		return &CallbackResult{
			OrderID:     order.ID,
			OrderNumber: order.OrderNumber,
			RefID:       p.RefID,
			Duplicate:   true,
		}, nil
	}

	// The sweeper or the user may have finalized the order while the
	// customer sat on the gateway page.
	if order.Status == model.OrderCanceled || order.Status == model.OrderReturned {
		if err := s.payments.UpdateStatus(ctx, p.ID, model.PaymentFailed); err != nil {
			return nil, err
		}
		return nil, ErrOrderFinalized
	}

	vr, err := s.gateway.Verify(ctx, authority, p.Amount)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	if !vr.Verified {
		if err := s.payments.UpdateStatus(ctx, p.ID, model.PaymentFailed); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s (code %d)", ErrPaymentVerification, vr.Message, vr.Code)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin payment transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	paid, err := s.orders.MarkPaid(ctx, tx, order.ID, s.now())
	if err != nil {
		return nil, err
	}
	if !paid {
		// Lost the compare-and-swap. Whoever won decided the outcome.
		current, err := s.orders.GetByID(ctx, order.ID)
		if err != nil {
			return nil, err
		}
		if current.Status == model.OrderCanceled || current.Status == model.OrderReturned {
			return nil, ErrOrderFinalized
		}
		log.Info().
			Int64("order_id", order.ID).
			Str("order_number", order.OrderNumber).
			Str("authority", authority).
			Msg("duplicate payment callback ignored")
		return &CallbackResult{
			OrderID:     order.ID,
			OrderNumber: order.OrderNumber,
			RefID:       vr.RefID,
			Duplicate:   true,
		}, nil
	}

	if err := s.payments.MarkSuccess(ctx, tx, p.ID, vr.RefID, vr.CardPan); err != nil {
		return nil, err
	}

	items, err := s.orders.ListItemsTx(ctx, tx, order.ID)
	if err != nil {
		return nil, err
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ProductID < items[j].ProductID })
	for i := range items {
		if _, err := s.stock.GetByIDForUpdate(ctx, tx, items[i].ProductID); err != nil {
			return nil, err
		}
		if err := s.stock.DecrementStock(ctx, tx, items[i].ProductID, items[i].Quantity); err != nil {
			return nil, err
		}
	}

	if err := s.carts.DeleteByUser(ctx, tx, order.UserID); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit payment transaction: %w", err)
	}

	log.Info().
		Int64("order_id", order.ID).
		Str("order_number", order.OrderNumber).
		Str("ref_id", vr.RefID).
		Bool("already_verified", vr.AlreadyVerified).
		Msg("payment confirmed")

	s.notifyStatusChange(order, items, model.OrderPending, model.OrderPaid)

	return &CallbackResult{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		RefID:       vr.RefID,
	}, nil
}

// Cancel lets the customer cancel their own pending or paid order. A paid
// cancellation restores stock and sales counters.
func (s *PaymentService) Cancel(ctx context.Context, userID, orderID int64) error {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return err
	}
	if order.UserID != userID {
		return ErrOrderNotFound
	}
	return s.cancelOrder(ctx, orderID, "canceled by customer", false)
}

// cancelOrder moves an order to canceled in one transaction, restoring stock
// when the order had been paid. With onlyPending set (the sweeper) a paid
// order is left alone instead of canceled.
func (s *PaymentService) cancelOrder(ctx context.Context, orderID int64, note string, onlyPending bool) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin cancel transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	order, err := s.orders.GetByIDForUpdate(ctx, tx, orderID)
	if err != nil {
		return err
	}
	if !order.CanCancel() {
		if order.Status == model.OrderCanceled {
			return nil
		}
		return ErrOrderNotCancelable
	}
	if onlyPending && order.Status != model.OrderPending {
		return ErrOrderNotCancelable
	}

	swapped, err := s.orders.UpdateStatusIfTx(ctx, tx, orderID, order.Status, model.OrderCanceled, note)
	if err != nil {
		return err
	}
	if !swapped {
		// Row is locked; the guard can only miss if something changed the
		// status outside a transaction. Treat as lost race.
		return ErrOrderNotCancelable
	}

	var items []model.OrderItem
	if order.Status == model.OrderPaid {
		items, err = s.orders.ListItemsTx(ctx, tx, orderID)
		if err != nil {
			return err
		}
		sort.Slice(items, func(i, j int) bool { return items[i].ProductID < items[j].ProductID })
		for i := range items {
			if _, err := s.stock.GetByIDForUpdate(ctx, tx, items[i].ProductID); err != nil {
				return err
			}
			if err := s.stock.RestoreStock(ctx, tx, items[i].ProductID, items[i].Quantity); err != nil {
				return err
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit cancel transaction: %w", err)
	}

	log.Info().
		Int64("order_id", orderID).
		Str("order_number", order.OrderNumber).
		Str("from", string(order.Status)).
		Msg("order canceled")

	s.notifyStatusChange(order, items, order.Status, model.OrderCanceled)
	return nil
}

// AdvanceStatus moves an order along its lifecycle on behalf of an operator.
// Transitions only go forward or to a terminal state; canceled routes through
// the stock-restoring cancellation path and returned restores stock as well.
func (s *PaymentService) AdvanceStatus(ctx context.Context, orderID int64, req *model.UpdateStatusRequest) (*model.Order, error) {
	next := model.OrderStatus(req.Status)
	if !next.Valid() {
		return nil, ErrInvalidTransition
	}

	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if next == model.OrderCanceled {
		if err := s.cancelOrder(ctx, orderID, "canceled by admin", false); err != nil {
			return nil, err
		}
		return s.orders.GetByID(ctx, orderID)
	}

	if !order.CanTransitionTo(next) {
		return nil, ErrInvalidTransition
	}

	if next == model.OrderReturned {
		if err := s.returnOrder(ctx, orderID); err != nil {
			return nil, err
		}
	} else {
		swapped, err := s.orders.UpdateStatusIf(ctx, orderID, order.Status, next, "")
		if err != nil {
			return nil, err
		}
		if !swapped {
			return nil, ErrInvalidTransition
		}
	}

	if req.TrackingCode != "" && next == model.OrderShipped {
		if err := s.orders.SetTrackingCode(ctx, orderID, req.TrackingCode); err != nil {
			return nil, err
		}
	}

	s.notifyStatusChange(order, nil, order.Status, next)
	return s.orders.GetByID(ctx, orderID)
}

// returnOrder marks a delivered order returned and puts its stock back.
func (s *PaymentService) returnOrder(ctx context.Context, orderID int64) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin return transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	order, err := s.orders.GetByIDForUpdate(ctx, tx, orderID)
	if err != nil {
		return err
	}
	if order.Status != model.OrderDelivered {
		return ErrInvalidTransition
	}

	swapped, err := s.orders.UpdateStatusIfTx(ctx, tx, orderID, model.OrderDelivered, model.OrderReturned, "")
	if err != nil {
		return err
	}
	if !swapped {
		return ErrInvalidTransition
	}

	items, err := s.orders.ListItemsTx(ctx, tx, orderID)
	if err != nil {
		return err
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ProductID < items[j].ProductID })
	for i := range items {
		if _, err := s.stock.GetByIDForUpdate(ctx, tx, items[i].ProductID); err != nil {
			return err
		}
		if err := s.stock.RestoreStock(ctx, tx, items[i].ProductID, items[i].Quantity); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit return transaction: %w", err)
	}
	return nil
}

// CancelExpired cancels pending orders whose payment window has closed and
// returns how many were canceled. Individual failures are logged and skipped
// so one bad order never stalls the sweep.
func (s *PaymentService) CancelExpired(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.paymentWindow)
	orders, err := s.orders.ListExpiredPending(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	canceled := 0
	for i := range orders {
		err := s.cancelOrder(ctx, orders[i].ID, "payment window expired", true)
		if err != nil {
			log.Warn().
				Err(err).
				Int64("order_id", orders[i].ID).
				Str("order_number", orders[i].OrderNumber).
				Msg("failed to cancel expired order")
			continue
		}
		canceled++
	}
	return canceled, nil
}

// notifyStatusChange fires the customer SMS without blocking the caller.
// items may be nil; the summary is then fetched best-effort.
func (s *PaymentService) notifyStatusChange(order *model.Order, items []model.OrderItem, from, to model.OrderStatus) {
	if s.notifier == nil || order.ReceiverPhone == "" {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if items == nil {
			var err error
			items, err = s.orders.ListItems(ctx, order.ID)
			if err != nil {
				log.Warn().Err(err).Int64("order_id", order.ID).Msg("failed to load items for notification")
			}
		}

		err := s.notifier.NotifyStatusChange(ctx, order.ReceiverPhone, order.ReceiverName,
			itemsSummary(items), from.Label(), to.Label())
		if err != nil {
			log.Warn().
				Err(err).
				Int64("order_id", order.ID).
				Str("to", string(to)).
				Msg("failed to send status notification")
		}
	}()
}

// itemsSummary names up to three products for the notification text.
func itemsSummary(items []model.OrderItem) string {
	if len(items) == 0 {
		return "your items"
	}
	names := make([]string, 0, 3)
	for i := range items {
		if len(names) == 3 {
			break
		}
		names = append(names, items[i].ProductName)
	}
	summary := strings.Join(names, ", ")
	if rest := len(items) - len(names); rest > 0 {
		summary = fmt.Sprintf("%s and %d more", summary, rest)
	}
	return summary
}

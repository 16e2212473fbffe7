package service

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/davazhoo/storefront/internal/gateway"
	"github.com/davazhoo/storefront/internal/model"
	"github.com/davazhoo/storefront/pkg/database"
)

func int64Ptr(i int64) *int64 { return &i }
func intPtr(i int) *int       { return &i }

// mockTx is a mock implementation of pgx.Tx for testing transactions.
type mockTx struct {
	commitFn   func(ctx context.Context) error
	rollbackFn func(ctx context.Context) error
}

func (m *mockTx) Begin(ctx context.Context) (pgx.Tx, error) {
	return nil, errors.New("nested transactions not supported")
}

func (m *mockTx) Commit(ctx context.Context) error {
	if m.commitFn != nil {
		return m.commitFn(ctx)
	}
	return nil
}

func (m *mockTx) Rollback(ctx context.Context) error {
	if m.rollbackFn != nil {
		return m.rollbackFn(ctx)
	}
	return nil
}

func (m *mockTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, nil
}

func (m *mockTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	return nil
}

func (m *mockTx) LargeObjects() pgx.LargeObjects {
	return pgx.LargeObjects{}
}

func (m *mockTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, nil
}

func (m *mockTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}

func (m *mockTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}

func (m *mockTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return nil
}

func (m *mockTx) Conn() *pgx.Conn {
	return nil
}

// mockTxBeginner is a mock implementation of TxBeginner.
type mockTxBeginner struct {
	beginFn func(ctx context.Context) (pgx.Tx, error)
}

func (m *mockTxBeginner) Begin(ctx context.Context) (pgx.Tx, error) {
	if m.beginFn != nil {
		return m.beginFn(ctx)
	}
	return &mockTx{}, nil
}

// mockCartRepository is a mock implementation of CartRepositoryInterface.
type mockCartRepository struct {
	getByUserFn          func(ctx context.Context, userID int64) (*model.Cart, error)
	getBySessionFn       func(ctx context.Context, sessionKey string) (*model.Cart, error)
	createFn             func(ctx context.Context, cart *model.Cart) error
	deleteFn             func(ctx context.Context, id int64) error
	deleteByUserFn       func(ctx context.Context, tx database.TxQuerier, userID int64) error
	setCouponFn          func(ctx context.Context, cartID int64, couponID *int64) error
	listItemsFn          func(ctx context.Context, cartID int64) ([]model.CartItem, error)
	getItemFn            func(ctx context.Context, cartID, productID int64) (*model.CartItem, error)
	insertItemFn         func(ctx context.Context, item *model.CartItem) error
	updateItemQuantityFn func(ctx context.Context, itemID int64, quantity int) error
	deleteItemFn         func(ctx context.Context, cartID, productID int64) error
	deleteItemsFn        func(ctx context.Context, cartID int64) error
	touchFn              func(ctx context.Context, cartID int64) error
}

func (m *mockCartRepository) GetByUser(ctx context.Context, userID int64) (*model.Cart, error) {
	if m.getByUserFn != nil {
		return m.getByUserFn(ctx, userID)
	}
	return nil, nil
}

func (m *mockCartRepository) GetBySession(ctx context.Context, sessionKey string) (*model.Cart, error) {
	if m.getBySessionFn != nil {
		return m.getBySessionFn(ctx, sessionKey)
	}
	return nil, nil
}

func (m *mockCartRepository) Create(ctx context.Context, cart *model.Cart) error {
	if m.createFn != nil {
		return m.createFn(ctx, cart)
	}
	cart.ID = 1
	return nil
}

func (m *mockCartRepository) Delete(ctx context.Context, id int64) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

func (m *mockCartRepository) DeleteByUser(ctx context.Context, tx database.TxQuerier, userID int64) error {
	if m.deleteByUserFn != nil {
		return m.deleteByUserFn(ctx, tx, userID)
	}
	return nil
}

func (m *mockCartRepository) SetCoupon(ctx context.Context, cartID int64, couponID *int64) error {
	if m.setCouponFn != nil {
		return m.setCouponFn(ctx, cartID, couponID)
	}
	return nil
}

func (m *mockCartRepository) ListItems(ctx context.Context, cartID int64) ([]model.CartItem, error) {
	if m.listItemsFn != nil {
		return m.listItemsFn(ctx, cartID)
	}
	return []model.CartItem{}, nil
}

func (m *mockCartRepository) GetItem(ctx context.Context, cartID, productID int64) (*model.CartItem, error) {
	if m.getItemFn != nil {
		return m.getItemFn(ctx, cartID, productID)
	}
	return nil, nil
}

func (m *mockCartRepository) InsertItem(ctx context.Context, item *model.CartItem) error {
	if m.insertItemFn != nil {
		return m.insertItemFn(ctx, item)
	}
	return nil
}

func (m *mockCartRepository) UpdateItemQuantity(ctx context.Context, itemID int64, quantity int) error {
	if m.updateItemQuantityFn != nil {
		return m.updateItemQuantityFn(ctx, itemID, quantity)
	}
	return nil
}

func (m *mockCartRepository) DeleteItem(ctx context.Context, cartID, productID int64) error {
	if m.deleteItemFn != nil {
		return m.deleteItemFn(ctx, cartID, productID)
	}
	return nil
}

func (m *mockCartRepository) DeleteItems(ctx context.Context, cartID int64) error {
	if m.deleteItemsFn != nil {
		return m.deleteItemsFn(ctx, cartID)
	}
	return nil
}

func (m *mockCartRepository) Touch(ctx context.Context, cartID int64) error {
	if m.touchFn != nil {
		return m.touchFn(ctx, cartID)
	}
	return nil
}

// mockProductRepository mocks ProductReader, ProductLocker and StockAdjuster.
type mockProductRepository struct {
	getByIDFn          func(ctx context.Context, id int64) (*model.Product, error)
	getByIDForUpdateFn func(ctx context.Context, tx database.TxQuerier, id int64) (*model.Product, error)
	decrementStockFn   func(ctx context.Context, tx database.TxQuerier, id int64, quantity int) error
	restoreStockFn     func(ctx context.Context, tx database.TxQuerier, id int64, quantity int) error
}

func (m *mockProductRepository) GetByID(ctx context.Context, id int64) (*model.Product, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, ErrProductNotFound
}

func (m *mockProductRepository) GetByIDForUpdate(ctx context.Context, tx database.TxQuerier, id int64) (*model.Product, error) {
	if m.getByIDForUpdateFn != nil {
		return m.getByIDForUpdateFn(ctx, tx, id)
	}
	return nil, ErrProductNotFound
}

func (m *mockProductRepository) DecrementStock(ctx context.Context, tx database.TxQuerier, id int64, quantity int) error {
	if m.decrementStockFn != nil {
		return m.decrementStockFn(ctx, tx, id, quantity)
	}
	return nil
}

func (m *mockProductRepository) RestoreStock(ctx context.Context, tx database.TxQuerier, id int64, quantity int) error {
	if m.restoreStockFn != nil {
		return m.restoreStockFn(ctx, tx, id, quantity)
	}
	return nil
}

// mockCouponRepository mocks CouponReader, CouponRedeemer and CouponUsageCounter.
type mockCouponRepository struct {
	getByCodeFn          func(ctx context.Context, code string) (*model.Coupon, error)
	getByIDFn            func(ctx context.Context, id int64) (*model.Coupon, error)
	getByIDForUpdateFn   func(ctx context.Context, tx database.TxQuerier, id int64) (*model.Coupon, error)
	countUsageByUserFn   func(ctx context.Context, couponID, userID int64) (int, error)
	insertUsageFn        func(ctx context.Context, tx database.TxQuerier, usage *model.CouponUsage) error
	incrementUsedCountFn func(ctx context.Context, tx database.TxQuerier, id int64) error
}

func (m *mockCouponRepository) GetByCode(ctx context.Context, code string) (*model.Coupon, error) {
	if m.getByCodeFn != nil {
		return m.getByCodeFn(ctx, code)
	}
	return nil, ErrCouponNotFound
}

func (m *mockCouponRepository) GetByID(ctx context.Context, id int64) (*model.Coupon, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, ErrCouponNotFound
}

func (m *mockCouponRepository) GetByIDForUpdate(ctx context.Context, tx database.TxQuerier, id int64) (*model.Coupon, error) {
	if m.getByIDForUpdateFn != nil {
		return m.getByIDForUpdateFn(ctx, tx, id)
	}
	return nil, ErrCouponNotFound
}

func (m *mockCouponRepository) CountUsageByUser(ctx context.Context, couponID, userID int64) (int, error) {
	if m.countUsageByUserFn != nil {
		return m.countUsageByUserFn(ctx, couponID, userID)
	}
	return 0, nil
}

func (m *mockCouponRepository) InsertUsage(ctx context.Context, tx database.TxQuerier, usage *model.CouponUsage) error {
	if m.insertUsageFn != nil {
		return m.insertUsageFn(ctx, tx, usage)
	}
	return nil
}

func (m *mockCouponRepository) IncrementUsedCount(ctx context.Context, tx database.TxQuerier, id int64) error {
	if m.incrementUsedCountFn != nil {
		return m.incrementUsedCountFn(ctx, tx, id)
	}
	return nil
}

// mockOrderRepository mocks OrderWriter and OrderLifecycle.
type mockOrderRepository struct {
	insertFn             func(ctx context.Context, tx database.TxQuerier, o *model.Order) error
	insertItemFn         func(ctx context.Context, tx database.TxQuerier, item *model.OrderItem) error
	getByIDFn            func(ctx context.Context, id int64) (*model.Order, error)
	getByIDForUpdateFn   func(ctx context.Context, tx database.TxQuerier, id int64) (*model.Order, error)
	markPaidFn           func(ctx context.Context, tx database.TxQuerier, id int64, paidAt time.Time) (bool, error)
	updateStatusIfFn     func(ctx context.Context, id int64, expected, next model.OrderStatus, adminNote string) (bool, error)
	updateStatusIfTxFn   func(ctx context.Context, tx database.TxQuerier, id int64, expected, next model.OrderStatus, adminNote string) (bool, error)
	setTrackingCodeFn    func(ctx context.Context, id int64, code string) error
	listItemsFn          func(ctx context.Context, orderID int64) ([]model.OrderItem, error)
	listItemsTxFn        func(ctx context.Context, tx database.TxQuerier, orderID int64) ([]model.OrderItem, error)
	listExpiredPendingFn func(ctx context.Context, cutoff time.Time) ([]model.Order, error)
}

func (m *mockOrderRepository) Insert(ctx context.Context, tx database.TxQuerier, o *model.Order) error {
	if m.insertFn != nil {
		return m.insertFn(ctx, tx, o)
	}
	o.ID = 1
	return nil
}

func (m *mockOrderRepository) InsertItem(ctx context.Context, tx database.TxQuerier, item *model.OrderItem) error {
	if m.insertItemFn != nil {
		return m.insertItemFn(ctx, tx, item)
	}
	return nil
}

func (m *mockOrderRepository) GetByID(ctx context.Context, id int64) (*model.Order, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, ErrOrderNotFound
}

func (m *mockOrderRepository) GetByIDForUpdate(ctx context.Context, tx database.TxQuerier, id int64) (*model.Order, error) {
	if m.getByIDForUpdateFn != nil {
		return m.getByIDForUpdateFn(ctx, tx, id)
	}
	return nil, ErrOrderNotFound
}

func (m *mockOrderRepository) MarkPaid(ctx context.Context, tx database.TxQuerier, id int64, paidAt time.Time) (bool, error) {
	if m.markPaidFn != nil {
		return m.markPaidFn(ctx, tx, id, paidAt)
	}
	return true, nil
}

func (m *mockOrderRepository) UpdateStatusIf(ctx context.Context, id int64, expected, next model.OrderStatus, adminNote string) (bool, error) {
	if m.updateStatusIfFn != nil {
		return m.updateStatusIfFn(ctx, id, expected, next, adminNote)
	}
	return true, nil
}

func (m *mockOrderRepository) UpdateStatusIfTx(ctx context.Context, tx database.TxQuerier, id int64, expected, next model.OrderStatus, adminNote string) (bool, error) {
	if m.updateStatusIfTxFn != nil {
		return m.updateStatusIfTxFn(ctx, tx, id, expected, next, adminNote)
	}
	return true, nil
}

func (m *mockOrderRepository) SetTrackingCode(ctx context.Context, id int64, code string) error {
	if m.setTrackingCodeFn != nil {
		return m.setTrackingCodeFn(ctx, id, code)
	}
	return nil
}

func (m *mockOrderRepository) ListItems(ctx context.Context, orderID int64) ([]model.OrderItem, error) {
	if m.listItemsFn != nil {
		return m.listItemsFn(ctx, orderID)
	}
	return []model.OrderItem{}, nil
}

func (m *mockOrderRepository) ListItemsTx(ctx context.Context, tx database.TxQuerier, orderID int64) ([]model.OrderItem, error) {
	if m.listItemsTxFn != nil {
		return m.listItemsTxFn(ctx, tx, orderID)
	}
	return []model.OrderItem{}, nil
}

func (m *mockOrderRepository) ListExpiredPending(ctx context.Context, cutoff time.Time) ([]model.Order, error) {
	if m.listExpiredPendingFn != nil {
		return m.listExpiredPendingFn(ctx, cutoff)
	}
	return []model.Order{}, nil
}

// mockPaymentStore is a mock implementation of PaymentStore.
type mockPaymentStore struct {
	insertFn         func(ctx context.Context, p *model.PaymentTransaction) error
	setAuthorityFn   func(ctx context.Context, id int64, authority string) error
	getByAuthorityFn func(ctx context.Context, authority string) (*model.PaymentTransaction, error)
	updateStatusFn   func(ctx context.Context, id int64, status model.PaymentStatus) error
	markSuccessFn    func(ctx context.Context, tx database.TxQuerier, id int64, refID, cardNumber string) error
}

func (m *mockPaymentStore) Insert(ctx context.Context, p *model.PaymentTransaction) error {
	if m.insertFn != nil {
		return m.insertFn(ctx, p)
	}
	p.ID = 1
	return nil
}

func (m *mockPaymentStore) SetAuthority(ctx context.Context, id int64, authority string) error {
	if m.setAuthorityFn != nil {
		return m.setAuthorityFn(ctx, id, authority)
	}
	return nil
}

func (m *mockPaymentStore) GetByAuthority(ctx context.Context, authority string) (*model.PaymentTransaction, error) {
	if m.getByAuthorityFn != nil {
		return m.getByAuthorityFn(ctx, authority)
	}
	return nil, ErrPaymentNotFound
}

func (m *mockPaymentStore) UpdateStatus(ctx context.Context, id int64, status model.PaymentStatus) error {
	if m.updateStatusFn != nil {
		return m.updateStatusFn(ctx, id, status)
	}
	return nil
}

func (m *mockPaymentStore) MarkSuccess(ctx context.Context, tx database.TxQuerier, id int64, refID, cardNumber string) error {
	if m.markSuccessFn != nil {
		return m.markSuccessFn(ctx, tx, id, refID, cardNumber)
	}
	return nil
}

// mockShippingRepository is a mock implementation of ShippingMethodReader.
type mockShippingRepository struct {
	listActiveFn     func(ctx context.Context) ([]model.ShippingMethod, error)
	getActiveByIDFn  func(ctx context.Context, id int64) (*model.ShippingMethod, error)
	defaultMethodFee int64
}

func (m *mockShippingRepository) ListActive(ctx context.Context) ([]model.ShippingMethod, error) {
	if m.listActiveFn != nil {
		return m.listActiveFn(ctx)
	}
	return []model.ShippingMethod{{ID: 1, Name: "post", Price: m.defaultMethodFee, IsActive: true}}, nil
}

func (m *mockShippingRepository) GetActiveByID(ctx context.Context, id int64) (*model.ShippingMethod, error) {
	if m.getActiveByIDFn != nil {
		return m.getActiveByIDFn(ctx, id)
	}
	return &model.ShippingMethod{ID: id, Name: "post", Price: m.defaultMethodFee, IsActive: true}, nil
}

// mockGateway is a mock implementation of PaymentGateway.
type mockGateway struct {
	createPaymentFn func(ctx context.Context, req gateway.PaymentRequest) (*gateway.PaymentIntent, error)
	verifyFn        func(ctx context.Context, authority string, amount int64) (*gateway.VerifyResult, error)
}

func (m *mockGateway) CreatePayment(ctx context.Context, req gateway.PaymentRequest) (*gateway.PaymentIntent, error) {
	if m.createPaymentFn != nil {
		return m.createPaymentFn(ctx, req)
	}
	return &gateway.PaymentIntent{Authority: "A0001", PaymentURL: "https://pay.example/A0001"}, nil
}

func (m *mockGateway) Verify(ctx context.Context, authority string, amount int64) (*gateway.VerifyResult, error) {
	if m.verifyFn != nil {
		return m.verifyFn(ctx, authority, amount)
	}
	return &gateway.VerifyResult{Verified: true, RefID: "12345", Code: 100}, nil
}

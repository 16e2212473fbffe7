package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davazhoo/storefront/internal/model"
	"github.com/davazhoo/storefront/internal/service"
	appvalidator "github.com/davazhoo/storefront/internal/validator"
)

// mockCheckoutService is a mock implementation of CheckoutServiceInterface.
type mockCheckoutService struct {
	listShippingMethodsFn func(ctx context.Context) ([]model.ShippingMethod, error)
	createOrderFn         func(ctx context.Context, userID int64, req *model.CheckoutRequest) (*model.Order, error)
	getOrderFn            func(ctx context.Context, userID, orderID int64) (*model.OrderDetail, error)
}

func (m *mockCheckoutService) ListShippingMethods(ctx context.Context) ([]model.ShippingMethod, error) {
	if m.listShippingMethodsFn != nil {
		return m.listShippingMethodsFn(ctx)
	}
	return []model.ShippingMethod{}, nil
}

func (m *mockCheckoutService) CreateOrder(ctx context.Context, userID int64, req *model.CheckoutRequest) (*model.Order, error) {
	if m.createOrderFn != nil {
		return m.createOrderFn(ctx, userID, req)
	}
	return &model.Order{ID: 1, UserID: userID, Status: model.OrderPending}, nil
}

func (m *mockCheckoutService) GetOrder(ctx context.Context, userID, orderID int64) (*model.OrderDetail, error) {
	if m.getOrderFn != nil {
		return m.getOrderFn(ctx, userID, orderID)
	}
	return nil, service.ErrOrderNotFound
}

// mockLifecycleService is a mock implementation of OrderLifecycleInterface.
type mockLifecycleService struct {
	cancelFn        func(ctx context.Context, userID, orderID int64) error
	advanceStatusFn func(ctx context.Context, orderID int64, req *model.UpdateStatusRequest) (*model.Order, error)
}

func (m *mockLifecycleService) Cancel(ctx context.Context, userID, orderID int64) error {
	if m.cancelFn != nil {
		return m.cancelFn(ctx, userID, orderID)
	}
	return nil
}

func (m *mockLifecycleService) AdvanceStatus(ctx context.Context, orderID int64, req *model.UpdateStatusRequest) (*model.Order, error) {
	if m.advanceStatusFn != nil {
		return m.advanceStatusFn(ctx, orderID, req)
	}
	return &model.Order{ID: orderID}, nil
}

func setupOrderTestApp(checkout *mockCheckoutService, lifecycle *mockLifecycleService) *fiber.App {
	app := fiber.New()
	h := NewOrderHandler(checkout, lifecycle, appvalidator.New())
	app.Get("/api/shipping-methods", h.ListShippingMethods)
	app.Post("/api/orders", h.CreateOrder)
	app.Get("/api/orders/:id", h.GetOrder)
	app.Post("/api/orders/:id/cancel", h.CancelOrder)
	app.Post("/api/admin/orders/:id/status", h.UpdateStatus)
	return app
}

func checkoutBody() string {
	return `{
		"address_province": "Tehran",
		"address_city": "Tehran",
		"address_full": "Valiasr St, No 1",
		"address_postal_code": "1234567890",
		"receiver_name": "Sara Mohammadi",
		"receiver_phone": "09121234567",
		"shipping_method_id": 1
	}`
}

func TestCreateOrder_Success(t *testing.T) {
	var gotUserID int64
	checkout := &mockCheckoutService{
		createOrderFn: func(ctx context.Context, userID int64, req *model.CheckoutRequest) (*model.Order, error) {
			gotUserID = userID
			return &model.Order{ID: 55, UserID: userID, OrderNumber: "20260901-AB12CD", Status: model.OrderPending, Total: 315_000}, nil
		},
	}
	app := setupOrderTestApp(checkout, &mockLifecycleService{})

	req := httptest.NewRequest(http.MethodPost, "/api/orders", bytes.NewBufferString(checkoutBody()))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "42")

	resp, err := app.Test(req)
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)
	assert.EqualValues(t, 42, gotUserID)

	var order model.Order
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&order))
	assert.Equal(t, "20260901-AB12CD", order.OrderNumber)
}

func TestCreateOrder_RequiresAuthentication(t *testing.T) {
	app := setupOrderTestApp(&mockCheckoutService{}, &mockLifecycleService{})

	req := httptest.NewRequest(http.MethodPost, "/api/orders", bytes.NewBufferString(checkoutBody()))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestCreateOrder_MissingAddress(t *testing.T) {
	app := setupOrderTestApp(&mockCheckoutService{}, &mockLifecycleService{})

	body := `{"shipping_method_id": 1}`
	req := httptest.NewRequest(http.MethodPost, "/api/orders", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "42")

	resp, err := app.Test(req)
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	var result map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(t, "invalid request: address_province is required", result["error"])
}

func TestCreateOrder_EmptyCart(t *testing.T) {
	checkout := &mockCheckoutService{
		createOrderFn: func(ctx context.Context, userID int64, req *model.CheckoutRequest) (*model.Order, error) {
			return nil, service.ErrCartEmpty
		},
	}
	app := setupOrderTestApp(checkout, &mockLifecycleService{})

	req := httptest.NewRequest(http.MethodPost, "/api/orders", bytes.NewBufferString(checkoutBody()))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "42")

	resp, err := app.Test(req)
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	var result map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(t, "cart is empty", result["error"])
}

func TestCreateOrder_OutOfStockConflicts(t *testing.T) {
	checkout := &mockCheckoutService{
		createOrderFn: func(ctx context.Context, userID int64, req *model.CheckoutRequest) (*model.Order, error) {
			return nil, service.ErrProductUnavailable
		},
	}
	app := setupOrderTestApp(checkout, &mockLifecycleService{})

	req := httptest.NewRequest(http.MethodPost, "/api/orders", bytes.NewBufferString(checkoutBody()))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "42")

	resp, err := app.Test(req)
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
}

func TestGetOrder_Success(t *testing.T) {
	checkout := &mockCheckoutService{
		getOrderFn: func(ctx context.Context, userID, orderID int64) (*model.OrderDetail, error) {
			return &model.OrderDetail{
				Order:                &model.Order{ID: orderID, UserID: userID, Status: model.OrderPending},
				Items:                []model.OrderItem{},
				PaymentTimeRemaining: 3600,
				CanPay:               true,
				CanCancel:            true,
			}, nil
		},
	}
	app := setupOrderTestApp(checkout, &mockLifecycleService{})

	req := httptest.NewRequest(http.MethodGet, "/api/orders/55", nil)
	req.Header.Set("X-User-ID", "42")

	resp, err := app.Test(req)
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var detail model.OrderDetail
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&detail))
	assert.True(t, detail.CanPay)
	assert.EqualValues(t, 3600, detail.PaymentTimeRemaining)
}

func TestGetOrder_NotFound(t *testing.T) {
	app := setupOrderTestApp(&mockCheckoutService{}, &mockLifecycleService{})

	req := httptest.NewRequest(http.MethodGet, "/api/orders/55", nil)
	req.Header.Set("X-User-ID", "42")

	resp, err := app.Test(req)
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestCancelOrder_Conflict(t *testing.T) {
	lifecycle := &mockLifecycleService{
		cancelFn: func(ctx context.Context, userID, orderID int64) error {
			return service.ErrOrderNotCancelable
		},
	}
	app := setupOrderTestApp(&mockCheckoutService{}, lifecycle)

	req := httptest.NewRequest(http.MethodPost, "/api/orders/55/cancel", nil)
	req.Header.Set("X-User-ID", "42")

	resp, err := app.Test(req)
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
}

func TestUpdateStatus_Success(t *testing.T) {
	var gotReq *model.UpdateStatusRequest
	lifecycle := &mockLifecycleService{
		advanceStatusFn: func(ctx context.Context, orderID int64, req *model.UpdateStatusRequest) (*model.Order, error) {
			gotReq = req
			return &model.Order{ID: orderID, Status: model.OrderShipped, TrackingCode: req.TrackingCode}, nil
		},
	}
	app := setupOrderTestApp(&mockCheckoutService{}, lifecycle)

	body := `{"status": "shipped", "tracking_code": "TRK-1234"}`
	req := httptest.NewRequest(http.MethodPost, "/api/admin/orders/55/status", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.NotNil(t, gotReq)
	assert.Equal(t, "shipped", gotReq.Status)
	assert.Equal(t, "TRK-1234", gotReq.TrackingCode)
}

func TestUpdateStatus_InvalidTransition(t *testing.T) {
	lifecycle := &mockLifecycleService{
		advanceStatusFn: func(ctx context.Context, orderID int64, req *model.UpdateStatusRequest) (*model.Order, error) {
			return nil, service.ErrInvalidTransition
		},
	}
	app := setupOrderTestApp(&mockCheckoutService{}, lifecycle)

	body := `{"status": "paid"}`
	req := httptest.NewRequest(http.MethodPost, "/api/admin/orders/55/status", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
}

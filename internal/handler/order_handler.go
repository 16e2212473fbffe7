package handler

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/davazhoo/storefront/internal/model"
	"github.com/davazhoo/storefront/internal/service"
)

// CheckoutServiceInterface defines the interface for checkout business logic.
type CheckoutServiceInterface interface {
	ListShippingMethods(ctx context.Context) ([]model.ShippingMethod, error)
	CreateOrder(ctx context.Context, userID int64, req *model.CheckoutRequest) (*model.Order, error)
	GetOrder(ctx context.Context, userID, orderID int64) (*model.OrderDetail, error)
}

// OrderLifecycleInterface defines the lifecycle operations exposed over HTTP:
// customer cancellation and the admin status advance.
type OrderLifecycleInterface interface {
	Cancel(ctx context.Context, userID, orderID int64) error
	AdvanceStatus(ctx context.Context, orderID int64, req *model.UpdateStatusRequest) (*model.Order, error)
}

// OrderHandler handles HTTP requests for orders.
type OrderHandler struct {
	checkout  CheckoutServiceInterface
	lifecycle OrderLifecycleInterface
	validator *validator.Validate
}

// NewOrderHandler creates a new OrderHandler with the given services and validator.
func NewOrderHandler(checkout CheckoutServiceInterface, lifecycle OrderLifecycleInterface, v *validator.Validate) *OrderHandler {
	return &OrderHandler{checkout: checkout, lifecycle: lifecycle, validator: v}
}

// ListShippingMethods handles GET /api/shipping-methods requests.
func (h *OrderHandler) ListShippingMethods(c *fiber.Ctx) error {
	methods, err := h.checkout.ListShippingMethods(c.Context())
	if err != nil {
		log.Error().Err(err).Msg("failed to list shipping methods")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
	}
	return c.JSON(fiber.Map{"shipping_methods": methods})
}

// CreateOrder handles POST /api/orders requests, converting the cart into a
// pending order.
func (h *OrderHandler) CreateOrder(c *fiber.Ctx) error {
	uid, ok := requireUserID(c)
	if !ok {
		return nil
	}

	var req model.CheckoutRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if err := h.validator.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": formatValidationError(err)})
	}

	order, err := h.checkout.CreateOrder(c.Context(), uid, &req)
	if err != nil {
		if errors.Is(err, service.ErrCartEmpty) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "cart is empty"})
		}
		if errors.Is(err, service.ErrShippingMethodNotFound) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "shipping method not found"})
		}
		if errors.Is(err, service.ErrProductUnavailable) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
		}
		if errors.Is(err, service.ErrCouponNotFound) || service.IsCouponInvalid(err) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}
		log.Error().
			Err(err).
			Int64("user_id", uid).
			Msg("failed to create order")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
	}

	return c.Status(fiber.StatusCreated).JSON(order)
}

// GetOrder handles GET /api/orders/:id requests.
func (h *OrderHandler) GetOrder(c *fiber.Ctx) error {
	uid, ok := requireUserID(c)
	if !ok {
		return nil
	}
	orderID, err := c.ParamsInt("id")
	if err != nil || orderID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid order id"})
	}

	detail, err := h.checkout.GetOrder(c.Context(), uid, int64(orderID))
	if err != nil {
		if errors.Is(err, service.ErrOrderNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "order not found"})
		}
		log.Error().
			Err(err).
			Int("order_id", orderID).
			Msg("failed to get order")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
	}
	return c.JSON(detail)
}

// CancelOrder handles POST /api/orders/:id/cancel requests.
func (h *OrderHandler) CancelOrder(c *fiber.Ctx) error {
	uid, ok := requireUserID(c)
	if !ok {
		return nil
	}
	orderID, err := c.ParamsInt("id")
	if err != nil || orderID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid order id"})
	}

	if err := h.lifecycle.Cancel(c.Context(), uid, int64(orderID)); err != nil {
		if errors.Is(err, service.ErrOrderNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "order not found"})
		}
		if errors.Is(err, service.ErrOrderNotCancelable) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "order can no longer be canceled"})
		}
		log.Error().
			Err(err).
			Int("order_id", orderID).
			Msg("failed to cancel order")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
	}

	log.Info().
		Int("order_id", orderID).
		Int64("user_id", uid).
		Msg("order canceled by customer")
	return c.JSON(fiber.Map{"status": "canceled"})
}

// UpdateStatus handles POST /api/admin/orders/:id/status requests. Routing is
// expected to gate this behind the admin middleware.
func (h *OrderHandler) UpdateStatus(c *fiber.Ctx) error {
	orderID, err := c.ParamsInt("id")
	if err != nil || orderID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid order id"})
	}

	var req model.UpdateStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if err := h.validator.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": formatValidationError(err)})
	}

	order, err := h.lifecycle.AdvanceStatus(c.Context(), int64(orderID), &req)
	if err != nil {
		if errors.Is(err, service.ErrOrderNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "order not found"})
		}
		if errors.Is(err, service.ErrInvalidTransition) || errors.Is(err, service.ErrOrderNotCancelable) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "invalid status transition"})
		}
		log.Error().
			Err(err).
			Int("order_id", orderID).
			Str("status", req.Status).
			Msg("failed to update order status")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
	}

	log.Info().
		Int("order_id", orderID).
		Str("status", req.Status).
		Msg("order status updated")
	return c.JSON(order)
}

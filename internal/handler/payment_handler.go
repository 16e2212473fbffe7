package handler

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/davazhoo/storefront/internal/gateway"
	"github.com/davazhoo/storefront/internal/service"
)

// PaymentServiceInterface defines the interface for payment business logic.
type PaymentServiceInterface interface {
	Initiate(ctx context.Context, userID, orderID int64) (*gateway.PaymentIntent, error)
	HandleCallback(ctx context.Context, authority string, callbackOK bool) (*service.CallbackResult, error)
}

// PaymentHandler handles HTTP requests for payments.
type PaymentHandler struct {
	service PaymentServiceInterface
}

// NewPaymentHandler creates a new PaymentHandler with the given service.
func NewPaymentHandler(svc PaymentServiceInterface) *PaymentHandler {
	return &PaymentHandler{service: svc}
}

// Pay handles POST /api/orders/:id/pay requests, answering with the gateway
// redirect URL for the client to follow.
func (h *PaymentHandler) Pay(c *fiber.Ctx) error {
	uid, ok := requireUserID(c)
	if !ok {
		return nil
	}
	orderID, err := c.ParamsInt("id")
	if err != nil || orderID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid order id"})
	}

	intent, err := h.service.Initiate(c.Context(), uid, int64(orderID))
	if err != nil {
		if errors.Is(err, service.ErrOrderNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "order not found"})
		}
		if errors.Is(err, service.ErrOrderNotPayable) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "order is not payable"})
		}
		if errors.Is(err, service.ErrGatewayUnavailable) {
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "payment gateway unavailable"})
		}
		log.Error().
			Err(err).
			Int("order_id", orderID).
			Msg("failed to initiate payment")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
	}

	return c.JSON(fiber.Map{
		"payment_url": intent.PaymentURL,
		"authority":   intent.Authority,
	})
}

// Callback handles GET /payments/callback requests from the gateway redirect.
// The gateway sends Authority plus Status=OK on approval; anything else means
// the customer canceled at the gateway page.
func (h *PaymentHandler) Callback(c *fiber.Ctx) error {
	authority := c.Query("Authority")
	if authority == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "missing authority"})
	}
	callbackOK := c.Query("Status") == "OK"

	result, err := h.service.HandleCallback(c.Context(), authority, callbackOK)
	if err != nil {
		if errors.Is(err, service.ErrPaymentNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "payment transaction not found"})
		}
		if errors.Is(err, service.ErrPaymentCanceled) {
			return c.JSON(fiber.Map{"status": "canceled"})
		}
		if errors.Is(err, service.ErrPaymentVerification) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"status": "failed",
				"error":  "payment verification failed",
			})
		}
		if errors.Is(err, service.ErrOrderFinalized) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"status": "failed",
				"error":  "order already finalized",
			})
		}
		if errors.Is(err, service.ErrGatewayUnavailable) {
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "payment gateway unavailable"})
		}
		log.Error().
			Err(err).
			Str("authority", authority).
			Msg("failed to handle payment callback")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
	}

	return c.JSON(fiber.Map{
		"status":       "success",
		"order_id":     result.OrderID,
		"order_number": result.OrderNumber,
		"ref_id":       result.RefID,
		"duplicate":    result.Duplicate,
	})
}

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

// CartServiceInterface defines the interface for cart business logic.
type CartServiceInterface interface {
	Get(ctx context.Context, id service.CartIdentity) (*model.CartView, error)
	AddItem(ctx context.Context, id service.CartIdentity, productID int64, quantity int) error
	UpdateQuantity(ctx context.Context, id service.CartIdentity, productID int64, quantity int) error
	RemoveItem(ctx context.Context, id service.CartIdentity, productID int64) error
	Clear(ctx context.Context, id service.CartIdentity) error
	ApplyCoupon(ctx context.Context, id service.CartIdentity, code string) error
	RemoveCoupon(ctx context.Context, id service.CartIdentity) error
	Merge(ctx context.Context, userID int64, sessionKey string) error
}

// CartHandler handles HTTP requests for the cart.
type CartHandler struct {
	service   CartServiceInterface
	validator *validator.Validate
}

// NewCartHandler creates a new CartHandler with the given service and validator.
func NewCartHandler(svc CartServiceInterface, v *validator.Validate) *CartHandler {
	return &CartHandler{service: svc, validator: v}
}

// respondWithCart answers any successful cart mutation with the fresh view.
func (h *CartHandler) respondWithCart(c *fiber.Ctx, id service.CartIdentity) error {
	view, err := h.service.Get(c.Context(), id)
	if err != nil {
		log.Error().Err(err).Msg("failed to load cart")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
	}
	return c.JSON(view)
}

// GetCart handles GET /api/cart requests.
func (h *CartHandler) GetCart(c *fiber.Ctx) error {
	return h.respondWithCart(c, cartIdentity(c))
}

// AddItem handles POST /api/cart/items requests.
func (h *CartHandler) AddItem(c *fiber.Ctx) error {
	var req model.AddItemRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	if err := h.validator.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": formatValidationError(err)})
	}

	id := cartIdentity(c)
	if err := h.service.AddItem(c.Context(), id, req.ProductID, req.Quantity); err != nil {
		if errors.Is(err, service.ErrProductNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "product not found"})
		}
		if errors.Is(err, service.ErrProductUnavailable) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}
		log.Error().
			Err(err).
			Int64("product_id", req.ProductID).
			Msg("failed to add cart item")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
	}
	return h.respondWithCart(c, id)
}

// UpdateItem handles PUT /api/cart/items/:productID requests. Quantity zero
// or below removes the line.
func (h *CartHandler) UpdateItem(c *fiber.Ctx) error {
	productID, err := c.ParamsInt("productID")
	if err != nil || productID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid product id"})
	}

	var req model.UpdateItemRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	id := cartIdentity(c)
	if err := h.service.UpdateQuantity(c.Context(), id, int64(productID), req.Quantity); err != nil {
		if errors.Is(err, service.ErrCartItemNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "cart item not found"})
		}
		if errors.Is(err, service.ErrProductNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "product not found"})
		}
		log.Error().
			Err(err).
			Int("product_id", productID).
			Msg("failed to update cart item")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
	}
	return h.respondWithCart(c, id)
}

// RemoveItem handles DELETE /api/cart/items/:productID requests.
func (h *CartHandler) RemoveItem(c *fiber.Ctx) error {
	productID, err := c.ParamsInt("productID")
	if err != nil || productID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid product id"})
	}

	id := cartIdentity(c)
	if err := h.service.RemoveItem(c.Context(), id, int64(productID)); err != nil {
		log.Error().
			Err(err).
			Int("product_id", productID).
			Msg("failed to remove cart item")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
	}
	return h.respondWithCart(c, id)
}

// Clear handles DELETE /api/cart requests.
func (h *CartHandler) Clear(c *fiber.Ctx) error {
	id := cartIdentity(c)
	if err := h.service.Clear(c.Context(), id); err != nil {
		log.Error().Err(err).Msg("failed to clear cart")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
	}
	return h.respondWithCart(c, id)
}

// ApplyCoupon handles POST /api/cart/coupon requests.
func (h *CartHandler) ApplyCoupon(c *fiber.Ctx) error {
	var req model.ApplyCouponRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if err := h.validator.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": formatValidationError(err)})
	}

	id := cartIdentity(c)
	if err := h.service.ApplyCoupon(c.Context(), id, req.Code); err != nil {
		if errors.Is(err, service.ErrCouponNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "coupon not found"})
		}
		if service.IsCouponInvalid(err) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}
		log.Error().
			Err(err).
			Str("code", req.Code).
			Msg("failed to apply coupon")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
	}

	log.Info().Str("code", req.Code).Msg("coupon applied to cart")
	return h.respondWithCart(c, id)
}

// RemoveCoupon handles DELETE /api/cart/coupon requests.
func (h *CartHandler) RemoveCoupon(c *fiber.Ctx) error {
	id := cartIdentity(c)
	if err := h.service.RemoveCoupon(c.Context(), id); err != nil {
		log.Error().Err(err).Msg("failed to remove coupon")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
	}
	return h.respondWithCart(c, id)
}

// Merge handles POST /api/cart/merge requests, folding the anonymous session
// cart into the authenticated user's cart right after login.
func (h *CartHandler) Merge(c *fiber.Ctx) error {
	uid, ok := requireUserID(c)
	if !ok {
		return nil
	}
	key := c.Cookies(sessionCookie)
	if key == "" {
		return h.respondWithCart(c, service.CartIdentity{UserID: &uid})
	}

	if err := h.service.Merge(c.Context(), uid, key); err != nil {
		log.Error().
			Err(err).
			Int64("user_id", uid).
			Msg("failed to merge carts")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
	}
	c.ClearCookie(sessionCookie)
	return h.respondWithCart(c, service.CartIdentity{UserID: &uid})
}

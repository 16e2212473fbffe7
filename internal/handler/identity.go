package handler

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/davazhoo/storefront/internal/service"
)

// sessionCookie names the anonymous cart session cookie.
const sessionCookie = "cart_session"

// userID extracts the authenticated user id set by the auth proxy in the
// X-User-ID header. Returns nil for anonymous requests.
func userID(c *fiber.Ctx) *int64 {
	raw := c.Get("X-User-ID")
	if raw == "" {
		return nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return nil
	}
	return &id
}

// sessionKey returns the request's cart session token, minting and setting a
// new one when the cookie is absent.
func sessionKey(c *fiber.Ctx) string {
	if key := c.Cookies(sessionCookie); key != "" {
		return key
	}
	key := uuid.NewString()
	c.Cookie(&fiber.Cookie{
		Name:     sessionCookie,
		Value:    key,
		Expires:  time.Now().Add(30 * 24 * time.Hour),
		HTTPOnly: true,
		SameSite: "Lax",
	})
	return key
}

// cartIdentity resolves the cart owner for this request. Authenticated
// requests that still carry a session cookie get both, which triggers the
// merge-on-login fold downstream.
func cartIdentity(c *fiber.Ctx) service.CartIdentity {
	id := service.CartIdentity{UserID: userID(c)}
	if id.UserID == nil {
		key := sessionKey(c)
		id.SessionKey = &key
		return id
	}
	if key := c.Cookies(sessionCookie); key != "" {
		id.SessionKey = &key
	}
	return id
}

// requireUserID extracts the authenticated user id or answers 401.
// The second return is false when the response has already been written.
func requireUserID(c *fiber.Ctx) (int64, bool) {
	id := userID(c)
	if id == nil {
		_ = c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "authentication required"})
		return 0, false
	}
	return *id, true
}

package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/jpcarvajal/chatpay-backend/internal/services"
	"github.com/jpcarvajal/chatpay-backend/internal/storage"
)

// RequireAuth extracts and verifies the Bearer token, loading the user
// into c.Locals("user") for downstream handlers.
func RequireAuth(auth *services.AuthService, store storage.Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Authorization header required",
			})
		}

		userID, err := auth.VerifyToken(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Token inválido o expirado",
			})
		}

		user, err := store.GetUser(userID)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Token inválido o expirado",
			})
		}

		c.Locals("user", user)
		return c.Next()
	}
}

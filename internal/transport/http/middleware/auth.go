package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/sakashimaa/banobox-orders/pkg/mylogger"
	"github.com/sakashimaa/banobox-orders/pkg/utils"
	"go.uber.org/zap"
)

// NewAuthMiddleware resolves the caller from a bearer access token and
// stores the user id in Locals("userId").
func NewAuthMiddleware(accessSecret string, logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get(fiber.HeaderAuthorization)
		if authHeader == "" {
			return notLoggedIn(c)
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
			return notLoggedIn(c)
		}

		claims, err := utils.ValidateToken(parts[1], accessSecret)
		if err != nil {
			mylogger.Debug(c.UserContext(), logger, "access token rejected", zap.Error(err))
			return notLoggedIn(c)
		}

		c.Locals("userId", claims.UserID)
		c.Locals("isActivated", claims.IsActivated)
		return c.Next()
	}
}

func notLoggedIn(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Not logged in"})
}

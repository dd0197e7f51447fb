package middleware

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"taskory/config"
	"taskory/models"
	"taskory/utils"
)

// Protected authenticates the request and stores the account as
// c.Locals("user"). Tokens are accepted from the Authorization header,
// the session cookie, or a token query parameter (websocket clients
// cannot set headers).
func Protected() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var token string
		authHeader := c.Get("Authorization")
		if authHeader != "" {
			tokenParts := strings.Split(authHeader, " ")
			if len(tokenParts) != 2 || tokenParts[0] != "Bearer" {
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
					"error": "Invalid authorization format",
				})
			}
			token = tokenParts[1]
		} else if cookie := c.Cookies("session_token"); cookie != "" {
			token = cookie
		} else if query := c.Query("token"); query != "" {
			token = query
		} else {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Authorization required",
			})
		}

		// Parse and validate JWT
		claims, err := utils.ParseSessionToken(token)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid or expired token",
			})
		}

		// The jti must still have a live session row; logout and the TTL
		// sweep revoke tokens by deleting it.
		var session models.Session
		if err := config.DB.Where("token = ?", claims.ID).First(&session).Error; err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Session expired or revoked",
			})
		}
		if session.Expired(time.Now()) {
			config.DB.Unscoped().Delete(&session)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Session expired or revoked",
			})
		}

		// Find user
		var user models.User
		if err := config.DB.First(&user, claims.UserID).Error; err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "User not found",
			})
		}

		c.Locals("user", &user)
		c.Locals("userID", user.ID)
		c.Locals("sessionToken", session.Token)

		return c.Next()
	}
}

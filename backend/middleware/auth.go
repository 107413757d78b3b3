package middleware

import (
	"net/url"

	"github.com/gofiber/fiber/v2"
	"github.com/waflawe/Omenforcer/backend/config"
	"github.com/waflawe/Omenforcer/backend/utils"
)

// AuthMiddleware rejects API requests without a valid token.
func AuthMiddleware(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := utils.ExtractUserIDFromToken(c, cfg)
		if err != nil {
			return utils.Unauthorized(c, "Unauthorized")
		}
		utils.SetCurrentUserID(c, userID)
		return c.Next()
	}
}

// OptionalAuth records the user when a valid token is present and lets anonymous requests through.
func OptionalAuth(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if userID, err := utils.ExtractUserIDFromToken(c, cfg); err == nil {
			utils.SetCurrentUserID(c, userID)
		}
		return c.Next()
	}
}

// LoginRequired sends anonymous site visitors to the login page.
func LoginRequired(loginURL string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if utils.CurrentUserID(c) == 0 {
			return c.Redirect(loginURL+"?next="+url.QueryEscape(c.OriginalURL()), fiber.StatusFound)
		}
		return c.Next()
	}
}

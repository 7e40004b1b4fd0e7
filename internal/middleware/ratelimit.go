package middleware

import (
	"strings"
	"time"

	"github.com/ahmadisoggg/XDiscordUltimate-sub000/internal/model"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

// RateLimit caps requests per client and route. Behind the game plugin
// every request shares one IP, so the route keeps endpoints from starving
// each other.
func RateLimit(max int, window time.Duration) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        max,
		Expiration: window,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP() + "|" + c.Path()
		},
		LimitReached: tooManyRequests,
	})
}

// RedeemRateLimit caps code redemptions per claiming Minecraft account, so
// one player guessing codes cannot use up the plugin's shared budget.
// Requests without a readable claimant fall back to the client IP.
func RedeemRateLimit(max int, window time.Duration) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        max,
		Expiration: window,
		KeyGenerator: func(c *fiber.Ctx) string {
			var req model.LinkRedeemRequest
			if err := c.App().Config().JSONDecoder(c.Body(), &req); err == nil && req.MinecraftID != "" {
				return "redeem|" + strings.ToLower(req.MinecraftID)
			}
			return "redeem|ip|" + c.IP()
		},
		LimitReached: tooManyRequests,
	})
}

func tooManyRequests(c *fiber.Ctx) error {
	return c.Status(429).JSON(fiber.Map{"error": "too many requests"})
}

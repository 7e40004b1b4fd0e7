package handler

import (
	"time"

	"github.com/ahmadisoggg/XDiscordUltimate-sub000/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type Routes struct {
	Health     *HealthHandler
	Link       *LinkHandler
	Moderation *ModerationHandler
	Admin      *AdminHandler
	Socket     *GameSocketHandler
	Metrics    fiber.Handler
}

// Mount registers every route on app.
func (r Routes) Mount(app fiber.Router, serverKey, jwtSecret string) {
	app.Get("/health", r.Health.Health)
	app.Get("/ready", r.Health.Ready)
	if r.Metrics != nil {
		app.Get("/metrics", r.Metrics)
	}

	api := app.Group("/api/v1")

	// Game plugin routes (server key)
	game := api.Group("/server", middleware.ServerKey(serverKey), middleware.RateLimit(120, time.Minute))
	game.Post("/link/redeem", middleware.RedeemRateLimit(10, time.Minute), r.Link.Redeem)
	game.Get("/link/:minecraftId", r.Link.Status)
	game.Post("/moderation/command", r.Moderation.Command)
	game.Post("/moderation/kick", r.Moderation.Kick)
	game.Get("/moderation/muted/:name", r.Moderation.Muted)

	// Operator routes (JWT)
	ops := api.Group("/admin", middleware.OperatorAuth(jwtSecret))
	ops.Get("/history/:identity", r.Admin.History)
	ops.Post("/sweep", r.Admin.Sweep)

	// Plugin socket, authenticated in Upgrade
	app.Get("/ws/game", r.Socket.Upgrade)
}

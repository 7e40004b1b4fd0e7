package handler

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	store Pinger
	game  interface{ Connected() bool }
}

func NewHealthHandler(store Pinger, game interface{ Connected() bool }) *HealthHandler {
	return &HealthHandler{store: store, game: game}
}

func (h *HealthHandler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		return c.Status(503).JSON(fiber.Map{"status": "not ready", "error": "database unreachable"})
	}

	resp := fiber.Map{"status": "ready"}
	if h.game != nil {
		resp["game_connected"] = h.game.Connected()
	}
	return c.JSON(resp)
}

package handler

import (
	"context"
	"errors"

	"github.com/ahmadisoggg/XDiscordUltimate-sub000/internal/model"
	"github.com/ahmadisoggg/XDiscordUltimate-sub000/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GameModeration is the game-facing side of the moderation bridge.
type GameModeration interface {
	OnGameModerationCommand(ctx context.Context, raw, actorName string) (service.Outcome, error)
	OnGameKickEvent(ctx context.Context, target, reason string) (service.Outcome, error)
	IsMuted(ctx context.Context, name string) (model.MuteStatus, error)
}

type ModerationHandler struct {
	bridge GameModeration
}

func NewModerationHandler(bridge GameModeration) *ModerationHandler {
	return &ModerationHandler{bridge: bridge}
}

// Command receives every moderation-looking command run on the server.
func (h *ModerationHandler) Command(c *fiber.Ctx) error {
	var req model.ModerationCommandRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid request body"})
	}
	if req.Command == "" {
		return c.Status(400).JSON(fiber.Map{"error": "command is required"})
	}
	out, err := h.bridge.OnGameModerationCommand(c.Context(), req.Command, req.Actor)
	if err != nil {
		return moderationError(c, err)
	}
	return c.JSON(fiber.Map{"outcome": out})
}

// Kick receives kicks the server performed on its own.
func (h *ModerationHandler) Kick(c *fiber.Ctx) error {
	var req model.KickEventRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid request body"})
	}
	if req.Target == "" {
		return c.Status(400).JSON(fiber.Map{"error": "target is required"})
	}
	out, err := h.bridge.OnGameKickEvent(c.Context(), req.Target, req.Reason)
	if err != nil {
		return moderationError(c, err)
	}
	return c.JSON(fiber.Map{"outcome": out})
}

// Muted lets the plugin's chat filter ask whether a player is muted.
func (h *ModerationHandler) Muted(c *fiber.Ctx) error {
	status, err := h.bridge.IsMuted(c.Context(), c.Params("name"))
	if err != nil {
		return moderationError(c, err)
	}
	return c.JSON(status)
}

func moderationError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrUnknownIdentity):
		return c.Status(400).JSON(fiber.Map{"error": "unknown identity"})
	case errors.Is(err, service.ErrStoreUnavailable):
		return c.Status(503).JSON(fiber.Map{"error": "store unavailable"})
	default:
		return c.Status(500).JSON(fiber.Map{"error": "internal server error"})
	}
}

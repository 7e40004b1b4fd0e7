package handler

import (
	"context"
	"errors"

	"github.com/ahmadisoggg/XDiscordUltimate-sub000/internal/model"
	"github.com/ahmadisoggg/XDiscordUltimate-sub000/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// Redeemer completes a link from the game side.
type Redeemer interface {
	RedeemCode(ctx context.Context, code string, claimant model.GameIdentity) (*model.AccountLink, error)
}

// LinkLookup answers link status questions.
type LinkLookup interface {
	ResolveMinecraft(ctx context.Context, id uuid.UUID) (*model.AccountLink, error)
}

type LinkHandler struct {
	redeemer Redeemer
	links    LinkLookup
}

func NewLinkHandler(redeemer Redeemer, links LinkLookup) *LinkHandler {
	return &LinkHandler{redeemer: redeemer, links: links}
}

// Redeem is called by the plugin when a player types /link <code>.
func (h *LinkHandler) Redeem(c *fiber.Ctx) error {
	var req model.LinkRedeemRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid request body"})
	}
	claimant, err := claimantOf(req)
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": err.Error()})
	}

	link, err := h.redeemer.RedeemCode(c.Context(), req.Code, claimant)
	if err != nil {
		status, code, msg := redeemFailure(err)
		return c.Status(status).JSON(fiber.Map{"error": code, "message": msg})
	}
	return c.JSON(fiber.Map{
		"ok":           true,
		"discord_id":   link.DiscordID,
		"discord_name": link.DiscordName,
		"message":      "Your account is now linked to Discord user " + link.DiscordName + ".",
	})
}

// Status reports whether a Minecraft account is linked.
func (h *LinkHandler) Status(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("minecraftId"))
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid minecraft id"})
	}
	link, err := h.links.ResolveMinecraft(c.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrStoreUnavailable) {
			return c.Status(503).JSON(fiber.Map{"error": "store unavailable"})
		}
		return c.Status(500).JSON(fiber.Map{"error": "internal server error"})
	}
	if link == nil {
		return c.JSON(model.LinkStatus{})
	}
	return c.JSON(model.LinkStatus{Linked: true, DiscordID: link.DiscordID, DiscordName: link.DiscordName})
}

func claimantOf(req model.LinkRedeemRequest) (model.GameIdentity, error) {
	if req.Code == "" {
		return model.GameIdentity{}, errors.New("code is required")
	}
	id, err := uuid.Parse(req.MinecraftID)
	if err != nil {
		return model.GameIdentity{}, errors.New("invalid minecraft_id")
	}
	if req.MinecraftName == "" {
		return model.GameIdentity{}, errors.New("minecraft_name is required")
	}
	return model.GameIdentity{ID: id, Name: req.MinecraftName}, nil
}

// redeemFailure maps a redemption error to an HTTP status, a stable error
// code for the plugin and the text shown to the player.
func redeemFailure(err error) (int, string, string) {
	switch {
	case errors.Is(err, service.ErrCodeExpired):
		return 410, "code_expired", "That code has expired. Run !link on Discord to get a new one."
	case errors.Is(err, service.ErrInvalidCode):
		return 400, "invalid_code", "That code is not valid. Check it and try again."
	case errors.Is(err, service.ErrAlreadyLinked):
		return 409, "already_linked", "Your account is already linked."
	case errors.Is(err, service.ErrRedeemCooldown):
		return 429, "cooldown", "Too many failed attempts. Wait a moment and try again."
	case errors.Is(err, service.ErrStoreUnavailable):
		return 503, "unavailable", "Linking is temporarily unavailable. Try again shortly."
	default:
		return 500, "internal", "Something went wrong while linking your account."
	}
}

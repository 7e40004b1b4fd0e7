package handler

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ahmadisoggg/XDiscordUltimate-sub000/internal/game"
	"github.com/ahmadisoggg/XDiscordUltimate-sub000/internal/model"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// GameHub is the outbound and presence side of the plugin connection.
type GameHub interface {
	Attach(conn game.Conn) func()
	Send(eventType string, data any) error
	SetOnline(names []string)
	Joined(name string)
	Left(name string)
}

type GameSocketHandler struct {
	hub       GameHub
	redeemer  Redeemer
	bridge    GameModeration
	serverKey string
	logger    *zap.Logger
}

func NewGameSocketHandler(hub GameHub, redeemer Redeemer, bridge GameModeration, serverKey string, logger *zap.Logger) *GameSocketHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GameSocketHandler{hub: hub, redeemer: redeemer, bridge: bridge, serverKey: serverKey, logger: logger}
}

// Upgrade accepts the plugin's socket. The server key may come from the
// header or, for clients that cannot set headers on upgrade, the query.
func (h *GameSocketHandler) Upgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	key := c.Get("X-Server-Key")
	if key == "" {
		key = c.Query("key")
	}
	if key == "" || key != h.serverKey {
		return c.Status(403).JSON(fiber.Map{"error": "invalid server key"})
	}
	return websocket.New(h.handleConnection)(c)
}

func (h *GameSocketHandler) handleConnection(c *websocket.Conn) {
	detach := h.hub.Attach(c)
	defer detach()

	_ = c.SetReadDeadline(time.Now().Add(90 * time.Second))
	for {
		_, msg, err := c.ReadMessage()
		if err != nil {
			break
		}
		_ = c.SetReadDeadline(time.Now().Add(90 * time.Second))

		var event model.WSEvent
		if err := json.Unmarshal(msg, &event); err != nil {
			h.logger.Debug("dropping malformed frame", zap.Error(err))
			continue
		}
		h.Dispatch(context.Background(), event)
	}
}

// Dispatch handles one inbound plugin frame. Moderation and redeem frames
// are handled off the read loop so a slow store never stalls presence.
func (h *GameSocketHandler) Dispatch(ctx context.Context, event model.WSEvent) {
	switch event.Type {
	case model.WSPing:
		if err := h.hub.Send(model.WSPong, nil); err != nil {
			h.logger.Warn("pong not queued", zap.Error(err))
		}
	case model.WSPresence:
		var p model.WSPresenceData
		if h.decode(event, &p) {
			h.hub.SetOnline(p.Online)
		}
	case model.WSJoin:
		var p model.WSPlayerData
		if h.decode(event, &p) {
			h.hub.Joined(p.Name)
		}
	case model.WSQuit:
		var p model.WSPlayerData
		if h.decode(event, &p) {
			h.hub.Left(p.Name)
		}
	case model.WSCommand:
		var req model.ModerationCommandRequest
		if h.decode(event, &req) {
			h.async(ctx, func(ctx context.Context) {
				if _, err := h.bridge.OnGameModerationCommand(ctx, req.Command, req.Actor); err != nil {
					h.logger.Warn("game command not synced", zap.String("command", req.Command), zap.Error(err))
				}
			})
		}
	case model.WSKick:
		var req model.KickEventRequest
		if h.decode(event, &req) {
			h.async(ctx, func(ctx context.Context) {
				if _, err := h.bridge.OnGameKickEvent(ctx, req.Target, req.Reason); err != nil {
					h.logger.Warn("game kick not synced", zap.String("target", req.Target), zap.Error(err))
				}
			})
		}
	case model.WSRedeem:
		var req model.WSRedeemData
		if h.decode(event, &req) {
			h.async(ctx, func(ctx context.Context) { h.redeem(ctx, req) })
		}
	default:
		h.logger.Debug("unknown frame type", zap.String("type", event.Type))
	}
}

func (h *GameSocketHandler) redeem(ctx context.Context, req model.WSRedeemData) {
	result := model.WSRedeemResultData{RequestID: req.RequestID}
	claimant, err := claimantOf(model.LinkRedeemRequest{
		Code:          req.Code,
		MinecraftID:   req.MinecraftID,
		MinecraftName: req.MinecraftName,
	})
	if err != nil {
		result.Error = "bad_request"
		result.Message = err.Error()
	} else if link, err := h.redeemer.RedeemCode(ctx, req.Code, claimant); err != nil {
		_, result.Error, result.Message = redeemFailure(err)
	} else {
		result.OK = true
		result.DiscordName = link.DiscordName
		result.Message = "Your account is now linked to Discord user " + link.DiscordName + "."
	}
	if err := h.hub.Send(model.WSRedeemResult, result); err != nil {
		h.logger.Warn("redeem result not queued", zap.String("request_id", req.RequestID), zap.Error(err))
	}
}

func (h *GameSocketHandler) decode(event model.WSEvent, v any) bool {
	if err := json.Unmarshal(event.Data, v); err != nil {
		h.logger.Debug("bad frame payload", zap.String("type", event.Type), zap.Error(err))
		return false
	}
	return true
}

func (h *GameSocketHandler) async(parent context.Context, fn func(ctx context.Context)) {
	go func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), 30*time.Second)
		defer cancel()
		fn(ctx)
	}()
}

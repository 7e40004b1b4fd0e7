package handler

import (
	"context"

	"github.com/ahmadisoggg/XDiscordUltimate-sub000/internal/model"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type HistoryReader interface {
	History(ctx context.Context, identity string, limit int) ([]model.ModerationRecord, error)
	SweepExpiredRecords(ctx context.Context) (int, error)
}

type CodeSweeper interface {
	SweepExpired(ctx context.Context) (int64, error)
}

type AdminHandler struct {
	history HistoryReader
	codes   CodeSweeper
	logger  *zap.Logger
}

func NewAdminHandler(history HistoryReader, codes CodeSweeper, logger *zap.Logger) *AdminHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdminHandler{history: history, codes: codes, logger: logger}
}

// History lists moderation records for a Minecraft UUID, Discord id or name.
func (h *AdminHandler) History(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 20)
	recs, err := h.history.History(c.Context(), c.Params("identity"), limit)
	if err != nil {
		return moderationError(c, err)
	}
	if recs == nil {
		recs = []model.ModerationRecord{}
	}
	return c.JSON(fiber.Map{"records": recs})
}

// Sweep runs both sweeps now instead of waiting for their tickers.
func (h *AdminHandler) Sweep(c *fiber.Ctx) error {
	codes, err := h.codes.SweepExpired(c.Context())
	if err != nil {
		h.logger.Error("manual code sweep failed", zap.Error(err))
		return moderationError(c, err)
	}
	records, err := h.history.SweepExpiredRecords(c.Context())
	if err != nil {
		h.logger.Error("manual record sweep failed", zap.Error(err))
		return moderationError(c, err)
	}
	h.logger.Info("manual sweep",
		zap.String("operator", operatorOf(c)),
		zap.Int64("codes", codes),
		zap.Int("records", records))
	return c.JSON(fiber.Map{"codes_removed": codes, "records_expired": records})
}

func operatorOf(c *fiber.Ctx) string {
	op, _ := c.Locals("operator").(string)
	return op
}

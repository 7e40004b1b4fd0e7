package repository

import (
	"context"
	"errors"
	"time"

	"github.com/ahmadisoggg/XDiscordUltimate-sub000/internal/model"

	"github.com/google/uuid"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrCodeTaken        = errors.New("verification code already in use")
	ErrCodeNotFound     = errors.New("verification code not found")
	ErrCodeExpired      = errors.New("verification code expired")
	ErrStoreUnavailable = errors.New("store unavailable")
)

// LinkReader is the read-only view of account links. The link registry only
// ever gets this view; links are written through CodeStore.RedeemCode.
type LinkReader interface {
	GetLinkByMinecraftID(ctx context.Context, id uuid.UUID) (*model.AccountLink, error)
	GetLinkByDiscordID(ctx context.Context, discordID string) (*model.AccountLink, error)
	GetLinkByMinecraftName(ctx context.Context, name string) (*model.AccountLink, error)
}

type CodeStore interface {
	// ReplaceCode stores code as the only pending code of its Discord id.
	// It returns ErrCodeTaken when another live code already uses the token.
	ReplaceCode(ctx context.Context, code *model.VerificationCode) error
	GetCodeByDiscordID(ctx context.Context, discordID string) (*model.VerificationCode, error)
	// RedeemCode deletes the code and writes the link in one transaction.
	// link carries the claimant; the Discord side is filled from the code.
	// An expired code is still deleted and ErrCodeExpired returned.
	RedeemCode(ctx context.Context, code string, now time.Time, link *model.AccountLink) (*model.AccountLink, error)
	DeleteExpiredCodes(ctx context.Context, now time.Time) (int64, error)
}

// RecordQuery selects the most recent moderation record for a target.
type RecordQuery struct {
	TargetID   string
	Actions    []model.ActionType
	Origin     model.Platform
	Since      time.Time
	ActiveOnly bool
}

type ModerationStore interface {
	CreateRecord(ctx context.Context, rec *model.ModerationRecord) error
	FindRecentRecord(ctx context.Context, q RecordQuery) (*model.ModerationRecord, error)
	// RecordReversal deactivates the target's active records of the lifted
	// actions and appends rec in one transaction. It returns how many
	// records were lifted.
	RecordReversal(ctx context.Context, rec *model.ModerationRecord, lifts []model.ActionType) (int64, error)
	// ExpireRecords deactivates and returns active records whose expiry passed.
	ExpireRecords(ctx context.Context, now time.Time) ([]model.ModerationRecord, error)
	ListRecords(ctx context.Context, targetID string, limit int) ([]model.ModerationRecord, error)
	LastRecordByActor(ctx context.Context, actorID string, action model.ActionType) (*model.ModerationRecord, error)
	CountActive(ctx context.Context, targetID string, action model.ActionType) (int64, error)
}

// Store is the single source of truth for links, pending codes and the
// moderation log.
type Store interface {
	LinkReader
	CodeStore
	ModerationStore
	Ping(ctx context.Context) error
	Close()
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > 100 {
		return 20
	}
	return limit
}

func actionStrings(actions []model.ActionType) []string {
	out := make([]string, len(actions))
	for i, a := range actions {
		out[i] = string(a)
	}
	return out
}

package service

import (
	"errors"
	"fmt"

	"github.com/ahmadisoggg/XDiscordUltimate-sub000/internal/repository"
)

var (
	ErrAlreadyLinked        = errors.New("account is already linked")
	ErrInvalidOrExpiredCode = errors.New("invalid or expired verification code")
	ErrInvalidCode          = fmt.Errorf("%w: unknown code", ErrInvalidOrExpiredCode)
	ErrCodeExpired          = fmt.Errorf("%w: code expired", ErrInvalidOrExpiredCode)
	ErrRedeemCooldown       = errors.New("too many failed attempts, try again later")
	ErrStoreUnavailable     = repository.ErrStoreUnavailable
	ErrRemoteApplyFailed    = errors.New("remote platform rejected mirrored action")
	ErrReportCooldown       = errors.New("report cooldown active")
	ErrUnknownIdentity      = errors.New("identity not recognised")
)

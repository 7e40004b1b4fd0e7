package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ahmadisoggg/XDiscordUltimate-sub000/internal/model"

	"github.com/jackc/pgx/v5"
)

const codeUniqueIndex = "idx_verification_codes_code"

// ReplaceCode upserts the pending code of a Discord account. An expired,
// not yet swept row holding the same token is cleared first.
func (s *PostgresStore) ReplaceCode(ctx context.Context, code *model.VerificationCode) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return classify(err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx,
		`DELETE FROM verification_codes WHERE code = $1 AND expires_at <= $2`,
		code.Code, code.IssuedAt,
	); err != nil {
		return classify(err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO verification_codes (discord_id, code, display_name, issued_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (discord_id) DO UPDATE
		 SET code = EXCLUDED.code,
		     display_name = EXCLUDED.display_name,
		     issued_at = EXCLUDED.issued_at,
		     expires_at = EXCLUDED.expires_at`,
		code.DiscordID, code.Code, code.DisplayName, code.IssuedAt, code.ExpiresAt,
	)
	if err != nil {
		if isUniqueViolation(err, codeUniqueIndex) {
			return ErrCodeTaken
		}
		return classify(err)
	}
	return classify(tx.Commit(ctx))
}

// GetCodeByDiscordID returns the pending code of a Discord account.
func (s *PostgresStore) GetCodeByDiscordID(ctx context.Context, discordID string) (*model.VerificationCode, error) {
	var c model.VerificationCode
	err := s.pool.QueryRow(ctx,
		`SELECT code, discord_id, display_name, issued_at, expires_at
		 FROM verification_codes WHERE discord_id = $1`, discordID,
	).Scan(&c.Code, &c.DiscordID, &c.DisplayName, &c.IssuedAt, &c.ExpiresAt)
	if err != nil {
		return nil, classify(err)
	}
	return &c, nil
}

// RedeemCode consumes a code and writes the link atomically. The DELETE ...
// RETURNING gives a single winner when the same code is redeemed concurrently.
func (s *PostgresStore) RedeemCode(ctx context.Context, code string, now time.Time, link *model.AccountLink) (*model.AccountLink, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, classify(err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var vc model.VerificationCode
	err = tx.QueryRow(ctx,
		`DELETE FROM verification_codes WHERE code = $1
		 RETURNING code, discord_id, display_name, issued_at, expires_at`, code,
	).Scan(&vc.Code, &vc.DiscordID, &vc.DisplayName, &vc.IssuedAt, &vc.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCodeNotFound
		}
		return nil, classify(err)
	}

	if vc.Expired(now) {
		if err := tx.Commit(ctx); err != nil {
			return nil, classify(err)
		}
		return nil, ErrCodeExpired
	}

	out := *link
	out.DiscordID = vc.DiscordID
	out.DiscordName = vc.DisplayName
	out.LinkedAt = now
	if err := upsertLink(ctx, tx, &out); err != nil {
		return nil, fmt.Errorf("write link: %w", classify(err))
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, classify(err)
	}
	return &out, nil
}

// DeleteExpiredCodes removes every code whose expiry has passed.
func (s *PostgresStore) DeleteExpiredCodes(ctx context.Context, now time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM verification_codes WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, classify(err)
	}
	return tag.RowsAffected(), nil
}

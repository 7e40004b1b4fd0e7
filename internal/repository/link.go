package repository

import (
	"context"

	"github.com/ahmadisoggg/XDiscordUltimate-sub000/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const linkColumns = `minecraft_id, discord_id, minecraft_name, discord_name, linked_at`

func scanLink(row pgx.Row) (*model.AccountLink, error) {
	var l model.AccountLink
	if err := row.Scan(&l.MinecraftID, &l.DiscordID, &l.MinecraftName, &l.DiscordName, &l.LinkedAt); err != nil {
		return nil, classify(err)
	}
	return &l, nil
}

// GetLinkByMinecraftID returns the link of a Minecraft account or ErrNotFound.
func (s *PostgresStore) GetLinkByMinecraftID(ctx context.Context, id uuid.UUID) (*model.AccountLink, error) {
	return scanLink(s.pool.QueryRow(ctx,
		`SELECT `+linkColumns+` FROM account_links WHERE minecraft_id = $1`, id,
	))
}

// GetLinkByDiscordID returns the link of a Discord account or ErrNotFound.
func (s *PostgresStore) GetLinkByDiscordID(ctx context.Context, discordID string) (*model.AccountLink, error) {
	return scanLink(s.pool.QueryRow(ctx,
		`SELECT `+linkColumns+` FROM account_links WHERE discord_id = $1`, discordID,
	))
}

// GetLinkByMinecraftName looks a link up by the last known player name.
func (s *PostgresStore) GetLinkByMinecraftName(ctx context.Context, name string) (*model.AccountLink, error) {
	return scanLink(s.pool.QueryRow(ctx,
		`SELECT `+linkColumns+` FROM account_links WHERE LOWER(minecraft_name) = LOWER($1)
		 ORDER BY linked_at DESC LIMIT 1`, name,
	))
}

// upsertLink writes a link inside tx. Any other row holding the same Discord
// id is removed first so the mapping stays one-to-one.
func upsertLink(ctx context.Context, tx pgx.Tx, l *model.AccountLink) error {
	if _, err := tx.Exec(ctx,
		`DELETE FROM account_links WHERE discord_id = $1 AND minecraft_id <> $2`,
		l.DiscordID, l.MinecraftID,
	); err != nil {
		return err
	}
	_, err := tx.Exec(ctx,
		`INSERT INTO account_links (`+linkColumns+`)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (minecraft_id) DO UPDATE
		 SET discord_id = EXCLUDED.discord_id,
		     minecraft_name = EXCLUDED.minecraft_name,
		     discord_name = EXCLUDED.discord_name,
		     linked_at = EXCLUDED.linked_at`,
		l.MinecraftID, l.DiscordID, l.MinecraftName, l.DiscordName, l.LinkedAt,
	)
	return err
}

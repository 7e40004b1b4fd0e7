package repository

import (
	"context"
	"time"

	"github.com/ahmadisoggg/XDiscordUltimate-sub000/internal/model"

	"github.com/jackc/pgx/v5"
)

const recordColumns = `id, action_type, target_id, actor_id, reason, issued_at, expires_at, active, origin_platform`

func scanRecord(row pgx.Row) (*model.ModerationRecord, error) {
	var r model.ModerationRecord
	var action, origin string
	if err := row.Scan(&r.ID, &action, &r.TargetID, &r.ActorID, &r.Reason,
		&r.IssuedAt, &r.ExpiresAt, &r.Active, &origin); err != nil {
		return nil, err
	}
	r.ActionType = model.ActionType(action)
	r.OriginPlatform = model.Platform(origin)
	return &r, nil
}

func collectRecords(rows pgx.Rows) ([]model.ModerationRecord, error) {
	defer rows.Close()
	var out []model.ModerationRecord
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, classify(err)
		}
		out = append(out, *r)
	}
	return out, classify(rows.Err())
}

// CreateRecord appends a record to the moderation log and sets its id.
func (s *PostgresStore) CreateRecord(ctx context.Context, rec *model.ModerationRecord) error {
	return insertRecord(ctx, s.pool, rec)
}

type queryRower interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func insertRecord(ctx context.Context, q queryRower, rec *model.ModerationRecord) error {
	err := q.QueryRow(ctx,
		`INSERT INTO moderation_log (action_type, target_id, actor_id, reason, issued_at, expires_at, active, origin_platform)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id`,
		string(rec.ActionType), rec.TargetID, rec.ActorID, rec.Reason,
		rec.IssuedAt, rec.ExpiresAt, rec.Active, string(rec.OriginPlatform),
	).Scan(&rec.ID)
	return classify(err)
}

// FindRecentRecord returns the newest record matching q, or ErrNotFound.
func (s *PostgresStore) FindRecentRecord(ctx context.Context, q RecordQuery) (*model.ModerationRecord, error) {
	r, err := scanRecord(s.pool.QueryRow(ctx,
		`SELECT `+recordColumns+` FROM moderation_log
		 WHERE target_id = $1
		   AND action_type = ANY($2::text[])
		   AND origin_platform = $3
		   AND issued_at >= $4
		   AND (active OR NOT $5)
		 ORDER BY issued_at DESC, id DESC
		 LIMIT 1`,
		q.TargetID, actionStrings(q.Actions), string(q.Origin), q.Since, q.ActiveOnly,
	))
	if err != nil {
		return nil, classify(err)
	}
	return r, nil
}

func (s *PostgresStore) RecordReversal(ctx context.Context, rec *model.ModerationRecord, lifts []model.ActionType) (int64, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, classify(err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx,
		`UPDATE moderation_log SET active = FALSE
		 WHERE target_id = $1 AND active AND action_type = ANY($2::text[])`,
		rec.TargetID, actionStrings(lifts),
	)
	if err != nil {
		return 0, classify(err)
	}
	if err := insertRecord(ctx, tx, rec); err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, classify(err)
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) ExpireRecords(ctx context.Context, now time.Time) ([]model.ModerationRecord, error) {
	rows, err := s.pool.Query(ctx,
		`UPDATE moderation_log SET active = FALSE
		 WHERE active AND expires_at IS NOT NULL AND expires_at <= $1
		 RETURNING `+recordColumns, now,
	)
	if err != nil {
		return nil, classify(err)
	}
	return collectRecords(rows)
}

// ListRecords returns a target's history, newest first.
func (s *PostgresStore) ListRecords(ctx context.Context, targetID string, limit int) ([]model.ModerationRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+recordColumns+` FROM moderation_log
		 WHERE target_id = $1 ORDER BY issued_at DESC, id DESC LIMIT $2`,
		targetID, clampLimit(limit),
	)
	if err != nil {
		return nil, classify(err)
	}
	return collectRecords(rows)
}

func (s *PostgresStore) LastRecordByActor(ctx context.Context, actorID string, action model.ActionType) (*model.ModerationRecord, error) {
	r, err := scanRecord(s.pool.QueryRow(ctx,
		`SELECT `+recordColumns+` FROM moderation_log
		 WHERE actor_id = $1 AND action_type = $2
		 ORDER BY issued_at DESC, id DESC LIMIT 1`,
		actorID, string(action),
	))
	if err != nil {
		return nil, classify(err)
	}
	return r, nil
}

func (s *PostgresStore) CountActive(ctx context.Context, targetID string, action model.ActionType) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM moderation_log WHERE target_id = $1 AND active AND action_type = $2`,
		targetID, string(action),
	).Scan(&n)
	return n, classify(err)
}

package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ahmadisoggg/XDiscordUltimate-sub000/internal/model"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

// SQLiteStore implements Store on a single SQLite file for servers that run
// without Postgres. Writes are serialised through one connection.
type SQLiteStore struct {
	db     *gorm.DB
	logger *zap.Logger
}

var _ Store = (*SQLiteStore)(nil)

// OpenSQLite opens (creating if needed) the database file at path and
// migrates the schema.
func OpenSQLite(path string, logger *zap.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                 gormlogger.Discard,
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db, logger: logger}
	for _, m := range []any{&accountLinkRow{}, &verificationCodeRow{}, &moderationRow{}} {
		logger.Debug("migrating sqlite table", zap.String("model", fmt.Sprintf("%T", m)))
		if err := db.AutoMigrate(m); err != nil {
			return nil, fmt.Errorf("migrate %T: %w", m, err)
		}
	}
	return s, nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqliteError(sqlDB.PingContext(ctx))
}

func (s *SQLiteStore) Close() {
	if sqlDB, err := s.db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			s.logger.Warn("closing sqlite store", zap.Error(err))
		}
	}
}

func sqliteError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	msg := err.Error()
	if errors.Is(err, sql.ErrConnDone) || errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled) ||
		strings.Contains(msg, "database is locked") || strings.Contains(msg, "SQLITE_BUSY") ||
		strings.Contains(msg, "database is closed") {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return err
}

// --- account links ---

type accountLinkRow struct {
	MinecraftID   string    `gorm:"column:minecraft_id;primaryKey;size:36"`
	DiscordID     string    `gorm:"column:discord_id;size:32;not null;uniqueIndex:idx_account_links_discord_id"`
	MinecraftName string    `gorm:"column:minecraft_name;size:16;not null;index:idx_account_links_minecraft_name"`
	DiscordName   string    `gorm:"column:discord_name;not null;default:''"`
	LinkedAt      time.Time `gorm:"column:linked_at;not null"`
}

func (accountLinkRow) TableName() string { return "account_links" }

func (r *accountLinkRow) toModel() (*model.AccountLink, error) {
	id, err := uuid.Parse(r.MinecraftID)
	if err != nil {
		return nil, fmt.Errorf("corrupt minecraft id %q: %w", r.MinecraftID, err)
	}
	return &model.AccountLink{
		MinecraftID:   id,
		DiscordID:     r.DiscordID,
		MinecraftName: r.MinecraftName,
		DiscordName:   r.DiscordName,
		LinkedAt:      r.LinkedAt.UTC(),
	}, nil
}

func (s *SQLiteStore) findLink(ctx context.Context, query string, args ...any) (*model.AccountLink, error) {
	var row accountLinkRow
	if err := s.db.WithContext(ctx).Where(query, args...).Order("linked_at DESC").First(&row).Error; err != nil {
		return nil, sqliteError(err)
	}
	return row.toModel()
}

func (s *SQLiteStore) GetLinkByMinecraftID(ctx context.Context, id uuid.UUID) (*model.AccountLink, error) {
	return s.findLink(ctx, "minecraft_id = ?", id.String())
}

func (s *SQLiteStore) GetLinkByDiscordID(ctx context.Context, discordID string) (*model.AccountLink, error) {
	return s.findLink(ctx, "discord_id = ?", discordID)
}

func (s *SQLiteStore) GetLinkByMinecraftName(ctx context.Context, name string) (*model.AccountLink, error) {
	return s.findLink(ctx, "LOWER(minecraft_name) = LOWER(?)", name)
}

// --- verification codes ---

type verificationCodeRow struct {
	DiscordID   string    `gorm:"column:discord_id;primaryKey;size:32"`
	Code        string    `gorm:"column:code;size:16;not null;uniqueIndex:idx_verification_codes_code"`
	DisplayName string    `gorm:"column:display_name;not null;default:''"`
	IssuedAt    time.Time `gorm:"column:issued_at;not null"`
	ExpiresAt   time.Time `gorm:"column:expires_at;not null;index:idx_verification_codes_expires_at"`
}

func (verificationCodeRow) TableName() string { return "verification_codes" }

func (r *verificationCodeRow) toModel() *model.VerificationCode {
	return &model.VerificationCode{
		Code:        r.Code,
		DiscordID:   r.DiscordID,
		DisplayName: r.DisplayName,
		IssuedAt:    r.IssuedAt.UTC(),
		ExpiresAt:   r.ExpiresAt.UTC(),
	}
}

func (s *SQLiteStore) ReplaceCode(ctx context.Context, code *model.VerificationCode) error {
	row := verificationCodeRow{
		DiscordID:   code.DiscordID,
		Code:        code.Code,
		DisplayName: code.DisplayName,
		IssuedAt:    code.IssuedAt.UTC(),
		ExpiresAt:   code.ExpiresAt.UTC(),
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("code = ? AND expires_at <= ?", row.Code, row.IssuedAt).
			Delete(&verificationCodeRow{}).Error; err != nil {
			return err
		}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "discord_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"code", "display_name", "issued_at", "expires_at"}),
		}).Create(&row).Error
	})
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: verification_codes.code") {
			return ErrCodeTaken
		}
		return sqliteError(err)
	}
	return nil
}

func (s *SQLiteStore) GetCodeByDiscordID(ctx context.Context, discordID string) (*model.VerificationCode, error) {
	var row verificationCodeRow
	if err := s.db.WithContext(ctx).Where("discord_id = ?", discordID).First(&row).Error; err != nil {
		return nil, sqliteError(err)
	}
	return row.toModel(), nil
}

func (s *SQLiteStore) RedeemCode(ctx context.Context, code string, now time.Time, link *model.AccountLink) (*model.AccountLink, error) {
	tx := s.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, tx.Error)
	}
	defer tx.Rollback()

	var row verificationCodeRow
	if err := tx.Where("code = ?", code).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCodeNotFound
		}
		return nil, sqliteError(err)
	}
	res := tx.Where("discord_id = ? AND code = ?", row.DiscordID, row.Code).Delete(&verificationCodeRow{})
	if res.Error != nil {
		return nil, sqliteError(res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrCodeNotFound
	}

	vc := row.toModel()
	if vc.Expired(now) {
		if err := tx.Commit().Error; err != nil {
			return nil, sqliteError(err)
		}
		return nil, ErrCodeExpired
	}

	out := *link
	out.DiscordID = vc.DiscordID
	out.DiscordName = vc.DisplayName
	out.LinkedAt = now.UTC()

	if err := tx.Where("discord_id = ? AND minecraft_id <> ?", out.DiscordID, out.MinecraftID.String()).
		Delete(&accountLinkRow{}).Error; err != nil {
		return nil, sqliteError(err)
	}
	linkRow := accountLinkRow{
		MinecraftID:   out.MinecraftID.String(),
		DiscordID:     out.DiscordID,
		MinecraftName: out.MinecraftName,
		DiscordName:   out.DiscordName,
		LinkedAt:      out.LinkedAt,
	}
	if err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "minecraft_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"discord_id", "minecraft_name", "discord_name", "linked_at"}),
	}).Create(&linkRow).Error; err != nil {
		return nil, fmt.Errorf("write link: %w", sqliteError(err))
	}
	if err := tx.Commit().Error; err != nil {
		return nil, sqliteError(err)
	}
	return &out, nil
}

func (s *SQLiteStore) DeleteExpiredCodes(ctx context.Context, now time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Where("expires_at <= ?", now.UTC()).Delete(&verificationCodeRow{})
	if res.Error != nil {
		return 0, sqliteError(res.Error)
	}
	return res.RowsAffected, nil
}

// --- moderation log ---

type moderationRow struct {
	ID             int64      `gorm:"column:id;primaryKey;autoIncrement"`
	ActionType     string     `gorm:"column:action_type;size:16;not null"`
	TargetID       string     `gorm:"column:target_id;size:64;not null;index:idx_moderation_log_target_active,priority:1"`
	ActorID        *string    `gorm:"column:actor_id;size:64;index:idx_moderation_log_actor"`
	Reason         string     `gorm:"column:reason;not null;default:''"`
	IssuedAt       time.Time  `gorm:"column:issued_at;not null"`
	ExpiresAt      *time.Time `gorm:"column:expires_at"`
	Active         bool       `gorm:"column:active;not null;index:idx_moderation_log_target_active,priority:2"`
	OriginPlatform string     `gorm:"column:origin_platform;size:8;not null"`
}

func (moderationRow) TableName() string { return "moderation_log" }

func (r *moderationRow) toModel() model.ModerationRecord {
	rec := model.ModerationRecord{
		ID:             r.ID,
		ActionType:     model.ActionType(r.ActionType),
		TargetID:       r.TargetID,
		ActorID:        r.ActorID,
		Reason:         r.Reason,
		IssuedAt:       r.IssuedAt.UTC(),
		Active:         r.Active,
		OriginPlatform: model.Platform(r.OriginPlatform),
	}
	if r.ExpiresAt != nil {
		t := r.ExpiresAt.UTC()
		rec.ExpiresAt = &t
	}
	return rec
}

func newModerationRow(rec *model.ModerationRecord) moderationRow {
	row := moderationRow{
		ActionType:     string(rec.ActionType),
		TargetID:       rec.TargetID,
		ActorID:        rec.ActorID,
		Reason:         rec.Reason,
		IssuedAt:       rec.IssuedAt.UTC(),
		Active:         rec.Active,
		OriginPlatform: string(rec.OriginPlatform),
	}
	if rec.ExpiresAt != nil {
		t := rec.ExpiresAt.UTC()
		row.ExpiresAt = &t
	}
	return row
}

func (s *SQLiteStore) CreateRecord(ctx context.Context, rec *model.ModerationRecord) error {
	row := newModerationRow(rec)
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return sqliteError(err)
	}
	rec.ID = row.ID
	return nil
}

func (s *SQLiteStore) FindRecentRecord(ctx context.Context, q RecordQuery) (*model.ModerationRecord, error) {
	query := s.db.WithContext(ctx).
		Where("target_id = ? AND action_type IN ? AND origin_platform = ? AND issued_at >= ?",
			q.TargetID, actionStrings(q.Actions), string(q.Origin), q.Since.UTC())
	if q.ActiveOnly {
		query = query.Where("active = ?", true)
	}
	var row moderationRow
	if err := query.Order("issued_at DESC").Order("id DESC").First(&row).Error; err != nil {
		return nil, sqliteError(err)
	}
	rec := row.toModel()
	return &rec, nil
}

func (s *SQLiteStore) RecordReversal(ctx context.Context, rec *model.ModerationRecord, lifts []model.ActionType) (int64, error) {
	var lifted int64
	row := newModerationRow(rec)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&moderationRow{}).
			Where("target_id = ? AND active = ? AND action_type IN ?", rec.TargetID, true, actionStrings(lifts)).
			Update("active", false)
		if res.Error != nil {
			return res.Error
		}
		lifted = res.RowsAffected
		return tx.Create(&row).Error
	})
	if err != nil {
		return 0, sqliteError(err)
	}
	rec.ID = row.ID
	return lifted, nil
}

func (s *SQLiteStore) ExpireRecords(ctx context.Context, now time.Time) ([]model.ModerationRecord, error) {
	var rows []moderationRow
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("active = ? AND expires_at IS NOT NULL AND expires_at <= ?", true, now.UTC()).
			Order("id").Find(&rows).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		ids := make([]int64, len(rows))
		for i := range rows {
			ids[i] = rows[i].ID
			rows[i].Active = false
		}
		return tx.Model(&moderationRow{}).Where("id IN ?", ids).Update("active", false).Error
	})
	if err != nil {
		return nil, sqliteError(err)
	}
	out := make([]model.ModerationRecord, len(rows))
	for i := range rows {
		out[i] = rows[i].toModel()
	}
	return out, nil
}

func (s *SQLiteStore) ListRecords(ctx context.Context, targetID string, limit int) ([]model.ModerationRecord, error) {
	var rows []moderationRow
	if err := s.db.WithContext(ctx).Where("target_id = ?", targetID).
		Order("issued_at DESC").Order("id DESC").Limit(clampLimit(limit)).Find(&rows).Error; err != nil {
		return nil, sqliteError(err)
	}
	out := make([]model.ModerationRecord, len(rows))
	for i := range rows {
		out[i] = rows[i].toModel()
	}
	return out, nil
}

func (s *SQLiteStore) LastRecordByActor(ctx context.Context, actorID string, action model.ActionType) (*model.ModerationRecord, error) {
	var row moderationRow
	if err := s.db.WithContext(ctx).Where("actor_id = ? AND action_type = ?", actorID, string(action)).
		Order("issued_at DESC").Order("id DESC").First(&row).Error; err != nil {
		return nil, sqliteError(err)
	}
	rec := row.toModel()
	return &rec, nil
}

func (s *SQLiteStore) CountActive(ctx context.Context, targetID string, action model.ActionType) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&moderationRow{}).
		Where("target_id = ? AND active = ? AND action_type = ?", targetID, true, string(action)).
		Count(&n).Error
	return n, sqliteError(err)
}

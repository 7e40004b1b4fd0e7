package discord

import (
	"context"
	"time"

	"github.com/ahmadisoggg/XDiscordUltimate-sub000/internal/service"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// ChatModeration is the Discord-facing side of the moderation bridge.
type ChatModeration interface {
	OnChatBanEvent(ctx context.Context, chatID, reason, actorID string) (service.Outcome, error)
	OnChatUnbanEvent(ctx context.Context, chatID string) (service.Outcome, error)
	OnChatTimeoutChanged(ctx context.Context, chatID string, expiry *time.Time) (service.Outcome, error)
	OnChatRoleChanged(ctx context.Context, chatID, roleName string, added bool) (service.Outcome, error)
}

// GuildEvents turns gateway events into bridge calls.
type GuildEvents struct {
	api     guildAPI
	guildID string
	bridge  ChatModeration
	roles   *Roles
	logger  *zap.Logger
	now     func() time.Time
}

func NewGuildEvents(api guildAPI, guildID string, bridge ChatModeration, roles *Roles, logger *zap.Logger) *GuildEvents {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GuildEvents{api: api, guildID: guildID, bridge: bridge, roles: roles, logger: logger, now: time.Now}
}

func (g *GuildEvents) OnBanAdd(ctx context.Context, e *discordgo.GuildBanAdd) {
	if e.GuildID != g.guildID || e.User == nil {
		return
	}
	actor, reason := g.banAudit(e.User.ID)
	g.outcome("ban", e.User.ID)(g.bridge.OnChatBanEvent(ctx, e.User.ID, reason, actor))
}

func (g *GuildEvents) OnBanRemove(ctx context.Context, e *discordgo.GuildBanRemove) {
	if e.GuildID != g.guildID || e.User == nil {
		return
	}
	g.outcome("unban", e.User.ID)(g.bridge.OnChatUnbanEvent(ctx, e.User.ID))
}

// OnMemberUpdate diffs the member against its cached state. Without a
// cached copy there is nothing to diff against and the update is skipped.
func (g *GuildEvents) OnMemberUpdate(ctx context.Context, e *discordgo.GuildMemberUpdate) {
	if e.Member == nil || e.GuildID != g.guildID || e.User == nil {
		return
	}
	if e.BeforeUpdate == nil {
		g.logger.Debug("member update without cached state", zap.String("discord_id", e.User.ID))
		return
	}
	id := e.User.ID
	now := g.now()

	before, after := e.BeforeUpdate.CommunicationDisabledUntil, e.Member.CommunicationDisabledUntil
	wasTimedOut, isTimedOut := activeUntil(before, now), activeUntil(after, now)
	switch {
	case isTimedOut && (!wasTimedOut || !before.Equal(*after)):
		g.outcome("timeout", id)(g.bridge.OnChatTimeoutChanged(ctx, id, after))
	case wasTimedOut && !isTimedOut:
		g.outcome("timeout cleared", id)(g.bridge.OnChatTimeoutChanged(ctx, id, nil))
	}

	added, removed := diffRoles(e.BeforeUpdate.Roles, e.Member.Roles)
	for _, roleID := range added {
		if name := g.roles.Name(roleID); name != "" {
			g.outcome("role added", id)(g.bridge.OnChatRoleChanged(ctx, id, name, true))
		}
	}
	for _, roleID := range removed {
		if name := g.roles.Name(roleID); name != "" {
			g.outcome("role removed", id)(g.bridge.OnChatRoleChanged(ctx, id, name, false))
		}
	}
}

// banAudit looks up who banned target and why. The gateway event carries
// neither, so this is best effort; the newest matching entry from the last
// minute wins.
func (g *GuildEvents) banAudit(target string) (actor, reason string) {
	log, err := g.api.GuildAuditLog(g.guildID, "", "", int(discordgo.AuditLogActionMemberBanAdd), 10)
	if err != nil {
		g.logger.Debug("audit log lookup failed", zap.String("discord_id", target), zap.Error(err))
		return "", ""
	}
	cutoff := g.now().Add(-time.Minute)
	for _, entry := range log.AuditLogEntries {
		if entry == nil || entry.TargetID != target {
			continue
		}
		if at, err := discordgo.SnowflakeTimestamp(entry.ID); err == nil && at.Before(cutoff) {
			continue
		}
		return entry.UserID, entry.Reason
	}
	return "", ""
}

func (g *GuildEvents) outcome(event, chatID string) func(service.Outcome, error) {
	return func(out service.Outcome, err error) {
		if err != nil {
			g.logger.Error("chat moderation event failed", zap.String("event", event), zap.String("discord_id", chatID), zap.Error(err))
			return
		}
		g.logger.Debug("chat moderation event", zap.String("event", event), zap.String("discord_id", chatID), zap.String("outcome", string(out)))
	}
}

func activeUntil(t *time.Time, now time.Time) bool {
	return t != nil && t.After(now)
}

func diffRoles(before, after []string) (added, removed []string) {
	had := make(map[string]bool, len(before))
	for _, r := range before {
		had[r] = true
	}
	has := make(map[string]bool, len(after))
	for _, r := range after {
		has[r] = true
		if !had[r] {
			added = append(added, r)
		}
	}
	for _, r := range before {
		if !has[r] {
			removed = append(removed, r)
		}
	}
	return added, removed
}

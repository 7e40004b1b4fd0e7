package discord

import (
	"context"
	"fmt"
	"time"

	"github.com/ahmadisoggg/XDiscordUltimate-sub000/internal/service"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// ChatAdapter applies bridge decisions to the Discord guild.
type ChatAdapter struct {
	api     guildAPI
	guildID string
	roles   *Roles
	logger  *zap.Logger
}

var _ service.ChatActions = (*ChatAdapter)(nil)

func NewChatAdapter(api guildAPI, guildID string, roles *Roles, logger *zap.Logger) *ChatAdapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if roles == nil {
		roles = NewRoles(api, guildID, logger)
	}
	return &ChatAdapter{api: api, guildID: guildID, roles: roles, logger: logger}
}

func (a *ChatAdapter) BanUser(_ context.Context, chatID, reason string) error {
	if err := a.api.GuildBanCreateWithReason(a.guildID, chatID, auditReason(reason), 0); err != nil {
		return fmt.Errorf("ban %s: %w", chatID, err)
	}
	return nil
}

func (a *ChatAdapter) UnbanUser(_ context.Context, chatID string) error {
	if err := a.api.GuildBanDelete(a.guildID, chatID); err != nil {
		return fmt.Errorf("unban %s: %w", chatID, err)
	}
	return nil
}

func (a *ChatAdapter) KickUser(_ context.Context, chatID, reason string) error {
	if err := a.api.GuildMemberDeleteWithReason(a.guildID, chatID, auditReason(reason)); err != nil {
		return fmt.Errorf("kick %s: %w", chatID, err)
	}
	return nil
}

func (a *ChatAdapter) TimeoutUser(_ context.Context, chatID, reason string, duration time.Duration) error {
	until := time.Now().Add(duration)
	if err := a.api.GuildMemberTimeout(a.guildID, chatID, &until, discordgo.WithAuditLogReason(auditReason(reason))); err != nil {
		return fmt.Errorf("timeout %s: %w", chatID, err)
	}
	return nil
}

func (a *ChatAdapter) ClearTimeout(_ context.Context, chatID string) error {
	if err := a.api.GuildMemberTimeout(a.guildID, chatID, nil); err != nil {
		return fmt.Errorf("clear timeout %s: %w", chatID, err)
	}
	return nil
}

func (a *ChatAdapter) AddRole(_ context.Context, chatID, roleName string) error {
	roleID, err := a.roles.ID(roleName)
	if err != nil {
		return err
	}
	if err := a.api.GuildMemberRoleAdd(a.guildID, chatID, roleID); err != nil {
		return fmt.Errorf("add role %s to %s: %w", roleName, chatID, err)
	}
	return nil
}

func (a *ChatAdapter) RemoveRole(_ context.Context, chatID, roleName string) error {
	roleID, err := a.roles.ID(roleName)
	if err != nil {
		return err
	}
	if err := a.api.GuildMemberRoleRemove(a.guildID, chatID, roleID); err != nil {
		return fmt.Errorf("remove role %s from %s: %w", roleName, chatID, err)
	}
	return nil
}

func (a *ChatAdapter) SendDirectMessage(_ context.Context, chatID, text string) error {
	ch, err := a.api.UserChannelCreate(chatID)
	if err != nil {
		return fmt.Errorf("open dm with %s: %w", chatID, err)
	}
	if _, err := a.api.ChannelMessageSend(ch.ID, text); err != nil {
		return fmt.Errorf("dm %s: %w", chatID, err)
	}
	return nil
}

// Discord rejects audit log reasons over 512 characters.
func auditReason(reason string) string {
	r := []rune(reason)
	if len(r) > 512 {
		return string(r[:509]) + "..."
	}
	return reason
}

// Offline stands in for the guild when the bot is disabled. Every action
// fails with ErrDisabled so mirrors end up as failures operators can see.
type Offline struct{}

var _ service.ChatActions = Offline{}

func (Offline) BanUser(context.Context, string, string) error { return ErrDisabled }
func (Offline) UnbanUser(context.Context, string) error { return ErrDisabled }
func (Offline) KickUser(context.Context, string, string) error { return ErrDisabled }
func (Offline) TimeoutUser(context.Context, string, string, time.Duration) error { return ErrDisabled }
func (Offline) ClearTimeout(context.Context, string) error { return ErrDisabled }
func (Offline) AddRole(context.Context, string, string) error { return ErrDisabled }
func (Offline) RemoveRole(context.Context, string, string) error { return ErrDisabled }
func (Offline) SendDirectMessage(context.Context, string, string) error { return ErrDisabled }

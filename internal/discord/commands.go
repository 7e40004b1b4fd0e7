package discord

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ahmadisoggg/XDiscordUltimate-sub000/internal/model"
	"github.com/ahmadisoggg/XDiscordUltimate-sub000/internal/service"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

const embedColor = 0x5865F2

type CodeIssuer interface {
	IssueCode(ctx context.Context, discordID, displayName string) (*model.VerificationCode, error)
	PendingCode(ctx context.Context, discordID string) (*model.VerificationCode, error)
}

type LinkResolver interface {
	ResolveDiscord(ctx context.Context, discordID string) (*model.AccountLink, error)
}

type Reporter interface {
	FileReport(ctx context.Context, reporterChatID, targetName, reason string) (*model.ModerationRecord, error)
}

// CommandHandler processes bot prefix commands.
type CommandHandler struct {
	api     guildAPI
	prefix  string
	codes   CodeIssuer
	links   LinkResolver
	reports Reporter
	logger  *zap.Logger
}

func NewCommandHandler(api guildAPI, prefix string, codes CodeIssuer, links LinkResolver, reports Reporter, logger *zap.Logger) *CommandHandler {
	if prefix == "" {
		prefix = "!"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CommandHandler{api: api, prefix: prefix, codes: codes, links: links, reports: reports, logger: logger}
}

// Handle dispatches a prefix command. Messages without the prefix are
// ignored.
func (h *CommandHandler) Handle(ctx context.Context, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot || !strings.HasPrefix(m.Content, h.prefix) {
		return
	}
	parts := strings.Fields(strings.TrimPrefix(m.Content, h.prefix))
	if len(parts) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	switch strings.ToLower(parts[0]) {
	case "link":
		h.cmdLink(ctx, m)
	case "linked":
		h.cmdLinked(ctx, m)
	case "report":
		if len(parts) < 3 {
			h.reply(m.ChannelID, fmt.Sprintf("Usage: `%sreport <player> <reason>`", h.prefix))
			return
		}
		h.cmdReport(ctx, m, parts[1], strings.Join(parts[2:], " "))
	case "help":
		h.cmdHelp(m)
	}
}

// cmdLink DMs the caller's live code, issuing one only when none is pending.
func (h *CommandHandler) cmdLink(ctx context.Context, m *discordgo.MessageCreate) {
	code, err := h.codes.PendingCode(ctx, m.Author.ID)
	if err != nil {
		h.logger.Warn("pending code lookup failed", zap.String("discord_id", m.Author.ID), zap.Error(err))
		code = nil
	}
	resend := code != nil
	if !resend {
		code, err = h.codes.IssueCode(ctx, m.Author.ID, displayName(m.Author))
		if errors.Is(err, service.ErrAlreadyLinked) {
			h.cmdLinked(ctx, m)
			return
		}
		if err != nil {
			h.logger.Error("issue code failed", zap.String("discord_id", m.Author.ID), zap.Error(err))
			h.reply(m.ChannelID, "Could not create a link code right now. Try again in a moment.")
			return
		}
	}

	expiry := fmt.Sprintf("The code expires in %s.", humanDuration(code.ExpiresAt.Sub(code.IssuedAt)))
	if resend {
		expiry = fmt.Sprintf("The code expires <t:%d:R>.", code.ExpiresAt.Unix())
	}
	embed := &discordgo.MessageEmbed{
		Title: "Link your Minecraft account",
		Description: fmt.Sprintf("Your link code: **%s**\n\nJoin the server and type:\n`/link %s`\n\n%s",
			code.Code, code.Code, expiry),
		Color: embedColor,
	}

	// Codes are never posted in a public channel.
	ch, err := h.api.UserChannelCreate(m.Author.ID)
	if err == nil {
		_, err = h.api.ChannelMessageSendEmbed(ch.ID, embed)
	}
	if err != nil {
		h.logger.Warn("link code dm failed", zap.String("discord_id", m.Author.ID), zap.Error(err))
		h.reply(m.ChannelID, "I couldn't DM you your code. Enable direct messages from server members and try again.")
		return
	}
	if resend {
		h.reply(m.ChannelID, "You already have a link code. I sent it to you again in a direct message.")
		return
	}
	h.reply(m.ChannelID, "Link code sent in a direct message!")
}

func (h *CommandHandler) cmdLinked(ctx context.Context, m *discordgo.MessageCreate) {
	link, err := h.links.ResolveDiscord(ctx, m.Author.ID)
	if err != nil {
		h.logger.Error("resolve link failed", zap.String("discord_id", m.Author.ID), zap.Error(err))
		h.reply(m.ChannelID, "Could not look up your link right now.")
		return
	}
	if link == nil {
		if code, err := h.codes.PendingCode(ctx, m.Author.ID); err == nil && code != nil {
			h.reply(m.ChannelID, fmt.Sprintf("Your Discord account is not linked yet. Your link code expires <t:%d:R>; check your direct messages.",
				code.ExpiresAt.Unix()))
			return
		}
		h.reply(m.ChannelID, fmt.Sprintf("Your Discord account is not linked. Use `%slink` to get a code.", h.prefix))
		return
	}
	h.embed(m.ChannelID, &discordgo.MessageEmbed{
		Title: "Linked account",
		Color: embedColor,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Minecraft", Value: link.MinecraftName, Inline: true},
			{Name: "Linked", Value: fmt.Sprintf("<t:%d:R>", link.LinkedAt.Unix()), Inline: true},
		},
	})
}

func (h *CommandHandler) cmdReport(ctx context.Context, m *discordgo.MessageCreate, target, reason string) {
	rec, err := h.reports.FileReport(ctx, m.Author.ID, target, reason)
	switch {
	case errors.Is(err, service.ErrUnknownIdentity):
		h.reply(m.ChannelID, fmt.Sprintf("`%s` is not a valid player name.", target))
	case errors.Is(err, service.ErrReportCooldown):
		h.reply(m.ChannelID, "You filed a report recently. Please wait before sending another.")
	case err != nil:
		h.logger.Error("file report failed", zap.String("reporter", m.Author.ID), zap.Error(err))
		h.reply(m.ChannelID, "Could not file your report right now.")
	default:
		h.reply(m.ChannelID, fmt.Sprintf("Report #%d against **%s** sent to the staff team.", rec.ID, target))
	}
}

func (h *CommandHandler) cmdHelp(m *discordgo.MessageCreate) {
	p := h.prefix
	h.embed(m.ChannelID, &discordgo.MessageEmbed{
		Title: "Commands",
		Color: embedColor,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "`" + p + "link`", Value: "Get a code to link your Minecraft account"},
			{Name: "`" + p + "linked`", Value: "Show the Minecraft account linked to you"},
			{Name: "`" + p + "report <player> <reason>`", Value: "Report a player to the staff"},
			{Name: "`" + p + "help`", Value: "Show this help"},
		},
	})
}

func (h *CommandHandler) reply(channelID, text string) {
	if _, err := h.api.ChannelMessageSend(channelID, text); err != nil {
		h.logger.Warn("reply failed", zap.String("channel", channelID), zap.Error(err))
	}
}

func (h *CommandHandler) embed(channelID string, e *discordgo.MessageEmbed) {
	if _, err := h.api.ChannelMessageSendEmbed(channelID, e); err != nil {
		h.logger.Warn("reply failed", zap.String("channel", channelID), zap.Error(err))
	}
}

func displayName(u *discordgo.User) string {
	if u.GlobalName != "" {
		return u.GlobalName
	}
	return u.Username
}

func humanDuration(d time.Duration) string {
	switch {
	case d >= time.Hour && d%time.Hour == 0:
		return plural(int(d/time.Hour), "hour")
	case d >= time.Minute:
		return plural(int(d.Round(time.Minute)/time.Minute), "minute")
	default:
		return plural(int(d.Round(time.Second)/time.Second), "second")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

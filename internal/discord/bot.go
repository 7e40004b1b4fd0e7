package discord

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// ErrDisabled is returned by Offline when no bot token is configured.
var ErrDisabled = errors.New("discord bot disabled")

// NewSession creates the bot session. It is not connected until Bot.Start.
func NewSession(token string) (*discordgo.Session, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("discord session: %w", err)
	}
	s.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsGuildBans |
		discordgo.IntentsDirectMessages |
		discordgo.IntentsMessageContent
	// Member updates are diffed against the cached copy.
	s.State.TrackMembers = true
	s.State.TrackRoles = true
	return s, nil
}

// Bot manages the Discord gateway lifecycle and event dispatch.
type Bot struct {
	session  *discordgo.Session
	commands *CommandHandler
	events   *GuildEvents
	logger   *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

func NewBot(session *discordgo.Session, commands *CommandHandler, events *GuildEvents, logger *zap.Logger) *Bot {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	b := &Bot{
		session:  session,
		commands: commands,
		events:   events,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
	}

	session.AddHandler(b.onMessageCreate)
	session.AddHandler(func(_ *discordgo.Session, e *discordgo.GuildBanAdd) { b.events.OnBanAdd(b.ctx, e) })
	session.AddHandler(func(_ *discordgo.Session, e *discordgo.GuildBanRemove) { b.events.OnBanRemove(b.ctx, e) })
	session.AddHandler(func(_ *discordgo.Session, e *discordgo.GuildMemberUpdate) { b.events.OnMemberUpdate(b.ctx, e) })
	session.AddHandler(func(_ *discordgo.Session, r *discordgo.Ready) {
		b.logger.Info("gateway ready", zap.String("user", r.User.Username), zap.Int("guilds", len(r.Guilds)))
	})
	return b
}

// Start opens the Discord gateway connection.
func (b *Bot) Start() error {
	if b == nil || b.session == nil {
		return nil
	}
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("open discord gateway: %w", err)
	}
	b.logger.Info("bot connected to Discord")
	return nil
}

// Stop closes the Discord gateway connection.
func (b *Bot) Stop() {
	if b == nil || b.session == nil {
		return
	}
	b.cancel()
	_ = b.session.Close()
	b.logger.Info("bot disconnected")
}

func (b *Bot) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if s.State != nil && s.State.User != nil && m.Author != nil && m.Author.ID == s.State.User.ID {
		return
	}
	b.commands.Handle(b.ctx, m)
}

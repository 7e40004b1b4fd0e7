package discord

import (
	"context"
	"sync"
	"time"

	"github.com/ahmadisoggg/XDiscordUltimate-sub000/internal/service"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

var alertColors = map[service.AlertLevel]int{
	service.AlertInfo:    0x3498DB,
	service.AlertWarning: 0xF1C40F,
	service.AlertError:   0xE74C3C,
}

// ChannelNotifier posts operator alerts to a staff channel through the bot.
type ChannelNotifier struct {
	api       guildAPI
	channelID string
	logger    *zap.Logger
	wg        sync.WaitGroup
}

var _ service.OperatorNotifier = (*ChannelNotifier)(nil)

func NewChannelNotifier(api guildAPI, channelID string, logger *zap.Logger) *ChannelNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChannelNotifier{api: api, channelID: channelID, logger: logger}
}

func (n *ChannelNotifier) NotifyOperators(_ context.Context, alert service.OperatorAlert) {
	embed := &discordgo.MessageEmbed{
		Title:       alert.Title,
		Description: alert.Detail,
		Color:       alertColors[alert.Level],
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
	}
	for _, f := range alert.Fields {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: f.Name, Value: f.Value, Inline: true})
	}

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		if _, err := n.api.ChannelMessageSendEmbed(n.channelID, embed); err != nil {
			n.logger.Warn("operator alert not delivered", zap.String("title", alert.Title), zap.Error(err))
		}
	}()
}

// Close waits for alerts still being sent.
func (n *ChannelNotifier) Close() {
	n.wg.Wait()
}

package service

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

// WebhookNotifier posts operator alerts as embeds to a Discord webhook.
type WebhookNotifier struct {
	webhookURL string
	username   string
	client     *http.Client
	logger     *zap.Logger
	inflight   sync.WaitGroup
}

func NewWebhookNotifier(webhookURL string, logger *zap.Logger) *WebhookNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookNotifier{
		webhookURL: webhookURL,
		username:   "Link Bridge",
		client:     &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
	}
}

// discordEmbed is a Discord webhook embed.
type discordEmbed struct {
	Title       string         `json:"title,omitempty"`
	Description string         `json:"description,omitempty"`
	Color       int            `json:"color,omitempty"`
	Fields      []discordField `json:"fields,omitempty"`
	Footer      *discordFooter `json:"footer,omitempty"`
	Timestamp   string         `json:"timestamp,omitempty"`
}

type discordField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

type discordFooter struct {
	Text string `json:"text"`
}

type discordWebhookPayload struct {
	Username string         `json:"username,omitempty"`
	Embeds   []discordEmbed `json:"embeds"`
}

var alertColors = map[AlertLevel]int{
	AlertInfo:    0x3498DB, // Blue
	AlertWarning: 0xF1C40F, // Gold
	AlertError:   0xE74C3C, // Red
}

func (s *WebhookNotifier) NotifyOperators(_ context.Context, alert OperatorAlert) {
	fields := make([]discordField, 0, len(alert.Fields))
	for _, f := range alert.Fields {
		if f.Value == "" {
			continue
		}
		fields = append(fields, discordField{Name: f.Name, Value: f.Value, Inline: true})
	}
	s.send(discordWebhookPayload{
		Username: s.username,
		Embeds: []discordEmbed{{
			Title:       alert.Title,
			Description: alert.Detail,
			Color:       alertColors[alert.Level],
			Fields:      fields,
			Timestamp:   time.Now().UTC().Format(time.RFC3339),
			Footer:      &discordFooter{Text: s.username},
		}},
	})
}

// Close waits for alerts that are still being delivered.
func (s *WebhookNotifier) Close() {
	s.inflight.Wait()
}

func (s *WebhookNotifier) send(payload discordWebhookPayload) {
	if s.webhookURL == "" {
		return
	}
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		body, err := json.Marshal(payload)
		if err != nil {
			s.logger.Warn("webhook marshal error", zap.Error(err))
			return
		}
		resp, err := s.client.Post(s.webhookURL, "application/json", bytes.NewReader(body))
		if err != nil {
			s.logger.Warn("webhook send error", zap.Error(err))
			return
		}
		resp.Body.Close()
		if resp.StatusCode >= 400 {
			s.logger.Warn("webhook rejected alert", zap.Int("status", resp.StatusCode))
		}
	}()
}

// MultiNotifier fans an alert out to several notifiers.
type MultiNotifier []OperatorNotifier

func (m MultiNotifier) NotifyOperators(ctx context.Context, alert OperatorAlert) {
	for _, n := range m {
		if n != nil {
			n.NotifyOperators(ctx, alert)
		}
	}
}

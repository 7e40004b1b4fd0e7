package discord

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
)

// fakeAPI records every guild call as a short string like "ban u1 reason".
type fakeAPI struct {
	mu       sync.Mutex
	calls    []string
	roles    []*discordgo.Role
	audit    []*discordgo.AuditLogEntry
	fail     map[string]error
	rolesHit int
	embeds   []*discordgo.MessageEmbed
	messages []string
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{fail: map[string]error{}}
}

func (f *fakeAPI) record(op string, args ...any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	parts := []string{op}
	for _, a := range args {
		parts = append(parts, fmt.Sprint(a))
	}
	f.calls = append(f.calls, strings.Join(parts, " "))
	return f.fail[op]
}

func (f *fakeAPI) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeAPI) Embeds() []*discordgo.MessageEmbed {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*discordgo.MessageEmbed(nil), f.embeds...)
}

func (f *fakeAPI) Messages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.messages...)
}

func (f *fakeAPI) GuildBanCreateWithReason(_, userID, reason string, _ int, _ ...discordgo.RequestOption) error {
	return f.record("ban", userID, reason)
}

func (f *fakeAPI) GuildBanDelete(_, userID string, _ ...discordgo.RequestOption) error {
	return f.record("unban", userID)
}

func (f *fakeAPI) GuildMemberDeleteWithReason(_, userID, reason string, _ ...discordgo.RequestOption) error {
	return f.record("kick", userID, reason)
}

func (f *fakeAPI) GuildMemberTimeout(_, userID string, until *time.Time, _ ...discordgo.RequestOption) error {
	if until == nil {
		return f.record("timeout", userID, "clear")
	}
	return f.record("timeout", userID, "set")
}

func (f *fakeAPI) GuildMemberRoleAdd(_, userID, roleID string, _ ...discordgo.RequestOption) error {
	return f.record("role+", userID, roleID)
}

func (f *fakeAPI) GuildMemberRoleRemove(_, userID, roleID string, _ ...discordgo.RequestOption) error {
	return f.record("role-", userID, roleID)
}

func (f *fakeAPI) GuildRoles(string, ...discordgo.RequestOption) ([]*discordgo.Role, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rolesHit++
	if err := f.fail["roles"]; err != nil {
		return nil, err
	}
	return append([]*discordgo.Role(nil), f.roles...), nil
}

func (f *fakeAPI) GuildRoleCreate(_ string, data *discordgo.RoleParams, _ ...discordgo.RequestOption) (*discordgo.Role, error) {
	if err := f.record("role-create", data.Name); err != nil {
		return nil, err
	}
	role := &discordgo.Role{ID: "new-" + strings.ToLower(data.Name), Name: data.Name}
	f.mu.Lock()
	f.roles = append(f.roles, role)
	f.mu.Unlock()
	return role, nil
}

func (f *fakeAPI) GuildAuditLog(_, _, _ string, _, _ int, _ ...discordgo.RequestOption) (*discordgo.GuildAuditLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail["audit"]; err != nil {
		return nil, err
	}
	return &discordgo.GuildAuditLog{AuditLogEntries: f.audit}, nil
}

func (f *fakeAPI) UserChannelCreate(recipientID string, _ ...discordgo.RequestOption) (*discordgo.Channel, error) {
	if err := f.record("dm-open", recipientID); err != nil {
		return nil, err
	}
	return &discordgo.Channel{ID: "dm-" + recipientID}, nil
}

func (f *fakeAPI) ChannelMessageSend(channelID, content string, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	if err := f.record("send", channelID); err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.messages = append(f.messages, content)
	f.mu.Unlock()
	return &discordgo.Message{ChannelID: channelID, Content: content}, nil
}

func (f *fakeAPI) ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	if err := f.record("embed", channelID); err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.embeds = append(f.embeds, embed)
	f.mu.Unlock()
	return &discordgo.Message{ChannelID: channelID}, nil
}

var errDiscord = errors.New("HTTP 403 Forbidden")

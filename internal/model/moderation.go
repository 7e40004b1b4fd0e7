package model

import (
	"strings"
	"time"
)

type ActionType string

const (
	ActionBan      ActionType = "BAN"
	ActionTempBan  ActionType = "TEMPBAN"
	ActionKick     ActionType = "KICK"
	ActionMute     ActionType = "MUTE"
	ActionTempMute ActionType = "TEMPMUTE"
	ActionWarn     ActionType = "WARN"
	ActionReport   ActionType = "REPORT"
	ActionUnban    ActionType = "UNBAN"
	ActionUnmute   ActionType = "UNMUTE"
)

// Family returns the action types that describe the same effect, so a
// TEMPBAN mirrored as a plain ban on the other side is still recognised.
func (a ActionType) Family() []ActionType {
	switch a {
	case ActionBan, ActionTempBan:
		return []ActionType{ActionBan, ActionTempBan}
	case ActionMute, ActionTempMute:
		return []ActionType{ActionMute, ActionTempMute}
	default:
		return []ActionType{a}
	}
}

// IsReversal reports whether the action lifts an earlier sanction.
func (a ActionType) IsReversal() bool {
	return a == ActionUnban || a == ActionUnmute
}

// Reverses returns the family a reversal deactivates.
func (a ActionType) Reverses() []ActionType {
	switch a {
	case ActionUnban:
		return ActionBan.Family()
	case ActionUnmute:
		return ActionMute.Family()
	}
	return nil
}

type Platform string

const (
	PlatformGame Platform = "GAME"
	PlatformChat Platform = "CHAT"
)

// Opposite returns the platform a mirror of this origin is applied to.
func (p Platform) Opposite() Platform {
	if p == PlatformGame {
		return PlatformChat
	}
	return PlatformGame
}

// Label is the human-readable platform name used in sync annotations.
func (p Platform) Label() string {
	if p == PlatformGame {
		return "Minecraft"
	}
	return "Discord"
}

// ModerationRecord is one entry of the moderation log.
type ModerationRecord struct {
	ID             int64      `json:"id"`
	ActionType     ActionType `json:"action_type"`
	TargetID       string     `json:"target_id"`
	ActorID        *string    `json:"actor_id,omitempty"`
	Reason         string     `json:"reason"`
	IssuedAt       time.Time  `json:"issued_at"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	Active         bool       `json:"active"`
	OriginPlatform Platform   `json:"origin_platform"`
}

// ModerationEvent is a platform event normalised for the sync bridge.
type ModerationEvent struct {
	Action       ActionType
	Origin       Platform
	TargetName   string
	TargetChatID string
	ActorID      string
	Reason       string
	Duration     time.Duration
}

// Canonical target ids for identities without a link.
const (
	gameTargetPrefix = "mc:"
	chatTargetPrefix = "discord:"
)

func GameTargetID(name string) string {
	return gameTargetPrefix + strings.ToLower(name)
}

func ChatTargetID(chatID string) string {
	return chatTargetPrefix + chatID
}

// ModerationCommandRequest is sent by the game plugin for every moderation
// command typed by a player or the console.
type ModerationCommandRequest struct {
	Command string `json:"command"`
	Actor   string `json:"actor"`
}

// KickEventRequest is sent by the game plugin when a player is kicked.
type KickEventRequest struct {
	Target string `json:"target"`
	Reason string `json:"reason"`
}

// MuteStatus answers the plugin's chat filter.
type MuteStatus struct {
	Muted     bool       `json:"muted"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

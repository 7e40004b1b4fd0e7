package model

import (
	"time"

	"github.com/google/uuid"
)

// AccountLink binds one Minecraft account to one Discord account.
type AccountLink struct {
	MinecraftID   uuid.UUID `json:"minecraft_id"`
	DiscordID     string    `json:"discord_id"`
	MinecraftName string    `json:"minecraft_name"`
	DiscordName   string    `json:"discord_name"`
	LinkedAt      time.Time `json:"linked_at"`
}

// VerificationCode is a pending, single-use link code owned by a Discord account.
type VerificationCode struct {
	Code        string    `json:"code"`
	DiscordID   string    `json:"discord_id"`
	DisplayName string    `json:"display_name,omitempty"`
	IssuedAt    time.Time `json:"issued_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Expired reports whether the code is no longer redeemable at t.
func (c *VerificationCode) Expired(t time.Time) bool {
	return !t.Before(c.ExpiresAt)
}

// GameIdentity identifies the Minecraft player redeeming a code.
type GameIdentity struct {
	ID   uuid.UUID `json:"minecraft_id"`
	Name string    `json:"minecraft_name"`
}

// LinkRedeemRequest is sent by the game plugin when a player enters a code.
type LinkRedeemRequest struct {
	Code          string `json:"code"`
	MinecraftID   string `json:"minecraft_id"`
	MinecraftName string `json:"minecraft_name"`
}

// LinkStatus is returned when checking whether a Minecraft account is linked.
type LinkStatus struct {
	Linked      bool   `json:"linked"`
	DiscordID   string `json:"discord_id,omitempty"`
	DiscordName string `json:"discord_name,omitempty"`
}

package model

import "encoding/json"

// WSEvent is the frame exchanged with the game plugin over the bridge socket.
type WSEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Inbound frame types (plugin -> bridge).
const (
	WSPing     = "ping"
	WSPresence = "presence"
	WSJoin     = "join"
	WSQuit     = "quit"
	WSCommand  = "command"
	WSKick     = "kick"
	WSRedeem   = "redeem"
)

// Outbound frame types (bridge -> plugin).
const (
	WSPong         = "pong"
	WSBan          = "ban"
	WSKickPlayer   = "kick"
	WSMute         = "mute"
	WSUnban        = "unban"
	WSUnmute       = "unmute"
	WSMessage      = "message"
	WSGroupAdd     = "group_add"
	WSRedeemResult = "redeem_result"
)

type WSPresenceData struct {
	Online []string `json:"online"`
}

type WSPlayerData struct {
	Name string `json:"name"`
}

// WSSanctionData carries ban/kick/mute/unban/unmute commands to the plugin.
type WSSanctionData struct {
	Name            string `json:"name"`
	Reason          string `json:"reason,omitempty"`
	DurationSeconds int64  `json:"duration_seconds,omitempty"`
}

type WSMessageData struct {
	Name string `json:"name"`
	Text string `json:"text"`
}

type WSGroupData struct {
	MinecraftID string `json:"minecraft_id"`
	Name        string `json:"name"`
	Group       string `json:"group"`
}

type WSRedeemData struct {
	RequestID     string `json:"request_id"`
	Code          string `json:"code"`
	MinecraftID   string `json:"minecraft_id"`
	MinecraftName string `json:"minecraft_name"`
}

type WSRedeemResultData struct {
	RequestID   string `json:"request_id"`
	OK          bool   `json:"ok"`
	Error       string `json:"error,omitempty"`
	Message     string `json:"message"`
	DiscordName string `json:"discord_name,omitempty"`
}

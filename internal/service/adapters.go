package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// GameActions is what the bridge may ask the Minecraft server to do. Calls
// are queued onto the game adapter's outbound task queue and return once
// the command has been accepted, not once the server has executed it.
type GameActions interface {
	Ban(ctx context.Context, name, reason string, duration time.Duration) error
	Unban(ctx context.Context, name string) error
	Kick(ctx context.Context, name, reason string) error
	Mute(ctx context.Context, name, reason string, duration time.Duration) error
	Unmute(ctx context.Context, name string) error
	IsOnline(name string) bool
	SendMessage(ctx context.Context, name, text string) error
}

// ChatActions is what the bridge may ask the Discord guild to do.
type ChatActions interface {
	BanUser(ctx context.Context, chatID, reason string) error
	UnbanUser(ctx context.Context, chatID string) error
	KickUser(ctx context.Context, chatID, reason string) error
	TimeoutUser(ctx context.Context, chatID, reason string, duration time.Duration) error
	ClearTimeout(ctx context.Context, chatID string) error
	AddRole(ctx context.Context, chatID, roleName string) error
	RemoveRole(ctx context.Context, chatID, roleName string) error
	SendDirectMessage(ctx context.Context, chatID, text string) error
}

// GroupGrantor puts a freshly linked player into a permission group on the
// game server. Servers without a permissions plugin use NoopGroupGrantor.
type GroupGrantor interface {
	GrantGroup(ctx context.Context, minecraftID uuid.UUID, name, group string) error
}

type NoopGroupGrantor struct{}

func (NoopGroupGrantor) GrantGroup(context.Context, uuid.UUID, string, string) error { return nil }

// AlertField is one name/value line of an operator alert.
type AlertField struct {
	Name  string
	Value string
}

// OperatorAlert is an operational notice for the staff channel.
type OperatorAlert struct {
	Title  string
	Detail string
	Level  AlertLevel
	Fields []AlertField
}

type AlertLevel int

const (
	AlertInfo AlertLevel = iota
	AlertWarning
	AlertError
)

// OperatorNotifier delivers alerts to whoever runs the server. Delivery is
// best effort; implementations must not block the caller on network I/O.
type OperatorNotifier interface {
	NotifyOperators(ctx context.Context, alert OperatorAlert)
}

// LogNotifier writes alerts to the log when no operator channel is set up.
type LogNotifier struct {
	Logger *zap.Logger
}

func (n LogNotifier) NotifyOperators(_ context.Context, alert OperatorAlert) {
	if n.Logger == nil {
		return
	}
	fields := make([]zap.Field, 0, len(alert.Fields)+1)
	fields = append(fields, zap.String("detail", alert.Detail))
	for _, f := range alert.Fields {
		fields = append(fields, zap.String(f.Name, f.Value))
	}
	switch alert.Level {
	case AlertError:
		n.Logger.Error(alert.Title, fields...)
	case AlertWarning:
		n.Logger.Warn(alert.Title, fields...)
	default:
		n.Logger.Info(alert.Title, fields...)
	}
}

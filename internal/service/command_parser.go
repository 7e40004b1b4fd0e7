package service

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ahmadisoggg/XDiscordUltimate-sub000/internal/model"
)

// commandPattern matches the verb of a moderation command, with an optional
// leading slash and plugin namespace ("/essentials:ban"). The verb must end
// at whitespace or end of input, which keeps "banana", "kicked" and
// "ban-ip" out.
var commandPattern = regexp.MustCompile(`(?i)^/?(?:[a-z0-9_-]+:)?(ban|tempban|kick|mute|tempmute|warn|unban|pardon|unmute)(?:\s|$)`)

var (
	playerNamePattern = regexp.MustCompile(`^[A-Za-z0-9_]{1,16}$`)
	durationPart      = regexp.MustCompile(`(?i)(\d+)(mo|[smhdwy])`)
	durationPattern   = regexp.MustCompile(`(?i)^(?:\d+(?:mo|[smhdwy]))+$`)
)

// ParsedCommand is a moderation command typed in game.
type ParsedCommand struct {
	Action   model.ActionType
	Target   string
	Duration time.Duration
	Reason   string
}

var verbActions = map[string]model.ActionType{
	"ban":      model.ActionBan,
	"tempban":  model.ActionTempBan,
	"kick":     model.ActionKick,
	"mute":     model.ActionMute,
	"tempmute": model.ActionTempMute,
	"warn":     model.ActionWarn,
	"unban":    model.ActionUnban,
	"pardon":   model.ActionUnban,
	"unmute":   model.ActionUnmute,
}

// ParseModerationCommand recognises a moderation command. ok is false for
// anything that is not one, including a known verb with no valid target.
func ParseModerationCommand(raw string) (cmd ParsedCommand, ok bool) {
	raw = strings.TrimSpace(raw)
	m := commandPattern.FindStringSubmatchIndex(raw)
	if m == nil {
		return cmd, false
	}
	cmd.Action = verbActions[strings.ToLower(raw[m[2]:m[3]])]

	args := strings.Fields(raw[m[1]:])
	i := 0
	for i < len(args) && strings.HasPrefix(args[i], "-") {
		i++
	}
	if i >= len(args) || !playerNamePattern.MatchString(args[i]) {
		return cmd, false
	}
	cmd.Target = args[i]
	i++

	for i < len(args) && strings.HasPrefix(args[i], "-") {
		i++
	}
	if i < len(args) && cmd.Action != model.ActionUnban && cmd.Action != model.ActionUnmute {
		if d, err := ParseDuration(args[i]); err == nil {
			cmd.Duration = d
			i++
		}
	}
	cmd.Reason = strings.Join(args[i:], " ")

	switch cmd.Action {
	case model.ActionTempBan, model.ActionTempMute:
		if cmd.Duration <= 0 {
			return cmd, false
		}
	case model.ActionBan:
		if cmd.Duration > 0 {
			cmd.Action = model.ActionTempBan
		}
	case model.ActionMute:
		if cmd.Duration > 0 {
			cmd.Action = model.ActionTempMute
		}
	case model.ActionKick, model.ActionWarn:
		cmd.Duration = 0
	}
	return cmd, true
}

// ParseDuration reads moderation-plugin durations such as "30m", "2h30m",
// "1d", "1w", "1mo" (30 days) and "1y" (365 days).
func ParseDuration(s string) (time.Duration, error) {
	if !durationPattern.MatchString(s) {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	var total time.Duration
	for _, part := range durationPart.FindAllStringSubmatch(s, -1) {
		n, err := strconv.ParseInt(part[1], 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q: %w", s, err)
		}
		var unit time.Duration
		switch strings.ToLower(part[2]) {
		case "s":
			unit = time.Second
		case "m":
			unit = time.Minute
		case "h":
			unit = time.Hour
		case "d":
			unit = 24 * time.Hour
		case "w":
			unit = 7 * 24 * time.Hour
		case "mo":
			unit = 30 * 24 * time.Hour
		case "y":
			unit = 365 * 24 * time.Hour
		}
		if n > int64(maxDuration/unit) {
			return 0, fmt.Errorf("duration %q too large", s)
		}
		total += time.Duration(n) * unit
	}
	return total, nil
}

const maxDuration = 100 * 365 * 24 * time.Hour

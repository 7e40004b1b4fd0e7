package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ahmadisoggg/XDiscordUltimate-sub000/internal/model"
	"github.com/ahmadisoggg/XDiscordUltimate-sub000/internal/obs"
	"github.com/ahmadisoggg/XDiscordUltimate-sub000/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Discord caps member timeouts at 28 days.
const maxChatTimeout = 28 * 24 * time.Hour

// Outcome is the terminal state of one moderation event.
type Outcome string

const (
	OutcomeIgnored          Outcome = "ignored"
	OutcomeLoggedOnly       Outcome = "logged_only"
	OutcomeMirrorApplied    Outcome = "mirror_applied"
	OutcomeMirrorSuppressed Outcome = "mirror_suppressed"
	OutcomeMirrorFailed     Outcome = "mirror_failed"
)

type ModerationConfig struct {
	DedupWindow         time.Duration
	MirrorKicks         bool
	MirrorRetryDelay    time.Duration
	ExpirySweepInterval time.Duration
	ReportCooldown      time.Duration
	WarnThreshold       int
	MutedRole           string
}

type BridgeDeps struct {
	Store    repository.ModerationStore
	Registry *LinkRegistry
	Game     GameActions
	Chat     ChatActions
	Notifier OperatorNotifier
	Metrics  *obs.Metrics
	Logger   *zap.Logger
}

// Bridge records moderation events from either platform and mirrors them to
// the other one, dropping the echoes of its own mirrors.
type Bridge struct {
	store    repository.ModerationStore
	registry *LinkRegistry
	game     GameActions
	chat     ChatActions
	notifier OperatorNotifier
	metrics  *obs.Metrics
	logger   *zap.Logger
	cfg      ModerationConfig
	locks    *keyedMutex
	now      func() time.Time
}

func NewBridge(deps BridgeDeps, cfg ModerationConfig) *Bridge {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Notifier == nil {
		deps.Notifier = LogNotifier{Logger: deps.Logger}
	}
	return &Bridge{
		store:    deps.Store,
		registry: deps.Registry,
		game:     deps.Game,
		chat:     deps.Chat,
		notifier: deps.Notifier,
		metrics:  deps.Metrics,
		logger:   deps.Logger,
		cfg:      cfg,
		locks:    newKeyedMutex(),
		now:      time.Now,
	}
}

// OnGameModerationCommand handles a command typed in game. Anything that is
// not a moderation command is ignored.
func (b *Bridge) OnGameModerationCommand(ctx context.Context, raw, actorName string) (Outcome, error) {
	cmd, ok := ParseModerationCommand(raw)
	if !ok {
		return OutcomeIgnored, nil
	}
	return b.Process(ctx, model.ModerationEvent{
		Action:     cmd.Action,
		Origin:     model.PlatformGame,
		TargetName: cmd.Target,
		ActorID:    gameActor(actorName),
		Reason:     cmd.Reason,
		Duration:   cmd.Duration,
	})
}

// OnGameKickEvent handles a kick reported by the server itself.
func (b *Bridge) OnGameKickEvent(ctx context.Context, target, reason string) (Outcome, error) {
	return b.Process(ctx, model.ModerationEvent{
		Action:     model.ActionKick,
		Origin:     model.PlatformGame,
		TargetName: target,
		Reason:     reason,
	})
}

func (b *Bridge) OnChatBanEvent(ctx context.Context, chatID, reason, actorID string) (Outcome, error) {
	return b.Process(ctx, model.ModerationEvent{
		Action:       model.ActionBan,
		Origin:       model.PlatformChat,
		TargetChatID: chatID,
		ActorID:      chatActor(actorID),
		Reason:       reason,
	})
}

func (b *Bridge) OnChatUnbanEvent(ctx context.Context, chatID string) (Outcome, error) {
	return b.Process(ctx, model.ModerationEvent{
		Action:       model.ActionUnban,
		Origin:       model.PlatformChat,
		TargetChatID: chatID,
	})
}

// OnChatTimeoutChanged handles a member timeout being set (expiry in the
// future) or cleared (nil or past expiry).
func (b *Bridge) OnChatTimeoutChanged(ctx context.Context, chatID string, expiry *time.Time) (Outcome, error) {
	ev := model.ModerationEvent{
		Action:       model.ActionUnmute,
		Origin:       model.PlatformChat,
		TargetChatID: chatID,
	}
	if expiry != nil {
		if d := expiry.Sub(b.now()); d > 0 {
			ev.Action = model.ActionTempMute
			ev.Duration = d.Round(time.Second)
			ev.Reason = "Discord timeout"
		}
	}
	return b.Process(ctx, ev)
}

// OnChatRoleChanged reacts to the muted role only.
func (b *Bridge) OnChatRoleChanged(ctx context.Context, chatID, roleName string, added bool) (Outcome, error) {
	if b.cfg.MutedRole == "" || !strings.EqualFold(roleName, b.cfg.MutedRole) {
		return OutcomeIgnored, nil
	}
	ev := model.ModerationEvent{
		Action:       model.ActionUnmute,
		Origin:       model.PlatformChat,
		TargetChatID: chatID,
	}
	if added {
		ev.Action = model.ActionMute
		ev.Reason = "Muted role added"
	}
	return b.Process(ctx, ev)
}

// Process runs one normalised event through identity resolution, echo
// suppression, recording and mirroring. Errors are store failures only; a
// mirror the remote platform rejects ends as OutcomeMirrorFailed.
func (b *Bridge) Process(ctx context.Context, ev model.ModerationEvent) (Outcome, error) {
	if ev.Action == model.ActionReport {
		return OutcomeIgnored, nil
	}
	if (ev.Origin == model.PlatformGame && ev.TargetName == "") ||
		(ev.Origin == model.PlatformChat && ev.TargetChatID == "") {
		return OutcomeIgnored, nil
	}
	ev.Reason = strings.TrimSpace(ev.Reason)

	link, targetID, err := b.resolve(ctx, ev)
	if err != nil {
		return "", fmt.Errorf("resolve moderation target: %w", err)
	}

	log := b.logger.With(
		zap.String("action", string(ev.Action)),
		zap.String("origin", string(ev.Origin)),
		zap.String("target_id", targetID))

	unlock := b.locks.Lock(targetID)
	defer unlock()

	if b.isEcho(ev) {
		log.Debug("dropping annotated echo")
		return b.outcome(ev, OutcomeMirrorSuppressed), nil
	}
	suppressed, err := b.seenRecently(ctx, ev, targetID)
	if err != nil {
		return "", err
	}
	if suppressed {
		log.Debug("event already handled within dedup window")
		return b.outcome(ev, OutcomeMirrorSuppressed), nil
	}

	rec, err := b.record(ctx, ev, targetID)
	if err != nil {
		return "", err
	}
	if ev.Action == model.ActionWarn {
		b.checkWarnThreshold(ctx, targetID, ev)
	}

	if link == nil {
		log.Info("moderation action logged, target not linked")
		return b.outcome(ev, OutcomeLoggedOnly), nil
	}

	apply := b.mirror(ev, link)
	if apply == nil {
		log.Info("moderation action logged, no mirror for action")
		return b.outcome(ev, OutcomeLoggedOnly), nil
	}

	if err := b.applyWithRetry(ctx, apply); err != nil {
		b.remoteFailed(ctx, ev, rec, link, err)
		return b.outcome(ev, OutcomeMirrorFailed), nil
	}
	log.Info("moderation action mirrored",
		zap.String("minecraft_name", link.MinecraftName),
		zap.String("discord_id", link.DiscordID))
	return b.outcome(ev, OutcomeMirrorApplied), nil
}

func (b *Bridge) resolve(ctx context.Context, ev model.ModerationEvent) (*model.AccountLink, string, error) {
	var (
		link *model.AccountLink
		err  error
	)
	if ev.Origin == model.PlatformGame {
		link, err = b.registry.ResolveName(ctx, ev.TargetName)
	} else {
		link, err = b.registry.ResolveDiscord(ctx, ev.TargetChatID)
	}
	if err != nil {
		return nil, "", err
	}
	if link != nil {
		return link, link.MinecraftID.String(), nil
	}
	if ev.Origin == model.PlatformGame {
		return nil, model.GameTargetID(ev.TargetName), nil
	}
	return nil, model.ChatTargetID(ev.TargetChatID), nil
}

// isEcho reports whether the reason carries the annotation this bridge puts
// on mirrored actions coming from the other platform.
func (b *Bridge) isEcho(ev model.ModerationEvent) bool {
	return strings.HasPrefix(ev.Reason, syncTag(ev.Origin.Opposite()))
}

// seenRecently looks for a record of the same family from either platform
// inside the dedup window. Sanctions only count while active; reversals are
// stored inactive and always count.
func (b *Bridge) seenRecently(ctx context.Context, ev model.ModerationEvent, targetID string) (bool, error) {
	if b.cfg.DedupWindow <= 0 {
		return false, nil
	}
	since := b.now().Add(-b.cfg.DedupWindow)
	for _, origin := range []model.Platform{ev.Origin.Opposite(), ev.Origin} {
		_, err := b.store.FindRecentRecord(ctx, repository.RecordQuery{
			TargetID:   targetID,
			Actions:    ev.Action.Family(),
			Origin:     origin,
			Since:      since.UTC(),
			ActiveOnly: !ev.Action.IsReversal(),
		})
		if err == nil {
			return true, nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return false, fmt.Errorf("dedup lookup: %w", err)
		}
	}
	return false, nil
}

func (b *Bridge) record(ctx context.Context, ev model.ModerationEvent, targetID string) (*model.ModerationRecord, error) {
	rec := b.newRecord(ev, targetID)
	if ev.Action.IsReversal() {
		n, err := b.store.RecordReversal(ctx, rec, ev.Action.Reverses())
		if err != nil {
			return nil, fmt.Errorf("write reversal record: %w", err)
		}
		b.logger.Debug("sanctions lifted", zap.String("target_id", targetID), zap.Int64("count", n))
		return rec, nil
	}
	if err := b.store.CreateRecord(ctx, rec); err != nil {
		return nil, fmt.Errorf("write moderation record: %w", err)
	}
	return rec, nil
}

func (b *Bridge) newRecord(ev model.ModerationEvent, targetID string) *model.ModerationRecord {
	now := b.now().UTC()
	rec := &model.ModerationRecord{
		ActionType:     ev.Action,
		TargetID:       targetID,
		Reason:         ev.Reason,
		IssuedAt:       now,
		Active:         !ev.Action.IsReversal(),
		OriginPlatform: ev.Origin,
	}
	if ev.ActorID != "" {
		actor := ev.ActorID
		rec.ActorID = &actor
	}
	if ev.Duration > 0 {
		exp := now.Add(ev.Duration)
		rec.ExpiresAt = &exp
	}
	return rec
}

// mirror returns the call that applies ev on the other platform, or nil
// when the action has no counterpart there.
func (b *Bridge) mirror(ev model.ModerationEvent, link *model.AccountLink) func(context.Context) error {
	reason := annotate(ev.Origin, ev.Reason)
	if ev.Origin == model.PlatformGame {
		if b.chat == nil {
			return nil
		}
		id := link.DiscordID
		switch ev.Action {
		case model.ActionBan, model.ActionTempBan:
			return func(ctx context.Context) error { return b.chat.BanUser(ctx, id, reason) }
		case model.ActionKick:
			if !b.cfg.MirrorKicks {
				return nil
			}
			return func(ctx context.Context) error { return b.chat.KickUser(ctx, id, reason) }
		case model.ActionMute, model.ActionTempMute:
			switch {
			case ev.Duration > 0:
				d := min(ev.Duration, maxChatTimeout)
				return func(ctx context.Context) error { return b.chat.TimeoutUser(ctx, id, reason, d) }
			case b.cfg.MutedRole != "":
				return func(ctx context.Context) error { return b.chat.AddRole(ctx, id, b.cfg.MutedRole) }
			default:
				return func(ctx context.Context) error { return b.chat.TimeoutUser(ctx, id, reason, maxChatTimeout) }
			}
		case model.ActionUnban:
			return func(ctx context.Context) error { return b.chat.UnbanUser(ctx, id) }
		case model.ActionUnmute:
			return func(ctx context.Context) error {
				err := b.chat.ClearTimeout(ctx, id)
				if b.cfg.MutedRole != "" {
					err = errors.Join(err, b.chat.RemoveRole(ctx, id, b.cfg.MutedRole))
				}
				return err
			}
		}
		return nil
	}

	if b.game == nil {
		return nil
	}
	name := link.MinecraftName
	switch ev.Action {
	case model.ActionBan, model.ActionTempBan:
		return func(ctx context.Context) error {
			if err := b.game.Ban(ctx, name, reason, ev.Duration); err != nil {
				return err
			}
			if b.game.IsOnline(name) {
				return b.game.Kick(ctx, name, reason)
			}
			return nil
		}
	case model.ActionMute, model.ActionTempMute:
		return func(ctx context.Context) error {
			if err := b.game.Mute(ctx, name, reason, ev.Duration); err != nil {
				return err
			}
			if b.game.IsOnline(name) {
				_ = b.game.SendMessage(ctx, name, muteNotice(ev.Duration))
			}
			return nil
		}
	case model.ActionUnban:
		return func(ctx context.Context) error { return b.game.Unban(ctx, name) }
	case model.ActionUnmute:
		return func(ctx context.Context) error { return b.game.Unmute(ctx, name) }
	}
	return nil
}

func (b *Bridge) applyWithRetry(ctx context.Context, apply func(context.Context) error) error {
	err := apply(ctx)
	if err == nil {
		return nil
	}
	b.logger.Warn("mirrored action failed, retrying once", zap.Error(err))
	if !sleepCtx(ctx, b.cfg.MirrorRetryDelay) {
		return errors.Join(err, ctx.Err())
	}
	return apply(ctx)
}

func (b *Bridge) remoteFailed(ctx context.Context, ev model.ModerationEvent, rec *model.ModerationRecord, link *model.AccountLink, cause error) {
	target := ev.Origin.Opposite()
	err := fmt.Errorf("%w: %v", ErrRemoteApplyFailed, cause)
	b.metrics.RemoteApplyFailed(string(target), string(ev.Action))
	b.logger.Error("mirrored action failed",
		zap.Int64("record_id", rec.ID),
		zap.String("action", string(ev.Action)),
		zap.String("platform", string(target)),
		zap.String("minecraft_name", link.MinecraftName),
		zap.String("discord_id", link.DiscordID),
		zap.Error(err))
	b.notifier.NotifyOperators(ctx, OperatorAlert{
		Title:  fmt.Sprintf("%s sync failed", target.Label()),
		Detail: err.Error(),
		Level:  AlertError,
		Fields: []AlertField{
			{Name: "action", Value: string(ev.Action)},
			{Name: "minecraft", Value: link.MinecraftName},
			{Name: "discord", Value: link.DiscordID},
			{Name: "record", Value: fmt.Sprintf("#%d", rec.ID)},
		},
	})
}

func (b *Bridge) checkWarnThreshold(ctx context.Context, targetID string, ev model.ModerationEvent) {
	if b.cfg.WarnThreshold <= 0 {
		return
	}
	n, err := b.store.CountActive(ctx, targetID, model.ActionWarn)
	if err != nil {
		b.logger.Warn("failed to count warnings", zap.String("target_id", targetID), zap.Error(err))
		return
	}
	if n < int64(b.cfg.WarnThreshold) {
		return
	}
	target := ev.TargetName
	if target == "" {
		target = ev.TargetChatID
	}
	b.notifier.NotifyOperators(ctx, OperatorAlert{
		Title:  "Warning threshold reached",
		Detail: fmt.Sprintf("%s has %d active warnings.", target, n),
		Level:  AlertWarning,
		Fields: []AlertField{{Name: "target", Value: targetID}, {Name: "latest", Value: ev.Reason}},
	})
}

func (b *Bridge) outcome(ev model.ModerationEvent, o Outcome) Outcome {
	b.metrics.ModerationOutcome(string(ev.Origin), string(o))
	return o
}

// SweepExpiredRecords deactivates timed records whose expiry passed. A game
// tempban on a linked player also lifts the Discord ban it was mirrored as,
// unless a later ban on the same player is still in force. Lift failures do
// not stop the sweep; they are joined into the returned error.
func (b *Bridge) SweepExpiredRecords(ctx context.Context) (int, error) {
	expired, err := b.store.ExpireRecords(ctx, b.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("expire records: %w", err)
	}
	b.metrics.RecordsExpired(len(expired))
	var errs []error
	lifted := make(map[string]bool)
	for _, rec := range expired {
		if rec.ActionType != model.ActionTempBan || rec.OriginPlatform != model.PlatformGame || lifted[rec.TargetID] {
			continue
		}
		lifted[rec.TargetID] = true
		if err := b.liftExpiredBan(ctx, rec); err != nil {
			errs = append(errs, fmt.Errorf("lift expired ban %d: %w", rec.ID, err))
		}
	}
	return len(expired), errors.Join(errs...)
}

func (b *Bridge) liftExpiredBan(ctx context.Context, rec model.ModerationRecord) error {
	id, err := uuid.Parse(rec.TargetID)
	if err != nil {
		return nil
	}
	link, err := b.registry.ResolveMinecraft(ctx, id)
	if err != nil {
		return fmt.Errorf("resolve expired ban target: %w", err)
	}
	if link == nil || b.chat == nil {
		return nil
	}

	unlock := b.locks.Lock(rec.TargetID)
	defer unlock()

	for _, action := range model.ActionBan.Family() {
		n, err := b.store.CountActive(ctx, rec.TargetID, action)
		if err != nil {
			return fmt.Errorf("count active bans: %w", err)
		}
		if n > 0 {
			b.logger.Info("expired tempban superseded by a ban still in force",
				zap.String("minecraft_name", link.MinecraftName),
				zap.String("action", string(action)))
			return nil
		}
	}

	// Recorded as-is: the expired ban is already inactive.
	ev := model.ModerationEvent{
		Action:     model.ActionUnban,
		Origin:     model.PlatformGame,
		TargetName: link.MinecraftName,
		Reason:     "tempban expired",
	}
	if err := b.store.CreateRecord(ctx, b.newRecord(ev, rec.TargetID)); err != nil {
		return fmt.Errorf("write moderation record: %w", err)
	}
	if err := b.applyWithRetry(ctx, func(ctx context.Context) error { return b.chat.UnbanUser(ctx, link.DiscordID) }); err != nil {
		b.remoteFailed(ctx, ev, &rec, link, err)
		return nil
	}
	b.logger.Info("expired tempban lifted on Discord",
		zap.String("minecraft_name", link.MinecraftName),
		zap.String("discord_id", link.DiscordID))
	return nil
}

// RunExpiry sweeps on ExpirySweepInterval until ctx is done.
func (b *Bridge) RunExpiry(ctx context.Context) {
	if b.cfg.ExpirySweepInterval <= 0 {
		return
	}
	ticker := time.NewTicker(b.cfg.ExpirySweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := b.SweepExpiredRecords(ctx); err != nil && ctx.Err() == nil {
				b.logger.Warn("record expiry sweep failed", zap.Error(err))
			}
		}
	}
}

// FileReport stores a player report from a Discord member and tells the
// operators about it.
func (b *Bridge) FileReport(ctx context.Context, reporterChatID, targetName, reason string) (*model.ModerationRecord, error) {
	if !playerNamePattern.MatchString(targetName) {
		return nil, ErrUnknownIdentity
	}
	actor := model.ChatTargetID(reporterChatID)
	unlock := b.locks.Lock(actor)
	defer unlock()

	now := b.now().UTC()
	if b.cfg.ReportCooldown > 0 {
		last, err := b.store.LastRecordByActor(ctx, actor, model.ActionReport)
		switch {
		case err == nil && now.Before(last.IssuedAt.Add(b.cfg.ReportCooldown)):
			return nil, ErrReportCooldown
		case err != nil && !errors.Is(err, repository.ErrNotFound):
			return nil, fmt.Errorf("report cooldown lookup: %w", err)
		}
	}

	link, err := b.registry.ResolveName(ctx, targetName)
	if err != nil {
		return nil, fmt.Errorf("resolve report target: %w", err)
	}
	targetID := model.GameTargetID(targetName)
	if link != nil {
		targetID = link.MinecraftID.String()
	}
	rec := &model.ModerationRecord{
		ActionType:     model.ActionReport,
		TargetID:       targetID,
		ActorID:        &actor,
		Reason:         strings.TrimSpace(reason),
		IssuedAt:       now,
		Active:         true,
		OriginPlatform: model.PlatformChat,
	}
	if err := b.store.CreateRecord(ctx, rec); err != nil {
		return nil, fmt.Errorf("write report: %w", err)
	}
	b.notifier.NotifyOperators(ctx, OperatorAlert{
		Title:  "New player report",
		Detail: rec.Reason,
		Level:  AlertInfo,
		Fields: []AlertField{
			{Name: "target", Value: targetName},
			{Name: "reporter", Value: reporterChatID},
			{Name: "report", Value: fmt.Sprintf("#%d", rec.ID)},
		},
	})
	return rec, nil
}

// History lists the records of an identity, newest first. identity may be
// a Minecraft UUID, a Discord id or a Minecraft name; for a linked account
// records filed under either pre-link id are included.
func (b *Bridge) History(ctx context.Context, identity string, limit int) ([]model.ModerationRecord, error) {
	ids, err := b.targetIDs(ctx, identity)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var out []model.ModerationRecord
	for _, id := range ids {
		recs, err := b.store.ListRecords(ctx, id, limit)
		if err != nil {
			return nil, fmt.Errorf("list records: %w", err)
		}
		out = append(out, recs...)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].IssuedAt.Equal(out[j].IssuedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].IssuedAt.After(out[j].IssuedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// IsMuted reports whether a player has an active, unexpired mute.
func (b *Bridge) IsMuted(ctx context.Context, name string) (model.MuteStatus, error) {
	ids, err := b.targetIDs(ctx, name)
	if err != nil {
		return model.MuteStatus{}, err
	}
	now := b.now()
	var status model.MuteStatus
	for _, id := range ids {
		recs, err := b.store.ListRecords(ctx, id, 100)
		if err != nil {
			return model.MuteStatus{}, fmt.Errorf("list records: %w", err)
		}
		for _, r := range recs {
			if !r.Active || (r.ActionType != model.ActionMute && r.ActionType != model.ActionTempMute) {
				continue
			}
			if r.ExpiresAt == nil {
				return model.MuteStatus{Muted: true}, nil
			}
			if r.ExpiresAt.After(now) && (status.ExpiresAt == nil || r.ExpiresAt.After(*status.ExpiresAt)) {
				exp := *r.ExpiresAt
				status = model.MuteStatus{Muted: true, ExpiresAt: &exp}
			}
		}
	}
	return status, nil
}

func (b *Bridge) targetIDs(ctx context.Context, identity string) ([]string, error) {
	identity = strings.TrimSpace(identity)
	var (
		link *model.AccountLink
		err  error
		ids  []string
	)
	switch id, perr := uuid.Parse(identity); {
	case perr == nil:
		link, err = b.registry.ResolveMinecraft(ctx, id)
		ids = []string{id.String()}
	case isSnowflake(identity):
		link, err = b.registry.ResolveDiscord(ctx, identity)
		ids = []string{model.ChatTargetID(identity)}
	case playerNamePattern.MatchString(identity):
		link, err = b.registry.ResolveName(ctx, identity)
		ids = []string{model.GameTargetID(identity)}
	default:
		return nil, ErrUnknownIdentity
	}
	if err != nil {
		return nil, fmt.Errorf("resolve identity: %w", err)
	}
	if link == nil {
		return ids, nil
	}
	return []string{
		link.MinecraftID.String(),
		model.GameTargetID(link.MinecraftName),
		model.ChatTargetID(link.DiscordID),
	}, nil
}

func syncTag(origin model.Platform) string {
	return "[" + origin.Label() + " sync]"
}

func annotate(origin model.Platform, reason string) string {
	if reason == "" {
		return syncTag(origin)
	}
	return syncTag(origin) + " " + reason
}

func muteNotice(d time.Duration) string {
	if d <= 0 {
		return "You have been muted on Discord."
	}
	return fmt.Sprintf("You have been muted on Discord for %s.", d)
}

func gameActor(name string) string {
	name = strings.TrimSpace(name)
	if name == "" || strings.EqualFold(name, "CONSOLE") {
		return ""
	}
	return model.GameTargetID(name)
}

func chatActor(id string) string {
	if id == "" {
		return ""
	}
	return model.ChatTargetID(id)
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

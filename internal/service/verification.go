package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ahmadisoggg/XDiscordUltimate-sub000/internal/model"
	"github.com/ahmadisoggg/XDiscordUltimate-sub000/internal/obs"
	"github.com/ahmadisoggg/XDiscordUltimate-sub000/internal/repository"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	maxCodeAttempts   = 8
	postLinkTimeout   = 15 * time.Second
	defaultCodeLength = 6
	defaultAlphabet   = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
)

type VerificationConfig struct {
	CodeLength     int
	Alphabet       string
	CodeTTL        time.Duration
	SweepInterval  time.Duration
	RedeemCooldown time.Duration
	LinkedRole     string
	LinkedGroup    string
}

type CoordinatorDeps struct {
	Codes    repository.CodeStore
	Registry *LinkRegistry
	Chat     ChatActions
	Game     GameActions
	Groups   GroupGrantor
	Metrics  *obs.Metrics
	Logger   *zap.Logger
}

// Coordinator owns the code lifecycle: issuing, redeeming and sweeping.
// It is the only writer of account links.
type Coordinator struct {
	codes    repository.CodeStore
	registry *LinkRegistry
	chat     ChatActions
	game     GameActions
	groups   GroupGrantor
	metrics  *obs.Metrics
	logger   *zap.Logger
	cfg      VerificationConfig

	now      func() time.Time
	generate func() (string, error)

	issuing  *keyedMutex // per discord id, orders store writes with the pending cache
	pending  sync.Map    // discord id -> *model.VerificationCode
	limiters sync.Map    // minecraft id -> *rate.Limiter
	effects  sync.WaitGroup
}

func NewCoordinator(deps CoordinatorDeps, cfg VerificationConfig) *Coordinator {
	if cfg.CodeLength <= 0 {
		cfg.CodeLength = defaultCodeLength
	}
	if cfg.Alphabet == "" {
		cfg.Alphabet = defaultAlphabet
	}
	if deps.Groups == nil {
		deps.Groups = NoopGroupGrantor{}
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	c := &Coordinator{
		codes:    deps.Codes,
		registry: deps.Registry,
		chat:     deps.Chat,
		game:     deps.Game,
		groups:   deps.Groups,
		metrics:  deps.Metrics,
		logger:   deps.Logger,
		cfg:      cfg,
		now:      time.Now,
		issuing:  newKeyedMutex(),
	}
	c.generate = c.randomCode
	return c
}

// IssueCode creates a fresh code for a Discord account, replacing any code
// it already had.
func (c *Coordinator) IssueCode(ctx context.Context, discordID, displayName string) (*model.VerificationCode, error) {
	existing, err := c.registry.ResolveDiscord(ctx, discordID)
	if err != nil {
		return nil, fmt.Errorf("resolve discord account: %w", err)
	}
	if existing != nil {
		return nil, ErrAlreadyLinked
	}

	unlock := c.issuing.Lock(discordID)
	defer unlock()

	for attempt := 1; attempt <= maxCodeAttempts; attempt++ {
		token, err := c.generate()
		if err != nil {
			return nil, fmt.Errorf("generate code: %w", err)
		}
		now := c.now().UTC()
		vc := &model.VerificationCode{
			Code:        token,
			DiscordID:   discordID,
			DisplayName: displayName,
			IssuedAt:    now,
			ExpiresAt:   now.Add(c.cfg.CodeTTL),
		}
		err = c.codes.ReplaceCode(ctx, vc)
		if errors.Is(err, repository.ErrCodeTaken) {
			c.logger.Debug("code collision, regenerating", zap.Int("attempt", attempt))
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("store code: %w", err)
		}
		c.pending.Store(discordID, vc)
		c.metrics.CodeIssued()
		c.logger.Info("verification code issued",
			zap.String("discord_id", discordID),
			zap.Time("expires_at", vc.ExpiresAt))
		return vc, nil
	}
	return nil, fmt.Errorf("no free code after %d attempts", maxCodeAttempts)
}

// PendingCode returns the live code of a Discord account, or nil.
func (c *Coordinator) PendingCode(ctx context.Context, discordID string) (*model.VerificationCode, error) {
	now := c.now()
	if v, ok := c.pending.Load(discordID); ok {
		vc := v.(*model.VerificationCode)
		if !vc.Expired(now) {
			return vc, nil
		}
		c.pending.CompareAndDelete(discordID, v)
		return nil, nil
	}

	unlock := c.issuing.Lock(discordID)
	defer unlock()
	if v, ok := c.pending.Load(discordID); ok {
		return v.(*model.VerificationCode), nil
	}
	vc, err := c.codes.GetCodeByDiscordID(ctx, discordID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if vc.Expired(now) {
		return nil, nil
	}
	c.pending.Store(discordID, vc)
	return vc, nil
}

// RedeemCode binds the claimant's Minecraft account to the Discord account
// that owns code. Failed attempts put the claimant on cooldown.
func (c *Coordinator) RedeemCode(ctx context.Context, code string, claimant model.GameIdentity) (*model.AccountLink, error) {
	now := c.now()
	key := claimant.ID.String()
	lim := c.limiter(key)
	if lim != nil && lim.TokensAt(now) < 1 {
		c.metrics.CodeRejected("cooldown")
		return nil, ErrRedeemCooldown
	}

	existing, err := c.registry.ResolveMinecraft(ctx, claimant.ID)
	if err != nil {
		return nil, fmt.Errorf("resolve minecraft account: %w", err)
	}
	if existing != nil {
		c.metrics.CodeRejected("already_linked")
		return nil, ErrAlreadyLinked
	}

	code = normalizeCode(code)
	if !c.wellFormed(code) {
		return nil, c.failed(lim, now, ErrInvalidCode, "invalid")
	}

	link, err := c.codes.RedeemCode(ctx, code, now.UTC(), &model.AccountLink{
		MinecraftID:   claimant.ID,
		MinecraftName: claimant.Name,
	})
	switch {
	case errors.Is(err, repository.ErrCodeNotFound):
		return nil, c.failed(lim, now, ErrInvalidCode, "invalid")
	case errors.Is(err, repository.ErrCodeExpired):
		c.dropPendingCode(code)
		return nil, c.failed(lim, now, ErrCodeExpired, "expired")
	case err != nil:
		c.metrics.CodeRejected("store")
		return nil, fmt.Errorf("redeem code: %w", err)
	}

	c.registry.remember(link)
	unlock := c.issuing.Lock(link.DiscordID)
	c.pending.Delete(link.DiscordID)
	unlock()
	c.limiters.Delete(key)
	c.metrics.CodeRedeemed()
	c.logger.Info("accounts linked",
		zap.String("minecraft_id", key),
		zap.String("minecraft_name", link.MinecraftName),
		zap.String("discord_id", link.DiscordID))

	c.afterLink(link)
	return link, nil
}

// SweepExpired deletes expired codes and forgets idle cooldowns.
func (c *Coordinator) SweepExpired(ctx context.Context) (int64, error) {
	now := c.now()
	n, err := c.codes.DeleteExpiredCodes(ctx, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("delete expired codes: %w", err)
	}
	c.pending.Range(func(k, v any) bool {
		if v.(*model.VerificationCode).Expired(now) {
			c.pending.CompareAndDelete(k, v)
		}
		return true
	})
	c.limiters.Range(func(k, v any) bool {
		if v.(*rate.Limiter).TokensAt(now) >= 1 {
			c.limiters.Delete(k)
		}
		return true
	})
	c.metrics.CodesSwept(n)
	if n > 0 {
		c.logger.Debug("expired codes swept", zap.Int64("count", n))
	}
	return n, nil
}

// Run sweeps on SweepInterval until ctx is done.
func (c *Coordinator) Run(ctx context.Context) {
	if c.cfg.SweepInterval <= 0 {
		return
	}
	ticker := time.NewTicker(c.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := c.SweepExpired(ctx); err != nil && ctx.Err() == nil {
				c.logger.Warn("code sweep failed", zap.Error(err))
			}
		}
	}
}

// Close waits for in-flight post-link effects and drops cached state.
func (c *Coordinator) Close() {
	c.effects.Wait()
	c.pending.Range(func(k, _ any) bool {
		c.pending.Delete(k)
		return true
	})
	c.limiters.Range(func(k, _ any) bool {
		c.limiters.Delete(k)
		return true
	})
}

func (c *Coordinator) failed(lim *rate.Limiter, now time.Time, err error, reason string) error {
	if lim != nil {
		lim.AllowN(now, 1)
	}
	c.metrics.CodeRejected(reason)
	return err
}

func (c *Coordinator) limiter(key string) *rate.Limiter {
	if c.cfg.RedeemCooldown <= 0 {
		return nil
	}
	if v, ok := c.limiters.Load(key); ok {
		return v.(*rate.Limiter)
	}
	v, _ := c.limiters.LoadOrStore(key, rate.NewLimiter(rate.Every(c.cfg.RedeemCooldown), 1))
	return v.(*rate.Limiter)
}

func (c *Coordinator) dropPendingCode(code string) {
	c.pending.Range(func(k, v any) bool {
		if v.(*model.VerificationCode).Code == code {
			c.pending.CompareAndDelete(k, v)
			return false
		}
		return true
	})
}

// afterLink runs the secondary effects of a new link. None of them can undo
// the link; failures are logged.
func (c *Coordinator) afterLink(link *model.AccountLink) {
	c.effects.Add(1)
	go func() {
		defer c.effects.Done()
		ctx, cancel := context.WithTimeout(context.Background(), postLinkTimeout)
		defer cancel()

		log := c.logger.With(zap.String("discord_id", link.DiscordID), zap.String("minecraft_name", link.MinecraftName))
		if c.chat != nil {
			if c.cfg.LinkedRole != "" {
				if err := c.chat.AddRole(ctx, link.DiscordID, c.cfg.LinkedRole); err != nil {
					log.Warn("failed to grant linked role", zap.Error(err))
				}
			}
			msg := fmt.Sprintf("Your Discord account is now linked to the Minecraft account **%s**.", link.MinecraftName)
			if err := c.chat.SendDirectMessage(ctx, link.DiscordID, msg); err != nil {
				log.Debug("failed to send link confirmation", zap.Error(err))
			}
		}
		if c.cfg.LinkedGroup != "" {
			if err := c.groups.GrantGroup(ctx, link.MinecraftID, link.MinecraftName, c.cfg.LinkedGroup); err != nil {
				log.Warn("failed to grant linked group", zap.Error(err))
			}
		}
		if c.game != nil {
			name := link.DiscordName
			if name == "" {
				name = link.DiscordID
			}
			if err := c.game.SendMessage(ctx, link.MinecraftName, "Your account is now linked to Discord user "+name+"."); err != nil {
				log.Debug("failed to send in-game link message", zap.Error(err))
			}
		}
	}()
}

func (c *Coordinator) wellFormed(code string) bool {
	if len(code) != c.cfg.CodeLength {
		return false
	}
	for _, r := range code {
		if !strings.ContainsRune(c.cfg.Alphabet, r) {
			return false
		}
	}
	return true
}

func (c *Coordinator) randomCode() (string, error) {
	max := big.NewInt(int64(len(c.cfg.Alphabet)))
	b := make([]byte, c.cfg.CodeLength)
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b[i] = c.cfg.Alphabet[n.Int64()]
	}
	return string(b), nil
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/ahmadisoggg/XDiscordUltimate-sub000/internal/model"
	"github.com/ahmadisoggg/XDiscordUltimate-sub000/internal/repository"

	"github.com/google/uuid"
)

type cachedLink struct {
	link    *model.AccountLink
	expires time.Time
}

// LinkRegistry answers "who is this on the other platform" with the store as
// the authority. It only ever reads the store; new links reach it through
// remember after the coordinator has committed them.
type LinkRegistry struct {
	links  repository.LinkReader
	ttl    time.Duration
	now    func() time.Time
	byGame sync.Map // uuid.UUID -> cachedLink
	byChat sync.Map // discord id -> cachedLink
	byName sync.Map // lowercase name -> cachedLink
}

func NewLinkRegistry(links repository.LinkReader, ttl time.Duration) *LinkRegistry {
	return &LinkRegistry{links: links, ttl: ttl, now: time.Now}
}

// ResolveMinecraft returns the link of a Minecraft account, or nil.
func (r *LinkRegistry) ResolveMinecraft(ctx context.Context, id uuid.UUID) (*model.AccountLink, error) {
	if l, ok := r.cached(&r.byGame, id); ok {
		return l, nil
	}
	return r.load(r.links.GetLinkByMinecraftID(ctx, id))
}

// ResolveDiscord returns the link of a Discord account, or nil.
func (r *LinkRegistry) ResolveDiscord(ctx context.Context, discordID string) (*model.AccountLink, error) {
	if l, ok := r.cached(&r.byChat, discordID); ok {
		return l, nil
	}
	return r.load(r.links.GetLinkByDiscordID(ctx, discordID))
}

// ResolveName looks a player up by the name they had when they linked.
func (r *LinkRegistry) ResolveName(ctx context.Context, name string) (*model.AccountLink, error) {
	if l, ok := r.cached(&r.byName, strings.ToLower(name)); ok {
		return l, nil
	}
	return r.load(r.links.GetLinkByMinecraftName(ctx, name))
}

// IsLinked accepts a Minecraft UUID, a Discord id or a Minecraft name.
func (r *LinkRegistry) IsLinked(ctx context.Context, identity string) (bool, error) {
	var (
		l   *model.AccountLink
		err error
	)
	if id, perr := uuid.Parse(identity); perr == nil {
		l, err = r.ResolveMinecraft(ctx, id)
	} else if isSnowflake(identity) {
		l, err = r.ResolveDiscord(ctx, identity)
	} else {
		l, err = r.ResolveName(ctx, identity)
	}
	return l != nil, err
}

// Clear drops every cached entry.
func (r *LinkRegistry) Clear() {
	for _, m := range []*sync.Map{&r.byGame, &r.byChat, &r.byName} {
		m.Range(func(k, _ any) bool {
			m.Delete(k)
			return true
		})
	}
}

// remember caches a committed link and evicts whatever it displaced: the
// previous Discord account of the Minecraft id, the previous Minecraft
// account of the Discord id, and the old name.
func (r *LinkRegistry) remember(l *model.AccountLink) {
	if v, ok := r.byGame.Load(l.MinecraftID); ok {
		old := v.(cachedLink).link
		r.byChat.Delete(old.DiscordID)
		r.byName.Delete(strings.ToLower(old.MinecraftName))
	}
	if v, ok := r.byChat.Load(l.DiscordID); ok {
		old := v.(cachedLink).link
		r.byGame.Delete(old.MinecraftID)
		r.byName.Delete(strings.ToLower(old.MinecraftName))
	}
	r.store(l)
}

func (r *LinkRegistry) cached(m *sync.Map, key any) (*model.AccountLink, bool) {
	v, ok := m.Load(key)
	if !ok {
		return nil, false
	}
	e := v.(cachedLink)
	if !r.now().Before(e.expires) {
		m.CompareAndDelete(key, v)
		return nil, false
	}
	return e.link, true
}

func (r *LinkRegistry) load(l *model.AccountLink, err error) (*model.AccountLink, error) {
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	r.store(l)
	return l, nil
}

func (r *LinkRegistry) store(l *model.AccountLink) {
	e := cachedLink{link: l, expires: r.now().Add(r.ttl)}
	r.byGame.Store(l.MinecraftID, e)
	r.byChat.Store(l.DiscordID, e)
	r.byName.Store(strings.ToLower(l.MinecraftName), e)
}

// isSnowflake reports whether s looks like a Discord id.
func isSnowflake(s string) bool {
	if len(s) < 17 || len(s) > 20 {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

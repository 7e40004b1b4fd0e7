package discord

import (
	"fmt"
	"strings"
	"sync"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// Roles maps configured role names to guild role ids. The bridge is
// configured by name so operators can recreate a role without editing
// config; lookups refresh the cache on a miss.
type Roles struct {
	api     guildAPI
	guildID string
	logger  *zap.Logger

	mu     sync.RWMutex
	byName map[string]string // lowercase name -> id
	byID   map[string]string // id -> display name
}

func NewRoles(api guildAPI, guildID string, logger *zap.Logger) *Roles {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Roles{
		api:     api,
		guildID: guildID,
		logger:  logger,
		byName:  map[string]string{},
		byID:    map[string]string{},
	}
}

// ID returns the id of the role called name.
func (r *Roles) ID(name string) (string, error) {
	key := strings.ToLower(name)
	r.mu.RLock()
	id, ok := r.byName[key]
	r.mu.RUnlock()
	if ok {
		return id, nil
	}
	if err := r.refresh(); err != nil {
		return "", err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if id, ok := r.byName[key]; ok {
		return id, nil
	}
	return "", fmt.Errorf("role %q not found in guild", name)
}

// Name returns the display name of role id, or "" if unknown.
func (r *Roles) Name(id string) string {
	r.mu.RLock()
	name, ok := r.byID[id]
	r.mu.RUnlock()
	if ok {
		return name
	}
	if err := r.refresh(); err != nil {
		r.logger.Warn("role refresh failed", zap.Error(err))
		return ""
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byID[id]
}

// Ensure creates the role if the guild does not have it yet.
func (r *Roles) Ensure(name string, color int) (string, error) {
	if id, err := r.ID(name); err == nil {
		return id, nil
	}
	role, err := r.api.GuildRoleCreate(r.guildID, &discordgo.RoleParams{
		Name:  name,
		Color: &color,
	})
	if err != nil {
		return "", fmt.Errorf("create role %q: %w", name, err)
	}
	r.put(role)
	r.logger.Info("created guild role", zap.String("role", role.Name), zap.String("id", role.ID))
	return role.ID, nil
}

func (r *Roles) refresh() error {
	roles, err := r.api.GuildRoles(r.guildID)
	if err != nil {
		return fmt.Errorf("list guild roles: %w", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byName = make(map[string]string, len(roles))
	r.byID = make(map[string]string, len(roles))
	for _, role := range roles {
		r.byName[strings.ToLower(role.Name)] = role.ID
		r.byID[role.ID] = role.Name
	}
	return nil
}

func (r *Roles) put(role *discordgo.Role) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byName[strings.ToLower(role.Name)] = role.ID
	r.byID[role.ID] = role.Name
}

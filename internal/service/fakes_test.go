package service

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ahmadisoggg/XDiscordUltimate-sub000/internal/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// call is one adapter invocation as seen by the fakes.
type call struct {
	Method string
	Target string
	Arg    string
}

type recorder struct {
	mu    sync.Mutex
	calls []call
	fail  map[string]int // method -> remaining failures
}

func (r *recorder) add(method, target, arg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call{Method: method, Target: target, Arg: arg})
	if r.fail[method] > 0 {
		r.fail[method]--
		return fmt.Errorf("%s: remote error", method)
	}
	return nil
}

func (r *recorder) failNext(method string, n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail == nil {
		r.fail = make(map[string]int)
	}
	r.fail[method] = n
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = nil
}

func (r *recorder) Calls() []call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]call(nil), r.calls...)
}

func (r *recorder) Count(method string) int {
	n := 0
	for _, c := range r.Calls() {
		if c.Method == method {
			n++
		}
	}
	return n
}

type fakeChat struct{ recorder }

func (f *fakeChat) BanUser(_ context.Context, id, reason string) error {
	return f.add("BanUser", id, reason)
}
func (f *fakeChat) UnbanUser(_ context.Context, id string) error { return f.add("UnbanUser", id, "") }
func (f *fakeChat) KickUser(_ context.Context, id, reason string) error {
	return f.add("KickUser", id, reason)
}
func (f *fakeChat) TimeoutUser(_ context.Context, id, _ string, d time.Duration) error {
	return f.add("TimeoutUser", id, d.String())
}
func (f *fakeChat) ClearTimeout(_ context.Context, id string) error {
	return f.add("ClearTimeout", id, "")
}
func (f *fakeChat) AddRole(_ context.Context, id, role string) error {
	return f.add("AddRole", id, role)
}
func (f *fakeChat) RemoveRole(_ context.Context, id, role string) error {
	return f.add("RemoveRole", id, role)
}
func (f *fakeChat) SendDirectMessage(_ context.Context, id, text string) error {
	return f.add("SendDirectMessage", id, text)
}

type fakeGame struct {
	recorder
	online map[string]bool
}

func (f *fakeGame) Ban(_ context.Context, name, reason string, _ time.Duration) error {
	return f.add("Ban", name, reason)
}
func (f *fakeGame) Unban(_ context.Context, name string) error { return f.add("Unban", name, "") }
func (f *fakeGame) Kick(_ context.Context, name, reason string) error {
	return f.add("Kick", name, reason)
}
func (f *fakeGame) Mute(_ context.Context, name, reason string, d time.Duration) error {
	return f.add("Mute", name, d.String())
}
func (f *fakeGame) Unmute(_ context.Context, name string) error { return f.add("Unmute", name, "") }
func (f *fakeGame) IsOnline(name string) bool                   { return f.online[name] }
func (f *fakeGame) SendMessage(_ context.Context, name, text string) error {
	return f.add("SendMessage", name, text)
}

type fakeGroups struct{ recorder }

func (f *fakeGroups) GrantGroup(_ context.Context, id uuid.UUID, name, group string) error {
	return f.add("GrantGroup", name, group)
}

type mockNotifier struct{ mock.Mock }

func (m *mockNotifier) NotifyOperators(ctx context.Context, alert OperatorAlert) {
	m.Called(ctx, alert)
}

// clock is a settable time source shared by the components under test.
type clock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *clock {
	return &clock{t: time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func openStore(t *testing.T) repository.Store {
	t.Helper()
	s, err := repository.OpenSQLite(filepath.Join(t.TempDir(), "test.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

type harness struct {
	store    repository.Store
	clock    *clock
	registry *LinkRegistry
	chat     *fakeChat
	game     *fakeGame
	groups   *fakeGroups
	notifier *mockNotifier
	coord    *Coordinator
	bridge   *Bridge
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		store:    openStore(t),
		clock:    newClock(),
		chat:     &fakeChat{},
		game:     &fakeGame{online: map[string]bool{}},
		groups:   &fakeGroups{},
		notifier: &mockNotifier{},
	}
	h.registry = NewLinkRegistry(h.store, 5*time.Minute)
	h.registry.now = h.clock.Now

	h.coord = NewCoordinator(CoordinatorDeps{
		Codes:    h.store,
		Registry: h.registry,
		Chat:     h.chat,
		Game:     h.game,
		Groups:   h.groups,
	}, VerificationConfig{
		CodeTTL:        10 * time.Minute,
		SweepInterval:  time.Minute,
		RedeemCooldown: 30 * time.Second,
		LinkedRole:     "Linked",
		LinkedGroup:    "linked",
	})
	h.coord.now = h.clock.Now

	h.bridge = NewBridge(BridgeDeps{
		Store:    h.store,
		Registry: h.registry,
		Game:     h.game,
		Chat:     h.chat,
		Notifier: h.notifier,
	}, ModerationConfig{
		DedupWindow:    30 * time.Second,
		ReportCooldown: 5 * time.Minute,
		WarnThreshold:  3,
		MutedRole:      "Muted",
	})
	h.bridge.now = h.clock.Now
	t.Cleanup(h.coord.Close)
	return h
}

// link issues and redeems a code, then waits for the post-link effects so
// they do not show up in later assertions.
func (h *harness) link(t *testing.T, discordID, name string) uuid.UUID {
	t.Helper()
	ctx := context.Background()
	vc, err := h.coord.IssueCode(ctx, discordID, "user-"+discordID)
	require.NoError(t, err)
	id := uuid.New()
	_, err = h.coord.RedeemCode(ctx, vc.Code, gameID(id, name))
	require.NoError(t, err)
	h.coord.effects.Wait()
	h.chat.reset()
	h.game.reset()
	h.groups.reset()
	return id
}

package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/ahmadisoggg/XDiscordUltimate-sub000/internal/game"
	"github.com/ahmadisoggg/XDiscordUltimate-sub000/internal/middleware"
	"github.com/ahmadisoggg/XDiscordUltimate-sub000/internal/model"
	"github.com/ahmadisoggg/XDiscordUltimate-sub000/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const (
	testServerKey = "server-key"
	testSecret    = "jwt-secret"
)

type mockLinks struct{ mock.Mock }

func (m *mockLinks) RedeemCode(ctx context.Context, code string, claimant model.GameIdentity) (*model.AccountLink, error) {
	args := m.Called(code, claimant)
	link, _ := args.Get(0).(*model.AccountLink)
	return link, args.Error(1)
}

func (m *mockLinks) ResolveMinecraft(ctx context.Context, id uuid.UUID) (*model.AccountLink, error) {
	args := m.Called(id)
	link, _ := args.Get(0).(*model.AccountLink)
	return link, args.Error(1)
}

type mockBridge struct{ mock.Mock }

func (m *mockBridge) OnGameModerationCommand(ctx context.Context, raw, actor string) (service.Outcome, error) {
	args := m.Called(raw, actor)
	return args.Get(0).(service.Outcome), args.Error(1)
}

func (m *mockBridge) OnGameKickEvent(ctx context.Context, target, reason string) (service.Outcome, error) {
	args := m.Called(target, reason)
	return args.Get(0).(service.Outcome), args.Error(1)
}

func (m *mockBridge) IsMuted(ctx context.Context, name string) (model.MuteStatus, error) {
	args := m.Called(name)
	return args.Get(0).(model.MuteStatus), args.Error(1)
}

func (m *mockBridge) History(ctx context.Context, identity string, limit int) ([]model.ModerationRecord, error) {
	args := m.Called(identity, limit)
	recs, _ := args.Get(0).([]model.ModerationRecord)
	return recs, args.Error(1)
}

func (m *mockBridge) SweepExpiredRecords(ctx context.Context) (int, error) {
	args := m.Called()
	return args.Int(0), args.Error(1)
}

func (m *mockBridge) SweepExpired(ctx context.Context) (int64, error) {
	args := m.Called()
	return args.Get(0).(int64), args.Error(1)
}

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

type connected bool

func (c connected) Connected() bool { return bool(c) }

// fakeHub records frames and presence updates.
type fakeHub struct {
	mu     sync.Mutex
	sent   []model.WSEvent
	online map[string]bool
}

func newFakeHub() *fakeHub { return &fakeHub{online: map[string]bool{}} }

func (h *fakeHub) Attach(game.Conn) func() { return func() {} }

func (h *fakeHub) Send(eventType string, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sent = append(h.sent, model.WSEvent{Type: eventType, Data: raw})
	return nil
}

func (h *fakeHub) frames() []model.WSEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]model.WSEvent(nil), h.sent...)
}

func (h *fakeHub) SetOnline(names []string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.online = map[string]bool{}
	for _, n := range names {
		h.online[n] = true
	}
}

func (h *fakeHub) Joined(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.online[name] = true
}

func (h *fakeHub) Left(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.online, name)
}

func (h *fakeHub) isOnline(name string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.online[name]
}

type testEnv struct {
	app    *fiber.App
	links  *mockLinks
	bridge *mockBridge
	hub    *fakeHub
	socket *GameSocketHandler
}

func newTestEnv(t *testing.T, storeErr error) *testEnv {
	t.Helper()
	env := &testEnv{links: &mockLinks{}, bridge: &mockBridge{}, hub: newFakeHub()}
	env.socket = NewGameSocketHandler(env.hub, env.links, env.bridge, testServerKey, nil)
	env.app = fiber.New()
	Routes{
		Health:     NewHealthHandler(pinger{err: storeErr}, connected(true)),
		Link:       NewLinkHandler(env.links, env.links),
		Moderation: NewModerationHandler(env.bridge),
		Admin:      NewAdminHandler(env.bridge, env.bridge, nil),
		Socket:     env.socket,
	}.Mount(env.app, testServerKey, testSecret)
	t.Cleanup(func() {
		env.links.AssertExpectations(t)
		env.bridge.AssertExpectations(t)
	})
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body any, headers map[string]string) (int, map[string]any) {
	t.Helper()
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := e.app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	raw, _ := io.ReadAll(resp.Body)
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &out)
	}
	return resp.StatusCode, out
}

var plugin = map[string]string{"X-Server-Key": testServerKey}

func TestHealthAndReady(t *testing.T) {
	env := newTestEnv(t, nil)
	status, body := env.do(t, "GET", "/health", nil, nil)
	assert.Equal(t, 200, status)
	assert.Equal(t, "ok", body["status"])

	status, body = env.do(t, "GET", "/ready", nil, nil)
	assert.Equal(t, 200, status)
	assert.Equal(t, true, body["game_connected"])

	down := newTestEnv(t, errors.New("dial tcp: refused"))
	status, _ = down.do(t, "GET", "/ready", nil, nil)
	assert.Equal(t, 503, status)
}

func TestPluginRoutesNeedServerKey(t *testing.T) {
	env := newTestEnv(t, nil)
	status, _ := env.do(t, "POST", "/api/v1/server/link/redeem", map[string]string{"code": "ABCD12"}, nil)
	assert.Equal(t, 403, status)
}

func TestRedeem(t *testing.T) {
	mcID := uuid.New()
	claimant := model.GameIdentity{ID: mcID, Name: "Steve"}
	body := model.LinkRedeemRequest{Code: "ABCD12", MinecraftID: mcID.String(), MinecraftName: "Steve"}

	t.Run("success", func(t *testing.T) {
		env := newTestEnv(t, nil)
		env.links.On("RedeemCode", "ABCD12", claimant).
			Return(&model.AccountLink{MinecraftID: mcID, DiscordID: "112233445566778899", DiscordName: "alex"}, nil).Once()

		status, out := env.do(t, "POST", "/api/v1/server/link/redeem", body, plugin)
		assert.Equal(t, 200, status)
		assert.Equal(t, true, out["ok"])
		assert.Equal(t, "alex", out["discord_name"])
	})

	failures := []struct {
		err    error
		status int
		code   string
	}{
		{service.ErrInvalidCode, 400, "invalid_code"},
		{service.ErrCodeExpired, 410, "code_expired"},
		{service.ErrAlreadyLinked, 409, "already_linked"},
		{service.ErrRedeemCooldown, 429, "cooldown"},
		{service.ErrStoreUnavailable, 503, "unavailable"},
		{errors.New("boom"), 500, "internal"},
	}
	for _, tc := range failures {
		t.Run(tc.code, func(t *testing.T) {
			env := newTestEnv(t, nil)
			env.links.On("RedeemCode", "ABCD12", claimant).Return(nil, tc.err).Once()

			status, out := env.do(t, "POST", "/api/v1/server/link/redeem", body, plugin)
			assert.Equal(t, tc.status, status)
			assert.Equal(t, tc.code, out["error"])
			assert.NotEmpty(t, out["message"])
		})
	}
}

func TestRedeemIsLimitedPerClaimant(t *testing.T) {
	env := newTestEnv(t, nil)
	mcID := uuid.New()
	body := model.LinkRedeemRequest{Code: "ABCD12", MinecraftID: mcID.String(), MinecraftName: "Steve"}
	env.links.On("RedeemCode", "ABCD12", model.GameIdentity{ID: mcID, Name: "Steve"}).Return(nil, service.ErrInvalidCode).Times(10)

	for i := 0; i < 10; i++ {
		status, _ := env.do(t, "POST", "/api/v1/server/link/redeem", body, plugin)
		require.Equal(t, 400, status)
	}
	status, out := env.do(t, "POST", "/api/v1/server/link/redeem", body, plugin)
	assert.Equal(t, 429, status)
	assert.Equal(t, "too many requests", out["error"])

	other := uuid.New()
	env.links.On("RedeemCode", "ABCD12", model.GameIdentity{ID: other, Name: "Alex"}).Return(nil, service.ErrInvalidCode).Once()
	status, _ = env.do(t, "POST", "/api/v1/server/link/redeem",
		model.LinkRedeemRequest{Code: "ABCD12", MinecraftID: other.String(), MinecraftName: "Alex"}, plugin)
	assert.Equal(t, 400, status)
}

func TestRedeemValidatesBody(t *testing.T) {
	env := newTestEnv(t, nil)
	for _, body := range []model.LinkRedeemRequest{
		{MinecraftID: uuid.NewString(), MinecraftName: "Steve"},
		{Code: "ABCD12", MinecraftID: "not-a-uuid", MinecraftName: "Steve"},
		{Code: "ABCD12", MinecraftID: uuid.NewString()},
	} {
		status, _ := env.do(t, "POST", "/api/v1/server/link/redeem", body, plugin)
		assert.Equal(t, 400, status)
	}
}

func TestLinkStatus(t *testing.T) {
	env := newTestEnv(t, nil)
	linked, unlinked := uuid.New(), uuid.New()
	env.links.On("ResolveMinecraft", linked).
		Return(&model.AccountLink{MinecraftID: linked, DiscordID: "112233445566778899", DiscordName: "alex"}, nil)
	env.links.On("ResolveMinecraft", unlinked).Return(nil, nil)

	status, out := env.do(t, "GET", "/api/v1/server/link/"+linked.String(), nil, plugin)
	assert.Equal(t, 200, status)
	assert.Equal(t, true, out["linked"])
	assert.Equal(t, "112233445566778899", out["discord_id"])

	status, out = env.do(t, "GET", "/api/v1/server/link/"+unlinked.String(), nil, plugin)
	assert.Equal(t, 200, status)
	assert.Equal(t, false, out["linked"])

	status, _ = env.do(t, "GET", "/api/v1/server/link/steve", nil, plugin)
	assert.Equal(t, 400, status)
}

func TestModerationCommand(t *testing.T) {
	env := newTestEnv(t, nil)
	env.bridge.On("OnGameModerationCommand", "/ban Steve griefing", "Admin").
		Return(service.OutcomeMirrorApplied, nil).Once()
	env.bridge.On("OnGameModerationCommand", "/ban Ghost x", "Admin").
		Return(service.OutcomeIgnored, service.ErrStoreUnavailable).Once()

	status, out := env.do(t, "POST", "/api/v1/server/moderation/command",
		model.ModerationCommandRequest{Command: "/ban Steve griefing", Actor: "Admin"}, plugin)
	assert.Equal(t, 200, status)
	assert.Equal(t, "mirror_applied", out["outcome"])

	status, _ = env.do(t, "POST", "/api/v1/server/moderation/command",
		model.ModerationCommandRequest{Command: "/ban Ghost x", Actor: "Admin"}, plugin)
	assert.Equal(t, 503, status)

	status, _ = env.do(t, "POST", "/api/v1/server/moderation/command", model.ModerationCommandRequest{}, plugin)
	assert.Equal(t, 400, status)
}

func TestModerationKickAndMuted(t *testing.T) {
	env := newTestEnv(t, nil)
	until := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	env.bridge.On("OnGameKickEvent", "Steve", "afk").Return(service.OutcomeLoggedOnly, nil).Once()
	env.bridge.On("IsMuted", "Steve").Return(model.MuteStatus{Muted: true, ExpiresAt: &until}, nil).Once()

	status, out := env.do(t, "POST", "/api/v1/server/moderation/kick", model.KickEventRequest{Target: "Steve", Reason: "afk"}, plugin)
	assert.Equal(t, 200, status)
	assert.Equal(t, "logged_only", out["outcome"])

	status, out = env.do(t, "GET", "/api/v1/server/moderation/muted/Steve", nil, plugin)
	assert.Equal(t, 200, status)
	assert.Equal(t, true, out["muted"])
	assert.Equal(t, "2030-01-01T00:00:00Z", out["expires_at"])
}

func TestAdminRoutes(t *testing.T) {
	env := newTestEnv(t, nil)
	token, err := middleware.MintOperatorToken(testSecret, "alice", time.Hour)
	require.NoError(t, err)
	op := map[string]string{"Authorization": "Bearer " + token}

	status, _ := env.do(t, "GET", "/api/v1/admin/history/Steve", nil, nil)
	assert.Equal(t, 401, status)

	env.bridge.On("History", "Steve", 5).Return([]model.ModerationRecord{
		{ID: 1, ActionType: model.ActionBan, TargetID: "mc:steve", OriginPlatform: model.PlatformGame, Active: true},
	}, nil).Once()
	status, out := env.do(t, "GET", "/api/v1/admin/history/Steve?limit=5", nil, op)
	assert.Equal(t, 200, status)
	require.Len(t, out["records"], 1)

	env.bridge.On("History", "nobody", 20).Return(nil, nil).Once()
	status, out = env.do(t, "GET", "/api/v1/admin/history/nobody", nil, op)
	assert.Equal(t, 200, status)
	assert.Empty(t, out["records"])
	assert.NotNil(t, out["records"])

	env.bridge.On("SweepExpired").Return(int64(3), nil).Once()
	env.bridge.On("SweepExpiredRecords").Return(2, nil).Once()
	status, out = env.do(t, "POST", "/api/v1/admin/sweep", nil, op)
	assert.Equal(t, 200, status)
	assert.Equal(t, float64(3), out["codes_removed"])
	assert.Equal(t, float64(2), out["records_expired"])
}

func TestSocketUpgradeRequiresWebSocket(t *testing.T) {
	env := newTestEnv(t, nil)
	req := httptest.NewRequest("GET", "/ws/game", nil)
	resp, err := env.app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUpgradeRequired, resp.StatusCode)
}

func frame(t *testing.T, typ string, data any) model.WSEvent {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	return model.WSEvent{Type: typ, Data: raw}
}

func TestDispatchPresence(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	env.socket.Dispatch(ctx, frame(t, model.WSPresence, model.WSPresenceData{Online: []string{"Steve", "Alex"}}))
	assert.True(t, env.hub.isOnline("Steve"))

	env.socket.Dispatch(ctx, frame(t, model.WSQuit, model.WSPlayerData{Name: "Steve"}))
	env.socket.Dispatch(ctx, frame(t, model.WSJoin, model.WSPlayerData{Name: "Herobrine"}))
	assert.False(t, env.hub.isOnline("Steve"))
	assert.True(t, env.hub.isOnline("Herobrine"))

	env.socket.Dispatch(ctx, model.WSEvent{Type: model.WSPing})
	require.Len(t, env.hub.frames(), 1)
	assert.Equal(t, model.WSPong, env.hub.frames()[0].Type)

	env.socket.Dispatch(ctx, model.WSEvent{Type: model.WSPresence, Data: json.RawMessage(`"nope"`)})
	env.socket.Dispatch(ctx, model.WSEvent{Type: "teleport"})
	assert.True(t, env.hub.isOnline("Alex"))
}

func TestDispatchModerationFrames(t *testing.T) {
	env := newTestEnv(t, nil)
	done := make(chan struct{}, 2)
	env.bridge.On("OnGameModerationCommand", "/mute Steve 10m spam", "Admin").
		Run(func(mock.Arguments) { done <- struct{}{} }).
		Return(service.OutcomeMirrorApplied, nil).Once()
	env.bridge.On("OnGameKickEvent", "Steve", "afk").
		Run(func(mock.Arguments) { done <- struct{}{} }).
		Return(service.OutcomeLoggedOnly, nil).Once()

	ctx := context.Background()
	env.socket.Dispatch(ctx, frame(t, model.WSCommand, model.ModerationCommandRequest{Command: "/mute Steve 10m spam", Actor: "Admin"}))
	env.socket.Dispatch(ctx, frame(t, model.WSKick, model.KickEventRequest{Target: "Steve", Reason: "afk"}))

	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("moderation frame not dispatched")
		}
	}
}

func TestDispatchRedeemRepliesOnSocket(t *testing.T) {
	env := newTestEnv(t, nil)
	mcID := uuid.New()
	env.links.On("RedeemCode", "ABCD12", model.GameIdentity{ID: mcID, Name: "Steve"}).
		Return(&model.AccountLink{MinecraftID: mcID, DiscordName: "alex"}, nil).Once()
	env.links.On("RedeemCode", "ZZZZ99", model.GameIdentity{ID: mcID, Name: "Steve"}).
		Return(nil, service.ErrCodeExpired).Once()

	ctx := context.Background()
	env.socket.Dispatch(ctx, frame(t, model.WSRedeem, model.WSRedeemData{RequestID: "r1", Code: "ABCD12", MinecraftID: mcID.String(), MinecraftName: "Steve"}))
	env.socket.Dispatch(ctx, frame(t, model.WSRedeem, model.WSRedeemData{RequestID: "r2", Code: "ZZZZ99", MinecraftID: mcID.String(), MinecraftName: "Steve"}))
	env.socket.Dispatch(ctx, frame(t, model.WSRedeem, model.WSRedeemData{RequestID: "r3", Code: "ABCD12", MinecraftID: "bad"}))

	require.Eventually(t, func() bool { return len(env.hub.frames()) == 3 }, 2*time.Second, 10*time.Millisecond)

	results := map[string]model.WSRedeemResultData{}
	for _, f := range env.hub.frames() {
		require.Equal(t, model.WSRedeemResult, f.Type)
		var r model.WSRedeemResultData
		require.NoError(t, json.Unmarshal(f.Data, &r))
		results[r.RequestID] = r
	}
	assert.True(t, results["r1"].OK)
	assert.Equal(t, "alex", results["r1"].DiscordName)
	assert.False(t, results["r2"].OK)
	assert.Equal(t, "code_expired", results["r2"].Error)
	assert.Equal(t, "bad_request", results["r3"].Error)
}

package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ahmadisoggg/XDiscordUltimate-sub000/internal/model"
	"github.com/ahmadisoggg/XDiscordUltimate-sub000/internal/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	discordA = "112233445566778899"
	discordB = "998877665544332211"
)

func gameID(id uuid.UUID, name string) model.GameIdentity {
	return model.GameIdentity{ID: id, Name: name}
}

func TestIssueAndRedeemLinksBothWays(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	vc, err := h.coord.IssueCode(ctx, discordA, "Alice")
	require.NoError(t, err)
	assert.Len(t, vc.Code, 6)
	assert.Equal(t, h.clock.Now().Add(10*time.Minute), vc.ExpiresAt)

	g1 := uuid.New()
	link, err := h.coord.RedeemCode(ctx, " "+lower(vc.Code)+" ", gameID(g1, "Steve"))
	require.NoError(t, err)
	assert.Equal(t, discordA, link.DiscordID)
	assert.Equal(t, "Alice", link.DiscordName)

	byGame, err := h.registry.ResolveMinecraft(ctx, g1)
	require.NoError(t, err)
	require.NotNil(t, byGame)
	assert.Equal(t, discordA, byGame.DiscordID)

	byChat, err := h.registry.ResolveDiscord(ctx, discordA)
	require.NoError(t, err)
	require.NotNil(t, byChat)
	assert.Equal(t, g1, byChat.MinecraftID)

	linked, err := h.registry.IsLinked(ctx, "steve")
	require.NoError(t, err)
	assert.True(t, linked)

	pending, err := h.coord.PendingCode(ctx, discordA)
	require.NoError(t, err)
	assert.Nil(t, pending)
}

func TestRedeemAfterExpiry(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	vc, err := h.coord.IssueCode(ctx, discordA, "Alice")
	require.NoError(t, err)
	h.clock.Advance(10 * time.Minute)

	_, err = h.coord.RedeemCode(ctx, vc.Code, gameID(uuid.New(), "Steve"))
	assert.ErrorIs(t, err, ErrCodeExpired)
	assert.ErrorIs(t, err, ErrInvalidOrExpiredCode)

	_, err = h.store.GetCodeByDiscordID(ctx, discordA)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	linked, err := h.registry.IsLinked(ctx, discordA)
	require.NoError(t, err)
	assert.False(t, linked)
}

func TestSecondCodeReplacesFirst(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	codes := []string{"AAAAAA", "BBBBBB"}
	h.coord.generate = func() (string, error) {
		c := codes[0]
		codes = codes[1:]
		return c, nil
	}
	first, err := h.coord.IssueCode(ctx, discordA, "Alice")
	require.NoError(t, err)
	second, err := h.coord.IssueCode(ctx, discordA, "Alice")
	require.NoError(t, err)
	assert.NotEqual(t, first.Code, second.Code)

	pending, err := h.coord.PendingCode(ctx, discordA)
	require.NoError(t, err)
	assert.Equal(t, second.Code, pending.Code)

	_, err = h.coord.RedeemCode(ctx, first.Code, gameID(uuid.New(), "Steve"))
	assert.ErrorIs(t, err, ErrInvalidCode)

	h.clock.Advance(31 * time.Second)
	_, err = h.coord.RedeemCode(ctx, second.Code, gameID(uuid.New(), "Alex"))
	assert.NoError(t, err)
}

func TestConcurrentIssueKeepsPendingCodeCurrent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.coord.IssueCode(ctx, discordA, "Alice")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	stored, err := h.store.GetCodeByDiscordID(ctx, discordA)
	require.NoError(t, err)
	pending, err := h.coord.PendingCode(ctx, discordA)
	require.NoError(t, err)
	require.NotNil(t, pending)
	assert.Equal(t, stored.Code, pending.Code)
}

func TestRedeemIsSingleUse(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	vc, err := h.coord.IssueCode(ctx, discordA, "Alice")
	require.NoError(t, err)
	_, err = h.coord.RedeemCode(ctx, vc.Code, gameID(uuid.New(), "Steve"))
	require.NoError(t, err)

	_, err = h.coord.RedeemCode(ctx, vc.Code, gameID(uuid.New(), "Alex"))
	assert.ErrorIs(t, err, ErrInvalidOrExpiredCode)
}

func TestIssueRejectsLinkedAccount(t *testing.T) {
	h := newHarness(t)
	h.link(t, discordA, "Steve")

	_, err := h.coord.IssueCode(context.Background(), discordA, "Alice")
	assert.ErrorIs(t, err, ErrAlreadyLinked)
}

func TestRedeemRejectsLinkedClaimant(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id := h.link(t, discordA, "Steve")

	vc, err := h.coord.IssueCode(ctx, discordB, "Bob")
	require.NoError(t, err)
	_, err = h.coord.RedeemCode(ctx, vc.Code, gameID(id, "Steve"))
	assert.ErrorIs(t, err, ErrAlreadyLinked)

	// the code survives for a legitimate claimant
	_, err = h.coord.RedeemCode(ctx, vc.Code, gameID(uuid.New(), "Alex"))
	assert.NoError(t, err)
}

func TestIssueRegeneratesOnCollision(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	codes := []string{"SAME22", "SAME22", "XYZW34"}
	h.coord.generate = func() (string, error) {
		c := codes[0]
		codes = codes[1:]
		return c, nil
	}
	first, err := h.coord.IssueCode(ctx, discordA, "Alice")
	require.NoError(t, err)
	second, err := h.coord.IssueCode(ctx, discordB, "Bob")
	require.NoError(t, err)

	assert.Equal(t, "SAME22", first.Code)
	assert.Equal(t, "XYZW34", second.Code)
	assert.Empty(t, codes)
}

func TestFailedRedeemStartsCooldown(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	claimant := gameID(uuid.New(), "Steve")

	vc, err := h.coord.IssueCode(ctx, discordA, "Alice")
	require.NoError(t, err)

	_, err = h.coord.RedeemCode(ctx, "ZZZZZZ", claimant)
	assert.ErrorIs(t, err, ErrInvalidCode)

	_, err = h.coord.RedeemCode(ctx, vc.Code, claimant)
	assert.ErrorIs(t, err, ErrRedeemCooldown)

	h.clock.Advance(31 * time.Second)
	_, err = h.coord.RedeemCode(ctx, vc.Code, claimant)
	assert.NoError(t, err)
}

func TestMalformedCodeNeverHitsStore(t *testing.T) {
	h := newHarness(t)
	for _, code := range []string{"", "abc", "TOOLONG1", "AAAAA0"} {
		h.clock.Advance(time.Minute)
		_, err := h.coord.RedeemCode(context.Background(), code, gameID(uuid.New(), "Steve"))
		assert.ErrorIs(t, err, ErrInvalidCode, code)
	}
}

func TestConcurrentRedeemOneWinner(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	vc, err := h.coord.IssueCode(ctx, discordA, "Alice")
	require.NoError(t, err)

	const n = 6
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = h.coord.RedeemCode(ctx, vc.Code, gameID(uuid.New(), "Player"))
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		assert.ErrorIs(t, err, ErrInvalidOrExpiredCode)
	}
	assert.Equal(t, 1, wins)
}

func TestPostLinkEffects(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	vc, err := h.coord.IssueCode(ctx, discordA, "Alice")
	require.NoError(t, err)

	h.chat.failNext("AddRole", 1)
	_, err = h.coord.RedeemCode(ctx, vc.Code, gameID(uuid.New(), "Steve"))
	require.NoError(t, err)
	h.coord.effects.Wait()

	assert.Equal(t, 1, h.chat.Count("AddRole"))
	assert.Equal(t, 1, h.chat.Count("SendDirectMessage"))
	assert.Equal(t, []call{{Method: "GrantGroup", Target: "Steve", Arg: "linked"}}, h.groups.Calls())
	assert.Equal(t, 1, h.game.Count("SendMessage"))

	// the failed role grant did not undo the link
	link, err := h.registry.ResolveDiscord(ctx, discordA)
	require.NoError(t, err)
	assert.NotNil(t, link)
}

type unavailableCodes struct {
	repository.CodeStore
}

func (unavailableCodes) RedeemCode(context.Context, string, time.Time, *model.AccountLink) (*model.AccountLink, error) {
	return nil, errors.Join(repository.ErrStoreUnavailable, context.DeadlineExceeded)
}

func TestRedeemSurfacesStoreOutage(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	vc, err := h.coord.IssueCode(ctx, discordA, "Alice")
	require.NoError(t, err)

	h.coord.codes = unavailableCodes{CodeStore: h.store}
	claimant := gameID(uuid.New(), "Steve")
	_, err = h.coord.RedeemCode(ctx, vc.Code, claimant)
	assert.ErrorIs(t, err, ErrStoreUnavailable)

	// an outage is not the claimant's fault: no cooldown, code still there
	h.coord.codes = h.store
	_, err = h.coord.RedeemCode(ctx, vc.Code, claimant)
	assert.NoError(t, err)
}

func TestSweepExpired(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.coord.IssueCode(ctx, discordA, "Alice")
	require.NoError(t, err)
	h.clock.Advance(5 * time.Minute)
	_, err = h.coord.IssueCode(ctx, discordB, "Bob")
	require.NoError(t, err)

	h.clock.Advance(6 * time.Minute)
	n, err := h.coord.SweepExpired(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	pending, err := h.coord.PendingCode(ctx, discordA)
	require.NoError(t, err)
	assert.Nil(t, pending)
	pending, err = h.coord.PendingCode(ctx, discordB)
	require.NoError(t, err)
	assert.NotNil(t, pending)
}

func TestPendingCodeReadsThroughStore(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	vc, err := h.coord.IssueCode(ctx, discordA, "Alice")
	require.NoError(t, err)

	h.coord.Close()
	got, err := h.coord.PendingCode(ctx, discordA)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, vc.Code, got.Code)
}

func lower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + 32
		}
	}
	return string(b)
}

package middleware

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func operatorApp(secret string) *fiber.App {
	app := fiber.New()
	app.Get("/", OperatorAuth(secret), func(c *fiber.Ctx) error {
		return c.SendString(c.Locals("operator").(string))
	})
	return app
}

func TestOperatorAuth(t *testing.T) {
	app := operatorApp("secret")

	token, err := MintOperatorToken("secret", "alice", time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	cases := map[string]string{
		"missing header": "",
		"no bearer":      token,
		"garbage":        "Bearer nope",
	}
	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, 401, resp.StatusCode)
		})
	}
}

func TestOperatorAuthRejectsForeignTokens(t *testing.T) {
	app := operatorApp("secret")

	wrongKey, err := MintOperatorToken("other", "alice", time.Hour)
	require.NoError(t, err)
	expired, err := MintOperatorToken("secret", "alice", -time.Minute)
	require.NoError(t, err)
	wrongIssuer, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:    "someone-else",
		Subject:   "alice",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte("secret"))
	require.NoError(t, err)
	noSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:    operatorIssuer,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	for name, token := range map[string]string{
		"wrong key":    wrongKey,
		"expired":      expired,
		"wrong issuer": wrongIssuer,
		"no subject":   noSubject,
	} {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			req.Header.Set("Authorization", "Bearer "+token)
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, 401, resp.StatusCode)
		})
	}
}

func TestMintOperatorTokenRequiresName(t *testing.T) {
	_, err := MintOperatorToken("secret", "", time.Hour)
	assert.Error(t, err)
}

func TestServerKey(t *testing.T) {
	app := fiber.New()
	app.Post("/", ServerKey("k3y"), func(c *fiber.Ctx) error { return c.SendStatus(204) })

	for key, want := range map[string]int{"k3y": 204, "": 403, "wrong": 403} {
		req := httptest.NewRequest("POST", "/", nil)
		if key != "" {
			req.Header.Set("X-Server-Key", key)
		}
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, want, resp.StatusCode, "key %q", key)
	}
}

func TestLoggerOnlyLogsFailures(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	app := fiber.New()
	app.Use(Logger(zap.New(core)))
	app.Get("/ok", func(c *fiber.Ctx) error { return c.SendStatus(200) })
	app.Get("/bad", func(c *fiber.Ctx) error { return c.Status(400).JSON(fiber.Map{"error": "x"}) })
	app.Get("/boom", func(c *fiber.Ctx) error { return fiber.NewError(503, "down") })

	for _, path := range []string{"/ok", "/bad", "/boom"} {
		_, err := app.Test(httptest.NewRequest("GET", path, nil))
		require.NoError(t, err)
	}

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "/bad", entries[0].ContextMap()["path"])
	assert.Equal(t, int64(503), entries[1].ContextMap()["status"])
}

func TestRateLimit(t *testing.T) {
	app := fiber.New()
	app.Use(RateLimit(2, time.Minute))
	app.Get("/a", func(c *fiber.Ctx) error { return c.SendStatus(204) })
	app.Get("/b", func(c *fiber.Ctx) error { return c.SendStatus(204) })

	status := func(path string) int {
		resp, err := app.Test(httptest.NewRequest("GET", path, nil))
		require.NoError(t, err)
		return resp.StatusCode
	}
	assert.Equal(t, 204, status("/a"))
	assert.Equal(t, 204, status("/a"))
	assert.Equal(t, 429, status("/a"))
	assert.Equal(t, 204, status("/b"))
}

func TestRedeemRateLimitKeysOnClaimant(t *testing.T) {
	app := fiber.New()
	app.Post("/redeem", RedeemRateLimit(1, time.Minute), func(c *fiber.Ctx) error { return c.SendStatus(204) })

	status := func(body string) int {
		req := httptest.NewRequest("POST", "/redeem", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		resp, err := app.Test(req)
		require.NoError(t, err)
		return resp.StatusCode
	}
	steve := `{"code":"ABCD23","minecraft_id":"5f0c3a7e-8d0e-4a7b-9b1c-2d3e4f5a6b7c"}`
	alex := `{"code":"ABCD23","minecraft_id":"0a1b2c3d-4e5f-4a6b-8c7d-9e0f1a2b3c4d"}`

	assert.Equal(t, 204, status(steve))
	assert.Equal(t, 429, status(steve))
	assert.Equal(t, 429, status(`{"code":"X","minecraft_id":"5F0C3A7E-8D0E-4A7B-9B1C-2D3E4F5A6B7C"}`), "ids compare case-insensitively")
	assert.Equal(t, 204, status(alex), "another player keeps their own budget")
	assert.Equal(t, 204, status(`not json`))
	assert.Equal(t, 429, status(`{}`), "unreadable claimants share the client address")
}

package routes

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Amandasamuel/Toll-with-postgress/internal/config"
	"github.com/Amandasamuel/Toll-with-postgress/internal/logging"
)

func testConfig() config.Config {
	return config.Config{
		AppName:          "TollWallet",
		AppEnv:           "test",
		LogLevel:         "info",
		IdempotencyTTL:   time.Minute,
		LockTimeout:      time.Second,
		RequestTimeout:   5 * time.Second,
		CardCacheTTL:     time.Minute,
		TapRateLimit:     100,
		CurrencySymbol:   "₦",
		CurrencyExponent: 2,
		ReferenceSalt:    "routes-test",
		NotifyChannel:    "wallet:notifications",
	}
}

func newTestApp(t *testing.T, cache *redis.Client) *fiber.App {
	t.Helper()
	logger := logging.Discard()
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(logger)})
	require.NoError(t, Setup(app, Deps{Cfg: testConfig(), Cache: cache, Logger: logger}))
	return app
}

func call(t *testing.T, app *fiber.App, method, path, body string, headers ...string) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := map[string]any{}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), "body: %s", raw)
	}
	return resp.StatusCode, out
}

func register(t *testing.T, app *fiber.App, name, uid string) int64 {
	t.Helper()
	status, body := call(t, app, http.MethodPost, "/api/v1/register",
		fmt.Sprintf(`{"name":%q,"phone":"0800","card_uid":%q}`, name, uid))
	require.Equal(t, http.StatusCreated, status, body)
	return int64(body["user_id"].(float64))
}

// Ada holds C1, Bola holds C2.
func TestAdaBolaOverHTTP(t *testing.T) {
	app := newTestApp(t, nil)
	register(t, app, "Ada", "C1")
	register(t, app, "Bola", "C2")

	status, body := call(t, app, http.MethodPost, "/api/v1/topup", `{"card_uid":"C1","amount":100}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "success", body["status"])
	assert.EqualValues(t, 100, body["new_balance"])

	status, body = call(t, app, http.MethodPost, "/api/v1/debit", `{"card_uid":"C1","amount":150}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "failed", body["status"])
	assert.Equal(t, "Insufficient balance", body["reason"])

	status, body = call(t, app, http.MethodPost, "/api/v1/transfer", `{"from_card":"C1","to_card":"C2","amount":60}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, "Transferred ₦0.60 from C1 to C2", body["message"])
	reference, _ := body["reference"].(string)
	require.NotEmpty(t, reference)

	status, body = call(t, app, http.MethodGet, "/api/v1/transfers/"+reference, "")
	require.Equal(t, http.StatusOK, status, body)
	assert.EqualValues(t, 60, body["amount"])
	assert.Equal(t, "debit", body["debit"].(map[string]any)["type"])
	assert.Equal(t, "credit", body["credit"].(map[string]any)["type"])

	status, body = call(t, app, http.MethodGet, "/api/v1/balance/C1", "")
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 40, body["balance"])

	status, body = call(t, app, http.MethodGet, "/api/v1/balance/C2", "")
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 60, body["balance"])

	status, body = call(t, app, http.MethodGet, "/api/v1/transactions/C1", "")
	require.Equal(t, http.StatusOK, status)
	txs := body["transactions"].([]any)
	require.Len(t, txs, 2)
	assert.Equal(t, "debit", txs[0].(map[string]any)["type"])
	assert.Equal(t, "credit", txs[1].(map[string]any)["type"])

	status, body = call(t, app, http.MethodGet, "/api/v1/transactions/C1?limit=1", "")
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["transactions"].([]any), 1)
}

func TestErrorMapping(t *testing.T) {
	app := newTestApp(t, nil)
	userID := register(t, app, "Ada", "C1")

	cases := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"unknown card debit", http.MethodPost, "/api/v1/debit", `{"card_uid":"nope","amount":1}`, http.StatusNotFound},
		{"unknown card balance", http.MethodGet, "/api/v1/balance/nope", "", http.StatusNotFound},
		{"negative amount", http.MethodPost, "/api/v1/topup", `{"card_uid":"C1","amount":-5}`, http.StatusBadRequest},
		{"fractional amount", http.MethodPost, "/api/v1/topup", `{"card_uid":"C1","amount":1.5}`, http.StatusBadRequest},
		{"missing card", http.MethodPost, "/api/v1/topup", `{"amount":5}`, http.StatusBadRequest},
		{"missing transfer target", http.MethodPost, "/api/v1/transfer", `{"from_card":"C1","amount":5}`, http.StatusBadRequest},
		{"negative limit", http.MethodGet, "/api/v1/transactions/C1?limit=-1", "", http.StatusBadRequest},
		{"duplicate card", http.MethodPost, "/api/v1/register", `{"name":"Eve","phone":"1","card_uid":"C1"}`, http.StatusConflict},
		{"link to unknown user", http.MethodPost, "/api/v1/users/999/cards", `{"card_uid":"C9"}`, http.StatusNotFound},
		{"link taken card", http.MethodPost, fmt.Sprintf("/api/v1/users/%d/cards", userID), `{"card_uid":"C1"}`, http.StatusConflict},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, body := call(t, app, tc.method, tc.path, tc.body)
			assert.Equal(t, tc.want, status, body)
			assert.NotEmpty(t, body["error"])
		})
	}

	status, body := call(t, app, http.MethodGet, "/api/v1/balance/C1", "")
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 0, body["balance"])
}

func TestLinkedCardSharesWallet(t *testing.T) {
	app := newTestApp(t, nil)
	userID := register(t, app, "Ada", "C1")

	status, _ := call(t, app, http.MethodPost, fmt.Sprintf("/api/v1/users/%d/cards", userID), `{"card_uid":"C1-fob"}`)
	require.Equal(t, http.StatusCreated, status)

	call(t, app, http.MethodPost, "/api/v1/topup", `{"card_uid":"C1","amount":25}`)
	status, body := call(t, app, http.MethodGet, "/api/v1/balance/C1-fob", "")
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 25, body["balance"])
}

func TestIdempotentDebitWithRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { cache.Close() })

	app := newTestApp(t, cache)
	register(t, app, "Ada", "C1")
	call(t, app, http.MethodPost, "/api/v1/topup", `{"card_uid":"C1","amount":100}`, "Idempotency-Key", "t1")

	for i := 0; i < 3; i++ {
		status, body := call(t, app, http.MethodPost, "/api/v1/debit", `{"card_uid":"C1","amount":30}`, "Idempotency-Key", "gate-7-tap-1")
		require.Equal(t, http.StatusOK, status)
		assert.EqualValues(t, 70, body["new_balance"])
	}

	_, body := call(t, app, http.MethodGet, "/api/v1/balance/C1", "")
	assert.EqualValues(t, 70, body["balance"])

	status, body := call(t, app, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, map[string]any{"postgres": "disabled", "redis": "ok"}, body["status"])
}

func TestSetupRequiresDatabaseOutsideDev(t *testing.T) {
	cfg := testConfig()
	cfg.AppEnv = "production"
	err := Setup(fiber.New(), Deps{Cfg: cfg, Logger: logging.Discard()})
	assert.Error(t, err)
}

func TestPanicsAreRecoveredAndAudited(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(logger)})
	require.NoError(t, Setup(app, Deps{Cfg: testConfig(), Logger: logger}))
	app.Get("/boom", func(c *fiber.Ctx) error {
		panic("reader sent garbage")
	})

	status, body := call(t, app, http.MethodGet, "/boom", "")
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "internal error", body["error"])

	var audited bool
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var entry map[string]any
		if json.Unmarshal([]byte(line), &entry) != nil {
			continue
		}
		if entry["msg"] == "request completed" && entry["path"] == "/boom" {
			audited = true
			assert.EqualValues(t, http.StatusInternalServerError, entry["status"])
			assert.Equal(t, "ERROR", entry["level"])
		}
	}
	assert.True(t, audited, "no audit line for the panicking request: %s", buf.String())
}

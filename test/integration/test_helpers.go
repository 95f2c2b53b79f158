//go:build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"artist-catalog-api/internal/config"
	"artist-catalog-api/internal/database"
	"artist-catalog-api/internal/event"
	"artist-catalog-api/internal/handler"
	"artist-catalog-api/internal/middleware"
	"artist-catalog-api/internal/model"
	"artist-catalog-api/internal/ratelimit"
	"artist-catalog-api/internal/repository"
	"artist-catalog-api/internal/router"
	"artist-catalog-api/internal/service"
	"artist-catalog-api/internal/token"
)

const testPassword = "integration-pass-123"

type testEnv struct {
	server   *httptest.Server
	db       *database.DB
	users    *repository.UserRepository
	username string
}

func openDatabase(t *testing.T) *database.DB {
	t.Helper()

	url := strings.TrimSpace(os.Getenv("TEST_DATABASE_URL"))
	if url == "" {
		t.Skip("TEST_DATABASE_URL is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := database.New(ctx, url, 4, 1)
	require.NoError(t, err)
	t.Cleanup(db.Close)

	require.NoError(t, db.EnsureSchema(ctx))
	return db
}

// newEnv starts the full pipeline against Postgres with a freshly seeded
// user whose name is unique to the test.
func newEnv(t *testing.T, capacity int) *testEnv {
	t.Helper()

	db := openDatabase(t)
	users := repository.NewUserRepository(db.Pool)

	username := "it_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	seeded, err := service.SeedAdmin(context.Background(), users, service.AdminSeed{
		Username: username,
		Password: testPassword,
	})
	require.NoError(t, err)
	require.True(t, seeded)

	t.Cleanup(func() {
		_, _ = db.Pool.Exec(context.Background(), `DELETE FROM users WHERE username = $1`, username)
	})

	cfg := &config.Config{
		RequestTimeout:    10 * time.Second,
		CORSOrigins:       []string{"*"},
		RateLimitCapacity: capacity,
		RateLimitWindow:   time.Minute,
	}

	issuer, err := token.NewIssuer(token.Config{
		Secret:     "integration-secret-long-enough-for-hs256",
		AccessTTL:  time.Hour,
		RefreshTTL: 24 * time.Hour,
	})
	require.NoError(t, err)

	bus := event.NewBus(64)
	audit := service.NewAuditService(repository.NewAuditRepository(db.Pool))
	auditEvents, unsubscribe := bus.Subscribe()
	auditCtx, auditCancel := context.WithCancel(context.Background())
	go audit.Run(auditCtx, auditEvents)
	t.Cleanup(func() {
		auditCancel()
		unsubscribe()
		_, _ = db.Pool.Exec(context.Background(), `DELETE FROM auth_events WHERE principal = $1`, username)
	})

	authService := service.NewAuthService(issuer, service.NewPasswordVerifier(users), users)
	authService.SetPublisher(bus)

	limiter := ratelimit.NewLimiter(ratelimit.Config{Capacity: capacity, Window: time.Minute}, ratelimit.NewMemoryStore(0, time.Now))
	rateLimit := middleware.NewRateLimit(limiter)
	rateLimit.SetPublisher(bus)

	server := httptest.NewServer(router.New(cfg,
		middleware.NewAuthenticator(issuer, users, 5*time.Second),
		rateLimit,
		router.Handlers{
			Auth:   handler.NewAuthHandler(authService),
			Health: handler.NewHealthHandler(db),
			Audit:  handler.NewAuditHandler(audit),
		},
	))
	t.Cleanup(server.Close)

	return &testEnv{server: server, db: db, users: users, username: username}
}

func (e *testEnv) post(t *testing.T, path string, payload any) *http.Response {
	t.Helper()

	body, err := json.Marshal(payload)
	require.NoError(t, err)

	resp, err := http.Post(e.server.URL+path, "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func (e *testEnv) get(t *testing.T, path string, accessToken string) *http.Response {
	t.Helper()

	req, err := http.NewRequest(http.MethodGet, e.server.URL+path, nil)
	require.NoError(t, err)
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func (e *testEnv) login(t *testing.T) model.AuthResponse {
	t.Helper()

	resp := e.post(t, "/api/v1/auth/login", model.LoginRequest{Username: e.username, Password: testPassword})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	return decodeAuth(t, resp)
}

func decodeAuth(t *testing.T, resp *http.Response) model.AuthResponse {
	t.Helper()

	var payload struct {
		Success bool               `json:"success"`
		Data    model.AuthResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	require.True(t, payload.Success)
	return payload.Data
}

func decodeErrorCode(t *testing.T, resp *http.Response) string {
	t.Helper()

	var payload model.APIResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	require.False(t, payload.Success)
	require.NotNil(t, payload.Error)
	return payload.Error.Code
}

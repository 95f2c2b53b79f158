//go:build integration

package integration

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"artist-catalog-api/internal/event"
	"artist-catalog-api/internal/model"
)

func TestAuthEventsAreRecorded(t *testing.T) {
	env := newEnv(t, 100)

	failed := env.post(t, "/api/v1/auth/login", model.LoginRequest{Username: env.username, Password: "wrong"})
	require.Equal(t, http.StatusUnauthorized, failed.StatusCode)
	pair := env.login(t)

	var entries []model.AuditEntry
	require.Eventually(t, func() bool {
		req, err := http.NewRequest(http.MethodGet, env.server.URL+"/api/v1/auth/events?principal="+env.username, nil)
		if err != nil {
			return false
		}
		req.Header.Set("Authorization", "Bearer "+pair.AccessToken)

		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return false
		}

		var body struct {
			Data model.AuditListData `json:"data"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return false
		}
		entries = body.Data.Items
		return len(entries) >= 2
	}, 5*time.Second, 100*time.Millisecond)

	require.Equal(t, string(event.TypeLoginSucceeded), entries[0].Type)
	require.Equal(t, string(event.TypeLoginFailed), entries[1].Type)
	require.Equal(t, "INVALID_CREDENTIALS", entries[1].Detail)
}

func TestAuthEventsRequireAdmin(t *testing.T) {
	env := newEnv(t, 100)

	resp := env.get(t, "/api/v1/auth/events", "")
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

//go:build integration

package integration

import (
	"net/http"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRateLimitPerPrincipal(t *testing.T) {
	env := newEnv(t, 10)
	pair := env.login(t)

	for i := 0; i < 10; i++ {
		resp := env.get(t, "/api/v1/auth/me", pair.AccessToken)
		require.Equal(t, http.StatusOK, resp.StatusCode, "request %d", i+1)
	}

	resp := env.get(t, "/api/v1/auth/me", pair.AccessToken)
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	require.NotEmpty(t, resp.Header.Get("Retry-After"))

	// Login and refresh are anonymous calls and stay reachable.
	again := env.post(t, "/api/v1/auth/login", map[string]string{"username": env.username, "password": testPassword})
	require.Equal(t, http.StatusOK, again.StatusCode)
}

func TestRateLimitConcurrentFirstRequests(t *testing.T) {
	env := newEnv(t, 10)
	pair := env.login(t)

	var admitted atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			req, err := http.NewRequest(http.MethodGet, env.server.URL+"/api/v1/auth/me", nil)
			if err != nil {
				return
			}
			req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				return
			}
			defer resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				admitted.Add(1)
			}
		}()
	}
	wg.Wait()

	// A request or two may land after a partial refill on a slow runner.
	require.GreaterOrEqual(t, admitted.Load(), int32(10))
	require.LessOrEqual(t, admitted.Load(), int32(12))
}

package service

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"artist-catalog-api/internal/event"
	"artist-catalog-api/internal/model"
	"artist-catalog-api/internal/token"
	"artist-catalog-api/pkg/apierror"
)

const testSecret = "service-test-secret-with-enough-bytes!!"

type memoryDirectory struct {
	mu    sync.RWMutex
	users map[string]model.User
	err   error
}

func newMemoryDirectory(users ...model.User) *memoryDirectory {
	d := &memoryDirectory{users: map[string]model.User{}}
	for _, u := range users {
		d.users[strings.ToLower(u.Username)] = u
	}
	return d
}

func (d *memoryDirectory) FindByUsername(_ context.Context, username string) (model.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.err != nil {
		return model.User{}, d.err
	}
	u, ok := d.users[strings.ToLower(strings.TrimSpace(username))]
	if !ok {
		return model.User{}, model.ErrUserNotFound
	}
	return u, nil
}

func (d *memoryDirectory) ExistsByUsername(_ context.Context, username string) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.users[strings.ToLower(username)]
	return ok, nil
}

func (d *memoryDirectory) Create(_ context.Context, u model.User) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users[strings.ToLower(u.Username)] = u
	return nil
}

func (d *memoryDirectory) remove(username string) {
	d.mu.Lock()
	delete(d.users, strings.ToLower(username))
	d.mu.Unlock()
}

func newUser(t *testing.T, username string, password string, active bool) model.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)

	return model.User{
		ID:           username + "-id",
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: string(hash),
		Role:         "user",
		Active:       active,
	}
}

func newTestAuthService(t *testing.T, directory *memoryDirectory) (*AuthService, *token.Issuer) {
	t.Helper()

	issuer, err := token.NewIssuer(token.Config{
		Secret:     testSecret,
		AccessTTL:  time.Hour,
		RefreshTTL: 24 * time.Hour,
	})
	require.NoError(t, err)

	return NewAuthService(issuer, NewPasswordVerifier(directory), directory), issuer
}

func TestLoginRefreshScenario(t *testing.T) {
	t.Parallel()

	directory := newMemoryDirectory(newUser(t, "alice", "s3cret-pass", true))
	svc, issuer := newTestAuthService(t, directory)
	ctx := context.Background()

	login, err := svc.Login(ctx, "alice", "s3cret-pass")
	require.NoError(t, err)
	require.Equal(t, "Bearer", login.TokenType)
	require.Equal(t, "alice", login.Username)
	require.Equal(t, "alice@example.com", login.Email)
	require.Equal(t, time.Hour.Milliseconds(), login.ExpiresIn)
	require.True(t, issuer.Validate(login.AccessToken))
	require.True(t, issuer.IsRefreshKind(login.RefreshToken))

	refreshed, err := svc.Refresh(ctx, login.RefreshToken)
	require.NoError(t, err)
	require.NotEqual(t, login.AccessToken, refreshed.AccessToken)
	require.NotEqual(t, login.RefreshToken, refreshed.RefreshToken)
	require.Equal(t, "alice", refreshed.Username)

	_, err = svc.Refresh(ctx, login.AccessToken)
	require.ErrorIs(t, err, model.ErrWrongTokenKind)

	// The used refresh token is not tracked and keeps working until it expires.
	_, err = svc.Refresh(ctx, login.RefreshToken)
	require.NoError(t, err)
}

func TestLoginFailures(t *testing.T) {
	t.Parallel()

	directory := newMemoryDirectory(
		newUser(t, "alice", "s3cret-pass", true),
		newUser(t, "carol", "carol-pass", false),
	)
	svc, _ := newTestAuthService(t, directory)
	ctx := context.Background()

	t.Run("wrong password", func(t *testing.T) {
		_, err := svc.Login(ctx, "alice", "nope")
		require.ErrorIs(t, err, model.ErrInvalidCredentials)

		var apiErr *apierror.APIError
		require.ErrorAs(t, err, &apiErr)
		require.Equal(t, http.StatusUnauthorized, apiErr.HTTPStatus)
	})

	t.Run("unknown user", func(t *testing.T) {
		_, err := svc.Login(ctx, "nobody", "whatever")
		require.ErrorIs(t, err, model.ErrInvalidCredentials)
	})

	t.Run("inactive user", func(t *testing.T) {
		_, err := svc.Login(ctx, "carol", "carol-pass")
		require.ErrorIs(t, err, model.ErrUserInactive)
	})

	t.Run("blank input", func(t *testing.T) {
		_, err := svc.Login(ctx, "  ", "x")
		require.ErrorIs(t, err, model.ErrInvalidInput)
	})

	t.Run("directory failure propagates", func(t *testing.T) {
		broken := newMemoryDirectory()
		broken.err = errors.New("connection refused")
		brokenSvc, _ := newTestAuthService(t, broken)

		_, err := brokenSvc.Login(ctx, "alice", "s3cret-pass")
		require.Error(t, err)
		require.NotErrorIs(t, err, model.ErrInvalidCredentials)
	})
}

type staticChecker struct {
	user model.User
}

func (c staticChecker) Authenticate(context.Context, string, string) (model.User, error) {
	return c.user, nil
}

func TestLoginDirectoryInconsistency(t *testing.T) {
	t.Parallel()

	issuer, err := token.NewIssuer(token.Config{Secret: testSecret, AccessTTL: time.Minute, RefreshTTL: time.Hour})
	require.NoError(t, err)

	svc := NewAuthService(issuer, staticChecker{user: model.User{Username: "ghost"}}, newMemoryDirectory())

	_, err = svc.Login(context.Background(), "ghost", "pw")
	require.ErrorIs(t, err, model.ErrUserNotFound)
}

func TestRefreshFailures(t *testing.T) {
	t.Parallel()

	directory := newMemoryDirectory(newUser(t, "alice", "s3cret-pass", true))
	svc, issuer := newTestAuthService(t, directory)
	ctx := context.Background()

	t.Run("garbage token", func(t *testing.T) {
		_, err := svc.Refresh(ctx, "not.a.token")
		require.ErrorIs(t, err, model.ErrInvalidToken)
	})

	t.Run("empty token", func(t *testing.T) {
		_, err := svc.Refresh(ctx, "")
		require.ErrorIs(t, err, model.ErrInvalidInput)
	})

	t.Run("token from another secret", func(t *testing.T) {
		other, err := token.NewIssuer(token.Config{
			Secret:     "a-completely-different-secret-value-xyz",
			AccessTTL:  time.Hour,
			RefreshTTL: 24 * time.Hour,
		})
		require.NoError(t, err)

		foreign, err := other.IssueRefreshToken("alice")
		require.NoError(t, err)

		_, err = svc.Refresh(ctx, foreign)
		require.ErrorIs(t, err, model.ErrInvalidToken)
	})

	t.Run("subject removed from directory", func(t *testing.T) {
		dir := newMemoryDirectory(newUser(t, "dave", "pw-dave", true))
		localSvc, localIssuer := newTestAuthService(t, dir)

		refresh, err := localIssuer.IssueRefreshToken("dave")
		require.NoError(t, err)
		dir.remove("dave")

		_, err = localSvc.Refresh(ctx, refresh)
		require.ErrorIs(t, err, model.ErrUserNotFound)
	})

	t.Run("access token is wrong kind", func(t *testing.T) {
		access, err := issuer.IssueAccessToken("alice")
		require.NoError(t, err)

		_, err = svc.Refresh(ctx, access)
		require.ErrorIs(t, err, model.ErrWrongTokenKind)
	})
}

func TestCurrentUser(t *testing.T) {
	t.Parallel()

	directory := newMemoryDirectory(newUser(t, "alice", "s3cret-pass", true))
	svc, _ := newTestAuthService(t, directory)

	principal, err := svc.CurrentUser(context.Background(), "alice")
	require.NoError(t, err)
	require.Equal(t, "alice@example.com", principal.Email)

	_, err = svc.CurrentUser(context.Background(), "bob")
	require.ErrorIs(t, err, model.ErrUserNotFound)
}

func TestSeedAdmin(t *testing.T) {
	t.Parallel()

	directory := newMemoryDirectory()
	ctx := context.Background()

	created, err := SeedAdmin(ctx, directory, AdminSeed{Username: "admin", Password: "admin-password"})
	require.NoError(t, err)
	require.True(t, created)

	admin, err := directory.FindByUsername(ctx, "admin")
	require.NoError(t, err)
	require.Equal(t, "admin", admin.Role)
	require.True(t, admin.Active)
	require.Equal(t, "admin@localhost", admin.Email)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte("admin-password")))

	created, err = SeedAdmin(ctx, directory, AdminSeed{Username: "admin", Password: "other"})
	require.NoError(t, err)
	require.False(t, created)

	created, err = SeedAdmin(ctx, directory, AdminSeed{})
	require.NoError(t, err)
	require.False(t, created)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []event.Event
}

func (p *recordingPublisher) Publish(e event.Event) {
	p.mu.Lock()
	p.events = append(p.events, e)
	p.mu.Unlock()
}

func TestAuthServicePublishesEvents(t *testing.T) {
	t.Parallel()

	directory := newMemoryDirectory(newUser(t, "alice", "s3cret-pass", true))
	svc, _ := newTestAuthService(t, directory)
	events := &recordingPublisher{}
	svc.SetPublisher(events)
	ctx := context.Background()

	_, err := svc.Login(ctx, "alice", "wrong")
	require.Error(t, err)

	pair, err := svc.Login(ctx, "alice", "s3cret-pass")
	require.NoError(t, err)

	_, err = svc.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)

	_, err = svc.Refresh(ctx, pair.AccessToken)
	require.Error(t, err)

	_, err = svc.Refresh(ctx, "garbage")
	require.Error(t, err)

	want := []struct {
		kind      event.Type
		principal string
		detail    string
	}{
		{event.TypeLoginFailed, "alice", "INVALID_CREDENTIALS"},
		{event.TypeLoginSucceeded, "alice", ""},
		{event.TypeTokenRefreshed, "alice", ""},
		{event.TypeRefreshRejected, "alice", "WRONG_TOKEN_KIND"},
		{event.TypeRefreshRejected, "", "INVALID_TOKEN"},
	}

	require.Len(t, events.events, len(want))
	for i, w := range want {
		require.Equal(t, w.kind, events.events[i].Type, "event %d", i)
		require.Equal(t, w.principal, events.events[i].Principal, "event %d", i)
		require.Equal(t, w.detail, events.events[i].Detail, "event %d", i)
	}
}

package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"artist-catalog-api/internal/model"
	"artist-catalog-api/internal/token"
)

const bearerPrefix = "bearer "

type tokenInspector interface {
	Inspect(tokenString string) (subject string, kind token.Kind, ok bool)
}

type principalDirectory interface {
	FindByUsername(ctx context.Context, username string) (model.User, error)
}

type contextKey string

const principalContextKey contextKey = "principal"

// Authenticator turns a bearer header into a resolved principal. It never
// rejects a request: anything it cannot resolve is treated as anonymous and
// authorization is left to later stages.
type Authenticator struct {
	tokens        tokenInspector
	directory     principalDirectory
	lookupTimeout time.Duration
}

func NewAuthenticator(tokens tokenInspector, directory principalDirectory, lookupTimeout time.Duration) *Authenticator {
	return &Authenticator{
		tokens:        tokens,
		directory:     directory,
		lookupTimeout: lookupTimeout,
	}
}

func (a *Authenticator) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, ok := a.Authenticate(r)
		if ok {
			annotatePrincipal(r.Context(), principal.Username)
			r = r.WithContext(WithPrincipal(r.Context(), principal))
		}

		next.ServeHTTP(w, r)
	})
}

// Authenticate never fails; ok is false for every request that does not
// carry a valid access token for an active directory user.
func (a *Authenticator) Authenticate(r *http.Request) (principal model.Principal, ok bool) {
	defer func() {
		if recovered := recover(); recovered != nil {
			slog.Warn("authentication skipped after panic", "error", recovered, "path", r.URL.Path)
			principal, ok = model.Principal{}, false
		}
	}()

	raw, found := bearerToken(r)
	if !found {
		return model.Principal{}, false
	}

	subject, kind, valid := a.tokens.Inspect(raw)
	if !valid {
		slog.Debug("authentication skipped", "reason", "invalid token", "path", r.URL.Path)
		return model.Principal{}, false
	}
	if kind != token.KindAccess {
		slog.Debug("authentication skipped", "reason", "non-access token", "kind", string(kind), "path", r.URL.Path)
		return model.Principal{}, false
	}

	ctx := r.Context()
	if a.lookupTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.lookupTimeout)
		defer cancel()
	}

	user, err := a.directory.FindByUsername(ctx, subject)
	if err != nil {
		slog.Warn("authentication skipped", "reason", "directory lookup failed", "subject", subject, "error", err)
		return model.Principal{}, false
	}
	if !user.Active {
		slog.Debug("authentication skipped", "reason", "inactive user", "subject", subject)
		return model.Principal{}, false
	}

	return user.Principal(), true
}

func (a *Authenticator) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := PrincipalFromContext(r.Context()); !ok {
			writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (a *Authenticator) RequireRoles(allowedRoles ...string) func(http.Handler) http.Handler {
	roleSet := map[string]struct{}{}
	for _, role := range allowedRoles {
		roleSet[strings.ToLower(strings.TrimSpace(role))] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := PrincipalFromContext(r.Context())
			if !ok {
				writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
				return
			}

			if _, exists := roleSet[strings.ToLower(principal.Role)]; !exists {
				writeUnauthorized(w, "FORBIDDEN", "insufficient permissions")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func WithPrincipal(ctx context.Context, principal model.Principal) context.Context {
	return context.WithValue(ctx, principalContextKey, principal)
}

func PrincipalFromContext(ctx context.Context) (model.Principal, bool) {
	principal, ok := ctx.Value(principalContextKey).(model.Principal)
	return principal, ok
}

func bearerToken(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(header) <= len(bearerPrefix) || !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		return "", false
	}

	raw := strings.TrimSpace(header[len(bearerPrefix):])
	return raw, raw != ""
}

func writeUnauthorized(w http.ResponseWriter, code string, message string) {
	status := http.StatusUnauthorized
	if code == "FORBIDDEN" {
		status = http.StatusForbidden
	}
	writeAPIError(w, status, code, message)
}

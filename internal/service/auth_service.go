package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"artist-catalog-api/internal/event"
	"artist-catalog-api/internal/model"
	"artist-catalog-api/pkg/apierror"
)

const tokenTypeBearer = "Bearer"

type userDirectory interface {
	FindByUsername(ctx context.Context, username string) (model.User, error)
}

type credentialChecker interface {
	Authenticate(ctx context.Context, username string, password string) (model.User, error)
}

type tokenIssuer interface {
	IssueAccessToken(subject string) (string, error)
	IssueRefreshToken(subject string) (string, error)
	Validate(tokenString string) bool
	IsRefreshKind(tokenString string) bool
	ExtractSubject(tokenString string) (string, error)
	AccessTokenTTL() time.Duration
}

// AuthService runs the login and refresh flows. It is the only component
// allowed to mint tokens and it never writes to the directory.
type AuthService struct {
	issuer      tokenIssuer
	credentials credentialChecker
	directory   userDirectory
	events      event.Publisher
}

func NewAuthService(issuer tokenIssuer, credentials credentialChecker, directory userDirectory) *AuthService {
	return &AuthService{
		issuer:      issuer,
		credentials: credentials,
		directory:   directory,
	}
}

// SetPublisher enables auth event publishing. A nil publisher disables it.
func (s *AuthService) SetPublisher(events event.Publisher) {
	s.events = events
}

func (s *AuthService) Login(ctx context.Context, username string, password string) (model.AuthResponse, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return model.AuthResponse{}, apierror.Wrap(model.ErrInvalidInput, "BAD_REQUEST", "username and password are required", http.StatusBadRequest)
	}

	verified, err := s.credentials.Authenticate(ctx, username, password)
	if err != nil {
		s.publish(event.TypeLoginFailed, username, errorCode(err))
		return model.AuthResponse{}, err
	}

	resp, err := s.issuePair(ctx, verified.Username)
	if err != nil {
		return model.AuthResponse{}, err
	}

	slog.Info("user logged in", "username", resp.Username)
	s.publish(event.TypeLoginSucceeded, resp.Username, "")
	return resp, nil
}

func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (model.AuthResponse, error) {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return model.AuthResponse{}, apierror.Wrap(model.ErrInvalidInput, "BAD_REQUEST", "refreshToken is required", http.StatusBadRequest)
	}

	if !s.issuer.Validate(refreshToken) {
		s.publish(event.TypeRefreshRejected, "", "INVALID_TOKEN")
		return model.AuthResponse{}, apierror.Wrap(model.ErrInvalidToken, "INVALID_TOKEN", "refresh token is invalid or expired", http.StatusUnauthorized)
	}

	if !s.issuer.IsRefreshKind(refreshToken) {
		subject, _ := s.issuer.ExtractSubject(refreshToken)
		s.publish(event.TypeRefreshRejected, subject, "WRONG_TOKEN_KIND")
		return model.AuthResponse{}, apierror.Wrap(model.ErrWrongTokenKind, "WRONG_TOKEN_KIND", "provided token is not a refresh token", http.StatusBadRequest)
	}

	subject, err := s.issuer.ExtractSubject(refreshToken)
	if err != nil {
		return model.AuthResponse{}, apierror.Wrap(model.ErrInvalidToken, "INVALID_TOKEN", "refresh token is invalid or expired", http.StatusUnauthorized)
	}

	resp, err := s.issuePair(ctx, subject)
	if err != nil {
		return model.AuthResponse{}, err
	}

	s.publish(event.TypeTokenRefreshed, resp.Username, "")
	return resp, nil
}

// CurrentUser resolves the directory record behind an authenticated principal.
func (s *AuthService) CurrentUser(ctx context.Context, username string) (model.Principal, error) {
	user, err := s.directory.FindByUsername(ctx, username)
	if err != nil {
		return model.Principal{}, err
	}

	return user.Principal(), nil
}

func (s *AuthService) AccessTokenTTL() time.Duration {
	return s.issuer.AccessTokenTTL()
}

func (s *AuthService) issuePair(ctx context.Context, subject string) (model.AuthResponse, error) {
	user, err := s.directory.FindByUsername(ctx, subject)
	if err != nil {
		if errors.Is(err, model.ErrUserNotFound) {
			slog.Error("directory has no record for authenticated subject", "subject", subject)
		}
		return model.AuthResponse{}, fmt.Errorf("resolve subject %q: %w", subject, err)
	}

	accessToken, err := s.issuer.IssueAccessToken(user.Username)
	if err != nil {
		return model.AuthResponse{}, fmt.Errorf("issue access token: %w", err)
	}

	refreshToken, err := s.issuer.IssueRefreshToken(user.Username)
	if err != nil {
		return model.AuthResponse{}, fmt.Errorf("issue refresh token: %w", err)
	}

	return model.AuthResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    tokenTypeBearer,
		ExpiresIn:    s.issuer.AccessTokenTTL().Milliseconds(),
		Username:     user.Username,
		Email:        user.Email,
	}, nil
}

func (s *AuthService) publish(eventType event.Type, principal string, detail string) {
	if s.events == nil {
		return
	}
	s.events.Publish(event.Event{Type: eventType, Principal: principal, Detail: detail})
}

func errorCode(err error) string {
	var apiErr *apierror.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return "INTERNAL_ERROR"
}

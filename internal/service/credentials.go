package service

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"golang.org/x/crypto/bcrypt"

	"artist-catalog-api/internal/model"
	"artist-catalog-api/pkg/apierror"
)

const BcryptCost = 12

// PasswordVerifier checks a username/password pair against the bcrypt hash
// stored in the user directory.
type PasswordVerifier struct {
	directory userDirectory

	dummyOnce sync.Once
	dummyHash []byte
}

func NewPasswordVerifier(directory userDirectory) *PasswordVerifier {
	return &PasswordVerifier{directory: directory}
}

func (v *PasswordVerifier) Authenticate(ctx context.Context, username string, password string) (model.User, error) {
	user, err := v.directory.FindByUsername(ctx, username)
	if errors.Is(err, model.ErrUserNotFound) {
		// Burn a comparison so unknown usernames cost the same as wrong passwords.
		_ = bcrypt.CompareHashAndPassword(v.dummy(), []byte(password))
		return model.User{}, invalidCredentials()
	}
	if err != nil {
		return model.User{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return model.User{}, invalidCredentials()
	}

	if !user.Active {
		return model.User{}, apierror.Wrap(model.ErrUserInactive, "ACCOUNT_DISABLED", "account is disabled", http.StatusUnauthorized)
	}

	return user, nil
}

func (v *PasswordVerifier) dummy() []byte {
	v.dummyOnce.Do(func() {
		v.dummyHash, _ = bcrypt.GenerateFromPassword([]byte("not-a-real-password"), BcryptCost)
	})
	return v.dummyHash
}

func invalidCredentials() error {
	return apierror.Wrap(model.ErrInvalidCredentials, "INVALID_CREDENTIALS", "invalid username or password", http.StatusUnauthorized)
}

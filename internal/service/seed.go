package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"artist-catalog-api/internal/model"
)

type userSeedStore interface {
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	Create(ctx context.Context, u model.User) error
}

type AdminSeed struct {
	Username string
	Password string
	Email    string
}

// SeedAdmin creates the bootstrap admin account when it does not exist yet.
// It runs once at startup, before the server accepts requests.
func SeedAdmin(ctx context.Context, store userSeedStore, seed AdminSeed) (bool, error) {
	username := strings.TrimSpace(seed.Username)
	if username == "" || seed.Password == "" {
		return false, nil
	}

	exists, err := store.ExistsByUsername(ctx, username)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(seed.Password), BcryptCost)
	if err != nil {
		return false, fmt.Errorf("hash admin password: %w", err)
	}

	email := strings.TrimSpace(seed.Email)
	if email == "" {
		email = username + "@localhost"
	}

	now := time.Now().UTC()
	if err := store.Create(ctx, model.User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		Role:         "admin",
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}); err != nil {
		return false, err
	}

	slog.Info("seeded admin user", "username", username)
	return true, nil
}

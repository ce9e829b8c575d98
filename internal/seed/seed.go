package seed

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	appModels "github.com/brightstar/portal/internal/app/models"
	"github.com/brightstar/portal/internal/pkg/apperrors"
)

type adminStore interface {
	GetByUsername(ctx context.Context, username string) (*appModels.Admin, error)
	Create(ctx context.Context, admin *appModels.Admin) error
}

type hasher interface {
	Hash(password string) (string, error)
}

// CreateDefaultAdmin creates the bootstrap administrator if no admin with that
// username exists. An empty username or password disables seeding.
func CreateDefaultAdmin(ctx context.Context, admins adminStore, h hasher, username, password string, lgr zerolog.Logger) error {
	if username == "" || password == "" {
		lgr.Debug().Msg("No bootstrap admin configured, skipping seed")
		return nil
	}

	_, err := admins.GetByUsername(ctx, username)
	if err == nil {
		lgr.Debug().Str("username", username).Msg("Bootstrap admin already exists")
		return nil
	}
	if !errors.Is(err, apperrors.ErrAdminNotFound) {
		return fmt.Errorf("failed to look up bootstrap admin: %w", err)
	}

	hash, err := h.Hash(password)
	if err != nil {
		return fmt.Errorf("failed to hash bootstrap admin password: %w", err)
	}

	admin := &appModels.Admin{
		Username:     username,
		PasswordHash: hash,
		FullName:     "Administrator",
		IsActive:     true,
	}
	if err := admins.Create(ctx, admin); err != nil {
		return fmt.Errorf("failed to create bootstrap admin: %w", err)
	}

	lgr.Info().Str("username", username).Int64("id", admin.ID).Msg("Bootstrap admin created")
	return nil
}

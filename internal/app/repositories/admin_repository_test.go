package repositories

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightstar/portal/internal/app/models"
	"github.com/brightstar/portal/internal/pkg/apperrors"
)

func TestAdminCreateMapsTakenUsername(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "admins_username_key"}
	repo := NewAdminRepository(&fakeStore{err: apperrors.NewStoreError("query", pgErr)})

	err := repo.Create(context.Background(), &models.Admin{Username: "admin"})
	assert.ErrorIs(t, err, apperrors.ErrConflict)
	assert.ErrorContains(t, err, "admin admin already exists")
}

func TestAdminCreatePropagatesStoreFailure(t *testing.T) {
	repo := NewAdminRepository(&fakeStore{err: apperrors.NewStoreError("query", errors.New("connection refused"))})

	err := repo.Create(context.Background(), &models.Admin{Username: "admin"})
	assert.ErrorIs(t, err, apperrors.ErrStoreFailure)
	assert.NotErrorIs(t, err, apperrors.ErrConflict)
}

func TestAdminCreateFillsID(t *testing.T) {
	now := time.Date(2024, 9, 1, 8, 0, 0, 0, time.UTC)
	store := &fakeStore{results: [][]map[string]any{{{"id": int64(3), "created_at": now}}}}
	repo := NewAdminRepository(store)

	admin := &models.Admin{Username: "bursar", PasswordHash: "hash", IsActive: true}
	require.NoError(t, repo.Create(context.Background(), admin))
	assert.Equal(t, int64(3), admin.ID)
	assert.Equal(t, now, admin.CreatedAt)
	assert.Equal(t, []any{"bursar", "hash", "", true}, store.last().args)
}

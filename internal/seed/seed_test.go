package seed

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appModels "github.com/brightstar/portal/internal/app/models"
	"github.com/brightstar/portal/internal/pkg/apperrors"
)

type memoryAdmins struct {
	admins    map[string]*appModels.Admin
	lookupErr error
}

func (m *memoryAdmins) GetByUsername(_ context.Context, username string) (*appModels.Admin, error) {
	if m.lookupErr != nil {
		return nil, m.lookupErr
	}
	a, ok := m.admins[username]
	if !ok {
		return nil, apperrors.ErrAdminNotFound
	}
	return a, nil
}

func (m *memoryAdmins) Create(_ context.Context, admin *appModels.Admin) error {
	admin.ID = int64(len(m.admins) + 1)
	m.admins[admin.Username] = admin
	return nil
}

type prefixHasher struct{}

func (prefixHasher) Hash(password string) (string, error) { return "hashed:" + password, nil }

func TestCreateDefaultAdmin(t *testing.T) {
	admins := &memoryAdmins{admins: map[string]*appModels.Admin{}}

	require.NoError(t, CreateDefaultAdmin(context.Background(), admins, prefixHasher{}, "admin", "change-me-now", zerolog.Nop()))
	require.Contains(t, admins.admins, "admin")
	assert.Equal(t, "hashed:change-me-now", admins.admins["admin"].PasswordHash)
	assert.True(t, admins.admins["admin"].IsActive)

	// second run leaves the existing account alone
	admins.admins["admin"].PasswordHash = "rotated"
	require.NoError(t, CreateDefaultAdmin(context.Background(), admins, prefixHasher{}, "admin", "change-me-now", zerolog.Nop()))
	assert.Equal(t, "rotated", admins.admins["admin"].PasswordHash)
	assert.Len(t, admins.admins, 1)
}

func TestCreateDefaultAdminSkipsWhenUnconfigured(t *testing.T) {
	admins := &memoryAdmins{admins: map[string]*appModels.Admin{}}
	require.NoError(t, CreateDefaultAdmin(context.Background(), admins, prefixHasher{}, "", "", zerolog.Nop()))
	assert.Empty(t, admins.admins)
}

func TestCreateDefaultAdminPropagatesStoreFailure(t *testing.T) {
	admins := &memoryAdmins{admins: map[string]*appModels.Admin{}, lookupErr: errors.New("connection refused")}
	err := CreateDefaultAdmin(context.Background(), admins, prefixHasher{}, "admin", "change-me-now", zerolog.Nop())
	assert.ErrorContains(t, err, "connection refused")
	assert.Empty(t, admins.admins)
}

package repositories

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"

	"github.com/brightstar/portal/internal/app/models"
	"github.com/brightstar/portal/internal/db"
	"github.com/brightstar/portal/internal/pkg/apperrors"
	"github.com/brightstar/portal/internal/pkg/dberrors"
)

// AdminRepository handles database operations for admin accounts
type AdminRepository struct {
	store db.Store
	sb    squirrel.StatementBuilderType
}

// NewAdminRepository creates a new AdminRepository
func NewAdminRepository(store db.Store) *AdminRepository {
	return &AdminRepository{
		store: store,
		sb:    squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// GetByUsername retrieves an admin by username
func (r *AdminRepository) GetByUsername(ctx context.Context, username string) (*models.Admin, error) {
	sql, args, err := r.sb.Select("id", "username", "password_hash", "full_name", "is_active", "created_at").
		From("admins").
		Where(squirrel.Eq{"username": username}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("error building SQL: %w", err)
	}

	rows, err := r.store.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get admin: %w", err)
	}
	if len(rows) == 0 {
		return nil, apperrors.ErrAdminNotFound
	}
	return adminFromRow(rows[0])
}

// Create inserts a new admin and fills in its ID.
// A taken username is reported as apperrors.ErrConflict.
func (r *AdminRepository) Create(ctx context.Context, admin *models.Admin) error {
	sql, args, err := r.sb.Insert("admins").
		Columns("username", "password_hash", "full_name", "is_active").
		Values(admin.Username, admin.PasswordHash, admin.FullName, admin.IsActive).
		Suffix("RETURNING id, created_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("error building SQL: %w", err)
	}

	rows, err := r.store.Query(ctx, sql, args...)
	if err != nil {
		if dberrors.IsUniqueViolation(err) {
			return fmt.Errorf("%w: admin %s already exists", apperrors.ErrConflict, admin.Username)
		}
		return fmt.Errorf("failed to create admin: %w", err)
	}
	if len(rows) != 1 {
		return apperrors.NewStoreError("create admin", fmt.Errorf("insert returned %d rows", len(rows)))
	}

	if admin.ID, err = rowInt64(rows[0], "id"); err != nil {
		return err
	}
	admin.CreatedAt, err = rowTime(rows[0], "created_at")
	return err
}

// UpdatePassword stores a new password hash
func (r *AdminRepository) UpdatePassword(ctx context.Context, id int64, hash string) error {
	sql, args, err := r.sb.Update("admins").
		Set("password_hash", hash).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("error building SQL: %w", err)
	}

	affected, err := r.store.Execute(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("failed to update admin password: %w", err)
	}
	if affected == 0 {
		return apperrors.ErrAdminNotFound
	}
	return nil
}

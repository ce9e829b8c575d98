package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/brightstar/portal/internal/app/models"
	"github.com/brightstar/portal/internal/pkg/apperrors"
	"github.com/brightstar/portal/internal/pkg/auth"
)

type adminAccounts interface {
	GetByUsername(ctx context.Context, username string) (*models.Admin, error)
	UpdatePassword(ctx context.Context, id int64, hash string) error
}

type studentAccounts interface {
	GetByStudentID(ctx context.Context, studentID string) (*models.Student, error)
	UpdatePassword(ctx context.Context, id int64, hash string) error
}

// LoginResult is a signed access token plus the account it was issued for
type LoginResult struct {
	AccessToken string
	ExpiresIn   int
	Role        string
	Account     interface{}
}

// AuthService handles admin and student logins
type AuthService struct {
	admins     adminAccounts
	students   studentAccounts
	hasher     *auth.PasswordHasher
	jwtService *auth.JWTService
	logger     zerolog.Logger
}

// NewAuthService creates a new AuthService
func NewAuthService(
	admins adminAccounts,
	students studentAccounts,
	hasher *auth.PasswordHasher,
	jwtService *auth.JWTService,
	logger zerolog.Logger,
) *AuthService {
	return &AuthService{
		admins:     admins,
		students:   students,
		hasher:     hasher,
		jwtService: jwtService,
		logger:     logger.With().Str("component", "auth_service").Logger(),
	}
}

// LoginAdmin authenticates an administrator by username
func (s *AuthService) LoginAdmin(ctx context.Context, username, password string) (*LoginResult, error) {
	username = strings.TrimSpace(username)
	admin, err := s.admins.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, apperrors.ErrAdminNotFound) {
			s.logger.Warn().Str("username", username).Msg("Admin login failed: unknown username")
			return nil, apperrors.ErrInvalidCredentials
		}
		return nil, err
	}

	if !admin.IsActive {
		s.logger.Warn().Str("username", username).Msg("Admin login refused: account disabled")
		return nil, apperrors.ErrAccountDisabled
	}
	if !s.hasher.Verify(username, admin.PasswordHash, password) {
		s.logger.Warn().Str("username", username).Msg("Admin login failed: wrong password")
		return nil, apperrors.ErrInvalidCredentials
	}

	s.upgradeLegacyHash(username, admin.PasswordHash, password, func(hash string) error {
		return s.admins.UpdatePassword(ctx, admin.ID, hash)
	})

	return s.issue(admin.ID, admin.Username, auth.RoleAdmin, admin)
}

// LoginStudent authenticates a student by identifier. Inactive students cannot log in.
func (s *AuthService) LoginStudent(ctx context.Context, studentID, password string) (*LoginResult, error) {
	studentID = strings.ToUpper(strings.TrimSpace(studentID))
	student, err := s.students.GetByStudentID(ctx, studentID)
	if err != nil {
		if errors.Is(err, apperrors.ErrStudentNotFound) {
			s.logger.Warn().Str("studentId", studentID).Msg("Student login failed: unknown identifier")
			return nil, apperrors.ErrInvalidCredentials
		}
		return nil, err
	}

	if !student.IsActive() {
		s.logger.Warn().Str("studentId", studentID).Msg("Student login refused: account inactive")
		return nil, apperrors.ErrAccountDisabled
	}
	if !s.hasher.Verify(studentID, student.PasswordHash, password) {
		s.logger.Warn().Str("studentId", studentID).Msg("Student login failed: wrong password")
		return nil, apperrors.ErrInvalidCredentials
	}

	s.upgradeLegacyHash(studentID, student.PasswordHash, password, func(hash string) error {
		return s.students.UpdatePassword(ctx, student.ID, hash)
	})

	return s.issue(student.ID, student.StudentID, auth.RoleStudent, student)
}

func (s *AuthService) issue(id int64, login, role string, account interface{}) (*LoginResult, error) {
	token, expiresIn, err := s.jwtService.GenerateToken(id, login, role)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}
	s.logger.Info().Str("login", login).Str("role", role).Msg("Login succeeded")
	return &LoginResult{AccessToken: token, ExpiresIn: expiresIn, Role: role, Account: account}, nil
}

// upgradeLegacyHash replaces a verified plain-text password with its bcrypt
// hash. Failures are logged and do not affect the login.
func (s *AuthService) upgradeLegacyHash(account, stored, password string, store func(hash string) error) {
	if auth.IsBcryptHash(stored) {
		return
	}
	hash, err := s.hasher.Hash(password)
	if err == nil {
		err = store(hash)
	}
	if err != nil {
		s.logger.Error().Err(err).Str("account", account).Msg("Failed to upgrade legacy password")
		return
	}
	s.logger.Info().Str("account", account).Msg("Legacy password upgraded to bcrypt")
}

package auth

import (
	"crypto/subtle"
	"errors"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/brightstar/portal/internal/pkg/apperrors"
)

// DefaultBcryptCost is used when the configuration does not set a cost
const DefaultBcryptCost = 12

// MaxPasswordBytes is the longest input bcrypt accepts
const MaxPasswordBytes = 72

// PasswordHasher hashes and verifies credentials.
type PasswordHasher struct {
	cost        int
	allowLegacy bool
	logger      zerolog.Logger
}

// NewPasswordHasher creates a hasher. allowLegacy enables plain-text comparison
// for rows that predate hashing; every such comparison is logged.
func NewPasswordHasher(cost int, allowLegacy bool, logger zerolog.Logger) *PasswordHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultBcryptCost
	}
	if allowLegacy {
		logger.Warn().Msg("Legacy plain-text password compatibility is ENABLED; migrate remaining accounts and turn it off")
	}
	return &PasswordHasher{cost: cost, allowLegacy: allowLegacy, logger: logger}
}

// Hash returns the bcrypt hash of password
func (h *PasswordHasher) Hash(password string) (string, error) {
	if len(password) > MaxPasswordBytes {
		return "", apperrors.NewValidationError("Password must not exceed %d bytes", MaxPasswordBytes)
	}
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

// Verify reports whether password matches the stored value for account.
func (h *PasswordHasher) Verify(account, stored, password string) bool {
	if IsBcryptHash(stored) {
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(password)) == nil
	}

	if !h.allowLegacy {
		h.logger.Warn().Str("account", account).Msg("Rejected login against a non-hashed stored password")
		return false
	}

	h.logger.Warn().Str("account", account).Msg("LEGACY plain-text password comparison used")
	return subtle.ConstantTimeCompare([]byte(stored), []byte(password)) == 1
}

// IsBcryptHash recognises the $2a$/$2b$/$2y$ bcrypt prefixes.
func IsBcryptHash(value string) bool {
	if len(value) != 60 {
		return false
	}
	return strings.HasPrefix(value, "$2a$") || strings.HasPrefix(value, "$2b$") || strings.HasPrefix(value, "$2y$")
}

// ErrWeakPassword is returned for passwords that fail the minimum policy
var ErrWeakPassword = errors.New("password must be at least 8 characters and contain a letter and a digit")

// CheckPolicy enforces the minimum password policy for user-chosen passwords.
func CheckPolicy(password string) error {
	if len(password) < 8 {
		return ErrWeakPassword
	}
	hasLetter := strings.IndexFunc(password, func(r rune) bool {
		return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
	}) >= 0
	hasDigit := strings.IndexFunc(password, func(r rune) bool { return r >= '0' && r <= '9' }) >= 0
	if !hasLetter || !hasDigit {
		return ErrWeakPassword
	}
	return nil
}

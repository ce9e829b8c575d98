package auth

import (
	"fmt"

	"github.com/brightstar/portal/internal/pkg/apperrors"
	pkgAuth "github.com/brightstar/portal/internal/pkg/auth"
)

// ValidateStudentAccess checks that the caller may read a student's record or
// photo. Admins may read any student; a student only their own row.
func ValidateStudentAccess(role string, accountID, studentID int64) error {
	switch role {
	case pkgAuth.RoleAdmin:
		return nil
	case pkgAuth.RoleStudent:
		if accountID == studentID {
			return nil
		}
		return fmt.Errorf("%w: students may only access their own record", apperrors.ErrPermissionDenied)
	default:
		return apperrors.ErrPermissionDenied
	}
}

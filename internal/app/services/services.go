package services

import (
	"github.com/rs/zerolog"

	"github.com/brightstar/portal/internal/app/repositories"
	"github.com/brightstar/portal/internal/pkg/auth"
	"github.com/brightstar/portal/internal/pkg/cache"
)

// Services groups the application services
type Services struct {
	Students *StudentService
	Import   *ImportService
	Auth     *AuthService
}

// Dependencies are the collaborators shared by the services
type Dependencies struct {
	Repos            *repositories.Repositories
	Hasher           *auth.PasswordHasher
	JWT              *auth.JWTService
	ClassCache       cache.ClassCache
	IdentifierPrefix string
	Logger           zerolog.Logger
}

// NewServices wires every service from its repositories
func NewServices(deps Dependencies) *Services {
	ids := NewIdentifierGenerator(deps.Repos.StudentRepository, deps.IdentifierPrefix, deps.Logger)
	students := NewStudentService(deps.Repos.StudentRepository, ids, deps.Hasher, deps.ClassCache, deps.Logger)

	return &Services{
		Students: students,
		Import:   NewImportService(students, deps.Logger),
		Auth:     NewAuthService(deps.Repos.AdminRepository, deps.Repos.StudentRepository, deps.Hasher, deps.JWT, deps.Logger),
	}
}

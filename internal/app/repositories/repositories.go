package repositories

import "github.com/brightstar/portal/internal/db"

// Repositories holds all the repository instances
type Repositories struct {
	StudentRepository *StudentRepository
	AdminRepository   *AdminRepository
}

// NewRepositories initializes all repositories
func NewRepositories(store db.Store) *Repositories {
	return &Repositories{
		StudentRepository: NewStudentRepository(store),
		AdminRepository:   NewAdminRepository(store),
	}
}

package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/brightstar/portal/internal/app/models"
	"github.com/brightstar/portal/internal/app/repositories"
	"github.com/brightstar/portal/internal/pkg/apperrors"
	"github.com/brightstar/portal/internal/pkg/auth"
	"github.com/brightstar/portal/internal/pkg/cache"
	"github.com/brightstar/portal/internal/pkg/helpers"
	"github.com/brightstar/portal/internal/pkg/tabular"
)

// maxCreateAttempts bounds INSERT retries when the identifier is taken between check and write
const maxCreateAttempts = 3

const (
	DefaultSearchLimit = 10
	MaxSearchLimit     = 50
	minSearchLength    = 2
)

// ExportColumns is the header of exported files. It is a superset of the import columns.
var ExportColumns = []string{
	"student_id", "first_name", "last_name", "gender", "date_of_birth",
	"class_name", "guardian_name", "guardian_phone", "guardian_email",
	"address", "admission_date", "status",
}

// studentStore is the persistence surface used by StudentService
type studentStore interface {
	identifierStore
	Create(ctx context.Context, s *models.Student) error
	GetByID(ctx context.Context, id int64) (*models.Student, error)
	GetByStudentID(ctx context.Context, studentID string) (*models.Student, error)
	Update(ctx context.Context, id int64, f models.StudentFields) error
	SetStatus(ctx context.Context, id int64, status models.StudentStatus) error
	UpdatePassword(ctx context.Context, id int64, hash string) error
	Count(ctx context.Context, p *repositories.Predicate) (int64, error)
	List(ctx context.Context, q repositories.StudentQuery) ([]models.Student, error)
	DistinctClasses(ctx context.Context) ([]string, error)
	Search(ctx context.Context, term string, limit uint64) ([]models.Student, error)
	ListForExport(ctx context.Context, p *repositories.Predicate) ([]models.Student, error)
}

// ListParams are the raw listing inputs; out-of-range values are clamped
type ListParams struct {
	Page            int
	PerPage         int
	Search          string
	ClassName       string
	Gender          string
	SortBy          string
	SortOrder       string
	IncludeInactive bool
}

// StudentPage is one page of the directory with its pagination metadata
type StudentPage struct {
	Items      []models.Student
	Pagination helpers.Pagination
}

// ExportFilter selects the records written by Export
type ExportFilter struct {
	ClassName       string
	Gender          string
	IncludeInactive bool
}

// StudentService implements the student directory operations
type StudentService struct {
	repo    studentStore
	ids     *IdentifierGenerator
	hasher  *auth.PasswordHasher
	classes cache.ClassCache
	now     func() time.Time
	logger  zerolog.Logger
}

// NewStudentService creates a new StudentService
func NewStudentService(
	repo studentStore,
	ids *IdentifierGenerator,
	hasher *auth.PasswordHasher,
	classes cache.ClassCache,
	logger zerolog.Logger,
) *StudentService {
	if classes == nil {
		classes = cache.NoopClassCache{}
	}
	return &StudentService{
		repo:    repo,
		ids:     ids,
		hasher:  hasher,
		classes: classes,
		now:     time.Now,
		logger:  logger.With().Str("component", "student_service").Logger(),
	}
}

// defaultPassword is the initial credential: lower-cased last name followed
// by the last four characters of the identifier. The name is cut on a rune
// boundary so the result fits in auth.MaxPasswordBytes.
func defaultPassword(lastName, studentID string) string {
	suffix := studentID
	if len(suffix) > 4 {
		suffix = suffix[len(suffix)-4:]
	}
	name := strings.ToLower(strings.TrimSpace(lastName))
	budget := auth.MaxPasswordBytes - len(suffix)
	if len(name) > budget {
		cut := 0
		for i := range name {
			if i > budget {
				break
			}
			cut = i
		}
		name = name[:cut]
	}
	return name + suffix
}

func (s *StudentService) today() time.Time {
	y, m, d := s.now().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Create assigns an identifier and an initial credential, then stores the
// student. It returns the plain initial password so it can be handed out once.
func (s *StudentService) Create(ctx context.Context, student *models.Student) (string, error) {
	if strings.TrimSpace(student.FirstName) == "" || strings.TrimSpace(student.LastName) == "" {
		return "", apperrors.NewValidationError("first and last name are required")
	}
	if student.Status == "" {
		student.Status = models.StudentStatusActive
	}
	if student.AdmissionDate.IsZero() {
		student.AdmissionDate = s.today()
	}

	var lastErr error
	for attempt := 1; attempt <= maxCreateAttempts; attempt++ {
		var id string
		if attempt == maxCreateAttempts {
			id = s.ids.Fallback()
		} else {
			id = s.ids.Generate(ctx)
		}

		password := defaultPassword(student.LastName, id)
		hash, err := s.hasher.Hash(password)
		if err != nil {
			return "", fmt.Errorf("failed to hash password: %w", err)
		}
		student.StudentID = id
		student.PasswordHash = hash

		err = s.repo.Create(ctx, student)
		if err == nil {
			s.classes.Invalidate(ctx)
			s.logger.Info().Int64("id", student.ID).Str("studentId", id).Msg("Student created")
			return password, nil
		}
		if !errors.Is(err, apperrors.ErrDuplicateCandidate) {
			return "", err
		}
		lastErr = err
		s.logger.Warn().Str("candidate", id).Int("attempt", attempt).Msg("Identifier taken at insert, retrying")
	}
	return "", fmt.Errorf("failed to create student after %d attempts: %w", maxCreateAttempts, lastErr)
}

// listPredicate builds the listing filter. Search terms are OR-ed across
// names, identifier and guardian; every other filter is AND-ed.
func listPredicate(search, className, gender string, includeInactive bool) *repositories.Predicate {
	p := repositories.NewPredicate()
	if term := strings.TrimSpace(search); term != "" {
		p.AnyOf(
			repositories.Clause{Column: repositories.ColumnFirstName, Operator: repositories.OpContains, Value: term},
			repositories.Clause{Column: repositories.ColumnLastName, Operator: repositories.OpContains, Value: term},
			repositories.Clause{Column: repositories.ColumnStudentID, Operator: repositories.OpContains, Value: term},
			repositories.Clause{Column: repositories.ColumnGuardianName, Operator: repositories.OpContains, Value: term},
		)
	}
	if className = strings.TrimSpace(className); className != "" {
		p.Where(repositories.ColumnClassName, repositories.OpEq, className)
	}
	if gender = strings.ToLower(strings.TrimSpace(gender)); gender != "" {
		p.Where(repositories.ColumnGender, repositories.OpEq, gender)
	}
	if !includeInactive {
		p.Where(repositories.ColumnStatus, repositories.OpEq, string(models.StudentStatusActive))
	}
	return p
}

// ListPage returns one filtered, sorted page plus pagination metadata.
// A store failure aborts the whole call; no partial page is returned.
func (s *StudentService) ListPage(ctx context.Context, params ListParams) (*StudentPage, error) {
	page := helpers.ClampPage(params.Page)
	perPage := helpers.ClampPerPage(params.PerPage)
	pred := listPredicate(params.Search, params.ClassName, params.Gender, params.IncludeInactive)

	total, err := s.repo.Count(ctx, pred)
	if err != nil {
		return nil, err
	}

	pagination := helpers.NewPagination(total, page, perPage)
	items := []models.Student{}
	if page > pagination.Pages {
		return &StudentPage{Items: items, Pagination: pagination}, nil
	}

	offset, limit := helpers.CalculateOffsetLimit(page, perPage)
	if offset < uint64(total) {
		items, err = s.repo.List(ctx, repositories.StudentQuery{
			Predicate: pred,
			Sort:      repositories.ResolveSort(params.SortBy, params.SortOrder),
			Offset:    offset,
			Limit:     limit,
		})
		if err != nil {
			return nil, err
		}
	}

	return &StudentPage{Items: items, Pagination: pagination}, nil
}

// GetByID retrieves a student by internal ID
func (s *StudentService) GetByID(ctx context.Context, id int64) (*models.Student, error) {
	return s.repo.GetByID(ctx, id)
}

// GetByStudentID retrieves a student by identifier
func (s *StudentService) GetByStudentID(ctx context.Context, studentID string) (*models.Student, error) {
	return s.repo.GetByStudentID(ctx, strings.ToUpper(strings.TrimSpace(studentID)))
}

// Update writes the given fields; the identifier is immutable
func (s *StudentService) Update(ctx context.Context, id int64, fields models.StudentFields) error {
	if err := s.repo.Update(ctx, id, fields); err != nil {
		return err
	}
	s.classes.Invalidate(ctx)
	s.logger.Info().Int64("id", id).Msg("Student updated")
	return nil
}

// SoftDelete marks the student inactive. The row and identifier are kept.
func (s *StudentService) SoftDelete(ctx context.Context, id int64) error {
	if err := s.repo.SetStatus(ctx, id, models.StudentStatusInactive); err != nil {
		return err
	}
	s.classes.Invalidate(ctx)
	s.logger.Info().Int64("id", id).Msg("Student deactivated")
	return nil
}

// ToggleStatus flips active/inactive and returns the new status
func (s *StudentService) ToggleStatus(ctx context.Context, id int64) (models.StudentStatus, error) {
	student, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	next := student.Status.Toggled()
	if err := s.repo.SetStatus(ctx, id, next); err != nil {
		return "", err
	}
	s.classes.Invalidate(ctx)
	s.logger.Info().Int64("id", id).Str("status", string(next)).Msg("Student status toggled")
	return next, nil
}

// Classes returns the distinct class labels of active students
func (s *StudentService) Classes(ctx context.Context) ([]string, error) {
	if classes, ok := s.classes.Get(ctx); ok {
		return classes, nil
	}
	classes, err := s.repo.DistinctClasses(ctx)
	if err != nil {
		return nil, err
	}
	s.classes.Set(ctx, classes)
	return classes, nil
}

// Search is the quick lookup used by autocomplete widgets
func (s *StudentService) Search(ctx context.Context, q string, limit int) ([]models.Student, error) {
	q = strings.TrimSpace(q)
	if len([]rune(q)) < minSearchLength {
		return nil, apperrors.NewValidationError("search term must be at least %d characters", minSearchLength)
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	if limit > MaxSearchLimit {
		limit = MaxSearchLimit
	}
	return s.repo.Search(ctx, q, uint64(limit))
}

// Export writes every matching student, ordered by last name, and returns the row count
func (s *StudentService) Export(ctx context.Context, filter ExportFilter, w io.Writer, format tabular.Format) (int, error) {
	students, err := s.repo.ListForExport(ctx, listPredicate("", filter.ClassName, filter.Gender, filter.IncludeInactive))
	if err != nil {
		return 0, err
	}

	rows := make([][]string, 0, len(students))
	for _, st := range students {
		rows = append(rows, []string{
			st.StudentID, st.FirstName, st.LastName, st.Gender, formatDate(st.DateOfBirth),
			st.ClassName, st.GuardianName, st.GuardianPhone, st.GuardianEmail,
			st.Address, formatDate(st.AdmissionDate), string(st.Status),
		})
	}
	if err := tabular.Write(w, format, ExportColumns, rows); err != nil {
		return 0, fmt.Errorf("failed to write export: %w", err)
	}
	s.logger.Info().Int("count", len(rows)).Str("format", string(format)).Msg("Students exported")
	return len(rows), nil
}

// ChangePassword replaces the student's password after checking the current one
func (s *StudentService) ChangePassword(ctx context.Context, id int64, current, next string) error {
	student, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !s.hasher.Verify(student.StudentID, student.PasswordHash, current) {
		return apperrors.ErrInvalidCredentials
	}
	if err := auth.CheckPolicy(next); err != nil {
		return &apperrors.CustomError{Err: apperrors.ErrValidationFailed, Message: err.Error()}
	}

	hash, err := s.hasher.Hash(next)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	if err := s.repo.UpdatePassword(ctx, id, hash); err != nil {
		return err
	}
	s.logger.Info().Int64("id", id).Msg("Student password changed")
	return nil
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(helpers.DateLayout)
}

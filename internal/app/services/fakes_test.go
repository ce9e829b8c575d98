package services

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/brightstar/portal/internal/app/models"
	"github.com/brightstar/portal/internal/app/repositories"
	"github.com/brightstar/portal/internal/pkg/apperrors"
	"github.com/brightstar/portal/internal/pkg/auth"
	"github.com/brightstar/portal/internal/pkg/cache"
)

// fakeStudentRepo keeps students in memory. Identifiers listed in raceLost
// pass the existence check but are rejected at insert, as if another writer
// took them in between.
type fakeStudentRepo struct {
	students  map[int64]*models.Student
	nextID    int64
	raceLost  map[string]bool
	createErr error
	countErr  error
	listed    []repositories.StudentQuery
	counted   []*repositories.Predicate
	exported  []*repositories.Predicate
	passwords map[int64]string
	classes   []string
	classHits int
}

func newFakeStudentRepo() *fakeStudentRepo {
	return &fakeStudentRepo{
		students:  map[int64]*models.Student{},
		raceLost:  map[string]bool{},
		passwords: map[int64]string{},
	}
}

func (f *fakeStudentRepo) CountIdentifiersWithPrefix(_ context.Context, prefix string) (int64, error) {
	var n int64
	for _, s := range f.students {
		if strings.HasPrefix(s.StudentID, prefix) {
			n++
		}
	}
	return n, nil
}

func (f *fakeStudentRepo) IdentifierExists(_ context.Context, id string) (bool, error) {
	for _, s := range f.students {
		if s.StudentID == id {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStudentRepo) Create(_ context.Context, s *models.Student) error {
	if f.createErr != nil {
		return f.createErr
	}
	if f.raceLost[s.StudentID] {
		delete(f.raceLost, s.StudentID)
		f.nextID++
		f.students[f.nextID] = &models.Student{ID: f.nextID, StudentID: s.StudentID, Status: models.StudentStatusActive}
		return fmt.Errorf("%w: %s", apperrors.ErrDuplicateCandidate, s.StudentID)
	}
	for _, existing := range f.students {
		if existing.StudentID == s.StudentID {
			return fmt.Errorf("%w: %s", apperrors.ErrDuplicateCandidate, s.StudentID)
		}
	}
	f.nextID++
	s.ID = f.nextID
	s.CreatedAt = time.Now()
	s.UpdatedAt = s.CreatedAt
	stored := *s
	f.students[s.ID] = &stored
	return nil
}

func (f *fakeStudentRepo) GetByID(_ context.Context, id int64) (*models.Student, error) {
	s, ok := f.students[id]
	if !ok {
		return nil, apperrors.ErrStudentNotFound
	}
	copied := *s
	return &copied, nil
}

func (f *fakeStudentRepo) GetByStudentID(_ context.Context, studentID string) (*models.Student, error) {
	for _, s := range f.students {
		if s.StudentID == studentID {
			copied := *s
			return &copied, nil
		}
	}
	return nil, apperrors.ErrStudentNotFound
}

func (f *fakeStudentRepo) Update(_ context.Context, id int64, fields models.StudentFields) error {
	s, ok := f.students[id]
	if !ok {
		return apperrors.ErrStudentNotFound
	}
	if fields.FirstName != nil {
		s.FirstName = *fields.FirstName
	}
	if fields.ClassName != nil {
		s.ClassName = *fields.ClassName
	}
	if fields.Photo != nil {
		s.Photo = fields.Photo
	}
	return nil
}

func (f *fakeStudentRepo) SetStatus(_ context.Context, id int64, status models.StudentStatus) error {
	s, ok := f.students[id]
	if !ok {
		return apperrors.ErrStudentNotFound
	}
	s.Status = status
	return nil
}

func (f *fakeStudentRepo) UpdatePassword(_ context.Context, id int64, hash string) error {
	s, ok := f.students[id]
	if !ok {
		return apperrors.ErrStudentNotFound
	}
	s.PasswordHash = hash
	f.passwords[id] = hash
	return nil
}

func (f *fakeStudentRepo) Count(_ context.Context, p *repositories.Predicate) (int64, error) {
	f.counted = append(f.counted, p)
	if f.countErr != nil {
		return 0, f.countErr
	}
	return int64(len(f.students)), nil
}

func (f *fakeStudentRepo) sorted() []models.Student {
	out := make([]models.Student, 0, len(f.students))
	for _, s := range f.students {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (f *fakeStudentRepo) List(_ context.Context, q repositories.StudentQuery) ([]models.Student, error) {
	f.listed = append(f.listed, q)
	all := f.sorted()
	start := int(q.Offset)
	if start > len(all) {
		return []models.Student{}, nil
	}
	end := len(all)
	if q.Limit > 0 && start+int(q.Limit) < end {
		end = start + int(q.Limit)
	}
	return all[start:end], nil
}

func (f *fakeStudentRepo) DistinctClasses(context.Context) ([]string, error) {
	f.classHits++
	return f.classes, nil
}

func (f *fakeStudentRepo) Search(_ context.Context, term string, limit uint64) ([]models.Student, error) {
	var out []models.Student
	for _, s := range f.sorted() {
		if strings.Contains(strings.ToLower(s.FirstName+" "+s.LastName), strings.ToLower(term)) {
			out = append(out, s)
		}
	}
	if uint64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeStudentRepo) ListForExport(_ context.Context, p *repositories.Predicate) ([]models.Student, error) {
	f.exported = append(f.exported, p)
	return f.sorted(), nil
}

// memoryClassCache is a ClassCache that remembers the last Set
type memoryClassCache struct {
	classes     []string
	ok          bool
	invalidated int
}

func (c *memoryClassCache) Get(context.Context) ([]string, bool) { return c.classes, c.ok }
func (c *memoryClassCache) Set(_ context.Context, classes []string) {
	c.classes, c.ok = classes, true
}
func (c *memoryClassCache) Invalidate(context.Context) {
	c.classes, c.ok = nil, false
	c.invalidated++
}

var _ cache.ClassCache = (*memoryClassCache)(nil)

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func newTestHasher(allowLegacy bool) *auth.PasswordHasher {
	return auth.NewPasswordHasher(bcrypt.MinCost, allowLegacy, testLogger())
}

func newTestStudentService(t *testing.T, repo *fakeStudentRepo, classes cache.ClassCache) *StudentService {
	t.Helper()
	ids := newTestGenerator(repo)
	svc := NewStudentService(repo, ids, newTestHasher(false), classes, testLogger())
	svc.now = func() time.Time { return time.Date(2024, 9, 1, 10, 0, 0, 0, time.UTC) }
	return svc
}

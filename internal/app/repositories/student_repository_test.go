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

type recordedCall struct {
	sql  string
	args []any
}

// fakeStore records statements and replays canned results in order
type fakeStore struct {
	calls    []recordedCall
	results  [][]map[string]any
	affected int64
	err      error
}

func (f *fakeStore) Query(_ context.Context, sql string, args ...any) ([]map[string]any, error) {
	f.calls = append(f.calls, recordedCall{sql: sql, args: args})
	if f.err != nil {
		return nil, f.err
	}
	if len(f.results) == 0 {
		return nil, nil
	}
	rows := f.results[0]
	f.results = f.results[1:]
	return rows, nil
}

func (f *fakeStore) Execute(_ context.Context, sql string, args ...any) (int64, error) {
	f.calls = append(f.calls, recordedCall{sql: sql, args: args})
	if f.err != nil {
		return 0, f.err
	}
	return f.affected, nil
}

func (f *fakeStore) last() recordedCall {
	return f.calls[len(f.calls)-1]
}

func TestResolveSortFallsBack(t *testing.T) {
	tests := []struct {
		field, order string
		want         Sort
	}{
		{"first_name", "desc", Sort{ColumnFirstName, SortDesc}},
		{"CLASS", "ASC", Sort{ColumnClassName, SortAsc}},
		{"password_hash", "asc", Sort{ColumnLastName, SortAsc}},
		{"last_name; DROP TABLE students", "desc", Sort{ColumnLastName, SortDesc}},
		{"", "sideways", Sort{ColumnLastName, SortAsc}},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ResolveSort(tt.field, tt.order), "field=%q order=%q", tt.field, tt.order)
	}
}

func TestListBuildsBoundPredicateAndStableOrder(t *testing.T) {
	store := &fakeStore{}
	repo := NewStudentRepository(store)

	p := NewPredicate().
		Where(ColumnStatus, OpEq, "active").
		AnyOf(
			Clause{Column: ColumnFirstName, Operator: OpContains, Value: "o'neil%"},
			Clause{Column: ColumnLastName, Operator: OpContains, Value: "o'neil%"},
		).
		Where(ColumnClassName, OpEq, "Grade 5")

	_, err := repo.List(context.Background(), StudentQuery{
		Predicate: p,
		Sort:      ResolveSort("nope", "desc"),
		Offset:    40,
		Limit:     20,
	})
	require.NoError(t, err)

	call := store.last()
	assert.Contains(t, call.sql, "s.status = $1")
	assert.Contains(t, call.sql, "(s.first_name ILIKE $2 OR s.last_name ILIKE $3)")
	assert.Contains(t, call.sql, "s.class_name = $4")
	assert.Contains(t, call.sql, "ORDER BY s.last_name DESC, s.student_id ASC, s.id ASC")
	assert.Contains(t, call.sql, "LIMIT 20")
	assert.Contains(t, call.sql, "OFFSET 40")
	assert.NotContains(t, call.sql, "o'neil")
	assert.Equal(t, []any{"active", `%o'neil\%%`, `%o'neil\%%`, "Grade 5"}, call.args)
}

func TestCountOmitsOrderingAndPaging(t *testing.T) {
	store := &fakeStore{results: [][]map[string]any{{{"total": int64(45)}}}}
	repo := NewStudentRepository(store)

	total, err := repo.Count(context.Background(), NewPredicate().Where(ColumnGender, OpEq, "female"))
	require.NoError(t, err)
	assert.Equal(t, int64(45), total)

	call := store.last()
	assert.Contains(t, call.sql, "COUNT(*)")
	assert.Contains(t, call.sql, "s.gender = $1")
	assert.NotContains(t, call.sql, "ORDER BY")
	assert.NotContains(t, call.sql, "LIMIT")
}

func TestCountIdentifiersWithPrefixIncludesInactive(t *testing.T) {
	store := &fakeStore{results: [][]map[string]any{{{"total": int64(6)}}}}
	repo := NewStudentRepository(store)

	n, err := repo.CountIdentifiersWithPrefix(context.Background(), "STU24")
	require.NoError(t, err)
	assert.Equal(t, int64(6), n)

	call := store.last()
	assert.Contains(t, call.sql, "s.student_id LIKE $1")
	assert.NotContains(t, call.sql, "status")
	assert.Equal(t, []any{"STU24%"}, call.args)
}

func TestCreateMapsIdentifierClash(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: studentIdentifierConstraint}
	store := &fakeStore{err: apperrors.NewStoreError("query", pgErr)}
	repo := NewStudentRepository(store)

	err := repo.Create(context.Background(), &models.Student{StudentID: "STU240001", Status: models.StudentStatusActive})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrDuplicateCandidate)
}

func TestCreatePropagatesStoreFailure(t *testing.T) {
	store := &fakeStore{err: apperrors.NewStoreError("query", errors.New("connection refused"))}
	repo := NewStudentRepository(store)

	err := repo.Create(context.Background(), &models.Student{StudentID: "STU240001"})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrStoreFailure)
	assert.NotErrorIs(t, err, apperrors.ErrDuplicateCandidate)
}

func TestCreateFillsGeneratedColumns(t *testing.T) {
	now := time.Date(2024, 9, 1, 8, 0, 0, 0, time.UTC)
	store := &fakeStore{results: [][]map[string]any{{{"id": int64(12), "created_at": now, "updated_at": now}}}}
	repo := NewStudentRepository(store)

	s := &models.Student{StudentID: "STU240012", Status: models.StudentStatusActive}
	require.NoError(t, repo.Create(context.Background(), s))
	assert.Equal(t, int64(12), s.ID)
	assert.Equal(t, now, s.CreatedAt)
	assert.Contains(t, store.last().sql, "RETURNING id")
}

func TestGetByIDNotFound(t *testing.T) {
	repo := NewStudentRepository(&fakeStore{})

	_, err := repo.GetByID(context.Background(), 99)
	assert.ErrorIs(t, err, apperrors.ErrStudentNotFound)
	assert.ErrorIs(t, err, apperrors.ErrResourceNotFound)
}

func TestGetByIDMapsRow(t *testing.T) {
	dob := time.Date(2014, 3, 2, 0, 0, 0, 0, time.UTC)
	store := &fakeStore{results: [][]map[string]any{{{
		"id":            int64(3),
		"student_id":    "STU240003",
		"first_name":    "Ada",
		"last_name":     "Obi",
		"date_of_birth": dob,
		"teacher_id":    int32(7),
		"teacher_name":  "Grace Hopper",
		"photo":         nil,
		"status":        "active",
	}}}}
	repo := NewStudentRepository(store)

	s, err := repo.GetByID(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, "STU240003", s.StudentID)
	assert.Equal(t, dob, s.DateOfBirth)
	require.NotNil(t, s.TeacherID)
	assert.Equal(t, int64(7), *s.TeacherID)
	assert.Equal(t, "Grace Hopper", s.TeacherName)
	assert.Nil(t, s.Photo)
	assert.True(t, s.IsActive())
}

func TestUpdateNeverWritesIdentifier(t *testing.T) {
	store := &fakeStore{affected: 1}
	repo := NewStudentRepository(store)

	name := "Bola"
	err := repo.Update(context.Background(), 3, models.StudentFields{FirstName: &name, ClearTeacher: true})
	require.NoError(t, err)

	call := store.last()
	assert.Contains(t, call.sql, "UPDATE students SET")
	assert.Contains(t, call.sql, "first_name = $")
	assert.Contains(t, call.sql, "teacher_id = $")
	assert.Contains(t, call.sql, "updated_at = NOW()")
	assert.NotContains(t, call.sql, "student_id")
}

func TestUpdateMissingRow(t *testing.T) {
	repo := NewStudentRepository(&fakeStore{affected: 0})

	err := repo.SetStatus(context.Background(), 42, models.StudentStatusInactive)
	assert.ErrorIs(t, err, apperrors.ErrStudentNotFound)
}

func TestPredicateRejectsNonStringPattern(t *testing.T) {
	_, err := NewPredicate().Where(ColumnFirstName, OpContains, 5).Sqlizer()
	assert.Error(t, err)
}

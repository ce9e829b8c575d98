package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"

	"github.com/brightstar/portal/internal/app/models"
	"github.com/brightstar/portal/internal/db"
	"github.com/brightstar/portal/internal/pkg/apperrors"
	"github.com/brightstar/portal/internal/pkg/dberrors"
	"github.com/brightstar/portal/internal/pkg/helpers"
	"github.com/brightstar/portal/internal/pkg/logger"
)

// studentIdentifierConstraint is the unique constraint on students.student_id
const studentIdentifierConstraint = "students_student_id_key"

var studentColumns = []string{
	"s.id", "s.student_id", "s.first_name", "s.last_name", "s.gender",
	"s.date_of_birth", "s.guardian_name", "s.guardian_phone", "s.guardian_email",
	"s.address", "s.class_name", "s.admission_date", "s.teacher_id",
	"s.medical_info", "s.emergency_contact", "s.emergency_phone", "s.photo",
	"s.password_hash", "s.status", "s.created_at", "s.updated_at",
	"COALESCE(t.first_name || ' ' || t.last_name, '') AS teacher_name",
}

// StudentQuery describes one page of the listing
type StudentQuery struct {
	Predicate *Predicate
	Sort      Sort
	Offset    uint64
	Limit     uint64
}

// StudentRepository handles database operations for students
type StudentRepository struct {
	store db.Store
	sb    squirrel.StatementBuilderType
}

// NewStudentRepository creates a new StudentRepository
func NewStudentRepository(store db.Store) *StudentRepository {
	return &StudentRepository{
		store: store,
		sb:    squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func (r *StudentRepository) selectStudents() squirrel.SelectBuilder {
	return r.sb.Select(studentColumns...).
		From("students s").
		LeftJoin("teachers t ON s.teacher_id = t.id")
}

func applyPredicate(q squirrel.SelectBuilder, p *Predicate) (squirrel.SelectBuilder, error) {
	if p.Len() == 0 {
		return q, nil
	}
	where, err := p.Sqlizer()
	if err != nil {
		return q, err
	}
	return q.Where(where), nil
}

// CountIdentifiersWithPrefix counts every record, inactive included, whose identifier starts with prefix
func (r *StudentRepository) CountIdentifiersWithPrefix(ctx context.Context, prefix string) (int64, error) {
	return r.Count(ctx, NewPredicate().Where(ColumnStudentID, OpHasPrefix, prefix))
}

// IdentifierExists reports whether any record, inactive included, holds the identifier
func (r *StudentRepository) IdentifierExists(ctx context.Context, studentID string) (bool, error) {
	query := r.sb.Select("1").
		From("students").
		Where(squirrel.Eq{"student_id": studentID}).
		Limit(1)

	sql, args, err := query.ToSql()
	if err != nil {
		return false, fmt.Errorf("error building SQL: %w", err)
	}

	rows, err := r.store.Query(ctx, sql, args...)
	if err != nil {
		return false, fmt.Errorf("failed to check student identifier: %w", err)
	}
	return len(rows) > 0, nil
}

// Create inserts the student and fills in ID and timestamps.
// A clash on the identifier is reported as apperrors.ErrDuplicateCandidate.
func (r *StudentRepository) Create(ctx context.Context, s *models.Student) error {
	query := r.sb.Insert("students").
		Columns(
			"student_id", "first_name", "last_name", "gender", "date_of_birth",
			"guardian_name", "guardian_phone", "guardian_email", "address",
			"class_name", "admission_date", "teacher_id", "medical_info",
			"emergency_contact", "emergency_phone", "photo", "password_hash", "status",
		).
		Values(
			s.StudentID, s.FirstName, s.LastName, s.Gender, s.DateOfBirth,
			s.GuardianName, s.GuardianPhone, s.GuardianEmail, s.Address,
			s.ClassName, s.AdmissionDate, helpers.GetNullInt64(s.TeacherID), s.MedicalInfo,
			s.EmergencyContact, s.EmergencyPhone, helpers.GetNullString(s.Photo), s.PasswordHash, string(s.Status),
		).
		Suffix("RETURNING id, created_at, updated_at")

	sql, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("error building SQL: %w", err)
	}

	rows, err := r.store.Query(ctx, sql, args...)
	if err != nil {
		if dberrors.IsDuplicateConstraintError(err, studentIdentifierConstraint) {
			return fmt.Errorf("%w: %s", apperrors.ErrDuplicateCandidate, s.StudentID)
		}
		logger.Error().Err(err).Str("studentId", s.StudentID).Msg("Error inserting student")
		return fmt.Errorf("failed to create student: %w", err)
	}
	if len(rows) != 1 {
		return apperrors.NewStoreError("create student", fmt.Errorf("insert returned %d rows", len(rows)))
	}

	if s.ID, err = rowInt64(rows[0], "id"); err != nil {
		return err
	}
	if s.CreatedAt, err = rowTime(rows[0], "created_at"); err != nil {
		return err
	}
	s.UpdatedAt, err = rowTime(rows[0], "updated_at")
	return err
}

func (r *StudentRepository) getOne(ctx context.Context, where squirrel.Sqlizer) (*models.Student, error) {
	sql, args, err := r.selectStudents().Where(where).Limit(1).ToSql()
	if err != nil {
		return nil, fmt.Errorf("error building SQL: %w", err)
	}

	rows, err := r.store.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get student: %w", err)
	}
	if len(rows) == 0 {
		return nil, apperrors.ErrStudentNotFound
	}
	return studentFromRow(rows[0])
}

// GetByID retrieves a student by internal row ID
func (r *StudentRepository) GetByID(ctx context.Context, id int64) (*models.Student, error) {
	return r.getOne(ctx, squirrel.Eq{string(ColumnID): id})
}

// GetByStudentID retrieves a student by identifier
func (r *StudentRepository) GetByStudentID(ctx context.Context, studentID string) (*models.Student, error) {
	return r.getOne(ctx, squirrel.Eq{string(ColumnStudentID): studentID})
}

// Update writes the non-nil fields. The identifier is never part of an update.
func (r *StudentRepository) Update(ctx context.Context, id int64, f models.StudentFields) error {
	set := map[string]interface{}{}
	setString := func(col string, v *string) {
		if v != nil {
			set[col] = *v
		}
	}
	setString("first_name", f.FirstName)
	setString("last_name", f.LastName)
	setString("gender", f.Gender)
	setString("guardian_name", f.GuardianName)
	setString("guardian_phone", f.GuardianPhone)
	setString("guardian_email", f.GuardianEmail)
	setString("address", f.Address)
	setString("class_name", f.ClassName)
	setString("medical_info", f.MedicalInfo)
	setString("emergency_contact", f.EmergencyContact)
	setString("emergency_phone", f.EmergencyPhone)
	if f.DateOfBirth != nil {
		set["date_of_birth"] = *f.DateOfBirth
	}
	if f.AdmissionDate != nil {
		set["admission_date"] = *f.AdmissionDate
	}
	if f.ClearTeacher {
		set["teacher_id"] = nil
	} else if f.TeacherID != nil {
		set["teacher_id"] = *f.TeacherID
	}
	if f.Photo != nil {
		set["photo"] = helpers.GetNullString(f.Photo)
	}
	set["updated_at"] = squirrel.Expr("NOW()")

	return r.execUpdate(ctx, id, set, "update student")
}

// SetStatus changes the lifecycle status
func (r *StudentRepository) SetStatus(ctx context.Context, id int64, status models.StudentStatus) error {
	return r.execUpdate(ctx, id, map[string]interface{}{
		"status":     string(status),
		"updated_at": squirrel.Expr("NOW()"),
	}, "set student status")
}

// UpdatePassword stores a new password hash
func (r *StudentRepository) UpdatePassword(ctx context.Context, id int64, hash string) error {
	return r.execUpdate(ctx, id, map[string]interface{}{
		"password_hash": hash,
		"updated_at":    squirrel.Expr("NOW()"),
	}, "update student password")
}

func (r *StudentRepository) execUpdate(ctx context.Context, id int64, set map[string]interface{}, op string) error {
	sql, args, err := r.sb.Update("students").
		SetMap(set).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("error building SQL: %w", err)
	}

	affected, err := r.store.Execute(ctx, sql, args...)
	if err != nil {
		logger.Error().Err(err).Int64("id", id).Msgf("Error during %s", op)
		return fmt.Errorf("failed to %s: %w", op, err)
	}
	if affected == 0 {
		return apperrors.ErrStudentNotFound
	}
	return nil
}

// Count returns the number of rows matching the predicate
func (r *StudentRepository) Count(ctx context.Context, p *Predicate) (int64, error) {
	query, err := applyPredicate(r.sb.Select("COUNT(*) AS total").From("students s"), p)
	if err != nil {
		return 0, err
	}

	sql, args, err := query.ToSql()
	if err != nil {
		return 0, fmt.Errorf("error building SQL: %w", err)
	}

	rows, err := r.store.Query(ctx, sql, args...)
	if err != nil {
		logger.Error().Err(err).Msg("Error executing count students query")
		return 0, fmt.Errorf("failed to count students: %w", err)
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return rowInt64(rows[0], "total")
}

// List returns one ordered page of students matching the predicate
func (r *StudentRepository) List(ctx context.Context, q StudentQuery) ([]models.Student, error) {
	query, err := applyPredicate(r.selectStudents(), q.Predicate)
	if err != nil {
		return nil, err
	}

	query = query.OrderBy(q.Sort.orderBy()...)
	if q.Limit > 0 {
		query = query.Limit(q.Limit).Offset(q.Offset)
	}

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("error building SQL: %w", err)
	}

	rows, err := r.store.Query(ctx, sql, args...)
	if err != nil {
		logger.Error().Err(err).Msg("Error executing list students query")
		return nil, fmt.Errorf("failed to list students: %w", err)
	}
	return studentsFromRows(rows)
}

// DistinctClasses returns the class labels used by active students
func (r *StudentRepository) DistinctClasses(ctx context.Context) ([]string, error) {
	sql, args, err := r.sb.Select("DISTINCT class_name").
		From("students").
		Where(squirrel.Eq{"status": string(models.StudentStatusActive)}).
		Where(squirrel.NotEq{"class_name": ""}).
		OrderBy("class_name").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("error building SQL: %w", err)
	}

	rows, err := r.store.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list classes: %w", err)
	}

	classes := make([]string, 0, len(rows))
	for _, row := range rows {
		classes = append(classes, rowString(row, "class_name"))
	}
	return classes, nil
}

// Search is the quick lookup over names, identifier and class of active students
func (r *StudentRepository) Search(ctx context.Context, term string, limit uint64) ([]models.Student, error) {
	p := NewPredicate().
		Where(ColumnStatus, OpEq, string(models.StudentStatusActive)).
		AnyOf(
			Clause{Column: ColumnFirstName, Operator: OpContains, Value: term},
			Clause{Column: ColumnLastName, Operator: OpContains, Value: term},
			Clause{Column: ColumnStudentID, Operator: OpContains, Value: term},
			Clause{Column: ColumnClassName, Operator: OpContains, Value: term},
		)

	return r.List(ctx, StudentQuery{
		Predicate: p,
		Sort:      Sort{Column: ColumnLastName, Order: SortAsc},
		Limit:     limit,
	})
}

// ListForExport returns every matching student ordered by name
func (r *StudentRepository) ListForExport(ctx context.Context, p *Predicate) ([]models.Student, error) {
	start := time.Now()
	students, err := r.List(ctx, StudentQuery{
		Predicate: p,
		Sort:      Sort{Column: ColumnLastName, Order: SortAsc},
	})
	if err != nil {
		return nil, err
	}
	logger.Debug().Int("count", len(students)).Dur("took", time.Since(start)).Msg("Loaded students for export")
	return students, nil
}

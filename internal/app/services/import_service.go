package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/brightstar/portal/internal/app/models"
	"github.com/brightstar/portal/internal/pkg/apperrors"
	"github.com/brightstar/portal/internal/pkg/helpers"
	"github.com/brightstar/portal/internal/pkg/tabular"
)

// RequiredImportColumns must be present in the header and non-empty in every row
var RequiredImportColumns = []string{"first_name", "last_name", "gender", "date_of_birth", "class_name"}

// RowError is one rejected row. RowNumber counts the header as row 1.
type RowError struct {
	RowNumber int
	Message   string
}

// ImportOutcome aggregates a bulk import
type ImportOutcome struct {
	ImportedCount int
	ErrorCount    int
	ErrorDetails  []RowError
}

type rowStatus int

const (
	rowCreated rowStatus = iota
	rowRejected
)

// rowResult is the terminal state of one input row
type rowResult struct {
	number    int
	status    rowStatus
	studentID string
	message   string
}

func rejected(number int, format string, args ...any) rowResult {
	return rowResult{number: number, status: rowRejected, message: fmt.Sprintf(format, args...)}
}

func (o *ImportOutcome) record(res rowResult) {
	switch res.status {
	case rowCreated:
		o.ImportedCount++
	case rowRejected:
		o.ErrorCount++
		o.ErrorDetails = append(o.ErrorDetails, RowError{RowNumber: res.number, Message: res.message})
	}
}

// importRecord holds the trimmed cells of one row. The validate tags check
// shape only; presence of required fields is checked separately so that
// every missing field can be reported at once.
type importRecord struct {
	FirstName        string `csv:"first_name" validate:"max=50"`
	LastName         string `csv:"last_name" validate:"max=50"`
	Gender           string `csv:"gender" validate:"oneof=male female other"`
	DateOfBirth      string `csv:"date_of_birth" validate:"datetime=2006-01-02"`
	ClassName        string `csv:"class_name" validate:"max=20"`
	GuardianName     string `csv:"guardian_name" validate:"max=100"`
	GuardianPhone    string `csv:"guardian_phone" validate:"max=20"`
	GuardianEmail    string `csv:"guardian_email" validate:"omitempty,email"`
	Address          string `csv:"address"`
	AdmissionDate    string `csv:"admission_date" validate:"omitempty,datetime=2006-01-02"`
	TeacherID        string `csv:"teacher_id" validate:"omitempty,number"`
	MedicalInfo      string `csv:"medical_info"`
	EmergencyContact string `csv:"emergency_contact" validate:"max=100"`
	EmergencyPhone   string `csv:"emergency_phone" validate:"max=20"`
}

func readRecord(table *tabular.Table, row tabular.Row) importRecord {
	return importRecord{
		FirstName:        table.Value(row, "first_name"),
		LastName:         table.Value(row, "last_name"),
		Gender:           strings.ToLower(table.Value(row, "gender")),
		DateOfBirth:      table.Value(row, "date_of_birth"),
		ClassName:        table.Value(row, "class_name"),
		GuardianName:     table.Value(row, "guardian_name"),
		GuardianPhone:    table.Value(row, "guardian_phone"),
		GuardianEmail:    table.Value(row, "guardian_email"),
		Address:          table.Value(row, "address"),
		AdmissionDate:    table.Value(row, "admission_date"),
		TeacherID:        table.Value(row, "teacher_id"),
		MedicalInfo:      table.Value(row, "medical_info"),
		EmergencyContact: table.Value(row, "emergency_contact"),
		EmergencyPhone:   table.Value(row, "emergency_phone"),
	}
}

func (r importRecord) missingRequired() []string {
	values := map[string]string{
		"first_name":    r.FirstName,
		"last_name":     r.LastName,
		"gender":        r.Gender,
		"date_of_birth": r.DateOfBirth,
		"class_name":    r.ClassName,
	}
	var missing []string
	for _, col := range RequiredImportColumns {
		if values[col] == "" {
			missing = append(missing, col)
		}
	}
	return missing
}

// studentCreator is the creation path shared with direct creation
type studentCreator interface {
	Create(ctx context.Context, student *models.Student) (string, error)
}

// ImportService bulk-creates students from tabular files
type ImportService struct {
	students studentCreator
	validate *validator.Validate
	now      func() time.Time
	logger   zerolog.Logger
}

// NewImportService creates a new ImportService
func NewImportService(students studentCreator, logger zerolog.Logger) *ImportService {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		return fld.Tag.Get("csv")
	})

	return &ImportService{
		students: students,
		validate: validate,
		now:      time.Now,
		logger:   logger.With().Str("component", "import_service").Logger(),
	}
}

// Import processes every data row independently. A row failure is recorded
// against that row and never aborts the batch. The whole file is rejected
// only when it cannot be read or its header lacks a required column.
func (s *ImportService) Import(ctx context.Context, r io.Reader, format tabular.Format) (*ImportOutcome, error) {
	table, err := tabular.Read(r, format)
	if err != nil {
		switch {
		case errors.Is(err, tabular.ErrEmptyTable):
			return nil, apperrors.NewValidationError("file is empty or has no header row")
		case errors.Is(err, tabular.ErrUnsupportedFormat):
			return nil, apperrors.NewValidationError("unsupported file format %q", format)
		default:
			return nil, apperrors.NewValidationError("could not read %s file: %v", format, err)
		}
	}

	if missing := table.MissingColumns(RequiredImportColumns...); len(missing) > 0 {
		return nil, apperrors.NewValidationError("Missing required columns: %s", strings.Join(missing, ", "))
	}

	outcome := &ImportOutcome{ErrorDetails: []RowError{}}
	for _, row := range table.Rows {
		if err := ctx.Err(); err != nil {
			s.logger.Warn().Err(err).Int("row", row.Number).Msg("Import interrupted")
			return outcome, err
		}

		res := s.importRow(ctx, table, row)
		if res.status == rowRejected {
			s.logger.Debug().Int("row", res.number).Str("reason", res.message).Msg("Import row rejected")
		} else {
			s.logger.Debug().Int("row", res.number).Str("studentId", res.studentID).Msg("Import row created")
		}
		outcome.record(res)
	}

	s.logger.Info().
		Int("imported", outcome.ImportedCount).
		Int("errors", outcome.ErrorCount).
		Str("format", string(format)).
		Msg("Bulk import finished")
	return outcome, nil
}

func (s *ImportService) importRow(ctx context.Context, table *tabular.Table, row tabular.Row) rowResult {
	if row.Err != nil {
		return rejected(row.Number, "Could not parse row: %v", row.Err)
	}

	rec := readRecord(table, row)
	if missing := rec.missingRequired(); len(missing) > 0 {
		return rejected(row.Number, "Missing required fields: %s", strings.Join(missing, ", "))
	}
	if err := s.validate.Struct(rec); err != nil {
		return rejected(row.Number, "%s", describeValidation(err))
	}

	student, err := s.buildStudent(rec)
	if err != nil {
		return rejected(row.Number, "%s", err.Error())
	}

	if _, err := s.students.Create(ctx, student); err != nil {
		return rejected(row.Number, "Could not create student: %s", apperrors.Message(err))
	}
	return rowResult{number: row.Number, status: rowCreated, studentID: student.StudentID}
}

func (s *ImportService) buildStudent(rec importRecord) (*models.Student, error) {
	dob, err := helpers.ParseDate(rec.DateOfBirth)
	if err != nil {
		return nil, fmt.Errorf("date_of_birth must be a date in YYYY-MM-DD format")
	}

	y, m, d := s.now().Date()
	admission := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	if rec.AdmissionDate != "" {
		if admission, err = helpers.ParseDate(rec.AdmissionDate); err != nil {
			return nil, fmt.Errorf("admission_date must be a date in YYYY-MM-DD format")
		}
	}

	teacherID, err := parseTeacherID(rec.TeacherID)
	if err != nil {
		return nil, err
	}

	return &models.Student{
		FirstName:        rec.FirstName,
		LastName:         rec.LastName,
		Gender:           rec.Gender,
		DateOfBirth:      dob,
		GuardianName:     rec.GuardianName,
		GuardianPhone:    rec.GuardianPhone,
		GuardianEmail:    rec.GuardianEmail,
		Address:          rec.Address,
		ClassName:        rec.ClassName,
		AdmissionDate:    admission,
		TeacherID:        teacherID,
		MedicalInfo:      rec.MedicalInfo,
		EmergencyContact: rec.EmergencyContact,
		EmergencyPhone:   rec.EmergencyPhone,
		Status:           models.StudentStatusActive,
	}, nil
}

// parseTeacherID maps an empty value to no teacher
func parseTeacherID(value string) (*int64, error) {
	if value == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(value, 10, 64)
	if err != nil || id <= 0 {
		return nil, fmt.Errorf("teacher_id must be a positive number")
	}
	return &id, nil
}

// describeValidation turns validator errors into one row message
func describeValidation(err error) string {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err.Error()
	}

	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		switch fe.Tag() {
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of: %s", fe.Field(), strings.ReplaceAll(fe.Param(), " ", ", ")))
		case "datetime":
			msgs = append(msgs, fmt.Sprintf("%s must be a date in YYYY-MM-DD format", fe.Field()))
		case "email":
			msgs = append(msgs, fmt.Sprintf("%s must be a valid email address", fe.Field()))
		case "number":
			msgs = append(msgs, fmt.Sprintf("%s must be numeric", fe.Field()))
		case "max":
			msgs = append(msgs, fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s is invalid", fe.Field()))
		}
	}
	return strings.Join(msgs, "; ")
}

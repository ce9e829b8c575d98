package repositories

import (
	"fmt"
	"time"

	"github.com/brightstar/portal/internal/app/models"
)

// Row helpers convert the column maps returned by db.Store into typed values.
// NULL arrives as nil and is mapped to the zero value.

func rowString(row map[string]any, key string) string {
	switch v := row[key].(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func rowStringPtr(row map[string]any, key string) *string {
	if row[key] == nil {
		return nil
	}
	s := rowString(row, key)
	return &s
}

func rowInt64(row map[string]any, key string) (int64, error) {
	switch v := row[key].(type) {
	case int64:
		return v, nil
	case int32:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int:
		return int64(v), nil
	case nil:
		return 0, nil
	default:
		return 0, fmt.Errorf("column %s: unexpected type %T", key, v)
	}
}

func rowInt64Ptr(row map[string]any, key string) (*int64, error) {
	if row[key] == nil {
		return nil, nil
	}
	v, err := rowInt64(row, key)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func rowTime(row map[string]any, key string) (time.Time, error) {
	switch v := row[key].(type) {
	case time.Time:
		return v, nil
	case nil:
		return time.Time{}, nil
	default:
		return time.Time{}, fmt.Errorf("column %s: unexpected type %T", key, v)
	}
}

func rowBool(row map[string]any, key string) bool {
	v, _ := row[key].(bool)
	return v
}

// studentFromRow maps a row selected with studentColumns
func studentFromRow(row map[string]any) (*models.Student, error) {
	var (
		s   models.Student
		err error
	)

	if s.ID, err = rowInt64(row, "id"); err != nil {
		return nil, err
	}
	if s.TeacherID, err = rowInt64Ptr(row, "teacher_id"); err != nil {
		return nil, err
	}
	if s.DateOfBirth, err = rowTime(row, "date_of_birth"); err != nil {
		return nil, err
	}
	if s.AdmissionDate, err = rowTime(row, "admission_date"); err != nil {
		return nil, err
	}
	if s.CreatedAt, err = rowTime(row, "created_at"); err != nil {
		return nil, err
	}
	if s.UpdatedAt, err = rowTime(row, "updated_at"); err != nil {
		return nil, err
	}

	s.StudentID = rowString(row, "student_id")
	s.FirstName = rowString(row, "first_name")
	s.LastName = rowString(row, "last_name")
	s.Gender = rowString(row, "gender")
	s.GuardianName = rowString(row, "guardian_name")
	s.GuardianPhone = rowString(row, "guardian_phone")
	s.GuardianEmail = rowString(row, "guardian_email")
	s.Address = rowString(row, "address")
	s.ClassName = rowString(row, "class_name")
	s.TeacherName = rowString(row, "teacher_name")
	s.MedicalInfo = rowString(row, "medical_info")
	s.EmergencyContact = rowString(row, "emergency_contact")
	s.EmergencyPhone = rowString(row, "emergency_phone")
	s.Photo = rowStringPtr(row, "photo")
	s.PasswordHash = rowString(row, "password_hash")
	s.Status = models.StudentStatus(rowString(row, "status"))

	return &s, nil
}

func studentsFromRows(rows []map[string]any) ([]models.Student, error) {
	students := make([]models.Student, 0, len(rows))
	for _, row := range rows {
		s, err := studentFromRow(row)
		if err != nil {
			return nil, fmt.Errorf("failed to scan student row: %w", err)
		}
		students = append(students, *s)
	}
	return students, nil
}

func adminFromRow(row map[string]any) (*models.Admin, error) {
	var (
		a   models.Admin
		err error
	)
	if a.ID, err = rowInt64(row, "id"); err != nil {
		return nil, err
	}
	if a.CreatedAt, err = rowTime(row, "created_at"); err != nil {
		return nil, err
	}
	a.Username = rowString(row, "username")
	a.PasswordHash = rowString(row, "password_hash")
	a.FullName = rowString(row, "full_name")
	a.IsActive = rowBool(row, "is_active")
	return &a, nil
}

package models

import "time"

// StudentStatus is the lifecycle state of a student record
type StudentStatus string

const (
	StudentStatusActive   StudentStatus = "active"
	StudentStatusInactive StudentStatus = "inactive"
)

// Toggled returns the opposite status
func (s StudentStatus) Toggled() StudentStatus {
	if s == StudentStatusActive {
		return StudentStatusInactive
	}
	return StudentStatusActive
}

// Student defines the student model based on the 'students' table
type Student struct {
	ID               int64         `json:"id"`
	StudentID        string        `json:"studentId"` // Human-readable identifier, immutable once assigned
	FirstName        string        `json:"firstName"`
	LastName         string        `json:"lastName"`
	Gender           string        `json:"gender"`
	DateOfBirth      time.Time     `json:"dateOfBirth"`
	GuardianName     string        `json:"guardianName"`
	GuardianPhone    string        `json:"guardianPhone"`
	GuardianEmail    string        `json:"guardianEmail"`
	Address          string        `json:"address"`
	ClassName        string        `json:"className"`
	AdmissionDate    time.Time     `json:"admissionDate"`
	TeacherID        *int64        `json:"teacherId,omitempty"`
	TeacherName      string        `json:"teacherName,omitempty"`
	MedicalInfo      string        `json:"medicalInfo"`
	EmergencyContact string        `json:"emergencyContact"`
	EmergencyPhone   string        `json:"emergencyPhone"`
	Photo            *string       `json:"photo,omitempty"`
	PasswordHash     string        `json:"-"`
	Status           StudentStatus `json:"status"`
	CreatedAt        time.Time     `json:"createdAt"`
	UpdatedAt        time.Time     `json:"updatedAt"`
}

// FullName returns "First Last"
func (s *Student) FullName() string {
	return s.FirstName + " " + s.LastName
}

// IsActive reports whether the record is visible in default listings
func (s *Student) IsActive() bool {
	return s.Status == StudentStatusActive
}

// StudentFields holds the mutable fields of a student. A nil pointer leaves
// the stored value untouched on update.
type StudentFields struct {
	FirstName        *string
	LastName         *string
	Gender           *string
	DateOfBirth      *time.Time
	GuardianName     *string
	GuardianPhone    *string
	GuardianEmail    *string
	Address          *string
	ClassName        *string
	AdmissionDate    *time.Time
	TeacherID        *int64
	ClearTeacher     bool
	MedicalInfo      *string
	EmergencyContact *string
	EmergencyPhone   *string
	Photo            *string
}

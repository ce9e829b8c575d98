package dto

import (
	"github.com/brightstar/portal/internal/app/models"
	"github.com/brightstar/portal/internal/pkg/helpers"
)

// StudentFormRequest carries the multipart fields of the create form.
// Dates use the YYYY-MM-DD layout.
type StudentFormRequest struct {
	FirstName        string `form:"first_name" binding:"required,max=50"`
	LastName         string `form:"last_name" binding:"required,max=50"`
	Gender           string `form:"gender" binding:"required,oneof=male female other"`
	DateOfBirth      string `form:"date_of_birth" binding:"required,datetime=2006-01-02"`
	ClassName        string `form:"class_name" binding:"required,max=20"`
	GuardianName     string `form:"guardian_name" binding:"omitempty,max=100"`
	GuardianPhone    string `form:"guardian_phone" binding:"omitempty,max=20"`
	GuardianEmail    string `form:"guardian_email" binding:"omitempty,email"`
	Address          string `form:"address"`
	AdmissionDate    string `form:"admission_date" binding:"omitempty,datetime=2006-01-02"`
	TeacherID        *int64 `form:"teacher_id" binding:"omitempty,gt=0"`
	MedicalInfo      string `form:"medical_info"`
	EmergencyContact string `form:"emergency_contact" binding:"omitempty,max=100"`
	EmergencyPhone   string `form:"emergency_phone" binding:"omitempty,max=20"`
}

// UpdateStudentRequest carries the multipart fields of the edit form; absent
// fields are left unchanged.
type UpdateStudentRequest struct {
	FirstName        *string `form:"first_name" binding:"omitempty,min=1,max=50"`
	LastName         *string `form:"last_name" binding:"omitempty,min=1,max=50"`
	Gender           *string `form:"gender" binding:"omitempty,oneof=male female other"`
	DateOfBirth      *string `form:"date_of_birth" binding:"omitempty,datetime=2006-01-02"`
	ClassName        *string `form:"class_name" binding:"omitempty,min=1,max=20"`
	GuardianName     *string `form:"guardian_name" binding:"omitempty,max=100"`
	GuardianPhone    *string `form:"guardian_phone" binding:"omitempty,max=20"`
	GuardianEmail    *string `form:"guardian_email" binding:"omitempty,email"`
	Address          *string `form:"address"`
	AdmissionDate    *string `form:"admission_date" binding:"omitempty,datetime=2006-01-02"`
	TeacherID        *int64  `form:"teacher_id" binding:"omitempty,gte=0"`
	MedicalInfo      *string `form:"medical_info"`
	EmergencyContact *string `form:"emergency_contact" binding:"omitempty,max=100"`
	EmergencyPhone   *string `form:"emergency_phone" binding:"omitempty,max=20"`
}

// StudentListQuery holds the listing filters; page and per_page are read leniently
type StudentListQuery struct {
	Search          string `form:"search"`
	ClassName       string `form:"class"`
	Gender          string `form:"gender"`
	SortBy          string `form:"sort_by"`
	SortOrder       string `form:"order"`
	IncludeInactive bool   `form:"include_inactive"`
}

// StudentSearchQuery holds the quick lookup query string
type StudentSearchQuery struct {
	Q     string `form:"q" binding:"required,min=2"`
	Limit int    `form:"limit" binding:"omitempty,min=1,max=50"`
}

// StudentExportQuery selects the export format and filter
type StudentExportQuery struct {
	Format          string `form:"format" binding:"omitempty,oneof=csv xlsx"`
	ClassName       string `form:"class"`
	IncludeInactive bool   `form:"include_inactive"`
}

// StudentListResponse is one page of the directory
type StudentListResponse struct {
	Items      []StudentResponse  `json:"items"`
	Pagination helpers.Pagination `json:"pagination"`
}

// StudentSummary is the compact form returned by quick search
type StudentSummary struct {
	ID        int64  `json:"id"`
	StudentID string `json:"studentId"`
	FullName  string `json:"fullName"`
	ClassName string `json:"className"`
}

// StudentCreatedResponse reports a new record with its initial credential
type StudentCreatedResponse struct {
	Student         StudentResponse `json:"student"`
	InitialPassword string          `json:"initialPassword"`
}

// ImportErrorDetail is one rejected row
type ImportErrorDetail struct {
	RowNumber int    `json:"rowNumber"`
	Message   string `json:"message"`
}

// ImportResponse summarizes a bulk import
type ImportResponse struct {
	ImportedCount int                 `json:"importedCount"`
	ErrorCount    int                 `json:"errorCount"`
	Errors        []ImportErrorDetail `json:"errors"`
	Truncated     bool                `json:"truncated"`
}

// ToggleStatusResponse reports the new status after a toggle
type ToggleStatusResponse struct {
	ID     int64                `json:"id"`
	Status models.StudentStatus `json:"status"`
}

// StudentResponse is a student with the public URLs of its photo variants
type StudentResponse struct {
	*models.Student
	PhotoURLs map[string]string `json:"photoUrls,omitempty"`
}

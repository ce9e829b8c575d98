package controllers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	appAuth "github.com/brightstar/portal/internal/app/auth"
	"github.com/brightstar/portal/internal/app/models"
	"github.com/brightstar/portal/internal/app/models/dto"
	"github.com/brightstar/portal/internal/app/services"
	"github.com/brightstar/portal/internal/middleware"
	"github.com/brightstar/portal/internal/pkg/apperrors"
	"github.com/brightstar/portal/internal/pkg/filestorage"
	"github.com/brightstar/portal/internal/pkg/helpers"
	"github.com/brightstar/portal/internal/pkg/tabular"
)

// DefaultImportErrorPreview is the number of rejected rows echoed back after an import
const DefaultImportErrorPreview = 10

// studentDirectory is the subset of StudentService used by the controller
type studentDirectory interface {
	Create(ctx context.Context, student *models.Student) (string, error)
	ListPage(ctx context.Context, params services.ListParams) (*services.StudentPage, error)
	GetByID(ctx context.Context, id int64) (*models.Student, error)
	Update(ctx context.Context, id int64, fields models.StudentFields) error
	SoftDelete(ctx context.Context, id int64) error
	ToggleStatus(ctx context.Context, id int64) (models.StudentStatus, error)
	Classes(ctx context.Context) ([]string, error)
	Search(ctx context.Context, q string, limit int) ([]models.Student, error)
	Export(ctx context.Context, filter services.ExportFilter, w io.Writer, format tabular.Format) (int, error)
	ChangePassword(ctx context.Context, id int64, current, next string) error
}

type studentImporter interface {
	Import(ctx context.Context, r io.Reader, format tabular.Format) (*services.ImportOutcome, error)
}

// StudentControllerConfig holds the upload and import limits
type StudentControllerConfig struct {
	DefaultAvatar      string
	MaxImportFileSize  int64
	ImportErrorPreview int
}

// StudentController handles the student directory endpoints
type StudentController struct {
	students studentDirectory
	importer studentImporter
	photos   filestorage.PhotoStore
	cfg      StudentControllerConfig
	logger   zerolog.Logger
}

// NewStudentController creates a new StudentController
func NewStudentController(
	students studentDirectory,
	importer studentImporter,
	photos filestorage.PhotoStore,
	cfg StudentControllerConfig,
	logger zerolog.Logger,
) *StudentController {
	if cfg.ImportErrorPreview <= 0 {
		cfg.ImportErrorPreview = DefaultImportErrorPreview
	}
	return &StudentController{
		students: students,
		importer: importer,
		photos:   photos,
		cfg:      cfg,
		logger:   logger.With().Str("component", "student_controller").Logger(),
	}
}

func (c *StudentController) toResponse(s *models.Student) dto.StudentResponse {
	resp := dto.StudentResponse{Student: s}
	if s.Photo != nil && *s.Photo != "" {
		resp.PhotoURLs = map[string]string{filestorage.VariantOriginal: c.photos.URL(*s.Photo, filestorage.VariantOriginal)}
		for _, v := range filestorage.DefaultVariants {
			resp.PhotoURLs[v.Name] = c.photos.URL(*s.Photo, v.Name)
		}
	}
	return resp
}

func parseIDParam(ctx *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		errorDetail := dto.NewErrorDetail(dto.ErrorCodeValidationFailed, "Invalid student ID").
			WithDetails("Student ID must be a positive number")
		ctx.JSON(http.StatusBadRequest, dto.NewFailureResponse(errorDetail, nil))
		return 0, false
	}
	return id, true
}

func parseOptionalDate(value *string) (*time.Time, error) {
	if value == nil || *value == "" {
		return nil, nil
	}
	t, err := helpers.ParseDate(*value)
	if err != nil {
		return nil, apperrors.NewValidationError("invalid date %q, expected YYYY-MM-DD", *value)
	}
	return &t, nil
}

// savePhoto stores the optional "photo" upload. A missing file yields ("", nil).
func (c *StudentController) savePhoto(ctx *gin.Context, subjectID int64) (string, error) {
	header, err := ctx.FormFile("photo")
	if errors.Is(err, http.ErrMissingFile) {
		return "", nil
	}
	if err != nil {
		return "", apperrors.NewBadRequestError("could not read photo upload")
	}
	return c.storeUpload(header, subjectID)
}

func (c *StudentController) storeUpload(header *multipart.FileHeader, subjectID int64) (string, error) {
	file, err := header.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open upload: %w", err)
	}
	defer file.Close()
	return c.photos.SavePhoto(file, header.Filename, subjectID)
}

// ListStudents returns one filtered, sorted page of the directory
// @Summary List students
// @Tags students
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page number"
// @Param per_page query int false "Page size (5-100)"
// @Param search query string false "Matches names, identifier and guardian"
// @Param class query string false "Class filter"
// @Param gender query string false "Gender filter"
// @Param sort_by query string false "first_name, last_name, student_id, class or admission_date"
// @Param order query string false "asc or desc"
// @Success 200 {object} dto.APIResponse{data=dto.StudentListResponse}
// @Router /students [get]
func (c *StudentController) ListStudents(ctx *gin.Context) {
	var query dto.StudentListQuery
	if err := ctx.ShouldBindQuery(&query); err != nil {
		middleware.HandleBindingError(ctx, err, "Invalid listing parameters")
		return
	}
	page, perPage := helpers.ParsePaginationParams(ctx)

	result, err := c.students.ListPage(ctx.Request.Context(), services.ListParams{
		Page:            page,
		PerPage:         perPage,
		Search:          query.Search,
		ClassName:       query.ClassName,
		Gender:          query.Gender,
		SortBy:          query.SortBy,
		SortOrder:       query.SortOrder,
		IncludeInactive: query.IncludeInactive,
	})
	if err != nil {
		c.logger.Error().Err(err).Msg("Failed to list students")
		status, detail := middleware.ClassifyError(err)
		empty := dto.StudentListResponse{
			Items:      []dto.StudentResponse{},
			Pagination: helpers.NewPagination(0, helpers.ClampPage(page), helpers.ClampPerPage(perPage)),
		}
		ctx.JSON(status, dto.NewFailureResponse(detail, empty))
		return
	}

	items := make([]dto.StudentResponse, 0, len(result.Items))
	for i := range result.Items {
		items = append(items, c.toResponse(&result.Items[i]))
	}
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(dto.StudentListResponse{
		Items:      items,
		Pagination: result.Pagination,
	}, ""))
}

// SearchStudents is the quick lookup for autocomplete widgets
// @Summary Quick student search
// @Tags students
// @Produce json
// @Security BearerAuth
// @Param q query string true "At least 2 characters"
// @Param limit query int false "At most 50"
// @Success 200 {object} dto.APIResponse{data=[]dto.StudentSummary}
// @Router /students/search [get]
func (c *StudentController) SearchStudents(ctx *gin.Context) {
	var query dto.StudentSearchQuery
	if err := ctx.ShouldBindQuery(&query); err != nil {
		middleware.HandleBindingError(ctx, err, "Invalid search parameters")
		return
	}

	students, err := c.students.Search(ctx.Request.Context(), query.Q, query.Limit)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	summaries := make([]dto.StudentSummary, 0, len(students))
	for _, s := range students {
		summaries = append(summaries, dto.StudentSummary{
			ID:        s.ID,
			StudentID: s.StudentID,
			FullName:  s.FullName(),
			ClassName: s.ClassName,
		})
	}
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(summaries, ""))
}

// ListClasses returns the class labels in use
// @Summary List class labels
// @Tags students
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse{data=[]string}
// @Router /students/classes [get]
func (c *StudentController) ListClasses(ctx *gin.Context) {
	classes, err := c.students.Classes(ctx.Request.Context())
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(classes, ""))
}

// ExportStudents downloads the filtered directory as CSV or XLSX
// @Summary Export students
// @Tags students
// @Produce octet-stream
// @Security BearerAuth
// @Param format query string false "csv (default) or xlsx"
// @Param class query string false "Class filter"
// @Router /students/export [get]
func (c *StudentController) ExportStudents(ctx *gin.Context) {
	var query dto.StudentExportQuery
	if err := ctx.ShouldBindQuery(&query); err != nil {
		middleware.HandleBindingError(ctx, err, "Invalid export parameters")
		return
	}
	format := tabular.FormatCSV
	if query.Format != "" {
		format = tabular.Format(query.Format)
	}

	var buf bytes.Buffer
	count, err := c.students.Export(ctx.Request.Context(), services.ExportFilter{
		ClassName:       query.ClassName,
		Gender:          ctx.Query("gender"),
		IncludeInactive: query.IncludeInactive,
	}, &buf, format)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	filename := fmt.Sprintf("students_export_%s.%s", time.Now().Format("20060102_150405"), format)
	ctx.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	ctx.Header("X-Record-Count", strconv.Itoa(count))
	ctx.Data(http.StatusOK, format.ContentType(), buf.Bytes())
}

// ImportStudents bulk-creates students from an uploaded CSV or XLSX file
// @Summary Bulk import students
// @Tags students
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param file formData file true "CSV or XLSX file with a header row"
// @Success 200 {object} dto.APIResponse{data=dto.ImportResponse}
// @Failure 400 {object} dto.APIResponse "Unreadable file or missing required columns"
// @Router /students/import [post]
func (c *StudentController) ImportStudents(ctx *gin.Context) {
	header, err := ctx.FormFile("file")
	if err != nil {
		errorDetail := dto.NewErrorDetail(dto.ErrorCodeInvalidRequest, "No file selected")
		ctx.JSON(http.StatusBadRequest, dto.NewFailureResponse(errorDetail, nil))
		return
	}

	format, err := tabular.FormatFromFilename(header.Filename)
	if err != nil {
		errorDetail := dto.NewErrorDetail(dto.ErrorCodeInvalidFileType, "Please upload a CSV or XLSX file")
		ctx.JSON(http.StatusBadRequest, dto.NewFailureResponse(errorDetail, nil))
		return
	}
	if c.cfg.MaxImportFileSize > 0 && header.Size > c.cfg.MaxImportFileSize {
		middleware.HandleAPIError(ctx, &apperrors.FileTooLargeError{Size: header.Size, Max: c.cfg.MaxImportFileSize})
		return
	}

	file, err := header.Open()
	if err != nil {
		middleware.HandleAPIError(ctx, fmt.Errorf("failed to open upload: %w", err))
		return
	}
	defer file.Close()

	outcome, err := c.importer.Import(ctx.Request.Context(), file, format)
	if err != nil {
		c.logger.Warn().Err(err).Str("file", header.Filename).Msg("Import rejected")
		middleware.HandleAPIError(ctx, err)
		return
	}

	resp := dto.ImportResponse{
		ImportedCount: outcome.ImportedCount,
		ErrorCount:    outcome.ErrorCount,
		Errors:        []dto.ImportErrorDetail{},
	}
	for i, e := range outcome.ErrorDetails {
		if i == c.cfg.ImportErrorPreview {
			resp.Truncated = true
			break
		}
		resp.Errors = append(resp.Errors, dto.ImportErrorDetail{RowNumber: e.RowNumber, Message: e.Message})
	}

	message := fmt.Sprintf("Successfully imported %d students. %d errors.", outcome.ImportedCount, outcome.ErrorCount)
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(resp, message))
}

// CreateStudent creates a student from the multipart form, with an optional photo
// @Summary Create a student
// @Tags students
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param photo formData file false "Student photo"
// @Success 201 {object} dto.APIResponse{data=dto.StudentCreatedResponse}
// @Failure 400 {object} dto.APIResponse "Invalid student data"
// @Router /students [post]
func (c *StudentController) CreateStudent(ctx *gin.Context) {
	var req dto.StudentFormRequest
	if err := ctx.ShouldBind(&req); err != nil {
		middleware.HandleBindingError(ctx, err, "Invalid student data")
		return
	}

	dob, err := helpers.ParseDate(req.DateOfBirth)
	if err != nil {
		middleware.HandleAPIError(ctx, apperrors.NewValidationError("invalid date of birth"))
		return
	}
	admission, err := parseOptionalDate(&req.AdmissionDate)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	student := &models.Student{
		FirstName:        req.FirstName,
		LastName:         req.LastName,
		Gender:           req.Gender,
		DateOfBirth:      dob,
		GuardianName:     req.GuardianName,
		GuardianPhone:    req.GuardianPhone,
		GuardianEmail:    req.GuardianEmail,
		Address:          req.Address,
		ClassName:        req.ClassName,
		TeacherID:        req.TeacherID,
		MedicalInfo:      req.MedicalInfo,
		EmergencyContact: req.EmergencyContact,
		EmergencyPhone:   req.EmergencyPhone,
	}
	if admission != nil {
		student.AdmissionDate = *admission
	}

	var warnings []string
	photo, err := c.savePhoto(ctx, 0)
	if err != nil {
		c.logger.Warn().Err(err).Msg("Photo rejected, creating student without it")
		warnings = append(warnings, "Photo was not saved: "+apperrors.Message(err))
	} else if photo != "" {
		student.Photo = &photo
	}

	password, err := c.students.Create(ctx.Request.Context(), student)
	if err != nil {
		if photo != "" {
			c.removePhoto(photo)
		}
		middleware.HandleAPIError(ctx, err)
		return
	}

	resp := dto.NewSuccessResponse(dto.StudentCreatedResponse{
		Student:         c.toResponse(student),
		InitialPassword: password,
	}, fmt.Sprintf("Student %s added successfully", student.StudentID))
	resp.Warnings = warnings
	ctx.JSON(http.StatusCreated, resp)
}

// GetStudent returns one student
// @Summary Get a student
// @Tags students
// @Produce json
// @Security BearerAuth
// @Param id path int true "Student row ID"
// @Success 200 {object} dto.APIResponse{data=dto.StudentResponse}
// @Failure 404 {object} dto.APIResponse "Student not found"
// @Router /students/{id} [get]
func (c *StudentController) GetStudent(ctx *gin.Context) {
	id, ok := parseIDParam(ctx)
	if !ok {
		return
	}

	student, err := c.students.GetByID(ctx.Request.Context(), id)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(c.toResponse(student), ""))
}

func updateFields(req dto.UpdateStudentRequest) (models.StudentFields, error) {
	fields := models.StudentFields{
		FirstName:        req.FirstName,
		LastName:         req.LastName,
		Gender:           req.Gender,
		GuardianName:     req.GuardianName,
		GuardianPhone:    req.GuardianPhone,
		GuardianEmail:    req.GuardianEmail,
		Address:          req.Address,
		ClassName:        req.ClassName,
		MedicalInfo:      req.MedicalInfo,
		EmergencyContact: req.EmergencyContact,
		EmergencyPhone:   req.EmergencyPhone,
	}

	var err error
	if fields.DateOfBirth, err = parseOptionalDate(req.DateOfBirth); err != nil {
		return fields, err
	}
	if fields.AdmissionDate, err = parseOptionalDate(req.AdmissionDate); err != nil {
		return fields, err
	}
	if req.TeacherID != nil {
		if *req.TeacherID == 0 {
			fields.ClearTeacher = true
		} else {
			fields.TeacherID = req.TeacherID
		}
	}
	return fields, nil
}

// UpdateStudent edits a student. The identifier never changes. A new photo
// replaces the old one only after the record has been saved.
// @Summary Update a student
// @Tags students
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param id path int true "Student row ID"
// @Param photo formData file false "Replacement photo"
// @Success 200 {object} dto.APIResponse{data=dto.StudentResponse}
// @Router /students/{id} [put]
func (c *StudentController) UpdateStudent(ctx *gin.Context) {
	id, ok := parseIDParam(ctx)
	if !ok {
		return
	}

	var req dto.UpdateStudentRequest
	if err := ctx.ShouldBind(&req); err != nil {
		middleware.HandleBindingError(ctx, err, "Invalid student data")
		return
	}
	fields, err := updateFields(req)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	current, err := c.students.GetByID(ctx.Request.Context(), id)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	var warnings []string
	photo, err := c.savePhoto(ctx, id)
	if err != nil {
		c.logger.Warn().Err(err).Int64("id", id).Msg("Photo rejected, updating student without it")
		warnings = append(warnings, "Photo was not saved: "+apperrors.Message(err))
	} else if photo != "" {
		fields.Photo = &photo
	}

	if err := c.students.Update(ctx.Request.Context(), id, fields); err != nil {
		if photo != "" {
			c.removePhoto(photo)
		}
		middleware.HandleAPIError(ctx, err)
		return
	}
	if photo != "" && current.Photo != nil {
		c.removePhoto(*current.Photo)
	}

	updated, err := c.students.GetByID(ctx.Request.Context(), id)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	resp := dto.NewSuccessResponse(c.toResponse(updated), "Student updated successfully")
	resp.Warnings = warnings
	ctx.JSON(http.StatusOK, resp)
}

func (c *StudentController) removePhoto(name string) {
	if _, err := c.photos.DeletePhoto(name); err != nil {
		c.logger.Warn().Err(err).Str("file", name).Msg("Failed to delete photo")
	}
}

// DeleteStudent deactivates a student; the record and identifier are kept
// @Summary Deactivate a student
// @Tags students
// @Security BearerAuth
// @Param id path int true "Student row ID"
// @Success 200 {object} dto.APIResponse
// @Router /students/{id} [delete]
func (c *StudentController) DeleteStudent(ctx *gin.Context) {
	id, ok := parseIDParam(ctx)
	if !ok {
		return
	}
	if err := c.students.SoftDelete(ctx.Request.Context(), id); err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(nil, "Student deactivated successfully"))
}

// ToggleStatus flips a student between active and inactive
// @Summary Toggle student status
// @Tags students
// @Security BearerAuth
// @Param id path int true "Student row ID"
// @Success 200 {object} dto.APIResponse{data=dto.ToggleStatusResponse}
// @Router /students/{id}/toggle-status [post]
func (c *StudentController) ToggleStatus(ctx *gin.Context) {
	id, ok := parseIDParam(ctx)
	if !ok {
		return
	}
	status, err := c.students.ToggleStatus(ctx.Request.Context(), id)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(dto.ToggleStatusResponse{ID: id, Status: status},
		fmt.Sprintf("Student status changed to %s", status)))
}

// GetPhoto serves a photo variant. Missing variants are regenerated from the
// original; a student without a usable photo gets the default avatar.
// Students may only fetch their own photo.
// @Summary Get a student photo
// @Tags students
// @Produce image/jpeg,image/png,image/webp
// @Security BearerAuth
// @Param id path int true "Student row ID"
// @Param size query string false "thumbnail, small, medium, large or original"
// @Router /students/{id}/photo [get]
func (c *StudentController) GetPhoto(ctx *gin.Context) {
	id, ok := parseIDParam(ctx)
	if !ok {
		return
	}
	accountID, _ := middleware.AccountID(ctx)
	if err := appAuth.ValidateStudentAccess(middleware.Role(ctx), accountID, id); err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	student, err := c.students.GetByID(ctx.Request.Context(), id)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	if student.Photo == nil || *student.Photo == "" {
		c.serveDefaultAvatar(ctx)
		return
	}

	stored := *student.Photo
	size := ctx.DefaultQuery("size", filestorage.VariantThumbnail)
	if err := c.photos.EnsureVariants(stored); err != nil {
		c.logger.Warn().Err(err).Str("file", stored).Msg("Could not regenerate photo variants")
	}

	path, err := c.photos.ResolvePath(stored, size)
	if err != nil {
		c.logger.Warn().Err(err).Str("file", stored).Msg("Photo missing, serving default avatar")
		c.serveDefaultAvatar(ctx)
		return
	}
	ctx.File(path)
}

func (c *StudentController) serveDefaultAvatar(ctx *gin.Context) {
	if c.cfg.DefaultAvatar == "" {
		middleware.HandleAPIError(ctx, apperrors.NewResourceNotFoundError("photo not found"))
		return
	}
	ctx.File(c.cfg.DefaultAvatar)
}

// GetMe returns the logged-in student's own record
// @Summary Current student profile
// @Tags me
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse{data=dto.StudentResponse}
// @Router /me [get]
func (c *StudentController) GetMe(ctx *gin.Context) {
	id, ok := middleware.AccountID(ctx)
	if !ok {
		middleware.HandleAPIError(ctx, apperrors.ErrTokenInvalid)
		return
	}
	student, err := c.students.GetByID(ctx.Request.Context(), id)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(c.toResponse(student), ""))
}

// ChangePassword lets the logged-in student replace their password
// @Summary Change own password
// @Tags me
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.ChangePasswordRequest true "Current and new password"
// @Success 200 {object} dto.APIResponse
// @Router /me/password [put]
func (c *StudentController) ChangePassword(ctx *gin.Context) {
	id, ok := middleware.AccountID(ctx)
	if !ok {
		middleware.HandleAPIError(ctx, apperrors.ErrTokenInvalid)
		return
	}

	var req dto.ChangePasswordRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		middleware.HandleBindingError(ctx, err, "Invalid password change request")
		return
	}

	if err := c.students.ChangePassword(ctx.Request.Context(), id, req.CurrentPassword, req.NewPassword); err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(nil, "Password changed successfully"))
}

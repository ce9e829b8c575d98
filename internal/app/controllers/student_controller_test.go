package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightstar/portal/internal/app/models"
	"github.com/brightstar/portal/internal/app/services"
	"github.com/brightstar/portal/internal/middleware"
	"github.com/brightstar/portal/internal/pkg/apperrors"
	"github.com/brightstar/portal/internal/pkg/auth"
	"github.com/brightstar/portal/internal/pkg/helpers"
	"github.com/brightstar/portal/internal/pkg/tabular"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeDirectory struct {
	students  map[int64]*models.Student
	listErr   error
	lastList  services.ListParams
	created   *models.Student
	updateErr error
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{students: map[int64]*models.Student{}}
}

func (f *fakeDirectory) Create(_ context.Context, s *models.Student) (string, error) {
	s.ID = int64(len(f.students) + 1)
	s.StudentID = fmt.Sprintf("STU24%04d", s.ID)
	s.Status = models.StudentStatusActive
	f.students[s.ID] = s
	f.created = s
	return strings.ToLower(s.LastName) + s.StudentID[len(s.StudentID)-4:], nil
}

func (f *fakeDirectory) ListPage(_ context.Context, p services.ListParams) (*services.StudentPage, error) {
	f.lastList = p
	if f.listErr != nil {
		return nil, f.listErr
	}
	items := make([]models.Student, 0, len(f.students))
	for _, s := range f.students {
		items = append(items, *s)
	}
	return &services.StudentPage{
		Items:      items,
		Pagination: helpers.NewPagination(int64(len(items)), helpers.ClampPage(p.Page), helpers.ClampPerPage(p.PerPage)),
	}, nil
}

func (f *fakeDirectory) GetByID(_ context.Context, id int64) (*models.Student, error) {
	s, ok := f.students[id]
	if !ok {
		return nil, apperrors.ErrStudentNotFound
	}
	copied := *s
	return &copied, nil
}

func (f *fakeDirectory) Update(_ context.Context, id int64, fields models.StudentFields) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	s, ok := f.students[id]
	if !ok {
		return apperrors.ErrStudentNotFound
	}
	if fields.FirstName != nil {
		s.FirstName = *fields.FirstName
	}
	if fields.Photo != nil {
		s.Photo = fields.Photo
	}
	return nil
}

func (f *fakeDirectory) SoftDelete(_ context.Context, id int64) error {
	s, ok := f.students[id]
	if !ok {
		return apperrors.ErrStudentNotFound
	}
	s.Status = models.StudentStatusInactive
	return nil
}

func (f *fakeDirectory) ToggleStatus(_ context.Context, id int64) (models.StudentStatus, error) {
	s, ok := f.students[id]
	if !ok {
		return "", apperrors.ErrStudentNotFound
	}
	s.Status = s.Status.Toggled()
	return s.Status, nil
}

func (f *fakeDirectory) Classes(context.Context) ([]string, error) {
	return []string{"Basic 1", "Basic 2"}, nil
}

func (f *fakeDirectory) Search(_ context.Context, q string, _ int) ([]models.Student, error) {
	var out []models.Student
	for _, s := range f.students {
		if strings.Contains(strings.ToLower(s.FullName()), strings.ToLower(q)) {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (f *fakeDirectory) Export(_ context.Context, _ services.ExportFilter, w io.Writer, format tabular.Format) (int, error) {
	rows := [][]string{}
	for _, s := range f.students {
		rows = append(rows, []string{s.StudentID, s.FirstName})
	}
	return len(rows), tabular.Write(w, format, []string{"student_id", "first_name"}, rows)
}

func (f *fakeDirectory) ChangePassword(_ context.Context, id int64, current, next string) error {
	if current != "old-password" {
		return apperrors.ErrInvalidCredentials
	}
	return nil
}

type fakeImporter struct {
	outcome *services.ImportOutcome
	err     error
	body    string
}

func (f *fakeImporter) Import(_ context.Context, r io.Reader, _ tabular.Format) (*services.ImportOutcome, error) {
	data, _ := io.ReadAll(r)
	f.body = string(data)
	return f.outcome, f.err
}

type fakePhotos struct {
	saveErr error
	saved   []string
	deleted []string
	dir     string
}

func (f *fakePhotos) SavePhoto(_ io.Reader, filename string, subjectID int64) (string, error) {
	if f.saveErr != nil {
		return "", f.saveErr
	}
	name := fmt.Sprintf("student_%d_%d.jpg", subjectID, len(f.saved)+1)
	f.saved = append(f.saved, name)
	return name, nil
}

func (f *fakePhotos) DeletePhoto(stored string) (bool, error) {
	f.deleted = append(f.deleted, stored)
	return true, nil
}

func (f *fakePhotos) ResolvePath(stored, _ string) (string, error) {
	path := filepath.Join(f.dir, stored)
	if _, err := os.Stat(path); err != nil {
		return "", apperrors.NewResourceNotFoundError("photo not found")
	}
	return path, nil
}

func (f *fakePhotos) EnsureVariants(string) error { return nil }

func (f *fakePhotos) URL(stored, variant string) string {
	return "/uploads/students/" + variant + "/" + stored
}

type testEnv struct {
	router   *gin.Engine
	dir      *fakeDirectory
	importer *fakeImporter
	photos   *fakePhotos
}

// newTestEnv wires the controller onto a router whose identity is taken from
// the X-Test-Role and X-Test-Account headers.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		dir:      newFakeDirectory(),
		importer: &fakeImporter{outcome: &services.ImportOutcome{}},
		photos:   &fakePhotos{dir: t.TempDir()},
	}
	avatar := filepath.Join(t.TempDir(), "default.png")
	require.NoError(t, os.WriteFile(avatar, []byte("avatar"), 0o644))

	c := NewStudentController(env.dir, env.importer, env.photos, StudentControllerConfig{
		DefaultAvatar:     avatar,
		MaxImportFileSize: 1024,
	}, zerolog.Nop())

	r := gin.New()
	r.Use(func(ctx *gin.Context) {
		ctx.Set(middleware.ContextRole, ctx.GetHeader("X-Test-Role"))
		var id int64
		fmt.Sscan(ctx.GetHeader("X-Test-Account"), &id)
		ctx.Set(middleware.ContextAccountID, id)
	})
	r.GET("/students", c.ListStudents)
	r.GET("/students/search", c.SearchStudents)
	r.GET("/students/export", c.ExportStudents)
	r.POST("/students/import", c.ImportStudents)
	r.POST("/students", c.CreateStudent)
	r.PUT("/students/:id", c.UpdateStudent)
	r.POST("/students/:id/toggle-status", c.ToggleStatus)
	r.GET("/students/:id/photo", c.GetPhoto)
	r.PUT("/me/password", c.ChangePassword)
	env.router = r
	return env
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	if req.Header.Get("X-Test-Role") == "" {
		req.Header.Set("X-Test-Role", auth.RoleAdmin)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) seed(first, last string) *models.Student {
	s := &models.Student{FirstName: first, LastName: last, Gender: "female", ClassName: "Basic 1"}
	_, _ = e.dir.Create(context.Background(), s)
	return s
}

func multipartRequest(t *testing.T, method, target string, fields map[string]string, fileField, filename string, content []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if fileField != "" {
		fw, err := mw.CreateFormFile(fileField, filename)
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(method, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

type envelope struct {
	Success  bool            `json:"success"`
	Message  string          `json:"message"`
	Data     json.RawMessage `json:"data"`
	Warnings []string        `json:"warnings"`
	Error    *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func TestListStudentsReadsParamsLeniently(t *testing.T) {
	env := newTestEnv(t)
	env.seed("Ama", "Mensah")

	w := env.do(httptest.NewRequest(http.MethodGet, "/students?page=abc&per_page=1000&search=ama&class=Basic+1&sort_by=last_name&order=desc", nil))
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, 1, env.dir.lastList.Page)
	assert.Equal(t, 1000, env.dir.lastList.PerPage)
	assert.Equal(t, "ama", env.dir.lastList.Search)
	assert.Equal(t, "Basic 1", env.dir.lastList.ClassName)
	assert.Equal(t, "desc", env.dir.lastList.SortOrder)

	var page struct {
		Items []struct {
			StudentID string `json:"studentId"`
		} `json:"items"`
		Pagination helpers.Pagination `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &page))
	require.Len(t, page.Items, 1)
	assert.Equal(t, "STU240001", page.Items[0].StudentID)
	assert.Equal(t, 100, page.Pagination.PerPage)
}

func TestListStudentsDegradesOnStoreFailure(t *testing.T) {
	env := newTestEnv(t)
	env.dir.listErr = apperrors.NewStoreError("count students", fmt.Errorf("connection refused"))

	w := env.do(httptest.NewRequest(http.MethodGet, "/students", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	body := decode(t, w)
	assert.False(t, body.Success)
	require.NotNil(t, body.Error)
	assert.Equal(t, "SRV_002", body.Error.Code)
	assert.Contains(t, string(body.Data), `"items":[]`)
}

func TestImportStudentsTruncatesErrorPreview(t *testing.T) {
	env := newTestEnv(t)
	details := make([]services.RowError, 0, 12)
	for i := 0; i < 12; i++ {
		details = append(details, services.RowError{RowNumber: i + 2, Message: "Missing required fields: gender"})
	}
	env.importer.outcome = &services.ImportOutcome{ImportedCount: 3, ErrorCount: 12, ErrorDetails: details}

	csv := "first_name,last_name,gender,date_of_birth,class_name\n"
	w := env.do(multipartRequest(t, http.MethodPost, "/students/import", nil, "file", "students.csv", []byte(csv)))
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	assert.Equal(t, "Successfully imported 3 students. 12 errors.", body.Message)
	var resp struct {
		ImportedCount int `json:"importedCount"`
		ErrorCount    int `json:"errorCount"`
		Errors        []struct {
			RowNumber int `json:"rowNumber"`
		} `json:"errors"`
		Truncated bool `json:"truncated"`
	}
	require.NoError(t, json.Unmarshal(body.Data, &resp))
	assert.Equal(t, 12, resp.ErrorCount)
	assert.Len(t, resp.Errors, DefaultImportErrorPreview)
	assert.True(t, resp.Truncated)
	assert.Equal(t, 2, resp.Errors[0].RowNumber)
	assert.Equal(t, csv, env.importer.body)
}

func TestImportStudentsRejectsBadUploads(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(multipartRequest(t, http.MethodPost, "/students/import", nil, "file", "students.txt", []byte("x")))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "FILE_001", decode(t, w).Error.Code)

	w = env.do(multipartRequest(t, http.MethodPost, "/students/import", nil, "file", "students.csv", bytes.Repeat([]byte("a"), 2048)))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

	env.importer.err = apperrors.NewValidationError("Missing required columns: gender")
	w = env.do(multipartRequest(t, http.MethodPost, "/students/import", nil, "file", "students.csv", []byte("first_name\n")))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Missing required columns: gender", decode(t, w).Error.Message)

	w = env.do(multipartRequest(t, http.MethodPost, "/students/import", nil, "", "", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func createFields() map[string]string {
	return map[string]string{
		"first_name":    "Ama",
		"last_name":     "Mensah",
		"gender":        "female",
		"date_of_birth": "2016-03-14",
		"class_name":    "Basic 3",
	}
}

func TestCreateStudent(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(multipartRequest(t, http.MethodPost, "/students", createFields(), "photo", "ama.jpg", []byte("jpeg")))
	require.Equal(t, http.StatusCreated, w.Code)

	body := decode(t, w)
	assert.Equal(t, "Student STU240001 added successfully", body.Message)
	assert.Empty(t, body.Warnings)

	var resp struct {
		Student struct {
			StudentID string            `json:"studentId"`
			Photo     string            `json:"photo"`
			PhotoURLs map[string]string `json:"photoUrls"`
		} `json:"student"`
		InitialPassword string `json:"initialPassword"`
	}
	require.NoError(t, json.Unmarshal(body.Data, &resp))
	assert.Equal(t, "mensah0001", resp.InitialPassword)
	assert.Equal(t, "student_0_1.jpg", resp.Student.Photo)
	assert.Equal(t, "/uploads/students/thumbnail/student_0_1.jpg", resp.Student.PhotoURLs["thumbnail"])
	assert.Equal(t, "2016-03-14", env.dir.created.DateOfBirth.Format(helpers.DateLayout))
}

func TestCreateStudentKeepsRecordWhenPhotoRejected(t *testing.T) {
	env := newTestEnv(t)
	env.photos.saveErr = &apperrors.InvalidFileTypeError{Filename: "ama.exe"}

	w := env.do(multipartRequest(t, http.MethodPost, "/students", createFields(), "photo", "ama.exe", []byte("MZ")))
	require.Equal(t, http.StatusCreated, w.Code)

	body := decode(t, w)
	require.Len(t, body.Warnings, 1)
	assert.Contains(t, body.Warnings[0], "Photo was not saved")
	assert.Nil(t, env.dir.created.Photo)
}

func TestCreateStudentValidatesForm(t *testing.T) {
	env := newTestEnv(t)
	fields := createFields()
	fields["gender"] = "unknown"

	w := env.do(multipartRequest(t, http.MethodPost, "/students", fields, "", "", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Nil(t, env.dir.created)
}

func TestUpdateStudentReplacesPhotoAfterSave(t *testing.T) {
	env := newTestEnv(t)
	s := env.seed("Ama", "Mensah")
	old := "student_1_old.jpg"
	s.Photo = &old

	w := env.do(multipartRequest(t, http.MethodPut, "/students/1", map[string]string{"first_name": "Akosua"}, "photo", "new.png", []byte("png")))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Akosua", env.dir.students[1].FirstName)
	assert.Equal(t, "student_1_1.jpg", *env.dir.students[1].Photo)
	assert.Equal(t, []string{old}, env.photos.deleted)
}

func TestUpdateStudentDropsNewPhotoOnFailure(t *testing.T) {
	env := newTestEnv(t)
	env.seed("Ama", "Mensah")
	env.dir.updateErr = apperrors.NewStoreError("update student", fmt.Errorf("timeout"))

	w := env.do(multipartRequest(t, http.MethodPut, "/students/1", nil, "photo", "new.png", []byte("png")))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, env.photos.saved, env.photos.deleted)
}

func TestUpdateStudentRejectsBadID(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(multipartRequest(t, http.MethodPut, "/students/abc", nil, "", "", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(multipartRequest(t, http.MethodPut, "/students/42", nil, "", "", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestToggleStatus(t *testing.T) {
	env := newTestEnv(t)
	env.seed("Ama", "Mensah")

	w := env.do(httptest.NewRequest(http.MethodPost, "/students/1/toggle-status", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Student status changed to inactive", decode(t, w).Message)
	assert.Equal(t, models.StudentStatusInactive, env.dir.students[1].Status)
}

func TestSearchStudentsNeedsTwoCharacters(t *testing.T) {
	env := newTestEnv(t)
	env.seed("Ama", "Mensah")

	w := env.do(httptest.NewRequest(http.MethodGet, "/students/search?q=a", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(httptest.NewRequest(http.MethodGet, "/students/search?q=men", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(decode(t, w).Data), `"fullName":"Ama Mensah"`)
}

func TestExportStudentsSetsDownloadHeaders(t *testing.T) {
	env := newTestEnv(t)
	env.seed("Ama", "Mensah")

	w := env.do(httptest.NewRequest(http.MethodGet, "/students/export", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Regexp(t, `attachment; filename="students_export_\d{8}_\d{6}\.csv"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "1", w.Header().Get("X-Record-Count"))
	assert.Contains(t, w.Body.String(), "STU240001,Ama")

	w = env.do(httptest.NewRequest(http.MethodGet, "/students/export?format=pdf", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetPhoto(t *testing.T) {
	env := newTestEnv(t)
	s := env.seed("Ama", "Mensah")
	env.seed("Kofi", "Owusu")

	studentReq := func(target, account string) *http.Request {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		req.Header.Set("X-Test-Role", auth.RoleStudent)
		req.Header.Set("X-Test-Account", account)
		return req
	}

	w := env.do(studentReq("/students/2/photo", "1"))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(studentReq("/students/1/photo", "1"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "avatar", w.Body.String())

	name := "student_1_abc.jpg"
	require.NoError(t, os.WriteFile(filepath.Join(env.photos.dir, name), []byte("photo"), 0o644))
	s.Photo = &name
	w = env.do(httptest.NewRequest(http.MethodGet, "/students/1/photo?size=medium", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "photo", w.Body.String())

	missing := "student_2_gone.jpg"
	env.dir.students[2].Photo = &missing
	w = env.do(httptest.NewRequest(http.MethodGet, "/students/2/photo", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "avatar", w.Body.String())
}

func TestChangePassword(t *testing.T) {
	env := newTestEnv(t)

	send := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPut, "/me/password", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Test-Role", auth.RoleStudent)
		req.Header.Set("X-Test-Account", "1")
		return env.do(req)
	}

	assert.Equal(t, http.StatusOK, send(`{"currentPassword":"old-password","newPassword":"new-password"}`).Code)
	assert.Equal(t, http.StatusUnauthorized, send(`{"currentPassword":"wrong","newPassword":"new-password"}`).Code)
	assert.Equal(t, http.StatusBadRequest, send(`{"currentPassword":"old-password","newPassword":"short"}`).Code)
}

package service

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/edunik/edunik-api/internal/models"
	appErrors "github.com/edunik/edunik-api/pkg/errors"
	"github.com/edunik/edunik-api/pkg/storage"
)

type stubGradeLister struct {
	grades []models.Grade
}

func (s *stubGradeLister) List(ctx context.Context, tenantID string, filter models.GradeFilter) ([]models.Grade, error) {
	return s.grades, nil
}

type stubAttendanceLister struct{}

func (s *stubAttendanceLister) ListByStudent(ctx context.Context, tenantID, studentID string) ([]models.AttendanceRecord, error) {
	return nil, nil
}

type stubClassLister struct {
	classes []models.HomeroomClass
}

func (s *stubClassLister) ListAll(ctx context.Context, tenantID string) ([]models.HomeroomClass, error) {
	return s.classes, nil
}

type stubPasswordFetcher struct {
	passwords map[string]string
}

func (s *stubPasswordFetcher) FetchPassword(ctx context.Context, userID string) (string, error) {
	password, ok := s.passwords[userID]
	if !ok {
		return "", assert.AnError
	}
	return password, nil
}

func newExportFixture(t *testing.T) *ExportService {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSigner("export-secret", time.Hour)
	users := &mockUserRepo{users: map[string]*models.User{
		"s1": {ID: "s1", Role: models.RoleStudent, FirstName: "Ivan", LastName: "Petrov", Email: "ivan@edunik.bg", Gender: "MALE", HomeroomClassID: "c1"},
	}}
	classes := &stubClassLister{classes: []models.HomeroomClass{
		{ID: "c1", ClassName: "7A", GradeNumber: 7, ClassLetter: "A"},
	}}
	passwords := &stubPasswordFetcher{passwords: map[string]string{"s1": "parola123"}}
	grades := &stubGradeLister{grades: []models.Grade{
		{StudentID: "s1", SubjectID: "math", Title: "Test 1", Type: models.GradeTypeExam, Value: 5.5, Date: time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)},
	}}
	return NewExportService(users, classes, grades, &stubAttendanceLister{}, passwords, store, signer, ExportConfig{APIPrefix: "/api/v1"}, zap.NewNop())
}

func TestExportGenerateCSVRoundTrip(t *testing.T) {
	svc := newExportFixture(t)

	result, err := svc.Generate(context.Background(), "school-1", ExportRequest{
		Kind:      ExportGrades,
		Format:    FormatCSV,
		StudentID: "s1",
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(result.URL, "/api/v1/exports/"))

	f, err := svc.Open("school-1", result.Token)
	require.NoError(t, err)
	defer f.Close()
	body, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Contains(t, string(body), "5.50")
	assert.Contains(t, string(body), "Test 1")
}

func TestExportGenerateXLSXUsers(t *testing.T) {
	svc := newExportFixture(t)

	result, err := svc.Generate(context.Background(), "school-1", ExportRequest{
		Kind:   ExportUsers,
		Format: FormatXLSX,
	})
	require.NoError(t, err)
	assert.Equal(t, FormatXLSX, result.Format)

	f, err := svc.Open("school-1", result.Token)
	require.NoError(t, err)
	f.Close()
}

func TestExportUsersJoinsClassNameAndPassword(t *testing.T) {
	svc := newExportFixture(t)

	result, err := svc.Generate(context.Background(), "school-1", ExportRequest{
		Kind:   ExportUsers,
		Format: FormatCSV,
	})
	require.NoError(t, err)

	f, err := svc.Open("school-1", result.Token)
	require.NoError(t, err)
	defer f.Close()
	body, err := io.ReadAll(f)
	require.NoError(t, err)

	csv := string(body)
	for _, column := range rosterColumns {
		assert.Contains(t, csv, column)
	}
	assert.Contains(t, csv, "className")
	assert.Contains(t, csv, "password")
	assert.Contains(t, csv, "7A")
	assert.Contains(t, csv, "parola123")
	assert.Contains(t, csv, ClassNamingGraded)
	assert.Contains(t, csv, "MALE")
}

func TestExportOpenRejectsForeignTenant(t *testing.T) {
	svc := newExportFixture(t)

	result, err := svc.Generate(context.Background(), "school-1", ExportRequest{
		Kind:   ExportUsers,
		Format: FormatCSV,
	})
	require.NoError(t, err)

	_, err = svc.Open("school-2", result.Token)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, errCode(t, err))
}

func TestExportGenerateUnknownFormat(t *testing.T) {
	svc := newExportFixture(t)

	_, err := svc.Generate(context.Background(), "school-1", ExportRequest{
		Kind:   ExportUsers,
		Format: ExportFormat("docx"),
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, errCode(t, err))
}

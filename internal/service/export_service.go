package service

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/edunik/edunik-api/internal/models"
	appErrors "github.com/edunik/edunik-api/pkg/errors"
	"github.com/edunik/edunik-api/pkg/export"
	"github.com/edunik/edunik-api/pkg/storage"
)

// ExportFormat selects the rendered file type.
type ExportFormat string

const (
	FormatCSV  ExportFormat = "csv"
	FormatPDF  ExportFormat = "pdf"
	FormatXLSX ExportFormat = "xlsx"
)

// ExportKind selects what data gets exported.
type ExportKind string

const (
	ExportUsers      ExportKind = "users"
	ExportGrades     ExportKind = "grades"
	ExportAttendance ExportKind = "attendance"
)

type exportUserLister interface {
	List(ctx context.Context, tenantID string, filter models.UserFilter) ([]models.User, int, error)
}

type exportClassLister interface {
	ListAll(ctx context.Context, tenantID string) ([]models.HomeroomClass, error)
}

// passwordFetcher reads an account's plaintext password from the
// identity service. Satisfied by *identity.Client.
type passwordFetcher interface {
	FetchPassword(ctx context.Context, userID string) (string, error)
}

type exportGradeLister interface {
	List(ctx context.Context, tenantID string, filter models.GradeFilter) ([]models.Grade, error)
}

type exportAttendanceLister interface {
	ListByStudent(ctx context.Context, tenantID, studentID string) ([]models.AttendanceRecord, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

type xlsxRenderer interface {
	Render(data export.Dataset, sheet string) ([]byte, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportRequest describes one export.
type ExportRequest struct {
	Kind      ExportKind
	Format    ExportFormat
	Role      *models.UserRole
	ClassID   string
	StudentID string
	SubjectID string
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	RelativePath string       `json:"relativePath"`
	Token        string       `json:"token"`
	URL          string       `json:"url"`
	Format       ExportFormat `json:"format"`
	ExpiresAt    time.Time    `json:"expiresAt"`
}

// ExportService builds datasets from the store and persists rendered
// files. Download access goes through signed tokens so the files
// themselves need no auth layer.
type ExportService struct {
	users      exportUserLister
	classes    exportClassLister
	grades     exportGradeLister
	attendance exportAttendanceLister
	passwords  passwordFetcher
	storage    fileStorage
	signer     *storage.Signer
	csv        csvRenderer
	pdf        pdfRenderer
	xlsx       xlsxRenderer
	logger     *zap.Logger
	cfg        ExportConfig
}

// NewExportService constructs an ExportService. passwords may be nil
// when no identity service is configured; the password column is then
// left blank.
func NewExportService(users exportUserLister, classes exportClassLister, grades exportGradeLister, attendance exportAttendanceLister, passwords passwordFetcher, store fileStorage, signer *storage.Signer, cfg ExportConfig, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	return &ExportService{
		users:      users,
		classes:    classes,
		grades:     grades,
		attendance: attendance,
		passwords:  passwords,
		storage:    store,
		signer:     signer,
		csv:        export.NewCSVExporter(),
		pdf:        export.NewPDFExporter(),
		xlsx:       export.NewXLSXExporter(),
		logger:     logger,
		cfg:        cfg,
	}
}

// Generate builds the dataset, renders it and stores the file, handing
// back a signed download URL.
func (s *ExportService) Generate(ctx context.Context, tenantID string, req ExportRequest) (*ExportResult, error) {
	dataset, title, err := s.buildDataset(ctx, tenantID, req)
	if err != nil {
		return nil, err
	}

	var payload []byte
	switch req.Format {
	case FormatCSV:
		payload, err = s.csv.Render(dataset)
	case FormatPDF:
		payload, err = s.pdf.Render(dataset, title)
	case FormatXLSX:
		payload, err = s.xlsx.Render(dataset, title)
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported format %s", req.Format))
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}

	filename := s.buildFilename(tenantID, req)
	relPath, err := s.storage.Save(filename, payload)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store export")
	}

	token, expiresAt, err := s.signer.Sign(tenantID, relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download token")
	}
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}

	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          fmt.Sprintf("%s/exports/%s", prefix, token),
		Format:       req.Format,
		ExpiresAt:    expiresAt,
	}, nil
}

// Open validates a download token and returns a handle to the file.
// The token's tenant must match the caller's.
func (s *ExportService) Open(tenantID, token string) (*os.File, error) {
	tokenTenant, relPath, _, err := s.signer.Verify(token)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid or expired download token")
	}
	if tokenTenant != tenantID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "download token belongs to another school")
	}
	f, err := s.storage.Open(relPath)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "export file no longer available")
	}
	return f, nil
}

// Cleanup removes files older than the configured TTL.
func (s *ExportService) Cleanup() ([]string, error) {
	return s.storage.CleanupOlderThan(s.cfg.ResultTTL)
}

func (s *ExportService) buildFilename(tenantID string, req ExportRequest) string {
	timestamp := time.Now().UTC().Format("20060102_150405")
	return fmt.Sprintf("%s_%s_%s.%s", tenantID, req.Kind, timestamp, req.Format)
}

func (s *ExportService) buildDataset(ctx context.Context, tenantID string, req ExportRequest) (export.Dataset, string, error) {
	switch req.Kind {
	case ExportUsers:
		return s.buildUserDataset(ctx, tenantID, req)
	case ExportGrades:
		return s.buildGradeDataset(ctx, tenantID, req)
	case ExportAttendance:
		return s.buildAttendanceDataset(ctx, tenantID, req)
	default:
		return export.Dataset{}, "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export kind %s", req.Kind))
	}
}

// rosterColumns is the fixed roster schema shared by import and export.
// Exports append the resolved class name and the plaintext password on
// top of it.
var rosterColumns = []string{
	"firstName", "lastName", "phoneNumber", "role", "gender",
	"classNamingFormat", "gradeNumber", "classLetter", "customClassName",
	"homeroomClassId",
}

func (s *ExportService) buildUserDataset(ctx context.Context, tenantID string, req ExportRequest) (export.Dataset, string, error) {
	users, _, err := s.users.List(ctx, tenantID, models.UserFilter{Role: req.Role, ClassID: req.ClassID, PageSize: -1})
	if err != nil {
		return export.Dataset{}, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list users")
	}

	classesByID := make(map[string]models.HomeroomClass)
	if s.classes != nil {
		classes, err := s.classes.ListAll(ctx, tenantID)
		if err != nil {
			return export.Dataset{}, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list classes")
		}
		for _, class := range classes {
			classesByID[class.ID] = class
		}
	}

	rows := make([]map[string]string, 0, len(users))
	for _, u := range users {
		row := map[string]string{
			"firstName":       u.FirstName,
			"lastName":        u.LastName,
			"phoneNumber":     u.PhoneNumber,
			"role":            string(u.Role),
			"gender":          u.Gender,
			"homeroomClassId": u.HomeroomClassID,
		}
		if class, ok := classesByID[u.HomeroomClassID]; ok {
			row["className"] = class.ClassName
			if class.CustomName != "" {
				row["classNamingFormat"] = ClassNamingCustom
				row["customClassName"] = class.CustomName
			} else {
				row["classNamingFormat"] = ClassNamingGraded
				row["gradeNumber"] = strconv.Itoa(class.GradeNumber)
				row["classLetter"] = class.ClassLetter
			}
		}
		if s.passwords != nil {
			password, err := s.passwords.FetchPassword(ctx, u.ID)
			if err != nil {
				// The roster is still useful without the credential.
				s.logger.Warn("password unavailable for export",
					zap.String("user_id", u.ID),
					zap.Error(err))
			} else {
				row["password"] = password
			}
		}
		rows = append(rows, row)
	}
	dataset := export.Dataset{
		Headers: append(append([]string(nil), rosterColumns...), "className", "password"),
		Rows:    rows,
	}
	return dataset, "Users", nil
}

func (s *ExportService) buildGradeDataset(ctx context.Context, tenantID string, req ExportRequest) (export.Dataset, string, error) {
	grades, err := s.grades.List(ctx, tenantID, models.GradeFilter{
		StudentID: req.StudentID,
		SubjectID: req.SubjectID,
	})
	if err != nil {
		return export.Dataset{}, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list grades")
	}
	rows := make([]map[string]string, 0, len(grades))
	for _, g := range grades {
		rows = append(rows, map[string]string{
			"Student ID": g.StudentID,
			"Subject ID": g.SubjectID,
			"Title":      g.Title,
			"Type":       string(g.Type),
			"Value":      fmt.Sprintf("%.2f", g.Value),
			"Date":       g.Date.UTC().Format("2006-01-02"),
		})
	}
	dataset := export.Dataset{
		Headers: []string{"Student ID", "Subject ID", "Title", "Type", "Value", "Date"},
		Rows:    rows,
	}
	return dataset, "Grades", nil
}

func (s *ExportService) buildAttendanceDataset(ctx context.Context, tenantID string, req ExportRequest) (export.Dataset, string, error) {
	if req.StudentID == "" {
		return export.Dataset{}, "", appErrors.Clone(appErrors.ErrValidation, "attendance export requires a student")
	}
	records, err := s.attendance.ListByStudent(ctx, tenantID, req.StudentID)
	if err != nil {
		return export.Dataset{}, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list attendance")
	}
	rows := make([]map[string]string, 0, len(records))
	for _, rec := range records {
		rows = append(rows, map[string]string{
			"Date":       rec.Date,
			"Period":     fmt.Sprintf("%d", rec.PeriodNumber),
			"Subject ID": rec.SubjectID,
			"Status":     string(rec.Status),
			"Teacher":    rec.TeacherName,
		})
	}
	dataset := export.Dataset{
		Headers: []string{"Date", "Period", "Subject ID", "Status", "Teacher"},
		Rows:    rows,
	}
	return dataset, "Attendance", nil
}

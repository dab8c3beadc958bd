package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/edunik/edunik-api/internal/models"
	appErrors "github.com/edunik/edunik-api/pkg/errors"
	"github.com/edunik/edunik-api/pkg/export"
	"github.com/edunik/edunik-api/pkg/jobs"
)

// ImportChunkSize bounds how many roster rows one background job
// processes. Uploads are split so a single failing chunk retries
// without replaying the whole file.
const ImportChunkSize = 40

// JobTypeUserImport labels roster import jobs on the queue.
const JobTypeUserImport = "user-import"

// Class naming formats a roster row may carry. GRADED names classes by
// grade number plus letter, CUSTOM by a free-form name.
const (
	ClassNamingGraded = "GRADED"
	ClassNamingCustom = "CUSTOM"
)

type xlsxParser interface {
	Parse(r io.Reader) (export.Dataset, error)
}

type userCreator interface {
	Create(ctx context.Context, tenantID string, req CreateUserRequest) (*CreatedUser, error)
}

type importClassLister interface {
	ListAll(ctx context.Context, tenantID string) ([]models.HomeroomClass, error)
}

type importEnqueuer interface {
	Enqueue(job jobs.Job) error
}

// ImportRow is one parsed roster line. A class is referenced either by
// id or by its naming columns; the naming columns are resolved against
// the school's classes when the row is processed.
type ImportRow struct {
	Line              int             `json:"line"`
	Role              models.UserRole `json:"role"`
	FirstName         string          `json:"firstName"`
	LastName          string          `json:"lastName"`
	PhoneNumber       string          `json:"phoneNumber"`
	Gender            string          `json:"gender"`
	ClassNamingFormat string          `json:"classNamingFormat"`
	GradeNumber       int             `json:"gradeNumber"`
	ClassLetter       string          `json:"classLetter"`
	CustomClassName   string          `json:"customClassName"`
	HomeroomClassID   string          `json:"homeroomClassId"`
}

// importChunk is the queued payload: one slice of rows of an upload.
type importChunk struct {
	ImportID string      `json:"importId"`
	Rows     []ImportRow `json:"rows"`
}

// ImportRowError records why one row was rejected.
type ImportRowError struct {
	Line    int    `json:"line"`
	Message string `json:"message"`
}

// ImportStatus is the progress of one upload.
type ImportStatus struct {
	ID        string           `json:"id"`
	Total     int              `json:"total"`
	Processed int              `json:"processed"`
	Created   int              `json:"created"`
	Errors    []ImportRowError `json:"errors,omitempty"`
	Done      bool             `json:"done"`
}

// ImportService ingests roster workbooks: parse, chunk, and hand the
// chunks to the background queue where each row becomes a provisioned
// user account. Rows fail independently; a bad line never aborts the
// upload.
type ImportService struct {
	parser      xlsxParser
	users       userCreator
	classes     importClassLister
	queue       importEnqueuer
	logger      *zap.Logger
	emailDomain string

	mu       sync.Mutex
	statuses map[string]*ImportStatus
}

// NewImportService creates a new import service. Roster files carry no
// email column; addresses are derived under emailDomain.
func NewImportService(parser xlsxParser, users userCreator, classes importClassLister, queue importEnqueuer, emailDomain string, logger *zap.Logger) *ImportService {
	if parser == nil {
		parser = export.NewXLSXExporter()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if emailDomain == "" {
		emailDomain = "edunik.bg"
	}
	return &ImportService{
		parser:      parser,
		users:       users,
		classes:     classes,
		queue:       queue,
		logger:      logger,
		emailDomain: emailDomain,
		statuses:    make(map[string]*ImportStatus),
	}
}

// Upload parses a workbook and enqueues its rows in chunks. It returns
// the import id used to poll progress.
func (s *ImportService) Upload(ctx context.Context, tenantID string, r io.Reader) (*ImportStatus, error) {
	data, err := s.parser.Parse(r)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "could not read workbook")
	}

	rows, rowErrs := s.mapRows(data)
	status := &ImportStatus{
		ID:     uuid.NewString(),
		Total:  len(rows) + len(rowErrs),
		Errors: rowErrs,
	}
	status.Processed = len(rowErrs)
	s.mu.Lock()
	s.statuses[status.ID] = status
	s.mu.Unlock()

	if len(rows) == 0 {
		s.finishIfDone(status.ID)
		return s.Status(status.ID)
	}

	for start := 0; start < len(rows); start += ImportChunkSize {
		end := start + ImportChunkSize
		if end > len(rows) {
			end = len(rows)
		}
		payload, err := json.Marshal(importChunk{ImportID: status.ID, Rows: rows[start:end]})
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode import chunk")
		}
		if err := s.queue.Enqueue(jobs.Job{
			ID:       uuid.NewString(),
			Type:     JobTypeUserImport,
			TenantID: tenantID,
			Payload:  payload,
		}); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue import chunk")
		}
	}
	return s.Status(status.ID)
}

// Status returns the progress of an upload.
func (s *ImportService) Status(importID string) (*ImportStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	status, ok := s.statuses[importID]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "import not found")
	}
	copied := *status
	copied.Errors = append([]ImportRowError(nil), status.Errors...)
	return &copied, nil
}

// HandleJob is the queue handler for import chunks.
func (s *ImportService) HandleJob(ctx context.Context, job jobs.Job) error {
	if job.Type != JobTypeUserImport {
		return fmt.Errorf("unexpected job type %s", job.Type)
	}
	var chunk importChunk
	if err := json.Unmarshal(job.Payload, &chunk); err != nil {
		return fmt.Errorf("decode import chunk: %w", err)
	}

	var (
		classes       []models.HomeroomClass
		classesLoaded bool
	)
	for _, row := range chunk.Rows {
		classID := row.HomeroomClassID
		if classID == "" && s.classes != nil && rowNamesClass(row) {
			if !classesLoaded {
				listed, err := s.classes.ListAll(ctx, job.TenantID)
				if err != nil {
					return fmt.Errorf("list classes for import: %w", err)
				}
				classes = listed
				classesLoaded = true
			}
			classID = resolveClassID(classes, row)
			if classID == "" {
				err := appErrors.Clone(appErrors.ErrNotFound, "no class matches the naming columns")
				s.recordRow(chunk.ImportID, row.Line, err)
				s.logger.Warn("import row rejected",
					zap.String("import_id", chunk.ImportID),
					zap.Int("line", row.Line),
					zap.Error(err))
				continue
			}
		}

		req := CreateUserRequest{
			Role:            row.Role,
			FirstName:       row.FirstName,
			LastName:        row.LastName,
			Email:           s.syntheticEmail(row.FirstName, row.LastName),
			PhoneNumber:     row.PhoneNumber,
			Gender:          row.Gender,
			HomeroomClassID: classID,
		}
		_, err := s.users.Create(ctx, job.TenantID, req)
		s.recordRow(chunk.ImportID, row.Line, err)
		if err != nil {
			s.logger.Warn("import row rejected",
				zap.String("import_id", chunk.ImportID),
				zap.Int("line", row.Line),
				zap.Error(err))
		}
	}
	s.finishIfDone(chunk.ImportID)
	return nil
}

// rowNamesClass reports whether the row references a class through the
// naming columns instead of an id.
func rowNamesClass(row ImportRow) bool {
	return row.CustomClassName != "" || (row.GradeNumber > 0 && row.ClassLetter != "")
}

// resolveClassID matches a row's naming columns against the school's
// classes. It returns "" when nothing matches.
func resolveClassID(classes []models.HomeroomClass, row ImportRow) string {
	for i := range classes {
		class := &classes[i]
		if row.ClassNamingFormat == ClassNamingCustom || row.CustomClassName != "" {
			if row.CustomClassName != "" && strings.EqualFold(class.CustomName, row.CustomClassName) {
				return class.ID
			}
			continue
		}
		if class.GradeNumber == row.GradeNumber && strings.EqualFold(class.ClassLetter, row.ClassLetter) {
			return class.ID
		}
	}
	return ""
}

func (s *ImportService) recordRow(importID string, line int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	status, ok := s.statuses[importID]
	if !ok {
		return
	}
	status.Processed++
	if err != nil {
		status.Errors = append(status.Errors, ImportRowError{Line: line, Message: err.Error()})
	} else {
		status.Created++
	}
}

func (s *ImportService) finishIfDone(importID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if status, ok := s.statuses[importID]; ok && status.Processed >= status.Total {
		status.Done = true
	}
}

// mapRows converts the parsed dataset into typed rows, collecting
// per-line errors for rows that cannot even be attempted.
func (s *ImportService) mapRows(data export.Dataset) ([]ImportRow, []ImportRowError) {
	var (
		rows []ImportRow
		errs []ImportRowError
	)
	for i, raw := range data.Rows {
		line := i + 2 // header occupies row 1
		role := models.UserRole(strings.ToUpper(strings.TrimSpace(raw["role"])))
		row := ImportRow{
			Line:              line,
			Role:              role,
			FirstName:         strings.TrimSpace(raw["firstName"]),
			LastName:          strings.TrimSpace(raw["lastName"]),
			PhoneNumber:       strings.TrimSpace(raw["phoneNumber"]),
			Gender:            strings.TrimSpace(raw["gender"]),
			ClassNamingFormat: strings.ToUpper(strings.TrimSpace(raw["classNamingFormat"])),
			ClassLetter:       strings.TrimSpace(raw["classLetter"]),
			CustomClassName:   strings.TrimSpace(raw["customClassName"]),
			HomeroomClassID:   strings.TrimSpace(raw["homeroomClassId"]),
		}
		var gradeErr error
		if grade := strings.TrimSpace(raw["gradeNumber"]); grade != "" {
			row.GradeNumber, gradeErr = strconv.Atoi(grade)
		}
		switch {
		case !role.Valid():
			errs = append(errs, ImportRowError{Line: line, Message: fmt.Sprintf("unknown role %q", raw["role"])})
		case row.FirstName == "" || row.LastName == "":
			errs = append(errs, ImportRowError{Line: line, Message: "first and last name are required"})
		case gradeErr != nil:
			errs = append(errs, ImportRowError{Line: line, Message: fmt.Sprintf("invalid gradeNumber %q", raw["gradeNumber"])})
		case row.ClassNamingFormat != "" && row.ClassNamingFormat != ClassNamingGraded && row.ClassNamingFormat != ClassNamingCustom:
			errs = append(errs, ImportRowError{Line: line, Message: fmt.Sprintf("unknown classNamingFormat %q", raw["classNamingFormat"])})
		case role == models.RoleStudent && row.HomeroomClassID == "" && !rowNamesClass(row):
			errs = append(errs, ImportRowError{Line: line, Message: "student rows must reference a class"})
		default:
			rows = append(rows, row)
		}
	}
	return rows, errs
}

// syntheticEmail derives each row's address: first-name initial plus
// transliterated last name and a numeric suffix to dodge collisions
// inside the same upload.
func (s *ImportService) syntheticEmail(firstName, lastName string) string {
	initial := transliterate(firstName)
	if len(initial) > 1 {
		initial = initial[:1]
	}
	local := strings.ToLower(initial + transliterate(lastName))
	if local == "" {
		local = "user"
	}
	return fmt.Sprintf("%s%04d@%s", local, rand.Intn(10000), s.emailDomain)
}

var cyrillicToLatin = map[rune]string{
	'а': "a", 'б': "b", 'в': "v", 'г': "g", 'д': "d", 'е': "e",
	'ж': "zh", 'з': "z", 'и': "i", 'й': "y", 'к': "k", 'л': "l",
	'м': "m", 'н': "n", 'о': "o", 'п': "p", 'р': "r", 'с': "s",
	'т': "t", 'у': "u", 'ф': "f", 'х': "h", 'ц': "ts", 'ч': "ch",
	'ш': "sh", 'щ': "sht", 'ъ': "a", 'ь': "y", 'ю': "yu", 'я': "ya",
}

// transliterate maps Cyrillic names to their Latin spelling per the
// official Bulgarian romanization, dropping anything unmapped that is
// not already ASCII letters or digits.
func transliterate(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if mapped, ok := cyrillicToLatin[r]; ok {
			b.WriteString(mapped)
			continue
		}
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

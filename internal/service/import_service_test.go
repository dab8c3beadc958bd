package service

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/edunik/edunik-api/internal/models"
	"github.com/edunik/edunik-api/pkg/export"
	"github.com/edunik/edunik-api/pkg/jobs"
)

type stubParser struct {
	data export.Dataset
}

func (p *stubParser) Parse(io.Reader) (export.Dataset, error) {
	return p.data, nil
}

type captureQueue struct {
	jobs []jobs.Job
}

func (q *captureQueue) Enqueue(job jobs.Job) error {
	q.jobs = append(q.jobs, job)
	return nil
}

func rosterRow(role, first, last, classID string) map[string]string {
	return map[string]string{
		"role": role, "firstName": first, "lastName": last,
		"phoneNumber": "", "gender": "", "homeroomClassId": classID,
	}
}

func rosterData(rows ...map[string]string) export.Dataset {
	return export.Dataset{Headers: rosterColumns, Rows: rows}
}

func TestImportUploadChunksRows(t *testing.T) {
	rows := make([]map[string]string, 0, 95)
	for i := 0; i < 95; i++ {
		rows = append(rows, rosterRow("STUDENT", "Ivan", "Petrov", "c1"))
	}
	parser := &stubParser{data: rosterData(rows...)}
	queue := &captureQueue{}
	svc := NewImportService(parser, &mockUserCreator{}, nil, queue, "edunik.bg", zap.NewNop())

	status, err := svc.Upload(context.Background(), "school-1", strings.NewReader("ignored"))
	require.NoError(t, err)
	assert.Equal(t, 95, status.Total)
	// 95 rows split at 40 per chunk -> 40 + 40 + 15.
	require.Len(t, queue.jobs, 3)
	for _, job := range queue.jobs {
		assert.Equal(t, JobTypeUserImport, job.Type)
		assert.Equal(t, "school-1", job.TenantID)
	}
}

type mockUserCreator struct {
	created []CreateUserRequest
	fail    map[string]bool
}

func (m *mockUserCreator) Create(ctx context.Context, tenantID string, req CreateUserRequest) (*CreatedUser, error) {
	if m.fail[req.LastName] {
		return nil, assert.AnError
	}
	m.created = append(m.created, req)
	return &CreatedUser{User: &models.User{ID: "u", Email: req.Email}}, nil
}

func TestImportRowsFailIndependently(t *testing.T) {
	parser := &stubParser{data: rosterData(
		rosterRow("STUDENT", "Ivan", "Petrov", "c1"),
		rosterRow("STUDENT", "Maria", "Ivanova", "c1"),
		rosterRow("STUDENT", "Petar", "Georgiev", "c1"),
	)}
	queue := &captureQueue{}
	creator := &mockUserCreator{fail: map[string]bool{"Ivanova": true}}
	svc := NewImportService(parser, creator, nil, queue, "edunik.bg", zap.NewNop())

	status, err := svc.Upload(context.Background(), "school-1", strings.NewReader("ignored"))
	require.NoError(t, err)
	require.Len(t, queue.jobs, 1)

	require.NoError(t, svc.HandleJob(context.Background(), queue.jobs[0]))

	final, err := svc.Status(status.ID)
	require.NoError(t, err)
	assert.True(t, final.Done)
	assert.Equal(t, 2, final.Created)
	require.Len(t, final.Errors, 1)
	assert.Equal(t, 3, final.Errors[0].Line)
	assert.Len(t, creator.created, 2)
}

func TestImportRejectsMalformedRowsUpFront(t *testing.T) {
	badGrade := rosterRow("TEACHER", "Ana", "Dimitrova", "")
	badGrade["gradeNumber"] = "seven"
	badFormat := rosterRow("TEACHER", "Elena", "Koleva", "")
	badFormat["classNamingFormat"] = "FANCY"
	parser := &stubParser{data: rosterData(
		rosterRow("WIZARD", "Ivan", "Petrov", ""),
		rosterRow("STUDENT", "", "Petrov", "c1"),
		badGrade,
		badFormat,
		// Students must reference a class by id or naming columns.
		rosterRow("STUDENT", "Georgi", "Iliev", ""),
	)}
	svc := NewImportService(parser, &mockUserCreator{}, nil, &captureQueue{}, "edunik.bg", zap.NewNop())

	status, err := svc.Upload(context.Background(), "school-1", strings.NewReader("ignored"))
	require.NoError(t, err)
	assert.True(t, status.Done)
	assert.Len(t, status.Errors, 5)
	assert.Zero(t, status.Created)
}

func TestImportReadsGenderAndClassColumns(t *testing.T) {
	row := rosterRow("STUDENT", "Maria", "Ivanova", "c9")
	row["gender"] = "FEMALE"
	row["phoneNumber"] = "+359888123456"
	parser := &stubParser{data: rosterData(row)}
	queue := &captureQueue{}
	creator := &mockUserCreator{}
	svc := NewImportService(parser, creator, nil, queue, "edunik.bg", zap.NewNop())

	_, err := svc.Upload(context.Background(), "school-1", strings.NewReader("ignored"))
	require.NoError(t, err)
	require.Len(t, queue.jobs, 1)
	require.NoError(t, svc.HandleJob(context.Background(), queue.jobs[0]))

	require.Len(t, creator.created, 1)
	assert.Equal(t, "FEMALE", creator.created[0].Gender)
	assert.Equal(t, "+359888123456", creator.created[0].PhoneNumber)
	assert.Equal(t, "c9", creator.created[0].HomeroomClassID)
}

func TestImportResolvesClassFromNamingColumns(t *testing.T) {
	graded := rosterRow("STUDENT", "Ivan", "Petrov", "")
	graded["classNamingFormat"] = ClassNamingGraded
	graded["gradeNumber"] = "7"
	graded["classLetter"] = "A"
	custom := rosterRow("STUDENT", "Maria", "Ivanova", "")
	custom["classNamingFormat"] = ClassNamingCustom
	custom["customClassName"] = "Robotics"
	unmatched := rosterRow("STUDENT", "Petar", "Georgiev", "")
	unmatched["classNamingFormat"] = ClassNamingGraded
	unmatched["gradeNumber"] = "9"
	unmatched["classLetter"] = "Z"

	parser := &stubParser{data: rosterData(graded, custom, unmatched)}
	classes := &stubClassLister{classes: []models.HomeroomClass{
		{ID: "c1", ClassName: "7A", GradeNumber: 7, ClassLetter: "A"},
		{ID: "c2", ClassName: "Robotics", CustomName: "Robotics"},
	}}
	queue := &captureQueue{}
	creator := &mockUserCreator{}
	svc := NewImportService(parser, creator, classes, queue, "edunik.bg", zap.NewNop())

	status, err := svc.Upload(context.Background(), "school-1", strings.NewReader("ignored"))
	require.NoError(t, err)
	require.Len(t, queue.jobs, 1)
	require.NoError(t, svc.HandleJob(context.Background(), queue.jobs[0]))

	require.Len(t, creator.created, 2)
	assert.Equal(t, "c1", creator.created[0].HomeroomClassID)
	assert.Equal(t, "c2", creator.created[1].HomeroomClassID)

	final, err := svc.Status(status.ID)
	require.NoError(t, err)
	assert.True(t, final.Done)
	require.Len(t, final.Errors, 1)
	assert.Equal(t, 4, final.Errors[0].Line)
}

func TestImportDerivesSyntheticEmails(t *testing.T) {
	parser := &stubParser{data: rosterData(
		rosterRow("STUDENT", "Иван", "Петров", "c1"),
	)}
	queue := &captureQueue{}
	creator := &mockUserCreator{}
	svc := NewImportService(parser, creator, nil, queue, "edunik.bg", zap.NewNop())

	_, err := svc.Upload(context.Background(), "school-1", strings.NewReader("ignored"))
	require.NoError(t, err)
	require.Len(t, queue.jobs, 1)
	require.NoError(t, svc.HandleJob(context.Background(), queue.jobs[0]))

	require.Len(t, creator.created, 1)
	email := creator.created[0].Email
	assert.True(t, strings.HasPrefix(email, "ipetrov"), "got %q", email)
	assert.True(t, strings.HasSuffix(email, "@edunik.bg"), "got %q", email)
}

func TestTransliterate(t *testing.T) {
	assert.Equal(t, "petrov", transliterate("Петров"))
	assert.Equal(t, "zhivkova", transliterate("Живкова"))
	assert.Equal(t, "shtereva", transliterate("Щерева"))
	assert.Equal(t, "smith", transliterate("Smith"))
	assert.Equal(t, "oneill", transliterate("O'Neill"))
}

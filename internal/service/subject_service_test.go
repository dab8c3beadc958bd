package service

import (
	"context"
	"errors"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/edunik/edunik-api/internal/models"
	"github.com/edunik/edunik-api/pkg/docstore"
	appErrors "github.com/edunik/edunik-api/pkg/errors"
)

type mockSubjectRepo struct {
	subjects map[string]*models.Subject
}

func (m *mockSubjectRepo) List(ctx context.Context, tenantID string, filter models.SubjectFilter) ([]models.Subject, int, error) {
	out := make([]models.Subject, 0, len(m.subjects))
	for _, s := range m.subjects {
		out = append(out, *s)
	}
	return out, len(out), nil
}

func (m *mockSubjectRepo) FindByID(ctx context.Context, tenantID, id string) (*models.Subject, error) {
	if s, ok := m.subjects[id]; ok {
		copied := *s
		return &copied, nil
	}
	return nil, docstore.ErrNotFound
}

func (m *mockSubjectRepo) ExistsByName(ctx context.Context, tenantID, name, excludeID string) (bool, error) {
	for _, s := range m.subjects {
		if s.Name == name && s.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockSubjectRepo) Save(ctx context.Context, tenantID string, subject *models.Subject) error {
	if m.subjects == nil {
		m.subjects = make(map[string]*models.Subject)
	}
	copied := *subject
	m.subjects[subject.ID] = &copied
	return nil
}

func (m *mockSubjectRepo) Delete(ctx context.Context, tenantID, id string) error {
	delete(m.subjects, id)
	return nil
}

type mockSubjectSyncer struct {
	calls []syncCall
	err   error
}

type syncCall struct {
	subjectID string
	old       []string
	new       []string
}

func (m *mockSubjectSyncer) SyncSubjectTeachers(ctx context.Context, tenantID, subjectID string, oldTeacherIDs, newTeacherIDs []string) error {
	m.calls = append(m.calls, syncCall{subjectID: subjectID, old: oldTeacherIDs, new: newTeacherIDs})
	return m.err
}

func TestSubjectServiceCreateRunsTeacherSync(t *testing.T) {
	repo := &mockSubjectRepo{}
	syncer := &mockSubjectSyncer{}
	svc := NewSubjectService(repo, syncer, validator.New(), zap.NewNop())

	subject, err := svc.Create(context.Background(), "school-1", CreateSubjectRequest{
		Name:       "Mathematics",
		TeacherIDs: []string{"t1", "t2"},
	})
	require.NoError(t, err)
	require.Len(t, syncer.calls, 1)
	assert.Equal(t, subject.ID, syncer.calls[0].subjectID)
	assert.Nil(t, syncer.calls[0].old)
	assert.Equal(t, []string{"t1", "t2"}, syncer.calls[0].new)
}

func TestSubjectServiceCreateRejectsDuplicateName(t *testing.T) {
	repo := &mockSubjectRepo{subjects: map[string]*models.Subject{
		"s1": {ID: "s1", Name: "Mathematics"},
	}}
	svc := NewSubjectService(repo, &mockSubjectSyncer{}, validator.New(), zap.NewNop())

	_, err := svc.Create(context.Background(), "school-1", CreateSubjectRequest{Name: "Mathematics"})
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrNameTaken.Code, appErr.Code)
}

func TestSubjectServiceCreateSurfacesIncompleteSync(t *testing.T) {
	repo := &mockSubjectRepo{}
	syncer := &mockSubjectSyncer{err: errors.New("teacher ghost missing")}
	svc := NewSubjectService(repo, syncer, validator.New(), zap.NewNop())

	_, err := svc.Create(context.Background(), "school-1", CreateSubjectRequest{
		Name:       "Biology",
		TeacherIDs: []string{"ghost"},
	})
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrSyncIncomplete.Code, appErr.Code)
	// The subject itself is persisted; only the mirror write failed.
	assert.Len(t, repo.subjects, 1)
}

func TestSubjectServiceUpdateSyncsTeacherDiff(t *testing.T) {
	repo := &mockSubjectRepo{subjects: map[string]*models.Subject{
		"s1": {ID: "s1", Name: "Mathematics", TeacherIDs: []string{"t1"}},
	}}
	syncer := &mockSubjectSyncer{}
	svc := NewSubjectService(repo, syncer, validator.New(), zap.NewNop())

	_, err := svc.Update(context.Background(), "school-1", "s1", UpdateSubjectRequest{
		Name:       "Mathematics",
		TeacherIDs: []string{"t2"},
	})
	require.NoError(t, err)
	require.Len(t, syncer.calls, 1)
	assert.Equal(t, []string{"t1"}, syncer.calls[0].old)
	assert.Equal(t, []string{"t2"}, syncer.calls[0].new)
}

func TestSubjectServiceDeleteStripsTeachers(t *testing.T) {
	repo := &mockSubjectRepo{subjects: map[string]*models.Subject{
		"s1": {ID: "s1", Name: "Mathematics", TeacherIDs: []string{"t1", "t2"}},
	}}
	syncer := &mockSubjectSyncer{}
	svc := NewSubjectService(repo, syncer, validator.New(), zap.NewNop())

	require.NoError(t, svc.Delete(context.Background(), "school-1", "s1"))
	assert.Empty(t, repo.subjects)
	require.Len(t, syncer.calls, 1)
	assert.Equal(t, []string{"t1", "t2"}, syncer.calls[0].old)
	assert.Nil(t, syncer.calls[0].new)
}

func TestSubjectServiceGetNotFound(t *testing.T) {
	svc := NewSubjectService(&mockSubjectRepo{}, &mockSubjectSyncer{}, validator.New(), zap.NewNop())

	_, err := svc.Get(context.Background(), "school-1", "missing")
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

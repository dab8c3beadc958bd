package sync

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/edunik/edunik-api/internal/models"
	"github.com/edunik/edunik-api/internal/repository"
	"github.com/edunik/edunik-api/pkg/docstore"
)

const testSchool = "school-1"

type fixture struct {
	engine   *Engine
	store    *docstore.Memory
	users    *repository.UserRepository
	classes  *repository.ClassRepository
	subjects *repository.SubjectRepository
	audit    *repository.AuditRepository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := docstore.NewMemory()
	f := &fixture{
		store:    store,
		users:    repository.NewUserRepository(store),
		classes:  repository.NewClassRepository(store),
		subjects: repository.NewSubjectRepository(store),
		audit:    repository.NewAuditRepository(store),
	}
	f.engine = NewEngine(store, f.users, f.classes, f.subjects, f.audit, nil, zap.NewNop())
	return f
}

func (f *fixture) seedUser(t *testing.T, user *models.User) {
	t.Helper()
	require.NoError(t, f.users.Save(context.Background(), testSchool, user))
}

func (f *fixture) seedClass(t *testing.T, class *models.HomeroomClass) {
	t.Helper()
	require.NoError(t, f.classes.Save(context.Background(), testSchool, class))
}

func (f *fixture) seedSubject(t *testing.T, subject *models.Subject) {
	t.Helper()
	require.NoError(t, f.subjects.Save(context.Background(), testSchool, subject))
}

func TestDiff(t *testing.T) {
	added, removed := diff([]string{"a", "b", "c"}, []string{"b", "c", "d"})
	require.Equal(t, []string{"d"}, added)
	require.Equal(t, []string{"a"}, removed)

	added, removed = diff(nil, []string{"x"})
	require.Equal(t, []string{"x"}, added)
	require.Empty(t, removed)

	added, removed = diff([]string{"x"}, []string{"x"})
	require.Empty(t, added)
	require.Empty(t, removed)
}

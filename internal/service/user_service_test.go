package service

import (
	"context"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/edunik/edunik-api/internal/models"
	"github.com/edunik/edunik-api/pkg/docstore"
	appErrors "github.com/edunik/edunik-api/pkg/errors"
	"github.com/edunik/edunik-api/pkg/identity"
)

type mockUserRepo struct {
	users map[string]*models.User
}

func (m *mockUserRepo) List(ctx context.Context, tenantID string, filter models.UserFilter) ([]models.User, int, error) {
	out := make([]models.User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, *u)
	}
	return out, len(out), nil
}

func (m *mockUserRepo) FindByID(ctx context.Context, tenantID, id string) (*models.User, error) {
	if u, ok := m.users[id]; ok {
		copied := *u
		return &copied, nil
	}
	return nil, docstore.ErrNotFound
}

func (m *mockUserRepo) ExistsByEmail(ctx context.Context, tenantID, email, excludeID string) (bool, error) {
	for _, u := range m.users {
		if u.Email == email && u.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockUserRepo) Save(ctx context.Context, tenantID string, user *models.User) error {
	if m.users == nil {
		m.users = make(map[string]*models.User)
	}
	copied := *user
	m.users[user.ID] = &copied
	return nil
}

func (m *mockUserRepo) Delete(ctx context.Context, tenantID, id string) error {
	delete(m.users, id)
	return nil
}

type mockParentLinkRepo struct {
	requests map[string]*models.ParentLinkRequest
}

func (m *mockParentLinkRepo) FindByID(ctx context.Context, tenantID, id string) (*models.ParentLinkRequest, error) {
	if r, ok := m.requests[id]; ok {
		copied := *r
		return &copied, nil
	}
	return nil, docstore.ErrNotFound
}

func (m *mockParentLinkRepo) ListPending(ctx context.Context, tenantID string) ([]models.ParentLinkRequest, error) {
	var out []models.ParentLinkRequest
	for _, r := range m.requests {
		if r.Status == models.ParentLinkPending {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (m *mockParentLinkRepo) Save(ctx context.Context, tenantID string, req *models.ParentLinkRequest) error {
	if m.requests == nil {
		m.requests = make(map[string]*models.ParentLinkRequest)
	}
	copied := *req
	m.requests[req.ID] = &copied
	return nil
}

type mockSyncer struct {
	moves      []string
	homerooms  []string
	cascades   []string
	cascadeErr error
}

func (m *mockSyncer) MoveStudent(ctx context.Context, tenantID, studentID, oldClassID, newClassID string) error {
	m.moves = append(m.moves, studentID+":"+oldClassID+"->"+newClassID)
	return nil
}

func (m *mockSyncer) ReassignHomeroom(ctx context.Context, tenantID, teacherID, oldClassID, newClassID string) error {
	m.homerooms = append(m.homerooms, teacherID+":"+oldClassID+"->"+newClassID)
	return nil
}

func (m *mockSyncer) DeleteTeacher(ctx context.Context, tenantID, actorID string, teacher *models.User) error {
	m.cascades = append(m.cascades, "teacher:"+teacher.ID)
	return m.cascadeErr
}

func (m *mockSyncer) DeleteStudent(ctx context.Context, tenantID, actorID string, student *models.User) error {
	m.cascades = append(m.cascades, "student:"+student.ID)
	return m.cascadeErr
}

func (m *mockSyncer) DeleteParent(ctx context.Context, tenantID, actorID string, parent *models.User) error {
	m.cascades = append(m.cascades, "parent:"+parent.ID)
	return m.cascadeErr
}

type mockProvisioner struct {
	provisioned []identity.ProvisionRequest
	deactivated []string
	nextUserID  string
	password    string
}

func (m *mockProvisioner) Provision(ctx context.Context, req identity.ProvisionRequest) (*identity.Account, error) {
	m.provisioned = append(m.provisioned, req)
	password := req.Password
	if password == "" {
		password = m.password
	}
	return &identity.Account{
		UserID: m.nextUserID,
		AccountDetails: identity.AccountDetails{
			Email:    req.Email,
			Password: password,
		},
	}, nil
}

func (m *mockProvisioner) Deactivate(ctx context.Context, userID string) error {
	m.deactivated = append(m.deactivated, userID)
	return nil
}

func newUserFixture() (*UserService, *mockUserRepo, *mockParentLinkRepo, *mockSyncer, *mockProvisioner) {
	repo := &mockUserRepo{}
	links := &mockParentLinkRepo{}
	syncer := &mockSyncer{}
	accounts := &mockProvisioner{nextUserID: "uid-1", password: "generated-pass"}
	svc := NewUserService(repo, links, syncer, accounts, validator.New(), zap.NewNop())
	return svc, repo, links, syncer, accounts
}

func TestUserServiceCreateProvisionsAccount(t *testing.T) {
	svc, repo, _, syncer, accounts := newUserFixture()

	created, err := svc.Create(context.Background(), "school-1", CreateUserRequest{
		Role:            models.RoleStudent,
		FirstName:       "Ivan",
		LastName:        "Petrov",
		Email:           "ivan@edunik.bg",
		HomeroomClassID: "c1",
	})
	require.NoError(t, err)
	require.Len(t, accounts.provisioned, 1)
	assert.Equal(t, "school-1", accounts.provisioned[0].SchoolID)

	// The document is stored under the identity service's user id with
	// a bcrypt hash of the issued password.
	stored, ok := repo.users["uid-1"]
	require.True(t, ok)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("generated-pass")))
	assert.Equal(t, "generated-pass", created.Credentials.Password)

	// Enrolment ran through the roster sync.
	require.Len(t, syncer.moves, 1)
	assert.Equal(t, "uid-1:->c1", syncer.moves[0])
}

func TestUserServiceCreateRejectsTakenEmail(t *testing.T) {
	svc, repo, _, _, accounts := newUserFixture()
	repo.users = map[string]*models.User{
		"u1": {ID: "u1", Email: "ivan@edunik.bg"},
	}

	_, err := svc.Create(context.Background(), "school-1", CreateUserRequest{
		Role:      models.RoleStudent,
		FirstName: "Ivan",
		LastName:  "Petrov",
		Email:     "ivan@edunik.bg",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrEmailTaken.Code, errCode(t, err))
	assert.Empty(t, accounts.provisioned)
}

func TestUserServiceUpdateMovesStudentBetweenClasses(t *testing.T) {
	svc, repo, _, syncer, _ := newUserFixture()
	repo.users = map[string]*models.User{
		"s1": {ID: "s1", Role: models.RoleStudent, FirstName: "Ivan", LastName: "Petrov", Email: "ivan@edunik.bg", HomeroomClassID: "c1"},
	}

	_, err := svc.Update(context.Background(), "school-1", "s1", UpdateUserRequest{
		FirstName:       "Ivan",
		LastName:        "Petrov",
		Email:           "ivan@edunik.bg",
		HomeroomClassID: "c2",
	})
	require.NoError(t, err)
	require.Len(t, syncer.moves, 1)
	assert.Equal(t, "s1:c1->c2", syncer.moves[0])
	assert.Empty(t, syncer.homerooms)
}

func TestUserServiceUpdateReassignsTeacherHomeroom(t *testing.T) {
	svc, repo, _, syncer, _ := newUserFixture()
	repo.users = map[string]*models.User{
		"t1": {ID: "t1", Role: models.RoleTeacher, FirstName: "Maria", LastName: "Ivanova", Email: "maria@edunik.bg", HomeroomClassID: "c1"},
	}

	_, err := svc.Update(context.Background(), "school-1", "t1", UpdateUserRequest{
		FirstName:       "Maria",
		LastName:        "Ivanova",
		Email:           "maria@edunik.bg",
		HomeroomClassID: "c2",
	})
	require.NoError(t, err)
	require.Len(t, syncer.homerooms, 1)
	assert.Equal(t, "t1:c1->c2", syncer.homerooms[0])
	assert.Empty(t, syncer.moves)
}

func TestUserServiceUpdateSameClassSkipsSync(t *testing.T) {
	svc, repo, _, syncer, _ := newUserFixture()
	repo.users = map[string]*models.User{
		"s1": {ID: "s1", Role: models.RoleStudent, FirstName: "Ivan", LastName: "Petrov", Email: "ivan@edunik.bg", HomeroomClassID: "c1"},
	}

	_, err := svc.Update(context.Background(), "school-1", "s1", UpdateUserRequest{
		FirstName:       "Ivan",
		LastName:        "Petrov",
		Email:           "ivan@edunik.bg",
		HomeroomClassID: "c1",
	})
	require.NoError(t, err)
	assert.Empty(t, syncer.moves)
}

func TestUserServiceDeleteDispatchesByRole(t *testing.T) {
	svc, repo, _, syncer, accounts := newUserFixture()
	repo.users = map[string]*models.User{
		"t1": {ID: "t1", Role: models.RoleTeacher},
		"s1": {ID: "s1", Role: models.RoleStudent},
		"p1": {ID: "p1", Role: models.RoleParent},
		"a1": {ID: "a1", Role: models.RoleAdmin},
	}

	require.NoError(t, svc.Delete(context.Background(), "school-1", "admin", "t1"))
	require.NoError(t, svc.Delete(context.Background(), "school-1", "admin", "s1"))
	require.NoError(t, svc.Delete(context.Background(), "school-1", "admin", "p1"))
	require.NoError(t, svc.Delete(context.Background(), "school-1", "admin", "a1"))

	assert.Equal(t, []string{"teacher:t1", "student:s1", "parent:p1"}, syncer.cascades)
	// Admins bypass the cascade and are removed directly.
	_, ok := repo.users["a1"]
	assert.False(t, ok)
	// Every deletion deactivates the identity account.
	assert.ElementsMatch(t, []string{"t1", "s1", "p1", "a1"}, accounts.deactivated)
}

func TestUserServiceApproveParentLinkWritesBothSides(t *testing.T) {
	svc, repo, links, _, _ := newUserFixture()
	repo.users = map[string]*models.User{
		"p1": {ID: "p1", Role: models.RoleParent},
		"s1": {ID: "s1", Role: models.RoleStudent},
	}
	links.requests = map[string]*models.ParentLinkRequest{
		"r1": {ID: "r1", ParentID: "p1", ChildID: "s1", Status: models.ParentLinkPending},
	}

	require.NoError(t, svc.ResolveParentLink(context.Background(), "school-1", "r1", true))

	assert.Equal(t, []string{"s1"}, repo.users["p1"].ChildrenIDs)
	assert.Equal(t, []string{"p1"}, repo.users["s1"].ParentIDs)
	assert.Equal(t, models.ParentLinkApproved, links.requests["r1"].Status)

	// Resolving twice is a conflict.
	err := svc.ResolveParentLink(context.Background(), "school-1", "r1", true)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, errCode(t, err))
}

func TestUserServiceRejectParentLinkLeavesUsersUntouched(t *testing.T) {
	svc, repo, links, _, _ := newUserFixture()
	repo.users = map[string]*models.User{
		"p1": {ID: "p1", Role: models.RoleParent},
		"s1": {ID: "s1", Role: models.RoleStudent},
	}
	links.requests = map[string]*models.ParentLinkRequest{
		"r1": {ID: "r1", ParentID: "p1", ChildID: "s1", Status: models.ParentLinkPending},
	}

	require.NoError(t, svc.ResolveParentLink(context.Background(), "school-1", "r1", false))
	assert.Empty(t, repo.users["p1"].ChildrenIDs)
	assert.Empty(t, repo.users["s1"].ParentIDs)
	assert.Equal(t, models.ParentLinkRejected, links.requests["r1"].Status)
}

func TestUserServiceRequestParentLinkValidatesRoles(t *testing.T) {
	svc, repo, _, _, _ := newUserFixture()
	repo.users = map[string]*models.User{
		"p1": {ID: "p1", Role: models.RoleParent},
		"t1": {ID: "t1", Role: models.RoleTeacher},
	}

	_, err := svc.RequestParentLink(context.Background(), "school-1", "p1", "t1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, errCode(t, err))
}

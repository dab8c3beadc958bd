package service

import (
	"context"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/edunik/edunik-api/internal/models"
	"github.com/edunik/edunik-api/pkg/docstore"
	appErrors "github.com/edunik/edunik-api/pkg/errors"
)

type mockAuthRepo struct {
	users map[string]*models.User // keyed by email
}

func (m *mockAuthRepo) FindByEmail(ctx context.Context, tenantID, email string) (*models.User, error) {
	if u, ok := m.users[email]; ok {
		copied := *u
		return &copied, nil
	}
	return nil, docstore.ErrNotFound
}

func newAuthFixture(t *testing.T) *AuthService {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("correct horse"), bcrypt.MinCost)
	require.NoError(t, err)
	repo := &mockAuthRepo{users: map[string]*models.User{
		"maria@edunik.bg": {
			ID: "t1", Role: models.RoleTeacher,
			FirstName: "Maria", LastName: "Ivanova",
			Email: "maria@edunik.bg", PasswordHash: string(hash),
		},
	}}
	return NewAuthService(repo, validator.New(), zap.NewNop(), AuthConfig{
		Secret:     "test-secret",
		Expiration: time.Hour,
		Issuer:     "edunik-api",
	})
}

func TestAuthLoginIssuesToken(t *testing.T) {
	svc := newAuthFixture(t)

	resp, err := svc.Login(context.Background(), models.LoginRequest{
		SchoolID: "school-1",
		Email:    "maria@edunik.bg",
		Password: "correct horse",
	})
	require.NoError(t, err)
	require.NotEmpty(t, resp.AccessToken)

	claims, err := svc.ParseToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "t1", claims.UserID)
	assert.Equal(t, models.RoleTeacher, claims.Role)
	assert.Equal(t, "school-1", claims.SchoolID)
}

func TestAuthLoginWrongPassword(t *testing.T) {
	svc := newAuthFixture(t)

	_, err := svc.Login(context.Background(), models.LoginRequest{
		SchoolID: "school-1",
		Email:    "maria@edunik.bg",
		Password: "wrong",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, errCode(t, err))
}

func TestAuthLoginUnknownEmailSameError(t *testing.T) {
	svc := newAuthFixture(t)

	_, err := svc.Login(context.Background(), models.LoginRequest{
		SchoolID: "school-1",
		Email:    "ghost@edunik.bg",
		Password: "whatever",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, errCode(t, err))
}

func TestAuthParseTokenRejectsTampering(t *testing.T) {
	svc := newAuthFixture(t)
	resp, err := svc.Login(context.Background(), models.LoginRequest{
		SchoolID: "school-1",
		Email:    "maria@edunik.bg",
		Password: "correct horse",
	})
	require.NoError(t, err)

	_, err = svc.ParseToken(resp.AccessToken + "x")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, errCode(t, err))
}

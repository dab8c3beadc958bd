package service

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/edunik/edunik-api/internal/models"
	"github.com/edunik/edunik-api/pkg/docstore"
	appErrors "github.com/edunik/edunik-api/pkg/errors"
	"github.com/edunik/edunik-api/pkg/identity"
)

type userRepository interface {
	List(ctx context.Context, tenantID string, filter models.UserFilter) ([]models.User, int, error)
	FindByID(ctx context.Context, tenantID, id string) (*models.User, error)
	ExistsByEmail(ctx context.Context, tenantID, email, excludeID string) (bool, error)
	Save(ctx context.Context, tenantID string, user *models.User) error
	Delete(ctx context.Context, tenantID, id string) error
}

type referenceSyncer interface {
	MoveStudent(ctx context.Context, tenantID, studentID, oldClassID, newClassID string) error
	ReassignHomeroom(ctx context.Context, tenantID, teacherID, oldClassID, newClassID string) error
	DeleteTeacher(ctx context.Context, tenantID, actorID string, teacher *models.User) error
	DeleteStudent(ctx context.Context, tenantID, actorID string, student *models.User) error
	DeleteParent(ctx context.Context, tenantID, actorID string, parent *models.User) error
}

type accountProvisioner interface {
	Provision(ctx context.Context, req identity.ProvisionRequest) (*identity.Account, error)
	Deactivate(ctx context.Context, userID string) error
}

type parentLinkRepo interface {
	FindByID(ctx context.Context, tenantID, id string) (*models.ParentLinkRequest, error)
	ListPending(ctx context.Context, tenantID string) ([]models.ParentLinkRequest, error)
	Save(ctx context.Context, tenantID string, req *models.ParentLinkRequest) error
}

// CreateUserRequest captures fields for creating a user account.
type CreateUserRequest struct {
	Role            models.UserRole `json:"role" validate:"required"`
	FirstName       string          `json:"firstName" validate:"required"`
	LastName        string          `json:"lastName" validate:"required"`
	Email           string          `json:"email" validate:"required,email"`
	Password        string          `json:"password"`
	PhoneNumber     string          `json:"phoneNumber"`
	Gender          string          `json:"gender"`
	HomeroomClassID string          `json:"homeroomClassId"`
}

// UpdateUserRequest modifies user fields.
type UpdateUserRequest struct {
	FirstName       string `json:"firstName" validate:"required"`
	LastName        string `json:"lastName" validate:"required"`
	Email           string `json:"email" validate:"required,email"`
	PhoneNumber     string `json:"phoneNumber"`
	Gender          string `json:"gender"`
	HomeroomClassID string `json:"homeroomClassId"`
}

// CreatedUser pairs the stored user with the credentials the identity
// service issued, returned once at creation time.
type CreatedUser struct {
	User        *models.User            `json:"user"`
	Credentials identity.AccountDetails `json:"credentials"`
}

// UserService orchestrates account lifecycle: provisioning through the
// identity service, relationship sync on edits, and the role-dispatched
// delete cascades.
type UserService struct {
	repo      userRepository
	links     parentLinkRepo
	syncer    referenceSyncer
	accounts  accountProvisioner
	validator *validator.Validate
	logger    *zap.Logger
}

// NewUserService creates a new user service.
func NewUserService(repo userRepository, links parentLinkRepo, syncer referenceSyncer, accounts accountProvisioner, validate *validator.Validate, logger *zap.Logger) *UserService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{
		repo:      repo,
		links:     links,
		syncer:    syncer,
		accounts:  accounts,
		validator: validate,
		logger:    logger,
	}
}

// List returns paginated users.
func (s *UserService) List(ctx context.Context, tenantID string, filter models.UserFilter) ([]models.User, *models.Pagination, error) {
	users, total, err := s.repo.List(ctx, tenantID, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list users")
	}
	for i := range users {
		users[i].PasswordHash = ""
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return users, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns a user by id.
func (s *UserService) Get(ctx context.Context, tenantID, id string) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, tenantID, id)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	user.PasswordHash = ""
	return user, nil
}

// Create provisions an account with the identity service and stores the
// school-side user document under the returned user id. The email check
// is advisory: concurrent creates can both pass it.
func (s *UserService) Create(ctx context.Context, tenantID string, req CreateUserRequest) (*CreatedUser, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid user payload")
	}
	if !req.Role.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown role")
	}

	taken, err := s.repo.ExistsByEmail(ctx, tenantID, req.Email, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check email")
	}
	if taken {
		return nil, appErrors.Clone(appErrors.ErrEmailTaken, "")
	}

	account, err := s.accounts.Provision(ctx, identity.ProvisionRequest{
		SchoolID:  tenantID,
		Role:      string(req.Role),
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Password:  req.Password,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "account provisioning failed")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(account.AccountDetails.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	now := time.Now().UTC()
	user := &models.User{
		ID:           account.UserID,
		Role:         req.Role,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Email:        account.AccountDetails.Email,
		PhoneNumber:  req.PhoneNumber,
		Gender:       req.Gender,
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if req.HomeroomClassID != "" && (req.Role == models.RoleStudent || req.Role == models.RoleTeacher) {
		user.HomeroomClassID = req.HomeroomClassID
	}
	if err := s.repo.Save(ctx, tenantID, user); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save user")
	}

	if err := s.syncClassLink(ctx, tenantID, user, "", user.HomeroomClassID); err != nil {
		s.logger.Error("user created but class linkage incomplete",
			zap.String("user_id", user.ID),
			zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrSyncIncomplete.Code, appErrors.ErrSyncIncomplete.Status, appErrors.ErrSyncIncomplete.Message)
	}

	created := &CreatedUser{User: user, Credentials: account.AccountDetails}
	created.User.PasswordHash = ""
	return created, nil
}

// Update edits profile fields and runs the roster or homeroom sync when
// the class assignment changed.
func (s *UserService) Update(ctx context.Context, tenantID, id string, req UpdateUserRequest) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid user payload")
	}

	user, err := s.repo.FindByID(ctx, tenantID, id)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}

	if req.Email != user.Email {
		taken, err := s.repo.ExistsByEmail(ctx, tenantID, req.Email, id)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check email")
		}
		if taken {
			return nil, appErrors.Clone(appErrors.ErrEmailTaken, "")
		}
	}

	oldClassID := user.HomeroomClassID
	user.FirstName = req.FirstName
	user.LastName = req.LastName
	user.Email = req.Email
	user.PhoneNumber = req.PhoneNumber
	user.Gender = req.Gender
	user.HomeroomClassID = req.HomeroomClassID
	user.UpdatedAt = time.Now().UTC()

	if err := s.repo.Save(ctx, tenantID, user); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save user")
	}

	if err := s.syncClassLink(ctx, tenantID, user, oldClassID, user.HomeroomClassID); err != nil {
		s.logger.Error("user updated but class linkage incomplete",
			zap.String("user_id", user.ID),
			zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrSyncIncomplete.Code, appErrors.ErrSyncIncomplete.Status, appErrors.ErrSyncIncomplete.Message)
	}

	user.PasswordHash = ""
	return user, nil
}

// Delete removes a user, dispatching on role: teachers, students and
// parents run their cascade sweeps, admins are a plain document delete.
func (s *UserService) Delete(ctx context.Context, tenantID, actorID, id string) error {
	user, err := s.repo.FindByID(ctx, tenantID, id)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}

	switch user.Role {
	case models.RoleTeacher:
		err = s.syncer.DeleteTeacher(ctx, tenantID, actorID, user)
	case models.RoleStudent:
		err = s.syncer.DeleteStudent(ctx, tenantID, actorID, user)
	case models.RoleParent:
		err = s.syncer.DeleteParent(ctx, tenantID, actorID, user)
	case models.RoleAdmin:
		err = s.repo.Delete(ctx, tenantID, id)
	default:
		return appErrors.Clone(appErrors.ErrValidation, "unknown role")
	}
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete user")
	}

	// The school-side documents are gone; account deactivation is
	// best-effort and retried by support tooling if it fails.
	if err := s.accounts.Deactivate(ctx, id); err != nil {
		s.logger.Warn("user deleted but identity deactivation failed",
			zap.String("user_id", id),
			zap.Error(err))
	}
	return nil
}

// RequestParentLink opens a pending request connecting a parent to a
// student.
func (s *UserService) RequestParentLink(ctx context.Context, tenantID, parentID, childID string) (*models.ParentLinkRequest, error) {
	parent, err := s.repo.FindByID(ctx, tenantID, parentID)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "parent not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load parent")
	}
	if parent.Role != models.RoleParent {
		return nil, appErrors.Clone(appErrors.ErrValidation, "requesting user is not a parent")
	}
	child, err := s.repo.FindByID(ctx, tenantID, childID)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if child.Role != models.RoleStudent {
		return nil, appErrors.Clone(appErrors.ErrValidation, "link target is not a student")
	}

	request := &models.ParentLinkRequest{
		ID:        uuid.NewString(),
		ParentID:  parentID,
		ChildID:   childID,
		Status:    models.ParentLinkPending,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.links.Save(ctx, tenantID, request); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save link request")
	}
	return request, nil
}

// PendingParentLinks lists requests awaiting review.
func (s *UserService) PendingParentLinks(ctx context.Context, tenantID string) ([]models.ParentLinkRequest, error) {
	requests, err := s.links.ListPending(ctx, tenantID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list link requests")
	}
	return requests, nil
}

// ResolveParentLink approves or rejects a pending request. Approval
// writes both sides of the relationship: childrenIds on the parent and
// parentIds on the child.
func (s *UserService) ResolveParentLink(ctx context.Context, tenantID, requestID string, approve bool) error {
	request, err := s.links.FindByID(ctx, tenantID, requestID)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return appErrors.Clone(appErrors.ErrNotFound, "link request not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load link request")
	}
	if request.Status != models.ParentLinkPending {
		return appErrors.Clone(appErrors.ErrConflict, "link request already resolved")
	}

	if !approve {
		request.Status = models.ParentLinkRejected
		if err := s.links.Save(ctx, tenantID, request); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save link request")
		}
		return nil
	}

	parent, err := s.repo.FindByID(ctx, tenantID, request.ParentID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load parent")
	}
	child, err := s.repo.FindByID(ctx, tenantID, request.ChildID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	if !containsID(parent.ChildrenIDs, child.ID) {
		parent.ChildrenIDs = append(parent.ChildrenIDs, child.ID)
		if err := s.repo.Save(ctx, tenantID, parent); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save parent")
		}
	}
	if !containsID(child.ParentIDs, parent.ID) {
		child.ParentIDs = append(child.ParentIDs, parent.ID)
		if err := s.repo.Save(ctx, tenantID, child); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save student")
		}
	}

	request.Status = models.ParentLinkApproved
	if err := s.links.Save(ctx, tenantID, request); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save link request")
	}
	return nil
}

// syncClassLink runs the relationship sync matching the user's role
// when the class assignment changed.
func (s *UserService) syncClassLink(ctx context.Context, tenantID string, user *models.User, oldClassID, newClassID string) error {
	if oldClassID == newClassID {
		return nil
	}
	switch user.Role {
	case models.RoleStudent:
		return s.syncer.MoveStudent(ctx, tenantID, user.ID, oldClassID, newClassID)
	case models.RoleTeacher:
		return s.syncer.ReassignHomeroom(ctx, tenantID, user.ID, oldClassID, newClassID)
	default:
		return nil
	}
}

func containsID(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

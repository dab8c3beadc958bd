package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/edunik/edunik-api/internal/models"
	"github.com/edunik/edunik-api/internal/projection"
	"github.com/edunik/edunik-api/pkg/docstore"
	appErrors "github.com/edunik/edunik-api/pkg/errors"
)

type assignmentRepository interface {
	FindByID(ctx context.Context, tenantID, id string) (*models.Assignment, error)
	Save(ctx context.Context, tenantID string, assignment *models.Assignment) error
	Delete(ctx context.Context, tenantID, id string) error
}

type submissionLister interface {
	ListByStudent(ctx context.Context, tenantID, studentID string) ([]models.AssignmentSubmission, error)
}

type userFinder interface {
	FindByID(ctx context.Context, tenantID, id string) (*models.User, error)
}

// CreateAssignmentRequest captures fields for creating an assignment.
// Exactly one targeting mode is used: classes or individual students.
type CreateAssignmentRequest struct {
	Title               string    `json:"title" validate:"required"`
	Description         string    `json:"description"`
	SubjectID           string    `json:"subjectId" validate:"required"`
	DueDate             time.Time `json:"dueDate" validate:"required"`
	ClassIDs            []string  `json:"classIds"`
	StudentIDs          []string  `json:"studentIds"`
	AllowLateSubmission bool      `json:"allowLateSubmission"`
	AllowResubmission   bool      `json:"allowResubmission"`
}

// UpdateAssignmentRequest modifies assignment fields.
type UpdateAssignmentRequest struct {
	Title               string    `json:"title" validate:"required"`
	Description         string    `json:"description"`
	DueDate             time.Time `json:"dueDate" validate:"required"`
	ClassIDs            []string  `json:"classIds"`
	StudentIDs          []string  `json:"studentIds"`
	AllowLateSubmission bool      `json:"allowLateSubmission"`
	AllowResubmission   bool      `json:"allowResubmission"`
}

// AssignmentService handles assignment workflows and the role-scoped
// assignment board.
type AssignmentService struct {
	repo        assignmentRepository
	submissions submissionLister
	users       userFinder
	store       docstore.Store
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewAssignmentService creates a new assignment service.
func NewAssignmentService(repo assignmentRepository, submissions submissionLister, users userFinder, store docstore.Store, validate *validator.Validate, logger *zap.Logger) *AssignmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssignmentService{
		repo:        repo,
		submissions: submissions,
		users:       users,
		store:       store,
		validator:   validate,
		logger:      logger,
	}
}

// Get returns an assignment by id.
func (s *AssignmentService) Get(ctx context.Context, tenantID, id string) (*models.Assignment, error) {
	assignment, err := s.repo.FindByID(ctx, tenantID, id)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignment")
	}
	return assignment, nil
}

// Create adds an assignment owned by the calling teacher.
func (s *AssignmentService) Create(ctx context.Context, tenantID, teacherID string, req CreateAssignmentRequest) (*models.Assignment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assignment payload")
	}
	if err := validateTargeting(req.ClassIDs, req.StudentIDs); err != nil {
		return nil, err
	}

	assignment := &models.Assignment{
		ID:                  uuid.NewString(),
		Title:               req.Title,
		Description:         req.Description,
		TeacherID:           teacherID,
		SubjectID:           req.SubjectID,
		DueDate:             req.DueDate,
		ClassIDs:            req.ClassIDs,
		StudentIDs:          req.StudentIDs,
		AllowLateSubmission: req.AllowLateSubmission,
		AllowResubmission:   req.AllowResubmission,
		CreatedAt:           time.Now().UTC(),
	}
	if err := s.repo.Save(ctx, tenantID, assignment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create assignment")
	}
	return assignment, nil
}

// Update modifies an assignment. Only the owning teacher may edit it.
func (s *AssignmentService) Update(ctx context.Context, tenantID, teacherID, id string, req UpdateAssignmentRequest) (*models.Assignment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assignment payload")
	}
	if err := validateTargeting(req.ClassIDs, req.StudentIDs); err != nil {
		return nil, err
	}

	assignment, err := s.repo.FindByID(ctx, tenantID, id)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignment")
	}
	if assignment.TeacherID != teacherID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "assignment belongs to another teacher")
	}

	assignment.Title = req.Title
	assignment.Description = req.Description
	assignment.DueDate = req.DueDate
	assignment.ClassIDs = req.ClassIDs
	assignment.StudentIDs = req.StudentIDs
	assignment.AllowLateSubmission = req.AllowLateSubmission
	assignment.AllowResubmission = req.AllowResubmission

	if err := s.repo.Save(ctx, tenantID, assignment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update assignment")
	}
	return assignment, nil
}

// Delete removes an assignment. Its submissions are intentionally left
// in place: history stays addressable by assignmentId even though the
// parent document is gone.
func (s *AssignmentService) Delete(ctx context.Context, tenantID, teacherID, id string, isAdmin bool) error {
	assignment, err := s.repo.FindByID(ctx, tenantID, id)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignment")
	}
	if !isAdmin && assignment.TeacherID != teacherID {
		return appErrors.Clone(appErrors.ErrForbidden, "assignment belongs to another teacher")
	}
	if err := s.repo.Delete(ctx, tenantID, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete assignment")
	}
	return nil
}

// Board returns the viewer's two-bucket assignment view at the given
// instant. Parents see their child's board.
func (s *AssignmentService) Board(ctx context.Context, tenantID string, viewer projection.Viewer, childID string, now time.Time) (*projection.Board, error) {
	if viewer.Role == models.RoleParent {
		if childID == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "childId is required for parent boards")
		}
		child, err := s.users.FindByID(ctx, tenantID, childID)
		if err != nil {
			if errors.Is(err, docstore.ErrNotFound) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "child not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load child")
		}
		if !childOf(child, viewer.UserID) {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "not a parent of this student")
		}
		viewer = viewer.ForChild(child)
	}

	queries, err := projection.AssignmentQueries(viewer)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to scope assignment query")
	}

	snapshots := make([][]docstore.Document, 0, len(queries))
	for _, q := range queries {
		docs, err := s.store.Query(ctx, tenantID, q)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to query assignments")
		}
		snapshots = append(snapshots, docs)
	}

	merged := projection.MergeDocs(snapshots...)
	assignments := make([]models.Assignment, 0, len(merged))
	for i := range merged {
		var a models.Assignment
		if err := json.Unmarshal(merged[i].Data, &a); err != nil {
			s.logger.Warn("skipping undecodable assignment",
				zap.String("doc_id", merged[i].ID),
				zap.Error(err))
			continue
		}
		assignments = append(assignments, a)
	}

	opts := projection.BoardOptions{Now: now}
	if viewer.Role == models.RoleStudent {
		opts.KeepLateOpen = true
		subs, err := s.submissions.ListByStudent(ctx, tenantID, viewer.UserID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load submissions")
		}
		opts.Submitted = make(map[string]bool, len(subs))
		for i := range subs {
			opts.Submitted[subs[i].AssignmentID] = true
		}
	}

	board := projection.BuildBoard(assignments, opts)
	return &board, nil
}

func validateTargeting(classIDs, studentIDs []string) error {
	if len(classIDs) == 0 && len(studentIDs) == 0 {
		return appErrors.Clone(appErrors.ErrValidation, "assignment must target classes or students")
	}
	if len(classIDs) > 0 && len(studentIDs) > 0 {
		return appErrors.Clone(appErrors.ErrValidation, "assignment targets classes or students, not both")
	}
	return nil
}

func childOf(child *models.User, parentID string) bool {
	for _, id := range child.ParentIDs {
		if id == parentID {
			return true
		}
	}
	return false
}

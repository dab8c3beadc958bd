package service

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/edunik/edunik-api/internal/models"
	"github.com/edunik/edunik-api/pkg/docstore"
	appErrors "github.com/edunik/edunik-api/pkg/errors"
)

type subjectRepository interface {
	List(ctx context.Context, tenantID string, filter models.SubjectFilter) ([]models.Subject, int, error)
	FindByID(ctx context.Context, tenantID, id string) (*models.Subject, error)
	ExistsByName(ctx context.Context, tenantID, name, excludeID string) (bool, error)
	Save(ctx context.Context, tenantID string, subject *models.Subject) error
	Delete(ctx context.Context, tenantID, id string) error
}

type subjectTeacherSyncer interface {
	SyncSubjectTeachers(ctx context.Context, tenantID, subjectID string, oldTeacherIDs, newTeacherIDs []string) error
}

// CreateSubjectRequest captures fields for creating subjects.
type CreateSubjectRequest struct {
	Name        string   `json:"name" validate:"required"`
	Description string   `json:"description"`
	TeacherIDs  []string `json:"teacherIds"`
	ClassIDs    []string `json:"classIds"`
}

// UpdateSubjectRequest modifies subject fields.
type UpdateSubjectRequest struct {
	Name        string   `json:"name" validate:"required"`
	Description string   `json:"description"`
	TeacherIDs  []string `json:"teacherIds"`
	ClassIDs    []string `json:"classIds"`
}

// SubjectService handles subject workflows: every write that changes
// teacherIds runs the subject/teacher mirror sync afterwards.
type SubjectService struct {
	repo      subjectRepository
	syncer    subjectTeacherSyncer
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSubjectService creates a new subject service.
func NewSubjectService(repo subjectRepository, syncer subjectTeacherSyncer, validate *validator.Validate, logger *zap.Logger) *SubjectService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SubjectService{repo: repo, syncer: syncer, validator: validate, logger: logger}
}

// List returns paginated subjects.
func (s *SubjectService) List(ctx context.Context, tenantID string, filter models.SubjectFilter) ([]models.Subject, *models.Pagination, error) {
	subjects, total, err := s.repo.List(ctx, tenantID, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list subjects")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return subjects, pagination, nil
}

// Get returns a subject by id.
func (s *SubjectService) Get(ctx context.Context, tenantID, id string) (*models.Subject, error) {
	subject, err := s.repo.FindByID(ctx, tenantID, id)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject")
	}
	return subject, nil
}

// Create adds a subject and mirrors its teacher list. The name check is
// advisory: two concurrent creates can both pass it and both land.
func (s *SubjectService) Create(ctx context.Context, tenantID string, req CreateSubjectRequest) (*models.Subject, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid subject payload")
	}

	taken, err := s.repo.ExistsByName(ctx, tenantID, req.Name, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check subject name")
	}
	if taken {
		return nil, appErrors.Clone(appErrors.ErrNameTaken, "subject name already exists")
	}

	subject := &models.Subject{
		ID:          uuid.NewString(),
		Name:        req.Name,
		Description: req.Description,
		TeacherIDs:  req.TeacherIDs,
		ClassIDs:    req.ClassIDs,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.repo.Save(ctx, tenantID, subject); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create subject")
	}

	if err := s.syncer.SyncSubjectTeachers(ctx, tenantID, subject.ID, nil, subject.TeacherIDs); err != nil {
		// The subject document is written; mirror updates that failed
		// stay unapplied until the subject is re-edited.
		s.logger.Error("subject created but teacher sync incomplete",
			zap.String("subject_id", subject.ID),
			zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrSyncIncomplete.Code, appErrors.ErrSyncIncomplete.Status, appErrors.ErrSyncIncomplete.Message)
	}
	return subject, nil
}

// Update modifies a subject and syncs the teacher diff.
func (s *SubjectService) Update(ctx context.Context, tenantID, id string, req UpdateSubjectRequest) (*models.Subject, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid subject payload")
	}

	subject, err := s.repo.FindByID(ctx, tenantID, id)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject")
	}

	taken, err := s.repo.ExistsByName(ctx, tenantID, req.Name, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check subject name")
	}
	if taken {
		return nil, appErrors.Clone(appErrors.ErrNameTaken, "subject name already exists")
	}

	oldTeacherIDs := subject.TeacherIDs
	subject.Name = req.Name
	subject.Description = req.Description
	subject.TeacherIDs = req.TeacherIDs
	subject.ClassIDs = req.ClassIDs

	if err := s.repo.Save(ctx, tenantID, subject); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update subject")
	}

	if err := s.syncer.SyncSubjectTeachers(ctx, tenantID, subject.ID, oldTeacherIDs, subject.TeacherIDs); err != nil {
		s.logger.Error("subject updated but teacher sync incomplete",
			zap.String("subject_id", subject.ID),
			zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrSyncIncomplete.Code, appErrors.ErrSyncIncomplete.Status, appErrors.ErrSyncIncomplete.Message)
	}
	return subject, nil
}

// Delete removes a subject and strips it from every assigned teacher.
func (s *SubjectService) Delete(ctx context.Context, tenantID, id string) error {
	subject, err := s.repo.FindByID(ctx, tenantID, id)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject")
	}

	if err := s.repo.Delete(ctx, tenantID, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete subject")
	}

	if err := s.syncer.SyncSubjectTeachers(ctx, tenantID, id, subject.TeacherIDs, nil); err != nil {
		s.logger.Error("subject deleted but teacher sync incomplete",
			zap.String("subject_id", id),
			zap.Error(err))
		return appErrors.Wrap(err, appErrors.ErrSyncIncomplete.Code, appErrors.ErrSyncIncomplete.Status, appErrors.ErrSyncIncomplete.Message)
	}
	return nil
}

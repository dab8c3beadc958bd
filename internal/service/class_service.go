package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/edunik/edunik-api/internal/models"
	"github.com/edunik/edunik-api/pkg/docstore"
	appErrors "github.com/edunik/edunik-api/pkg/errors"
)

type classRepository interface {
	List(ctx context.Context, tenantID string, filter models.ClassFilter) ([]models.HomeroomClass, int, error)
	FindByID(ctx context.Context, tenantID, id string) (*models.HomeroomClass, error)
	Save(ctx context.Context, tenantID string, class *models.HomeroomClass) error
	Delete(ctx context.Context, tenantID, id string) error
}

// CreateClassRequest captures fields for creating a class. Either the
// grade/letter pair or a custom name must be provided.
type CreateClassRequest struct {
	GradeNumber int                         `json:"gradeNumber" validate:"min=0,max=12"`
	ClassLetter string                      `json:"classLetter"`
	CustomName  string                      `json:"customName"`
	Pairs       []models.TeacherSubjectPair `json:"teacherSubjectPairs"`
}

// UpdateClassRequest modifies class fields.
type UpdateClassRequest struct {
	GradeNumber int                         `json:"gradeNumber" validate:"min=0,max=12"`
	ClassLetter string                      `json:"classLetter"`
	CustomName  string                      `json:"customName"`
	Pairs       []models.TeacherSubjectPair `json:"teacherSubjectPairs"`
}

// ClassService handles homeroom class workflows. Roster membership is
// not edited here: it follows each student's homeroomClassId through
// the sync engine.
type ClassService struct {
	repo      classRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewClassService creates a new class service.
func NewClassService(repo classRepository, validate *validator.Validate, logger *zap.Logger) *ClassService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClassService{repo: repo, validator: validate, logger: logger}
}

// List returns paginated classes.
func (s *ClassService) List(ctx context.Context, tenantID string, filter models.ClassFilter) ([]models.HomeroomClass, *models.Pagination, error) {
	classes, total, err := s.repo.List(ctx, tenantID, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list classes")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return classes, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns a class by id.
func (s *ClassService) Get(ctx context.Context, tenantID, id string) (*models.HomeroomClass, error) {
	class, err := s.repo.FindByID(ctx, tenantID, id)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	return class, nil
}

// Create adds a class.
func (s *ClassService) Create(ctx context.Context, tenantID string, req CreateClassRequest) (*models.HomeroomClass, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid class payload")
	}
	name, err := className(req.GradeNumber, req.ClassLetter, req.CustomName)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}

	class := &models.HomeroomClass{
		ID:          uuid.NewString(),
		ClassName:   name,
		GradeNumber: req.GradeNumber,
		ClassLetter: req.ClassLetter,
		CustomName:  req.CustomName,
		StudentIDs:  []string{},
	}
	applyPairs(class, req.Pairs)

	if err := s.repo.Save(ctx, tenantID, class); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create class")
	}
	return class, nil
}

// Update modifies class naming and teaching pairs.
func (s *ClassService) Update(ctx context.Context, tenantID, id string, req UpdateClassRequest) (*models.HomeroomClass, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid class payload")
	}

	class, err := s.repo.FindByID(ctx, tenantID, id)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}

	name, err := className(req.GradeNumber, req.ClassLetter, req.CustomName)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}

	class.ClassName = name
	class.GradeNumber = req.GradeNumber
	class.ClassLetter = req.ClassLetter
	class.CustomName = req.CustomName
	applyPairs(class, req.Pairs)

	if err := s.repo.Save(ctx, tenantID, class); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update class")
	}
	return class, nil
}

// Delete removes a class. Students still pointing at it keep their
// homeroomClassId until re-edited; the roster document simply goes
// away with the class.
func (s *ClassService) Delete(ctx context.Context, tenantID, id string) error {
	if _, err := s.repo.FindByID(ctx, tenantID, id); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	if err := s.repo.Delete(ctx, tenantID, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete class")
	}
	return nil
}

func className(gradeNumber int, classLetter, customName string) (string, error) {
	if customName != "" {
		return customName, nil
	}
	if gradeNumber <= 0 || classLetter == "" {
		return "", fmt.Errorf("either customName or gradeNumber with classLetter is required")
	}
	return fmt.Sprintf("%d%s", gradeNumber, classLetter), nil
}

// applyPairs rewrites the pair list keeping at most one homeroom flag
// and mirroring it into classTeacherId.
func applyPairs(class *models.HomeroomClass, pairs []models.TeacherSubjectPair) {
	homeroomSeen := false
	normalized := make([]models.TeacherSubjectPair, 0, len(pairs))
	classTeacherID := ""
	for _, pair := range pairs {
		if pair.IsHomeroom {
			if homeroomSeen {
				pair.IsHomeroom = false
			} else {
				homeroomSeen = true
				classTeacherID = pair.TeacherID
			}
		}
		normalized = append(normalized, pair)
	}
	class.TeacherSubjectPairs = normalized
	class.ClassTeacherID = classTeacherID
}

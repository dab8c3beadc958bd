package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/edunik/edunik-api/internal/models"
	"github.com/edunik/edunik-api/pkg/docstore"
	appErrors "github.com/edunik/edunik-api/pkg/errors"
)

type gradeRepository interface {
	List(ctx context.Context, tenantID string, filter models.GradeFilter) ([]models.Grade, error)
	FindByID(ctx context.Context, tenantID, id string) (*models.Grade, error)
	Save(ctx context.Context, tenantID string, grade *models.Grade) error
	Delete(ctx context.Context, tenantID, id string) error
	ListReviewsByStudent(ctx context.Context, tenantID, studentID string) ([]models.StudentReview, error)
	SaveReview(ctx context.Context, tenantID string, review *models.StudentReview) error
}

type notifier interface {
	Notify(ctx context.Context, tenantID string, n models.Notification) error
}

// CreateGradeRequest captures fields for recording a grade.
type CreateGradeRequest struct {
	StudentID string           `json:"studentId" validate:"required"`
	SubjectID string           `json:"subjectId" validate:"required"`
	Value     float64          `json:"value" validate:"required"`
	Title     string           `json:"title" validate:"required"`
	Type      models.GradeType `json:"type" validate:"required"`
}

// CreateReviewRequest captures fields for a feedback note.
type CreateReviewRequest struct {
	StudentID   string            `json:"studentId" validate:"required"`
	Type        models.ReviewType `json:"type" validate:"required,oneof=positive negative"`
	SubjectID   string            `json:"subjectId"`
	SubjectName string            `json:"subjectName"`
}

// GradeService records grades on the 2.00-6.00 scale and teacher
// feedback notes, notifying the student on each new entry.
type GradeService struct {
	repo      gradeRepository
	users     userFinder
	notifier  notifier
	validator *validator.Validate
	logger    *zap.Logger
}

// NewGradeService creates a new grade service.
func NewGradeService(repo gradeRepository, users userFinder, n notifier, validate *validator.Validate, logger *zap.Logger) *GradeService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GradeService{repo: repo, users: users, notifier: n, validator: validate, logger: logger}
}

// List returns grades matching the filter.
func (s *GradeService) List(ctx context.Context, tenantID string, filter models.GradeFilter) ([]models.Grade, error) {
	grades, err := s.repo.List(ctx, tenantID, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list grades")
	}
	return grades, nil
}

// Create records a grade and notifies the student.
func (s *GradeService) Create(ctx context.Context, tenantID, teacherID string, req CreateGradeRequest) (*models.Grade, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid grade payload")
	}
	if req.Value < models.GradeMin || req.Value > models.GradeMax {
		return nil, appErrors.Clone(appErrors.ErrGradeOutOfRange, "")
	}
	if _, err := s.users.FindByID(ctx, tenantID, req.StudentID); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	grade := &models.Grade{
		ID:        uuid.NewString(),
		StudentID: req.StudentID,
		SubjectID: req.SubjectID,
		TeacherID: teacherID,
		Value:     req.Value,
		Title:     req.Title,
		Type:      req.Type,
		Date:      time.Now().UTC(),
	}
	if err := s.repo.Save(ctx, tenantID, grade); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save grade")
	}

	// Notification delivery is best-effort; the grade is recorded.
	if err := s.notifier.Notify(ctx, tenantID, models.Notification{
		UserID:   req.StudentID,
		Type:     models.NotificationGrade,
		Title:    "New grade",
		Message:  fmt.Sprintf("You received %.2f for %s", req.Value, req.Title),
		SenderID: teacherID,
	}); err != nil {
		s.logger.Warn("grade saved but notification failed",
			zap.String("grade_id", grade.ID),
			zap.Error(err))
	}
	return grade, nil
}

// Delete removes a grade recorded by the calling teacher.
func (s *GradeService) Delete(ctx context.Context, tenantID, teacherID, id string, isAdmin bool) error {
	grade, err := s.repo.FindByID(ctx, tenantID, id)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return appErrors.Clone(appErrors.ErrNotFound, "grade not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grade")
	}
	if !isAdmin && grade.TeacherID != teacherID {
		return appErrors.Clone(appErrors.ErrForbidden, "grade belongs to another teacher")
	}
	if err := s.repo.Delete(ctx, tenantID, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete grade")
	}
	return nil
}

// ListReviews returns a student's feedback notes.
func (s *GradeService) ListReviews(ctx context.Context, tenantID, studentID string) ([]models.StudentReview, error) {
	reviews, err := s.repo.ListReviewsByStudent(ctx, tenantID, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list reviews")
	}
	return reviews, nil
}

// CreateReview records a praise or remark note for a student.
func (s *GradeService) CreateReview(ctx context.Context, tenantID, teacherID string, req CreateReviewRequest) (*models.StudentReview, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid review payload")
	}

	teacher, err := s.users.FindByID(ctx, tenantID, teacherID)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher")
	}

	review := &models.StudentReview{
		ID:          uuid.NewString(),
		StudentID:   req.StudentID,
		TeacherID:   teacherID,
		TeacherName: teacher.FullName(),
		Type:        req.Type,
		SubjectID:   req.SubjectID,
		SubjectName: req.SubjectName,
		Date:        time.Now().UTC(),
	}
	if err := s.repo.SaveReview(ctx, tenantID, review); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save review")
	}

	if err := s.notifier.Notify(ctx, tenantID, models.Notification{
		UserID:   req.StudentID,
		Type:     models.NotificationFeedback,
		Title:    "New feedback",
		Message:  fmt.Sprintf("%s left you a %s note", review.TeacherName, review.Type),
		SenderID: teacherID,
	}); err != nil {
		s.logger.Warn("review saved but notification failed",
			zap.String("review_id", review.ID),
			zap.Error(err))
	}
	return review, nil
}

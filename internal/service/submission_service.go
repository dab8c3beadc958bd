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

type submissionRepository interface {
	FindByID(ctx context.Context, tenantID, id string) (*models.AssignmentSubmission, error)
	FindByAssignmentAndStudent(ctx context.Context, tenantID, assignmentID, studentID string) (*models.AssignmentSubmission, error)
	ListByAssignment(ctx context.Context, tenantID, assignmentID string) ([]models.AssignmentSubmission, error)
	Save(ctx context.Context, tenantID string, submission *models.AssignmentSubmission) error
}

type assignmentFinder interface {
	FindByID(ctx context.Context, tenantID, id string) (*models.Assignment, error)
}

// SubmitRequest is a student handing in assignment content.
type SubmitRequest struct {
	AssignmentID string `json:"assignmentId" validate:"required"`
	Content      string `json:"content" validate:"required"`
}

// GradeSubmissionRequest is the teacher's terminal verdict.
type GradeSubmissionRequest struct {
	Grade   float64 `json:"grade" validate:"required"`
	Comment string  `json:"comment"`
}

// SubmissionService drives the per-student submission state machine:
// none -> submitted -> resubmitted* -> graded, graded being terminal.
// "late" is a flavour of the first submission, not a separate state.
type SubmissionService struct {
	repo        submissionRepository
	assignments assignmentFinder
	validator   *validator.Validate
	logger      *zap.Logger
	now         func() time.Time
}

// NewSubmissionService creates a new submission service.
func NewSubmissionService(repo submissionRepository, assignments assignmentFinder, validate *validator.Validate, logger *zap.Logger) *SubmissionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SubmissionService{
		repo:        repo,
		assignments: assignments,
		validator:   validate,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Submit hands in content for the student. A first submission past the
// due date is rejected unless the assignment allows late submissions; a
// repeat submission additionally requires resubmission to be enabled
// and the prior one not to be graded.
func (s *SubmissionService) Submit(ctx context.Context, tenantID, studentID string, req SubmitRequest) (*models.AssignmentSubmission, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid submission payload")
	}

	assignment, err := s.assignments.FindByID(ctx, tenantID, req.AssignmentID)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignment")
	}

	now := s.now()
	late := now.After(assignment.DueDate)
	if late && !assignment.AllowLateSubmission {
		return nil, appErrors.Clone(appErrors.ErrDeadlineClosed, "")
	}

	prior, err := s.repo.FindByAssignmentAndStudent(ctx, tenantID, req.AssignmentID, studentID)
	switch {
	case err == nil:
		if prior.Graded() {
			return nil, appErrors.Clone(appErrors.ErrAlreadyGraded, "")
		}
		if !assignment.AllowResubmission {
			return nil, appErrors.Clone(appErrors.ErrResubmitDisabled, "")
		}
		prior.Content = req.Content
		prior.SubmittedAt = now
		prior.Status = models.SubmissionResubmitted
		if err := s.repo.Save(ctx, tenantID, prior); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save submission")
		}
		return prior, nil
	case errors.Is(err, docstore.ErrNotFound):
		status := models.SubmissionSubmitted
		if late {
			status = models.SubmissionLate
		}
		submission := &models.AssignmentSubmission{
			ID:           uuid.NewString(),
			AssignmentID: req.AssignmentID,
			StudentID:    studentID,
			Content:      req.Content,
			SubmittedAt:  now,
			Status:       status,
		}
		if err := s.repo.Save(ctx, tenantID, submission); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save submission")
		}
		return submission, nil
	default:
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load prior submission")
	}
}

// Grade records the teacher's verdict and seals the submission. Only
// the assignment's owning teacher may grade, the grade must be on the
// 2.00-6.00 scale, and a graded submission cannot be graded again.
func (s *SubmissionService) Grade(ctx context.Context, tenantID, teacherID, submissionID string, req GradeSubmissionRequest) (*models.AssignmentSubmission, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid grading payload")
	}
	if req.Grade < models.GradeMin || req.Grade > models.GradeMax {
		return nil, appErrors.Clone(appErrors.ErrGradeOutOfRange, "")
	}

	submission, err := s.repo.FindByID(ctx, tenantID, submissionID)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "submission not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load submission")
	}
	if submission.Graded() {
		return nil, appErrors.Clone(appErrors.ErrAlreadyGraded, "")
	}

	assignment, err := s.assignments.FindByID(ctx, tenantID, submission.AssignmentID)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "assignment no longer exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignment")
	}
	if assignment.TeacherID != teacherID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "assignment belongs to another teacher")
	}

	submission.Status = models.SubmissionGraded
	submission.Feedback = &models.Feedback{
		TeacherID: teacherID,
		Comment:   req.Comment,
		Grade:     req.Grade,
		GradedAt:  s.now(),
	}
	if err := s.repo.Save(ctx, tenantID, submission); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save grading")
	}
	return submission, nil
}

// ListByAssignment returns every submission for a teacher's assignment.
func (s *SubmissionService) ListByAssignment(ctx context.Context, tenantID, teacherID, assignmentID string) ([]models.AssignmentSubmission, error) {
	assignment, err := s.assignments.FindByID(ctx, tenantID, assignmentID)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignment")
	}
	if assignment.TeacherID != teacherID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "assignment belongs to another teacher")
	}
	submissions, err := s.repo.ListByAssignment(ctx, tenantID, assignmentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list submissions")
	}
	return submissions, nil
}

// Mine returns the student's own submission for one assignment, or
// not-found when nothing was handed in yet.
func (s *SubmissionService) Mine(ctx context.Context, tenantID, studentID, assignmentID string) (*models.AssignmentSubmission, error) {
	submission, err := s.repo.FindByAssignmentAndStudent(ctx, tenantID, assignmentID, studentID)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no submission yet")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load submission")
	}
	return submission, nil
}

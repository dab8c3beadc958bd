package service

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/edunik/edunik-api/internal/models"
	appErrors "github.com/edunik/edunik-api/pkg/errors"
)

type timetableRepository interface {
	ListByClass(ctx context.Context, tenantID, classID string) ([]models.TimetableEntry, error)
	ListByTeacher(ctx context.Context, tenantID, teacherID string) ([]models.TimetableEntry, error)
	Save(ctx context.Context, tenantID string, entry *models.TimetableEntry) error
}

// UpsertTimetableEntryRequest captures one weekly slot.
type UpsertTimetableEntryRequest struct {
	ID           string `json:"id"`
	ClassID      string `json:"classId" validate:"required"`
	TeacherID    string `json:"teacherId" validate:"required"`
	SubjectID    string `json:"subjectId" validate:"required"`
	DayOfWeek    int    `json:"dayOfWeek" validate:"min=1,max=7"`
	PeriodNumber int    `json:"periodNumber" validate:"min=1"`
}

// TimetableService maintains weekly class schedules.
type TimetableService struct {
	repo      timetableRepository
	users     userFinder
	validator *validator.Validate
	logger    *zap.Logger
}

// NewTimetableService creates a new timetable service.
func NewTimetableService(repo timetableRepository, users userFinder, validate *validator.Validate, logger *zap.Logger) *TimetableService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TimetableService{repo: repo, users: users, validator: validate, logger: logger}
}

// ListByClass returns a class's weekly slots in schedule order.
func (s *TimetableService) ListByClass(ctx context.Context, tenantID, classID string) ([]models.TimetableEntry, error) {
	entries, err := s.repo.ListByClass(ctx, tenantID, classID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list timetable")
	}
	return entries, nil
}

// ListByTeacher returns every slot taught by a teacher.
func (s *TimetableService) ListByTeacher(ctx context.Context, tenantID, teacherID string) ([]models.TimetableEntry, error) {
	entries, err := s.repo.ListByTeacher(ctx, tenantID, teacherID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list timetable")
	}
	return entries, nil
}

// Upsert writes one slot, denormalizing the teacher's display name
// into the entry.
func (s *TimetableService) Upsert(ctx context.Context, tenantID string, req UpsertTimetableEntryRequest) (*models.TimetableEntry, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid timetable entry")
	}

	teacher, err := s.users.FindByID(ctx, tenantID, req.TeacherID)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "teacher not found")
	}
	if teacher.Role != models.RoleTeacher {
		return nil, appErrors.Clone(appErrors.ErrValidation, "timetable slots can only reference teachers")
	}

	entry := &models.TimetableEntry{
		ID:           req.ID,
		ClassID:      req.ClassID,
		TeacherID:    req.TeacherID,
		TeacherName:  teacher.FirstName + " " + teacher.LastName,
		SubjectID:    req.SubjectID,
		DayOfWeek:    req.DayOfWeek,
		PeriodNumber: req.PeriodNumber,
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if err := s.repo.Save(ctx, tenantID, entry); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save timetable entry")
	}
	return entry, nil
}

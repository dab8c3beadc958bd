package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/edunik/edunik-api/internal/models"
	"github.com/edunik/edunik-api/internal/repository"
	"github.com/edunik/edunik-api/pkg/docstore"
	appErrors "github.com/edunik/edunik-api/pkg/errors"
)

type attendanceRepository interface {
	ListSession(ctx context.Context, tenantID string, key models.AttendanceSessionKey) ([]models.AttendanceRecord, error)
	ListByStudent(ctx context.Context, tenantID, studentID string) ([]models.AttendanceRecord, error)
	SaveBatch(ctx context.Context, tenantID string, records []models.AttendanceRecord) error
}

type classFinder interface {
	FindByID(ctx context.Context, tenantID, id string) (*models.HomeroomClass, error)
}

// AttendanceMark is one student's status inside a session submit.
type AttendanceMark struct {
	StudentID string                  `json:"studentId" validate:"required"`
	Status    models.AttendanceStatus `json:"status" validate:"required"`
}

// SubmitAttendanceRequest commits a whole marking session.
type SubmitAttendanceRequest struct {
	ClassID      string           `json:"classId" validate:"required"`
	SubjectID    string           `json:"subjectId" validate:"required"`
	Date         string           `json:"date" validate:"required"`
	PeriodNumber int              `json:"periodNumber" validate:"min=1"`
	Marks        []AttendanceMark `json:"marks" validate:"required,min=1,dive"`
}

// AttendanceSession is the loaded edit state for one class period: the
// roster with any previously submitted statuses merged in.
type AttendanceSession struct {
	Key     models.AttendanceSessionKey `json:"key"`
	Records []models.AttendanceRecord   `json:"records"`
}

// AttendanceService drives the live-marking flow: load the session,
// submit the whole batch atomically, then notify about non-present
// statuses. Re-loading after submit simply overwrites local edits;
// concurrent sessions by two teachers are last-writer-wins.
type AttendanceService struct {
	repo      attendanceRepository
	classes   classFinder
	users     userFinder
	notifier  notifier
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewAttendanceService creates a new attendance service.
func NewAttendanceService(repo attendanceRepository, classes classFinder, users userFinder, n notifier, validate *validator.Validate, logger *zap.Logger) *AttendanceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttendanceService{
		repo:      repo,
		classes:   classes,
		users:     users,
		notifier:  n,
		validator: validate,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Load fetches the session's roster and any already submitted marks.
// Students without a record default to present.
func (s *AttendanceService) Load(ctx context.Context, tenantID string, key models.AttendanceSessionKey) (*AttendanceSession, error) {
	class, err := s.classes.FindByID(ctx, tenantID, key.ClassID)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}

	existing, err := s.repo.ListSession(ctx, tenantID, key)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance session")
	}
	byStudent := make(map[string]models.AttendanceRecord, len(existing))
	for i := range existing {
		byStudent[existing[i].StudentID] = existing[i]
	}

	session := &AttendanceSession{Key: key}
	for _, studentID := range class.StudentIDs {
		if rec, ok := byStudent[studentID]; ok {
			session.Records = append(session.Records, rec)
			continue
		}
		session.Records = append(session.Records, models.AttendanceRecord{
			ID:           repository.SessionRecordID(key, studentID),
			StudentID:    studentID,
			ClassID:      key.ClassID,
			SubjectID:    key.SubjectID,
			Date:         key.Date,
			PeriodNumber: key.PeriodNumber,
			Status:       models.AttendancePresent,
		})
	}
	return session, nil
}

// Submit writes one record per marked student in a single atomic batch
// and then creates notifications for absent/late/excused statuses.
// Resubmitting the same session overwrites the previous marks because
// record ids are derived from the session key.
func (s *AttendanceService) Submit(ctx context.Context, tenantID, teacherID string, req SubmitAttendanceRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid attendance payload")
	}
	for _, mark := range req.Marks {
		if !mark.Status.Valid() {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown attendance status %q", mark.Status))
		}
	}

	teacher, err := s.users.FindByID(ctx, tenantID, teacherID)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher")
	}

	key := models.AttendanceSessionKey{
		ClassID:      req.ClassID,
		SubjectID:    req.SubjectID,
		Date:         req.Date,
		PeriodNumber: req.PeriodNumber,
	}
	now := s.now()
	records := make([]models.AttendanceRecord, 0, len(req.Marks))
	for _, mark := range req.Marks {
		records = append(records, models.AttendanceRecord{
			ID:           repository.SessionRecordID(key, mark.StudentID),
			StudentID:    mark.StudentID,
			ClassID:      req.ClassID,
			SubjectID:    req.SubjectID,
			TeacherID:    teacherID,
			TeacherName:  teacher.FullName(),
			Date:         req.Date,
			PeriodNumber: req.PeriodNumber,
			Status:       mark.Status,
			CreatedAt:    now,
		})
	}
	if err := s.repo.SaveBatch(ctx, tenantID, records); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save attendance")
	}

	s.notifyAbsences(ctx, tenantID, teacherID, records)
	return nil
}

// ListByStudent returns a student's attendance history.
func (s *AttendanceService) ListByStudent(ctx context.Context, tenantID, studentID string) ([]models.AttendanceRecord, error) {
	records, err := s.repo.ListByStudent(ctx, tenantID, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list attendance")
	}
	return records, nil
}

// notifyAbsences fans out notifications for non-present statuses to the
// student and their parents. Failures are logged; the attendance batch
// is already committed.
func (s *AttendanceService) notifyAbsences(ctx context.Context, tenantID, teacherID string, records []models.AttendanceRecord) {
	for _, rec := range records {
		if !rec.Status.NeedsNotification() {
			continue
		}
		message := fmt.Sprintf("Marked %s on %s, period %d", rec.Status, rec.Date, rec.PeriodNumber)
		targets := []string{rec.StudentID}
		if student, err := s.users.FindByID(ctx, tenantID, rec.StudentID); err == nil {
			targets = append(targets, student.ParentIDs...)
		}
		for _, userID := range targets {
			if err := s.notifier.Notify(ctx, tenantID, models.Notification{
				UserID:   userID,
				Type:     models.NotificationAttendance,
				Title:    "Attendance",
				Message:  message,
				SenderID: teacherID,
			}); err != nil {
				s.logger.Warn("attendance saved but notification failed",
					zap.String("student_id", rec.StudentID),
					zap.String("user_id", userID),
					zap.Error(err))
			}
		}
	}
}

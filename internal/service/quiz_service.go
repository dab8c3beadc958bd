package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/edunik/edunik-api/internal/models"
	"github.com/edunik/edunik-api/internal/projection"
	"github.com/edunik/edunik-api/internal/repository"
	"github.com/edunik/edunik-api/pkg/docstore"
	appErrors "github.com/edunik/edunik-api/pkg/errors"
)

type quizRepository interface {
	FindByID(ctx context.Context, tenantID, id string) (*models.Quiz, error)
	ListByTeacher(ctx context.Context, tenantID, teacherID string) ([]models.Quiz, error)
	ListAll(ctx context.Context, tenantID string) ([]models.Quiz, error)
	Save(ctx context.Context, tenantID string, quiz *models.Quiz) error
	Delete(ctx context.Context, tenantID, id string) error
	ListResults(ctx context.Context, tenantID, quizID string) ([]models.LiveQuizResult, error)
	SaveResult(ctx context.Context, tenantID string, result *models.LiveQuizResult) error
}

// CreateQuizRequest captures fields for scheduling a quiz.
type CreateQuizRequest struct {
	Title      string    `json:"title" validate:"required"`
	SubjectID  string    `json:"subjectId" validate:"required"`
	ClassIDs   []string  `json:"classIds"`
	StudentIDs []string  `json:"studentIds"`
	StartTime  time.Time `json:"startTime" validate:"required"`
	EndTime    time.Time `json:"endTime" validate:"required"`
}

// SessionUpdateRequest is a student client's heartbeat for its live
// session. Violations are appended, never replaced.
type SessionUpdateRequest struct {
	Status            models.SessionStatus `json:"status" validate:"required"`
	QuestionsAnswered int                  `json:"questionsAnswered" validate:"min=0"`
	Violation         *models.CheatAttempt `json:"violation,omitempty"`
}

// MonitorView is what a moderator polls while a quiz runs.
type MonitorView struct {
	Sessions []models.LiveStudentSession `json:"sessions"`
	Flagged  []models.LiveStudentSession `json:"flagged"`
}

// monitorRecorder observes the lifecycle of monitor subscriptions.
// MetricsService satisfies it; tests substitute a counting fake.
type monitorRecorder interface {
	SubscriptionOpened()
	SubscriptionClosed()
}

// QuizService schedules quizzes, tracks live sessions through the
// store's subscription feed, and reduces recorded scores into final
// results. One monitor is kept per moderator; opening a new one closes
// the previous subscription first.
type QuizService struct {
	repo      quizRepository
	store     docstore.Store
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time

	cache     *CacheService
	resultTTL time.Duration
	metrics   monitorRecorder

	mu       sync.Mutex
	monitors map[string]*projection.MonitorSession
}

// NewQuizService creates a new quiz service.
func NewQuizService(repo quizRepository, store docstore.Store, validate *validator.Validate, logger *zap.Logger) *QuizService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QuizService{
		repo:      repo,
		store:     store,
		validator: validate,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
		monitors:  make(map[string]*projection.MonitorSession),
	}
}

// WithResultCache caches reduced standings for the given TTL. Results
// only grow while a quiz runs, so a short staleness window is fine.
func (s *QuizService) WithResultCache(cache *CacheService, ttl time.Duration) *QuizService {
	s.cache = cache
	s.resultTTL = ttl
	return s
}

// WithSubscriptionMetrics reports monitor open/close events to the
// given recorder, keeping the active subscription gauge accurate.
func (s *QuizService) WithSubscriptionMetrics(rec monitorRecorder) *QuizService {
	s.metrics = rec
	return s
}

// List returns the teacher's quizzes, or every quiz for admins.
func (s *QuizService) List(ctx context.Context, tenantID, teacherID string, isAdmin bool) ([]models.Quiz, error) {
	var (
		quizzes []models.Quiz
		err     error
	)
	if isAdmin {
		quizzes, err = s.repo.ListAll(ctx, tenantID)
	} else {
		quizzes, err = s.repo.ListByTeacher(ctx, tenantID, teacherID)
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list quizzes")
	}
	return quizzes, nil
}

// Get returns a quiz by id.
func (s *QuizService) Get(ctx context.Context, tenantID, id string) (*models.Quiz, error) {
	quiz, err := s.repo.FindByID(ctx, tenantID, id)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "quiz not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load quiz")
	}
	return quiz, nil
}

// Create schedules a quiz owned by the calling teacher.
func (s *QuizService) Create(ctx context.Context, tenantID, teacherID string, req CreateQuizRequest) (*models.Quiz, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid quiz payload")
	}
	if !req.EndTime.After(req.StartTime) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "endTime must be after startTime")
	}
	if len(req.ClassIDs) == 0 && len(req.StudentIDs) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "quiz must target classes or students")
	}

	quiz := &models.Quiz{
		ID:         uuid.NewString(),
		Title:      req.Title,
		TeacherID:  teacherID,
		SubjectID:  req.SubjectID,
		ClassIDs:   req.ClassIDs,
		StudentIDs: req.StudentIDs,
		StartTime:  req.StartTime,
		EndTime:    req.EndTime,
		CreatedAt:  s.now(),
	}
	if err := s.repo.Save(ctx, tenantID, quiz); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save quiz")
	}
	return quiz, nil
}

// Delete removes a quiz and its leftover live session documents in one
// batch. Recorded results stay available.
func (s *QuizService) Delete(ctx context.Context, tenantID, teacherID, id string, isAdmin bool) error {
	quiz, err := s.repo.FindByID(ctx, tenantID, id)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return appErrors.Clone(appErrors.ErrNotFound, "quiz not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load quiz")
	}
	if !isAdmin && quiz.TeacherID != teacherID {
		return appErrors.Clone(appErrors.ErrForbidden, "quiz belongs to another teacher")
	}

	ops := []docstore.WriteOp{{Kind: docstore.WriteDelete, Collection: repository.ColQuizzes, ID: id}}
	sessionOps, err := s.sessionDeleteOps(ctx, tenantID, id)
	if err != nil {
		return err
	}
	ops = append(ops, sessionOps...)
	if err := s.store.Apply(ctx, tenantID, ops); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete quiz")
	}
	return nil
}

// ReportSession upserts the calling student's live session document.
// The document id is quizID:studentID so heartbeats overwrite in place,
// and each update fans out to subscribed monitors through the store.
func (s *QuizService) ReportSession(ctx context.Context, tenantID, quizID, studentID string, req SessionUpdateRequest) (*models.LiveStudentSession, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid session payload")
	}

	quiz, err := s.repo.FindByID(ctx, tenantID, quizID)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "quiz not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load quiz")
	}
	now := s.now()
	if now.Before(quiz.StartTime) || now.After(quiz.EndTime) {
		return nil, appErrors.Clone(appErrors.ErrDeadlineClosed, "quiz is not running")
	}

	session := models.LiveStudentSession{
		StudentID:  studentID,
		QuizID:     quizID,
		Status:     req.Status,
		StartedAt:  now,
		LastActive: now,
	}
	docID := quizID + ":" + studentID
	if doc, err := s.store.Get(ctx, tenantID, repository.ColQuizSessions, docID); err == nil {
		var prev models.LiveStudentSession
		if err := json.Unmarshal(doc.Data, &prev); err == nil {
			session.StartedAt = prev.StartedAt
			session.CheatingAttempts = prev.CheatingAttempts
		}
	} else if !errors.Is(err, docstore.ErrNotFound) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}
	session.QuestionsAnswered = req.QuestionsAnswered
	if req.Violation != nil {
		v := *req.Violation
		if v.At.IsZero() {
			v.At = now
		}
		session.CheatingAttempts = append(session.CheatingAttempts, v)
		session.Status = models.SessionSuspected
	}

	data, err := json.Marshal(session)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode session")
	}
	if err := s.store.Put(ctx, tenantID, repository.ColQuizSessions, docID, data); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save session")
	}
	return &session, nil
}

// SubmitResult records a score row and marks the session submitted. A
// student can produce several rows; projections keep the best one.
func (s *QuizService) SubmitResult(ctx context.Context, tenantID, quizID, studentID string, score float64) (*models.LiveQuizResult, error) {
	if _, err := s.repo.FindByID(ctx, tenantID, quizID); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "quiz not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load quiz")
	}

	result := &models.LiveQuizResult{
		ID:          uuid.NewString(),
		QuizID:      quizID,
		StudentID:   studentID,
		Score:       score,
		CompletedAt: s.now(),
	}
	if err := s.repo.SaveResult(ctx, tenantID, result); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save result")
	}

	if _, err := s.ReportSession(ctx, tenantID, quizID, studentID, SessionUpdateRequest{
		Status: models.SessionSubmitted,
	}); err != nil {
		s.logger.Warn("result saved but session update failed",
			zap.String("quiz_id", quizID),
			zap.String("student_id", studentID),
			zap.Error(err))
	}
	return result, nil
}

// Results returns the final standings: one row per student, keeping the
// highest score.
func (s *QuizService) Results(ctx context.Context, tenantID, quizID string) ([]models.LiveQuizResult, error) {
	var cacheKey string
	if s.cache != nil && s.cache.Enabled() {
		cacheKey = s.cache.Key(tenantID, "quiz-results", quizID)
		var cached []models.LiveQuizResult
		if hit, err := s.cache.Get(ctx, cacheKey, &cached); err == nil && hit {
			return cached, nil
		}
	}

	rows, err := s.repo.ListResults(ctx, tenantID, quizID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list results")
	}
	reduced := projection.ReduceResults(rows)

	if cacheKey != "" {
		if err := s.cache.Set(ctx, cacheKey, reduced, s.resultTTL); err != nil {
			s.logger.Warn("failed to cache quiz results", zap.String("quiz_id", quizID), zap.Error(err))
		}
	}
	return reduced, nil
}

// StartMonitoring opens the moderator's live view of a quiz. A previous
// monitor held by the same moderator is closed first so only one
// subscription per moderator exists.
func (s *QuizService) StartMonitoring(ctx context.Context, tenantID, moderatorID, quizID string) error {
	quiz, err := s.repo.FindByID(ctx, tenantID, quizID)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return appErrors.Clone(appErrors.ErrNotFound, "quiz not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load quiz")
	}

	monitor := projection.NewMonitorSession(s.store, tenantID, quiz.ID, s.logger)

	// The old subscription must be gone before the new one opens, so
	// both never feed snapshots at once.
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.monitors[moderatorID]; ok {
		prev.Close()
		delete(s.monitors, moderatorID)
		if s.metrics != nil {
			s.metrics.SubscriptionClosed()
		}
	}
	if err := monitor.Start(ctx); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to subscribe to quiz sessions")
	}
	s.monitors[moderatorID] = monitor
	if s.metrics != nil {
		s.metrics.SubscriptionOpened()
	}
	return nil
}

// Monitor returns the moderator's current view.
func (s *QuizService) Monitor(_ context.Context, moderatorID string) (*MonitorView, error) {
	s.mu.Lock()
	monitor, ok := s.monitors[moderatorID]
	s.mu.Unlock()
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "no active monitoring session")
	}
	return &MonitorView{Sessions: monitor.Sessions(), Flagged: monitor.Flagged()}, nil
}

// StopMonitoring closes the moderator's monitor if one is open.
func (s *QuizService) StopMonitoring(_ context.Context, moderatorID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if monitor, ok := s.monitors[moderatorID]; ok {
		monitor.Close()
		delete(s.monitors, moderatorID)
		if s.metrics != nil {
			s.metrics.SubscriptionClosed()
		}
	}
}

// Finish ends a quiz: the ephemeral session documents are deleted in
// one batch, leaving only the recorded results.
func (s *QuizService) Finish(ctx context.Context, tenantID, teacherID, quizID string, isAdmin bool) error {
	quiz, err := s.repo.FindByID(ctx, tenantID, quizID)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return appErrors.Clone(appErrors.ErrNotFound, "quiz not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load quiz")
	}
	if !isAdmin && quiz.TeacherID != teacherID {
		return appErrors.Clone(appErrors.ErrForbidden, "quiz belongs to another teacher")
	}

	ops, err := s.sessionDeleteOps(ctx, tenantID, quizID)
	if err != nil {
		return err
	}
	if len(ops) == 0 {
		return nil
	}
	if err := s.store.Apply(ctx, tenantID, ops); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to clear quiz sessions")
	}
	return nil
}

func (s *QuizService) sessionDeleteOps(ctx context.Context, tenantID, quizID string) ([]docstore.WriteOp, error) {
	docs, err := s.store.Query(ctx, tenantID, docstore.Query{
		Collection: repository.ColQuizSessions,
		Filters:    []docstore.Filter{{Field: "quizId", Op: docstore.OpEqual, Value: quizID}},
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, fmt.Sprintf("failed to list sessions for quiz %s", quizID))
	}
	ops := make([]docstore.WriteOp, 0, len(docs))
	for _, doc := range docs {
		ops = append(ops, docstore.WriteOp{Kind: docstore.WriteDelete, Collection: repository.ColQuizSessions, ID: doc.ID})
	}
	return ops, nil
}

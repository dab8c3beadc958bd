package service

import (
	"context"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/edunik/edunik-api/internal/models"
	"github.com/edunik/edunik-api/internal/repository"
	"github.com/edunik/edunik-api/pkg/docstore"
	appErrors "github.com/edunik/edunik-api/pkg/errors"
)

func newQuizFixture(t *testing.T) (*QuizService, *docstore.Memory) {
	t.Helper()
	store := docstore.NewMemory()
	repo := repository.NewQuizRepository(store)
	svc := NewQuizService(repo, store, validator.New(), zap.NewNop())
	return svc, store
}

func seedQuiz(t *testing.T, svc *QuizService, start, end time.Time) *models.Quiz {
	t.Helper()
	quiz, err := svc.Create(context.Background(), "school-1", "t1", CreateQuizRequest{
		Title:     "Algebra check",
		SubjectID: "math",
		ClassIDs:  []string{"c1"},
		StartTime: start,
		EndTime:   end,
	})
	require.NoError(t, err)
	return quiz
}

func TestQuizReportSessionOnlyInsideWindow(t *testing.T) {
	svc, _ := newQuizFixture(t)
	start := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)
	quiz := seedQuiz(t, svc, start, end)

	svc.now = func() time.Time { return start.Add(-time.Minute) }
	_, err := svc.ReportSession(context.Background(), "school-1", quiz.ID, "s1", SessionUpdateRequest{Status: models.SessionActive})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrDeadlineClosed.Code, errCode(t, err))

	svc.now = func() time.Time { return start.Add(time.Minute) }
	session, err := svc.ReportSession(context.Background(), "school-1", quiz.ID, "s1", SessionUpdateRequest{Status: models.SessionActive, QuestionsAnswered: 3})
	require.NoError(t, err)
	assert.Equal(t, 3, session.QuestionsAnswered)
}

func TestQuizReportSessionAccumulatesViolations(t *testing.T) {
	svc, _ := newQuizFixture(t)
	start := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
	quiz := seedQuiz(t, svc, start, start.Add(time.Hour))
	svc.now = func() time.Time { return start.Add(time.Minute) }

	_, err := svc.ReportSession(context.Background(), "school-1", quiz.ID, "s1", SessionUpdateRequest{
		Status:    models.SessionActive,
		Violation: &models.CheatAttempt{Kind: "tab-switch"},
	})
	require.NoError(t, err)

	session, err := svc.ReportSession(context.Background(), "school-1", quiz.ID, "s1", SessionUpdateRequest{
		Status:    models.SessionActive,
		Violation: &models.CheatAttempt{Kind: "copy-paste"},
	})
	require.NoError(t, err)
	assert.Equal(t, models.SessionSuspected, session.Status)
	assert.Len(t, session.CheatingAttempts, 2)
}

func TestQuizMonitorSeesReportedSessions(t *testing.T) {
	svc, _ := newQuizFixture(t)
	start := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
	quiz := seedQuiz(t, svc, start, start.Add(time.Hour))
	svc.now = func() time.Time { return start.Add(time.Minute) }

	require.NoError(t, svc.StartMonitoring(context.Background(), "school-1", "t1", quiz.ID))
	defer svc.StopMonitoring(context.Background(), "t1")

	_, err := svc.ReportSession(context.Background(), "school-1", quiz.ID, "s1", SessionUpdateRequest{Status: models.SessionActive})
	require.NoError(t, err)
	_, err = svc.ReportSession(context.Background(), "school-1", quiz.ID, "s2", SessionUpdateRequest{
		Status:    models.SessionActive,
		Violation: &models.CheatAttempt{Kind: "tab-switch"},
	})
	require.NoError(t, err)

	view, err := svc.Monitor(context.Background(), "t1")
	require.NoError(t, err)
	assert.Len(t, view.Sessions, 2)
	require.Len(t, view.Flagged, 1)
	assert.Equal(t, "s2", view.Flagged[0].StudentID)
}

// subscriptionTrace wraps a store and records the order of subscribe
// and unsubscribe calls.
type subscriptionTrace struct {
	docstore.Store
	events []string
}

func (s *subscriptionTrace) Subscribe(ctx context.Context, tenantID string, q docstore.Query, fn docstore.SnapshotFunc) (docstore.Unsubscribe, error) {
	s.events = append(s.events, "subscribe")
	unsub, err := s.Store.Subscribe(ctx, tenantID, q, fn)
	if err != nil {
		return nil, err
	}
	return func() {
		s.events = append(s.events, "unsubscribe")
		unsub()
	}, nil
}

func TestQuizRestartMonitoringClosesPreviousSubscriptionFirst(t *testing.T) {
	store := docstore.NewMemory()
	trace := &subscriptionTrace{Store: store}
	repo := repository.NewQuizRepository(store)
	svc := NewQuizService(repo, trace, validator.New(), zap.NewNop())
	start := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
	quiz := seedQuiz(t, svc, start, start.Add(time.Hour))

	require.NoError(t, svc.StartMonitoring(context.Background(), "school-1", "t1", quiz.ID))
	require.NoError(t, svc.StartMonitoring(context.Background(), "school-1", "t1", quiz.ID))
	defer svc.StopMonitoring(context.Background(), "t1")

	assert.Equal(t, []string{"subscribe", "unsubscribe", "subscribe"}, trace.events)
}

type countingSubscriptionRecorder struct {
	opened int
	closed int
}

func (r *countingSubscriptionRecorder) SubscriptionOpened() { r.opened++ }
func (r *countingSubscriptionRecorder) SubscriptionClosed() { r.closed++ }

func TestQuizMonitoringReportsSubscriptionMetrics(t *testing.T) {
	svc, _ := newQuizFixture(t)
	rec := &countingSubscriptionRecorder{}
	svc.WithSubscriptionMetrics(rec)
	start := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
	quiz := seedQuiz(t, svc, start, start.Add(time.Hour))

	require.NoError(t, svc.StartMonitoring(context.Background(), "school-1", "t1", quiz.ID))
	assert.Equal(t, 1, rec.opened)
	assert.Equal(t, 0, rec.closed)

	require.NoError(t, svc.StartMonitoring(context.Background(), "school-1", "t1", quiz.ID))
	assert.Equal(t, 2, rec.opened)
	assert.Equal(t, 1, rec.closed)

	svc.StopMonitoring(context.Background(), "t1")
	assert.Equal(t, 2, rec.closed)
}

func TestQuizMonitorWithoutSession(t *testing.T) {
	svc, _ := newQuizFixture(t)
	_, err := svc.Monitor(context.Background(), "t1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, errCode(t, err))
}

func TestQuizResultsKeepBestScorePerStudent(t *testing.T) {
	svc, _ := newQuizFixture(t)
	start := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
	quiz := seedQuiz(t, svc, start, start.Add(time.Hour))
	svc.now = func() time.Time { return start.Add(time.Minute) }

	_, err := svc.SubmitResult(context.Background(), "school-1", quiz.ID, "s1", 5)
	require.NoError(t, err)
	_, err = svc.SubmitResult(context.Background(), "school-1", quiz.ID, "s1", 8)
	require.NoError(t, err)
	_, err = svc.SubmitResult(context.Background(), "school-1", quiz.ID, "s2", 6)
	require.NoError(t, err)

	results, err := svc.Results(context.Background(), "school-1", quiz.ID)
	require.NoError(t, err)
	require.Len(t, results, 2)
	byStudent := make(map[string]float64)
	for _, r := range results {
		byStudent[r.StudentID] = r.Score
	}
	assert.Equal(t, 8.0, byStudent["s1"])
	assert.Equal(t, 6.0, byStudent["s2"])
}

func TestQuizFinishClearsSessionsKeepsResults(t *testing.T) {
	svc, store := newQuizFixture(t)
	start := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
	quiz := seedQuiz(t, svc, start, start.Add(time.Hour))
	svc.now = func() time.Time { return start.Add(time.Minute) }

	_, err := svc.SubmitResult(context.Background(), "school-1", quiz.ID, "s1", 7)
	require.NoError(t, err)

	require.NoError(t, svc.Finish(context.Background(), "school-1", "t1", quiz.ID, false))

	docs, err := store.Query(context.Background(), "school-1", docstore.Query{Collection: repository.ColQuizSessions})
	require.NoError(t, err)
	assert.Empty(t, docs)

	results, err := svc.Results(context.Background(), "school-1", quiz.ID)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestQuizDeleteRequiresOwnership(t *testing.T) {
	svc, _ := newQuizFixture(t)
	start := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
	quiz := seedQuiz(t, svc, start, start.Add(time.Hour))

	err := svc.Delete(context.Background(), "school-1", "t2", quiz.ID, false)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, errCode(t, err))

	require.NoError(t, svc.Delete(context.Background(), "school-1", "t2", quiz.ID, true))
}

package projection

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edunik/edunik-api/internal/models"
	"github.com/edunik/edunik-api/internal/repository"
	"github.com/edunik/edunik-api/pkg/docstore"
)

func suspected(studentID string, attempts int) models.LiveStudentSession {
	s := models.LiveStudentSession{
		StudentID: studentID,
		QuizID:    "q1",
		Status:    models.SessionSuspected,
	}
	for i := 0; i < attempts; i++ {
		s.CheatingAttempts = append(s.CheatingAttempts, models.CheatAttempt{Kind: "tab_switch", At: time.Now()})
	}
	return s
}

func active(studentID string) models.LiveStudentSession {
	return models.LiveStudentSession{StudentID: studentID, QuizID: "q1", Status: models.SessionActive}
}

func TestMonitorSession_FlaggedSurvivesTransientDrop(t *testing.T) {
	m := NewMonitorSession(docstore.NewMemory(), "school-1", "q1", nil)

	m.Apply([]models.LiveStudentSession{suspected("x", 1), active("y")})
	flagged := m.Flagged()
	require.Len(t, flagged, 1)
	assert.Equal(t, "x", flagged[0].StudentID)

	// x transiently drops out of the snapshot: hidden but not
	// forgotten.
	m.Apply([]models.LiveStudentSession{active("y")})
	assert.Empty(t, m.Flagged())

	// x comes back, even without the suspected status; the cached flag
	// reappears with the recorded attempt.
	m.Apply([]models.LiveStudentSession{active("x"), active("y")})
	flagged = m.Flagged()
	require.Len(t, flagged, 1)
	assert.Equal(t, "x", flagged[0].StudentID)
	assert.Len(t, flagged[0].CheatingAttempts, 1)
}

func TestMonitorSession_CacheNeverShrinks(t *testing.T) {
	m := NewMonitorSession(docstore.NewMemory(), "school-1", "q1", nil)

	m.Apply([]models.LiveStudentSession{suspected("x", 3)})
	// A flickering snapshot reasserts x with fewer attempts; the cache
	// keeps the richer entry.
	m.Apply([]models.LiveStudentSession{suspected("x", 1)})

	flagged := m.Flagged()
	require.Len(t, flagged, 1)
	assert.Len(t, flagged[0].CheatingAttempts, 3)

	// More attempts replace the cached entry.
	m.Apply([]models.LiveStudentSession{suspected("x", 4)})
	flagged = m.Flagged()
	require.Len(t, flagged, 1)
	assert.Len(t, flagged[0].CheatingAttempts, 4)
}

func TestMonitorSession_SnapshotReplacedWholesale(t *testing.T) {
	m := NewMonitorSession(docstore.NewMemory(), "school-1", "q1", nil)

	m.Apply([]models.LiveStudentSession{active("a"), active("b")})
	require.Len(t, m.Sessions(), 2)

	m.Apply([]models.LiveStudentSession{active("c")})
	sessions := m.Sessions()
	require.Len(t, sessions, 1)
	assert.Equal(t, "c", sessions[0].StudentID)
}

func TestMonitorSession_SubscribesToQuizSessions(t *testing.T) {
	store := docstore.NewMemory()
	ctx := context.Background()
	m := NewMonitorSession(store, "school-1", "q1", nil)
	require.NoError(t, m.Start(ctx))
	defer m.Close()

	put := func(id string, sess models.LiveStudentSession) {
		data, err := json.Marshal(sess)
		require.NoError(t, err)
		require.NoError(t, store.Put(ctx, "school-1", repository.ColQuizSessions, id, data))
	}

	put("q1:x", suspected("x", 2))
	// A session from a different quiz is outside the scope.
	other := suspected("z", 5)
	other.QuizID = "q2"
	put("q2:z", other)

	sessions := m.Sessions()
	require.Len(t, sessions, 1)
	assert.Equal(t, "x", sessions[0].StudentID)

	flagged := m.Flagged()
	require.Len(t, flagged, 1)
	assert.Len(t, flagged[0].CheatingAttempts, 2)
}

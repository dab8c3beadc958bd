package projection

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/edunik/edunik-api/internal/models"
	"github.com/edunik/edunik-api/internal/repository"
	"github.com/edunik/edunik-api/pkg/docstore"
)

// MonitorSession is the moderator's live view of one running quiz. It
// owns both the raw snapshot and the flagged-cheaters cache; nothing is
// shared between sessions, and Close tears the whole thing down.
//
// The flagged cache exists because a student can transiently drop out
// of a snapshot (status flicker, brief disconnect). The cache never
// shrinks: it is updated whenever a snapshot reasserts a flagged entry
// with equal or more violations, and the visible list is the cached
// entries whose key is still present in the latest snapshot.
type MonitorSession struct {
	store    docstore.Store
	tenantID string
	quizID   string
	logger   *zap.Logger
	listener Listener

	mu           sync.Mutex
	lastSnapshot map[string]models.LiveStudentSession
	flagged      map[string]models.LiveStudentSession
}

// NewMonitorSession builds a monitoring session for one quiz.
func NewMonitorSession(store docstore.Store, tenantID, quizID string, logger *zap.Logger) *MonitorSession {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MonitorSession{
		store:        store,
		tenantID:     tenantID,
		quizID:       quizID,
		logger:       logger,
		lastSnapshot: make(map[string]models.LiveStudentSession),
		flagged:      make(map[string]models.LiveStudentSession),
	}
}

// Start subscribes to the quiz's live session documents. Calling Start
// again re-subscribes, releasing the previous listener first.
func (s *MonitorSession) Start(ctx context.Context) error {
	q := docstore.Query{
		Collection: repository.ColQuizSessions,
		Filters:    []docstore.Filter{{Field: "quizId", Op: docstore.OpEqual, Value: s.quizID}},
	}
	return s.listener.Listen(ctx, s.store, s.tenantID, q, s.applyDocs)
}

func (s *MonitorSession) applyDocs(docs []docstore.Document) {
	sessions := make([]models.LiveStudentSession, 0, len(docs))
	for i := range docs {
		var sess models.LiveStudentSession
		if err := json.Unmarshal(docs[i].Data, &sess); err != nil {
			s.logger.Warn("skipping undecodable session document",
				zap.String("quiz_id", s.quizID),
				zap.String("doc_id", docs[i].ID),
				zap.Error(err))
			continue
		}
		sessions = append(sessions, sess)
	}
	s.Apply(sessions)
}

// Apply replaces the snapshot wholesale and folds flagged entries into
// the cache.
func (s *MonitorSession) Apply(sessions []models.LiveStudentSession) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastSnapshot = make(map[string]models.LiveStudentSession, len(sessions))
	for _, sess := range sessions {
		s.lastSnapshot[sess.StudentID] = sess
		if sess.Status != models.SessionSuspected {
			continue
		}
		cached, ok := s.flagged[sess.StudentID]
		if !ok || len(sess.CheatingAttempts) >= len(cached.CheatingAttempts) {
			s.flagged[sess.StudentID] = sess
		}
	}
}

// Sessions returns the latest snapshot, ordered by student id.
func (s *MonitorSession) Sessions() []models.LiveStudentSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.LiveStudentSession, 0, len(s.lastSnapshot))
	for _, sess := range s.lastSnapshot {
		out = append(out, sess)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StudentID < out[j].StudentID })
	return out
}

// Flagged returns the suspected-cheating entries that are still part of
// the latest snapshot, ordered by student id. An entry that left the
// snapshot stays cached and reappears if the student comes back.
func (s *MonitorSession) Flagged() []models.LiveStudentSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.LiveStudentSession, 0, len(s.flagged))
	for id, sess := range s.flagged {
		if _, present := s.lastSnapshot[id]; present {
			out = append(out, sess)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StudentID < out[j].StudentID })
	return out
}

// Close releases the subscription. The session must not be reused.
func (s *MonitorSession) Close() {
	s.listener.Stop()
}

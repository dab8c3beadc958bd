package models

import "time"

// Quiz is a timed test with live monitoring while it runs.
type Quiz struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	TeacherID  string    `json:"teacherId"`
	SubjectID  string    `json:"subjectId"`
	ClassIDs   []string  `json:"classIds,omitempty"`
	StudentIDs []string  `json:"studentIds,omitempty"`
	StartTime  time.Time `json:"startTime"`
	EndTime    time.Time `json:"endTime"`
	CreatedAt  time.Time `json:"createdAt"`
}

// SessionStatus classifies a student's live quiz session.
type SessionStatus string

const (
	SessionActive    SessionStatus = "active"
	SessionIdle      SessionStatus = "idle"
	SessionSuspected SessionStatus = "suspected_cheating"
	SessionSubmitted SessionStatus = "submitted"
	SessionOffline   SessionStatus = "offline"
)

// CheatAttempt records one suspected violation inside a session.
type CheatAttempt struct {
	Kind        string    `json:"kind"`
	Description string    `json:"description,omitempty"`
	At          time.Time `json:"at"`
}

// LiveStudentSession is the streamed, ephemeral per-student state a
// moderator watches while the quiz is live. Only final results outlive
// the quiz window.
type LiveStudentSession struct {
	StudentID         string         `json:"studentId"`
	QuizID            string         `json:"quizId"`
	Status            SessionStatus  `json:"status"`
	QuestionsAnswered int            `json:"questionsAnswered"`
	CheatingAttempts  []CheatAttempt `json:"cheatingAttempts,omitempty"`
	StartedAt         time.Time      `json:"startedAt"`
	LastActive        time.Time      `json:"lastActive"`
}

// LiveQuizResult is one recorded score row. The store may hold several
// rows per student; projections keep only the best per student.
type LiveQuizResult struct {
	ID          string    `json:"id"`
	QuizID      string    `json:"quizId"`
	StudentID   string    `json:"studentId"`
	Score       float64   `json:"score"`
	CompletedAt time.Time `json:"completedAt"`
}

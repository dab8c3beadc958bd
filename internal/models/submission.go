package models

import "time"

// SubmissionStatus tracks the submission state machine:
// submitted -> (resubmitted)* -> graded (terminal). "late" marks a
// first submission after the due date; it is a status value rather
// than a separate state.
type SubmissionStatus string

const (
	SubmissionSubmitted   SubmissionStatus = "submitted"
	SubmissionLate        SubmissionStatus = "late"
	SubmissionResubmitted SubmissionStatus = "resubmitted"
	SubmissionGraded      SubmissionStatus = "graded"
)

// Feedback is the teacher's terminal verdict on a submission.
type Feedback struct {
	TeacherID string    `json:"teacherId"`
	Comment   string    `json:"comment,omitempty"`
	Grade     float64   `json:"grade"`
	GradedAt  time.Time `json:"gradedAt"`
}

// AssignmentSubmission is a student's answer to an assignment. One
// document per (assignment, student); resubmission overwrites content.
type AssignmentSubmission struct {
	ID           string           `json:"id"`
	AssignmentID string           `json:"assignmentId"`
	StudentID    string           `json:"studentId"`
	Content      string           `json:"content"`
	SubmittedAt  time.Time        `json:"submittedAt"`
	Status       SubmissionStatus `json:"status"`
	Feedback     *Feedback        `json:"feedback,omitempty"`
}

// Graded reports whether the submission reached its terminal state.
func (s *AssignmentSubmission) Graded() bool {
	return s.Status == SubmissionGraded
}

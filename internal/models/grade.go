package models

import "time"

// Grade values use the 2.00-6.00 scale.
const (
	GradeMin = 2.0
	GradeMax = 6.0
)

// GradeType categorises how a grade was earned.
type GradeType string

const (
	GradeTypeExam     GradeType = "exam"
	GradeTypeTest     GradeType = "test"
	GradeTypeHomework GradeType = "homework"
	GradeTypeActive   GradeType = "active_participation"
	GradeTypeOther    GradeType = "other"
)

// Grade is a single mark a teacher gave a student in a subject.
type Grade struct {
	ID        string    `json:"id"`
	StudentID string    `json:"studentId"`
	SubjectID string    `json:"subjectId"`
	TeacherID string    `json:"teacherId"`
	Value     float64   `json:"value"`
	Title     string    `json:"title"`
	Type      GradeType `json:"type"`
	Date      time.Time `json:"date"`
}

// ReviewType marks feedback notes as praise or remarks.
type ReviewType string

const (
	ReviewPositive ReviewType = "positive"
	ReviewNegative ReviewType = "negative"
)

// StudentReview is a free-form feedback note from a teacher.
type StudentReview struct {
	ID          string     `json:"id"`
	StudentID   string     `json:"studentId"`
	TeacherID   string     `json:"teacherId"`
	TeacherName string     `json:"teacherName"`
	Type        ReviewType `json:"type"`
	SubjectID   string     `json:"subjectId,omitempty"`
	SubjectName string     `json:"subjectName,omitempty"`
	Date        time.Time  `json:"date"`
}

// GradeFilter scopes grade listing.
type GradeFilter struct {
	StudentID string
	SubjectID string
	TeacherID string
}

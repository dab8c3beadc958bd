package models

import "time"

// Assignment is homework targeted either at whole classes or at
// individual students. The UI enforces one targeting mode at a time;
// the store does not.
type Assignment struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	TeacherID   string    `json:"teacherId"`
	SubjectID   string    `json:"subjectId"`
	DueDate     time.Time `json:"dueDate"`

	ClassIDs   []string `json:"classIds,omitempty"`
	StudentIDs []string `json:"studentIds,omitempty"`

	AllowLateSubmission bool `json:"allowLateSubmission"`
	AllowResubmission   bool `json:"allowResubmission"`

	CreatedAt time.Time `json:"createdAt"`
}

// TargetsStudent reports whether the assignment reaches the student,
// either directly or through one of their classes.
func (a *Assignment) TargetsStudent(studentID, homeroomClassID string) bool {
	for _, id := range a.StudentIDs {
		if id == studentID {
			return true
		}
	}
	for _, id := range a.ClassIDs {
		if id != "" && id == homeroomClassID {
			return true
		}
	}
	return false
}

// AssignmentFilter scopes assignment listing.
type AssignmentFilter struct {
	TeacherID string
	SubjectID string
	ClassID   string
	Page      int
	PageSize  int
}

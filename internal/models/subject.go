package models

import "time"

// Subject is taught by one or more teachers. TeacherIDs is the
// authoritative side of the subject/teacher relationship; each listed
// teacher's teachesSubjects must contain this subject's id.
type Subject struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	TeacherIDs  []string  `json:"teacherIds"`
	ClassIDs    []string  `json:"classIds,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// HasTeacher reports whether the teacher id is assigned to the subject.
func (s *Subject) HasTeacher(teacherID string) bool {
	for _, id := range s.TeacherIDs {
		if id == teacherID {
			return true
		}
	}
	return false
}

// SubjectFilter scopes subject listing.
type SubjectFilter struct {
	TeacherID string
	Search    string
	Page      int
	PageSize  int
}

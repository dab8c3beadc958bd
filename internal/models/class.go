package models

// TeacherSubjectPair links a teacher (optionally teaching a subject)
// to a class. At most one pair per class carries IsHomeroom.
type TeacherSubjectPair struct {
	TeacherID  string `json:"teacherId"`
	SubjectID  string `json:"subjectId"`
	IsHomeroom bool   `json:"isHomeroom"`
}

// HomeroomClass is a class roster. StudentIDs mirrors each student's
// homeroomClassId; ClassTeacherID mirrors the single homeroom pair.
type HomeroomClass struct {
	ID                  string               `json:"id"`
	ClassName           string               `json:"className"`
	GradeNumber         int                  `json:"gradeNumber"`
	ClassLetter         string               `json:"classLetter,omitempty"`
	CustomName          string               `json:"customName,omitempty"`
	StudentIDs          []string             `json:"studentIds"`
	TeacherSubjectPairs []TeacherSubjectPair `json:"teacherSubjectPairs"`
	ClassTeacherID      string               `json:"classTeacherId,omitempty"`
}

// HasStudent reports whether the student id is on the roster.
func (c *HomeroomClass) HasStudent(studentID string) bool {
	for _, id := range c.StudentIDs {
		if id == studentID {
			return true
		}
	}
	return false
}

// HomeroomPair returns the pair flagged as homeroom, if any.
func (c *HomeroomClass) HomeroomPair() *TeacherSubjectPair {
	for i := range c.TeacherSubjectPairs {
		if c.TeacherSubjectPairs[i].IsHomeroom {
			return &c.TeacherSubjectPairs[i]
		}
	}
	return nil
}

// ClassFilter scopes class listing.
type ClassFilter struct {
	GradeNumber int
	TeacherID   string
	Page        int
	PageSize    int
}

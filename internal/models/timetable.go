package models

// TimetableEntry is one slot of a class's weekly schedule. TeacherName
// is denormalized so deleted teachers can be blanked without losing
// the slot.
type TimetableEntry struct {
	ID           string `json:"id"`
	ClassID      string `json:"classId"`
	TeacherID    string `json:"teacherId"`
	TeacherName  string `json:"teacherName"`
	SubjectID    string `json:"subjectId"`
	DayOfWeek    int    `json:"dayOfWeek"`
	PeriodNumber int    `json:"periodNumber"`
}

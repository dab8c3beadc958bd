package models

import "time"

// AttendanceStatus represents the status for attendance records.
type AttendanceStatus string

const (
	AttendancePresent AttendanceStatus = "present"
	AttendanceAbsent  AttendanceStatus = "absent"
	AttendanceLate    AttendanceStatus = "late"
	AttendanceExcused AttendanceStatus = "excused"
)

// Valid returns true when the status is a supported value.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case AttendancePresent, AttendanceAbsent, AttendanceLate, AttendanceExcused:
		return true
	default:
		return false
	}
}

// NeedsNotification reports whether the status should produce a
// notification for the student's parents.
func (s AttendanceStatus) NeedsNotification() bool {
	return s == AttendanceAbsent || s == AttendanceLate || s == AttendanceExcused
}

// AttendanceRecord is one student's status for one class period.
type AttendanceRecord struct {
	ID           string           `json:"id"`
	StudentID    string           `json:"studentId"`
	ClassID      string           `json:"classId"`
	SubjectID    string           `json:"subjectId"`
	TeacherID    string           `json:"teacherId"`
	TeacherName  string           `json:"teacherName,omitempty"`
	Date         string           `json:"date"` // YYYY-MM-DD
	PeriodNumber int              `json:"periodNumber"`
	Status       AttendanceStatus `json:"status"`
	CreatedAt    time.Time        `json:"createdAt"`
}

// AttendanceSessionKey identifies one live-marking session.
type AttendanceSessionKey struct {
	ClassID      string `json:"classId"`
	SubjectID    string `json:"subjectId"`
	Date         string `json:"date"`
	PeriodNumber int    `json:"periodNumber"`
}

// AttendanceFilter scopes attendance listing.
type AttendanceFilter struct {
	StudentID    string
	ClassID      string
	SubjectID    string
	Date         string
	PeriodNumber int
}

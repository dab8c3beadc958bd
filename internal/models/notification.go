package models

import "time"

// NotificationType categorises inbox entries.
type NotificationType string

const (
	NotificationAttendance NotificationType = "attendance"
	NotificationGrade      NotificationType = "grade"
	NotificationFeedback   NotificationType = "feedback"
	NotificationAssignment NotificationType = "assignment"
	NotificationSystem     NotificationType = "system"
)

// Notification is one entry in a user's inbox.
type Notification struct {
	ID        string           `json:"id"`
	UserID    string           `json:"userId"`
	Type      NotificationType `json:"type"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	SenderID  string           `json:"senderId,omitempty"`
	Read      bool             `json:"read"`
	CreatedAt time.Time        `json:"createdAt"`
}

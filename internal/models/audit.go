package models

import (
	"encoding/json"
	"time"
)

// Audit actions recorded by the sync engine and lifecycle controllers.
const (
	AuditActionUserDelete      = "user.delete"
	AuditActionHomeroomChange  = "class.homeroom_change"
	AuditActionRosterMove      = "class.roster_move"
	AuditActionSubjectTeachers = "subject.teachers_sync"
	AuditActionBulkImport      = "users.bulk_import"
)

// AuditLog records a state-changing operation for later inspection.
type AuditLog struct {
	ID         string          `json:"id"`
	UserID     string          `json:"userId,omitempty"`
	Action     string          `json:"action"`
	Resource   string          `json:"resource"`
	ResourceID string          `json:"resourceId,omitempty"`
	OldValues  json.RawMessage `json:"oldValues,omitempty"`
	NewValues  json.RawMessage `json:"newValues,omitempty"`
	CreatedAt  time.Time       `json:"createdAt"`
}

package models

import "time"

// UserRole is the closed set of roles. Every role-dependent operation
// dispatches over this enum so a new role fails loudly everywhere.
type UserRole string

const (
	RoleAdmin   UserRole = "ADMIN"
	RoleTeacher UserRole = "TEACHER"
	RoleStudent UserRole = "STUDENT"
	RoleParent  UserRole = "PARENT"
)

// Valid reports whether the role is one of the supported values.
func (r UserRole) Valid() bool {
	switch r {
	case RoleAdmin, RoleTeacher, RoleStudent, RoleParent:
		return true
	default:
		return false
	}
}

// FormerTeacherName replaces a deleted teacher's identity on historical
// records instead of deleting them.
const FormerTeacherName = "Former Teacher"

// User represents any account in a school: admin, teacher, student or
// parent. Role-specific fields are empty for other roles.
type User struct {
	ID           string   `json:"id"`
	Role         UserRole `json:"role"`
	FirstName    string   `json:"firstName"`
	LastName     string   `json:"lastName"`
	Email        string   `json:"email"`
	PhoneNumber  string   `json:"phoneNumber,omitempty"`
	Gender       string   `json:"gender,omitempty"`
	PasswordHash string   `json:"passwordHash,omitempty"`

	// Student fields.
	HomeroomClassID string   `json:"homeroomClassId,omitempty"`
	ParentIDs       []string `json:"parentIds,omitempty"`

	// Teacher fields. TeachesSubjects is a denormalized mirror of
	// Subject.teacherIds kept consistent by the sync engine.
	TeachesClasses  []string `json:"teachesClasses,omitempty"`
	TeachesSubjects []string `json:"teachesSubjects,omitempty"`

	// Parent fields.
	ChildrenIDs []string `json:"childrenIds,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// FullName renders the display name.
func (u *User) FullName() string {
	if u.FirstName == "" {
		return u.LastName
	}
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// ParentLinkStatus tracks the lifecycle of a parent link request.
type ParentLinkStatus string

const (
	ParentLinkPending  ParentLinkStatus = "pending"
	ParentLinkApproved ParentLinkStatus = "approved"
	ParentLinkRejected ParentLinkStatus = "rejected"
)

// ParentLinkRequest asks to connect a parent account to a student.
type ParentLinkRequest struct {
	ID        string           `json:"id"`
	ParentID  string           `json:"parentId"`
	ChildID   string           `json:"childId"`
	Status    ParentLinkStatus `json:"status"`
	CreatedAt time.Time        `json:"createdAt"`
}

// UserFilter captures filtering criteria for listing users.
type UserFilter struct {
	Role     *UserRole
	ClassID  string
	Search   string
	Page     int
	PageSize int
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}

package model

import (
	"errors"
	"time"
)

type ScheduleType string

const (
	ScheduleDaily       ScheduleType = "daily"
	ScheduleWeekly      ScheduleType = "weekly"
	ScheduleOnce        ScheduleType = "once"
	ScheduleDuringWeek  ScheduleType = "during_week"
	ScheduleDuringMonth ScheduleType = "during_month"
)

// Valid reports whether t is a known schedule type. Unknown types are
// tolerated in storage but never evaluate as due.
func (t ScheduleType) Valid() bool {
	switch t {
	case ScheduleDaily, ScheduleWeekly, ScheduleOnce, ScheduleDuringWeek, ScheduleDuringMonth:
		return true
	}
	return false
}

type TaskDefinition struct {
	ID            int64     `json:"id"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	DefaultPoints int       `json:"default_points"`
	Active        bool      `json:"active"`
	CreatedBy     int64     `json:"created_by"`
	CreatedAt     time.Time `json:"created_at"`
}

// ErrInvalidAssignee is returned when an assignment does not target
// exactly one of a user or a role group.
var ErrInvalidAssignee = errors.New("assignment must target exactly one of a user or a role group")

// Assignee is a tagged assignment target: a single user, or every active
// member of a role group. The zero value is invalid; use AssignUser or
// AssignGroup.
type Assignee struct {
	UserID *int64 `json:"user_id,omitempty"`
	Group  *Role  `json:"group,omitempty"`
}

func AssignUser(userID int64) Assignee {
	return Assignee{UserID: &userID}
}

func AssignGroup(role Role) Assignee {
	return Assignee{Group: &role}
}

// Validate enforces the one-of invariant. Store writes refuse an
// assignee that fails this check.
func (a Assignee) Validate() error {
	if a.UserID != nil && a.Group != nil {
		return ErrInvalidAssignee
	}
	if a.UserID == nil && a.Group == nil {
		return ErrInvalidAssignee
	}
	if a.Group != nil && !a.Group.Valid() {
		return ErrInvalidAssignee
	}
	return nil
}

// Matches reports whether the assignee covers the given user.
func (a Assignee) Matches(userID int64, role Role) bool {
	if a.UserID != nil {
		return *a.UserID == userID
	}
	if a.Group != nil {
		return *a.Group == role
	}
	return false
}

type TaskAssignment struct {
	ID               int64        `json:"id"`
	TaskDefinitionID int64        `json:"task_definition_id"`
	Assignee         Assignee     `json:"assignee"`
	ScheduleType     ScheduleType `json:"schedule_type"`
	DaysOfWeek       uint8        `json:"days_of_week"` // bit 0 = Sunday .. bit 6 = Saturday
	StartDate        *time.Time   `json:"start_date,omitempty"`
	EndDate          *time.Time   `json:"end_date,omitempty"`
	DueTime          *string      `json:"due_time,omitempty"` // "HH:MM" wall clock
	Active           bool         `json:"active"`
	CreatedAt        time.Time    `json:"created_at"`
}

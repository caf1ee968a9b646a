package model

import "time"

type CompletionStatus string

const (
	CompletionCompleted CompletionStatus = "completed"
	CompletionVerified  CompletionStatus = "verified"
	CompletionRejected  CompletionStatus = "rejected"
)

// TaskCompletion records that an assignment was performed on a calendar
// date. At most one completion exists per (assignment, date).
type TaskCompletion struct {
	ID              int64            `json:"id"`
	AssignmentID    int64            `json:"assignment_id"`
	Date            time.Time        `json:"date"` // civil date, midnight UTC
	CompletedBy     int64            `json:"completed_by"`
	CompletedAt     time.Time        `json:"completed_at"`
	Status          CompletionStatus `json:"status"`
	VerifiedBy      *int64           `json:"verified_by,omitempty"`
	VerifiedAt      *time.Time       `json:"verified_at,omitempty"`
	RejectionReason string           `json:"rejection_reason,omitempty"`
	Notes           string           `json:"notes,omitempty"`
}

package models

import "time"

// EnrollmentStatus represents the lifecycle of an enrollment.
type EnrollmentStatus string

// Possible enrollment statuses. Pending is transient: a request carries it
// only while a decision is being made, the persisted record always holds one
// of the decided statuses.
const (
	EnrollmentStatusPending    EnrollmentStatus = "PENDING"
	EnrollmentStatusEnrolled   EnrollmentStatus = "ENROLLED"
	EnrollmentStatusWaitlisted EnrollmentStatus = "WAITLISTED"
	EnrollmentStatusDropped    EnrollmentStatus = "DROPPED"
	EnrollmentStatusDenied     EnrollmentStatus = "DENIED"
)

// Active reports whether the status still counts against the one-active-
// enrollment-per-pair rule.
func (s EnrollmentStatus) Active() bool {
	switch s {
	case EnrollmentStatusPending, EnrollmentStatusEnrolled, EnrollmentStatusWaitlisted:
		return true
	}
	return false
}

// Enrollment captures one student's admission record for one class. Records
// are never physically deleted; DROPPED and DENIED are terminal and kept for
// audit.
type Enrollment struct {
	ID            string           `db:"id" json:"id"`
	StudentID     string           `db:"student_id" json:"student_id"`
	ClassID       string           `db:"class_id" json:"class_id"`
	Status        EnrollmentStatus `db:"status" json:"status"`
	Justification *string          `db:"justification" json:"justification,omitempty"`
	RequestedAt   time.Time        `db:"requested_at" json:"requested_at"`
	DecidedAt     *time.Time       `db:"decided_at" json:"decided_at,omitempty"`
}

// EnrollmentResult is the outcome reported to the caller of an admission
// operation.
type EnrollmentResult struct {
	Success   bool             `json:"success"`
	StudentID string           `json:"student_id"`
	ClassID   string           `json:"class_id"`
	Status    EnrollmentStatus `json:"status"`
	Position  *int             `json:"position,omitempty"`
	Reason    string           `json:"reason,omitempty"`
}

// EnrollmentFilter provides filters for listing enrollments.
type EnrollmentFilter struct {
	StudentID string
	ClassID   string
	Status    EnrollmentStatus
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

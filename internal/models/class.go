package models

import "time"

// ClassCapacity is the seat counter for one class and the single source of
// truth for admission decisions.
type ClassCapacity struct {
	ClassID       string    `db:"class_id" json:"class_id"`
	TeacherID     string    `db:"teacher_id" json:"teacher_id"`
	Capacity      int       `db:"capacity" json:"capacity"`
	EnrolledCount int       `db:"enrolled_count" json:"enrolled_count"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// Available returns the number of free seats.
func (c ClassCapacity) Available() int {
	free := c.Capacity - c.EnrolledCount
	if free < 0 {
		return 0
	}
	return free
}

// CapacitySnapshot is a display-only view of a class counter. It may lag the
// counter by one in-flight operation and must never feed admission decisions.
type CapacitySnapshot struct {
	ClassID       string    `json:"class_id"`
	Capacity      int       `json:"capacity"`
	EnrolledCount int       `json:"enrolled_count"`
	Available     int       `json:"available"`
	WaitlistDepth int       `json:"waitlist_depth"`
	ObservedAt    time.Time `json:"observed_at"`
}

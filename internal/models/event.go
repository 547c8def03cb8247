package models

import (
	"fmt"
	"time"
)

// EventType identifies a state-change broadcast by the enrollment core.
type EventType string

// Event types emitted by the enrollment core.
const (
	EventEnrollmentConfirmed EventType = "enrollment.confirmed"
	EventEnrollmentDropped   EventType = "enrollment.dropped"
	EventWaitlistJoined      EventType = "waitlist.joined"
	EventWaitlistOffer       EventType = "waitlist.offer"
	EventWaitlistPosition    EventType = "waitlist.position_changed"
	EventWaitlistLeft        EventType = "waitlist.left"
	EventCapacityChanged     EventType = "capacity.changed"
)

// Event is the envelope pushed to realtime subscribers.
type Event struct {
	Topic      string                 `json:"topic"`
	Type       EventType              `json:"type"`
	ClassID    string                 `json:"class_id,omitempty"`
	StudentID  string                 `json:"student_id,omitempty"`
	Payload    map[string]interface{} `json:"payload,omitempty"`
	OccurredAt time.Time              `json:"occurred_at"`
}

// ClassTopic names the broadcast topic for everyone watching a class.
func ClassTopic(classID string) string { return fmt.Sprintf("class:%s", classID) }

// StudentTopic names the personal topic of a student.
func StudentTopic(studentID string) string { return fmt.Sprintf("student:%s", studentID) }

// TeacherTopic names the roster topic of a teacher.
func TeacherTopic(teacherID string) string { return fmt.Sprintf("teacher:%s", teacherID) }

package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ScepterCode/Project-Nest3-sub010/internal/models"
	"github.com/ScepterCode/Project-Nest3-sub010/pkg/config"
	"github.com/ScepterCode/Project-Nest3-sub010/pkg/jobs"
)

// Notification is one fire-and-forget delivery request.
type Notification struct {
	StudentID string                 `json:"student_id"`
	EventType models.EventType       `json:"event_type"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
	QueuedAt  time.Time              `json:"queued_at"`
}

// NotificationSender performs the actual delivery to the external
// notification collaborator.
type NotificationSender interface {
	Send(ctx context.Context, notification Notification) error
}

// LogSender is the default sender; it records deliveries in the structured
// log. Production deployments plug a real channel in its place.
type LogSender struct {
	logger *zap.Logger
}

// NewLogSender constructs a LogSender.
func NewLogSender(logger *zap.Logger) *LogSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSender{logger: logger}
}

// Send implements NotificationSender.
func (s *LogSender) Send(_ context.Context, notification Notification) error {
	s.logger.Info("notification delivered",
		zap.String("student_id", notification.StudentID),
		zap.String("event_type", string(notification.EventType)))
	return nil
}

// NotificationService dispatches notifications asynchronously through the
// background job queue. Enqueue and delivery failures are logged and dropped;
// they never affect enrollment state.
type NotificationService struct {
	queue  *jobs.Queue
	logger *zap.Logger
}

// NewNotificationService constructs the service and its worker queue.
func NewNotificationService(sender NotificationSender, cfg config.NotificationsConfig, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if sender == nil {
		sender = NewLogSender(logger)
	}
	handler := func(ctx context.Context, job jobs.Job) error {
		notification, ok := job.Payload.(Notification)
		if !ok {
			return fmt.Errorf("unexpected notification payload type %T", job.Payload)
		}
		return sender.Send(ctx, notification)
	}
	queue := jobs.NewQueue("notifications", handler, jobs.QueueConfig{
		Workers:    cfg.Workers,
		BufferSize: cfg.BufferSize,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
	})
	return &NotificationService{queue: queue, logger: logger}
}

// Start launches the delivery workers.
func (s *NotificationService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the workers.
func (s *NotificationService) Stop() {
	s.queue.Stop()
}

// Notify implements Notifier.
func (s *NotificationService) Notify(studentID string, eventType models.EventType, payload map[string]interface{}) {
	job := jobs.Job{
		ID:   uuid.NewString(),
		Type: string(eventType),
		Payload: Notification{
			StudentID: studentID,
			EventType: eventType,
			Payload:   payload,
			QueuedAt:  time.Now().UTC(),
		},
	}
	if err := s.queue.Enqueue(job); err != nil {
		s.logger.Warn("notification dropped",
			zap.String("student_id", studentID),
			zap.String("event_type", string(eventType)),
			zap.Error(err))
	}
}

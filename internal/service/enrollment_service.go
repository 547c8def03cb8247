package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ScepterCode/Project-Nest3-sub010/internal/models"
	appErrors "github.com/ScepterCode/Project-Nest3-sub010/pkg/errors"
)

type capacityRepository interface {
	Create(ctx context.Context, capacity *models.ClassCapacity) error
	Get(ctx context.Context, classID string) (*models.ClassCapacity, error)
	TryReserveSeat(ctx context.Context, classID string) (bool, error)
	ReleaseSeat(ctx context.Context, classID string) (int, error)
	SetCapacity(ctx context.Context, classID string, newCapacity int) (*models.ClassCapacity, error)
}

type enrollmentRepository interface {
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.Enrollment, int, error)
	FindActive(ctx context.Context, studentID, classID string) (*models.Enrollment, error)
	Create(ctx context.Context, enrollment *models.Enrollment) error
	UpdateStatus(ctx context.Context, id string, status models.EnrollmentStatus, decidedAt *time.Time) error
	ListEnrolledByClass(ctx context.Context, classID string) ([]models.Enrollment, error)
}

type waitlistRepository interface {
	Append(ctx context.Context, classID, studentID string) (*models.WaitlistEntry, error)
	Find(ctx context.Context, classID, studentID string) (*models.WaitlistEntry, error)
	ListByClass(ctx context.Context, classID string) ([]models.WaitlistEntry, error)
	Depth(ctx context.Context, classID string) (int, error)
	NextCandidate(ctx context.Context, classID string) (*models.WaitlistEntry, error)
	OutstandingOffer(ctx context.Context, classID string) (*models.WaitlistEntry, error)
	MarkOffered(ctx context.Context, id string, expiresAt time.Time) error
	ResetOffer(ctx context.Context, id string) error
	Remove(ctx context.Context, id string) ([]models.WaitlistEntry, error)
	ClassesWithExpiredOffers(ctx context.Context, now time.Time) ([]string, error)
}

// EventPublisher fans events out to realtime subscribers.
type EventPublisher interface {
	Publish(event models.Event)
}

// Notifier delivers fire-and-forget notifications to students. Delivery
// failures never roll back core state.
type Notifier interface {
	Notify(studentID string, eventType models.EventType, payload map[string]interface{})
}

// EnrollmentRequest describes an inbound enrollment request.
type EnrollmentRequest struct {
	StudentID     string  `json:"student_id" validate:"required"`
	ClassID       string  `json:"class_id" validate:"required"`
	Justification *string `json:"justification,omitempty"`
}

// DropRequest identifies the enrollment to drop.
type DropRequest struct {
	StudentID string `json:"student_id" validate:"required"`
	ClassID   string `json:"class_id" validate:"required"`
}

// OfferResponseRequest carries a student's answer to a waitlist offer.
type OfferResponseRequest struct {
	StudentID string               `json:"student_id" validate:"required"`
	ClassID   string               `json:"class_id" validate:"required"`
	Response  models.OfferResponse `json:"response" validate:"required,oneof=accept decline"`
}

// CreateClassRequest provisions a seat counter for a new class.
type CreateClassRequest struct {
	ClassID   string `json:"class_id"`
	TeacherID string `json:"teacher_id" validate:"required"`
	Capacity  int    `json:"capacity" validate:"gte=0"`
}

const snapshotCachePrefix = "capacity:snapshot:"

// EnrollmentService owns the enrollment state machine and the waitlist
// ordering engine. Every admission-affecting operation runs inside the
// per-class critical section provided by the ClassCoordinator.
type EnrollmentService struct {
	capacities  capacityRepository
	enrollments enrollmentRepository
	waitlist    waitlistRepository
	coordinator *ClassCoordinator
	events      EventPublisher
	notifier    Notifier
	cache       *CacheService
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger

	offerWindow time.Duration
	snapshotTTL time.Duration
	now         func() time.Time
}

// EnrollmentServiceConfig bundles the collaborators of the service.
type EnrollmentServiceConfig struct {
	Capacities  capacityRepository
	Enrollments enrollmentRepository
	Waitlist    waitlistRepository
	Coordinator *ClassCoordinator
	Events      EventPublisher
	Notifier    Notifier
	Cache       *CacheService
	Metrics     *MetricsService
	Validator   *validator.Validate
	Logger      *zap.Logger
	OfferWindow time.Duration
	SnapshotTTL time.Duration
}

// NewEnrollmentService constructs EnrollmentService.
func NewEnrollmentService(cfg EnrollmentServiceConfig) *EnrollmentService {
	if cfg.Validator == nil {
		cfg.Validator = validator.New()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Coordinator == nil {
		cfg.Coordinator = NewClassCoordinator()
	}
	if cfg.OfferWindow <= 0 {
		cfg.OfferWindow = 24 * time.Hour
	}
	if cfg.SnapshotTTL <= 0 {
		cfg.SnapshotTTL = 5 * time.Second
	}
	return &EnrollmentService{
		capacities:  cfg.Capacities,
		enrollments: cfg.Enrollments,
		waitlist:    cfg.Waitlist,
		coordinator: cfg.Coordinator,
		events:      cfg.Events,
		notifier:    cfg.Notifier,
		cache:       cfg.Cache,
		metrics:     cfg.Metrics,
		validator:   cfg.Validator,
		logger:      cfg.Logger,
		offerWindow: cfg.OfferWindow,
		snapshotTTL: cfg.SnapshotTTL,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// CreateClass provisions the capacity counter for a new class.
func (s *EnrollmentService) CreateClass(ctx context.Context, req CreateClassRequest) (*models.ClassCapacity, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid class payload")
	}
	capacity := &models.ClassCapacity{ClassID: req.ClassID, TeacherID: req.TeacherID, Capacity: req.Capacity}
	if capacity.ClassID == "" {
		capacity.ClassID = newID()
	}
	if err := s.capacities.Create(ctx, capacity); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create class")
	}
	return capacity, nil
}

// RequestEnrollment admits a student into a class or queues them on the
// waitlist when the class is full.
func (s *EnrollmentService) RequestEnrollment(ctx context.Context, req EnrollmentRequest) (*models.EnrollmentResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}
	if _, err := s.capacities.Get(ctx, req.ClassID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}

	var result *models.EnrollmentResult
	err := s.locked(ctx, req.ClassID, func(ctx context.Context) error {
		var err error
		result, err = s.requestEnrollmentLocked(ctx, req)
		return err
	})
	if err != nil {
		s.metrics.RecordEnrollmentOp("request", "error")
		return nil, err
	}
	s.metrics.RecordEnrollmentOp("request", string(result.Status))
	return result, nil
}

func (s *EnrollmentService) requestEnrollmentLocked(ctx context.Context, req EnrollmentRequest) (*models.EnrollmentResult, error) {
	exists, err := s.existsActive(ctx, req.StudentID, req.ClassID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if exists {
		denied := &models.Enrollment{
			StudentID:     req.StudentID,
			ClassID:       req.ClassID,
			Status:        models.EnrollmentStatusDenied,
			Justification: req.Justification,
			RequestedAt:   now,
			DecidedAt:     &now,
		}
		if err := s.enrollments.Create(ctx, denied); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record denial")
		}
		return &models.EnrollmentResult{
			Success:   false,
			StudentID: req.StudentID,
			ClassID:   req.ClassID,
			Status:    models.EnrollmentStatusDenied,
			Reason:    "an active enrollment already exists for this student and class",
		}, nil
	}

	reserved, err := s.capacities.TryReserveSeat(ctx, req.ClassID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reserve seat")
	}

	enrollment := &models.Enrollment{
		StudentID:     req.StudentID,
		ClassID:       req.ClassID,
		Justification: req.Justification,
		RequestedAt:   now,
		DecidedAt:     &now,
	}

	if reserved {
		enrollment.Status = models.EnrollmentStatusEnrolled
		if err := s.enrollments.Create(ctx, enrollment); err != nil {
			// Give the seat back so the counter never leaks.
			if _, releaseErr := s.capacities.ReleaseSeat(ctx, req.ClassID); releaseErr != nil {
				s.logger.Error("seat release after failed insert",
					zap.String("class_id", req.ClassID), zap.Error(releaseErr))
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create enrollment")
		}
		s.invalidateSnapshot(ctx, req.ClassID)
		s.broadcast(ctx, models.EventEnrollmentConfirmed, req.ClassID, req.StudentID, nil)
		return &models.EnrollmentResult{
			Success:   true,
			StudentID: req.StudentID,
			ClassID:   req.ClassID,
			Status:    models.EnrollmentStatusEnrolled,
		}, nil
	}

	entry, err := s.waitlist.Append(ctx, req.ClassID, req.StudentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to join waitlist")
	}
	enrollment.Status = models.EnrollmentStatusWaitlisted
	if err := s.enrollments.Create(ctx, enrollment); err != nil {
		if _, removeErr := s.waitlist.Remove(ctx, entry.ID); removeErr != nil {
			s.logger.Error("waitlist rollback after failed insert",
				zap.String("class_id", req.ClassID), zap.Error(removeErr))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create enrollment")
	}
	s.invalidateSnapshot(ctx, req.ClassID)
	s.refreshWaitlistDepth(ctx, req.ClassID)
	s.broadcast(ctx, models.EventWaitlistJoined, req.ClassID, req.StudentID, map[string]interface{}{
		"position": entry.Position,
	})
	position := entry.Position
	return &models.EnrollmentResult{
		Success:   true,
		StudentID: req.StudentID,
		ClassID:   req.ClassID,
		Status:    models.EnrollmentStatusWaitlisted,
		Position:  &position,
	}, nil
}

// DropEnrollment removes a student from a class or its waitlist. Dropping a
// missing or already-dropped enrollment is a no-op success.
func (s *EnrollmentService) DropEnrollment(ctx context.Context, req DropRequest) (*models.EnrollmentResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid drop payload")
	}

	var result *models.EnrollmentResult
	err := s.locked(ctx, req.ClassID, func(ctx context.Context) error {
		var err error
		result, err = s.dropEnrollmentLocked(ctx, req.StudentID, req.ClassID)
		return err
	})
	if err != nil {
		s.metrics.RecordEnrollmentOp("drop", "error")
		return nil, err
	}
	s.metrics.RecordEnrollmentOp("drop", "dropped")
	return result, nil
}

func (s *EnrollmentService) dropEnrollmentLocked(ctx context.Context, studentID, classID string) (*models.EnrollmentResult, error) {
	enrollment, err := s.enrollments.FindActive(ctx, studentID, classID)
	if err != nil {
		if err == sql.ErrNoRows {
			return &models.EnrollmentResult{
				Success:   true,
				StudentID: studentID,
				ClassID:   classID,
				Status:    models.EnrollmentStatusDropped,
				Reason:    "no active enrollment",
			}, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}

	now := s.now()
	switch enrollment.Status {
	case models.EnrollmentStatusEnrolled:
		if err := s.enrollments.UpdateStatus(ctx, enrollment.ID, models.EnrollmentStatusDropped, &now); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to drop enrollment")
		}
		if _, err := s.capacities.ReleaseSeat(ctx, classID); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to release seat")
		}
		s.invalidateSnapshot(ctx, classID)
		s.broadcast(ctx, models.EventEnrollmentDropped, classID, studentID, nil)
		if err := s.promoteNextLocked(ctx, classID); err != nil {
			return nil, err
		}
	case models.EnrollmentStatusWaitlisted:
		entry, err := s.waitlist.Find(ctx, classID, studentID)
		if err != nil && err != sql.ErrNoRows {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load waitlist entry")
		}
		if err := s.enrollments.UpdateStatus(ctx, enrollment.ID, models.EnrollmentStatusDropped, &now); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to drop enrollment")
		}
		if entry != nil {
			hadOffer := entry.OfferStatus == models.OfferStatusOffered
			if err := s.removeWaitlistEntry(ctx, entry, models.EventWaitlistLeft); err != nil {
				return nil, err
			}
			// A student who abandons an outstanding offer frees the
			// seat for the next in line.
			if hadOffer {
				if err := s.promoteNextLocked(ctx, classID); err != nil {
					return nil, err
				}
			}
		}
	}

	return &models.EnrollmentResult{
		Success:   true,
		StudentID: studentID,
		ClassID:   classID,
		Status:    models.EnrollmentStatusDropped,
	}, nil
}

// RespondToOffer resolves an outstanding waitlist offer. Expired offers are
// treated as declines regardless of the submitted response.
func (s *EnrollmentService) RespondToOffer(ctx context.Context, req OfferResponseRequest) (*models.EnrollmentResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid offer response payload")
	}

	var result *models.EnrollmentResult
	err := s.locked(ctx, req.ClassID, func(ctx context.Context) error {
		var err error
		result, err = s.respondToOfferLocked(ctx, req)
		return err
	})
	if err != nil {
		s.metrics.RecordEnrollmentOp("offer_response", "error")
		return nil, err
	}
	s.metrics.RecordEnrollmentOp("offer_response", string(result.Status))
	return result, nil
}

func (s *EnrollmentService) respondToOfferLocked(ctx context.Context, req OfferResponseRequest) (*models.EnrollmentResult, error) {
	entry, err := s.waitlist.Find(ctx, req.ClassID, req.StudentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.ErrNoActiveOffer
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load waitlist entry")
	}
	if entry.OfferStatus != models.OfferStatusOffered {
		return nil, appErrors.ErrNoActiveOffer
	}

	now := s.now()
	if entry.OfferExpired(now) {
		if err := s.resolveOfferRemoval(ctx, entry, models.OfferStatusExpired); err != nil {
			return nil, err
		}
		return &models.EnrollmentResult{
			Success:   false,
			StudentID: req.StudentID,
			ClassID:   req.ClassID,
			Status:    models.EnrollmentStatusDropped,
			Reason:    "offer expired",
		}, nil
	}

	if req.Response == models.OfferResponseDecline {
		if err := s.resolveOfferRemoval(ctx, entry, models.OfferStatusDeclined); err != nil {
			return nil, err
		}
		return &models.EnrollmentResult{
			Success:   true,
			StudentID: req.StudentID,
			ClassID:   req.ClassID,
			Status:    models.EnrollmentStatusDropped,
			Reason:    "offer declined",
		}, nil
	}

	reserved, err := s.capacities.TryReserveSeat(ctx, req.ClassID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reserve seat")
	}
	if !reserved {
		// Capacity shrank underneath the offer. Keep the student at the
		// head of the queue and wait for the next vacancy.
		if err := s.waitlist.ResetOffer(ctx, entry.ID); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to requeue offer")
		}
		position := entry.Position
		return &models.EnrollmentResult{
			Success:   false,
			StudentID: req.StudentID,
			ClassID:   req.ClassID,
			Status:    models.EnrollmentStatusWaitlisted,
			Position:  &position,
			Reason:    "class is full",
		}, nil
	}

	if err := s.removeWaitlistEntry(ctx, entry, ""); err != nil {
		return nil, err
	}
	enrollment, err := s.enrollments.FindActive(ctx, req.StudentID, req.ClassID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	if err := s.enrollments.UpdateStatus(ctx, enrollment.ID, models.EnrollmentStatusEnrolled, &now); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to promote enrollment")
	}
	s.invalidateSnapshot(ctx, req.ClassID)
	s.broadcast(ctx, models.EventEnrollmentConfirmed, req.ClassID, req.StudentID, map[string]interface{}{
		"promoted_from_waitlist": true,
	})

	// More seats may have opened while this offer was pending, e.g. after a
	// capacity increase. Keep the queue moving.
	if err := s.promoteNextLocked(ctx, req.ClassID); err != nil {
		return nil, err
	}

	return &models.EnrollmentResult{
		Success:   true,
		StudentID: req.StudentID,
		ClassID:   req.ClassID,
		Status:    models.EnrollmentStatusEnrolled,
	}, nil
}

// AdjustCapacity applies an admin capacity change. Increases trigger waitlist
// promotion for the newly opened seats.
func (s *EnrollmentService) AdjustCapacity(ctx context.Context, classID string, newCapacity int) (*models.ClassCapacity, error) {
	if classID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "class id is required")
	}
	if newCapacity < 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "capacity must be non-negative")
	}

	var updated *models.ClassCapacity
	err := s.locked(ctx, classID, func(ctx context.Context) error {
		capacity, err := s.capacities.SetCapacity(ctx, classID, newCapacity)
		if err != nil {
			if err == sql.ErrNoRows {
				return appErrors.Clone(appErrors.ErrNotFound, "class not found")
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to adjust capacity")
		}
		updated = capacity
		s.invalidateSnapshot(ctx, classID)
		s.broadcast(ctx, models.EventCapacityChanged, classID, "", map[string]interface{}{
			"capacity":       capacity.Capacity,
			"enrolled_count": capacity.EnrolledCount,
		})
		if capacity.Available() > 0 {
			return s.promoteNextLocked(ctx, classID)
		}
		return nil
	})
	if err != nil {
		s.metrics.RecordEnrollmentOp("adjust_capacity", "error")
		return nil, err
	}
	s.metrics.RecordEnrollmentOp("adjust_capacity", "ok")
	return updated, nil
}

// promoteNextLocked issues a seat offer to the next queued student. It is a
// no-op while another offer is outstanding or while no seat is free; the seat
// itself is only claimed when the student accepts. Callers must hold the
// class lock.
func (s *EnrollmentService) promoteNextLocked(ctx context.Context, classID string) error {
	outstanding, err := s.waitlist.OutstandingOffer(ctx, classID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check outstanding offer")
	}
	if outstanding != nil {
		return nil
	}

	capacity, err := s.capacities.Get(ctx, classID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	if capacity.Available() == 0 {
		return nil
	}

	candidate, err := s.waitlist.NextCandidate(ctx, classID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to select waitlist candidate")
	}

	expiresAt := s.now().Add(s.offerWindow)
	if err := s.waitlist.MarkOffered(ctx, candidate.ID, expiresAt); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to issue offer")
	}
	s.broadcast(ctx, models.EventWaitlistOffer, classID, candidate.StudentID, map[string]interface{}{
		"position":   candidate.Position,
		"expires_at": expiresAt,
	})
	s.logger.Info("waitlist offer issued",
		zap.String("class_id", classID),
		zap.String("student_id", candidate.StudentID),
		zap.Time("expires_at", expiresAt))
	return nil
}

// resolveOfferRemoval handles decline and expiry: the entry leaves the queue,
// the student's enrollment terminates, and promotion cascades to the next
// candidate.
func (s *EnrollmentService) resolveOfferRemoval(ctx context.Context, entry *models.WaitlistEntry, outcome models.OfferStatus) error {
	eventType := models.EventWaitlistLeft
	if err := s.removeWaitlistEntry(ctx, entry, eventType); err != nil {
		return err
	}
	now := s.now()
	enrollment, err := s.enrollments.FindActive(ctx, entry.StudentID, entry.ClassID)
	if err != nil && err != sql.ErrNoRows {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	if enrollment != nil {
		if err := s.enrollments.UpdateStatus(ctx, enrollment.ID, models.EnrollmentStatusDropped, &now); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to drop enrollment")
		}
	}
	s.logger.Info("waitlist offer resolved",
		zap.String("class_id", entry.ClassID),
		zap.String("student_id", entry.StudentID),
		zap.String("outcome", string(outcome)))
	return s.promoteNextLocked(ctx, entry.ClassID)
}

// removeWaitlistEntry deletes the entry, renumbers the tail and reports the
// position changes to the affected students.
func (s *EnrollmentService) removeWaitlistEntry(ctx context.Context, entry *models.WaitlistEntry, eventType models.EventType) error {
	shifted, err := s.waitlist.Remove(ctx, entry.ID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to remove waitlist entry")
	}
	s.refreshWaitlistDepth(ctx, entry.ClassID)
	if eventType != "" {
		s.broadcast(ctx, eventType, entry.ClassID, entry.StudentID, map[string]interface{}{
			"position": entry.Position,
		})
	}
	for _, moved := range shifted {
		s.broadcast(ctx, models.EventWaitlistPosition, moved.ClassID, moved.StudentID, map[string]interface{}{
			"position": moved.Position,
		})
	}
	return nil
}

// SweepExpiredOffers resolves every offer whose window has passed, treating
// each as a decline. Returns the number of offers swept.
func (s *EnrollmentService) SweepExpiredOffers(ctx context.Context) (int, error) {
	classIDs, err := s.waitlist.ClassesWithExpiredOffers(ctx, s.now())
	if err != nil {
		return 0, err
	}
	swept := 0
	for _, classID := range classIDs {
		err := s.locked(ctx, classID, func(ctx context.Context) error {
			entry, err := s.waitlist.OutstandingOffer(ctx, classID)
			if err != nil {
				return err
			}
			// Re-check under the lock; the student may have responded
			// between the scan and now.
			if entry == nil || !entry.OfferExpired(s.now()) {
				return nil
			}
			if err := s.resolveOfferRemoval(ctx, entry, models.OfferStatusExpired); err != nil {
				return err
			}
			swept++
			return nil
		})
		if err != nil {
			s.logger.Error("offer sweep failed", zap.String("class_id", classID), zap.Error(err))
		}
	}
	return swept, nil
}

// Snapshot returns a display-only capacity view served through the cache.
// It does not take the class lock and may lag by one in-flight operation.
func (s *EnrollmentService) Snapshot(ctx context.Context, classID string) (*models.CapacitySnapshot, error) {
	if classID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "class id is required")
	}
	cacheKey := snapshotCachePrefix + classID
	var cached models.CapacitySnapshot
	if hit, _ := s.cache.Get(ctx, cacheKey, &cached); hit {
		return &cached, nil
	}

	capacity, err := s.capacities.Get(ctx, classID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	depth, err := s.waitlist.Depth(ctx, classID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load waitlist depth")
	}

	snapshot := &models.CapacitySnapshot{
		ClassID:       classID,
		Capacity:      capacity.Capacity,
		EnrolledCount: capacity.EnrolledCount,
		Available:     capacity.Available(),
		WaitlistDepth: depth,
		ObservedAt:    s.now(),
	}
	if err := s.cache.Set(ctx, cacheKey, snapshot, s.snapshotTTL); err != nil {
		s.logger.Warn("snapshot cache set failed", zap.String("class_id", classID), zap.Error(err))
	}
	return snapshot, nil
}

// ListWaitlist returns the ordered waitlist of a class.
func (s *EnrollmentService) ListWaitlist(ctx context.Context, classID string) ([]models.WaitlistEntry, error) {
	if classID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "class id is required")
	}
	entries, err := s.waitlist.ListByClass(ctx, classID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list waitlist")
	}
	return entries, nil
}

// List returns enrollments with pagination metadata.
func (s *EnrollmentService) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.Enrollment, *models.Pagination, error) {
	enrollments, total, err := s.enrollments.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return enrollments, pagination, nil
}

// Roster returns the enrolled students and the queued students of a class.
func (s *EnrollmentService) Roster(ctx context.Context, classID string) ([]models.Enrollment, []models.WaitlistEntry, error) {
	if _, err := s.capacities.Get(ctx, classID); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	enrolled, err := s.enrollments.ListEnrolledByClass(ctx, classID)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load roster")
	}
	queued, err := s.waitlist.ListByClass(ctx, classID)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load waitlist")
	}
	return enrolled, queued, nil
}

func (s *EnrollmentService) existsActive(ctx context.Context, studentID, classID string) (bool, error) {
	if _, err := s.enrollments.FindActive(ctx, studentID, classID); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check enrollment")
	}
	return true, nil
}

// locked runs fn inside the class critical section and records queueing time.
func (s *EnrollmentService) locked(ctx context.Context, classID string, fn func(ctx context.Context) error) error {
	waitStart := time.Now()
	return s.coordinator.Do(ctx, classID, func(ctx context.Context) error {
		s.metrics.ObserveLockWait(time.Since(waitStart))
		return fn(ctx)
	})
}

// broadcast publishes an event on the class topic and, when a student is
// involved, their personal topic plus the class teacher's roster topic.
// Student-facing events also fan out to the notification collaborator.
func (s *EnrollmentService) broadcast(ctx context.Context, eventType models.EventType, classID, studentID string, payload map[string]interface{}) {
	event := models.Event{
		Type:       eventType,
		ClassID:    classID,
		StudentID:  studentID,
		Payload:    payload,
		OccurredAt: s.now(),
	}
	if s.events != nil {
		event.Topic = models.ClassTopic(classID)
		s.events.Publish(event)
		if studentID != "" {
			event.Topic = models.StudentTopic(studentID)
			s.events.Publish(event)
		}
		if capacity, err := s.capacities.Get(ctx, classID); err == nil && capacity.TeacherID != "" {
			event.Topic = models.TeacherTopic(capacity.TeacherID)
			s.events.Publish(event)
		}
	}
	if s.notifier != nil && studentID != "" {
		switch eventType {
		case models.EventEnrollmentConfirmed, models.EventWaitlistJoined,
			models.EventWaitlistOffer, models.EventWaitlistPosition:
			s.notifier.Notify(studentID, eventType, payload)
		}
	}
}

func (s *EnrollmentService) invalidateSnapshot(ctx context.Context, classID string) {
	if err := s.cache.Invalidate(ctx, snapshotCachePrefix+classID); err != nil {
		s.logger.Warn("snapshot invalidation failed", zap.String("class_id", classID), zap.Error(err))
	}
}

func (s *EnrollmentService) refreshWaitlistDepth(ctx context.Context, classID string) {
	depth, err := s.waitlist.Depth(ctx, classID)
	if err != nil {
		return
	}
	s.metrics.SetWaitlistDepth(classID, depth)
}

func newID() string {
	return uuid.NewString()
}

package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ScepterCode/Project-Nest3-sub010/internal/models"
)

// CapacityRepository handles persistence of class seat counters.
type CapacityRepository struct {
	db *sqlx.DB
}

// NewCapacityRepository constructs the repository.
func NewCapacityRepository(db *sqlx.DB) *CapacityRepository {
	return &CapacityRepository{db: db}
}

// Create provisions the seat counter for a new class.
func (r *CapacityRepository) Create(ctx context.Context, capacity *models.ClassCapacity) error {
	now := time.Now().UTC()
	if capacity.CreatedAt.IsZero() {
		capacity.CreatedAt = now
	}
	capacity.UpdatedAt = now
	const query = `INSERT INTO class_capacity (class_id, teacher_id, capacity, enrolled_count, created_at, updated_at)
        VALUES (:class_id, :teacher_id, :capacity, :enrolled_count, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, capacity); err != nil {
		return fmt.Errorf("create class capacity: %w", err)
	}
	return nil
}

// Get returns the current counter row for a class.
func (r *CapacityRepository) Get(ctx context.Context, classID string) (*models.ClassCapacity, error) {
	const query = `SELECT class_id, teacher_id, capacity, enrolled_count, created_at, updated_at FROM class_capacity WHERE class_id = $1`
	var capacity models.ClassCapacity
	if err := r.db.GetContext(ctx, &capacity, query, classID); err != nil {
		return nil, err
	}
	return &capacity, nil
}

// TryReserveSeat atomically claims one seat if any is free. The single
// conditional UPDATE is the admission decision; callers must not pre-check a
// snapshot.
func (r *CapacityRepository) TryReserveSeat(ctx context.Context, classID string) (bool, error) {
	const query = `UPDATE class_capacity SET enrolled_count = enrolled_count + 1, updated_at = $2
        WHERE class_id = $1 AND enrolled_count < capacity`
	res, err := r.db.ExecContext(ctx, query, classID, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("reserve seat: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("reserve seat rows: %w", err)
	}
	return affected == 1, nil
}

// ReleaseSeat frees one seat, floored at zero, and returns the new count.
func (r *CapacityRepository) ReleaseSeat(ctx context.Context, classID string) (int, error) {
	const query = `UPDATE class_capacity SET enrolled_count = GREATEST(enrolled_count - 1, 0), updated_at = $2
        WHERE class_id = $1 RETURNING enrolled_count`
	var count int
	if err := r.db.GetContext(ctx, &count, query, classID, time.Now().UTC()); err != nil {
		return 0, fmt.Errorf("release seat: %w", err)
	}
	return count, nil
}

// SetCapacity applies an admin capacity adjustment and returns the updated row.
func (r *CapacityRepository) SetCapacity(ctx context.Context, classID string, newCapacity int) (*models.ClassCapacity, error) {
	const query = `UPDATE class_capacity SET capacity = $2, updated_at = $3 WHERE class_id = $1
        RETURNING class_id, teacher_id, capacity, enrolled_count, created_at, updated_at`
	var capacity models.ClassCapacity
	if err := r.db.GetContext(ctx, &capacity, query, classID, newCapacity, time.Now().UTC()); err != nil {
		return nil, err
	}
	return &capacity, nil
}

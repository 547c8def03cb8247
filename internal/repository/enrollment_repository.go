package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ScepterCode/Project-Nest3-sub010/internal/models"
)

// EnrollmentRepository handles persistence of enrollment records.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// List returns enrollments filtered by the provided criteria.
func (r *EnrollmentRepository) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.Enrollment, int, error) {
	base := `FROM enrollments e`
	var conditions []string
	var args []interface{}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("e.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.ClassID != "" {
		conditions = append(conditions, fmt.Sprintf("e.class_id = $%d", len(args)+1))
		args = append(args, filter.ClassID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("e.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"requested_at": "e.requested_at",
		"decided_at":   "e.decided_at",
		"status":       "e.status",
	}
	sortBy := filter.SortBy
	if sortBy == "" {
		sortBy = "requested_at"
	}
	orderBy := allowedSorts[sortBy]
	if orderBy == "" {
		orderBy = "e.requested_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT e.id, e.student_id, e.class_id, e.status, e.justification, e.requested_at, e.decided_at
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, base+clause, orderBy, order, size, offset)

	var enrollments []models.Enrollment
	if err := r.db.SelectContext(ctx, &enrollments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list enrollments: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count enrollments: %w", err)
	}
	return enrollments, total, nil
}

// FindActive returns the non-terminal enrollment for a student/class pair, or
// sql.ErrNoRows when none exists.
func (r *EnrollmentRepository) FindActive(ctx context.Context, studentID, classID string) (*models.Enrollment, error) {
	const query = `SELECT id, student_id, class_id, status, justification, requested_at, decided_at
        FROM enrollments WHERE student_id = $1 AND class_id = $2 AND status IN ($3, $4, $5)
        ORDER BY requested_at DESC LIMIT 1`
	var enrollment models.Enrollment
	err := r.db.GetContext(ctx, &enrollment, query, studentID, classID,
		models.EnrollmentStatusPending, models.EnrollmentStatusEnrolled, models.EnrollmentStatusWaitlisted)
	if err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// ExistsActive checks whether the pair already has a non-terminal enrollment.
func (r *EnrollmentRepository) ExistsActive(ctx context.Context, studentID, classID string) (bool, error) {
	if _, err := r.FindActive(ctx, studentID, classID); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check active enrollment: %w", err)
	}
	return true, nil
}

// Create persists a new enrollment record.
func (r *EnrollmentRepository) Create(ctx context.Context, enrollment *models.Enrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	if enrollment.RequestedAt.IsZero() {
		enrollment.RequestedAt = time.Now().UTC()
	}
	const query = `INSERT INTO enrollments (id, student_id, class_id, status, justification, requested_at, decided_at)
        VALUES (:id, :student_id, :class_id, :status, :justification, :requested_at, :decided_at)`
	if _, err := r.db.NamedExecContext(ctx, query, enrollment); err != nil {
		return fmt.Errorf("create enrollment: %w", err)
	}
	return nil
}

// UpdateStatus transitions an enrollment and stamps the decision time.
func (r *EnrollmentRepository) UpdateStatus(ctx context.Context, id string, status models.EnrollmentStatus, decidedAt *time.Time) error {
	const query = `UPDATE enrollments SET status = $2, decided_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, decidedAt); err != nil {
		return fmt.Errorf("update enrollment status: %w", err)
	}
	return nil
}

// ListEnrolledByClass returns the enrolled roster of a class.
func (r *EnrollmentRepository) ListEnrolledByClass(ctx context.Context, classID string) ([]models.Enrollment, error) {
	const query = `SELECT id, student_id, class_id, status, justification, requested_at, decided_at
        FROM enrollments WHERE class_id = $1 AND status = $2 ORDER BY decided_at ASC`
	var enrollments []models.Enrollment
	if err := r.db.SelectContext(ctx, &enrollments, query, classID, models.EnrollmentStatusEnrolled); err != nil {
		return nil, fmt.Errorf("list class roster: %w", err)
	}
	return enrollments, nil
}

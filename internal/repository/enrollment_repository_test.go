package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ScepterCode/Project-Nest3-sub010/internal/models"
)

func newEnrollmentRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	sqlxDB := sqlx.NewDb(db, "postgres")
	cleanup := func() {
		_ = sqlxDB.Close()
		db.Close()
	}
	return sqlxDB, mock, cleanup
}

func enrollmentColumns() []string {
	return []string{"id", "student_id", "class_id", "status", "justification", "requested_at", "decided_at"}
}

func TestEnrollmentRepositoryListFiltered(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	now := time.Now().UTC()
	rows := sqlmock.NewRows(enrollmentColumns()).
		AddRow("e-1", "student-1", "class-1", models.EnrollmentStatusEnrolled, nil, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("e.student_id = $1 AND e.class_id = $2")).
		WithArgs("student-1", "class-1").
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM enrollments e WHERE e.student_id = $1 AND e.class_id = $2")).
		WithArgs("student-1", "class-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	enrollments, total, err := repo.List(context.Background(), models.EnrollmentFilter{
		StudentID: "student-1",
		ClassID:   "class-1",
	})
	require.NoError(t, err)
	require.Len(t, enrollments, 1)
	assert.Equal(t, 1, total)
	assert.Equal(t, models.EnrollmentStatusEnrolled, enrollments[0].Status)
}

func TestEnrollmentRepositoryListDefaultsPagination(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY e.requested_at DESC LIMIT 20 OFFSET 0")).
		WillReturnRows(sqlmock.NewRows(enrollmentColumns()))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*)")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	_, total, err := repo.List(context.Background(), models.EnrollmentFilter{Page: -1, PageSize: 500})
	require.NoError(t, err)
	assert.Equal(t, 0, total)
}

func TestEnrollmentRepositoryFindActive(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	now := time.Now().UTC()
	rows := sqlmock.NewRows(enrollmentColumns()).
		AddRow("e-1", "student-1", "class-1", models.EnrollmentStatusWaitlisted, nil, now, nil)
	mock.ExpectQuery(regexp.QuoteMeta("status IN ($3, $4, $5)")).
		WithArgs("student-1", "class-1",
			models.EnrollmentStatusPending, models.EnrollmentStatusEnrolled, models.EnrollmentStatusWaitlisted).
		WillReturnRows(rows)

	enrollment, err := repo.FindActive(context.Background(), "student-1", "class-1")
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusWaitlisted, enrollment.Status)
}

func TestEnrollmentRepositoryExistsActive(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("status IN")).
		WithArgs("student-1", "class-1",
			models.EnrollmentStatusPending, models.EnrollmentStatusEnrolled, models.EnrollmentStatusWaitlisted).
		WillReturnError(sql.ErrNoRows)

	exists, err := repo.ExistsActive(context.Background(), "student-1", "class-1")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestEnrollmentRepositoryCreateAssignsID(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO enrollments")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	enrollment := &models.Enrollment{
		StudentID: "student-1",
		ClassID:   "class-1",
		Status:    models.EnrollmentStatusEnrolled,
	}
	require.NoError(t, repo.Create(context.Background(), enrollment))
	assert.NotEmpty(t, enrollment.ID)
	assert.False(t, enrollment.RequestedAt.IsZero())
}

func TestEnrollmentRepositoryUpdateStatus(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	now := time.Now().UTC()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE enrollments SET status = $2, decided_at = $3 WHERE id = $1")).
		WithArgs("e-1", models.EnrollmentStatusDropped, &now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdateStatus(context.Background(), "e-1", models.EnrollmentStatusDropped, &now))
}

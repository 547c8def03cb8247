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

func newWaitlistRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
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

func waitlistColumns() []string {
	return []string{"id", "student_id", "class_id", "position", "offer_status", "offer_expires_at", "joined_at"}
}

func TestWaitlistRepositoryAppend(t *testing.T) {
	db, mock, cleanup := newWaitlistRepoMock(t)
	defer cleanup()
	repo := NewWaitlistRepository(db)

	rows := sqlmock.NewRows([]string{"position"}).AddRow(3)
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO waitlist_entries")).
		WithArgs(sqlmock.AnyArg(), "student-1", "class-1", models.OfferStatusNone, sqlmock.AnyArg()).
		WillReturnRows(rows)

	entry, err := repo.Append(context.Background(), "class-1", "student-1")
	require.NoError(t, err)
	assert.Equal(t, 3, entry.Position)
	assert.Equal(t, models.OfferStatusNone, entry.OfferStatus)
	assert.NotEmpty(t, entry.ID)
}

func TestWaitlistRepositoryNextCandidate(t *testing.T) {
	db, mock, cleanup := newWaitlistRepoMock(t)
	defer cleanup()
	repo := NewWaitlistRepository(db)

	rows := sqlmock.NewRows(waitlistColumns()).
		AddRow("entry-1", "student-1", "class-1", 1, models.OfferStatusNone, nil, time.Now().UTC())
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY position ASC LIMIT 1")).
		WithArgs("class-1", models.OfferStatusNone).
		WillReturnRows(rows)

	entry, err := repo.NextCandidate(context.Background(), "class-1")
	require.NoError(t, err)
	assert.Equal(t, "student-1", entry.StudentID)
	assert.Equal(t, 1, entry.Position)

	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY position ASC LIMIT 1")).
		WithArgs("class-1", models.OfferStatusNone).
		WillReturnError(sql.ErrNoRows)
	_, err = repo.NextCandidate(context.Background(), "class-1")
	assert.Equal(t, sql.ErrNoRows, err)
}

func TestWaitlistRepositoryOutstandingOffer(t *testing.T) {
	db, mock, cleanup := newWaitlistRepoMock(t)
	defer cleanup()
	repo := NewWaitlistRepository(db)

	expires := time.Now().UTC().Add(time.Hour)
	rows := sqlmock.NewRows(waitlistColumns()).
		AddRow("entry-1", "student-1", "class-1", 1, models.OfferStatusOffered, expires, time.Now().UTC())
	mock.ExpectQuery(regexp.QuoteMeta("offer_status = $2 LIMIT 1")).
		WithArgs("class-1", models.OfferStatusOffered).
		WillReturnRows(rows)

	entry, err := repo.OutstandingOffer(context.Background(), "class-1")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, models.OfferStatusOffered, entry.OfferStatus)

	// No outstanding offer is a nil entry, not an error.
	mock.ExpectQuery(regexp.QuoteMeta("offer_status = $2 LIMIT 1")).
		WithArgs("class-1", models.OfferStatusOffered).
		WillReturnError(sql.ErrNoRows)
	entry, err = repo.OutstandingOffer(context.Background(), "class-1")
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestWaitlistRepositoryMarkOfferedAndReset(t *testing.T) {
	db, mock, cleanup := newWaitlistRepoMock(t)
	defer cleanup()
	repo := NewWaitlistRepository(db)

	expires := time.Now().UTC().Add(time.Hour)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE waitlist_entries SET offer_status = $2, offer_expires_at = $3 WHERE id = $1")).
		WithArgs("entry-1", models.OfferStatusOffered, expires).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.MarkOffered(context.Background(), "entry-1", expires))

	mock.ExpectExec(regexp.QuoteMeta("UPDATE waitlist_entries SET offer_status = $2, offer_expires_at = NULL WHERE id = $1")).
		WithArgs("entry-1", models.OfferStatusNone).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.ResetOffer(context.Background(), "entry-1"))
}

func TestWaitlistRepositoryRemoveRenumbersTail(t *testing.T) {
	db, mock, cleanup := newWaitlistRepoMock(t)
	defer cleanup()
	repo := NewWaitlistRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("DELETE FROM waitlist_entries WHERE id = $1 RETURNING class_id, position")).
		WithArgs("entry-2").
		WillReturnRows(sqlmock.NewRows([]string{"class_id", "position"}).AddRow("class-1", 2))
	shiftedRows := sqlmock.NewRows(waitlistColumns()).
		AddRow("entry-3", "student-3", "class-1", 2, models.OfferStatusNone, nil, time.Now().UTC()).
		AddRow("entry-4", "student-4", "class-1", 3, models.OfferStatusNone, nil, time.Now().UTC())
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE waitlist_entries SET position = position - 1")).
		WithArgs("class-1", 2).
		WillReturnRows(shiftedRows)
	mock.ExpectCommit()

	shifted, err := repo.Remove(context.Background(), "entry-2")
	require.NoError(t, err)
	require.Len(t, shifted, 2)
	assert.Equal(t, "student-3", shifted[0].StudentID)
	assert.Equal(t, 2, shifted[0].Position)
	assert.Equal(t, 3, shifted[1].Position)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWaitlistRepositoryRemoveMissingEntry(t *testing.T) {
	db, mock, cleanup := newWaitlistRepoMock(t)
	defer cleanup()
	repo := NewWaitlistRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("DELETE FROM waitlist_entries")).
		WithArgs("entry-99").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	_, err := repo.Remove(context.Background(), "entry-99")
	require.Error(t, err)
}

func TestWaitlistRepositoryClassesWithExpiredOffers(t *testing.T) {
	db, mock, cleanup := newWaitlistRepoMock(t)
	defer cleanup()
	repo := NewWaitlistRepository(db)

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"class_id"}).AddRow("class-1").AddRow("class-2")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT DISTINCT class_id FROM waitlist_entries")).
		WithArgs(models.OfferStatusOffered, now).
		WillReturnRows(rows)

	classIDs, err := repo.ClassesWithExpiredOffers(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, []string{"class-1", "class-2"}, classIDs)
}

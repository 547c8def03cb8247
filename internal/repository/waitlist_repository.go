package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ScepterCode/Project-Nest3-sub010/internal/models"
)

// WaitlistRepository handles persistence of the per-class FIFO waitlist.
// Positions within a class are kept contiguous starting at 1; every removal
// renumbers the tail inside the same transaction.
type WaitlistRepository struct {
	db *sqlx.DB
}

// NewWaitlistRepository constructs the repository.
func NewWaitlistRepository(db *sqlx.DB) *WaitlistRepository {
	return &WaitlistRepository{db: db}
}

// Append adds a student at the tail of a class waitlist and returns the
// created entry.
func (r *WaitlistRepository) Append(ctx context.Context, classID, studentID string) (*models.WaitlistEntry, error) {
	entry := &models.WaitlistEntry{
		ID:          uuid.NewString(),
		StudentID:   studentID,
		ClassID:     classID,
		OfferStatus: models.OfferStatusNone,
		JoinedAt:    time.Now().UTC(),
	}
	const query = `INSERT INTO waitlist_entries (id, student_id, class_id, position, offer_status, offer_expires_at, joined_at)
        VALUES ($1, $2, $3, (SELECT COALESCE(MAX(position), 0) + 1 FROM waitlist_entries WHERE class_id = $3), $4, NULL, $5)
        RETURNING position`
	if err := r.db.GetContext(ctx, &entry.Position, query, entry.ID, studentID, classID, entry.OfferStatus, entry.JoinedAt); err != nil {
		return nil, fmt.Errorf("append waitlist entry: %w", err)
	}
	return entry, nil
}

// Find returns the waitlist entry for a student/class pair, or sql.ErrNoRows.
func (r *WaitlistRepository) Find(ctx context.Context, classID, studentID string) (*models.WaitlistEntry, error) {
	const query = `SELECT id, student_id, class_id, position, offer_status, offer_expires_at, joined_at
        FROM waitlist_entries WHERE class_id = $1 AND student_id = $2`
	var entry models.WaitlistEntry
	if err := r.db.GetContext(ctx, &entry, query, classID, studentID); err != nil {
		return nil, err
	}
	return &entry, nil
}

// ListByClass returns the waitlist of a class in position order.
func (r *WaitlistRepository) ListByClass(ctx context.Context, classID string) ([]models.WaitlistEntry, error) {
	const query = `SELECT id, student_id, class_id, position, offer_status, offer_expires_at, joined_at
        FROM waitlist_entries WHERE class_id = $1 ORDER BY position ASC`
	var entries []models.WaitlistEntry
	if err := r.db.SelectContext(ctx, &entries, query, classID); err != nil {
		return nil, fmt.Errorf("list waitlist: %w", err)
	}
	return entries, nil
}

// Depth returns the number of queued students for a class.
func (r *WaitlistRepository) Depth(ctx context.Context, classID string) (int, error) {
	const query = `SELECT COUNT(*) FROM waitlist_entries WHERE class_id = $1`
	var depth int
	if err := r.db.GetContext(ctx, &depth, query, classID); err != nil {
		return 0, fmt.Errorf("waitlist depth: %w", err)
	}
	return depth, nil
}

// NextCandidate returns the lowest-position entry that has not been offered a
// seat yet, or sql.ErrNoRows when the whole queue has been consumed.
func (r *WaitlistRepository) NextCandidate(ctx context.Context, classID string) (*models.WaitlistEntry, error) {
	const query = `SELECT id, student_id, class_id, position, offer_status, offer_expires_at, joined_at
        FROM waitlist_entries WHERE class_id = $1 AND offer_status = $2 ORDER BY position ASC LIMIT 1`
	var entry models.WaitlistEntry
	if err := r.db.GetContext(ctx, &entry, query, classID, models.OfferStatusNone); err != nil {
		return nil, err
	}
	return &entry, nil
}

// OutstandingOffer returns the currently offered entry for a class, if any.
func (r *WaitlistRepository) OutstandingOffer(ctx context.Context, classID string) (*models.WaitlistEntry, error) {
	const query = `SELECT id, student_id, class_id, position, offer_status, offer_expires_at, joined_at
        FROM waitlist_entries WHERE class_id = $1 AND offer_status = $2 LIMIT 1`
	var entry models.WaitlistEntry
	err := r.db.GetContext(ctx, &entry, query, classID, models.OfferStatusOffered)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("find outstanding offer: %w", err)
	}
	return &entry, nil
}

// MarkOffered stamps an entry as holding the active seat offer.
func (r *WaitlistRepository) MarkOffered(ctx context.Context, id string, expiresAt time.Time) error {
	const query = `UPDATE waitlist_entries SET offer_status = $2, offer_expires_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, models.OfferStatusOffered, expiresAt); err != nil {
		return fmt.Errorf("mark offered: %w", err)
	}
	return nil
}

// ResetOffer returns an entry to the plain queued state. Used when an accepted
// offer cannot be honored because capacity shrank underneath it.
func (r *WaitlistRepository) ResetOffer(ctx context.Context, id string) error {
	const query = `UPDATE waitlist_entries SET offer_status = $2, offer_expires_at = NULL WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, models.OfferStatusNone); err != nil {
		return fmt.Errorf("reset offer: %w", err)
	}
	return nil
}

// Remove deletes an entry and renumbers everything behind it so positions stay
// contiguous. Returns the entries whose position shifted, already renumbered.
func (r *WaitlistRepository) Remove(ctx context.Context, id string) ([]models.WaitlistEntry, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin waitlist removal: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var removed models.WaitlistEntry
	const deleteQuery = `DELETE FROM waitlist_entries WHERE id = $1 RETURNING class_id, position`
	if err := tx.QueryRowxContext(ctx, deleteQuery, id).Scan(&removed.ClassID, &removed.Position); err != nil {
		return nil, fmt.Errorf("delete waitlist entry: %w", err)
	}

	const renumberQuery = `UPDATE waitlist_entries SET position = position - 1
        WHERE class_id = $1 AND position > $2
        RETURNING id, student_id, class_id, position, offer_status, offer_expires_at, joined_at`
	var shifted []models.WaitlistEntry
	rows, err := tx.QueryxContext(ctx, renumberQuery, removed.ClassID, removed.Position)
	if err != nil {
		return nil, fmt.Errorf("renumber waitlist: %w", err)
	}
	for rows.Next() {
		var entry models.WaitlistEntry
		if err := rows.StructScan(&entry); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan renumbered entry: %w", err)
		}
		shifted = append(shifted, entry)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("renumber waitlist rows: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit waitlist removal: %w", err)
	}
	return shifted, nil
}

// ClassesWithExpiredOffers returns the classes holding an offer whose window
// has passed, for the periodic sweep.
func (r *WaitlistRepository) ClassesWithExpiredOffers(ctx context.Context, now time.Time) ([]string, error) {
	const query = `SELECT DISTINCT class_id FROM waitlist_entries
        WHERE offer_status = $1 AND offer_expires_at IS NOT NULL AND offer_expires_at < $2`
	var classIDs []string
	if err := r.db.SelectContext(ctx, &classIDs, query, models.OfferStatusOffered, now); err != nil {
		return nil, fmt.Errorf("list expired offers: %w", err)
	}
	return classIDs, nil
}

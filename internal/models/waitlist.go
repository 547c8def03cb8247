package models

import "time"

// OfferStatus tracks the offer cycle of a waitlist entry.
type OfferStatus string

// Offer states. At most one entry per class may be OFFERED at a time.
const (
	OfferStatusNone     OfferStatus = "NONE"
	OfferStatusOffered  OfferStatus = "OFFERED"
	OfferStatusAccepted OfferStatus = "ACCEPTED"
	OfferStatusDeclined OfferStatus = "DECLINED"
	OfferStatusExpired  OfferStatus = "EXPIRED"
)

// OfferResponse is a student's answer to a seat offer.
type OfferResponse string

// Valid offer responses.
const (
	OfferResponseAccept  OfferResponse = "accept"
	OfferResponseDecline OfferResponse = "decline"
)

// WaitlistEntry is one student's position in a class waitlist. Positions
// within a class are contiguous starting at 1; removing an entry renumbers
// everything behind it.
type WaitlistEntry struct {
	ID             string      `db:"id" json:"id"`
	StudentID      string      `db:"student_id" json:"student_id"`
	ClassID        string      `db:"class_id" json:"class_id"`
	Position       int         `db:"position" json:"position"`
	OfferStatus    OfferStatus `db:"offer_status" json:"offer_status"`
	OfferExpiresAt *time.Time  `db:"offer_expires_at" json:"offer_expires_at,omitempty"`
	JoinedAt       time.Time   `db:"joined_at" json:"joined_at"`
}

// OfferExpired reports whether an outstanding offer has passed its window.
func (e WaitlistEntry) OfferExpired(now time.Time) bool {
	return e.OfferStatus == OfferStatusOffered && e.OfferExpiresAt != nil && now.After(*e.OfferExpiresAt)
}

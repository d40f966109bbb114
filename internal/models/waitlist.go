package models

import (
	"time"

	"github.com/google/uuid"
)

// WaitlistEntry is a user waiting for a YES seat on a full event.
// Entries are promoted first-joined-first-offered; Seq breaks joined-at ties
// so promotion order stays deterministic.
type WaitlistEntry struct {
	ID             uuid.UUID  `json:"id"`
	EventID        uuid.UUID  `json:"event_id"`
	UserID         uuid.UUID  `json:"user_id"`
	Seq            int64      `json:"seq"`
	JoinedAt       time.Time  `json:"joined_at"`
	OfferedAt      *time.Time `json:"offered_at,omitempty"`
	OfferExpiresAt *time.Time `json:"offer_expires_at,omitempty"`
}

// HasActiveOffer reports whether the entry holds an unexpired seat offer at now.
func (w *WaitlistEntry) HasActiveOffer(now time.Time) bool {
	return w.OfferedAt != nil && w.OfferExpiresAt != nil && now.Before(*w.OfferExpiresAt)
}

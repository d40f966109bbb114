package models

import (
	"time"

	"github.com/google/uuid"
)

// Invite is a shareable link token granting access to view and RSVP to an
// event before it appears in public listings.
type Invite struct {
	ID        uuid.UUID `json:"id"`
	EventID   uuid.UUID `json:"event_id"`
	Token     string    `json:"token"`
	CreatedBy uuid.UUID `json:"created_by"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

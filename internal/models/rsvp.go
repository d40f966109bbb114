package models

import (
	"time"

	"github.com/google/uuid"
)

// Response is an attendee's answer to an event.
type Response string

const (
	ResponseYes   Response = "YES"
	ResponseNo    Response = "NO"
	ResponseMaybe Response = "MAYBE"
)

// Valid reports whether r is a known response value.
func (r Response) Valid() bool {
	switch r {
	case ResponseYes, ResponseNo, ResponseMaybe:
		return true
	}
	return false
}

// RSVP is a user's response to an event. Exactly one per (event, user);
// the engine always upserts. NeedsReconfirm is set externally when event
// details change materially and cleared by every successful admission.
type RSVP struct {
	ID             uuid.UUID `json:"id"`
	EventID        uuid.UUID `json:"event_id"`
	UserID         uuid.UUID `json:"user_id"`
	Response       Response  `json:"response"`
	NeedsReconfirm bool      `json:"needs_reconfirm"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

package models

import (
	"time"

	"github.com/google/uuid"
)

// Connection is another user derived from shared attendance: both held YES
// RSVPs on at least one completed event.
type Connection struct {
	UserID       uuid.UUID `json:"user_id"`
	FullName     string    `json:"full_name"`
	SharedEvents int       `json:"shared_events"`
	LastEventAt  time.Time `json:"last_event_at"`
}

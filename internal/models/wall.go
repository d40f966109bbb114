package models

import (
	"time"

	"github.com/google/uuid"
)

// WallPost is a message on an event's wall. ParentID points at the post being
// replied to; nil means a top-level post. Deleted posts keep their row so
// replies stay attached.
type WallPost struct {
	ID        uuid.UUID  `json:"id"`
	EventID   uuid.UUID  `json:"event_id"`
	UserID    uuid.UUID  `json:"user_id"`
	ParentID  *uuid.UUID `json:"parent_id,omitempty"`
	Content   string     `json:"content"`
	Deleted   bool       `json:"deleted"`
	CreatedAt time.Time  `json:"created_at"`
}

package models

import (
	"time"

	"github.com/google/uuid"
)

// EventState is the stored lifecycle intent of an event. It changes only by
// explicit organizer action; everything time-derived lives in EffectiveState.
type EventState string

const (
	EventStateDraft     EventState = "DRAFT"
	EventStatePublished EventState = "PUBLISHED"
	EventStateCancelled EventState = "CANCELLED"
	EventStateCompleted EventState = "COMPLETED"
)

// Valid reports whether s is a known stored state.
func (s EventState) Valid() bool {
	switch s {
	case EventStateDraft, EventStatePublished, EventStateCancelled, EventStateCompleted:
		return true
	}
	return false
}

// EffectiveState is the lifecycle phase of an event after combining its stored
// intent with the current time. It is computed on read, never persisted.
type EffectiveState string

const (
	EffectiveDraft     EffectiveState = "DRAFT"
	EffectivePublished EffectiveState = "PUBLISHED"
	EffectiveOngoing   EffectiveState = "ONGOING"
	EffectiveClosed    EffectiveState = "CLOSED"
	EffectiveCompleted EffectiveState = "COMPLETED"
	EffectiveCancelled EffectiveState = "CANCELLED"
)

// Event is a planned gathering with an optional attendance capacity.
// Capacity nil means unlimited.
type Event struct {
	ID              uuid.UUID  `json:"id"`
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	Location        string     `json:"location,omitempty"`
	CreatedBy       uuid.UUID  `json:"created_by"`
	StoredState     EventState `json:"stored_state"`
	StartsAt        time.Time  `json:"starts_at"`
	EndsAt          *time.Time `json:"ends_at,omitempty"`
	RSVPDeadline    *time.Time `json:"rsvp_deadline,omitempty"`
	Capacity        *int       `json:"capacity,omitempty"`
	WaitlistEnabled bool       `json:"waitlist_enabled"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// HasCapacity reports whether the event limits YES attendance.
func (e *Event) HasCapacity() bool {
	return e.Capacity != nil
}

package models

import (
	"time"

	"github.com/google/uuid"
)

// Audience filters for mass messages.
const (
	AudienceAll      = "all"
	AudienceYes      = "yes"
	AudienceNo       = "no"
	AudienceMaybe    = "maybe"
	AudienceWaitlist = "waitlist"
)

// Delivery status values.
const (
	DeliveryStatusPending = "pending"
	DeliveryStatusSent    = "sent"
	DeliveryStatusFailed  = "failed"
)

// MassMessage is an organizer broadcast to a filtered slice of an event's
// respondents.
type MassMessage struct {
	ID        uuid.UUID `json:"id"`
	EventID   uuid.UUID `json:"event_id"`
	SenderID  uuid.UUID `json:"sender_id"`
	Audience  string    `json:"audience"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// MessageDelivery records one recipient of a mass message and its delivery
// outcome.
type MessageDelivery struct {
	ID             uuid.UUID  `json:"id"`
	MessageID      uuid.UUID  `json:"message_id"`
	RecipientID    uuid.UUID  `json:"recipient_id"`
	RecipientEmail string     `json:"recipient_email"`
	Status         string     `json:"status"`
	SentAt         *time.Time `json:"sent_at,omitempty"`
	ErrorMessage   string     `json:"error_message,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

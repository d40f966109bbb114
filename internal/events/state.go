package events

import (
	"time"

	"github.com/whtouche/gather-sub002/internal/models"
)

// EffectiveState derives the lifecycle phase of an event at now from its
// stored state plus time boundaries. Stored organizer intent (DRAFT, CANCELLED,
// COMPLETED) wins over anything time-derived; otherwise the clock decides.
// The result is never persisted - callers recompute it on every decision so a
// PUBLISHED event becomes ONGOING, COMPLETED or CLOSED without any write.
//
// Precedence, first match wins:
//  1. stored DRAFT
//  2. stored CANCELLED
//  3. stored COMPLETED
//  4. now past the end time (or the start time when no end time is set) -> COMPLETED
//  5. now past the start time -> ONGOING
//  6. now past the RSVP deadline (when set) -> CLOSED
//  7. PUBLISHED
func EffectiveState(ev *models.Event, now time.Time) models.EffectiveState {
	switch ev.StoredState {
	case models.EventStateDraft:
		return models.EffectiveDraft
	case models.EventStateCancelled:
		return models.EffectiveCancelled
	case models.EventStateCompleted:
		return models.EffectiveCompleted
	}

	completionBoundary := ev.StartsAt
	if ev.EndsAt != nil {
		completionBoundary = *ev.EndsAt
	}
	if !now.Before(completionBoundary) {
		return models.EffectiveCompleted
	}
	if !now.Before(ev.StartsAt) {
		return models.EffectiveOngoing
	}
	if ev.RSVPDeadline != nil && now.After(*ev.RSVPDeadline) {
		return models.EffectiveClosed
	}
	return models.EffectivePublished
}

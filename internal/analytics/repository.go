package analytics

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// EventStats is the organizer dashboard summary for one event.
type EventStats struct {
	EventID          uuid.UUID `json:"event_id"`
	Yes              int       `json:"yes"`
	No               int       `json:"no"`
	Maybe            int       `json:"maybe"`
	NeedsReconfirm   int       `json:"needs_reconfirm"`
	WaitlistDepth    int       `json:"waitlist_depth"`
	ActiveOffers     int       `json:"active_offers"`
	WallPosts        int       `json:"wall_posts"`
	MessagesSent     int       `json:"messages_sent"`
	SeatsRemaining   *int      `json:"seats_remaining,omitempty"`
	AnsweredProfiles int       `json:"answered_profiles"`
}

// Repository aggregates per-event statistics.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an analytics repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// EventStats computes the dashboard summary in one round trip.
func (r *Repository) EventStats(ctx context.Context, eventID uuid.UUID) (*EventStats, error) {
	const q = `
		SELECT
			COUNT(*) FILTER (WHERE rv.response = 'YES'),
			COUNT(*) FILTER (WHERE rv.response = 'NO'),
			COUNT(*) FILTER (WHERE rv.response = 'MAYBE'),
			COUNT(*) FILTER (WHERE rv.needs_reconfirm),
			(SELECT COUNT(*) FROM waitlist_entries w WHERE w.event_id = $1),
			(SELECT COUNT(*) FROM waitlist_entries w
				WHERE w.event_id = $1 AND w.offered_at IS NOT NULL AND w.offer_expires_at > NOW()),
			(SELECT COUNT(*) FROM wall_posts p WHERE p.event_id = $1 AND NOT p.deleted),
			(SELECT COUNT(*) FROM mass_messages m WHERE m.event_id = $1),
			(SELECT COUNT(DISTINCT a.user_id) FROM answers a
				JOIN questions qu ON qu.id = a.question_id WHERE qu.event_id = $1),
			(SELECT e.capacity FROM events e WHERE e.id = $1)
		FROM rsvps rv WHERE rv.event_id = $1`

	st := &EventStats{EventID: eventID}
	var capacity *int
	err := r.pool.QueryRow(ctx, q, eventID).Scan(
		&st.Yes, &st.No, &st.Maybe, &st.NeedsReconfirm,
		&st.WaitlistDepth, &st.ActiveOffers, &st.WallPosts, &st.MessagesSent,
		&st.AnsweredProfiles, &capacity)
	if err != nil {
		return nil, err
	}
	if capacity != nil {
		remaining := *capacity - st.Yes
		if remaining < 0 {
			remaining = 0
		}
		st.SeatsRemaining = &remaining
	}
	return st, nil
}

package events

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/whtouche/gather-sub002/internal/models"
)

// Repository handles event persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an events repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a new event in DRAFT.
func (r *Repository) Create(ctx context.Context, ev *models.Event) error {
	const q = `INSERT INTO events (id, title, description, location, created_by, stored_state, starts_at, ends_at, rsvp_deadline, capacity, waitlist_enabled)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, 'DRAFT', $5, $6, $7, $8, $9)
		RETURNING id, stored_state, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, ev.Title, ev.Description, ev.Location, ev.CreatedBy,
		ev.StartsAt, ev.EndsAt, ev.RSVPDeadline, ev.Capacity, ev.WaitlistEnabled).
		Scan(&ev.ID, &ev.StoredState, &ev.CreatedAt, &ev.UpdatedAt)
}

// GetByID returns an event by ID, or nil when absent.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	const q = `SELECT id, title, description, location, created_by, stored_state, starts_at, ends_at, rsvp_deadline, capacity, waitlist_enabled, created_at, updated_at
		FROM events WHERE id = $1`
	var ev models.Event
	err := r.pool.QueryRow(ctx, q, id).Scan(&ev.ID, &ev.Title, &ev.Description, &ev.Location, &ev.CreatedBy,
		&ev.StoredState, &ev.StartsAt, &ev.EndsAt, &ev.RSVPDeadline, &ev.Capacity, &ev.WaitlistEnabled, &ev.CreatedAt, &ev.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &ev, nil
}

// List returns events, optionally filtered to one creator. Published-only
// listings are the caller's concern (effective state is computed, not stored).
func (r *Repository) List(ctx context.Context, createdBy *uuid.UUID) ([]models.Event, error) {
	base := `SELECT id, title, description, location, created_by, stored_state, starts_at, ends_at, rsvp_deadline, capacity, waitlist_enabled, created_at, updated_at FROM events`
	var args []interface{}
	cond := ""
	if createdBy != nil {
		cond = " WHERE created_by = $1"
		args = append(args, *createdBy)
	}
	rows, err := r.pool.Query(ctx, base+cond+" ORDER BY starts_at ASC", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.Event
	for rows.Next() {
		var ev models.Event
		if err := rows.Scan(&ev.ID, &ev.Title, &ev.Description, &ev.Location, &ev.CreatedBy,
			&ev.StoredState, &ev.StartsAt, &ev.EndsAt, &ev.RSVPDeadline, &ev.Capacity, &ev.WaitlistEnabled, &ev.CreatedAt, &ev.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, ev)
	}
	return list, rows.Err()
}

// UpdateParams are the mutable event fields. Nil pointers leave the stored
// value untouched; the Clear flags reset a nullable field (end time, RSVP
// deadline, capacity) back to NULL, which a pointer alone cannot express.
type UpdateParams struct {
	Title             *string
	Description       *string
	Location          *string
	StartsAt          *time.Time
	EndsAt            *time.Time
	ClearEndsAt       bool
	RSVPDeadline      *time.Time
	ClearRSVPDeadline bool
	Capacity          *int
	ClearCapacity     bool
	WaitlistEnabled   *bool
}

func (p UpdateParams) buildQuery(id uuid.UUID) (string, []interface{}) {
	set := []string{"updated_at = NOW()"}
	var args []interface{}
	add := func(col string, v interface{}) {
		args = append(args, v)
		set = append(set, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if p.Title != nil {
		add("title", *p.Title)
	}
	if p.Description != nil {
		add("description", *p.Description)
	}
	if p.Location != nil {
		add("location", *p.Location)
	}
	if p.StartsAt != nil {
		add("starts_at", *p.StartsAt)
	}
	switch {
	case p.ClearEndsAt:
		set = append(set, "ends_at = NULL")
	case p.EndsAt != nil:
		add("ends_at", *p.EndsAt)
	}
	switch {
	case p.ClearRSVPDeadline:
		set = append(set, "rsvp_deadline = NULL")
	case p.RSVPDeadline != nil:
		add("rsvp_deadline", *p.RSVPDeadline)
	}
	switch {
	case p.ClearCapacity:
		set = append(set, "capacity = NULL")
	case p.Capacity != nil:
		add("capacity", *p.Capacity)
	}
	if p.WaitlistEnabled != nil {
		add("waitlist_enabled", *p.WaitlistEnabled)
	}
	args = append(args, id)
	q := fmt.Sprintf("UPDATE events SET %s WHERE id = $%d", strings.Join(set, ", "), len(args))
	return q, args
}

// Update patches event fields and bumps updated_at.
func (r *Repository) Update(ctx context.Context, id uuid.UUID, p UpdateParams) error {
	q, args := p.buildQuery(id)
	_, err := r.pool.Exec(ctx, q, args...)
	return err
}

// SetStoredState records an explicit organizer lifecycle action
// (publish, cancel, complete).
func (r *Repository) SetStoredState(ctx context.Context, id uuid.UUID, state models.EventState) error {
	const q = `UPDATE events SET stored_state = $1, updated_at = NOW() WHERE id = $2`
	_, err := r.pool.Exec(ctx, q, string(state), id)
	return err
}

// FlagReconfirmation marks every RSVP on the event as needing reconfirmation.
// Called after a material detail change (time or place moved). The flag is
// cleared by each attendee's next successful admission.
func (r *Repository) FlagReconfirmation(ctx context.Context, eventID uuid.UUID) (int64, error) {
	const q = `UPDATE rsvps SET needs_reconfirm = TRUE, updated_at = NOW() WHERE event_id = $1`
	tag, err := r.pool.Exec(ctx, q, eventID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// Delete removes an event. RSVPs, waitlist entries, questions and wall posts
// cascade at the store level.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	const q = `DELETE FROM events WHERE id = $1`
	_, err := r.pool.Exec(ctx, q, id)
	return err
}

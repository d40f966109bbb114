package rsvp

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/whtouche/gather-sub002/internal/events"
	"github.com/whtouche/gather-sub002/internal/models"
	"github.com/whtouche/gather-sub002/internal/questionnaire"
)

// Repository is the Postgres-backed admission store.
type Repository struct {
	pool      *pgxpool.Pool
	eventRepo *events.Repository
}

// NewRepository creates an RSVP repository.
func NewRepository(pool *pgxpool.Pool, eventRepo *events.Repository) *Repository {
	return &Repository{pool: pool, eventRepo: eventRepo}
}

// GetEvent loads the event, or nil when absent.
func (r *Repository) GetEvent(ctx context.Context, eventID uuid.UUID) (*models.Event, error) {
	return r.eventRepo.GetByID(ctx, eventID)
}

// Admit performs the capacity check and the RSVP+answers upsert in one
// transaction. The event row is locked FOR UPDATE, which serializes all
// admissions for the same event across handlers and processes - a count taken
// under that lock cannot go stale before the write commits, so the YES count
// never exceeds capacity.
func (r *Repository) Admit(ctx context.Context, p AdmitParams) (*models.RSVP, models.Response, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, "", err
	}
	defer tx.Rollback(ctx)

	var capacity *int
	if err := tx.QueryRow(ctx, `SELECT capacity FROM events WHERE id = $1 FOR UPDATE`, p.EventID).
		Scan(&capacity); err != nil {
		return nil, "", err
	}

	var prev models.Response
	err = tx.QueryRow(ctx, `SELECT response FROM rsvps WHERE event_id = $1 AND user_id = $2`,
		p.EventID, p.UserID).Scan(&prev)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, "", err
	}

	// A user who already holds YES keeps their seat; only a net-new YES
	// consumes one.
	if p.Response == models.ResponseYes && capacity != nil && prev != models.ResponseYes {
		var yesCount int
		const countQ = `SELECT COUNT(*) FROM rsvps WHERE event_id = $1 AND user_id <> $2 AND response = 'YES'`
		if err := tx.QueryRow(ctx, countQ, p.EventID, p.UserID).Scan(&yesCount); err != nil {
			return nil, "", err
		}
		if yesCount >= *capacity {
			return nil, "", ErrCapacityFull
		}
	}

	const upsertQ = `INSERT INTO rsvps (id, event_id, user_id, response, needs_reconfirm)
		VALUES (gen_random_uuid(), $1, $2, $3, FALSE)
		ON CONFLICT (event_id, user_id) DO UPDATE SET response = EXCLUDED.response, needs_reconfirm = FALSE, updated_at = NOW()
		RETURNING id, event_id, user_id, response, needs_reconfirm, created_at, updated_at`
	var rec models.RSVP
	if err := tx.QueryRow(ctx, upsertQ, p.EventID, p.UserID, string(p.Response)).
		Scan(&rec.ID, &rec.EventID, &rec.UserID, &rec.Response, &rec.NeedsReconfirm, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return nil, "", err
	}

	// A confirmed YES holder never stays on the waitlist.
	if p.Response == models.ResponseYes {
		if _, err := tx.Exec(ctx, `DELETE FROM waitlist_entries WHERE event_id = $1 AND user_id = $2`,
			p.EventID, p.UserID); err != nil {
			return nil, "", err
		}
	}

	if err := questionnaire.UpsertAnswers(ctx, tx, p.UserID, p.Answers); err != nil {
		return nil, "", err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, "", err
	}
	return &rec, prev, nil
}

// Withdraw deletes the RSVP and returns the deleted response.
func (r *Repository) Withdraw(ctx context.Context, eventID, userID uuid.UUID) (models.Response, error) {
	const q = `DELETE FROM rsvps WHERE event_id = $1 AND user_id = $2 RETURNING response`
	var prev models.Response
	err := r.pool.QueryRow(ctx, q, eventID, userID).Scan(&prev)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNoRSVP
		}
		return "", err
	}
	return prev, nil
}

// Get returns the user's RSVP for the event, or nil when none exists.
func (r *Repository) Get(ctx context.Context, eventID, userID uuid.UUID) (*models.RSVP, error) {
	const q = `SELECT id, event_id, user_id, response, needs_reconfirm, created_at, updated_at
		FROM rsvps WHERE event_id = $1 AND user_id = $2`
	var rec models.RSVP
	err := r.pool.QueryRow(ctx, q, eventID, userID).
		Scan(&rec.ID, &rec.EventID, &rec.UserID, &rec.Response, &rec.NeedsReconfirm, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

// ListByEvent returns the event's RSVPs, optionally filtered by response.
func (r *Repository) ListByEvent(ctx context.Context, eventID uuid.UUID, response *models.Response) ([]models.RSVP, error) {
	base := `SELECT id, event_id, user_id, response, needs_reconfirm, created_at, updated_at FROM rsvps WHERE event_id = $1`
	args := []interface{}{eventID}
	if response != nil {
		base += ` AND response = $2`
		args = append(args, string(*response))
	}
	rows, err := r.pool.Query(ctx, base+` ORDER BY created_at`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.RSVP
	for rows.Next() {
		var rec models.RSVP
		if err := rows.Scan(&rec.ID, &rec.EventID, &rec.UserID, &rec.Response, &rec.NeedsReconfirm, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, rec)
	}
	return list, rows.Err()
}

// CountByResponse returns per-response counts for an event.
func (r *Repository) CountByResponse(ctx context.Context, eventID uuid.UUID) (map[models.Response]int, error) {
	const q = `SELECT response, COUNT(*) FROM rsvps WHERE event_id = $1 GROUP BY response`
	rows, err := r.pool.Query(ctx, q, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[models.Response]int)
	for rows.Next() {
		var resp models.Response
		var n int
		if err := rows.Scan(&resp, &n); err != nil {
			return nil, err
		}
		counts[resp] = n
	}
	return counts, rows.Err()
}

package waitlist

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/whtouche/gather-sub002/internal/models"
)

// Repository is the Postgres-backed waitlist store. Ordering is
// (joined_at, seq): seq is a monotone sequence assigned on insert, so two
// joins in the same instant still promote deterministically.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a waitlist repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Join inserts an entry unless the user already waits or already holds YES.
// The event row is locked FOR UPDATE first so the YES check below cannot race
// an in-flight admission, which takes the same lock: a user can never end up
// holding a seat and a waitlist spot at once.
func (r *Repository) Join(ctx context.Context, eventID, userID uuid.UUID) (*models.WaitlistEntry, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var locked uuid.UUID
	if err := tx.QueryRow(ctx, `SELECT id FROM events WHERE id = $1 FOR UPDATE`, eventID).
		Scan(&locked); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEventNotFound
		}
		return nil, err
	}

	var response string
	err = tx.QueryRow(ctx, `SELECT response FROM rsvps WHERE event_id = $1 AND user_id = $2`, eventID, userID).
		Scan(&response)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	if response == string(models.ResponseYes) {
		return nil, ErrAlreadyConfirmed
	}

	const q = `INSERT INTO waitlist_entries (id, event_id, user_id, joined_at)
		VALUES (gen_random_uuid(), $1, $2, NOW())
		ON CONFLICT (event_id, user_id) DO NOTHING
		RETURNING id, event_id, user_id, seq, joined_at`
	var entry models.WaitlistEntry
	err = tx.QueryRow(ctx, q, eventID, userID).
		Scan(&entry.ID, &entry.EventID, &entry.UserID, &entry.Seq, &entry.JoinedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAlreadyWaitlisted
		}
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &entry, nil
}

// Leave deletes the user's entry.
func (r *Repository) Leave(ctx context.Context, eventID, userID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM waitlist_entries WHERE event_id = $1 AND user_id = $2`, eventID, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotWaitlisted
	}
	return nil
}

// Get returns the user's entry, or nil when absent.
func (r *Repository) Get(ctx context.Context, eventID, userID uuid.UUID) (*models.WaitlistEntry, error) {
	const q = `SELECT id, event_id, user_id, seq, joined_at, offered_at, offer_expires_at
		FROM waitlist_entries WHERE event_id = $1 AND user_id = $2`
	var entry models.WaitlistEntry
	err := r.pool.QueryRow(ctx, q, eventID, userID).
		Scan(&entry.ID, &entry.EventID, &entry.UserID, &entry.Seq, &entry.JoinedAt, &entry.OfferedAt, &entry.OfferExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &entry, nil
}

// Position returns the user's 1-based place in FIFO order.
func (r *Repository) Position(ctx context.Context, eventID, userID uuid.UUID) (int, error) {
	const q = `SELECT pos FROM (
			SELECT user_id, ROW_NUMBER() OVER (ORDER BY joined_at, seq) AS pos
			FROM waitlist_entries WHERE event_id = $1
		) ranked WHERE user_id = $2`
	var pos int
	err := r.pool.QueryRow(ctx, q, eventID, userID).Scan(&pos)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrNotWaitlisted
		}
		return 0, err
	}
	return pos, nil
}

// OfferNext stamps an offer on the earliest entry that has none. SKIP LOCKED
// keeps two concurrent promotions from offering the same entrant; each takes
// a different row or none.
func (r *Repository) OfferNext(ctx context.Context, eventID uuid.UUID, offeredAt, expiresAt time.Time) (*models.WaitlistEntry, error) {
	const q = `UPDATE waitlist_entries SET offered_at = $2, offer_expires_at = $3
		WHERE id = (
			SELECT id FROM waitlist_entries
			WHERE event_id = $1 AND offered_at IS NULL
			ORDER BY joined_at, seq
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, event_id, user_id, seq, joined_at, offered_at, offer_expires_at`
	var entry models.WaitlistEntry
	err := r.pool.QueryRow(ctx, q, eventID, offeredAt, expiresAt).
		Scan(&entry.ID, &entry.EventID, &entry.UserID, &entry.Seq, &entry.JoinedAt, &entry.OfferedAt, &entry.OfferExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &entry, nil
}

// ExpiredOffers returns entries whose offers lapsed before now.
func (r *Repository) ExpiredOffers(ctx context.Context, now time.Time, limit int) ([]models.WaitlistEntry, error) {
	const q = `SELECT id, event_id, user_id, seq, joined_at, offered_at, offer_expires_at
		FROM waitlist_entries
		WHERE offered_at IS NOT NULL AND offer_expires_at < $1
		ORDER BY offer_expires_at
		LIMIT $2`
	rows, err := r.pool.Query(ctx, q, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.WaitlistEntry
	for rows.Next() {
		var entry models.WaitlistEntry
		if err := rows.Scan(&entry.ID, &entry.EventID, &entry.UserID, &entry.Seq, &entry.JoinedAt, &entry.OfferedAt, &entry.OfferExpiresAt); err != nil {
			return nil, err
		}
		list = append(list, entry)
	}
	return list, rows.Err()
}

// Remove deletes an entry by ID.
func (r *Repository) Remove(ctx context.Context, entryID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM waitlist_entries WHERE id = $1`, entryID)
	return err
}

// ListByEvent returns the queue in promotion order.
func (r *Repository) ListByEvent(ctx context.Context, eventID uuid.UUID) ([]models.WaitlistEntry, error) {
	const q = `SELECT id, event_id, user_id, seq, joined_at, offered_at, offer_expires_at
		FROM waitlist_entries WHERE event_id = $1 ORDER BY joined_at, seq`
	rows, err := r.pool.Query(ctx, q, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.WaitlistEntry
	for rows.Next() {
		var entry models.WaitlistEntry
		if err := rows.Scan(&entry.ID, &entry.EventID, &entry.UserID, &entry.Seq, &entry.JoinedAt, &entry.OfferedAt, &entry.OfferExpiresAt); err != nil {
			return nil, err
		}
		list = append(list, entry)
	}
	return list, rows.Err()
}

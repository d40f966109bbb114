package invites

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/whtouche/gather-sub002/internal/models"
)

// ErrInviteNotFound means the token is unknown or expired.
var ErrInviteNotFound = errors.New("invite not found")

// Repository handles invite link persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an invites repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// newToken returns a URL-safe random token.
func newToken() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// Create issues a new invite link for the event.
func (r *Repository) Create(ctx context.Context, eventID, createdBy uuid.UUID, ttl time.Duration) (*models.Invite, error) {
	token, err := newToken()
	if err != nil {
		return nil, err
	}
	inv := &models.Invite{
		EventID:   eventID,
		Token:     token,
		CreatedBy: createdBy,
		ExpiresAt: time.Now().Add(ttl),
	}
	const q = `INSERT INTO invites (event_id, token, created_by, expires_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`
	if err := r.pool.QueryRow(ctx, q, inv.EventID, inv.Token, inv.CreatedBy, inv.ExpiresAt).
		Scan(&inv.ID, &inv.CreatedAt); err != nil {
		return nil, err
	}
	return inv, nil
}

// GetByToken resolves an unexpired invite.
func (r *Repository) GetByToken(ctx context.Context, token string) (*models.Invite, error) {
	const q = `SELECT id, event_id, token, created_by, expires_at, created_at
		FROM invites WHERE token = $1 AND expires_at > NOW()`
	var inv models.Invite
	err := r.pool.QueryRow(ctx, q, token).
		Scan(&inv.ID, &inv.EventID, &inv.Token, &inv.CreatedBy, &inv.ExpiresAt, &inv.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrInviteNotFound
	}
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

// ListByEvent returns the event's invite links, including expired ones.
func (r *Repository) ListByEvent(ctx context.Context, eventID uuid.UUID) ([]models.Invite, error) {
	const q = `SELECT id, event_id, token, created_by, expires_at, created_at
		FROM invites WHERE event_id = $1 ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, q, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.Invite
	for rows.Next() {
		var inv models.Invite
		if err := rows.Scan(&inv.ID, &inv.EventID, &inv.Token, &inv.CreatedBy, &inv.ExpiresAt, &inv.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, inv)
	}
	return list, rows.Err()
}

// Revoke deletes an invite link.
func (r *Repository) Revoke(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM invites WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrInviteNotFound
	}
	return nil
}

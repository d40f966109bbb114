package wall

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/whtouche/gather-sub002/internal/models"
)

// ErrPostNotFound means the post does not exist or is already deleted.
var ErrPostNotFound = errors.New("wall post not found")

// Repository handles wall post persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a wall repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a post. ParentID, when set, must reference a post on the
// same event.
func (r *Repository) Create(ctx context.Context, p *models.WallPost) error {
	if p.ParentID != nil {
		var parentEvent uuid.UUID
		err := r.pool.QueryRow(ctx,
			`SELECT event_id FROM wall_posts WHERE id = $1 AND NOT deleted`, *p.ParentID).
			Scan(&parentEvent)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrPostNotFound
		}
		if err != nil {
			return err
		}
		if parentEvent != p.EventID {
			return ErrPostNotFound
		}
	}
	const q = `INSERT INTO wall_posts (event_id, user_id, parent_id, content)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`
	return r.pool.QueryRow(ctx, q, p.EventID, p.UserID, p.ParentID, p.Content).
		Scan(&p.ID, &p.CreatedAt)
}

// ListByEvent returns the event's posts oldest-first. Deleted posts come back
// with empty content so reply threads keep their shape.
func (r *Repository) ListByEvent(ctx context.Context, eventID uuid.UUID) ([]models.WallPost, error) {
	const q = `SELECT id, event_id, user_id, parent_id,
		CASE WHEN deleted THEN '' ELSE content END, deleted, created_at
		FROM wall_posts WHERE event_id = $1 ORDER BY created_at ASC`
	rows, err := r.pool.Query(ctx, q, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.WallPost
	for rows.Next() {
		var p models.WallPost
		if err := rows.Scan(&p.ID, &p.EventID, &p.UserID, &p.ParentID, &p.Content, &p.Deleted, &p.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, p)
	}
	return list, rows.Err()
}

// Get returns a post by ID, or nil when absent.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*models.WallPost, error) {
	const q = `SELECT id, event_id, user_id, parent_id, content, deleted, created_at
		FROM wall_posts WHERE id = $1`
	var p models.WallPost
	err := r.pool.QueryRow(ctx, q, id).
		Scan(&p.ID, &p.EventID, &p.UserID, &p.ParentID, &p.Content, &p.Deleted, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// SoftDelete blanks a post but keeps its row so replies stay attached.
func (r *Repository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE wall_posts SET deleted = TRUE WHERE id = $1 AND NOT deleted`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrPostNotFound
	}
	return nil
}

// HasRSVP reports whether the user has any RSVP on the event. Posting is
// restricted to respondents.
func (r *Repository) HasRSVP(ctx context.Context, eventID, userID uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM rsvps WHERE event_id = $1 AND user_id = $2)`,
		eventID, userID).Scan(&exists)
	return exists, err
}

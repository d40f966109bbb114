package connections

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/whtouche/gather-sub002/internal/models"
)

// Repository derives connections from attendance history.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a connections repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListForUser returns people who held a YES alongside the user on events that
// have finished, ranked by how often they attended together. An event counts
// as finished once explicitly completed or once its scheduled end has passed.
func (r *Repository) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Connection, error) {
	const q = `
		SELECT other.user_id, u.full_name, COUNT(*) AS shared_events, MAX(e.starts_at) AS last_event_at
		FROM rsvps mine
		JOIN rsvps other ON other.event_id = mine.event_id
			AND other.user_id <> mine.user_id
			AND other.response = 'YES'
		JOIN events e ON e.id = mine.event_id
		JOIN users u ON u.id = other.user_id
		WHERE mine.user_id = $1
			AND mine.response = 'YES'
			AND (e.stored_state = 'COMPLETED'
				OR (e.stored_state = 'PUBLISHED' AND COALESCE(e.ends_at, e.starts_at) <= NOW()))
		GROUP BY other.user_id, u.full_name
		ORDER BY shared_events DESC, last_event_at DESC`
	rows, err := r.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.Connection
	for rows.Next() {
		var conn models.Connection
		if err := rows.Scan(&conn.UserID, &conn.FullName, &conn.SharedEvents, &conn.LastEventAt); err != nil {
			return nil, err
		}
		list = append(list, conn)
	}
	return list, rows.Err()
}

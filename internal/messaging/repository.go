package messaging

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/whtouche/gather-sub002/internal/models"
)

// Recipient is one resolved mass-message target.
type Recipient struct {
	UserID uuid.UUID
	Email  string
}

// Repository handles mass message persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a messaging repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CreateMessage inserts the broadcast record.
func (r *Repository) CreateMessage(ctx context.Context, m *models.MassMessage) error {
	const q = `INSERT INTO mass_messages (event_id, sender_id, audience, subject, body)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`
	return r.pool.QueryRow(ctx, q, m.EventID, m.SenderID, m.Audience, m.Subject, m.Body).
		Scan(&m.ID, &m.CreatedAt)
}

// ResolveRecipients expands an audience filter into concrete users.
func (r *Repository) ResolveRecipients(ctx context.Context, eventID uuid.UUID, audience string) ([]Recipient, error) {
	var q string
	args := []interface{}{eventID}
	switch audience {
	case models.AudienceAll:
		q = `SELECT u.id, u.email FROM rsvps r JOIN users u ON u.id = r.user_id WHERE r.event_id = $1`
	case models.AudienceYes, models.AudienceNo, models.AudienceMaybe:
		q = `SELECT u.id, u.email FROM rsvps r JOIN users u ON u.id = r.user_id
			WHERE r.event_id = $1 AND r.response = $2`
		args = append(args, map[string]string{
			models.AudienceYes:   string(models.ResponseYes),
			models.AudienceNo:    string(models.ResponseNo),
			models.AudienceMaybe: string(models.ResponseMaybe),
		}[audience])
	case models.AudienceWaitlist:
		q = `SELECT u.id, u.email FROM waitlist_entries w JOIN users u ON u.id = w.user_id WHERE w.event_id = $1`
	default:
		return nil, fmt.Errorf("unknown audience %q", audience)
	}

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []Recipient
	for rows.Next() {
		var rec Recipient
		if err := rows.Scan(&rec.UserID, &rec.Email); err != nil {
			return nil, err
		}
		list = append(list, rec)
	}
	return list, rows.Err()
}

// CreateDelivery inserts a pending delivery row for one recipient.
func (r *Repository) CreateDelivery(ctx context.Context, messageID uuid.UUID, rec Recipient) (*models.MessageDelivery, error) {
	const q = `INSERT INTO message_deliveries (message_id, recipient_id, recipient_email)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`
	d := &models.MessageDelivery{
		MessageID:      messageID,
		RecipientID:    rec.UserID,
		RecipientEmail: rec.Email,
		Status:         models.DeliveryStatusPending,
	}
	if err := r.pool.QueryRow(ctx, q, messageID, rec.UserID, rec.Email).Scan(&d.ID, &d.CreatedAt); err != nil {
		return nil, err
	}
	return d, nil
}

// MarkSent records a successful delivery.
func (r *Repository) MarkSent(ctx context.Context, deliveryID uuid.UUID, at time.Time) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE message_deliveries SET status = $1, sent_at = $2 WHERE id = $3`,
		models.DeliveryStatusSent, at, deliveryID)
	return err
}

// MarkFailed records a permanently failed delivery.
func (r *Repository) MarkFailed(ctx context.Context, deliveryID uuid.UUID, reason string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE message_deliveries SET status = $1, error_message = $2 WHERE id = $3`,
		models.DeliveryStatusFailed, reason, deliveryID)
	return err
}

// GetMessage returns one broadcast by ID, or nil when absent.
func (r *Repository) GetMessage(ctx context.Context, id uuid.UUID) (*models.MassMessage, error) {
	const q = `SELECT id, event_id, sender_id, audience, subject, body, created_at
		FROM mass_messages WHERE id = $1`
	var m models.MassMessage
	err := r.pool.QueryRow(ctx, q, id).
		Scan(&m.ID, &m.EventID, &m.SenderID, &m.Audience, &m.Subject, &m.Body, &m.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// ListByEvent returns the event's broadcasts newest-first.
func (r *Repository) ListByEvent(ctx context.Context, eventID uuid.UUID) ([]models.MassMessage, error) {
	const q = `SELECT id, event_id, sender_id, audience, subject, body, created_at
		FROM mass_messages WHERE event_id = $1 ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, q, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.MassMessage
	for rows.Next() {
		var m models.MassMessage
		if err := rows.Scan(&m.ID, &m.EventID, &m.SenderID, &m.Audience, &m.Subject, &m.Body, &m.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, m)
	}
	return list, rows.Err()
}

// ListDeliveries returns per-recipient delivery outcomes for a message.
func (r *Repository) ListDeliveries(ctx context.Context, messageID uuid.UUID) ([]models.MessageDelivery, error) {
	const q = `SELECT id, message_id, recipient_id, recipient_email, status, sent_at, COALESCE(error_message,''), created_at
		FROM message_deliveries WHERE message_id = $1 ORDER BY created_at ASC`
	rows, err := r.pool.Query(ctx, q, messageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.MessageDelivery
	for rows.Next() {
		var d models.MessageDelivery
		if err := rows.Scan(&d.ID, &d.MessageID, &d.RecipientID, &d.RecipientEmail, &d.Status, &d.SentAt, &d.ErrorMessage, &d.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, d)
	}
	return list, rows.Err()
}

package questionnaire

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/whtouche/gather-sub002/internal/models"
)

// Repository handles question and answer persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a questionnaire repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListByEvent returns the event's questions in position order.
func (r *Repository) ListByEvent(ctx context.Context, eventID uuid.UUID) ([]models.Question, error) {
	const q = `SELECT id, event_id, prompt, type, required, choices, position, created_at
		FROM questions WHERE event_id = $1 ORDER BY position, created_at`
	rows, err := r.pool.Query(ctx, q, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.Question
	for rows.Next() {
		var question models.Question
		if err := rows.Scan(&question.ID, &question.EventID, &question.Prompt, &question.Type,
			&question.Required, &question.Choices, &question.Position, &question.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, question)
	}
	return list, rows.Err()
}

// ReplaceForEvent swaps the event's question set atomically. Answers to
// removed questions cascade away with their rows.
func (r *Repository) ReplaceForEvent(ctx context.Context, eventID uuid.UUID, questions []models.Question) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM questions WHERE event_id = $1`, eventID); err != nil {
		return err
	}
	const ins = `INSERT INTO questions (id, event_id, prompt, type, required, choices, position)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`
	for i := range questions {
		q := &questions[i]
		q.EventID = eventID
		q.Position = i
		if err := tx.QueryRow(ctx, ins, eventID, q.Prompt, string(q.Type), q.Required, q.Choices, i).
			Scan(&q.ID, &q.CreatedAt); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

// UpsertAnswers writes validated answers keyed by (question, user) within the
// given transaction, so they commit or fail together with the RSVP write.
func UpsertAnswers(ctx context.Context, tx pgx.Tx, userID uuid.UUID, answers []ValidatedAnswer) error {
	const q = `INSERT INTO answers (id, question_id, user_id, value)
		VALUES (gen_random_uuid(), $1, $2, $3)
		ON CONFLICT (question_id, user_id) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`
	for _, a := range answers {
		if _, err := tx.Exec(ctx, q, a.QuestionID, userID, a.Value); err != nil {
			return err
		}
	}
	return nil
}

// ListAnswers returns a user's answers for an event's questions.
func (r *Repository) ListAnswers(ctx context.Context, eventID, userID uuid.UUID) ([]models.Answer, error) {
	const q = `SELECT a.id, a.question_id, a.user_id, a.value, a.created_at, a.updated_at
		FROM answers a JOIN questions qu ON qu.id = a.question_id
		WHERE qu.event_id = $1 AND a.user_id = $2
		ORDER BY qu.position`
	rows, err := r.pool.Query(ctx, q, eventID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.Answer
	for rows.Next() {
		var a models.Answer
		if err := rows.Scan(&a.ID, &a.QuestionID, &a.UserID, &a.Value, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, a)
	}
	return list, rows.Err()
}

package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// QuestionType tags how a questionnaire answer is validated.
type QuestionType string

const (
	QuestionShortText      QuestionType = "SHORT_TEXT"
	QuestionLongText       QuestionType = "LONG_TEXT"
	QuestionSingleChoice   QuestionType = "SINGLE_CHOICE"
	QuestionMultipleChoice QuestionType = "MULTIPLE_CHOICE"
	QuestionYesNo          QuestionType = "YES_NO"
	QuestionNumber         QuestionType = "NUMBER"
	QuestionDate           QuestionType = "DATE"
)

// Valid reports whether t is a known question type.
func (t QuestionType) Valid() bool {
	switch t {
	case QuestionShortText, QuestionLongText, QuestionSingleChoice,
		QuestionMultipleChoice, QuestionYesNo, QuestionNumber, QuestionDate:
		return true
	}
	return false
}

// IsChoice reports whether t carries an enumerated choice set.
func (t QuestionType) IsChoice() bool {
	return t == QuestionSingleChoice || t == QuestionMultipleChoice
}

// Question is an organizer-defined questionnaire question for an event.
// Choices is populated only for choice types.
type Question struct {
	ID        uuid.UUID    `json:"id"`
	EventID   uuid.UUID    `json:"event_id"`
	Prompt    string       `json:"prompt"`
	Type      QuestionType `json:"type"`
	Required  bool         `json:"required"`
	Choices   []string     `json:"choices,omitempty"`
	Position  int          `json:"position"`
	CreatedAt time.Time    `json:"created_at"`
}

// Answer is a user's answer to a questionnaire question. One per
// (question, user); always upserted. Value is JSON typed per the question.
type Answer struct {
	ID         uuid.UUID       `json:"id"`
	QuestionID uuid.UUID       `json:"question_id"`
	UserID     uuid.UUID       `json:"user_id"`
	Value      json.RawMessage `json:"value"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

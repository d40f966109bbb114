package questionnaire

import (
	"encoding/json"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/whtouche/gather-sub002/internal/models"
)

// Validation error kinds. Callers match on Kind, never on message text.
const (
	KindQuestionNotFound = "QUESTION_NOT_FOUND"
	KindRequiredMissing  = "REQUIRED_QUESTION_MISSING"
	KindInvalidType      = "INVALID_RESPONSE_TYPE"
	KindInvalidChoice    = "INVALID_CHOICE"
	KindTooLong          = "RESPONSE_TOO_LONG"
	KindInvalidDate      = "INVALID_DATE"
)

// Answer length limits per question type.
const (
	maxShortText = 200
	maxLongText  = 2000
)

// ValidationError names the offending question and what was expected.
type ValidationError struct {
	Kind       string
	QuestionID uuid.UUID
	Message    string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("question %s: %s", e.QuestionID, e.Message)
}

// ValidatedAnswer is an answer that passed validation, with its value
// re-encoded as JSON ready for persistence.
type ValidatedAnswer struct {
	QuestionID uuid.UUID
	Value      json.RawMessage
}

// Validate checks supplied answers against the event's question definitions
// for the given RSVP response. Required questions are enforced only when the
// response is YES. Empty answers to optional questions are skipped. Returns
// the answers to persist; on failure returns a *ValidationError and nothing
// is persisted.
func Validate(questions []models.Question, answers map[uuid.UUID]any, response models.Response) ([]ValidatedAnswer, error) {
	if len(questions) == 0 {
		return nil, nil
	}

	byID := make(map[uuid.UUID]*models.Question, len(questions))
	for i := range questions {
		byID[questions[i].ID] = &questions[i]
	}

	for id := range answers {
		if _, ok := byID[id]; !ok {
			return nil, &ValidationError{Kind: KindQuestionNotFound, QuestionID: id, Message: "question does not belong to this event"}
		}
	}

	if response == models.ResponseYes {
		for _, q := range questions {
			if !q.Required {
				continue
			}
			v, ok := answers[q.ID]
			if !ok || isEmpty(v) {
				return nil, &ValidationError{Kind: KindRequiredMissing, QuestionID: q.ID, Message: "required question is unanswered"}
			}
		}
	}

	var out []ValidatedAnswer
	for i := range questions {
		q := &questions[i]
		v, ok := answers[q.ID]
		if !ok || isEmpty(v) {
			continue
		}
		if err := validateValue(q, v); err != nil {
			return nil, err
		}
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, &ValidationError{Kind: KindInvalidType, QuestionID: q.ID, Message: "answer is not encodable"}
		}
		out = append(out, ValidatedAnswer{QuestionID: q.ID, Value: raw})
	}
	return out, nil
}

func validateValue(q *models.Question, v any) error {
	switch q.Type {
	case models.QuestionShortText:
		return validateText(q, v, maxShortText)
	case models.QuestionLongText:
		return validateText(q, v, maxLongText)
	case models.QuestionSingleChoice:
		s, ok := v.(string)
		if !ok {
			return &ValidationError{Kind: KindInvalidType, QuestionID: q.ID, Message: "expected a string choice"}
		}
		if !inChoices(q.Choices, s) {
			return &ValidationError{Kind: KindInvalidChoice, QuestionID: q.ID, Message: fmt.Sprintf("%q is not one of the allowed choices", s)}
		}
	case models.QuestionMultipleChoice:
		items, err := stringSlice(v)
		if err != nil {
			return &ValidationError{Kind: KindInvalidType, QuestionID: q.ID, Message: "expected a list of string choices"}
		}
		for _, s := range items {
			if !inChoices(q.Choices, s) {
				return &ValidationError{Kind: KindInvalidChoice, QuestionID: q.ID, Message: fmt.Sprintf("%q is not one of the allowed choices", s)}
			}
		}
	case models.QuestionYesNo:
		if _, ok := v.(bool); !ok {
			return &ValidationError{Kind: KindInvalidType, QuestionID: q.ID, Message: "expected true or false"}
		}
	case models.QuestionNumber:
		switch v.(type) {
		case float64, float32, int, int32, int64:
		default:
			return &ValidationError{Kind: KindInvalidType, QuestionID: q.ID, Message: "expected a number"}
		}
	case models.QuestionDate:
		s, ok := v.(string)
		if !ok {
			return &ValidationError{Kind: KindInvalidDate, QuestionID: q.ID, Message: "expected a date string"}
		}
		if !parseableDate(s) {
			return &ValidationError{Kind: KindInvalidDate, QuestionID: q.ID, Message: fmt.Sprintf("%q is not a valid date", s)}
		}
	default:
		return &ValidationError{Kind: KindInvalidType, QuestionID: q.ID, Message: fmt.Sprintf("unknown question type %q", q.Type)}
	}
	return nil
}

func validateText(q *models.Question, v any, max int) error {
	s, ok := v.(string)
	if !ok {
		return &ValidationError{Kind: KindInvalidType, QuestionID: q.ID, Message: "expected a string"}
	}
	if utf8.RuneCountInString(s) > max {
		return &ValidationError{Kind: KindTooLong, QuestionID: q.ID, Message: fmt.Sprintf("answer exceeds %d characters", max)}
	}
	return nil
}

// isEmpty reports whether an answer counts as unanswered: nil, an empty
// string, or an empty list. Booleans and numbers are always answers.
func isEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case []any:
		return len(t) == 0
	case []string:
		return len(t) == 0
	}
	return false
}

func inChoices(choices []string, s string) bool {
	for _, c := range choices {
		if c == s {
			return true
		}
	}
	return false
}

func stringSlice(v any) ([]string, error) {
	switch t := v.(type) {
	case []string:
		return t, nil
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("element is not a string")
			}
			out = append(out, s)
		}
		return out, nil
	}
	return nil, fmt.Errorf("not a list")
}

func parseableDate(s string) bool {
	for _, layout := range []string{time.RFC3339, "2006-01-02", "2006-01-02 15:04:05"} {
		if _, err := time.Parse(layout, s); err == nil {
			return true
		}
	}
	return false
}

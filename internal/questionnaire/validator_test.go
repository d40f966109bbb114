package questionnaire

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whtouche/gather-sub002/internal/models"
)

func question(t models.QuestionType, required bool, choices ...string) models.Question {
	return models.Question{ID: uuid.New(), Type: t, Required: required, Choices: choices}
}

func kindOf(t *testing.T, err error) (string, uuid.UUID) {
	t.Helper()
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	return ve.Kind, ve.QuestionID
}

func TestValidateNoQuestions(t *testing.T) {
	out, err := Validate(nil, map[uuid.UUID]any{uuid.New(): "stray"}, models.ResponseYes)
	assert.NoError(t, err)
	assert.Empty(t, out)
}

func TestValidateUnknownQuestion(t *testing.T) {
	q := question(models.QuestionShortText, false)
	strayID := uuid.New()
	_, err := Validate([]models.Question{q}, map[uuid.UUID]any{strayID: "hi"}, models.ResponseYes)
	kind, id := kindOf(t, err)
	assert.Equal(t, KindQuestionNotFound, kind)
	assert.Equal(t, strayID, id)
}

func TestValidateRequiredOnlyOnYes(t *testing.T) {
	req := question(models.QuestionShortText, true)
	qs := []models.Question{req}

	// NO and MAYBE skip required enforcement entirely.
	for _, resp := range []models.Response{models.ResponseNo, models.ResponseMaybe} {
		out, err := Validate(qs, nil, resp)
		assert.NoError(t, err, "response=%s", resp)
		assert.Empty(t, out)
	}

	_, err := Validate(qs, nil, models.ResponseYes)
	kind, id := kindOf(t, err)
	assert.Equal(t, KindRequiredMissing, kind)
	assert.Equal(t, req.ID, id)

	// An empty string does not satisfy a required question.
	_, err = Validate(qs, map[uuid.UUID]any{req.ID: ""}, models.ResponseYes)
	kind, _ = kindOf(t, err)
	assert.Equal(t, KindRequiredMissing, kind)

	out, err := Validate(qs, map[uuid.UUID]any{req.ID: "dietary: none"}, models.ResponseYes)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.JSONEq(t, `"dietary: none"`, string(out[0].Value))
}

func TestValidateTextLimits(t *testing.T) {
	short := question(models.QuestionShortText, false)
	long := question(models.QuestionLongText, false)
	qs := []models.Question{short, long}

	over := make([]rune, 201)
	for i := range over {
		over[i] = 'x'
	}
	_, err := Validate(qs, map[uuid.UUID]any{short.ID: string(over)}, models.ResponseYes)
	kind, id := kindOf(t, err)
	assert.Equal(t, KindTooLong, kind)
	assert.Equal(t, short.ID, id)

	// 201 runes is fine for LONG_TEXT.
	out, err := Validate(qs, map[uuid.UUID]any{long.ID: string(over)}, models.ResponseYes)
	assert.NoError(t, err)
	assert.Len(t, out, 1)

	_, err = Validate(qs, map[uuid.UUID]any{short.ID: 42}, models.ResponseYes)
	kind, _ = kindOf(t, err)
	assert.Equal(t, KindInvalidType, kind)
}

func TestValidateChoices(t *testing.T) {
	single := question(models.QuestionSingleChoice, false, "A", "B")
	multi := question(models.QuestionMultipleChoice, false, "A", "B", "C")
	qs := []models.Question{single, multi}

	_, err := Validate(qs, map[uuid.UUID]any{single.ID: "C"}, models.ResponseYes)
	kind, id := kindOf(t, err)
	assert.Equal(t, KindInvalidChoice, kind)
	assert.Equal(t, single.ID, id)

	// JSON-decoded lists arrive as []any.
	out, err := Validate(qs, map[uuid.UUID]any{multi.ID: []any{"A", "C"}}, models.ResponseYes)
	require.NoError(t, err)
	assert.Len(t, out, 1)

	_, err = Validate(qs, map[uuid.UUID]any{multi.ID: []any{"A", "D"}}, models.ResponseYes)
	kind, _ = kindOf(t, err)
	assert.Equal(t, KindInvalidChoice, kind)

	_, err = Validate(qs, map[uuid.UUID]any{multi.ID: "A"}, models.ResponseYes)
	kind, _ = kindOf(t, err)
	assert.Equal(t, KindInvalidType, kind)
}

func TestValidateScalarTypes(t *testing.T) {
	yn := question(models.QuestionYesNo, false)
	num := question(models.QuestionNumber, false)
	date := question(models.QuestionDate, false)
	qs := []models.Question{yn, num, date}

	out, err := Validate(qs, map[uuid.UUID]any{
		yn.ID:   true,
		num.ID:  float64(3), // json numbers decode to float64
		date.ID: "2025-07-04",
	}, models.ResponseYes)
	require.NoError(t, err)
	assert.Len(t, out, 3)

	_, err = Validate(qs, map[uuid.UUID]any{yn.ID: "yes"}, models.ResponseYes)
	kind, _ := kindOf(t, err)
	assert.Equal(t, KindInvalidType, kind)

	_, err = Validate(qs, map[uuid.UUID]any{num.ID: "3"}, models.ResponseYes)
	kind, _ = kindOf(t, err)
	assert.Equal(t, KindInvalidType, kind)

	_, err = Validate(qs, map[uuid.UUID]any{date.ID: "next tuesday"}, models.ResponseYes)
	kind, id := kindOf(t, err)
	assert.Equal(t, KindInvalidDate, kind)
	assert.Equal(t, date.ID, id)

	// RFC3339 timestamps are accepted too.
	out, err = Validate(qs, map[uuid.UUID]any{date.ID: "2025-07-04T18:00:00Z"}, models.ResponseYes)
	assert.NoError(t, err)
	assert.Len(t, out, 1)
}

func TestValidateSkipsEmptyOptional(t *testing.T) {
	opt := question(models.QuestionShortText, false)
	multi := question(models.QuestionMultipleChoice, false, "A")
	qs := []models.Question{opt, multi}

	out, err := Validate(qs, map[uuid.UUID]any{opt.ID: "", multi.ID: []any{}}, models.ResponseYes)
	assert.NoError(t, err)
	assert.Empty(t, out, "empty optional answers are skipped, not persisted")
}

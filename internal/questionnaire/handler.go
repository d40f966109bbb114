package questionnaire

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/whtouche/gather-sub002/internal/events"
	"github.com/whtouche/gather-sub002/internal/models"
	"github.com/whtouche/gather-sub002/pkg/response"
)

// QuestionInput is one question definition in a PUT /events/:id/questions
// body. The full set is replaced atomically.
type QuestionInput struct {
	Prompt   string   `json:"prompt" binding:"required"`
	Type     string   `json:"type" binding:"required"`
	Required bool     `json:"required"`
	Choices  []string `json:"choices"`
}

// ReplaceRequest is the body for PUT /events/:id/questions.
type ReplaceRequest struct {
	Questions []QuestionInput `json:"questions"`
}

// Handler handles questionnaire HTTP endpoints.
type Handler struct {
	repo   *Repository
	events *events.Repository
	logger *zap.Logger
}

// NewHandler creates a questionnaire handler.
func NewHandler(repo *Repository, events *events.Repository, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, events: events, logger: logger}
}

// Replace handles PUT /events/:id/questions (organizer only).
func (h *Handler) Replace(c *gin.Context) {
	ev, ok := h.loadOwned(c)
	if !ok {
		return
	}

	var req ReplaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	qs := make([]models.Question, 0, len(req.Questions))
	for i, in := range req.Questions {
		t := models.QuestionType(in.Type)
		if !t.Valid() {
			response.BadRequest(c, "unknown question type: "+in.Type)
			return
		}
		if t.IsChoice() && len(in.Choices) == 0 {
			response.BadRequest(c, "choice questions need at least one choice")
			return
		}
		if !t.IsChoice() && len(in.Choices) > 0 {
			response.BadRequest(c, "choices are only valid on choice questions")
			return
		}
		qs = append(qs, models.Question{
			EventID:  ev.ID,
			Prompt:   in.Prompt,
			Type:     t,
			Required: in.Required,
			Choices:  in.Choices,
			Position: i,
		})
	}

	if err := h.repo.ReplaceForEvent(c.Request.Context(), ev.ID, qs); err != nil {
		h.logger.Error("replace questions", zap.Error(err), zap.String("event_id", ev.ID.String()))
		response.Internal(c, "failed to save questions")
		return
	}

	saved, err := h.repo.ListByEvent(c.Request.Context(), ev.ID)
	if err != nil {
		response.Internal(c, "failed to load questions")
		return
	}
	response.OK(c, saved)
}

// List handles GET /events/:id/questions.
func (h *Handler) List(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	qs, err := h.repo.ListByEvent(c.Request.Context(), eventID)
	if err != nil {
		h.logger.Error("list questions", zap.Error(err))
		response.Internal(c, "failed to list questions")
		return
	}
	response.OK(c, qs)
}

// Answers handles GET /events/:id/answers/:userID (organizer only).
func (h *Handler) Answers(c *gin.Context) {
	ev, ok := h.loadOwned(c)
	if !ok {
		return
	}
	userID, err := uuid.Parse(c.Param("userID"))
	if err != nil {
		response.BadRequest(c, "invalid user id")
		return
	}
	answers, err := h.repo.ListAnswers(c.Request.Context(), ev.ID, userID)
	if err != nil {
		h.logger.Error("list answers", zap.Error(err))
		response.Internal(c, "failed to list answers")
		return
	}
	response.OK(c, answers)
}

// MyAnswers handles GET /events/:id/answers, the caller's own answers.
func (h *Handler) MyAnswers(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	userID := c.MustGet("user_id").(uuid.UUID)
	answers, err := h.repo.ListAnswers(c.Request.Context(), eventID, userID)
	if err != nil {
		h.logger.Error("list answers", zap.Error(err))
		response.Internal(c, "failed to list answers")
		return
	}
	response.OK(c, answers)
}

func (h *Handler) loadOwned(c *gin.Context) (*models.Event, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return nil, false
	}
	ev, err := h.events.GetByID(c.Request.Context(), id)
	if err != nil {
		response.Internal(c, "failed to load event")
		return nil, false
	}
	if ev == nil {
		response.NotFound(c, "event not found")
		return nil, false
	}
	userID := c.MustGet("user_id").(uuid.UUID)
	role, _ := c.MustGet("user_role").(string)
	if ev.CreatedBy != userID && role != string(models.RoleAdmin) {
		response.Forbidden(c, "not the event organizer")
		return nil, false
	}
	return ev, true
}

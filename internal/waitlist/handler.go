package waitlist

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/whtouche/gather-sub002/internal/questionnaire"
	"github.com/whtouche/gather-sub002/internal/rsvp"
	"github.com/whtouche/gather-sub002/pkg/response"
)

// ClaimRequest is the body for POST /events/:id/waitlist/claim. Answers are
// keyed by question ID and validated like a direct YES submission.
type ClaimRequest struct {
	Answers map[string]any `json:"answers"`
}

// PositionResponse reports the caller's place in the queue (1-based).
type PositionResponse struct {
	Position int `json:"position"`
}

// Handler handles waitlist HTTP endpoints.
type Handler struct {
	service *Service
	repo    *Repository
	logger  *zap.Logger
}

// NewHandler creates a waitlist handler.
func NewHandler(service *Service, repo *Repository, logger *zap.Logger) *Handler {
	return &Handler{service: service, repo: repo, logger: logger}
}

// Join handles POST /events/:id/waitlist.
func (h *Handler) Join(c *gin.Context) {
	eventID, ok := h.eventID(c)
	if !ok {
		return
	}
	userID := c.MustGet("user_id").(uuid.UUID)

	entry, err := h.service.Join(c.Request.Context(), eventID, userID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Created(c, entry)
}

// Leave handles DELETE /events/:id/waitlist.
func (h *Handler) Leave(c *gin.Context) {
	eventID, ok := h.eventID(c)
	if !ok {
		return
	}
	userID := c.MustGet("user_id").(uuid.UUID)

	if err := h.service.Leave(c.Request.Context(), eventID, userID); err != nil {
		h.writeError(c, err)
		return
	}
	response.NoContent(c)
}

// Position handles GET /events/:id/waitlist/position.
func (h *Handler) Position(c *gin.Context) {
	eventID, ok := h.eventID(c)
	if !ok {
		return
	}
	userID := c.MustGet("user_id").(uuid.UUID)

	pos, err := h.service.Position(c.Request.Context(), eventID, userID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.OK(c, PositionResponse{Position: pos})
}

// Claim handles POST /events/:id/waitlist/claim, converting an active seat
// offer into a confirmed YES.
func (h *Handler) Claim(c *gin.Context) {
	eventID, ok := h.eventID(c)
	if !ok {
		return
	}
	userID := c.MustGet("user_id").(uuid.UUID)

	var req ClaimRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	answers := make(map[uuid.UUID]any, len(req.Answers))
	for k, v := range req.Answers {
		qid, err := uuid.Parse(k)
		if err != nil {
			response.BadRequest(c, "invalid question id: "+k)
			return
		}
		answers[qid] = v
	}

	r, err := h.service.Claim(c.Request.Context(), eventID, userID, answers)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.OK(c, r)
}

// List handles GET /events/:id/waitlist (organizer view of the queue).
func (h *Handler) List(c *gin.Context) {
	eventID, ok := h.eventID(c)
	if !ok {
		return
	}
	entries, err := h.repo.ListByEvent(c.Request.Context(), eventID)
	if err != nil {
		h.logger.Error("list waitlist", zap.Error(err))
		response.Internal(c, "failed to list waitlist")
		return
	}
	response.OK(c, entries)
}

func (h *Handler) eventID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrEventNotFound):
		response.NotFound(c, "event not found")
	case errors.Is(err, ErrNotWaitlisted):
		response.NotFound(c, "not on the waitlist")
	case errors.Is(err, ErrWaitlistClosed):
		response.WithCode(c, http.StatusConflict, "WAITLIST_CLOSED", "event has no waitlist")
	case errors.Is(err, ErrAlreadyConfirmed):
		response.WithCode(c, http.StatusConflict, "ALREADY_CONFIRMED", "you already hold a confirmed seat")
	case errors.Is(err, ErrAlreadyWaitlisted):
		response.WithCode(c, http.StatusConflict, "ALREADY_WAITLISTED", "you are already on the waitlist")
	case errors.Is(err, ErrNotOffered):
		response.WithCode(c, http.StatusConflict, "NO_ACTIVE_OFFER", "no active seat offer to claim")
	default:
		var ve *questionnaire.ValidationError
		if errors.As(err, &ve) {
			response.WithCode(c, http.StatusUnprocessableEntity, ve.Kind, ve.Error())
			return
		}
		if kind := rsvp.KindOf(err); kind != "" && kind != rsvp.KindInternal {
			response.WithCode(c, http.StatusConflict, string(kind), err.Error())
			return
		}
		h.logger.Error("waitlist operation failed", zap.Error(err))
		response.Internal(c, "waitlist operation failed")
	}
}

package rsvp

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/whtouche/gather-sub002/internal/models"
	"github.com/whtouche/gather-sub002/internal/questionnaire"
	"github.com/whtouche/gather-sub002/pkg/response"
)

// SubmitRequest is the body for PUT /events/:id/rsvp. Answers are keyed by
// question ID.
type SubmitRequest struct {
	Response string         `json:"response" binding:"required"`
	Answers  map[string]any `json:"answers"`
}

// Handler handles RSVP HTTP endpoints.
type Handler struct {
	service *Service
	repo    *Repository
	logger  *zap.Logger
}

// NewHandler creates an RSVP handler.
func NewHandler(service *Service, repo *Repository, logger *zap.Logger) *Handler {
	return &Handler{service: service, repo: repo, logger: logger}
}

// Submit handles PUT /events/:id/rsvp.
func (h *Handler) Submit(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	userID := c.MustGet("user_id").(uuid.UUID)

	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
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

	r, err := h.service.Submit(c.Request.Context(), eventID, userID, models.Response(req.Response), answers)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.OK(c, r)
}

// Withdraw handles DELETE /events/:id/rsvp.
func (h *Handler) Withdraw(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	userID := c.MustGet("user_id").(uuid.UUID)

	if err := h.service.Withdraw(c.Request.Context(), eventID, userID); err != nil {
		h.writeError(c, err)
		return
	}
	response.NoContent(c)
}

// Mine handles GET /events/:id/rsvp, the caller's own RSVP.
func (h *Handler) Mine(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	userID := c.MustGet("user_id").(uuid.UUID)

	r, err := h.repo.Get(c.Request.Context(), eventID, userID)
	if err != nil {
		h.logger.Error("get rsvp", zap.Error(err))
		response.Internal(c, "failed to load rsvp")
		return
	}
	if r == nil {
		response.NotFound(c, "no rsvp for this event")
		return
	}
	response.OK(c, r)
}

// List handles GET /events/:id/rsvps with an optional ?response= filter.
func (h *Handler) List(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}

	var filter *models.Response
	if v := c.Query("response"); v != "" {
		r := models.Response(v)
		if !r.Valid() {
			response.BadRequest(c, "invalid response filter")
			return
		}
		filter = &r
	}

	list, err := h.repo.ListByEvent(c.Request.Context(), eventID, filter)
	if err != nil {
		h.logger.Error("list rsvps", zap.Error(err))
		response.Internal(c, "failed to list rsvps")
		return
	}
	response.OK(c, list)
}

// writeError maps admission and validation failures to HTTP statuses with
// machine-readable codes.
func (h *Handler) writeError(c *gin.Context, err error) {
	var ve *questionnaire.ValidationError
	if errors.As(err, &ve) {
		response.WithCode(c, http.StatusUnprocessableEntity, ve.Kind, ve.Error())
		return
	}

	var ae *AdmissionError
	if !errors.As(err, &ae) {
		h.logger.Error("rsvp failed", zap.Error(err))
		response.Internal(c, "rsvp failed")
		return
	}
	switch ae.Kind {
	case KindNotFound:
		response.WithCode(c, http.StatusNotFound, string(ae.Kind), ae.Message)
	case KindInvalidResponse:
		response.WithCode(c, http.StatusBadRequest, string(ae.Kind), ae.Message)
	case KindStateBlocked:
		response.WithCode(c, http.StatusConflict, string(ae.Kind)+":"+string(ae.Reason), ae.Message)
	case KindAtCapacity, KindAtCapacityWaitlistAvailable:
		response.WithCode(c, http.StatusConflict, string(ae.Kind), ae.Message)
	default:
		h.logger.Error("rsvp failed", zap.Error(err))
		response.Internal(c, "rsvp failed")
	}
}

package analytics

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/whtouche/gather-sub002/internal/events"
	"github.com/whtouche/gather-sub002/internal/models"
	"github.com/whtouche/gather-sub002/pkg/response"
)

// Handler handles analytics HTTP endpoints.
type Handler struct {
	repo   *Repository
	events *events.Repository
	logger *zap.Logger
}

// NewHandler creates an analytics handler.
func NewHandler(repo *Repository, events *events.Repository, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, events: events, logger: logger}
}

// EventStats handles GET /events/:id/stats (organizer only).
func (h *Handler) EventStats(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	ev, err := h.events.GetByID(c.Request.Context(), id)
	if err != nil {
		response.Internal(c, "failed to load event")
		return
	}
	if ev == nil {
		response.NotFound(c, "event not found")
		return
	}
	userID := c.MustGet("user_id").(uuid.UUID)
	role, _ := c.MustGet("user_role").(string)
	if ev.CreatedBy != userID && role != string(models.RoleAdmin) {
		response.Forbidden(c, "not the event organizer")
		return
	}

	stats, err := h.repo.EventStats(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("event stats", zap.Error(err), zap.String("event_id", id.String()))
		response.Internal(c, "failed to compute stats")
		return
	}
	response.OK(c, stats)
}

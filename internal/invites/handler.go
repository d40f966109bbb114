package invites

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/whtouche/gather-sub002/internal/events"
	"github.com/whtouche/gather-sub002/internal/models"
	"github.com/whtouche/gather-sub002/pkg/response"
)

// CreateRequest is the body for POST /events/:id/invites.
type CreateRequest struct {
	ExpiresInHours int `json:"expires_in_hours"`
}

// ResolveResponse pairs the resolved event with the invite used to reach it.
type ResolveResponse struct {
	Invite models.Invite `json:"invite"`
	Event  models.Event  `json:"event"`
}

// Handler handles invite link HTTP endpoints.
type Handler struct {
	repo   *Repository
	events *events.Repository
	logger *zap.Logger
}

// NewHandler creates an invites handler.
func NewHandler(repo *Repository, events *events.Repository, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, events: events, logger: logger}
}

// Create handles POST /events/:id/invites (organizer only).
func (h *Handler) Create(c *gin.Context) {
	ev, ok := h.loadOwned(c)
	if !ok {
		return
	}

	var req CreateRequest
	_ = c.ShouldBindJSON(&req)
	ttl := 7 * 24 * time.Hour
	if req.ExpiresInHours > 0 {
		ttl = time.Duration(req.ExpiresInHours) * time.Hour
	}

	inv, err := h.repo.Create(c.Request.Context(), ev.ID, c.MustGet("user_id").(uuid.UUID), ttl)
	if err != nil {
		h.logger.Error("create invite", zap.Error(err))
		response.Internal(c, "failed to create invite")
		return
	}
	response.Created(c, inv)
}

// List handles GET /events/:id/invites (organizer only).
func (h *Handler) List(c *gin.Context) {
	ev, ok := h.loadOwned(c)
	if !ok {
		return
	}
	list, err := h.repo.ListByEvent(c.Request.Context(), ev.ID)
	if err != nil {
		h.logger.Error("list invites", zap.Error(err))
		response.Internal(c, "failed to list invites")
		return
	}
	response.OK(c, list)
}

// Resolve handles GET /invites/:token, returning the event behind the link.
func (h *Handler) Resolve(c *gin.Context) {
	inv, err := h.repo.GetByToken(c.Request.Context(), c.Param("token"))
	if err != nil {
		if errors.Is(err, ErrInviteNotFound) {
			response.NotFound(c, "invite not found or expired")
			return
		}
		h.logger.Error("resolve invite", zap.Error(err))
		response.Internal(c, "failed to resolve invite")
		return
	}
	ev, err := h.events.GetByID(c.Request.Context(), inv.EventID)
	if err != nil || ev == nil {
		response.NotFound(c, "event not found")
		return
	}
	response.OK(c, ResolveResponse{Invite: *inv, Event: *ev})
}

// Revoke handles DELETE /events/:id/invites/:inviteID (organizer only).
func (h *Handler) Revoke(c *gin.Context) {
	if _, ok := h.loadOwned(c); !ok {
		return
	}
	inviteID, err := uuid.Parse(c.Param("inviteID"))
	if err != nil {
		response.BadRequest(c, "invalid invite id")
		return
	}
	if err := h.repo.Revoke(c.Request.Context(), inviteID); err != nil {
		if errors.Is(err, ErrInviteNotFound) {
			response.NotFound(c, "invite not found")
			return
		}
		h.logger.Error("revoke invite", zap.Error(err))
		response.Internal(c, "failed to revoke invite")
		return
	}
	response.NoContent(c)
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

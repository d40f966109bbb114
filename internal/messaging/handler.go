package messaging

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/whtouche/gather-sub002/internal/events"
	"github.com/whtouche/gather-sub002/internal/models"
	"github.com/whtouche/gather-sub002/pkg/queue"
	"github.com/whtouche/gather-sub002/pkg/response"
)

// SendRequest is the body for POST /events/:id/messages.
type SendRequest struct {
	Audience string `json:"audience" binding:"required"`
	Subject  string `json:"subject" binding:"required"`
	Body     string `json:"body" binding:"required"`
}

// SendResponse reports the created broadcast and how many deliveries were
// queued.
type SendResponse struct {
	Message    models.MassMessage `json:"message"`
	Recipients int                `json:"recipients"`
}

// Handler handles mass message HTTP endpoints.
type Handler struct {
	repo   *Repository
	events *events.Repository
	queue  *queue.Queue
	logger *zap.Logger
}

// NewHandler creates a messaging handler.
func NewHandler(repo *Repository, events *events.Repository, q *queue.Queue, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, events: events, queue: q, logger: logger}
}

// Send handles POST /events/:id/messages (organizer only). Deliveries are
// written pending and handed to the worker queue.
func (h *Handler) Send(c *gin.Context) {
	ev, ok := h.loadOwned(c)
	if !ok {
		return
	}

	var req SendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	switch req.Audience {
	case models.AudienceAll, models.AudienceYes, models.AudienceNo, models.AudienceMaybe, models.AudienceWaitlist:
	default:
		response.BadRequest(c, "invalid audience")
		return
	}

	ctx := c.Request.Context()
	recipients, err := h.repo.ResolveRecipients(ctx, ev.ID, req.Audience)
	if err != nil {
		h.logger.Error("resolve recipients", zap.Error(err))
		response.Internal(c, "failed to resolve recipients")
		return
	}

	msg := &models.MassMessage{
		EventID:  ev.ID,
		SenderID: c.MustGet("user_id").(uuid.UUID),
		Audience: req.Audience,
		Subject:  req.Subject,
		Body:     req.Body,
	}
	if err := h.repo.CreateMessage(ctx, msg); err != nil {
		h.logger.Error("create message", zap.Error(err))
		response.Internal(c, "failed to create message")
		return
	}

	queued := 0
	for _, rec := range recipients {
		d, err := h.repo.CreateDelivery(ctx, msg.ID, rec)
		if err != nil {
			h.logger.Error("create delivery", zap.Error(err), zap.String("recipient", rec.Email))
			continue
		}
		err = h.queue.EnqueueMassMessage(ctx, queue.MassMessagePayload{
			MessageID:      msg.ID,
			DeliveryID:     d.ID,
			RecipientEmail: rec.Email,
			Subject:        msg.Subject,
			Body:           msg.Body,
		})
		if err != nil {
			h.logger.Error("enqueue delivery", zap.Error(err), zap.String("delivery_id", d.ID.String()))
			continue
		}
		queued++
	}

	response.Created(c, SendResponse{Message: *msg, Recipients: queued})
}

// List handles GET /events/:id/messages (organizer only).
func (h *Handler) List(c *gin.Context) {
	ev, ok := h.loadOwned(c)
	if !ok {
		return
	}
	list, err := h.repo.ListByEvent(c.Request.Context(), ev.ID)
	if err != nil {
		h.logger.Error("list messages", zap.Error(err))
		response.Internal(c, "failed to list messages")
		return
	}
	response.OK(c, list)
}

// Resend handles POST /events/:id/messages/:messageID/resend, re-queueing
// failed deliveries.
func (h *Handler) Resend(c *gin.Context) {
	if _, ok := h.loadOwned(c); !ok {
		return
	}
	messageID, err := uuid.Parse(c.Param("messageID"))
	if err != nil {
		response.BadRequest(c, "invalid message id")
		return
	}

	ctx := c.Request.Context()
	msg, err := h.repo.GetMessage(ctx, messageID)
	if err != nil {
		response.Internal(c, "failed to load message")
		return
	}
	if msg == nil {
		response.NotFound(c, "message not found")
		return
	}

	deliveries, err := h.repo.ListDeliveries(ctx, messageID)
	if err != nil {
		h.logger.Error("list deliveries", zap.Error(err))
		response.Internal(c, "failed to list deliveries")
		return
	}

	requeued := 0
	for _, d := range deliveries {
		if d.Status != models.DeliveryStatusFailed {
			continue
		}
		err := h.queue.EnqueueMassMessage(ctx, queue.MassMessagePayload{
			MessageID:      d.MessageID,
			DeliveryID:     d.ID,
			RecipientEmail: d.RecipientEmail,
			Subject:        msg.Subject,
			Body:           msg.Body,
		})
		if err != nil {
			h.logger.Error("requeue delivery", zap.Error(err), zap.String("delivery_id", d.ID.String()))
			continue
		}
		requeued++
	}
	response.OK(c, gin.H{"requeued": requeued})
}

// Deliveries handles GET /events/:id/messages/:messageID/deliveries.
func (h *Handler) Deliveries(c *gin.Context) {
	if _, ok := h.loadOwned(c); !ok {
		return
	}
	messageID, err := uuid.Parse(c.Param("messageID"))
	if err != nil {
		response.BadRequest(c, "invalid message id")
		return
	}
	list, err := h.repo.ListDeliveries(c.Request.Context(), messageID)
	if err != nil {
		h.logger.Error("list deliveries", zap.Error(err))
		response.Internal(c, "failed to list deliveries")
		return
	}
	response.OK(c, list)
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

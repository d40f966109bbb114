package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/whtouche/gather-sub002/internal/models"
	"github.com/whtouche/gather-sub002/pkg/response"
)

// CreateRequest is the body for POST /events. New events start in DRAFT.
type CreateRequest struct {
	Title           string     `json:"title" binding:"required"`
	Description     string     `json:"description"`
	Location        string     `json:"location"`
	StartsAt        time.Time  `json:"starts_at" binding:"required"`
	EndsAt          *time.Time `json:"ends_at"`
	RSVPDeadline    *time.Time `json:"rsvp_deadline"`
	Capacity        *int       `json:"capacity"`
	WaitlistEnabled bool       `json:"waitlist_enabled"`
}

// UpdateRequest is the body for PATCH /events/:id. Omitted fields are left
// unchanged; an explicit null clears a nullable field, so an organizer can
// drop the end time, the RSVP deadline, or make a capped event unlimited.
type UpdateRequest struct {
	Title           *string      `json:"title"`
	Description     *string      `json:"description"`
	Location        *string      `json:"location"`
	StartsAt        *time.Time   `json:"starts_at"`
	EndsAt          nullableTime `json:"ends_at"`
	RSVPDeadline    nullableTime `json:"rsvp_deadline"`
	Capacity        nullableInt  `json:"capacity"`
	WaitlistEnabled *bool        `json:"waitlist_enabled"`
}

// nullableTime records whether the field appeared in the body at all, which a
// plain *time.Time cannot: both "omitted" and "null" decode to nil.
type nullableTime struct {
	Set   bool
	Value *time.Time
}

func (n *nullableTime) UnmarshalJSON(b []byte) error {
	n.Set = true
	if string(b) == "null" {
		return nil
	}
	return json.Unmarshal(b, &n.Value)
}

type nullableInt struct {
	Set   bool
	Value *int
}

func (n *nullableInt) UnmarshalJSON(b []byte) error {
	n.Set = true
	if string(b) == "null" {
		return nil
	}
	return json.Unmarshal(b, &n.Value)
}

// EventView is an event together with its computed lifecycle state.
type EventView struct {
	models.Event
	State models.EffectiveState `json:"state"`
}

// Promoter hands freed seats to the waitlist.
type Promoter interface {
	PromoteNext(ctx context.Context, eventID uuid.UUID) error
}

// Handler handles event HTTP endpoints.
type Handler struct {
	repo     *Repository
	promoter Promoter
	logger   *zap.Logger
	now      func() time.Time
}

// NewHandler creates an events handler.
func NewHandler(repo *Repository, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, logger: logger, now: time.Now}
}

// SetPromoter wires the waitlist so raising an event's capacity offers the
// new seats to entrants.
func (h *Handler) SetPromoter(p Promoter) { h.promoter = p }

func (h *Handler) view(ev *models.Event) EventView {
	return EventView{Event: *ev, State: EffectiveState(ev, h.now())}
}

// Create handles POST /events.
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if req.Capacity != nil && *req.Capacity <= 0 {
		response.BadRequest(c, "capacity must be a positive number")
		return
	}
	if req.EndsAt != nil && !req.EndsAt.After(req.StartsAt) {
		response.BadRequest(c, "ends_at must be after starts_at")
		return
	}

	ev := &models.Event{
		Title:           req.Title,
		Description:     req.Description,
		Location:        req.Location,
		CreatedBy:       c.MustGet("user_id").(uuid.UUID),
		StartsAt:        req.StartsAt,
		EndsAt:          req.EndsAt,
		RSVPDeadline:    req.RSVPDeadline,
		Capacity:        req.Capacity,
		WaitlistEnabled: req.WaitlistEnabled,
	}
	if err := h.repo.Create(c.Request.Context(), ev); err != nil {
		h.logger.Error("create event", zap.Error(err))
		response.Internal(c, "failed to create event")
		return
	}
	response.Created(c, h.view(ev))
}

// Get handles GET /events/:id.
func (h *Handler) Get(c *gin.Context) {
	ev, ok := h.load(c)
	if !ok {
		return
	}
	response.OK(c, h.view(ev))
}

// State handles GET /events/:id/state. Other surfaces gate on this instead of
// reading the stored state directly.
func (h *Handler) State(c *gin.Context) {
	ev, ok := h.load(c)
	if !ok {
		return
	}
	response.OK(c, gin.H{"state": EffectiveState(ev, h.now())})
}

// List handles GET /events. ?mine=true restricts to the caller's events and
// needs an authenticated caller.
func (h *Handler) List(c *gin.Context) {
	var createdBy *uuid.UUID
	if c.Query("mine") == "true" {
		v, ok := c.Get("user_id")
		if !ok {
			response.Unauthorized(c, "authentication required for mine=true")
			return
		}
		id := v.(uuid.UUID)
		createdBy = &id
	}
	list, err := h.repo.List(c.Request.Context(), createdBy)
	if err != nil {
		h.logger.Error("list events", zap.Error(err))
		response.Internal(c, "failed to list events")
		return
	}
	views := make([]EventView, 0, len(list))
	for i := range list {
		views = append(views, h.view(&list[i]))
	}
	response.OK(c, views)
}

// Update handles PATCH /events/:id. Moving the start time or the location
// flags every existing RSVP for reconfirmation.
func (h *Handler) Update(c *gin.Context) {
	ev, ok := h.loadOwned(c)
	if !ok {
		return
	}

	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if req.Capacity.Value != nil && *req.Capacity.Value <= 0 {
		response.BadRequest(c, "capacity must be a positive number")
		return
	}

	material := (req.StartsAt != nil && !req.StartsAt.Equal(ev.StartsAt)) ||
		(req.Location != nil && *req.Location != ev.Location)

	seatsAdded := 0
	if req.Capacity.Value != nil && ev.Capacity != nil && *req.Capacity.Value > *ev.Capacity {
		seatsAdded = *req.Capacity.Value - *ev.Capacity
	}

	err := h.repo.Update(c.Request.Context(), ev.ID, UpdateParams{
		Title:             req.Title,
		Description:       req.Description,
		Location:          req.Location,
		StartsAt:          req.StartsAt,
		EndsAt:            req.EndsAt.Value,
		ClearEndsAt:       req.EndsAt.Set && req.EndsAt.Value == nil,
		RSVPDeadline:      req.RSVPDeadline.Value,
		ClearRSVPDeadline: req.RSVPDeadline.Set && req.RSVPDeadline.Value == nil,
		Capacity:          req.Capacity.Value,
		ClearCapacity:     req.Capacity.Set && req.Capacity.Value == nil,
		WaitlistEnabled:   req.WaitlistEnabled,
	})
	if err != nil {
		h.logger.Error("update event", zap.Error(err))
		response.Internal(c, "failed to update event")
		return
	}

	if material {
		n, err := h.repo.FlagReconfirmation(c.Request.Context(), ev.ID)
		if err != nil {
			h.logger.Error("flag reconfirmation", zap.Error(err), zap.String("event_id", ev.ID.String()))
		} else if n > 0 {
			h.logger.Info("rsvps flagged for reconfirmation",
				zap.String("event_id", ev.ID.String()), zap.Int64("count", n))
		}
	}

	if seatsAdded > 0 && ev.WaitlistEnabled && h.promoter != nil {
		for i := 0; i < seatsAdded; i++ {
			if err := h.promoter.PromoteNext(c.Request.Context(), ev.ID); err != nil {
				h.logger.Error("promote on capacity raise", zap.Error(err), zap.String("event_id", ev.ID.String()))
				break
			}
		}
	}

	updated, err := h.repo.GetByID(c.Request.Context(), ev.ID)
	if err != nil || updated == nil {
		response.Internal(c, "failed to load event")
		return
	}
	response.OK(c, h.view(updated))
}

// Publish handles POST /events/:id/publish.
func (h *Handler) Publish(c *gin.Context) {
	h.transition(c, models.EventStatePublished, func(ev *models.Event) string {
		if ev.StoredState != models.EventStateDraft {
			return "only draft events can be published"
		}
		return ""
	})
}

// Cancel handles POST /events/:id/cancel.
func (h *Handler) Cancel(c *gin.Context) {
	h.transition(c, models.EventStateCancelled, func(ev *models.Event) string {
		if ev.StoredState == models.EventStateCompleted {
			return "completed events cannot be cancelled"
		}
		if ev.StoredState == models.EventStateCancelled {
			return "event is already cancelled"
		}
		return ""
	})
}

// Complete handles POST /events/:id/complete, an explicit organizer close
// ahead of the scheduled end.
func (h *Handler) Complete(c *gin.Context) {
	h.transition(c, models.EventStateCompleted, func(ev *models.Event) string {
		if ev.StoredState != models.EventStatePublished {
			return "only published events can be completed"
		}
		return ""
	})
}

func (h *Handler) transition(c *gin.Context, to models.EventState, check func(*models.Event) string) {
	ev, ok := h.loadOwned(c)
	if !ok {
		return
	}
	if msg := check(ev); msg != "" {
		response.Conflict(c, msg)
		return
	}
	if err := h.repo.SetStoredState(c.Request.Context(), ev.ID, to); err != nil {
		h.logger.Error("set event state", zap.Error(err), zap.String("event_id", ev.ID.String()))
		response.Internal(c, "failed to update event state")
		return
	}
	ev.StoredState = to
	response.OK(c, h.view(ev))
}

// Delete handles DELETE /events/:id.
func (h *Handler) Delete(c *gin.Context) {
	ev, ok := h.loadOwned(c)
	if !ok {
		return
	}
	if err := h.repo.Delete(c.Request.Context(), ev.ID); err != nil {
		h.logger.Error("delete event", zap.Error(err))
		response.Internal(c, "failed to delete event")
		return
	}
	response.NoContent(c)
}

func (h *Handler) load(c *gin.Context) (*models.Event, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return nil, false
	}
	ev, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("get event", zap.Error(err))
		response.Internal(c, "failed to load event")
		return nil, false
	}
	if ev == nil {
		response.NotFound(c, "event not found")
		return nil, false
	}
	return ev, true
}

// loadOwned loads the event and enforces that the caller created it or is an
// admin.
func (h *Handler) loadOwned(c *gin.Context) (*models.Event, bool) {
	ev, ok := h.load(c)
	if !ok {
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

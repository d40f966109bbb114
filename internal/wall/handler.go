package wall

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/whtouche/gather-sub002/internal/events"
	"github.com/whtouche/gather-sub002/internal/models"
	"github.com/whtouche/gather-sub002/pkg/response"
)

// PostRequest is the body for POST /events/:id/wall.
type PostRequest struct {
	Content  string `json:"content" binding:"required,max=2000"`
	ParentID string `json:"parent_id"`
}

// Handler handles event wall HTTP endpoints.
type Handler struct {
	repo   *Repository
	events *events.Repository
	logger *zap.Logger
}

// NewHandler creates a wall handler.
func NewHandler(repo *Repository, events *events.Repository, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, events: events, logger: logger}
}

// Post handles POST /events/:id/wall. Only respondents may post.
func (h *Handler) Post(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	userID := c.MustGet("user_id").(uuid.UUID)

	var req PostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	ev, err := h.events.GetByID(c.Request.Context(), eventID)
	if err != nil {
		response.Internal(c, "failed to load event")
		return
	}
	if ev == nil {
		response.NotFound(c, "event not found")
		return
	}

	if ev.CreatedBy != userID {
		ok, err := h.repo.HasRSVP(c.Request.Context(), eventID, userID)
		if err != nil {
			response.Internal(c, "failed to check rsvp")
			return
		}
		if !ok {
			response.Forbidden(c, "only respondents can post to the wall")
			return
		}
	}

	post := &models.WallPost{
		EventID: eventID,
		UserID:  userID,
		Content: req.Content,
	}
	if req.ParentID != "" {
		pid, err := uuid.Parse(req.ParentID)
		if err != nil {
			response.BadRequest(c, "invalid parent_id")
			return
		}
		post.ParentID = &pid
	}

	if err := h.repo.Create(c.Request.Context(), post); err != nil {
		if err == ErrPostNotFound {
			response.BadRequest(c, "parent post not found on this event")
			return
		}
		h.logger.Error("create wall post", zap.Error(err))
		response.Internal(c, "failed to create post")
		return
	}
	response.Created(c, post)
}

// List handles GET /events/:id/wall.
func (h *Handler) List(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	posts, err := h.repo.ListByEvent(c.Request.Context(), eventID)
	if err != nil {
		h.logger.Error("list wall posts", zap.Error(err))
		response.Internal(c, "failed to list posts")
		return
	}
	response.OK(c, posts)
}

// Delete handles DELETE /wall/:postID. Authors delete their own posts; the
// event organizer moderates any post.
func (h *Handler) Delete(c *gin.Context) {
	postID, err := uuid.Parse(c.Param("postID"))
	if err != nil {
		response.BadRequest(c, "invalid post id")
		return
	}
	userID := c.MustGet("user_id").(uuid.UUID)
	role, _ := c.MustGet("user_role").(string)

	post, err := h.repo.Get(c.Request.Context(), postID)
	if err != nil {
		response.Internal(c, "failed to load post")
		return
	}
	if post == nil || post.Deleted {
		response.NotFound(c, "post not found")
		return
	}

	if post.UserID != userID && role != string(models.RoleAdmin) {
		ev, err := h.events.GetByID(c.Request.Context(), post.EventID)
		if err != nil || ev == nil {
			response.Internal(c, "failed to load event")
			return
		}
		if ev.CreatedBy != userID {
			response.Forbidden(c, "not the post author or event organizer")
			return
		}
	}

	if err := h.repo.SoftDelete(c.Request.Context(), postID); err != nil {
		if err == ErrPostNotFound {
			response.NotFound(c, "post not found")
			return
		}
		h.logger.Error("delete wall post", zap.Error(err))
		response.Internal(c, "failed to delete post")
		return
	}
	response.NoContent(c)
}

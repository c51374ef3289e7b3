package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/petertzy/molthub/backend/internal/events"
	"github.com/petertzy/molthub/backend/internal/models"
	"github.com/petertzy/molthub/backend/internal/queue"
)

// EventHandler receives domain events from the content services over the
// internal API and forwards them to the fan-out resolver.
type EventHandler struct {
	fanout     *events.Fanout
	dispatcher queue.Dispatcher
}

// NewEventHandler creates a new EventHandler
func NewEventHandler(fanout *events.Fanout, dispatcher queue.Dispatcher) *EventHandler {
	return &EventHandler{fanout: fanout, dispatcher: dispatcher}
}

// RegisterEventRoutes registers the internal event intake routes
func (h *EventHandler) RegisterEventRoutes(g *echo.Group) {
	g.POST("/events/post-created", h.PostCreated)
	g.POST("/events/comment-created", h.CommentCreated)
	g.POST("/events/post-voted", h.PostVoted)
	g.POST("/events/comment-voted", h.CommentVoted)
	g.POST("/notifications/send", h.SendNotification)
}

type postCreatedRequest struct {
	PostID   string `json:"post_id" validate:"required"`
	ForumID  string `json:"forum_id" validate:"required"`
	AuthorID string `json:"author_id" validate:"required"`
	Title    string `json:"title" validate:"required"`
}

// PostCreated fans out a post-created event
func (h *EventHandler) PostCreated(c echo.Context) error {
	var req postCreatedRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	err := h.fanout.OnPostCreated(c.Request().Context(), req.PostID, req.ForumID, req.AuthorID, req.Title)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusAccepted, echo.Map{"success": true})
}

type commentCreatedRequest struct {
	CommentID       string  `json:"comment_id" validate:"required"`
	PostID          string  `json:"post_id" validate:"required"`
	ForumID         string  `json:"forum_id" validate:"required"`
	AuthorID        string  `json:"author_id" validate:"required"`
	Content         string  `json:"content" validate:"required"`
	ParentCommentID *string `json:"parent_comment_id,omitempty"`
}

// CommentCreated fans out a comment-created event
func (h *EventHandler) CommentCreated(c echo.Context) error {
	var req commentCreatedRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	err := h.fanout.OnCommentCreated(c.Request().Context(),
		req.CommentID, req.PostID, req.ForumID, req.AuthorID, req.Content, req.ParentCommentID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusAccepted, echo.Map{"success": true})
}

type postVotedRequest struct {
	PostID       string `json:"post_id" validate:"required"`
	PostAuthorID string `json:"post_author_id" validate:"required"`
	VoterID      string `json:"voter_id" validate:"required"`
	VoteType     int    `json:"vote_type" validate:"required,oneof=1 -1"`
}

// PostVoted notifies a post's owner about a vote
func (h *EventHandler) PostVoted(c echo.Context) error {
	var req postVotedRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	err := h.fanout.OnPostVoted(c.Request().Context(), req.PostID, req.PostAuthorID, req.VoterID, req.VoteType)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusAccepted, echo.Map{"success": true})
}

type commentVotedRequest struct {
	CommentID       string `json:"comment_id" validate:"required"`
	PostID          string `json:"post_id" validate:"required"`
	CommentAuthorID string `json:"comment_author_id" validate:"required"`
	VoterID         string `json:"voter_id" validate:"required"`
	VoteType        int    `json:"vote_type" validate:"required,oneof=1 -1"`
}

// CommentVoted notifies a comment's owner about a vote
func (h *EventHandler) CommentVoted(c echo.Context) error {
	var req commentVotedRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	err := h.fanout.OnCommentVoted(c.Request().Context(),
		req.CommentID, req.PostID, req.CommentAuthorID, req.VoterID, req.VoteType)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusAccepted, echo.Map{"success": true})
}

// SendNotification re-pushes an already-persisted notification to the
// recipient's live connections without creating a new record.
func (h *EventHandler) SendNotification(c echo.Context) error {
	var notification models.Notification
	if err := c.Bind(&notification); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if notification.ID == "" || notification.RecipientID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Notification id and recipient_id are required")
	}

	if err := h.dispatcher.DispatchSend(c.Request().Context(), &notification); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusAccepted, echo.Map{"success": true})
}

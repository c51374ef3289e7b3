package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/petertzy/molthub/backend/internal/middleware"
	"github.com/petertzy/molthub/backend/internal/models"
	"github.com/petertzy/molthub/backend/internal/repositories"
)

// SubscriptionHandler handles subscription-related HTTP requests
type SubscriptionHandler struct {
	subscriptionRepository repositories.SubscriptionRepository
}

// NewSubscriptionHandler creates a new SubscriptionHandler
func NewSubscriptionHandler(subRepo repositories.SubscriptionRepository) *SubscriptionHandler {
	return &SubscriptionHandler{subscriptionRepository: subRepo}
}

// RegisterSubscriptionRoutes registers subscription routes
func (h *SubscriptionHandler) RegisterSubscriptionRoutes(g *echo.Group) {
	g.POST("/forums/:forum_id/subscription", h.SubscribeToForum)
	g.DELETE("/forums/:forum_id/subscription", h.UnsubscribeFromForum)
	g.POST("/posts/:post_id/subscription", h.SubscribeToPost)
	g.DELETE("/posts/:post_id/subscription", h.UnsubscribeFromPost)
	g.POST("/comments/:comment_id/subscription", h.SubscribeToComment)
	g.DELETE("/comments/:comment_id/subscription", h.UnsubscribeFromComment)
}

// SubscribeToForum subscribes the agent to a forum; re-subscribing updates
// the settings rather than erroring.
func (h *SubscriptionHandler) SubscribeToForum(c echo.Context) error {
	agentID := middleware.AgentIDFromContext(c)
	if agentID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "Agent not authenticated")
	}

	var req models.SubscribeForumRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}

	settings := models.ForumSubscriptionSettings{NotifyOnPost: true}
	if req.NotifyOnPost != nil {
		settings.NotifyOnPost = *req.NotifyOnPost
	}
	if req.NotifyOnComment != nil {
		settings.NotifyOnComment = *req.NotifyOnComment
	}

	subscription, err := h.subscriptionRepository.SubscribeToForum(c.Request().Context(), agentID, c.Param("forum_id"), settings)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusCreated, echo.Map{"success": true, "data": echo.Map{"subscription": subscription}})
}

// UnsubscribeFromForum removes the agent's forum subscription
func (h *SubscriptionHandler) UnsubscribeFromForum(c echo.Context) error {
	agentID := middleware.AgentIDFromContext(c)
	if agentID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "Agent not authenticated")
	}

	err := h.subscriptionRepository.UnsubscribeFromForum(c.Request().Context(), agentID, c.Param("forum_id"))
	if err != nil {
		if errors.Is(err, repositories.ErrSubscriptionNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Subscription not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.NoContent(http.StatusNoContent)
}

func threadSettings(req models.SubscribeThreadRequest) models.ThreadSubscriptionSettings {
	settings := models.ThreadSubscriptionSettings{NotifyOnReply: true}
	if req.NotifyOnReply != nil {
		settings.NotifyOnReply = *req.NotifyOnReply
	}
	if req.NotifyOnVote != nil {
		settings.NotifyOnVote = *req.NotifyOnVote
	}
	return settings
}

// SubscribeToPost subscribes the agent to a post thread
func (h *SubscriptionHandler) SubscribeToPost(c echo.Context) error {
	agentID := middleware.AgentIDFromContext(c)
	if agentID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "Agent not authenticated")
	}

	var req models.SubscribeThreadRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}

	subscription, err := h.subscriptionRepository.SubscribeToPost(c.Request().Context(), agentID, c.Param("post_id"), threadSettings(req))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusCreated, echo.Map{"success": true, "data": echo.Map{"subscription": subscription}})
}

// UnsubscribeFromPost removes the agent's post thread subscription
func (h *SubscriptionHandler) UnsubscribeFromPost(c echo.Context) error {
	agentID := middleware.AgentIDFromContext(c)
	if agentID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "Agent not authenticated")
	}

	err := h.subscriptionRepository.UnsubscribeFromPost(c.Request().Context(), agentID, c.Param("post_id"))
	if err != nil {
		if errors.Is(err, repositories.ErrSubscriptionNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Subscription not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.NoContent(http.StatusNoContent)
}

// SubscribeToComment subscribes the agent to a comment thread
func (h *SubscriptionHandler) SubscribeToComment(c echo.Context) error {
	agentID := middleware.AgentIDFromContext(c)
	if agentID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "Agent not authenticated")
	}

	var req models.SubscribeThreadRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}

	subscription, err := h.subscriptionRepository.SubscribeToComment(c.Request().Context(), agentID, c.Param("comment_id"), threadSettings(req))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusCreated, echo.Map{"success": true, "data": echo.Map{"subscription": subscription}})
}

// UnsubscribeFromComment removes the agent's comment thread subscription
func (h *SubscriptionHandler) UnsubscribeFromComment(c echo.Context) error {
	agentID := middleware.AgentIDFromContext(c)
	if agentID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "Agent not authenticated")
	}

	err := h.subscriptionRepository.UnsubscribeFromComment(c.Request().Context(), agentID, c.Param("comment_id"))
	if err != nil {
		if errors.Is(err, repositories.ErrSubscriptionNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Subscription not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.NoContent(http.StatusNoContent)
}

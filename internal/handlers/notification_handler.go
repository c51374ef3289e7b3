package handlers

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/petertzy/molthub/backend/internal/middleware"
	"github.com/petertzy/molthub/backend/internal/models"
	"github.com/petertzy/molthub/backend/internal/repositories"
)

// NotificationHandler handles notification-related HTTP requests
type NotificationHandler struct {
	notificationRepository repositories.NotificationRepository
	preferenceRepository   repositories.PreferenceRepository
}

// NewNotificationHandler creates a new NotificationHandler
func NewNotificationHandler(notifRepo repositories.NotificationRepository, prefRepo repositories.PreferenceRepository) *NotificationHandler {
	return &NotificationHandler{
		notificationRepository: notifRepo,
		preferenceRepository:   prefRepo,
	}
}

// RegisterNotificationRoutes registers notification routes
func (h *NotificationHandler) RegisterNotificationRoutes(g *echo.Group) {
	g.GET("/notifications", h.GetNotifications)
	g.GET("/notifications/unread-count", h.GetUnreadCount)
	g.PUT("/notifications/:id/read", h.MarkAsRead)
	g.PUT("/notifications/:id/unread", h.MarkAsUnread)
	g.PUT("/notifications/read-all", h.MarkAllAsRead)
	g.DELETE("/notifications/:id", h.DeleteNotification)
	g.GET("/notifications/preferences", h.GetPreferences)
	g.PUT("/notifications/preferences", h.UpdatePreference)
}

// parseFilters builds NotificationFilters from query parameters
func parseFilters(c echo.Context) (repositories.NotificationFilters, error) {
	filters := repositories.NotificationFilters{}

	if raw := c.QueryParam("type"); raw != "" {
		t := models.NotificationType(raw)
		if !models.ValidNotificationType(t) {
			return filters, echo.NewHTTPError(http.StatusBadRequest, "Unknown notification type")
		}
		filters.Type = &t
	}
	if raw := c.QueryParam("is_read"); raw != "" {
		isRead, err := strconv.ParseBool(raw)
		if err != nil {
			return filters, echo.NewHTTPError(http.StatusBadRequest, "Invalid is_read value")
		}
		filters.IsRead = &isRead
	}
	if raw := c.QueryParam("from"); raw != "" {
		from, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filters, echo.NewHTTPError(http.StatusBadRequest, "Invalid from timestamp")
		}
		filters.From = &from
	}
	if raw := c.QueryParam("to"); raw != "" {
		to, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filters, echo.NewHTTPError(http.StatusBadRequest, "Invalid to timestamp")
		}
		filters.To = &to
	}

	filters.Page, _ = strconv.Atoi(c.QueryParam("page"))
	filters.Limit, _ = strconv.Atoi(c.QueryParam("limit"))
	return filters, nil
}

// GetNotifications returns paginated notifications, newest first
func (h *NotificationHandler) GetNotifications(c echo.Context) error {
	agentID := middleware.AgentIDFromContext(c)
	if agentID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "Agent not authenticated")
	}

	filters, err := parseFilters(c)
	if err != nil {
		return err
	}
	page := filters.Page
	if page < 1 {
		page = 1
	}
	limit := filters.Limit
	if limit < 1 || limit > 50 {
		limit = 20
	}

	notifications, total, err := h.notificationRepository.GetNotifications(c.Request().Context(), agentID, filters)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	totalPages := int(math.Ceil(float64(total) / float64(limit)))

	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"data": echo.Map{
			"notifications": notifications,
		},
		"meta": echo.Map{
			"currentPage":     page,
			"totalPages":      totalPages,
			"totalItems":      total,
			"itemsPerPage":    limit,
			"hasNextPage":     page < totalPages,
			"hasPreviousPage": page > 1,
		},
	})
}

// GetUnreadCount returns the unread notification count
func (h *NotificationHandler) GetUnreadCount(c echo.Context) error {
	agentID := middleware.AgentIDFromContext(c)
	if agentID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "Agent not authenticated")
	}

	count, err := h.notificationRepository.GetUnreadCount(c.Request().Context(), agentID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{"count": count}})
}

// MarkAsRead marks one of the agent's notifications as read
func (h *NotificationHandler) MarkAsRead(c echo.Context) error {
	agentID := middleware.AgentIDFromContext(c)
	if agentID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "Agent not authenticated")
	}

	err := h.notificationRepository.MarkAsRead(c.Request().Context(), c.Param("id"), agentID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotificationNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Notification not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{"success": true}})
}

// MarkAsUnread marks one of the agent's notifications as unread
func (h *NotificationHandler) MarkAsUnread(c echo.Context) error {
	agentID := middleware.AgentIDFromContext(c)
	if agentID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "Agent not authenticated")
	}

	err := h.notificationRepository.MarkAsUnread(c.Request().Context(), c.Param("id"), agentID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotificationNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Notification not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{"success": true}})
}

// MarkAllAsRead marks all of the agent's notifications as read
func (h *NotificationHandler) MarkAllAsRead(c echo.Context) error {
	agentID := middleware.AgentIDFromContext(c)
	if agentID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "Agent not authenticated")
	}

	count, err := h.notificationRepository.MarkAllAsRead(c.Request().Context(), agentID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{"count": count}})
}

// DeleteNotification soft-deletes one of the agent's notifications
func (h *NotificationHandler) DeleteNotification(c echo.Context) error {
	agentID := middleware.AgentIDFromContext(c)
	if agentID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "Agent not authenticated")
	}

	err := h.notificationRepository.DeleteNotification(c.Request().Context(), c.Param("id"), agentID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotificationNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Notification not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.NoContent(http.StatusNoContent)
}

// GetPreferences returns the agent's stored notification preferences. Types
// without a stored row are enabled by default and have no entry here.
func (h *NotificationHandler) GetPreferences(c echo.Context) error {
	agentID := middleware.AgentIDFromContext(c)
	if agentID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "Agent not authenticated")
	}

	preferences, err := h.preferenceRepository.GetPreferences(c.Request().Context(), agentID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{"preferences": preferences}})
}

// UpdatePreference upserts a per-type preference; omitted fields keep their
// stored value.
func (h *NotificationHandler) UpdatePreference(c echo.Context) error {
	agentID := middleware.AgentIDFromContext(c)
	if agentID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "Agent not authenticated")
	}

	var req models.UpdatePreferenceRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	preference, err := h.preferenceRepository.UpdatePreference(c.Request().Context(), agentID, &req)
	if err != nil {
		if errors.Is(err, repositories.ErrInvalidNotificationType) {
			return echo.NewHTTPError(http.StatusBadRequest, "Unknown notification type")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{"preference": preference}})
}

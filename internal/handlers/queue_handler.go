package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/petertzy/molthub/backend/internal/queue"
)

// QueueHandler exposes the delivery queue's operational surface on the
// internal API. When the broker was unreachable at startup the process runs
// in direct-dispatch mode and admin is nil.
type QueueHandler struct {
	admin *queue.Admin
}

// NewQueueHandler creates a new QueueHandler
func NewQueueHandler(admin *queue.Admin) *QueueHandler {
	return &QueueHandler{admin: admin}
}

// RegisterQueueRoutes registers the queue admin routes
func (h *QueueHandler) RegisterQueueRoutes(g *echo.Group) {
	g.GET("/queue/stats", h.GetStats)
	g.POST("/queue/pause", h.Pause)
	g.POST("/queue/resume", h.Resume)
	g.POST("/queue/clean", h.Clean)
}

func (h *QueueHandler) requireQueue() error {
	if h.admin == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "Delivery queue is not enabled")
	}
	return nil
}

// GetStats reports waiting/active/completed/failed/delayed job counts
func (h *QueueHandler) GetStats(c echo.Context) error {
	if err := h.requireQueue(); err != nil {
		return err
	}

	stats, err := h.admin.Stats()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": stats})
}

// Pause stops queue consumption without losing queued jobs
func (h *QueueHandler) Pause(c echo.Context) error {
	if err := h.requireQueue(); err != nil {
		return err
	}

	if err := h.admin.Pause(); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true})
}

// Resume restarts queue consumption
func (h *QueueHandler) Resume(c echo.Context) error {
	if err := h.requireQueue(); err != nil {
		return err
	}

	if err := h.admin.Resume(); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true})
}

// Clean prunes completed and failed jobs older than the grace period
// (grace_seconds query parameter, default one hour).
func (h *QueueHandler) Clean(c echo.Context) error {
	if err := h.requireQueue(); err != nil {
		return err
	}

	grace := time.Hour
	if raw := c.QueryParam("grace_seconds"); raw != "" {
		seconds, err := strconv.Atoi(raw)
		if err != nil || seconds < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "Invalid grace_seconds value")
		}
		grace = time.Duration(seconds) * time.Second
	}

	removed, err := h.admin.CleanOldJobs(grace)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{"removed": removed}})
}

package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/janmitra/backend/internal/service"
)

type BroadcastRequest struct {
	Message string `json:"message" validate:"required,max=1000"`
	Role    string `json:"role" validate:"omitempty,oneof=citizen officer admin"`
}

// @Summary List notifications
// @Tags notifications
// @Produce json
// @Param unread query bool false "Only unread"
// @Param limit query int false "Limit (max 200)"
// @Success 200 {array} models.Notification
// @Router /api/notifications [get]
func (h *Handler) NotificationsList(c *gin.Context) {
	unread, _ := strconv.ParseBool(c.DefaultQuery("unread", "false"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	out, err := h.Directory.ListNotifications(c.Request.Context(), identity(c), unread, limit)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// @Summary Mark notification read
// @Tags notifications
// @Param id path string true "Notification ID"
// @Success 204
// @Failure 404 {object} map[string]any
// @Router /api/notifications/{id}/read [post]
func (h *Handler) MarkNotificationRead(c *gin.Context) {
	if err := h.Directory.MarkNotificationRead(c.Request.Context(), identity(c), c.Param("id")); err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// @Summary Live notification feed
// @Description WebSocket stream of the caller's notifications and broadcasts
// @Tags notifications
// @Router /api/notifications/ws [get]
func (h *Handler) NotificationsFeed(c *gin.Context) {
	if h.Feed == nil {
		writeError(c, http.StatusServiceUnavailable, "REALTIME_DISABLED", "Live notifications are not configured", nil)
		return
	}
	id := identity(c)
	if !id.Active {
		h.writeServiceError(c, service.Forbidden("Account is deactivated"))
		return
	}
	if err := h.Feed.Serve(c.Writer, c.Request, *id); err != nil {
		h.Logger.Warn().Err(err).Str("user_id", id.UserID).Msg("notification feed closed")
		if !c.Writer.Written() {
			writeError(c, http.StatusBadGateway, "REALTIME_UNAVAILABLE", "Live notifications unavailable", nil)
		}
	}
}

// @Summary Broadcast a notification
// @Tags admin
// @Accept json
// @Produce json
// @Param body body BroadcastRequest true "Message and optional role filter"
// @Success 200 {object} map[string]any
// @Router /api/admin/broadcast [post]
func (h *Handler) Broadcast(c *gin.Context) {
	var req BroadcastRequest
	if !h.bind(c, &req) {
		return
	}
	n, err := h.Directory.Broadcast(c.Request.Context(), identity(c), req.Role, req.Message)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"recipients": n})
}

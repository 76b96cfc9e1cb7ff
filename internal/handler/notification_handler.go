package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"groupcart/internal/model"
	"groupcart/internal/service/notification"
	"groupcart/pkg/utils"
)

// NotificationHandler notification ledger endpoints
type NotificationHandler struct {
	notifications notification.NotificationService
	fanout        Broadcaster
}

// NewNotificationHandler creates a notification handler
func NewNotificationHandler(notifications notification.NotificationService, fanout Broadcaster) *NotificationHandler {
	return &NotificationHandler{
		notifications: notifications,
		fanout:        fanout,
	}
}

type createNotificationRequest struct {
	UserID  string `json:"user_id"`
	Message string `json:"message"`
	Type    string `json:"type"`
}

// Create appends a notification and pushes it to the target room
func (h *NotificationHandler) Create(c *gin.Context) {
	var req createNotificationRequest
	if !bindJSON(c, &req) {
		return
	}

	n, err := h.notifications.Create(c.Request.Context(), req.UserID, req.Message, req.Type)
	if err != nil {
		utils.ErrorFrom(c, err)
		return
	}

	// targets are usually room ids; other targets simply have no listeners
	if h.fanout != nil {
		h.fanout.Broadcast(n.UserID, model.EventNotification, n)
	}
	utils.SuccessResponse(c, n)
}

// List returns the notifications of ?user_id=
func (h *NotificationHandler) List(c *gin.Context) {
	utils.SuccessResponse(c, h.notifications.ListFor(c.Request.Context(), c.Query("user_id")))
}

// MarkRead flips the read flag
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		utils.ErrorFrom(c, utils.NotFound("Notification not found"))
		return
	}

	if _, err := h.notifications.MarkRead(c.Request.Context(), id); err != nil {
		utils.ErrorFrom(c, err)
		return
	}
	utils.SuccessResponse(c, gin.H{"success": true})
}

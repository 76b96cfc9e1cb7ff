package handler

import (
	"strings"

	"github.com/gin-gonic/gin"

	"groupcart/internal/model"
	"groupcart/internal/service/room"
	"groupcart/pkg/utils"
)

// ActorHeader names the user performing a room mutation
const ActorHeader = "X-User"

// GroupHandler room registry endpoints
type GroupHandler struct {
	rooms room.RoomService
}

// NewGroupHandler creates a group handler
func NewGroupHandler(rooms room.RoomService) *GroupHandler {
	return &GroupHandler{
		rooms: rooms,
	}
}

// GroupResponse created room plus its shareable link
type GroupResponse struct {
	model.Room
	InviteLink string `json:"inviteLink"`
}

type renameRequest struct {
	Name  string `json:"name"`
	Actor string `json:"actor"`
}

type deleteRequest struct {
	Actor string `json:"actor"`
}

// List lists all rooms
func (h *GroupHandler) List(c *gin.Context) {
	utils.SuccessResponse(c, h.rooms.List(c.Request.Context()))
}

// Create registers a room
func (h *GroupHandler) Create(c *gin.Context) {
	var req room.CreateRequest
	if !bindJSON(c, &req) {
		return
	}

	r, err := h.rooms.Create(c.Request.Context(), &req)
	if err != nil {
		utils.ErrorFrom(c, err)
		return
	}

	utils.SuccessResponse(c, GroupResponse{
		Room:       *r,
		InviteLink: inviteLink(c, r.ID),
	})
}

// Rename renames a custom room
func (h *GroupHandler) Rename(c *gin.Context) {
	var req renameRequest
	if !bindJSON(c, &req) {
		return
	}

	r, err := h.rooms.Rename(c.Request.Context(), c.Param("id"), actor(c, req.Actor), req.Name)
	if err != nil {
		utils.ErrorFrom(c, err)
		return
	}
	utils.SuccessResponse(c, r)
}

// Delete removes a custom room
func (h *GroupHandler) Delete(c *gin.Context) {
	var req deleteRequest
	// the body is optional, the header may carry the actor
	_ = c.ShouldBindJSON(&req)

	if err := h.rooms.Delete(c.Request.Context(), c.Param("id"), actor(c, req.Actor)); err != nil {
		utils.ErrorFrom(c, err)
		return
	}
	utils.SuccessResponse(c, gin.H{"success": true})
}

func actor(c *gin.Context, fromBody string) string {
	if a := strings.TrimSpace(c.GetHeader(ActorHeader)); a != "" {
		return a
	}
	return strings.TrimSpace(fromBody)
}

func inviteLink(c *gin.Context, roomID string) string {
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	if proto := c.GetHeader("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	return scheme + "://" + c.Request.Host + "/room/" + roomID
}

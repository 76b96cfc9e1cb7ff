package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"groupcart/pkg/log"
)

// Upgrader accepts websocket connections
type Upgrader interface {
	ServeWS(w http.ResponseWriter, r *http.Request) error
}

// WSHandler websocket entry point
type WSHandler struct {
	hub Upgrader
}

// NewWSHandler creates a websocket handler
func NewWSHandler(hub Upgrader) *WSHandler {
	return &WSHandler{hub: hub}
}

// Serve upgrades the connection; the upgrader answers failed handshakes itself
func (h *WSHandler) Serve(c *gin.Context) {
	if err := h.hub.ServeWS(c.Writer, c.Request); err != nil {
		log.WithFields(log.Fields{
			"remote": c.ClientIP(),
			"error":  err.Error(),
		}).Warn("Websocket upgrade failed")
	}
}

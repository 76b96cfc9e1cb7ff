package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// HealthCheck named dependency probe
type HealthCheck func() error

// ConnectionCounter reports live websocket clients
type ConnectionCounter interface {
	ClientCount() int
}

// HealthHandler liveness endpoints
type HealthHandler struct {
	checks  map[string]HealthCheck
	clients ConnectionCounter
	started time.Time
}

// NewHealthHandler creates a health handler; checks are reported by name
func NewHealthHandler(checks map[string]HealthCheck, clients ConnectionCounter) *HealthHandler {
	return &HealthHandler{
		checks:  checks,
		clients: clients,
		started: time.Now(),
	}
}

// Health reports each dependency and answers 503 when any fails
func (h *HealthHandler) Health(c *gin.Context) {
	status := http.StatusOK
	deps := make(map[string]string, len(h.checks))
	for name, check := range h.checks {
		if err := check(); err != nil {
			deps[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		deps[name] = "ok"
	}

	body := gin.H{
		"status":       "ok",
		"timestamp":    time.Now().Unix(),
		"uptime":       time.Since(h.started).Round(time.Second).String(),
		"dependencies": deps,
	}
	if status != http.StatusOK {
		body["status"] = "degraded"
	}
	if h.clients != nil {
		body["connections"] = h.clients.ClientCount()
	}
	c.JSON(status, body)
}

// Ping liveness probe
func (h *HealthHandler) Ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "pong"})
}

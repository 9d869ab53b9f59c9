package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/ytpipe-go/internal/infrastructure"
)

// ToolVerifier checks the external tools
type ToolVerifier interface {
	Check(ctx context.Context) []infrastructure.ToolStatus
}

// HealthHandler handles health check requests
type HealthHandler struct {
	session SessionController
	tools   ToolVerifier
	version string
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(session SessionController, tools ToolVerifier, version string) *HealthHandler {
	return &HealthHandler{
		session: session,
		tools:   tools,
		version: version,
	}
}

// HealthResponse represents a health check response
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Session struct {
		State  string `json:"state"`
		Active bool   `json:"active"`
	} `json:"session"`
}

// Health handles GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	response := HealthResponse{
		Status:  "ok",
		Version: h.version,
	}
	state := h.session.State()
	response.Session.State = string(state)
	response.Session.Active = state.IsBusy()

	c.JSON(http.StatusOK, response)
}

// Ready handles GET /ready; it runs the tool version checks
func (h *HealthHandler) Ready(c *gin.Context) {
	statuses := h.tools.Check(c.Request.Context())
	for _, s := range statuses {
		if !s.Available {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "not ready",
				"reason": s.Tool + " unavailable",
				"tools":  statuses,
			})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{"status": "ready", "tools": statuses})
}

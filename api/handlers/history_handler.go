package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourusername/ytpipe-go/internal/domain"
)

// HistoryHandler serves the persisted session history
type HistoryHandler struct {
	repo   domain.SessionRepository
	logger *zap.Logger
}

// NewHistoryHandler creates a new history handler
func NewHistoryHandler(repo domain.SessionRepository, logger *zap.Logger) *HistoryHandler {
	return &HistoryHandler{repo: repo, logger: logger}
}

// ListHistory handles GET /api/v1/history
func (h *HistoryHandler) ListHistory(c *gin.Context) {
	var (
		records []*domain.SessionRecord
		err     error
	)

	if state := c.Query("state"); state != "" {
		records, err = h.repo.FindByState(domain.SessionState(state))
	} else {
		limit, convErr := strconv.Atoi(c.DefaultQuery("limit", "50"))
		if convErr != nil || limit <= 0 {
			limit = 50
		}
		records, err = h.repo.FindRecent(limit)
	}
	if err != nil {
		h.logger.Error("Failed to list history", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"count": len(records), "sessions": records})
}

// GetStats handles GET /api/v1/history/stats
func (h *HistoryHandler) GetStats(c *gin.Context) {
	stats, err := h.repo.GetStats()
	if err != nil {
		h.logger.Error("Failed to get stats", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, stats)
}

// GetSession handles GET /api/v1/history/:id
func (h *HistoryHandler) GetSession(c *gin.Context) {
	record, err := h.repo.FindByID(c.Param("id"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, record)
}

// DeleteSession handles DELETE /api/v1/history/:id
func (h *HistoryHandler) DeleteSession(c *gin.Context) {
	id := c.Param("id")
	if err := h.repo.Delete(id); err != nil {
		h.logger.Error("Failed to delete session", zap.String("id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "session deleted"})
}

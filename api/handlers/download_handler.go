package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourusername/ytpipe-go/internal/domain"
	"github.com/yourusername/ytpipe-go/internal/infrastructure"
)

// SessionController is the part of the download session the API drives
type SessionController interface {
	Download(url string) error
	Toggle(url string) (bool, error)
	StopDownload()
	State() domain.SessionState
	Current() *domain.DownloadRequest
	LastResult() *domain.SessionResult
	ActiveProcesses() []infrastructure.ProcessInfo
}

// DownloadHandler handles download-related HTTP requests
type DownloadHandler struct {
	session SessionController
	logger  *zap.Logger
}

// NewDownloadHandler creates a new download handler
func NewDownloadHandler(session SessionController, logger *zap.Logger) *DownloadHandler {
	return &DownloadHandler{
		session: session,
		logger:  logger,
	}
}

// DownloadRequest represents a request to start a download
type DownloadRequest struct {
	URL string `json:"url" binding:"required"`
}

// ToggleRequest represents a toggle request; URL is only needed when idle
type ToggleRequest struct {
	URL string `json:"url"`
}

// ResultResponse is a SessionResult with its error rendered as text
type ResultResponse struct {
	*domain.SessionResult
	Error string `json:"error,omitempty"`
}

// StatusResponse represents the state of the download session
type StatusResponse struct {
	State      domain.SessionState          `json:"state"`
	Active     bool                         `json:"active"`
	Current    *domain.DownloadRequest      `json:"current,omitempty"`
	LastResult *ResultResponse              `json:"last_result,omitempty"`
	Processes  []infrastructure.ProcessInfo `json:"processes"`
}

// StartDownload handles POST /api/v1/download
func (h *DownloadHandler) StartDownload(c *gin.Context) {
	var req DownloadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.session.Download(req.URL); err != nil {
		h.respondError(c, err)
		return
	}

	h.logger.Info("Download requested", zap.String("url", req.URL))
	c.JSON(http.StatusAccepted, gin.H{
		"state":   h.session.State(),
		"request": h.session.Current(),
	})
}

// StopDownload handles POST /api/v1/stop
func (h *DownloadHandler) StopDownload(c *gin.Context) {
	h.session.StopDownload()
	c.JSON(http.StatusAccepted, gin.H{"state": h.session.State()})
}

// Toggle handles POST /api/v1/toggle
func (h *DownloadHandler) Toggle(c *gin.Context) {
	var req ToggleRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	started, err := h.session.Toggle(req.URL)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"started": started,
		"state":   h.session.State(),
	})
}

// GetStatus handles GET /api/v1/status
func (h *DownloadHandler) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, BuildStatus(h.session))
}

// BuildStatus snapshots the session for the API
func BuildStatus(session SessionController) StatusResponse {
	state := session.State()
	status := StatusResponse{
		State:      state,
		Active:     state.IsBusy(),
		Current:    session.Current(),
		LastResult: NewResultResponse(session.LastResult()),
		Processes:  session.ActiveProcesses(),
	}
	if status.Processes == nil {
		status.Processes = []infrastructure.ProcessInfo{}
	}
	return status
}

// NewResultResponse wraps result; nil stays nil
func NewResultResponse(result *domain.SessionResult) *ResultResponse {
	if result == nil {
		return nil
	}
	return &ResultResponse{SessionResult: result, Error: result.ErrorMessage()}
}

func (h *DownloadHandler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrSessionActive):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "state": h.session.State()})
	case errors.Is(err, domain.ErrInvalidRequest):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		h.logger.Error("Failed to start download", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/ytpipe-go/pkg/logger"
)

const maxLogLimit = 5000

// LogHandler handles log-related requests
type LogHandler struct {
	ring      *logger.RingBuffer
	logReader *logger.LogReader
}

// NewLogHandler creates a new log handler
func NewLogHandler(ring *logger.RingBuffer, logsDir string) *LogHandler {
	return &LogHandler{
		ring:      ring,
		logReader: logger.NewLogReader(logsDir),
	}
}

// GetLogs handles GET /api/v1/logs, the in-memory tool output
func (h *LogHandler) GetLogs(c *gin.Context) {
	limit := parseLimit(c, 0)
	lines := h.ring.Tail(limit)

	c.JSON(http.StatusOK, gin.H{
		"count": len(lines),
		"lines": lines,
	})
}

// ClearLogs handles DELETE /api/v1/logs
func (h *LogHandler) ClearLogs(c *gin.Context) {
	h.ring.Clear()
	c.JSON(http.StatusOK, gin.H{"message": "logs cleared"})
}

// GetDownloadLog handles GET /api/v1/logs/download?date=&q=&limit=
func (h *LogHandler) GetDownloadLog(c *gin.Context) {
	date, ok := parseDate(c)
	if !ok {
		return
	}
	limit := parseLimit(c, 500)

	var (
		lines []string
		err   error
	)
	query := c.Query("q")
	if query != "" {
		lines, err = h.logReader.Search(date, query, limit)
	} else {
		lines, err = h.logReader.ReadLines(date, limit)
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read logs"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"date":  date.Format("2006-01-02"),
		"query": query,
		"count": len(lines),
		"lines": lines,
	})
}

// GetSessions handles GET /api/v1/logs/download/sessions?date=
func (h *LogHandler) GetSessions(c *gin.Context) {
	date, ok := parseDate(c)
	if !ok {
		return
	}

	sessions, err := h.logReader.Sessions(date)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read logs"})
		return
	}
	if sessions == nil {
		sessions = []logger.SessionLog{}
	}

	c.JSON(http.StatusOK, gin.H{
		"date":     date.Format("2006-01-02"),
		"count":    len(sessions),
		"sessions": sessions,
	})
}

// ExportDownloadLog handles GET /api/v1/logs/download/export?date=
func (h *LogHandler) ExportDownloadLog(c *gin.Context) {
	date, ok := parseDate(c)
	if !ok {
		return
	}

	filename := "download-" + date.Format("20060102") + ".log"
	c.Header("Content-Description", "File Transfer")
	c.Header("Content-Disposition", "attachment; filename="+filename)
	c.Header("Content-Type", "application/octet-stream")

	c.File(h.logReader.GetLogPath(date))
}

// GetCategories handles GET /api/v1/logs/categories
func (h *LogHandler) GetCategories(c *gin.Context) {
	categories := make([]string, 0, len(logger.Categories))
	for _, cat := range logger.Categories {
		categories = append(categories, string(cat))
	}

	c.JSON(http.StatusOK, gin.H{
		"categories": categories,
	})
}

// GetCategoryLogs handles GET /api/v1/logs/category/:category
func (h *LogHandler) GetCategoryLogs(c *gin.Context) {
	category := logger.LogCategory(c.Param("category"))
	valid := false
	for _, cat := range logger.Categories {
		if cat == category {
			valid = true
			break
		}
	}
	if !valid {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid category"})
		return
	}

	date, ok := parseDate(c)
	if !ok {
		return
	}

	entries, err := h.logReader.ReadCategory(category, date, parseLimit(c, 100))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read logs"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"category": category,
		"date":     date.Format("2006-01-02"),
		"count":    len(entries),
		"entries":  entries,
	})
}

// parseLimit reads ?limit=, capped at maxLogLimit
func parseLimit(c *gin.Context, def int) int {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(def)))
	if err != nil || limit < 0 {
		limit = def
	}
	if limit > maxLogLimit {
		limit = maxLogLimit
	}
	return limit
}

// parseDate reads ?date=YYYY-MM-DD, defaulting to today. It writes a 400
// and returns false on a malformed date.
func parseDate(c *gin.Context) (time.Time, bool) {
	dateStr := c.Query("date")
	if dateStr == "" {
		return time.Now(), true
	}
	date, err := time.ParseInLocation("2006-01-02", dateStr, time.Local)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date format, use YYYY-MM-DD"})
		return time.Time{}, false
	}
	return date, true
}

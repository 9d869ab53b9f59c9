package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/c2h5oh/datasize"
	"github.com/gin-gonic/gin"

	"github.com/yourusername/ytpipe-go/internal/domain"
	"github.com/yourusername/ytpipe-go/internal/infrastructure"
)

// MediaLibrary lists and removes finished downloads
type MediaLibrary interface {
	ListRecent(limit int) ([]infrastructure.MediaFile, error)
	Delete(name string) error
}

// FilesHandler serves the download directory
type FilesHandler struct {
	library MediaLibrary
}

// NewFilesHandler creates a new files handler
func NewFilesHandler(library MediaLibrary) *FilesHandler {
	return &FilesHandler{library: library}
}

type fileResponse struct {
	infrastructure.MediaFile
	HumanSize string `json:"human_size"`
}

// ListFiles handles GET /api/v1/files
func (h *FilesHandler) ListFiles(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "0"))
	if err != nil || limit < 0 {
		limit = 0
	}

	files, err := h.library.ListRecent(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	out := make([]fileResponse, 0, len(files))
	for _, f := range files {
		out = append(out, fileResponse{
			MediaFile: f,
			HumanSize: datasize.ByteSize(f.Size).HumanReadable(),
		})
	}
	c.JSON(http.StatusOK, gin.H{"count": len(out), "files": out})
}

// DeleteFile handles DELETE /api/v1/files/:name
func (h *FilesHandler) DeleteFile(c *gin.Context) {
	err := h.library.Delete(c.Param("name"))
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"message": "file deleted"})
	case errors.Is(err, domain.ErrInvalidRequest):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

package infrastructure

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/yourusername/ytpipe-go/internal/domain"
)

// MediaFile is one finished download in the target directory
type MediaFile struct {
	Name    string    `json:"name"`
	Path    string    `json:"path"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
}

// Library manages the download directory
type Library struct {
	dir    string
	logger *zap.Logger
}

// NewLibrary creates a library rooted at dir
func NewLibrary(dir string, logger *zap.Logger) *Library {
	return &Library{dir: dir, logger: logger}
}

// DownloadDir returns the directory downloads are written to
func (l *Library) DownloadDir() string {
	return l.dir
}

// EnsureDir creates the download directory if missing
func (l *Library) EnsureDir() error {
	if err := os.MkdirAll(l.dir, 0755); err != nil {
		return fmt.Errorf("failed to create download directory: %w", err)
	}
	return nil
}

// ListRecent returns .mp4 files newest first; limit <= 0 means all
func (l *Library) ListRecent(limit int) ([]MediaFile, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []MediaFile{}, nil
		}
		return nil, fmt.Errorf("failed to read download directory: %w", err)
	}

	files := make([]MediaFile, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".mp4") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			// removed between ReadDir and Info
			continue
		}
		files = append(files, MediaFile{
			Name:    e.Name(),
			Path:    filepath.Join(l.dir, e.Name()),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].ModTime.After(files[j].ModTime)
	})
	if limit > 0 && len(files) > limit {
		files = files[:limit]
	}
	return files, nil
}

// Delete removes one file by base name. Names that would escape the
// download directory are rejected.
func (l *Library) Delete(name string) error {
	if name == "" || name != filepath.Base(name) || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: invalid file name %q", domain.ErrInvalidRequest, name)
	}
	path := filepath.Join(l.dir, name)
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%s: %w", name, domain.ErrNotFound)
		}
		return fmt.Errorf("failed to delete %s: %w", name, err)
	}
	l.logger.Info("Deleted download", zap.String("path", path))
	return nil
}

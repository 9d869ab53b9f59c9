package infrastructure

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yourusername/ytpipe-go/internal/domain"
)

// staticTools implements domain.ToolLocator with fixed paths
type staticTools struct {
	downloader string
	transcoder string
	binDir     string
}

func (s staticTools) DownloaderPath() string { return s.downloader }
func (s staticTools) TranscoderPath() string { return s.transcoder }
func (s staticTools) BinDir() string         { return s.binDir }

// lineSink collects appended lines
type lineSink struct {
	mu    sync.Mutex
	lines []string
}

func (s *lineSink) Append(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = append(s.lines, line)
}

func (s *lineSink) all() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.lines...)
}

func (s *lineSink) joined() string {
	return strings.Join(s.all(), "\n")
}

func requireUnix(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("uses shell scripts as fake tools")
	}
}

func writeTool(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0755))
	return path
}

func newTestRunner(binDir string) *ProcessRunner {
	return NewProcessRunner(
		staticTools{binDir: binDir},
		&domain.ProcessConfig{TerminateGrace: 200 * time.Millisecond, KillWait: 2 * time.Second},
		zap.NewNop(),
	)
}

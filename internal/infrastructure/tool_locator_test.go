package infrastructure

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yourusername/ytpipe-go/internal/domain"
)

func TestToolLocator_Resolution(t *testing.T) {
	requireUnix(t)
	binDir := t.TempDir()
	writeTool(t, binDir, "yt-dlp", "exit 0")

	locator := NewToolLocator(&domain.ToolsConfig{BinDir: binDir})
	assert.Equal(t, binDir, locator.BinDir())
	assert.Equal(t, filepath.Join(binDir, "yt-dlp"), locator.DownloaderPath())
	// not installed in bin_dir, left to PATH lookup
	assert.Equal(t, "ffmpeg", locator.TranscoderPath())

	locator = NewToolLocator(&domain.ToolsConfig{BinDir: binDir, FFmpegBinary: "/usr/local/bin/ffmpeg"})
	assert.Equal(t, "/usr/local/bin/ffmpeg", locator.TranscoderPath())
}

func TestToolChecker_Check(t *testing.T) {
	requireUnix(t)
	binDir := t.TempDir()
	writeTool(t, binDir, "yt-dlp", `echo "2024.08.06"`)
	writeTool(t, binDir, "ffmpeg", `echo "ffmpeg version 7.0 Copyright (c)"; echo "built with gcc"; exit 0`)

	locator := NewToolLocator(&domain.ToolsConfig{BinDir: binDir})
	runner := NewProcessRunner(locator, &domain.ProcessConfig{TerminateGrace: 100 * time.Millisecond, KillWait: time.Second}, zap.NewNop())
	checker := NewToolChecker(locator, runner, zap.NewNop())

	statuses := checker.Check(context.Background())
	require.Len(t, statuses, 2)

	assert.Equal(t, domain.ToolDownloader, statuses[0].Tool)
	assert.True(t, statuses[0].Available)
	assert.Equal(t, "2024.08.06", statuses[0].Version)

	assert.Equal(t, domain.ToolTranscoder, statuses[1].Tool)
	assert.True(t, statuses[1].Available)
	assert.Equal(t, "ffmpeg version 7.0 Copyright (c)", statuses[1].Version)
}

func TestToolChecker_ReportsMissingAndFailingTools(t *testing.T) {
	requireUnix(t)
	binDir := t.TempDir()
	failing := writeTool(t, binDir, "broken", `echo "boom" >&2; exit 1`)

	locator := staticTools{downloader: filepath.Join(binDir, "absent"), transcoder: failing, binDir: binDir}
	checker := NewToolChecker(locator, newTestRunner(binDir), zap.NewNop())

	statuses := checker.Check(context.Background())
	require.Len(t, statuses, 2)

	assert.False(t, statuses[0].Available)
	assert.NotEmpty(t, statuses[0].Error)

	assert.False(t, statuses[1].Available)
	assert.Equal(t, "ffmpeg exited with code 1", statuses[1].Error)
}

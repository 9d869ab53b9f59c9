package infrastructure

import (
	"bufio"
	"context"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/yourusername/ytpipe-go/internal/domain"
)

// ToolLocator resolves yt-dlp and ffmpeg from configuration
type ToolLocator struct {
	config *domain.ToolsConfig
}

// NewToolLocator creates a new tool locator
func NewToolLocator(config *domain.ToolsConfig) *ToolLocator {
	return &ToolLocator{config: config}
}

// BinDir returns the directory prepended to PATH for launched tools
func (l *ToolLocator) BinDir() string {
	return l.config.BinDir
}

// DownloaderPath returns the yt-dlp executable to launch
func (l *ToolLocator) DownloaderPath() string {
	return l.resolve(l.config.YTDLPBinary, "yt-dlp")
}

// TranscoderPath returns the ffmpeg executable to launch
func (l *ToolLocator) TranscoderPath() string {
	return l.resolve(l.config.FFmpegBinary, "ffmpeg")
}

// resolve prefers an explicit setting, then <bin_dir>/<name>, then the bare
// name, which the runner looks up on PATH
func (l *ToolLocator) resolve(configured, name string) string {
	if configured != "" {
		return configured
	}
	if runtime.GOOS == "windows" {
		name += ".exe"
	}
	if l.config.BinDir != "" {
		candidate := filepath.Join(l.config.BinDir, name)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate
		}
	}
	return name
}

// ToolStatus reports whether one tool is usable
type ToolStatus struct {
	Tool      string `json:"tool"`
	Path      string `json:"path"`
	Available bool   `json:"available"`
	Version   string `json:"version,omitempty"`
	Error     string `json:"error,omitempty"`
}

// ToolChecker verifies the external tools by running their version commands
type ToolChecker struct {
	locator domain.ToolLocator
	runner  *ProcessRunner
	timeout time.Duration
	logger  *zap.Logger
}

// NewToolChecker creates a new tool checker
func NewToolChecker(locator domain.ToolLocator, runner *ProcessRunner, logger *zap.Logger) *ToolChecker {
	return &ToolChecker{
		locator: locator,
		runner:  runner,
		timeout: 15 * time.Second,
		logger:  logger,
	}
}

// Check runs "yt-dlp --version" and "ffmpeg -version"
func (c *ToolChecker) Check(ctx context.Context) []ToolStatus {
	return []ToolStatus{
		c.version(ctx, domain.Command{Tool: domain.ToolDownloader, Binary: c.locator.DownloaderPath(), Args: []string{"--version"}}),
		c.version(ctx, domain.Command{Tool: domain.ToolTranscoder, Binary: c.locator.TranscoderPath(), Args: []string{"-version"}}),
	}
}

func (c *ToolChecker) version(ctx context.Context, cmd domain.Command) ToolStatus {
	status := ToolStatus{Tool: cmd.Tool, Path: cmd.Binary}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	proc, err := c.runner.Start(ctx, cmd, StartOptions{CaptureStdout: true, MergeStderr: true})
	if err != nil {
		status.Error = err.Error()
		return status
	}
	defer proc.Terminate()

	firstLine := make(chan string, 1)
	go func() {
		out := proc.Stdout()
		defer out.Close()
		line, _ := bufio.NewReader(out).ReadString('\n')
		firstLine <- strings.TrimSpace(line)
		io.Copy(io.Discard, out)
	}()

	code := proc.Wait(ctx)
	if code != 0 {
		status.Error = (&domain.ToolExitError{Tool: cmd.Tool, Code: code}).Error()
		c.logger.Warn("Tool version check failed", zap.String("tool", cmd.Tool), zap.Int("exit_code", code))
		return status
	}

	select {
	case status.Version = <-firstLine:
	case <-ctx.Done():
	}
	status.Available = true
	return status
}

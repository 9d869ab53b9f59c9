package infrastructure

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/yourusername/ytpipe-go/internal/domain"
)

// notifyTimeout bounds a single notifier invocation
const notifyTimeout = 10 * time.Second

// NotificationService sends desktop notifications for finished sessions
type NotificationService struct {
	config  *domain.NotificationConfig
	logger  *zap.Logger
	timeout time.Duration
}

// NewNotificationService creates a new notification service
func NewNotificationService(config *domain.NotificationConfig, logger *zap.Logger) *NotificationService {
	return &NotificationService{
		config:  config,
		logger:  logger,
		timeout: notifyTimeout,
	}
}

// Send sends a notification
func (n *NotificationService) Send(title, message string) error {
	if !n.config.Enabled {
		n.logger.Debug("Notifications disabled, skipping",
			zap.String("title", title),
			zap.String("message", message))
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
	defer cancel()

	var cmd *exec.Cmd
	switch n.config.Method {
	case "osascript":
		script := fmt.Sprintf(`display notification %s with title %s`, appleScriptString(message), appleScriptString(title))
		cmd = exec.CommandContext(ctx, "osascript", "-e", script)
	case "notify-send":
		cmd = exec.CommandContext(ctx, "notify-send", title, message)
	default:
		n.logger.Warn("Unknown notification method", zap.String("method", n.config.Method))
		return nil
	}

	if err := cmd.Run(); err != nil {
		n.logger.Error("Failed to send notification",
			zap.String("method", n.config.Method),
			zap.Error(err))
		return err
	}

	n.logger.Debug("Notification sent",
		zap.String("title", title),
		zap.String("message", message))
	return nil
}

// NotifySessionFinished reports a terminal session outcome
func (n *NotificationService) NotifySessionFinished(result *domain.SessionResult) {
	var title, message string
	switch result.State {
	case domain.StateSucceeded:
		title = "Download Completed"
		message = truncateString(result.OutputPath, 60)
	case domain.StateCancelled:
		title = "Download Cancelled"
		message = truncateString(result.URL, 60)
	default:
		title = "Download Failed"
		message = truncateString(result.ErrorMessage(), 60)
	}
	n.Send(title, message)
}

// appleScriptString quotes s as an AppleScript string literal
func appleScriptString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}

// truncateString keeps the first maxLen runes of s
func truncateString(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}

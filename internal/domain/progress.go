package domain

import (
	"fmt"
	"time"
)

// ProgressIndeterminate marks an event without a known completion fraction
const ProgressIndeterminate = -1.0

// ProgressEvent is what a consumer renders while a session runs.
// Progress is in [0,1] or ProgressIndeterminate.
type ProgressEvent struct {
	Message  string  `json:"message"`
	Progress float64 `json:"progress"`
	Visible  bool    `json:"visible"`
}

// Indeterminate reports whether the event carries no completion fraction
func (e ProgressEvent) Indeterminate() bool {
	return e.Progress < 0
}

// LoadingEvent is emitted before the downloader reports any percentage
func LoadingEvent(elapsed time.Duration) ProgressEvent {
	return ProgressEvent{
		Message:  fmt.Sprintf("Loading video... (elapsed: %s)", FormatElapsed(elapsed)),
		Progress: ProgressIndeterminate,
		Visible:  true,
	}
}

// DownloadingEvent reports percent complete, clamped to [0,100]
func DownloadingEvent(percent float64, elapsed time.Duration) ProgressEvent {
	percent = ClampPercent(percent)
	return ProgressEvent{
		Message:  fmt.Sprintf("Downloading... %.1f%% (elapsed: %s)", percent, FormatElapsed(elapsed)),
		Progress: percent / 100,
		Visible:  true,
	}
}

// CancellingEvent is emitted as soon as a stop is requested
func CancellingEvent() ProgressEvent {
	return ProgressEvent{Message: "Cancelling...", Progress: ProgressIndeterminate, Visible: true}
}

// HiddenEvent resets the consumer's progress display; it ends every session.
func HiddenEvent() ProgressEvent {
	return ProgressEvent{}
}

// ClampPercent bounds a percentage to [0,100]
func ClampPercent(p float64) float64 {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

// FormatElapsed renders mm:ss, or h:mm:ss from one hour on
func FormatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Second)
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}

package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Strategy is how a request is executed
type Strategy string

const (
	StrategyDirect Strategy = "direct" // yt-dlp alone, writes into the target directory
	StrategyPiped  Strategy = "piped"  // yt-dlp stdout piped into ffmpeg
)

// SessionState is the lifecycle state of a download session
type SessionState string

const (
	StateIdle       SessionState = "idle"
	StateStarting   SessionState = "starting"
	StateRunning    SessionState = "running"
	StateCancelling SessionState = "cancelling"
	StateSucceeded  SessionState = "succeeded"
	StateFailed     SessionState = "failed"
	StateCancelled  SessionState = "cancelled"
)

// IsBusy reports whether a session in this state still owns the slot
func (s SessionState) IsBusy() bool {
	return s == StateStarting || s == StateRunning || s == StateCancelling
}

// IsTerminal reports whether the state ends a session
func (s SessionState) IsTerminal() bool {
	return s == StateSucceeded || s == StateFailed || s == StateCancelled
}

// DownloadRequest is a single download asked for by the user
type DownloadRequest struct {
	ID          string    `json:"id"`
	URL         string    `json:"url"`
	TargetDir   string    `json:"target_dir"`
	RequestedAt time.Time `json:"requested_at"`
}

// NewDownloadRequest creates a request with a fresh ID
func NewDownloadRequest(url, targetDir string) (*DownloadRequest, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, fmt.Errorf("%w: empty url", ErrInvalidRequest)
	}
	if targetDir == "" {
		return nil, fmt.Errorf("%w: empty target directory", ErrInvalidRequest)
	}
	return &DownloadRequest{
		ID:          uuid.New().String(),
		URL:         url,
		TargetDir:   targetDir,
		RequestedAt: time.Now(),
	}, nil
}

// SelectStrategy returns StrategyPiped when url contains specialHost
// (case-insensitive substring match) and StrategyDirect otherwise.
func SelectStrategy(url, specialHost string) Strategy {
	if specialHost == "" {
		return StrategyDirect
	}
	if strings.Contains(strings.ToLower(url), strings.ToLower(specialHost)) {
		return StrategyPiped
	}
	return StrategyDirect
}

// SessionResult describes how a session ended
type SessionResult struct {
	ID         string        `json:"id"`
	URL        string        `json:"url"`
	Strategy   Strategy      `json:"strategy"`
	State      SessionState  `json:"state"`
	OutputPath string        `json:"output_path,omitempty"`
	ExitCodes  []int         `json:"exit_codes,omitempty"`
	Err        error         `json:"-"`
	Elapsed    time.Duration `json:"elapsed"`
}

// Succeeded reports whether the session produced its output
func (r *SessionResult) Succeeded() bool {
	return r.State == StateSucceeded
}

// ErrorMessage returns the failure text, empty on success
func (r *SessionResult) ErrorMessage() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// SessionRecord is the persisted history row of one session
type SessionRecord struct {
	ID           string       `json:"id" gorm:"primaryKey"`
	URL          string       `json:"url" gorm:"not null"`
	Strategy     Strategy     `json:"strategy" gorm:"not null"`
	State        SessionState `json:"state" gorm:"not null;index"`
	OutputPath   string       `json:"output_path,omitempty"`
	ExitCodes    string       `json:"exit_codes,omitempty"`
	ErrorMessage string       `json:"error_message,omitempty"`
	DurationMs   int64        `json:"duration_ms"`
	CreatedAt    time.Time    `json:"created_at" gorm:"autoCreateTime;index"`
	UpdatedAt    time.Time    `json:"updated_at" gorm:"autoUpdateTime"`
	FinishedAt   *time.Time   `json:"finished_at,omitempty"`
}

// NewSessionRecord creates a history row for a starting session
func NewSessionRecord(req *DownloadRequest, strategy Strategy) *SessionRecord {
	return &SessionRecord{
		ID:        req.ID,
		URL:       req.URL,
		Strategy:  strategy,
		State:     StateRunning,
		CreatedAt: req.RequestedAt,
		UpdatedAt: req.RequestedAt,
	}
}

// Finish copies the terminal result into the record
func (r *SessionRecord) Finish(result *SessionResult) {
	now := time.Now()
	r.State = result.State
	r.OutputPath = result.OutputPath
	r.ErrorMessage = result.ErrorMessage()
	r.DurationMs = result.Elapsed.Milliseconds()
	codes := make([]string, 0, len(result.ExitCodes))
	for _, c := range result.ExitCodes {
		codes = append(codes, fmt.Sprint(c))
	}
	r.ExitCodes = strings.Join(codes, ",")
	r.FinishedAt = &now
	r.UpdatedAt = now
}

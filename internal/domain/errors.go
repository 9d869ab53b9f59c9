package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrSessionActive is returned when a download is requested while one is running
	ErrSessionActive = errors.New("a download session is already active")

	// ErrCancelled marks a session stopped by the user
	ErrCancelled = errors.New("download cancelled")

	// ErrInvalidRequest wraps request validation failures
	ErrInvalidRequest = errors.New("invalid download request")

	// ErrNotFound is returned by lookups that match nothing
	ErrNotFound = errors.New("not found")
)

// Tool names used in errors and log labels
const (
	ToolDownloader = "yt-dlp"
	ToolTranscoder = "ffmpeg"
)

// LaunchError means an external tool could not be started
type LaunchError struct {
	Tool   string
	Binary string
	Err    error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("failed to launch %s (%s): %v", e.Tool, e.Binary, e.Err)
}

func (e *LaunchError) Unwrap() error {
	return e.Err
}

// ToolExitError means an external tool exited with a nonzero code
type ToolExitError struct {
	Tool string
	Code int
}

func (e *ToolExitError) Error() string {
	return fmt.Sprintf("%s exited with code %d", e.Tool, e.Code)
}

// MetadataLookupError means the page title for the output name could not be read.
// It never fails a session; callers fall back to a URL-derived name.
type MetadataLookupError struct {
	URL string
	Err error
}

func (e *MetadataLookupError) Error() string {
	return fmt.Sprintf("title lookup for %s failed: %v", e.URL, e.Err)
}

func (e *MetadataLookupError) Unwrap() error {
	return e.Err
}

// CommandError is returned by the command builders for invalid input
type CommandError struct {
	Field  string
	Reason string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("invalid command %s: %s", e.Field, e.Reason)
}

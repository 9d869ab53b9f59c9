package domain

import "context"

// ToolLocator resolves the external executables
type ToolLocator interface {
	DownloaderPath() string
	TranscoderPath() string
	// BinDir is prepended to PATH for every launched process
	BinDir() string
}

// TargetDirProvider supplies the directory downloads are written to
type TargetDirProvider interface {
	DownloadDir() string
}

// LogSink receives every line of tool output and session step messages.
// Implementations must be safe for concurrent use.
type LogSink interface {
	Append(line string)
}

// SessionJournal is an optional LogSink extension that frames the output
// of one session with start and end markers.
type SessionJournal interface {
	BeginSession(id, url string)
	EndSession(id string, state SessionState, message string)
}

// TitleLookup fetches the human-readable title of a page.
// Failures are reported as *MetadataLookupError.
type TitleLookup interface {
	FetchTitle(ctx context.Context, url string) (string, error)
}

// Notifier is told about terminal session outcomes
type Notifier interface {
	NotifySessionFinished(result *SessionResult)
}

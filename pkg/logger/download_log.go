package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/yourusername/ytpipe-go/internal/domain"
)

// DownloadLog appends raw tool output to logs_dir/download-YYYYMMDD.log,
// framing every session with header and footer markers
type DownloadLog struct {
	dir  string
	now  func() time.Time
	mu   sync.Mutex
	file *os.File
	date string
}

// NewDownloadLog creates the logs directory and returns a log writing into it
func NewDownloadLog(dir string) (*DownloadLog, error) {
	if dir == "" {
		return nil, fmt.Errorf("logs_dir must be specified")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create logs directory: %w", err)
	}
	return &DownloadLog{dir: dir, now: time.Now}, nil
}

// Dir returns the logs directory
func (l *DownloadLog) Dir() string {
	return l.dir
}

// Append writes one line
func (l *DownloadLog) Append(line string) {
	l.write(line + "\n")
}

// BeginSession writes the session start marker
func (l *DownloadLog) BeginSession(id, url string) {
	ts := l.now().Format("2006-01-02 15:04:05")
	l.write(fmt.Sprintf("\n=== [%s] Download: %s ===\nURL: %s\n", ts, id, url))
}

// EndSession writes the session end marker
func (l *DownloadLog) EndSession(id string, state domain.SessionState, message string) {
	ts := l.now().Format("2006-01-02 15:04:05")
	status := strings.ToUpper(string(state))
	if state == domain.StateSucceeded {
		status = "SUCCESS"
	}
	if message == "" {
		message = id
	}
	l.write(fmt.Sprintf("[%s] %s: %s\n=== END ===\n\n", ts, status, message))
}

func (l *DownloadLog) write(s string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.rotate(); err != nil {
		fmt.Fprintf(os.Stderr, "download log: %v\n", err)
		return
	}
	l.file.WriteString(s)
}

// rotate opens the file for the current day; callers hold mu
func (l *DownloadLog) rotate() error {
	date := l.now().Format("20060102")
	if l.file != nil && date == l.date {
		return nil
	}
	if l.file != nil {
		l.file.Close()
		l.file = nil
	}
	f, err := os.OpenFile(DownloadLogPath(l.dir, l.now()), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	l.file = f
	l.date = date
	return nil
}

// Close closes the current file
func (l *DownloadLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

// DownloadLogPath returns the log file for date
func DownloadLogPath(dir string, date time.Time) string {
	return filepath.Join(dir, "download-"+date.Format("20060102")+".log")
}

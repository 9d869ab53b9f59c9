package logger

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"regexp"
	"strings"
	"time"
)

var (
	sessionHeader = regexp.MustCompile(`^=== \[([^\]]+)\] Download: (\S+) ===$`)
	sessionFooter = regexp.MustCompile(`^\[(\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2})\] (SUCCESS|FAILED|CANCELLED): (.*)$`)
)

// SessionLog is the framed output of one session in a download log
type SessionLog struct {
	ID        string   `json:"id"`
	StartedAt string   `json:"started_at"`
	Status    string   `json:"status,omitempty"` // empty while unfinished
	Message   string   `json:"message,omitempty"`
	Lines     []string `json:"lines"`
}

// LogEntry is one parsed line of a structured category log
type LogEntry struct {
	Timestamp string                 `json:"timestamp"`
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Category  string                 `json:"category"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

// LogReader reads the daily download logs and the structured category logs
type LogReader struct {
	logsDir string
}

// NewLogReader creates a new log reader
func NewLogReader(logsDir string) *LogReader {
	return &LogReader{logsDir: logsDir}
}

// GetLogPath returns the download log path for date
func (lr *LogReader) GetLogPath(date time.Time) string {
	return DownloadLogPath(lr.logsDir, date)
}

// ReadLines returns the last limit non-empty lines of the log for date;
// limit <= 0 returns all. A missing file yields no lines.
func (lr *LogReader) ReadLines(date time.Time, limit int) ([]string, error) {
	file, err := os.Open(lr.GetLogPath(date))
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, err
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		if line := scanner.Text(); line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if limit > 0 && len(lines) > limit {
		lines = lines[len(lines)-limit:]
	}
	return lines, nil
}

// Search returns the last limit lines containing query, case-insensitively
func (lr *LogReader) Search(date time.Time, query string, limit int) ([]string, error) {
	lines, err := lr.ReadLines(date, 0)
	if err != nil {
		return nil, err
	}

	query = strings.ToLower(query)
	var matched []string
	for _, line := range lines {
		if strings.Contains(strings.ToLower(line), query) {
			matched = append(matched, line)
		}
	}

	if limit > 0 && len(matched) > limit {
		matched = matched[len(matched)-limit:]
	}
	return matched, nil
}

// Sessions splits the log for date into per-session blocks
func (lr *LogReader) Sessions(date time.Time) ([]SessionLog, error) {
	lines, err := lr.ReadLines(date, 0)
	if err != nil {
		return nil, err
	}

	var sessions []SessionLog
	var cur *SessionLog
	for _, line := range lines {
		if m := sessionHeader.FindStringSubmatch(line); m != nil {
			sessions = append(sessions, SessionLog{ID: m[2], StartedAt: m[1]})
			cur = &sessions[len(sessions)-1]
			continue
		}
		if cur == nil {
			continue
		}
		if line == "=== END ===" {
			cur = nil
			continue
		}
		if m := sessionFooter.FindStringSubmatch(line); m != nil && cur.Status == "" {
			cur.Status = m[2]
			cur.Message = m[3]
			continue
		}
		cur.Lines = append(cur.Lines, line)
	}
	return sessions, nil
}

// Follow sends lines appended to today's log to out until ctx ends
func (lr *LogReader) Follow(ctx context.Context, out chan<- string) error {
	file, err := os.Open(lr.GetLogPath(time.Now()))
	if err != nil {
		return err
	}
	defer file.Close()

	if _, err := file.Seek(0, io.SeekEnd); err != nil {
		return err
	}

	reader := bufio.NewReader(file)
	var partial strings.Builder
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	for {
		chunk, err := reader.ReadString('\n')
		partial.WriteString(chunk)
		if err == nil {
			line := strings.TrimRight(partial.String(), "\r\n")
			partial.Reset()
			if line == "" {
				continue
			}
			select {
			case out <- line:
			case <-ctx.Done():
				return nil
			}
			continue
		}
		if !errors.Is(err, io.EOF) {
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// ReadCategory returns the last limit entries of the structured log of
// category for date. Lines that are not JSON are kept as plain messages.
func (lr *LogReader) ReadCategory(category LogCategory, date time.Time, limit int) ([]LogEntry, error) {
	file, err := os.Open(CategoryLogPath(lr.logsDir, category, date))
	if err != nil {
		if os.IsNotExist(err) {
			return []LogEntry{}, nil
		}
		return nil, err
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		if line := scanner.Text(); line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if limit > 0 && len(lines) > limit {
		lines = lines[len(lines)-limit:]
	}

	entries := make([]LogEntry, 0, len(lines))
	for _, line := range lines {
		entries = append(entries, parseEntry(category, line))
	}
	return entries, nil
}

func parseEntry(category LogCategory, line string) LogEntry {
	entry := LogEntry{Category: string(category)}

	var raw map[string]interface{}
	if err := json.Unmarshal([]byte(line), &raw); err != nil {
		entry.Level = "info"
		entry.Message = line
		return entry
	}

	entry.Timestamp, _ = raw["ts"].(string)
	entry.Level, _ = raw["level"].(string)
	entry.Message, _ = raw["msg"].(string)
	delete(raw, "ts")
	delete(raw, "level")
	delete(raw, "msg")
	if len(raw) > 0 {
		entry.Fields = raw
	}
	return entry
}

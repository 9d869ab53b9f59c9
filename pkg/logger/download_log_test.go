package logger

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/ytpipe-go/internal/domain"
)

func TestDownloadLog_FramesSessions(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	log, err := NewDownloadLog(dir)
	require.NoError(t, err)
	defer log.Close()
	log.now = fixedClock("2024-05-01 12:30:00")

	log.BeginSession("abc", "https://example.com/v")
	log.Append("[yt-dlp] [download]  50.0% of 1MiB")
	log.EndSession("abc", domain.StateSucceeded, "/videos/clip.mp4")

	log.BeginSession("def", "https://example.com/w")
	log.EndSession("def", domain.StateFailed, "yt-dlp exited with code 1")

	log.BeginSession("ghi", "https://example.com/x")
	log.EndSession("ghi", domain.StateCancelled, "")

	data, err := os.ReadFile(filepath.Join(dir, "download-20240501.log"))
	require.NoError(t, err)
	content := string(data)

	assert.Contains(t, content, "=== [2024-05-01 12:30:00] Download: abc ===\nURL: https://example.com/v\n")
	assert.Contains(t, content, "[yt-dlp] [download]  50.0% of 1MiB\n")
	assert.Contains(t, content, "[2024-05-01 12:30:00] SUCCESS: /videos/clip.mp4\n=== END ===\n")
	assert.Contains(t, content, "[2024-05-01 12:30:00] FAILED: yt-dlp exited with code 1\n")
	assert.Contains(t, content, "[2024-05-01 12:30:00] CANCELLED: ghi\n")
	assert.Equal(t, 3, strings.Count(content, "=== END ==="))
}

func TestDownloadLog_RotatesDaily(t *testing.T) {
	dir := t.TempDir()
	log, err := NewDownloadLog(dir)
	require.NoError(t, err)
	defer log.Close()

	log.now = fixedClock("2024-05-01 23:59:59")
	log.Append("day one")
	log.now = fixedClock("2024-05-02 00:00:01")
	log.Append("day two")

	one, err := os.ReadFile(DownloadLogPath(dir, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)))
	require.NoError(t, err)
	two, err := os.ReadFile(DownloadLogPath(dir, time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC)))
	require.NoError(t, err)
	assert.Equal(t, "day one\n", string(one))
	assert.Equal(t, "day two\n", string(two))
}

func TestNewDownloadLog_RequiresDir(t *testing.T) {
	_, err := NewDownloadLog("")
	assert.Error(t, err)
}

func writeLog(t *testing.T, dir string, date time.Time, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(DownloadLogPath(dir, date), []byte(content), 0644))
}

const sampleLog = `
=== [2024-05-01 10:00:00] Download: aaa ===
URL: https://example.com/one
[session aaa] received url
[yt-dlp] [download]  10.0% of 1MiB
[2024-05-01 10:00:05] SUCCESS: /videos/one.mp4
=== END ===


=== [2024-05-01 11:00:00] Download: bbb ===
URL: https://example.com/two
[yt-dlp] ERROR: Unsupported URL
[2024-05-01 11:00:01] FAILED: yt-dlp exited with code 1
=== END ===


=== [2024-05-01 12:00:00] Download: ccc ===
URL: https://example.com/three
[yt-dlp] [download]   1.0% of 1MiB
`

func TestLogReader_ReadLinesAndSearch(t *testing.T) {
	dir := t.TempDir()
	date := time.Date(2024, 5, 1, 0, 0, 0, 0, time.Local)
	writeLog(t, dir, date, sampleLog)
	reader := NewLogReader(dir)

	lines, err := reader.ReadLines(date, 0)
	require.NoError(t, err)
	assert.Len(t, lines, 14)
	assert.Equal(t, "=== [2024-05-01 10:00:00] Download: aaa ===", lines[0])

	lines, err = reader.ReadLines(date, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"URL: https://example.com/three", "[yt-dlp] [download]   1.0% of 1MiB"}, lines)

	matched, err := reader.Search(date, "error", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"[yt-dlp] ERROR: Unsupported URL"}, matched)

	missing, err := reader.ReadLines(date.AddDate(0, 0, 1), 10)
	require.NoError(t, err)
	assert.Empty(t, missing)
}

func TestLogReader_Sessions(t *testing.T) {
	dir := t.TempDir()
	date := time.Date(2024, 5, 1, 0, 0, 0, 0, time.Local)
	writeLog(t, dir, date, sampleLog)

	sessions, err := NewLogReader(dir).Sessions(date)
	require.NoError(t, err)
	require.Len(t, sessions, 3)

	assert.Equal(t, "aaa", sessions[0].ID)
	assert.Equal(t, "2024-05-01 10:00:00", sessions[0].StartedAt)
	assert.Equal(t, "SUCCESS", sessions[0].Status)
	assert.Equal(t, "/videos/one.mp4", sessions[0].Message)
	assert.Equal(t, []string{"URL: https://example.com/one", "[session aaa] received url", "[yt-dlp] [download]  10.0% of 1MiB"}, sessions[0].Lines)

	assert.Equal(t, "FAILED", sessions[1].Status)
	assert.Equal(t, "yt-dlp exited with code 1", sessions[1].Message)

	assert.Equal(t, "ccc", sessions[2].ID)
	assert.Empty(t, sessions[2].Status)
	assert.Len(t, sessions[2].Lines, 2)
}

func TestLogReader_Follow(t *testing.T) {
	dir := t.TempDir()
	log, err := NewDownloadLog(dir)
	require.NoError(t, err)
	defer log.Close()
	log.Append("existing")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := make(chan string, 10)
	errc := make(chan error, 1)
	go func() { errc <- NewLogReader(dir).Follow(ctx, out) }()

	// give Follow time to seek to the end before appending
	time.Sleep(100 * time.Millisecond)
	log.Append("fresh line")

	select {
	case line := <-out:
		assert.Equal(t, "fresh line", line)
	case <-time.After(3 * time.Second):
		t.Fatal("followed line not delivered")
	}

	cancel()
	assert.NoError(t, <-errc)
}

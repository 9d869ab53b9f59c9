package infrastructure

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yourusername/ytpipe-go/internal/domain"
)

func TestNotificationService_DisabledIsNoop(t *testing.T) {
	n := NewNotificationService(&domain.NotificationConfig{Enabled: false, Method: "osascript"}, zap.NewNop())
	assert.NoError(t, n.Send("title", "message"))

	n.NotifySessionFinished(&domain.SessionResult{State: domain.StateFailed, Err: errors.New("x")})
}

func TestNotificationService_UnknownMethod(t *testing.T) {
	n := NewNotificationService(&domain.NotificationConfig{Enabled: true, Method: "carrier-pigeon"}, zap.NewNop())
	assert.NoError(t, n.Send("title", "message"))
}

func TestAppleScriptString(t *testing.T) {
	assert.Equal(t, `"plain"`, appleScriptString("plain"))
	assert.Equal(t, `"say \"hi\""`, appleScriptString(`say "hi"`))
	assert.Equal(t, `"C:\\path"`, appleScriptString(`C:\path`))
}

func TestNotificationService_HungNotifierIsBounded(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("fake notifier is a shell script")
	}
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notify-send"), []byte("#!/bin/sh\nexec sleep 30\n"), 0755))
	t.Setenv("PATH", dir+string(os.PathListSeparator)+os.Getenv("PATH"))

	n := NewNotificationService(&domain.NotificationConfig{Enabled: true, Method: "notify-send"}, zap.NewNop())
	n.timeout = 100 * time.Millisecond

	started := time.Now()
	assert.Error(t, n.Send("title", "message"))
	assert.Less(t, time.Since(started), 5*time.Second)
}

func TestTruncateString(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		maxLen int
		want   string
	}{
		{name: "fits", input: "short", maxLen: 10, want: "short"},
		{name: "ascii", input: "abcdef", maxLen: 3, want: "abc..."},
		{name: "multibyte kept whole", input: "日本語のタイトル", maxLen: 3, want: "日本語..."},
		{name: "multibyte fits", input: "ñandú", maxLen: 5, want: "ñandú"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := truncateString(tt.input, tt.maxLen)
			assert.Equal(t, tt.want, got)
			assert.True(t, utf8.ValidString(got))
		})
	}
}
